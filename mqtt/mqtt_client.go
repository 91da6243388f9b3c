package mqtt

import (
	"context"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/pkg/errors"
)

const subscribeTimeoutSeconds = 15
const connectionTimeoutSeconds = 5
const publishTimeoutSeconds = 4

type MqttHandler interface {
	MqttHandle(pub *paho.Publish)
	MqttSubscribeTopic() string
}

type Publisher interface {
	Publish(topic string, payload []byte) error
}

type MqttClient struct {
	config autopaho.ClientConfig
	conn   *autopaho.ConnectionManager
	logger *log.Logger

	lock     sync.RWMutex
	handlers map[string]MqttHandler
}

func (mc *MqttClient) connection() *autopaho.ConnectionManager {
	mc.lock.RLock()
	defer mc.lock.RUnlock()

	return mc.conn
}

// Publish sends a retained QoS 1 message, state topics always carry the latest value.
func (mc *MqttClient) Publish(topic string, payload []byte) (err error) {
	conn := mc.connection()
	if conn == nil {
		return errors.New("mqtt client not connected")
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeoutSeconds*time.Second)
	defer cancel()

	_, err = conn.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     1,
		Retain:  true,
		Payload: payload,
	})
	return
}

func (mc *MqttClient) topics() (topics []string) {
	mc.lock.RLock()
	defer mc.lock.RUnlock()

	for topic := range mc.handlers {
		topics = append(topics, topic)
	}
	return
}

func (mc *MqttClient) onConnUp(cm *autopaho.ConnectionManager, connAck *paho.Connack) {
	mc.logger.Info("Connected to MQTT broker")

	subs := []paho.SubscribeOptions{}
	for _, topic := range mc.topics() {
		subs = append(subs, paho.SubscribeOptions{
			QoS:   1,
			Topic: topic,
		})
	}
	if len(subs) == 0 {
		return
	}

	mc.logger.Debug("subscribing mqtt", "subs", subs)

	ctx, cancel := context.WithTimeout(context.Background(), subscribeTimeoutSeconds*time.Second)
	defer cancel()

	_, err := cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: subs,
	})
	if err != nil {
		mc.logger.Error("Failed to subscribe to topics", "err", err)
	}
}

func (mc *MqttClient) onConnError(err error) {
	mc.logger.Error("Received Mqtt connection error", "err", err)
}

func (mc *MqttClient) onSrvDisconnect(d *paho.Disconnect) {
	mc.logger.Info("Disconnected from MQTT broker")
}

func (mc *MqttClient) route(pub *paho.Publish) bool {
	mc.lock.RLock()
	handler, found := mc.handlers[pub.Topic]
	mc.lock.RUnlock()

	if !found {
		mc.logger.Debug("no handler for topic", "topic", pub.Topic)
		return false
	}

	handler.MqttHandle(pub)
	return true
}

func (mc *MqttClient) onPublishRecv() []func(paho.PublishReceived) (bool, error) {
	return []func(paho.PublishReceived) (bool, error){
		func(pr paho.PublishReceived) (bool, error) {
			mc.logger.Debug("received message", "topic", pr.Packet.Topic, "body", string(pr.Packet.Payload), "retain", pr.Packet.Retain)
			return mc.route(pr.Packet), nil
		},
	}
}

func (mc *MqttClient) Connect(ctx context.Context, handlers []MqttHandler) (err error) {
	mc.lock.Lock()
	mc.handlers = make(map[string]MqttHandler)
	for _, h := range handlers {
		mc.logger.Debug("setting up mqtt topics config", "topic", h.MqttSubscribeTopic())
		mc.handlers[h.MqttSubscribeTopic()] = h
	}
	mc.lock.Unlock()

	conn, err := autopaho.NewConnection(ctx, mc.config)
	if err != nil {
		return errors.Wrap(err, "failed to start mqtt connection")
	}

	mc.lock.Lock()
	mc.conn = conn
	mc.lock.Unlock()

	awaitCtx, cancel := context.WithTimeout(ctx, connectionTimeoutSeconds*time.Second)
	defer cancel()

	err = conn.AwaitConnection(awaitCtx)
	mc.logger.Debug("AwaitConnection done", "err", err)

	return
}

func (mc *MqttClient) Disconnect(ctx context.Context) error {
	mc.lock.Lock()
	mc.handlers = map[string]MqttHandler{}
	conn := mc.conn
	mc.conn = nil
	mc.lock.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Disconnect(ctx)
}

func NewMqttClient(broker string, clientId string) (mc *MqttClient, err error) {
	addr, err := url.Parse(broker)
	if err != nil {
		return
	}

	mc = &MqttClient{
		handlers: map[string]MqttHandler{},
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "MqttClient",
			Level:  log.GetLevel(),
		}),
	}

	mc.config = autopaho.ClientConfig{
		ServerUrls:            []*url.URL{addr},
		KeepAlive:             20,
		SessionExpiryInterval: 60,
		OnConnectionUp:        mc.onConnUp,
		OnConnectError:        mc.onConnError,
		ClientConfig: paho.ClientConfig{
			ClientID:           clientId,
			OnClientError:      mc.onConnError,
			OnServerDisconnect: mc.onSrvDisconnect,
			OnPublishReceived:  mc.onPublishRecv(),
		},
	}

	return
}
