package mqtt

import (
	"context"
	"testing"

	"github.com/eclipse/paho.golang/paho"
)

type recordingHandler struct {
	topic    string
	received []string
}

func (rh *recordingHandler) MqttSubscribeTopic() string {
	return rh.topic
}

func (rh *recordingHandler) MqttHandle(pub *paho.Publish) {
	rh.received = append(rh.received, string(pub.Payload))
}

func TestNewMqttClient(t *testing.T) {
	mc, err := NewMqttClient("mqtt://127.0.0.1:1883", "curtainkit-test")
	if err != nil {
		t.Fatalf("NewMqttClient returned err: %v", err)
	}

	if len(mc.config.ServerUrls) != 1 || mc.config.ServerUrls[0].Host != "127.0.0.1:1883" {
		t.Errorf("unexpected server urls: %v", mc.config.ServerUrls)
	}
	if mc.config.ClientConfig.ClientID != "curtainkit-test" {
		t.Errorf("client id mismatch: %s", mc.config.ClientConfig.ClientID)
	}

	_, err = NewMqttClient("://bad", "x")
	if err == nil {
		t.Error("expected error for malformed broker url")
	}
}

func TestRoute(t *testing.T) {
	mc, _ := NewMqttClient("mqtt://127.0.0.1:1883", "curtainkit-test")
	handler := &recordingHandler{topic: "curtainkit/aa/set"}
	mc.handlers[handler.topic] = handler

	if !mc.route(&paho.Publish{Topic: "curtainkit/aa/set", Payload: []byte("40")}) {
		t.Error("route did not match registered topic")
	}
	if mc.route(&paho.Publish{Topic: "other/topic", Payload: []byte("1")}) {
		t.Error("route matched unknown topic")
	}

	if len(handler.received) != 1 || handler.received[0] != "40" {
		t.Errorf("handler received %v", handler.received)
	}
}

func TestPublishNotConnected(t *testing.T) {
	mc, _ := NewMqttClient("mqtt://127.0.0.1:1883", "curtainkit-test")

	if mc.Publish("t", []byte("x")) == nil {
		t.Error("Publish without connection returned nil error")
	}
	if err := mc.Disconnect(context.Background()); err != nil {
		t.Errorf("Disconnect without connection returned err: %v", err)
	}
}
