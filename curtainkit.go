package curtainkit

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	dnslog "github.com/brutella/dnssd/log"
	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	hklog "github.com/brutella/hap/log"
	"github.com/pkg/errors"

	"github.com/hubertat/curtainkit/drivers"
	"github.com/hubertat/curtainkit/mqtt"
	"github.com/hubertat/curtainkit/remote"
)

const defaultHomeKitDirectory = "./homekit"
const homeKitBridgeName = "curtainkit"
const homeKitBridgeAuthor = "github.com/hubertat"
const defaultMqttTopicPrefix = "curtainkit"

type MqttConfig struct {
	Broker      string `json:"broker" yaml:"broker"`
	TopicPrefix string `json:"topic_prefix" yaml:"topic_prefix"`
}

type CurtainKit struct {
	Name     string `json:"name" yaml:"name"`
	LogLevel string `json:"log_level" yaml:"log_level"`

	Curtain *Curtain `json:"curtain" yaml:"curtain"`

	HkPin       string `json:"hk_pin" yaml:"hk_pin"`
	HkDirectory string `json:"hk_directory" yaml:"hk_directory"`
	HkAddress   string `json:"hk_address" yaml:"hk_address"`
	HkDebug     bool   `json:"hk_debug" yaml:"hk_debug"`

	SwitchBot  *drivers.SwitchBotBLE      `json:"switchbot" yaml:"switchbot"`
	FakeDriver *drivers.MockCurtainDriver `json:"mock" yaml:"mock"`

	Mqtt   *MqttConfig            `json:"mqtt" yaml:"mqtt"`
	Http   *remote.Server         `json:"http" yaml:"http"`
	Influx *drivers.InfluxHistory `json:"influx" yaml:"influx"`

	curtainDrivers map[string]drivers.CurtainDriver
	driver         drivers.CurtainDriver
	mqttClient     *mqtt.MqttClient
}

// InitDriver sets up the driver used by the curtain. Other configured drivers stay idle.
func (ck *CurtainKit) InitDriver(ctx context.Context) error {
	if ck.Curtain == nil {
		return errors.New("curtain not configured")
	}

	ck.curtainDrivers = make(map[string]drivers.CurtainDriver)

	if ck.SwitchBot != nil {
		ck.curtainDrivers[ck.SwitchBot.String()] = ck.SwitchBot
	}

	if ck.FakeDriver != nil {
		ck.curtainDrivers[ck.FakeDriver.String()] = ck.FakeDriver
	}

	driver, found := ck.curtainDrivers[ck.Curtain.GetDriverName()]
	if !found {
		return errors.Errorf("driver %s not configured", ck.Curtain.GetDriverName())
	}

	err := driver.Setup(ctx)
	if err != nil {
		return errors.Wrapf(err, "failed to setup %s driver", driver)
	}

	ck.driver = driver
	return nil
}

func (ck *CurtainKit) InitCurtain() error {
	if ck.driver == nil {
		return errors.New("driver not set up")
	}

	err := ck.Curtain.Init(ck.driver)
	if err != nil {
		return errors.Wrap(err, "failed to init curtain")
	}

	return nil
}

// InitHistory connects to InfluxDB and records every curtain transition.
func (ck *CurtainKit) InitHistory(ctx context.Context) error {
	if ck.Influx == nil {
		return nil
	}

	err := ck.Influx.Setup(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to setup influx history")
	}

	ck.Curtain.Controller().SubscribeAsync(ck.Influx.Record)
	return nil
}

func (ck *CurtainKit) InitMqtt(ctx context.Context) (err error) {
	if ck.Mqtt == nil || len(ck.Mqtt.Broker) == 0 {
		err = errors.New("mqtt broker not set")
		return
	}

	clientId := ck.Name
	if len(clientId) == 0 {
		clientId = homeKitBridgeName
	}
	mc, err := mqtt.NewMqttClient(ck.Mqtt.Broker, clientId)
	if err != nil {
		err = errors.Wrap(err, "failed to create mqtt client")
		return
	}

	ck.mqttClient = mc

	err = mc.Connect(ctx, ck.Curtain.SetMqtt(mc, ck.Mqtt.TopicPrefix))
	if err != nil {
		err = errors.Wrap(err, "failed to connect to mqtt broker")
	}

	return
}

// Start runs the curtain controller and the http remote, if configured.
func (ck *CurtainKit) Start(ctx context.Context) error {
	ck.Curtain.Start(ctx)

	if ck.Http != nil {
		err := ck.Http.Start(ck.Curtain)
		if err != nil {
			return errors.Wrap(err, "failed to start http remote")
		}
	}

	return nil
}

func (ck *CurtainKit) GetHkAccessories(firmwareVersion string) (acc []*accessory.A) {
	acc = []*accessory.A{}

	accessory := ck.Curtain.GetHk()
	if accessory != nil {
		if accessory.Info != nil && accessory.Info.FirmwareRevision != nil {
			accessory.Info.FirmwareRevision.SetValue(firmwareVersion)
		}
		accessory.Id = ck.Curtain.GetUniqueId()
		acc = append(acc, accessory)
	}

	return
}

func (ck *CurtainKit) Close() (err error) {
	closers := []io.Closer{}
	if ck.Http != nil {
		closers = append(closers, ck.Http)
	}
	if ck.Influx != nil {
		closers = append(closers, ck.Influx)
	}
	if ck.driver != nil {
		closers = append(closers, ck.driver)
	}

	if ck.mqttClient != nil {
		if mqttErr := ck.mqttClient.Disconnect(context.Background()); mqttErr != nil {
			log.Warn("failed to disconnect mqtt", "err", mqttErr)
			err = mqttErr
		}
	}

	for _, closer := range closers {
		closeErr := closer.Close()
		if closeErr != nil {
			log.Warn("failed to close", "what", fmt.Sprintf("%T", closer), "err", closeErr)
			if err == nil {
				err = closeErr
			}
		}
	}

	return
}

func (ck *CurtainKit) PrintStatus(writer io.Writer) {
	fmt.Fprintln(writer)
	fmt.Fprintln(writer, "=== curtainkit ===")
	fmt.Fprintln(writer, "________")
	if ck.Curtain != nil {
		fmt.Fprintf(writer, "| curtain: %s (%s)\n", ck.Curtain.Name, ck.Curtain.Id)
		fmt.Fprintf(writer, "| driver: %s\n", ck.Curtain.GetDriverName())
		if ck.Curtain.controller != nil {
			snap := ck.Curtain.Snapshot()
			fmt.Fprintf(writer, "| position: %d, state: %s\n", snap.Position, snap.Motion)
		}
	}
	fmt.Fprintf(writer, "| homekit: %v\n", len(ck.HkPin) > 0)
	fmt.Fprintf(writer, "| mqtt: %v\n", ck.mqttClient != nil)
	fmt.Fprintf(writer, "| http: %v\n", ck.Http != nil)
	fmt.Fprintf(writer, "| influx: %v\n", ck.Influx != nil && ck.Influx.IsReady())
	fmt.Fprintln(writer, "--------")
	fmt.Fprintln(writer)
}

func (ck *CurtainKit) StartHomeKit(ctx context.Context, firmwareVersion string) error {
	hkName := ck.Name
	if len(hkName) < 1 {
		hkName = homeKitBridgeName
	}
	bridge := accessory.NewBridge(accessory.Info{
		Name:         hkName,
		Manufacturer: homeKitBridgeAuthor,
		Firmware:     firmwareVersion,
	})

	var store hap.Store
	if len(strings.TrimSpace(ck.HkDirectory)) > 1 {
		store = hap.NewFsStore(ck.HkDirectory)
	} else {
		store = hap.NewFsStore(defaultHomeKitDirectory)
	}
	hkServer, err := hap.NewServer(store, bridge.A, ck.GetHkAccessories(firmwareVersion)...)
	if err != nil {
		return errors.Wrap(err, "failed to create HomeKit server")
	}
	hkServer.Pin = ck.HkPin
	if len(ck.HkAddress) > 0 {
		hkServer.Addr = ck.HkAddress
	}

	if ck.HkDebug {
		hklog.Debug.Enable()
		dnslog.Debug.Enable()
	}

	return hkServer.ListenAndServe(ctx)
}
