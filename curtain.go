package curtainkit

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/service"
	"github.com/charmbracelet/log"
	"github.com/eclipse/paho.golang/paho"
	"github.com/pkg/errors"

	"github.com/hubertat/curtainkit/curtain"
	"github.com/hubertat/curtainkit/drivers"
	"github.com/hubertat/curtainkit/mqtt"
)

const defaultManufacturer = "Wonderlabs, Inc."
const defaultModel = "W1001000"
const defaultDriverName = "switchbot_ble"

// WindowCurtain is the HomeKit side of a curtain.
type WindowCurtain struct {
	*accessory.A
	WindowCovering *service.WindowCovering
}

// Curtain binds one curtain controller to its HomeKit accessory and the optional MQTT topics.
type Curtain struct {
	Id             string `json:"id" yaml:"id"`
	Name           string `json:"name" yaml:"name"`
	Manufacturer   string `json:"manufacturer" yaml:"manufacturer"`
	Model          string `json:"model" yaml:"model"`
	DriverName     string `json:"driver" yaml:"driver"`
	ScanTimeout    string `json:"scan_timeout" yaml:"scan_timeout"`
	MoveTimeout    string `json:"move_timeout" yaml:"move_timeout"`
	DisableHomekit bool   `json:"disable_homekit" yaml:"disable_homekit"`

	controller *curtain.Controller
	driver     drivers.CurtainDriver
	hk         *WindowCurtain
	logger     *log.Logger

	mqttLock    sync.Mutex
	publisher   mqtt.Publisher
	topicPrefix string
}

func (cu *Curtain) applyDefaults() {
	if len(cu.Manufacturer) == 0 {
		cu.Manufacturer = defaultManufacturer
	}
	if len(cu.Model) == 0 {
		cu.Model = defaultModel
	}
	if len(cu.DriverName) == 0 {
		cu.DriverName = defaultDriverName
	}
}

func (cu *Curtain) Validate() error {
	if len(strings.TrimSpace(cu.Id)) == 0 {
		return errors.New("curtain id is required")
	}
	if len(strings.TrimSpace(cu.Name)) == 0 {
		return errors.New("curtain name is required")
	}
	if _, known := drivers.MapAllCurtainDrivers()[cu.DriverName]; !known {
		return errors.Errorf("unknown curtain driver %q", cu.DriverName)
	}
	if _, err := parseOptionalDuration(cu.ScanTimeout); err != nil {
		return errors.Wrap(err, "invalid scan_timeout")
	}
	if _, err := parseOptionalDuration(cu.MoveTimeout); err != nil {
		return errors.Wrap(err, "invalid move_timeout")
	}
	return nil
}

func parseOptionalDuration(value string) (time.Duration, error) {
	if len(value) == 0 {
		return 0, nil
	}
	return time.ParseDuration(value)
}

func (cu *Curtain) GetDriverName() string {
	return cu.DriverName
}

func (cu *Curtain) GetUniqueId() uint64 {
	hash := fnv.New64()
	hash.Write([]byte("Curtain_" + cu.Id))
	return hash.Sum64()
}

func (cu *Curtain) Init(driver drivers.CurtainDriver) error {
	if !strings.EqualFold(driver.String(), cu.DriverName) {
		return fmt.Errorf("Init failed, mismatched or incorrect driver")
	}

	if !driver.IsReady() {
		return fmt.Errorf("Init failed, driver not ready")
	}

	scanTimeout, err := parseOptionalDuration(cu.ScanTimeout)
	if err != nil {
		return errors.Wrap(err, "Init failed")
	}
	moveTimeout, err := parseOptionalDuration(cu.MoveTimeout)
	if err != nil {
		return errors.Wrap(err, "Init failed")
	}

	cu.logger = log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "Curtain " + cu.Name,
		Level:  log.GetLevel(),
	})

	cu.driver = driver
	cu.controller = curtain.NewController(cu.Id, curtain.NewSampler(driver, scanTimeout), driver)
	cu.controller.MoveTimeout = moveTimeout
	cu.controller.Subscribe(cu.onStateChange)

	if cu.DisableHomekit {
		return nil
	}

	cu.hk = cu.newAccessory()
	return nil
}

// newAccessory builds the window covering, resting at the controller's initial position.
func (cu *Curtain) newAccessory() *WindowCurtain {
	hk := &WindowCurtain{}
	hk.A = accessory.New(accessory.Info{
		Name:         cu.Name,
		SerialNumber: cu.Id,
		Manufacturer: cu.Manufacturer,
		Model:        cu.Model,
	}, accessory.TypeWindowCovering)

	hk.WindowCovering = service.NewWindowCovering()
	hk.WindowCovering.PositionState.SetValue(int(curtain.Stopped))
	hk.WindowCovering.CurrentPosition.SetValue(cu.controller.CurrentPosition())
	hk.WindowCovering.TargetPosition.SetValue(cu.controller.CurrentPosition())
	hk.WindowCovering.TargetPosition.OnSetRemoteValue(cu.setTargetFromHomeKit)

	hk.AddS(hk.WindowCovering.S)
	return hk
}

// Start runs the controller until ctx is done. The initial position scan happens in the background.
func (cu *Curtain) Start(ctx context.Context) {
	go cu.controller.Run(ctx)

	go func() {
		select {
		case <-cu.controller.Ready():
			cu.logger.Info("curtain ready", "position", cu.controller.CurrentPosition())
		case <-ctx.Done():
		}
	}()
}

func (cu *Curtain) Controller() *curtain.Controller {
	return cu.controller
}

func (cu *Curtain) Snapshot() curtain.Snapshot {
	return cu.controller.Snapshot()
}

// SetTarget serves requests that do not come from HomeKit.
func (cu *Curtain) SetTarget(ctx context.Context, position int) error {
	return cu.controller.SetTarget(ctx, position)
}

func (cu *Curtain) setTargetFromHomeKit(position int) error {
	cu.logger.Info("HomeKit target", "from", cu.controller.CurrentPosition(), "to", position)

	err := cu.controller.SetTarget(context.Background(), position)
	if err != nil {
		cu.logger.Error("HomeKit target failed", "to", position, "err", err)
	}
	return err
}

// onStateChange runs on the controller worker, it is the only writer of the characteristics.
// A stopped curtain is at its target: the requested one after a move, the old one after a failure.
func (cu *Curtain) onStateChange(snap curtain.Snapshot) {
	cu.logger.Debug("state changed", "position", snap.Position, "state", snap.Motion)

	if cu.hk == nil {
		return
	}
	cu.hk.WindowCovering.PositionState.SetValue(int(snap.Motion))
	cu.hk.WindowCovering.CurrentPosition.SetValue(snap.Position)
	if snap.Motion == curtain.Stopped {
		cu.hk.WindowCovering.TargetPosition.SetValue(snap.Position)
	}
}

func (cu *Curtain) GetHk() *accessory.A {
	if cu.hk == nil {
		return nil
	}
	return cu.hk.A
}

func (cu *Curtain) topic(suffix string) string {
	cu.mqttLock.Lock()
	defer cu.mqttLock.Unlock()

	return strings.Join([]string{cu.topicPrefix, strings.ToLower(cu.Id), suffix}, "/")
}

// SetMqtt enables state publishing and returns the handler for the command topic.
// Publishing happens off the controller worker, a slow broker does not delay moves.
func (cu *Curtain) SetMqtt(publisher mqtt.Publisher, topicPrefix string) []mqtt.MqttHandler {
	cu.mqttLock.Lock()
	subscribed := cu.publisher != nil
	cu.publisher = publisher
	cu.topicPrefix = topicPrefix
	cu.mqttLock.Unlock()

	if !subscribed {
		cu.controller.SubscribeAsync(cu.publishState)
	}

	return []mqtt.MqttHandler{cu}
}

func (cu *Curtain) publishState(snap curtain.Snapshot) {
	cu.mqttLock.Lock()
	publisher := cu.publisher
	cu.mqttLock.Unlock()

	payload, err := json.Marshal(snap)
	if err != nil {
		cu.logger.Error("failed to marshal state", "err", err)
		return
	}

	err = publisher.Publish(cu.topic("state"), payload)
	if err != nil {
		cu.logger.Warn("failed to publish state", "err", err)
	}
}

func (cu *Curtain) MqttSubscribeTopic() string {
	return cu.topic("set")
}

func (cu *Curtain) MqttHandle(pub *paho.Publish) {
	position, err := strconv.Atoi(strings.TrimSpace(string(pub.Payload)))
	if err != nil {
		cu.logger.Warn("ignoring mqtt command, payload is not a position", "payload", string(pub.Payload))
		return
	}

	go func() {
		err := cu.SetTarget(context.Background(), position)
		if err != nil {
			cu.logger.Error("mqtt target failed", "to", position, "err", err)
		}
	}()
}
