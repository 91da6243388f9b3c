package drivers

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/go-ble/ble"
	"github.com/pkg/errors"

	"github.com/hubertat/curtainkit/curtain"
	"github.com/hubertat/curtainkit/drivers/switchbot"
)

const switchBotDriverName = "switchbot_ble"

var (
	curtainServiceUUID = ble.MustParse(switchbot.ServiceUUID)
	curtainWriteUUID   = ble.MustParse(switchbot.WriteUUID)
	curtainNotifyUUID  = ble.MustParse(switchbot.NotifyUUID)

	serviceDataUUIDs = []ble.UUID{
		ble.UUID16(switchbot.ServiceDataUUIDLegacy),
		ble.UUID16(switchbot.ServiceDataUUID),
	}
)

// gattClient is the part of ble.Client a move needs.
type gattClient interface {
	DiscoverServices(filter []ble.UUID) ([]*ble.Service, error)
	DiscoverCharacteristics(filter []ble.UUID, s *ble.Service) ([]*ble.Characteristic, error)
	DiscoverDescriptors(filter []ble.UUID, c *ble.Characteristic) ([]*ble.Descriptor, error)
	Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error
	WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error
	ClearSubscriptions() error
	CancelConnection() error
}

type bleRadio interface {
	Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error
	Connect(ctx context.Context, addr ble.Addr) (gattClient, error)
	Stop() error
}

// hciRadio adapts a go-ble device to bleRadio.
type hciRadio struct {
	device ble.Device
}

func (hr hciRadio) Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
	return hr.device.Scan(ctx, allowDup, h)
}

func (hr hciRadio) Connect(ctx context.Context, addr ble.Addr) (gattClient, error) {
	return hr.device.Dial(ctx, addr)
}

func (hr hciRadio) Stop() error {
	return hr.device.Stop()
}

// SwitchBotBLE talks to SwitchBot Curtain motors through the local HCI adapter.
type SwitchBotBLE struct {
	HciId int    `json:"hci_id" yaml:"hci_id"`
	Mode  string `json:"mode" yaml:"mode"`

	radio  bleRadio
	mode   switchbot.Mode
	ready  bool
	logger *log.Logger

	// one radio: GATT sessions are not interleaved
	lock sync.Mutex

	// addresses as advertised, they carry the random address type needed to connect
	addrLock sync.Mutex
	addrs    map[string]ble.Addr
}

func (sb *SwitchBotBLE) String() string {
	return switchBotDriverName
}

func (sb *SwitchBotBLE) IsReady() bool {
	return sb.ready
}

func (sb *SwitchBotBLE) Setup(ctx context.Context) (err error) {
	sb.logger = log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "SwitchBotBLE",
		Level:  log.GetLevel(),
	})

	mode, ok := switchbot.ParseMode(sb.Mode)
	if !ok {
		return errors.Errorf("unknown switchbot mode %q", sb.Mode)
	}
	sb.mode = mode

	device, err := newDevice(sb.HciId)
	if err != nil {
		return errors.Wrapf(err, "failed to open hci%d", sb.HciId)
	}
	sb.radio = hciRadio{device: device}

	sb.logger.Debug("ble device ready", "hci", sb.HciId, "mode", sb.Mode)
	sb.ready = true
	return nil
}

func (sb *SwitchBotBLE) Close() error {
	sb.ready = false
	if sb.radio == nil {
		return nil
	}
	return sb.radio.Stop()
}

func (sb *SwitchBotBLE) Scan(ctx context.Context, deviceId string, handler func(curtain.Advertisement)) error {
	if !sb.ready {
		return errors.New("switchbot driver not ready")
	}

	onAdvertisement := func(a ble.Advertisement) {
		if !strings.EqualFold(a.Addr().String(), deviceId) {
			return
		}
		sb.rememberAddr(deviceId, a.Addr())
		for _, sd := range a.ServiceData() {
			if !isCurtainServiceData(sd.UUID) {
				continue
			}
			status, err := switchbot.ParseCurtainServiceData(sd.Data)
			if err != nil {
				sb.logger.Debug("skipping advertisement", "device", deviceId, "err", err)
				continue
			}
			handler(curtain.Advertisement{
				Address:    a.Addr().String(),
				Position:   status.Position,
				Battery:    status.Battery,
				InMotion:   status.InMotion,
				Calibrated: status.Calibrated,
				Rssi:       a.RSSI(),
			})
		}
	}

	return sb.radio.Scan(ctx, true, onAdvertisement)
}

func (sb *SwitchBotBLE) rememberAddr(deviceId string, addr ble.Addr) {
	sb.addrLock.Lock()
	defer sb.addrLock.Unlock()

	if sb.addrs == nil {
		sb.addrs = make(map[string]ble.Addr)
	}
	sb.addrs[strings.ToLower(deviceId)] = addr
}

// peerAddr returns the last advertised address of deviceId, or the id as a random static address.
func (sb *SwitchBotBLE) peerAddr(deviceId string) ble.Addr {
	sb.addrLock.Lock()
	defer sb.addrLock.Unlock()

	if addr, found := sb.addrs[strings.ToLower(deviceId)]; found {
		return addr
	}
	return randomAddr(deviceId)
}

func isCurtainServiceData(uuid ble.UUID) bool {
	for _, known := range serviceDataUUIDs {
		if uuid.Equal(known) {
			return true
		}
	}
	return false
}

func (sb *SwitchBotBLE) RunToPos(ctx context.Context, deviceId string, rawPosition int) error {
	if !sb.ready {
		return errors.New("switchbot driver not ready")
	}

	command, err := switchbot.RunToPosCommand(sb.mode, rawPosition)
	if err != nil {
		return err
	}

	sb.lock.Lock()
	defer sb.lock.Unlock()

	sb.logger.Debug("dialing", "device", deviceId)
	client, err := sb.radio.Connect(ctx, sb.peerAddr(deviceId))
	if err != nil {
		return errors.Wrapf(err, "failed to dial %s", deviceId)
	}
	defer func() {
		_ = client.ClearSubscriptions()
		_ = client.CancelConnection()
	}()

	services, err := client.DiscoverServices([]ble.UUID{curtainServiceUUID})
	if err != nil {
		return errors.Wrap(err, "failed to discover services")
	}
	if len(services) == 0 {
		return errors.New("curtain service not found")
	}

	characteristics, err := client.DiscoverCharacteristics([]ble.UUID{curtainWriteUUID, curtainNotifyUUID}, services[0])
	if err != nil {
		return errors.Wrap(err, "failed to discover characteristics")
	}

	var writeChar, notifyChar *ble.Characteristic
	for _, characteristic := range characteristics {
		if characteristic.UUID.Equal(curtainWriteUUID) {
			writeChar = characteristic
		} else if characteristic.UUID.Equal(curtainNotifyUUID) {
			notifyChar = characteristic
		}
		if _, err := client.DiscoverDescriptors(nil, characteristic); err != nil {
			return errors.Wrap(err, "failed to discover descriptors")
		}
	}
	if writeChar == nil || notifyChar == nil {
		return errors.New("curtain characteristics not found")
	}

	responses := make(chan []byte, 1)
	err = client.Subscribe(notifyChar, false, func(resp []byte) {
		select {
		case responses <- append([]byte{}, resp...):
		default:
		}
	})
	if err != nil {
		return errors.Wrap(err, "failed to subscribe to notifications")
	}

	sb.logger.Debug("sending command", "device", deviceId, "payload", command)
	if err = client.WriteCharacteristic(writeChar, command, false); err != nil {
		return errors.Wrap(err, "failed to write command")
	}

	select {
	case resp := <-responses:
		return switchbot.CheckResponse(resp)
	case <-ctx.Done():
		return ctx.Err()
	}
}
