package drivers

import (
	"time"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/go-ble/ble/linux/hci"
	"github.com/go-ble/ble/linux/hci/cmd"
)

const bleTimeout = 20 * time.Second

var scanParams = cmd.LESetScanParameters{
	LEScanType:           1,    // Active scanning
	LEScanInterval:       0x10, // 10ms
	LEScanWindow:         0x10, // 10ms
	OwnAddressType:       0,    // Static
	ScanningFilterPolicy: 0,    // Accept all
}

func newDevice(hciId int) (ble.Device, error) {
	device, err := linux.NewDevice(
		ble.OptDeviceID(hciId),
		ble.OptListenerTimeout(bleTimeout),
		ble.OptDialerTimeout(bleTimeout),
		ble.OptScanParams(scanParams),
	)
	if err != nil {
		return nil, err
	}
	return device, nil
}

// randomAddr marks the address as random, the controller dials public addresses otherwise.
// SwitchBot devices advertise with random static addresses.
func randomAddr(deviceId string) ble.Addr {
	return hci.RandomAddress{Addr: ble.NewAddr(deviceId)}
}
