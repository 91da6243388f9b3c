//go:build !linux

package drivers

import (
	"github.com/go-ble/ble"
	"github.com/pkg/errors"
)

func newDevice(hciId int) (ble.Device, error) {
	return nil, errors.New("switchbot_ble driver needs a linux HCI adapter")
}

func randomAddr(deviceId string) ble.Addr {
	return ble.NewAddr(deviceId)
}
