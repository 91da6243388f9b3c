package drivers

import (
	"context"

	"github.com/hubertat/curtainkit/curtain"
)

// CurtainDriver is the only channel to the physical curtain motor.
type CurtainDriver interface {
	Setup(ctx context.Context) error
	Close() error
	String() string
	IsReady() bool

	Scan(ctx context.Context, deviceId string, handler func(curtain.Advertisement)) error
	RunToPos(ctx context.Context, deviceId string, rawPosition int) error
}

func MapAllCurtainDrivers() map[string]CurtainDriver {
	drivers := []CurtainDriver{
		&SwitchBotBLE{},
		&MockCurtainDriver{},
	}

	mapped := make(map[string]CurtainDriver)
	for _, driver := range drivers {
		mapped[driver.String()] = driver
	}
	return mapped
}
