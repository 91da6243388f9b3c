// Package switchbot holds the SwitchBot Curtain advertisement and GATT command layouts.
package switchbot

const (
	ServiceUUID = "cba20d00-224d-11e6-9fb8-0002a5d5c51b"
	WriteUUID   = "cba20002-224d-11e6-9fb8-0002a5d5c51b"
	NotifyUUID  = "cba20003-224d-11e6-9fb8-0002a5d5c51b"

	// service data is announced under the legacy 0x0d00 uuid or the registered 0xfd3d one
	ServiceDataUUIDLegacy uint16 = 0x0d00
	ServiceDataUUID       uint16 = 0xfd3d

	CurtainModel byte = 'c'
)

type Mode byte

const (
	ModePerformance Mode = 0x00
	ModeSilent      Mode = 0x01
	ModeDefault     Mode = 0xff
)

var modeNames = map[string]Mode{
	"":            ModeDefault,
	"default":     ModeDefault,
	"performance": ModePerformance,
	"silent":      ModeSilent,
}

func ParseMode(name string) (mode Mode, ok bool) {
	mode, ok = modeNames[name]
	return
}
