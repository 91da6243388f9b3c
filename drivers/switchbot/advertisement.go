package switchbot

import (
	"fmt"
)

// CurtainStatus is decoded from the curtain's advertisement service data.
// Position is closed-ness: 0 fully open, 100 fully closed.
type CurtainStatus struct {
	Calibrated bool
	Battery    int
	InMotion   bool
	Position   int
	LightLevel int
	Chained    int
}

func ParseCurtainServiceData(data []byte) (status CurtainStatus, err error) {
	if len(data) != 5 && len(data) != 6 {
		err = fmt.Errorf("unexpected curtain service data length %d", len(data))
		return
	}

	if data[0]&0x7f != CurtainModel {
		err = fmt.Errorf("not a curtain advertisement, model byte 0x%02x", data[0])
		return
	}

	status.Calibrated = data[1]&0x40 != 0
	status.Battery = int(data[2] & 0x7f)
	status.InMotion = data[3]&0x80 != 0
	status.Position = int(data[3] & 0x7f)
	status.LightLevel = int(data[4]>>4) & 0x0f
	status.Chained = int(data[4] & 0x07)

	return
}
