package switchbot

import (
	"fmt"
)

const (
	responseOk    byte = 0x01
	responseBusy  byte = 0x03
	responseError byte = 0x05
)

// RunToPosCommand returns the payload moving the curtain to rawPosition (closed-ness).
func RunToPosCommand(mode Mode, rawPosition int) ([]byte, error) {
	if rawPosition < 0 || rawPosition > 100 {
		return nil, fmt.Errorf("raw position %d out of range", rawPosition)
	}

	return []byte{0x57, 0x0f, 0x45, 0x01, 0x05, byte(mode), byte(rawPosition)}, nil
}

func CheckResponse(resp []byte) error {
	if len(resp) == 0 {
		return fmt.Errorf("empty response from device")
	}

	switch resp[0] {
	case responseOk:
		return nil
	case responseBusy:
		return fmt.Errorf("device busy (0x%02x)", resp[0])
	case responseError:
		return fmt.Errorf("device reported an error (0x%02x)", resp[0])
	}
	return fmt.Errorf("device returned unexpected status 0x%02x", resp[0])
}
