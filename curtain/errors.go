package curtain

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrScanTimeout     = errors.New("no advertisement received before scan timeout")
	ErrInvalidPosition = errors.New("position out of range [0,100]")
	ErrBusy            = errors.New("another move is in progress")
	ErrStopped         = errors.New("controller is not running")
)

// ScanError is returned when the scan could not be started or failed while running.
type ScanError struct {
	DeviceId string
	Err      error
}

func (se *ScanError) Error() string {
	return fmt.Sprintf("scan for %s failed: %v", se.DeviceId, se.Err)
}

func (se *ScanError) Unwrap() error {
	return se.Err
}

// MoveFailedError wraps the error returned by the move primitive.
type MoveFailedError struct {
	Target int
	Err    error
}

func (mf *MoveFailedError) Error() string {
	return fmt.Sprintf("move to %d failed: %v", mf.Target, mf.Err)
}

func (mf *MoveFailedError) Unwrap() error {
	return mf.Err
}
