package drivers

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/hubertat/curtainkit/curtain"
)

const mockDriverName = "mock_driver"

// MockCurtainDriver simulates a curtain motor. Position is raw closed-ness like the real device.
type MockCurtainDriver struct {
	Position     int    `json:"position" yaml:"position"`
	MoveDuration string `json:"move_duration" yaml:"move_duration"`
	FailMoves    bool   `json:"fail_moves" yaml:"fail_moves"`
	Silent       bool   `json:"silent" yaml:"silent"`

	moveDuration time.Duration
	ready        bool
	lock         sync.Mutex

	writeTo    io.Writer
	writeMoves bool
}

func (md *MockCurtainDriver) String() string {
	return mockDriverName
}

func (md *MockCurtainDriver) IsReady() bool {
	return md.ready
}

func (md *MockCurtainDriver) Setup(ctx context.Context) error {
	if md.Position < 0 || md.Position > 100 {
		return errors.Errorf("mock position %d out of range", md.Position)
	}

	if len(md.MoveDuration) > 0 {
		duration, err := time.ParseDuration(md.MoveDuration)
		if err != nil {
			return errors.Wrap(err, "invalid mock move duration")
		}
		md.moveDuration = duration
	}

	md.ready = true
	return nil
}

func (md *MockCurtainDriver) Close() error {
	md.ready = false
	return nil
}

// Scan reports one advertisement unless Silent is set, then waits for ctx like a real scan.
func (md *MockCurtainDriver) Scan(ctx context.Context, deviceId string, handler func(curtain.Advertisement)) error {
	if !md.ready {
		return errors.New("mock driver not ready")
	}

	if !md.Silent {
		handler(curtain.Advertisement{
			Address:    deviceId,
			Position:   md.RawPosition(),
			Battery:    100,
			Calibrated: true,
		})
	}

	<-ctx.Done()
	return ctx.Err()
}

func (md *MockCurtainDriver) RunToPos(ctx context.Context, deviceId string, rawPosition int) error {
	if !md.ready {
		return errors.New("mock driver not ready")
	}
	if rawPosition < 0 || rawPosition > 100 {
		return errors.Errorf("mock raw position %d out of range", rawPosition)
	}
	if md.FailMoves {
		return errors.New("mock move failure")
	}

	select {
	case <-time.After(md.moveDuration):
	case <-ctx.Done():
		return ctx.Err()
	}

	md.lock.Lock()
	defer md.lock.Unlock()
	if md.writeMoves && rawPosition != md.Position {
		fmt.Fprintf(md.writeTo, "[curtain %s] moved from %d to %d (closed-ness)\n", deviceId, md.Position, rawPosition)
	}
	md.Position = rawPosition
	return nil
}

func (md *MockCurtainDriver) RawPosition() int {
	md.lock.Lock()
	defer md.lock.Unlock()

	return md.Position
}

func (md *MockCurtainDriver) MonitorMoves(writer io.Writer) {
	md.lock.Lock()
	defer md.lock.Unlock()

	md.writeTo = writer
	md.writeMoves = true
}
