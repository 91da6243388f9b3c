package curtain

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

const DefaultScanTimeout = 1000 * time.Millisecond

// Advertisement is a parsed curtain broadcast. Position is the raw closed-ness value.
type Advertisement struct {
	Address    string
	Position   int
	Battery    int
	InMotion   bool
	Calibrated bool
	Rssi       int
}

// Scanner scans until ctx is done, calling handler for every advertisement of deviceId.
type Scanner interface {
	Scan(ctx context.Context, deviceId string, handler func(Advertisement)) error
}

type Sampler struct {
	Timeout time.Duration

	scanner Scanner
	logger  *log.Logger
}

func NewSampler(scanner Scanner, timeout time.Duration) *Sampler {
	if timeout <= 0 {
		timeout = DefaultScanTimeout
	}

	return &Sampler{
		Timeout: timeout,
		scanner: scanner,
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "Sampler",
			Level:  log.GetLevel(),
		}),
	}
}

// Sample reads the current open-ness of deviceId from a single advertisement.
func (sa *Sampler) Sample(ctx context.Context, deviceId string) (int, error) {
	scanCtx, cancel := context.WithTimeout(ctx, sa.Timeout)
	defer cancel()

	found := make(chan Advertisement, 1)
	handler := func(adv Advertisement) {
		if !strings.EqualFold(adv.Address, deviceId) {
			return
		}
		select {
		case found <- adv:
			cancel()
		default:
		}
	}

	sa.logger.Debug("starting scan", "device", deviceId, "timeout", sa.Timeout)
	err := sa.scanner.Scan(scanCtx, deviceId, handler)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return 0, &ScanError{DeviceId: deviceId, Err: err}
	}

	select {
	case adv := <-found:
		return sa.positionOf(adv)
	case <-scanCtx.Done():
	}

	// the handler may have fired while the scan was being torn down
	select {
	case adv := <-found:
		return sa.positionOf(adv)
	default:
	}

	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	return 0, ErrScanTimeout
}

func (sa *Sampler) positionOf(adv Advertisement) (int, error) {
	sa.logger.Debug("advertisement received", "device", adv.Address, "raw_position", adv.Position, "battery", adv.Battery, "rssi", adv.Rssi)
	if !ValidPosition(adv.Position) {
		return 0, errors.Wrapf(ErrInvalidPosition, "device reported %d", adv.Position)
	}

	return Complement(adv.Position), nil
}
