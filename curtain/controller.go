package curtain

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

// Mover drives the motor to a raw (closed-ness) position and returns once the device confirms.
type Mover interface {
	RunToPos(ctx context.Context, deviceId string, rawPosition int) error
}

// listenerBacklog is how many transitions an async listener may lag behind before snapshots are dropped.
const listenerBacklog = 16

type moveRequest struct {
	target int
	result chan error
}

// Controller serializes moves of a single curtain. One worker goroutine (Run) owns all
// writes to the State; at most one move is in flight, further requests get ErrBusy.
type Controller struct {
	// MoveTimeout bounds a single move, zero means wait for the device indefinitely.
	MoveTimeout time.Duration

	state   *State
	sampler *Sampler
	mover   Mover
	logger  *log.Logger

	requests chan moveRequest
	ready    chan struct{}
	done     chan struct{}

	busyLock sync.Mutex
	busy     bool

	listenersLock sync.Mutex
	listeners     []func(Snapshot)
}

func NewController(id string, sampler *Sampler, mover Mover) *Controller {
	return &Controller{
		state:    NewState(id),
		sampler:  sampler,
		mover:    mover,
		requests: make(chan moveRequest),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "Curtain " + id,
			Level:  log.GetLevel(),
		}),
	}
}

func (c *Controller) Id() string {
	return c.state.Id()
}

func (c *Controller) CurrentPosition() int {
	return c.state.Position()
}

func (c *Controller) PositionState() MotionState {
	return c.state.Motion()
}

func (c *Controller) Snapshot() Snapshot {
	return c.state.Snapshot()
}

// Ready is closed once the initial position sample has finished, successfully or not.
func (c *Controller) Ready() <-chan struct{} {
	return c.ready
}

// Subscribe registers fn to be called after every state transition.
func (c *Controller) Subscribe(fn func(Snapshot)) {
	c.listenersLock.Lock()
	defer c.listenersLock.Unlock()

	c.listeners = append(c.listeners, fn)
}

// SubscribeAsync registers fn to be called, in order, on its own goroutine. Use it for listeners
// doing I/O, the worker never waits for them.
func (c *Controller) SubscribeAsync(fn func(Snapshot)) {
	queue := make(chan Snapshot, listenerBacklog)

	c.Subscribe(func(snap Snapshot) {
		select {
		case queue <- snap:
		default:
			c.logger.Warn("listener lagging, dropping state", "position", snap.Position, "state", snap.Motion)
		}
	})

	go func() {
		for {
			select {
			case snap := <-queue:
				fn(snap)
			case <-c.done:
				for {
					select {
					case snap := <-queue:
						fn(snap)
					default:
						return
					}
				}
			}
		}
	}()
}

func (c *Controller) notify() {
	c.listenersLock.Lock()
	listeners := make([]func(Snapshot), len(c.listeners))
	copy(listeners, c.listeners)
	c.listenersLock.Unlock()

	snap := c.state.Snapshot()
	for _, fn := range listeners {
		fn(snap)
	}
}

// Run seeds the position and serves move requests until ctx is done.
func (c *Controller) Run(ctx context.Context) {
	defer close(c.done)

	c.seed(ctx)
	close(c.ready)

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("controller stopped")
			return
		case req := <-c.requests:
			err := c.move(ctx, req.target)
			c.release()
			req.result <- err
		}
	}
}

func (c *Controller) seed(ctx context.Context) {
	if c.sampler == nil {
		return
	}

	position, err := c.sampler.Sample(ctx, c.state.Id())
	if err != nil {
		c.logger.Warn("failed to read initial position, assuming closed", "err", err)
		return
	}

	c.logger.Info("initial position read", "position", position)
	c.state.setPosition(position)
	c.notify()
}

// SetTarget moves the curtain to target (0 closed, 100 open) and returns when the move is done.
func (c *Controller) SetTarget(ctx context.Context, target int) error {
	if !ValidPosition(target) {
		return errors.Wrapf(ErrInvalidPosition, "requested %d", target)
	}

	select {
	case <-c.ready:
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	if !c.acquire() {
		return ErrBusy
	}

	req := moveRequest{target: target, result: make(chan error, 1)}
	select {
	case c.requests <- req:
	case <-c.done:
		c.release()
		return ErrStopped
	case <-ctx.Done():
		c.release()
		return ctx.Err()
	}

	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) acquire() bool {
	c.busyLock.Lock()
	defer c.busyLock.Unlock()

	if c.busy {
		return false
	}
	c.busy = true
	return true
}

func (c *Controller) release() {
	c.busyLock.Lock()
	defer c.busyLock.Unlock()

	c.busy = false
}

func (c *Controller) move(ctx context.Context, target int) error {
	current := c.state.Position()
	if target == current {
		c.logger.Debug("already at target", "position", current)
		return nil
	}

	direction := Decreasing
	if target > current {
		direction = Increasing
	}
	c.logger.Info("moving", "from", current, "to", target, "state", direction)
	c.state.setMotion(direction)
	c.notify()

	moveCtx := ctx
	if c.MoveTimeout > 0 {
		var cancel context.CancelFunc
		moveCtx, cancel = context.WithTimeout(ctx, c.MoveTimeout)
		defer cancel()
	}

	err := c.mover.RunToPos(moveCtx, c.state.Id(), Complement(target))
	if err != nil {
		c.state.setMotion(Stopped)
		c.notify()
		c.logger.Error("move failed", "to", target, "err", err)
		return &MoveFailedError{Target: target, Err: err}
	}

	c.state.finish(target)
	c.notify()
	c.logger.Info("moved", "from", current, "to", target)
	return nil
}
