package curtain

import (
	"context"
	"sync"
)

type fakeScanner struct {
	adverts []Advertisement
	err     error
	calls   int
}

func (fs *fakeScanner) Scan(ctx context.Context, deviceId string, handler func(Advertisement)) error {
	fs.calls++
	if fs.err != nil {
		return fs.err
	}
	for _, adv := range fs.adverts {
		handler(adv)
	}
	<-ctx.Done()
	return ctx.Err()
}

type moveCall struct {
	deviceId string
	raw      int
}

type fakeMover struct {
	lock  sync.Mutex
	calls []moveCall
	err   error

	// when set, RunToPos blocks on release after signalling started
	started chan struct{}
	release chan struct{}
}

func (fm *fakeMover) RunToPos(ctx context.Context, deviceId string, raw int) error {
	fm.lock.Lock()
	fm.calls = append(fm.calls, moveCall{deviceId: deviceId, raw: raw})
	fm.lock.Unlock()

	if fm.started != nil {
		fm.started <- struct{}{}
	}
	if fm.release != nil {
		select {
		case <-fm.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fm.err
}

func (fm *fakeMover) callCount() int {
	fm.lock.Lock()
	defer fm.lock.Unlock()

	return len(fm.calls)
}
