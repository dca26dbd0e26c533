package rod

import (
	"context"
	"errors"
	"sync"
)

var errWaiterReleased = errors.New("load waiter released before the load fired")

// loadWaiter wraps a rod event subscription taken before the triggering call.
type loadWaiter struct {
	cancel context.CancelFunc
	wait   func()
	fired  bool

	once sync.Once
	done chan struct{}
}

func (w *loadWaiter) Wait(ctx context.Context) error {
	w.once.Do(func() {
		go func() {
			defer close(w.done)
			w.wait()
		}()
	})

	select {
	case <-w.done:
		if !w.fired {
			return errWaiterReleased
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *loadWaiter) Release() {
	w.cancel()
}
