// Package notify runs fire-and-forget backend calls such as view and
// download counters. A failed call is logged and dropped: no retry, no
// rollback of whatever the caller already did locally.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds a single dispatched call.
const DefaultTimeout = 10 * time.Second

// Notifier dispatches best-effort calls on their own goroutines.
type Notifier struct {
	logger  zerolog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// New returns a notifier that logs failures to logger.
func New(logger zerolog.Logger, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Notifier{logger: logger, timeout: timeout}
}

// Dispatch runs fn in the background and returns immediately.
func (n *Notifier) Dispatch(name string, fn func(ctx context.Context) error) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			n.logger.Warn().Err(err).Str("call", name).Msg("best-effort call failed")
		}
	}()
}

// Wait blocks until every dispatched call has returned.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
