package common

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// WithInterrupt creates a context that is cancelled when an interrupt signal
// (SIGINT or SIGTERM) is received, or when the optional timeout elapses.
// A timeout of zero means no deadline.
//
//	ctx, cleanup := common.WithInterrupt(context.Background(), 10*time.Minute)
//	defer cleanup()
func WithInterrupt(parent context.Context, timeout time.Duration) (context.Context, func()) {
	var ctx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
