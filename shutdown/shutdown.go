package shutdown

import (
	"context"
	"os/signal"
)

// Context returns a context cancelled on the first termination signal.
// A second signal is delivered with the default action, so a stuck
// shutdown can still be interrupted.
func Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, signals...)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx, stop
}
