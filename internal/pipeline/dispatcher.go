package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/parleyhq/parley/pkg/lifecycle"
)

// drainTimeout bounds how long shutdown waits for in-flight tasks.
const drainTimeout = 2 * time.Minute

// Dispatcher runs named pipeline tasks on tracked goroutines. Webhook
// handlers submit work and return immediately; shutdown drains
// in-flight tasks instead of dropping them.
type Dispatcher struct {
	logger *slog.Logger
	ctx    context.Context
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher bound to the lifecycle context and
// registers a shutdown hook that waits for in-flight tasks.
func NewDispatcher(lc *lifecycle.Coordinator, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		logger: logger.With("system", "dispatcher"),
		ctx:    lc.Context(),
	}

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		d.drain()
	})

	return d
}

// Dispatch runs fn on a tracked goroutine. The task context is detached
// from shutdown cancellation so in-flight runs can finish while drain
// waits on them.
func (d *Dispatcher) Dispatch(name string, fn func(ctx context.Context) error) {
	d.wg.Add(1)

	go func() {
		defer d.wg.Done()

		if err := fn(context.WithoutCancel(d.ctx)); err != nil {
			d.logger.Error("task failed", "task", name, "error", err)
			return
		}
		d.logger.Info("task finished", "task", name)
	}()
}

func (d *Dispatcher) drain() {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("in-flight tasks drained")
	case <-time.After(drainTimeout):
		d.logger.Warn("drain timeout, abandoning in-flight tasks")
	}
}
