package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/parleyhq/parley/internal/pipeline"
	"github.com/parleyhq/parley/pkg/lifecycle"
)

func TestDispatcherRunsTask(t *testing.T) {
	lc := lifecycle.New()
	d := pipeline.NewDispatcher(lc, slog.New(slog.NewTextHandler(io.Discard, nil)))

	done := make(chan struct{})
	d.Dispatch("run", func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}

func TestDispatcherShutdownDrainsInFlight(t *testing.T) {
	lc := lifecycle.New()
	d := pipeline.NewDispatcher(lc, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var finished atomic.Bool
	release := make(chan struct{})
	d.Dispatch("slow", func(ctx context.Context) error {
		<-release
		finished.Store(true)
		return nil
	})

	lc.WaitForStartup()

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()

	if err := lc.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !finished.Load() {
		t.Error("shutdown returned before in-flight task finished")
	}
}

func TestDispatcherTaskContextSurvivesShutdown(t *testing.T) {
	lc := lifecycle.New()
	d := pipeline.NewDispatcher(lc, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var cancelled atomic.Bool
	started := make(chan struct{})
	d.Dispatch("detached", func(ctx context.Context) error {
		close(started)
		select {
		case <-ctx.Done():
			cancelled.Store(true)
		case <-time.After(100 * time.Millisecond):
		}
		return nil
	})

	<-started
	lc.WaitForStartup()

	if err := lc.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if cancelled.Load() {
		t.Error("task context was cancelled by shutdown")
	}
}
