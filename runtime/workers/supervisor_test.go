package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"med-lab/domain/event"

	"github.com/stretchr/testify/require"
)

type funcWorker struct {
	run func(ctx context.Context) error
}

func (w funcWorker) Run(ctx context.Context) error { return w.run(ctx) }

func TestSupervisor_RestartOnPanic(t *testing.T) {
	req := require.New(t)
	log := slog.Default()

	var calls atomic.Int32
	worker := funcWorker{run: func(ctx context.Context) error {
		calls.Add(1)
		panic("boom")
	}}

	sup := NewSupervisor(log)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	go sup.Add(worker).Run(ctx)

	// Waiting for panics and restarts
	time.Sleep(900 * time.Millisecond)

	req.GreaterOrEqual(calls.Load(), int32(2))
}

func TestSupervisor_StopOnSuccess(t *testing.T) {
	req := require.New(t)
	log := slog.Default()

	var calls atomic.Int32
	worker := funcWorker{run: func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}}

	sup := NewSupervisor(log)

	// Given a channel to notify when Run() terminated
	done := make(chan struct{})

	go func() {
		sup.Add(worker).Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
		// Then supervisor detected a success, returned nil and stopped
		req.Equal(int32(1), calls.Load())
	case <-time.After(500 * time.Millisecond):
		req.Fail("Supervisor should have stopped after worker success")
	}
}

func TestSupervisor_ReportsRestartOnTelemetry(t *testing.T) {
	req := require.New(t)
	telemetry := make(chan event.Event, 8)

	worker := funcWorker{run: func(ctx context.Context) error {
		panic("boom")
	}}

	sup := NewSupervisor(slog.Default()).WithTelemetry(telemetry)

	ctx, cancel := context.WithCancel(context.Background())
	go sup.Add(worker).Run(ctx)

	select {
	case evt := <-telemetry:
		req.Equal(event.RestartedAfterPanicType, evt.Type)
		payload, ok := evt.Payload.(event.WorkerRestartedAfterPanic)
		req.True(ok)
		req.Equal("funcWorker", payload.WorkerName)
	case <-time.After(1 * time.Second):
		req.Fail("Expected a restart telemetry event")
	}
	cancel()
}
