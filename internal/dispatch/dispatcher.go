// Package dispatch executes triggered workflow runs with bounded
// concurrency: the scheduler submits named runs instead of spawning
// detached subprocesses, so firings stay observable and capped.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned when a run is dispatched after Shutdown.
var ErrClosed = errors.New("dispatcher is closed")

// WorkflowRunner is the interface dispatched runs execute through.
// Satisfied by the orchestrator (avoids import cycle).
type WorkflowRunner interface {
	Run(ctx context.Context, workflow string) error
}

// Metrics is a snapshot of the dispatcher's run accounting.
type Metrics struct {
	InFlight  int64 `json:"in_flight"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Recovered int64 `json:"recovered"`
}

// Dispatcher executes workflow runs with at most size running at once.
// Each run holds one slot for its full duration; Dispatch blocks while
// every slot is taken, which is the backpressure a burst of triggers
// sees. Run failures surface in the log and the metrics, not to the
// caller: a triggered run's failure domain is its own status record.
type Dispatcher struct {
	runner WorkflowRunner
	logger *slog.Logger

	slots chan struct{}
	done  chan struct{}

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool

	inFlight  atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	recovered atomic.Int64
}

// NewDispatcher creates a dispatcher allowing at most size concurrent runs.
func NewDispatcher(size int, runner WorkflowRunner, logger *slog.Logger) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	return &Dispatcher{
		runner: runner,
		logger: logger,
		slots:  make(chan struct{}, size),
		done:   make(chan struct{}),
	}
}

// Dispatch starts one run of the named workflow. It returns once the run
// is started, ErrClosed after Shutdown, or the context error if ctx is
// cancelled while waiting for a slot. It never blocks for the run itself.
func (d *Dispatcher) Dispatch(ctx context.Context, workflow string) error {
	select {
	case d.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		return ErrClosed
	}

	// The slot is held; registering with the wait group has to beat a
	// concurrent Shutdown's Wait.
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.slots
		return ErrClosed
	}
	d.wg.Add(1)
	d.mu.Unlock()

	d.inFlight.Add(1)
	d.logger.Info("dispatching workflow run", slog.String("workflow", workflow))
	go d.execute(ctx, workflow)
	return nil
}

func (d *Dispatcher) execute(ctx context.Context, workflow string) {
	defer func() {
		if r := recover(); r != nil {
			d.recovered.Add(1)
			d.failed.Add(1)
			d.logger.Error("dispatched run panicked",
				slog.String("workflow", workflow),
				slog.Any("panic", r),
			)
		}
		d.inFlight.Add(-1)
		<-d.slots
		d.wg.Done()
	}()

	if err := d.runner.Run(ctx, workflow); err != nil {
		d.failed.Add(1)
		d.logger.Error("dispatched run failed",
			slog.String("workflow", workflow),
			slog.String("error", err.Error()),
		)
		return
	}
	d.completed.Add(1)
}

// Wait blocks until every started run has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown refuses new runs and waits for in-flight ones to finish.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.done)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// Metrics returns a snapshot of the run accounting.
func (d *Dispatcher) Metrics() Metrics {
	return Metrics{
		InFlight:  d.inFlight.Load(),
		Completed: d.completed.Load(),
		Failed:    d.failed.Load(),
		Recovered: d.recovered.Load(),
	}
}
