// Package scheduler keeps an in-memory trigger set in sync with the
// persisted schedule record and fires workflow runs when triggers come due.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/uiflow/pkg/schema"
)

// Dispatcher is the interface the scheduler fires runs through.
// Satisfied by dispatch.Dispatcher (avoids import cycle).
type Dispatcher interface {
	Dispatch(ctx context.Context, workflow string) error
}

// Job is an observable snapshot of one active trigger.
type Job struct {
	Workflow string             `json:"workflow"`
	Type     schema.TriggerType `json:"type"`
	Next     time.Time          `json:"next"`
}

// job is the in-memory representation of an active trigger. Destroyed and
// recreated wholesale on every reload.
type job struct {
	typ     schema.TriggerType
	entryID cron.EntryID // cron jobs
	timer   *time.Timer  // one-shot jobs
	fireAt  time.Time    // one-shot fire time
}

// onceLayouts are the accepted one-shot timestamp formats. The schedule
// record's writer emits local ISO-8601 without a zone.
var onceLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// Handle owns the scheduler's job set. Construct one at process start and
// pass it explicitly to the file-watch callback; reload and firing
// serialize on its mutex so a reload can never race a firing job's lookup.
type Handle struct {
	schedulePath string
	dispatcher   Dispatcher
	parser       cron.Parser
	logger       *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
	jobs map[string]*job
	now  func() time.Time
}

// NewHandle creates a scheduler handle reading the schedule record at
// schedulePath. Cron expressions use full five-field semantics.
func NewHandle(schedulePath string, dispatcher Dispatcher, logger *slog.Logger) *Handle {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &Handle{
		schedulePath: schedulePath,
		dispatcher:   dispatcher,
		parser:       parser,
		logger:       logger,
		cron:         cron.New(cron.WithParser(parser)),
		jobs:         make(map[string]*job),
		now:          time.Now,
	}
}

// Start begins firing cron triggers and performs the initial reload.
func (h *Handle) Start(ctx context.Context) error {
	h.cron.Start()
	if err := h.Reload(ctx); err != nil {
		// Degraded availability: zero active jobs until the next valid
		// reload, but the scheduler itself stays up.
		h.logger.Error("initial schedule load failed", slog.String("error", err.Error()))
	}
	h.logger.Info("scheduler started", slog.String("schedule", h.schedulePath))
	return nil
}

// Stop cancels every active trigger and halts the cron runner.
func (h *Handle) Stop() {
	h.mu.Lock()
	h.clearLocked()
	h.mu.Unlock()
	<-h.cron.Stop().Done()
	h.logger.Info("scheduler stopped")
}

// Reload replaces the entire job set from the schedule record.
// All active jobs are cancelled unconditionally first; a missing record
// leaves the set empty; a malformed record leaves the set empty and
// returns ErrCodeScheduleParse. Reload is idempotent for an unchanged
// record: the rebuilt job set is identical, with no duplicates.
func (h *Handle) Reload(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clearLocked()

	data, err := os.ReadFile(h.schedulePath)
	if os.IsNotExist(err) {
		h.logger.Info("no schedule record, job set empty")
		return nil
	}
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeScheduleParse, "read schedule record: %v", err).WithCause(err)
	}

	var sched schema.Schedule
	if err := json.Unmarshal(data, &sched); err != nil {
		return schema.NewErrorf(schema.ErrCodeScheduleParse, "decode schedule record: %v", err).WithCause(err)
	}

	for name, entry := range sched {
		if err := h.registerLocked(ctx, name, entry); err != nil {
			h.clearLocked()
			return err
		}
	}

	h.logger.Info("schedule reloaded", slog.Int("jobs", len(h.jobs)))
	return nil
}

// registerLocked adds one trigger to the job set. Caller holds h.mu.
func (h *Handle) registerLocked(ctx context.Context, name string, entry schema.ScheduleEntry) error {
	switch entry.Type {
	case schema.TriggerTypeCron:
		sched, err := h.parser.Parse(entry.Cron)
		if err != nil {
			return schema.NewErrorf(schema.ErrCodeScheduleParse,
				"workflow %s: invalid cron expression %q: %v", name, entry.Cron, err).WithCause(err)
		}
		id := h.cron.Schedule(sched, cron.FuncJob(func() { h.fire(ctx, name) }))
		h.jobs[name] = &job{typ: schema.TriggerTypeCron, entryID: id}
		h.logger.Info("scheduled recurring job",
			slog.String("workflow", name),
			slog.String("cron", entry.Cron),
		)

	case schema.TriggerTypeOnce:
		fireAt, err := parseOnceTime(entry.Datetime)
		if err != nil {
			return schema.NewErrorf(schema.ErrCodeScheduleParse,
				"workflow %s: invalid datetime %q: %v", name, entry.Datetime, err).WithCause(err)
		}
		now := h.now()
		if !fireAt.After(now) {
			// Past-due one-shots are never fired retroactively.
			h.logger.Info("dropping past-due one-shot job",
				slog.String("workflow", name),
				slog.Time("fire_at", fireAt),
			)
			return nil
		}
		j := &job{typ: schema.TriggerTypeOnce, fireAt: fireAt}
		j.timer = time.AfterFunc(fireAt.Sub(now), func() {
			h.mu.Lock()
			if h.jobs[name] == j {
				delete(h.jobs, name)
			}
			h.mu.Unlock()
			h.fire(ctx, name)
		})
		h.jobs[name] = j
		h.logger.Info("scheduled one-time job",
			slog.String("workflow", name),
			slog.Time("fire_at", fireAt),
		)

	default:
		return schema.NewErrorf(schema.ErrCodeScheduleParse,
			"workflow %s: unknown trigger type %q", name, entry.Type)
	}
	return nil
}

// fire submits one run. Firing never cancels or reschedules the trigger:
// cron jobs persist across fires, one-shots are single-fire by the timer
// mechanism itself.
func (h *Handle) fire(ctx context.Context, workflow string) {
	h.logger.Info("trigger fired", slog.String("workflow", workflow))
	if err := h.dispatcher.Dispatch(ctx, workflow); err != nil {
		h.logger.Error("failed to dispatch triggered run",
			slog.String("workflow", workflow),
			slog.String("error", err.Error()),
		)
	}
}

// clearLocked cancels and discards every active job. Caller holds h.mu.
func (h *Handle) clearLocked() {
	for name, j := range h.jobs {
		switch j.typ {
		case schema.TriggerTypeCron:
			h.cron.Remove(j.entryID)
		case schema.TriggerTypeOnce:
			j.timer.Stop()
		}
		delete(h.jobs, name)
	}
}

// Jobs returns a snapshot of the active trigger set.
func (h *Handle) Jobs() []Job {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Job, 0, len(h.jobs))
	for name, j := range h.jobs {
		snap := Job{Workflow: name, Type: j.typ}
		switch j.typ {
		case schema.TriggerTypeCron:
			snap.Next = h.cron.Entry(j.entryID).Next
		case schema.TriggerTypeOnce:
			snap.Next = j.fireAt
		}
		out = append(out, snap)
	}
	return out
}

// NextRun computes the next fire time for a cron expression.
func (h *Handle) NextRun(cronExpr string, from time.Time) (time.Time, error) {
	sched, err := h.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return sched.Next(from), nil
}

// parseOnceTime parses a one-shot fire timestamp in any accepted layout.
func parseOnceTime(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range onceLayouts {
		t, err := time.ParseInLocation(layout, value, time.Local)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
