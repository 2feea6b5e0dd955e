package scheduler

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/uiflow/pkg/schema"
)

// mockDispatcher records dispatched workflows.
type mockDispatcher struct {
	mu    sync.Mutex
	fired []string
	ch    chan string
}

func newMockDispatcher() *mockDispatcher {
	return &mockDispatcher{ch: make(chan string, 16)}
}

func (m *mockDispatcher) Dispatch(_ context.Context, workflow string) error {
	m.mu.Lock()
	m.fired = append(m.fired, workflow)
	m.mu.Unlock()
	m.ch <- workflow
	return nil
}

type fixture struct {
	dir      string
	path     string
	handle   *Handle
	dispatch *mockDispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	d := newMockDispatcher()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandle(filepath.Join(dir, "schedule.json"), d, logger)
	t.Cleanup(h.Stop)
	return &fixture{dir: dir, path: filepath.Join(dir, "schedule.json"), handle: h, dispatch: d}
}

func (f *fixture) writeSchedule(t *testing.T, doc string) {
	t.Helper()
	require.NoError(t, os.WriteFile(f.path, []byte(doc), 0o644))
}

func jobNames(h *Handle) map[string]schema.TriggerType {
	out := make(map[string]schema.TriggerType)
	for _, j := range h.Jobs() {
		out[j.Workflow] = j.Type
	}
	return out
}

// --- reload tests ---

func TestReload_NoScheduleRecord(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.handle.Reload(context.Background()))
	assert.Empty(t, f.handle.Jobs())
}

func TestReload_CronEntry(t *testing.T) {
	f := newFixture(t)
	f.writeSchedule(t, `{"jobB": {"type": "cron", "cron": "30 9 * * 1"}}`)

	require.NoError(t, f.handle.Reload(context.Background()))

	jobs := f.handle.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "jobB", jobs[0].Workflow)
	assert.Equal(t, schema.TriggerTypeCron, jobs[0].Type)

	// Full five-field semantics: fires Mondays at 09:30.
	from := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.Local) // a Tuesday
	next, err := f.handle.NextRun("30 9 * * 1", from)
	require.NoError(t, err)
	assert.Equal(t, time.Monday, next.Weekday())
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, 30, next.Minute())
}

func TestReload_PastDueOnceDropped(t *testing.T) {
	f := newFixture(t)
	f.writeSchedule(t, `{"jobA": {"type": "once", "datetime": "2020-01-01T00:00:00"}}`)

	require.NoError(t, f.handle.Reload(context.Background()))
	assert.Empty(t, f.handle.Jobs(), "past-due one-shot must be silently dropped")
}

func TestReload_FutureOnceRegistered(t *testing.T) {
	f := newFixture(t)
	fireAt := time.Now().Add(time.Hour).Format("2006-01-02T15:04:05")
	f.writeSchedule(t, `{"jobA": {"type": "once", "datetime": "`+fireAt+`"}}`)

	require.NoError(t, f.handle.Reload(context.Background()))

	jobs := f.handle.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, schema.TriggerTypeOnce, jobs[0].Type)
	assert.WithinDuration(t, time.Now().Add(time.Hour), jobs[0].Next, 2*time.Second)
}

func TestReload_BoundaryNowIsDropped(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.Local)
	f.handle.now = func() time.Time { return now }
	f.writeSchedule(t, `{"jobA": {"type": "once", "datetime": "2026-03-01T12:00:00"}}`)

	require.NoError(t, f.handle.Reload(context.Background()))
	assert.Empty(t, f.handle.Jobs(), "fire_at must be strictly in the future")
}

func TestReload_Idempotent(t *testing.T) {
	f := newFixture(t)
	future := time.Now().Add(2 * time.Hour).Format("2006-01-02T15:04:05")
	f.writeSchedule(t, `{
		"daily": {"type": "cron", "cron": "0 6 * * *"},
		"oneoff": {"type": "once", "datetime": "`+future+`"}
	}`)

	require.NoError(t, f.handle.Reload(context.Background()))
	first := jobNames(f.handle)

	require.NoError(t, f.handle.Reload(context.Background()))
	second := jobNames(f.handle)

	assert.Equal(t, first, second, "unchanged record must yield the same job set")
	assert.Len(t, second, 2)
}

func TestReload_ClearsPriorJobsUnconditionally(t *testing.T) {
	f := newFixture(t)
	f.writeSchedule(t, `{"jobA": {"type": "cron", "cron": "* * * * *"}}`)
	require.NoError(t, f.handle.Reload(context.Background()))
	require.Len(t, f.handle.Jobs(), 1)

	// Record removed: reload leaves the set empty.
	require.NoError(t, os.Remove(f.path))
	require.NoError(t, f.handle.Reload(context.Background()))
	assert.Empty(t, f.handle.Jobs())
}

func TestReload_MalformedRecord(t *testing.T) {
	f := newFixture(t)
	f.writeSchedule(t, `{"jobA": {"type": "cron", "cron": "* * * * *"}}`)
	require.NoError(t, f.handle.Reload(context.Background()))
	require.Len(t, f.handle.Jobs(), 1)

	f.writeSchedule(t, `{not json`)
	err := f.handle.Reload(context.Background())
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeScheduleParse, schema.CodeOf(err))
	assert.Empty(t, f.handle.Jobs(), "degraded availability: zero jobs until the next valid reload")
}

func TestReload_InvalidCronExpression(t *testing.T) {
	f := newFixture(t)
	f.writeSchedule(t, `{"jobA": {"type": "cron", "cron": "not a cron"}}`)

	err := f.handle.Reload(context.Background())
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeScheduleParse, schema.CodeOf(err))
	assert.Empty(t, f.handle.Jobs())
}

func TestReload_UnknownTriggerType(t *testing.T) {
	f := newFixture(t)
	f.writeSchedule(t, `{"jobA": {"type": "hourly"}}`)

	err := f.handle.Reload(context.Background())
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeScheduleParse, schema.CodeOf(err))
}

// --- firing tests ---

func TestOneShotFires(t *testing.T) {
	f := newFixture(t)
	fireAt := time.Now().Add(100 * time.Millisecond).Format(time.RFC3339Nano)
	f.writeSchedule(t, `{"quick": {"type": "once", "datetime": "`+fireAt+`"}}`)

	require.NoError(t, f.handle.Reload(context.Background()))

	select {
	case fired := <-f.dispatch.ch:
		assert.Equal(t, "quick", fired)
	case <-time.After(5 * time.Second):
		t.Fatal("one-shot trigger never fired")
	}

	// Single-fire: the job removes itself from the active set.
	assert.Eventually(t, func() bool {
		return len(f.handle.Jobs()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStopCancelsPendingOneShot(t *testing.T) {
	f := newFixture(t)
	fireAt := time.Now().Add(200 * time.Millisecond).Format(time.RFC3339Nano)
	f.writeSchedule(t, `{"late": {"type": "once", "datetime": "`+fireAt+`"}}`)

	require.NoError(t, f.handle.Reload(context.Background()))
	f.handle.Stop()

	select {
	case fired := <-f.dispatch.ch:
		t.Fatalf("job %s fired after Stop", fired)
	case <-time.After(500 * time.Millisecond):
	}
}

// --- watcher tests ---

func TestWatcher_ReloadsOnScheduleChange(t *testing.T) {
	f := newFixture(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	w, err := NewWatcher(f.handle, logger)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })

	f.writeSchedule(t, `{"jobA": {"type": "cron", "cron": "15 3 * * *"}}`)
	require.Eventually(t, func() bool {
		return len(f.handle.Jobs()) == 1
	}, 5*time.Second, 20*time.Millisecond, "watcher did not pick up the new schedule")

	f.writeSchedule(t, `{
		"jobA": {"type": "cron", "cron": "15 3 * * *"},
		"jobB": {"type": "cron", "cron": "45 18 * * 5"}
	}`)
	require.Eventually(t, func() bool {
		return len(f.handle.Jobs()) == 2
	}, 5*time.Second, 20*time.Millisecond, "watcher did not pick up the modification")
}

func TestWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	f := newFixture(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	w, err := NewWatcher(f.handle, logger)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })

	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "status_jobA.json"), []byte(`{}`), 0o644))

	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, f.handle.Jobs(), "unrelated file events must not create jobs")
}
