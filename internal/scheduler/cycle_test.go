package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warwicklearningsystems/local-reminders/internal/config"
	"github.com/warwicklearningsystems/local-reminders/internal/types"
)

// ============================================================
// Mock Implementations
// ============================================================

type fakeClock struct {
	now time.Time
}

func (c fakeClock) Now() time.Time { return c.now }

// mockEventStore is an in-memory mock of EventStore.
type mockEventStore struct {
	events  []types.Event
	err     error
	calls   int
	queries []EventQuery
}

func (m *mockEventStore) EventsInWindow(_ context.Context, q EventQuery) ([]types.Event, error) {
	m.calls++
	m.queries = append(m.queries, q)
	if m.err != nil {
		return nil, m.err
	}
	return m.events, nil
}

// mockLedger is an in-memory mock of Ledger.
type mockLedger struct {
	last      *types.Watermark
	lastErr   error
	appendErr error
	appended  []types.Watermark
}

func (m *mockLedger) Last(_ context.Context) (*types.Watermark, error) {
	if m.lastErr != nil {
		return nil, m.lastErr
	}
	return m.last, nil
}

func (m *mockLedger) Append(_ context.Context, wm types.Watermark) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.appended = append(m.appended, wm)
	return nil
}

// mockProcessor records processed events and fails for configured IDs.
type mockProcessor struct {
	outcome   ProcessOutcome
	failIDs   map[int64]bool
	processed []int64
	leads     []types.LeadTime
}

func (m *mockProcessor) Process(_ context.Context, ev types.Event, lt types.LeadTime) (ProcessOutcome, error) {
	m.processed = append(m.processed, ev.ID)
	m.leads = append(m.leads, lt)
	if m.failIDs[ev.ID] {
		return ProcessOutcome{}, errors.New("resolution blew up")
	}
	return m.outcome, nil
}

// mockCycleMetrics records RecordCycle invocations.
type mockCycleMetrics struct {
	reports []CycleReport
}

func (m *mockCycleMetrics) RecordCycle(_ context.Context, report CycleReport, _ time.Duration) {
	m.reports = append(m.reports, report)
}

// ============================================================
// Fixtures
// ============================================================

var cycleNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type cycleFixture struct {
	events    *mockEventStore
	ledger    *mockLedger
	processor *mockProcessor
	metrics   *mockCycleMetrics
	cycle     *Cycle
}

func newCycleFixture(cfg config.ReminderConfig) *cycleFixture {
	f := &cycleFixture{
		events:    &mockEventStore{},
		ledger:    &mockLedger{},
		processor: &mockProcessor{outcome: ProcessOutcome{Sent: 1}},
		metrics:   &mockCycleMetrics{},
	}
	f.cycle = NewCycle(CycleConfig{
		Reminders: cfg,
		Events:    f.events,
		Ledger:    f.ledger,
		Processor: f.processor,
		Metrics:   f.metrics,
		Clock:     fakeClock{now: cycleNow},
		Logger:    testLogger(),
	})
	return f
}

func enabledConfig() config.ReminderConfig {
	cfg := allEnabled()
	cfg.Enabled = true
	cfg.FirstRunCutoff = 120 * time.Hour
	return cfg
}

// courseEventIn returns a course event whose 1-day anchor lands inside the
// given window.
func courseEventIn(id int64, w Window) types.Event {
	return types.Event{
		ID:       id,
		Name:     "course deadline",
		Category: types.CategoryCourse,
		Start:    w.Start.Add(Threshold1Day + time.Minute),
	}
}

// ============================================================
// Tests
// ============================================================

func TestCycleRun_Disabled_NoLedgerWrite(t *testing.T) {
	cfg := enabledConfig()
	cfg.Enabled = false
	f := newCycleFixture(cfg)

	report, err := f.cycle.Run(context.Background())

	require.NoError(t, err)
	assert.True(t, report.Disabled)
	assert.Zero(t, f.events.calls)
	assert.Empty(t, f.ledger.appended)
}

func TestCycleRun_FirstRunUsesCutoff(t *testing.T) {
	f := newCycleFixture(enabledConfig())

	report, err := f.cycle.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, cycleNow.Add(-120*time.Hour), report.Window.Start)
	assert.Equal(t, cycleNow, report.Window.End)
}

func TestCycleRun_NoEvents_AppendsNoEventsWatermark(t *testing.T) {
	f := newCycleFixture(enabledConfig())
	f.ledger.last = &types.Watermark{Timestamp: cycleNow.Add(-time.Hour), Kind: types.WatermarkSent}

	report, err := f.cycle.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, types.WatermarkNoEvents, report.Watermark)
	require.Len(t, f.ledger.appended, 1)
	assert.Equal(t, types.WatermarkNoEvents, f.ledger.appended[0].Kind)
	assert.Equal(t, cycleNow, f.ledger.appended[0].Timestamp)
	assert.Empty(t, f.processor.processed)
}

func TestCycleRun_ProcessesClassifiedEvents(t *testing.T) {
	f := newCycleFixture(enabledConfig())
	f.ledger.last = &types.Watermark{Timestamp: cycleNow.Add(-time.Hour), Kind: types.WatermarkSent}

	w := ComputeWindow(f.ledger.last, cycleNow, 0)
	inWindow := courseEventIn(1, w)
	outOfWindow := types.Event{
		ID:       2,
		Category: types.CategoryCourse,
		Start:    cycleNow.Add(30 * 24 * time.Hour),
	}
	f.events.events = []types.Event{inWindow, outOfWindow}

	report, err := f.cycle.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, report.EventsSeen)
	assert.Equal(t, 1, report.EventsSkipped)
	assert.Equal(t, 1, report.RemindersSent)
	assert.Equal(t, []int64{1}, f.processor.processed)
	require.Len(t, f.processor.leads, 1)
	assert.Equal(t, float64(1), f.processor.leads[0].Days)

	require.Len(t, f.ledger.appended, 1)
	assert.Equal(t, types.WatermarkSent, f.ledger.appended[0].Kind)
	assert.Equal(t, cycleNow, f.ledger.appended[0].Timestamp)
}

func TestCycleRun_EventFailureIsIsolated(t *testing.T) {
	f := newCycleFixture(enabledConfig())
	f.ledger.last = &types.Watermark{Timestamp: cycleNow.Add(-time.Hour), Kind: types.WatermarkSent}

	w := ComputeWindow(f.ledger.last, cycleNow, 0)
	f.events.events = []types.Event{courseEventIn(1, w), courseEventIn(2, w), courseEventIn(3, w)}
	f.processor.failIDs = map[int64]bool{2: true}

	report, err := f.cycle.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, f.processor.processed)
	assert.Equal(t, 1, report.EventsFailed)
	assert.Equal(t, 2, report.RemindersSent)

	// A partially failed cycle still advances the watermark.
	require.Len(t, f.ledger.appended, 1)
	assert.Equal(t, types.WatermarkSent, f.ledger.appended[0].Kind)
}

func TestCycleRun_QueryErrorLeavesWatermark(t *testing.T) {
	f := newCycleFixture(enabledConfig())
	f.ledger.last = &types.Watermark{Timestamp: cycleNow.Add(-time.Hour), Kind: types.WatermarkSent}
	f.events.err = errors.New("db gone")

	_, err := f.cycle.Run(context.Background())

	require.Error(t, err)
	assert.Empty(t, f.ledger.appended)
}

func TestCycleRun_LedgerReadErrorPropagates(t *testing.T) {
	f := newCycleFixture(enabledConfig())
	f.ledger.lastErr = errors.New("ledger unavailable")

	_, err := f.cycle.Run(context.Background())

	require.Error(t, err)
	assert.Zero(t, f.events.calls)
}

func TestCycleRun_AppendErrorPropagates(t *testing.T) {
	f := newCycleFixture(enabledConfig())
	f.ledger.appendErr = errors.New("write refused")

	_, err := f.cycle.Run(context.Background())

	require.Error(t, err)
}

func TestCycleRun_QueryCarriesFilterAndThresholds(t *testing.T) {
	cfg := enabledConfig()
	cfg.FilterEvents = types.FilterVisibleOnly
	cfg.GroupCustom = 36 * time.Hour
	f := newCycleFixture(cfg)

	_, err := f.cycle.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, f.events.queries, 1)
	q := f.events.queries[0]
	assert.Equal(t, types.FilterVisibleOnly, q.Filter)
	assert.Contains(t, q.Thresholds, 36*time.Hour)
}

func TestCycleRun_EmitsMetrics(t *testing.T) {
	f := newCycleFixture(enabledConfig())

	report, err := f.cycle.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, f.metrics.reports, 1)
	assert.Equal(t, report, f.metrics.reports[0])
}
