package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warwicklearningsystems/local-reminders/internal/config"
	"github.com/warwicklearningsystems/local-reminders/internal/types"
)

// EventStore abstracts the calendar read the cycle performs. Using an
// interface keeps the cycle testable without a database.
type EventStore interface {
	// EventsInWindow returns the candidate events matching the query,
	// ordered by effective end ascending.
	EventsInWindow(ctx context.Context, q EventQuery) ([]types.Event, error)
}

// Ledger abstracts the watermark table: append-only, latest-row reads.
type Ledger interface {
	// Last returns the most recent watermark, or nil when no cycle has
	// ever completed.
	Last(ctx context.Context) (*types.Watermark, error)
	// Append records a completed cycle's watermark.
	Append(ctx context.Context, wm types.Watermark) error
}

// Processor resolves and dispatches reminders for one classified event.
type Processor interface {
	// Process handles a single event end to end and reports how many
	// messages were sent and how many sends failed. A non-nil error means
	// the event could not be resolved at all; the cycle records it and
	// moves on.
	Process(ctx context.Context, ev types.Event, lt types.LeadTime) (ProcessOutcome, error)
}

// ProcessOutcome is the per-event dispatch tally.
type ProcessOutcome struct {
	Sent     int
	Failed   int
	Filtered bool
}

// CycleReport summarizes one cycle for logging and metrics.
type CycleReport struct {
	Window        Window
	Disabled      bool
	EventsSeen    int
	EventsSkipped int
	EventsFailed  int
	RemindersSent int
	SendFailures  int
	Watermark     types.WatermarkKind
}

// Cycle runs one reminder pass: window computation against the ledger,
// candidate query, per-event classification and dispatch, and the final
// watermark append. One Cycle value is safe for sequential reuse; runs
// never overlap because the watermark only advances at the end.
type Cycle struct {
	cfg        config.ReminderConfig
	events     EventStore
	ledger     Ledger
	processor  Processor
	metrics    CycleMetrics
	clock      types.Clock
	classifier *Classifier
	logger     types.Logger
}

// CycleConfig holds the dependencies for creating a Cycle.
type CycleConfig struct {
	Reminders config.ReminderConfig
	Events    EventStore
	Ledger    Ledger
	Processor Processor
	Metrics   CycleMetrics
	Clock     types.Clock
	Logger    types.Logger
}

// NewCycle creates a Cycle with the given dependencies. Metrics and Clock
// default to no-op and wall-clock respectively.
func NewCycle(cfg CycleConfig) *Cycle {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NoopCycleMetrics{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Cycle{
		cfg:        cfg.Reminders,
		events:     cfg.Events,
		ledger:     cfg.Ledger,
		processor:  cfg.Processor,
		metrics:    metrics,
		clock:      clock,
		classifier: NewClassifier(cfg.Reminders, cfg.Logger),
		logger:     cfg.Logger,
	}
}

// Run executes one full cycle and returns its report.
//
// Failure semantics: errors before any send (ledger read, event query)
// propagate and leave the watermark unadvanced, so the next run retries
// the same window. Per-event failures after that are isolated: they are
// counted, logged, and do not stop the remaining events or the final
// watermark append. When reminders are globally disabled the run is a
// no-op and writes nothing, so the skipped range is swept up by the next
// enabled run's window.
func (c *Cycle) Run(ctx context.Context) (CycleReport, error) {
	started := c.clock.Now()
	logger := c.logger.With("cycle_id", uuid.NewString())

	if !c.cfg.Enabled {
		logger.Info("reminders disabled, skipping cycle")
		return CycleReport{Disabled: true}, nil
	}

	last, err := c.ledger.Last(ctx)
	if err != nil {
		return CycleReport{}, fmt.Errorf("reading last watermark: %w", err)
	}

	now := c.clock.Now().UTC()
	w := ComputeWindow(last, now, c.cfg.FirstRunCutoff)
	report := CycleReport{Window: w}

	logger.Info("cycle window computed",
		"window_start", w.Start.Format(time.RFC3339),
		"window_end", w.End.Format(time.RFC3339),
		"first_run", last == nil,
	)

	events, err := c.events.EventsInWindow(ctx, BuildQuery(c.cfg, w))
	if err != nil {
		return report, fmt.Errorf("querying candidate events: %w", err)
	}
	report.EventsSeen = len(events)

	if len(events) == 0 {
		report.Watermark = types.WatermarkNoEvents
		if err := c.appendWatermark(ctx, w, types.WatermarkNoEvents); err != nil {
			return report, err
		}
		logger.Info("no candidate events in window")
		c.metrics.RecordCycle(ctx, report, c.clock.Now().Sub(started))
		return report, nil
	}

	for _, ev := range events {
		lt, ok := c.classifier.Classify(ev, w)
		if !ok {
			report.EventsSkipped++
			continue
		}

		outcome, err := c.processor.Process(ctx, ev, lt)
		report.RemindersSent += outcome.Sent
		report.SendFailures += outcome.Failed
		if err != nil {
			// One broken event must not block the rest of the window.
			report.EventsFailed++
			logger.Error("event processing failed",
				"event_id", ev.ID,
				"category", string(ev.Category),
				"error", err.Error(),
			)
			continue
		}
		if outcome.Filtered {
			report.EventsSkipped++
		}
	}

	report.Watermark = types.WatermarkSent
	if err := c.appendWatermark(ctx, w, types.WatermarkSent); err != nil {
		return report, err
	}

	logger.Info("cycle complete",
		"events_seen", report.EventsSeen,
		"events_skipped", report.EventsSkipped,
		"events_failed", report.EventsFailed,
		"reminders_sent", report.RemindersSent,
		"send_failures", report.SendFailures,
	)
	c.metrics.RecordCycle(ctx, report, c.clock.Now().Sub(started))

	return report, nil
}

// appendWatermark records the cycle's end in the ledger. Both outcome kinds
// advance the watermark to the window end; the kind is observability only.
func (c *Cycle) appendWatermark(ctx context.Context, w Window, kind types.WatermarkKind) error {
	wm := types.Watermark{Timestamp: w.End, Kind: kind}
	if err := c.ledger.Append(ctx, wm); err != nil {
		return fmt.Errorf("appending %s watermark: %w", kind, err)
	}
	return nil
}
