// Package scheduler implements the reminder cycle for the local-reminders
// dispatcher: window calculation against the persisted watermark, lead-time
// classification of candidate events, and the per-event dispatch loop.
package scheduler

import (
	"time"

	"github.com/warwicklearningsystems/local-reminders/internal/config"
	"github.com/warwicklearningsystems/local-reminders/internal/types"
)

// DayInSeconds converts between lead-time durations and "ahead days".
const DayInSeconds = 24 * 3600

// Fixed lead-time thresholds. Classification checks them in most-urgent-first
// order (1 day, then 3 days, then 7 days); an event matching several buckets
// in one cycle is attributed to the smallest lead time only. That ordering is
// a deliberate dedup rule, not an accident of control flow.
const (
	Threshold7Days = 7 * 24 * time.Hour
	Threshold3Days = 3 * 24 * time.Hour
	Threshold1Day  = 24 * time.Hour
)

// bucketIndexFor maps a fixed threshold onto its index in the per-category
// enablement triple: 0=7d, 1=3d, 2=1d.
func bucketIndexFor(t time.Duration) int {
	switch t {
	case Threshold7Days:
		return 0
	case Threshold3Days:
		return 1
	case Threshold1Day:
		return 2
	default:
		return -1
	}
}

// Window is the inclusive time range one cycle covers. An event is a
// candidate when, for some active threshold T, its effective end minus T
// falls inside [Start, End].
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window (inclusive bounds,
// matching the persisted-watermark arithmetic: Start is already last+1s).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// ComputeWindow derives the cycle's window from the last watermark and the
// current time. With a watermark, the window starts one second after it so
// consecutive cycles never overlap; on the very first cycle it reaches back
// by the first-run cutoff. windowEnd is always now. No clamping: if clock
// skew puts Start after End the event query legitimately returns empty.
func ComputeWindow(last *types.Watermark, now time.Time, firstRunCutoff time.Duration) Window {
	if last == nil {
		return Window{Start: now.Add(-firstRunCutoff), End: now}
	}
	return Window{Start: last.Timestamp.Add(time.Second), End: now}
}

// MergeThresholds assembles the cycle's active threshold set: the three
// fixed thresholds plus any per-category custom schedules. A custom equal
// to a fixed threshold (or to another custom) collapses to one entry.
func MergeThresholds(cfg config.ReminderConfig) []time.Duration {
	out := []time.Duration{Threshold7Days, Threshold3Days, Threshold1Day}
	seen := map[time.Duration]struct{}{
		Threshold7Days: {},
		Threshold3Days: {},
		Threshold1Day:  {},
	}
	for _, custom := range cfg.Customs() {
		if _, dup := seen[custom]; dup {
			continue
		}
		seen[custom] = struct{}{}
		out = append(out, custom)
	}
	return out
}

// EventQuery is the predicate handed to the event store adapter: events
// whose effective end is still ahead of the window end and whose effective
// end minus at least one threshold falls inside the window, optionally
// filtered by visibility.
type EventQuery struct {
	Window     Window
	Thresholds []time.Duration
	Filter     types.EventFilterMode
}

// BuildQuery assembles the cycle's event query from configuration and the
// computed window.
func BuildQuery(cfg config.ReminderConfig, w Window) EventQuery {
	return EventQuery{
		Window:     w,
		Thresholds: MergeThresholds(cfg),
		Filter:     cfg.FilterEvents,
	}
}
