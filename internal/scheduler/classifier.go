package scheduler

import (
	"time"

	"github.com/warwicklearningsystems/local-reminders/internal/config"
	"github.com/warwicklearningsystems/local-reminders/internal/types"
)

// Classifier assigns each candidate event to at most one lead-time bucket
// per cycle and applies the per-category enablement configuration.
type Classifier struct {
	cfg    config.ReminderConfig
	logger types.Logger
}

// NewClassifier creates a Classifier over the given reminder configuration.
func NewClassifier(cfg config.ReminderConfig, logger types.Logger) *Classifier {
	return &Classifier{cfg: cfg, logger: logger}
}

// Classify determines which lead-time bucket the event falls in for this
// window, if any, and whether configuration enables sending for it.
//
// Fixed thresholds are evaluated most-urgent-first (1 day, 3 days, 7 days);
// the first whose anchor (effective end minus threshold) lands inside the
// window wins, so an event matching several buckets in the same cycle is
// attributed to the smallest lead time only. If no fixed threshold matches,
// the category's custom schedule (when configured and positive) is tried;
// custom matches report fractional ahead-days and bypass the bucket triple,
// since the presence of a custom schedule is itself the enable signal.
//
// The second return is false when the event gets no reminder this cycle:
// nothing matched, the matched bucket is disabled, or the category has no
// bucket configuration at all.
func (c *Classifier) Classify(ev types.Event, w Window) (types.LeadTime, bool) {
	end := ev.EffectiveEnd()

	for _, threshold := range [...]struct {
		lead time.Duration
		days float64
	}{
		{Threshold1Day, 1},
		{Threshold3Days, 3},
		{Threshold7Days, 7},
	} {
		if !w.Contains(end.Add(-threshold.lead)) {
			continue
		}
		return c.checkFixedBucket(ev, types.LeadTime{Days: threshold.days}, bucketIndexFor(threshold.lead))
	}

	if custom := c.cfg.CustomFor(ev.Category); custom > 0 && w.Contains(end.Add(-custom)) {
		return types.LeadTime{Days: custom.Seconds() / DayInSeconds, Custom: true}, true
	}

	return types.LeadTime{}, false
}

// checkFixedBucket consults the category's enablement triple for a fixed
// bucket match. A missing triple is a configuration gap: logged, skipped.
func (c *Classifier) checkFixedBucket(ev types.Event, lt types.LeadTime, bucketIdx int) (types.LeadTime, bool) {
	rdays, ok := c.cfg.RDaysFor(ev.Category)
	if !ok && ev.HasModule() {
		// Unrecognized category that still references an activity module:
		// treat it as a generic due event.
		rdays, ok = c.cfg.RDaysFor(types.CategoryDue)
	}
	if !ok {
		c.logger.Warn("no bucket configuration for event category",
			"event_id", ev.ID,
			"category", string(ev.Category),
		)
		return types.LeadTime{}, false
	}

	if !rdays.Enabled(bucketIdx) {
		c.logger.Info("bucket disabled for category",
			"event_id", ev.ID,
			"category", string(ev.Category),
			"ahead_days", lt.Days,
		)
		return types.LeadTime{}, false
	}

	return lt, true
}
