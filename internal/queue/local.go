package queue

import (
	"context"

	"github.com/warwicklearningsystems/local-reminders/internal/types"
)

// LogTransport writes rendered reminders to the log instead of publishing
// them. Used for local runs where no queue is configured.
type LogTransport struct {
	logger types.Logger
}

// NewLogTransport creates a LogTransport.
func NewLogTransport(logger types.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

// Send logs the message and reports it as accepted.
func (t *LogTransport) Send(_ context.Context, msg types.ReminderMessage) (bool, error) {
	t.logger.Info("reminder (dry run)",
		"message_id", msg.ID,
		"event_id", msg.EventID,
		"category", string(msg.Category),
		"recipient", msg.Recipient.Email,
		"effective_end", msg.EffectiveEnd,
		"ahead_days", msg.AheadDays,
	)
	return true, nil
}
