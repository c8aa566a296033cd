package reminders

import (
	"context"

	"github.com/warwicklearningsystems/local-reminders/internal/scheduler"
	"github.com/warwicklearningsystems/local-reminders/internal/types"
)

// dispatch renders and sends one message per recipient, strictly in order.
// A failed send is counted and logged but never aborts the rest of the
// batch; the aggregate failure count is logged once per event.
func (s *Service) dispatch(ctx context.Context, rctx Context, recipients *types.RecipientSet) scheduler.ProcessOutcome {
	var outcome scheduler.ProcessOutcome

	for _, recipient := range recipients.Users() {
		msg := rctx.Render(recipient)

		ok, err := s.transport.Send(ctx, msg)
		if err != nil || !ok {
			outcome.Failed++
			fields := []any{
				"event_id", rctx.Event.ID,
				"message_id", msg.ID,
				"recipient_id", recipient.ID,
			}
			if err != nil {
				fields = append(fields, "error", err.Error())
			}
			s.logger.Error("reminder send failed", fields...)
			continue
		}
		outcome.Sent++
	}

	if outcome.Failed > 0 {
		s.logger.Warn("event dispatched with failures",
			"event_id", rctx.Event.ID,
			"sent", outcome.Sent,
			"failed", outcome.Failed,
		)
	} else {
		s.logger.Info("event dispatched",
			"event_id", rctx.Event.ID,
			"category", string(rctx.Event.Category),
			"ahead_days", rctx.AheadDays,
			"sent", outcome.Sent,
		)
	}
	return outcome
}
