package reminders

import (
	"context"

	"github.com/google/uuid"

	"github.com/warwicklearningsystems/local-reminders/internal/types"
)

// Context is the immutable rendering context for one event in one cycle:
// the event, its resolved course/group/activity referents, the matched
// lead time, and the sender identity. One Context is built per event and
// shared across every recipient; Render binds it to a single recipient
// without mutating the shared state.
type Context struct {
	Event     types.Event
	AheadDays float64
	Course    *types.Course
	Group     *types.Group
	Activity  *types.ModuleInstance
	From      types.SenderIdentity
}

// newContext builds the base context for an event; resolvers fill in the
// category-specific referents afterwards.
func (s *Service) newContext(ctx context.Context, ev types.Event, lt types.LeadTime) (*Context, error) {
	from, err := s.senderIdentity(ctx)
	if err != nil {
		return nil, err
	}
	return &Context{
		Event:     ev,
		AheadDays: lt.Days,
		From:      from,
	}, nil
}

// Render produces the message payload for one recipient. It reads only
// shared context state; each call returns an independent value with a fresh
// message id.
func (c Context) Render(recipient types.User) types.ReminderMessage {
	msg := types.ReminderMessage{
		ID:           uuid.NewString(),
		EventID:      c.Event.ID,
		Category:     c.Event.Category,
		EventName:    c.Event.Name,
		ModuleName:   c.Event.ModuleName,
		EffectiveEnd: c.Event.EffectiveEnd(),
		AheadDays:    c.AheadDays,
		From:         c.From,
		Recipient:    recipient,
	}
	if c.Course != nil {
		msg.CourseName = c.Course.FullName
	}
	if c.Group != nil {
		msg.GroupName = c.Group.Name
	}
	if c.Activity != nil {
		msg.ActivityName = c.Activity.Name
	}
	return msg
}
