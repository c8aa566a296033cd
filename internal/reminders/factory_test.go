package reminders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warwicklearningsystems/local-reminders/internal/types"
)

func TestRender_BindsContextToRecipient(t *testing.T) {
	rctx := Context{
		Event: types.Event{
			ID:         40,
			Name:       "essay deadline",
			Category:   types.CategoryDue,
			ModuleName: "assign",
			Start:      eventStart,
			Duration:   2 * time.Hour,
		},
		AheadDays: 3,
		Course:    &types.Course{ID: 9, FullName: "Algorithms"},
		Activity:  &types.ModuleInstance{ID: 50, Kind: types.ModuleAssignment, Name: "Essay 2"},
		From:      types.SenderIdentity{Email: "noreply@lms.test", DisplayName: "Reminders"},
	}

	msg := rctx.Render(user(2))

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, int64(40), msg.EventID)
	assert.Equal(t, types.CategoryDue, msg.Category)
	assert.Equal(t, "essay deadline", msg.EventName)
	assert.Equal(t, "Algorithms", msg.CourseName)
	assert.Equal(t, "Essay 2", msg.ActivityName)
	assert.Equal(t, eventStart.Add(2*time.Hour), msg.EffectiveEnd)
	assert.Equal(t, float64(3), msg.AheadDays)
	assert.Equal(t, "noreply@lms.test", msg.From.Email)
	assert.Equal(t, int64(2), msg.Recipient.ID)
}

func TestRender_DoesNotMutateSharedContext(t *testing.T) {
	course := types.Course{ID: 9, FullName: "Algorithms"}
	rctx := Context{
		Event:  types.Event{ID: 41, Name: "deadline", Category: types.CategoryCourse, Start: eventStart},
		Course: &course,
	}

	first := rctx.Render(user(2))
	second := rctx.Render(user(3))

	// Each render is independent; only the recipient differs between calls
	// sharing one context.
	require.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.EventName, second.EventName)
	assert.Equal(t, first.CourseName, second.CourseName)
	assert.Equal(t, int64(2), first.Recipient.ID)
	assert.Equal(t, int64(3), second.Recipient.ID)
	assert.Equal(t, "Algorithms", course.FullName)
}

func TestRender_OmitsMissingReferents(t *testing.T) {
	rctx := Context{
		Event: types.Event{ID: 42, Name: "site notice", Category: types.CategorySite, Start: eventStart},
	}

	msg := rctx.Render(user(2))

	assert.Empty(t, msg.CourseName)
	assert.Empty(t, msg.GroupName)
	assert.Empty(t, msg.ActivityName)
}
