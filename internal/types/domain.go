package types

import (
	"strings"
	"time"
)

// Event is an immutable snapshot of one calendar event read at the start of
// a cycle. The dispatcher never writes events back; the calendar subsystem
// owns the table.
type Event struct {
	ID         int64         `json:"id" db:"id"`
	Name       string        `json:"name" db:"name"`
	Category   EventCategory `json:"category" db:"category"`
	ModuleName string        `json:"module_name,omitempty" db:"module_name"`
	Instance   int64         `json:"instance,omitempty" db:"instance"`
	CourseID   int64         `json:"course_id,omitempty" db:"course_id"`
	GroupID    int64         `json:"group_id,omitempty" db:"group_id"`
	UserID     int64         `json:"user_id,omitempty" db:"user_id"`
	Start      time.Time     `json:"start" db:"time_start"`
	Duration   time.Duration `json:"duration" db:"time_duration"`
	Visible    bool          `json:"visible" db:"visible"`
}

// EffectiveEnd is the anchor all lead-time math is relative to: the event's
// start plus its duration.
func (e Event) EffectiveEnd() time.Time {
	return e.Start.Add(e.Duration)
}

// ModuleKind resolves the capability variant for the event's activity module.
// Resolution happens once per event; downstream code switches on the variant
// instead of re-comparing module name strings.
func (e Event) ModuleKind() ModuleKind {
	return ModuleKindFromName(e.ModuleName)
}

// HasModule reports whether the event references an activity module. Matches
// the calendar convention that a blank or whitespace-only module name means
// a plain (non-activity) event.
func (e Event) HasModule() bool {
	return strings.TrimSpace(e.ModuleName) != ""
}

// IsUserOverride reports whether the event is a per-user schedule override:
// no owning course, but a target user.
func (e Event) IsUserOverride() bool {
	return e.CourseID <= 0 && e.UserID > 0
}

// IsGroupOverride reports whether the event is a per-group schedule override.
func (e Event) IsGroupOverride() bool {
	return e.CourseID <= 0 && e.GroupID > 0
}

// Watermark marks the end of the time range a completed cycle has covered.
// Rows are append-only; only the most recent row is ever read. Timestamps
// are monotonically non-decreasing across successful cycles.
type Watermark struct {
	Timestamp time.Time     `json:"timestamp" db:"time_window_end"`
	Kind      WatermarkKind `json:"kind" db:"kind"`
}

// LeadTime is the classifier's verdict for one event in one cycle: how many
// days ahead of the effective end the reminder fires, and whether the match
// came from a per-category custom schedule rather than a fixed bucket.
// Days is fractional for custom schedules (seconds / 86400).
type LeadTime struct {
	Days   float64
	Custom bool
}

// User is a directory entry for a reminder recipient.
type User struct {
	ID       int64  `json:"id" db:"id"`
	Email    string `json:"email" db:"email"`
	FullName string `json:"full_name" db:"full_name"`
}

// Course is the owning course of a course, group, or activity event.
type Course struct {
	ID        int64  `json:"id" db:"id"`
	FullName  string `json:"full_name" db:"full_name"`
	ShortName string `json:"short_name" db:"short_name"`
}

// Group is a course-level user grouping referenced by group events and
// group schedule overrides.
type Group struct {
	ID       int64  `json:"id" db:"id"`
	CourseID int64  `json:"course_id" db:"course_id"`
	Name     string `json:"name" db:"name"`
}

// ModuleInstance is the activity instance (one assignment, one quiz, ...)
// behind a due-category event, fetched from the module's own table so the
// reminder context can carry activity fields.
type ModuleInstance struct {
	ID             int64      `json:"id" db:"id"`
	CourseModuleID int64      `json:"course_module_id" db:"course_module_id"`
	Kind           ModuleKind `json:"kind"`
	Name           string     `json:"name" db:"name"`
}

// CourseSettings are the per-course reminder override tri-states. A missing
// row means everything is enabled, which DefaultCourseSettings encodes.
type CourseSettings struct {
	CourseID          int64 `db:"course_id"`
	CourseEnabled     bool  `db:"status_course"`
	GroupEnabled      bool  `db:"status_group"`
	ActivitiesEnabled bool  `db:"status_activities"`
}

// DefaultCourseSettings returns the settings used when no override row
// exists for a course: all reminder kinds enabled.
func DefaultCourseSettings(courseID int64) CourseSettings {
	return CourseSettings{
		CourseID:          courseID,
		CourseEnabled:     true,
		GroupEnabled:      true,
		ActivitiesEnabled: true,
	}
}

// SenderIdentity is the resolved "from" identity stamped on every message
// of a cycle.
type SenderIdentity struct {
	UserID      int64  `json:"user_id,omitempty"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// ReminderMessage is the payload handed to the transport, one per resolved
// recipient. Rendering/localization is the messaging subsystem's concern;
// the dispatcher only binds a reminder context to a recipient.
type ReminderMessage struct {
	ID           string         `json:"id"`
	EventID      int64          `json:"event_id"`
	Category     EventCategory  `json:"category"`
	EventName    string         `json:"event_name"`
	CourseName   string         `json:"course_name,omitempty"`
	GroupName    string         `json:"group_name,omitempty"`
	ActivityName string         `json:"activity_name,omitempty"`
	ModuleName   string         `json:"module_name,omitempty"`
	EffectiveEnd time.Time      `json:"effective_end"`
	AheadDays    float64        `json:"ahead_days"`
	From         SenderIdentity `json:"from"`
	Recipient    User           `json:"recipient"`
}
