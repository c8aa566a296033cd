package types

import "strings"

// EventCategory identifies which recipient-resolution variant an event takes.
type EventCategory string

const (
	CategorySite   EventCategory = "site"
	CategoryUser   EventCategory = "user"
	CategoryCourse EventCategory = "course"
	CategoryGroup  EventCategory = "group"
	CategoryOpen   EventCategory = "open"
	CategoryClose  EventCategory = "close"
	CategoryDue    EventCategory = "due"
)

// IsDueLike reports whether the category resolves through the activity
// (due-style) path: open and close share the due gating logic.
func (c EventCategory) IsDueLike() bool {
	return c == CategoryOpen || c == CategoryClose || c == CategoryDue
}

// ConfigKey maps the category onto the settings namespace used for bucket
// configuration. Open, close, and due events all read the "due" bucket
// config; custom schedules are looked up under the raw category name, so
// open and close events never match a custom schedule.
func (c EventCategory) ConfigKey() EventCategory {
	if c.IsDueLike() {
		return CategoryDue
	}
	return c
}

// ModuleKind is the capability variant for activity modules. Resolved once
// per event from the module name; Generic covers every module type without
// a dedicated exclusion rule.
type ModuleKind string

const (
	ModuleAssignment    ModuleKind = "assignment"
	ModuleQuiz          ModuleKind = "quiz"
	ModuleQuestionnaire ModuleKind = "questionnaire"
	ModuleGeneric       ModuleKind = "generic"
)

// ModuleKindFromName maps a raw module name from the calendar row onto its
// capability variant. Comparison is case-insensitive; "assign" is the
// historical table name for assignments.
func ModuleKindFromName(name string) ModuleKind {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "assign", "assignment":
		return ModuleAssignment
	case "quiz":
		return ModuleQuiz
	case "questionnaire":
		return ModuleQuestionnaire
	default:
		return ModuleGeneric
	}
}

// WatermarkKind tags a ledger row with the cycle outcome. Both kinds advance
// the watermark identically; the tag exists for observability.
type WatermarkKind string

const (
	WatermarkSent     WatermarkKind = "sent"
	WatermarkNoEvents WatermarkKind = "no_events"
)

// EventFilterMode restricts which events a cycle considers by visibility.
type EventFilterMode string

const (
	FilterAll         EventFilterMode = "all"
	FilterVisibleOnly EventFilterMode = "visible-only"
	FilterHiddenOnly  EventFilterMode = "hidden-only"
)

// SendAsMode selects the sender identity for outgoing reminders.
type SendAsMode string

const (
	SendAsNoReply SendAsMode = "noreply"
	SendAsAdmin   SendAsMode = "admin"
)

// ActivityReminderMode restricts due-style reminders to openings, closings,
// or both.
type ActivityReminderMode string

const (
	ActivityBoth         ActivityReminderMode = "both"
	ActivityOpeningsOnly ActivityReminderMode = "openings-only"
	ActivityClosingsOnly ActivityReminderMode = "closings-only"
)
