// Package config defines the configuration surface for the local-reminders
// dispatcher. Configuration is loaded once at process initialization and is
// immutable thereafter; it follows 12-Factor principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain: OS environment (highest), then
// a local .env file. Any missing required value or invalid format fails the
// process immediately on startup.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/warwicklearningsystems/local-reminders/internal/types"
)

// Config is the top-level configuration struct for the dispatcher. It is
// populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"local-reminders"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Reminders ReminderConfig
	Database  DatabaseConfig
	Queue     QueueConfig

	// Build Metadata (injected via ldflags, not env)
	Build BuildInfo
}

// BuildInfo carries linker-injected build metadata.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// DatabaseConfig holds database connection and pool tuning parameters for
// the platform database the dispatcher reads events and settings from.
type DatabaseConfig struct {
	URL string `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"4"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	ConnectTimeout  time.Duration `envconfig:"DB_CONNECT_TIMEOUT" default:"2s"`
}

// QueueConfig holds the hand-off queue for the messaging subsystem and the
// metric namespace for cycle observability.
type QueueConfig struct {
	MessageQueueURL string `envconfig:"SQS_REMINDERS" validate:"omitempty,url"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"LocalReminders"`

	// Bodies above this size are zstd-compressed before enqueueing.
	CompressThreshold int `envconfig:"QUEUE_COMPRESS_THRESHOLD" default:"131072"`
}

// RDays is a per-category bucket enablement triple for the fixed lead-time
// thresholds, ordered [7-days, 3-days, 1-day]. The env format is the same
// triple as the settings store exports, e.g. "1,0,1".
type RDays [3]bool

// Decode implements envconfig.Decoder for the "b,b,b" triple format.
func (r *RDays) Decode(value string) error {
	parts := strings.Split(value, ",")
	if len(parts) != 3 {
		return fmt.Errorf("rdays: expected 3 comma-separated flags, got %q", value)
	}
	for i, p := range parts {
		switch strings.TrimSpace(p) {
		case "1", "true":
			r[i] = true
		case "0", "false":
			r[i] = false
		default:
			return fmt.Errorf("rdays: invalid flag %q in %q", p, value)
		}
	}
	return nil
}

// Enabled reports whether the bucket at the given index (0=7d, 1=3d, 2=1d)
// is switched on.
func (r RDays) Enabled(idx int) bool {
	if idx < 0 || idx > 2 {
		return false
	}
	return r[idx]
}

// ReminderConfig mirrors the settings-store contract for the dispatcher:
// global enablement, visibility filtering, sender identity, per-category
// bucket triples and custom schedules, role bitmaps, and module gates.
type ReminderConfig struct {
	Enabled      bool                       `envconfig:"REMINDERS_ENABLED" default:"true"`
	FilterEvents types.EventFilterMode      `envconfig:"REMINDERS_FILTER_EVENTS" default:"all" validate:"oneof=all visible-only hidden-only"`
	SendAs       types.SendAsMode           `envconfig:"REMINDERS_SEND_AS" default:"noreply" validate:"oneof=noreply admin"`
	SendAsName   string                     `envconfig:"REMINDERS_SEND_AS_NAME"`
	NoReplyAddr  string                     `envconfig:"REMINDERS_NOREPLY_ADDRESS" default:"noreply@localhost"`
	ActivityMode types.ActivityReminderMode `envconfig:"REMINDERS_ACTIVITY_MODE" default:"both" validate:"oneof=both openings-only closings-only"`

	// Per-category fixed-bucket enablement, ordered [7d, 3d, 1d].
	SiteRDays   RDays `envconfig:"REMINDERS_SITE_RDAYS" default:"0,0,1"`
	UserRDays   RDays `envconfig:"REMINDERS_USER_RDAYS" default:"0,0,1"`
	CourseRDays RDays `envconfig:"REMINDERS_COURSE_RDAYS" default:"0,1,1"`
	GroupRDays  RDays `envconfig:"REMINDERS_GROUP_RDAYS" default:"0,1,1"`
	DueRDays    RDays `envconfig:"REMINDERS_DUE_RDAYS" default:"0,1,1"`

	// Per-category custom schedules; zero means no custom schedule. A
	// custom schedule's presence is itself the enable signal for its
	// matches, bypassing the bucket triples above.
	SiteCustom   time.Duration `envconfig:"REMINDERS_SITE_CUSTOM" default:"0"`
	UserCustom   time.Duration `envconfig:"REMINDERS_USER_CUSTOM" default:"0"`
	CourseCustom time.Duration `envconfig:"REMINDERS_COURSE_CUSTOM" default:"0"`
	GroupCustom  time.Duration `envconfig:"REMINDERS_GROUP_CUSTOM" default:"0"`
	DueCustom    time.Duration `envconfig:"REMINDERS_DUE_CUSTOM" default:"0"`

	// Role bitmaps: one 0/1 flag per role slot in the platform's role
	// table order (sorted by sort_order). Resolved against the directory
	// once per cycle.
	CourseRoles   string `envconfig:"REMINDERS_COURSE_ROLES" default:""`
	ActivityRoles string `envconfig:"REMINDERS_ACTIVITY_ROLES" default:""`

	// Module gates.
	AssignmentEnabled    bool `envconfig:"REMINDERS_ASSIGNMENT_ENABLED" default:"true"`
	QuizEnabled          bool `envconfig:"REMINDERS_QUIZ_ENABLED" default:"true"`
	QuestionnaireEnabled bool `envconfig:"REMINDERS_QUESTIONNAIRE_ENABLED" default:"true"`

	// Questionnaire tag gating: the platform tagging feature flag and the
	// comma-separated allow-list. A questionnaire reminder is sent only
	// when every tag on the module appears in the allow-list.
	TaggingEnabled    bool   `envconfig:"REMINDERS_TAGGING_ENABLED" default:"true"`
	QuestionnaireTags string `envconfig:"REMINDERS_QUESTIONNAIRE_TAGS" default:""`

	// First-run window fallback when no watermark exists yet.
	FirstRunCutoff time.Duration `envconfig:"REMINDERS_FIRST_RUN_CUTOFF" default:"120h"`

	// Cron spec for the self-hosted daemon; the Lambda worker ignores it.
	CronSpec string `envconfig:"REMINDERS_CRON" default:"*/15 * * * *"`
}

// RDaysFor returns the bucket triple for an event category, applying the
// category-to-config-key mapping (open/close/due all read the due triple).
// The second return is false when the category has no triple at all, which
// the classifier treats as configuration-missing.
func (c ReminderConfig) RDaysFor(cat types.EventCategory) (RDays, bool) {
	switch cat.ConfigKey() {
	case types.CategorySite:
		return c.SiteRDays, true
	case types.CategoryUser:
		return c.UserRDays, true
	case types.CategoryCourse:
		return c.CourseRDays, true
	case types.CategoryGroup:
		return c.GroupRDays, true
	case types.CategoryDue:
		return c.DueRDays, true
	default:
		return RDays{}, false
	}
}

// CustomFor returns the custom schedule for an event category. Customs are
// keyed by the raw category name, so open and close events (which have no
// custom setting of their own) always get zero.
func (c ReminderConfig) CustomFor(cat types.EventCategory) time.Duration {
	switch cat {
	case types.CategorySite:
		return c.SiteCustom
	case types.CategoryUser:
		return c.UserCustom
	case types.CategoryCourse:
		return c.CourseCustom
	case types.CategoryGroup:
		return c.GroupCustom
	case types.CategoryDue:
		return c.DueCustom
	default:
		return 0
	}
}

// Customs returns every configured nonzero custom schedule, one per
// category that has one. Used to assemble the cycle's threshold set.
func (c ReminderConfig) Customs() []time.Duration {
	var out []time.Duration
	for _, d := range []time.Duration{c.SiteCustom, c.UserCustom, c.CourseCustom, c.GroupCustom, c.DueCustom} {
		if d > 0 {
			out = append(out, d)
		}
	}
	return out
}

// TagAllowList parses the questionnaire tag allow-list into its entries,
// trimming whitespace and dropping empties.
func (c ReminderConfig) TagAllowList() []string {
	if strings.TrimSpace(c.QuestionnaireTags) == "" {
		return nil
	}
	var out []string
	for _, tag := range strings.Split(c.QuestionnaireTags, ",") {
		if t := strings.TrimSpace(tag); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// RoleBitmap parses a 0/1 bitmap string into the set of enabled slot
// indexes. Unknown characters are rejected.
func RoleBitmap(bitmap string) ([]int, error) {
	var slots []int
	for i, ch := range strings.TrimSpace(bitmap) {
		switch ch {
		case '1':
			slots = append(slots, i)
		case '0':
			// disabled slot
		default:
			return nil, fmt.Errorf("role bitmap: invalid character %q at position %d", ch, i)
		}
	}
	return slots, nil
}
