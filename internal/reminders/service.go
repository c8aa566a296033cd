// Package reminders implements recipient resolution and dispatch for one
// classified calendar event: the per-category resolver variants, the due
// gating chain, the reminder context factory, and the per-recipient send
// loop. The package talks to the platform through narrow interfaces so the
// resolution rules stay testable without a database.
package reminders

import (
	"context"
	"errors"

	"github.com/warwicklearningsystems/local-reminders/internal/config"
	"github.com/warwicklearningsystems/local-reminders/internal/scheduler"
	"github.com/warwicklearningsystems/local-reminders/internal/types"
)

// Directory is the user/course/group lookup surface the resolvers need.
type Directory interface {
	SiteRecipients(ctx context.Context) ([]types.User, error)
	UserByID(ctx context.Context, id int64) (*types.User, error)
	AdminUser(ctx context.Context) (*types.User, error)
	CourseByID(ctx context.Context, id int64) (*types.Course, error)
	GroupByID(ctx context.Context, id int64) (*types.Group, error)
	RoleIDsForSlots(ctx context.Context, slots []int) ([]int64, error)
	RoleHolders(ctx context.Context, courseID int64, roleIDs []int64) ([]types.User, error)
	GroupMembers(ctx context.Context, groupID int64) ([]types.User, error)
	UnavailableUserIDs(ctx context.Context, courseModuleID int64, userIDs []int64) ([]int64, error)
}

// SettingsStore reads per-course reminder overrides.
type SettingsStore interface {
	CourseSettings(ctx context.Context, courseID int64) (types.CourseSettings, error)
}

// ActivityData reads activity instances and the completion facts behind
// the due-event exclusion rules.
type ActivityData interface {
	ModuleInstance(ctx context.Context, ev types.Event) (*types.ModuleInstance, error)
	ModuleTags(ctx context.Context, courseModuleID int64) ([]string, error)
	HasSubmissionPlugin(ctx context.Context, assignmentID int64) (bool, error)
	SubmittedUserIDs(ctx context.Context, assignmentID int64, userIDs []int64) ([]int64, error)
	IncompleteUserIDs(ctx context.Context, questionnaireID int64, userIDs []int64) ([]int64, error)
	ZeroAttemptUserIDs(ctx context.Context, quizID int64, userIDs []int64) ([]int64, error)
}

// Transport hands one rendered message to the messaging subsystem. A false
// return without an error is a reported delivery refusal; both count as a
// send failure.
type Transport interface {
	Send(ctx context.Context, msg types.ReminderMessage) (bool, error)
}

// Service resolves recipients and dispatches reminders for classified
// events. It implements scheduler.Processor. Not safe for concurrent use;
// the cycle runner calls it from a single goroutine.
type Service struct {
	cfg        config.ReminderConfig
	dir        Directory
	settings   SettingsStore
	activities ActivityData
	transport  Transport
	logger     types.Logger

	// Resolved on first use and cached for the life of the process; the
	// role table and sender configuration do not change mid-run.
	courseRoleIDs   []int64
	activityRoleIDs []int64
	rolesResolved   bool
	sender          *types.SenderIdentity
}

// ServiceConfig holds the dependencies for creating a Service.
type ServiceConfig struct {
	Reminders  config.ReminderConfig
	Directory  Directory
	Settings   SettingsStore
	Activities ActivityData
	Transport  Transport
	Logger     types.Logger
}

// NewService creates a Service with the given dependencies.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		cfg:        cfg.Reminders,
		dir:        cfg.Directory,
		settings:   cfg.Settings,
		activities: cfg.Activities,
		transport:  cfg.Transport,
		logger:     cfg.Logger,
	}
}

// Process resolves one classified event into its recipient set and
// dispatches a message per recipient. A nil context from the resolver means
// the event is gated or has nothing to send; that is a silent skip, not an
// error.
func (s *Service) Process(ctx context.Context, ev types.Event, lt types.LeadTime) (scheduler.ProcessOutcome, error) {
	recipients, rctx, err := s.resolve(ctx, ev, lt)
	if err != nil {
		return scheduler.ProcessOutcome{}, types.NewAppError(types.ErrCodeResolutionFailed, "recipient resolution failed", err)
	}
	if rctx == nil {
		return scheduler.ProcessOutcome{Filtered: true}, nil
	}
	if recipients.Len() == 0 {
		s.logger.Info("no recipients resolved",
			"event_id", ev.ID,
			"category", string(ev.Category),
		)
		return scheduler.ProcessOutcome{Filtered: true}, nil
	}

	return s.dispatch(ctx, *rctx, recipients), nil
}

// roleIDs resolves the configured course and activity role bitmaps against
// the directory once, then serves them from cache.
func (s *Service) roleIDs(ctx context.Context) (course, activity []int64, err error) {
	if s.rolesResolved {
		return s.courseRoleIDs, s.activityRoleIDs, nil
	}

	courseSlots, err := config.RoleBitmap(s.cfg.CourseRoles)
	if err != nil {
		return nil, nil, err
	}
	activitySlots, err := config.RoleBitmap(s.cfg.ActivityRoles)
	if err != nil {
		return nil, nil, err
	}

	if s.courseRoleIDs, err = s.dir.RoleIDsForSlots(ctx, courseSlots); err != nil {
		return nil, nil, err
	}
	if s.activityRoleIDs, err = s.dir.RoleIDsForSlots(ctx, activitySlots); err != nil {
		return nil, nil, err
	}
	s.rolesResolved = true
	return s.courseRoleIDs, s.activityRoleIDs, nil
}

// senderIdentity resolves the configured from-identity: the noreply
// mailbox, or the primary admin account, either with an optional display
// name override. Cached after first resolution.
func (s *Service) senderIdentity(ctx context.Context) (types.SenderIdentity, error) {
	if s.sender != nil {
		return *s.sender, nil
	}

	var identity types.SenderIdentity
	switch s.cfg.SendAs {
	case types.SendAsAdmin:
		admin, err := s.dir.AdminUser(ctx)
		if err != nil {
			return types.SenderIdentity{}, err
		}
		identity = types.SenderIdentity{
			UserID:      admin.ID,
			Email:       admin.Email,
			DisplayName: admin.FullName,
		}
	default:
		identity = types.SenderIdentity{
			Email:       s.cfg.NoReplyAddr,
			DisplayName: "Do not reply",
		}
	}
	if s.cfg.SendAsName != "" {
		identity.DisplayName = s.cfg.SendAsName
	}

	s.sender = &identity
	return identity, nil
}

// isNotFound reports whether the error is one of the directory's not-found
// codes, which resolvers treat as "skip this event" rather than a failure.
func isNotFound(err error) bool {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case types.ErrCodeNotFoundUser, types.ErrCodeNotFoundCourse,
		types.ErrCodeNotFoundGroup, types.ErrCodeNotFoundModule:
		return true
	}
	return false
}
