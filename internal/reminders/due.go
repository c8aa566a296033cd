package reminders

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/warwicklearningsystems/local-reminders/internal/types"
)

// resolveDue handles activity (due-style) events: open, close, due, and
// unrecognized categories that reference a module. The gates run in a fixed
// order and any failing gate skips the event entirely.
func (s *Service) resolveDue(ctx context.Context, ev types.Event, lt types.LeadTime) (*types.RecipientSet, *Context, error) {
	if !ev.HasModule() {
		s.logger.Warn("activity event without module reference",
			"event_id", ev.ID,
			"category", string(ev.Category),
		)
		return nil, nil, nil
	}
	kind := ev.ModuleKind()

	// A questionnaire that opens with a closing time always notifies on its
	// effective close: it is treated as a close event and bypasses both
	// mode gates, so neither an openings-only nor a closings-only setting
	// can suppress it.
	openWithClose := ev.Category == types.CategoryOpen && kind == types.ModuleQuestionnaire && ev.Duration > 0
	if !openWithClose {
		if ev.Category == types.CategoryOpen && s.cfg.ActivityMode == types.ActivityClosingsOnly {
			s.logger.Info("activity opening reminders restricted by configuration", "event_id", ev.ID)
			return nil, nil, nil
		}
		if ev.Category == types.CategoryClose && s.cfg.ActivityMode == types.ActivityOpeningsOnly {
			s.logger.Info("activity closing reminders restricted by configuration", "event_id", ev.ID)
			return nil, nil, nil
		}
	}

	// The three per-event reads are independent of each other; fetch them
	// together before the remaining gates consume them in order.
	var (
		settings types.CourseSettings
		activity *types.ModuleInstance
		course   *types.Course
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		settings, err = s.settings.CourseSettings(gctx, ev.CourseID)
		return err
	})
	g.Go(func() error {
		a, err := s.activities.ModuleInstance(gctx, ev)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		activity = a
		return nil
	})
	if ev.CourseID > 0 {
		g.Go(func() error {
			c, err := s.dir.CourseByID(gctx, ev.CourseID)
			if err != nil {
				if isNotFound(err) {
					return nil
				}
				return err
			}
			course = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if activity == nil {
		s.logger.Warn("activity instance not found",
			"event_id", ev.ID,
			"module", ev.ModuleName,
			"instance", ev.Instance,
		)
		return nil, nil, nil
	}
	if ev.CourseID > 0 && course == nil {
		s.logger.Warn("activity event course not found",
			"event_id", ev.ID,
			"course_id", ev.CourseID,
		)
		return nil, nil, nil
	}

	if !settings.ActivitiesEnabled {
		s.logger.Info("activity reminders restricted by course settings",
			"event_id", ev.ID,
			"course_id", ev.CourseID,
		)
		return nil, nil, nil
	}

	if !s.moduleEnabled(kind) {
		s.logger.Info("reminders disabled for module type",
			"event_id", ev.ID,
			"module", ev.ModuleName,
		)
		return nil, nil, nil
	}

	if kind == types.ModuleQuestionnaire {
		allowed, err := s.questionnaireTagsAllowed(ctx, ev, activity.CourseModuleID)
		if err != nil {
			return nil, nil, err
		}
		if !allowed {
			return nil, nil, nil
		}
	}

	set, err := s.dueRecipients(ctx, ev, activity)
	if err != nil {
		return nil, nil, err
	}
	if set == nil {
		return nil, nil, nil
	}

	set, err = s.applyModuleExclusions(ctx, kind, activity, set)
	if err != nil {
		return nil, nil, err
	}

	rctx, err := s.newContext(ctx, ev, lt)
	if err != nil {
		return nil, nil, err
	}
	rctx.Course = course
	rctx.Activity = activity
	return set, rctx, nil
}

// dueRecipients resolves the candidate set for an activity event. Schedule
// overrides carry their own audience; everything else goes through the
// activity role lookup plus the availability filter. A nil set means the
// override's referent is gone and the event is skipped.
func (s *Service) dueRecipients(ctx context.Context, ev types.Event, activity *types.ModuleInstance) (*types.RecipientSet, error) {
	set := types.NewRecipientSet()

	switch {
	case ev.IsUserOverride():
		user, err := s.dir.UserByID(ctx, ev.UserID)
		if err != nil {
			if isNotFound(err) {
				s.logger.Warn("override user not found",
					"event_id", ev.ID,
					"user_id", ev.UserID,
				)
				return nil, nil
			}
			return nil, err
		}
		set.Add(*user)

	case ev.IsGroupOverride():
		members, err := s.dir.GroupMembers(ctx, ev.GroupID)
		if err != nil {
			return nil, err
		}
		set.AddAll(members)

	default:
		_, activityRoles, err := s.roleIDs(ctx)
		if err != nil {
			return nil, err
		}
		users, err := s.dir.RoleHolders(ctx, ev.CourseID, activityRoles)
		if err != nil {
			return nil, err
		}
		set.AddAll(users)

		hidden, err := s.dir.UnavailableUserIDs(ctx, activity.CourseModuleID, userIDs(set))
		if err != nil {
			return nil, err
		}
		set = set.Exclude(hidden)
	}

	return set, nil
}

// questionnaireTagsAllowed applies the tag gate: tagging must be enabled,
// an allow-list must be configured, and every tag on the module must appear
// in it. A module with extra, non-allow-listed tags never produces a
// reminder; a module with no tags at all passes.
func (s *Service) questionnaireTagsAllowed(ctx context.Context, ev types.Event, courseModuleID int64) (bool, error) {
	if !s.cfg.TaggingEnabled {
		s.logger.Info("questionnaire reminders prevented because tagging is disabled", "event_id", ev.ID)
		return false, nil
	}
	allow := s.cfg.TagAllowList()
	if len(allow) == 0 {
		s.logger.Info("questionnaire reminders prevented because no tags are configured", "event_id", ev.ID)
		return false, nil
	}

	tags, err := s.activities.ModuleTags(ctx, courseModuleID)
	if err != nil {
		return false, err
	}
	for _, tag := range tags {
		if !slices.Contains(allow, tag) {
			s.logger.Info("questionnaire reminders prevented by tag mismatch",
				"event_id", ev.ID,
				"tag", tag,
			)
			return false, nil
		}
	}
	return true, nil
}

// moduleEnabled checks the per-module-type configuration flag. Module types
// without a dedicated flag are always enabled.
func (s *Service) moduleEnabled(kind types.ModuleKind) bool {
	switch kind {
	case types.ModuleAssignment:
		return s.cfg.AssignmentEnabled
	case types.ModuleQuiz:
		return s.cfg.QuizEnabled
	case types.ModuleQuestionnaire:
		return s.cfg.QuestionnaireEnabled
	default:
		return true
	}
}

// applyModuleExclusions narrows the candidate set by completion status.
// Assignments exclude users who already submitted, but only when the
// assignment actually collects submissions. Questionnaires keep only users
// who have not completed; quizzes keep only users with zero attempts.
func (s *Service) applyModuleExclusions(ctx context.Context, kind types.ModuleKind, activity *types.ModuleInstance, set *types.RecipientSet) (*types.RecipientSet, error) {
	switch kind {
	case types.ModuleAssignment:
		collects, err := s.activities.HasSubmissionPlugin(ctx, activity.ID)
		if err != nil {
			return nil, err
		}
		if !collects {
			return set, nil
		}
		submitted, err := s.activities.SubmittedUserIDs(ctx, activity.ID, userIDs(set))
		if err != nil {
			return nil, err
		}
		return set.Exclude(submitted), nil

	case types.ModuleQuestionnaire:
		incomplete, err := s.activities.IncompleteUserIDs(ctx, activity.ID, userIDs(set))
		if err != nil {
			return nil, err
		}
		return set.Intersect(incomplete), nil

	case types.ModuleQuiz:
		unattempted, err := s.activities.ZeroAttemptUserIDs(ctx, activity.ID, userIDs(set))
		if err != nil {
			return nil, err
		}
		return set.Intersect(unattempted), nil

	default:
		return set, nil
	}
}

func userIDs(set *types.RecipientSet) []int64 {
	ids := make([]int64, 0, set.Len())
	for _, u := range set.Users() {
		ids = append(ids, u.ID)
	}
	return ids
}
