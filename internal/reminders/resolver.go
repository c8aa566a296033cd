package reminders

import (
	"context"

	"github.com/warwicklearningsystems/local-reminders/internal/types"
)

// resolve dispatches on the event category and returns the recipient set
// plus the reminder context. A nil context with a nil error means the event
// produces no reminder this cycle (gated, restricted, or referent missing)
// and must be skipped silently.
func (s *Service) resolve(ctx context.Context, ev types.Event, lt types.LeadTime) (*types.RecipientSet, *Context, error) {
	switch ev.Category {
	case types.CategorySite:
		return s.resolveSite(ctx, ev, lt)
	case types.CategoryUser:
		return s.resolveUser(ctx, ev, lt)
	case types.CategoryCourse:
		return s.resolveCourse(ctx, ev, lt)
	case types.CategoryGroup:
		return s.resolveGroup(ctx, ev, lt)
	case types.CategoryOpen, types.CategoryClose, types.CategoryDue:
		return s.resolveDue(ctx, ev, lt)
	default:
		if ev.HasModule() {
			// An unrecognized category that still references an activity
			// resolves like a generic due event.
			return s.resolveDue(ctx, ev, lt)
		}
		s.logger.Warn("unknown event category",
			"event_id", ev.ID,
			"category", string(ev.Category),
		)
		return nil, nil, nil
	}
}

// resolveSite targets every active confirmed account on the platform.
func (s *Service) resolveSite(ctx context.Context, ev types.Event, lt types.LeadTime) (*types.RecipientSet, *Context, error) {
	users, err := s.dir.SiteRecipients(ctx)
	if err != nil {
		return nil, nil, err
	}

	rctx, err := s.newContext(ctx, ev, lt)
	if err != nil {
		return nil, nil, err
	}

	set := types.NewRecipientSet()
	set.AddAll(users)
	return set, rctx, nil
}

// resolveUser targets the single user the event belongs to.
func (s *Service) resolveUser(ctx context.Context, ev types.Event, lt types.LeadTime) (*types.RecipientSet, *Context, error) {
	user, err := s.dir.UserByID(ctx, ev.UserID)
	if err != nil {
		if isNotFound(err) {
			s.logger.Warn("user event owner not found",
				"event_id", ev.ID,
				"user_id", ev.UserID,
			)
			return nil, nil, nil
		}
		return nil, nil, err
	}

	rctx, err := s.newContext(ctx, ev, lt)
	if err != nil {
		return nil, nil, err
	}

	set := types.NewRecipientSet()
	set.Add(*user)
	return set, rctx, nil
}

// resolveCourse targets holders of the configured course-level roles,
// unless the course has opted out of course reminders.
func (s *Service) resolveCourse(ctx context.Context, ev types.Event, lt types.LeadTime) (*types.RecipientSet, *Context, error) {
	settings, err := s.settings.CourseSettings(ctx, ev.CourseID)
	if err != nil {
		return nil, nil, err
	}
	if !settings.CourseEnabled {
		s.logger.Info("course reminders restricted by course settings",
			"event_id", ev.ID,
			"course_id", ev.CourseID,
		)
		return nil, nil, nil
	}

	course, err := s.dir.CourseByID(ctx, ev.CourseID)
	if err != nil {
		if isNotFound(err) {
			s.logger.Warn("course event course not found",
				"event_id", ev.ID,
				"course_id", ev.CourseID,
			)
			return nil, nil, nil
		}
		return nil, nil, err
	}

	courseRoles, _, err := s.roleIDs(ctx)
	if err != nil {
		return nil, nil, err
	}
	users, err := s.dir.RoleHolders(ctx, ev.CourseID, courseRoles)
	if err != nil {
		return nil, nil, err
	}

	rctx, err := s.newContext(ctx, ev, lt)
	if err != nil {
		return nil, nil, err
	}
	rctx.Course = course

	set := types.NewRecipientSet()
	set.AddAll(users)
	return set, rctx, nil
}

// resolveGroup targets the members of the event's group, unless the owning
// course has opted out of group reminders. A group event that references an
// activity module carries the module instance in its context.
func (s *Service) resolveGroup(ctx context.Context, ev types.Event, lt types.LeadTime) (*types.RecipientSet, *Context, error) {
	group, err := s.dir.GroupByID(ctx, ev.GroupID)
	if err != nil {
		if isNotFound(err) {
			s.logger.Warn("group event group not found",
				"event_id", ev.ID,
				"group_id", ev.GroupID,
			)
			return nil, nil, nil
		}
		return nil, nil, err
	}

	settings, err := s.settings.CourseSettings(ctx, group.CourseID)
	if err != nil {
		return nil, nil, err
	}
	if !settings.GroupEnabled {
		s.logger.Info("group reminders restricted by course settings",
			"event_id", ev.ID,
			"course_id", group.CourseID,
		)
		return nil, nil, nil
	}

	rctx, err := s.newContext(ctx, ev, lt)
	if err != nil {
		return nil, nil, err
	}
	rctx.Group = group

	if course, err := s.dir.CourseByID(ctx, group.CourseID); err == nil {
		rctx.Course = course
	} else if !isNotFound(err) {
		return nil, nil, err
	}

	if ev.HasModule() && ev.CourseID > 0 {
		activity, err := s.activities.ModuleInstance(ctx, ev)
		if err != nil {
			if !isNotFound(err) {
				return nil, nil, err
			}
			s.logger.Warn("group event activity not found",
				"event_id", ev.ID,
				"module", ev.ModuleName,
				"instance", ev.Instance,
			)
		} else {
			rctx.Activity = activity
		}
	}

	users, err := s.dir.GroupMembers(ctx, group.ID)
	if err != nil {
		return nil, nil, err
	}

	set := types.NewRecipientSet()
	set.AddAll(users)
	return set, rctx, nil
}
