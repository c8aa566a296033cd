package db

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/warwicklearningsystems/local-reminders/internal/types"
)

// ActivityRepository reads activity-module data: instances, tags, and the
// per-module completion facts the due-event exclusion rules need.
type ActivityRepository struct {
	db DBTX
}

// NewActivityRepository creates an ActivityRepository backed by the given
// database connection (pool or transaction).
func NewActivityRepository(db DBTX) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// moduleTables maps the known capability variants onto their instance
// tables. Other module types follow the platform convention that the
// instance table carries the module's own name.
var moduleTables = map[types.ModuleKind]string{
	types.ModuleAssignment:    "assignments",
	types.ModuleQuiz:          "quizzes",
	types.ModuleQuestionnaire: "questionnaires",
}

var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// moduleTable resolves the instance table for a module name. The name comes
// from a calendar row, so it is validated before being interpolated as an
// identifier.
func moduleTable(moduleName string) (string, error) {
	kind := types.ModuleKindFromName(moduleName)
	if table, ok := moduleTables[kind]; ok {
		return table, nil
	}
	name := strings.ToLower(strings.TrimSpace(moduleName))
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("invalid module name %q", moduleName)
	}
	return pgx.Identifier{name}.Sanitize(), nil
}

// ModuleInstance fetches the activity instance behind an event from the
// module's own table, along with its course-module id.
func (r *ActivityRepository) ModuleInstance(ctx context.Context, ev types.Event) (*types.ModuleInstance, error) {
	table, err := moduleTable(ev.ModuleName)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundModule, "unknown module type", err)
	}

	row := r.db.QueryRow(ctx,
		`SELECT m.id, cm.id, m.name
		 FROM `+table+` m
		 JOIN course_modules cm
		   ON cm.instance = m.id AND cm.module_name = $1
		 WHERE m.id = $2`,
		strings.ToLower(strings.TrimSpace(ev.ModuleName)),
		ev.Instance,
	)

	var mi types.ModuleInstance
	if err := row.Scan(&mi.ID, &mi.CourseModuleID, &mi.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundModule, "module instance not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve module instance", err)
	}
	mi.Kind = ev.ModuleKind()
	return &mi, nil
}

// ModuleTags returns the tag names attached to a course module, sorted.
func (r *ActivityRepository) ModuleTags(ctx context.Context, courseModuleID int64) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT t.name
		 FROM tag_instances ti
		 JOIN tags t ON t.id = ti.tag_id
		 WHERE ti.item_type = 'course_module' AND ti.item_id = $1
		 ORDER BY t.name`,
		courseModuleID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query module tags", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan tag row", err)
		}
		tags = append(tags, name)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read tag rows", err)
	}
	return tags, nil
}

// HasSubmissionPlugin reports whether the assignment has at least one
// enabled submission mechanism. Assignments without one collect nothing, so
// the already-submitted exclusion does not apply to them.
func (r *ActivityRepository) HasSubmissionPlugin(ctx context.Context, assignmentID int64) (bool, error) {
	var enabled bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1
		   FROM assignment_plugin_configs pc
		   WHERE pc.assignment_id = $1
		     AND pc.subtype = 'submission'
		     AND pc.name = 'enabled'
		     AND pc.value = '1'
		 )`,
		assignmentID,
	).Scan(&enabled)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to check submission plugins", err)
	}
	return enabled, nil
}

// SubmittedUserIDs returns the subset of the candidate users who have
// already submitted the assignment: latest submission with a non-new status
// and a non-null submit time.
func (r *ActivityRepository) SubmittedUserIDs(ctx context.Context, assignmentID int64, userIDs []int64) ([]int64, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT s.user_id
		 FROM assignment_submissions s
		 WHERE s.assignment_id = $1
		   AND s.user_id = ANY($2)
		   AND s.latest
		   AND s.status <> 'new'
		   AND s.submitted_at IS NOT NULL
		 ORDER BY s.user_id`,
		assignmentID,
		userIDs,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query assignment submissions", err)
	}
	return scanUserIDs(rows)
}

// IncompleteUserIDs returns the subset of the candidate users who have not
// completed the questionnaire.
func (r *ActivityRepository) IncompleteUserIDs(ctx context.Context, questionnaireID int64, userIDs []int64) ([]int64, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT c.user_id
		 FROM unnest($2::bigint[]) AS c(user_id)
		 WHERE NOT EXISTS (
		   SELECT 1
		   FROM questionnaire_responses qr
		   WHERE qr.questionnaire_id = $1
		     AND qr.user_id = c.user_id
		     AND qr.complete
		 )
		 ORDER BY c.user_id`,
		questionnaireID,
		userIDs,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query questionnaire responses", err)
	}
	return scanUserIDs(rows)
}

// ZeroAttemptUserIDs returns the subset of the candidate users with no
// recorded attempt at the quiz.
func (r *ActivityRepository) ZeroAttemptUserIDs(ctx context.Context, quizID int64, userIDs []int64) ([]int64, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT c.user_id
		 FROM unnest($2::bigint[]) AS c(user_id)
		 WHERE NOT EXISTS (
		   SELECT 1
		   FROM quiz_attempts qa
		   WHERE qa.quiz_id = $1
		     AND qa.user_id = c.user_id
		 )
		 ORDER BY c.user_id`,
		quizID,
		userIDs,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query quiz attempts", err)
	}
	return scanUserIDs(rows)
}

func scanUserIDs(rows pgx.Rows) ([]int64, error) {
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan user id row", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read user id rows", err)
	}
	return ids, nil
}
