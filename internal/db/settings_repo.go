package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/warwicklearningsystems/local-reminders/internal/types"
)

// SettingsRepository reads the per-course reminder override rows. A course
// without a row has never been overridden, so every reminder kind defaults
// to enabled.
type SettingsRepository struct {
	db DBTX
}

// NewSettingsRepository creates a SettingsRepository backed by the given
// database connection (pool or transaction).
func NewSettingsRepository(db DBTX) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// CourseSettings returns the tri-state reminder overrides for a course,
// falling back to all-enabled defaults when no override row exists.
func (r *SettingsRepository) CourseSettings(ctx context.Context, courseID int64) (types.CourseSettings, error) {
	row := r.db.QueryRow(ctx,
		`SELECT course_id, status_course, status_group, status_activities
		 FROM course_reminder_settings
		 WHERE course_id = $1`,
		courseID,
	)

	var s types.CourseSettings
	err := row.Scan(&s.CourseID, &s.CourseEnabled, &s.GroupEnabled, &s.ActivitiesEnabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.DefaultCourseSettings(courseID), nil
		}
		return types.CourseSettings{}, types.NewAppError(types.ErrCodeInternalDB, "failed to read course reminder settings", err)
	}
	return s, nil
}
