package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/warwicklearningsystems/local-reminders/internal/types"
)

// DirectoryRepository reads users, courses, groups, and role assignments
// from the platform directory tables. All lookups are read-only.
type DirectoryRepository struct {
	db DBTX
}

// NewDirectoryRepository creates a DirectoryRepository backed by the given
// database connection (pool or transaction).
func NewDirectoryRepository(db DBTX) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// userColumns is the standard column set for recipient queries.
const userColumns = `u.id, u.email, u.full_name`

func scanUsers(rows pgx.Rows) ([]types.User, error) {
	defer rows.Close()
	var users []types.User
	for rows.Next() {
		var u types.User
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan user row", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read user rows", err)
	}
	return users, nil
}

// SiteRecipients returns every active, confirmed account. User id 1 is the
// platform guest account and is never a recipient.
func (r *DirectoryRepository) SiteRecipients(ctx context.Context) ([]types.User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+`
		 FROM users u
		 WHERE u.id > 1 AND NOT u.deleted AND NOT u.suspended AND u.confirmed
		 ORDER BY u.id`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query site recipients", err)
	}
	return scanUsers(rows)
}

// UserByID returns one active user.
func (r *DirectoryRepository) UserByID(ctx context.Context, id int64) (*types.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+`
		 FROM users u
		 WHERE u.id = $1 AND NOT u.deleted`,
		id,
	)

	var u types.User
	if err := row.Scan(&u.ID, &u.Email, &u.FullName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve user", err)
	}
	return &u, nil
}

// AdminUser returns the primary site administrator account, used as the
// sender identity when reminders are configured to send as admin.
func (r *DirectoryRepository) AdminUser(ctx context.Context) (*types.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+`
		 FROM users u
		 WHERE u.site_admin AND NOT u.deleted
		 ORDER BY u.id
		 LIMIT 1`,
	)

	var u types.User
	if err := row.Scan(&u.ID, &u.Email, &u.FullName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundUser, "no site administrator account", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve admin user", err)
	}
	return &u, nil
}

// CourseByID returns one course.
func (r *DirectoryRepository) CourseByID(ctx context.Context, id int64) (*types.Course, error) {
	row := r.db.QueryRow(ctx,
		`SELECT c.id, c.full_name, c.short_name
		 FROM courses c
		 WHERE c.id = $1`,
		id,
	)

	var c types.Course
	if err := row.Scan(&c.ID, &c.FullName, &c.ShortName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundCourse, "course not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve course", err)
	}
	return &c, nil
}

// GroupByID returns one group.
func (r *DirectoryRepository) GroupByID(ctx context.Context, id int64) (*types.Group, error) {
	row := r.db.QueryRow(ctx,
		`SELECT g.id, g.course_id, g.name
		 FROM groups g
		 WHERE g.id = $1`,
		id,
	)

	var g types.Group
	if err := row.Scan(&g.ID, &g.CourseID, &g.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundGroup, "group not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve group", err)
	}
	return &g, nil
}

// RoleIDsForSlots resolves bitmap slot indexes into role ids against the
// role table in sort order. Slots past the end of the table are ignored;
// the bitmap format has no way to know how many roles exist.
func (r *DirectoryRepository) RoleIDsForSlots(ctx context.Context, slots []int) ([]int64, error) {
	if len(slots) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT id FROM roles ORDER BY sort_order ASC, id ASC`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query roles", err)
	}
	defer rows.Close()

	var ordered []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan role row", err)
		}
		ordered = append(ordered, id)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read role rows", err)
	}

	var roleIDs []int64
	for _, slot := range slots {
		if slot >= 0 && slot < len(ordered) {
			roleIDs = append(roleIDs, ordered[slot])
		}
	}
	return roleIDs, nil
}

// RoleHolders returns the active users holding any of the given roles in a
// course context, deduplicated and ordered by id.
func (r *DirectoryRepository) RoleHolders(ctx context.Context, courseID int64, roleIDs []int64) ([]types.User, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT `+userColumns+`
		 FROM role_assignments ra
		 JOIN users u ON u.id = ra.user_id
		 WHERE ra.course_id = $1
		   AND ra.role_id = ANY($2)
		   AND NOT u.deleted AND NOT u.suspended AND u.confirmed
		 ORDER BY u.id`,
		courseID,
		roleIDs,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query role holders", err)
	}
	return scanUsers(rows)
}

// GroupMembers returns the members of a group. Membership rows are stored
// one per (user, role) pairing, so the query deduplicates users who belong
// through more than one role.
func (r *DirectoryRepository) GroupMembers(ctx context.Context, groupID int64) ([]types.User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT `+userColumns+`
		 FROM group_members gm
		 JOIN users u ON u.id = gm.user_id
		 WHERE gm.group_id = $1
		   AND NOT u.deleted AND NOT u.suspended AND u.confirmed
		 ORDER BY u.id`,
		groupID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query group members", err)
	}
	return scanUsers(rows)
}

// UnavailableUserIDs returns the subset of the given users hidden from an
// activity by the platform's materialized availability rules. Absence of a
// row means the activity is visible to that user.
func (r *DirectoryRepository) UnavailableUserIDs(ctx context.Context, courseModuleID int64, userIDs []int64) ([]int64, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT a.user_id
		 FROM course_module_availability a
		 WHERE a.course_module_id = $1
		   AND a.user_id = ANY($2)
		   AND NOT a.visible`,
		courseModuleID,
		userIDs,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query module availability", err)
	}
	defer rows.Close()

	var hidden []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan availability row", err)
		}
		hidden = append(hidden, id)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read availability rows", err)
	}
	return hidden, nil
}
