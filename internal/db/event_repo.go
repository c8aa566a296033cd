package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/warwicklearningsystems/local-reminders/internal/scheduler"
	"github.com/warwicklearningsystems/local-reminders/internal/types"
)

// EventRepository is the read-only adapter over the calendar events table.
// It implements scheduler.EventStore.
type EventRepository struct {
	db DBTX
}

// NewEventRepository creates an EventRepository backed by the given
// database connection (pool or transaction).
func NewEventRepository(db DBTX) *EventRepository {
	return &EventRepository{db: db}
}

// eventColumns is the standard column set for event queries. Durations are
// stored as whole seconds.
const eventColumns = `e.id, e.name, e.category, e.module_name, e.instance,
	e.course_id, e.group_id, e.user_id, e.time_start, e.time_duration, e.visible`

// effectiveEndExpr is the SQL form of an event's effective end time.
const effectiveEndExpr = `(e.time_start + make_interval(secs => e.time_duration))`

// buildEventsQuery assembles the candidate predicate: effective end still
// ahead of the window end, and for at least one threshold T the anchor
// (effective end minus T) inside [windowStart, windowEnd]. The per-threshold
// condition is rewritten as effective end BETWEEN windowStart+T AND
// windowEnd+T so the threshold arithmetic stays in Go and the arguments are
// plain timestamps.
func buildEventsQuery(q scheduler.EventQuery) (string, []any) {
	args := []any{q.Window.End}

	conds := make([]string, 0, len(q.Thresholds))
	for _, t := range q.Thresholds {
		args = append(args, q.Window.Start.Add(t), q.Window.End.Add(t))
		conds = append(conds, fmt.Sprintf("%s BETWEEN $%d AND $%d",
			effectiveEndExpr, len(args)-1, len(args)))
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + eventColumns + `
	 FROM calendar_events e
	 WHERE ` + effectiveEndExpr + ` > $1
	   AND (` + strings.Join(conds, " OR ") + `)`)

	switch q.Filter {
	case types.FilterVisibleOnly:
		sb.WriteString(` AND e.visible`)
	case types.FilterHiddenOnly:
		sb.WriteString(` AND NOT e.visible`)
	}

	sb.WriteString(` ORDER BY ` + effectiveEndExpr + ` ASC, e.id ASC`)
	return sb.String(), args
}

// EventsInWindow returns the candidate events for the cycle, ordered by
// effective end ascending.
func (r *EventRepository) EventsInWindow(ctx context.Context, q scheduler.EventQuery) ([]types.Event, error) {
	if len(q.Thresholds) == 0 {
		return nil, nil
	}

	sql, args := buildEventsQuery(q)
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query candidate events", err)
	}
	defer rows.Close()

	var events []types.Event
	for rows.Next() {
		var ev types.Event
		var durationSecs int64
		err := rows.Scan(
			&ev.ID,
			&ev.Name,
			&ev.Category,
			&ev.ModuleName,
			&ev.Instance,
			&ev.CourseID,
			&ev.GroupID,
			&ev.UserID,
			&ev.Start,
			&durationSecs,
			&ev.Visible,
		)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan event row", err)
		}
		ev.Duration = time.Duration(durationSecs) * time.Second
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read event rows", err)
	}
	return events, nil
}
