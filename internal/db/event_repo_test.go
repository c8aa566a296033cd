package db

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warwicklearningsystems/local-reminders/internal/scheduler"
	"github.com/warwicklearningsystems/local-reminders/internal/types"
)

func testQuery(filter types.EventFilterMode, thresholds ...time.Duration) scheduler.EventQuery {
	return scheduler.EventQuery{
		Window: scheduler.Window{
			Start: time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		},
		Thresholds: thresholds,
		Filter:     filter,
	}
}

func TestBuildEventsQuery_ThresholdArgs(t *testing.T) {
	q := testQuery(types.FilterAll, scheduler.Threshold7Days, scheduler.Threshold1Day)

	sql, args := buildEventsQuery(q)

	// One arg for the window end plus a (start+T, end+T) pair per threshold.
	require.Len(t, args, 5)
	assert.Equal(t, q.Window.End, args[0])
	assert.Equal(t, q.Window.Start.Add(scheduler.Threshold7Days), args[1])
	assert.Equal(t, q.Window.End.Add(scheduler.Threshold7Days), args[2])
	assert.Equal(t, q.Window.Start.Add(scheduler.Threshold1Day), args[3])
	assert.Equal(t, q.Window.End.Add(scheduler.Threshold1Day), args[4])

	assert.Equal(t, 2, strings.Count(sql, "BETWEEN"))
	assert.Contains(t, sql, "$4 AND $5")
}

func TestBuildEventsQuery_VisibilityFilter(t *testing.T) {
	all, _ := buildEventsQuery(testQuery(types.FilterAll, scheduler.Threshold1Day))
	visible, _ := buildEventsQuery(testQuery(types.FilterVisibleOnly, scheduler.Threshold1Day))
	hidden, _ := buildEventsQuery(testQuery(types.FilterHiddenOnly, scheduler.Threshold1Day))

	assert.NotContains(t, all, "e.visible")
	assert.Contains(t, visible, "AND e.visible")
	assert.Contains(t, hidden, "AND NOT e.visible")
}

func TestBuildEventsQuery_OrdersByEffectiveEnd(t *testing.T) {
	sql, _ := buildEventsQuery(testQuery(types.FilterAll, scheduler.Threshold1Day))
	assert.Contains(t, sql, "ORDER BY (e.time_start + make_interval(secs => e.time_duration)) ASC")
}
