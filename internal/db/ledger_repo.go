package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/warwicklearningsystems/local-reminders/internal/types"
)

// LedgerRepository persists cycle watermarks. The table is append-only and
// only the most recent row is ever read; it is the one table this service
// owns. Implements scheduler.Ledger.
type LedgerRepository struct {
	db DBTX
}

// NewLedgerRepository creates a LedgerRepository backed by the given
// database connection (pool or transaction).
func NewLedgerRepository(db DBTX) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Last returns the most recent watermark, or nil when no cycle has ever
// completed.
func (r *LedgerRepository) Last(ctx context.Context) (*types.Watermark, error) {
	row := r.db.QueryRow(ctx,
		`SELECT time_window_end, kind
		 FROM reminder_ledger
		 ORDER BY time_window_end DESC, id DESC
		 LIMIT 1`,
	)

	var wm types.Watermark
	if err := row.Scan(&wm.Timestamp, &wm.Kind); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read last watermark", err)
	}
	return &wm, nil
}

// Append records a completed cycle's watermark.
func (r *LedgerRepository) Append(ctx context.Context, wm types.Watermark) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO reminder_ledger (time_window_end, kind, created_at)
		 VALUES ($1, $2, NOW())`,
		wm.Timestamp,
		wm.Kind,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to append watermark", err)
	}
	return nil
}
