package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/unityaid/mobile-sync/internal/errs"
	"github.com/unityaid/mobile-sync/internal/model"
)

// SyncLogRepo implements SyncLogRepository using PostgreSQL.
type SyncLogRepo struct{ db *DB }

// NewSyncLogRepo constructs a sync log repository.
func NewSyncLogRepo(db *DB) *SyncLogRepo { return &SyncLogRepo{db: db} }

// Create appends a pending audit row.
func (r *SyncLogRepo) Create(ctx context.Context, userID uuid.UUID, deviceID string, syncType model.SyncType) (uuid.UUID, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, err
	}
	const q = `
INSERT INTO sync_logs (id, user_id, device_id, sync_type, status)
VALUES ($1,$2,$3,$4,'pending')`
	if _, err := r.db.Pool.Exec(ctx, q, id, userID, deviceID, syncType); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// Start transitions the row to in_progress. Rows already finalized stay put.
func (r *SyncLogRepo) Start(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE sync_logs SET status='in_progress' WHERE id=$1 AND status='pending'`
	tag, err := r.db.Pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Finish finalizes the row with a terminal status and counters.
func (r *SyncLogRepo) Finish(ctx context.Context, id uuid.UUID, status model.SyncStatus, total, processed, failed int, errMsg string) error {
	const q = `
UPDATE sync_logs
SET status=$2, total_items=$3, processed_items=$4, failed_items=$5, error_message=$6, completed_at=now()
WHERE id=$1 AND status='in_progress'`
	tag, err := r.db.Pool.Exec(ctx, q, id, status, total, processed, failed, errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ListByUser returns the user's sync history, newest first.
func (r *SyncLogRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]model.SyncLog, error) {
	const q = `
SELECT id, user_id, device_id, sync_type, status, total_items, processed_items,
       failed_items, error_message, started_at, completed_at
FROM sync_logs
WHERE user_id=$1
ORDER BY started_at DESC
LIMIT $2`
	rows, err := r.db.Pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SyncLog
	for rows.Next() {
		var l model.SyncLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.DeviceID, &l.SyncType, &l.Status,
			&l.TotalItems, &l.ProcessedItems, &l.FailedItems, &l.ErrorMessage,
			&l.StartedAt, &l.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
