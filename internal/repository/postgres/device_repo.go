package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/unityaid/mobile-sync/internal/errs"
	"github.com/unityaid/mobile-sync/internal/model"
)

// DeviceRepo implements DeviceRepository using PostgreSQL.
type DeviceRepo struct{ db *DB }

// NewDeviceRepo constructs a device repository.
func NewDeviceRepo(db *DB) *DeviceRepo { return &DeviceRepo{db: db} }

// Upsert registers or refreshes a device in a single statement. The
// ON CONFLICT arm keeps concurrent logins from the same device safe without
// read-then-write. Empty descriptor fields keep the stored value.
func (r *DeviceRepo) Upsert(ctx context.Context, userID uuid.UUID, d model.DeviceDescriptor) (*model.Device, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	const q = `
INSERT INTO devices (id, user_id, device_id, platform, push_token, app_version, os_version, device_model, is_active, last_seen)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,true,now())
ON CONFLICT (user_id, device_id) DO UPDATE SET
	platform     = EXCLUDED.platform,
	push_token   = CASE WHEN EXCLUDED.push_token   <> '' THEN EXCLUDED.push_token   ELSE devices.push_token   END,
	app_version  = CASE WHEN EXCLUDED.app_version  <> '' THEN EXCLUDED.app_version  ELSE devices.app_version  END,
	os_version   = CASE WHEN EXCLUDED.os_version   <> '' THEN EXCLUDED.os_version   ELSE devices.os_version   END,
	device_model = CASE WHEN EXCLUDED.device_model <> '' THEN EXCLUDED.device_model ELSE devices.device_model END,
	is_active    = true,
	last_seen    = now()
RETURNING id, user_id, device_id, platform, push_token, app_version, os_version, device_model, is_active, last_seen, created_at`

	var dev model.Device
	err = r.db.Pool.QueryRow(ctx, q,
		id, userID, d.DeviceID, d.Platform, d.PushToken, d.AppVersion, d.OSVersion, d.DeviceModel,
	).Scan(&dev.ID, &dev.UserID, &dev.DeviceID, &dev.Platform, &dev.PushToken,
		&dev.AppVersion, &dev.OSVersion, &dev.DeviceModel, &dev.Active, &dev.LastSeen, &dev.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &dev, nil
}

const deviceCols = `id, user_id, device_id, platform, push_token, app_version, os_version, device_model, is_active, last_seen, created_at`

func scanDevice(row pgx.Row) (*model.Device, error) {
	var d model.Device
	err := row.Scan(&d.ID, &d.UserID, &d.DeviceID, &d.Platform, &d.PushToken,
		&d.AppVersion, &d.OSVersion, &d.DeviceModel, &d.Active, &d.LastSeen, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// GetByID loads a device row by primary key.
func (r *DeviceRepo) GetByID(ctx context.Context, deviceRowID uuid.UUID) (*model.Device, error) {
	return scanDevice(r.db.Pool.QueryRow(ctx, `SELECT `+deviceCols+` FROM devices WHERE id=$1`, deviceRowID))
}

// GetByDeviceID loads the (user, device_id) row.
func (r *DeviceRepo) GetByDeviceID(ctx context.Context, userID uuid.UUID, deviceID string) (*model.Device, error) {
	const q = `SELECT ` + deviceCols + ` FROM devices WHERE user_id=$1 AND device_id=$2`
	return scanDevice(r.db.Pool.QueryRow(ctx, q, userID, deviceID))
}

// ListActive returns active devices ordered by liveness, newest first.
func (r *DeviceRepo) ListActive(ctx context.Context, userID uuid.UUID) ([]model.Device, error) {
	const q = `
SELECT id, user_id, device_id, platform, push_token, app_version, os_version, device_model, is_active, last_seen, created_at
FROM devices
WHERE user_id=$1 AND is_active
ORDER BY last_seen DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Device
	for rows.Next() {
		var d model.Device
		if err := rows.Scan(&d.ID, &d.UserID, &d.DeviceID, &d.Platform, &d.PushToken,
			&d.AppVersion, &d.OSVersion, &d.DeviceModel, &d.Active, &d.LastSeen, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Deactivate clears the active flag; the row is kept for audit.
func (r *DeviceRepo) Deactivate(ctx context.Context, deviceRowID uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE devices SET is_active=false WHERE id=$1`, deviceRowID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// TouchLastSeen refreshes the liveness timestamp.
func (r *DeviceRepo) TouchLastSeen(ctx context.Context, deviceRowID uuid.UUID) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE devices SET last_seen=now() WHERE id=$1`, deviceRowID)
	return err
}

// UpdatePushToken replaces the push token on the (user, device_id) row.
func (r *DeviceRepo) UpdatePushToken(ctx context.Context, userID uuid.UUID, deviceID, pushToken string) error {
	const q = `UPDATE devices SET push_token=$3, last_seen=now() WHERE user_id=$1 AND device_id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, userID, deviceID, pushToken)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
