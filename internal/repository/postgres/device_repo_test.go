package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/unityaid/mobile-sync/internal/errs"
	"github.com/unityaid/mobile-sync/internal/model"
)

var deviceRows = []string{"id", "user_id", "device_id", "platform", "push_token",
	"app_version", "os_version", "device_model", "is_active", "last_seen", "created_at"}

func TestDeviceRepo_Upsert(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewDeviceRepo(db)
	ctx := context.Background()
	userID := uuid.Must(uuid.NewV4())
	rowID := uuid.Must(uuid.NewV4())
	now := time.Now()

	d := model.DeviceDescriptor{
		DeviceID: "dev-1", Platform: model.PlatformAndroid,
		PushToken: "tok", AppVersion: "1.2.0", OSVersion: "14", DeviceModel: "Pixel 8",
	}

	mock.ExpectQuery(`INSERT INTO devices`).
		WithArgs(pgxmock.AnyArg(), userID, d.DeviceID, d.Platform, d.PushToken, d.AppVersion, d.OSVersion, d.DeviceModel).
		WillReturnRows(pgxmock.NewRows(deviceRows).
			AddRow(rowID, userID, d.DeviceID, d.Platform, d.PushToken, d.AppVersion, d.OSVersion, d.DeviceModel, true, now, now))

	dev, err := r.Upsert(ctx, userID, d)
	require.NoError(t, err)
	require.Equal(t, rowID, dev.ID)
	require.True(t, dev.Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeviceRepo_GetByDeviceID_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewDeviceRepo(db)
	ctx := context.Background()
	userID := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`FROM devices WHERE user_id=\$1 AND device_id=\$2`).
		WithArgs(userID, "nope").
		WillReturnError(pgx.ErrNoRows)
	_, err := r.GetByDeviceID(ctx, userID, "nope")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDeviceRepo_ListActive_Order(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewDeviceRepo(db)
	ctx := context.Background()
	userID := uuid.Must(uuid.NewV4())
	now := time.Now()

	mock.ExpectQuery(`WHERE user_id=\$1 AND is_active`).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows(deviceRows).
			AddRow(uuid.Must(uuid.NewV4()), userID, "new", model.PlatformIOS, "", "", "", "", true, now, now).
			AddRow(uuid.Must(uuid.NewV4()), userID, "old", model.PlatformAndroid, "", "", "", "", true, now.Add(-time.Hour), now))

	devs, err := r.ListActive(ctx, userID)
	require.NoError(t, err)
	require.Len(t, devs, 2)
	require.Equal(t, "new", devs[0].DeviceID)
}

func TestDeviceRepo_Deactivate(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewDeviceRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`UPDATE devices SET is_active=false WHERE id=\$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.Deactivate(ctx, id))

	mock.ExpectExec(`UPDATE devices SET is_active=false WHERE id=\$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.Deactivate(ctx, id), errs.ErrNotFound)
}

func TestDeviceRepo_UpdatePushToken(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewDeviceRepo(db)
	ctx := context.Background()
	userID := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`UPDATE devices SET push_token=\$3, last_seen=now\(\) WHERE user_id=\$1 AND device_id=\$2`).
		WithArgs(userID, "dev-1", "fcm-token").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.UpdatePushToken(ctx, userID, "dev-1", "fcm-token"))

	mock.ExpectExec(`UPDATE devices SET push_token=\$3, last_seen=now\(\) WHERE user_id=\$1 AND device_id=\$2`).
		WithArgs(userID, "ghost", "fcm-token").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.UpdatePushToken(ctx, userID, "ghost", "fcm-token"), errs.ErrNotFound)
}
