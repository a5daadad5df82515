package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/unityaid/mobile-sync/internal/model"
)

// DeviceRepository tracks a user's registered mobile devices.
type DeviceRepository interface {
	// Upsert inserts or refreshes the (user, device_id) row in one atomic
	// statement and returns the stored device.
	Upsert(ctx context.Context, userID uuid.UUID, d model.DeviceDescriptor) (*model.Device, error)
	// GetByID loads a device by its row id.
	GetByID(ctx context.Context, deviceRowID uuid.UUID) (*model.Device, error)
	// GetByDeviceID loads the (user, device_id) row.
	GetByDeviceID(ctx context.Context, userID uuid.UUID, deviceID string) (*model.Device, error)
	// ListActive returns the user's active devices, most recently seen first.
	ListActive(ctx context.Context, userID uuid.UUID) ([]model.Device, error)
	// Deactivate clears the active flag; devices are never hard-deleted.
	Deactivate(ctx context.Context, deviceRowID uuid.UUID) error
	// TouchLastSeen refreshes the liveness timestamp.
	TouchLastSeen(ctx context.Context, deviceRowID uuid.UUID) error
	// UpdatePushToken replaces the push token on one of the user's devices.
	UpdatePushToken(ctx context.Context, userID uuid.UUID, deviceID, pushToken string) error
}
