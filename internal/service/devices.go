// Package service contains application services: sessions, devices and sync.
package service

import (
	"context"
	"fmt"

	"github.com/unityaid/mobile-sync/internal/errs"
	"github.com/unityaid/mobile-sync/internal/model"
	"github.com/unityaid/mobile-sync/internal/repository"
)

// DeviceRegistry tracks a user's mobile devices and enforces the
// concurrent-device bound.
type DeviceRegistry interface {
	// RegisterOrUpdate upserts the (user, device_id) row and applies the
	// device cap.
	RegisterOrUpdate(ctx context.Context, user *model.User, d model.DeviceDescriptor) (*model.Device, error)
	// ListDevices returns the user's active devices, most recent first.
	ListDevices(ctx context.Context, user *model.User) ([]model.Device, error)
	// UpdatePushToken replaces the push notification token on one device.
	UpdatePushToken(ctx context.Context, user *model.User, deviceID, pushToken string) error
}

type DeviceRegistryImpl struct {
	devices    repository.DeviceRepository
	maxDevices int
}

// NewDeviceRegistry constructs a DeviceRegistry with the configured cap.
func NewDeviceRegistry(devices repository.DeviceRepository, maxDevices int) *DeviceRegistryImpl {
	if maxDevices <= 0 {
		maxDevices = 5
	}
	return &DeviceRegistryImpl{devices: devices, maxDevices: maxDevices}
}

// RegisterOrUpdate validates the descriptor, upserts atomically, and evicts
// the least-recently-seen active devices when the cap is exceeded. The just
// registered device is never the eviction victim.
func (s *DeviceRegistryImpl) RegisterOrUpdate(ctx context.Context, user *model.User, d model.DeviceDescriptor) (*model.Device, error) {
	if d.DeviceID == "" {
		return nil, fmt.Errorf("%w: empty device_id", errs.ErrValidation)
	}
	if !d.Platform.Valid() {
		return nil, fmt.Errorf("%w: unsupported platform %q", errs.ErrValidation, d.Platform)
	}

	dev, err := s.devices.Upsert(ctx, user.ID, d)
	if err != nil {
		return nil, fmt.Errorf("device upsert: %w", err)
	}

	active, err := s.devices.ListActive(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("device list: %w", err)
	}
	// active is ordered last_seen DESC; everything past the cap goes.
	for i := s.maxDevices; i < len(active); i++ {
		if active[i].ID == dev.ID {
			continue
		}
		if err := s.devices.Deactivate(ctx, active[i].ID); err != nil {
			return nil, fmt.Errorf("device evict: %w", err)
		}
	}
	return dev, nil
}

// ListDevices returns the user's active devices.
func (s *DeviceRegistryImpl) ListDevices(ctx context.Context, user *model.User) ([]model.Device, error) {
	return s.devices.ListActive(ctx, user.ID)
}

// UpdatePushToken stores a new push token for the (user, device_id) row.
func (s *DeviceRegistryImpl) UpdatePushToken(ctx context.Context, user *model.User, deviceID, pushToken string) error {
	if deviceID == "" || pushToken == "" {
		return fmt.Errorf("%w: device_id and push_token required", errs.ErrValidation)
	}
	return s.devices.UpdatePushToken(ctx, user.ID, deviceID, pushToken)
}
