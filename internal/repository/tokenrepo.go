package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/unityaid/mobile-sync/internal/model"
)

// TokenRepository stores refresh credentials. Values never hit the database;
// only their SHA-256 digests do.
type TokenRepository interface {
	// Create persists a new refresh token row.
	Create(ctx context.Context, t *model.RefreshToken) error
	// GetByDigest loads a token by the digest of its presented value.
	GetByDigest(ctx context.Context, digest string) (*model.RefreshToken, error)
	// Consume flips the revoked flag iff it is still clear. It returns
	// ErrRevoked when another caller won the race: rotation is
	// first-consume-wins.
	Consume(ctx context.Context, id uuid.UUID) error
	// RevokeForDevice revokes all live tokens bound to one device.
	RevokeForDevice(ctx context.Context, userID, deviceRowID uuid.UUID) error
	// RevokeAll revokes all live tokens of a user across devices.
	RevokeAll(ctx context.Context, userID uuid.UUID) error
}
