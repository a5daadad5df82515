// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/unityaid/mobile-sync/internal/model"
)

// UserRepository is the identity store consumed by this subsystem. Identity
// is read-only here except for the token epoch.
type UserRepository interface {
	// GetByID loads a user with its assigned site ids.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByEmail loads a user by email for authentication.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// BumpTokenEpoch atomically increments and returns the user's token
	// epoch, invalidating every previously issued access credential.
	BumpTokenEpoch(ctx context.Context, id uuid.UUID) (int64, error)
}
