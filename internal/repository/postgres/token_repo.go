package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/unityaid/mobile-sync/internal/errs"
	"github.com/unityaid/mobile-sync/internal/model"
)

// TokenRepo implements TokenRepository using PostgreSQL.
type TokenRepo struct{ db *DB }

// NewTokenRepo constructs a refresh token repository.
func NewTokenRepo(db *DB) *TokenRepo { return &TokenRepo{db: db} }

// Create inserts a new refresh token row.
func (r *TokenRepo) Create(ctx context.Context, t *model.RefreshToken) error {
	const q = `
INSERT INTO refresh_tokens (id, user_id, device_id, token_hash, expires_at, revoked)
VALUES ($1,$2,$3,$4,$5,false)`
	_, err := r.db.Pool.Exec(ctx, q, t.ID, t.UserID, t.DeviceID, t.TokenHash, t.ExpiresAt)
	return err
}

// GetByDigest loads a token row by value digest.
func (r *TokenRepo) GetByDigest(ctx context.Context, digest string) (*model.RefreshToken, error) {
	const q = `
SELECT id, user_id, device_id, token_hash, expires_at, revoked, created_at
FROM refresh_tokens WHERE token_hash=$1`
	var t model.RefreshToken
	err := r.db.Pool.QueryRow(ctx, q, digest).Scan(
		&t.ID, &t.UserID, &t.DeviceID, &t.TokenHash, &t.ExpiresAt, &t.Revoked, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Consume revokes the token iff it is still live. The WHERE clause is the
// compare-and-swap: under concurrent replays of the same value exactly one
// caller sees RowsAffected()==1, every other caller gets ErrRevoked.
func (r *TokenRepo) Consume(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE refresh_tokens SET revoked=true WHERE id=$1 AND NOT revoked`
	tag, err := r.db.Pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrRevoked
	}
	return nil
}

// RevokeForDevice revokes live tokens bound to one device.
func (r *TokenRepo) RevokeForDevice(ctx context.Context, userID, deviceRowID uuid.UUID) error {
	const q = `UPDATE refresh_tokens SET revoked=true WHERE user_id=$1 AND device_id=$2 AND NOT revoked`
	_, err := r.db.Pool.Exec(ctx, q, userID, deviceRowID)
	return err
}

// RevokeAll revokes every live token of the user.
func (r *TokenRepo) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	const q = `UPDATE refresh_tokens SET revoked=true WHERE user_id=$1 AND NOT revoked`
	_, err := r.db.Pool.Exec(ctx, q, userID)
	return err
}
