package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/unityaid/mobile-sync/internal/errs"
	"github.com/unityaid/mobile-sync/internal/model"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userCols = `id, email, username, pwd_hash, salt_auth, role, organization,
phone_number, preferred_language, is_verified, is_active, token_epoch,
created_at, updated_at`

func (r *UserRepo) scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PwdHash, &u.SaltAuth,
		&u.Role, &u.Organization, &u.PhoneNumber, &u.PreferredLang,
		&u.Verified, &u.Active, &u.TokenEpoch, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// loadAssignedSites fills the user's assigned site id set.
func (r *UserRepo) loadAssignedSites(ctx context.Context, u *model.User) error {
	const q = `SELECT site_id FROM user_assigned_sites WHERE user_id=$1`
	rows, err := r.db.Pool.Query(ctx, q, u.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return err
		}
		u.AssignedSiteIDs = append(u.AssignedSiteIDs, id)
	}
	return rows.Err()
}

// GetByID selects a user by id, including assigned sites.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, err := r.scanUser(r.db.Pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadAssignedSites(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// GetByEmail selects a user by email, including assigned sites.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := r.scanUser(r.db.Pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email=$1`, email))
	if err != nil {
		return nil, err
	}
	if err := r.loadAssignedSites(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// BumpTokenEpoch increments the epoch in one statement and returns the new value.
func (r *UserRepo) BumpTokenEpoch(ctx context.Context, id uuid.UUID) (int64, error) {
	const q = `UPDATE users SET token_epoch = token_epoch + 1 WHERE id=$1 RETURNING token_epoch`
	var epoch int64
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&epoch); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, errs.ErrNotFound
		}
		return 0, err
	}
	return epoch, nil
}
