package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	pkgcrypto "github.com/unityaid/mobile-sync/internal/crypto"
	"github.com/unityaid/mobile-sync/internal/errs"
	"github.com/unityaid/mobile-sync/internal/model"
	"github.com/unityaid/mobile-sync/internal/repository"
)

// SessionManager issues, rotates and revokes mobile credentials.
type SessionManager interface {
	// Login authenticates, registers the device and mints both credentials.
	Login(ctx context.Context, email, password string, d model.DeviceDescriptor) (model.Tokens, *model.User, *model.Device, error)
	// Refresh rotates a refresh credential presented by its bound device.
	Refresh(ctx context.Context, refreshValue, deviceID string) (model.Tokens, error)
	// Logout invalidates the access credential and revokes refresh
	// credentials for the given device, or all devices when deviceID is "".
	Logout(ctx context.Context, user *model.User, deviceID string) error
	// VerifyAccess validates a bearer token and returns its user. Stale
	// epochs (superseded by a newer login/refresh/logout) are rejected.
	VerifyAccess(ctx context.Context, token string) (*model.User, error)
}

// Claims carries the user id, role and token epoch inside the access JWT.
type Claims struct {
	Role  model.Role `json:"role"`
	Epoch int64      `json:"epoch"`
	jwt.RegisteredClaims
}

type SessionManagerImpl struct {
	users      repository.UserRepository
	tokens     repository.TokenRepository
	devices    repository.DeviceRepository
	registry   DeviceRegistry
	signKey    []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewSessionManager constructs a SessionManager with required dependencies.
func NewSessionManager(
	users repository.UserRepository,
	tokens repository.TokenRepository,
	devices repository.DeviceRepository,
	registry DeviceRegistry,
	signKey []byte,
	accessTTL, refreshTTL time.Duration,
) *SessionManagerImpl {
	return &SessionManagerImpl{
		users: users, tokens: tokens, devices: devices, registry: registry,
		signKey: signKey, accessTTL: accessTTL, refreshTTL: refreshTTL,
	}
}

// Login authenticates against the identity store and sets up the session.
func (s *SessionManagerImpl) Login(ctx context.Context, email, password string, d model.DeviceDescriptor) (model.Tokens, *model.User, *model.Device, error) {
	if email == "" || password == "" {
		return model.Tokens{}, nil, nil, fmt.Errorf("%w: empty email/password", errs.ErrValidation)
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			// hide existence of the account
			return model.Tokens{}, nil, nil, errs.ErrInvalidCredentials
		}
		return model.Tokens{}, nil, nil, err
	}
	if !pkgcrypto.VerifyPassword([]byte(password), u.SaltAuth, u.PwdHash) {
		return model.Tokens{}, nil, nil, errs.ErrInvalidCredentials
	}
	if !u.Verified {
		return model.Tokens{}, nil, nil, errs.ErrNotVerified
	}
	if !u.Active {
		return model.Tokens{}, nil, nil, errs.ErrAccountDisabled
	}

	dev, err := s.registry.RegisterOrUpdate(ctx, u, d)
	if err != nil {
		return model.Tokens{}, nil, nil, err
	}

	tokens, err := s.mint(ctx, u, dev)
	if err != nil {
		return model.Tokens{}, nil, nil, err
	}
	return tokens, u, dev, nil
}

// Refresh rotates the presented refresh credential. Expiry, revocation and
// device binding are all verified; rotation itself is a compare-and-swap so a
// concurrent replay of the same value gets ErrRevoked.
func (s *SessionManagerImpl) Refresh(ctx context.Context, refreshValue, deviceID string) (model.Tokens, error) {
	if refreshValue == "" || deviceID == "" {
		return model.Tokens{}, fmt.Errorf("%w: refresh_token and device_id required", errs.ErrValidation)
	}

	t, err := s.tokens.GetByDigest(ctx, pkgcrypto.DigestToken(refreshValue))
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Tokens{}, errs.ErrUnauthorized
		}
		return model.Tokens{}, err
	}

	dev, err := s.devices.GetByID(ctx, t.DeviceID)
	if err != nil {
		return model.Tokens{}, err
	}
	if dev.DeviceID != deviceID {
		return model.Tokens{}, errs.ErrDeviceMismatch
	}
	if t.Revoked {
		return model.Tokens{}, errs.ErrRevoked
	}
	if t.Expired(time.Now()) {
		return model.Tokens{}, errs.ErrExpired
	}

	// CAS: exactly one concurrent caller wins this flip.
	if err := s.tokens.Consume(ctx, t.ID); err != nil {
		return model.Tokens{}, err
	}

	u, err := s.users.GetByID(ctx, t.UserID)
	if err != nil {
		return model.Tokens{}, err
	}
	if err := s.devices.TouchLastSeen(ctx, dev.ID); err != nil {
		return model.Tokens{}, err
	}
	return s.mint(ctx, u, dev)
}

// Logout invalidates the user's access credential and revokes refresh tokens.
func (s *SessionManagerImpl) Logout(ctx context.Context, user *model.User, deviceID string) error {
	if _, err := s.users.BumpTokenEpoch(ctx, user.ID); err != nil {
		return err
	}
	if deviceID == "" {
		return s.tokens.RevokeAll(ctx, user.ID)
	}
	dev, err := s.devices.GetByDeviceID(ctx, user.ID, deviceID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			// unknown device: all access credentials are gone already
			return nil
		}
		return err
	}
	return s.tokens.RevokeForDevice(ctx, user.ID, dev.ID)
}

// VerifyAccess parses and validates an access JWT and loads its user.
func (s *SessionManagerImpl) VerifyAccess(ctx context.Context, token string) (*model.User, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signKey, nil
	}, jwt.WithLeeway(30*time.Second))
	if err != nil || !parsed.Valid {
		return nil, errs.ErrUnauthorized
	}

	uid, err := uuid.FromString(claims.Subject)
	if err != nil {
		return nil, errs.ErrUnauthorized
	}
	u, err := s.users.GetByID(ctx, uid)
	if err != nil {
		return nil, errs.ErrUnauthorized
	}
	if !u.Active || u.TokenEpoch != claims.Epoch {
		return nil, errs.ErrUnauthorized
	}
	return u, nil
}

// mint bumps the token epoch and issues a fresh access/refresh pair. Bumping
// on every issue keeps exactly one access credential live per user.
func (s *SessionManagerImpl) mint(ctx context.Context, u *model.User, dev *model.Device) (model.Tokens, error) {
	epoch, err := s.users.BumpTokenEpoch(ctx, u.ID)
	if err != nil {
		return model.Tokens{}, err
	}
	u.TokenEpoch = epoch

	access, exp, err := s.issueAccessToken(u)
	if err != nil {
		return model.Tokens{}, err
	}

	value, err := pkgcrypto.NewTokenValue()
	if err != nil {
		return model.Tokens{}, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.Tokens{}, err
	}
	rt := &model.RefreshToken{
		ID:        id,
		UserID:    u.ID,
		DeviceID:  dev.ID,
		TokenHash: pkgcrypto.DigestToken(value),
		ExpiresAt: time.Now().Add(s.refreshTTL),
	}
	if err := s.tokens.Create(ctx, rt); err != nil {
		return model.Tokens{}, err
	}

	return model.Tokens{AccessToken: access, RefreshToken: value, ExpiresAt: exp}, nil
}

// issueAccessToken creates a signed HS256 JWT for the given user.
func (s *SessionManagerImpl) issueAccessToken(u *model.User) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.accessTTL)
	claims := Claims{
		Role:  u.Role,
		Epoch: u.TokenEpoch,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}
