package repository

import (
	"context"
	"time"

	"github.com/danskode/mulle-i-hulen/internal/domain"
)

// UserRepository persists club member credentials. Each method is a single
// atomic record operation; a missing record is reported as ErrNotFound, not
// an exceptional failure.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	// GetUserByResetToken matches only tokens whose stored expiry is
	// strictly after now.
	GetUserByResetToken(ctx context.Context, token string, now time.Time) (*domain.User, error)
	// ClearFirstLogin flips the first-login flag off.
	ClearFirstLogin(ctx context.Context, id string) error
	// SetResetToken stores a fresh token and expiry, replacing any
	// outstanding one (last writer wins).
	SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error
	// UpdatePasswordAndClearReset writes the new hash and clears the reset
	// token in one conditional update: it succeeds only if the stored token
	// still equals token and is unexpired at now, so two racing consumes
	// cannot both win. A lost race reports ErrNotFound.
	UpdatePasswordAndClearReset(ctx context.Context, id string, hash []byte, token string, now time.Time) error
}
