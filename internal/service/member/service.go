// Package member implements member listing and creation for the club.
package member

import (
	"context"
	"errors"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/danskode/mulle-i-hulen/internal/apperror"
	"github.com/danskode/mulle-i-hulen/internal/domain"
	"github.com/danskode/mulle-i-hulen/internal/repository"
	"github.com/danskode/mulle-i-hulen/internal/validate"
	"github.com/danskode/mulle-i-hulen/pkg/config"
	"github.com/danskode/mulle-i-hulen/pkg/crypto"
)

// Service handles member administration.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
	cfg    config.APIConfig
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{users: users, logger: logger, cfg: cfg}
}

// Member is the client-facing view of a user record. Password hashes and
// reset tokens never leave the repository layer.
type Member struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateInput carries the fields for a new member.
type CreateInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// List returns all members, newest first.
func (s Service) List(ctx context.Context) ([]Member, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		s.logger.Error("member listing failed", "error", err)
		return nil, apperror.Internal()
	}
	members := make([]Member, 0, len(users))
	for _, u := range users {
		members = append(members, Member{
			ID:        u.ID,
			Username:  u.Username,
			Email:     u.Email,
			Role:      u.Role,
			CreatedAt: u.CreatedAt,
		})
	}
	return members, nil
}

// Create registers a new member with a hashed password and the first-login
// flag set, so their first successful login triggers the welcome email.
func (s Service) Create(ctx context.Context, input CreateInput) (*Member, error) {
	if msg, ok := validate.Username(input.Username); !ok {
		return nil, apperror.New(apperror.KindInvalidInput, msg)
	}
	if !validate.Email(input.Email) {
		return nil, apperror.New(apperror.KindInvalidInput, "invalid email format")
	}
	if msg, ok := validate.Password(input.Password); !ok {
		return nil, apperror.New(apperror.KindInvalidInput, msg)
	}
	if !domain.ValidRole(input.Role) {
		return nil, apperror.New(apperror.KindInvalidInput, "invalid role, choose one of: ADMIN, USER, PROSPECT")
	}

	hash, err := crypto.HashPassword(input.Password, s.cfg.BcryptCost)
	if err != nil {
		s.logger.Error("password hashing failed", "error", err)
		return nil, apperror.Internal()
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     input.Username,
		PasswordHash: hash,
		Email:        input.Email,
		Role:         input.Role,
		FirstLogin:   true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperror.New(apperror.KindConflict, "username or email already in use")
		}
		s.logger.Error("member creation failed", "error", err)
		return nil, apperror.Internal()
	}

	s.logger.Info("member created", "username", user.Username, "role", user.Role)
	return &Member{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}, nil
}
