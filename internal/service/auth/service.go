// Package auth implements the credential workflows: login, password-reset
// request and password-reset consumption.
package auth

import (
	"context"
	"errors"
	"time"

	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/danskode/mulle-i-hulen/internal/apperror"
	"github.com/danskode/mulle-i-hulen/internal/domain"
	"github.com/danskode/mulle-i-hulen/internal/repository"
	"github.com/danskode/mulle-i-hulen/internal/service/mail"
	"github.com/danskode/mulle-i-hulen/internal/validate"
	"github.com/danskode/mulle-i-hulen/pkg/config"
	"github.com/danskode/mulle-i-hulen/pkg/crypto"
	jwtpkg "github.com/danskode/mulle-i-hulen/pkg/jwt"
)

// GenericResetMessage is returned for every well-formed reset request,
// whether or not the email belongs to a member. Response shape must not
// reveal account existence.
const GenericResetMessage = "if the email exists, a password reset link has been sent"

// sideEffectTimeout bounds the background email/flag work spawned by Login
// and RequestPasswordReset.
const sideEffectTimeout = 30 * time.Second

// Service orchestrates the credential workflows over the user repository,
// the password hasher, the token signer and the mailer.
type Service struct {
	users  repository.UserRepository
	mailer mail.Sender
	logger *slog.Logger
	cfg    config.APIConfig
}

// New constructs a Service.
func New(users repository.UserRepository, mailer mail.Sender, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{users: users, mailer: mailer, logger: logger, cfg: cfg}
}

// LoginResult is handed to the client on successful authentication.
type LoginResult struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Token    string `json:"token"`
}

// errInvalidCredentials is shared by the unknown-username and wrong-password
// paths so the two stay indistinguishable.
var errInvalidCredentials = apperror.New(apperror.KindInvalidCredentials, "wrong username or password")

// Login verifies the member's password and issues a session token. A first
// login additionally triggers the welcome email and clears the first-login
// flag, both best-effort in the background.
func (s Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if username == "" || password == "" {
		return nil, apperror.New(apperror.KindInvalidInput, "username and password are required")
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		s.logger.Error("user lookup failed", "error", err)
		return nil, apperror.Internal()
	}

	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, errInvalidCredentials
		}
		s.logger.Error("password verification failed", "user_id", user.ID, "error", err)
		return nil, apperror.Internal()
	}

	token, err := jwtpkg.Generate(user.Username, user.Role, s.cfg.JWTSecret, s.cfg.TokenTTL)
	if err != nil {
		s.logger.Error("session token signing failed", "user_id", user.ID, "error", err)
		return nil, apperror.Internal()
	}

	if user.FirstLogin {
		s.completeFirstLogin(user)
	}

	s.logger.Info("member logged in", "username", user.Username, "role", user.Role)
	return &LoginResult{Username: user.Username, Role: user.Role, Token: token}, nil
}

// completeFirstLogin sends the welcome email and clears the first-login
// flag. Neither outcome may affect the login response; failures are logged
// for later inspection.
func (s Service) completeFirstLogin(user *domain.User) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		if user.Email != "" {
			if err := s.mailer.SendWelcomeEmail(ctx, user.Username, user.Email); err != nil {
				s.logger.Error("welcome email failed", "username", user.Username, "error", err)
			}
		}
		if err := s.users.ClearFirstLogin(ctx, user.ID); err != nil {
			s.logger.Error("first-login flag clear failed", "user_id", user.ID, "error", err)
		}
	}()
}

// RequestPasswordReset stores a fresh reset token for the member behind the
// email, if one exists, and triggers the reset email. The returned message
// is identical whether or not the email is known.
func (s Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if !validate.Email(email) {
		return "", apperror.New(apperror.KindInvalidInput, "invalid email format")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return GenericResetMessage, nil
		}
		s.logger.Error("user lookup by email failed", "error", err)
		return "", apperror.Internal()
	}

	token, err := crypto.GenerateResetToken()
	if err != nil {
		s.logger.Error("reset token generation failed", "error", err)
		return "", apperror.Internal()
	}
	expiresAt := time.Now().Add(s.cfg.ResetTokenTTL)

	if err := s.users.SetResetToken(ctx, user.ID, token, expiresAt); err != nil {
		s.logger.Error("reset token persist failed", "user_id", user.ID, "error", err)
		return "", apperror.Internal()
	}

	s.sendResetEmail(user, token)
	return GenericResetMessage, nil
}

func (s Service) sendResetEmail(user *domain.User, token string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		if err := s.mailer.SendPasswordResetEmail(ctx, user.Username, user.Email, token); err != nil {
			s.logger.Error("reset email failed", "username", user.Username, "error", err)
		}
	}()
}

// ConsumePasswordReset redeems a reset token: the password update and the
// token clear happen in one conditional write, so a token can succeed at
// most once even when consumes race.
func (s Service) ConsumePasswordReset(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return apperror.New(apperror.KindInvalidInput, "token and new password are required")
	}
	if msg, ok := validate.Password(newPassword); !ok {
		return apperror.New(apperror.KindInvalidInput, msg)
	}

	now := time.Now()
	user, err := s.users.GetUserByResetToken(ctx, token, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.New(apperror.KindInvalidToken, "invalid or expired reset token")
		}
		s.logger.Error("reset token lookup failed", "error", err)
		return apperror.Internal()
	}

	hash, err := crypto.HashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		s.logger.Error("password hashing failed", "user_id", user.ID, "error", err)
		return apperror.Internal()
	}

	if err := s.users.UpdatePasswordAndClearReset(ctx, user.ID, hash, token, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Lost the race against another consume or a newer reset request.
			return apperror.New(apperror.KindInvalidToken, "invalid or expired reset token")
		}
		s.logger.Error("password update failed", "user_id", user.ID, "error", err)
		return apperror.Internal()
	}

	s.logger.Info("password reset completed", "username", user.Username)
	return nil
}
