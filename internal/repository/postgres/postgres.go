// Package postgres implements the user repository on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/danskode/mulle-i-hulen/internal/domain"
	"github.com/danskode/mulle-i-hulen/internal/repository"
)

// DB is the subset of pgxpool.Pool the repository needs. Both
// *pgxpool.Pool and pgxmock pools satisfy it.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements repository.UserRepository on PostgreSQL.
type Repository struct {
	db DB
}

// New constructs a Repository.
func New(db DB) *Repository {
	return &Repository{db: db}
}

var _ repository.UserRepository = (*Repository)(nil)

const userColumns = `id, username, password_hash, email, role, first_login, reset_token, reset_token_expires, created_at`

// CreateUser inserts a member. Unique collisions on username or email are
// reported as repository.ErrDuplicate.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, username, password_hash, email, role, first_login, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	var email *string
	if user.Email != "" {
		email = &user.Email
	}
	_, err := r.db.Exec(ctx, query, user.ID, user.Username, user.PasswordHash, email, user.Role, user.FirstLogin, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return repository.ErrDuplicate
		}
		return err
	}
	return nil
}

// ListUsers returns all members, newest first.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// GetUserByUsername fetches a member by username.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.getUser(ctx, query, username)
}

// GetUserByEmail fetches a member by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getUser(ctx, query, email)
}

// GetUserByResetToken fetches the member holding an unexpired reset token.
// Expiry is compared against the stored timestamp, never recomputed.
func (r *Repository) GetUserByResetToken(ctx context.Context, token string, now time.Time) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE reset_token = $1 AND reset_token_expires > $2`
	return r.getUser(ctx, query, token, now)
}

// ClearFirstLogin flips the first-login flag off.
func (r *Repository) ClearFirstLogin(ctx context.Context, id string) error {
	const query = `UPDATE users SET first_login = FALSE WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetResetToken stores a reset token and its expiry, replacing any
// outstanding token for the member.
func (r *Repository) SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	const query = `UPDATE users SET reset_token = $1, reset_token_expires = $2 WHERE id = $3`
	tag, err := r.db.Exec(ctx, query, token, expiresAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpdatePasswordAndClearReset sets the new hash and clears both reset
// fields in a single statement, conditional on the stored token still
// matching and being unexpired. Zero rows affected means the token was
// already consumed, replaced or expired.
func (r *Repository) UpdatePasswordAndClearReset(ctx context.Context, id string, hash []byte, token string, now time.Time) error {
	const query = `UPDATE users SET password_hash = $1, reset_token = NULL, reset_token_expires = NULL
		WHERE id = $2 AND reset_token = $3 AND reset_token_expires > $4`
	tag, err := r.db.Exec(ctx, query, hash, id, token, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *Repository) getUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	row := r.db.QueryRow(ctx, query, args...)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var email *string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &email, &u.Role, &u.FirstLogin, &u.ResetToken, &u.ResetTokenExpires, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if email != nil {
		u.Email = *email
	}
	return &u, nil
}
