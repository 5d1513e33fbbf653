package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/odyssey-school/odyssey-school/internal/access"
	"github.com/odyssey-school/odyssey-school/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// RowQuerier is the subset of pgxpool.Pool used by PGRepository.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db RowQuerier
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(db RowQuerier) *PGRepository {
	return &PGRepository{db: db}
}

const findUserByEmail = `SELECT id, email, password_hash, role, is_active, created_at, updated_at
FROM users WHERE lower(email) = lower($1)`

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var (
		user      User
		role      string
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	err := r.db.QueryRow(ctx, findUserByEmail, email).
		Scan(&user.ID, &user.Email, &user.PasswordHash, &role, &user.IsActive, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("auth: find user: %w", err)
	}
	parsed, err := access.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("auth: user %d: %w", user.ID, err)
	}
	user.Role = parsed
	user.CreatedAt = safeTime(createdAt)
	user.UpdatedAt = safeTime(updatedAt)
	return &user, nil
}

func safeTime(ts pgtype.Timestamptz) time.Time {
	if !ts.Valid {
		return time.Time{}
	}
	return ts.Time
}

var _ Repository = (*PGRepository)(nil)
