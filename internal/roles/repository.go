package roles

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-school/odyssey-school/internal/access"
	"github.com/odyssey-school/odyssey-school/internal/shared"
)

// ErrInvalidUserID is returned for identifiers that are not positive integers.
var ErrInvalidUserID = errors.New("roles: invalid user id")

// DBTX is the subset of pgxpool.Pool used by Repository.
type DBTX interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository reads and writes the role column of users.
type Repository struct {
	db DBTX
}

// NewRepository constructs a repository.
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

// CurrentRole returns the persisted role for userID.
func (r *Repository) CurrentRole(ctx context.Context, userID string) (access.Role, error) {
	id, err := parseUserID(userID)
	if err != nil {
		return "", err
	}
	var raw string
	if err := r.db.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, id).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrNotFound
		}
		return "", fmt.Errorf("roles: current role: %w", err)
	}
	return access.ParseRole(raw)
}

// UpdateRole persists role for userID.
func (r *Repository) UpdateRole(ctx context.Context, userID string, role access.Role) error {
	id, err := parseUserID(userID)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`, id, string(role))
	if err != nil {
		return fmt.Errorf("roles: update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func parseUserID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w %q", ErrInvalidUserID, raw)
	}
	return id, nil
}
