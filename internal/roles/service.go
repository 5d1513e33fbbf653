package roles

import (
	"context"
	"log/slog"

	"github.com/odyssey-school/odyssey-school/internal/access"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	CurrentRole(ctx context.Context, userID string) (access.Role, error)
	UpdateRole(ctx context.Context, userID string, role access.Role) error
}

// Invalidator drops cached role data for a user.
type Invalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// Service handles role business logic.
type Service struct {
	repo   RepositoryPort
	cache  Invalidator
	logger *slog.Logger
}

// NewService builds Service instance. cache may be nil.
func NewService(repo RepositoryPort, cache Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// CurrentRole returns the persisted role.
func (s *Service) CurrentRole(ctx context.Context, userID string) (access.Role, error) {
	return s.repo.CurrentRole(ctx, userID)
}

// ChangeRole persists a new role. Sessions issued under the old role are
// rejected by the gate from the next request on, once the cache entry is gone.
func (s *Service) ChangeRole(ctx context.Context, userID string, role access.Role) (previous access.Role, err error) {
	previous, err = s.repo.CurrentRole(ctx, userID)
	if err != nil {
		return "", err
	}
	if previous == role {
		return previous, nil
	}
	if err := s.repo.UpdateRole(ctx, userID, role); err != nil {
		return "", err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, userID); err != nil {
			s.logger.Warn("role cache invalidate", slog.String("user_id", userID), slog.Any("error", err))
		}
	}
	s.logger.Info("role changed", slog.String("user_id", userID), slog.String("from", string(previous)), slog.String("to", string(role)))
	return previous, nil
}
