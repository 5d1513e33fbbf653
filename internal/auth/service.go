package auth

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-school/odyssey-school/internal/access"
	"github.com/odyssey-school/odyssey-school/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	issuer *Issuer
}

// NewService constructs a new Service.
func NewService(repo Repository, issuer *Issuer) *Service {
	return &Service{repo: repo, issuer: issuer}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// SignIn authenticates and issues a session token. The token records the role
// it was issued under so a later server-side role change invalidates it.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, access.SessionClaim, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return "", access.SessionClaim{}, err
	}
	return s.issuer.Issue(strconv.FormatInt(user.ID, 10), user.Role, user.Role)
}
