package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-school/odyssey-school/internal/access"
	"github.com/odyssey-school/odyssey-school/internal/shared"
)

type memoryUsers map[string]*User

func (m memoryUsers) FindByEmail(ctx context.Context, email string) (*User, error) {
	user, ok := m[strings.ToLower(email)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return user, nil
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func schoolUsers(t *testing.T) memoryUsers {
	return memoryUsers{
		"admin@odyssey.local":   {ID: 1, Email: "admin@odyssey.local", PasswordHash: hashPassword(t, "admin12345"), Role: access.RoleAdmin, IsActive: true},
		"teacher@odyssey.local": {ID: 2, Email: "teacher@odyssey.local", PasswordHash: hashPassword(t, "teacher12345"), Role: access.RoleTeacher, IsActive: true},
		"former@odyssey.local":  {ID: 9, Email: "former@odyssey.local", PasswordHash: hashPassword(t, "former12345"), Role: access.RoleParent, IsActive: false},
	}
}

func newTestService(t *testing.T) *Service {
	issuer, _ := tokenPair(t, nil)
	return NewService(schoolUsers(t), issuer)
}

func TestSignInStampsLoginRole(t *testing.T) {
	svc := newTestService(t)

	token, claim, err := svc.SignIn(context.Background(), " teacher@odyssey.local ", "teacher12345")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "2", claim.UserID)
	assert.Equal(t, access.RoleTeacher, claim.Role)
	assert.Equal(t, access.RoleTeacher, claim.PreviousRole)
}

func TestSignInFailuresAreIndistinguishable(t *testing.T) {
	svc := newTestService(t)

	cases := []struct{ email, password string }{
		{"admin@odyssey.local", "wrong-password"},
		{"nobody@odyssey.local", "admin12345"},
		{"former@odyssey.local", "former12345"},
	}
	for _, tc := range cases {
		_, _, err := svc.SignIn(context.Background(), tc.email, tc.password)
		assert.ErrorIs(t, err, shared.ErrInvalidCredentials, tc.email)
	}
}
