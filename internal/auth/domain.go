package auth

import (
	"time"

	"github.com/odyssey-school/odyssey-school/internal/access"
)

// User represents an account able to sign in.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         access.Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HomePath is where a freshly signed-in user lands.
func HomePath(role access.Role) string {
	switch role {
	case access.RoleAdmin:
		return "/admin/dashboard"
	case access.RoleTeacher:
		return "/teacher/dashboard"
	case access.RoleParent:
		return "/parent/dashboard"
	}
	return "/dashboard"
}
