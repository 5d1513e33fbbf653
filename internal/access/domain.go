package access

import (
	"errors"
	"strings"
	"time"
)

// Role is one of the fixed school roles.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleTeacher Role = "TEACHER"
	RoleParent  Role = "PARENT"
)

// ErrUnknownRole is returned when a role string is outside the fixed set.
var ErrUnknownRole = errors.New("access: unknown role")

// ParseRole normalises raw into a Role.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleTeacher:
		return RoleTeacher, nil
	case RoleParent:
		return RoleParent, nil
	}
	return "", ErrUnknownRole
}

// Valid reports whether r belongs to the fixed set.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleParent:
		return true
	}
	return false
}

// SessionClaim is the decoded payload of a session token.
type SessionClaim struct {
	UserID string
	Role   Role
	// PreviousRole is the role the session was issued under. When set, a
	// different live role invalidates the session.
	PreviousRole Role
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// FailureKind classifies why a token could not be turned into a claim.
type FailureKind string

const (
	FailureNoSession      FailureKind = "NO_SESSION"
	FailureInvalidSession FailureKind = "INVALID_SESSION"
)

// VerificationFailure is returned by a TokenVerifier instead of a claim. It
// carries no cause: expired, malformed and tampered tokens look the same.
type VerificationFailure struct {
	Kind FailureKind
}

func (f *VerificationFailure) Error() string {
	if f == nil {
		return "access: verification failed"
	}
	return "access: " + strings.ToLower(string(f.Kind))
}

// Outcome is the terminal state of a single access decision.
type Outcome string

const (
	OutcomeAllow                Outcome = "ALLOW"
	OutcomeDenyNoSession        Outcome = "DENY_NO_SESSION"
	OutcomeDenyInvalidSession   Outcome = "DENY_INVALID_SESSION"
	OutcomeDenyRoleChanged      Outcome = "DENY_ROLE_CHANGED"
	OutcomeDenyInsufficientRole Outcome = "DENY_INSUFFICIENT_ROLE"
)

// Allowed reports whether the outcome lets the request through.
func (o Outcome) Allowed() bool {
	return o == OutcomeAllow
}

// Decision is computed once per request and consumed by the audit logger and
// the response shaper.
type Decision struct {
	Outcome   Outcome
	UserID    string
	RouteID   string
	Protected bool
	Timestamp time.Time
	Claim     *SessionClaim
}

// Trigger tells the audit logger which flow produced a decision.
type Trigger int

const (
	// TriggerGate is a regular gated request.
	TriggerGate Trigger = iota
	// TriggerSignIn is the initial authentication check.
	TriggerSignIn
	// TriggerSignOut is an explicit sign-out.
	TriggerSignOut
)

// RequestMeta carries request attributes worth keeping in the audit trail.
type RequestMeta struct {
	IPAddress string
	UserAgent string
	Method    string
	RequestID string
	Trigger   Trigger
}
