package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-school/odyssey-school/internal/access"
)

// EventType is the persisted kind of an access log entry.
type EventType string

const (
	EventLogin              EventType = "login"
	EventAccessGranted      EventType = "access_granted"
	EventAccessDenied       EventType = "access_denied"
	EventLogout             EventType = "logout"
	EventSessionInvalidated EventType = "session_invalidated"
)

// AnonymousUser is recorded when a decision has no resolvable user.
const AnonymousUser = "anonymous"

// Entry is one append-only row of the access log.
type Entry struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	RouteID   string         `json:"route_id"`
	EventType EventType      `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	IPAddress string         `json:"ip_address,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// EventTypes maps a decision to the events it produces, in write order.
// Public gate traffic produces none.
func EventTypes(d access.Decision, trigger access.Trigger) []EventType {
	if !d.Protected && trigger == access.TriggerGate {
		return nil
	}
	switch d.Outcome {
	case access.OutcomeAllow:
		switch trigger {
		case access.TriggerSignIn:
			return []EventType{EventLogin}
		case access.TriggerSignOut:
			return []EventType{EventLogout}
		}
		return []EventType{EventAccessGranted}
	case access.OutcomeDenyRoleChanged:
		return []EventType{EventSessionInvalidated, EventLogout}
	case access.OutcomeDenyNoSession, access.OutcomeDenyInvalidSession, access.OutcomeDenyInsufficientRole:
		return []EventType{EventAccessDenied}
	}
	return nil
}

// Entries projects a decision into access log entries.
func Entries(d access.Decision, meta access.RequestMeta) []Entry {
	types := EventTypes(d, meta.Trigger)
	if len(types) == 0 {
		return nil
	}
	userID := d.UserID
	if userID == "" {
		userID = AnonymousUser
	}
	ts := d.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	entries := make([]Entry, 0, len(types))
	for _, et := range types {
		entries = append(entries, Entry{
			ID:        uuid.NewString(),
			UserID:    userID,
			RouteID:   d.RouteID,
			EventType: et,
			Timestamp: ts.UTC(),
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
			Metadata:  metadataFor(d, meta),
		})
	}
	return entries
}

func metadataFor(d access.Decision, meta access.RequestMeta) map[string]any {
	md := map[string]any{"outcome": string(d.Outcome)}
	if meta.Method != "" {
		md["method"] = meta.Method
	}
	if meta.RequestID != "" {
		md["request_id"] = meta.RequestID
	}
	if d.Claim != nil {
		md["role"] = string(d.Claim.Role)
		if d.Claim.PreviousRole != "" {
			md["previous_role"] = string(d.Claim.PreviousRole)
		}
	}
	return md
}
