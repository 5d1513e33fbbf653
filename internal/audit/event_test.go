package audit

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-school/odyssey-school/internal/access"
)

func TestEventTypesMapping(t *testing.T) {
	protected := func(o access.Outcome) access.Decision {
		return access.Decision{Outcome: o, Protected: true}
	}

	cases := []struct {
		name    string
		d       access.Decision
		trigger access.Trigger
		want    []EventType
	}{
		{"grant", protected(access.OutcomeAllow), access.TriggerGate, []EventType{EventAccessGranted}},
		{"login", protected(access.OutcomeAllow), access.TriggerSignIn, []EventType{EventLogin}},
		{"logout", protected(access.OutcomeAllow), access.TriggerSignOut, []EventType{EventLogout}},
		{"no session", protected(access.OutcomeDenyNoSession), access.TriggerGate, []EventType{EventAccessDenied}},
		{"invalid", protected(access.OutcomeDenyInvalidSession), access.TriggerGate, []EventType{EventAccessDenied}},
		{"failed login", protected(access.OutcomeDenyInvalidSession), access.TriggerSignIn, []EventType{EventAccessDenied}},
		{"insufficient", protected(access.OutcomeDenyInsufficientRole), access.TriggerGate, []EventType{EventAccessDenied}},
		{"role changed", protected(access.OutcomeDenyRoleChanged), access.TriggerGate, []EventType{EventSessionInvalidated, EventLogout}},
		{"public", access.Decision{Outcome: access.OutcomeAllow}, access.TriggerGate, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EventTypes(tc.d, tc.trigger))
		})
	}
}

func TestEntriesForAdminGrant(t *testing.T) {
	ts := time.Date(2026, 5, 1, 8, 30, 0, 0, time.FixedZone("WIB", 7*3600))
	claim := access.SessionClaim{UserID: "1", Role: access.RoleAdmin, PreviousRole: access.RoleAdmin}
	d := access.Decision{
		Outcome:   access.OutcomeAllow,
		UserID:    "1",
		RouteID:   "/admin/dashboard",
		Protected: true,
		Timestamp: ts,
		Claim:     &claim,
	}
	meta := access.RequestMeta{IPAddress: "10.0.0.1", UserAgent: "ua", Method: "GET", RequestID: "req-1"}

	entries := Entries(d, meta)
	require.Len(t, entries, 1)
	e := entries[0]
	_, err := uuid.Parse(e.ID)
	require.NoError(t, err)
	assert.Equal(t, "1", e.UserID)
	assert.Equal(t, "/admin/dashboard", e.RouteID)
	assert.Equal(t, EventAccessGranted, e.EventType)
	assert.True(t, e.Timestamp.Equal(ts))
	assert.Equal(t, time.UTC, e.Timestamp.Location())
	assert.Equal(t, "10.0.0.1", e.IPAddress)
	assert.Equal(t, "ALLOW", e.Metadata["outcome"])
	assert.Equal(t, "req-1", e.Metadata["request_id"])
	assert.Equal(t, "ADMIN", e.Metadata["role"])
}

func TestEntriesAnonymousDenial(t *testing.T) {
	d := access.Decision{Outcome: access.OutcomeDenyNoSession, RouteID: "/parent", Protected: true}

	entries := Entries(d, access.RequestMeta{})
	require.Len(t, entries, 1)
	assert.Equal(t, AnonymousUser, entries[0].UserID)
	assert.False(t, entries[0].Timestamp.IsZero())
	assert.NotContains(t, entries[0].Metadata, "role")
}

func TestEntriesRoleChangedProducesDistinctRows(t *testing.T) {
	claim := access.SessionClaim{UserID: "2", Role: access.RoleTeacher, PreviousRole: access.RoleTeacher}
	d := access.Decision{Outcome: access.OutcomeDenyRoleChanged, UserID: "2", RouteID: "/teacher", Protected: true, Timestamp: time.Now(), Claim: &claim}

	entries := Entries(d, access.RequestMeta{})
	require.Len(t, entries, 2)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
	assert.Equal(t, EventSessionInvalidated, entries[0].EventType)
	assert.Equal(t, EventLogout, entries[1].EventType)
	assert.Equal(t, "TEACHER", entries[0].Metadata["previous_role"])
}
