package access

import (
	"net/http"

	"github.com/odyssey-school/odyssey-school/internal/platform/httpx"
	"github.com/odyssey-school/odyssey-school/internal/shared"
)

const (
	// SignInPath is where unauthenticated browsers are sent.
	SignInPath = "/sign-in"
	// UnauthorizedPath is where authenticated but unpermitted browsers are sent.
	UnauthorizedPath = "/unauthorized"
)

// EffectKind is the HTTP-level action chosen for a decision.
type EffectKind int

const (
	EffectPass EffectKind = iota
	EffectRedirect
	EffectJSON
)

// Effect describes how a decision reaches the client.
type Effect struct {
	Kind        EffectKind
	Status      int
	Location    string
	Message     string
	ClearCookie bool
}

// Shaper maps decisions to effects. Redirect targets are fixed same-origin
// paths; nothing from the request influences them.
type Shaper struct {
	cookies *shared.SessionCookies
}

// NewShaper builds a Shaper clearing cookies through cookies.
func NewShaper(cookies *shared.SessionCookies) Shaper {
	return Shaper{cookies: cookies}
}

// Page returns the browser effect for d.
func (s Shaper) Page(d Decision) Effect {
	switch d.Outcome {
	case OutcomeAllow:
		return Effect{Kind: EffectPass}
	case OutcomeDenyNoSession, OutcomeDenyInvalidSession:
		return Effect{Kind: EffectRedirect, Status: http.StatusFound, Location: SignInPath}
	case OutcomeDenyRoleChanged:
		return Effect{Kind: EffectRedirect, Status: http.StatusFound, Location: SignInPath, ClearCookie: true}
	case OutcomeDenyInsufficientRole:
		return Effect{Kind: EffectRedirect, Status: http.StatusFound, Location: UnauthorizedPath}
	}
	return Effect{Kind: EffectRedirect, Status: http.StatusFound, Location: SignInPath}
}

// API returns the JSON effect for d.
func (s Shaper) API(d Decision) Effect {
	switch d.Outcome {
	case OutcomeAllow:
		return Effect{Kind: EffectPass}
	case OutcomeDenyInsufficientRole:
		return Effect{Kind: EffectJSON, Status: http.StatusForbidden, Message: "Forbidden"}
	case OutcomeDenyRoleChanged:
		return Effect{Kind: EffectJSON, Status: http.StatusUnauthorized, Message: "Unauthorized", ClearCookie: true}
	}
	return Effect{Kind: EffectJSON, Status: http.StatusUnauthorized, Message: "Unauthorized"}
}

// Apply writes eff to w. It reports true when the request should continue to
// the next handler.
func (s Shaper) Apply(w http.ResponseWriter, eff Effect) bool {
	if eff.ClearCookie && s.cookies != nil {
		s.cookies.Clear(w)
	}
	switch eff.Kind {
	case EffectPass:
		return true
	case EffectJSON:
		httpx.Error(w, eff.Status, eff.Message)
	default:
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Location", eff.Location)
		w.WriteHeader(eff.Status)
	}
	return false
}
