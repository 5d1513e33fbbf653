package access

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-school/odyssey-school/internal/platform/httpx"
	"github.com/odyssey-school/odyssey-school/internal/shared"
)

// Auditor records decisions. Implementations must not block on persistence and
// must never fail the request.
type Auditor interface {
	Record(ctx context.Context, d Decision, meta RequestMeta)
}

// DecisionObserver receives one call per protected decision.
type DecisionObserver interface {
	ObserveDecision(outcome string)
}

// GateConfig aggregates Gate dependencies.
type GateConfig struct {
	Engine   *Engine
	Cookies  *shared.SessionCookies
	Auditor  Auditor
	Observer DecisionObserver
	Logger   *slog.Logger
}

// Gate is the HTTP middleware in front of every route handler.
type Gate struct {
	engine   *Engine
	cookies  *shared.SessionCookies
	shaper   Shaper
	auditor  Auditor
	observer DecisionObserver
	logger   *slog.Logger
}

// NewGate builds a Gate.
func NewGate(cfg GateConfig) (*Gate, error) {
	if cfg.Engine == nil {
		return nil, errors.New("access: engine required")
	}
	cookies := cfg.Cookies
	if cookies == nil {
		cookies = shared.NewSessionCookies(shared.DefaultSessionCookie, 0, false)
	}
	return &Gate{
		engine:   cfg.Engine,
		cookies:  cookies,
		shaper:   NewShaper(cookies),
		auditor:  cfg.Auditor,
		observer: cfg.Observer,
		logger:   cfg.Logger,
	}, nil
}

// Middleware decides, audits and shapes every request before it reaches next.
// Handlers only ever see allowed requests.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		decision := g.engine.Decide(ctx, Request{Path: r.URL.Path, Token: g.cookies.Token(r)})
		if !decision.Protected {
			next.ServeHTTP(w, r)
			return
		}

		if g.observer != nil {
			g.observer.ObserveDecision(string(decision.Outcome))
		}
		if g.auditor != nil {
			g.auditor.Record(ctx, decision, MetaFromRequest(r, TriggerGate))
		}

		var eff Effect
		if httpx.WantsJSON(r) {
			eff = g.shaper.API(decision)
		} else {
			eff = g.shaper.Page(decision)
		}
		if !g.shaper.Apply(w, eff) {
			if g.logger != nil {
				g.logger.Info("access denied",
					slog.String("outcome", string(decision.Outcome)),
					slog.String("route", decision.RouteID),
					slog.String("request_id", middleware.GetReqID(ctx)))
			}
			return
		}
		if decision.Claim != nil {
			ctx = ContextWithClaim(ctx, *decision.Claim)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// MetaFromRequest collects audit attributes from r.
func MetaFromRequest(r *http.Request, trigger Trigger) RequestMeta {
	return RequestMeta{
		IPAddress: clientIP(r.RemoteAddr),
		UserAgent: r.UserAgent(),
		Method:    r.Method,
		RequestID: middleware.GetReqID(r.Context()),
		Trigger:   trigger,
	}
}

func clientIP(remote string) string {
	if host, _, err := net.SplitHostPort(remote); err == nil {
		return host
	}
	return remote
}

// RequireRoles is for handlers that repeat the role check on their own, for
// example endpoints reachable under a broader gated prefix. Failures are
// shaped as JSON 401/403.
func RequireRoles(roles ...Role) func(http.Handler) http.Handler {
	class := Classification{Protected: true, RequiredRoles: roles}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claim, ok := ClaimFromContext(r.Context())
			if !ok {
				httpx.Error(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if !class.Permits(claim.Role) {
				httpx.Error(w, http.StatusForbidden, "Forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
