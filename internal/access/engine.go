package access

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// TokenVerifier turns a raw session token into a claim. Implementations return
// a non-nil failure instead of a claim for any token they cannot accept.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (SessionClaim, *VerificationFailure)
}

// RoleSource reports the role currently persisted for a user.
type RoleSource interface {
	CurrentRole(ctx context.Context, userID string) (Role, error)
}

// Request is the slice of an HTTP request the engine needs.
type Request struct {
	Path  string
	Token string
}

// EngineConfig groups Engine dependencies.
type EngineConfig struct {
	Classifier *Classifier
	Verifier   TokenVerifier
	// Roles is optional; without it the role-change guard is skipped.
	Roles         RoleSource
	VerifyTimeout time.Duration
	Now           func() time.Time
	Logger        *slog.Logger
}

// Engine evaluates the access state machine for one request at a time. It
// holds no per-request state and is safe for concurrent use.
type Engine struct {
	classifier    *Classifier
	verifier      TokenVerifier
	roles         RoleSource
	verifyTimeout time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

// NewEngine validates cfg and builds an Engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Classifier == nil {
		return nil, errors.New("access: classifier required")
	}
	if cfg.Verifier == nil {
		return nil, errors.New("access: token verifier required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	timeout := cfg.VerifyTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Engine{
		classifier:    cfg.Classifier,
		verifier:      cfg.Verifier,
		roles:         cfg.Roles,
		verifyTimeout: timeout,
		now:           now,
		logger:        cfg.Logger,
	}, nil
}

// Classifier exposes the route table snapshot.
func (e *Engine) Classifier() *Classifier {
	return e.classifier
}

// Decide runs the checks in order: classification, session presence, token
// verification, role change, role membership. The first failing check wins.
func (e *Engine) Decide(ctx context.Context, req Request) Decision {
	class := e.classifier.Classify(req.Path)
	decision := Decision{
		RouteID:   class.RouteID,
		Protected: class.Protected,
		Timestamp: e.now(),
	}
	if !class.Protected {
		decision.Outcome = OutcomeAllow
		return decision
	}

	if req.Token == "" {
		decision.Outcome = OutcomeDenyNoSession
		return decision
	}

	claim, failure := e.verify(ctx, req.Token)
	if failure != nil {
		e.rejected(ctx)
		decision.Outcome = OutcomeDenyInvalidSession
		return decision
	}
	decision.UserID = claim.UserID
	decision.Claim = &claim

	if e.roleChanged(ctx, claim) {
		decision.Outcome = OutcomeDenyRoleChanged
		return decision
	}

	if !class.Permits(claim.Role) {
		decision.Outcome = OutcomeDenyInsufficientRole
		return decision
	}
	decision.Outcome = OutcomeAllow
	return decision
}

type verifyResult struct {
	claim   SessionClaim
	failure *VerificationFailure
}

// verify calls the verifier under the configured timeout. A timeout, a panic, a
// claim without identity or expiry all collapse into INVALID_SESSION and are
// not logged here, so the log never tells the failure modes apart.
func (e *Engine) verify(ctx context.Context, token string) (SessionClaim, *VerificationFailure) {
	invalid := &VerificationFailure{Kind: FailureInvalidSession}

	ctx, cancel := context.WithTimeout(ctx, e.verifyTimeout)
	defer cancel()

	done := make(chan verifyResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- verifyResult{failure: invalid}
			}
		}()
		claim, failure := e.verifier.Verify(ctx, token)
		done <- verifyResult{claim: claim, failure: failure}
	}()

	var res verifyResult
	select {
	case <-ctx.Done():
		return SessionClaim{}, invalid
	case res = <-done:
	}
	if res.failure != nil {
		return SessionClaim{}, invalid
	}
	if res.claim.UserID == "" || !res.claim.Role.Valid() {
		return SessionClaim{}, invalid
	}
	if !res.claim.ExpiresAt.After(e.now()) {
		return SessionClaim{}, invalid
	}
	return res.claim, nil
}

// roleChanged is a best-effort staleness guard: lookup failures let the
// request continue to the role check.
func (e *Engine) roleChanged(ctx context.Context, claim SessionClaim) bool {
	if claim.PreviousRole == "" || e.roles == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, e.verifyTimeout)
	defer cancel()
	live, err := e.roles.CurrentRole(ctx, claim.UserID)
	if err != nil {
		e.warn("live role lookup", slog.String("user_id", claim.UserID), slog.Any("error", err))
		return false
	}
	return claim.PreviousRole != live
}

// rejected emits the single log line shared by every invalid session.
func (e *Engine) rejected(ctx context.Context) {
	if e.logger != nil {
		e.logger.LogAttrs(ctx, slog.LevelInfo, "session rejected",
			slog.String("kind", string(FailureInvalidSession)))
	}
}

func (e *Engine) warn(msg string, attrs ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, attrs...)
	}
}
