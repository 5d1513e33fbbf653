package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/odyssey-school/odyssey-school/internal/access"
)

// Claims is the JWT body of a session token.
type Claims struct {
	jwt.RegisteredClaims
	Role         string `json:"role"`
	PreviousRole string `json:"previous_role,omitempty"`
}

// TokenConfig configures token signing and verification.
type TokenConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
}

func (c TokenConfig) clock() func() time.Time {
	if c.Now != nil {
		return c.Now
	}
	return time.Now
}

// Issuer signs session tokens.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer builds an Issuer.
func NewIssuer(cfg TokenConfig) (*Issuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("auth: signing secret required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Issuer{secret: cfg.Secret, issuer: cfg.Issuer, ttl: ttl, now: cfg.clock()}, nil
}

// Issue signs a token for userID with role. previous is the persisted role the
// session is bound to; the gate rejects the token once the two diverge. An
// empty previous opts the token out of that check.
func (i *Issuer) Issue(userID string, role, previous access.Role) (string, access.SessionClaim, error) {
	if userID == "" || !role.Valid() {
		return "", access.SessionClaim{}, errors.New("auth: user id and valid role required")
	}
	now := i.now().Truncate(time.Second)
	claim := access.SessionClaim{
		UserID:       userID,
		Role:         role,
		PreviousRole: previous,
		IssuedAt:     now,
		ExpiresAt:    now.Add(i.ttl),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(claim.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claim.ExpiresAt),
		},
		Role:         string(role),
		PreviousRole: string(previous),
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", access.SessionClaim{}, errors.New("auth: signing token")
	}
	return signed, claim, nil
}

// JWTVerifier implements access.TokenVerifier for HS256 session tokens.
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier builds a JWTVerifier.
func NewVerifier(cfg TokenConfig) (*JWTVerifier, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("auth: signing secret required")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(cfg.clock()),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &JWTVerifier{secret: cfg.Secret, parser: jwt.NewParser(opts...)}, nil
}

// Verify decodes token. Every rejection is reported as INVALID_SESSION.
func (v *JWTVerifier) Verify(ctx context.Context, token string) (access.SessionClaim, *access.VerificationFailure) {
	if token == "" {
		return access.SessionClaim{}, &access.VerificationFailure{Kind: access.FailureNoSession}
	}
	invalid := &access.VerificationFailure{Kind: access.FailureInvalidSession}
	if ctx.Err() != nil {
		return access.SessionClaim{}, invalid
	}

	var claims Claims
	parsed, err := v.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return access.SessionClaim{}, invalid
	}
	role, err := access.ParseRole(claims.Role)
	if err != nil || claims.Subject == "" {
		return access.SessionClaim{}, invalid
	}
	var previous access.Role
	if claims.PreviousRole != "" {
		previous, err = access.ParseRole(claims.PreviousRole)
		if err != nil {
			return access.SessionClaim{}, invalid
		}
	}
	claim := access.SessionClaim{
		UserID:       claims.Subject,
		Role:         role,
		PreviousRole: previous,
	}
	if claims.IssuedAt != nil {
		claim.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		claim.ExpiresAt = claims.ExpiresAt.Time
	}
	return claim, nil
}

var _ access.TokenVerifier = (*JWTVerifier)(nil)
