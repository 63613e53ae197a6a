// Package auth holds the credential primitives used by the HTTP layer:
// the bearer token codec, the password hasher and the principal roles.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the lifetime of an issued access token.
const DefaultTokenTTL = 24 * time.Hour

// ErrInvalidToken is the single outcome of a failed verification.  The
// concrete reason (malformed, forged, expired, unknown role) is wrapped for
// server-side logging but callers must only test with errors.Is.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the token payload.  The JSON layout is part of the wire format:
//
//	{"userId":1,"email":"a@b.com","role":"ADMIN","exp":1700000000}
type Claims struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	Exp    int64  `json:"exp"`
}

// GetExpirationTime implements jwt.Claims.
func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) {
	if c.Exp == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(c.Exp, 0)), nil
}

// GetIssuedAt implements jwt.Claims.
func (c Claims) GetIssuedAt() (*jwt.NumericDate, error) { return nil, nil }

// GetNotBefore implements jwt.Claims.
func (c Claims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }

// GetIssuer implements jwt.Claims.
func (c Claims) GetIssuer() (string, error) { return "", nil }

// GetSubject implements jwt.Claims.
func (c Claims) GetSubject() (string, error) { return fmt.Sprint(c.UserID), nil }

// GetAudience implements jwt.Claims.
func (c Claims) GetAudience() (jwt.ClaimStrings, error) { return nil, nil }

// TokenCodec issues and validates HS256 bearer tokens of the form
// base64url(header).base64url(payload).base64url(signature).
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// TokenOption customises a TokenCodec.
type TokenOption func(*TokenCodec)

// WithTTL overrides the 24h token lifetime.
func WithTTL(ttl time.Duration) TokenOption {
	return func(c *TokenCodec) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) TokenOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewTokenCodec builds a codec signing with the given shared secret.
func NewTokenCodec(secret string, opts ...TokenOption) *TokenCodec {
	c := &TokenCodec{
		secret: []byte(secret),
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithPaddingAllowed(),
		jwt.WithTimeFunc(c.now),
		// exp is whole seconds; a token stays valid through its exp second.
		jwt.WithLeeway(time.Second),
	)
	return c
}

// TTL reports the lifetime applied to issued tokens.
func (c *TokenCodec) TTL() time.Duration { return c.ttl }

// Issue stamps exp = now + TTL on the claims and returns the signed token
// together with the claims as issued.  The Exp field of the input is ignored.
func (c *TokenCodec) Issue(claims Claims) (string, Claims, error) {
	claims.Exp = c.now().Add(c.ttl).Unix()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(c.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Validate checks segment count, signature (constant-time HMAC compare inside
// jwt), expiry and role.  Every failure is reported as ErrInvalidToken.
func (c *TokenCodec) Validate(raw string) (Claims, error) {
	var claims Claims
	tok, err := c.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %s", ErrInvalidToken, reason(err))
	}
	if !tok.Valid {
		return Claims{}, fmt.Errorf("%w: not valid", ErrInvalidToken)
	}
	if !claims.Role.Valid() {
		return Claims{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return claims, nil
}

// reason maps jwt's error tree to a short label for logs.
func reason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return "bad signature"
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return "expired"
	default:
		return err.Error()
	}
}
