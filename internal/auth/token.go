package auth

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Purpose selects the secret and lifetime a token is signed with.
type Purpose int

const (
	PurposeAccess Purpose = iota + 1
	PurposeRefresh
	PurposeReset
)

func (p Purpose) String() string {
	switch p {
	case PurposeAccess:
		return "access"
	case PurposeRefresh:
		return "refresh"
	case PurposeReset:
		return "reset"
	default:
		return fmt.Sprintf("purpose(%d)", int(p))
	}
}

// Tokens issues and verifies purpose-bound tokens.
type Tokens interface {
	Issue(p Purpose, subject string) (string, error)
	Verify(p Purpose, token string) (string, error)
}

// TokenConfig is the secret and lifetime of a single purpose.
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
}

// CodecConfig configures a Codec. Every purpose needs its own secret.
type CodecConfig struct {
	Issuer  string
	Access  TokenConfig
	Refresh TokenConfig
	Reset   TokenConfig
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Codec signs HS256 JWTs carrying only subject, issuer and expiry.
// The purpose is implied by the secret that validates the signature.
type Codec struct {
	issuer   string
	purposes map[Purpose]TokenConfig
	now      func() time.Time
}

// NewCodec validates cfg and returns a Codec.
func NewCodec(cfg CodecConfig) (*Codec, error) {
	purposes := map[Purpose]TokenConfig{
		PurposeAccess:  cfg.Access,
		PurposeRefresh: cfg.Refresh,
		PurposeReset:   cfg.Reset,
	}
	for p, tc := range purposes {
		if len(tc.Secret) == 0 {
			return nil, fmt.Errorf("%s token secret is required", p)
		}
		if tc.TTL <= 0 {
			return nil, fmt.Errorf("%s token expiry must be positive", p)
		}
	}
	if bytes.Equal(cfg.Access.Secret, cfg.Refresh.Secret) ||
		bytes.Equal(cfg.Access.Secret, cfg.Reset.Secret) ||
		bytes.Equal(cfg.Refresh.Secret, cfg.Reset.Secret) {
		return nil, errors.New("access, refresh and reset token secrets must differ")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Codec{issuer: cfg.Issuer, purposes: purposes, now: now}, nil
}

// TTL returns the configured lifetime for p.
func (c *Codec) TTL(p Purpose) time.Duration {
	return c.purposes[p].TTL
}

// Issue signs a token for subject under purpose p.
func (c *Codec) Issue(p Purpose, subject string) (string, error) {
	tc, ok := c.purposes[p]
	if !ok {
		return "", Internal(fmt.Errorf("issue token: unknown purpose %s", p))
	}
	claims := jwt.RegisteredClaims{
		Issuer:    c.issuer,
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(c.now().Add(tc.TTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tc.Secret)
	if err != nil {
		return "", Internal(fmt.Errorf("sign %s token: %w", p, err))
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry under purpose p and returns the
// subject. Any problem with the token itself is Unauthorized.
func (c *Codec) Verify(p Purpose, token string) (string, error) {
	tc, ok := c.purposes[p]
	if !ok {
		return "", Internal(fmt.Errorf("verify token: unknown purpose %s", p))
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return tc.Secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return "", ErrUnauthorized
	}
	if claims.Subject == "" {
		return "", ErrUnauthorized
	}
	return claims.Subject, nil
}

var _ Tokens = (*Codec)(nil)
