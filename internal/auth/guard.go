package auth

import (
	"context"
	"net/http"
	"strings"
)

// Guard resolves the subject of a request from its bearer access token.
type Guard struct {
	tokens Tokens
}

// NewGuard returns a Guard verifying access tokens with tokens.
func NewGuard(tokens Tokens) *Guard {
	return &Guard{tokens: tokens}
}

// Subject extracts "Authorization: Bearer <token>" from h and verifies it as
// an access token. A missing header or token segment is reported as
// "Please log in."; a token that fails verification as Unauthorized.
func (g *Guard) Subject(h http.Header) (string, error) {
	token, ok := BearerToken(h)
	if !ok {
		return "", Unauthorized(msgPleaseLogIn)
	}
	return g.tokens.Verify(PurposeAccess, token)
}

// BearerToken returns the token segment of the Authorization header.
func BearerToken(h http.Header) (string, bool) {
	header := strings.TrimSpace(h.Get("Authorization"))
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

type subjectKey struct{}

// WithSubject stores the verified subject id in ctx.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFromContext returns the subject stored by WithSubject.
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey{}).(string)
	return s, ok && s != ""
}
