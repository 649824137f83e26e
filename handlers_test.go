package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfg "github.com/example/quotesapi/internal/config"
	"github.com/example/quotesapi/internal/store"
)

type outbox struct {
	mu     sync.Mutex
	bodies map[string]string
}

func (o *outbox) Send(_ context.Context, to, _, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bodies[to] = body
	return nil
}

func (o *outbox) resetToken(t *testing.T, to string) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	body, ok := o.bodies[to]
	require.True(t, ok, "no mail sent to %s", to)
	_, after, ok := strings.Cut(body, "Reset token: ")
	require.True(t, ok)
	tok, _, _ := strings.Cut(after, "\n")
	return tok
}

func testConfig() *cfg.Config {
	return &cfg.Config{
		Port:                   "0",
		Origin:                 "*",
		TokenIssuer:            "quotes-test",
		AccessTokenSecret:      "access-secret",
		AccessTokenTTL:         time.Hour,
		RefreshTokenSecret:     "refresh-secret",
		RefreshTokenTTL:        24 * time.Hour,
		ResetTokenSecret:       "reset-secret",
		ResetTokenTTL:          15 * time.Minute,
		BcryptCost:             4,
		RateLimitPerMinute:     1000,
		AuthRateLimitPerMinute: 1000,
	}
}

type testServer struct {
	handler http.Handler
	mail    *outbox
}

func newTestServer(t *testing.T, c *cfg.Config) *testServer {
	t.Helper()
	mail := &outbox{bodies: map[string]string{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := newApp(c, store.NewMemoryDB(), mail, logger)
	require.NoError(t, err)
	return &testServer{handler: newRouter(app), mail: mail}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.True(t, env.Success)
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var e APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e), rec.Body.String())
	return e
}

type tokens struct {
	UserID       string `json:"userID"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (s *testServer) signUp(t *testing.T, email, password string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name": "Ada", "surname": "Lovelace", "email": email, "password": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var u userView
	decodeData(t, rec, &u)
	return u.ID
}

func (s *testServer) signIn(t *testing.T, email, password string) tokens {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/signin", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tk tokens
	decodeData(t, rec, &tk)
	return tk
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ready":true}`, rec.Body.String())
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestCredentialLifecycle(t *testing.T) {
	s := newTestServer(t, testConfig())
	id := s.signUp(t, "a@x.com", "secret1")

	tk := s.signIn(t, "a@x.com", "secret1")
	assert.Equal(t, id, tk.UserID)

	rec := s.do(t, http.MethodGet, "/api/users/"+id, tk.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var u userView
	decodeData(t, rec, &u)
	assert.Equal(t, "a@x.com", u.Email)
	assert.Equal(t, "User", u.Role)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = s.do(t, http.MethodPut, "/api/auth/refresh-tokens", "", map[string]string{"refreshToken": tk.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var refreshed tokens
	decodeData(t, rec, &refreshed)
	assert.Equal(t, id, refreshed.UserID)

	rec = s.do(t, http.MethodPut, "/api/auth/refresh-tokens", "", map[string]string{"refreshToken": tk.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/users/"+id+"/password", refreshed.AccessToken,
		map[string]string{"password": "secret1", "newPassword": "secret2"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/auth/signin", "", map[string]string{"email": "a@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	s.signIn(t, "a@x.com", "secret2")

	rec = s.do(t, http.MethodGet, "/api/auth/validate", refreshed.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id)
}

func TestSignUpRejections(t *testing.T) {
	s := newTestServer(t, testConfig())
	s.signUp(t, "a@x.com", "secret1")

	rec := s.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{"email": "a@x.com", "password": "another"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	e := decodeError(t, rec)
	assert.Equal(t, "DUPLICATE_EMAIL", e.Code)
	assert.Equal(t, "Please use a different email.", e.Message)

	rec = s.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{"email": "not-an-email", "password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	e = decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", e.Code)
	assert.Equal(t, "email must be a valid email", e.Message)

	rec = s.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{"email": "b@x.com", "password": "123"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "password must be at least 6 characters long", decodeError(t, rec).Message)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeError(t, rr).Code)
}

func TestMultibytePasswordOverByteLimit(t *testing.T) {
	s := newTestServer(t, testConfig())
	long := strings.Repeat("é", 40) // 40 runes, 80 bytes

	rec := s.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{"email": "a@x.com", "password": long})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	e := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", e.Code)
	assert.Equal(t, "password must be at most 72 bytes long", e.Message)

	// 36 runes, 72 bytes
	s.signUp(t, "b@x.com", strings.Repeat("é", 36))
	s.signIn(t, "b@x.com", strings.Repeat("é", 36))

	id := s.signUp(t, "c@x.com", "secret1")
	tk := s.signIn(t, "c@x.com", "secret1")
	rec = s.do(t, http.MethodPut, "/api/users/"+id+"/password", tk.AccessToken, map[string]string{
		"password": "secret1", "newPassword": long,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "newPassword must be at most 72 bytes long", decodeError(t, rec).Message)
}

func TestSignInFailuresLookAlike(t *testing.T) {
	s := newTestServer(t, testConfig())
	s.signUp(t, "a@x.com", "secret1")

	wrong := s.do(t, http.MethodPost, "/api/auth/signin", "", map[string]string{"email": "a@x.com", "password": "wrong-pw"})
	unknown := s.do(t, http.MethodPost, "/api/auth/signin", "", map[string]string{"email": "b@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, wrong.Code, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
}

func TestProtectedRoutesNeedAccessToken(t *testing.T) {
	s := newTestServer(t, testConfig())
	id := s.signUp(t, "a@x.com", "secret1")
	tk := s.signIn(t, "a@x.com", "secret1")

	rec := s.do(t, http.MethodGet, "/api/users/"+id, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Please log in.", decodeError(t, rec).Message)

	rec = s.do(t, http.MethodGet, "/api/users/"+id, tk.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/quotes", "", map[string]string{"quote": "q", "author": "a"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAccountOperationsOnOtherUser(t *testing.T) {
	s := newTestServer(t, testConfig())
	victim := s.signUp(t, "a@x.com", "secret1")
	s.signUp(t, "b@x.com", "secret1")
	attacker := s.signIn(t, "b@x.com", "secret1")

	rec := s.do(t, http.MethodPut, "/api/users/"+victim+"/password", attacker.AccessToken,
		map[string]string{"password": "secret1", "newPassword": "hijacked"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/users/"+victim+"/email", attacker.AccessToken,
		map[string]string{"email": "a@x.com", "newEmail": "evil@x.com"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/users/"+victim, attacker.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// victim is untouched
	s.signIn(t, "a@x.com", "secret1")
}

func TestUpdateEmailAndWrongPassword(t *testing.T) {
	s := newTestServer(t, testConfig())
	id := s.signUp(t, "a@x.com", "secret1")
	tk := s.signIn(t, "a@x.com", "secret1")

	rec := s.do(t, http.MethodPut, "/api/users/"+id+"/password", tk.AccessToken,
		map[string]string{"password": "wrong-pw", "newPassword": "secret2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIAL", decodeError(t, rec).Code)

	rec = s.do(t, http.MethodPut, "/api/users/"+id+"/email", tk.AccessToken,
		map[string]string{"email": "a@x.com", "newEmail": "c@x.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var u userView
	decodeData(t, rec, &u)
	assert.Equal(t, "c@x.com", u.Email)
	s.signIn(t, "c@x.com", "secret1")
}

func TestDeactivateAndActivate(t *testing.T) {
	s := newTestServer(t, testConfig())
	id := s.signUp(t, "a@x.com", "secret1")
	tk := s.signIn(t, "a@x.com", "secret1")

	rec := s.do(t, http.MethodDelete, "/api/users/"+id, tk.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/signin", "", map[string]string{"email": "a@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decodeError(t, rec).Code)

	rec = s.do(t, http.MethodPut, "/api/auth/refresh-tokens", "", map[string]string{"refreshToken": tk.RefreshToken})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/auth/activate", "", map[string]string{"email": "a@x.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	s.signIn(t, "a@x.com", "secret1")
}

func TestResetPasswordOverHTTP(t *testing.T) {
	s := newTestServer(t, testConfig())
	s.signUp(t, "a@x.com", "secret1")

	known := s.do(t, http.MethodPost, "/api/auth/send-reset-password-token", "", map[string]string{"email": "a@x.com"})
	unknown := s.do(t, http.MethodPost, "/api/auth/send-reset-password-token", "", map[string]string{"email": "z@x.com"})
	require.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, known.Code, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())

	tok := s.mail.resetToken(t, "a@x.com")
	rec := s.do(t, http.MethodPut, "/api/auth/reset-password", "",
		map[string]string{"resetPasswordToken": tok, "newPassword": "brand-new"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	s.signIn(t, "a@x.com", "brand-new")

	// a reset token is not an access token
	rec = s.do(t, http.MethodGet, "/api/auth/validate", tok, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestQuotesOwnership(t *testing.T) {
	s := newTestServer(t, testConfig())
	s.signUp(t, "a@x.com", "secret1")
	s.signUp(t, "b@x.com", "secret1")
	owner := s.signIn(t, "a@x.com", "secret1")
	other := s.signIn(t, "b@x.com", "secret1")

	rec := s.do(t, http.MethodGet, "/api/quotes/random", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/quotes", owner.AccessToken, map[string]string{"quote": "Less is more.", "author": "Mies"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var q struct {
		ID     string `json:"id"`
		Quote  string `json:"quote"`
		UserID string `json:"userID"`
	}
	decodeData(t, rec, &q)
	assert.Equal(t, owner.UserID, q.UserID)

	rec = s.do(t, http.MethodPut, "/api/quotes/"+q.ID, other.AccessToken, map[string]string{"quote": "mine now", "author": "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, http.MethodDelete, "/api/quotes/"+q.ID, other.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/quotes/"+q.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Less is more.")

	rec = s.do(t, http.MethodPut, "/api/quotes/"+q.ID, owner.AccessToken, map[string]string{"quote": "More is more.", "author": "Mies"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/quotes?currentPage=1&perPage=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Quotes      []json.RawMessage `json:"quotes"`
		TotalQuotes int               `json:"totalQuotes"`
		TotalPages  int               `json:"totalPages"`
	}
	decodeData(t, rec, &page)
	assert.Len(t, page.Quotes, 1)
	assert.Equal(t, 1, page.TotalQuotes)
	assert.Equal(t, 1, page.TotalPages)

	rec = s.do(t, http.MethodGet, "/api/quotes?perPage=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/quotes/random", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/quotes/"+q.ID, owner.AccessToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/quotes/"+q.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCredentialRateLimit(t *testing.T) {
	c := testConfig()
	c.AuthRateLimitPerMinute = 2
	s := newTestServer(t, c)

	body := map[string]string{"email": "a@x.com", "password": "secret1"}
	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodPost, "/api/auth/signin", "", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := s.do(t, http.MethodPost, "/api/auth/signin", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", decodeError(t, rec).Code)

	// other routes use the global limit
	rec = s.do(t, http.MethodGet, "/api/quotes", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestActivateUsesCredentialLimit(t *testing.T) {
	c := testConfig()
	c.AuthRateLimitPerMinute = 2
	s := newTestServer(t, c)

	body := map[string]string{"email": "a@x.com", "password": "secret1"}
	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodPut, "/api/auth/activate", "", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := s.do(t, http.MethodPut, "/api/auth/activate", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", decodeError(t, rec).Code)
}

func TestGlobalRateLimit(t *testing.T) {
	c := testConfig()
	c.RateLimitPerMinute = 3
	s := newTestServer(t, c)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/quotes", "", nil).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, s.do(t, http.MethodGet, "/api/quotes", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", "", nil).Code)
}

func TestCORS(t *testing.T) {
	c := testConfig()
	c.Origin = "https://app.example.com"
	s := newTestServer(t, c)

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/signin", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiterSweep(t *testing.T) {
	now := time.Now()
	rl := NewRateLimiter(10)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("10.0.0.1"))
	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("10.0.0.2"))

	now = now.Add(150 * time.Second)
	assert.Equal(t, 1, rl.sweep(3*time.Minute))
	assert.Len(t, rl.limiters, 1)
}

func TestUnmatchedRoutesGetHeadersAndLogging(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	app, err := newApp(testConfig(), store.NewMemoryDB(), &outbox{bodies: map[string]string{}}, logger)
	require.NoError(t, err)
	h := newRouter(app)

	for _, tc := range []struct {
		method, path string
		status       int
	}{
		{http.MethodGet, "/nope", http.StatusNotFound},
		{http.MethodPatch, "/health", http.StatusMethodNotAllowed},
	} {
		logs.Reset()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, tc.status, rec.Code, tc.path)
		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"), tc.path)
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"), tc.path)
		assert.Contains(t, logs.String(), "path="+tc.path)
		assert.Contains(t, logs.String(), "status="+strconv.Itoa(tc.status))
	}
}
