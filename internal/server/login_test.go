package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avauthgate/internal/audit"
	"github.com/vyrodovalexey/avauthgate/internal/auth"
	"github.com/vyrodovalexey/avauthgate/internal/auth/jwt"
	"github.com/vyrodovalexey/avauthgate/internal/auth/token"
	"github.com/vyrodovalexey/avauthgate/internal/config"
	"github.com/vyrodovalexey/avauthgate/internal/directory"
	"github.com/vyrodovalexey/avauthgate/internal/observability"
)

func testDirectory(t *testing.T) directory.Directory {
	t.Helper()

	hash, err := directory.HashPassword("s3cret-pass")
	require.NoError(t, err)
	inactiveHash, err := directory.HashPassword("inactive-pass")
	require.NoError(t, err)

	dir, err := directory.NewMemoryDirectory([]*directory.UserRecord{
		{ID: "u-1", Username: "alice", PasswordHash: hash, Roles: []string{"admin"}, Active: true},
		{ID: "u-2", Username: "mallory", PasswordHash: inactiveHash, Active: false},
	})
	require.NoError(t, err)
	return dir
}

func testLoginConfig() *config.LoginConfig {
	return &config.LoginConfig{
		Enabled:       true,
		Path:          "/public/login",
		LogoutPath:    "/public/logout",
		TokenKind:     config.TokenKindOpaque,
		RatePerMinute: 6000,
		Burst:         100,
	}
}

func newTestLoginHandler(t *testing.T, cfg *config.LoginConfig) (*loginHandler, *token.Manager) {
	t.Helper()

	manager := token.NewManager(token.NewMemoryStore())
	h, err := newLoginHandler(cfg, testDirectory(t), manager, nil,
		observability.NopLogger(), nil)
	require.NoError(t, err)
	t.Cleanup(h.close)
	return h, manager
}

func postLogin(h *loginHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/public/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.handleLogin(rec, req)
	return rec
}

func TestNewLoginHandler_Validation(t *testing.T) {
	t.Parallel()

	dir := testDirectory(t)
	manager := token.NewManager(token.NewMemoryStore())

	tests := []struct {
		name    string
		cfg     *config.LoginConfig
		dir     directory.Directory
		tokens  *token.Manager
		wantErr string
	}{
		{
			name:    "missing directory",
			cfg:     testLoginConfig(),
			wantErr: "login requires a user directory",
		},
		{
			name:    "opaque without manager",
			cfg:     testLoginConfig(),
			dir:     dir,
			wantErr: "requires a token manager",
		},
		{
			name:    "jwt without signer",
			cfg:     &config.LoginConfig{Enabled: true, TokenKind: config.TokenKindJWT},
			dir:     dir,
			tokens:  manager,
			wantErr: "requires a signer",
		},
		{
			name:    "unknown kind",
			cfg:     &config.LoginConfig{Enabled: true, TokenKind: "paseto"},
			dir:     dir,
			tokens:  manager,
			wantErr: "unknown login token kind",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := newLoginHandler(tt.cfg, tt.dir, tt.tokens, nil,
				observability.NopLogger(), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewLoginHandler_Defaults(t *testing.T) {
	t.Parallel()

	h, _ := newTestLoginHandler(t, &config.LoginConfig{Enabled: true, RatePerMinute: 6000})

	assert.Equal(t, config.DefaultLoginPath, h.path)
	assert.Equal(t, config.DefaultLogoutPath, h.logoutPath)
	assert.Equal(t, config.TokenKindOpaque, h.kind)
}

func TestNewLoginHandler_JWTModeHasNoLogout(t *testing.T) {
	t.Parallel()

	signer, err := jwt.NewSigner(&jwt.Config{Algorithm: "HS256", Secret: "test-secret-for-signing"})
	require.NoError(t, err)

	h, err := newLoginHandler(
		&config.LoginConfig{Enabled: true, TokenKind: config.TokenKindJWT},
		testDirectory(t), nil, signer, observability.NopLogger(), nil)
	require.NoError(t, err)
	t.Cleanup(h.close)

	assert.Empty(t, h.logoutPath)
}

func TestHandleLogin_Success(t *testing.T) {
	t.Parallel()

	h, manager := newTestLoginHandler(t, testLoginConfig())

	rec := postLogin(h, `{"username":"alice","password":"s3cret-pass"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Greater(t, resp.ExpiresIn, int64(0))
	assert.Equal(t, "Bearer "+resp.Token, rec.Header().Get("Authorization"))

	// The issued token validates against the manager.
	principal, err := manager.Validate(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", principal.Subject)
	assert.Equal(t, []string{"admin"}, principal.Roles)
}

func TestHandleLogin_UniformRejection(t *testing.T) {
	t.Parallel()

	h, _ := newTestLoginHandler(t, testLoginConfig())

	wrongPassword := postLogin(h, `{"username":"alice","password":"wrong"}`)
	unknownUser := postLogin(h, `{"username":"nobody","password":"wrong"}`)
	inactiveUser := postLogin(h, `{"username":"mallory","password":"inactive-pass"}`)

	for _, rec := range []*httptest.ResponseRecorder{wrongPassword, unknownUser, inactiveUser} {
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	// Same body for every failure: callers learn nothing about which
	// half was wrong or whether the account exists.
	assert.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String())
	assert.Equal(t, wrongPassword.Body.String(), inactiveUser.Body.String())
}

func TestHandleLogin_BadRequests(t *testing.T) {
	t.Parallel()

	h, _ := newTestLoginHandler(t, testLoginConfig())

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"username":`, http.StatusBadRequest},
		{"missing password", `{"username":"alice"}`, http.StatusBadRequest},
		{"missing username", `{"password":"x"}`, http.StatusBadRequest},
		{"empty body", ``, http.StatusBadRequest},
		{"oversized body", `{"username":"alice","password":"` + strings.Repeat("x", 8<<10) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := postLogin(h, tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHandleLogin_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	h, _ := newTestLoginHandler(t, testLoginConfig())

	req := httptest.NewRequest(http.MethodGet, "/public/login", nil)
	rec := httptest.NewRecorder()
	h.handleLogin(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestHandleLogin_RateLimited(t *testing.T) {
	t.Parallel()

	cfg := testLoginConfig()
	cfg.RatePerMinute = 1
	cfg.Burst = 1
	h, _ := newTestLoginHandler(t, cfg)

	first := postLogin(h, `{"username":"alice","password":"wrong"}`)
	second := postLogin(h, `{"username":"alice","password":"wrong"}`)

	assert.Equal(t, http.StatusUnauthorized, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
}

func TestHandleLogin_JWTMode(t *testing.T) {
	t.Parallel()

	signer, err := jwt.NewSigner(&jwt.Config{Algorithm: "HS256", Secret: "test-secret-for-signing"})
	require.NoError(t, err)

	h, err := newLoginHandler(
		&config.LoginConfig{Enabled: true, TokenKind: config.TokenKindJWT, RatePerMinute: 6000},
		testDirectory(t), nil, signer, observability.NopLogger(), nil)
	require.NoError(t, err)
	t.Cleanup(h.close)

	rec := postLogin(h, `{"username":"alice","password":"s3cret-pass"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, strings.Count(resp.Token, ".")+1, "expected a three-part compact JWT")
	assert.Greater(t, resp.ExpiresIn, int64(0))
}

func TestHandleLogin_AuditsAttempts(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink, err := audit.NewLogger(&audit.Config{Enabled: true, BufferSize: 16}, audit.WithWriter(&buf))
	require.NoError(t, err)

	manager := token.NewManager(token.NewMemoryStore())
	h, err := newLoginHandler(testLoginConfig(), testDirectory(t), manager, nil,
		observability.NopLogger(), sink)
	require.NoError(t, err)
	t.Cleanup(h.close)

	postLogin(h, `{"username":"alice","password":"wrong"}`)
	postLogin(h, `{"username":"alice","password":"s3cret-pass"}`)
	require.NoError(t, sink.Close())

	var kinds []string
	var decisions []string
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var event audit.Event
		require.NoError(t, json.Unmarshal(line, &event))
		kinds = append(kinds, string(event.Kind))
		decisions = append(decisions, string(event.Decision))
	}
	assert.Equal(t, []string{"login", "login", "token_issue"}, kinds)
	assert.Equal(t, []string{"deny", "allow", "allow"}, decisions)
}

func TestHandleLogout_RevokesToken(t *testing.T) {
	t.Parallel()

	h, manager := newTestLoginHandler(t, testLoginConfig())

	login := postLogin(h, `{"username":"alice","password":"s3cret-pass"}`)
	require.Equal(t, http.StatusOK, login.Code)
	var resp loginResponse
	require.NoError(t, json.Unmarshal(login.Body.Bytes(), &resp))

	req := httptest.NewRequest(http.MethodPost, "/public/logout", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	rec := httptest.NewRecorder()
	h.handleLogout(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err := manager.Validate(context.Background(), resp.Token)
	assert.True(t, errors.Is(err, auth.ErrInvalidToken))
}

func TestHandleLogout_UnknownTokenSucceeds(t *testing.T) {
	t.Parallel()

	h, _ := newTestLoginHandler(t, testLoginConfig())

	req := httptest.NewRequest(http.MethodPost, "/public/logout", nil)
	req.Header.Set("Authorization", "Bearer never-issued")
	rec := httptest.NewRecorder()
	h.handleLogout(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandleLogout_RequiresToken(t *testing.T) {
	t.Parallel()

	h, _ := newTestLoginHandler(t, testLoginConfig())

	req := httptest.NewRequest(http.MethodPost, "/public/logout", nil)
	rec := httptest.NewRecorder()
	h.handleLogout(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"authentication required"}`, rec.Body.String())
}

func TestHandleLogout_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	h, _ := newTestLoginHandler(t, testLoginConfig())

	req := httptest.NewRequest(http.MethodDelete, "/public/logout", nil)
	rec := httptest.NewRecorder()
	h.handleLogout(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLoginThroughChain(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	manager := token.NewManager(token.NewMemoryStore())
	authn := auth.NewAuthenticator(nil, []auth.TokenValidator{manager})

	cfg := testServerConfig(upstream.URL)
	cfg.Login = testLoginConfig()
	cfg.Directory = &config.DirectoryConfig{Mode: config.DirectoryMemory}

	srv, err := New(cfg,
		WithEngine(testEngine(t)),
		WithAuthenticator(authn),
		WithDirectory(testDirectory(t)),
		WithTokenManager(manager),
	)
	require.NoError(t, err)

	// Login through the full middleware chain.
	req := httptest.NewRequest(http.MethodPost, "/public/login",
		strings.NewReader(`{"username":"alice","password":"s3cret-pass"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	// The fresh token opens a protected path.
	apiReq := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	apiReq.Header.Set("Authorization", "Bearer "+resp.Token)
	apiRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(apiRec, apiReq)
	require.Equal(t, http.StatusOK, apiRec.Code)

	// Logout revokes it; the same token is now anonymous.
	outReq := httptest.NewRequest(http.MethodPost, "/public/logout", nil)
	outReq.Header.Set("Authorization", "Bearer "+resp.Token)
	outRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(outRec, outReq)
	require.Equal(t, http.StatusNoContent, outRec.Code)

	retryReq := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	retryReq.Header.Set("Authorization", "Bearer "+resp.Token)
	retryRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(retryRec, retryReq)
	assert.Equal(t, http.StatusUnauthorized, retryRec.Code)
}
