//go:build functional
// +build functional

/*
Package functional exercises the assembled gate over real TCP listeners:
rule table decisions, login and logout round trips, policy enforcement,
hot reload through the file watcher, and the metrics listener.
*/
package functional

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avauthgate/internal/auth"
	"github.com/vyrodovalexey/avauthgate/internal/auth/jwt"
	"github.com/vyrodovalexey/avauthgate/internal/auth/token"
	"github.com/vyrodovalexey/avauthgate/internal/authz"
	"github.com/vyrodovalexey/avauthgate/internal/authz/expr"
	"github.com/vyrodovalexey/avauthgate/internal/config"
	"github.com/vyrodovalexey/avauthgate/internal/directory"
	"github.com/vyrodovalexey/avauthgate/internal/observability"
	"github.com/vyrodovalexey/avauthgate/internal/server"
)

// echo is what the test upstream reports back about a request it
// received.
type echo struct {
	Path    string `json:"path"`
	Method  string `json:"method"`
	Subject string `json:"subject"`
	Roles   string `json:"roles"`
	Host    string `json:"host"`
}

// echoUpstream answers every request with a JSON description of what it
// received, so tests can assert on forwarded headers.
func echoUpstream(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(echo{
			Path:    r.URL.Path,
			Method:  r.Method,
			Subject: r.Header.Get("X-Auth-Subject"),
			Roles:   r.Header.Get("X-Auth-Roles"),
			Host:    r.Host,
		})
	}))
	t.Cleanup(srv.Close)

	return srv
}

// gateDoc renders the standard test document: two seeded users, opaque
// login, a public prefix, a denied prefix, and an authenticated
// catch-all.
func gateDoc(t *testing.T, upstreamURL string) string {
	t.Helper()

	aliceHash, err := directory.HashPassword("alice-pass-1")
	require.NoError(t, err)
	bobHash, err := directory.HashPassword("bob-pass-1")
	require.NoError(t, err)

	return fmt.Sprintf(`
server:
  listen_address: 127.0.0.1:0
upstream:
  url: %s
rules:
  - pattern: /public/**
    verdict: admit
  - pattern: /blocked/**
    verdict: deny
  - pattern: /**
    verdict: require_authenticated
auth:
  opaque:
    store: memory
directory:
  mode: memory
  users:
    - id: u-1
      username: alice
      password_hash: %s
      roles: [admin, reader]
      active: true
    - id: u-2
      username: bob
      password_hash: %s
      roles: [reader]
      active: true
login:
  enabled: true
  rate_per_minute: 6000
  burst: 1000
logging:
  access_log: false
metrics:
  enabled: false
`, upstreamURL, aliceHash, bobHash)
}

type gateEnv struct {
	srv     *server.Server
	baseURL string
	client  *http.Client
}

// startGate parses and validates the document, assembles the gate the
// way the entrypoint does, and serves it on an ephemeral port.
func startGate(t *testing.T, doc string) *gateEnv {
	t.Helper()

	cfg, err := config.LoadConfigFromReader(strings.NewReader(doc))
	require.NoError(t, err)
	require.NoError(t, config.ValidateConfig(cfg))

	return startGateFromConfig(t, cfg)
}

func startGateFromConfig(t *testing.T, cfg *config.Config) *gateEnv {
	t.Helper()

	opts := []server.Option{server.WithLogger(observability.NopLogger())}

	var manager *token.Manager
	if cfg.Auth.Opaque != nil {
		manager = token.NewManager(token.NewMemoryStore())
		opts = append(opts, server.WithTokenManager(manager))
	}

	var validators []auth.TokenValidator
	if cfg.Auth.JWT != nil {
		jv, err := jwt.NewValidator(context.Background(), cfg.Auth.JWT.ValidatorConfig())
		require.NoError(t, err)
		validators = append(validators, jv)
	}
	if manager != nil {
		validators = append(validators, manager)
	}
	opts = append(opts, server.WithAuthenticator(
		auth.NewAuthenticator(cfg.Auth.AuthenticatorConfig(), validators)))

	table, err := cfg.CompileRules()
	require.NoError(t, err)

	var engineOpts []authz.EngineOption
	if len(cfg.Policies) > 0 {
		ev, err := expr.New(cfg.Policies)
		require.NoError(t, err)
		engineOpts = append(engineOpts, authz.WithPolicies(ev))
	}
	opts = append(opts, server.WithEngine(authz.NewEngine(table, engineOpts...)))

	if cfg.Directory != nil {
		dir, err := directory.NewMemoryDirectory(cfg.Directory.MemoryUsers())
		require.NoError(t, err)
		opts = append(opts, server.WithDirectory(dir))
	}

	if cfg.Login != nil && cfg.Login.Enabled && cfg.Login.TokenKind == config.TokenKindJWT {
		signer, err := jwt.NewSigner(cfg.Auth.JWT.ValidatorConfig())
		require.NoError(t, err)
		opts = append(opts, server.WithSigner(signer))
	}

	srv, err := server.New(cfg, opts...)
	require.NoError(t, err)

	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})

	return &gateEnv{
		srv:     srv,
		baseURL: "http://" + srv.Address(),
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// get performs a GET through the gate with an optional bearer token.
func (e *gateEnv) get(t *testing.T, path, bearer string) (*http.Response, string) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, e.baseURL+path, nil)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	return e.do(t, req)
}

// postJSON posts a JSON body through the gate with an optional bearer
// token.
func (e *gateEnv) postJSON(t *testing.T, path, body, bearer string) (*http.Response, string) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, e.baseURL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	return e.do(t, req)
}

func (e *gateEnv) do(t *testing.T, req *http.Request) (*http.Response, string) {
	t.Helper()

	resp, err := e.client.Do(req)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	return resp, string(body)
}

// login exchanges credentials for a token and fails the test on
// rejection.
func (e *gateEnv) login(t *testing.T, username, password string) string {
	t.Helper()

	resp, body := e.postJSON(t, "/public/login",
		fmt.Sprintf(`{"username":%q,"password":%q}`, username, password), "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	require.NotEmpty(t, out.Token)

	return out.Token
}

// decodeEcho parses the upstream's echo response.
func decodeEcho(t *testing.T, body string) echo {
	t.Helper()

	var e echo
	require.NoError(t, json.Unmarshal([]byte(body), &e))
	return e
}
