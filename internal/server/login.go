package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vyrodovalexey/avauthgate/internal/audit"
	"github.com/vyrodovalexey/avauthgate/internal/auth"
	"github.com/vyrodovalexey/avauthgate/internal/auth/jwt"
	"github.com/vyrodovalexey/avauthgate/internal/auth/token"
	"github.com/vyrodovalexey/avauthgate/internal/config"
	"github.com/vyrodovalexey/avauthgate/internal/directory"
	"github.com/vyrodovalexey/avauthgate/internal/middleware"
	"github.com/vyrodovalexey/avauthgate/internal/observability"
)

// maxLoginBodyBytes bounds the login request body.
const maxLoginBodyBytes = 4 << 10

// tokenTypeBearer is the token_type returned by login.
const tokenTypeBearer = "Bearer"

// Login endpoint response bodies. Credential failures are deliberately
// uniform: the caller never learns whether the username or the password
// was wrong.
const (
	bodyInvalidBody        = `{"error":"invalid request body"}`
	bodyBodyTooLarge       = `{"error":"request body too large"}`
	bodyMissingCredentials = `{"error":"username and password are required"}`
	bodyInvalidCredentials = `{"error":"invalid credentials"}`
	bodyAuthRequired       = `{"error":"authentication required"}`
	bodyMethodNotAllowed   = `{"error":"method not allowed"}`
	bodyRateLimited        = `{"error":"rate limit exceeded"}`
	bodyUnavailable        = `{"error":"service unavailable"}`
	bodyInternal           = `{"error":"internal server error"}`
)

// loginRequest is the login body. Length caps keep bcrypt input and
// log lines bounded.
type loginRequest struct {
	Username string `json:"username" validate:"required,max=256"`
	Password string `json:"password" validate:"required,max=1024"`
}

// loginResponse is the successful login body.
type loginResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}

// loginHandler serves the credential login and logout endpoints.
type loginHandler struct {
	dir        directory.Directory
	tokens     *token.Manager
	signer     *jwt.Signer
	kind       string
	path       string
	logoutPath string
	extractor  auth.Extractor
	limiter    *middleware.IPLimiter
	logger     observability.Logger
	audit      *audit.Logger
	validate   *validator.Validate
}

// newLoginHandler wires the login endpoints from the config section.
// The directory is required; the token manager or signer must match the
// configured token kind.
func newLoginHandler(
	cfg *config.LoginConfig,
	dir directory.Directory,
	tokens *token.Manager,
	signer *jwt.Signer,
	logger observability.Logger,
	sink *audit.Logger,
) (*loginHandler, error) {
	if dir == nil {
		return nil, fmt.Errorf("login requires a user directory")
	}

	kind := cfg.TokenKind
	if kind == "" {
		kind = config.TokenKindOpaque
	}
	switch kind {
	case config.TokenKindOpaque:
		if tokens == nil {
			return nil, fmt.Errorf("login with opaque tokens requires a token manager")
		}
	case config.TokenKindJWT:
		if signer == nil {
			return nil, fmt.Errorf("login with JWT tokens requires a signer")
		}
	default:
		return nil, fmt.Errorf("unknown login token kind %q", cfg.TokenKind)
	}

	path := cfg.Path
	if path == "" {
		path = config.DefaultLoginPath
	}

	// Logout revokes server-side state, so it only exists in opaque
	// mode. JWTs expire on their own.
	logoutPath := ""
	if kind == config.TokenKindOpaque {
		logoutPath = cfg.LogoutPath
		if logoutPath == "" {
			logoutPath = config.DefaultLogoutPath
		}
	}

	ratePerMinute := cfg.RatePerMinute
	if ratePerMinute <= 0 {
		ratePerMinute = config.DefaultLoginRatePerMinute
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = config.DefaultLoginBurst
	}
	limiter := middleware.NewIPLimiter(float64(ratePerMinute)/60.0, burst,
		middleware.WithLimiterLogger(logger))
	limiter.StartSweeper()

	return &loginHandler{
		dir:        dir,
		tokens:     tokens,
		signer:     signer,
		kind:       kind,
		path:       path,
		logoutPath: logoutPath,
		extractor:  auth.NewExtractor(nil),
		limiter:    limiter,
		logger:     logger,
		audit:      sink,
		validate:   validator.New(),
	}, nil
}

// close stops the limiter's background sweeper.
func (h *loginHandler) close() {
	h.limiter.Stop()
}

// handleLogin authenticates a username/password pair against the
// directory and issues a token.
func (h *loginHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, bodyMethodNotAllowed)
		return
	}

	ctx := r.Context()
	clientIP := middleware.ClientIP(r)

	if !h.limiter.Allow(clientIP) {
		h.audit.Record(ctx, audit.Login("", audit.DecisionDeny, "rate limited").
			WithRoute(r.Method, r.URL.Path).
			WithClientIP(clientIP))
		w.Header().Set(middleware.HeaderRetryAfter, "1")
		writeError(w, http.StatusTooManyRequests, bodyRateLimited)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBodyBytes)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, bodyBodyTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, bodyInvalidBody)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, bodyMissingCredentials)
		return
	}

	user, err := directory.Authenticate(ctx, h.dir, req.Username, req.Password)
	if err != nil {
		h.rejectLogin(ctx, w, r, req.Username, clientIP, err)
		return
	}

	tok, expiresIn, err := h.issue(ctx, user)
	if err != nil {
		h.logger.Error("failed to issue token",
			observability.String("subject", user.ID),
			observability.String("kind", h.kind),
			observability.Error(err),
		)
		writeError(w, http.StatusInternalServerError, bodyInternal)
		return
	}

	h.logger.Info("login succeeded",
		observability.String("subject", user.ID),
		observability.String("username", user.Username),
		observability.String("client_ip", clientIP),
	)
	h.audit.Record(ctx, audit.Login(user.ID, audit.DecisionAllow, "").
		WithRoute(r.Method, r.URL.Path).
		WithClientIP(clientIP))
	h.audit.Record(ctx, audit.TokenIssue(user.ID, h.kind))

	w.Header().Set("Authorization", tokenTypeBearer+" "+tok)
	w.Header().Set(middleware.HeaderContentType, middleware.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(loginResponse{
		Token:     tok,
		TokenType: tokenTypeBearer,
		ExpiresIn: expiresIn,
	})
}

// rejectLogin renders a failed credential check. Unknown users, wrong
// passwords, and inactive users all get the same 401; only the audit
// trail records the distinction.
func (h *loginHandler) rejectLogin(
	ctx context.Context,
	w http.ResponseWriter,
	r *http.Request,
	username, clientIP string,
	err error,
) {
	reason := "invalid credentials"
	switch {
	case errors.Is(err, directory.ErrInvalidCredentials):
	case errors.Is(err, directory.ErrUserInactive):
		reason = "user inactive"
	default:
		h.logger.Error("directory lookup failed", observability.Error(err))
		writeError(w, http.StatusServiceUnavailable, bodyUnavailable)
		return
	}

	h.logger.Info("login rejected",
		observability.String("username", username),
		observability.String("client_ip", clientIP),
		observability.String("reason", reason),
	)
	h.audit.Record(ctx, audit.Login(username, audit.DecisionDeny, reason).
		WithRoute(r.Method, r.URL.Path).
		WithClientIP(clientIP))
	writeError(w, http.StatusUnauthorized, bodyInvalidCredentials)
}

// issue mints a token of the configured kind for the user.
func (h *loginHandler) issue(ctx context.Context, user *directory.UserRecord) (string, int64, error) {
	if h.kind == config.TokenKindJWT {
		tok, expiry, err := h.signer.Issue(jwt.IssueRequest{
			Subject:  user.ID,
			Username: user.Username,
			Roles:    user.Roles,
		})
		if err != nil {
			return "", 0, err
		}
		return tok, int64(time.Until(expiry).Seconds()), nil
	}

	raw, rec, err := h.tokens.Issue(ctx, user.ID, user.Username, user.Roles, nil)
	if err != nil {
		return "", 0, err
	}
	return raw, int64(time.Until(rec.ExpiresAt).Seconds()), nil
}

// handleLogout revokes the presented opaque token. Revoking an unknown
// token succeeds, so the response never reveals token validity.
func (h *loginHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, bodyMethodNotAllowed)
		return
	}

	ctx := r.Context()

	cred, err := h.extractor.Extract(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, bodyAuthRequired)
		return
	}

	if err := h.tokens.Revoke(ctx, cred.Token); err != nil {
		h.logger.Error("failed to revoke token", observability.Error(err))
		writeError(w, http.StatusServiceUnavailable, bodyUnavailable)
		return
	}

	// The authenticate stage already resolved the token, so the subject
	// is on the context when the token was live.
	var subject string
	if principal, ok := auth.PrincipalFromContext(ctx); ok && principal != nil {
		subject = principal.Subject
	}
	h.audit.Record(ctx, audit.TokenRevoke(subject, h.kind).
		WithClientIP(middleware.ClientIP(r)))

	w.WriteHeader(http.StatusNoContent)
}

// writeError renders a JSON error body.
func writeError(w http.ResponseWriter, status int, body string) {
	w.Header().Set(middleware.HeaderContentType, middleware.ContentTypeJSON)
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
