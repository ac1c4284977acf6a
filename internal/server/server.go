package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avauthgate/internal/audit"
	"github.com/vyrodovalexey/avauthgate/internal/auth"
	"github.com/vyrodovalexey/avauthgate/internal/auth/jwt"
	"github.com/vyrodovalexey/avauthgate/internal/auth/token"
	"github.com/vyrodovalexey/avauthgate/internal/authz"
	"github.com/vyrodovalexey/avauthgate/internal/authz/expr"
	"github.com/vyrodovalexey/avauthgate/internal/config"
	"github.com/vyrodovalexey/avauthgate/internal/directory"
	"github.com/vyrodovalexey/avauthgate/internal/health"
	"github.com/vyrodovalexey/avauthgate/internal/middleware"
	"github.com/vyrodovalexey/avauthgate/internal/observability"
)

// State represents the server lifecycle state.
type State int32

const (
	// StateStopped indicates the server is stopped.
	StateStopped State = iota
	// StateStarting indicates the server is starting.
	StateStarting
	// StateRunning indicates the server is running.
	StateRunning
	// StateStopping indicates the server is stopping.
	StateStopping
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// ginModeOnce guards the process-wide gin mode switch.
var ginModeOnce sync.Once

// Server is the authentication gate's HTTP front.
type Server struct {
	logger  observability.Logger
	authn   auth.Authenticator
	engine  *authz.Engine
	dir     directory.Directory
	tokens  *token.Manager
	signer  *jwt.Signer
	tracer  *observability.Tracer
	audit   *audit.Logger
	checker *health.Checker

	handler       http.Handler
	login         *loginHandler
	globalLimiter *middleware.IPLimiter

	ginEngine     *gin.Engine
	httpServer    *http.Server
	metricsServer *http.Server

	state     atomic.Int32
	startTime time.Time

	mu          sync.RWMutex
	cfg         *config.Config
	boundAddr   string
	metricsAddr string
}

// Option is a functional option for configuring the server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuthenticator sets the authenticator run on every request.
func WithAuthenticator(authn auth.Authenticator) Option {
	return func(s *Server) {
		s.authn = authn
	}
}

// WithEngine sets the authorization engine.
func WithEngine(engine *authz.Engine) Option {
	return func(s *Server) {
		s.engine = engine
	}
}

// WithDirectory sets the user directory behind the login endpoint.
func WithDirectory(dir directory.Directory) Option {
	return func(s *Server) {
		s.dir = dir
	}
}

// WithTokenManager sets the opaque token manager used for login,
// logout, and readiness.
func WithTokenManager(tokens *token.Manager) Option {
	return func(s *Server) {
		s.tokens = tokens
	}
}

// WithSigner sets the JWT signer used when login issues JWTs.
func WithSigner(signer *jwt.Signer) Option {
	return func(s *Server) {
		s.signer = signer
	}
}

// WithTracer enables the tracing middleware.
func WithTracer(tracer *observability.Tracer) Option {
	return func(s *Server) {
		s.tracer = tracer
	}
}

// WithAuditLogger sets the audit sink for decisions, logins, and
// reloads.
func WithAuditLogger(sink *audit.Logger) Option {
	return func(s *Server) {
		s.audit = sink
	}
}

// WithHealthChecker sets the checker served on the metrics listener.
// The server registers directory, token store, and upstream probes on
// it; callers may register their own before or after.
func WithHealthChecker(checker *health.Checker) Option {
	return func(s *Server) {
		s.checker = checker
	}
}

// New assembles a server from cfg. The authorization engine is
// required; login endpoints are wired only when the login section is
// enabled and a directory plus a matching issuer are present.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}

	s := &Server{
		logger: observability.NopLogger(),
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.engine == nil {
		return nil, fmt.Errorf("authorization engine is required")
	}
	if s.authn == nil {
		// No validators: every request is anonymous and the rule table
		// alone decides.
		s.authn = auth.NewAuthenticator(cfg.Auth.AuthenticatorConfig(), nil)
	}
	if s.checker == nil {
		s.checker = health.NewChecker("", health.WithLogger(s.logger))
	}

	middleware.SetGlobalIPExtractor(middleware.NewClientIPExtractor(cfg.Server.TrustedProxies))

	if cfg.Login != nil && cfg.Login.Enabled {
		login, err := newLoginHandler(cfg.Login, s.dir, s.tokens, s.signer,
			s.logger, s.audit)
		if err != nil {
			return nil, err
		}
		s.login = login
	}

	proxy, err := newUpstreamProxy(cfg.Upstream, s.logger)
	if err != nil {
		return nil, err
	}

	s.handler = s.buildHandler(proxy)
	s.registerProbes(cfg)

	s.state.Store(int32(StateStopped))

	return s, nil
}

// registerProbes wires dependency health into the checker. Probes are
// non-critical: a failing directory or token store degrades readiness
// while already-authenticated traffic keeps flowing.
func (s *Server) registerProbes(cfg *config.Config) {
	if s.dir != nil {
		s.checker.Register("directory", s.dir.Ping)
	}
	if s.tokens != nil {
		s.checker.Register("token_store", s.tokens.Ping)
	}
	if addr := upstreamAddr(cfg.Upstream.URL); addr != "" {
		timeout := durationOr(cfg.Upstream.DialTimeout, config.DefaultDialTimeout)
		s.checker.Register("upstream", health.TCPCheck(addr, timeout))
	}
}

// Start begins serving on the configured listeners.
func (s *Server) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return fmt.Errorf("server is not in stopped state")
	}

	cfg := s.Config()

	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})
	s.ginEngine = gin.New()
	s.ginEngine.NoRoute(gin.WrapH(s.handler))

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddress,
		Handler:           s.ginEngine,
		ReadTimeout:       durationOr(cfg.Server.ReadTimeout, config.DefaultReadTimeout),
		ReadHeaderTimeout: durationOr(cfg.Server.ReadHeaderTimeout, config.DefaultReadHeaderTimeout),
		WriteTimeout:      durationOr(cfg.Server.WriteTimeout, config.DefaultWriteTimeout),
		IdleTimeout:       durationOr(cfg.Server.IdleTimeout, config.DefaultIdleTimeout),
		MaxHeaderBytes:    maxHeaderBytesOr(cfg.Server.MaxHeaderBytes),
	}

	useTLS := cfg.Server.TLS != nil
	if useTLS {
		tlsCfg, err := buildTLSConfig(cfg.Server.TLS)
		if err != nil {
			s.state.Store(int32(StateStopped))
			return err
		}
		srv.TLSConfig = tlsCfg
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", srv.Addr)
	if err != nil {
		s.state.Store(int32(StateStopped))
		return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
	}
	s.httpServer = srv
	s.mu.Lock()
	s.boundAddr = ln.Addr().String()
	s.mu.Unlock()
	go s.serve(srv, ln, useTLS)

	if cfg.Metrics.Enabled {
		msrv := newMetricsServer(cfg.Metrics, s.checker)
		mln, err := lc.Listen(ctx, "tcp", msrv.Addr)
		if err != nil {
			_ = srv.Close()
			s.state.Store(int32(StateStopped))
			return fmt.Errorf("failed to listen on %s: %w", msrv.Addr, err)
		}
		s.metricsServer = msrv
		s.mu.Lock()
		s.metricsAddr = mln.Addr().String()
		s.mu.Unlock()
		go s.serve(msrv, mln, false)
	}

	s.startTime = time.Now()
	s.state.Store(int32(StateRunning))

	s.logger.Info("server started",
		observability.String("address", s.Address()),
		observability.Bool("tls", useTLS),
		observability.Bool("metrics", cfg.Metrics.Enabled),
	)

	return nil
}

// serve runs one listener until shutdown.
func (s *Server) serve(srv *http.Server, ln net.Listener, useTLS bool) {
	var err error
	if useTLS {
		err = srv.ServeTLS(ln, "", "")
	} else {
		err = srv.Serve(ln)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("listener error",
			observability.String("address", srv.Addr),
			observability.Error(err),
		)
	}
}

// Stop drains in-flight requests and shuts the listeners down. Without
// a deadline on ctx the configured shutdown timeout applies.
func (s *Server) Stop(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return fmt.Errorf("server is not running")
	}

	s.logger.Info("stopping server")

	if _, ok := ctx.Deadline(); !ok {
		timeout := durationOr(s.Config().Server.ShutdownTimeout, config.DefaultShutdownTimeout)
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var wg sync.WaitGroup
	for _, srv := range []*http.Server{s.httpServer, s.metricsServer} {
		if srv == nil {
			continue
		}
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()
			if err := srv.Shutdown(ctx); err != nil {
				s.logger.Error("failed to shutdown listener gracefully",
					observability.String("address", srv.Addr),
					observability.Error(err),
				)
				_ = srv.Close()
			}
		}(srv)
	}
	wg.Wait()

	if s.globalLimiter != nil {
		s.globalLimiter.Stop()
	}
	if s.login != nil {
		s.login.close()
	}

	s.state.Store(int32(StateStopped))
	s.logger.Info("server stopped")

	return nil
}

// Reload recompiles the rule table and policies from cfg and swaps them
// into the running engine. Invalid configuration is rejected and the
// current table keeps serving.
func (s *Server) Reload(cfg *config.Config) error {
	if err := s.applyConfig(cfg); err != nil {
		s.logger.Error("configuration reload rejected", observability.Error(err))
		s.audit.Record(context.Background(), audit.ConfigReload(audit.DecisionDeny, err.Error()))
		return err
	}

	s.logger.Info("configuration reloaded",
		observability.Int("rules", len(cfg.RuleSet())),
		observability.Int("policies", len(cfg.Policies)),
	)
	s.audit.Record(context.Background(), audit.ConfigReload(audit.DecisionAllow, ""))

	return nil
}

// applyConfig validates cfg and swaps the decision state.
func (s *Server) applyConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is required")
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	table, err := cfg.CompileRules()
	if err != nil {
		return fmt.Errorf("compiling rules: %w", err)
	}
	evaluator, err := expr.New(cfg.Policies, expr.WithLogger(s.logger))
	if err != nil {
		return fmt.Errorf("compiling policies: %w", err)
	}

	s.engine.SetTable(table)
	s.engine.SetPolicies(evaluator)

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()

	return nil
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	return s.State() == StateRunning
}

// Uptime returns the time since the server started.
func (s *Server) Uptime() time.Duration {
	if s.startTime.IsZero() {
		return 0
	}
	return time.Since(s.startTime)
}

// Config returns the current configuration.
func (s *Server) Config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Address returns the bound listener address. It differs from the
// configured one when that requested an ephemeral port.
func (s *Server) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.boundAddr
}

// MetricsAddress returns the bound metrics listener address, empty when
// the metrics listener is disabled.
func (s *Server) MetricsAddress() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metricsAddr
}

// Handler returns the assembled middleware chain, for tests and for
// embedding the gate into an existing server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Checker returns the health checker.
func (s *Server) Checker() *health.Checker {
	return s.checker
}

// buildTLSConfig loads the certificate pair and pins the minimum
// version.
func buildTLSConfig(cfg *config.TLSConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("loading TLS key pair: %w", err)
	}

	minVersion := uint16(tls.VersionTLS12)
	if cfg.MinVersion == "1.3" {
		minVersion = tls.VersionTLS13
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   minVersion,
	}, nil
}

// upstreamAddr derives the host:port to probe from the upstream URL.
func upstreamAddr(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Port() != "" {
		return u.Host
	}
	port := "80"
	if u.Scheme == "https" {
		port = "443"
	}
	return net.JoinHostPort(u.Hostname(), port)
}

// durationOr returns d, or def when d is zero.
func durationOr(d config.Duration, def time.Duration) time.Duration {
	if d.Duration() > 0 {
		return d.Duration()
	}
	return def
}

// maxHeaderBytesOr returns n, or 1 MiB when n is zero.
func maxHeaderBytesOr(n int) int {
	if n > 0 {
		return n
	}
	return 1 << 20
}
