// Package main is the entry point for the authentication gate.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vyrodovalexey/avauthgate/internal/audit"
	"github.com/vyrodovalexey/avauthgate/internal/auth"
	"github.com/vyrodovalexey/avauthgate/internal/auth/introspect"
	"github.com/vyrodovalexey/avauthgate/internal/auth/jwt"
	"github.com/vyrodovalexey/avauthgate/internal/auth/token"
	"github.com/vyrodovalexey/avauthgate/internal/authz"
	"github.com/vyrodovalexey/avauthgate/internal/authz/expr"
	"github.com/vyrodovalexey/avauthgate/internal/config"
	"github.com/vyrodovalexey/avauthgate/internal/directory"
	"github.com/vyrodovalexey/avauthgate/internal/health"
	"github.com/vyrodovalexey/avauthgate/internal/observability"
	"github.com/vyrodovalexey/avauthgate/internal/secrets"
	"github.com/vyrodovalexey/avauthgate/internal/server"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

const (
	metricsNamespace = "authgate"
	shutdownTimeout  = 30 * time.Second
	initTimeout      = 30 * time.Second
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	loadDotEnv()

	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg, resolver := loadAndValidateConfig(flags.configPath, logger)
	logger = applyLoggingConfig(cfg, logger)

	app := initApplication(cfg, resolver, logger)

	runGate(app, flags.configPath, logger)
}

// loadDotEnv loads a .env file into the environment before flags read
// it. A missing default file is fine; an explicitly named one is not.
func loadDotEnv() {
	if path := os.Getenv("AUTHGATE_ENV_FILE"); path != "" {
		if err := godotenv.Load(path); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load env file %s: %v\n", path, err)
			os.Exit(1)
		}
		return
	}
	_ = godotenv.Load()
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("AUTHGATE_CONFIG_PATH", "configs/authgate.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("AUTHGATE_LOG_LEVEL", "info"),
		"Bootstrap log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("AUTHGATE_LOG_FORMAT", "json"),
		"Bootstrap log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("avauthgate version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the bootstrap logger from flags. It reports
// configuration problems; the document's logging section takes over
// once the document parses.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// applyLoggingConfig replaces the bootstrap logger with the one the
// document configures.
func applyLoggingConfig(cfg *config.Config, boot observability.Logger) observability.Logger {
	logger, err := observability.NewLogger(cfg.Logging.LogConfig())
	if err != nil {
		boot.Fatal("failed to configure logger", observability.Error(err))
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// loadAndValidateConfig loads the configuration, resolves secret
// references, and validates the result.
func loadAndValidateConfig(configPath string, logger observability.Logger) (*config.Config, *secrets.Resolver) {
	logger.Info("starting avauthgate",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}

	var resolver *secrets.Resolver
	if cfg.Secrets != nil {
		ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
		defer cancel()

		resolver, err = secrets.NewResolver(ctx, cfg.Secrets, logger)
		if err != nil {
			logger.Fatal("failed to initialize secrets provider", observability.Error(err))
		}

		if err := secrets.ApplyToConfig(ctx, resolver, cfg); err != nil {
			logger.Fatal("failed to resolve secret references", observability.Error(err))
		}
	}

	if err := config.ValidateConfig(cfg); err != nil {
		logger.Fatal("invalid configuration", observability.Error(err))
	}

	logger.Info("configuration loaded",
		observability.String("upstream", cfg.Upstream.URL),
		observability.Int("rules", len(cfg.Rules)),
		observability.Int("policies", len(cfg.Policies)),
		observability.Bool("login", cfg.Login != nil && cfg.Login.Enabled),
	)

	return cfg, resolver
}

// application holds all application components.
type application struct {
	server   *server.Server
	tracer   *observability.Tracer
	audit    *audit.Logger
	resolver *secrets.Resolver
	store    token.Store
	dir      directory.Directory
	config   *config.Config
}

// initApplication initializes all application components.
func initApplication(cfg *config.Config, resolver *secrets.Resolver, logger observability.Logger) *application {
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	tracer := initTracer(cfg, logger)

	checker := health.NewChecker(version, health.WithLogger(logger))
	if resolver != nil {
		checker.Register("secrets", resolver.HealthCheck)
	}

	dir := initDirectory(ctx, cfg, logger)
	store, manager := initTokenManager(ctx, cfg, logger)
	validators := initValidators(cfg, manager, logger)

	authn := auth.NewAuthenticator(cfg.Auth.AuthenticatorConfig(), validators,
		auth.WithLogger(logger),
		auth.WithMetrics(auth.NewMetrics(metricsNamespace)),
	)

	engine := initEngine(cfg, logger)
	signer := initSigner(cfg, logger)
	auditLogger := initAuditLogger(cfg, logger)

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithAuthenticator(authn),
		server.WithEngine(engine),
		server.WithHealthChecker(checker),
	}
	if dir != nil {
		opts = append(opts, server.WithDirectory(dir))
	}
	if manager != nil {
		opts = append(opts, server.WithTokenManager(manager))
	}
	if signer != nil {
		opts = append(opts, server.WithSigner(signer))
	}
	if cfg.Tracing.Enabled {
		opts = append(opts, server.WithTracer(tracer))
	}
	if auditLogger != nil {
		opts = append(opts, server.WithAuditLogger(auditLogger))
	}

	srv, err := server.New(cfg, opts...)
	if err != nil {
		logger.Fatal("failed to create server", observability.Error(err))
	}

	return &application{
		server:   srv,
		tracer:   tracer,
		audit:    auditLogger,
		resolver: resolver,
		store:    store,
		dir:      dir,
		config:   cfg,
	}
}

// initTracer initializes the tracer.
func initTracer(cfg *config.Config, logger observability.Logger) *observability.Tracer {
	tracer, err := observability.NewTracer(cfg.Tracing.TracerConfig())
	if err != nil {
		logger.Fatal("failed to initialize tracer", observability.Error(err))
	}

	return tracer
}

// initDirectory initializes the user directory when the document
// configures one.
func initDirectory(ctx context.Context, cfg *config.Config, logger observability.Logger) directory.Directory {
	if cfg.Directory == nil {
		return nil
	}

	metrics := directory.NewMetrics(metricsNamespace)

	switch cfg.Directory.Mode {
	case config.DirectoryPostgres:
		dir, err := directory.NewPostgresDirectory(ctx, cfg.Directory.Postgres.DirectoryConfig(),
			directory.WithPostgresLogger(logger),
			directory.WithPostgresMetrics(metrics),
		)
		if err != nil {
			logger.Fatal("failed to connect to user directory", observability.Error(err))
		}
		return dir
	default:
		dir, err := directory.NewMemoryDirectory(cfg.Directory.MemoryUsers(),
			directory.WithMemoryMetrics(metrics),
		)
		if err != nil {
			logger.Fatal("failed to seed user directory", observability.Error(err))
		}
		return dir
	}
}

// initTokenManager initializes the opaque token store and manager when
// the document configures opaque tokens.
func initTokenManager(ctx context.Context, cfg *config.Config, logger observability.Logger) (token.Store, *token.Manager) {
	opaque := cfg.Auth.Opaque
	if opaque == nil {
		return nil, nil
	}

	var store token.Store
	switch opaque.Store {
	case config.StoreRedis:
		rs, err := token.NewRedisStore(ctx, opaque.Redis.StoreConfig(),
			token.WithRedisLogger(logger),
		)
		if err != nil {
			logger.Fatal("failed to connect to redis token store", observability.Error(err))
		}
		store = rs
	default:
		store = token.NewMemoryStore()
	}

	mopts := []token.ManagerOption{
		token.WithManagerLogger(logger),
	}
	if ttl := tokenTTL(cfg); ttl > 0 {
		mopts = append(mopts, token.WithTTL(ttl))
	}

	return store, token.NewManager(store, mopts...)
}

// tokenTTL picks the issued-token lifetime: the login section's
// override wins over the opaque store's.
func tokenTTL(cfg *config.Config) time.Duration {
	if cfg.Login != nil && cfg.Login.TokenTTL.Duration() > 0 {
		return cfg.Login.TokenTTL.Duration()
	}
	if cfg.Auth.Opaque != nil {
		return cfg.Auth.Opaque.TTL.Duration()
	}
	return 0
}

// initValidators assembles the validator chain in the order the
// authenticator tries them: local JWT verification, then the opaque
// store, then remote introspection.
func initValidators(cfg *config.Config, manager *token.Manager, logger observability.Logger) []auth.TokenValidator {
	var validators []auth.TokenValidator

	if cfg.Auth.JWT != nil {
		// The validator's JWKS refresh loop runs until this context is
		// canceled, so it gets the process lifetime, not the init
		// deadline.
		jv, err := jwt.NewValidator(context.Background(), cfg.Auth.JWT.ValidatorConfig(),
			jwt.WithValidatorLogger(logger),
		)
		if err != nil {
			logger.Fatal("failed to initialize JWT validator", observability.Error(err))
		}
		validators = append(validators, jv)
	}

	if manager != nil {
		validators = append(validators, manager)
	}

	if cfg.Auth.Introspection != nil {
		ic, err := introspect.New(cfg.Auth.Introspection.ClientConfig(),
			introspect.WithClientLogger(logger),
		)
		if err != nil {
			logger.Fatal("failed to initialize introspection client", observability.Error(err))
		}
		validators = append(validators, ic)
	}

	return validators
}

// initEngine compiles the rule table and expression policies into the
// authorization engine.
func initEngine(cfg *config.Config, logger observability.Logger) *authz.Engine {
	table, err := cfg.CompileRules()
	if err != nil {
		logger.Fatal("failed to compile rule table", observability.Error(err))
	}

	opts := []authz.EngineOption{
		authz.WithEngineLogger(logger),
		authz.WithEngineMetrics(authz.NewMetrics(metricsNamespace)),
	}

	if len(cfg.Policies) > 0 {
		ev, err := expr.New(cfg.Policies,
			expr.WithLogger(logger),
			expr.WithMetrics(expr.NewMetrics(metricsNamespace)),
		)
		if err != nil {
			logger.Fatal("failed to compile policies", observability.Error(err))
		}
		opts = append(opts, authz.WithPolicies(ev))
	}

	return authz.NewEngine(table, opts...)
}

// initSigner initializes the JWT issuer when the login endpoint issues
// JWTs. Validation has already required the auth.jwt section and its
// signing material.
func initSigner(cfg *config.Config, logger observability.Logger) *jwt.Signer {
	if cfg.Login == nil || !cfg.Login.Enabled || cfg.Login.TokenKind != config.TokenKindJWT {
		return nil
	}

	signerCfg := cfg.Auth.JWT.ValidatorConfig()
	if ttl := cfg.Login.TokenTTL.Duration(); ttl > 0 {
		signerCfg.TokenTTL = ttl
	}

	signer, err := jwt.NewSigner(signerCfg)
	if err != nil {
		logger.Fatal("failed to initialize token signer", observability.Error(err))
	}

	return signer
}

// initAuditLogger initializes the audit log when the document
// configures one.
func initAuditLogger(cfg *config.Config, logger observability.Logger) *audit.Logger {
	if cfg.Audit == nil {
		return nil
	}

	auditLogger, err := audit.NewLogger(cfg.Audit.LoggerConfig(),
		audit.WithLogger(logger),
		audit.WithMetrics(audit.NewMetrics(metricsNamespace)),
	)
	if err != nil {
		logger.Fatal("failed to initialize audit log", observability.Error(err))
	}

	return auditLogger
}

// runGate runs the gate and handles shutdown.
func runGate(app *application, configPath string, logger observability.Logger) {
	ctx := context.Background()

	if err := app.server.Start(ctx); err != nil {
		logger.Fatal("failed to start server", observability.Error(err))
	}

	watcher := startConfigWatcher(app, configPath, logger)

	waitForShutdown(app, watcher, logger)
}

// startConfigWatcher starts the configuration watcher. Reload feeds the
// running server a freshly resolved document; a watcher failure
// degrades hot reload, not the gate.
func startConfigWatcher(
	app *application,
	configPath string,
	logger observability.Logger,
) *config.Watcher {
	watcher, err := config.NewWatcher(configPath, func(newCfg *config.Config) {
		logger.Info("configuration changed, reloading")

		if app.resolver != nil {
			ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
			defer cancel()

			if err := secrets.ApplyToConfig(ctx, app.resolver, newCfg); err != nil {
				logger.Error("failed to resolve secret references", observability.Error(err))
				return
			}
		}

		if reloadErr := app.server.Reload(newCfg); reloadErr != nil {
			logger.Error("failed to reload configuration", observability.Error(reloadErr))
		}
	}, config.WithLogger(logger))

	if err != nil {
		logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(context.Background()); err != nil {
		logger.Warn("failed to start config watcher", observability.Error(err))
	}

	return watcher
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown.
func waitForShutdown(app *application, watcher *config.Watcher, logger observability.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", observability.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if watcher != nil {
		_ = watcher.Stop()
	}

	if err := app.server.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop server gracefully", observability.Error(err))
	}

	if app.audit != nil {
		if err := app.audit.Close(); err != nil {
			logger.Error("failed to close audit log", observability.Error(err))
		}
	}

	if app.store != nil {
		if err := app.store.Close(); err != nil {
			logger.Error("failed to close token store", observability.Error(err))
		}
	}

	if app.dir != nil {
		if err := app.dir.Close(); err != nil {
			logger.Error("failed to close user directory", observability.Error(err))
		}
	}

	if app.resolver != nil {
		app.resolver.Close()
	}

	if err := app.tracer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	logger.Info("gate stopped")
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
