package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/assetflow/internal/audit"
	"github.com/aussiebroadwan/assetflow/internal/auth/authz"
	"github.com/aussiebroadwan/assetflow/internal/auth/domain"
	httpapi "github.com/aussiebroadwan/assetflow/internal/auth/http"
	"github.com/aussiebroadwan/assetflow/internal/auth/risk"
	"github.com/aussiebroadwan/assetflow/internal/auth/service"
	"github.com/aussiebroadwan/assetflow/internal/auth/store"
	"github.com/aussiebroadwan/assetflow/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/assetflow/internal/notify"
	"github.com/aussiebroadwan/assetflow/internal/obs"
	"github.com/aussiebroadwan/assetflow/pkg/cryptox"
	"github.com/aussiebroadwan/assetflow/pkg/jwtx"
	"github.com/aussiebroadwan/assetflow/pkg/slogx"
	"github.com/redis/go-redis/v9"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db         store.Store
	keyManager *jwtx.KeyManager
	hasher     *cryptox.Argon2Hasher
	metrics    *obs.Metrics
	redis      *redis.Client // nil when the reputation cache is disabled

	// Background workers
	auditPipeline       *audit.Pipeline
	dispatcher          *notify.Dispatcher
	housekeepingService *service.HousekeepingService

	// Services
	tokenService *service.TokenService
	loginService *service.LoginService
	evaluator    *authz.Evaluator

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	pepper, err := cryptox.LoadOrGeneratePepper(cfg.PepperFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}
	app.hasher = cryptox.NewArgon2Hasher(pepper)
	if app.cfg.Policy.FingerprintSecret == "" {
		app.cfg.Policy.FingerprintSecret = pepper
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	keyManager, err := InitAuthKeys(app.cfg, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize JWT keys: %w", err)
	}
	app.keyManager = keyManager

	app.metrics = obs.NewMetrics()
	app.metrics.SetBuildInfo(BuildVersion)

	app.initWorkers()
	app.initServices()

	if err := app.bootstrap(context.Background()); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.auditPipeline.Start()
	app.dispatcher.Start()
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = app.Shutdown()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown stops accepting requests, drains the audit and notification
// queues and closes the database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	// Requests are finished, so nothing enqueues after this point.
	if err := app.dispatcher.Stop(ctx); err != nil {
		app.logger.Error("notification queue not drained", "error", err)
	}
	if err := app.auditPipeline.Stop(ctx); err != nil {
		app.logger.Error("audit queue not drained", "error", err)
	}

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate",
		app.cfg.DatabaseFile,
	)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initWorkers creates the audit pipeline, the notification dispatcher and
// the housekeeping loop. They are started by Run.
func (app *Application) initWorkers() {
	app.auditPipeline = audit.NewPipeline(
		audit.StoreSink{Store: app.db},
		app.logger,
		app.metrics,
		audit.Config{
			BatchSize: app.cfg.AuditBatchSize,
			MaxWait:   app.cfg.AuditMaxWait,
			QueueSize: app.cfg.AuditQueueSize,
		},
	)

	var sender notify.Sender = notify.LogSender{Logger: app.logger}
	if app.cfg.SMTPHost != "" {
		sender = notify.NewSMTPSender(app.cfg.SMTPHost, app.cfg.SMTPPort, app.cfg.SMTPUsername, app.cfg.SMTPPassword, app.cfg.SMTPFrom)
		app.logger.Info("email notifications enabled", "smtp_host", app.cfg.SMTPHost)
	} else {
		app.logger.Warn("SMTP_HOST not set, notifications will only be logged")
	}
	app.dispatcher = notify.NewDispatcher(sender, app.logger, app.metrics, app.cfg.NotifyQueueSize)

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.ChallengeRetention,
	)
}

// initReputation builds the IP reputation assessor, with a redis cache in
// front of AbuseIPDB when REDIS_ADDR is set.
func (app *Application) initReputation() *risk.Assessor {
	var checker risk.ReputationChecker
	switch {
	case app.cfg.AbuseIPDBKey == "":
		app.logger.Warn("ABUSEIPDB_API_KEY not set, reputation lookups will use the failure policy",
			"fail_open", app.cfg.ReputationFailOpen)
	case app.cfg.RedisAddr != "":
		app.redis = redis.NewClient(&redis.Options{
			Addr:     app.cfg.RedisAddr,
			Password: app.cfg.RedisPassword,
			DB:       app.cfg.RedisDB,
		})
		checker = &risk.CachedChecker{
			Next:  app.newAbuseIPDB(),
			Redis: app.redis,
			TTL:   app.cfg.ReputationCacheTTL,
		}
		app.logger.Info("reputation cache enabled", "redis_addr", app.cfg.RedisAddr, "ttl", app.cfg.ReputationCacheTTL)
	default:
		checker = app.newAbuseIPDB()
	}

	return &risk.Assessor{
		Checker:    checker,
		ScoreLimit: app.cfg.Policy.FraudScoreLimit,
		Timeout:    app.cfg.ReputationTimeout,
		FailOpen:   app.cfg.ReputationFailOpen,
		Metrics:    app.metrics,
	}
}

func (app *Application) newAbuseIPDB() *risk.AbuseIPDB {
	return risk.NewAbuseIPDB(
		app.cfg.AbuseIPDBKey,
		app.cfg.HomeCountry,
		app.cfg.Policy.FraudScoreLimit,
		app.cfg.ReputationTimeout,
	)
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.tokenService = &service.TokenService{
		KeyManager:     app.keyManager,
		Issuer:         app.cfg.Issuer,
		AccessTTL:      app.cfg.AccessTTL,
		RefreshTTL:     app.cfg.RefreshTTL,
		TempSessionTTL: app.cfg.TempSessionTTL,
		UnlockTTL:      app.cfg.UnlockTTL,
	}

	app.loginService = &service.LoginService{
		Store:    app.db,
		Hasher:   app.hasher,
		Tokens:   app.tokenService,
		Roles:    service.NewRoleLabeler(app.cfg.RoleLabels),
		Codes:    service.HOTPCodes{Digits: app.cfg.MFACodeLength},
		Auditor:  app.auditPipeline,
		Notifier: app.dispatcher,
		Templates: notify.Templates{
			Product:   app.cfg.Product,
			UnlockURL: app.cfg.UnlockURL,
		},
		Metrics: app.metrics,
		Policy:  app.cfg.Policy,
	}
	if app.cfg.ReputationEnabled {
		app.loginService.Reputation = app.initReputation()
	} else {
		app.logger.Warn("IP reputation check disabled")
	}

	app.evaluator = &authz.Evaluator{
		Store:   app.db,
		Auditor: app.auditPipeline,
		Metrics: app.metrics,
		Debug:   app.cfg.AuthzDebug,
	}
}

// bootstrap creates the first administrator when BOOTSTRAP_ADMIN_EMAIL is
// set. Restarting with the same settings is a no-op.
func (app *Application) bootstrap(ctx context.Context) error {
	if app.cfg.BootstrapAdminEmail == "" {
		return nil
	}
	if app.cfg.BootstrapAdminPassword == "" {
		return errors.New("BOOTSTRAP_ADMIN_PASSWORD is required with BOOTSTRAP_ADMIN_EMAIL")
	}

	svc := &service.BootstrapService{Store: app.db, Hasher: app.hasher}
	id, err := svc.Bootstrap(slogx.WithContext(ctx, app.logger), service.BootstrapData{
		AdminEmail:     app.cfg.BootstrapAdminEmail,
		AdminPassword:  app.cfg.BootstrapAdminPassword,
		AdminFirstName: app.cfg.BootstrapAdminFirstName,
		AdminRoleID:    app.cfg.BootstrapAdminRoleID,
		Roles: []domain.Role{{
			ID:          app.cfg.BootstrapAdminRoleID,
			Name:        "Administrator",
			Description: "Full access to every resource",
			Permissions: []string{domain.WildcardPermission},
		}},
	})
	switch {
	case errors.Is(err, service.ErrBootstrapAlready):
		app.logger.Info("bootstrap skipped, admin account already exists")
		return nil
	case err != nil:
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	app.logger.Info("bootstrap admin created", "account_id", id, "email", app.cfg.BootstrapAdminEmail)
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keyManager.KeySet,
		app.keyManager.Verifier,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.LoginService = app.loginService
	router.Evaluator = app.evaluator
	router.Audit = app.auditPipeline
	router.AdminRoles = app.cfg.AdminRoles
	router.TrustedProxies = app.cfg.TrustedProxies
	if app.cfg.MetricsEnabled {
		router.Metrics = app.metrics
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
