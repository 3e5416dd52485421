// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bkotelnikov/shopadmin/internal/audit"
	auditpostgres "github.com/bkotelnikov/shopadmin/internal/audit/postgres"
	"github.com/bkotelnikov/shopadmin/internal/catalog"
	catalogpostgres "github.com/bkotelnikov/shopadmin/internal/catalog/postgres"
	"github.com/bkotelnikov/shopadmin/internal/config"
	"github.com/bkotelnikov/shopadmin/internal/domain"
	"github.com/bkotelnikov/shopadmin/internal/identity"
	"github.com/bkotelnikov/shopadmin/internal/identity/jwt"
	identitypostgres "github.com/bkotelnikov/shopadmin/internal/identity/postgres"
	"github.com/bkotelnikov/shopadmin/internal/mailer"
	"github.com/bkotelnikov/shopadmin/internal/pkg/ctxlog"
	"github.com/bkotelnikov/shopadmin/internal/pkg/httputil"
	"github.com/bkotelnikov/shopadmin/internal/pkg/metrics"
	"github.com/bkotelnikov/shopadmin/internal/pkg/postgres"
	"github.com/bkotelnikov/shopadmin/internal/policy"
	"github.com/bkotelnikov/shopadmin/internal/users"
	userspostgres "github.com/bkotelnikov/shopadmin/internal/users/postgres"
	"github.com/bkotelnikov/shopadmin/internal/version"
	"github.com/bkotelnikov/shopadmin/migrations"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
	auditRecorder *audit.Recorder
	tracker       *identity.SessionTracker
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MinIdleConns:    cfg.Database.MinIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.Database.Migrate {
		if err := runMigrations(cfg.Database.URL); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		metricsCancel: metricsCancel,
	}

	go app.collectDBMetrics(metricsCtx)

	router, err := app.setupRouter(metricsCtx)
	if err != nil {
		db.Close()
		metricsCancel()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	// Start metrics server in background
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	// Start main server
	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.metricsCancel()

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	// Flush queued audit entries before the pool closes.
	if a.auditRecorder != nil {
		a.auditRecorder.Stop()
	}

	a.db.Close()

	return errors.Join(errs...)
}

func (a *App) collectDBMetrics(ctx context.Context) {
	// Collect immediately on start
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// AuditRecorder returns the audit recorder instance. Used in tests.
func (a *App) AuditRecorder() *audit.Recorder {
	return a.auditRecorder
}

func (a *App) setupRouter(ctx context.Context) (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, "api/openapi/openapi.yaml")
	})

	r.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>ShopAdmin API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        SwaggerUIBundle({
            url: "/api/openapi.yaml",
            dom_id: '#swagger-ui',
            presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
            layout: "BaseLayout"
        });
    </script>
</body>
</html>`))
	})

	// Audit trail: bounded queue drained in the background
	auditRepo := auditpostgres.NewRepository(a.db)
	auditRecorder := audit.NewRecorder(auditRepo, audit.Config{
		QueueSize:    a.config.Audit.QueueSize,
		WriteTimeout: a.config.Audit.WriteTimeout,
	})
	auditRecorder.Start()
	a.auditRecorder = auditRecorder
	auditHandler := audit.NewHandler(auditRecorder)

	// Identity: local credential provider, JWT tokens, session tracker
	identityRepo := identitypostgres.NewRepository(a.db)
	provider := identity.NewLocalProvider(identityRepo)
	jwtAuth := jwt.NewAuthenticator(jwt.Config{
		SecretKey:            a.config.JWT.SecretKey,
		AccessTokenDuration:  a.config.JWT.AccessTokenDuration,
		RefreshTokenDuration: a.config.JWT.RefreshTokenDuration,
	}, identityRepo)
	identityService := identity.NewService(identityRepo, provider, jwtAuth)
	identityHandler := identity.NewHandler(identityService, identity.CookieSettings{
		Secure:               a.config.Cookie.Secure,
		Domain:               a.config.Cookie.Domain,
		AccessTokenDuration:  a.config.JWT.AccessTokenDuration,
		RefreshTokenDuration: a.config.JWT.RefreshTokenDuration,
	})

	tracker := identity.NewSessionTracker(provider, a.config.Session.InitTimeout)
	tracker.Start(ctx)
	a.tracker = tracker

	// Catalog
	catalogRepo := catalogpostgres.NewRepository(a.db)
	catalogService := catalog.NewService(catalogRepo, auditRecorder)
	catalogHandler := catalog.NewHandler(catalogService, catalog.NewDebouncer(catalog.DefaultSearchIdle))

	// Users
	resetMailer, err := mailer.New(mailer.Config{
		Enabled:      a.config.Mailer.Enabled,
		SMTPHost:     a.config.Mailer.SMTPHost,
		SMTPPort:     a.config.Mailer.SMTPPort,
		SMTPUser:     a.config.Mailer.SMTPUser,
		SMTPPassword: a.config.Mailer.SMTPPassword,
		FromAddress:  a.config.Mailer.FromAddress,
		ResetBaseURL: a.config.Mailer.ResetBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create mailer: %w", err)
	}

	usersRepo := userspostgres.NewRepository(a.db)
	usersService := users.NewService(usersRepo, identityService, identityService, auditRecorder, resetMailer)
	usersHandler := users.NewHandler(usersService)

	loginLimiter := httputil.NewRateLimiter(a.config.RateLimit.LoginRPS, a.config.RateLimit.LoginBurst)

	r.Route("/api/v1", func(r chi.Router) {
		// Login and registration: anonymous only, rate limited
		r.Group(func(r chi.Router) {
			r.Use(loginLimiter.Middleware)
			r.Use(httputil.AnonymousOnly(tracker, identityService))
			identityHandler.RegisterRoutes(r)
		})

		identityHandler.RegisterSessionRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(httputil.AuthMiddleware(tracker, identityService, identityService))

			identityHandler.RegisterProtectedRoutes(r)

			// Catalog views: readable by every signed-in role
			catalogHandler.RegisterReadRoutes(r)

			// Catalog mutations: Advanced and up
			r.Group(func(r chi.Router) {
				r.Use(httputil.RequireRole(domain.RoleAdvanced))
				catalogHandler.RegisterWriteRoutes(r)
			})

			// User management and the audit trail: Admin only, lower
			// roles are redirected to the catalog
			r.Group(func(r chi.Router) {
				r.Use(httputil.PolicyGuard(policy.TargetUsers))
				r.Use(httputil.RequireRole(domain.RoleAdmin))
				usersHandler.RegisterRoutes(r)
			})

			r.Group(func(r chi.Router) {
				r.Use(httputil.PolicyGuard(policy.TargetAuditLog))
				r.Use(httputil.RequireRole(domain.RoleAdmin))
				auditHandler.RegisterRoutes(r)
			})
		})
	})

	return r, nil
}

// runMigrations applies the embedded schema migrations.
func runMigrations(databaseURL string) error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}

	// The pgx migrate driver registers the pgx5 URL scheme.
	url := strings.Replace(databaseURL, "postgres://", "pgx5://", 1)

	m, err := migrate.NewWithSourceInstance("iofs", source, url)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	slog.Info("migrations applied")
	return nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
