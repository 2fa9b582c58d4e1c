// Package server assembles the admin service from its configuration: the
// stores, the domain services, the HTTP routes and their lifecycle.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	// PostgreSQL driver.
	_ "github.com/lib/pq"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"golang.org/x/sync/errgroup"

	_ "github.com/alice21mota/oppia/internal/apidocs" // register swagger docs
	"github.com/alice21mota/oppia/pkg/admin"
	"github.com/alice21mota/oppia/pkg/audit"
	auditpostgres "github.com/alice21mota/oppia/pkg/audit/postgres"
	"github.com/alice21mota/oppia/pkg/auth"
	"github.com/alice21mota/oppia/pkg/config"
	"github.com/alice21mota/oppia/pkg/content"
	contentpostgres "github.com/alice21mota/oppia/pkg/content/postgres"
	"github.com/alice21mota/oppia/pkg/database/migrate"
	"github.com/alice21mota/oppia/pkg/email"
	"github.com/alice21mota/oppia/pkg/health"
	"github.com/alice21mota/oppia/pkg/metrics"
	"github.com/alice21mota/oppia/pkg/platformparam"
	parampostgres "github.com/alice21mota/oppia/pkg/platformparam/postgres"
	"github.com/alice21mota/oppia/pkg/search"
	"github.com/alice21mota/oppia/pkg/storage"
	s3store "github.com/alice21mota/oppia/pkg/storage/s3"
	"github.com/alice21mota/oppia/pkg/user"
	userpostgres "github.com/alice21mota/oppia/pkg/user/postgres"
)

// Version is set at build time.
var Version = "dev"

// auditCleanupInterval is how often expired audit rows are purged.
const auditCleanupInterval = 24 * time.Hour

// Option customizes a Server.
type Option func(*Server)

// WithDB uses an already opened database instead of dialing
// database.dsn. The caller keeps ownership of db.
func WithDB(db *sql.DB) Option {
	return func(s *Server) {
		s.db = db
		s.ownsDB = false
	}
}

// WithFileStore overrides the configured file store.
func WithFileStore(fs storage.FileStore) Option {
	return func(s *Server) { s.files = fs }
}

// WithMailSender overrides the log-only mail sender.
func WithMailSender(sender email.Sender) Option {
	return func(s *Server) { s.mailSender = sender }
}

// Server owns every component of the running service.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger

	db         *sql.DB
	ownsDB     bool
	files      storage.FileStore
	mailSender email.Sender

	audit      audit.Logger
	auditStore *auditpostgres.Store
	users      *user.Service
	content    *content.Service
	params     *platformparam.Registry
	sessions   *auth.SessionManager
	csrf       *auth.CSRF
	metrics    *metrics.Metrics
	health     *health.Checker

	handler http.Handler
}

// New builds a Server. With a database DSN it opens PostgreSQL, applies
// pending migrations and uses the PostgreSQL stores; otherwise every store
// is in memory.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(s)
	}

	if s.db == nil && cfg.Database.DSN != "" {
		db, err := OpenDB(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		s.db = db
		s.ownsDB = true
	}
	if s.db != nil {
		if err := migrate.Run(s.db); err != nil {
			_ = s.closeDB()
			return nil, fmt.Errorf("migrating database: %w", err)
		}
	}

	if err := s.buildServices(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	s.handler = s.routes()
	return s, nil
}

// OpenDB opens a PostgreSQL pool and checks that it answers.
func OpenDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return db, nil
}

func (s *Server) buildServices(ctx context.Context) error {
	cfg := s.cfg

	var (
		userStore    user.Store
		contentStore content.Store
		paramStore   platformparam.Store
	)
	if s.db != nil {
		userStore = userpostgres.New(s.db)
		contentStore = contentpostgres.New(s.db)
		paramStore = parampostgres.New(s.db)
	} else {
		userStore = user.NewMemoryStore()
		contentStore = content.NewMemoryStore()
		paramStore = platformparam.NewMemoryStore()
	}

	switch {
	case cfg.Audit.Enabled && s.db != nil:
		s.auditStore = auditpostgres.New(s.db, auditpostgres.Config{RetentionDays: cfg.Audit.RetentionDays})
		s.audit = s.auditStore
	case s.db == nil:
		s.audit = audit.NewMemoryLogger()
	default:
		s.audit = audit.NoopLogger{}
	}

	if s.files == nil {
		files, err := newFileStore(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		s.files = files
	}

	s.users = user.NewService(userStore, s.files, s.audit, user.Config{
		DefaultAdminEmail: cfg.Auth.DefaultAdminEmail,
		MaxUsernameLength: cfg.Limits.MaxUsernameLength,
	}, s.logger.With("component", "user"))
	s.content = content.NewService(contentStore, search.New(), s.logger.With("component", "content"))

	params, err := platformparam.NewRegistry(paramStore, s.logger.With("component", "platformparam"), platformparam.Defaults()...)
	if err != nil {
		return fmt.Errorf("creating platform parameter registry: %w", err)
	}
	s.params = params

	s.sessions, err = auth.NewSessionManager(auth.SessionConfig{
		SigningKey: cfg.Auth.SigningKey,
		Issuer:     cfg.Auth.Issuer,
		TTL:        cfg.Auth.SessionTTL,
	})
	if err != nil {
		return fmt.Errorf("creating session manager: %w", err)
	}
	s.csrf = auth.NewCSRF(cfg.Auth.CSRFSecret)
	s.metrics = metrics.New()

	s.health = health.NewChecker()
	if s.db != nil {
		s.health.AddDependency("postgres", s.db)
	}

	if s.mailSender == nil {
		s.mailSender = email.NewLogSender(s.logger.With("component", "email"))
	}
	return nil
}

func newFileStore(ctx context.Context, cfg config.StorageConfig) (storage.FileStore, error) {
	if cfg.Backend != config.StorageS3 {
		return storage.NewMemoryStore(), nil
	}
	fs, err := s3store.NewFromConfig(ctx, s3store.Config{
		Bucket:       cfg.S3.Bucket,
		Prefix:       cfg.S3.Prefix,
		Region:       cfg.S3.Region,
		Endpoint:     cfg.S3.Endpoint,
		AccessKeyID:  cfg.S3.AccessKeyID,
		SecretKey:    cfg.S3.SecretKey,
		UsePathStyle: cfg.S3.UsePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("creating s3 file store: %w", err)
	}
	return fs, nil
}

// routes mounts the probes, metrics, API docs and the admin endpoints.
func (s *Server) routes() http.Handler {
	adminHandler := admin.NewHandler(admin.Deps{
		Users:   s.users,
		Content: s.content,
		Params:  s.params,
		Mailer: email.NewService(s.mailSender, email.Config{
			CanSend:       s.cfg.Email.CanSend,
			AdminAddress:  s.cfg.Email.AdminAddress,
			SystemAddress: s.cfg.Email.SystemAddress,
			SenderName:    s.cfg.Email.SenderName,
		}),
		Audit:         s.audit,
		Metrics:       s.metrics,
		Authenticator: auth.NewChainedAuthenticator(s.sessions, auth.NewAPIKeyAuthenticator(s.cfg.Auth.APIKeys)),
		CSRF:          s.csrf,
		DevMode:       s.cfg.DevMode,
		RateLimit: admin.RateLimitConfig{
			RequestsPerSecond: s.cfg.RateLimit.RequestsPerSecond,
			Burst:             s.cfg.RateLimit.Burst,
		},
		Logger: s.logger.With("component", "admin"),
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.health.LivenessHandler())
	mux.HandleFunc("GET /readyz", s.health.ReadinessHandler())
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	mux.Handle("/", adminHandler)
	return mux
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Users returns the user service.
func (s *Server) Users() *user.Service {
	return s.users
}

// Sessions returns the session manager.
func (s *Server) Sessions() *auth.SessionManager {
	return s.sessions
}

// Params returns the platform parameter registry.
func (s *Server) Params() *platformparam.Registry {
	return s.params
}

// Health returns the readiness checker.
func (s *Server) Health() *health.Checker {
	return s.health
}

// Run serves HTTP until ctx is canceled, then drains in-flight requests
// within the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Address,
		Handler:           s.handler,
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: s.cfg.Server.ReadTimeout,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
	}

	if s.auditStore != nil {
		s.auditStore.StartCleanupRoutine(auditCleanupInterval)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("starting admin server", "address", srv.Addr, "version", Version, "dev_mode", s.cfg.DevMode)
		s.health.SetReady()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.health.SetDraining()
		s.logger.Info("shutting down admin server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// Close releases the stores and background routines.
func (s *Server) Close() error {
	var errs []error
	if s.params != nil {
		s.params.Close()
	}
	if s.audit != nil {
		if err := s.audit.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing audit log: %w", err))
		}
	}
	if err := s.closeDB(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Server) closeDB() error {
	if s.db == nil || !s.ownsDB {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	s.db = nil
	return nil
}
