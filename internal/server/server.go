package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/aquanet/apiserver/config"
	"github.com/aquanet/apiserver/internal/auth"
	"github.com/aquanet/apiserver/internal/cache"
	"github.com/aquanet/apiserver/internal/db"
	"github.com/aquanet/apiserver/internal/handlers"
	"github.com/aquanet/apiserver/internal/logger"
	"github.com/aquanet/apiserver/internal/metrics"
	"github.com/aquanet/apiserver/internal/mq"
	"github.com/aquanet/apiserver/internal/services"
	"github.com/aquanet/apiserver/internal/storage"
)

const requestTimeout = 60 * time.Second

// Deps are the collaborators of the HTTP application. Nil Attempts falls
// back to in-memory throttling; nil Events and Objects disable event
// publishing and photo uploads.
type Deps struct {
	Repositories
	DB       handlers.Pinger
	Attempts auth.AttemptStore
	Events   services.EventPublisher
	Objects  storage.ObjectStorage
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
	closers    []func() error
}

// Options select how New connects its backends.
type Options struct {
	// InMemory skips PostgreSQL and keeps all data in process.
	InMemory bool
}

// New connects every backend configured in cfg and builds the server.
func New(ctx context.Context, cfg config.Config, log *slog.Logger, opts Options) (*Server, error) {
	var (
		deps    Deps
		closers []func() error
	)
	fail := func(err error) (*Server, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		return nil, err
	}

	if opts.InMemory {
		log.Warn("running with in-memory storage; data is lost on exit")
		deps.Repositories = MemoryRepositories()
	} else {
		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, conn.Close)
		deps.DB = conn
		deps.Repositories = SQLRepositories(conn)
	}

	if cfg.Redis.Addr != "" {
		c, err := cache.InitServer(ctx, cfg.Redis)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, c.Close)
		deps.Attempts = c
		log.Info("login throttling backed by redis", slog.String("addr", cfg.Redis.Addr))
	}

	backend, err := mq.Open(ctx, cfg.MQ)
	switch {
	case errors.Is(err, mq.ErrDisabled):
		log.Info("event publishing disabled")
	case err != nil:
		return fail(err)
	default:
		closers = append(closers, backend.Close)
		deps.Events = mq.NewEventBus(backend, cfg.MQ.NotificationChannel, log)
		log.Info("event publishing enabled", slog.String("backend", cfg.MQ.Backend))
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	switch {
	case errors.Is(err, storage.ErrDisabled) && opts.InMemory:
		deps.Objects = storage.NewMemory("aquanet")
	case errors.Is(err, storage.ErrDisabled):
		log.Info("object storage disabled; photo uploads return 503")
	case err != nil:
		return fail(err)
	default:
		deps.Objects = objects
	}

	srv, err := NewWithDeps(cfg, deps, log)
	if err != nil {
		return fail(err)
	}
	srv.closers = closers
	return srv, nil
}

// NewWithDeps builds the server around already connected collaborators.
func NewWithDeps(cfg config.Config, deps Deps, log *slog.Logger) (*Server, error) {
	for _, name := range cfg.InsecureDefaults() {
		log.Warn("insecure development default in use", slog.String("setting", name))
	}

	router, err := newRouter(cfg, deps, log)
	if err != nil {
		return nil, err
	}

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      requestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		log:        log,
	}, nil
}

func newRouter(cfg config.Config, deps Deps, log *slog.Logger) (*chi.Mux, error) {
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL())
	if err != nil {
		return nil, fmt.Errorf("server.newRouter: %w", err)
	}
	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)

	attempts := deps.Attempts
	if attempts == nil {
		attempts = auth.NewMemoryAttemptStore()
	}
	throttle := auth.NewLoginThrottle(attempts, cfg.Auth.MaxLoginAttempts, cfg.Auth.LoginAttemptWindow)

	repos := deps.Repositories
	authenticator := auth.NewAuthenticator(repos.Users, hasher).WithThrottle(throttle)
	resolver := auth.NewSessionResolver(tokens, repos.Users)
	m := metrics.New()
	authn := handlers.NewAuthHandler(authenticator, tokens, resolver, m, log)

	users := services.NewUserService(repos.Users, hasher)
	svc := handlers.Services{
		Infrastructure: services.NewInfrastructureService(repos.Infrastructure, repos.Leaks),
		Assets:         services.NewAssetService(repos.Assets, repos.Maintenance),
		Quality:        services.NewQualityService(repos.Measurements, repos.Alerts, deps.Events, log),
		Sanitation:     services.NewSanitationService(repos.Facilities, repos.Reports),
		Complaints:     services.NewComplaintService(repos.Complaints, repos.Categories, users.Exists, deps.Objects, log),
		Tariffs:        services.NewTariffService(repos.Tariffs, repos.PaymentMethods, repos.Payments),
		Demand:         services.NewDemandService(repos.Demand, repos.Distribution, repos.Investment),
		Notifications:  services.NewNotificationService(repos.Notifications, repos.Settings, users.Exists, deps.Events, log),
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	if cfg.TrustProxyHeaders {
		router.Use(middleware.RealIP)
	}
	router.Use(
		requestLogger(log),
		middleware.Recoverer,
		middleware.Timeout(requestTimeout),
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
			ExposedHeaders:   []string{"WWW-Authenticate"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		rateLimit(cfg.RateLimit, log),
		m.Middleware,
	)

	router.Get("/healthz", handlers.Healthz)
	router.Get("/readyz", handlers.Readyz(deps.DB))
	router.Method(http.MethodGet, "/metrics", m.Handler())
	router.Post("/token", authn.Login)
	router.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			handlers.UserRouter(r, users, authn, log)
		})
		r.Group(func(r chi.Router) {
			handlers.ResourceRouter(r, svc, authn, log)
		})
	})

	return router, nil
}

// Router exposes the chi router for route registration and tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests, then closes the backends.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	for i := len(s.closers) - 1; i >= 0; i-- {
		if cerr := s.closers[i](); cerr != nil {
			s.log.Warn("failed to close backend", logger.Err(cerr))
		}
	}
	return err
}

var _ handlers.Pinger = (*sql.DB)(nil)
