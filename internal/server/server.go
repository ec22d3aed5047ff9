package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/projectplus/apiserver/config"
	"github.com/projectplus/apiserver/internal/db"
	"github.com/projectplus/apiserver/internal/handlers"
	"github.com/projectplus/apiserver/internal/metrics"
	"github.com/projectplus/apiserver/internal/mq"
	"github.com/projectplus/apiserver/internal/notify"
	"github.com/projectplus/apiserver/internal/ratelimit"
	"github.com/projectplus/apiserver/internal/services"
	"github.com/projectplus/apiserver/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

const (
	defaultPort      = 3000
	requestTimeout   = 60 * time.Second
	shutdownTimeout  = 10 * time.Second
	redisPingTimeout = 3 * time.Second
)

// Server wraps the HTTP server, its router and the resources it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	logger     zerolog.Logger

	janitor *services.Janitor
	mail    *notify.AsyncDispatcher
	broker  mq.Backend
	redis   *redis.Client

	closeOnce sync.Once
}

// Deps are the collaborators behind the HTTP API.
type Deps struct {
	Tx       services.Transactor
	Files    *storage.Storage
	Notifier services.Notifier
	Tokens   *services.TokenIssuer
	Auth     services.AuthConfig
	// Limiter is optional.
	Limiter handlers.RateLimiter
	Logger  zerolog.Logger
}

// NewRouter builds the services over deps and mounts every route.
func NewRouter(deps Deps) *chi.Mux {
	authService := services.NewAuthService(deps.Tx.Repositories().Users, deps.Tokens, deps.Notifier, deps.Auth, deps.Logger)
	profileService := services.NewProfileService(deps.Tx, deps.Files, deps.Logger)
	projectService := services.NewProjectService(deps.Tx, deps.Files, deps.Logger)
	requestService := services.NewJoinRequestService(deps.Tx, deps.Notifier, deps.Logger)

	authMiddleware := handlers.RequireAuth(deps.Tokens)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		hlog.NewHandler(deps.Logger),
		hlog.RemoteAddrHandler("ip"),
		hlog.UserAgentHandler("user_agent"),
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Stringer("url", r.URL).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("request")
		}),
		middleware.Recoverer,
		metrics.Middleware,
		middleware.Timeout(requestTimeout),
	)

	router.Get("/healthz", handlers.Healthz)
	router.Handle("/metrics", promhttp.Handler())
	router.Get(storage.PublicPrefix+"*", handlers.Files(deps.Files))

	router.Route("/user", func(r chi.Router) {
		handlers.UserRouter(r, authService, profileService, authMiddleware, deps.Limiter)
	})
	router.Route("/profile", func(r chi.Router) {
		handlers.ProfileRouter(r, profileService, authMiddleware)
	})
	router.Route("/project", func(r chi.Router) {
		handlers.ProjectRouter(r, projectService, requestService, authMiddleware)
	})

	return router
}

// New connects every backing service named by cfg and constructs a Server.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Server{db: dbConn, logger: logger}

	backend, err := storage.NewBackend(ctx, cfg.Storage)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	files := storage.NewStorage(backend)
	if err := files.EnsureBucket(ctx); err != nil {
		s.close()
		return nil, fmt.Errorf("ensure bucket %s: %w", files.Bucket(), err)
	}

	dispatcher, err := s.dispatcher(ctx, cfg)
	if err != nil {
		s.close()
		return nil, err
	}

	var limiter handlers.RateLimiter
	if cfg.Redis.Addr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		if err := s.redis.Ping(pingCtx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable, rate limiter will fail open")
		}
		cancel()
		limiter = ratelimit.New(s.redis, cfg.Redis.RateLimit, cfg.Redis.Window)
	}

	tx := services.NewSQLTransactor(dbConn)
	s.janitor = services.NewJanitor(tx.Repositories().Users, cfg.Codes.JanitorInterval, logger)
	s.router = NewRouter(Deps{
		Tx:       tx,
		Files:    files,
		Notifier: notify.NewGateway(dispatcher),
		Tokens:   services.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Auth: services.AuthConfig{
			VerificationTTL: cfg.Codes.VerificationTTL,
			ResetTTL:        cfg.Codes.ResetTTL,
		},
		Limiter: limiter,
		Logger:  logger,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = defaultPort
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// dispatcher publishes to the broker when one is configured and otherwise
// sends mail from this process.
func (s *Server) dispatcher(ctx context.Context, cfg config.Config) (notify.Dispatcher, error) {
	broker, err := mq.NewBackend(ctx, cfg.MQ)
	switch {
	case errors.Is(err, mq.ErrDisabled):
		s.mail = notify.NewAsyncDispatcher(notify.NewSMTPMailer(cfg.SMTP, s.logger), s.logger)
		return s.mail, nil
	case err != nil:
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	s.broker = broker
	s.logger.Info().Str("backend", cfg.MQ.Backend).Str("channel", cfg.MQ.MailChannel).Msg("mail is queued for the worker")
	return notify.NewQueueDispatcher(broker, cfg.MQ.MailChannel), nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run serves HTTP and runs the janitor until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go s.janitor.Run(janitorCtx)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
		serverErrors <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		stopJanitor()
		s.close()
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Info().Msg("shutting down")
	}

	stopJanitor()
	return s.Shutdown(context.Background())
}

// Shutdown drains in-flight requests and pending mail, then releases every
// resource.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var err error
	if s.httpServer != nil {
		if err = s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error().Err(err).Msg("http server shutdown")
		}
	}
	s.close()
	s.logger.Info().Msg("server stopped")
	return err
}

func (s *Server) close() {
	s.closeOnce.Do(s.release)
}

func (s *Server) release() {
	if s.mail != nil {
		s.mail.Wait()
	}
	if s.broker != nil {
		if err := s.broker.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("close message queue")
		}
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
