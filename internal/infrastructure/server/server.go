package server

import (
	"context"
	"fmt"
	"net"
	nethttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	"github.com/GriffinCanCode/TermStream/internal/api/http"
	"github.com/GriffinCanCode/TermStream/internal/api/middleware"
	"github.com/GriffinCanCode/TermStream/internal/api/ws"
	"github.com/GriffinCanCode/TermStream/internal/domain/profile"
	"github.com/GriffinCanCode/TermStream/internal/domain/terminal"
	"github.com/GriffinCanCode/TermStream/internal/infrastructure/config"
	"github.com/GriffinCanCode/TermStream/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TermStream/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/TermStream/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/TermStream/internal/shared/paths"
	"github.com/GriffinCanCode/TermStream/internal/transport/webhook"
)

// Server wraps the HTTP server and its dependencies
type Server struct {
	router   *gin.Engine
	manager  *terminal.Manager
	notifier *webhook.Notifier
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
	httpSrv  *nethttp.Server
}

// NewServer wires the daemon: configuration, logging, metrics, the session
// manager, profile store, webhook notifier, and all routes.
func NewServer(cfg *config.Config) (*Server, error) {
	// Initialize logger
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	logger.Info("Initializing TermStream daemon",
		zap.String("port", cfg.Server.Port),
		zap.String("default_shell", cfg.Terminal.DefaultShell),
		zap.Int("max_sessions", cfg.Terminal.MaxSessions),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()

	// Initialize request tracing
	tracer := tracing.New("termstream", logger.Logger)

	layout := paths.NewLayout(cfg.Terminal.DataDir)

	// Load named profiles
	profiles, err := profile.LoadStore(layout.Profiles(cfg.Terminal.ProfilesPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	if profiles.Len() > 0 {
		logger.Info("Loaded profiles", zap.Strings("names", profiles.Names()))
	}

	// Compile the shell allowlist
	allow, err := profile.NewAllowlist(cfg.Terminal.ShellAllowlist)
	if err != nil {
		return nil, fmt.Errorf("invalid shell allowlist: %w", err)
	}

	// Initialize the session manager
	manager := terminal.NewManager(terminal.Config{
		DefaultShell:     cfg.Terminal.DefaultShell,
		DefaultRows:      cfg.Terminal.DefaultRows,
		DefaultCols:      cfg.Terminal.DefaultCols,
		MaxSessions:      cfg.Terminal.MaxSessions,
		InputQueueSize:   cfg.Terminal.InputQueueSize,
		SubscriberBuffer: cfg.Terminal.SubscriberBuffer,
		ScrollbackBytes:  cfg.Terminal.ScrollbackBytes,
		ReadBufferBytes:  cfg.Terminal.ReadBufferBytes,
		FlushInterval:    cfg.Terminal.FlushInterval,
		KillGrace:        cfg.Terminal.KillGrace,
		Retention:        cfg.Terminal.Retention,
	}, logger).WithMetrics(metrics)

	if !allow.Empty() {
		logger.Info("Shell allowlist enabled", zap.Strings("patterns", cfg.Terminal.ShellAllowlist))
		manager.WithAllowlist(allow)
	}

	if cfg.Transcript.Enabled {
		manager.WithTranscripts(layout, cfg.Transcript.RotateBytes)
		if removed, err := terminal.SweepTranscripts(layout.Transcripts(), cfg.Transcript.MaxAge); err == nil && removed > 0 {
			logger.Info("Swept stale transcripts", zap.Int("removed", removed))
		}
	}

	// Webhook notifier (optional)
	notifier := webhook.New(cfg.Webhook, logger, metrics)
	if notifier != nil {
		manager.AddSink(notifier)
		logger.Info("Webhook notifier enabled", zap.String("url", cfg.Webhook.URL))
	}

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}
	if cfg.Auth.Enabled {
		logger.Info("Bearer token auth enabled")
		router.Use(middleware.Auth(middleware.AuthConfig{
			Enabled:   true,
			TokenHash: cfg.Auth.TokenHash,
		}))
	}

	// Create handlers
	handlers := http.NewHandler(manager, profiles, logger)
	statsHandler := http.NewStatsHandler(metrics, manager)
	wsHandler := ws.NewHandler(manager, logger, metrics)

	// Register routes
	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Session control plane
	router.POST("/sessions", handlers.CreateSession)
	router.GET("/sessions", handlers.ListSessions)
	router.GET("/sessions/:id", handlers.GetSession)
	router.DELETE("/sessions/:id", handlers.DestroySession)
	router.POST("/sessions/:id/restart", handlers.RestartSession)
	router.POST("/sessions/:id/input", handlers.WriteInput)
	router.POST("/sessions/:id/input/batch", handlers.WriteInputBatch)
	router.POST("/sessions/:id/control", handlers.Control)
	router.POST("/sessions/:id/resize", handlers.Resize)
	router.GET("/sessions/:id/scrollback", handlers.Scrollback)
	router.GET("/sessions/:id/transcript", handlers.Transcript)

	// Profiles
	router.GET("/profiles", handlers.ListProfiles)

	// Streaming data plane
	router.GET("/sessions/:id/stream", wsHandler.Stream)

	// Metrics endpoints
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/metrics/json", statsHandler.Stats)

	logger.Info("Server initialized")

	return &Server{
		router:   router,
		manager:  manager,
		notifier: notifier,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// Run starts the HTTP server and blocks until the listener fails or the
// server is shut down. The listener caps concurrent connections.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if s.config.Server.MaxConns > 0 {
		listener = netutil.LimitListener(listener, s.config.Server.MaxConns)
	}

	s.httpSrv = &nethttp.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	err = s.httpSrv.Serve(listener)
	if err == nethttp.ErrServerClosed {
		return nil
	}
	return err
}

// Close gracefully shuts down: stop accepting requests, destroy every
// session, stop the webhook worker.
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Warn("HTTP shutdown", zap.Error(err))
		}
	}

	if err := s.manager.Shutdown(ctx); err != nil {
		s.logger.Error("Session shutdown", zap.Error(err))
		return err
	}

	if s.notifier != nil {
		s.notifier.Close()
	}

	// Sync logger before exit
	s.logger.Sync()

	return nil
}
