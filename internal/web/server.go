package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kozaktomas/punchclock/internal/attendance"
	"github.com/kozaktomas/punchclock/internal/config"
	"github.com/kozaktomas/punchclock/internal/constants"
	"github.com/kozaktomas/punchclock/internal/database"
	"github.com/kozaktomas/punchclock/internal/rules"
	"github.com/kozaktomas/punchclock/internal/web/handlers"
	"github.com/kozaktomas/punchclock/internal/web/middleware"
)

// Server represents the web server
type Server struct {
	config       *config.Config
	router       *chi.Mux
	httpServer   *http.Server
	logger       *zap.SugaredLogger
	rules        *rules.RuleSet
	orchestrator *attendance.Orchestrator
	attempts     *attendance.AttemptManager
	identifier   *attendance.Identifier
	auth         *middleware.Authenticator
	stopSweeper  context.CancelFunc
}

// NewServer creates a new web server. The database backend and the optional
// face index must be registered before the server handles requests.
func NewServer(cfg *config.Config, logger *zap.SugaredLogger, opts ...attendance.Option) (*Server, error) {
	rs, err := cfg.RuleSet()
	if err != nil {
		return nil, fmt.Errorf("attendance rules: %w", err)
	}

	store := handlers.BackendStore{}
	orchestrator, err := attendance.NewOrchestrator(attendance.Config{
		Site:             cfg.Geofence(),
		Rules:            rs,
		MatchThreshold:   cfg.Face.MatchThreshold,
		DescriptorLength: cfg.Face.DescriptorLength,
	}, store, store, append([]attendance.Option{attendance.WithLogger(logger.Named("punch"))}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("punch orchestrator: %w", err)
	}

	r := chi.NewRouter()
	s := &Server{
		config:       cfg,
		router:       r,
		logger:       logger,
		rules:        rs,
		orchestrator: orchestrator,
		attempts:     attendance.NewAttemptManager(cfg.Web.AttemptTTL),
		identifier:   attendance.NewIdentifier(database.GetFaceIndex(), store, cfg.Face.MatchThreshold, cfg.Face.DescriptorLength),
		auth:         middleware.NewAuthenticator(cfg.Web.JWTSecret),
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger.Named("http")))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(constants.RequestTimeout))
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	// Set up routes
	s.setupRoutes()

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s, nil
}

// Start starts the HTTP server and the attempt sweeper
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopSweeper = cancel
	go s.attempts.Run(ctx, constants.AttemptSweepInterval)

	s.logger.Infow("starting web server", "addr", s.httpServer.Addr, "backend", database.BackendName())
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down web server")

	if s.stopSweeper != nil {
		s.stopSweeper()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
