// Package server wires the stores, domain services, and API surface into a
// running process.
package server

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/marksyncy/backend/internal/api/http"
	"github.com/marksyncy/backend/internal/api/middleware"
	"github.com/marksyncy/backend/internal/api/ws"
	"github.com/marksyncy/backend/internal/domain/bookmarks"
	"github.com/marksyncy/backend/internal/domain/gitsync"
	"github.com/marksyncy/backend/internal/infrastructure/config"
	"github.com/marksyncy/backend/internal/infrastructure/kv"
	"github.com/marksyncy/backend/internal/infrastructure/logging"
	"github.com/marksyncy/backend/internal/infrastructure/monitoring"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	store    *kv.Store
	manager  *bookmarks.Manager
	sync     *gitsync.Client
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
	stopAuto context.CancelFunc
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	logger.Info("Initializing marksyncy backend",
		zap.String("port", cfg.Server.Port),
		zap.String("data_dir", cfg.Storage.DataDir),
	)

	metrics := monitoring.NewMetrics()

	store, err := kv.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}

	manager := bookmarks.NewManager(store, logger)
	syncClient := gitsync.NewClient(
		store, manager, logger,
		cfg.Sync.RepoName, cfg.Sync.FilePath,
		gitsync.NewGitee(), gitsync.NewGitHub(),
	)

	// Auto-sync worker: pushes local mutations to the cloud when enabled.
	autoCtx, stopAuto := context.WithCancel(context.Background())
	go syncClient.RunAutoSync(autoCtx, manager.Subscribe())

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
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

	handlers := http.NewHandler(manager, syncClient, store, metrics, logger)
	handlers.Register(router)

	wsHandler := ws.NewHandler(manager, syncClient, store, metrics, logger)
	router.GET("/stream", wsHandler.HandleConnection)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		store:    store,
		manager:  manager,
		sync:     syncClient,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
		stopAuto: stopAuto,
	}, nil
}

// Run starts the HTTP server
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")
	s.stopAuto()
	s.logger.Sync()
	return nil
}
