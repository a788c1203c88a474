// File: internal/app/server.go
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"picstream_backend/internal/auth"
	"picstream_backend/internal/config"
	"picstream_backend/internal/jobs"
	"picstream_backend/internal/middleware"
	"picstream_backend/internal/shared"
	"picstream_backend/internal/user"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server struct holds the dependencies for the HTTP server.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	cfg        *config.Config
	logger     *zap.Logger

	// Handlers
	authHandler *auth.Handler
	userHandler *user.Handler

	// Jobs
	avatarSweepJob *jobs.AvatarSweepJob

	// Middleware instances
	authMW gin.HandlerFunc
}

// NewServer creates a new instance of our application server.
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	authHandler *auth.Handler,
	userHandler *user.Handler,
	avatarSweepJob *jobs.AvatarSweepJob,
	tokenService shared.TokenService,
) (*Server, error) {
	gin.SetMode(cfg.GinMode)
	router := gin.New()

	// --- Global Middleware ---
	router.Use(middleware.ZapLogger(logger, cfg))
	router.Use(middleware.ErrorHandler(logger))
	router.Use(gin.Recovery())

	// CORS Middleware
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	corsConfig.AllowCredentials = true
	corsConfig.ExposeHeaders = []string{"Content-Length", middleware.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	authMW := middleware.AuthMiddleware(tokenService, cfg, logger.Named("AuthMiddleware"))

	// --- Setup Routes ---
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "Picstream API is healthy!"})
	})

	v1 := router.Group("/api/v1")

	// Registration, login and the OAuth flow are unauthenticated by nature.
	authHandler.RegisterRoutes(v1)
	userHandler.RegisterRoutes(v1, authMW)

	// Derivative images are served straight off disk.
	router.Static("/storage/images", cfg.AvatarStoragePath)

	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer:     httpServer,
		router:         router,
		cfg:            cfg,
		logger:         logger,
		authHandler:    authHandler,
		userHandler:    userHandler,
		avatarSweepJob: avatarSweepJob,
		authMW:         authMW,
	}, nil
}

func (s *Server) Start() error {
	if s.avatarSweepJob != nil {
		err := s.avatarSweepJob.SetupAndStart()
		if err != nil {
			s.logger.Error("Failed to setup and start avatar sweep job", zap.Error(err))
		}
	} else {
		s.logger.Info("Avatar sweep job is not configured, skipping start.")
	}

	s.logger.Info("HTTP Server starting",
		zap.String("address", s.httpServer.Addr),
		zap.String("gin_mode", s.cfg.GinMode),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("Failed to start HTTP server", zap.Error(err))
		return err
	}
	s.logger.Info("HTTP Server stopped gracefully or an error occurred")
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Attempting graceful server shutdown...")
	if s.avatarSweepJob != nil {
		s.avatarSweepJob.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}
