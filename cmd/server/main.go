// Package main runs the session attendance and recording API server with
// graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/classforge/backend/config"
	"github.com/classforge/backend/internal/attendance"
	"github.com/classforge/backend/internal/jobs"
	"github.com/classforge/backend/internal/middleware"
	"github.com/classforge/backend/internal/sessions"
	"github.com/classforge/backend/internal/zoom"
	"github.com/classforge/backend/pkg/database"
	"github.com/classforge/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	zoomCfg := zoom.Config{
		AccountID:    cfg.Zoom.AccountID,
		ClientID:     cfg.Zoom.ClientID,
		ClientSecret: cfg.Zoom.ClientSecret,
		BaseURL:      cfg.Zoom.BaseURL,
		TokenURL:     cfg.Zoom.TokenURL,
	}
	tokenSource := zoom.NewTokenSource(zoomCfg, nil, logger)
	zoomClient := zoom.NewClient(zoomCfg, tokenSource, logger)

	// Sessions
	sessionRepo := sessions.NewRepository(pool)
	sessionHandler := sessions.NewHandler(sessionRepo, logger)

	// Attendance
	attendanceRepo := attendance.NewRepository(pool)
	aggregator := attendance.NewAggregator(zoomClient, logger)
	attendanceService := attendance.NewService(sessionRepo, attendanceRepo, aggregator, logger)
	attendanceHandler := attendance.NewHandler(attendanceService, logger)

	// Recording jobs (created here, executed by the worker binary)
	jobRepo := jobs.NewRepository(pool, cfg.Worker.RetryCeiling)
	jobHandler := jobs.NewHandler(jobRepo, sessionRepo, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Protected API (gateway-authenticated identity headers required)
	api := router.Group("/api")
	api.Use(middleware.Identity())
	{
		api.POST("/sessions", middleware.RequireRole("admin", "instructor"), sessionHandler.Create)
		api.GET("/sessions", sessionHandler.ListByBatch)
		api.GET("/sessions/:id", sessionHandler.GetByID)

		api.GET("/sessions/:id/attendance", attendanceHandler.Get)
		api.POST("/sessions/:id/attendance/recompute", middleware.RequireRole("admin", "instructor"), attendanceHandler.Recompute)

		api.GET("/sessions/:id/recording-job", jobHandler.Get)
		api.POST("/sessions/:id/recording-job", middleware.RequireRole("admin", "instructor"), jobHandler.Trigger)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
