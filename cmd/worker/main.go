// Package main runs the background worker: the recording ingestion dispatcher
// and the adaptive finalization scheduler.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/classforge/backend/config"
	"github.com/classforge/backend/internal/attendance"
	"github.com/classforge/backend/internal/calendar"
	"github.com/classforge/backend/internal/jobs"
	"github.com/classforge/backend/internal/scheduler"
	"github.com/classforge/backend/internal/sessions"
	"github.com/classforge/backend/internal/tokens"
	"github.com/classforge/backend/internal/zoom"
	"github.com/classforge/backend/pkg/alerts"
	"github.com/classforge/backend/pkg/database"
	"github.com/classforge/backend/pkg/redis"
	"github.com/classforge/backend/pkg/storage"
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

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Cfg := storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		RecordingsBucket:     cfg.AWS.RecordingsBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}
	s3Client, err := storage.NewS3(ctx, s3Cfg, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
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

	sessionRepo := sessions.NewRepository(pool)
	tokenRepo := tokens.NewRepository(pool)
	jobRepo := jobs.NewRepository(pool, cfg.Worker.RetryCeiling)
	alertPub := alerts.NewPublisher(rdb.Client, logger)

	scratchDir := cfg.Worker.ScratchDir
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	pipeline := jobs.NewPipeline(zoomClient, s3Client, scratchDir, logger)
	dispatcher := jobs.NewDispatcher(jobRepo, pipeline, sessionRepo, alertPub,
		cfg.Worker.TickInterval, cfg.Worker.RetryCeiling, logger)

	attendanceRepo := attendance.NewRepository(pool)
	aggregator := attendance.NewAggregator(zoomClient, logger)
	attendanceService := attendance.NewService(sessionRepo, attendanceRepo, aggregator, logger)

	calendarClient := calendar.NewClient(calendar.Config{
		BaseURL:    cfg.Calendar.BaseURL,
		CalendarID: cfg.Calendar.CalendarID,
	}, logger)

	sched := scheduler.New(sessionRepo, attendanceService, jobRepo, calendarClient, tokenRepo,
		cfg.Scheduler.PollInterval, cfg.Scheduler.PacingDelay, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Worker.Enabled {
		go dispatcher.Run(workerCtx)
	}
	if cfg.Scheduler.Enabled {
		sched.Start()
	}
	logger.Info("worker started",
		zap.Bool("dispatcher", cfg.Worker.Enabled),
		zap.Bool("scheduler", cfg.Scheduler.Enabled))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	if cfg.Scheduler.Enabled {
		sched.Stop()
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
