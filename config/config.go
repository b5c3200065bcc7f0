package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	AWS       AWSConfig
	Zoom      ZoomConfig
	Calendar  CalendarConfig
	Worker    WorkerConfig
	Scheduler SchedulerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/classforge?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AWSConfig holds AWS credentials and the durable recordings bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	RecordingsBucket     string
	PresignExpireMinutes int
}

// ZoomConfig holds server-to-server OAuth credentials for the conferencing provider.
type ZoomConfig struct {
	AccountID    string
	ClientID     string
	ClientSecret string
	BaseURL      string
	TokenURL     string
}

// CalendarConfig holds the calendar provider endpoint used for the
// attachment-based recording fallback on calendar-backed sessions.
type CalendarConfig struct {
	BaseURL    string
	CalendarID string
}

// WorkerConfig holds recording pipeline worker settings.
type WorkerConfig struct {
	Enabled      bool
	TickInterval time.Duration // between job-claim attempts
	ScratchDir   string        // directory for temp recording downloads; empty = os.TempDir()
	RetryCeiling int
}

// SchedulerConfig holds adaptive attendance scheduler settings.
type SchedulerConfig struct {
	Enabled      bool
	PollInterval time.Duration // outer cadence that re-evaluates session load
	PacingDelay  time.Duration // pause between sessions within one cycle
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/classforge?sslmode=disable"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "classforge"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			RecordingsBucket:     getEnv("AWS_S3_RECORDINGS_BUCKET", "classforge-recordings"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Zoom: ZoomConfig{
			AccountID:    getEnv("ZOOM_ACCOUNT_ID", ""),
			ClientID:     getEnv("ZOOM_CLIENT_ID", ""),
			ClientSecret: getEnv("ZOOM_CLIENT_SECRET", ""),
			BaseURL:      getEnv("ZOOM_BASE_URL", "https://api.zoom.us/v2"),
			TokenURL:     getEnv("ZOOM_TOKEN_URL", "https://zoom.us/oauth/token"),
		},
		Calendar: CalendarConfig{
			BaseURL:    getEnv("CALENDAR_BASE_URL", "https://www.googleapis.com/calendar/v3"),
			CalendarID: getEnv("CALENDAR_ID", "primary"),
		},
		Worker: WorkerConfig{
			Enabled:      getEnvBool("RECORDING_WORKER_ENABLED", true),
			TickInterval: getEnvDuration("RECORDING_WORKER_TICK", 5*time.Second),
			ScratchDir:   getEnv("RECORDING_SCRATCH_DIR", ""),
			RetryCeiling: getEnvInt("RECORDING_RETRY_CEILING", 5),
		},
		Scheduler: SchedulerConfig{
			Enabled:      getEnvBool("ATTENDANCE_SCHEDULER_ENABLED", true),
			PollInterval: getEnvDuration("ATTENDANCE_POLL_INTERVAL", time.Minute),
			PacingDelay:  getEnvDuration("ATTENDANCE_PACING_DELAY", time.Second),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
