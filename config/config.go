package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int

	// Планировщик закрытия лотов и просроченных таймеров ответа.
	SweepInterval time.Duration
	SweepWorkers  int

	// Защита от дублей: TTL записи in-flight guard-а и окно дедупликации
	// исходящих уведомлений.
	InFlightTTL time.Duration
	DedupWindow time.Duration

	// Cloudflare R2 для архивов продаж. Все поля опциональны: без них
	// архивация просто выключена.
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
}

// R2Configured сообщает, заданы ли все реквизиты объектного хранилища.
func (c *Config) R2Configured() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" &&
		c.R2BucketName != "" && c.R2PublicBaseURL != ""
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	portStr := os.Getenv("SERVER_PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	sweepInterval, err := durationEnv("SWEEP_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, err
	}
	inFlightTTL, err := durationEnv("INFLIGHT_TTL", 30*time.Second)
	if err != nil {
		return nil, err
	}
	dedupWindow, err := durationEnv("NOTIFY_DEDUP_WINDOW", 2*time.Second)
	if err != nil {
		return nil, err
	}

	sweepWorkers := 4
	if raw := os.Getenv("SWEEP_WORKERS"); raw != "" {
		sweepWorkers, err = strconv.Atoi(raw)
		if err != nil || sweepWorkers < 1 {
			return nil, fmt.Errorf("SWEEP_WORKERS must be a positive integer, got %q", raw)
		}
	}

	cfg := &Config{
		DatabaseURL:       dbURL,
		JWTSecretKey:      jwtKey,
		ServerPort:        port,
		SweepInterval:     sweepInterval,
		SweepWorkers:      sweepWorkers,
		InFlightTTL:       inFlightTTL,
		DedupWindow:       dedupWindow,
		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
	}

	return cfg, nil
}

func durationEnv(name string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", name, raw)
	}
	return d, nil
}
