// Package config centralises configuration parsing for the preloader-animate API.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures runtime configuration values.
type Config struct {
	HTTPAddress            string        `yaml:"http_address"`
	DatabaseURL            string        `yaml:"database_url"`
	DatabaseConnectTimeout time.Duration `yaml:"database_connect_timeout"`
	StorageFallback        bool          `yaml:"storage_fallback"`
	KafkaBrokers           []string      `yaml:"kafka_brokers"`
	OutboxPollInterval     time.Duration `yaml:"outbox_poll_interval"`
	OutboxBatchSize        int           `yaml:"outbox_batch_size"`
	RedisURL               string        `yaml:"redis_url"`
	SubscribeRateLimit     int           `yaml:"subscribe_rate_limit"`
	SubscribeRateWindow    time.Duration `yaml:"subscribe_rate_window"`
	TrustedProxies         []string      `yaml:"trusted_proxies"`
	JWTSecret              string        `yaml:"jwt_secret"`
	JWTIssuer              string        `yaml:"jwt_issuer"`
	AllowedOrigin          string        `yaml:"allowed_origin"`
	LogLevel               string        `yaml:"log_level"`
	LogDevelopment         bool          `yaml:"log_development"`
	PreloaderDuration      time.Duration `yaml:"preloader_duration"`
	PreloaderTick          time.Duration `yaml:"preloader_tick"`
}

// Defaults returns the configuration used for local development.
func Defaults() Config {
	return Config{
		HTTPAddress:            ":8080",
		DatabaseConnectTimeout: 5 * time.Second,
		StorageFallback:        true,
		OutboxPollInterval:     2 * time.Second,
		OutboxBatchSize:        25,
		SubscribeRateLimit:     10,
		SubscribeRateWindow:    time.Minute,
		JWTSecret:              "dev-secret-change-me",
		JWTIssuer:              "preloader-animate",
		AllowedOrigin:          "http://localhost:5173",
		LogLevel:               "info",
		PreloaderDuration:      7500 * time.Millisecond,
		PreloaderTick:          10 * time.Millisecond,
	}
}

// Load applies defaults, then the YAML file named by CONFIG_FILE (if any),
// then environment variables.
func Load() (Config, error) {
	cfg := Defaults()
	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	if c.PreloaderDuration <= 0 {
		return fmt.Errorf("config: preloader_duration must be positive, got %s", c.PreloaderDuration)
	}
	if c.PreloaderTick <= 0 {
		return fmt.Errorf("config: preloader_tick must be positive, got %s", c.PreloaderTick)
	}
	if c.OutboxBatchSize <= 0 {
		return fmt.Errorf("config: outbox_batch_size must be positive, got %d", c.OutboxBatchSize)
	}
	if c.RedisURL != "" && c.SubscribeRateLimit <= 0 {
		return fmt.Errorf("config: subscribe_rate_limit must be positive when redis_url is set")
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddress = getEnv("HTTP_ADDRESS", cfg.HTTPAddress)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.DatabaseConnectTimeout = getDurationEnv("DATABASE_CONNECT_TIMEOUT", cfg.DatabaseConnectTimeout)
	cfg.StorageFallback = getBoolEnv("STORAGE_FALLBACK", cfg.StorageFallback)
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	cfg.OutboxPollInterval = getDurationEnv("OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = getIntEnv("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.SubscribeRateLimit = getIntEnv("SUBSCRIBE_RATE_LIMIT", cfg.SubscribeRateLimit)
	cfg.SubscribeRateWindow = getDurationEnv("SUBSCRIBE_RATE_WINDOW", cfg.SubscribeRateWindow)
	if proxies := getEnv("TRUSTED_PROXIES", ""); proxies != "" {
		cfg.TrustedProxies = splitAndTrim(proxies)
	}
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTIssuer = getEnv("JWT_ISSUER", cfg.JWTIssuer)
	cfg.AllowedOrigin = getEnv("ALLOWED_ORIGIN", cfg.AllowedOrigin)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogDevelopment = getBoolEnv("LOG_DEVELOPMENT", cfg.LogDevelopment)
	cfg.PreloaderDuration = getDurationEnv("PRELOADER_DURATION", cfg.PreloaderDuration)
	cfg.PreloaderTick = getDurationEnv("PRELOADER_TICK", cfg.PreloaderTick)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
