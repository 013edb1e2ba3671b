package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "HTTP_ADDRESS", "DATABASE_URL", "DATABASE_CONNECT_TIMEOUT", "STORAGE_FALLBACK",
		"KAFKA_BROKERS", "OUTBOX_POLL_INTERVAL", "OUTBOX_BATCH_SIZE", "REDIS_URL", "SUBSCRIBE_RATE_LIMIT",
		"SUBSCRIBE_RATE_WINDOW", "TRUSTED_PROXIES", "JWT_SECRET", "JWT_ISSUER", "ALLOWED_ORIGIN", "LOG_LEVEL", "LOG_DEVELOPMENT",
		"PRELOADER_DURATION", "PRELOADER_TICK",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, Defaults(), cfg)
	require.Empty(t, cfg.DatabaseURL, "no database configured means the volatile store")
	require.Equal(t, 7500*time.Millisecond, cfg.PreloaderDuration)
	require.True(t, cfg.StorageFallback)
}

func TestLoadLayersFileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_address: ":9090"
database_url: "postgres://file/db"
kafka_brokers: ["k1:9092", "k2:9092"]
preloader_duration: 3s
log_level: debug
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("OUTBOX_BATCH_SIZE", "50")
	t.Setenv("STORAGE_FALLBACK", "false")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddress)
	require.Equal(t, "postgres://env/db", cfg.DatabaseURL)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 3*time.Second, cfg.PreloaderDuration)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 50, cfg.OutboxBatchSize)
	require.False(t, cfg.StorageFallback)
}

func TestLoadSplitsBrokers(t *testing.T) {
	clearEnv(t)
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
}

func TestLoadTrustedProxies(t *testing.T) {
	clearEnv(t)
	require.Empty(t, Defaults().TrustedProxies)

	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.1")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"10.0.0.0/8", "192.0.2.1"}, cfg.TrustedProxies)
}

func TestLoadIgnoresMalformedEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRELOADER_TICK", "soon")
	t.Setenv("OUTBOX_BATCH_SIZE", "many")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 10*time.Millisecond, cfg.PreloaderTick)
	require.Equal(t, 25, cfg.OutboxBatchSize)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRELOADER_DURATION", "-1s")

	_, err := Load()
	require.ErrorContains(t, err, "preloader_duration")
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yml"))

	_, err := Load()
	require.ErrorContains(t, err, "read")
}
