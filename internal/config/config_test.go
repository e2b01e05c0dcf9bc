package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir runs the test from an empty directory so no stray .env is read.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdir(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "data/buzzboard.db", cfg.DBPath)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.RedisURL)
	assert.True(t, cfg.SeedDemo)
	assert.Equal(t, 30*time.Minute, cfg.RoomIdleTimeout)
	assert.Equal(t, time.Minute, cfg.ReaperInterval)
	assert.Equal(t, 3*time.Minute, cfg.RoomLeaseTTL)
	assert.Equal(t, 3*time.Second, cfg.ClueReadGrace)
	assert.Equal(t, 60*time.Second, cfg.LongFormDuration)
}

func TestLoadEnvironment(t *testing.T) {
	chdir(t)
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("ROOM_IDLE_TIMEOUT", "5m")
	t.Setenv("SEED_DEMO", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 5*time.Minute, cfg.RoomIdleTimeout)
	assert.False(t, cfg.SeedDemo)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("DB_PATH=/tmp/quiz.db\nHTTP_ADDR=:7000\n"), 0o600))
	t.Setenv("HTTP_ADDR", ":7001")
	// godotenv sets variables for the process; restore them afterwards.
	t.Setenv("DB_PATH", "")
	require.NoError(t, os.Unsetenv("DB_PATH"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/quiz.db", cfg.DBPath)
	assert.Equal(t, ":7001", cfg.HTTPAddr, "environment wins over .env")
}

func TestLoadInvalid(t *testing.T) {
	chdir(t)
	t.Setenv("REAPER_INTERVAL", "0s")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("REAPER_INTERVAL", "soon")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("REAPER_INTERVAL", "5m")
	_, err = Load()
	require.Error(t, err, "lease must outlive the renewal interval")
}
