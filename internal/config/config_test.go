package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("arena")
	require.NoError(t, err)

	assert.Equal(t, "arena", cfg.ServiceName)
	assert.Equal(t, 5, cfg.Arena.BatchSize)
	assert.Equal(t, time.Second, cfg.TickInterval())
	assert.Equal(t, ":8080", cfg.HTTPAddr())
	assert.Equal(t, "none", cfg.Bus.Kind)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arena.yaml")
	content := `
log_level: debug
arena:
  batch_size: 3
  tick_interval_ms: 500
  max_ticks: 10
  start_price: 42000
  starting_credits: 1000
bus:
  kind: kafka
  kafka_brokers: "a:9092, b:9092"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("ARENA_CONFIG_FILE", path)
	t.Setenv("ARENA_MAX_TICKS", "20")

	cfg, err := LoadConfig("arena")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3, cfg.Arena.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.TickInterval())
	assert.Equal(t, 20, cfg.Arena.MaxTicks, "env overrides the file")
	assert.Equal(t, 42000.0, cfg.Arena.StartPrice)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokerList())
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("ARENA_TICK_INTERVAL_MS", "100")
	_, err := LoadConfig("arena")
	assert.Error(t, err)
}

func TestValidate_Postgres(t *testing.T) {
	cfg := Default("arena")
	cfg.Storage.Driver = "postgres"
	assert.Error(t, cfg.Validate(), "postgres needs a DSN")

	cfg.Storage.DSN = "postgres://localhost/arena"
	assert.NoError(t, cfg.Validate())

	cfg.Bus.Kind = "carrier-pigeon"
	assert.Error(t, cfg.Validate())
}
