package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/orm/crud"
)

// inTempDir runs the test in an empty working directory
func inTempDir(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	t.Cleanup(func() { os.Chdir(oldWd) })
	return tmpDir
}

func TestLoad_Defaults(t *testing.T) {
	inTempDir(t)
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "long", cfg.Persistence.IDType)
	assert.Equal(t, crud.ServerGeneratedOnly, cfg.IDMode())
	assert.Equal(t, model.LongIDs{}, cfg.IDCodec())
	assert.Equal(t, int64(100), cfg.Query.DefaultTop)
	assert.Equal(t, int64(10000), cfg.Query.MaxTop)
	assert.False(t, cfg.Notify.Enabled)
	assert.Equal(t, "sensorthings", cfg.Notify.ChannelPrefix)
	assert.False(t, cfg.Plugins.Actuation)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
}

func TestLoad_ConfigFile(t *testing.T) {
	inTempDir(t)

	configContent := `
database:
  url: postgresql://localhost/sta
persistence:
  id_type: uuid
  id_generation_mode: ServerAndClientGenerated
query:
  default_top: 50
  max_top: 500
  default_count: true
notify:
  enabled: true
  redis_addr: redis:6379
  channel_prefix: sta
log:
  level: debug
  development: true
`
	require.NoError(t, os.WriteFile("sensorthings.yml", []byte(configContent), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgresql://localhost/sta", cfg.Database.URL)
	assert.Equal(t, model.UUIDIDs{}, cfg.IDCodec())
	assert.Equal(t, crud.ServerAndClientGenerated, cfg.IDMode())

	opts := cfg.CompilerOptions()
	assert.Equal(t, int64(50), opts.DefaultTop)
	assert.Equal(t, int64(500), opts.MaxTop)
	assert.True(t, opts.DefaultCount)

	redis := cfg.RedisConfig()
	assert.Equal(t, "redis:6379", redis.Addr)
	assert.Equal(t, "sta", redis.ChannelPrefix)
	assert.True(t, cfg.Log.Development)
}

func TestLoad_ExplicitFile(t *testing.T) {
	dir := inTempDir(t)
	file := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(file, []byte("persistence:\n  id_type: string\n"), 0o644))

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, model.StringIDs{}, cfg.IDCodec())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_Environment(t *testing.T) {
	inTempDir(t)
	t.Setenv("STA_DATABASE_URL", "postgresql://env/sta")
	t.Setenv("STA_QUERY_MAX_TOP", "200")
	t.Setenv("STA_PERSISTENCE_ID_GENERATION_MODE", "ClientGeneratedOnly")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgresql://env/sta", cfg.Database.URL)
	assert.Equal(t, int64(200), cfg.Query.MaxTop)
	assert.Equal(t, crud.ClientGeneratedOnly, cfg.IDMode())
}

func TestLoad_DatabaseURLFallback(t *testing.T) {
	inTempDir(t)
	t.Setenv("DATABASE_URL", "postgresql://fallback/sta")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgresql://fallback/sta", cfg.Database.URL)
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Persistence: PersistenceConfig{IDType: "long"},
			Query:       QueryConfig{DefaultTop: 100, MaxTop: 1000},
			Log:         LogConfig{Level: "info"},
		}
	}

	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{name: "valid", modify: func(*Config) {}},
		{
			name:   "unknown id type",
			modify: func(c *Config) { c.Persistence.IDType = "int" },
			errMsg: "persistence.id_type",
		},
		{
			name:   "unknown id mode",
			modify: func(c *Config) { c.Persistence.IDGenerationMode = "Sometimes" },
			errMsg: "persistence.id_generation_mode",
		},
		{
			name:   "zero default top",
			modify: func(c *Config) { c.Query.DefaultTop = 0 },
			errMsg: "query.default_top",
		},
		{
			name:   "max below default",
			modify: func(c *Config) { c.Query.MaxTop = 10 },
			errMsg: "query.max_top",
		},
		{
			name:   "notify without address",
			modify: func(c *Config) { c.Notify.Enabled = true },
			errMsg: "notify.redis_addr",
		},
		{
			name:   "bad log level",
			modify: func(c *Config) { c.Log.Level = "loud" },
			errMsg: "log.level",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			err := validateConfig(cfg)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
