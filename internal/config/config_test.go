package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/creastat/dialogue"
	"github.com/creastat/dialogue/drivers"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Backend)
	assert.Equal(t, "json", cfg.Serializer)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 4000, cfg.History.TokenLimit)
	assert.Equal(t, 50, cfg.History.MessageLimit)
	assert.Equal(t, 32, cfg.Memory.Shards)
	assert.Equal(t, "dialogue:", cfg.Redis.Prefix)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dialogue.yaml")
	yaml := `
backend: redis
serializer: cbor
redis:
  addr: redis.internal:6379
  ttl: 30m
history:
  message_limit: 10
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("DIALOGUE_REDIS_DB", "3")
	t.Setenv("DIALOGUE_LOG_LEVEL", "trace")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Backend)
	assert.Equal(t, "cbor", cfg.Serializer)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, "trace", cfg.LogLevel)
	assert.Equal(t, 10, cfg.History.MessageLimit)
	assert.Equal(t, 4000, cfg.History.TokenLimit)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{name: "memory", cfg: Config{Backend: "memory"}},
		{name: "file", cfg: Config{Backend: "file", File: FileConfig{Root: "/tmp/x"}}},
		{name: "file without root", cfg: Config{Backend: "file"}, wantErr: dialogue.ErrInvalidConfig},
		{name: "redis without addr", cfg: Config{Backend: "redis"}, wantErr: dialogue.ErrInvalidConfig},
		{name: "sqlite without path", cfg: Config{Backend: "sqlite"}, wantErr: dialogue.ErrInvalidConfig},
		{name: "supabase without key", cfg: Config{Backend: "supabase", Supabase: SupabaseConfig{URL: "https://x"}}, wantErr: dialogue.ErrInvalidConfig},
		{name: "qdrant without url", cfg: Config{Backend: "qdrant"}, wantErr: dialogue.ErrInvalidConfig},
		{name: "minio without endpoint", cfg: Config{Backend: "minio"}, wantErr: dialogue.ErrInvalidConfig},
		{name: "bad serializer", cfg: Config{Backend: "memory", Serializer: "gob"}, wantErr: dialogue.ErrInvalidConfig},
		{name: "unknown backend", cfg: Config{Backend: "etcd"}, wantErr: dialogue.ErrInvalidStoreType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOpen(t *testing.T) {
	cfg := &Config{
		Backend:    "sqlite",
		Serializer: "json",
		SQLite:     SQLiteConfig{Path: filepath.Join(t.TempDir(), "d.db")},
	}

	s, err := Open[string](context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &drivers.SQLiteStore[string]{}, s)
}
