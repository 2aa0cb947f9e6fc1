// Package config loads dialoguectl settings from a YAML file and DIALOGUE_*
// environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/creastat/dialogue"
	"github.com/creastat/dialogue/drivers"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

const envPrefix = "DIALOGUE"

// Config holds everything needed to open a dialogue store.
type Config struct {
	Backend    string        `mapstructure:"backend"`
	Serializer string        `mapstructure:"serializer"`
	LogLevel   string        `mapstructure:"log_level"`
	History    HistoryConfig `mapstructure:"history"`

	Memory   MemoryConfig   `mapstructure:"memory"`
	Redis    RedisConfig    `mapstructure:"redis"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	File     FileConfig     `mapstructure:"file"`
	Supabase SupabaseConfig `mapstructure:"supabase"`
	Qdrant   QdrantConfig   `mapstructure:"qdrant"`
	Minio    MinioConfig    `mapstructure:"minio"`
}

type HistoryConfig struct {
	TokenLimit   int `mapstructure:"token_limit"`
	MessageLimit int `mapstructure:"message_limit"`
}

type MemoryConfig struct {
	Shards int `mapstructure:"shards"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type FileConfig struct {
	Root string `mapstructure:"root"`
}

type SupabaseConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
	Table  string `mapstructure:"table"`
}

type QdrantConfig struct {
	URL        string `mapstructure:"url"`
	APIKey     string `mapstructure:"api_key"`
	Collection string `mapstructure:"collection"`
}

type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// SetDefaults registers the default of every key, which also makes each key
// visible to AutomaticEnv.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("backend", string(drivers.StoreTypeMemory))
	v.SetDefault("serializer", string(dialogue.SerializerJSON))
	v.SetDefault("log_level", "info")
	v.SetDefault("history.token_limit", 4000)
	v.SetDefault("history.message_limit", 50)

	v.SetDefault("memory.shards", 32)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "dialogue:")
	v.SetDefault("redis.ttl", time.Duration(0))

	v.SetDefault("sqlite.path", "dialogues.db")
	v.SetDefault("file.root", "dialogues")

	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.api_key", "")
	v.SetDefault("supabase.table", "dialogues")

	v.SetDefault("qdrant.url", "")
	v.SetDefault("qdrant.api_key", "")
	v.SetDefault("qdrant.collection", "dialogues")

	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.bucket", "dialogues")
	v.SetDefault("minio.prefix", "dialogues/")
	v.SetDefault("minio.use_ssl", true)
}

// Load reads path (if non-empty) and the environment into a Config.
// A missing file at the default location is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("dialogue")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings of the selected backend.
func (c *Config) Validate() error {
	if _, err := dialogue.SerializerFor[struct{}](dialogue.SerializerKind(c.Serializer)); err != nil {
		return err
	}

	switch drivers.StoreType(c.Backend) {
	case drivers.StoreTypeMemory:
	case drivers.StoreTypeRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("%w: redis.addr is required", dialogue.ErrInvalidConfig)
		}
	case drivers.StoreTypeSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("%w: sqlite.path is required", dialogue.ErrInvalidConfig)
		}
	case drivers.StoreTypeFile:
		if c.File.Root == "" {
			return fmt.Errorf("%w: file.root is required", dialogue.ErrInvalidConfig)
		}
	case drivers.StoreTypeSupabase:
		if c.Supabase.URL == "" || c.Supabase.APIKey == "" {
			return fmt.Errorf("%w: supabase.url and supabase.api_key are required", dialogue.ErrInvalidConfig)
		}
	case drivers.StoreTypeQdrant:
		if c.Qdrant.URL == "" {
			return fmt.Errorf("%w: qdrant.url is required", dialogue.ErrInvalidConfig)
		}
	case drivers.StoreTypeMinio:
		if c.Minio.Endpoint == "" {
			return fmt.Errorf("%w: minio.endpoint is required", dialogue.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: %q", dialogue.ErrInvalidStoreType, c.Backend)
	}
	return nil
}

// StoreOptions translates the config into driver options. Only the selected
// backend's connection is created.
func (c *Config) StoreOptions() []drivers.StoreOption {
	opts := []drivers.StoreOption{
		drivers.WithSerializer(dialogue.SerializerKind(c.Serializer)),
		drivers.WithMemoryShards(c.Memory.Shards),
	}

	switch drivers.StoreType(c.Backend) {
	case drivers.StoreTypeRedis:
		opts = append(opts,
			drivers.WithRedisClient(redis.NewClient(&redis.Options{
				Addr:     c.Redis.Addr,
				Password: c.Redis.Password,
				DB:       c.Redis.DB,
			})),
			drivers.WithRedisPrefix(c.Redis.Prefix),
			drivers.WithRedisTTL(c.Redis.TTL),
		)
	case drivers.StoreTypeSQLite:
		opts = append(opts, drivers.WithSQLitePath(c.SQLite.Path))
	case drivers.StoreTypeFile:
		opts = append(opts, drivers.WithFileRoot(c.File.Root))
	case drivers.StoreTypeSupabase:
		opts = append(opts, drivers.WithSupabase(drivers.SupabaseConfig{
			URL:    c.Supabase.URL,
			APIKey: c.Supabase.APIKey,
			Table:  c.Supabase.Table,
		}))
	case drivers.StoreTypeQdrant:
		opts = append(opts, drivers.WithQdrant(drivers.QdrantConfig{
			URL:            c.Qdrant.URL,
			APIKey:         c.Qdrant.APIKey,
			CollectionName: c.Qdrant.Collection,
		}))
	case drivers.StoreTypeMinio:
		opts = append(opts, drivers.WithMinio(drivers.MinioConfig{
			Endpoint:  c.Minio.Endpoint,
			AccessKey: c.Minio.AccessKey,
			SecretKey: c.Minio.SecretKey,
			Bucket:    c.Minio.Bucket,
			Prefix:    c.Minio.Prefix,
			UseSSL:    c.Minio.UseSSL,
		}))
	}
	return opts
}

// Open creates the configured backend for records of type D.
func Open[D any](ctx context.Context, c *Config) (dialogue.Storage[D], error) {
	return drivers.NewStore[D](ctx, drivers.StoreType(c.Backend), c.StoreOptions()...)
}
