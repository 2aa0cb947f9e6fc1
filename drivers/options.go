package drivers

import (
	"time"

	"github.com/creastat/dialogue"
	"github.com/redis/go-redis/v9"
)

// StoreOption is a functional option for configuring a dialogue store.
type StoreOption func(*storeConfig)

// storeConfig holds configuration for dialogue stores.
type storeConfig struct {
	serializer dialogue.SerializerKind
	shards     int

	redisClient *redis.Client
	redisTTL    time.Duration
	redisPrefix string

	sqlitePath string
	fileRoot   string

	supabase *SupabaseConfig
	qdrant   *QdrantConfig
	minio    *MinioConfig
}

// WithSerializer selects the record encoding of persistent stores.
func WithSerializer(kind dialogue.SerializerKind) StoreOption {
	return func(c *storeConfig) {
		c.serializer = kind
	}
}

// WithMemoryShards sets the partition count of the memory store.
func WithMemoryShards(n int) StoreOption {
	return func(c *storeConfig) {
		c.shards = n
	}
}

// WithRedisClient sets the Redis client for the Redis store.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithRedisTTL sets the TTL for Redis keys.
func WithRedisTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.redisTTL = ttl
	}
}

// WithRedisPrefix sets the key prefix for Redis keys.
func WithRedisPrefix(prefix string) StoreOption {
	return func(c *storeConfig) {
		c.redisPrefix = prefix
	}
}

// WithSQLitePath sets the database file of the SQLite store.
func WithSQLitePath(path string) StoreOption {
	return func(c *storeConfig) {
		c.sqlitePath = path
	}
}

// WithFileRoot sets the directory of the file store.
func WithFileRoot(root string) StoreOption {
	return func(c *storeConfig) {
		c.fileRoot = root
	}
}

// WithSupabase sets the Supabase connection for the Supabase store.
func WithSupabase(cfg SupabaseConfig) StoreOption {
	return func(c *storeConfig) {
		c.supabase = &cfg
	}
}

// WithQdrant sets the Qdrant connection for the Qdrant store.
func WithQdrant(cfg QdrantConfig) StoreOption {
	return func(c *storeConfig) {
		c.qdrant = &cfg
	}
}

// WithMinio sets the object storage connection for the MinIO store.
func WithMinio(cfg MinioConfig) StoreOption {
	return func(c *storeConfig) {
		c.minio = &cfg
	}
}
