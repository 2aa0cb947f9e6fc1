package drivers

import (
	"context"
	"fmt"

	"github.com/creastat/dialogue"
)

// StoreType represents the type of dialogue store.
type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"
	StoreTypeRedis    StoreType = "redis"
	StoreTypeSQLite   StoreType = "sqlite"
	StoreTypeFile     StoreType = "file"
	StoreTypeSupabase StoreType = "supabase"
	StoreTypeQdrant   StoreType = "qdrant"
	StoreTypeMinio    StoreType = "minio"
)

// NewStore creates a new dialogue store based on the given type.
// Each persistent type requires its connection option (WithRedisClient,
// WithSQLitePath, ...); a missing one yields dialogue.ErrInvalidConfig.
func NewStore[D any](ctx context.Context, storeType StoreType, opts ...StoreOption) (dialogue.Storage[D], error) {
	config := &storeConfig{}

	// Apply options
	for _, opt := range opts {
		opt(config)
	}

	if storeType == StoreTypeMemory {
		return NewMemoryStore(WithShards[D](config.shards)), nil
	}

	serializer, err := dialogue.SerializerFor[D](config.serializer)
	if err != nil {
		return nil, err
	}

	switch storeType {
	case StoreTypeRedis:
		if config.redisClient == nil {
			return nil, fmt.Errorf("%w: redis client is required", dialogue.ErrInvalidConfig)
		}
		return NewRedisStore(config.redisClient, serializer, config.redisPrefix, config.redisTTL), nil

	case StoreTypeSQLite:
		return storage[D](NewSQLiteStore(config.sqlitePath, serializer))

	case StoreTypeFile:
		return storage[D](NewFileStore[D](config.fileRoot, config.serializer))

	case StoreTypeSupabase:
		if config.supabase == nil {
			return nil, fmt.Errorf("%w: supabase config is required", dialogue.ErrInvalidConfig)
		}
		return storage[D](NewSupabaseStore(*config.supabase, serializer))

	case StoreTypeQdrant:
		if config.qdrant == nil {
			return nil, fmt.Errorf("%w: qdrant config is required", dialogue.ErrInvalidConfig)
		}
		return storage[D](NewQdrantStore(ctx, *config.qdrant, serializer))

	case StoreTypeMinio:
		if config.minio == nil {
			return nil, fmt.Errorf("%w: minio config is required", dialogue.ErrInvalidConfig)
		}
		return storage[D](NewMinioStore(ctx, *config.minio, serializer))

	default:
		return nil, fmt.Errorf("%w: %q", dialogue.ErrInvalidStoreType, storeType)
	}
}

// storage keeps a failed constructor from leaking a typed nil pointer into
// the interface.
func storage[D any, S dialogue.Storage[D]](s S, err error) (dialogue.Storage[D], error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
