package drivers

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/creastat/dialogue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		storeType StoreType
		opts      []StoreOption
		wantErr   error
		wantType  any
	}{
		{name: "memory", storeType: StoreTypeMemory, wantType: &MemoryStore[string]{}},
		{name: "memory with shards", storeType: StoreTypeMemory, opts: []StoreOption{WithMemoryShards(2)}, wantType: &MemoryStore[string]{}},
		{name: "sqlite", storeType: StoreTypeSQLite, opts: []StoreOption{WithSQLitePath(filepath.Join(t.TempDir(), "d.db"))}, wantType: &SQLiteStore[string]{}},
		{name: "file cbor", storeType: StoreTypeFile, opts: []StoreOption{WithFileRoot(t.TempDir()), WithSerializer(dialogue.SerializerCBOR)}, wantType: &BlobStore[string]{}},
		{name: "redis without client", storeType: StoreTypeRedis, wantErr: dialogue.ErrInvalidConfig},
		{name: "sqlite without path", storeType: StoreTypeSQLite, wantErr: dialogue.ErrInvalidConfig},
		{name: "file without root", storeType: StoreTypeFile, wantErr: dialogue.ErrInvalidConfig},
		{name: "supabase without config", storeType: StoreTypeSupabase, wantErr: dialogue.ErrInvalidConfig},
		{name: "supabase without key", storeType: StoreTypeSupabase, opts: []StoreOption{WithSupabase(SupabaseConfig{URL: "https://x.supabase.co"})}, wantErr: dialogue.ErrInvalidConfig},
		{name: "qdrant without config", storeType: StoreTypeQdrant, wantErr: dialogue.ErrInvalidConfig},
		{name: "qdrant without collection", storeType: StoreTypeQdrant, opts: []StoreOption{WithQdrant(QdrantConfig{URL: "localhost:6334"})}, wantErr: dialogue.ErrInvalidConfig},
		{name: "minio without config", storeType: StoreTypeMinio, wantErr: dialogue.ErrInvalidConfig},
		{name: "minio without bucket", storeType: StoreTypeMinio, opts: []StoreOption{WithMinio(MinioConfig{Endpoint: "localhost:9000"})}, wantErr: dialogue.ErrInvalidConfig},
		{name: "unknown serializer", storeType: StoreTypeSQLite, opts: []StoreOption{WithSerializer("xml")}, wantErr: dialogue.ErrInvalidConfig},
		{name: "unknown type", storeType: "etcd", wantErr: dialogue.ErrInvalidStoreType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStore[string](ctx, tt.storeType, tt.opts...)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			defer s.Close()
			assert.IsType(t, tt.wantType, s)
		})
	}
}
