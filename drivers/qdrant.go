package drivers

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/creastat/dialogue"
	"github.com/qdrant/go-client/qdrant"
)

const (
	qdrantDialogueField = "dialogue"
	qdrantChatIDField   = "chat_id"
)

// QdrantConfig holds Qdrant connection configuration.
type QdrantConfig struct {
	// URL is the Qdrant server address (e.g., "https://example.qdrant.io:6334").
	URL string

	// CollectionName is the collection holding dialogue points.
	CollectionName string

	// APIKey is optional API key for authentication.
	APIKey string
}

// QdrantMedium stores each dialogue as a point whose id is the chat id and
// whose payload carries the serialized record. Points get a one-dimensional
// placeholder vector; the collection is never searched.
type QdrantMedium struct {
	client         *qdrant.Client
	collectionName string
}

// NewQdrantMedium connects to Qdrant and creates the collection if missing.
func NewQdrantMedium(ctx context.Context, cfg QdrantConfig) (*QdrantMedium, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: qdrant url is required", dialogue.ErrInvalidConfig)
	}
	if cfg.CollectionName == "" {
		return nil, fmt.Errorf("%w: qdrant collection is required", dialogue.ErrInvalidConfig)
	}

	qcfg, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	qcfg.APIKey = cfg.APIKey

	client, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	m := &QdrantMedium{client: client, collectionName: cfg.CollectionName}
	if err := m.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return m, nil
}

// NewQdrantStore creates a Qdrant-backed dialogue store.
func NewQdrantStore[D any](ctx context.Context, cfg QdrantConfig, serializer dialogue.Serializer[D]) (*BlobStore[D], error) {
	medium, err := NewQdrantMedium(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewBlobStore(medium, serializer), nil
}

// parseQdrantURL extracts host, port and TLS settings from a URL.
func parseQdrantURL(raw string) (*qdrant.Config, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse qdrant url: %v", dialogue.ErrInvalidConfig, err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: qdrant url has no host", dialogue.ErrInvalidConfig)
	}

	port := 6334 // default gRPC port
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("%w: invalid port: %v", dialogue.ErrInvalidConfig, err)
		}
		port = p
	}

	return &qdrant.Config{
		Host:   u.Hostname(),
		Port:   port,
		UseTLS: u.Scheme == "https",
	}, nil
}

func (m *QdrantMedium) ensureCollection(ctx context.Context) error {
	exists, err := m.client.CollectionExists(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("qdrant collection check failed: %w", err)
	}
	if exists {
		return nil
	}

	err = m.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: m.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     1,
			Distance: qdrant.Distance_Dot,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection failed: %w", err)
	}
	return nil
}

// pointID maps a chat id onto Qdrant's unsigned ids. Negative ids (group
// chats) keep their bit pattern, so the mapping is one to one.
func pointID(id dialogue.ChatID) *qdrant.PointId {
	return qdrant.NewIDNum(uint64(id))
}

func (m *QdrantMedium) Name() string { return "qdrant" }

func (m *QdrantMedium) Load(ctx context.Context, id dialogue.ChatID) ([]byte, bool, error) {
	points, err := m.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: m.collectionName,
		Ids:            []*qdrant.PointId{pointID(id)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, false, fmt.Errorf("qdrant get failed: %w", err)
	}
	if len(points) == 0 {
		return nil, false, nil
	}

	encoded := points[0].GetPayload()[qdrantDialogueField].GetStringValue()
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false, fmt.Errorf("%w: base64: %v", dialogue.ErrSerialization, err)
	}
	return data, true, nil
}

func (m *QdrantMedium) Save(ctx context.Context, id dialogue.ChatID, data []byte) error {
	wait := true
	_, err := m.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: m.collectionName,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{
			{
				Id:      pointID(id),
				Vectors: qdrant.NewVectors(0),
				Payload: map[string]*qdrant.Value{
					qdrantChatIDField:   qdrant.NewValueInt(int64(id)),
					qdrantDialogueField: qdrant.NewValueString(base64.StdEncoding.EncodeToString(data)),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

func (m *QdrantMedium) Delete(ctx context.Context, id dialogue.ChatID) error {
	wait := true
	_, err := m.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: m.collectionName,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelector(pointID(id)),
	})
	if err != nil {
		return fmt.Errorf("qdrant delete failed: %w", err)
	}
	return nil
}

func (m *QdrantMedium) Close() error {
	return m.client.Close()
}

var _ Medium = (*QdrantMedium)(nil)
