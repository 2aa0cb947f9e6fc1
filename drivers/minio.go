package drivers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/creastat/dialogue"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultObjectPrefix = "dialogues/"

// MinioConfig holds S3-compatible object storage configuration.
type MinioConfig struct {
	Endpoint  string // host[:port], without scheme
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string // Default: "dialogues/"
	UseSSL    bool
}

// MinioMedium stores one object per chat in an S3-compatible bucket.
// Object PUTs replace the whole object, so readers never see partial records.
type MinioMedium struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioMedium connects to the object store and creates the bucket if
// missing.
func NewMinioMedium(ctx context.Context, cfg MinioConfig) (*MinioMedium, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: minio endpoint is required", dialogue.ErrInvalidConfig)
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: minio bucket is required", dialogue.ErrInvalidConfig)
	}
	if cfg.Prefix == "" {
		cfg.Prefix = defaultObjectPrefix
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check failed: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio make bucket failed: %w", err)
		}
	}

	return &MinioMedium{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// NewMinioStore creates an object-storage-backed dialogue store.
func NewMinioStore[D any](ctx context.Context, cfg MinioConfig, serializer dialogue.Serializer[D]) (*BlobStore[D], error) {
	medium, err := NewMinioMedium(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewBlobStore(medium, serializer), nil
}

func (m *MinioMedium) Name() string { return "minio" }

func (m *MinioMedium) key(id dialogue.ChatID) string {
	return m.prefix + strconv.FormatInt(int64(id), 10)
}

func (m *MinioMedium) Load(ctx context.Context, id dialogue.ChatID) ([]byte, bool, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, m.key(id), minio.GetObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (m *MinioMedium) Save(ctx context.Context, id dialogue.ChatID, data []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, m.key(id), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	return err
}

func (m *MinioMedium) Delete(ctx context.Context, id dialogue.ChatID) error {
	err := m.client.RemoveObject(ctx, m.bucket, m.key(id), minio.RemoveObjectOptions{})
	if err != nil && !isNoSuchKey(err) {
		return err
	}
	return nil
}

// Close is a no-op; minio clients share the default HTTP transport.
func (m *MinioMedium) Close() error { return nil }

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

var _ Medium = (*MinioMedium)(nil)
