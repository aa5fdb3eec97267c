package objstore

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectFetcher downloads objects from S3-compatible storage. Zone datasets
// too large for an MQTT message are distributed this way: the broker carries
// only a version and an object pointer.
type ObjectFetcher interface {
	Fetch(ctx context.Context, bucket, key string) ([]byte, error)
}

// ObjectStorage wraps a minio client.
type ObjectStorage struct {
	conn *minio.Client
}

// Connect creates a client for the given endpoint and verifies the
// connection by listing buckets.
func Connect(endpoint, accessKeyID, secretAccessKey string, useSSL bool) (*ObjectStorage, error) {
	conn, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}

	if _, err := conn.ListBuckets(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to establish object storage connection: %w", err)
	}

	return &ObjectStorage{conn: conn}, nil
}

// Fetch reads the full contents of bucket/key.
func (o *ObjectStorage) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := o.conn.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s/%s: %w", bucket, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s/%s: %w", bucket, key, err)
	}
	return data, nil
}
