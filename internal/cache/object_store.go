package cache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectConfig holds the connection settings for an S3-compatible artifact
// bucket.
type ObjectConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// ObjectStore keeps artifacts in an S3-compatible bucket, for runs whose
// working set should outlive the local machine. Keys map to object names
// under an optional prefix.
type ObjectStore struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewObjectStore(ctx context.Context, cfg ObjectConfig) (*ObjectStore, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("cache: object store endpoint is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: connect object store: %w", err)
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		bucket = "vimax-artifacts"
	}
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("cache: check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("cache: create bucket %s: %w", bucket, err)
		}
	}
	return &ObjectStore{client: client, bucket: bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

func (o *ObjectStore) objectName(key string) string {
	if o.prefix == "" {
		return key
	}
	return o.prefix + "/" + key
}

func (o *ObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := o.client.StatObject(ctx, o.bucket, o.objectName(key), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("cache: stat object %s: %w", key, err)
}

func (o *ObjectStore) Read(ctx context.Context, key string) ([]byte, error) {
	obj, err := o.client.GetObject(ctx, o.bucket, o.objectName(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("cache: get object %s: %w", key, err)
	}
	defer obj.Close()
	b, err := io.ReadAll(obj)
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("cache: read object %s: %w", key, err)
	}
	return b, nil
}

func (o *ObjectStore) Write(ctx context.Context, key string, data []byte) error {
	_, err := o.client.PutObject(ctx, o.bucket, o.objectName(key), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentTypeForKey(key)})
	if err != nil {
		return fmt.Errorf("cache: put object %s: %w", key, err)
	}
	return nil
}

func (o *ObjectStore) Remove(ctx context.Context, key string) error {
	if err := o.client.RemoveObject(ctx, o.bucket, o.objectName(key), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("cache: remove object %s: %w", key, err)
	}
	return nil
}

func contentTypeForKey(key string) string {
	switch {
	case strings.HasSuffix(key, ".json"):
		return "application/json"
	case strings.HasSuffix(key, ".png"):
		return "image/png"
	case strings.HasSuffix(key, ".mp4"):
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}
