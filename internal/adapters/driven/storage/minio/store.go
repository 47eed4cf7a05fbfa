// Package minio stores content bytes in an S3-compatible bucket.
package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/custodia-labs/semdex/internal/core/domain"
	"github.com/custodia-labs/semdex/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.BlobStore = (*Store)(nil)

// BackendName is reported by Backend
const BackendName = "minio"

// Config holds MinIO connection settings
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Store implements driven.BlobStore on MinIO. Logical paths are used as
// object keys unchanged.
type Store struct {
	client *minio.Client
	bucket string
}

// NewStore connects to MinIO and creates the bucket if it is missing.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: minio endpoint and bucket are required", domain.ErrInvalidInput)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%w: check bucket: %w", domain.ErrStorageUnavailable, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("%w: create bucket: %w", domain.ErrStorageUnavailable, err)
		}
	}
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// Put uploads data, replacing any existing object
func (s *Store) Put(ctx context.Context, path string, data []byte) error {
	key, err := domain.NormalizeLogicalPath(path)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return classify(err)
	}
	return nil
}

// Get downloads the object at path
func (s *Store) Get(ctx context.Context, path string) ([]byte, error) {
	key, err := domain.NormalizeLogicalPath(path)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classify(err)
	}
	defer obj.Close()

	// GetObject is lazy; a missing key surfaces on the first read
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, classify(err)
	}
	return data, nil
}

// Delete removes the object. S3 deletes are idempotent, so a stat first
// tells a missing key apart.
func (s *Store) Delete(ctx context.Context, path string) error {
	key, err := domain.NormalizeLogicalPath(path)
	if err != nil {
		return err
	}
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		return classify(err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return classify(err)
	}
	return nil
}

// Exists reports whether an object is stored at path
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	key, err := domain.NormalizeLogicalPath(path)
	if err != nil {
		return false, err
	}
	_, err = s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if err = classify(err); errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// Backend returns "minio"
func (s *Store) Backend() string {
	return BackendName
}

// Ping checks the bucket is reachable
func (s *Store) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return classify(err)
	}
	if !ok {
		return fmt.Errorf("%w: bucket %s does not exist", domain.ErrStorageUnavailable, s.bucket)
	}
	return nil
}

// classify maps S3 error responses onto the blob store's error contract
func classify(err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey", resp.StatusCode == http.StatusNotFound && resp.Code != "NoSuchBucket":
		return domain.ErrNotFound
	default:
		return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
}
