package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectPutter is the subset of *minio.Client used by the archive.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinIOStorage is a thin wrapper around the minio client.
type MinIOStorage struct {
	client ObjectPutter
	bucket string
	prefix string
}

// NewMinIOStorage creates a MinIO client and ensures the bucket exists.
func NewMinIOStorage(ctx context.Context, cfg *ArchiveConfig) (*MinIOStorage, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		// ignore "already exists" style errors
		exist, xerr := mc.BucketExists(ctx, cfg.Bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return newMinIOStorage(mc, cfg.Bucket, cfg.Prefix), nil
}

func newMinIOStorage(client ObjectPutter, bucket, prefix string) *MinIOStorage {
	return &MinIOStorage{client: client, bucket: bucket, prefix: prefix}
}

// UploadFile uploads data from reader to the configured bucket under key.
func (s *MinIOStorage) UploadFile(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{ContentType: contentType})
	return err
}

// ArchiveKey is "<prefix>/YYYY/MM/DD/<msgID>.json" in UTC.
func (s *MinIOStorage) ArchiveKey(msgID string, receivedAt time.Time) string {
	return path.Join(s.prefix, receivedAt.UTC().Format("2006/01/02"), msgID+".json")
}

// Archive stores a verified delivery body keyed by its message id.
func (s *MinIOStorage) Archive(ctx context.Context, msgID string, receivedAt time.Time, body []byte) error {
	key := s.ArchiveKey(msgID, receivedAt)
	if err := s.UploadFile(ctx, key, bytes.NewReader(body), int64(len(body)), "application/json"); err != nil {
		return fmt.Errorf("archive %s: %w", key, err)
	}
	return nil
}
