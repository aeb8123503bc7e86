package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"sharelink/config"
	"sharelink/utils"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinioStore implements Store on any S3-compatible service.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore builds a Store from a MinIO client.
func NewMinioStore(client *minio.Client, bucket string) *MinioStore {
	return &MinioStore{client: client, bucket: bucket}
}

// PutObject uploads an object.
func (s *MinioStore) PutObject(ctx context.Context, object string, reader io.Reader, size int64, opts PutOptions) error {
	_, err := s.client.PutObject(ctx, s.bucket, object, reader, size, minio.PutObjectOptions{
		ContentType: opts.ContentType,
	})
	return err
}

// GetObject fetches an object and its size.
func (s *MinioStore) GetObject(ctx context.Context, object string) (io.ReadCloser, ObjectInfo, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, ObjectInfo{}, err
	}
	info := ObjectInfo{
		ObjectName: object,
		Size:       stat.Size,
	}
	return obj, info, nil
}

// RemoveObject deletes an object.
func (s *MinioStore) RemoveObject(ctx context.Context, object string) error {
	return s.client.RemoveObject(ctx, s.bucket, object, minio.RemoveObjectOptions{})
}

// PresignedGetObject returns a presigned URL that forces an attachment download.
func (s *MinioStore) PresignedGetObject(ctx context.Context, object string, expiry time.Duration, downloadName string) (string, error) {
	values := url.Values{}
	disposition := "attachment"
	if downloadName != "" {
		disposition = fmt.Sprintf(`attachment; filename="%s"`, utils.SanitizeHeaderFilename(downloadName))
	}
	values.Set("response-content-disposition", disposition)
	u, err := s.client.PresignedGetObject(ctx, s.bucket, object, expiry, values)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// InitMinio connects to the object store and creates the bucket if needed.
func InitMinio(ctx context.Context, cfg config.BlobConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Username, cfg.Password, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	utils.Log.Info("init minio success", zap.String("endpoint", cfg.Endpoint()), zap.String("bucket", cfg.BucketName))
	return NewMinioStore(client, cfg.BucketName), nil
}
