package config

import (
	"fmt"
	"time"
)

// BlobConfig holds the S3-compatible object store settings.
type BlobConfig struct {
	Host       string
	Port       string
	Username   string
	Password   string
	UseSSL     bool
	BucketName string
	PresignTTL time.Duration // lifetime of single-file download URLs
}

// Endpoint returns host:port for the minio client.
func (b BlobConfig) Endpoint() string {
	return fmt.Sprintf("%s:%s", b.Host, b.Port)
}
