package storage

import (
	"context"
	"io"
	"time"
)

// PutOptions describes upload options for object storage.
type PutOptions struct {
	ContentType string
}

type ObjectInfo struct {
	ObjectName string
	Size       int64
}

// Store abstracts the blob operations used by share links. All objects live in one bucket.
type Store interface {
	PutObject(ctx context.Context, object string, reader io.Reader, size int64, opts PutOptions) error
	GetObject(ctx context.Context, object string) (io.ReadCloser, ObjectInfo, error)
	RemoveObject(ctx context.Context, object string) error
	// PresignedGetObject returns a URL valid for expiry that downloads the object as
	// an attachment named downloadName.
	PresignedGetObject(ctx context.Context, object string, expiry time.Duration, downloadName string) (string, error)
}
