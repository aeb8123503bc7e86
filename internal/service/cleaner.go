package service

import (
	"context"
	"errors"

	"sharelink/internal/storage"
)

// InlineCleaner removes blobs synchronously. It is used when no cleanup queue is configured.
type InlineCleaner struct {
	blobs storage.Store
}

func NewInlineCleaner(blobs storage.Store) *InlineCleaner {
	return &InlineCleaner{blobs: blobs}
}

// Cleanup tries every key and joins the failures.
func (c *InlineCleaner) Cleanup(ctx context.Context, keys []string, _ string) error {
	var errs []error
	for _, key := range keys {
		if err := c.blobs.RemoveObject(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
