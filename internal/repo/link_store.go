package repo

import (
	"context"
	"errors"

	"sharelink/model"
)

var (
	ErrLinkNotFound = errors.New("share link not found")
	ErrLinkExists   = errors.New("share link already exists")
)

// LinkStore is the persistent home of ShareLink records.
//
// Create must be a single conditional write that fails with ErrLinkExists when the
// short code is taken. IncrementDownloadCount must be atomic on the store side.
type LinkStore interface {
	Create(ctx context.Context, link *model.ShareLink) error
	Get(ctx context.Context, shortCode string) (*model.ShareLink, error)
	ListByOwner(ctx context.Context, username string) ([]model.ShareLink, error)
	Delete(ctx context.Context, shortCode string) error
	IncrementDownloadCount(ctx context.Context, shortCode string) error
}
