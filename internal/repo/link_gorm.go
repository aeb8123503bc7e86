package repo

import (
	"context"
	"errors"

	"sharelink/model"

	"gorm.io/gorm"
)

// GormLinkStore keeps links in a SQL table; the primary key on short_code makes
// Create a conditional insert.
type GormLinkStore struct {
	db *gorm.DB
}

// NewGormLinkStore expects db to be opened with TranslateError enabled.
func NewGormLinkStore(db *gorm.DB) *GormLinkStore {
	return &GormLinkStore{db: db}
}

// Create inserts the link, returning ErrLinkExists on a duplicate short code.
func (s *GormLinkStore) Create(ctx context.Context, link *model.ShareLink) error {
	err := s.db.WithContext(ctx).Create(link).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrLinkExists
	}
	return err
}

// Get loads a link by short code.
func (s *GormLinkStore) Get(ctx context.Context, shortCode string) (*model.ShareLink, error) {
	var link model.ShareLink
	err := s.db.WithContext(ctx).
		Where("short_code = ?", shortCode).
		First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// ListByOwner returns every link owned by username.
func (s *GormLinkStore) ListByOwner(ctx context.Context, username string) ([]model.ShareLink, error) {
	links := make([]model.ShareLink, 0)
	if err := s.db.WithContext(ctx).
		Where("username = ?", username).
		Order("created_at DESC").
		Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

// Delete removes a link record.
func (s *GormLinkStore) Delete(ctx context.Context, shortCode string) error {
	result := s.db.WithContext(ctx).
		Where("short_code = ?", shortCode).
		Delete(&model.ShareLink{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}

// IncrementDownloadCount bumps the counter in the database, never in memory.
func (s *GormLinkStore) IncrementDownloadCount(ctx context.Context, shortCode string) error {
	result := s.db.WithContext(ctx).
		Model(&model.ShareLink{}).
		Where("short_code = ?", shortCode).
		UpdateColumn("download_count", gorm.Expr("download_count + ?", 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}
