package model

import (
	"errors"
	"fmt"
	"time"
)

const (
	ShortCodeLength  = 6
	ShortCodeCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

	MinFiles       = 1
	MaxFiles       = 5
	MaxTotalBytes  = int64(30 * 1024 * 1024)
	MinExpiryHours = 1
	MaxExpiryHours = 168

	millisPerHour = int64(time.Hour / time.Millisecond)
)

// ShareLink describes one upload transaction. BlobKeys, OriginalFilenames and FileSizes
// are index-aligned.
type ShareLink struct {
	ShortCode string `gorm:"column:short_code;primaryKey;size:16" dynamodbav:"shortCode" json:"shortCode"`

	Username     *string `gorm:"column:username;size:128;index" dynamodbav:"username,omitempty" json:"username,omitempty"`
	PasswordHash *string `gorm:"column:password_hash;size:255" dynamodbav:"password,omitempty" json:"passwordHash,omitempty"`

	BlobKeys          []string `gorm:"column:blob_keys;serializer:json;type:text;not null" dynamodbav:"s3Keys" json:"blobKeys"`
	OriginalFilenames []string `gorm:"column:original_filenames;serializer:json;type:text;not null" dynamodbav:"originalFilenames" json:"originalFilenames"`
	FileSizes         []int64  `gorm:"column:file_sizes;serializer:json;type:text;not null" dynamodbav:"fileSizes" json:"fileSizes"`

	TotalSizeBytes int64 `gorm:"column:total_size;not null" dynamodbav:"totalSize" json:"totalSize"`

	CreatedAtEpochMillis int64 `gorm:"column:created_at;not null" dynamodbav:"createdAt" json:"createdAt"`
	ExpiresAtEpochMillis int64 `gorm:"column:expires_at;not null;index" dynamodbav:"expiresAt" json:"expiresAt"`

	DownloadCount int64 `gorm:"column:download_count;not null;default:0" dynamodbav:"downloadCount" json:"downloadCount"`
}

// TableName returns the database table name.
func (ShareLink) TableName() string {
	return "share_link"
}

// Owner returns the tagged owner variant.
func (l *ShareLink) Owner() Owner {
	if l.Username == nil || *l.Username == "" {
		return Anonymous()
	}
	return Owned(*l.Username)
}

// SetOwner stores the owner variant in the persisted nullable column.
func (l *ShareLink) SetOwner(o Owner) {
	if name, ok := o.Username(); ok {
		l.Username = &name
		return
	}
	l.Username = nil
}

func (l *ShareLink) PasswordProtected() bool {
	return l.PasswordHash != nil && *l.PasswordHash != ""
}

func (l *ShareLink) FileCount() int {
	return len(l.BlobKeys)
}

// ExpiredAt reports whether the link is past its expiry at now. The boundary instant is still valid.
func (l *ShareLink) ExpiredAt(now time.Time) bool {
	return now.UnixMilli() > l.ExpiresAtEpochMillis
}

// HoursRemaining is the whole number of hours left before expiry, never negative.
// Partial hours round down, so a link with 59 minutes left reports 0 while still
// being downloadable; callers decide liveness with ExpiredAt, not this value.
func (l *ShareLink) HoursRemaining(now time.Time) int64 {
	left := l.ExpiresAtEpochMillis - now.UnixMilli()
	if left <= 0 {
		return 0
	}
	return left / millisPerHour
}

// ClampExpiryHours bounds a requested lifetime to [MinExpiryHours, MaxExpiryHours].
func ClampExpiryHours(hours int) int {
	if hours < MinExpiryHours {
		return MinExpiryHours
	}
	if hours > MaxExpiryHours {
		return MaxExpiryHours
	}
	return hours
}

// ExpiresAt computes the expiry instant for a creation time and a requested lifetime.
func ExpiresAt(createdAtMillis int64, expiryHours int) int64 {
	return createdAtMillis + int64(ClampExpiryHours(expiryHours))*millisPerHour
}

// ValidShortCode checks the fixed-length lowercase alphanumeric format.
func ValidShortCode(code string) bool {
	if len(code) != ShortCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

var ErrInvalidLink = errors.New("invalid share link")

// Validate checks the record invariants that must hold before it is persisted.
func (l *ShareLink) Validate() error {
	if !ValidShortCode(l.ShortCode) {
		return fmt.Errorf("%w: malformed short code %q", ErrInvalidLink, l.ShortCode)
	}
	n := len(l.BlobKeys)
	if n < MinFiles || n > MaxFiles {
		return fmt.Errorf("%w: %d files, want %d-%d", ErrInvalidLink, n, MinFiles, MaxFiles)
	}
	if len(l.OriginalFilenames) != n || len(l.FileSizes) != n {
		return fmt.Errorf("%w: file sequences are not aligned", ErrInvalidLink)
	}
	var total int64
	for _, size := range l.FileSizes {
		if size < 0 {
			return fmt.Errorf("%w: negative file size", ErrInvalidLink)
		}
		total += size
	}
	if total != l.TotalSizeBytes {
		return fmt.Errorf("%w: total size %d does not match file sizes %d", ErrInvalidLink, l.TotalSizeBytes, total)
	}
	if total > MaxTotalBytes {
		return fmt.Errorf("%w: total size %d exceeds %d", ErrInvalidLink, total, MaxTotalBytes)
	}
	if l.ExpiresAtEpochMillis <= l.CreatedAtEpochMillis {
		return fmt.Errorf("%w: expiry not after creation", ErrInvalidLink)
	}
	if l.DownloadCount < 0 {
		return fmt.Errorf("%w: negative download count", ErrInvalidLink)
	}
	return nil
}
