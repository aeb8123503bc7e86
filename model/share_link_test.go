package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validLink() *ShareLink {
	return &ShareLink{
		ShortCode:            "ab12cd",
		BlobKeys:             []string{"uploads/ab12cd/0/a.txt", "uploads/ab12cd/1/b.txt"},
		OriginalFilenames:    []string{"a.txt", "b.txt"},
		FileSizes:            []int64{10, 20},
		TotalSizeBytes:       30,
		CreatedAtEpochMillis: 1_000,
		ExpiresAtEpochMillis: 1_000 + 3_600_000,
	}
}

func TestExpiresAtClamps(t *testing.T) {
	created := int64(1_700_000_000_000)
	tests := []struct {
		hours int
		want  int
	}{
		{-5, 1}, {0, 1}, {1, 1}, {24, 24}, {168, 168}, {169, 168}, {10_000, 168},
	}
	for _, tt := range tests {
		assert.Equal(t, created+int64(tt.want)*3_600_000, ExpiresAt(created, tt.hours), "hours=%d", tt.hours)
	}
}

func TestValidShortCode(t *testing.T) {
	assert.True(t, ValidShortCode("a1b2c3"))
	assert.True(t, ValidShortCode("zzzzzz"))
	assert.False(t, ValidShortCode("A1b2c3"))
	assert.False(t, ValidShortCode("a1b2c"))
	assert.False(t, ValidShortCode("a1b2c3d"))
	assert.False(t, ValidShortCode("a1-2c3"))
}

func TestValidate(t *testing.T) {
	require.NoError(t, validLink().Validate())

	tests := []struct {
		name   string
		mutate func(l *ShareLink)
	}{
		{"bad code", func(l *ShareLink) { l.ShortCode = "BAD" }},
		{"no files", func(l *ShareLink) {
			l.BlobKeys, l.OriginalFilenames, l.FileSizes, l.TotalSizeBytes = nil, nil, nil, 0
		}},
		{"misaligned", func(l *ShareLink) { l.OriginalFilenames = l.OriginalFilenames[:1] }},
		{"total mismatch", func(l *ShareLink) { l.TotalSizeBytes = 31 }},
		{"over limit", func(l *ShareLink) {
			l.FileSizes = []int64{MaxTotalBytes, 1}
			l.TotalSizeBytes = MaxTotalBytes + 1
		}},
		{"expiry before creation", func(l *ShareLink) { l.ExpiresAtEpochMillis = l.CreatedAtEpochMillis }},
		{"six files", func(l *ShareLink) {
			l.BlobKeys = []string{"1", "2", "3", "4", "5", "6"}
			l.OriginalFilenames = []string{"1", "2", "3", "4", "5", "6"}
			l.FileSizes = []int64{5, 5, 5, 5, 5, 5}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := validLink()
			tt.mutate(l)
			assert.ErrorIs(t, l.Validate(), ErrInvalidLink)
		})
	}
}

func TestExpiryAndHoursRemaining(t *testing.T) {
	l := validLink()
	atExpiry := time.UnixMilli(l.ExpiresAtEpochMillis)

	assert.False(t, l.ExpiredAt(atExpiry))
	assert.True(t, l.ExpiredAt(atExpiry.Add(time.Millisecond)))
	assert.Equal(t, int64(1), l.HoursRemaining(time.UnixMilli(l.CreatedAtEpochMillis)))
	assert.Equal(t, int64(0), l.HoursRemaining(atExpiry.Add(time.Hour)))
}

func TestHoursRemainingRoundsDown(t *testing.T) {
	l := validLink()
	l.ExpiresAtEpochMillis = l.CreatedAtEpochMillis + 3*int64(time.Hour/time.Millisecond) - 1
	created := time.UnixMilli(l.CreatedAtEpochMillis)

	assert.Equal(t, int64(2), l.HoursRemaining(created))

	almostGone := time.UnixMilli(l.ExpiresAtEpochMillis).Add(-59 * time.Minute)
	assert.Equal(t, int64(0), l.HoursRemaining(almostGone))
	assert.False(t, l.ExpiredAt(almostGone))
}

func TestOwnerVariant(t *testing.T) {
	l := validLink()
	assert.True(t, l.Owner().IsAnonymous())
	assert.False(t, l.Owner().Is("alice"))

	l.SetOwner(Owned("alice"))
	require.NotNil(t, l.Username)
	assert.Equal(t, "alice", *l.Username)
	assert.True(t, l.Owner().Is("alice"))
	assert.False(t, l.Owner().Is("bob"))
	assert.False(t, l.Owner().Is(""))

	l.SetOwner(Anonymous())
	assert.Nil(t, l.Username)
	assert.True(t, Owned("").IsAnonymous())
}
