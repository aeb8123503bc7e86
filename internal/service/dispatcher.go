package service

import (
	"context"
	"io"
	"time"

	"sharelink/internal/storage"
	"sharelink/model"
	"sharelink/utils"

	"go.uber.org/zap"
)

// DownloadDispatcher serves an authorized link: a presigned URL for one file, a zip stream
// for several. The download counter moves only after a successful hand-off.
type DownloadDispatcher struct {
	blobs      storage.Store
	registry   *LinkRegistry
	archiver   *ArchiveStreamer
	presignTTL time.Duration
}

func NewDownloadDispatcher(blobs storage.Store, registry *LinkRegistry, archiver *ArchiveStreamer, presignTTL time.Duration) *DownloadDispatcher {
	return &DownloadDispatcher{
		blobs:      blobs,
		registry:   registry,
		archiver:   archiver,
		presignTTL: presignTTL,
	}
}

// IsArchive reports whether the link is served as a zip stream.
func (d *DownloadDispatcher) IsArchive(link *model.ShareLink) bool {
	return link.FileCount() > 1
}

// ArchiveName is the attachment name of a multi-file download.
func (d *DownloadDispatcher) ArchiveName(link *model.ShareLink) string {
	return link.ShortCode + ".zip"
}

// PresignedURL returns a short-lived attachment URL for the link's single file.
func (d *DownloadDispatcher) PresignedURL(ctx context.Context, link *model.ShareLink) (string, error) {
	if link.FileCount() == 0 {
		return "", ErrNotFound
	}
	u, err := d.blobs.PresignedGetObject(ctx, link.BlobKeys[0], d.presignTTL, link.OriginalFilenames[0])
	if err != nil {
		return "", upstreamError("presign download", err)
	}
	d.countDownload(ctx, link.ShortCode)
	return u, nil
}

// StreamArchive writes every file of the link into w as a zip archive.
func (d *DownloadDispatcher) StreamArchive(ctx context.Context, link *model.ShareLink, w io.Writer) error {
	entries := make([]ArchiveEntry, 0, link.FileCount())
	for i, key := range link.BlobKeys {
		key := key
		entries = append(entries, ArchiveEntry{
			Name: link.OriginalFilenames[i],
			Open: func(ctx context.Context) (io.ReadCloser, error) {
				rc, _, err := d.blobs.GetObject(ctx, key)
				return rc, err
			},
		})
	}
	if err := d.archiver.Stream(ctx, w, entries); err != nil {
		return upstreamError("stream archive", err)
	}
	d.countDownload(ctx, link.ShortCode)
	return nil
}

// countDownload never fails the download it follows.
func (d *DownloadDispatcher) countDownload(ctx context.Context, code string) {
	if err := d.registry.IncrementDownloadCount(context.WithoutCancel(ctx), code); err != nil {
		utils.Log.Warn("increment download count failed", zap.String("code", code), zap.Error(err))
	}
}
