package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zip"
)

// ArchiveEntry is one member of a streamed archive. Open is called only when the entry
// is about to be written, so at most one source is open at a time.
type ArchiveEntry struct {
	Name string
	Open func(ctx context.Context) (io.ReadCloser, error)
}

// ArchiveStreamer writes entries as a single zip stream without staging it anywhere.
type ArchiveStreamer struct {
	now func() time.Time
}

func NewArchiveStreamer() *ArchiveStreamer {
	return &ArchiveStreamer{now: time.Now}
}

// Stream writes entries in order with their names used verbatim. Duplicate names produce
// duplicate entries. On any failure the archive is left unterminated and the error returned.
func (a *ArchiveStreamer) Stream(ctx context.Context, w io.Writer, entries []ArchiveEntry) error {
	zw := zip.NewWriter(w)
	modified := a.now()
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.writeEntry(ctx, zw, entry, modified); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return nil
}

func (a *ArchiveStreamer) writeEntry(ctx context.Context, zw *zip.Writer, entry ArchiveEntry, modified time.Time) error {
	src, err := entry.Open(ctx)
	if err != nil {
		return fmt.Errorf("open %s: %w", entry.Name, err)
	}
	defer src.Close()

	dst, err := zw.CreateHeader(&zip.FileHeader{
		Name:     entry.Name,
		Method:   zip.Deflate,
		Modified: modified,
	})
	if err != nil {
		return fmt.Errorf("create entry %s: %w", entry.Name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("write entry %s: %w", entry.Name, err)
	}
	return nil
}
