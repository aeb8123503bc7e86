package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		out[f.Name] = string(body)
	}
	return out
}

func TestArchiveStreamerWritesEntriesInOrder(t *testing.T) {
	var buf bytes.Buffer
	entries := []ArchiveEntry{
		{Name: "a.txt", Open: func(context.Context) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("alpha")), nil
		}},
		{Name: "b.txt", Open: func(context.Context) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("beta")), nil
		}},
	}
	require.NoError(t, NewArchiveStreamer().Stream(context.Background(), &buf, entries))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "a.txt", zr.File[0].Name)
	assert.Equal(t, "b.txt", zr.File[1].Name)
	assert.Equal(t, map[string]string{"a.txt": "alpha", "b.txt": "beta"}, readZip(t, buf.Bytes()))
}

func TestArchiveStreamerStopsOnSourceError(t *testing.T) {
	var buf bytes.Buffer
	opened := 0
	entries := []ArchiveEntry{
		{Name: "a.txt", Open: func(context.Context) (io.ReadCloser, error) {
			opened++
			return nil, errors.New("gone")
		}},
		{Name: "b.txt", Open: func(context.Context) (io.ReadCloser, error) {
			opened++
			return io.NopCloser(strings.NewReader("beta")), nil
		}},
	}
	err := NewArchiveStreamer().Stream(context.Background(), &buf, entries)
	assert.Error(t, err)
	assert.Equal(t, 1, opened)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("client went away") }

func TestArchiveStreamerReportsSinkFailure(t *testing.T) {
	entries := []ArchiveEntry{{Name: "a.txt", Open: func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(strings.Repeat("z", 1<<20))), nil
	}}}
	assert.Error(t, NewArchiveStreamer().Stream(context.Background(), failingWriter{}, entries))
}

// cutoffWriter accepts limit bytes and then fails, like a client that disconnects mid-download.
type cutoffWriter struct {
	limit   int
	written int
}

func (w *cutoffWriter) Write(p []byte) (int, error) {
	room := w.limit - w.written
	if room <= 0 {
		return 0, errors.New("connection reset by peer")
	}
	if len(p) > room {
		w.written += room
		return room, errors.New("connection reset by peer")
	}
	w.written += len(p)
	return len(p), nil
}

func incompressible(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestDispatcherArchiveNotCountedWhenClientDisconnects(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	res, err := f.svc.Upload(ctx, UploadRequest{
		Files: []UploadFile{fileOf("a.bin", incompressible(t, 64<<10)), fileOf("b.bin", incompressible(t, 64<<10))},
	})
	require.NoError(t, err)
	link, err := f.svc.Authorize(ctx, res.ShortCode, "")
	require.NoError(t, err)

	w := &cutoffWriter{limit: 1024}
	assert.ErrorIs(t, f.svc.Dispatcher().StreamArchive(ctx, link, w), ErrUpstream)
	assert.Equal(t, 1024, w.written)
	assert.Equal(t, int64(0), f.links.count(res.ShortCode))
}

func TestDispatcherCounterFailureDoesNotFailDownload(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	single, err := f.svc.Upload(ctx, UploadRequest{Files: []UploadFile{fileOf("a.txt", []byte("alpha"))}})
	require.NoError(t, err)
	multi, err := f.svc.Upload(ctx, UploadRequest{
		Files: []UploadFile{fileOf("a.txt", []byte("alpha")), fileOf("b.txt", []byte("beta"))},
	})
	require.NoError(t, err)
	f.links.mu.Lock()
	f.links.failIncrement = true
	f.links.mu.Unlock()
	d := f.svc.Dispatcher()

	link, err := f.svc.Authorize(ctx, single.ShortCode, "")
	require.NoError(t, err)
	u, err := d.PresignedURL(ctx, link)
	require.NoError(t, err)
	assert.NotEmpty(t, u)

	link, err = f.svc.Authorize(ctx, multi.ShortCode, "")
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, d.StreamArchive(ctx, link, &buf))
	assert.Equal(t, map[string]string{"a.txt": "alpha", "b.txt": "beta"}, readZip(t, buf.Bytes()))

	assert.Equal(t, int64(0), f.links.count(single.ShortCode))
	assert.Equal(t, int64(0), f.links.count(multi.ShortCode))
}

func TestDispatcherArchiveCountsOnlyOnSuccess(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	res, err := f.svc.Upload(ctx, UploadRequest{
		Files: []UploadFile{fileOf("a.txt", []byte("alpha")), fileOf("a.txt", []byte("again"))},
	})
	require.NoError(t, err)
	link, err := f.svc.Authorize(ctx, res.ShortCode, "")
	require.NoError(t, err)
	d := f.svc.Dispatcher()
	assert.True(t, d.IsArchive(link))
	assert.Equal(t, res.ShortCode+".zip", d.ArchiveName(link))

	var buf bytes.Buffer
	require.NoError(t, d.StreamArchive(ctx, link, &buf))
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2, "duplicate names are kept as separate entries")
	assert.Equal(t, int64(1), f.links.count(res.ShortCode))

	f.blobs.failGet[link.BlobKeys[1]] = true
	buf.Reset()
	assert.ErrorIs(t, d.StreamArchive(ctx, link, &buf), ErrUpstream)
	assert.Equal(t, int64(1), f.links.count(res.ShortCode))
}

func TestDispatcherPresignForcesAttachmentName(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	res, err := f.svc.Upload(ctx, UploadRequest{Files: []UploadFile{fileOf("report.pdf", []byte("%PDF"))}})
	require.NoError(t, err)
	link, err := f.svc.Authorize(ctx, res.ShortCode, "")
	require.NoError(t, err)
	assert.False(t, f.svc.Dispatcher().IsArchive(link))

	raw, err := f.svc.Dispatcher().PresignedURL(ctx, link)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", u.Query().Get("name"))
	assert.Equal(t, "5m0s", u.Query().Get("expires"))
	assert.Equal(t, int64(1), f.links.count(res.ShortCode))
}
