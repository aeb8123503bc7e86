package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"sharelink/config"
	"sharelink/internal/repo"
	"sharelink/internal/storage"
	"sharelink/model"
	"sharelink/utils"
)

type memLinkStore struct {
	mu    sync.Mutex
	links map[string]model.ShareLink
	// createConflicts makes the next n creates report a taken code.
	createConflicts int
	gets            int
	failIncrement   bool
}

func newMemLinkStore() *memLinkStore {
	return &memLinkStore{links: make(map[string]model.ShareLink)}
}

func (m *memLinkStore) Create(_ context.Context, link *model.ShareLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createConflicts > 0 {
		m.createConflicts--
		return repo.ErrLinkExists
	}
	if _, ok := m.links[link.ShortCode]; ok {
		return repo.ErrLinkExists
	}
	m.links[link.ShortCode] = *link
	return nil
}

func (m *memLinkStore) Get(_ context.Context, code string) (*model.ShareLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	link, ok := m.links[code]
	if !ok {
		return nil, repo.ErrLinkNotFound
	}
	return &link, nil
}

func (m *memLinkStore) ListByOwner(_ context.Context, username string) ([]model.ShareLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ShareLink
	for _, link := range m.links {
		if link.Owner().Is(username) {
			out = append(out, link)
		}
	}
	return out, nil
}

func (m *memLinkStore) Delete(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.links[code]; !ok {
		return repo.ErrLinkNotFound
	}
	delete(m.links, code)
	return nil
}

func (m *memLinkStore) IncrementDownloadCount(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failIncrement {
		return errors.New("throughput exceeded")
	}
	link, ok := m.links[code]
	if !ok {
		return repo.ErrLinkNotFound
	}
	link.DownloadCount++
	m.links[code] = link
	return nil
}

func (m *memLinkStore) count(code string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.links[code].DownloadCount
}

type memBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut map[string]bool
	failGet map[string]bool
	puts    int
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{
		objects: make(map[string][]byte),
		failPut: make(map[string]bool),
		failGet: make(map[string]bool),
	}
}

func (m *memBlobStore) PutObject(_ context.Context, object string, reader io.Reader, _ int64, _ storage.PutOptions) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	for suffix := range m.failPut {
		if strings.HasSuffix(object, suffix) {
			return errors.New("put refused")
		}
	}
	m.objects[object] = data
	return nil
}

func (m *memBlobStore) GetObject(_ context.Context, object string) (io.ReadCloser, storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[object]
	if !ok || m.failGet[object] {
		return nil, storage.ObjectInfo{}, errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(data)), storage.ObjectInfo{ObjectName: object, Size: int64(len(data))}, nil
}

func (m *memBlobStore) RemoveObject(_ context.Context, object string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, object)
	return nil
}

func (m *memBlobStore) PresignedGetObject(_ context.Context, object string, expiry time.Duration, downloadName string) (string, error) {
	q := url.Values{}
	q.Set("expires", expiry.String())
	q.Set("name", downloadName)
	return "https://blob.test/" + object + "?" + q.Encode(), nil
}

func (m *memBlobStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	return out
}

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deletes int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[key]
	if !ok {
		return utils.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = data
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	delete(c.entries, key)
	return nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() *config.Config {
	return &config.Config{
		AppBaseURL:         "https://share.test",
		MaxFiles:           5,
		MaxTotalBytes:      30 * 1024 * 1024,
		DefaultExpiryHours: 24,
		Blob:               config.BlobConfig{BucketName: "test", PresignTTL: 5 * time.Minute},
	}
}

func sequence(codes ...string) func() (string, error) {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		code := codes[i%len(codes)]
		i++
		return code, nil
	}
}

func fileOf(name string, content []byte) UploadFile {
	return UploadFile{
		Name: name,
		Size: int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

type fixture struct {
	links *memLinkStore
	blobs *memBlobStore
	clock *testClock
	svc   *ShareService
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		links: newMemLinkStore(),
		blobs: newMemBlobStore(),
		clock: &testClock{now: time.UnixMilli(1_700_000_000_000)},
	}
	registry := NewLinkRegistry(f.links, nil, 0)
	opts = append([]Option{WithClock(f.clock.Now)}, opts...)
	f.svc = NewShareService(testConfig(), registry, f.blobs, nil, opts...)
	return f
}
