package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"sharelink/config"
	"sharelink/internal/dto"
	"sharelink/internal/repo"
	"sharelink/internal/storage"
	"sharelink/model"
	"sharelink/utils"

	"go.uber.org/zap"
)

const maxCreateAttempts = 3

// UploadFile is one file of an upload. Open may be called more than once when the
// upload is retried under a new short code.
type UploadFile struct {
	Name        string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

type UploadRequest struct {
	Files    []UploadFile
	Password string
	// ExpiryHours nil means the configured default.
	ExpiryHours *int
	Owner       model.Owner
}

// BlobCleaner disposes of blobs that no record references.
type BlobCleaner interface {
	Cleanup(ctx context.Context, keys []string, reason string) error
}

// ShareService ties the registry, the blob store and the access rules together.
type ShareService struct {
	cfg        *config.Config
	registry   *LinkRegistry
	blobs      storage.Store
	allocator  *ShortCodeAllocator
	gate       *AccessGate
	dispatcher *DownloadDispatcher
	cleaner    BlobCleaner
	now        func() time.Time
}

type Option func(*ShareService)

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(s *ShareService) { s.now = now }
}

func WithAllocator(a *ShortCodeAllocator) Option {
	return func(s *ShareService) { s.allocator = a }
}

func NewShareService(cfg *config.Config, registry *LinkRegistry, blobs storage.Store, cleaner BlobCleaner, opts ...Option) *ShareService {
	s := &ShareService{
		cfg:       cfg,
		registry:  registry,
		blobs:     blobs,
		allocator: NewShortCodeAllocator(),
		cleaner:   cleaner,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cleaner == nil {
		s.cleaner = NewInlineCleaner(blobs)
	}
	s.gate = NewAccessGate(s.now)
	s.dispatcher = NewDownloadDispatcher(blobs, registry, NewArchiveStreamer(), cfg.Blob.PresignTTL)
	return s
}

func (s *ShareService) Dispatcher() *DownloadDispatcher {
	return s.dispatcher
}

func (s *ShareService) validateUpload(req *UploadRequest) error {
	n := len(req.Files)
	if n < model.MinFiles {
		return validationError("at least one file is required")
	}
	maxFiles := min(s.cfg.MaxFiles, model.MaxFiles)
	if n > maxFiles {
		return validationError("maximum %d files allowed", maxFiles)
	}
	maxBytes := min(s.cfg.MaxTotalBytes, model.MaxTotalBytes)
	var total int64
	for _, f := range req.Files {
		if f.Size < 0 {
			return validationError("invalid size for %q", f.Name)
		}
		if f.Open == nil {
			return validationError("file %q has no content", f.Name)
		}
		total += f.Size
	}
	if total > maxBytes {
		return validationError("total upload size exceeds %d MB", maxBytes/(1024*1024))
	}
	return nil
}

// Upload stores the files and registers a new link for them. Nothing is written to the
// blob store before the request is validated.
func (s *ShareService) Upload(ctx context.Context, req UploadRequest) (*dto.UploadResponse, error) {
	if err := s.validateUpload(&req); err != nil {
		return nil, err
	}

	var passwordHash *string
	if req.Password != "" {
		hash, err := utils.HashPassword(req.Password)
		if err != nil {
			return nil, upstreamError("hash password", err)
		}
		passwordHash = &hash
	}
	hours := s.cfg.DefaultExpiryHours
	if req.ExpiryHours != nil {
		hours = *req.ExpiryHours
	}
	created := s.now().UnixMilli()

	names := make([]string, len(req.Files))
	sizes := make([]int64, len(req.Files))
	var total int64
	for i, f := range req.Files {
		names[i] = utils.SanitizeObjectName(f.Name)
		sizes[i] = f.Size
		total += f.Size
	}

	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		code, err := s.allocator.GenerateUnique(ctx, s.registry)
		if err != nil {
			return nil, err
		}
		keys, err := s.writeBlobs(ctx, code, names, req.Files)
		if err != nil {
			s.discard(ctx, keys, "upload failed")
			return nil, upstreamError("store file", err)
		}

		link := &model.ShareLink{
			ShortCode:            code,
			PasswordHash:         passwordHash,
			BlobKeys:             keys,
			OriginalFilenames:    names,
			FileSizes:            sizes,
			TotalSizeBytes:       total,
			CreatedAtEpochMillis: created,
			ExpiresAtEpochMillis: model.ExpiresAt(created, hours),
		}
		link.SetOwner(req.Owner)

		err = s.registry.Create(ctx, link)
		if errors.Is(err, repo.ErrLinkExists) {
			utils.Log.Info("short code taken at create, retrying", zap.String("code", code), zap.Int("attempt", attempt))
			s.discard(ctx, keys, "short code conflict")
			continue
		}
		if err != nil {
			s.discard(ctx, keys, "create failed")
			return nil, err
		}

		utils.Log.Info("share link created",
			zap.String("code", code),
			zap.Int("files", len(keys)),
			zap.Int64("bytes", total),
			zap.Stringer("owner", req.Owner),
		)
		return &dto.UploadResponse{
			ShortLink: s.cfg.ShareURL(code),
			ShortCode: code,
			ExpiresAt: link.ExpiresAtEpochMillis,
		}, nil
	}
	return nil, fmt.Errorf("%w: short code conflict after %d attempts", ErrUpstream, maxCreateAttempts)
}

func blobKey(code string, index int, name string) string {
	return fmt.Sprintf("uploads/%s/%d/%s", code, index, name)
}

// writeBlobs returns the keys written so far even on failure.
func (s *ShareService) writeBlobs(ctx context.Context, code string, names []string, files []UploadFile) ([]string, error) {
	keys := make([]string, 0, len(files))
	for i, f := range files {
		key := blobKey(code, i, names[i])
		contentType := f.ContentType
		if contentType == "" {
			contentType = ContentTypeFor(names[i])
		}
		rc, err := f.Open()
		if err != nil {
			return keys, err
		}
		err = s.blobs.PutObject(ctx, key, rc, f.Size, storage.PutOptions{ContentType: contentType})
		_ = rc.Close()
		if err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *ShareService) discard(ctx context.Context, keys []string, reason string) {
	if len(keys) == 0 {
		return
	}
	if err := s.cleaner.Cleanup(context.WithoutCancel(ctx), keys, reason); err != nil {
		utils.Log.Warn("orphan blob cleanup failed", zap.Strings("keys", keys), zap.String("reason", reason), zap.Error(err))
	}
}

// Authorize loads a link and applies the access rules for a download.
func (s *ShareService) Authorize(ctx context.Context, code, password string) (*model.ShareLink, error) {
	link, err := s.registry.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.gate.CheckAccess(link, password); err != nil {
		return nil, err
	}
	return link, nil
}

// Info returns the public metadata of a link the caller may access.
func (s *ShareService) Info(ctx context.Context, code, password string) (*dto.LinkInfo, error) {
	link, err := s.Authorize(ctx, code, password)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return &dto.LinkInfo{
		FileNames:         link.OriginalFilenames,
		FileSizes:         link.FileSizes,
		TotalSize:         link.TotalSizeBytes,
		CreatedAt:         link.CreatedAtEpochMillis,
		ExpiresAt:         link.ExpiresAtEpochMillis,
		ExpiresInHours:    link.HoursRemaining(now),
		DownloadCount:     link.DownloadCount,
		Expired:           link.ExpiredAt(now),
		PasswordProtected: link.PasswordProtected(),
	}, nil
}

// ListMine lists every link owned by username, expired ones included.
func (s *ShareService) ListMine(ctx context.Context, username string) ([]dto.MyUpload, error) {
	if username == "" {
		return nil, ErrUnauthorized
	}
	links, err := s.registry.ListByOwner(ctx, username)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]dto.MyUpload, 0, len(links))
	for i := range links {
		link := &links[i]
		out = append(out, dto.MyUpload{
			ShortCode:         link.ShortCode,
			FileNames:         link.OriginalFilenames,
			FileSizes:         link.FileSizes,
			TotalSize:         link.TotalSizeBytes,
			CreatedAt:         link.CreatedAtEpochMillis,
			ExpiresAt:         link.ExpiresAtEpochMillis,
			DownloadCount:     link.DownloadCount,
			Expired:           link.ExpiredAt(now),
			PasswordProtected: link.PasswordProtected(),
		})
	}
	return out, nil
}

// Delete removes the blobs and then the record of a link owned by caller. Expired links
// can still be deleted by their owner.
func (s *ShareService) Delete(ctx context.Context, code, caller string) error {
	if caller == "" {
		return ErrUnauthorized
	}
	link, err := s.registry.Get(ctx, code)
	if err != nil {
		return err
	}
	if err := s.gate.CheckOwner(link, caller); err != nil {
		return err
	}
	for _, key := range link.BlobKeys {
		if err := s.blobs.RemoveObject(ctx, key); err != nil {
			return upstreamError("delete file", err)
		}
	}
	if err := s.registry.Delete(ctx, code); err != nil {
		return err
	}
	utils.Log.Info("share link deleted", zap.String("code", code), zap.String("owner", caller))
	return nil
}
