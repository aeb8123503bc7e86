package service

import (
	"context"
	"errors"
	"time"

	"sharelink/internal/repo"
	"sharelink/model"
	"sharelink/utils"

	"go.uber.org/zap"
)

// LinkRegistry is the single source of truth for ShareLink records. Reads go through an
// optional read-through cache that is dropped on every mutation.
type LinkRegistry struct {
	store    repo.LinkStore
	cache    utils.Cache
	cacheTTL time.Duration
}

// NewLinkRegistry wraps store. cache may be nil.
func NewLinkRegistry(store repo.LinkStore, cache utils.Cache, cacheTTL time.Duration) *LinkRegistry {
	return &LinkRegistry{store: store, cache: cache, cacheTTL: cacheTTL}
}

func linkCacheKey(code string) string {
	return utils.BuildCacheKey(utils.CacheKeyShareLink, code)
}

func linkGenKey(code string) string {
	return utils.BuildCacheKey(utils.CacheKeyShareLinkGen, code)
}

// Create persists a new record. It returns repo.ErrLinkExists when the code is taken.
func (r *LinkRegistry) Create(ctx context.Context, link *model.ShareLink) error {
	if err := link.Validate(); err != nil {
		return validationError("%v", err)
	}
	err := r.store.Create(ctx, link)
	if errors.Is(err, repo.ErrLinkExists) {
		return err
	}
	if err != nil {
		return upstreamError("create link", err)
	}
	return nil
}

// Get returns the record for code or ErrNotFound. Malformed codes never reach the store.
func (r *LinkRegistry) Get(ctx context.Context, code string) (*model.ShareLink, error) {
	if !model.ValidShortCode(code) {
		return nil, ErrNotFound
	}
	gen, cacheable := r.generation(ctx, code)
	if cacheable {
		var entry cachedLink
		err := r.cache.Get(ctx, linkCacheKey(code), &entry)
		switch {
		case err == nil && entry.Gen == gen:
			return &entry.Link, nil
		case err != nil && !errors.Is(err, utils.ErrCacheMiss):
			utils.Log.Warn("link cache read failed", zap.String("code", code), zap.Error(err))
		}
	}

	link, err := r.store.Get(ctx, code)
	if errors.Is(err, repo.ErrLinkNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, upstreamError("get link", err)
	}

	// gen was read before the store; a mutation in between rotates it and orphans this entry.
	if cacheable {
		entry := cachedLink{Gen: gen, Link: *link}
		if err := r.cache.Set(ctx, linkCacheKey(code), entry, r.cacheTTL); err != nil {
			utils.Log.Warn("link cache write failed", zap.String("code", code), zap.Error(err))
		}
	}
	return link, nil
}

// cachedLink is only served while Gen matches the code's current generation.
type cachedLink struct {
	Gen  string          `json:"gen"`
	Link model.ShareLink `json:"link"`
}

// generation returns the current cache generation of code. An unreadable generation
// disables the cache for this call.
func (r *LinkRegistry) generation(ctx context.Context, code string) (string, bool) {
	if r.cache == nil || r.cacheTTL <= 0 {
		return "", false
	}
	var gen string
	err := r.cache.Get(ctx, linkGenKey(code), &gen)
	if err == nil || errors.Is(err, utils.ErrCacheMiss) {
		return gen, true
	}
	utils.Log.Warn("link cache generation read failed", zap.String("code", code), zap.Error(err))
	return "", false
}

// ListByOwner returns every record owned by username, expired ones included.
func (r *LinkRegistry) ListByOwner(ctx context.Context, username string) ([]model.ShareLink, error) {
	links, err := r.store.ListByOwner(ctx, username)
	if err != nil {
		return nil, upstreamError("list links", err)
	}
	return links, nil
}

// Delete removes the record for code.
func (r *LinkRegistry) Delete(ctx context.Context, code string) error {
	err := r.store.Delete(ctx, code)
	r.invalidate(ctx, code)
	if errors.Is(err, repo.ErrLinkNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return upstreamError("delete link", err)
	}
	return nil
}

// IncrementDownloadCount adds one to the counter atomically in the store.
func (r *LinkRegistry) IncrementDownloadCount(ctx context.Context, code string) error {
	err := r.store.IncrementDownloadCount(ctx, code)
	r.invalidate(ctx, code)
	if errors.Is(err, repo.ErrLinkNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return upstreamError("increment download count", err)
	}
	return nil
}

// invalidate rotates the generation before dropping the entry, so a read that loaded the
// store earlier cannot republish what it saw.
func (r *LinkRegistry) invalidate(ctx context.Context, code string) {
	if r.cache == nil {
		return
	}
	if r.cacheTTL > 0 {
		if err := r.cache.Set(ctx, linkGenKey(code), utils.GetToken(), 2*r.cacheTTL); err != nil {
			utils.Log.Warn("link cache generation bump failed", zap.String("code", code), zap.Error(err))
		}
	}
	if err := r.cache.Delete(ctx, linkCacheKey(code)); err != nil {
		utils.Log.Warn("link cache invalidate failed", zap.String("code", code), zap.Error(err))
	}
}
