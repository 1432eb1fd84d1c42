package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-socialink/core"
)

const connectionCacheKeyPrefix = "go-socialink::connection::v1"

// CachedConnectionStore serves Get from a read-through cache and drops the
// cached entry on every write for the same identity. A failed drop is logged;
// the committed write is still returned to the caller.
type CachedConnectionStore struct {
	base   core.ConnectionStore
	cache  repositorycache.CacheService
	logger glog.Logger
}

type CachedStoreOption func(*CachedConnectionStore)

func WithCachedStoreLogger(logger glog.Logger) CachedStoreOption {
	return func(s *CachedConnectionStore) {
		s.logger = glog.Ensure(logger)
	}
}

func NewCachedConnectionStore(
	base core.ConnectionStore,
	cacheService repositorycache.CacheService,
	opts ...CachedStoreOption,
) (*CachedConnectionStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base connection store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: connection cache service is required")
	}
	store := &CachedConnectionStore{base: base, cache: cacheService, logger: glog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// ConnectionCacheKey returns go-socialink::connection::v1::<identity> with the
// identity URL-path escaped.
func ConnectionCacheKey(identity string) (string, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return "", fmt.Errorf("sqlstore: identity is required")
	}
	return connectionCacheKeyPrefix + "::" + url.PathEscape(identity), nil
}

func (s *CachedConnectionStore) Get(ctx context.Context, identity string) (core.ConnectionRecord, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.ConnectionRecord{}, fmt.Errorf("sqlstore: cached connection store is not configured")
	}
	cacheKey, err := ConnectionCacheKey(identity)
	if err != nil {
		return core.ConnectionRecord{}, err
	}
	record, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.ConnectionRecord, error) {
		return s.base.Get(ctx, strings.TrimSpace(identity))
	})
	if err != nil {
		return core.ConnectionRecord{}, err
	}
	return cloneConnection(record), nil
}

func (s *CachedConnectionStore) SaveProfileKey(ctx context.Context, in core.SaveProfileKeyInput) (core.ConnectionRecord, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.ConnectionRecord{}, fmt.Errorf("sqlstore: cached connection store is not configured")
	}
	record, err := s.base.SaveProfileKey(ctx, in)
	if err != nil {
		return core.ConnectionRecord{}, err
	}
	s.invalidate(ctx, in.Identity)
	return record, nil
}

func (s *CachedConnectionStore) MarkConnected(ctx context.Context, in core.MarkConnectedInput) (core.ConnectionRecord, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.ConnectionRecord{}, fmt.Errorf("sqlstore: cached connection store is not configured")
	}
	record, err := s.base.MarkConnected(ctx, in)
	if err != nil {
		return core.ConnectionRecord{}, err
	}
	s.invalidate(ctx, in.Identity)
	return record, nil
}

func (s *CachedConnectionStore) ListPending(ctx context.Context, limit int) ([]core.ConnectionRecord, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached connection store is not configured")
	}
	return s.base.ListPending(ctx, limit)
}

func (s *CachedConnectionStore) invalidate(ctx context.Context, identity string) {
	cacheKey, err := ConnectionCacheKey(identity)
	if err == nil {
		err = s.cache.Delete(ctx, cacheKey)
	}
	if err != nil {
		s.logger.WithContext(ctx).Warn("connection cache invalidation failed",
			"identity", strings.TrimSpace(identity),
			"error", err,
		)
	}
}

func cloneConnection(record core.ConnectionRecord) core.ConnectionRecord {
	cloned := record
	cloned.ConnectedAt = cloneTimePointer(record.ConnectedAt)
	cloned.LastCheckedAt = cloneTimePointer(record.LastCheckedAt)
	return cloned
}
