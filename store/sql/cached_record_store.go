package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-hawkauth/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const recordCacheKeyPrefix = "go-hawkauth::record::v1"

type cachedRecord struct {
	Value string
	Found bool
}

// CachedRecordStore fronts a RecordStore with a read-through cache. Writes go
// to the base store first and then evict the cached entry.
type CachedRecordStore struct {
	base      core.RecordStore
	cache     repositorycache.CacheService
	namespace string
}

func NewCachedRecordStore(base core.RecordStore, cacheService repositorycache.CacheService) (*CachedRecordStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base record store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: record cache service is required")
	}
	namespace := DefaultNamespace
	if named, ok := base.(interface{ Namespace() string }); ok && strings.TrimSpace(named.Namespace()) != "" {
		namespace = named.Namespace()
	}
	return &CachedRecordStore{base: base, cache: cacheService, namespace: namespace}, nil
}

// RecordCacheKey returns go-hawkauth::record::v1::<namespace>::<record_key>
// with each segment URL-path escaped.
func RecordCacheKey(namespace string, key string) (string, error) {
	namespace = strings.TrimSpace(namespace)
	key = strings.TrimSpace(key)
	if namespace == "" || key == "" {
		return "", fmt.Errorf("sqlstore: namespace and record key are required")
	}
	return strings.Join([]string{recordCacheKeyPrefix, url.PathEscape(namespace), url.PathEscape(key)}, "::"), nil
}

func (s *CachedRecordStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return "", false, fmt.Errorf("sqlstore: cached record store is not configured")
	}
	cacheKey, err := RecordCacheKey(s.namespace, key)
	if err != nil {
		return "", false, err
	}
	record, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (cachedRecord, error) {
		value, found, fetchErr := s.base.Get(ctx, key)
		if fetchErr != nil {
			return cachedRecord{}, fetchErr
		}
		return cachedRecord{Value: value, Found: found}, nil
	})
	if err != nil {
		return "", false, err
	}
	return record.Value, record.Found, nil
}

func (s *CachedRecordStore) Put(ctx context.Context, key string, value string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached record store is not configured")
	}
	if err := s.base.Put(ctx, key, value); err != nil {
		return err
	}
	return s.evict(ctx, key)
}

func (s *CachedRecordStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached record store is not configured")
	}
	if err := s.base.Delete(ctx, key); err != nil {
		return err
	}
	return s.evict(ctx, key)
}

func (s *CachedRecordStore) evict(ctx context.Context, key string) error {
	cacheKey, err := RecordCacheKey(s.namespace, key)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}
