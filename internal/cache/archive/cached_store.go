// Package archive wraps the archive store with a read-through TTL cache so
// repeated document fetches do not hit the origin backend on every request.
package archive

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	archiverepo "timemachine/internal/gateway/repository/archive"
)

type Store = archiverepo.Store

type CacheConfig struct {
	DocTTL        time.Duration
	DocMaxEntries int

	ListTTL time.Duration

	URLTTL        time.Duration
	URLMaxEntries int
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		DocTTL:        5 * time.Minute,
		DocMaxEntries: 256,
		ListTTL:       30 * time.Second,
		URLTTL:        5 * time.Minute,
		URLMaxEntries: 1024,
	}
}

type MetricsSnapshot struct {
	DocHits      uint64
	DocMisses    uint64
	ListHits     uint64
	ListMisses   uint64
	URLHits      uint64
	URLMisses    uint64
	OriginReads  uint64
	OriginWrites uint64
	OriginErrors uint64
}

type metrics struct {
	docHits      atomic.Uint64
	docMisses    atomic.Uint64
	listHits     atomic.Uint64
	listMisses   atomic.Uint64
	urlHits      atomic.Uint64
	urlMisses    atomic.Uint64
	originReads  atomic.Uint64
	originWrites atomic.Uint64
	originErrors atomic.Uint64
}

func (m *metrics) snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		DocHits:      m.docHits.Load(),
		DocMisses:    m.docMisses.Load(),
		ListHits:     m.listHits.Load(),
		ListMisses:   m.listMisses.Load(),
		URLHits:      m.urlHits.Load(),
		URLMisses:    m.urlMisses.Load(),
		OriginReads:  m.originReads.Load(),
		OriginWrites: m.originWrites.Load(),
		OriginErrors: m.originErrors.Load(),
	}
}

// listKey is the single cache slot for the id listing.
const listKey = "all"

type CachedStore struct {
	origin Store

	docCache  *expirable.LRU[string, []byte]
	listCache *expirable.LRU[string, []string]
	urlCache  *expirable.LRU[string, string]
	metrics   metrics
}

func NewCachedStore(origin Store, cfg CacheConfig) *CachedStore {
	def := DefaultCacheConfig()
	if cfg.DocTTL <= 0 {
		cfg.DocTTL = def.DocTTL
	}
	if cfg.DocMaxEntries <= 0 {
		cfg.DocMaxEntries = def.DocMaxEntries
	}
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = def.ListTTL
	}
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = def.URLTTL
	}
	if cfg.URLMaxEntries <= 0 {
		cfg.URLMaxEntries = def.URLMaxEntries
	}

	return &CachedStore{
		origin:    origin,
		docCache:  expirable.NewLRU[string, []byte](cfg.DocMaxEntries, nil, cfg.DocTTL),
		listCache: expirable.NewLRU[string, []string](1, nil, cfg.ListTTL),
		urlCache:  expirable.NewLRU[string, string](cfg.URLMaxEntries, nil, cfg.URLTTL),
	}
}

func (s *CachedStore) Put(ctx context.Context, repoID string, doc []byte) error {
	s.metrics.originWrites.Add(1)
	if err := s.origin.Put(ctx, repoID, doc); err != nil {
		s.metrics.originErrors.Add(1)
		return err
	}

	id := strings.TrimSpace(repoID)
	s.docCache.Add(id, append([]byte(nil), doc...))
	s.listCache.Purge()
	s.urlCache.Remove(id)
	return nil
}

func (s *CachedStore) Get(ctx context.Context, repoID string) ([]byte, error) {
	id := strings.TrimSpace(repoID)
	if raw, ok := s.docCache.Get(id); ok {
		s.metrics.docHits.Add(1)
		return append([]byte(nil), raw...), nil
	}
	s.metrics.docMisses.Add(1)
	s.metrics.originReads.Add(1)

	raw, err := s.origin.Get(ctx, id)
	if err != nil {
		s.metrics.originErrors.Add(1)
		return nil, err
	}
	copied := append([]byte(nil), raw...)
	s.docCache.Add(id, copied)
	return append([]byte(nil), copied...), nil
}

func (s *CachedStore) GetURL(ctx context.Context, repoID string) (string, error) {
	id := strings.TrimSpace(repoID)
	if cached, ok := s.urlCache.Get(id); ok {
		s.metrics.urlHits.Add(1)
		return cached, nil
	}
	s.metrics.urlMisses.Add(1)
	s.metrics.originReads.Add(1)

	url, err := s.origin.GetURL(ctx, id)
	if err != nil {
		s.metrics.originErrors.Add(1)
		return "", err
	}
	if strings.TrimSpace(url) != "" {
		s.urlCache.Add(id, url)
	}
	return url, nil
}

func (s *CachedStore) List(ctx context.Context) ([]string, error) {
	if ids, ok := s.listCache.Get(listKey); ok {
		s.metrics.listHits.Add(1)
		return append([]string(nil), ids...), nil
	}
	s.metrics.listMisses.Add(1)
	s.metrics.originReads.Add(1)

	ids, err := s.origin.List(ctx)
	if err != nil {
		s.metrics.originErrors.Add(1)
		return nil, err
	}
	copied := append([]string(nil), ids...)
	s.listCache.Add(listKey, copied)
	return append([]string(nil), copied...), nil
}

func (s *CachedStore) Metrics() MetricsSnapshot {
	if s == nil {
		return MetricsSnapshot{}
	}
	return s.metrics.snapshot()
}
