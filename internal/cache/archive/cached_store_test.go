package archive

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	archiverepo "timemachine/internal/gateway/repository/archive"
)

type fakeOriginStore struct {
	mu sync.Mutex

	data map[string][]byte
	urls map[string]string

	getCalls  int
	putCalls  int
	listCalls int
	urlCalls  int

	failPut bool
}

func newFakeOriginStore() *fakeOriginStore {
	return &fakeOriginStore{
		data: map[string][]byte{},
		urls: map[string]string{},
	}
}

func (s *fakeOriginStore) Put(_ context.Context, repoID string, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putCalls++
	if s.failPut {
		return fmt.Errorf("put failed")
	}
	s.data[repoID] = append([]byte(nil), doc...)
	return nil
}

func (s *fakeOriginStore) Get(_ context.Context, repoID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	raw, ok := s.data[repoID]
	if !ok {
		return nil, archiverepo.ErrNotFound
	}
	return append([]byte(nil), raw...), nil
}

func (s *fakeOriginStore) GetURL(_ context.Context, repoID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urlCalls++
	return s.urls[repoID], nil
}

func (s *fakeOriginStore) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	out := make([]string, 0, len(s.data))
	for id := range s.data {
		out = append(out, id)
	}
	return out, nil
}

func testConfig() CacheConfig {
	return CacheConfig{
		DocTTL:        time.Minute,
		DocMaxEntries: 16,
		ListTTL:       time.Minute,
		URLTTL:        time.Minute,
		URLMaxEntries: 16,
	}
}

func TestGetReadsThroughOnce(t *testing.T) {
	origin := newFakeOriginStore()
	origin.data["r1"] = []byte(`{"repo_id":"r1"}`)
	cached := NewCachedStore(origin, testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		raw, err := cached.Get(ctx, "r1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if string(raw) != `{"repo_id":"r1"}` {
			t.Fatalf("Get() = %s", raw)
		}
	}
	if origin.getCalls != 1 {
		t.Fatalf("origin get calls = %d, want 1", origin.getCalls)
	}

	m := cached.Metrics()
	if m.DocHits != 2 || m.DocMisses != 1 {
		t.Fatalf("metrics = %+v, want 2 hits / 1 miss", m)
	}
}

func TestPutSeedsDocCache(t *testing.T) {
	origin := newFakeOriginStore()
	cached := NewCachedStore(origin, testConfig())
	ctx := context.Background()

	if err := cached.Put(ctx, "r1", []byte(`{"repo_id":"r1"}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := cached.Get(ctx, "r1"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if origin.getCalls != 0 {
		t.Fatalf("origin get calls = %d, want 0 after Put seeded the cache", origin.getCalls)
	}
}

func TestPutFailurePropagates(t *testing.T) {
	origin := newFakeOriginStore()
	origin.failPut = true
	cached := NewCachedStore(origin, testConfig())

	if err := cached.Put(context.Background(), "r1", []byte("{}")); err == nil {
		t.Fatalf("Put() error = nil, want origin failure")
	}
	if m := cached.Metrics(); m.OriginErrors != 1 {
		t.Fatalf("metrics origin errors = %d, want 1", m.OriginErrors)
	}
}

func TestPutInvalidatesList(t *testing.T) {
	origin := newFakeOriginStore()
	origin.data["r1"] = []byte("{}")
	cached := NewCachedStore(origin, testConfig())
	ctx := context.Background()

	ids, err := cached.List(ctx)
	if err != nil || len(ids) != 1 {
		t.Fatalf("List() = %v, %v", ids, err)
	}
	if _, err := cached.List(ctx); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if origin.listCalls != 1 {
		t.Fatalf("origin list calls = %d, want 1 before invalidation", origin.listCalls)
	}

	if err := cached.Put(ctx, "r2", []byte("{}")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	ids, err = cached.List(ctx)
	if err != nil || len(ids) != 2 {
		t.Fatalf("List() after Put = %v, %v", ids, err)
	}
	if origin.listCalls != 2 {
		t.Fatalf("origin list calls = %d, want 2 after invalidation", origin.listCalls)
	}
}

func TestGetURLCachesOnlyNonEmpty(t *testing.T) {
	origin := newFakeOriginStore()
	cached := NewCachedStore(origin, testConfig())
	ctx := context.Background()

	// Empty URLs (fs/memory backends) are not cached.
	for i := 0; i < 2; i++ {
		if u, err := cached.GetURL(ctx, "r1"); err != nil || u != "" {
			t.Fatalf("GetURL() = %q, %v", u, err)
		}
	}
	if origin.urlCalls != 2 {
		t.Fatalf("origin url calls = %d, want 2 for empty urls", origin.urlCalls)
	}

	origin.mu.Lock()
	origin.urls["r2"] = "https://s3.example/presigned"
	origin.mu.Unlock()
	for i := 0; i < 3; i++ {
		if u, err := cached.GetURL(ctx, "r2"); err != nil || u == "" {
			t.Fatalf("GetURL() = %q, %v", u, err)
		}
	}
	if origin.urlCalls != 3 {
		t.Fatalf("origin url calls = %d, want 3 (one for r2)", origin.urlCalls)
	}
}

func TestGetMissReturnsOriginError(t *testing.T) {
	origin := newFakeOriginStore()
	cached := NewCachedStore(origin, testConfig())

	_, err := cached.Get(context.Background(), "missing")
	if err != archiverepo.ErrNotFound {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}
