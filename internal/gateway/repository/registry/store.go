package registry

import (
	"database/sql"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Store keeps analyzed-repository records. With a database handle it runs
// against PostgreSQL, otherwise against a JSON file under path. Methods are
// safe for concurrent use.
type Store struct {
	path string
	db   *sql.DB

	loadOnce sync.Once
	mu       sync.RWMutex
	byID     map[string]Record

	schemaOnce sync.Once
	schemaErr  error

	recordCache *lru.Cache[string, Record]
}

func New(path string) *Store {
	return &Store{
		path: path,
		byID: make(map[string]Record),
	}
}

// NewPostgres runs the store against an already opened database handle,
// shared with the archive store.
func NewPostgres(db *sql.DB) (*Store, error) {
	cache, err := lru.New[string, Record](1024)
	if err != nil {
		return nil, err
	}
	return &Store{
		db:          db,
		recordCache: cache,
	}, nil
}

func (s *Store) Put(r Record) error {
	if s == nil {
		return nil
	}
	r = normalizeRecord(r)
	if r.RepoID == "" {
		return nil
	}
	if s.db != nil {
		if err := s.putDB(r); err != nil {
			return err
		}
		if s.recordCache != nil {
			s.recordCache.Remove(r.RepoID)
		}
		return nil
	}
	s.putFile(r)
	return nil
}

func (s *Store) Get(repoID string) (Record, bool) {
	if s == nil {
		return Record{}, false
	}
	repoID = strings.TrimSpace(repoID)
	if repoID == "" {
		return Record{}, false
	}
	if s.db != nil {
		if s.recordCache != nil {
			if cached, ok := s.recordCache.Get(repoID); ok {
				return cached, true
			}
		}
		r, ok := s.getDB(repoID)
		if ok && s.recordCache != nil {
			s.recordCache.Add(repoID, r)
		}
		return r, ok
	}
	return s.getFile(repoID)
}

// List returns every record, most recently analyzed first.
func (s *Store) List() ([]Record, error) {
	if s == nil {
		return nil, nil
	}
	if s.db != nil {
		return s.listDB()
	}
	return s.listFile(), nil
}
