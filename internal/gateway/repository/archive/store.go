// Package archive persists the JSON analysis documents the engine produces,
// keyed by repo id. The filesystem backend shares the engine's own on-disk
// convention so documents written by either side are visible to both.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Store defines operations for persisting analysis documents.
type Store interface {
	Put(ctx context.Context, repoID string, doc []byte) error
	Get(ctx context.Context, repoID string) ([]byte, error)
	GetURL(ctx context.Context, repoID string) (string, error)
	List(ctx context.Context) ([]string, error)
}

var ErrNotFound = errors.New("analysis document not found")

type PostgresStore struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ensureSchema() error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS analysis_documents (
    repo_id TEXT PRIMARY KEY,
    content BYTEA NOT NULL DEFAULT ''::bytea,
    size BIGINT NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
`)
	})
	return s.schemaErr
}

func (s *PostgresStore) Put(ctx context.Context, repoID string, doc []byte) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	repoID = strings.TrimSpace(repoID)
	if repoID == "" {
		return fmt.Errorf("repo_id is required")
	}
	if err := s.ensureSchema(); err != nil {
		return err
	}
	if doc == nil {
		doc = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO analysis_documents (repo_id, content, size, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (repo_id)
DO UPDATE SET content=EXCLUDED.content, size=EXCLUDED.size, updated_at=EXCLUDED.updated_at
`, repoID, doc, int64(len(doc)), time.Now())
	return err
}

func (s *PostgresStore) Get(ctx context.Context, repoID string) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	repoID = strings.TrimSpace(repoID)
	if repoID == "" {
		return nil, fmt.Errorf("repo_id is required")
	}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	var content []byte
	err := s.db.QueryRowContext(ctx, `SELECT content FROM analysis_documents WHERE repo_id=$1`, repoID).Scan(&content)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return content, err
}

func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT repo_id FROM analysis_documents ORDER BY repo_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *PostgresStore) GetURL(ctx context.Context, repoID string) (string, error) {
	// Content lives in a BYTEA column, there is no directly servable URL.
	return "", nil
}
