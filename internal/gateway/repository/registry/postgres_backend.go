package registry

import "fmt"

func (s *Store) ensureSchema() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS repo_analyses (
  repo_id TEXT PRIMARY KEY,
  source TEXT NOT NULL DEFAULT 'url',
  repo_url TEXT NOT NULL DEFAULT '',
  original_name TEXT NOT NULL DEFAULT '',
  analyzed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
  total_commits INTEGER NOT NULL DEFAULT 0,
  contributors_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_repo_analyses_analyzed_at ON repo_analyses (analyzed_at DESC);
`)
	})
	return s.schemaErr
}

func (s *Store) putDB(r Record) error {
	if err := s.ensureSchema(); err != nil {
		return fmt.Errorf("registry: ensure schema: %w", err)
	}
	_, err := s.db.Exec(`
INSERT INTO repo_analyses (
  repo_id, source, repo_url, original_name, analyzed_at, total_commits, contributors_count
)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (repo_id)
DO UPDATE SET source=EXCLUDED.source,
  repo_url=EXCLUDED.repo_url,
  original_name=EXCLUDED.original_name,
  analyzed_at=EXCLUDED.analyzed_at,
  total_commits=EXCLUDED.total_commits,
  contributors_count=EXCLUDED.contributors_count`,
		r.RepoID, r.Source, r.RepoURL, r.OriginalName, r.AnalyzedAt, r.TotalCommits, r.Contributors)
	if err != nil {
		return fmt.Errorf("registry: put %s: %w", r.RepoID, err)
	}
	return nil
}

func (s *Store) getDB(repoID string) (Record, bool) {
	if err := s.ensureSchema(); err != nil {
		return Record{}, false
	}
	row := s.db.QueryRow(`
SELECT repo_id, source, repo_url, original_name, analyzed_at, total_commits, contributors_count
FROM repo_analyses WHERE repo_id = $1`, repoID)
	return scanRecord(row)
}

func (s *Store) listDB() ([]Record, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("registry: ensure schema: %w", err)
	}
	rows, err := s.db.Query(`
SELECT repo_id, source, repo_url, original_name, analyzed_at, total_commits, contributors_count
FROM repo_analyses
ORDER BY analyzed_at DESC, repo_id`)
	if err != nil {
		return nil, fmt.Errorf("registry: list: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, 16)
	for rows.Next() {
		if r, ok := scanRecord(rows); ok {
			out = append(out, r)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("registry: list: %w", err)
	}
	return out, nil
}
