package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const docSuffix = "_analysis.json"

// repoIDPattern matches the ids the engine mints: hex digests for URL
// analyses and upload_<timestamp> for uploads. Anything else never reaches
// the filesystem.
var repoIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// FSStore keeps one <repo_id>_analysis.json per document under dir, the
// same layout the engine uses for its own persisted analyses.
type FSStore struct {
	dir string
}

func NewFSStore(dir string) (*FSStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("archive: directory is not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("archive: mkdir %s: %w", dir, err)
	}
	return &FSStore{dir: dir}, nil
}

func (s *FSStore) docPath(repoID string) (string, error) {
	repoID = strings.TrimSpace(repoID)
	if repoID == "" {
		return "", fmt.Errorf("repo_id is required")
	}
	if !repoIDPattern.MatchString(repoID) {
		return "", fmt.Errorf("archive: invalid repo_id %q", repoID)
	}
	return filepath.Join(s.dir, repoID+docSuffix), nil
}

func (s *FSStore) Put(_ context.Context, repoID string, doc []byte) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	path, err := s.docPath(repoID)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, doc, 0o644); err != nil {
		return fmt.Errorf("archive: write %s: %w", repoID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("archive: write %s: %w", repoID, err)
	}
	return nil
}

func (s *FSStore) Get(_ context.Context, repoID string) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	path, err := s.docPath(repoID)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", repoID, err)
	}
	return raw, nil
}

func (s *FSStore) List(_ context.Context) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("archive: list: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, docSuffix) {
			continue
		}
		id := strings.TrimSuffix(name, docSuffix)
		if id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *FSStore) GetURL(_ context.Context, repoID string) (string, error) {
	// Local files are served through the API, not by URL.
	return "", nil
}
