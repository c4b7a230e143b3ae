package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

func (s *Store) ensureLoadedFile() {
	s.loadOnce.Do(func() {
		b, err := os.ReadFile(s.path)
		if err != nil {
			return
		}
		var rows []Record
		if err := json.Unmarshal(b, &rows); err != nil {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, row := range rows {
			id := strings.TrimSpace(row.RepoID)
			if id == "" {
				continue
			}
			s.byID[id] = normalizeRecord(row)
		}
	})
}

func (s *Store) saveFile() {
	rows := s.listFile()
	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return
	}
	_ = os.MkdirAll(filepath.Dir(s.path), 0o755)
	_ = os.WriteFile(s.path, b, 0o644)
}

func (s *Store) putFile(r Record) {
	s.ensureLoadedFile()
	s.mu.Lock()
	s.byID[r.RepoID] = r
	s.mu.Unlock()
	s.saveFile()
}

func (s *Store) getFile(repoID string) (Record, bool) {
	s.ensureLoadedFile()
	s.mu.RLock()
	r, ok := s.byID[repoID]
	s.mu.RUnlock()
	if !ok {
		return Record{}, false
	}
	return r, true
}

func (s *Store) listFile() []Record {
	s.ensureLoadedFile()
	s.mu.RLock()
	out := make([]Record, 0, len(s.byID))
	for _, r := range s.byID {
		out = append(out, r)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].AnalyzedAt.Equal(out[j].AnalyzedAt) {
			return out[i].RepoID < out[j].RepoID
		}
		return out[i].AnalyzedAt.After(out[j].AnalyzedAt)
	})
	return out
}
