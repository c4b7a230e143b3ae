// Package registry records which repositories have been analyzed, so later
// query and visualization requests can resolve an omitted repo id against
// real state instead of a guessed default. Backed by a JSON file or by
// PostgreSQL when a DSN is configured.
package registry

import (
	"strings"
	"time"
)

const (
	SourceURL    = "url"
	SourceUpload = "upload"
)

// Record is one successfully analyzed repository.
type Record struct {
	RepoID       string    `json:"repo_id"`
	Source       string    `json:"source"`
	RepoURL      string    `json:"repo_url,omitempty"`
	OriginalName string    `json:"original_name,omitempty"`
	AnalyzedAt   time.Time `json:"analyzed_at"`
	TotalCommits int       `json:"total_commits"`
	Contributors int       `json:"contributors_count"`
}

func normalizeRecord(r Record) Record {
	r.RepoID = strings.TrimSpace(r.RepoID)
	r.RepoURL = strings.TrimSpace(r.RepoURL)
	r.OriginalName = strings.TrimSpace(r.OriginalName)
	r.Source = strings.ToLower(strings.TrimSpace(r.Source))
	if r.Source == "" {
		if r.RepoURL != "" {
			r.Source = SourceURL
		} else {
			r.Source = SourceUpload
		}
	}
	return r
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, bool) {
	var r Record
	err := row.Scan(
		&r.RepoID,
		&r.Source,
		&r.RepoURL,
		&r.OriginalName,
		&r.AnalyzedAt,
		&r.TotalCommits,
		&r.Contributors,
	)
	if err != nil {
		return Record{}, false
	}
	return normalizeRecord(r), true
}
