package handler

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"timemachine/internal/gateway/repository/archive"
)

func (a *API) HandleListRepos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rows, err := a.analysis.Repos()
	if err != nil {
		log.Printf("handler: list repos: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list repositories")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "repos": rows})
}

// HandleRepoAnalysis serves the archived analysis document for one
// repository: GET /api/repos/{repoId}/analysis.
func (a *API) HandleRepoAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/repos/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "analysis" {
		respondError(w, http.StatusNotFound, "not found")
		return
	}

	doc, err := a.analysis.AnalysisDocument(r.Context(), parts[0])
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			respondError(w, http.StatusNotFound, "analysis not found")
			return
		}
		log.Printf("handler: load analysis %s: %v", parts[0], err)
		respondError(w, http.StatusInternalServerError, "failed to load analysis")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc); err != nil {
		log.Printf("handler: write analysis %s: %v", parts[0], err)
	}
}
