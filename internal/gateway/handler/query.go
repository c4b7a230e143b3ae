package handler

import (
	"net/http"
	"strings"

	"timemachine/internal/engine"
)

var searchTypes = map[string]bool{
	"auto":     true,
	"semantic": true,
	"keyword":  true,
	"author":   true,
	"file":     true,
	"summary":  true,
}

func (a *API) HandleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var in struct {
		Query      string `json:"query"`
		RepoID     string `json:"repoId"`
		SearchType string `json:"searchType"`
	}
	if err := decodeJSONBody(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	query := strings.TrimSpace(in.Query)
	if query == "" {
		respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	searchType := strings.TrimSpace(in.SearchType)
	if searchType != "" && !searchTypes[searchType] {
		respondError(w, http.StatusBadRequest, "searchType must be one of auto, semantic, keyword, author, file, summary")
		return
	}

	out, err := a.analysis.Query(r.Context(), query, in.RepoID, searchType)
	if err != nil {
		respondResolveError(w, err)
		return
	}
	a.respondOutcome(w, out, engine.OpQuery, func(payload map[string]any) map[string]any {
		resp := make(map[string]any, len(payload)+1)
		for k, v := range payload {
			resp[k] = v
		}
		resp["success"] = true
		return resp
	})
}
