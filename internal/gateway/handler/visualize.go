package handler

import (
	"net/http"
	"strings"

	"timemachine/internal/engine"
)

func (a *API) HandleVisualize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var in struct {
		Type   string `json:"type"`
		RepoID string `json:"repoId"`
	}
	if err := decodeJSONBody(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	kind := strings.TrimSpace(in.Type)
	if kind == "" {
		respondError(w, http.StatusBadRequest, "type is required")
		return
	}

	out, err := a.analysis.Visualize(r.Context(), kind, in.RepoID)
	if err != nil {
		respondResolveError(w, err)
		return
	}
	a.respondOutcome(w, out, engine.OpVisualize, func(payload map[string]any) map[string]any {
		return map[string]any{"success": true, "type": kind, "visualization": payload}
	})
}
