package handler

import (
	"net/http"
	"regexp"
	"strings"

	"timemachine/internal/engine"
)

// repoURLPattern admits http(s) URLs with a host and a non-empty path, the
// shape every clonable repository URL has. Anything stricter belongs to the
// engine, which is the one actually cloning.
var repoURLPattern = regexp.MustCompile(`^https?://[^\s/]+/\S+$`)

func (a *API) HandleAnalyzeRepoURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var in struct {
		RepoURL string `json:"repoUrl"`
	}
	if err := decodeJSONBody(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	repoURL := strings.TrimSpace(in.RepoURL)
	if repoURL == "" {
		respondError(w, http.StatusBadRequest, "repoUrl is required")
		return
	}
	if !repoURLPattern.MatchString(repoURL) {
		respondError(w, http.StatusBadRequest, "repoUrl must be an http(s) repository URL")
		return
	}

	out := a.analysis.AnalyzeURL(r.Context(), repoURL)
	a.respondOutcome(w, out, engine.OpAnalyze, wrapAnalysis)
}

func wrapAnalysis(payload map[string]any) map[string]any {
	return map[string]any{"success": true, "analysis": payload}
}
