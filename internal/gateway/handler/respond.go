package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"timemachine/internal/engine"
	"timemachine/internal/gateway/service/analysis"
	"timemachine/internal/util/jsonutil"
)

// maxJSONBody bounds the JSON request bodies. Uploads go through multipart
// and have their own limit.
const maxJSONBody = 1 << 20

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := jsonutil.EncodeNoEscape(w, v); err != nil {
		log.Printf("handler: encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]any{"error": message})
}

func decodeJSONBody(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(v)
}

// respondOutcome sends the one response for a finished task. shape builds
// the endpoint's success body from the decoded payload.
func (a *API) respondOutcome(w http.ResponseWriter, out engine.Outcome, op string, shape func(payload map[string]any) map[string]any) {
	switch out.Kind {
	case engine.KindSuccess:
		respondJSON(w, http.StatusOK, shape(out.Payload))
	case engine.KindDomainError:
		resp := map[string]any{"success": false, "error": out.Message}
		if len(out.Suggestions) > 0 {
			resp["suggestions"] = out.Suggestions
		}
		respondJSON(w, http.StatusOK, resp)
	default:
		a.respondTaskFailure(w, out, op)
	}
}

// respondTaskFailure maps the non-domain failure kinds to 500 responses.
// Diagnostics are attached in development only.
func (a *API) respondTaskFailure(w http.ResponseWriter, out engine.Outcome, op string) {
	var message, details string
	switch out.Kind {
	case engine.KindProcessFailure:
		message = opFailureMessage(op)
		details = fmt.Sprintf("engine exited with code %d", out.ExitCode)
		if out.Excerpt != "" {
			details += "; stderr: " + out.Excerpt
		}
	case engine.KindDecodeFailure:
		message = "Invalid results from analysis engine"
		details = out.ParseErr
		if out.Excerpt != "" {
			details += "; output: " + out.Excerpt
		}
	case engine.KindStartFailure:
		message = "Failed to start analysis engine"
		details = out.Message
	case engine.KindTimedOut:
		message = opTimeoutMessage(op)
		details = out.Excerpt
	default:
		message = opFailureMessage(op)
	}
	if out.Truncated {
		details = strings.TrimSpace(details + " (output truncated)")
	}

	resp := map[string]any{"error": message}
	if a.dev && strings.TrimSpace(details) != "" {
		resp["details"] = details
	}
	respondJSON(w, http.StatusInternalServerError, resp)
}

// respondResolveError handles errors raised before any task was started:
// an ambiguous repo id is the caller's to fix, anything else is ours.
func respondResolveError(w http.ResponseWriter, err error) {
	var ambiguous *analysis.AmbiguousRepoError
	if errors.As(err, &ambiguous) {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":    "several repositories are analyzed, repoId is required",
			"repo_ids": ambiguous.RepoIDs,
		})
		return
	}
	log.Printf("handler: %v", err)
	respondError(w, http.StatusInternalServerError, "internal error")
}

func opFailureMessage(op string) string {
	switch op {
	case engine.OpQuery:
		return "Query failed"
	case engine.OpVisualize:
		return "Visualization failed"
	default:
		return "Analysis failed"
	}
}

func opTimeoutMessage(op string) string {
	switch op {
	case engine.OpQuery:
		return "Query timed out"
	case engine.OpVisualize:
		return "Visualization timed out"
	default:
		return "Analysis timed out"
	}
}
