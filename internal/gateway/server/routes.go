package server

import (
	"net/http"

	"timemachine/internal/gateway/handler"
	"timemachine/internal/gateway/middleware"
)

// NewMux wires every endpoint. API routes live under /api; anything else
// falls through to the static front end when one is configured.
func NewMux(
	api *handler.API,
	eventsHandler *handler.EventsHandler,
	traceHandler *handler.TraceHandler,
	static *handler.Static,
) http.Handler {
	mux := http.NewServeMux()

	// Task endpoints
	mux.HandleFunc("/api/analyze-repo-url", api.HandleAnalyzeRepoURL)
	mux.HandleFunc("/api/upload-repo", api.HandleUploadRepo)
	mux.HandleFunc("/api/query", api.HandleQuery)
	mux.HandleFunc("/api/visualize", api.HandleVisualize)

	// Read endpoints
	mux.HandleFunc("/api/health", api.HandleHealth)
	mux.HandleFunc("/api/repos", api.HandleListRepos)
	mux.HandleFunc("/api/repos/", api.HandleRepoAnalysis)

	// Event stream
	mux.HandleFunc("/api/events", eventsHandler.HandleEvents)

	// Debug handlers
	mux.HandleFunc("/api/debug/frontend-trace", traceHandler.HandleFrontendTrace)
	mux.HandleFunc("/api/debug/task-log", traceHandler.HandleTaskLog)

	// Unmatched /api paths answer JSON, not the front end.
	mux.HandleFunc("/api/", api.HandleNotFound)

	if static != nil {
		mux.Handle("/", static)
	}

	return middleware.CORS(mux)
}
