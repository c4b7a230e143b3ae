// Package handler is the HTTP boundary of the gateway: it validates inbound
// requests, hands the work to the analysis service, and maps every task
// outcome to exactly one JSON response.
package handler

import (
	"net/http"

	"timemachine/internal/gateway/service/analysis"
	"timemachine/internal/upload"
)

// API serves the task endpoints. dev controls whether failure responses
// carry engine diagnostics; production responses stay generic.
type API struct {
	analysis *analysis.Service
	staging  *upload.Staging
	dev      bool
}

func NewAPI(svc *analysis.Service, staging *upload.Staging, dev bool) *API {
	return &API{analysis: svc, staging: staging, dev: dev}
}

// HandleNotFound answers unmatched /api paths so they never fall through
// to the front-end catch-all.
func (a *API) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "not found")
}
