package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/dustin/go-humanize"

	"timemachine/internal/engine"
	"timemachine/internal/upload"
)

// uploadFormSlack covers multipart boundaries and part headers when checking
// the request size against the archive limit.
const uploadFormSlack = 1 << 20

func (a *API) HandleUploadRepo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := a.staging.MaxBytes()
	if r.ContentLength > limit+uploadFormSlack {
		respondError(w, http.StatusBadRequest, uploadTooLargeMessage(limit))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+uploadFormSlack)

	file, header, err := r.FormFile("repoFile")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusBadRequest, uploadTooLargeMessage(limit))
			return
		}
		respondError(w, http.StatusBadRequest, "multipart field repoFile is required")
		return
	}
	defer file.Close()

	staged, err := a.staging.Admit(file, header.Filename, header.Size)
	if err != nil {
		switch {
		case errors.Is(err, upload.ErrBadType), errors.Is(err, upload.ErrTooLarge):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("handler: stage upload %q: %v", header.Filename, err)
			respondError(w, http.StatusInternalServerError, "failed to store uploaded file")
		}
		return
	}
	defer staged.Remove()

	out := a.analysis.AnalyzeUpload(r.Context(), staged.Path, staged.OriginalName)
	a.respondOutcome(w, out, engine.OpUpload, wrapAnalysis)
}

func uploadTooLargeMessage(limit int64) string {
	return fmt.Sprintf("file too large: the limit is %s", humanize.IBytes(uint64(limit)))
}
