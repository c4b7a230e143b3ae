package handler

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"timemachine/internal/engine"
)

func stagingEntries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read staging dir: %v", err)
	}
	return entries
}

func postUpload(t *testing.T, fx *apiFixture, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartZip(t, "repoFile", filename, content)
	req := httptest.NewRequest(http.MethodPost, "/api/upload-repo", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	fx.api.HandleUploadRepo(rec, req)
	return rec
}

func TestUploadRepoSuccessCleansStaging(t *testing.T) {
	fx := newAPIFixture(t, false)

	var stagedPath string
	fx.runner.fn = func(cmd engine.Command) engine.Outcome {
		for i, a := range cmd.Args {
			if a == "--file" && i+1 < len(cmd.Args) {
				stagedPath = cmd.Args[i+1]
			}
		}
		if _, err := os.Stat(stagedPath); err != nil {
			t.Errorf("staged file should exist while the task runs: %v", err)
		}
		return engine.Outcome{Kind: engine.KindSuccess, Payload: map[string]any{
			"repo_id":           "uploaded_xyz",
			"original_filename": "project.zip",
		}}
	}

	rec := postUpload(t, fx, "project.zip", []byte("PK\x03\x04 fake zip"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if resp["success"] != true {
		t.Fatalf("success = %v", resp["success"])
	}
	if stagedPath == "" {
		t.Fatal("engine never saw the staged file path")
	}
	if got := stagingEntries(t, fx.stagingDir); len(got) != 0 {
		t.Fatalf("staging dir not cleaned, %d file(s) remain", len(got))
	}
}

func TestUploadRepoFailureStillCleansStaging(t *testing.T) {
	for _, outcome := range []engine.Outcome{
		{Kind: engine.KindProcessFailure, ExitCode: 1, Excerpt: "zipfile.BadZipFile"},
		{Kind: engine.KindDomainError, Message: "Invalid ZIP file"},
		{Kind: engine.KindTimedOut},
	} {
		fx := newAPIFixture(t, false)
		fx.runner.outcomes[engine.OpUpload] = outcome

		postUpload(t, fx, "broken.zip", []byte("PK\x03\x04"))

		if got := stagingEntries(t, fx.stagingDir); len(got) != 0 {
			t.Fatalf("outcome %s left %d staged file(s) behind", outcome.Kind, len(got))
		}
	}
}

func TestUploadRepoRejectsNonZip(t *testing.T) {
	fx := newAPIFixture(t, false)
	rec := postUpload(t, fx, "repo.tar.gz", []byte("not a zip"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if msg, _ := resp["error"].(string); !strings.Contains(msg, ".zip") {
		t.Fatalf("error should name the accepted type: %v", resp["error"])
	}
	if fx.runner.callCount() != 0 {
		t.Fatal("rejected upload must not start a task")
	}
	if got := stagingEntries(t, fx.stagingDir); len(got) != 0 {
		t.Fatalf("rejected upload left %d staged file(s)", len(got))
	}
}

func TestUploadRepoRejectsOversizeBeforeStaging(t *testing.T) {
	fx := newAPIFixture(t, false)
	content := make([]byte, fx.maxUpload+1)

	rec := postUpload(t, fx, "big.zip", content)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	msg, _ := resp["error"].(string)
	if !strings.Contains(msg, "64 KiB") {
		t.Fatalf("configured limit missing from message: %q", msg)
	}
	if got := stagingEntries(t, fx.stagingDir); len(got) != 0 {
		t.Fatalf("oversize upload reached staging: %d file(s)", len(got))
	}
	if fx.runner.callCount() != 0 {
		t.Fatal("oversize upload must not start a task")
	}
}

func TestUploadRepoMissingField(t *testing.T) {
	fx := newAPIFixture(t, false)
	body, contentType := multipartZip(t, "wrongField", "repo.zip", []byte("PK"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload-repo", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	fx.api.HandleUploadRepo(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if msg, _ := resp["error"].(string); !strings.Contains(msg, "repoFile") {
		t.Fatalf("error should name the expected field: %q", msg)
	}
}

func TestUploadRepoMethodNotAllowed(t *testing.T) {
	fx := newAPIFixture(t, false)
	req := httptest.NewRequest(http.MethodGet, "/api/upload-repo", nil)
	rec := httptest.NewRecorder()
	fx.api.HandleUploadRepo(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
