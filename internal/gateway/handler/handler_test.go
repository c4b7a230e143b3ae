package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"timemachine/internal/engine"
	"timemachine/internal/gateway/repository/archive"
	"timemachine/internal/gateway/repository/registry"
	"timemachine/internal/gateway/service/analysis"
	"timemachine/internal/gateway/service/taskevent"
	"timemachine/internal/upload"
)

// scriptedRunner stands in for the engine: canned outcomes per op, every
// built command recorded for assertion.
type scriptedRunner struct {
	mu       sync.Mutex
	outcomes map[string]engine.Outcome
	fn       func(cmd engine.Command) engine.Outcome
	calls    []engine.Command
}

func (r *scriptedRunner) Run(_ context.Context, cmd engine.Command) engine.Outcome {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	fn := r.fn
	out, ok := r.outcomes[cmd.Op]
	r.mu.Unlock()

	if fn != nil {
		return fn(cmd)
	}
	if ok {
		return out
	}
	return engine.Outcome{Kind: engine.KindSuccess, Payload: map[string]any{"repo_id": "stub"}}
}

func (r *scriptedRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *scriptedRunner) lastCall(t *testing.T) engine.Command {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		t.Fatal("no engine command was run")
	}
	return r.calls[len(r.calls)-1]
}

type apiFixture struct {
	api        *API
	runner     *scriptedRunner
	hub        *taskevent.Hub
	registry   *registry.Store
	stagingDir string
	maxUpload  int64
}

func newAPIFixture(t *testing.T, dev bool) *apiFixture {
	t.Helper()
	dir := t.TempDir()

	const maxUpload = 64 << 10
	staging, err := upload.NewStaging(filepath.Join(dir, "staging"), maxUpload)
	if err != nil {
		t.Fatalf("new staging: %v", err)
	}

	reg := registry.New(filepath.Join(dir, "registry.json"))
	hub := taskevent.NewHub()
	runner := &scriptedRunner{outcomes: map[string]engine.Outcome{}}
	svc := analysis.New(runner, engine.ScriptSet{}, reg, archive.NewMemoryStore(), hub)

	return &apiFixture{
		api:        NewAPI(svc, staging, dev),
		runner:     runner,
		hub:        hub,
		registry:   reg,
		stagingDir: filepath.Join(dir, "staging"),
		maxUpload:  maxUpload,
	}
}

func postJSON(t *testing.T, h http.HandlerFunc, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return out
}

func multipartZip(t *testing.T, field, filename string, content []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}
