package handler

import (
	"fmt"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"timemachine/internal/safeio"
)

// Static serves the single-page front end: real files when they exist,
// index.html for everything else so client-side routes survive a reload.
type Static struct {
	fsys *safeio.SafeFS
}

func NewStatic(dir string) (*Static, error) {
	fsys, err := safeio.NewSafeFS(dir)
	if err != nil {
		return nil, fmt.Errorf("static: %w", err)
	}
	return &Static{fsys: fsys}, nil
}

func (s *Static) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" {
		name = "index.html"
	}
	s.serveFile(w, r, filepath.FromSlash(name), name != "index.html")
}

func (s *Static) serveFile(w http.ResponseWriter, r *http.Request, name string, fallback bool) {
	f, err := s.fsys.SafeOpen(name)
	if err != nil {
		if fallback {
			s.serveFile(w, r, "index.html", false)
			return
		}
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, name, info.ModTime(), f)
}
