// Package upload admits inbound repository archives onto disk. A staged file
// is owned by exactly one request and is removed exactly once when that
// request reaches a terminal state.
package upload

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/oklog/ulid/v2"
)

var (
	ErrBadType  = errors.New("upload: only .zip archives are accepted")
	ErrTooLarge = errors.New("upload: file too large")
)

const defaultMaxBytes = 100 << 20

// Staging owns the access-restricted directory uploads are spooled into.
type Staging struct {
	dir      string
	maxBytes int64
}

func NewStaging(dir string, maxBytes int64) (*Staging, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("upload: staging directory is not configured")
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("upload: mkdir staging dir: %w", err)
	}
	return &Staging{dir: dir, maxBytes: maxBytes}, nil
}

// MaxBytes reports the admission size limit.
func (s *Staging) MaxBytes() int64 { return s.maxBytes }

// Admit validates the declared name and size, then spools the content under
// a unique staged name. The declared size is checked before any byte is
// written; the observed size is enforced again during the copy in case the
// declaration lied.
func (s *Staging) Admit(r io.Reader, declaredName string, declaredSize int64) (*StagedUpload, error) {
	name := strings.TrimSpace(declaredName)
	if name == "" {
		return nil, fmt.Errorf("upload: missing file name")
	}
	if !strings.EqualFold(filepath.Ext(name), ".zip") {
		return nil, ErrBadType
	}
	if declaredSize > s.maxBytes {
		return nil, s.tooLarge()
	}

	stagedPath := filepath.Join(s.dir, newToken()+"_"+sanitizeName(name))
	f, err := os.OpenFile(stagedPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("upload: create staged file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	closeErr := f.Close()
	switch {
	case err != nil:
		_ = os.Remove(stagedPath)
		return nil, fmt.Errorf("upload: store %s: %w", name, err)
	case n > s.maxBytes:
		_ = os.Remove(stagedPath)
		return nil, s.tooLarge()
	case closeErr != nil:
		_ = os.Remove(stagedPath)
		return nil, fmt.Errorf("upload: store %s: %w", name, closeErr)
	}

	return &StagedUpload{Path: stagedPath, OriginalName: name, Size: n}, nil
}

// SweepOrphans removes staged files older than maxAge, left behind when a
// previous process died between admitting an upload and cleaning it up.
// Returns how many files were removed.
func (s *Staging) SweepOrphans(maxAge time.Duration) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		log.Printf("upload: swept %d orphaned staged file(s)", removed)
	}
	return removed
}

func (s *Staging) tooLarge() error {
	return fmt.Errorf("%w: limit is %s", ErrTooLarge, humanize.IBytes(uint64(s.maxBytes)))
}

// StagedUpload is one admitted file on disk.
type StagedUpload struct {
	Path         string
	OriginalName string
	Size         int64

	removeOnce sync.Once
}

// Remove deletes the staged file. Safe to call from every exit path; only
// the first call touches the filesystem.
func (u *StagedUpload) Remove() {
	if u == nil {
		return
	}
	u.removeOnce.Do(func() {
		if err := os.Remove(u.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("upload: remove staged file %s: %v", u.Path, err)
		}
	})
}

func newToken() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

func sanitizeName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
