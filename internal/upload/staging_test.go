package upload

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stagedEntries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return entries
}

func TestAdmitStoresUnderUniqueName(t *testing.T) {
	dir := t.TempDir()
	staging, err := NewStaging(dir, 1<<20)
	require.NoError(t, err)

	first, err := staging.Admit(strings.NewReader("zip-bytes"), "myrepo.zip", 9)
	require.NoError(t, err)
	second, err := staging.Admit(strings.NewReader("zip-bytes"), "myrepo.zip", 9)
	require.NoError(t, err)

	assert.NotEqual(t, first.Path, second.Path)
	assert.Equal(t, "myrepo.zip", first.OriginalName)
	assert.Equal(t, int64(9), first.Size)
	assert.True(t, strings.HasSuffix(first.Path, "_myrepo.zip"))

	raw, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	assert.Equal(t, "zip-bytes", string(raw))
	assert.Len(t, stagedEntries(t, dir), 2)
}

func TestAdmitRejectsWrongExtension(t *testing.T) {
	dir := t.TempDir()
	staging, err := NewStaging(dir, 1<<20)
	require.NoError(t, err)

	_, err = staging.Admit(strings.NewReader("tar-bytes"), "myrepo.tar.gz", 9)
	require.ErrorIs(t, err, ErrBadType)
	assert.Empty(t, stagedEntries(t, dir))
}

func TestAdmitRejectsDeclaredOversizeBeforeWriting(t *testing.T) {
	dir := t.TempDir()
	staging, err := NewStaging(dir, 1<<20)
	require.NoError(t, err)

	_, err = staging.Admit(strings.NewReader("never read"), "big.zip", 150<<20)
	require.ErrorIs(t, err, ErrTooLarge)
	assert.Contains(t, err.Error(), "1.0 MiB")
	assert.Empty(t, stagedEntries(t, dir), "no bytes may reach the staging directory")
}

func TestAdmitEnforcesObservedSize(t *testing.T) {
	dir := t.TempDir()
	staging, err := NewStaging(dir, 16)
	require.NoError(t, err)

	// Declared size lies; the copy itself must hit the cap.
	_, err = staging.Admit(strings.NewReader(strings.Repeat("z", 64)), "sneaky.zip", 0)
	require.ErrorIs(t, err, ErrTooLarge)
	assert.Empty(t, stagedEntries(t, dir))
}

func TestAdmitUppercaseExtension(t *testing.T) {
	staging, err := NewStaging(t.TempDir(), 1<<20)
	require.NoError(t, err)

	staged, err := staging.Admit(strings.NewReader("x"), "REPO.ZIP", 1)
	require.NoError(t, err)
	staged.Remove()
}

func TestAdmitSanitizesHostileNames(t *testing.T) {
	dir := t.TempDir()
	staging, err := NewStaging(dir, 1<<20)
	require.NoError(t, err)

	staged, err := staging.Admit(strings.NewReader("x"), `../../etc cron d/evil name.zip`, 1)
	require.NoError(t, err)

	rel, err := filepath.Rel(dir, staged.Path)
	require.NoError(t, err)
	assert.False(t, strings.ContainsAny(rel, `/\`), "staged name must stay a single path segment, got %q", rel)
}

func TestRemoveIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	staging, err := NewStaging(dir, 1<<20)
	require.NoError(t, err)

	staged, err := staging.Admit(strings.NewReader("x"), "once.zip", 1)
	require.NoError(t, err)

	staged.Remove()
	_, statErr := os.Stat(staged.Path)
	assert.True(t, os.IsNotExist(statErr))

	staged.Remove()
	assert.Empty(t, stagedEntries(t, dir))
}

func TestSweepOrphansRemovesOnlyStaleFiles(t *testing.T) {
	dir := t.TempDir()
	staging, err := NewStaging(dir, 1<<20)
	require.NoError(t, err)

	stale, err := staging.Admit(strings.NewReader("old"), "old.zip", 3)
	require.NoError(t, err)
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale.Path, past, past))

	fresh, err := staging.Admit(strings.NewReader("new"), "new.zip", 3)
	require.NoError(t, err)

	removed := staging.SweepOrphans(time.Hour)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(stale.Path)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh.Path)
	assert.NoError(t, err)
}
