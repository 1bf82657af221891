package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnforceLogDirSizeLimitDeletesOldestFirst(t *testing.T) {
	dir := t.TempDir()
	current := filepath.Join(dir, "vkcall.log")

	writeLogFile(t, filepath.Join(dir, "vkcall-2025-01-01T00-00-00.000.log"), 60, time.Unix(1, 0))
	writeLogFile(t, filepath.Join(dir, "vkcall-2025-01-02T00-00-00.000.log.gz"), 60, time.Unix(2, 0))
	writeLogFile(t, current, 60, time.Unix(3, 0))

	deleted, err := enforceLogDirSizeLimit(dir, 120, current)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	assert.NoFileExists(t, filepath.Join(dir, "vkcall-2025-01-01T00-00-00.000.log"))
	assert.FileExists(t, filepath.Join(dir, "vkcall-2025-01-02T00-00-00.000.log.gz"))
	assert.FileExists(t, current)
}

func TestEnforceLogDirSizeLimitKeepsCurrentFile(t *testing.T) {
	dir := t.TempDir()
	current := filepath.Join(dir, "vkcall.log")

	writeLogFile(t, current, 200, time.Unix(1, 0))
	writeLogFile(t, filepath.Join(dir, "older.log"), 50, time.Unix(2, 0))

	deleted, err := enforceLogDirSizeLimit(dir, 100, current)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.FileExists(t, current)
}

func TestEnforceLogDirSizeLimitIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	writeLogFile(t, filepath.Join(dir, "tokens.json"), 500, time.Unix(1, 0))
	writeLogFile(t, filepath.Join(dir, "a.log"), 10, time.Unix(2, 0))

	deleted, err := enforceLogDirSizeLimit(dir, 100, "")
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.FileExists(t, filepath.Join(dir, "tokens.json"))
}

func TestEnforceLogDirSizeLimitMissingDir(t *testing.T) {
	deleted, err := enforceLogDirSizeLimit(filepath.Join(t.TempDir(), "absent"), 1, "")
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func writeLogFile(t *testing.T, path string, size int, modTime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}
