package logger

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestLoggerWritesJSONAudit(t *testing.T) {
	defer goleak.VerifyNone(t)
	dir := t.TempDir()
	l := NewLoggerService(map[string]interface{}{"folder_path": dir, "max_file_mb": 1.0, "level": "debug"})
	require.NoError(t, l.Start())

	l.LogAudit("screen run", zap.String("screen", "compliance"))
	path := l.CurrentFile()
	require.NoError(t, l.Stop())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"screen run"`)
	assert.Contains(t, string(raw), `"screen":"compliance"`)
	assert.Contains(t, string(raw), `"audit":true`)
}

func TestGlobalLoggerDefaultsToNop(t *testing.T) {
	prev := GlobalLogger
	GlobalLogger = nil
	defer func() { GlobalLogger = prev }()

	assert.NotNil(t, L())
	Audit("dropped")
}

func TestRotate(t *testing.T) {
	dir := t.TempDir()
	l := NewLoggerService(map[string]interface{}{"folder_path": dir})
	require.NoError(t, l.Start())
	defer l.Stop()
	l.maxFileBytes = 10

	first := l.CurrentFile()
	l.Logger().Info(strings.Repeat("x", 64))
	require.NoError(t, l.rotateIfNeeded())
	assert.NotEqual(t, first, l.CurrentFile())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestZipOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "app_old.log")
	require.NoError(t, os.WriteFile(old, []byte("old\n"), 0o644))
	past := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(old, past, past))
	fresh := filepath.Join(dir, "app_fresh.log")
	require.NoError(t, os.WriteFile(fresh, []byte("fresh\n"), 0o644))

	l := NewLoggerService(map[string]interface{}{"folder_path": dir, "retention_days": 7})
	require.NoError(t, l.zipAndCleanOldLogs())

	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	zips, err := filepath.Glob(filepath.Join(dir, "logs_*.zip"))
	require.NoError(t, err)
	require.Len(t, zips, 1)

	zr, err := zip.OpenReader(zips[0])
	require.NoError(t, err)
	defer zr.Close()
	require.Len(t, zr.File, 1)
	assert.Equal(t, "app_old.log", zr.File[0].Name)
}
