package files

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricetags/internal/core/apperror"
)

func touch(t *testing.T, path string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestClean(t *testing.T) {
	w, err := NewWorkDir(t.TempDir())
	require.NoError(t, err)

	touch(t, w.Join("a.pdf"), time.Now())
	require.NoError(t, os.Mkdir(w.Join("sub"), 0o755))
	touch(t, filepath.Join(w.Path, "sub", "b.xls"), time.Now())

	require.NoError(t, w.Clean(context.Background()))

	entries, err := os.ReadDir(w.Path)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLatestSince(t *testing.T) {
	w, err := NewWorkDir(t.TempDir())
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour)
	touch(t, w.Join("old.xls"), base)
	touch(t, w.Join("new.XLS"), base.Add(time.Minute))
	touch(t, w.Join("other.pdf"), base.Add(2*time.Minute))

	got, err := latestSince(w.Path, "xls", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, w.Join("new.XLS"), got)

	got, err = latestSince(w.Path, ".csv", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "", got)

	got, err = latestSince(w.Path, "xls", base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestWaitForDownload(t *testing.T) {
	w, err := NewWorkDir(t.TempDir())
	require.NoError(t, err)

	since := time.Now().Add(-time.Second)
	touch(t, w.Join("stale.xls"), since.Add(-time.Hour))

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = os.WriteFile(w.Join("estoque.xls"), []byte("x"), 0o644)
	}()

	got, err := w.WaitForDownload(context.Background(), "xls", since, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, w.Join("estoque.xls"), got)
}

func TestWaitForDownload_WaitsForPartial(t *testing.T) {
	w, err := NewWorkDir(t.TempDir())
	require.NoError(t, err)

	since := time.Now().Add(-time.Second)
	touch(t, w.Join("report.pdf"), time.Now())
	touch(t, w.Join("other.crdownload"), time.Now())

	_, err = w.WaitForDownload(context.Background(), "pdf", since, 50*time.Millisecond, 10*time.Millisecond)
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeDownloadNotFound, appErr.Code)
}

func TestArchiver_Save(t *testing.T) {
	w, err := NewWorkDir(t.TempDir())
	require.NoError(t, err)
	archiveDir := filepath.Join(t.TempDir(), "archive")

	records := [][]string{{"Código", "Preço"}, {"100", "10,00"}}
	now := time.Date(2025, 6, 1, 7, 30, 0, 0, time.UTC)

	csvPath, err := NewArchiver(w, archiveDir).Save(context.Background(), records, now)
	require.NoError(t, err)
	assert.Equal(t, w.Join("produtos_completos_20250601_073000.csv"), csvPath)
	assert.FileExists(t, w.Join("produtos_completos_20250601_073000.xlsx"))

	plain, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(plain, []byte{0xEF, 0xBB, 0xBF}))

	restored, err := decompressFile(filepath.Join(archiveDir, "produtos_completos_20250601_073000.csv.zst"))
	require.NoError(t, err)
	assert.Equal(t, plain, restored)
}

func TestArchiver_NoArchiveDir(t *testing.T) {
	w, err := NewWorkDir(t.TempDir())
	require.NoError(t, err)

	_, err = NewArchiver(w, "").Save(context.Background(), [][]string{{"a"}}, time.Now())
	require.NoError(t, err)
}
