// Package files manages the flat work directory shared by downloads and outputs.
package files

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"pricetags/internal/core/apperror"
	"pricetags/internal/infrastructure/spreadsheet"
	"pricetags/pkg/logger"
)

// partialSuffix marks a Chrome download still in progress.
const partialSuffix = ".crdownload"

// WorkDir is the run's scratch directory.
type WorkDir struct {
	Path string
}

// NewWorkDir creates the directory if missing.
func NewWorkDir(path string) (*WorkDir, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve work dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir %s: %w", abs, err)
	}
	return &WorkDir{Path: abs}, nil
}

// Clean removes every entry in the directory. Entries that cannot be removed
// are logged and left behind.
func (w *WorkDir) Clean(ctx context.Context) error {
	entries, err := os.ReadDir(w.Path)
	if err != nil {
		return fmt.Errorf("read work dir: %w", err)
	}

	for _, e := range entries {
		p := filepath.Join(w.Path, e.Name())
		if err := os.RemoveAll(p); err != nil {
			logger.Warn(ctx, "could not remove file", "path", p, "error", err)
		}
	}
	logger.Info(ctx, "work dir cleaned", "path", w.Path, "entries", len(entries))
	return nil
}

// Join returns a path inside the work directory.
func (w *WorkDir) Join(name string) string {
	return filepath.Join(w.Path, name)
}

// latestSince returns the most recently modified file with the extension
// modified at or after since, or "".
func latestSince(dir, ext string, since time.Time) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read dir %s: %w", dir, err)
	}

	suffix := "." + strings.ToLower(strings.TrimPrefix(ext, "."))
	var (
		best    string
		bestMod time.Time
	)
	for _, e := range entries {
		if e.IsDir() || strings.ToLower(filepath.Ext(e.Name())) != suffix {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		mod := info.ModTime()
		if mod.Before(since) {
			continue
		}
		if best == "" || mod.After(bestMod) {
			best = filepath.Join(dir, e.Name())
			bestMod = mod
		}
	}
	return best, nil
}

func hasPartial(dir string) bool {
	matches, _ := filepath.Glob(filepath.Join(dir, "*"+partialSuffix))
	return len(matches) > 0
}

// WaitForDownload polls until a file with ext modified at or after since shows
// up and no partial download remains, or the timeout elapses.
func (w *WorkDir) WaitForDownload(ctx context.Context, ext string, since time.Time, timeout, poll time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		path, err := latestSince(w.Path, ext, since)
		if err != nil {
			return "", err
		}
		if path != "" && !hasPartial(w.Path) {
			return path, nil
		}

		select {
		case <-ctx.Done():
			return "", apperror.NewDownloadNotFound(ext, w.Path).WithCause(ctx.Err())
		case <-ticker.C:
		}
	}
}

// Archiver keeps the enriched product list of each run.
type Archiver struct {
	work *WorkDir

	// dir survives work dir cleanup; empty disables the compressed copy.
	dir string
}

// NewArchiver creates an Archiver. archiveDir may be empty.
func NewArchiver(work *WorkDir, archiveDir string) *Archiver {
	return &Archiver{work: work, dir: archiveDir}
}

// Save writes produtos_completos_<ts>.csv and .xlsx into the work dir and, when
// an archive dir is configured, a zstd-compressed copy of the CSV there.
func (a *Archiver) Save(ctx context.Context, records [][]string, now time.Time) (string, error) {
	base := "produtos_completos_" + now.Format("20060102_150405")
	csvPath := a.work.Join(base + ".csv")

	if err := spreadsheet.WriteCSV(csvPath, records); err != nil {
		return "", err
	}
	if err := spreadsheet.WriteXLSX(a.work.Join(base+".xlsx"), records, true); err != nil {
		return "", err
	}
	logger.Info(ctx, "product list saved", "path", csvPath, "rows", len(records)-1)

	if a.dir == "" {
		return csvPath, nil
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}
	dst := filepath.Join(a.dir, base+".csv.zst")
	if err := compressFile(csvPath, dst); err != nil {
		return "", err
	}
	logger.Info(ctx, "product list archived", "path", dst)

	return csvPath, nil
}

func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()

	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	if _, err := io.Copy(enc, in); err != nil {
		enc.Close()
		return fmt.Errorf("compress %s: %w", src, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush zstd: %w", err)
	}
	return out.Close()
}

// decompressFile reads back an archived .zst file.
func decompressFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	return io.ReadAll(dec)
}
