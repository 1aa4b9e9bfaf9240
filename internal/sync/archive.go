package sync

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/csflash/flashsync/internal/graph"
)

// Downloader opens the content stream for one remote entry.
type Downloader interface {
	Download(ctx context.Context, entry graph.Entry) (io.ReadCloser, error)
}

// ExtractedFile is one file Unpack wrote into the mirror.
type ExtractedFile struct {
	Name string
	Path string // local path under the mirror root
	Size int64
}

// Transfer stages fetched content through a zip archive in the temp
// directory before it touches the mirror. The mirror only ever sees
// complete files: a download that dies halfway leaves a discarded archive,
// never a truncated flash file.
type Transfer struct {
	baseDir string
	tempDir string
	dl      Downloader
	logger  *slog.Logger

	// now is overridable so archive names are deterministic in tests.
	now func() time.Time
}

// NewTransfer builds a Transfer staging archives in tempDir and unpacking
// into baseDir.
func NewTransfer(baseDir, tempDir string, dl Downloader, logger *slog.Logger) *Transfer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Transfer{
		baseDir: baseDir,
		tempDir: tempDir,
		dl:      dl,
		logger:  logger,
		now:     time.Now,
	}
}

// PackageAndFetch downloads every planned file and packages the successes
// into one archive. Each file is buffered fully before its archive entry
// is written, so a mid-stream failure skips the file instead of corrupting
// the archive. Per-file failures come back in errs; when nothing at all
// succeeded the archive is discarded and an error is returned.
func (t *Transfer) PackageAndFetch(
	ctx context.Context, folderKey string, items []PlanItem,
) (archivePath string, fetched int, errs []error, err error) {
	if err := os.MkdirAll(t.tempDir, 0o755); err != nil {
		return "", 0, nil, fmt.Errorf("sync: creating temp dir: %w", err)
	}

	archivePath = filepath.Join(t.tempDir, fmt.Sprintf("%s_%s_%s.zip",
		folderKey, t.now().UTC().Format("20060102T150405Z"), shortID()))

	f, err := os.Create(archivePath)
	if err != nil {
		return "", 0, nil, fmt.Errorf("sync: creating archive: %w", err)
	}

	zw := zip.NewWriter(f)

	for _, item := range items {
		if ctxErr := ctx.Err(); ctxErr != nil {
			zw.Close()
			f.Close()
			os.Remove(archivePath)

			return "", 0, nil, fmt.Errorf("sync: fetch canceled: %w", ctxErr)
		}

		data, fetchErr := t.fetchOne(ctx, item.Entry)
		if fetchErr != nil {
			t.logger.Warn("fetch failed",
				slog.String("file", item.RelPath),
				slog.String("error", fetchErr.Error()),
			)

			errs = append(errs, fmt.Errorf("sync: fetching %s: %w", item.RelPath, fetchErr))

			continue
		}

		if writeErr := t.writeEntry(zw, item, data); writeErr != nil {
			zw.Close()
			f.Close()
			os.Remove(archivePath)

			return "", 0, nil, writeErr
		}

		fetched++

		t.logger.Debug("fetched",
			slog.String("file", item.RelPath),
			slog.Int("bytes", len(data)),
		)
	}

	if err := zw.Close(); err != nil {
		f.Close()
		os.Remove(archivePath)

		return "", 0, nil, fmt.Errorf("sync: finalizing archive: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(archivePath)
		return "", 0, nil, fmt.Errorf("sync: closing archive: %w", err)
	}

	if fetched == 0 {
		os.Remove(archivePath)

		if len(errs) > 0 {
			return "", 0, errs, fmt.Errorf("sync: all %d fetches failed", len(errs))
		}

		return "", 0, nil, nil
	}

	return archivePath, fetched, errs, nil
}

func (t *Transfer) fetchOne(ctx context.Context, entry graph.Entry) ([]byte, error) {
	rc, err := t.dl.Download(ctx, entry)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}

	if entry.Size > 0 && int64(len(data)) != entry.Size {
		return nil, fmt.Errorf("got %d bytes, expected %d", len(data), entry.Size)
	}

	return data, nil
}

func (t *Transfer) writeEntry(zw *zip.Writer, item PlanItem, data []byte) error {
	hdr := &zip.FileHeader{
		Name:     item.RelPath,
		Method:   zip.Deflate,
		Modified: item.Entry.ModifiedAt,
	}

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("sync: creating archive entry %s: %w", item.RelPath, err)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("sync: writing archive entry %s: %w", item.RelPath, err)
	}

	return nil
}

// Unpack extracts the archive into the folder's mirror directory and
// deletes the archive whether or not extraction succeeded. Entry names
// that escape the mirror root are rejected. An archive yielding zero files
// returns ErrNothingExtracted.
func (t *Transfer) Unpack(folderKey, archivePath string) ([]ExtractedFile, error) {
	defer os.Remove(archivePath)

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("sync: opening archive: %w", err)
	}
	defer zr.Close()

	destRoot := filepath.Join(t.baseDir, folderKey)

	var extracted []ExtractedFile

	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}

		if !filepath.IsLocal(filepath.FromSlash(entry.Name)) {
			return nil, fmt.Errorf("sync: archive entry %q escapes mirror root", entry.Name)
		}

		dest := filepath.Join(destRoot, filepath.FromSlash(entry.Name))

		size, err := t.extractOne(entry, dest)
		if err != nil {
			return nil, err
		}

		extracted = append(extracted, ExtractedFile{
			Name: filepath.Base(dest),
			Path: dest,
			Size: size,
		})
	}

	if len(extracted) == 0 {
		return nil, ErrNothingExtracted
	}

	t.logger.Info("archive unpacked",
		slog.String("folder", folderKey),
		slog.Int("files", len(extracted)),
	)

	return extracted, nil
}

func (t *Transfer) extractOne(entry *zip.File, dest string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("sync: creating %s: %w", filepath.Dir(dest), err)
	}

	rc, err := entry.Open()
	if err != nil {
		return 0, fmt.Errorf("sync: reading archive entry %s: %w", entry.Name, err)
	}
	defer rc.Close()

	f, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("sync: creating %s: %w", dest, err)
	}

	size, err := io.Copy(f, rc)
	if err != nil {
		f.Close()
		os.Remove(dest)

		return 0, fmt.Errorf("sync: extracting %s: %w", entry.Name, err)
	}

	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("sync: closing %s: %w", dest, err)
	}

	if mod := entry.Modified; !mod.IsZero() {
		_ = os.Chtimes(dest, mod, mod)
	}

	return size, nil
}

// shortID is the first segment of a UUID, enough to keep archive names
// unique within a second.
func shortID() string {
	return uuid.NewString()[:8]
}
