package catalog

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"
)

// File describes one synced flash file to project into the catalog.
type File struct {
	RemoteID   string
	Name       string
	Path       string // local path, the durable product identity
	Size       int64
	ModifiedAt time.Time
}

// Result counts what one materialization pass did. Errors holds per-file
// database failures; the pass continues past them.
type Result struct {
	Created int
	Updated int
	Skipped int
	Errors  []error
}

// Materializer writes products and categories from synced files. Work is
// chunked so a large initial sync does not hold one giant transaction or
// starve the database.
type Materializer struct {
	db           *gorm.DB
	defaultPrice int
	batchSize    int
	batchDelay   time.Duration
	logger       *slog.Logger

	// sleep and now are overridable so batch pacing and sync timestamps
	// are testable without waiting.
	sleep func(time.Duration)
	now   func() time.Time
}

// NewMaterializer builds a Materializer. batchSize must be positive;
// batchDelay of zero disables pacing.
func NewMaterializer(db *gorm.DB, defaultPrice, batchSize int, batchDelay time.Duration, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}

	if batchSize <= 0 {
		batchSize = 50
	}

	return &Materializer{
		db:           db,
		defaultPrice: defaultPrice,
		batchSize:    batchSize,
		batchDelay:   batchDelay,
		logger:       logger,
		sleep:        time.Sleep,
		now:          time.Now,
	}
}

// Materialize projects files into the catalog under the category named by
// folderKey. Re-running over unchanged files is a no-op. Per-file database
// failures land in Result.Errors and the pass continues; the returned
// error is reserved for failures that sink the whole pass.
func (m *Materializer) Materialize(ctx context.Context, folderKey string, files []File) (Result, error) {
	var result Result

	if len(files) == 0 {
		return result, nil
	}

	category, err := m.ensureCategory(folderKey)
	if err != nil {
		return result, err
	}

	for start := 0; start < len(files); start += m.batchSize {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("catalog: materialization canceled: %w", err)
		}

		end := min(start+m.batchSize, len(files))

		for _, f := range files[start:end] {
			outcome, err := m.upsertProduct(category, f)
			if err != nil {
				m.logger.Warn("catalog write failed",
					slog.String("file", f.Name),
					slog.String("error", err.Error()),
				)

				result.Errors = append(result.Errors, err)

				continue
			}

			switch outcome {
			case outcomeCreated:
				result.Created++
			case outcomeUpdated:
				result.Updated++
			default:
				result.Skipped++
			}
		}

		m.logger.Debug("catalog batch done",
			slog.String("category", folderKey),
			slog.Int("processed", end),
			slog.Int("total", len(files)),
		)

		if end < len(files) && m.batchDelay > 0 {
			m.sleep(m.batchDelay)
		}
	}

	return result, nil
}

// ensureCategory returns the category for the folder key, creating it on
// first sight. Lookup is by slug so "MOD" and "mod" map to the same row.
func (m *Materializer) ensureCategory(name string) (*Category, error) {
	slug := Slugify(name)

	var category Category

	err := m.db.Where("slug = ?", slug).First(&category).Error
	if err == nil {
		return &category, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("catalog: looking up category %q: %w", name, err)
	}

	category = Category{Name: name, Slug: slug, Price: m.defaultPrice}
	if err := m.db.Create(&category).Error; err != nil {
		return nil, fmt.Errorf("catalog: creating category %q: %w", name, err)
	}

	m.logger.Info("category created", slog.String("name", name), slog.String("slug", slug))

	return &category, nil
}

type productOutcome int

const (
	outcomeSkipped productOutcome = iota
	outcomeCreated
	outcomeUpdated
)

func (m *Materializer) upsertProduct(category *Category, f File) (productOutcome, error) {
	hash := pathHash(f.Path)
	name := displayName(f.Name)

	var product Product

	// Three keys: the path hash is the primary identity, the name keeps a
	// category to one product per display name, and the remote ID catches
	// files that moved on the remote but kept their item ID.
	q := m.db.Where("path_hash = ?", hash).
		Or("name = ? AND category_id = ?", name, category.ID)
	if f.RemoteID != "" {
		q = q.Or("remote_id = ?", f.RemoteID)
	}

	err := q.First(&product).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		product = Product{
			Name:         name,
			Slug:         Slugify(name),
			FilePath:     f.Path,
			PathHash:     hash,
			RemoteID:     f.RemoteID,
			SizeBytes:    f.Size,
			Price:        category.Price,
			Status:       ProductStatusActive,
			CategoryID:   category.ID,
			LastSyncedAt: m.now(),
		}

		if err := m.db.Create(&product).Error; err != nil {
			return outcomeSkipped, fmt.Errorf("catalog: creating product %q: %w", name, err)
		}

		return outcomeCreated, nil

	case err != nil:
		return outcomeSkipped, fmt.Errorf("catalog: looking up product %q: %w", name, err)
	}

	// Only touch rows older than the file itself.
	if !product.UpdatedAt.Before(f.ModifiedAt) {
		return outcomeSkipped, nil
	}

	updates := map[string]any{
		"name":           name,
		"slug":           Slugify(name),
		"file_path":      f.Path,
		"path_hash":      hash,
		"size_bytes":     f.Size,
		"price":          category.Price,
		"category_id":    category.ID,
		"last_synced_at": m.now(),
	}
	if f.RemoteID != "" {
		updates["remote_id"] = f.RemoteID
	}

	if err := m.db.Model(&product).Updates(updates).Error; err != nil {
		return outcomeSkipped, fmt.Errorf("catalog: updating product %q: %w", name, err)
	}

	return outcomeUpdated, nil
}

// pathHash is the md5 hex of the file path. Not a security boundary, just
// a fixed-width unique key over an arbitrarily long path.
func pathHash(path string) string {
	sum := md5.Sum([]byte(path))
	return hex.EncodeToString(sum[:])
}

// displayName strips the extension from a file name for the product name.
func displayName(fileName string) string {
	return strings.TrimSuffix(fileName, filepath.Ext(fileName))
}
