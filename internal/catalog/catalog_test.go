package catalog

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Fire Dragon", "fire-dragon"},
		{"fire_dragon.v2", "fire-dragon-v2"},
		{"  Crazy  Frog!!  ", "crazy-frog"},
		{"Bokförläggare", "bokforlaggare"},
		{"MOD", "mod"},
		{"---", "n-a"},
		{"", "n-a"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func newTestMaterializer(t *testing.T) *Materializer {
	t.Helper()

	db, err := Open("sqlite", ":memory:")
	require.NoError(t, err)

	m := NewMaterializer(db, 30, 50, 0, testLogger())

	return m
}

func sampleFiles(modifiedAt time.Time) []File {
	return []File{
		{RemoteID: "r1", Name: "alpha.fls", Path: "flashfiles/MOD/alpha.fls", Size: 100, ModifiedAt: modifiedAt},
		{RemoteID: "r2", Name: "beta.fls", Path: "flashfiles/MOD/sub/beta.fls", Size: 200, ModifiedAt: modifiedAt},
	}
}

func TestMaterialize_CreatesCategoryAndProducts(t *testing.T) {
	m := newTestMaterializer(t)

	result, err := m.Materialize(context.Background(), "MOD", sampleFiles(time.Now()))
	require.NoError(t, err)

	assert.Equal(t, Result{Created: 2}, result)

	var category Category
	require.NoError(t, m.db.Where("slug = ?", "mod").First(&category).Error)
	assert.Equal(t, "MOD", category.Name)
	assert.Equal(t, 30, category.Price)

	var product Product
	require.NoError(t, m.db.Where("name = ?", "alpha").First(&product).Error)
	assert.Equal(t, "alpha", product.Name)
	assert.Equal(t, "alpha", product.Slug)
	assert.Equal(t, int64(100), product.SizeBytes)
	assert.Equal(t, category.Price, product.Price)
	assert.Equal(t, ProductStatusActive, product.Status)
	assert.Equal(t, category.ID, product.CategoryID)
	assert.Equal(t, pathHash("flashfiles/MOD/alpha.fls"), product.PathHash)
	assert.False(t, product.LastSyncedAt.IsZero())
}

func TestMaterialize_RerunIsNoOp(t *testing.T) {
	m := newTestMaterializer(t)
	ctx := context.Background()

	// Files older than the rows that the first pass creates.
	files := sampleFiles(time.Now().Add(-time.Hour))

	_, err := m.Materialize(ctx, "MOD", files)
	require.NoError(t, err)

	result, err := m.Materialize(ctx, "MOD", files)
	require.NoError(t, err)

	assert.Equal(t, Result{Skipped: 2}, result)

	var categories int64
	require.NoError(t, m.db.Model(&Category{}).Count(&categories).Error)
	assert.EqualValues(t, 1, categories)

	var products int64
	require.NoError(t, m.db.Model(&Product{}).Count(&products).Error)
	assert.EqualValues(t, 2, products)
}

func TestMaterialize_UpdatesWhenFileIsNewer(t *testing.T) {
	m := newTestMaterializer(t)
	ctx := context.Background()

	_, err := m.Materialize(ctx, "MOD", sampleFiles(time.Now().Add(-time.Hour)))
	require.NoError(t, err)

	newer := []File{{
		RemoteID:   "r1",
		Name:       "alpha.fls",
		Path:       "flashfiles/MOD/alpha.fls",
		Size:       150,
		ModifiedAt: time.Now().Add(time.Hour),
	}}

	result, err := m.Materialize(ctx, "MOD", newer)
	require.NoError(t, err)
	assert.Equal(t, Result{Updated: 1}, result)

	var product Product
	require.NoError(t, m.db.Where("remote_id = ?", "r1").First(&product).Error)
	assert.Equal(t, int64(150), product.SizeBytes)
}

func TestMaterialize_RemoteIDMatchesMovedFile(t *testing.T) {
	m := newTestMaterializer(t)
	ctx := context.Background()

	_, err := m.Materialize(ctx, "MOD", sampleFiles(time.Now().Add(-time.Hour)))
	require.NoError(t, err)

	// Same remote item, new path. Must update the existing row, not
	// create a duplicate.
	moved := []File{{
		RemoteID:   "r1",
		Name:       "alpha.fls",
		Path:       "flashfiles/MOD/renamed/alpha.fls",
		Size:       100,
		ModifiedAt: time.Now().Add(time.Hour),
	}}

	result, err := m.Materialize(ctx, "MOD", moved)
	require.NoError(t, err)
	assert.Equal(t, Result{Updated: 1}, result)

	var products int64
	require.NoError(t, m.db.Model(&Product{}).Count(&products).Error)
	assert.EqualValues(t, 2, products)
}

func TestMaterialize_SameNameAcrossPathsSharesOneProduct(t *testing.T) {
	m := newTestMaterializer(t)

	// Two paths, one display name. The second file must land on the row
	// the first created, not mint a duplicate.
	files := []File{
		{Name: "alpha.fls", Path: "flashfiles/MOD/alpha.fls", Size: 100, ModifiedAt: time.Now()},
		{Name: "alpha.fls", Path: "flashfiles/MOD/sub/alpha.fls", Size: 120, ModifiedAt: time.Now()},
	}

	result, err := m.Materialize(context.Background(), "MOD", files)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated+result.Skipped)

	var products int64
	require.NoError(t, m.db.Model(&Product{}).Where("name = ?", "alpha").Count(&products).Error)
	assert.EqualValues(t, 1, products)
}

func TestMaterialize_UpdateRefreshesPriceAndSyncTime(t *testing.T) {
	m := newTestMaterializer(t)
	ctx := context.Background()

	firstPass := time.Now()
	m.now = func() time.Time { return firstPass }

	_, err := m.Materialize(ctx, "MOD", sampleFiles(time.Now().Add(-time.Hour)))
	require.NoError(t, err)

	m.now = func() time.Time { return firstPass.Add(time.Minute) }

	// Reprice the category; the next update must copy the new price onto
	// the product.
	require.NoError(t, m.db.Model(&Category{}).Where("slug = ?", "mod").Update("price", 45).Error)

	var before Product
	require.NoError(t, m.db.Where("remote_id = ?", "r1").First(&before).Error)

	newer := []File{{
		RemoteID:   "r1",
		Name:       "alpha.fls",
		Path:       "flashfiles/MOD/alpha.fls",
		Size:       150,
		ModifiedAt: time.Now().Add(time.Hour),
	}}

	result, err := m.Materialize(ctx, "MOD", newer)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	var after Product
	require.NoError(t, m.db.Where("remote_id = ?", "r1").First(&after).Error)
	assert.Equal(t, 45, after.Price)
	assert.True(t, after.LastSyncedAt.After(before.LastSyncedAt))
}

func TestMaterialize_CategoryReusedAcrossCase(t *testing.T) {
	m := newTestMaterializer(t)

	_, err := m.ensureCategory("MOD")
	require.NoError(t, err)
	_, err = m.ensureCategory("mod")
	require.NoError(t, err)

	var categories int64
	require.NoError(t, m.db.Model(&Category{}).Count(&categories).Error)
	assert.EqualValues(t, 1, categories)
}

func TestMaterialize_BatchPacing(t *testing.T) {
	m := newTestMaterializer(t)
	m.batchSize = 2
	m.batchDelay = 10 * time.Second

	var slept []time.Duration
	m.sleep = func(d time.Duration) { slept = append(slept, d) }

	files := make([]File, 5)
	for i := range files {
		files[i] = File{
			Name:       string(rune('a'+i)) + ".fls",
			Path:       "flashfiles/MOD/" + string(rune('a'+i)) + ".fls",
			Size:       int64(i + 1),
			ModifiedAt: time.Now(),
		}
	}

	result, err := m.Materialize(context.Background(), "MOD", files)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Created)

	// Two pauses between three batches, none after the last.
	require.Len(t, slept, 2)
	assert.Equal(t, 10*time.Second, slept[0])
}

func TestMaterialize_EmptyInput(t *testing.T) {
	m := newTestMaterializer(t)

	result, err := m.Materialize(context.Background(), "MOD", nil)
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)

	// No category row for an empty pass.
	var categories int64
	require.NoError(t, m.db.Model(&Category{}).Count(&categories).Error)
	assert.EqualValues(t, 0, categories)
}
