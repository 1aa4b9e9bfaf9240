// Package catalog projects synced flash files into the storefront
// database: one category per synced folder, one product per file. The
// projection is idempotent, so re-running it over an unchanged tree is a
// no-op.
package catalog

import "time"

// Category groups products by the folder they were synced from. Price is
// the list price copied onto every product in the category.
type Category struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:191;not null"`
	Slug      string `gorm:"size:191;uniqueIndex;not null"`
	Price     int    `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Products []Product
}

// Product is one flash file. PathHash is the md5 hex of the file path and
// is the primary identity; the name is a second key, so two paths carrying
// the same display name share one row within a category.
type Product struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"size:191;index;not null"`
	Slug         string `gorm:"size:191;index;not null"`
	FilePath     string `gorm:"size:500;not null"`
	PathHash     string `gorm:"size:32;uniqueIndex;not null"`
	RemoteID     string `gorm:"size:191;index"`
	SizeBytes    int64
	Price        int
	Status       string `gorm:"size:32;not null"`
	CategoryID   uint   `gorm:"index"`
	LastSyncedAt time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProductStatusActive marks a product visible in the storefront.
const ProductStatusActive = "active"
