package catalog

import (
	"fmt"

	"gorm.io/gorm"
)

// CategoryReport is one row of the catalog summary.
type CategoryReport struct {
	Category   string
	Slug       string
	Products   int64
	TotalBytes int64
}

// Report summarizes the catalog per category. Categories without products
// still appear with zero counts.
func Report(db *gorm.DB) ([]CategoryReport, error) {
	var rows []CategoryReport

	err := db.Model(&Category{}).
		Select("categories.name AS category",
			"categories.slug AS slug",
			"COUNT(products.id) AS products",
			"COALESCE(SUM(products.size_bytes), 0) AS total_bytes").
		Joins("LEFT JOIN products ON products.category_id = categories.id").
		Group("categories.id").
		Order("categories.name").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("catalog: building report: %w", err)
	}

	return rows, nil
}
