package catalog

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the catalog database and migrates the schema. driver is
// "mysql" or "sqlite"; the sqlite driver exists so a single-binary deploy
// needs no database server.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch driver {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("catalog: unsupported driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: opening database: %w", err)
	}

	if err := db.AutoMigrate(&Category{}, &Product{}); err != nil {
		return nil, fmt.Errorf("catalog: migrating schema: %w", err)
	}

	return db, nil
}
