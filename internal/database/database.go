package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Connect opens the durable-log database. A postgres URL selects the postgres
// driver; anything else is treated as a sqlite file path. An empty URL falls
// back to a local sqlite file so the service works without external storage.
func Connect(url string) (*gorm.DB, error) {
	if url == "" {
		url = "autograde.db"
	}

	var dialector gorm.Dialector
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		dialector = postgres.Open(url)
	} else {
		dialector = sqlite.Open(url)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}
