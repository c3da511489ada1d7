package storage

import (
	"fmt"
	"time"

	"sentiment-observer/src/interfaces"
	"sentiment-observer/src/logger"
	"sentiment-observer/src/models"
)

// NewDatabase picks the backend named by cfg.DBType. Initialize is left to the caller.
func NewDatabase(cfg *models.MStorageConfig, timeout time.Duration, log *logger.Logger) (interfaces.IDatabase, error) {
	switch cfg.DBType {
	case "postgres":
		db, err := NewPostgresDB(cfg, timeout, log)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "sqlite", "":
		db, err := NewSQLiteDB(cfg, timeout, log)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %q", cfg.DBType)
	}
}
