package persistence

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/possync/backend/internal/infrastructure/config"
	"github.com/possync/backend/internal/infrastructure/persistence/models"
)

// LocalStore is the device-local SQLite database backing the durable
// operation queue and the sale read cache. It must survive process
// restarts, so WAL journaling is enabled and writes are synchronous.
type LocalStore struct {
	DB *gorm.DB
}

// NewLocalStore opens (or creates) the agent's SQLite database and
// migrates the queue and cache tables
func NewLocalStore(cfg *config.LocalStoreConfig) (*LocalStore, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=FULL&_busy_timeout=5000", cfg.Path)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	// SQLite serializes writers; a single connection avoids lock retries.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.QueuedOperationModel{},
		&models.CachedSaleModel{},
		&models.CachedSaleLineModel{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate local store: %w", err)
	}

	return &LocalStore{DB: db}, nil
}

// Close closes the local store
func (s *LocalStore) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}
