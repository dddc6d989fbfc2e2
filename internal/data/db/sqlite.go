package db

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/speakwell-backend/internal/platform/logger"
)

// NewSQLiteService opens an in-memory database. Each name gets its own
// isolated database; an empty name picks a random one.
//
// The pool is pinned to a single connection so that every query sees the
// same shared-cache database. Code running inside a transaction must only
// use the transaction handle or it will block on the pool.
func NewSQLiteService(logg *logger.Logger, name string) (*Service, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "speakwell-" + uuid.NewString()
	}
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=0", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return &Service{
		db:      db,
		log:     logg.With("service", "SQLiteService", "database", name),
		dialect: DialectSQLite,
	}, nil
}
