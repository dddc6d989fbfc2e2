package testutil

import (
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	dbpkg "github.com/yungbote/speakwell-backend/internal/data/db"
	"github.com/yungbote/speakwell-backend/internal/platform/logger"
)

var (
	pgOnce sync.Once
	pgDB   *gorm.DB
	pgErr  error

	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

var errNoPostgres = errors.New("TEST_POSTGRES_DSN not set")

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// DB returns a migrated database. With TEST_POSTGRES_DSN set every caller
// shares one postgres database; otherwise each test gets a fresh in-memory
// SQLite database that is closed on cleanup.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	if db, err := postgresDB(); err == nil {
		return db
	} else if !errors.Is(err, errNoPostgres) {
		tb.Fatalf("failed to init test postgres: %v", err)
	}
	return SQLite(tb)
}

// SQLite always returns a fresh, isolated in-memory database. Service tests
// that open their own transactions use it instead of DB.
func SQLite(tb testing.TB) *gorm.DB {
	tb.Helper()
	name := "test-" + strings.ReplaceAll(tb.Name(), "/", "_") + "-" + uuid.NewString()
	svc, err := dbpkg.NewSQLiteService(Logger(tb), name)
	if err != nil {
		tb.Fatalf("failed to open sqlite: %v", err)
	}
	if err := dbpkg.AutoMigrateAll(svc.DB()); err != nil {
		tb.Fatalf("failed to migrate sqlite: %v", err)
	}
	tb.Cleanup(func() { _ = svc.Close() })
	return svc.DB()
}

func postgresDB() (*gorm.DB, error) {
	pgOnce.Do(func() {
		dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
		if dsn == "" {
			pgErr = errNoPostgres
			return
		}
		pgDB, pgErr = gorm.Open(postgres.Open(dsn), &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
			TranslateError:                           true,
			Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
		})
		if pgErr != nil {
			return
		}
		if pgErr = dbpkg.AutoMigrateAll(pgDB); pgErr != nil {
			return
		}
		pgErr = dbpkg.EnsureIndexes(pgDB)
	})
	return pgDB, pgErr
}

// Tx opens a transaction that is rolled back when the test ends. On SQLite the
// transaction holds the only connection, so everything in the test must go
// through it.
func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}
