package database

import (
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	connectAttempts = 5
	connectPause    = 2 * time.Second
)

// Connect opens the postgres database behind dsn through lib/pq. The
// database container can take a few seconds to accept connections, so the open is retried.
func Connect(dsn string, logger *slog.Logger) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < connectAttempts; i++ {
		db, err = Open(postgres.New(postgres.Config{DriverName: "postgres", DSN: dsn}))
		if err == nil {
			logger.Info("connected to database")
			return db, nil
		}

		logger.Warn("database connection attempt failed", "attempt", i+1, "error", err)
		time.Sleep(connectPause)
	}

	return nil, fmt.Errorf("connect to database after %d attempts: %w", connectAttempts, err)
}

// Open opens a gorm handle. Driver errors are left untranslated so the
// stores can tell which constraint a violation came from.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
}
