package database

import (
	"fmt"

	"github.com/s/enrollmentService/internal/models"
	"gorm.io/gorm"
)

// ActivePairIndex is the unique index name reported by the driver when a
// second ACTIVE enrollment for the same pair is inserted.
const ActivePairIndex = "idx_enrollments_active_pair"

// activePairIndexSQL allows any number of DROPPED rows per (course, student)
// but only one ACTIVE one. Postgres and SQLite both accept partial indexes.
const activePairIndexSQL = `CREATE UNIQUE INDEX IF NOT EXISTS ` + ActivePairIndex + `
	ON enrollments (course_id, student_id) WHERE status = 'ACTIVE'`

func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Enrollment{},
		&models.SyncAttempt{},
	); err != nil {
		return err
	}

	if err := db.Exec(activePairIndexSQL).Error; err != nil {
		return fmt.Errorf("create active enrollment index: %w", err)
	}
	return nil
}
