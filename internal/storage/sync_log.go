package storage

import (
	"context"

	"github.com/s/enrollmentService/internal/models"
	"gorm.io/gorm"
)

const defaultSyncLogLimit = 50

// SyncLogStore records the outcome of enrolled-count pushes to the catalog.
type SyncLogStore struct {
	db *gorm.DB
}

func NewSyncLogStore(db *gorm.DB) *SyncLogStore {
	return &SyncLogStore{db: db}
}

func (s *SyncLogStore) Record(ctx context.Context, attempt models.SyncAttempt) error {
	return s.db.WithContext(ctx).Create(&attempt).Error
}

// ListByCourse returns the most recent attempts first. A non-positive limit
// falls back to the default.
func (s *SyncLogStore) ListByCourse(ctx context.Context, courseID string, limit int) ([]models.SyncAttempt, error) {
	if limit <= 0 {
		limit = defaultSyncLogLimit
	}

	var attempts []models.SyncAttempt
	err := s.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("id desc").
		Limit(limit).
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}
