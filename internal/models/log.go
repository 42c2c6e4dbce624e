package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	SyncOperationEnroll   = "enroll"
	SyncOperationUnenroll = "unenroll"
)

// SyncAttempt keeps the history of enrolled-count pushes to the catalog
type SyncAttempt struct {
	ID             uint   `gorm:"primarykey" json:"id"`
	CourseID       string `gorm:"size:64;index" json:"courseId"`
	EnrollmentID   string `gorm:"size:36" json:"enrollmentId"`
	Operation      string `gorm:"size:16" json:"operation"` // "enroll", "unenroll"
	RequestedCount int    `json:"requestedCount"`
	Succeeded      bool   `json:"succeeded"`
	Error          string `json:"error,omitempty"`

	Details   datatypes.JSON `json:"details"`
	CreatedAt time.Time      `json:"createdAt"`
}
