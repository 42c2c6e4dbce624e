package models

import "time"

type EnrollmentStatus string

const (
	StatusActive  EnrollmentStatus = "ACTIVE"
	StatusDropped EnrollmentStatus = "DROPPED"
)

// Enrollment (a student's seat in a course)
type Enrollment struct {
	ID        string           `gorm:"primaryKey;size:36" json:"id"`
	CourseID  string           `gorm:"size:64;not null;index:idx_enrollments_course" json:"courseId"`   // catalog internal id, not the course code
	StudentID string           `gorm:"size:64;not null;index:idx_enrollments_student" json:"studentId"` // directory student id
	Status    EnrollmentStatus `gorm:"size:16;not null" json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

func (e Enrollment) IsActive() bool {
	return e.Status == StatusActive
}
