package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/s/enrollmentService/internal/database"
	"github.com/s/enrollmentService/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no enrollment has the requested id.
	ErrNotFound = errors.New("storage: enrollment not found")

	// ErrDuplicateActive is returned when a save would create a second
	// ACTIVE enrollment for the same course and student.
	ErrDuplicateActive = errors.New("storage: active enrollment already exists")
)

// EnrollmentStore persists enrollments. It does not enforce business rules;
// the only invariant it guards is the database's unique active-pair index.
type EnrollmentStore struct {
	db *gorm.DB
}

func NewEnrollmentStore(db *gorm.DB) *EnrollmentStore {
	return &EnrollmentStore{db: db}
}

func (s *EnrollmentStore) FindAll(ctx context.Context) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	if err := s.db.WithContext(ctx).Order("created_at asc").Find(&enrollments).Error; err != nil {
		return nil, err
	}
	return enrollments, nil
}

func (s *EnrollmentStore) FindByCourseID(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	err := s.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("created_at asc").
		Find(&enrollments).Error
	if err != nil {
		return nil, err
	}
	return enrollments, nil
}

func (s *EnrollmentStore) FindByStudentID(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	err := s.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at asc").
		Find(&enrollments).Error
	if err != nil {
		return nil, err
	}
	return enrollments, nil
}

// FindByID returns ErrNotFound when the id is unknown.
func (s *EnrollmentStore) FindByID(ctx context.Context, id string) (models.Enrollment, error) {
	var enrollment models.Enrollment
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&enrollment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Enrollment{}, ErrNotFound
	}
	if err != nil {
		return models.Enrollment{}, err
	}
	return enrollment, nil
}

func (s *EnrollmentStore) ExistsActive(ctx context.Context, courseID, studentID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("course_id = ? AND student_id = ? AND status = ?", courseID, studentID, models.StatusActive).
		Count(&count).Error
	return count > 0, err
}

// CountActive counts ACTIVE enrollments only; DROPPED history is ignored.
func (s *EnrollmentStore) CountActive(ctx context.Context, courseID string) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("course_id = ? AND status = ?", courseID, models.StatusActive).
		Count(&count).Error
	return int(count), err
}

func (s *EnrollmentStore) HasActiveForStudent(ctx context.Context, studentID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("student_id = ? AND status = ?", studentID, models.StatusActive).
		Count(&count).Error
	return count > 0, err
}

// Save inserts the enrollment when it has no id yet, assigning a new one,
// and updates it by id otherwise.
func (s *EnrollmentStore) Save(ctx context.Context, enrollment *models.Enrollment) error {
	db := s.db.WithContext(ctx)

	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
		if err := db.Create(enrollment).Error; err != nil {
			enrollment.ID = ""
			return translateError(err)
		}
		return nil
	}

	return translateError(db.Save(enrollment).Error)
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return ErrDuplicateActive
	}
	return err
}

// sqliteActivePairViolation is how SQLite names the active-pair index
// columns when it rejects an insert.
const sqliteActivePairViolation = "UNIQUE constraint failed: enrollments.course_id, enrollments.student_id"

// isUniqueViolation reports whether err came from the active-pair index.
// Other unique violations, such as a primary key collision, do not count.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" && pqErr.Constraint == database.ActivePairIndex
	}
	return strings.Contains(err.Error(), sqliteActivePairViolation)
}
