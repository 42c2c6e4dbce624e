// Package enrollment implements the enroll/unenroll workflow: cross-service
// validation against the directory and catalog, local invariants, the local
// commit, and the best-effort enrolled-count push back to the catalog.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/s/enrollmentService/internal/clients"
	"github.com/s/enrollmentService/internal/models"
	"github.com/s/enrollmentService/internal/storage"
)

type Store interface {
	FindAll(ctx context.Context) ([]models.Enrollment, error)
	FindByCourseID(ctx context.Context, courseID string) ([]models.Enrollment, error)
	FindByStudentID(ctx context.Context, studentID string) ([]models.Enrollment, error)
	FindByID(ctx context.Context, id string) (models.Enrollment, error)
	ExistsActive(ctx context.Context, courseID, studentID string) (bool, error)
	CountActive(ctx context.Context, courseID string) (int, error)
	HasActiveForStudent(ctx context.Context, studentID string) (bool, error)
	Save(ctx context.Context, enrollment *models.Enrollment) error
}

type Directory interface {
	StudentExists(ctx context.Context, studentID string) (bool, error)
}

type Catalog interface {
	GetCourseByCode(ctx context.Context, code string) (clients.CourseSnapshot, error)
	UpdateEnrolledCount(ctx context.Context, courseID string, enrolled int) error
}

// SyncRecorder stores the outcome of each enrolled-count push.
type SyncRecorder interface {
	Record(ctx context.Context, attempt models.SyncAttempt) error
}

// Service holds no per-request state and is safe for concurrent use.
type Service struct {
	store     Store
	directory Directory
	catalog   Catalog
	recorder  SyncRecorder
	logger    *slog.Logger
}

// NewService wires the workflow. recorder may be nil, in which case sync
// outcomes are only logged.
func NewService(store Store, directory Directory, catalog Catalog, recorder SyncRecorder, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		directory: directory,
		catalog:   catalog,
		recorder:  recorder,
		logger:    logger,
	}
}

// EnrollStudent validates the student and course with the collaborators,
// checks capacity and duplicates, persists an ACTIVE enrollment and then
// pushes the new enrolled count to the catalog.
//
// The capacity check reads the catalog snapshot fetched before the commit,
// so concurrent enrollments for the same course can exceed capacity.
// Duplicate ACTIVE enrollments are rejected by the store's unique index.
func (s *Service) EnrollStudent(ctx context.Context, courseCode, studentID string) (models.Enrollment, error) {
	courseCode = strings.TrimSpace(courseCode)
	studentID = strings.TrimSpace(studentID)
	if courseCode == "" || studentID == "" {
		return models.Enrollment{}, ErrInvalidInput.withMessage("courseCode and studentId are required", nil)
	}

	logger := s.logger.With("course_code", courseCode, "student_id", studentID)
	logger.InfoContext(ctx, "enrolling student")

	var course clients.CourseSnapshot
	steps := []step{
		{name: "student", check: s.checkStudent(studentID)},
		{name: "course", check: s.lookupCourse(courseCode, &course)},
		{name: "capacity", check: checkCapacity(&course)},
		{name: "duplicate", check: s.checkDuplicate(&course, studentID)},
	}
	if err := runSteps(ctx, logger, steps); err != nil {
		return models.Enrollment{}, err
	}

	enrollment := models.Enrollment{
		CourseID:  course.ID,
		StudentID: studentID,
		Status:    models.StatusActive,
	}
	if err := s.store.Save(ctx, &enrollment); err != nil {
		if errors.Is(err, storage.ErrDuplicateActive) {
			return models.Enrollment{}, ErrDuplicateEnrollment.withMessage(
				fmt.Sprintf("student %s is already enrolled in course %s", studentID, courseCode), err)
		}
		return models.Enrollment{}, fmt.Errorf("save enrollment: %w", err)
	}
	logger.InfoContext(ctx, "enrollment created", "enrollment_id", enrollment.ID, "course_id", enrollment.CourseID)

	s.syncEnrolledCount(ctx, models.SyncOperationEnroll, enrollment, course.Enrolled+1)

	return enrollment, nil
}

// UnenrollStudent drops an ACTIVE enrollment and pushes the recomputed
// active count for its course. Dropping an enrollment twice fails with
// ErrNotActive.
func (s *Service) UnenrollStudent(ctx context.Context, enrollmentID string) error {
	logger := s.logger.With("enrollment_id", enrollmentID)
	logger.InfoContext(ctx, "unenrolling student")

	enrollment, err := s.store.FindByID(ctx, enrollmentID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrEnrollmentNotFound.withMessage("enrollment not found: "+enrollmentID, nil)
	}
	if err != nil {
		return fmt.Errorf("find enrollment: %w", err)
	}

	if !enrollment.IsActive() {
		logger.WarnContext(ctx, "enrollment is not active", "status", enrollment.Status)
		return ErrNotActive.withMessage("enrollment is not active: "+enrollmentID, nil)
	}

	enrollment.Status = models.StatusDropped
	if err := s.store.Save(ctx, &enrollment); err != nil {
		return fmt.Errorf("save enrollment: %w", err)
	}
	logger.InfoContext(ctx, "enrollment dropped", "course_id", enrollment.CourseID)

	// The drop is committed; a caller that goes away now must not stop the
	// count read or the push.
	syncCtx := context.WithoutCancel(ctx)

	// The catalog gets the local count rather than its own value minus one,
	// so earlier lost pushes are corrected.
	count, err := s.store.CountActive(syncCtx, enrollment.CourseID)
	if err != nil {
		logger.ErrorContext(syncCtx, "count active enrollments for sync", "course_id", enrollment.CourseID, "error", err)
		return nil
	}
	s.syncEnrolledCount(syncCtx, models.SyncOperationUnenroll, enrollment, count)
	return nil
}

func (s *Service) GetAllEnrollments(ctx context.Context) ([]models.Enrollment, error) {
	return s.store.FindAll(ctx)
}

func (s *Service) GetEnrollmentsByCourseID(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	return s.store.FindByCourseID(ctx, courseID)
}

func (s *Service) GetEnrollmentsByStudentID(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	return s.store.FindByStudentID(ctx, studentID)
}

// GetCourseEnrollmentCount counts ACTIVE enrollments in the local store,
// independent of what the catalog reports.
func (s *Service) GetCourseEnrollmentCount(ctx context.Context, courseID string) (int, error) {
	return s.store.CountActive(ctx, courseID)
}

func (s *Service) IsStudentEnrolled(ctx context.Context, courseID, studentID string) (bool, error) {
	return s.store.ExistsActive(ctx, courseID, studentID)
}

func (s *Service) HasStudentEnrollments(ctx context.Context, studentID string) (bool, error) {
	return s.store.HasActiveForStudent(ctx, studentID)
}
