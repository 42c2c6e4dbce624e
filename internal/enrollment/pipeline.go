package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/s/enrollmentService/internal/clients"
)

// step is one precondition of the enroll workflow. check returns nil when
// the step passes; the returned Error's Kind tells not-found, conflict and
// unavailable failures apart.
type step struct {
	name  string
	check func(ctx context.Context) *Error
}

// runSteps runs steps in order and stops at the first failure.
func runSteps(ctx context.Context, logger *slog.Logger, steps []step) error {
	for _, st := range steps {
		if failure := st.check(ctx); failure != nil {
			logger.WarnContext(ctx, "enrollment precondition failed",
				"step", st.name, "code", failure.Code, "error", failure)
			return failure
		}
	}
	return nil
}

func (s *Service) checkStudent(studentID string) func(context.Context) *Error {
	return func(ctx context.Context) *Error {
		exists, err := s.directory.StudentExists(ctx, studentID)
		if err != nil {
			return ErrUpstreamUnavailable.withMessage("student directory is unavailable", err)
		}
		if !exists {
			return ErrStudentNotFound.withMessage("student not found: "+studentID, nil)
		}
		return nil
	}
}

// lookupCourse stores the fetched snapshot in course for the later steps.
func (s *Service) lookupCourse(code string, course *clients.CourseSnapshot) func(context.Context) *Error {
	return func(ctx context.Context) *Error {
		snapshot, err := s.catalog.GetCourseByCode(ctx, code)
		switch {
		case errors.Is(err, clients.ErrCourseNotFound):
			return ErrCourseNotFound.withMessage("course not found: "+code, nil)
		case err != nil:
			return ErrUpstreamUnavailable.withMessage("course catalog is unavailable", err)
		}
		*course = snapshot
		return nil
	}
}

func checkCapacity(course *clients.CourseSnapshot) func(context.Context) *Error {
	return func(context.Context) *Error {
		if course.Enrolled >= course.Capacity {
			return ErrCourseFull.withMessage(
				fmt.Sprintf("course %s is full (%d/%d)", course.Code, course.Enrolled, course.Capacity), nil)
		}
		return nil
	}
}

func (s *Service) checkDuplicate(course *clients.CourseSnapshot, studentID string) func(context.Context) *Error {
	return func(ctx context.Context) *Error {
		exists, err := s.store.ExistsActive(ctx, course.ID, studentID)
		if err != nil {
			return ErrInternal.withMessage("check existing enrollments", err)
		}
		if exists {
			return ErrDuplicateEnrollment.withMessage(
				fmt.Sprintf("student %s is already enrolled in course %s", studentID, course.Code), nil)
		}
		return nil
	}
}
