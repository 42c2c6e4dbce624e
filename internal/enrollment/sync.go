package enrollment

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/s/enrollmentService/internal/models"
)

// syncEnrolledCount pushes enrolled to the catalog after a local commit.
// The outcome goes to the log and the sync recorder only; the local
// enrollment stays committed whatever happens here.
func (s *Service) syncEnrolledCount(ctx context.Context, operation string, enrollment models.Enrollment, enrolled int) {
	// A caller that disconnects after the commit must not abort the push.
	ctx = context.WithoutCancel(ctx)
	logger := s.logger.With("course_id", enrollment.CourseID, "enrollment_id", enrollment.ID, "enrolled", enrolled)

	err := s.catalog.UpdateEnrolledCount(ctx, enrollment.CourseID, enrolled)

	attempt := models.SyncAttempt{
		CourseID:       enrollment.CourseID,
		EnrollmentID:   enrollment.ID,
		Operation:      operation,
		RequestedCount: enrolled,
		Succeeded:      err == nil,
	}
	if err != nil {
		attempt.Error = err.Error()
		logger.WarnContext(ctx, "enrolled count sync failed", "operation", operation, "error", err)
	} else {
		logger.InfoContext(ctx, "enrolled count synced", "operation", operation)
	}

	if s.recorder == nil {
		return
	}
	if details, mErr := json.Marshal(map[string]any{"enrolled": enrolled, "studentId": enrollment.StudentID}); mErr == nil {
		attempt.Details = datatypes.JSON(details)
	}
	if rErr := s.recorder.Record(ctx, attempt); rErr != nil {
		logger.ErrorContext(ctx, "record sync attempt", "error", rErr)
	}
}
