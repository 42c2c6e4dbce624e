package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/s/enrollmentService/internal/enrollment"
)

// GET /api/enrollments
func (h *Handler) GetAllEnrollments(w http.ResponseWriter, r *http.Request) {
	enrollments, err := h.Enrollments.GetAllEnrollments(r.Context())
	if err != nil {
		h.internalError(w, r, "list enrollments", err)
		return
	}
	h.jsonSuccess(w, enrollments)
}

// GET /api/enrollments/course/{courseId}
func (h *Handler) GetEnrollmentsByCourse(w http.ResponseWriter, r *http.Request) {
	courseID := mux.Vars(r)["courseId"]

	enrollments, err := h.Enrollments.GetEnrollmentsByCourseID(r.Context(), courseID)
	if err != nil {
		h.internalError(w, r, "list enrollments by course", err)
		return
	}
	h.jsonSuccess(w, enrollments)
}

// GET /api/enrollments/student/{studentId}
func (h *Handler) GetEnrollmentsByStudent(w http.ResponseWriter, r *http.Request) {
	studentID := mux.Vars(r)["studentId"]

	enrollments, err := h.Enrollments.GetEnrollmentsByStudentID(r.Context(), studentID)
	if err != nil {
		h.internalError(w, r, "list enrollments by student", err)
		return
	}
	h.jsonSuccess(w, enrollments)
}

// GET /api/enrollments/student/{studentId}/active
func (h *Handler) HasStudentEnrollments(w http.ResponseWriter, r *http.Request) {
	studentID := mux.Vars(r)["studentId"]

	has, err := h.Enrollments.HasStudentEnrollments(r.Context(), studentID)
	if err != nil {
		h.internalError(w, r, "check student enrollments", err)
		return
	}
	h.jsonSuccess(w, has)
}

// POST /api/enrollments
func (h *Handler) EnrollStudent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CourseCode string `json:"courseCode"`
		StudentID  string `json:"studentId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.CourseCode) == "" || strings.TrimSpace(req.StudentID) == "" {
		h.jsonError(w, "courseCode and studentId are required", http.StatusBadRequest)
		return
	}

	created, err := h.Enrollments.EnrollStudent(r.Context(), req.CourseCode, req.StudentID)
	if err != nil {
		h.workflowError(w, r, err, statusFor(err))
		return
	}
	h.writeJSON(w, http.StatusCreated, "enrolled", created)
}

// DELETE /api/enrollments/{id}
func (h *Handler) UnenrollStudent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.Enrollments.UnenrollStudent(r.Context(), id); err != nil {
		status := statusFor(err)
		// An enrollment that is no longer active is reported like a missing one.
		if errors.Is(err, enrollment.ErrNotActive) {
			status = http.StatusNotFound
		}
		h.workflowError(w, r, err, status)
		return
	}
	h.writeJSON(w, http.StatusOK, "unenrolled", nil)
}

// GET /api/enrollments/count/{courseId}
func (h *Handler) GetCourseEnrollmentCount(w http.ResponseWriter, r *http.Request) {
	courseID := mux.Vars(r)["courseId"]

	count, err := h.Enrollments.GetCourseEnrollmentCount(r.Context(), courseID)
	if err != nil {
		h.internalError(w, r, "count enrollments", err)
		return
	}
	h.jsonSuccess(w, count)
}

// GET /api/enrollments/isEnrolled?courseId=&studentId=
func (h *Handler) IsStudentEnrolled(w http.ResponseWriter, r *http.Request) {
	courseID := r.URL.Query().Get("courseId")
	studentID := r.URL.Query().Get("studentId")
	if courseID == "" || studentID == "" {
		h.jsonError(w, "courseId and studentId are required", http.StatusBadRequest)
		return
	}

	enrolled, err := h.Enrollments.IsStudentEnrolled(r.Context(), courseID, studentID)
	if err != nil {
		h.internalError(w, r, "check enrollment", err)
		return
	}
	h.jsonSuccess(w, enrolled)
}

// GET /api/enrollments/sync/{courseId}?limit=
func (h *Handler) GetSyncAttempts(w http.ResponseWriter, r *http.Request) {
	courseID := mux.Vars(r)["courseId"]

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.jsonError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	attempts, err := h.SyncLog.ListByCourse(r.Context(), courseID, limit)
	if err != nil {
		h.internalError(w, r, "list sync attempts", err)
		return
	}
	h.jsonSuccess(w, attempts)
}

func statusFor(err error) int {
	switch enrollment.KindOf(err) {
	case enrollment.KindValidation, enrollment.KindConflict:
		return http.StatusBadRequest
	case enrollment.KindNotFound:
		return http.StatusNotFound
	case enrollment.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// workflowError writes the workflow error's own message. Internal failures
// are logged and replaced with a generic message.
func (h *Handler) workflowError(w http.ResponseWriter, r *http.Request, err error, status int) {
	var werr *enrollment.Error
	if status == http.StatusInternalServerError || !errors.As(err, &werr) {
		h.internalError(w, r, "enrollment workflow", err)
		return
	}
	if status == http.StatusServiceUnavailable {
		h.Logger.WarnContext(r.Context(), "upstream unavailable", "error", err)
	}
	h.jsonError(w, werr.Message, status)
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.Logger.ErrorContext(r.Context(), op, "error", err)
	h.jsonError(w, "Internal server error", http.StatusInternalServerError)
}
