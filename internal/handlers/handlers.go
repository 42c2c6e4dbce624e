package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/s/enrollmentService/internal/enrollment"
	"github.com/s/enrollmentService/internal/storage"
)

type Handler struct {
	Enrollments *enrollment.Service
	SyncLog     *storage.SyncLogStore
	DB          *gorm.DB
	Logger      *slog.Logger
}

func NewHandler(enrollments *enrollment.Service, syncLog *storage.SyncLogStore, db *gorm.DB, logger *slog.Logger) *Handler {
	return &Handler{
		Enrollments: enrollments,
		SyncLog:     syncLog,
		DB:          db,
		Logger:      logger,
	}
}

// RegisterRoutes mounts the enrollment API on r. Fixed paths are registered
// before the {id} route so they are never captured by it.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", h.HandleHealth).Methods("GET")

	r.HandleFunc("/api/enrollments", h.GetAllEnrollments).Methods("GET")
	r.HandleFunc("/api/enrollments", h.EnrollStudent).Methods("POST")
	r.HandleFunc("/api/enrollments/course/{courseId}", h.GetEnrollmentsByCourse).Methods("GET")
	r.HandleFunc("/api/enrollments/student/{studentId}", h.GetEnrollmentsByStudent).Methods("GET")
	r.HandleFunc("/api/enrollments/student/{studentId}/active", h.HasStudentEnrollments).Methods("GET")
	r.HandleFunc("/api/enrollments/count/{courseId}", h.GetCourseEnrollmentCount).Methods("GET")
	r.HandleFunc("/api/enrollments/isEnrolled", h.IsStudentEnrolled).Methods("GET")
	r.HandleFunc("/api/enrollments/sync/{courseId}", h.GetSyncAttempts).Methods("GET")
	r.HandleFunc("/api/enrollments/{id}", h.UnenrollStudent).Methods("DELETE")
}

// APIResponse is the {code, message, data} envelope every endpoint returns.
type APIResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(APIResponse{Code: code, Message: message, Data: data}); err != nil {
		h.Logger.Error("encode response", "status", code, "error", err)
	}
}

func (h *Handler) jsonSuccess(w http.ResponseWriter, data any) {
	h.writeJSON(w, http.StatusOK, "success", data)
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, code int) {
	h.writeJSON(w, code, message, nil)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := h.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		h.Logger.ErrorContext(r.Context(), "health check failed", "error", err)
		h.jsonError(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	h.jsonSuccess(w, map[string]string{"status": "ok"})
}
