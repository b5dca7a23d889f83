package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/Aun-shahid/TherapEase/internal/errors"
	"github.com/Aun-shahid/TherapEase/internal/middleware"
	"github.com/Aun-shahid/TherapEase/internal/model"
	"github.com/Aun-shahid/TherapEase/internal/service"
)

type DashboardHandler struct {
	dashboard *service.DashboardService
}

func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/therapist", h.Therapist)
	r.Get("/patient", h.Patient)

	return r
}

// GET /api/dashboard/therapist
func (h *DashboardHandler) Therapist(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user.Role != model.RoleTherapist {
		writeError(w, apperrors.PermissionDenied("Therapist access only"))
		return
	}

	dashboard, err := h.dashboard.Therapist(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

// GET /api/dashboard/patient
func (h *DashboardHandler) Patient(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user.Role != model.RolePatient {
		writeError(w, apperrors.PermissionDenied("Patient access only"))
		return
	}

	dashboard, err := h.dashboard.Patient(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}
