package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/Aun-shahid/TherapEase/internal/errors"
	"github.com/Aun-shahid/TherapEase/internal/middleware"
	"github.com/Aun-shahid/TherapEase/internal/model"
	"github.com/Aun-shahid/TherapEase/internal/service"
)

type PatientHandler struct {
	accounts  *service.AccountService
	pairing   *service.PairingService
	dashboard *service.DashboardService
}

func NewPatientHandler(
	accounts *service.AccountService,
	pairing *service.PairingService,
	dashboard *service.DashboardService,
) *PatientHandler {
	return &PatientHandler{
		accounts:  accounts,
		pairing:   pairing,
		dashboard: dashboard,
	}
}

func (h *PatientHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.Roster)
	r.Post("/", h.CreatePlaceholder)
	r.Post("/pair", h.Pair)
	r.Get("/pairing-secrets", h.PairingSecrets)

	r.Route("/pairing-requests", func(r chi.Router) {
		r.Get("/", h.ListPairingRequests)
		r.Post("/", h.CreatePairingRequest)
		r.Post("/{requestID}/approve", h.ApprovePairingRequest)
		r.Post("/{requestID}/reject", h.RejectPairingRequest)
	})

	return r
}

// GET /api/patients (therapist)
func (h *PatientHandler) Roster(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user.Role != model.RoleTherapist {
		writeError(w, apperrors.PermissionDenied("Therapist access only"))
		return
	}

	entries, err := h.dashboard.Roster(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"patients": entries})
}

// POST /api/patients (therapist) creates a placeholder patient.
func (h *PatientHandler) CreatePlaceholder(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user.Role != model.RoleTherapist {
		writeError(w, apperrors.PermissionDenied("Therapist access only"))
		return
	}

	var req struct {
		FirstName   string              `json:"firstName"`
		LastName    string              `json:"lastName"`
		PhoneNumber string              `json:"phoneNumber"`
		DateOfBirth *string             `json:"dateOfBirth,omitempty"`
		Gender      *string             `json:"gender,omitempty"`
		Intake      model.PatientIntake `json:"intake"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	in := service.PlaceholderPatientInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		Gender:      req.Gender,
		Intake:      req.Intake,
	}
	if req.DateOfBirth != nil && *req.DateOfBirth != "" {
		dob, err := parseDate(*req.DateOfBirth)
		if err != nil {
			writeError(w, apperrors.InvalidInput("dateOfBirth", "expected YYYY-MM-DD"))
			return
		}
		in.DateOfBirth = &dob
	}

	profile, err := h.accounts.CreatePlaceholderPatient(r.Context(), user.ID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

// POST /api/patients/pair (patient) connects directly via therapist PIN.
func (h *PatientHandler) Pair(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user.Role != model.RolePatient {
		writeError(w, apperrors.PermissionDenied("Patient access only"))
		return
	}

	var req struct {
		TherapistPIN string `json:"therapistPin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.TherapistPIN == "" {
		writeError(w, apperrors.MissingRequired("therapistPin"))
		return
	}

	profile, err := h.pairing.ConnectByPIN(r.Context(), user.ID, req.TherapistPIN)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// GET /api/patients/pairing-secrets (therapist)
func (h *PatientHandler) PairingSecrets(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user.Role != model.RoleTherapist {
		writeError(w, apperrors.PermissionDenied("Therapist access only"))
		return
	}

	secrets, err := h.pairing.Secrets(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, secrets)
}

// GET /api/patients/pairing-requests (therapist)
func (h *PatientHandler) ListPairingRequests(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user.Role != model.RoleTherapist {
		writeError(w, apperrors.PermissionDenied("Therapist access only"))
		return
	}

	requests, err := h.pairing.ListPending(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

// POST /api/patients/pairing-requests (patient) files a request by code.
func (h *PatientHandler) CreatePairingRequest(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user.Role != model.RolePatient {
		writeError(w, apperrors.PermissionDenied("Patient access only"))
		return
	}

	var req struct {
		PairingCode string  `json:"pairingCode"`
		Message     *string `json:"message,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.PairingCode == "" {
		writeError(w, apperrors.MissingRequired("pairingCode"))
		return
	}

	request, err := h.pairing.RequestByCode(r.Context(), user.ID, req.PairingCode, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, request)
}

// POST /api/patients/pairing-requests/{requestID}/approve (therapist)
func (h *PatientHandler) ApprovePairingRequest(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user.Role != model.RoleTherapist {
		writeError(w, apperrors.PermissionDenied("Therapist access only"))
		return
	}

	var req struct {
		Intake *model.PatientIntake `json:"intake,omitempty"`
	}
	if r.Body != nil {
		// intake is optional; approval without a body simply connects
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	profile, err := h.pairing.Approve(r.Context(), user.ID, chi.URLParam(r, "requestID"), req.Intake)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// POST /api/patients/pairing-requests/{requestID}/reject (therapist)
func (h *PatientHandler) RejectPairingRequest(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user.Role != model.RoleTherapist {
		writeError(w, apperrors.PermissionDenied("Therapist access only"))
		return
	}

	var req struct {
		Reason string `json:"reason,omitempty"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.pairing.Reject(r.Context(), user.ID, chi.URLParam(r, "requestID"), req.Reason); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
