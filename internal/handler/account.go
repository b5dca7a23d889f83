package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/Aun-shahid/TherapEase/internal/errors"
	"github.com/Aun-shahid/TherapEase/internal/middleware"
	"github.com/Aun-shahid/TherapEase/internal/service"
)

type AccountHandler struct {
	accounts *service.AccountService
}

func NewAccountHandler(accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// Routes are the unauthenticated entry points.
func (h *AccountHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/register/patient", h.RegisterPatient)
	r.Post("/register/therapist", h.RegisterTherapist)
	r.Post("/login", h.Login)

	return r
}

type registerRequest struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
	DateOfBirth *string `json:"dateOfBirth,omitempty"`
	Gender      *string `json:"gender,omitempty"`
}

func (req *registerRequest) toInput() (service.RegisterInput, error) {
	in := service.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		Gender:      req.Gender,
	}
	if req.DateOfBirth != nil && *req.DateOfBirth != "" {
		dob, err := parseDate(*req.DateOfBirth)
		if err != nil {
			return in, apperrors.InvalidInput("dateOfBirth", "expected YYYY-MM-DD")
		}
		in.DateOfBirth = &dob
	}
	return in, nil
}

// POST /api/auth/register/patient
func (h *AccountHandler) RegisterPatient(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.accounts.RegisterPatient(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// POST /api/auth/register/therapist
func (h *AccountHandler) RegisterTherapist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		registerRequest
		LicenseNumber     string  `json:"licenseNumber"`
		Specialization    string  `json:"specialization"`
		ClinicName        *string `json:"clinicName,omitempty"`
		YearsOfExperience int     `json:"yearsOfExperience"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	base, err := req.toInput()
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.accounts.RegisterTherapist(r.Context(), service.TherapistRegisterInput{
		RegisterInput:     base,
		LicenseNumber:     req.LicenseNumber,
		Specialization:    req.Specialization,
		ClinicName:        req.ClinicName,
		YearsOfExperience: req.YearsOfExperience,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// POST /api/auth/login
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	result, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GET /api/auth/me (authenticated)
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, user)
}
