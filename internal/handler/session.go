package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/Aun-shahid/TherapEase/internal/errors"
	"github.com/Aun-shahid/TherapEase/internal/middleware"
	"github.com/Aun-shahid/TherapEase/internal/model"
	"github.com/Aun-shahid/TherapEase/internal/service"
)

type SessionHandler struct {
	lifecycle *service.SessionLifecycleService
}

func NewSessionHandler(lifecycle *service.SessionLifecycleService) *SessionHandler {
	return &SessionHandler{lifecycle: lifecycle}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/request", h.Request)
	r.Get("/upcoming", h.Upcoming)
	r.Get("/past", h.Past)
	r.Get("/stats", h.Stats)

	r.Route("/{sessionID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
		r.Post("/start", h.Start)
		r.Post("/end", h.End)
		r.Post("/cancel", h.Cancel)
		r.Post("/reschedule", h.Reschedule)
		r.Post("/assign-patient", h.AssignPatient)
		r.Patch("/notes", h.UpdateNotes)
	})

	return r
}

type createSessionRequest struct {
	PatientID               *string  `json:"patientId,omitempty"`
	QuickSessionPatientName *string  `json:"quickSessionPatientName,omitempty"`
	SessionType             string   `json:"sessionType"`
	ScheduledDate           string   `json:"scheduledDate"`
	DurationMinutes         int      `json:"durationMinutes"`
	Location                *string  `json:"location,omitempty"`
	IsOnline                bool     `json:"isOnline"`
	PatientGoals            *string  `json:"patientGoals,omitempty"`
	PatientMoodBefore       *int     `json:"patientMoodBefore,omitempty"`
	ConsentRecording        bool     `json:"consentRecording"`
	ConsentAIAnalysis       bool     `json:"consentAiAnalysis"`
	FeeCharged              *float64 `json:"feeCharged,omitempty"`
}

func (req *createSessionRequest) toInput() (service.CreateSessionInput, error) {
	scheduled, err := parseDate(req.ScheduledDate)
	if err != nil {
		return service.CreateSessionInput{}, apperrors.InvalidInput("scheduledDate", "expected an RFC 3339 timestamp")
	}
	return service.CreateSessionInput{
		PatientUserID:           req.PatientID,
		QuickSessionPatientName: req.QuickSessionPatientName,
		SessionType:             model.SessionType(req.SessionType),
		ScheduledDate:           scheduled,
		DurationMinutes:         req.DurationMinutes,
		Location:                req.Location,
		IsOnline:                req.IsOnline,
		PatientGoals:            req.PatientGoals,
		PatientMoodBefore:       req.PatientMoodBefore,
		ConsentRecording:        req.ConsentRecording,
		ConsentAIAnalysis:       req.ConsentAIAnalysis,
		FeeCharged:              req.FeeCharged,
	}, nil
}

// POST /api/sessions (therapist)
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user.Role != model.RoleTherapist {
		writeError(w, apperrors.PermissionDenied("Only therapists may schedule sessions"))
		return
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, err)
		return
	}

	session, err := h.lifecycle.Create(r.Context(), user.ID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// POST /api/sessions/request (patient)
func (h *SessionHandler) Request(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user.Role != model.RolePatient {
		writeError(w, apperrors.PermissionDenied("Only patients may request sessions"))
		return
	}

	var req struct {
		createSessionRequest
		TherapistID string `json:"therapistId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.TherapistID == "" {
		writeError(w, apperrors.MissingRequired("therapistId"))
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, err)
		return
	}

	session, err := h.lifecycle.Request(r.Context(), user.ID, req.TherapistID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// GET /api/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	if user.Role == model.RolePatient {
		sessions, err := h.lifecycle.ListForPatient(r.Context(), user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
		return
	}

	filter := model.SessionFilter{}
	q := r.URL.Query()
	if v := q.Get("status"); v != "" {
		status := model.SessionStatus(v)
		filter.Status = &status
	}
	if v := q.Get("patientId"); v != "" {
		filter.PatientID = &v
	}
	if v := q.Get("from"); v != "" {
		if t, err := parseDate(v); err == nil {
			filter.From = &t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := parseDate(v); err == nil {
			filter.To = &t
		}
	}

	sessions, err := h.lifecycle.List(r.Context(), user.ID, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// GET /api/sessions/upcoming
func (h *SessionHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	sessions, err := h.lifecycle.ListUpcoming(r.Context(), user.ID, user.Role, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// GET /api/sessions/past (therapist)
func (h *SessionHandler) Past(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user.Role != model.RoleTherapist {
		writeError(w, apperrors.PermissionDenied("Therapist access only"))
		return
	}

	var patientID *string
	if v := r.URL.Query().Get("patientId"); v != "" {
		patientID = &v
	}
	sessions, err := h.lifecycle.ListPast(r.Context(), user.ID, patientID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// GET /api/sessions/stats (therapist)
func (h *SessionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user.Role != model.RoleTherapist {
		writeError(w, apperrors.PermissionDenied("Therapist access only"))
		return
	}

	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if days <= 0 || days > 365 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)

	stats, err := h.lifecycle.Stats(r.Context(), user.ID, since)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GET /api/sessions/{sessionID}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	session, err := h.lifecycle.Get(r.Context(), chi.URLParam(r, "sessionID"), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(session))
}

// sessionResponse decorates a session with its derived read-only values.
func sessionResponse(session *model.Session) map[string]any {
	return map[string]any{
		"session":               session,
		"actualDurationMinutes": session.ActualDurationMinutes(),
		"isOverdue":             session.IsOverdue(time.Now()),
		"moodImprovement":       session.MoodImprovement(),
	}
}

// POST /api/sessions/{sessionID}/start
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	session, err := h.lifecycle.Start(r.Context(), chi.URLParam(r, "sessionID"), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// POST /api/sessions/{sessionID}/end
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req struct {
		SessionNotes         *string `json:"sessionNotes,omitempty"`
		PatientMoodAfter     *int    `json:"patientMoodAfter,omitempty"`
		HomeworkAssigned     *string `json:"homeworkAssigned,omitempty"`
		NextSessionGoals     *string `json:"nextSessionGoals,omitempty"`
		SessionEffectiveness *int    `json:"sessionEffectiveness,omitempty"`
	}
	if r.Body != nil {
		// all wrap-up fields are optional; an empty body ends the session bare
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	session, err := h.lifecycle.End(r.Context(), chi.URLParam(r, "sessionID"), user.ID, model.EndSessionParams{
		SessionNotes:         req.SessionNotes,
		PatientMoodAfter:     req.PatientMoodAfter,
		HomeworkAssigned:     req.HomeworkAssigned,
		NextSessionGoals:     req.NextSessionGoals,
		SessionEffectiveness: req.SessionEffectiveness,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// POST /api/sessions/{sessionID}/cancel
func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req struct {
		Reason string `json:"reason,omitempty"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	session, err := h.lifecycle.Cancel(r.Context(), chi.URLParam(r, "sessionID"), user.ID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// POST /api/sessions/{sessionID}/reschedule
func (h *SessionHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req struct {
		NewDate string `json:"newDate"`
		Reason  string `json:"reason,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	newDate, err := parseDate(req.NewDate)
	if err != nil {
		writeError(w, apperrors.InvalidInput("newDate", "expected an RFC 3339 timestamp"))
		return
	}

	session, err := h.lifecycle.Reschedule(r.Context(), chi.URLParam(r, "sessionID"), user.ID, newDate, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// POST /api/sessions/{sessionID}/assign-patient
func (h *SessionHandler) AssignPatient(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req struct {
		PatientID string `json:"patientId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.PatientID == "" {
		writeError(w, apperrors.MissingRequired("patientId"))
		return
	}

	session, err := h.lifecycle.AssignPatient(r.Context(), chi.URLParam(r, "sessionID"), user.ID, req.PatientID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// PATCH /api/sessions/{sessionID}/notes
func (h *SessionHandler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req struct {
		SessionNotes          *string `json:"sessionNotes,omitempty"`
		PatientGoals          *string `json:"patientGoals,omitempty"`
		HomeworkAssigned      *string `json:"homeworkAssigned,omitempty"`
		NextSessionGoals      *string `json:"nextSessionGoals,omitempty"`
		TherapistObservations *string `json:"therapistObservations,omitempty"`
		PatientMoodBefore     *int    `json:"patientMoodBefore,omitempty"`
		PatientMoodAfter      *int    `json:"patientMoodAfter,omitempty"`
		SessionEffectiveness  *int    `json:"sessionEffectiveness,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	session, err := h.lifecycle.UpdateNotes(r.Context(), chi.URLParam(r, "sessionID"), user.ID, model.UpdateNotesParams{
		SessionNotes:          req.SessionNotes,
		PatientGoals:          req.PatientGoals,
		HomeworkAssigned:      req.HomeworkAssigned,
		NextSessionGoals:      req.NextSessionGoals,
		TherapistObservations: req.TherapistObservations,
		PatientMoodBefore:     req.PatientMoodBefore,
		PatientMoodAfter:      req.PatientMoodAfter,
		SessionEffectiveness:  req.SessionEffectiveness,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// DELETE /api/sessions/{sessionID}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if err := h.lifecycle.Delete(r.Context(), chi.URLParam(r, "sessionID"), user.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
