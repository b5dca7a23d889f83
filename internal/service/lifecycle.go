package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Aun-shahid/TherapEase/internal/audit"
	"github.com/Aun-shahid/TherapEase/internal/config"
	apperrors "github.com/Aun-shahid/TherapEase/internal/errors"
	"github.com/Aun-shahid/TherapEase/internal/model"
	"github.com/Aun-shahid/TherapEase/internal/repository"
	"github.com/Aun-shahid/TherapEase/internal/util"
)

// RoomNotifier pushes lifecycle events onto a session's realtime room. The
// websocket hub implements it; a nil notifier is a no-op so the service stays
// usable in tests and offline tooling.
type RoomNotifier interface {
	NotifyStatusChanged(roomID string, status model.SessionStatus)
}

// SessionLifecycleService owns every legal status mutation. Status writes go
// through compare-and-set repository methods so two concurrent operations on
// the same session resolve to exactly one winner.
type SessionLifecycleService struct {
	sessions   repository.SessionRepository
	users      repository.UserRepository
	patients   repository.PatientProfileRepository
	therapists repository.TherapistProfileRepository
	notifier   RoomNotifier
}

func NewSessionLifecycleService(
	sessions repository.SessionRepository,
	users repository.UserRepository,
	patients repository.PatientProfileRepository,
	therapists repository.TherapistProfileRepository,
) *SessionLifecycleService {
	return &SessionLifecycleService{
		sessions:   sessions,
		users:      users,
		patients:   patients,
		therapists: therapists,
	}
}

// SetNotifier wires the realtime hub in after construction. The hub needs the
// lifecycle service for control messages, so one of the two is attached late.
func (s *SessionLifecycleService) SetNotifier(n RoomNotifier) {
	s.notifier = n
}

type CreateSessionInput struct {
	PatientUserID           *string
	QuickSessionPatientName *string
	SessionType             model.SessionType
	ScheduledDate           time.Time
	DurationMinutes         int
	Location                *string
	IsOnline                bool
	PatientGoals            *string
	PatientMoodBefore       *int
	ConsentRecording        bool
	ConsentAIAnalysis       bool
	FeeCharged              *float64
}

func (in *CreateSessionInput) validate(now time.Time) error {
	hasPatient := in.PatientUserID != nil && *in.PatientUserID != ""
	hasQuickName := in.QuickSessionPatientName != nil && *in.QuickSessionPatientName != ""
	if hasPatient == hasQuickName {
		return apperrors.ValidationFailed("Exactly one of patient or quick-session patient name must be set")
	}
	if !util.IsValidEnum(string(in.SessionType), model.ValidSessionTypes()) {
		return apperrors.InvalidInput("session_type", "unknown session type")
	}
	if in.DurationMinutes < config.MinSessionDurationMinutes || in.DurationMinutes > config.MaxSessionDurationMinutes {
		return apperrors.InvalidInput("duration_minutes",
			fmt.Sprintf("must be between %d and %d", config.MinSessionDurationMinutes, config.MaxSessionDurationMinutes))
	}
	// Bare dates parse to midnight, so compare against the start of today
	// rather than the current instant.
	if in.ScheduledDate.Before(now.UTC().Truncate(24 * time.Hour)) {
		return apperrors.InvalidInput("scheduled_date", "cannot be in the past")
	}
	if in.ScheduledDate.After(now.AddDate(0, 0, config.MaxScheduleAdvanceDays)) {
		return apperrors.InvalidInput("scheduled_date",
			fmt.Sprintf("cannot be more than %d days ahead", config.MaxScheduleAdvanceDays))
	}
	if err := validateRating("patient_mood_before", in.PatientMoodBefore); err != nil {
		return err
	}
	return nil
}

func validateRating(field string, value *int) error {
	if value == nil {
		return nil
	}
	if *value < config.MinRatingValue || *value > config.MaxRatingValue {
		return apperrors.InvalidInput(field,
			fmt.Sprintf("must be between %d and %d", config.MinRatingValue, config.MaxRatingValue))
	}
	return nil
}

// Create schedules a session on behalf of the owning therapist. Quick
// sessions carry only a display name and defer session numbering until a
// patient is assigned.
func (s *SessionLifecycleService) Create(ctx context.Context, therapistUserID string, in CreateSessionInput) (*model.Session, error) {
	now := time.Now()
	if err := in.validate(now); err != nil {
		return nil, err
	}

	if in.PatientUserID != nil && *in.PatientUserID != "" {
		patient, err := s.users.FindByID(ctx, *in.PatientUserID)
		if err != nil {
			return nil, fmt.Errorf("find patient: %w", err)
		}
		if patient == nil || patient.Role != model.RolePatient {
			return nil, apperrors.NotFound("Patient")
		}
	}

	roomID, err := util.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generate room id: %w", err)
	}

	params := model.CreateSessionParams{
		PatientID:               in.PatientUserID,
		TherapistID:             therapistUserID,
		SessionType:             in.SessionType,
		Status:                  model.StatusUpcoming,
		ScheduledDate:           in.ScheduledDate,
		DurationMinutes:         in.DurationMinutes,
		Location:                in.Location,
		IsOnline:                in.IsOnline,
		PatientGoals:            in.PatientGoals,
		PatientMoodBefore:       in.PatientMoodBefore,
		ConsentRecording:        in.ConsentRecording,
		ConsentAIAnalysis:       in.ConsentAIAnalysis,
		QuickSessionPatientName: in.QuickSessionPatientName,
		RoomID:                  roomID,
		FeeCharged:              in.FeeCharged,
	}
	session, err := s.sessions.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventSessionCreate,
		UserID:    therapistUserID,
		SessionID: session.ID,
		Details:   map[string]interface{}{"quick_session": session.IsQuickSession},
	})
	return session, nil
}

// Request creates a patient-initiated session in the requested state. The
// patient must already be connected to the named therapist; Start doubles as
// the therapist's approval.
func (s *SessionLifecycleService) Request(ctx context.Context, patientUserID, therapistUserID string, in CreateSessionInput) (*model.Session, error) {
	now := time.Now()
	in.PatientUserID = &patientUserID
	in.QuickSessionPatientName = nil
	if err := in.validate(now); err != nil {
		return nil, err
	}

	profile, err := s.patients.FindByUserID(ctx, patientUserID)
	if err != nil {
		return nil, fmt.Errorf("find patient profile: %w", err)
	}
	if profile == nil || profile.TherapistID == nil {
		return nil, apperrors.PermissionDenied("You are not connected to a therapist")
	}

	therapist, err := s.therapists.FindByUserID(ctx, therapistUserID)
	if err != nil {
		return nil, fmt.Errorf("find therapist profile: %w", err)
	}
	if therapist == nil {
		return nil, apperrors.NotFound("Therapist")
	}
	if *profile.TherapistID != therapist.ID {
		return nil, apperrors.PermissionDenied("You are not connected to this therapist")
	}

	roomID, err := util.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generate room id: %w", err)
	}

	session, err := s.sessions.Create(ctx, model.CreateSessionParams{
		PatientID:         &patientUserID,
		TherapistID:       therapistUserID,
		SessionType:       in.SessionType,
		Status:            model.StatusRequested,
		ScheduledDate:     in.ScheduledDate,
		DurationMinutes:   in.DurationMinutes,
		Location:          in.Location,
		IsOnline:          in.IsOnline,
		PatientGoals:      in.PatientGoals,
		PatientMoodBefore: in.PatientMoodBefore,
		ConsentRecording:  in.ConsentRecording,
		ConsentAIAnalysis: in.ConsentAIAnalysis,
		RoomID:            roomID,
	})
	if err != nil {
		return nil, fmt.Errorf("create session request: %w", err)
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventSessionCreate,
		UserID:    patientUserID,
		SessionID: session.ID,
		Details:   map[string]interface{}{"requested": true},
	})
	return session, nil
}

// Get returns a session readable by the caller: the owning therapist or the
// assigned patient.
func (s *SessionLifecycleService) Get(ctx context.Context, sessionID, actorUserID string) (*model.Session, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}
	if !canRead(session, actorUserID) {
		return nil, apperrors.PermissionDenied("You do not have access to this session")
	}
	return session, nil
}

func canRead(session *model.Session, userID string) bool {
	if session.TherapistID == userID {
		return true
	}
	return session.PatientID != nil && *session.PatientID == userID
}

// owned loads the session and enforces the lifecycle authorization invariant:
// only the owning therapist may mutate.
func (s *SessionLifecycleService) owned(ctx context.Context, sessionID, therapistUserID string) (*model.Session, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}
	if session.TherapistID != therapistUserID {
		return nil, apperrors.PermissionDenied("Only the owning therapist may modify this session")
	}
	return session, nil
}

// invalidTransition re-reads the session after a lost compare-and-set so the
// error names the status actually in effect.
func (s *SessionLifecycleService) invalidTransition(ctx context.Context, sessionID string, stale model.SessionStatus) error {
	current := stale
	if fresh, err := s.sessions.FindByID(ctx, sessionID); err == nil && fresh != nil {
		current = fresh.Status
	}
	return apperrors.InvalidTransition(string(current), model.AllowedTargets(current))
}

// Start launches a session, doubling as approval for requested ones.
func (s *SessionLifecycleService) Start(ctx context.Context, sessionID, actorUserID string) (*model.Session, error) {
	session, err := s.owned(ctx, sessionID, actorUserID)
	if err != nil {
		return nil, err
	}

	ok, err := s.sessions.MarkStarted(ctx, sessionID, model.StartableStatuses(), time.Now())
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	if !ok {
		return nil, s.invalidTransition(ctx, sessionID, session.Status)
	}

	if s.notifier != nil {
		s.notifier.NotifyStatusChanged(session.RoomID, model.StatusInProgress)
	}
	audit.Log(ctx, audit.Event{Type: audit.EventSessionStart, UserID: actorUserID, SessionID: sessionID})

	return s.sessions.FindByID(ctx, sessionID)
}

// End completes an in-progress session, applying optional wrap-up fields.
func (s *SessionLifecycleService) End(ctx context.Context, sessionID, actorUserID string, params model.EndSessionParams) (*model.Session, error) {
	session, err := s.owned(ctx, sessionID, actorUserID)
	if err != nil {
		return nil, err
	}
	if err := validateRating("patient_mood_after", params.PatientMoodAfter); err != nil {
		return nil, err
	}
	if err := validateRating("session_effectiveness", params.SessionEffectiveness); err != nil {
		return nil, err
	}

	ok, err := s.sessions.MarkEnded(ctx, sessionID, params, time.Now())
	if err != nil {
		return nil, fmt.Errorf("end session: %w", err)
	}
	if !ok {
		return nil, s.invalidTransition(ctx, sessionID, session.Status)
	}

	if s.notifier != nil {
		s.notifier.NotifyStatusChanged(session.RoomID, model.StatusCompleted)
	}
	audit.Log(ctx, audit.Event{Type: audit.EventSessionEnd, UserID: actorUserID, SessionID: sessionID})

	return s.sessions.FindByID(ctx, sessionID)
}

// Cancel aborts an upcoming or in-progress session, recording the reason at
// the head of the notes.
func (s *SessionLifecycleService) Cancel(ctx context.Context, sessionID, actorUserID string, reason string) (*model.Session, error) {
	session, err := s.owned(ctx, sessionID, actorUserID)
	if err != nil {
		return nil, err
	}

	notePrefix := ""
	if reason != "" {
		notePrefix = "Cancelled: " + reason
	}
	ok, err := s.sessions.MarkCancelled(ctx, sessionID, model.CancellableStatuses(), notePrefix, time.Now())
	if err != nil {
		return nil, fmt.Errorf("cancel session: %w", err)
	}
	if !ok {
		return nil, s.invalidTransition(ctx, sessionID, session.Status)
	}

	if s.notifier != nil {
		s.notifier.NotifyStatusChanged(session.RoomID, model.StatusCancelled)
	}
	audit.Log(ctx, audit.Event{Type: audit.EventSessionCancel, UserID: actorUserID, SessionID: sessionID})

	return s.sessions.FindByID(ctx, sessionID)
}

// Reschedule moves a session to a new date, recording the reason in notes.
func (s *SessionLifecycleService) Reschedule(ctx context.Context, sessionID, actorUserID string, newDate time.Time, reason string) (*model.Session, error) {
	session, err := s.owned(ctx, sessionID, actorUserID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if newDate.After(now.AddDate(0, 0, config.MaxScheduleAdvanceDays)) {
		return nil, apperrors.InvalidInput("new_date",
			fmt.Sprintf("cannot be more than %d days ahead", config.MaxScheduleAdvanceDays))
	}

	notePrefix := ""
	if reason != "" {
		notePrefix = "Rescheduled: " + reason
	}
	ok, err := s.sessions.MarkRescheduled(ctx, sessionID, model.ReschedulableStatuses(), newDate, notePrefix, now)
	if err != nil {
		return nil, fmt.Errorf("reschedule session: %w", err)
	}
	if !ok {
		return nil, s.invalidTransition(ctx, sessionID, session.Status)
	}

	return s.sessions.FindByID(ctx, sessionID)
}

// AssignPatient converts a quick session into a regular one. The store
// assigns the next session number for the (patient, therapist) pair.
func (s *SessionLifecycleService) AssignPatient(ctx context.Context, sessionID, actorUserID, patientUserID string) (*model.Session, error) {
	session, err := s.owned(ctx, sessionID, actorUserID)
	if err != nil {
		return nil, err
	}
	if !session.IsQuickSession || session.PatientID != nil {
		return nil, apperrors.New(apperrors.ErrCodeConflict, "Session already has an assigned patient")
	}

	patient, err := s.users.FindByID(ctx, patientUserID)
	if err != nil {
		return nil, fmt.Errorf("find patient: %w", err)
	}
	if patient == nil || patient.Role != model.RolePatient {
		return nil, apperrors.NotFound("Patient")
	}

	ok, err := s.sessions.AssignPatient(ctx, sessionID, patientUserID)
	if err != nil {
		return nil, fmt.Errorf("assign patient: %w", err)
	}
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeConflict, "Session already has an assigned patient")
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("patientId", patientUserID).
		Msg("quick session assigned to patient")

	return s.sessions.FindByID(ctx, sessionID)
}

// UpdateNotes applies clinical note edits. Completed sessions stay editable
// so therapists can finish documentation after the fact.
func (s *SessionLifecycleService) UpdateNotes(ctx context.Context, sessionID, actorUserID string, params model.UpdateNotesParams) (*model.Session, error) {
	if _, err := s.owned(ctx, sessionID, actorUserID); err != nil {
		return nil, err
	}
	if err := validateRating("patient_mood_before", params.PatientMoodBefore); err != nil {
		return nil, err
	}
	if err := validateRating("patient_mood_after", params.PatientMoodAfter); err != nil {
		return nil, err
	}
	if err := validateRating("session_effectiveness", params.SessionEffectiveness); err != nil {
		return nil, err
	}

	if err := s.sessions.UpdateNotes(ctx, sessionID, params); err != nil {
		return nil, fmt.Errorf("update notes: %w", err)
	}
	return s.sessions.FindByID(ctx, sessionID)
}

// Delete removes a session that never ran. Completed sessions are part of
// the clinical record and in-progress ones must be ended or cancelled first.
func (s *SessionLifecycleService) Delete(ctx context.Context, sessionID, actorUserID string) error {
	session, err := s.owned(ctx, sessionID, actorUserID)
	if err != nil {
		return err
	}
	if session.Status == model.StatusCompleted || session.Status == model.StatusInProgress {
		return apperrors.InvalidTransition(string(session.Status), nil)
	}

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	audit.Log(ctx, audit.Event{Type: audit.EventSessionDelete, UserID: actorUserID, SessionID: sessionID})
	return nil
}

// List returns the therapist's sessions narrowed by the filter.
func (s *SessionLifecycleService) List(ctx context.Context, therapistUserID string, filter model.SessionFilter) ([]model.Session, error) {
	return s.sessions.ListByTherapist(ctx, therapistUserID, filter)
}

// ListForPatient returns the patient's own session history.
func (s *SessionLifecycleService) ListForPatient(ctx context.Context, patientUserID string) ([]model.Session, error) {
	return s.sessions.ListByPatient(ctx, patientUserID)
}

// ListUpcoming returns the caller's next sessions in chronological order.
func (s *SessionLifecycleService) ListUpcoming(ctx context.Context, userID string, role model.UserRole, limit int) ([]model.Session, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return s.sessions.ListUpcoming(ctx, userID, role, limit)
}

// ListPast returns the therapist's concluded sessions, optionally narrowed
// to one patient.
func (s *SessionLifecycleService) ListPast(ctx context.Context, therapistUserID string, patientUserID *string) ([]model.Session, error) {
	return s.sessions.ListPast(ctx, therapistUserID, patientUserID)
}

// Stats aggregates the therapist's sessions since the given time.
func (s *SessionLifecycleService) Stats(ctx context.Context, therapistUserID string, since time.Time) (*model.SessionStats, error) {
	return s.sessions.Stats(ctx, therapistUserID, since)
}
