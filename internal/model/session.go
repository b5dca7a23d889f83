package model

import (
	"encoding/json"
	"time"
)

type SessionStatus string

const (
	StatusRequested   SessionStatus = "requested"
	StatusUpcoming    SessionStatus = "upcoming"
	StatusInProgress  SessionStatus = "in_progress"
	StatusCompleted   SessionStatus = "completed"
	StatusCancelled   SessionStatus = "cancelled"
	StatusRescheduled SessionStatus = "rescheduled"
	StatusNoShow      SessionStatus = "no_show"
)

// statusTransitions is the base legal transition table. REQUESTED is an
// entry state reachable only from patient-initiated creation; it leaves via
// Start, which doubles as the therapist's approval of the request.
var statusTransitions = map[SessionStatus][]SessionStatus{
	StatusRequested:   {StatusInProgress},
	StatusUpcoming:    {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress:  {StatusCompleted, StatusCancelled},
	StatusCompleted:   {},
	StatusCancelled:   {StatusUpcoming},
	StatusRescheduled: {StatusUpcoming, StatusInProgress},
	StatusNoShow:      {StatusUpcoming},
}

// StartableStatuses are the states from which Start (the approval+launch
// operation) is permitted.
func StartableStatuses() []SessionStatus {
	return []SessionStatus{StatusUpcoming, StatusRescheduled, StatusRequested}
}

// CancellableStatuses are the states from which Cancel is permitted.
func CancellableStatuses() []SessionStatus {
	return []SessionStatus{StatusUpcoming, StatusInProgress}
}

// ReschedulableStatuses are the states from which Reschedule is permitted.
// A session mid-flight or already completed cannot move to a new date.
func ReschedulableStatuses() []SessionStatus {
	return []SessionStatus{StatusRequested, StatusUpcoming, StatusCancelled, StatusNoShow, StatusRescheduled}
}

func CanTransition(from, to SessionStatus) bool {
	for _, t := range statusTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

func AllowedTargets(from SessionStatus) []string {
	targets := statusTransitions[from]
	out := make([]string, len(targets))
	for i, t := range targets {
		out[i] = string(t)
	}
	return out
}

// IsTerminal reports whether no further lifecycle operations apply.
func (s SessionStatus) IsTerminal() bool {
	return s == StatusCompleted
}

// IsActive reports whether the realtime channel accepts messages for a
// session in this state.
func (s SessionStatus) IsActive() bool {
	switch s {
	case StatusRequested, StatusUpcoming, StatusRescheduled, StatusInProgress:
		return true
	}
	return false
}

type Session struct {
	ID              string        `db:"id" json:"id"`
	PatientID       *string       `db:"patient_id" json:"patientId,omitempty"`
	TherapistID     string        `db:"therapist_id" json:"therapistId"`
	SessionNumber   *int          `db:"session_number" json:"sessionNumber,omitempty"`
	SessionType     SessionType   `db:"session_type" json:"sessionType"`
	Status          SessionStatus `db:"status" json:"status"`
	ScheduledDate   time.Time     `db:"scheduled_date" json:"scheduledDate"`
	ActualStartTime *time.Time    `db:"actual_start_time" json:"actualStartTime,omitempty"`
	ActualEndTime   *time.Time    `db:"actual_end_time" json:"actualEndTime,omitempty"`
	DurationMinutes int           `db:"duration_minutes" json:"durationMinutes"`
	Location        *string       `db:"location" json:"location,omitempty"`
	IsOnline        bool          `db:"is_online" json:"isOnline"`

	SessionNotes          *string `db:"session_notes" json:"sessionNotes,omitempty"`
	PatientGoals          *string `db:"patient_goals" json:"patientGoals,omitempty"`
	HomeworkAssigned      *string `db:"homework_assigned" json:"homeworkAssigned,omitempty"`
	NextSessionGoals      *string `db:"next_session_goals" json:"nextSessionGoals,omitempty"`
	TherapistObservations *string `db:"therapist_observations" json:"therapistObservations,omitempty"`

	PatientMoodBefore    *int `db:"patient_mood_before" json:"patientMoodBefore,omitempty"`
	PatientMoodAfter     *int `db:"patient_mood_after" json:"patientMoodAfter,omitempty"`
	SessionEffectiveness *int `db:"session_effectiveness" json:"sessionEffectiveness,omitempty"`

	ConsentRecording  bool `db:"consent_recording" json:"consentRecording"`
	ConsentAIAnalysis bool `db:"consent_ai_analysis" json:"consentAiAnalysis"`

	IsQuickSession          bool    `db:"is_quick_session" json:"isQuickSession"`
	QuickSessionPatientName *string `db:"quick_session_patient_name" json:"quickSessionPatientName,omitempty"`

	RoomID     string `db:"room_id" json:"roomId"`
	RoomActive bool   `db:"room_active" json:"roomActive"`

	// AI annotation fields are written asynchronously by the external
	// transcription pipeline and are read-only here.
	AIKeyTopics       *json.RawMessage `db:"ai_key_topics" json:"aiKeyTopics,omitempty"`
	AISentimentScore  *float64         `db:"ai_sentiment_score" json:"aiSentimentScore,omitempty"`
	AIMoodAnalysis    *json.RawMessage `db:"ai_mood_analysis" json:"aiMoodAnalysis,omitempty"`
	AIRecommendations *string          `db:"ai_recommendations" json:"aiRecommendations,omitempty"`
	TranscriptionID   *string          `db:"transcription_id" json:"transcriptionId,omitempty"`

	FeeCharged    *float64      `db:"fee_charged" json:"feeCharged,omitempty"`
	PaymentStatus PaymentStatus `db:"payment_status" json:"paymentStatus"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// ActualDurationMinutes returns the recorded wall-clock length of the
// session, or nil if it has not both started and ended.
func (s *Session) ActualDurationMinutes() *int {
	if s.ActualStartTime == nil || s.ActualEndTime == nil {
		return nil
	}
	minutes := int(s.ActualEndTime.Sub(*s.ActualStartTime).Minutes())
	return &minutes
}

// IsOverdue reports whether an upcoming session's scheduled time has passed.
func (s *Session) IsOverdue(now time.Time) bool {
	return s.Status == StatusUpcoming && s.ScheduledDate.Before(now)
}

// MoodImprovement returns mood_after - mood_before when both are recorded.
func (s *Session) MoodImprovement() *int {
	if s.PatientMoodBefore == nil || s.PatientMoodAfter == nil {
		return nil
	}
	diff := *s.PatientMoodAfter - *s.PatientMoodBefore
	return &diff
}

// PatientDisplayName resolves the name shown for this session's patient,
// falling back to the quick-session name when no patient is assigned.
func (s *Session) PatientDisplayName(patient *User) string {
	if s.PatientID != nil && patient != nil {
		return patient.FullName()
	}
	if s.QuickSessionPatientName != nil {
		return *s.QuickSessionPatientName
	}
	return ""
}

type CreateSessionParams struct {
	PatientID               *string
	TherapistID             string
	SessionType             SessionType
	Status                  SessionStatus
	ScheduledDate           time.Time
	DurationMinutes         int
	Location                *string
	IsOnline                bool
	PatientGoals            *string
	PatientMoodBefore       *int
	ConsentRecording        bool
	ConsentAIAnalysis       bool
	QuickSessionPatientName *string
	RoomID                  string
	FeeCharged              *float64
}

// EndSessionParams carries the optional wrap-up fields applied by End.
type EndSessionParams struct {
	SessionNotes         *string
	PatientMoodAfter     *int
	HomeworkAssigned     *string
	NextSessionGoals     *string
	SessionEffectiveness *int
}

// UpdateNotesParams carries the fields a therapist may edit during or after
// a session.
type UpdateNotesParams struct {
	SessionNotes          *string
	PatientGoals          *string
	HomeworkAssigned      *string
	NextSessionGoals      *string
	TherapistObservations *string
	PatientMoodBefore     *int
	PatientMoodAfter      *int
	SessionEffectiveness  *int
}

// SessionFilter narrows therapist session listings.
type SessionFilter struct {
	Status    *SessionStatus
	PatientID *string
	From      *time.Time
	To        *time.Time
}

// SessionStats aggregates a therapist's sessions over a reporting window.
type SessionStats struct {
	TotalSessions        int            `json:"totalSessions"`
	CompletedSessions    int            `json:"completedSessions"`
	CancelledSessions    int            `json:"cancelledSessions"`
	NoShowSessions       int            `json:"noShowSessions"`
	UpcomingSessions     int            `json:"upcomingSessions"`
	TotalPatients        int            `json:"totalPatients"`
	AverageEffectiveness *float64       `json:"averageEffectiveness,omitempty"`
	SessionsByStatus     map[string]int `json:"sessionsByStatus"`
	SessionsByType       map[string]int `json:"sessionsByType"`
}
