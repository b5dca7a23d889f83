package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Aun-shahid/TherapEase/internal/errors"
	"github.com/Aun-shahid/TherapEase/internal/model"
	"github.com/Aun-shahid/TherapEase/internal/repository"
)

// DashboardService assembles the read-only summary views for both roles.
type DashboardService struct {
	users      repository.UserRepository
	patients   repository.PatientProfileRepository
	therapists repository.TherapistProfileRepository
	sessions   repository.SessionRepository
	requests   repository.PatientPairingRequestRepository
}

func NewDashboardService(
	users repository.UserRepository,
	patients repository.PatientProfileRepository,
	therapists repository.TherapistProfileRepository,
	sessions repository.SessionRepository,
	requests repository.PatientPairingRequestRepository,
) *DashboardService {
	return &DashboardService{
		users:      users,
		patients:   patients,
		therapists: therapists,
		sessions:   sessions,
		requests:   requests,
	}
}

type TherapistDashboard struct {
	PatientCount     int                           `json:"patientCount"`
	MaxPatients      int                           `json:"maxPatients"`
	PendingRequests  []model.PatientPairingRequest `json:"pendingRequests"`
	UpcomingSessions []model.Session               `json:"upcomingSessions"`
	Stats            *model.SessionStats           `json:"stats"`
	StatsWindowDays  int                           `json:"statsWindowDays"`
}

type PatientDashboard struct {
	Profile          *model.PatientProfile `json:"profile"`
	Connected        bool                  `json:"connected"`
	UpcomingSessions []model.Session       `json:"upcomingSessions"`
	RecentSessions   []model.Session       `json:"recentSessions"`
}

const statsWindowDays = 30

func (s *DashboardService) Therapist(ctx context.Context, therapistUserID string) (*TherapistDashboard, error) {
	profile, err := s.therapists.FindByUserID(ctx, therapistUserID)
	if err != nil {
		return nil, fmt.Errorf("find therapist profile: %w", err)
	}
	if profile == nil {
		return nil, errors.NotFound("Therapist profile")
	}

	count, err := s.patients.CountByTherapist(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("count patients: %w", err)
	}
	pending, err := s.requests.ListPendingByTherapist(ctx, therapistUserID)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	upcoming, err := s.sessions.ListUpcoming(ctx, therapistUserID, model.RoleTherapist, 10)
	if err != nil {
		return nil, fmt.Errorf("list upcoming: %w", err)
	}
	since := time.Now().AddDate(0, 0, -statsWindowDays)
	stats, err := s.sessions.Stats(ctx, therapistUserID, since)
	if err != nil {
		return nil, fmt.Errorf("session stats: %w", err)
	}

	return &TherapistDashboard{
		PatientCount:     count,
		MaxPatients:      profile.MaxPatients,
		PendingRequests:  pending,
		UpcomingSessions: upcoming,
		Stats:            stats,
		StatsWindowDays:  statsWindowDays,
	}, nil
}

func (s *DashboardService) Patient(ctx context.Context, patientUserID string) (*PatientDashboard, error) {
	profile, err := s.patients.FindByUserID(ctx, patientUserID)
	if err != nil {
		return nil, fmt.Errorf("find patient profile: %w", err)
	}

	upcoming, err := s.sessions.ListUpcoming(ctx, patientUserID, model.RolePatient, 10)
	if err != nil {
		return nil, fmt.Errorf("list upcoming: %w", err)
	}
	recent, err := s.sessions.ListByPatient(ctx, patientUserID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if len(recent) > 10 {
		recent = recent[:10]
	}

	return &PatientDashboard{
		Profile:          profile,
		Connected:        profile != nil && profile.TherapistID != nil,
		UpcomingSessions: upcoming,
		RecentSessions:   recent,
	}, nil
}

// Roster lists a therapist's connected patients with their display names.
type RosterEntry struct {
	Profile model.PatientProfile `json:"profile"`
	Name    string               `json:"name"`
	Phone   *string              `json:"phone,omitempty"`
}

func (s *DashboardService) Roster(ctx context.Context, therapistUserID string) ([]RosterEntry, error) {
	profile, err := s.therapists.FindByUserID(ctx, therapistUserID)
	if err != nil {
		return nil, fmt.Errorf("find therapist profile: %w", err)
	}
	if profile == nil {
		return nil, errors.NotFound("Therapist profile")
	}

	profiles, err := s.patients.ListByTherapist(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}

	entries := make([]RosterEntry, 0, len(profiles))
	for _, p := range profiles {
		entry := RosterEntry{Profile: p}
		if user, err := s.users.FindByID(ctx, p.UserID); err == nil && user != nil {
			entry.Name = user.FullName()
			entry.Phone = user.PhoneNumber
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
