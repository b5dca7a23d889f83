package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/Aun-shahid/TherapEase/internal/audit"
	"github.com/Aun-shahid/TherapEase/internal/database"
	"github.com/Aun-shahid/TherapEase/internal/model"
	"github.com/Aun-shahid/TherapEase/internal/repository"
)

// AccountLinkingService merges a therapist-created placeholder patient
// identity into a newly self-registered account with the same phone number,
// carrying the session history across. The merge is all-or-nothing.
type AccountLinkingService struct {
	db       *database.DB
	users    repository.UserRepository
	patients repository.PatientProfileRepository
	sessions repository.SessionRepository
}

func NewAccountLinkingService(
	db *database.DB,
	users repository.UserRepository,
	patients repository.PatientProfileRepository,
	sessions repository.SessionRepository,
) *AccountLinkingService {
	return &AccountLinkingService{
		db:       db,
		users:    users,
		patients: patients,
		sessions: sessions,
	}
}

// LinkCheck is the outcome of the pure eligibility predicate. Reason is a
// human-readable explanation when CanLink is false.
type LinkCheck struct {
	CanLink bool
	Reason  string
}

// FindCandidate locates at most one unlinked placeholder profile for the
// phone number. More than one match is a data anomaly; the most recently
// created wins and a warning is logged.
func (s *AccountLinkingService) FindCandidate(ctx context.Context, phone string) (*model.PatientProfile, error) {
	candidates, err := s.patients.FindUnlinkedByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("find unlinked profiles: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	if len(candidates) > 1 {
		log.Warn().
			Int("count", len(candidates)).
			Str("profileId", candidates[0].ID).
			Msg("multiple unlinked placeholder profiles for one phone number, using most recent")
	}
	return &candidates[0], nil
}

// CheckEligibility is a pure predicate over already-loaded records; it never
// mutates. candidateUser is the placeholder identity owning the candidate
// profile; existingProfile is the new account's own patient profile, if any.
func (s *AccountLinkingService) CheckEligibility(
	candidate *model.PatientProfile,
	candidateUser *model.User,
	newUser *model.User,
	existingProfile *model.PatientProfile,
) LinkCheck {
	if candidate.IsLinkedAccount {
		return LinkCheck{Reason: "Profile is already linked to an account"}
	}
	if existingProfile != nil {
		return LinkCheck{Reason: "Account already has a patient profile"}
	}
	if candidateUser.PhoneNumber == nil || newUser.PhoneNumber == nil ||
		*candidateUser.PhoneNumber != *newUser.PhoneNumber {
		return LinkCheck{Reason: "Phone numbers do not match"}
	}
	if candidate.CreatedByTherapistID == nil {
		return LinkCheck{Reason: "Profile was not created by a therapist"}
	}
	return LinkCheck{CanLink: true}
}

// Link merges the placeholder identity into newUser in one transaction:
// repoint the profile, move every session, copy scalar identity fields onto
// empty slots of the new account, then delete the orphaned placeholder.
func (s *AccountLinkingService) Link(ctx context.Context, candidate *model.PatientProfile, candidateUser *model.User, newUser *model.User) error {
	now := time.Now()
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		patients := s.patients.WithTx(tx)
		sessions := s.sessions.WithTx(tx)
		users := s.users.WithTx(tx)

		if err := patients.Link(ctx, candidate.ID, newUser.ID, now); err != nil {
			return fmt.Errorf("repoint profile: %w", err)
		}

		moved, err := sessions.ReassignPatient(ctx, candidateUser.ID, newUser.ID)
		if err != nil {
			return fmt.Errorf("reassign sessions: %w", err)
		}
		log.Info().
			Str("profileId", candidate.ID).
			Str("newUserId", newUser.ID).
			Int64("sessionsMoved", moved).
			Msg("sessions reassigned to linked account")

		merge := model.MergeUserFields{
			DateOfBirth: candidateUser.DateOfBirth,
			Gender:      candidateUser.Gender,
		}
		if candidateUser.FirstName != "" {
			merge.FirstName = &candidateUser.FirstName
		}
		if candidateUser.LastName != "" {
			merge.LastName = &candidateUser.LastName
		}
		if err := users.MergeFields(ctx, newUser.ID, merge); err != nil {
			return fmt.Errorf("merge identity fields: %w", err)
		}

		if err := users.Delete(ctx, candidateUser.ID); err != nil {
			return fmt.Errorf("delete placeholder identity: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("link accounts: %w", err)
	}

	audit.Log(ctx, audit.Event{
		Type:   audit.EventAccountLink,
		UserID: newUser.ID,
		Details: map[string]interface{}{
			"profile_id":     candidate.ID,
			"placeholder_id": candidateUser.ID,
		},
	})
	return nil
}

// AutoLink runs once during patient self-registration. A missing candidate
// is a normal outcome; an ineligible one is logged and skipped. Returns
// whether a link was performed.
func (s *AccountLinkingService) AutoLink(ctx context.Context, newUser *model.User) (bool, error) {
	if newUser.Role != model.RolePatient {
		return false, nil
	}
	if newUser.PhoneNumber == nil || *newUser.PhoneNumber == "" {
		return false, nil
	}

	candidate, err := s.FindCandidate(ctx, *newUser.PhoneNumber)
	if err != nil {
		return false, err
	}
	if candidate == nil {
		return false, nil
	}

	candidateUser, err := s.users.FindByID(ctx, candidate.UserID)
	if err != nil {
		return false, fmt.Errorf("find placeholder identity: %w", err)
	}
	if candidateUser == nil {
		log.Warn().Str("profileId", candidate.ID).Msg("placeholder profile without owning identity")
		return false, nil
	}

	existingProfile, err := s.patients.FindByUserID(ctx, newUser.ID)
	if err != nil {
		return false, fmt.Errorf("find existing profile: %w", err)
	}

	check := s.CheckEligibility(candidate, candidateUser, newUser, existingProfile)
	if !check.CanLink {
		log.Info().
			Str("profileId", candidate.ID).
			Str("reason", check.Reason).
			Msg("account linking skipped")
		return false, nil
	}

	if err := s.Link(ctx, candidate, candidateUser, newUser); err != nil {
		return false, err
	}
	return true, nil
}
