package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/Aun-shahid/TherapEase/internal/audit"
	"github.com/Aun-shahid/TherapEase/internal/database"
	apperrors "github.com/Aun-shahid/TherapEase/internal/errors"
	"github.com/Aun-shahid/TherapEase/internal/model"
	"github.com/Aun-shahid/TherapEase/internal/repository"
	"github.com/Aun-shahid/TherapEase/internal/util"
)

const (
	pairingCodeChars   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	pairingCodeLength  = 8
	therapistPINDigits = 10
	secretGenAttempts  = 10
)

// PairingService owns both patient-therapist connection mechanisms: direct
// PIN pairing and the code-based request/approval flow. Capacity is
// re-checked at every point of connection, not just at request time.
type PairingService struct {
	db         *database.DB
	users      repository.UserRepository
	patients   repository.PatientProfileRepository
	therapists repository.TherapistProfileRepository
	requests   repository.PatientPairingRequestRepository
	requestTTL time.Duration
}

func NewPairingService(
	db *database.DB,
	users repository.UserRepository,
	patients repository.PatientProfileRepository,
	therapists repository.TherapistProfileRepository,
	requests repository.PatientPairingRequestRepository,
	requestTTL time.Duration,
) *PairingService {
	return &PairingService{
		db:         db,
		users:      users,
		patients:   patients,
		therapists: therapists,
		requests:   requests,
		requestTTL: requestTTL,
	}
}

// TherapistSecrets carries the two pairing secrets shown to a therapist.
type TherapistSecrets struct {
	TherapistPIN string `json:"therapistPin"`
	PairingCode  string `json:"pairingCode"`
}

// Secrets returns the therapist's PIN and pairing code, generating each
// lazily on first access. Generation retries on collision; the conditional
// UPDATE in the repository keeps concurrent first accesses from issuing two
// different secrets.
func (s *PairingService) Secrets(ctx context.Context, therapistUserID string) (*TherapistSecrets, error) {
	profile, err := s.therapists.FindByUserID(ctx, therapistUserID)
	if err != nil {
		return nil, fmt.Errorf("find therapist profile: %w", err)
	}
	if profile == nil {
		return nil, apperrors.NotFound("Therapist profile")
	}

	if profile.TherapistPIN == nil {
		if err := s.generatePIN(ctx, profile.ID); err != nil {
			return nil, err
		}
	}
	if profile.PairingCode == nil {
		if err := s.generatePairingCode(ctx, profile.ID); err != nil {
			return nil, err
		}
	}
	if profile.TherapistPIN == nil || profile.PairingCode == nil {
		profile, err = s.therapists.FindByID(ctx, profile.ID)
		if err != nil || profile == nil {
			return nil, apperrors.Internal("Failed to load generated secrets").WithCause(err)
		}
	}

	return &TherapistSecrets{
		TherapistPIN: *profile.TherapistPIN,
		PairingCode:  *profile.PairingCode,
	}, nil
}

func (s *PairingService) generatePIN(ctx context.Context, profileID string) error {
	for attempt := 0; attempt < secretGenAttempts; attempt++ {
		pin := util.GenerateDigits(therapistPINDigits)
		existing, err := s.therapists.FindByPIN(ctx, pin)
		if err != nil {
			return fmt.Errorf("check pin uniqueness: %w", err)
		}
		if existing != nil {
			continue
		}
		if _, err := s.therapists.SetPIN(ctx, profileID, pin); err != nil {
			return fmt.Errorf("store pin: %w", err)
		}
		return nil
	}
	return apperrors.Internal("Could not generate a unique PIN")
}

func (s *PairingService) generatePairingCode(ctx context.Context, profileID string) error {
	for attempt := 0; attempt < secretGenAttempts; attempt++ {
		code := util.GenerateCode(pairingCodeChars, pairingCodeLength)
		existing, err := s.therapists.FindByPairingCode(ctx, code)
		if err != nil {
			return fmt.Errorf("check code uniqueness: %w", err)
		}
		if existing != nil {
			continue
		}
		if _, err := s.therapists.SetPairingCode(ctx, profileID, code); err != nil {
			return fmt.Errorf("store pairing code: %w", err)
		}
		return nil
	}
	return apperrors.Internal("Could not generate a unique pairing code")
}

// ConnectByPIN associates the patient with the therapist owning the PIN,
// immediately and without approval.
func (s *PairingService) ConnectByPIN(ctx context.Context, patientUserID, pin string) (*model.PatientProfile, error) {
	therapist, err := s.therapists.FindByPIN(ctx, strings.TrimSpace(pin))
	if err != nil {
		return nil, fmt.Errorf("find therapist by pin: %w", err)
	}
	if therapist == nil {
		return nil, apperrors.NotFound("Therapist PIN")
	}

	profile, err := s.ensurePatientProfile(ctx, patientUserID)
	if err != nil {
		return nil, err
	}
	if profile.TherapistID != nil {
		return nil, apperrors.AlreadyConnected()
	}

	count, err := s.patients.CountByTherapist(ctx, therapist.ID)
	if err != nil {
		return nil, fmt.Errorf("count patients: %w", err)
	}
	if !therapist.CanAcceptPatients(count) {
		return nil, apperrors.CapacityExceeded()
	}

	now := time.Now()
	if err := s.patients.Connect(ctx, profile.ID, therapist.ID, now); err != nil {
		return nil, fmt.Errorf("connect patient: %w", err)
	}

	audit.Log(ctx, audit.Event{
		Type:    audit.EventPatientConnect,
		UserID:  patientUserID,
		Details: map[string]interface{}{"therapist_profile_id": therapist.ID, "mechanism": "pin"},
	})
	return s.patients.FindByID(ctx, profile.ID)
}

// RequestByCode files a pending pairing request against the therapist owning
// the code. No connection happens until the therapist approves.
func (s *PairingService) RequestByCode(ctx context.Context, patientUserID, code string, message *string) (*model.PatientPairingRequest, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	therapist, err := s.therapists.FindByPairingCode(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("find therapist by code: %w", err)
	}
	if therapist == nil {
		return nil, apperrors.NotFound("Pairing code")
	}

	profile, err := s.patients.FindByUserID(ctx, patientUserID)
	if err != nil {
		return nil, fmt.Errorf("find patient profile: %w", err)
	}
	if profile != nil && profile.TherapistID != nil {
		return nil, apperrors.AlreadyConnected()
	}

	existing, err := s.requests.FindPending(ctx, patientUserID, therapist.UserID)
	if err != nil {
		return nil, fmt.Errorf("find pending request: %w", err)
	}
	if existing != nil {
		return nil, apperrors.AlreadyExists("Pairing request")
	}

	request, err := s.requests.Create(ctx, model.CreatePairingRequestParams{
		PatientUserID:   patientUserID,
		TherapistUserID: therapist.UserID,
		Message:         message,
		ExpiresAt:       time.Now().Add(s.requestTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("create pairing request: %w", err)
	}

	audit.Log(ctx, audit.Event{
		Type:    audit.EventPairingRequest,
		UserID:  patientUserID,
		Details: map[string]interface{}{"request_id": request.ID, "code": util.MaskCode(normalized)},
	})
	return request, nil
}

// ListPending returns the therapist's open pairing requests.
func (s *PairingService) ListPending(ctx context.Context, therapistUserID string) ([]model.PatientPairingRequest, error) {
	return s.requests.ListPendingByTherapist(ctx, therapistUserID)
}

// Approve resolves a pending request and connects the patient, optionally
// provisioning a full clinical profile from intake data in the same step.
// Capacity is re-checked here because other approvals may have landed since
// the request was filed.
func (s *PairingService) Approve(ctx context.Context, therapistUserID, requestID string, intake *model.PatientIntake) (*model.PatientProfile, error) {
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("find pairing request: %w", err)
	}
	if request == nil {
		return nil, apperrors.NotFound("Pairing request")
	}
	if request.TherapistUserID != therapistUserID {
		return nil, apperrors.PermissionDenied("This pairing request belongs to another therapist")
	}

	now := time.Now()
	if request.IsExpired(now) {
		if _, err := s.requests.MarkExpired(ctx, requestID, now); err != nil {
			log.Error().Err(err).Str("requestId", requestID).Msg("failed to expire stale pairing request")
		}
		return nil, apperrors.RequestExpired()
	}
	if request.Status != model.PairingRequestPending {
		return nil, apperrors.New(apperrors.ErrCodeConflict, "Pairing request is no longer pending")
	}

	therapist, err := s.therapists.FindByUserID(ctx, therapistUserID)
	if err != nil {
		return nil, fmt.Errorf("find therapist profile: %w", err)
	}
	if therapist == nil {
		return nil, apperrors.NotFound("Therapist profile")
	}

	count, err := s.patients.CountByTherapist(ctx, therapist.ID)
	if err != nil {
		return nil, fmt.Errorf("count patients: %w", err)
	}
	if !therapist.CanAcceptPatients(count) {
		return nil, apperrors.CapacityExceeded()
	}

	var profileID string
	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		requests := s.requests.WithTx(tx)
		patients := s.patients.WithTx(tx)

		ok, err := requests.MarkApproved(ctx, requestID, now)
		if err != nil {
			return fmt.Errorf("approve request: %w", err)
		}
		if !ok {
			return apperrors.New(apperrors.ErrCodeConflict, "Pairing request is no longer pending")
		}

		profile, err := patients.FindByUserID(ctx, request.PatientUserID)
		if err != nil {
			return fmt.Errorf("find patient profile: %w", err)
		}
		if profile != nil && profile.TherapistID != nil {
			return apperrors.AlreadyConnected()
		}

		if profile == nil {
			patientID, err := allocatePatientID(ctx, patients, now)
			if err != nil {
				return err
			}
			params := model.CreatePatientProfileParams{
				UserID:      request.PatientUserID,
				PatientID:   &patientID,
				TherapistID: &therapist.ID,
				ConnectedAt: &now,
			}
			if intake != nil {
				params.Intake = *intake
			}
			profile, err = patients.Create(ctx, params)
			if err != nil {
				return fmt.Errorf("create patient profile: %w", err)
			}
		} else {
			if err := patients.Connect(ctx, profile.ID, therapist.ID, now); err != nil {
				return fmt.Errorf("connect patient: %w", err)
			}
		}
		profileID = profile.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	audit.Log(ctx, audit.Event{
		Type:    audit.EventPairingApprove,
		UserID:  therapistUserID,
		Details: map[string]interface{}{"request_id": requestID, "patient_user_id": request.PatientUserID},
	})
	return s.patients.FindByID(ctx, profileID)
}

// Reject resolves a pending request without connecting, recording an
// optional reason.
func (s *PairingService) Reject(ctx context.Context, therapistUserID, requestID, reason string) error {
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return fmt.Errorf("find pairing request: %w", err)
	}
	if request == nil {
		return apperrors.NotFound("Pairing request")
	}
	if request.TherapistUserID != therapistUserID {
		return apperrors.PermissionDenied("This pairing request belongs to another therapist")
	}

	ok, err := s.requests.MarkRejected(ctx, requestID, reason, time.Now())
	if err != nil {
		return fmt.Errorf("reject request: %w", err)
	}
	if !ok {
		return apperrors.New(apperrors.ErrCodeConflict, "Pairing request is no longer pending")
	}

	audit.Log(ctx, audit.Event{
		Type:    audit.EventPairingReject,
		UserID:  therapistUserID,
		Details: map[string]interface{}{"request_id": requestID},
	})
	return nil
}

// ensurePatientProfile returns the patient's profile, provisioning a bare
// one on first use so direct PIN pairing works right after registration.
func (s *PairingService) ensurePatientProfile(ctx context.Context, patientUserID string) (*model.PatientProfile, error) {
	profile, err := s.patients.FindByUserID(ctx, patientUserID)
	if err != nil {
		return nil, fmt.Errorf("find patient profile: %w", err)
	}
	if profile != nil {
		return profile, nil
	}

	user, err := s.users.FindByID(ctx, patientUserID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil || user.Role != model.RolePatient {
		return nil, apperrors.NotFound("Patient")
	}

	patientID, err := allocatePatientID(ctx, s.patients, time.Now())
	if err != nil {
		return nil, err
	}
	profile, err = s.patients.Create(ctx, model.CreatePatientProfileParams{
		UserID:    patientUserID,
		PatientID: &patientID,
	})
	if err != nil {
		return nil, fmt.Errorf("create patient profile: %w", err)
	}
	return profile, nil
}

// allocatePatientID issues the next human-readable patient identifier for
// the current year, of the form PT-2026-0001.
func allocatePatientID(ctx context.Context, patients repository.PatientProfileRepository, now time.Time) (string, error) {
	year := now.Year()
	n, err := patients.NextPatientNumber(ctx, year)
	if err != nil {
		return "", fmt.Errorf("next patient number: %w", err)
	}
	return fmt.Sprintf("PT-%d-%04d", year, n), nil
}
