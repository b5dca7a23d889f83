package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Aun-shahid/TherapEase/internal/database"
	"github.com/Aun-shahid/TherapEase/internal/model"
)

type PatientPairingRequestRepository interface {
	FindByID(ctx context.Context, id string) (*model.PatientPairingRequest, error)
	FindPending(ctx context.Context, patientUserID, therapistUserID string) (*model.PatientPairingRequest, error)
	Create(ctx context.Context, params model.CreatePairingRequestParams) (*model.PatientPairingRequest, error)
	ListPendingByTherapist(ctx context.Context, therapistUserID string) ([]model.PatientPairingRequest, error)
	// MarkApproved resolves a pending request; false means the request was
	// no longer pending.
	MarkApproved(ctx context.Context, id string, at time.Time) (bool, error)
	MarkRejected(ctx context.Context, id string, reason string, at time.Time) (bool, error)
	MarkExpired(ctx context.Context, id string, at time.Time) (bool, error)
	// ExpirePending flips every pending request past its deadline to expired
	// and reports how many rows changed.
	ExpirePending(ctx context.Context, now time.Time) (int64, error)
	// DeleteResolvedBefore removes approved/rejected/expired requests whose
	// resolution predates the cutoff.
	DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	WithTx(tx *sqlx.Tx) PatientPairingRequestRepository
}

type pairingRepo struct {
	db database.DBTX
}

func NewPatientPairingRequestRepository(db *sqlx.DB) PatientPairingRequestRepository {
	return &pairingRepo{db: db}
}

func (r *pairingRepo) WithTx(tx *sqlx.Tx) PatientPairingRequestRepository {
	return &pairingRepo{db: tx}
}

func (r *pairingRepo) FindByID(ctx context.Context, id string) (*model.PatientPairingRequest, error) {
	var request model.PatientPairingRequest
	err := r.db.GetContext(ctx, &request, `
		SELECT * FROM patient_pairing_requests WHERE id = $1
	`, id)
	return HandleNotFound(&request, err)
}

func (r *pairingRepo) FindPending(ctx context.Context, patientUserID, therapistUserID string) (*model.PatientPairingRequest, error) {
	var request model.PatientPairingRequest
	err := r.db.GetContext(ctx, &request, `
		SELECT * FROM patient_pairing_requests
		WHERE patient_user_id = $1 AND therapist_user_id = $2 AND status = 'pending'
	`, patientUserID, therapistUserID)
	return HandleNotFound(&request, err)
}

func (r *pairingRepo) Create(ctx context.Context, params model.CreatePairingRequestParams) (*model.PatientPairingRequest, error) {
	var request model.PatientPairingRequest
	err := r.db.GetContext(ctx, &request, `
		INSERT INTO patient_pairing_requests (
			id, patient_user_id, therapist_user_id, status, message, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`,
		uuid.New().String(), params.PatientUserID, params.TherapistUserID,
		model.PairingRequestPending, params.Message, params.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *pairingRepo) ListPendingByTherapist(ctx context.Context, therapistUserID string) ([]model.PatientPairingRequest, error) {
	var requests []model.PatientPairingRequest
	err := r.db.SelectContext(ctx, &requests, `
		SELECT * FROM patient_pairing_requests
		WHERE therapist_user_id = $1 AND status = 'pending'
		ORDER BY created_at DESC
	`, therapistUserID)
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *pairingRepo) MarkApproved(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE patient_pairing_requests SET
			status = 'approved',
			resolved_at = $2,
			updated_at = $2
		WHERE id = $1 AND status = 'pending'
	`, id, at)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows == 1, err
}

func (r *pairingRepo) MarkRejected(ctx context.Context, id string, reason string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE patient_pairing_requests SET
			status = 'rejected',
			rejection_reason = NULLIF($2, ''),
			resolved_at = $3,
			updated_at = $3
		WHERE id = $1 AND status = 'pending'
	`, id, reason, at)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows == 1, err
}

func (r *pairingRepo) MarkExpired(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE patient_pairing_requests SET
			status = 'expired',
			resolved_at = $2,
			updated_at = $2
		WHERE id = $1 AND status = 'pending'
	`, id, at)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows == 1, err
}

func (r *pairingRepo) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE patient_pairing_requests SET
			status = 'expired',
			resolved_at = $1,
			updated_at = $1
		WHERE status = 'pending' AND expires_at < $1
	`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *pairingRepo) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM patient_pairing_requests
		WHERE status IN ('approved', 'rejected', 'expired') AND resolved_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
