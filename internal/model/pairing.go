package model

import (
	"time"
)

// PatientPairingRequest is a patient-initiated request to join a therapist's
// roster via pairing code. Terminal once approved or rejected.
type PatientPairingRequest struct {
	ID              string               `db:"id" json:"id"`
	PatientUserID   string               `db:"patient_user_id" json:"patientUserId"`
	TherapistUserID string               `db:"therapist_user_id" json:"therapistUserId"`
	Status          PairingRequestStatus `db:"status" json:"status"`
	Message         *string              `db:"message" json:"message,omitempty"`
	RejectionReason *string              `db:"rejection_reason" json:"rejectionReason,omitempty"`
	ExpiresAt       time.Time            `db:"expires_at" json:"expiresAt"`
	ResolvedAt      *time.Time           `db:"resolved_at" json:"resolvedAt,omitempty"`
	CreatedAt       time.Time            `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time            `db:"updated_at" json:"updatedAt"`
}

// IsExpired reports whether the request has passed its expiry and is no
// longer valid for approval.
func (r *PatientPairingRequest) IsExpired(now time.Time) bool {
	return r.Status == PairingRequestPending && now.After(r.ExpiresAt)
}

type CreatePairingRequestParams struct {
	PatientUserID   string
	TherapistUserID string
	Message         *string
	ExpiresAt       time.Time
}
