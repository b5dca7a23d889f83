package model

import (
	"time"
)

// PatientProfile links a patient identity to a therapist's roster. Profiles
// created unilaterally by a therapist (placeholders) carry a
// CreatedByTherapistID and stay unlinked until the patient registers.
type PatientProfile struct {
	ID                    string           `db:"id" json:"id"`
	UserID                string           `db:"user_id" json:"userId"`
	PatientID             *string          `db:"patient_id" json:"patientId,omitempty"`
	TherapistID           *string          `db:"therapist_id" json:"therapistId,omitempty"`
	CreatedByTherapistID  *string          `db:"created_by_therapist_id" json:"createdByTherapistId,omitempty"`
	IsLinkedAccount       bool             `db:"is_linked_account" json:"isLinkedAccount"`
	LinkedAt              *time.Time       `db:"linked_at" json:"linkedAt,omitempty"`
	ConnectedAt           *time.Time       `db:"connected_at" json:"connectedAt,omitempty"`
	PrimaryConcern        *string          `db:"primary_concern" json:"primaryConcern,omitempty"`
	TherapyStartDate      *time.Time       `db:"therapy_start_date" json:"therapyStartDate,omitempty"`
	SessionFrequency      SessionFrequency `db:"session_frequency" json:"sessionFrequency"`
	EmergencyContactName  *string          `db:"emergency_contact_name" json:"emergencyContactName,omitempty"`
	EmergencyContactPhone *string          `db:"emergency_contact_phone" json:"emergencyContactPhone,omitempty"`
	MedicalHistory        *string          `db:"medical_history" json:"medicalHistory,omitempty"`
	CurrentMedications    *string          `db:"current_medications" json:"currentMedications,omitempty"`
	PreferredLanguage     string           `db:"preferred_language" json:"preferredLanguage"`
	CreatedAt             time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt             time.Time        `db:"updated_at" json:"updatedAt"`
}

type CreatePatientProfileParams struct {
	UserID               string
	PatientID            *string
	TherapistID          *string
	CreatedByTherapistID *string
	ConnectedAt          *time.Time
	Intake               PatientIntake
}

// PatientIntake holds the optional clinical intake fields a therapist may
// record when provisioning a profile.
type PatientIntake struct {
	PrimaryConcern        *string          `json:"primaryConcern,omitempty"`
	TherapyStartDate      *time.Time       `json:"therapyStartDate,omitempty"`
	SessionFrequency      SessionFrequency `json:"sessionFrequency,omitempty"`
	EmergencyContactName  *string          `json:"emergencyContactName,omitempty"`
	EmergencyContactPhone *string          `json:"emergencyContactPhone,omitempty"`
	MedicalHistory        *string          `json:"medicalHistory,omitempty"`
	CurrentMedications    *string          `json:"currentMedications,omitempty"`
	PreferredLanguage     string           `json:"preferredLanguage,omitempty"`
}

// TherapistProfile owns the two pairing secrets: a long numeric PIN for
// direct connection and a short alphanumeric code for request-based pairing.
// Both are generated lazily once and stable thereafter.
type TherapistProfile struct {
	ID                string    `db:"id" json:"id"`
	UserID            string    `db:"user_id" json:"userId"`
	LicenseNumber     string    `db:"license_number" json:"licenseNumber"`
	Specialization    string    `db:"specialization" json:"specialization"`
	ClinicName        *string   `db:"clinic_name" json:"clinicName,omitempty"`
	YearsOfExperience int       `db:"years_of_experience" json:"yearsOfExperience"`
	TherapistPIN      *string   `db:"therapist_pin" json:"therapistPin,omitempty"`
	PairingCode       *string   `db:"pairing_code" json:"pairingCode,omitempty"`
	MaxPatients       int       `db:"max_patients" json:"maxPatients"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time `db:"updated_at" json:"updatedAt"`
}

// CanAcceptPatients reports whether the roster has room for one more.
func (t *TherapistProfile) CanAcceptPatients(currentCount int) bool {
	return currentCount < t.MaxPatients
}

type CreateTherapistProfileParams struct {
	UserID            string
	LicenseNumber     string
	Specialization    string
	ClinicName        *string
	YearsOfExperience int
	MaxPatients       int
}
