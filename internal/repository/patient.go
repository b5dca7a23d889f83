package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Aun-shahid/TherapEase/internal/database"
	"github.com/Aun-shahid/TherapEase/internal/model"
)

type PatientProfileRepository interface {
	FindByID(ctx context.Context, id string) (*model.PatientProfile, error)
	FindByUserID(ctx context.Context, userID string) (*model.PatientProfile, error)
	// FindUnlinkedByPhone returns therapist-created placeholder profiles whose
	// owning identity has the given phone number and no login email, most
	// recently created first.
	FindUnlinkedByPhone(ctx context.Context, phone string) ([]model.PatientProfile, error)
	Create(ctx context.Context, params model.CreatePatientProfileParams) (*model.PatientProfile, error)
	ListByTherapist(ctx context.Context, therapistProfileID string) ([]model.PatientProfile, error)
	CountByTherapist(ctx context.Context, therapistProfileID string) (int, error)
	// Link repoints the profile at a new owning user and stamps the linkage.
	Link(ctx context.Context, id string, newUserID string, linkedAt time.Time) error
	// Connect associates the profile with a therapist's roster.
	Connect(ctx context.Context, id string, therapistProfileID string, connectedAt time.Time) error
	NextPatientNumber(ctx context.Context, year int) (int, error)
	WithTx(tx *sqlx.Tx) PatientProfileRepository
}

type patientRepo struct {
	db database.DBTX
}

func NewPatientProfileRepository(db *sqlx.DB) PatientProfileRepository {
	return &patientRepo{db: db}
}

func (r *patientRepo) WithTx(tx *sqlx.Tx) PatientProfileRepository {
	return &patientRepo{db: tx}
}

func (r *patientRepo) FindByID(ctx context.Context, id string) (*model.PatientProfile, error) {
	var profile model.PatientProfile
	err := r.db.GetContext(ctx, &profile, `
		SELECT * FROM patient_profiles WHERE id = $1
	`, id)
	return HandleNotFound(&profile, err)
}

func (r *patientRepo) FindByUserID(ctx context.Context, userID string) (*model.PatientProfile, error) {
	var profile model.PatientProfile
	err := r.db.GetContext(ctx, &profile, `
		SELECT * FROM patient_profiles WHERE user_id = $1
	`, userID)
	return HandleNotFound(&profile, err)
}

func (r *patientRepo) FindUnlinkedByPhone(ctx context.Context, phone string) ([]model.PatientProfile, error) {
	var profiles []model.PatientProfile
	err := r.db.SelectContext(ctx, &profiles, `
		SELECT p.* FROM patient_profiles p
		JOIN users u ON u.id = p.user_id
		WHERE u.phone_number = $1
		AND p.created_by_therapist_id IS NOT NULL
		AND p.is_linked_account = FALSE
		AND (u.email IS NULL OR u.email = '')
		ORDER BY u.created_at DESC
	`, phone)
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *patientRepo) Create(ctx context.Context, params model.CreatePatientProfileParams) (*model.PatientProfile, error) {
	frequency := params.Intake.SessionFrequency
	if frequency == "" {
		frequency = model.FrequencyWeekly
	}
	language := params.Intake.PreferredLanguage
	if language == "" {
		language = "en"
	}

	var profile model.PatientProfile
	err := r.db.GetContext(ctx, &profile, `
		INSERT INTO patient_profiles (
			id, user_id, patient_id, therapist_id, created_by_therapist_id, connected_at,
			primary_concern, therapy_start_date, session_frequency,
			emergency_contact_name, emergency_contact_phone,
			medical_history, current_medications, preferred_language
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING *
	`,
		uuid.New().String(), params.UserID, params.PatientID, params.TherapistID,
		params.CreatedByTherapistID, params.ConnectedAt,
		params.Intake.PrimaryConcern, params.Intake.TherapyStartDate, frequency,
		params.Intake.EmergencyContactName, params.Intake.EmergencyContactPhone,
		params.Intake.MedicalHistory, params.Intake.CurrentMedications, language,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *patientRepo) ListByTherapist(ctx context.Context, therapistProfileID string) ([]model.PatientProfile, error) {
	var profiles []model.PatientProfile
	err := r.db.SelectContext(ctx, &profiles, `
		SELECT * FROM patient_profiles
		WHERE therapist_id = $1
		ORDER BY created_at DESC
	`, therapistProfileID)
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *patientRepo) CountByTherapist(ctx context.Context, therapistProfileID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM patient_profiles WHERE therapist_id = $1
	`, therapistProfileID)
	return count, err
}

func (r *patientRepo) Link(ctx context.Context, id string, newUserID string, linkedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE patient_profiles SET
			user_id = $2,
			is_linked_account = TRUE,
			linked_at = $3,
			updated_at = $3
		WHERE id = $1
	`, id, newUserID, linkedAt)
	return err
}

func (r *patientRepo) Connect(ctx context.Context, id string, therapistProfileID string, connectedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE patient_profiles SET
			therapist_id = $2,
			connected_at = $3,
			updated_at = $3
		WHERE id = $1
	`, id, therapistProfileID, connectedAt)
	return err
}

// NextPatientNumber returns the next sequence value for human-readable
// patient ids of the form PT-<year>-<number>.
func (r *patientRepo) NextPatientNumber(ctx context.Context, year int) (int, error) {
	var count int
	prefix := fmt.Sprintf("PT-%d-%%", year)
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM patient_profiles WHERE patient_id LIKE $1
	`, prefix)
	if err != nil {
		return 0, err
	}
	return count + 1, nil
}
