package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Aun-shahid/TherapEase/internal/database"
	"github.com/Aun-shahid/TherapEase/internal/model"
)

type TherapistProfileRepository interface {
	FindByID(ctx context.Context, id string) (*model.TherapistProfile, error)
	FindByUserID(ctx context.Context, userID string) (*model.TherapistProfile, error)
	FindByPIN(ctx context.Context, pin string) (*model.TherapistProfile, error)
	FindByPairingCode(ctx context.Context, code string) (*model.TherapistProfile, error)
	Create(ctx context.Context, params model.CreateTherapistProfileParams) (*model.TherapistProfile, error)
	// SetPIN stores the PIN only when none exists yet; secrets are
	// generated once and stable thereafter.
	SetPIN(ctx context.Context, id string, pin string) (bool, error)
	SetPairingCode(ctx context.Context, id string, code string) (bool, error)
	WithTx(tx *sqlx.Tx) TherapistProfileRepository
}

type therapistRepo struct {
	db database.DBTX
}

func NewTherapistProfileRepository(db *sqlx.DB) TherapistProfileRepository {
	return &therapistRepo{db: db}
}

func (r *therapistRepo) WithTx(tx *sqlx.Tx) TherapistProfileRepository {
	return &therapistRepo{db: tx}
}

func (r *therapistRepo) FindByID(ctx context.Context, id string) (*model.TherapistProfile, error) {
	var profile model.TherapistProfile
	err := r.db.GetContext(ctx, &profile, `
		SELECT * FROM therapist_profiles WHERE id = $1
	`, id)
	return HandleNotFound(&profile, err)
}

func (r *therapistRepo) FindByUserID(ctx context.Context, userID string) (*model.TherapistProfile, error) {
	var profile model.TherapistProfile
	err := r.db.GetContext(ctx, &profile, `
		SELECT * FROM therapist_profiles WHERE user_id = $1
	`, userID)
	return HandleNotFound(&profile, err)
}

func (r *therapistRepo) FindByPIN(ctx context.Context, pin string) (*model.TherapistProfile, error) {
	var profile model.TherapistProfile
	err := r.db.GetContext(ctx, &profile, `
		SELECT * FROM therapist_profiles WHERE therapist_pin = $1
	`, pin)
	return HandleNotFound(&profile, err)
}

func (r *therapistRepo) FindByPairingCode(ctx context.Context, code string) (*model.TherapistProfile, error) {
	var profile model.TherapistProfile
	err := r.db.GetContext(ctx, &profile, `
		SELECT * FROM therapist_profiles WHERE pairing_code = $1
	`, code)
	return HandleNotFound(&profile, err)
}

func (r *therapistRepo) Create(ctx context.Context, params model.CreateTherapistProfileParams) (*model.TherapistProfile, error) {
	var profile model.TherapistProfile
	err := r.db.GetContext(ctx, &profile, `
		INSERT INTO therapist_profiles (
			id, user_id, license_number, specialization, clinic_name,
			years_of_experience, max_patients
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *
	`,
		uuid.New().String(), params.UserID, params.LicenseNumber, params.Specialization,
		params.ClinicName, params.YearsOfExperience, params.MaxPatients,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *therapistRepo) SetPIN(ctx context.Context, id string, pin string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE therapist_profiles SET
			therapist_pin = $2,
			updated_at = $3
		WHERE id = $1 AND therapist_pin IS NULL
	`, id, pin, time.Now())
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows == 1, err
}

func (r *therapistRepo) SetPairingCode(ctx context.Context, id string, code string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE therapist_profiles SET
			pairing_code = $2,
			updated_at = $3
		WHERE id = $1 AND pairing_code IS NULL
	`, id, code, time.Now())
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows == 1, err
}
