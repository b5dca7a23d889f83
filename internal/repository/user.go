package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Aun-shahid/TherapEase/internal/database"
	"github.com/Aun-shahid/TherapEase/internal/model"
)

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.User, error)
	Create(ctx context.Context, params model.CreateUserParams) (*model.User, error)
	MergeFields(ctx context.Context, id string, fields model.MergeUserFields) error
	// SetTokenHash rotates the stored auth token hash.
	SetTokenHash(ctx context.Context, id string, tokenHash string) error
	Delete(ctx context.Context, id string) error
	WithTx(tx *sqlx.Tx) UserRepository
}

type userRepo struct {
	db database.DBTX
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) WithTx(tx *sqlx.Tx) UserRepository {
	return &userRepo{db: tx}
}

func (r *userRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		SELECT * FROM users WHERE id = $1
	`, id)
	return HandleNotFound(&user, err)
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		SELECT * FROM users WHERE email = $1
	`, email)
	return HandleNotFound(&user, err)
}

func (r *userRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		SELECT * FROM users
		WHERE auth_token_hash = $1 AND is_active = TRUE
	`, tokenHash)
	return HandleNotFound(&user, err)
}

func (r *userRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		INSERT INTO users (
			id, email, password_hash, auth_token_hash, role,
			first_name, last_name, phone_number, date_of_birth, gender
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING *
	`,
		uuid.New().String(), params.Email, params.PasswordHash, params.AuthTokenHash,
		params.Role, params.FirstName, params.LastName, params.PhoneNumber,
		params.DateOfBirth, params.Gender,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// MergeFields fills empty scalar fields only. COALESCE of the existing
// column first guarantees populated values are never overwritten.
func (r *userRepo) MergeFields(ctx context.Context, id string, fields model.MergeUserFields) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET
			date_of_birth = COALESCE(date_of_birth, $2),
			gender = COALESCE(NULLIF(gender, ''), $3),
			first_name = COALESCE(NULLIF(first_name, ''), $4, first_name),
			last_name = COALESCE(NULLIF(last_name, ''), $5, last_name),
			updated_at = $6
		WHERE id = $1
	`, id, fields.DateOfBirth, fields.Gender, fields.FirstName, fields.LastName, time.Now())
	return err
}

func (r *userRepo) SetTokenHash(ctx context.Context, id string, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET
			auth_token_hash = $2,
			updated_at = $3
		WHERE id = $1
	`, id, tokenHash, time.Now())
	return err
}

func (r *userRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM users WHERE id = $1
	`, id)
	return err
}
