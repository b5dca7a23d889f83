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

// AccountService handles registration, login and therapist-side placeholder
// patient provisioning. Patient self-registration triggers the account
// linking reconciliation exactly once, synchronously.
type AccountService struct {
	db                 *database.DB
	users              repository.UserRepository
	patients           repository.PatientProfileRepository
	therapists         repository.TherapistProfileRepository
	linking            *AccountLinkingService
	defaultMaxPatients int
}

func NewAccountService(
	db *database.DB,
	users repository.UserRepository,
	patients repository.PatientProfileRepository,
	therapists repository.TherapistProfileRepository,
	linking *AccountLinkingService,
	defaultMaxPatients int,
) *AccountService {
	return &AccountService{
		db:                 db,
		users:              users,
		patients:           patients,
		therapists:         therapists,
		linking:            linking,
		defaultMaxPatients: defaultMaxPatients,
	}
}

type RegisterInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber *string
	DateOfBirth *time.Time
	Gender      *string
}

type TherapistRegisterInput struct {
	RegisterInput
	LicenseNumber     string
	Specialization    string
	ClinicName        *string
	YearsOfExperience int
}

// AuthResult carries the created or authenticated user plus the plaintext
// bearer token, which is only ever available at generation time.
type AuthResult struct {
	User   *model.User `json:"user"`
	Token  string      `json:"token"`
	Linked bool        `json:"linked,omitempty"`
}

func (in *RegisterInput) validate() error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Email == "" {
		return apperrors.MissingRequired("email")
	}
	if !strings.Contains(in.Email, "@") {
		return apperrors.InvalidInput("email", "not a valid address")
	}
	if len(in.Password) < 8 {
		return apperrors.InvalidInput("password", "must be at least 8 characters")
	}
	if strings.TrimSpace(in.FirstName) == "" {
		return apperrors.MissingRequired("first_name")
	}
	if in.PhoneNumber != nil {
		normalized := util.NormalizePhone(*in.PhoneNumber)
		in.PhoneNumber = &normalized
	}
	return nil
}

func (s *AccountService) createUser(ctx context.Context, users repository.UserRepository, in RegisterInput, role model.UserRole) (*model.User, string, error) {
	existing, err := users.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, "", fmt.Errorf("check email: %w", err)
	}
	if existing != nil {
		return nil, "", apperrors.AlreadyExists("Account with this email")
	}

	passwordHash, err := util.HashPassword(in.Password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}
	token, err := util.GenerateToken()
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}
	tokenHash := util.HashToken(token)

	user, err := users.Create(ctx, model.CreateUserParams{
		Email:         &in.Email,
		PasswordHash:  &passwordHash,
		AuthTokenHash: &tokenHash,
		Role:          role,
		FirstName:     strings.TrimSpace(in.FirstName),
		LastName:      strings.TrimSpace(in.LastName),
		PhoneNumber:   in.PhoneNumber,
		DateOfBirth:   in.DateOfBirth,
		Gender:        in.Gender,
	})
	if err != nil {
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	audit.Log(ctx, audit.Event{
		Type:    audit.EventAccountCreate,
		UserID:  user.ID,
		Details: map[string]interface{}{"role": string(role)},
	})
	return user, token, nil
}

// RegisterPatient creates a patient account and attempts placeholder linking
// when a phone number is present. A linking failure is logged but does not
// fail registration; the merge itself is atomic either way.
func (s *AccountService) RegisterPatient(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	user, token, err := s.createUser(ctx, s.users, in, model.RolePatient)
	if err != nil {
		return nil, err
	}

	linked, err := s.linking.AutoLink(ctx, user)
	if err != nil {
		log.Error().Err(err).Str("userId", user.ID).Msg("account linking failed during registration")
		linked = false
	}
	if linked {
		// re-read: the merge may have filled identity fields
		if fresh, err := s.users.FindByID(ctx, user.ID); err == nil && fresh != nil {
			user = fresh
		}
	}

	return &AuthResult{User: user, Token: token, Linked: linked}, nil
}

// RegisterTherapist creates a therapist account together with its clinical
// profile in one transaction.
func (s *AccountService) RegisterTherapist(ctx context.Context, in TherapistRegisterInput) (*AuthResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.LicenseNumber) == "" {
		return nil, apperrors.MissingRequired("license_number")
	}

	var (
		user  *model.User
		token string
	)
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		user, token, err = s.createUser(ctx, s.users.WithTx(tx), in.RegisterInput, model.RoleTherapist)
		if err != nil {
			return err
		}
		_, err = s.therapists.WithTx(tx).Create(ctx, model.CreateTherapistProfileParams{
			UserID:            user.ID,
			LicenseNumber:     strings.TrimSpace(in.LicenseNumber),
			Specialization:    strings.TrimSpace(in.Specialization),
			ClinicName:        in.ClinicName,
			YearsOfExperience: in.YearsOfExperience,
			MaxPatients:       s.defaultMaxPatients,
		})
		if err != nil {
			return fmt.Errorf("create therapist profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user, Token: token}, nil
}

// Login authenticates by email and password and rotates the bearer token.
func (s *AccountService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil || !user.HasCredentials() || !util.CheckPasswordHash(password, *user.PasswordHash) {
		audit.Log(ctx, audit.Event{
			Type:    audit.EventLoginFailure,
			Details: map[string]interface{}{"email": email},
		})
		return nil, apperrors.Unauthorized("Invalid email or password")
	}
	if !user.IsActive {
		return nil, apperrors.Unauthorized("Account is deactivated")
	}

	token, err := util.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	if err := s.users.SetTokenHash(ctx, user.ID, util.HashToken(token)); err != nil {
		return nil, fmt.Errorf("rotate token: %w", err)
	}

	audit.Log(ctx, audit.Event{Type: audit.EventLoginSuccess, UserID: user.ID})
	return &AuthResult{User: user, Token: token}, nil
}

type PlaceholderPatientInput struct {
	FirstName   string
	LastName    string
	PhoneNumber string
	DateOfBirth *time.Time
	Gender      *string
	Intake      model.PatientIntake
}

// CreatePlaceholderPatient provisions a patient identity with no login
// credential, owned by the creating therapist until the patient registers
// and the linking reconciliation claims it.
func (s *AccountService) CreatePlaceholderPatient(ctx context.Context, therapistUserID string, in PlaceholderPatientInput) (*model.PatientProfile, error) {
	if strings.TrimSpace(in.FirstName) == "" {
		return nil, apperrors.MissingRequired("first_name")
	}
	phone := util.NormalizePhone(in.PhoneNumber)
	if phone == "" {
		return nil, apperrors.MissingRequired("phone_number")
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
	now := time.Now()
	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		users := s.users.WithTx(tx)
		patients := s.patients.WithTx(tx)

		user, err := users.Create(ctx, model.CreateUserParams{
			Role:        model.RolePatient,
			FirstName:   strings.TrimSpace(in.FirstName),
			LastName:    strings.TrimSpace(in.LastName),
			PhoneNumber: &phone,
			DateOfBirth: in.DateOfBirth,
			Gender:      in.Gender,
		})
		if err != nil {
			return fmt.Errorf("create placeholder user: %w", err)
		}

		patientID, err := allocatePatientID(ctx, patients, now)
		if err != nil {
			return err
		}
		profile, err := patients.Create(ctx, model.CreatePatientProfileParams{
			UserID:               user.ID,
			PatientID:            &patientID,
			TherapistID:          &therapist.ID,
			CreatedByTherapistID: &therapist.ID,
			ConnectedAt:          &now,
			Intake:               in.Intake,
		})
		if err != nil {
			return fmt.Errorf("create placeholder profile: %w", err)
		}
		profileID = profile.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	audit.Log(ctx, audit.Event{
		Type:    audit.EventPlaceholderCreate,
		UserID:  therapistUserID,
		Details: map[string]interface{}{"profile_id": profileID},
	})
	return s.patients.FindByID(ctx, profileID)
}

// Me returns the caller's own account record.
func (s *AccountService) Me(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, apperrors.NotFound("Account")
	}
	return user, nil
}
