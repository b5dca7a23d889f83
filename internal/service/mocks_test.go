package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/Aun-shahid/TherapEase/internal/model"
	"github.com/Aun-shahid/TherapEase/internal/repository"
)

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.User, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) MergeFields(ctx context.Context, id string, fields model.MergeUserFields) error {
	args := m.Called(ctx, id, fields)
	return args.Error(0)
}

func (m *mockUserRepo) SetTokenHash(ctx context.Context, id string, tokenHash string) error {
	args := m.Called(ctx, id, tokenHash)
	return args.Error(0)
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockUserRepo) WithTx(tx *sqlx.Tx) repository.UserRepository {
	return m
}

type mockPatientRepo struct {
	mock.Mock
}

func (m *mockPatientRepo) FindByID(ctx context.Context, id string) (*model.PatientProfile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PatientProfile), args.Error(1)
}

func (m *mockPatientRepo) FindByUserID(ctx context.Context, userID string) (*model.PatientProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PatientProfile), args.Error(1)
}

func (m *mockPatientRepo) FindUnlinkedByPhone(ctx context.Context, phone string) ([]model.PatientProfile, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PatientProfile), args.Error(1)
}

func (m *mockPatientRepo) Create(ctx context.Context, params model.CreatePatientProfileParams) (*model.PatientProfile, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PatientProfile), args.Error(1)
}

func (m *mockPatientRepo) ListByTherapist(ctx context.Context, therapistProfileID string) ([]model.PatientProfile, error) {
	args := m.Called(ctx, therapistProfileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PatientProfile), args.Error(1)
}

func (m *mockPatientRepo) CountByTherapist(ctx context.Context, therapistProfileID string) (int, error) {
	args := m.Called(ctx, therapistProfileID)
	return args.Int(0), args.Error(1)
}

func (m *mockPatientRepo) Link(ctx context.Context, id string, newUserID string, linkedAt time.Time) error {
	args := m.Called(ctx, id, newUserID, linkedAt)
	return args.Error(0)
}

func (m *mockPatientRepo) Connect(ctx context.Context, id string, therapistProfileID string, connectedAt time.Time) error {
	args := m.Called(ctx, id, therapistProfileID, connectedAt)
	return args.Error(0)
}

func (m *mockPatientRepo) NextPatientNumber(ctx context.Context, year int) (int, error) {
	args := m.Called(ctx, year)
	return args.Int(0), args.Error(1)
}

func (m *mockPatientRepo) WithTx(tx *sqlx.Tx) repository.PatientProfileRepository {
	return m
}

type mockTherapistRepo struct {
	mock.Mock
}

func (m *mockTherapistRepo) FindByID(ctx context.Context, id string) (*model.TherapistProfile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TherapistProfile), args.Error(1)
}

func (m *mockTherapistRepo) FindByUserID(ctx context.Context, userID string) (*model.TherapistProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TherapistProfile), args.Error(1)
}

func (m *mockTherapistRepo) FindByPIN(ctx context.Context, pin string) (*model.TherapistProfile, error) {
	args := m.Called(ctx, pin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TherapistProfile), args.Error(1)
}

func (m *mockTherapistRepo) FindByPairingCode(ctx context.Context, code string) (*model.TherapistProfile, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TherapistProfile), args.Error(1)
}

func (m *mockTherapistRepo) Create(ctx context.Context, params model.CreateTherapistProfileParams) (*model.TherapistProfile, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TherapistProfile), args.Error(1)
}

func (m *mockTherapistRepo) SetPIN(ctx context.Context, id string, pin string) (bool, error) {
	args := m.Called(ctx, id, pin)
	return args.Bool(0), args.Error(1)
}

func (m *mockTherapistRepo) SetPairingCode(ctx context.Context, id string, code string) (bool, error) {
	args := m.Called(ctx, id, code)
	return args.Bool(0), args.Error(1)
}

func (m *mockTherapistRepo) WithTx(tx *sqlx.Tx) repository.TherapistProfileRepository {
	return m
}

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) FindByRoomID(ctx context.Context, roomID string) (*model.Session, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) MarkStarted(ctx context.Context, id string, from []model.SessionStatus, at time.Time) (bool, error) {
	args := m.Called(ctx, id, from, at)
	return args.Bool(0), args.Error(1)
}

func (m *mockSessionRepo) MarkEnded(ctx context.Context, id string, params model.EndSessionParams, at time.Time) (bool, error) {
	args := m.Called(ctx, id, params, at)
	return args.Bool(0), args.Error(1)
}

func (m *mockSessionRepo) MarkCancelled(ctx context.Context, id string, from []model.SessionStatus, notePrefix string, at time.Time) (bool, error) {
	args := m.Called(ctx, id, from, notePrefix, at)
	return args.Bool(0), args.Error(1)
}

func (m *mockSessionRepo) MarkRescheduled(ctx context.Context, id string, from []model.SessionStatus, newDate time.Time, notePrefix string, at time.Time) (bool, error) {
	args := m.Called(ctx, id, from, newDate, notePrefix, at)
	return args.Bool(0), args.Error(1)
}

func (m *mockSessionRepo) AssignPatient(ctx context.Context, id string, patientID string) (bool, error) {
	args := m.Called(ctx, id, patientID)
	return args.Bool(0), args.Error(1)
}

func (m *mockSessionRepo) UpdateNotes(ctx context.Context, id string, params model.UpdateNotesParams) error {
	args := m.Called(ctx, id, params)
	return args.Error(0)
}

func (m *mockSessionRepo) SetRoomActive(ctx context.Context, roomID string, active bool) error {
	args := m.Called(ctx, roomID, active)
	return args.Error(0)
}

func (m *mockSessionRepo) ReassignPatient(ctx context.Context, oldUserID, newUserID string) (int64, error) {
	args := m.Called(ctx, oldUserID, newUserID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockSessionRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockSessionRepo) ListByTherapist(ctx context.Context, therapistID string, filter model.SessionFilter) ([]model.Session, error) {
	args := m.Called(ctx, therapistID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Session), args.Error(1)
}

func (m *mockSessionRepo) ListByPatient(ctx context.Context, patientID string) ([]model.Session, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Session), args.Error(1)
}

func (m *mockSessionRepo) ListUpcoming(ctx context.Context, userID string, role model.UserRole, limit int) ([]model.Session, error) {
	args := m.Called(ctx, userID, role, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Session), args.Error(1)
}

func (m *mockSessionRepo) ListPast(ctx context.Context, therapistID string, patientID *string) ([]model.Session, error) {
	args := m.Called(ctx, therapistID, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Session), args.Error(1)
}

func (m *mockSessionRepo) Stats(ctx context.Context, therapistID string, since time.Time) (*model.SessionStats, error) {
	args := m.Called(ctx, therapistID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SessionStats), args.Error(1)
}

func (m *mockSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository {
	return m
}

type mockPairingRequestRepo struct {
	mock.Mock
}

func (m *mockPairingRequestRepo) FindByID(ctx context.Context, id string) (*model.PatientPairingRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PatientPairingRequest), args.Error(1)
}

func (m *mockPairingRequestRepo) FindPending(ctx context.Context, patientUserID, therapistUserID string) (*model.PatientPairingRequest, error) {
	args := m.Called(ctx, patientUserID, therapistUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PatientPairingRequest), args.Error(1)
}

func (m *mockPairingRequestRepo) Create(ctx context.Context, params model.CreatePairingRequestParams) (*model.PatientPairingRequest, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PatientPairingRequest), args.Error(1)
}

func (m *mockPairingRequestRepo) ListPendingByTherapist(ctx context.Context, therapistUserID string) ([]model.PatientPairingRequest, error) {
	args := m.Called(ctx, therapistUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PatientPairingRequest), args.Error(1)
}

func (m *mockPairingRequestRepo) MarkApproved(ctx context.Context, id string, at time.Time) (bool, error) {
	args := m.Called(ctx, id, at)
	return args.Bool(0), args.Error(1)
}

func (m *mockPairingRequestRepo) MarkRejected(ctx context.Context, id string, reason string, at time.Time) (bool, error) {
	args := m.Called(ctx, id, reason, at)
	return args.Bool(0), args.Error(1)
}

func (m *mockPairingRequestRepo) MarkExpired(ctx context.Context, id string, at time.Time) (bool, error) {
	args := m.Called(ctx, id, at)
	return args.Bool(0), args.Error(1)
}

func (m *mockPairingRequestRepo) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPairingRequestRepo) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPairingRequestRepo) WithTx(tx *sqlx.Tx) repository.PatientPairingRequestRepository {
	return m
}
