package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Aun-shahid/TherapEase/internal/errors"
	"github.com/Aun-shahid/TherapEase/internal/model"
)

func ptr[T any](v T) *T {
	return &v
}

type capturedNotification struct {
	roomID string
	status model.SessionStatus
}

type fakeNotifier struct {
	notifications []capturedNotification
}

func (n *fakeNotifier) NotifyStatusChanged(roomID string, status model.SessionStatus) {
	n.notifications = append(n.notifications, capturedNotification{roomID, status})
}

func newLifecycleService() (*SessionLifecycleService, *mockSessionRepo, *mockUserRepo, *mockPatientRepo, *mockTherapistRepo, *fakeNotifier) {
	sessions := new(mockSessionRepo)
	users := new(mockUserRepo)
	patients := new(mockPatientRepo)
	therapists := new(mockTherapistRepo)
	notifier := &fakeNotifier{}

	svc := NewSessionLifecycleService(sessions, users, patients, therapists)
	svc.SetNotifier(notifier)
	return svc, sessions, users, patients, therapists, notifier
}

func validCreateInput() CreateSessionInput {
	return CreateSessionInput{
		PatientUserID:   ptr("patient-1"),
		SessionType:     model.SessionTypeIndividual,
		ScheduledDate:   time.Now().Add(24 * time.Hour),
		DurationMinutes: 60,
	}
}

func TestCreateSessionValidation(t *testing.T) {
	svc, sessions, _, _, _, _ := newLifecycleService()
	ctx := context.Background()

	t.Run("patient and quick name are mutually exclusive", func(t *testing.T) {
		in := validCreateInput()
		in.QuickSessionPatientName = ptr("Walk-in")

		_, err := svc.Create(ctx, "therapist-1", in)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeValidation, apperrors.GetCode(err))
	})

	t.Run("one of patient or quick name is required", func(t *testing.T) {
		in := validCreateInput()
		in.PatientUserID = nil

		_, err := svc.Create(ctx, "therapist-1", in)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeValidation, apperrors.GetCode(err))
	})

	t.Run("duration below minimum", func(t *testing.T) {
		in := validCreateInput()
		in.DurationMinutes = 10

		_, err := svc.Create(ctx, "therapist-1", in)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("duration above maximum", func(t *testing.T) {
		in := validCreateInput()
		in.DurationMinutes = 481

		_, err := svc.Create(ctx, "therapist-1", in)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("unknown session type", func(t *testing.T) {
		in := validCreateInput()
		in.SessionType = "hypnosis"

		_, err := svc.Create(ctx, "therapist-1", in)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("scheduled date too far ahead", func(t *testing.T) {
		in := validCreateInput()
		in.ScheduledDate = time.Now().AddDate(0, 0, 400)

		_, err := svc.Create(ctx, "therapist-1", in)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("scheduled date in the past", func(t *testing.T) {
		in := validCreateInput()
		in.ScheduledDate = time.Now().AddDate(0, 0, -2)

		_, err := svc.Create(ctx, "therapist-1", in)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("mood rating out of range", func(t *testing.T) {
		in := validCreateInput()
		in.PatientMoodBefore = ptr(11)

		_, err := svc.Create(ctx, "therapist-1", in)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("known patient session is created upcoming", func(t *testing.T) {
		svc, sessions, users, _, _, _ := newLifecycleService()

		users.On("FindByID", ctx, "patient-1").
			Return(&model.User{ID: "patient-1", Role: model.RolePatient}, nil)
		sessions.On("Create", ctx, mock.MatchedBy(func(p model.CreateSessionParams) bool {
			return p.PatientID != nil && *p.PatientID == "patient-1" &&
				p.Status == model.StatusUpcoming &&
				p.RoomID != ""
		})).Return(&model.Session{ID: "sess-1", Status: model.StatusUpcoming}, nil)

		session, err := svc.Create(ctx, "therapist-1", validCreateInput())
		require.NoError(t, err)
		assert.Equal(t, "sess-1", session.ID)
		sessions.AssertExpectations(t)
	})

	t.Run("quick session carries no patient", func(t *testing.T) {
		svc, sessions, users, _, _, _ := newLifecycleService()

		in := validCreateInput()
		in.PatientUserID = nil
		in.QuickSessionPatientName = ptr("Walk-in")

		sessions.On("Create", ctx, mock.MatchedBy(func(p model.CreateSessionParams) bool {
			return p.PatientID == nil && p.QuickSessionPatientName != nil
		})).Return(&model.Session{ID: "sess-2", IsQuickSession: true}, nil)

		_, err := svc.Create(ctx, "therapist-1", in)
		require.NoError(t, err)
		users.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
		sessions.AssertExpectations(t)
	})

	t.Run("unknown patient refused", func(t *testing.T) {
		svc, sessions, users, _, _, _ := newLifecycleService()

		users.On("FindByID", ctx, "patient-1").Return(nil, nil)

		_, err := svc.Create(ctx, "therapist-1", validCreateInput())
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
		sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestRequestSession(t *testing.T) {
	ctx := context.Background()

	t.Run("unconnected patient cannot request", func(t *testing.T) {
		svc, sessions, _, patients, _, _ := newLifecycleService()

		patients.On("FindByUserID", ctx, "patient-1").
			Return(&model.PatientProfile{ID: "prof-1", UserID: "patient-1"}, nil)

		in := validCreateInput()
		_, err := svc.Request(ctx, "patient-1", "therapist-1", in)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodePermissionDenied, apperrors.GetCode(err))
		sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("connected patient files a requested session", func(t *testing.T) {
		svc, sessions, _, patients, therapists, _ := newLifecycleService()

		patients.On("FindByUserID", ctx, "patient-1").
			Return(&model.PatientProfile{ID: "prof-1", UserID: "patient-1", TherapistID: ptr("tp-1")}, nil)
		therapists.On("FindByUserID", ctx, "therapist-1").
			Return(&model.TherapistProfile{ID: "tp-1", UserID: "therapist-1"}, nil)
		sessions.On("Create", ctx, mock.MatchedBy(func(p model.CreateSessionParams) bool {
			return p.Status == model.StatusRequested &&
				p.TherapistID == "therapist-1" &&
				p.PatientID != nil && *p.PatientID == "patient-1"
		})).Return(&model.Session{ID: "sess-3", Status: model.StatusRequested}, nil)

		session, err := svc.Request(ctx, "patient-1", "therapist-1", validCreateInput())
		require.NoError(t, err)
		assert.Equal(t, model.StatusRequested, session.Status)
		sessions.AssertExpectations(t)
	})

	t.Run("request against another patient's therapist is refused", func(t *testing.T) {
		svc, sessions, _, patients, therapists, _ := newLifecycleService()

		patients.On("FindByUserID", ctx, "patient-1").
			Return(&model.PatientProfile{ID: "prof-1", UserID: "patient-1", TherapistID: ptr("tp-1")}, nil)
		therapists.On("FindByUserID", ctx, "therapist-2").
			Return(&model.TherapistProfile{ID: "tp-2", UserID: "therapist-2"}, nil)

		_, err := svc.Request(ctx, "patient-1", "therapist-2", validCreateInput())
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodePermissionDenied, apperrors.GetCode(err))
		sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("unknown therapist is refused", func(t *testing.T) {
		svc, sessions, _, patients, therapists, _ := newLifecycleService()

		patients.On("FindByUserID", ctx, "patient-1").
			Return(&model.PatientProfile{ID: "prof-1", UserID: "patient-1", TherapistID: ptr("tp-1")}, nil)
		therapists.On("FindByUserID", ctx, "therapist-9").Return(nil, nil)

		_, err := svc.Request(ctx, "patient-1", "therapist-9", validCreateInput())
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
		sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestStartSession(t *testing.T) {
	ctx := context.Background()

	t.Run("starts from upcoming and notifies the room", func(t *testing.T) {
		svc, sessions, _, _, _, notifier := newLifecycleService()

		upcoming := &model.Session{ID: "sess-1", TherapistID: "therapist-1", Status: model.StatusUpcoming, RoomID: "room-1"}
		started := &model.Session{ID: "sess-1", TherapistID: "therapist-1", Status: model.StatusInProgress, RoomID: "room-1"}

		sessions.On("FindByID", ctx, "sess-1").Return(upcoming, nil).Once()
		sessions.On("MarkStarted", ctx, "sess-1", model.StartableStatuses(), mock.Anything).Return(true, nil)
		sessions.On("FindByID", ctx, "sess-1").Return(started, nil).Once()

		session, err := svc.Start(ctx, "sess-1", "therapist-1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusInProgress, session.Status)

		require.Len(t, notifier.notifications, 1)
		assert.Equal(t, "room-1", notifier.notifications[0].roomID)
		assert.Equal(t, model.StatusInProgress, notifier.notifications[0].status)
	})

	t.Run("lost compare-and-set names the fresh status", func(t *testing.T) {
		svc, sessions, _, _, _, notifier := newLifecycleService()

		upcoming := &model.Session{ID: "sess-1", TherapistID: "therapist-1", Status: model.StatusUpcoming, RoomID: "room-1"}
		completed := &model.Session{ID: "sess-1", TherapistID: "therapist-1", Status: model.StatusCompleted, RoomID: "room-1"}

		sessions.On("FindByID", ctx, "sess-1").Return(upcoming, nil).Once()
		sessions.On("MarkStarted", ctx, "sess-1", model.StartableStatuses(), mock.Anything).Return(false, nil)
		sessions.On("FindByID", ctx, "sess-1").Return(completed, nil).Once()

		_, err := svc.Start(ctx, "sess-1", "therapist-1")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidTransition, apperrors.GetCode(err))
		assert.Contains(t, err.Error(), "completed")
		assert.Empty(t, notifier.notifications)
	})

	t.Run("only the owning therapist may start", func(t *testing.T) {
		svc, sessions, _, _, _, _ := newLifecycleService()

		other := &model.Session{ID: "sess-1", TherapistID: "therapist-2", Status: model.StatusUpcoming}
		sessions.On("FindByID", ctx, "sess-1").Return(other, nil)

		_, err := svc.Start(ctx, "sess-1", "therapist-1")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodePermissionDenied, apperrors.GetCode(err))
		sessions.AssertNotCalled(t, "MarkStarted", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestEndSession(t *testing.T) {
	ctx := context.Background()

	t.Run("double end reports invalid transition", func(t *testing.T) {
		svc, sessions, _, _, _, _ := newLifecycleService()

		completed := &model.Session{ID: "sess-1", TherapistID: "therapist-1", Status: model.StatusCompleted, RoomID: "room-1"}
		sessions.On("FindByID", ctx, "sess-1").Return(completed, nil)
		sessions.On("MarkEnded", ctx, "sess-1", mock.Anything, mock.Anything).Return(false, nil)

		_, err := svc.End(ctx, "sess-1", "therapist-1", model.EndSessionParams{})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidTransition, apperrors.GetCode(err))
		assert.Contains(t, err.Error(), "completed")
	})

	t.Run("wrap-up ratings are validated before the write", func(t *testing.T) {
		svc, sessions, _, _, _, _ := newLifecycleService()

		inProgress := &model.Session{ID: "sess-1", TherapistID: "therapist-1", Status: model.StatusInProgress}
		sessions.On("FindByID", ctx, "sess-1").Return(inProgress, nil)

		_, err := svc.End(ctx, "sess-1", "therapist-1", model.EndSessionParams{SessionEffectiveness: ptr(0)})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
		sessions.AssertNotCalled(t, "MarkEnded", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCancelSession(t *testing.T) {
	ctx := context.Background()
	svc, sessions, _, _, _, notifier := newLifecycleService()

	upcoming := &model.Session{ID: "sess-1", TherapistID: "therapist-1", Status: model.StatusUpcoming, RoomID: "room-1"}
	cancelled := &model.Session{ID: "sess-1", TherapistID: "therapist-1", Status: model.StatusCancelled, RoomID: "room-1"}

	sessions.On("FindByID", ctx, "sess-1").Return(upcoming, nil).Once()
	sessions.On("MarkCancelled", ctx, "sess-1", model.CancellableStatuses(), "Cancelled: patient ill", mock.Anything).
		Return(true, nil)
	sessions.On("FindByID", ctx, "sess-1").Return(cancelled, nil).Once()

	session, err := svc.Cancel(ctx, "sess-1", "therapist-1", "patient ill")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, session.Status)

	require.Len(t, notifier.notifications, 1)
	assert.Equal(t, model.StatusCancelled, notifier.notifications[0].status)
}

func TestAssignPatient(t *testing.T) {
	ctx := context.Background()

	t.Run("converts a quick session", func(t *testing.T) {
		svc, sessions, users, _, _, _ := newLifecycleService()

		quick := &model.Session{
			ID: "sess-1", TherapistID: "therapist-1",
			Status: model.StatusCompleted, IsQuickSession: true,
			QuickSessionPatientName: ptr("Walk-in"),
		}
		assigned := &model.Session{ID: "sess-1", TherapistID: "therapist-1", PatientID: ptr("patient-1"), SessionNumber: ptr(3)}

		sessions.On("FindByID", ctx, "sess-1").Return(quick, nil).Once()
		users.On("FindByID", ctx, "patient-1").
			Return(&model.User{ID: "patient-1", Role: model.RolePatient}, nil)
		sessions.On("AssignPatient", ctx, "sess-1", "patient-1").Return(true, nil)
		sessions.On("FindByID", ctx, "sess-1").Return(assigned, nil).Once()

		session, err := svc.AssignPatient(ctx, "sess-1", "therapist-1", "patient-1")
		require.NoError(t, err)
		require.NotNil(t, session.SessionNumber)
		assert.Equal(t, 3, *session.SessionNumber)
	})

	t.Run("refuses a session that already has a patient", func(t *testing.T) {
		svc, sessions, _, _, _, _ := newLifecycleService()

		regular := &model.Session{ID: "sess-1", TherapistID: "therapist-1", PatientID: ptr("patient-2")}
		sessions.On("FindByID", ctx, "sess-1").Return(regular, nil)

		_, err := svc.AssignPatient(ctx, "sess-1", "therapist-1", "patient-1")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeConflict, apperrors.GetCode(err))
		sessions.AssertNotCalled(t, "AssignPatient", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("refuses when another assignment won the race", func(t *testing.T) {
		svc, sessions, users, _, _, _ := newLifecycleService()

		quick := &model.Session{ID: "sess-1", TherapistID: "therapist-1", IsQuickSession: true}
		sessions.On("FindByID", ctx, "sess-1").Return(quick, nil)
		users.On("FindByID", ctx, "patient-1").
			Return(&model.User{ID: "patient-1", Role: model.RolePatient}, nil)
		sessions.On("AssignPatient", ctx, "sess-1", "patient-1").Return(false, nil)

		_, err := svc.AssignPatient(ctx, "sess-1", "therapist-1", "patient-1")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeConflict, apperrors.GetCode(err))
	})
}

func TestDeleteSession(t *testing.T) {
	ctx := context.Background()

	t.Run("completed sessions are part of the record", func(t *testing.T) {
		svc, sessions, _, _, _, _ := newLifecycleService()

		completed := &model.Session{ID: "sess-1", TherapistID: "therapist-1", Status: model.StatusCompleted}
		sessions.On("FindByID", ctx, "sess-1").Return(completed, nil)

		err := svc.Delete(ctx, "sess-1", "therapist-1")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidTransition, apperrors.GetCode(err))
		sessions.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("upcoming sessions can be deleted", func(t *testing.T) {
		svc, sessions, _, _, _, _ := newLifecycleService()

		upcoming := &model.Session{ID: "sess-1", TherapistID: "therapist-1", Status: model.StatusUpcoming}
		sessions.On("FindByID", ctx, "sess-1").Return(upcoming, nil)
		sessions.On("Delete", ctx, "sess-1").Return(nil)

		require.NoError(t, svc.Delete(ctx, "sess-1", "therapist-1"))
		sessions.AssertExpectations(t)
	})
}

func TestGetSessionAccess(t *testing.T) {
	ctx := context.Background()
	svc, sessions, _, _, _, _ := newLifecycleService()

	session := &model.Session{ID: "sess-1", TherapistID: "therapist-1", PatientID: ptr("patient-1")}
	sessions.On("FindByID", ctx, "sess-1").Return(session, nil)

	t.Run("therapist can read", func(t *testing.T) {
		got, err := svc.Get(ctx, "sess-1", "therapist-1")
		require.NoError(t, err)
		assert.Equal(t, "sess-1", got.ID)
	})

	t.Run("assigned patient can read", func(t *testing.T) {
		_, err := svc.Get(ctx, "sess-1", "patient-1")
		require.NoError(t, err)
	})

	t.Run("stranger cannot read", func(t *testing.T) {
		_, err := svc.Get(ctx, "sess-1", "someone-else")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodePermissionDenied, apperrors.GetCode(err))
	})
}

func TestListUpcomingLimit(t *testing.T) {
	ctx := context.Background()
	svc, sessions, _, _, _, _ := newLifecycleService()

	sessions.On("ListUpcoming", ctx, "user-1", model.RolePatient, 10).
		Return([]model.Session{}, nil).Twice()
	sessions.On("ListUpcoming", ctx, "user-1", model.RolePatient, 50).
		Return([]model.Session{}, nil).Once()

	_, err := svc.ListUpcoming(ctx, "user-1", model.RolePatient, 0)
	require.NoError(t, err)
	_, err = svc.ListUpcoming(ctx, "user-1", model.RolePatient, 500)
	require.NoError(t, err)
	_, err = svc.ListUpcoming(ctx, "user-1", model.RolePatient, 50)
	require.NoError(t, err)

	sessions.AssertExpectations(t)
}
