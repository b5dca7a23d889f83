package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aun-shahid/TherapEase/internal/model"
	"github.com/Aun-shahid/TherapEase/internal/repository"
)

// stubSessionRepo serves FindByRoomID from memory; nothing else on the
// interface is reachable from the message path.
type stubSessionRepo struct {
	repository.SessionRepository
	session *model.Session
}

func (s *stubSessionRepo) FindByRoomID(ctx context.Context, roomID string) (*model.Session, error) {
	return s.session, nil
}

func newMessageHandler(session *model.Session) (*Handler, *Hub) {
	hub := NewHub()
	h := &Handler{
		hub:      hub,
		sessions: &stubSessionRepo{session: session},
	}
	return h, hub
}

func activeSession() *model.Session {
	return &model.Session{
		ID:          "sess-1",
		TherapistID: "therapist-1",
		Status:      model.StatusInProgress,
		RoomID:      "room-1",
	}
}

func lastError(t *testing.T, c *Client) ErrorEvent {
	t.Helper()
	payloads := drain(c)
	require.NotEmpty(t, payloads)

	var event ErrorEvent
	require.NoError(t, json.Unmarshal(payloads[len(payloads)-1], &event))
	require.Equal(t, TypeError, event.Type)
	return event
}

func TestHandleMessageEnvelope(t *testing.T) {
	t.Run("invalid json replies to sender only", func(t *testing.T) {
		h, hub := newMessageHandler(activeSession())
		sender := newTestClient("room-1", "therapist-1", model.RoleTherapist)
		peer := newTestClient("room-1", "patient-1", model.RolePatient)
		hub.register(sender)
		hub.register(peer)

		h.handleMessage(sender, "sess-1", []byte("{not json"))

		assert.Equal(t, CodeInvalidJSON, lastError(t, sender).Code)
		assert.Empty(t, drain(peer))
	})

	t.Run("unknown message type", func(t *testing.T) {
		h, hub := newMessageHandler(activeSession())
		sender := newTestClient("room-1", "therapist-1", model.RoleTherapist)
		hub.register(sender)

		h.handleMessage(sender, "sess-1", []byte(`{"type":"telepathy"}`))

		assert.Equal(t, CodeUnknownMessageType, lastError(t, sender).Code)
	})

	t.Run("inactive session refuses all traffic", func(t *testing.T) {
		session := activeSession()
		session.Status = model.StatusCompleted
		h, hub := newMessageHandler(session)
		sender := newTestClient("room-1", "therapist-1", model.RoleTherapist)
		hub.register(sender)

		h.handleMessage(sender, "sess-1", []byte(`{"type":"session_message","message":"hi"}`))

		assert.Equal(t, CodeSessionInactive, lastError(t, sender).Code)
	})

	t.Run("heartbeat gets a response", func(t *testing.T) {
		h, hub := newMessageHandler(activeSession())
		sender := newTestClient("room-1", "patient-1", model.RolePatient)
		hub.register(sender)

		h.handleMessage(sender, "sess-1", []byte(`{"type":"heartbeat"}`))

		payloads := drain(sender)
		require.Len(t, payloads, 1)

		var event HeartbeatEvent
		require.NoError(t, json.Unmarshal(payloads[0], &event))
		assert.Equal(t, TypeHeartbeatResponse, event.Type)
	})
}

func TestHandleChat(t *testing.T) {
	t.Run("chat reaches sender and peer", func(t *testing.T) {
		h, hub := newMessageHandler(activeSession())
		sender := newTestClient("room-1", "therapist-1", model.RoleTherapist)
		sender.userName = "Dr. Ahmed"
		peer := newTestClient("room-1", "patient-1", model.RolePatient)
		hub.register(sender)
		hub.register(peer)

		h.handleMessage(sender, "sess-1", []byte(`{"type":"session_message","message":"  hello  "}`))

		payloads := drain(peer)
		require.Len(t, payloads, 1)

		var event ChatEvent
		require.NoError(t, json.Unmarshal(payloads[0], &event))
		assert.Equal(t, TypeSessionMessage, event.Type)
		assert.Equal(t, "hello", event.Message)
		assert.Equal(t, "therapist-1", event.SenderID)
		assert.Equal(t, "Dr. Ahmed", event.SenderName)
		assert.Equal(t, "therapist", event.SenderType)

		// sender receives their own message back as confirmation
		assert.Len(t, drain(sender), 1)
	})

	t.Run("blank message is dropped silently", func(t *testing.T) {
		h, hub := newMessageHandler(activeSession())
		sender := newTestClient("room-1", "therapist-1", model.RoleTherapist)
		peer := newTestClient("room-1", "patient-1", model.RolePatient)
		hub.register(sender)
		hub.register(peer)

		h.handleMessage(sender, "sess-1", []byte(`{"type":"session_message","message":"   "}`))

		assert.Empty(t, drain(sender))
		assert.Empty(t, drain(peer))
	})
}

func TestHandleControl(t *testing.T) {
	t.Run("patients may not control the session", func(t *testing.T) {
		h, hub := newMessageHandler(activeSession())
		sender := newTestClient("room-1", "patient-1", model.RolePatient)
		hub.register(sender)

		h.handleMessage(sender, "sess-1", []byte(`{"type":"session_control","action":"start_session"}`))

		assert.Equal(t, CodePermissionDenied, lastError(t, sender).Code)
	})

	t.Run("pause is refused explicitly", func(t *testing.T) {
		h, hub := newMessageHandler(activeSession())
		sender := newTestClient("room-1", "therapist-1", model.RoleTherapist)
		hub.register(sender)

		h.handleMessage(sender, "sess-1", []byte(`{"type":"session_control","action":"pause_session"}`))

		assert.Equal(t, CodePauseNotSupported, lastError(t, sender).Code)
	})

	t.Run("unknown action", func(t *testing.T) {
		h, hub := newMessageHandler(activeSession())
		sender := newTestClient("room-1", "therapist-1", model.RoleTherapist)
		hub.register(sender)

		h.handleMessage(sender, "sess-1", []byte(`{"type":"session_control","action":"rewind_session"}`))

		assert.Equal(t, CodeUnknownAction, lastError(t, sender).Code)
	})
}

func TestHandleAudioRelay(t *testing.T) {
	h, hub := newMessageHandler(activeSession())
	sender := newTestClient("room-1", "therapist-1", model.RoleTherapist)
	peer := newTestClient("room-1", "patient-1", model.RolePatient)
	hub.register(sender)
	hub.register(peer)

	h.handleMessage(sender, "sess-1", []byte(`{"type":"audio_data","audio_data":"c29tZWJ5dGVz"}`))

	// relayed to the peer, never echoed to the sender
	assert.Empty(t, drain(sender))
	payloads := drain(peer)
	require.Len(t, payloads, 1)

	var event AudioEvent
	require.NoError(t, json.Unmarshal(payloads[0], &event))
	assert.Equal(t, TypeAudioData, event.Type)
	assert.Equal(t, "c29tZWJ5dGVz", event.AudioData)
	assert.Equal(t, "therapist-1", event.SenderID)
}

func TestIsParticipant(t *testing.T) {
	session := &model.Session{TherapistID: "therapist-1", PatientID: strp("patient-1")}

	assert.True(t, isParticipant(session, "therapist-1"))
	assert.True(t, isParticipant(session, "patient-1"))
	assert.False(t, isParticipant(session, "stranger"))

	quick := &model.Session{TherapistID: "therapist-1"}
	assert.False(t, isParticipant(quick, "patient-1"))
}

func strp(s string) *string {
	return &s
}
