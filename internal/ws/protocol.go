package ws

import (
	"encoding/json"
	"time"
)

// Close codes for connection admission failures. Message-level errors never
// close the socket; they reply to the sender only.
const (
	CloseUnauthorized = 4001
	CloseForbidden    = 4003
	CloseNotFound     = 4004
)

// Inbound message types.
const (
	TypeSessionMessage = "session_message"
	TypeSessionControl = "session_control"
	TypeAudioData      = "audio_data"
	TypeHeartbeat      = "heartbeat"
)

// Outbound event types.
const (
	TypeConnectionEstablished = "connection_established"
	TypeUserJoined            = "user_joined"
	TypeUserLeft              = "user_left"
	TypeStatusChanged         = "session_status_changed"
	TypeHeartbeatResponse     = "heartbeat_response"
	TypeError                 = "error"
)

// Control actions a therapist may issue over the channel.
const (
	ActionStartSession = "start_session"
	ActionEndSession   = "end_session"
	ActionPauseSession = "pause_session"
)

// Message-level error codes.
const (
	CodeInvalidJSON        = "INVALID_JSON"
	CodeUnknownMessageType = "UNKNOWN_MESSAGE_TYPE"
	CodeUnknownAction      = "UNKNOWN_ACTION"
	CodePermissionDenied   = "PERMISSION_DENIED"
	CodeSessionInactive    = "SESSION_INACTIVE"
	CodePauseNotSupported  = "PAUSE_NOT_SUPPORTED"
	CodeInternalError      = "INTERNAL_ERROR"
)

// Inbound is the envelope every client message must fit: a required type
// discriminator plus the union of type-specific fields.
type Inbound struct {
	Type      string `json:"type"`
	Message   string `json:"message,omitempty"`
	Action    string `json:"action,omitempty"`
	AudioData string `json:"audio_data,omitempty"`
}

type ConnectionEstablished struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	RoomID    string `json:"room_id"`
	UserType  string `json:"user_type"`
	Timestamp string `json:"timestamp"`
}

type PresenceEvent struct {
	Type      string `json:"type"`
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	UserType  string `json:"user_type"`
	Timestamp string `json:"timestamp"`
}

type ChatEvent struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	SenderType string `json:"sender_type"`
	Timestamp  string `json:"timestamp"`
}

type StatusEvent struct {
	Type      string `json:"type"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type AudioEvent struct {
	Type      string `json:"type"`
	AudioData string `json:"audio_data"`
	SenderID  string `json:"sender_id"`
	Timestamp string `json:"timestamp"`
}

type HeartbeatEvent struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// every event type above marshals unconditionally
		panic(err)
	}
	return data
}

func errorEvent(code, message string) []byte {
	return mustMarshal(ErrorEvent{Type: TypeError, Message: message, Code: code})
}
