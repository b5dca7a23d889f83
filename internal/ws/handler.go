package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Aun-shahid/TherapEase/internal/audit"
	apperrors "github.com/Aun-shahid/TherapEase/internal/errors"
	"github.com/Aun-shahid/TherapEase/internal/model"
	"github.com/Aun-shahid/TherapEase/internal/repository"
	"github.com/Aun-shahid/TherapEase/internal/service"
	"github.com/Aun-shahid/TherapEase/internal/util"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512 * 1024 // audio chunks ride this channel
)

// Handler upgrades and runs one websocket connection per session-room
// participant. Admission failures close the socket with a 4xxx code;
// everything after admission replies or broadcasts without ever closing.
type Handler struct {
	hub       *Hub
	users     repository.UserRepository
	sessions  repository.SessionRepository
	lifecycle *service.SessionLifecycleService

	heartbeat   time.Duration
	idleTimeout time.Duration

	upgrader websocket.Upgrader
}

func NewHandler(
	hub *Hub,
	users repository.UserRepository,
	sessions repository.SessionRepository,
	lifecycle *service.SessionLifecycleService,
	heartbeat, idleTimeout time.Duration,
) *Handler {
	return &Handler{
		hub:         hub,
		users:       users,
		sessions:    sessions,
		lifecycle:   lifecycle,
		heartbeat:   heartbeat,
		idleTimeout: idleTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	// Admission runs after the upgrade so failures can carry a close code.
	user := h.authenticate(r)
	if user == nil {
		h.reject(conn, CloseUnauthorized, "authentication required")
		return
	}

	session, err := h.sessions.FindByRoomID(r.Context(), roomID)
	if err != nil {
		log.Error().Err(err).Str("roomId", roomID).Msg("room lookup failed")
		h.reject(conn, CloseNotFound, "session not found")
		return
	}
	if session == nil {
		h.reject(conn, CloseNotFound, "session not found")
		return
	}

	if !isParticipant(session, user.ID) {
		audit.LogFromRequest(r, audit.Event{
			Type:      audit.EventChannelAdmitDeny,
			UserID:    user.ID,
			SessionID: session.ID,
		})
		h.reject(conn, CloseForbidden, "not a participant of this session")
		return
	}

	client := &Client{
		conn:     conn,
		send:     make(chan []byte, clientSendBuffer),
		roomID:   roomID,
		userID:   user.ID,
		userName: user.FullName(),
		role:     user.Role,
	}
	h.hub.register(client)

	ctx := context.Background()
	if err := h.sessions.SetRoomActive(ctx, roomID, true); err != nil {
		log.Error().Err(err).Str("roomId", roomID).Msg("failed to mark room active")
	}

	h.hub.sendTo(client, mustMarshal(ConnectionEstablished{
		Type:      TypeConnectionEstablished,
		SessionID: session.ID,
		RoomID:    roomID,
		UserType:  string(user.Role),
		Timestamp: now(),
	}))
	h.hub.Broadcast(roomID, mustMarshal(PresenceEvent{
		Type:      TypeUserJoined,
		UserID:    client.userID,
		UserName:  client.userName,
		UserType:  string(client.role),
		Timestamp: now(),
	}), client)

	go h.writePump(client)
	go h.readPump(client, session.ID)
}

func (h *Handler) authenticate(r *http.Request) *model.User {
	token := r.URL.Query().Get("token")
	if token == "" {
		header := r.Header.Get("Authorization")
		if strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimPrefix(header, "Bearer ")
		}
	}
	if token == "" {
		return nil
	}
	user, err := h.users.FindByTokenHash(r.Context(), util.HashToken(token))
	if err != nil {
		log.Error().Err(err).Msg("token lookup failed")
		return nil
	}
	return user
}

func isParticipant(session *model.Session, userID string) bool {
	if session.TherapistID == userID {
		return true
	}
	return session.PatientID != nil && *session.PatientID == userID
}

// reject closes an admitted-but-denied socket with an application close
// code. No server-side retry; reconnection is the client's call.
func (h *Handler) reject(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage, msg)
	_ = conn.Close()
}

// readPump consumes inbound messages until the connection dies. The read
// deadline doubles as the idle-eviction policy: a client that neither sends
// nor answers pings within the timeout is dropped.
func (h *Handler) readPump(c *Client, sessionID string) {
	defer h.disconnect(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.idleTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.idleTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("roomId", c.roomID).Msg("websocket read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(h.idleTimeout))
		h.handleMessage(c, sessionID, data)
	}
}

func (h *Handler) writePump(c *Client) {
	ticker := time.NewTicker(h.heartbeat)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) disconnect(c *Client) {
	remaining := h.hub.unregister(c)
	_ = c.conn.Close()

	h.hub.Broadcast(c.roomID, mustMarshal(PresenceEvent{
		Type:      TypeUserLeft,
		UserID:    c.userID,
		UserName:  c.userName,
		UserType:  string(c.role),
		Timestamp: now(),
	}), nil)

	if remaining == 0 {
		if err := h.sessions.SetRoomActive(context.Background(), c.roomID, false); err != nil {
			log.Error().Err(err).Str("roomId", c.roomID).Msg("failed to mark room inactive")
		}
	}
}

// handleMessage dispatches one inbound message. Errors reply to the sender
// only and never terminate the connection.
func (h *Handler) handleMessage(c *Client, sessionID string, data []byte) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Str("roomId", c.roomID).Msg("message handler panicked")
			h.hub.sendTo(c, errorEvent(CodeInternalError, "internal error"))
		}
	}()

	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		h.hub.sendTo(c, errorEvent(CodeInvalidJSON, "message is not valid JSON"))
		return
	}

	ctx := context.Background()
	session, err := h.sessions.FindByRoomID(ctx, c.roomID)
	if err != nil || session == nil {
		h.hub.sendTo(c, errorEvent(CodeInternalError, "session lookup failed"))
		return
	}
	if !session.Status.IsActive() {
		h.hub.sendTo(c, errorEvent(CodeSessionInactive, "session is no longer active"))
		return
	}

	switch msg.Type {
	case TypeSessionMessage:
		h.handleChat(c, msg)
	case TypeSessionControl:
		h.handleControl(ctx, c, sessionID, msg)
	case TypeAudioData:
		h.hub.Broadcast(c.roomID, mustMarshal(AudioEvent{
			Type:      TypeAudioData,
			AudioData: msg.AudioData,
			SenderID:  c.userID,
			Timestamp: now(),
		}), c)
	case TypeHeartbeat:
		h.hub.sendTo(c, mustMarshal(HeartbeatEvent{
			Type:      TypeHeartbeatResponse,
			Timestamp: now(),
		}))
	default:
		h.hub.sendTo(c, errorEvent(CodeUnknownMessageType, "unrecognized message type"))
	}
}

func (h *Handler) handleChat(c *Client, msg Inbound) {
	text := strings.TrimSpace(msg.Message)
	if text == "" {
		return
	}
	h.hub.Broadcast(c.roomID, mustMarshal(ChatEvent{
		Type:       TypeSessionMessage,
		Message:    text,
		SenderID:   c.userID,
		SenderName: c.userName,
		SenderType: string(c.role),
		Timestamp:  now(),
	}), nil)
}

func (h *Handler) handleControl(ctx context.Context, c *Client, sessionID string, msg Inbound) {
	if c.role != model.RoleTherapist {
		h.hub.sendTo(c, errorEvent(CodePermissionDenied, "only the therapist may control the session"))
		return
	}

	switch msg.Action {
	case ActionStartSession:
		if _, err := h.lifecycle.Start(ctx, sessionID, c.userID); err != nil {
			h.replyLifecycleError(c, err)
		}
	case ActionEndSession:
		if _, err := h.lifecycle.End(ctx, sessionID, c.userID, model.EndSessionParams{}); err != nil {
			h.replyLifecycleError(c, err)
		}
	case ActionPauseSession:
		// accepted by the protocol but has no lifecycle effect; rejected
		// explicitly rather than silently swallowed
		h.hub.sendTo(c, errorEvent(CodePauseNotSupported, "pausing a session is not supported"))
	default:
		h.hub.sendTo(c, errorEvent(CodeUnknownAction, "unrecognized control action"))
	}
}

func (h *Handler) replyLifecycleError(c *Client, err error) {
	if appErr, ok := apperrors.AsAppError(err); ok {
		h.hub.sendTo(c, errorEvent(string(appErr.Code), appErr.Message))
		return
	}
	log.Error().Err(err).Str("roomId", c.roomID).Msg("lifecycle operation failed")
	h.hub.sendTo(c, errorEvent(CodeInternalError, "operation failed"))
}
