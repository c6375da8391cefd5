package server

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/auth"
	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/database"
	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/hub"
	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/logger"
	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/thread"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 16 * 1024
)

type SessionState int

const (
	StateConnecting SessionState = iota
	StateAuthenticated
	StateIdle
	StateProcessing
	StateDisconnected
)

// Session is one authenticated websocket connection. All inbound events of a
// session are processed sequentially on its read loop; outbound frames go
// through a buffered channel drained by a single writer goroutine.
type Session struct {
	connID   string
	identity auth.Identity
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	state    SessionState
	joined   map[string]struct{}
	router   *Router
}

func (s *Session) ID() string {
	return s.connID
}

// Deliver queues a frame for the writer goroutine without blocking. A full
// buffer drops the frame: delivery is best effort to an active session.
func (s *Session) Deliver(data []byte) {
	if data == nil {
		return
	}
	select {
	case s.send <- data:
	default:
		logger.WarnF("[%s] Send buffer full, dropping frame", s.connID)
	}
}

func (s *Session) sendError(message, details string) {
	s.Deliver(newFrame(evError, errorPayload{Message: message, Details: details}))
}

func (s *Session) fail(err error) {
	message, details := describeError(err)
	s.sendError(message, details)
}

// describeError maps the error taxonomy onto client-facing messages. Every
// member recovered at the event boundary lands here.
func describeError(err error) (string, string) {
	switch {
	case errors.Is(err, database.ErrNotReady):
		return "Service not ready", ""
	case errors.Is(err, database.ErrNotFound):
		return "Not found", err.Error()
	case errors.Is(err, database.ErrTimeout):
		return "Operation timed out", err.Error()
	case errors.Is(err, database.ErrValidation):
		return "Invalid message", err.Error()
	case errors.Is(err, database.ErrWrite):
		return "Failed to store message", err.Error()
	case errors.Is(err, thread.ErrAccessDenied):
		return "Access denied", ""
	case errors.Is(err, thread.ErrInvalidReceiver):
		return "Invalid receiver", ""
	}
	return "Internal error", err.Error()
}

func (s *Session) readPump() {
	defer s.disconnect()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			handleReadError(s.connID, err)
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.sendError("Malformed event", err.Error())
			continue
		}

		logger.DebugF("[%s] Receive %s event", s.connID, frame.Event)

		// every event returns the session to idle, success or not
		s.state = StateProcessing
		s.router.dispatch(s, frame)
		s.state = StateIdle
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case <-s.done:
			return
		case data := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.DebugF("[%s] Fail to send frame, details: %v", s.connID, err)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// disconnect is the terminal transition. Channel memberships are dropped
// here and nothing is persisted.
func (s *Session) disconnect() {
	s.state = StateDisconnected
	for room := range s.joined {
		s.router.hub.Leave(room, s)
	}
	close(s.done)
	_ = s.conn.Close()
	logger.InfoF("[%s] Session closed for user %s", s.connID, s.identity.UserID)
}

func handleReadError(connID string, err error) {
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		logger.InfoF("[%s] Client close connection", connID)
	case websocket.IsUnexpectedCloseError(err):
		logger.WarnF("[%s] Connection closed unexpectedly, details: %v", connID, err)
	default:
		logger.ErrorF("[%s] Error occured while reading frame, details: %v", connID, err)
	}
}

// ReadinessAwaiter gates event handling on the persistence backend becoming
// verified usable.
type ReadinessAwaiter interface {
	AwaitReady(ctx context.Context, maxAttempts int, interval time.Duration) error
}

// MessagePersister stores a validated draft and returns the stored, enriched
// message.
type MessagePersister interface {
	Persist(ctx context.Context, draft *database.Draft) (*database.MessageDoc, error)
}

var _ ReadinessAwaiter = (*database.ReadinessGate)(nil)
var _ MessagePersister = (*database.MessageStore)(nil)

// Router wires the readiness gate, resolver, authorizer, message store and
// hub together per connection and per inbound event.
type Router struct {
	hub           *hub.Hub
	gate          ReadinessAwaiter
	resolver      *thread.Resolver
	messages      MessagePersister
	readyAttempts int
	readyInterval time.Duration
}

func NewRouter(h *hub.Hub, gate ReadinessAwaiter, resolver *thread.Resolver, messages MessagePersister, readyAttempts int, readyInterval time.Duration) *Router {
	return &Router{
		hub:           h,
		gate:          gate,
		resolver:      resolver,
		messages:      messages,
		readyAttempts: readyAttempts,
		readyInterval: readyInterval,
	}
}

// Attach turns an upgraded, authenticated connection into a live session.
// The session is refused with a typed error frame when the persistence
// backend is not ready; no handlers run on a refused connection.
func (r *Router) Attach(conn *websocket.Conn, identity auth.Identity) {
	connID := uuid.NewString()

	if err := r.gate.AwaitReady(context.Background(), r.readyAttempts, r.readyInterval); err != nil {
		logger.WarnF("[%s] Refusing session for user %s: %v", connID, identity.UserID, err)
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.TextMessage, newFrame(evError, errorPayload{Message: "Service not ready"}))
		_ = conn.Close()
		return
	}

	s := &Session{
		connID:   connID,
		identity: identity,
		conn:     conn,
		send:     make(chan []byte, 64),
		done:     make(chan struct{}),
		state:    StateAuthenticated,
		joined:   make(map[string]struct{}),
		router:   r,
	}

	// every session listens on its private notification channel
	private := thread.UserChannel(identity.UserID)
	r.hub.Join(private, s)
	s.joined[private] = struct{}{}

	logger.InfoF("[%s] Session opened for user %s", connID, identity.UserID)
	s.state = StateIdle

	go s.writePump()
	go s.readPump()
}

func (r *Router) dispatch(s *Session, frame Frame) {
	switch frame.Event {
	case evJoinQuotationRoom:
		var p joinQuotationPayload
		if !decode(s, frame, &p) {
			return
		}
		r.handleJoin(s, thread.QuotationRef(p.QuotationID))
	case evJoinRFQRoom:
		var p joinRFQPayload
		if !decode(s, frame, &p) {
			return
		}
		r.handleJoin(s, thread.RFQRef(p.RFQID))
	case evJoinProductRoom:
		var p joinProductPayload
		if !decode(s, frame, &p) {
			return
		}
		if p.ReceiverID == "" {
			s.sendError("Malformed event", "receiverId is required")
			return
		}
		r.handleJoin(s, thread.ProductRef(p.ProductID, p.ReceiverID))
	case evLeaveRoom:
		var p leaveRoomPayload
		if !decode(s, frame, &p) {
			return
		}
		r.handleLeave(s, p.Room)
	case evSendMessage:
		var p sendMessagePayload
		if !decode(s, frame, &p) {
			return
		}
		r.handleSendMessage(s, p)
	case evTyping:
		var p typingPayload
		if !decode(s, frame, &p) {
			return
		}
		r.handleTyping(s, p, true)
	case evStopTyping:
		var p typingPayload
		if !decode(s, frame, &p) {
			return
		}
		r.handleTyping(s, p, false)
	default:
		s.sendError("Unknown event", frame.Event)
	}
}

func decode(s *Session, frame Frame, out interface{}) bool {
	if err := json.Unmarshal(frame.Data, out); err != nil {
		s.sendError("Malformed event", err.Error())
		return false
	}
	return true
}

func (r *Router) handleJoin(s *Session, ref thread.Reference) {
	ctx := context.Background()

	if err := r.gate.AwaitReady(ctx, r.readyAttempts, r.readyInterval); err != nil {
		s.fail(err)
		return
	}

	snapshot, err := r.resolver.Resolve(ctx, ref)
	if err != nil {
		s.fail(err)
		return
	}

	channel, err := thread.Authorize(s.identity, snapshot, thread.ActionJoin, "")
	if err != nil {
		logger.DebugF("[%s] User %s denied on %s %s: %v", s.connID, s.identity.UserID, ref.Kind, ref.ID, err)
		s.fail(err)
		return
	}

	r.hub.Join(channel, s)
	s.joined[channel] = struct{}{}

	payload := joinedRoomPayload{Room: channel}
	switch ref.Kind {
	case thread.KindQuotation:
		payload.QuotationID = ref.ID
	case thread.KindRFQ:
		payload.RFQID = ref.ID
	case thread.KindProduct:
		payload.ProductID = ref.ID
	}
	s.Deliver(newFrame(evJoinedRoom, payload))
}

func (r *Router) handleLeave(s *Session, room string) {
	if _, ok := s.joined[room]; !ok {
		return
	}
	r.hub.Leave(room, s)
	delete(s.joined, room)
}

func (r *Router) handleSendMessage(s *Session, p sendMessagePayload) {
	ctx := context.Background()

	if err := r.gate.AwaitReady(ctx, r.readyAttempts, r.readyInterval); err != nil {
		s.fail(err)
		return
	}

	draft := &database.Draft{
		QuotationID: p.QuotationID,
		RFQID:       p.RFQID,
		ProductID:   p.ProductID,
		Sender:      s.identity.UserID,
		Receiver:    p.Receiver,
		Body:        p.Message,
		Attachments: p.Attachments,
	}
	if err := draft.Validate(); err != nil {
		s.fail(err)
		return
	}

	var ref thread.Reference
	switch {
	case p.QuotationID != "":
		ref = thread.QuotationRef(p.QuotationID)
	case p.RFQID != "":
		ref = thread.RFQRef(p.RFQID)
	default:
		ref = thread.ProductRef(p.ProductID, p.Receiver)
	}

	snapshot, err := r.resolver.Resolve(ctx, ref)
	if err != nil {
		s.fail(err)
		return
	}

	channel, err := thread.Authorize(s.identity, snapshot, thread.ActionSend, p.Receiver)
	if err != nil {
		s.fail(err)
		return
	}

	message, err := r.messages.Persist(ctx, draft)
	if err != nil {
		s.fail(err)
		return
	}

	payload := messageEventPayload{
		Message:     message,
		QuotationID: p.QuotationID,
		RFQID:       p.RFQID,
		ProductID:   p.ProductID,
	}

	// the thread channel gets the message, and the receiver's private
	// channel is notified independently of their current subscriptions
	r.hub.Broadcast(channel, newFrame(evMessageReceived, payload))
	r.hub.Broadcast(thread.UserChannel(p.Receiver), newFrame(evNewMessage, payload))
}

// handleTyping relays a typing indicator to the thread channel. Indicators
// are never persisted and require no authorization beyond the session being
// attached.
func (r *Router) handleTyping(s *Session, p typingPayload, typing bool) {
	var channel string
	switch {
	case p.QuotationID != "":
		channel = thread.QuotationChannel(p.QuotationID)
	case p.RFQID != "":
		channel = thread.RFQChannel(p.RFQID)
	case p.ProductID != "":
		// an empty counterpart would produce a degenerate channel key
		if p.ReceiverID == "" {
			s.sendError("Malformed event", "receiverId is required")
			return
		}
		channel = thread.ProductChannel(p.ProductID, s.identity.UserID, p.ReceiverID)
	default:
		s.sendError("Malformed event", "typing event carries no thread reference")
		return
	}

	payload := userTypingPayload{UserID: s.identity.UserID, Typing: typing}
	r.hub.BroadcastExcept(channel, s.ID(), newFrame(evUserTyping, payload))
}
