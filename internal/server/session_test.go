package server

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/auth"
	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/database"
	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/hub"
	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/thread"
)

func newTestSession(r *Router, userID, connID string) *Session {
	return &Session{
		connID:   connID,
		identity: auth.Identity{UserID: userID, Role: "user"},
		send:     make(chan []byte, 16),
		done:     make(chan struct{}),
		state:    StateIdle,
		joined:   make(map[string]struct{}),
		router:   r,
	}
}

func receivedFrame(t *testing.T, s *Session) Frame {
	t.Helper()
	select {
	case data := <-s.send:
		var frame Frame
		require.NoError(t, json.Unmarshal(data, &frame))
		return frame
	default:
		t.Fatal("expected a frame, send buffer is empty")
		return Frame{}
	}
}

func TestNewFrame(t *testing.T) {
	data := newFrame(evUserTyping, userTypingPayload{UserID: "U1", Typing: true})
	require.NotNil(t, data)

	var frame Frame
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.Equal(t, evUserTyping, frame.Event)

	var payload userTypingPayload
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	assert.Equal(t, "U1", payload.UserID)
	assert.True(t, payload.Typing)
}

func TestDescribeError(t *testing.T) {
	tests := []struct {
		err     error
		message string
	}{
		{database.ErrNotReady, "Service not ready"},
		{database.ErrNotFound, "Not found"},
		{database.ErrTimeout, "Operation timed out"},
		{database.ErrValidation, "Invalid message"},
		{database.ErrWrite, "Failed to store message"},
		{thread.ErrAccessDenied, "Access denied"},
		{thread.ErrInvalidReceiver, "Invalid receiver"},
		{errors.New("boom"), "Internal error"},
	}

	for _, tt := range tests {
		message, _ := describeError(tt.err)
		assert.Equal(t, tt.message, message)
	}
}

// Typing events fan out to the thread channel members except the typist, and
// are never persisted.
func TestHandleTypingFanOut(t *testing.T) {
	h := hub.NewHub()
	router := &Router{hub: h}

	typist := newTestSession(router, "U1", "c1")
	peer := newTestSession(router, "U2", "c2")

	channel := thread.ProductChannel("P1", "U1", "U2")
	h.Join(channel, typist)
	h.Join(channel, peer)

	router.handleTyping(typist, typingPayload{ProductID: "P1", ReceiverID: "U2"}, true)

	frame := receivedFrame(t, peer)
	assert.Equal(t, evUserTyping, frame.Event)

	var payload userTypingPayload
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	assert.Equal(t, "U1", payload.UserID)
	assert.True(t, payload.Typing)

	select {
	case <-typist.send:
		t.Fatal("typist must not receive their own typing indicator")
	default:
	}
}

func TestHandleTypingWithoutReference(t *testing.T) {
	router := &Router{hub: hub.NewHub()}
	s := newTestSession(router, "U1", "c1")

	router.handleTyping(s, typingPayload{}, true)

	frame := receivedFrame(t, s)
	assert.Equal(t, evError, frame.Event)
}

// Against a backend that never becomes ready every join is refused at the
// event boundary with the not-ready error, and no channel is joined.
func TestHandleJoinNotReady(t *testing.T) {
	h := hub.NewHub()
	gate := database.NewReadinessGate(func(ctx context.Context) error { return nil }, time.Second)
	router := &Router{hub: h, gate: gate, readyAttempts: 2, readyInterval: time.Millisecond}

	s := newTestSession(router, "U1", "c1")
	router.handleJoin(s, thread.RFQRef("R1"))

	frame := receivedFrame(t, s)
	assert.Equal(t, evError, frame.Event)

	var payload errorPayload
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	assert.Equal(t, "Service not ready", payload.Message)
	assert.Equal(t, 0, h.Members(thread.RFQChannel("R1")))
}

func TestHandleLeaveUnknownRoom(t *testing.T) {
	router := &Router{hub: hub.NewHub()}
	s := newTestSession(router, "U1", "c1")

	router.handleLeave(s, "rfq-R1")
	select {
	case <-s.send:
		t.Fatal("leaving a room never joined must be silent")
	default:
	}
}

func TestHandleLeave(t *testing.T) {
	h := hub.NewHub()
	router := &Router{hub: h}
	s := newTestSession(router, "U1", "c1")

	h.Join("rfq-R1", s)
	s.joined["rfq-R1"] = struct{}{}

	router.handleLeave(s, "rfq-R1")
	assert.Equal(t, 0, h.Members("rfq-R1"))
	assert.NotContains(t, s.joined, "rfq-R1")
}

func TestDispatchUnknownEvent(t *testing.T) {
	router := &Router{hub: hub.NewHub()}
	s := newTestSession(router, "U1", "c1")

	router.dispatch(s, Frame{Event: "read-receipt"})

	frame := receivedFrame(t, s)
	assert.Equal(t, evError, frame.Event)
}

type alwaysReady struct{}

func (alwaysReady) AwaitReady(context.Context, int, time.Duration) error { return nil }

type fakePersister struct {
	drafts []*database.Draft
	err    error
}

func (p *fakePersister) Persist(_ context.Context, draft *database.Draft) (*database.MessageDoc, error) {
	p.drafts = append(p.drafts, draft)
	if p.err != nil {
		return nil, p.err
	}
	return &database.MessageDoc{
		ID:          "M1",
		Quotation:   draft.QuotationID,
		RFQ:         draft.RFQID,
		Product:     draft.ProductID,
		Sender:      draft.Sender,
		Receiver:    draft.Receiver,
		Body:        draft.Body,
		Attachments: draft.Attachments,
		CreatedAt:   time.Unix(0, 0).UTC(),
	}, nil
}

type fakeDirectory struct {
	quotations map[string]*database.QuotationDoc
	rfqs       map[string]*database.RFQDoc
	products   map[string]*database.ProductDoc
	shops      map[string]*database.ShopDoc
}

func (d *fakeDirectory) QuotationByID(_ context.Context, id string) (*database.QuotationDoc, error) {
	if q, ok := d.quotations[id]; ok {
		return q, nil
	}
	return nil, database.ErrNotFound
}

func (d *fakeDirectory) RFQByID(_ context.Context, id string) (*database.RFQDoc, error) {
	if r, ok := d.rfqs[id]; ok {
		return r, nil
	}
	return nil, database.ErrNotFound
}

func (d *fakeDirectory) ProductByID(_ context.Context, id string) (*database.ProductDoc, error) {
	if p, ok := d.products[id]; ok {
		return p, nil
	}
	return nil, database.ErrNotFound
}

func (d *fakeDirectory) ShopByID(_ context.Context, id string) (*database.ShopDoc, error) {
	if s, ok := d.shops[id]; ok {
		return s, nil
	}
	return nil, database.ErrNotFound
}

func newRoutingRouter(persister *fakePersister) *Router {
	dir := &fakeDirectory{
		quotations: map[string]*database.QuotationDoc{
			"Q1": {ID: "Q1", RFQ: "R1", QuotedBy: "U2"},
		},
		rfqs: map[string]*database.RFQDoc{
			"R1": {ID: "R1", RequestedBy: "U1"},
		},
	}
	return NewRouter(hub.NewHub(), alwaysReady{}, thread.NewResolver(dir, time.Second), persister, 1, time.Millisecond)
}

// A message sent into an RFQ thread is persisted with that reference, fans
// out to the thread channel subscribers, and lands on the receiver's private
// channel whether or not the receiver joined the thread.
func TestHandleSendMessageRFQ(t *testing.T) {
	persister := &fakePersister{}
	router := newRoutingRouter(persister)

	sender := newTestSession(router, "U1", "c1")
	watcher := newTestSession(router, "U3", "c2")
	receiver := newTestSession(router, "U2", "c3")

	router.hub.Join(thread.RFQChannel("R1"), sender)
	router.hub.Join(thread.RFQChannel("R1"), watcher)
	router.hub.Join(thread.UserChannel("U2"), receiver)

	router.handleSendMessage(sender, sendMessagePayload{RFQID: "R1", Receiver: "U2", Message: "hi"})

	require.Len(t, persister.drafts, 1)
	draft := persister.drafts[0]
	assert.Equal(t, "R1", draft.RFQID)
	assert.Empty(t, draft.QuotationID)
	assert.Equal(t, "U1", draft.Sender)
	assert.Equal(t, "U2", draft.Receiver)
	assert.Equal(t, "hi", draft.Body)

	threadFrame := receivedFrame(t, watcher)
	assert.Equal(t, evMessageReceived, threadFrame.Event)

	var payload messageEventPayload
	require.NoError(t, json.Unmarshal(threadFrame.Data, &payload))
	require.NotNil(t, payload.Message)
	assert.Equal(t, "M1", payload.Message.ID)
	assert.Equal(t, "R1", payload.Message.RFQ)
	assert.Equal(t, "hi", payload.Message.Body)
	assert.Equal(t, "R1", payload.RFQID)

	senderFrame := receivedFrame(t, sender)
	assert.Equal(t, evMessageReceived, senderFrame.Event)

	privateFrame := receivedFrame(t, receiver)
	assert.Equal(t, evNewMessage, privateFrame.Event)
	assert.JSONEq(t, string(threadFrame.Data), string(privateFrame.Data))
}

func TestHandleSendMessageDenied(t *testing.T) {
	persister := &fakePersister{}
	router := newRoutingRouter(persister)

	outsider := newTestSession(router, "U3", "c1")
	receiver := newTestSession(router, "U2", "c2")
	router.hub.Join(thread.UserChannel("U2"), receiver)

	router.handleSendMessage(outsider, sendMessagePayload{RFQID: "R1", Receiver: "U2", Message: "hi"})

	frame := receivedFrame(t, outsider)
	assert.Equal(t, evError, frame.Event)

	var payload errorPayload
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	assert.Equal(t, "Access denied", payload.Message)

	assert.Empty(t, persister.drafts)
	select {
	case <-receiver.send:
		t.Fatal("a denied message must not reach the receiver")
	default:
	}
}

func TestHandleSendMessagePersistFailure(t *testing.T) {
	persister := &fakePersister{err: database.ErrWrite}
	router := newRoutingRouter(persister)

	sender := newTestSession(router, "U1", "c1")
	watcher := newTestSession(router, "U3", "c2")
	router.hub.Join(thread.RFQChannel("R1"), watcher)

	router.handleSendMessage(sender, sendMessagePayload{RFQID: "R1", Receiver: "U2", Message: "hi"})

	frame := receivedFrame(t, sender)
	assert.Equal(t, evError, frame.Event)

	var payload errorPayload
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	assert.Equal(t, "Failed to store message", payload.Message)

	select {
	case <-watcher.send:
		t.Fatal("a message that failed to persist must not be broadcast")
	default:
	}
}

func TestHandleSendMessageTwoReferences(t *testing.T) {
	persister := &fakePersister{}
	router := newRoutingRouter(persister)

	sender := newTestSession(router, "U1", "c1")
	router.handleSendMessage(sender, sendMessagePayload{QuotationID: "Q1", RFQID: "R1", Receiver: "U2", Message: "hi"})

	frame := receivedFrame(t, sender)
	assert.Equal(t, evError, frame.Event)

	var payload errorPayload
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	assert.Equal(t, "Invalid message", payload.Message)
	assert.Empty(t, persister.drafts)
}

func TestHandleJoinRFQ(t *testing.T) {
	router := newRoutingRouter(&fakePersister{})
	s := newTestSession(router, "U1", "c1")

	router.handleJoin(s, thread.RFQRef("R1"))

	frame := receivedFrame(t, s)
	assert.Equal(t, evJoinedRoom, frame.Event)

	var payload joinedRoomPayload
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	assert.Equal(t, "rfq-R1", payload.Room)
	assert.Equal(t, "R1", payload.RFQID)
	assert.Empty(t, payload.QuotationID)

	assert.Equal(t, 1, router.hub.Members("rfq-R1"))
	assert.Contains(t, s.joined, "rfq-R1")
}

func TestHandleJoinDenied(t *testing.T) {
	router := newRoutingRouter(&fakePersister{})
	s := newTestSession(router, "U3", "c1")

	router.handleJoin(s, thread.RFQRef("R1"))

	frame := receivedFrame(t, s)
	assert.Equal(t, evError, frame.Event)

	var payload errorPayload
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	assert.Equal(t, "Access denied", payload.Message)
	assert.Equal(t, 0, router.hub.Members("rfq-R1"))
	assert.NotContains(t, s.joined, "rfq-R1")
}

// A product join without a counterpart is rejected before any lookup; the
// channel key needs both participants.
func TestDispatchJoinProductRoomEmptyReceiver(t *testing.T) {
	router := newRoutingRouter(&fakePersister{})
	s := newTestSession(router, "U1", "c1")

	router.dispatch(s, Frame{Event: evJoinProductRoom, Data: json.RawMessage(`{"productId":"P1"}`)})

	frame := receivedFrame(t, s)
	assert.Equal(t, evError, frame.Event)

	var payload errorPayload
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	assert.Equal(t, "Malformed event", payload.Message)
	assert.Empty(t, s.joined)
}

func TestHandleTypingProductEmptyReceiver(t *testing.T) {
	router := &Router{hub: hub.NewHub()}
	s := newTestSession(router, "U1", "c1")

	router.handleTyping(s, typingPayload{ProductID: "P1"}, true)

	frame := receivedFrame(t, s)
	assert.Equal(t, evError, frame.Event)

	var payload errorPayload
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	assert.Equal(t, "Malformed event", payload.Message)
}
