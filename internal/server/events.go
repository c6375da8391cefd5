package server

import (
	"encoding/json"

	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/database"
	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/logger"
)

// Client -> server and server -> client event names.
const (
	evJoinQuotationRoom = "join-quotation-room"
	evJoinRFQRoom       = "join-rfq-room"
	evJoinProductRoom   = "join-product-room"
	evLeaveRoom         = "leave-room"
	evSendMessage       = "send-message"
	evTyping            = "typing"
	evStopTyping        = "stop-typing"

	evJoinedRoom      = "joined-room"
	evMessageReceived = "message-received"
	evNewMessage      = "new-message"
	evUserTyping      = "user-typing"
	evError           = "error"
)

// Frame is the wire envelope: every event is one JSON text frame.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func newFrame(event string, payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.ErrorF("Failed to serialize %s payload: %v", event, err)
		return nil
	}
	frame, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		logger.ErrorF("Failed to serialize %s frame: %v", event, err)
		return nil
	}
	return frame
}

type joinQuotationPayload struct {
	QuotationID string `json:"quotationId"`
}

type joinRFQPayload struct {
	RFQID string `json:"rfqId"`
}

type joinProductPayload struct {
	ProductID  string `json:"productId"`
	ReceiverID string `json:"receiverId"`
}

type leaveRoomPayload struct {
	Room string `json:"room"`
}

type sendMessagePayload struct {
	QuotationID string                `json:"quotationId,omitempty"`
	RFQID       string                `json:"rfqId,omitempty"`
	ProductID   string                `json:"productId,omitempty"`
	Receiver    string                `json:"receiver"`
	Message     string                `json:"message"`
	Attachments []database.Attachment `json:"attachments,omitempty"`
}

type typingPayload struct {
	QuotationID string `json:"quotationId,omitempty"`
	RFQID       string `json:"rfqId,omitempty"`
	ProductID   string `json:"productId,omitempty"`
	ReceiverID  string `json:"receiverId,omitempty"`
}

type joinedRoomPayload struct {
	Room        string `json:"room"`
	QuotationID string `json:"quotationId,omitempty"`
	RFQID       string `json:"rfqId,omitempty"`
	ProductID   string `json:"productId,omitempty"`
}

type messageEventPayload struct {
	Message     *database.MessageDoc `json:"message"`
	QuotationID string               `json:"quotationId,omitempty"`
	RFQID       string               `json:"rfqId,omitempty"`
	ProductID   string               `json:"productId,omitempty"`
}

type userTypingPayload struct {
	UserID string `json:"userId"`
	Typing bool   `json:"typing"`
}

type errorPayload struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
