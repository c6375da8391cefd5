package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/logger"
)

// Draft is an inbound message before persistence. Exactly one of QuotationID,
// RFQID and ProductID must be set.
type Draft struct {
	QuotationID string
	RFQID       string
	ProductID   string
	Sender      string
	Receiver    string
	Body        string
	Attachments []Attachment
}

// Validate rejects a draft before any write reaches the database.
func (d *Draft) Validate() error {
	refs := 0
	for _, id := range []string{d.QuotationID, d.RFQID, d.ProductID} {
		if id != "" {
			refs++
		}
	}
	if refs != 1 {
		return fmt.Errorf("%w: exactly one of quotation, rfq and product must be set, got %d", ErrValidation, refs)
	}
	if d.Sender == "" {
		return fmt.Errorf("%w: sender is required", ErrValidation)
	}
	if d.Receiver == "" {
		return fmt.Errorf("%w: receiver is required", ErrValidation)
	}
	if d.Body == "" && len(d.Attachments) == 0 {
		return fmt.Errorf("%w: message body is empty", ErrValidation)
	}
	return nil
}

// MessageStore persists messages against the raw driver. Each write and the
// read-back confirming it carry their own deadline, so a connection stuck
// mid-transition fails fast instead of queuing the write indefinitely.
type MessageStore struct {
	messages *mongo.Collection
	lookups  *DBStore
}

var messageStoreInstance *MessageStore

func NewMessageStore() *MessageStore {
	if messageStoreInstance == nil {
		messageStoreInstance = &MessageStore{
			messages: Messages,
			lookups:  NewDatabaseStore(),
		}
	}
	return messageStoreInstance
}

func (ms *MessageStore) Persist(ctx context.Context, draft *Draft) (*MessageDoc, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	doc := &MessageDoc{
		ID:          primitive.NewObjectID().Hex(),
		Quotation:   draft.QuotationID,
		RFQ:         draft.RFQID,
		Product:     draft.ProductID,
		Sender:      draft.Sender,
		Receiver:    draft.Receiver,
		Body:        draft.Body,
		Attachments: draft.Attachments,
		CreatedAt:   time.Now().UTC(),
	}

	insertCtx, cancelInsert := context.WithTimeout(ctx, OperationTimeout)
	defer cancelInsert()

	startTime := time.Now()
	_, err := ms.messages.InsertOne(insertCtx, doc)
	logger.DebugF("message insert cost: %v", time.Since(startTime))

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err) {
			return nil, fmt.Errorf("%w: insert exceeded %v", ErrTimeout, OperationTimeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrWrite, err)
	}

	// read back under its own deadline to confirm the write is visible
	readCtx, cancelRead := context.WithTimeout(ctx, OperationTimeout)
	defer cancelRead()

	var stored MessageDoc
	err = ms.messages.FindOne(readCtx, bson.D{{Key: "_id", Value: doc.ID}}).Decode(&stored)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err) {
			return nil, fmt.Errorf("%w: read-back exceeded %v", ErrTimeout, OperationTimeout)
		}
		return nil, fmt.Errorf("%w: write not confirmed: %v", ErrWrite, err)
	}

	// enrichment is best effort, the message is already durably stored
	sender, err := ms.lookups.UserProjectionByID(ctx, stored.Sender)
	if err != nil {
		logger.WarnF("Failed to resolve sender %s for message %s: %v", stored.Sender, stored.ID, err)
	} else {
		stored.SenderInfo = sender
	}

	return &stored, nil
}
