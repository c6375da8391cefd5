package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/logger"
)

// DBStore exposes the by-id lookups the gateway needs from the shared
// database. Every call carries its own deadline.
type DBStore struct {
	db *mongo.Database
}

var (
	DbStore      *DBStore
	IdEmptyError = errors.New("document id is empty")
)

func NewDatabaseStore() *DBStore {
	if DbStore == nil {
		DbStore = &DBStore{db: Database}
	}
	return DbStore
}

// translateFindError maps driver errors onto the gateway taxonomy.
func translateFindError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("database operation failed: %w", err)
}

func (ds *DBStore) findOne(ctx context.Context, collection string, id string, out interface{}) error {
	if id == "" {
		return IdEmptyError
	}

	opCtx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	filter := bson.D{{Key: "_id", Value: id}}

	startTime := time.Now()
	err := ds.db.Collection(collection).FindOne(opCtx, filter).Decode(out)
	logger.DebugF("%s query cost: %v", collection, time.Since(startTime))

	if err != nil {
		return translateFindError(err)
	}
	return nil
}

func (ds *DBStore) UserByID(ctx context.Context, id string) (*UserDoc, error) {
	var user UserDoc
	if err := ds.findOne(ctx, UserCollectionName, id, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (ds *DBStore) RFQByID(ctx context.Context, id string) (*RFQDoc, error) {
	var rfq RFQDoc
	if err := ds.findOne(ctx, RFQCollectionName, id, &rfq); err != nil {
		return nil, err
	}
	return &rfq, nil
}

func (ds *DBStore) QuotationByID(ctx context.Context, id string) (*QuotationDoc, error) {
	var quotation QuotationDoc
	if err := ds.findOne(ctx, QuotationCollectionName, id, &quotation); err != nil {
		return nil, err
	}
	return &quotation, nil
}

func (ds *DBStore) ProductByID(ctx context.Context, id string) (*ProductDoc, error) {
	var product ProductDoc
	if err := ds.findOne(ctx, ProductCollectionName, id, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (ds *DBStore) ShopByID(ctx context.Context, id string) (*ShopDoc, error) {
	var shop ShopDoc
	if err := ds.findOne(ctx, ShopCollectionName, id, &shop); err != nil {
		return nil, err
	}
	return &shop, nil
}

// UserProjectionByID loads only the display fields used to enrich messages.
func (ds *DBStore) UserProjectionByID(ctx context.Context, id string) (*UserProjection, error) {
	if id == "" {
		return nil, IdEmptyError
	}

	opCtx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	filter := bson.D{{Key: "_id", Value: id}}
	projection := bson.D{
		{Key: "name", Value: 1},
		{Key: "email", Value: 1},
		{Key: "avatar", Value: 1},
	}

	var user UserProjection
	err := ds.db.Collection(UserCollectionName).
		FindOne(opCtx, filter, options.FindOne().SetProjection(projection)).
		Decode(&user)
	if err != nil {
		return nil, translateFindError(err)
	}
	return &user, nil
}

func (ds *DBStore) MessageByID(ctx context.Context, id string) (*MessageDoc, error) {
	var message MessageDoc
	if err := ds.findOne(ctx, MessageCollectionName, id, &message); err != nil {
		return nil, err
	}
	return &message, nil
}
