package database

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	c "github.com/tradelink-dev/tradelink-go-chat-gateway/internal/config"
	event2 "github.com/tradelink-dev/tradelink-go-chat-gateway/internal/event"
	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/logger"
	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/utils"
)

var Client *mongo.Client
var Database *mongo.Database
var Messages *mongo.Collection
var Users *mongo.Collection
var OperationTimeout time.Duration

type DBCloseCallback struct {
}

func NewDBCloseCallback() *DBCloseCallback {
	return &DBCloseCallback{}
}

func (dc *DBCloseCallback) Invoke(ctx context.Context) error {
	logger.InfoF("Closing database connection")
	ctx, cancel := context.WithTimeout(context.Background(), OperationTimeout)
	defer cancel()
	Gate().pause()
	return Client.Disconnect(ctx)
}

func ConnectDatabase() error {
	logger.DebugF("Connecting to database...")
	config, err := c.GetConfig()
	if err != nil {
		return fmt.Errorf("error occured while connecting to database: %v", err)
	}

	OperationTimeout = utils.ParseStringTime(config.Database.OperationTimeout)
	Gate().setState(Connecting)

	encodedUser := url.QueryEscape(config.Database.Username)
	encodedPass := url.QueryEscape(config.Database.Password)
	databaseUrl := fmt.Sprintf("mongodb://%s:%s@%s:%d/?authSource=admin",
		encodedUser, encodedPass,
		config.Database.Host,
		config.Database.Port,
	)

	clientOptions := options.Client().ApplyURI(databaseUrl).SetAppName(config.AppName)
	// pool limits
	clientOptions.SetMinPoolSize(config.Database.MinPoolSize)
	clientOptions.SetMaxPoolSize(config.Database.MaxPoolSize)
	clientOptions.SetMaxConnIdleTime(utils.ParseStringTime(config.Database.ConnectIdleTimeout))
	// timeouts
	clientOptions.SetConnectTimeout(utils.ParseStringTime(config.Database.ConnectTimeout))
	clientOptions.SetSocketTimeout(utils.ParseStringTime(config.Database.SocketTimeout))
	// heartbeat
	clientOptions.SetHeartbeatInterval(utils.ParseStringTime(config.Database.Heartbeat))
	// TLS
	if config.Database.UseTLS {
		tlsConfig := &tls.Config{
			InsecureSkipVerify: false,
		}
		clientOptions.SetTLSConfig(tlsConfig)
	}
	// heartbeat results drive the readiness state; the driver reports
	// disconnection asynchronously, so a ready gate can regress on its own
	clientOptions.SetServerMonitor(&event.ServerMonitor{
		ServerHeartbeatSucceeded: func(evt *event.ServerHeartbeatSucceededEvent) {
			Gate().observeHeartbeat(nil)
		},
		ServerHeartbeatFailed: func(evt *event.ServerHeartbeatFailedEvent) {
			logger.WarnF("Database heartbeat failed: %v", evt.Failure)
			Gate().observeHeartbeat(evt.Failure)
		},
	})
	clientOptions.SetPoolMonitor(&event.PoolMonitor{
		Event: func(evt *event.PoolEvent) {
			switch evt.Type {
			case event.ConnectionCreated:
				logger.DebugF("Database connection created: %+v", evt)
			case event.ConnectionClosed:
				logger.DebugF("Database connection closed: %+v", evt)
			}
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	Client, err = mongo.Connect(ctx, clientOptions)
	if err != nil {
		Gate().setState(Disconnected)
		return fmt.Errorf("error occured while connecting to database: %v", err)
	}

	if err = Client.Ping(ctx, nil); err != nil {
		_ = Client.Disconnect(ctx)
		Gate().setState(Disconnected)
		return fmt.Errorf("error occured while pinging database: %v", err)
	}

	Database = Client.Database(config.Database.Database)
	Messages = Database.Collection(MessageCollectionName)
	Users = Database.Collection(UserCollectionName)

	_, err = Messages.Indexes().CreateOne(
		context.Background(),
		mongo.IndexModel{
			Keys:    bson.D{{Key: "createdAt", Value: 1}},
			Options: options.Index().SetName("messages_created_at"),
		},
	)

	if err != nil {
		return fmt.Errorf("error occured while creating database indexes: %v", err)
	}

	Gate().setState(Ready)
	Gate().startPoller(utils.ParseStringTime(config.Gateway.ReadinessInterval))

	event2.NewCleaner().Add(NewDBCloseCallback())
	return nil
}

// livenessProbe is the cheap existence check run before the gate reports
// ready: a ping plus an estimated count on the users collection, both of
// which the backend answers without scanning documents.
func livenessProbe(ctx context.Context) error {
	if err := Client.Ping(ctx, nil); err != nil {
		return err
	}
	_, err := Users.EstimatedDocumentCount(ctx)
	return err
}
