package connections

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/v2/event"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"tenantplane/internal/platform/docstore"
)

// MongoDialer opens a MongoDB client per tenant.
type MongoDialer struct {
	logger         *slog.Logger
	databasePrefix string
}

// NewMongoDialer returns a dialer that names databases "<prefix>_<tenant>"
// when the connection string does not name one.
func NewMongoDialer(logger *slog.Logger, databasePrefix string) *MongoDialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &MongoDialer{logger: logger, databasePrefix: databasePrefix}
}

// Dial connects, registers server listeners and pings the primary.
func (d *MongoDialer) Dial(ctx context.Context, tenantKey, uri string) (Conn, error) {
	logger := d.logger.With("tenant", tenantKey)
	monitor := &event.ServerMonitor{
		ServerOpening: func(e *event.ServerOpeningEvent) {
			logger.Info("tenant store connected", "address", e.Address)
		},
		ServerHeartbeatFailed: func(e *event.ServerHeartbeatFailedEvent) {
			logger.Warn("tenant store heartbeat failed", "connection", e.ConnectionID, "error", e.Failure)
		},
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetServerMonitor(monitor))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	name := databaseName(uri)
	if name == "" {
		name = d.databasePrefix + "_" + tenantKey
	}
	return &mongoConn{client: client, db: docstore.NewMongo(client.Database(name))}, nil
}

// databaseName returns the database path segment of a mongodb:// URI.
func databaseName(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return strings.Trim(u.Path, "/")
}

type mongoConn struct {
	client *mongo.Client
	db     docstore.Database
}

func (c *mongoConn) Database() docstore.Database     { return c.db }
func (c *mongoConn) Ping(ctx context.Context) error  { return c.client.Ping(ctx, readpref.Primary()) }
func (c *mongoConn) Close(ctx context.Context) error { return c.client.Disconnect(ctx) }

// MemoryDialer hands every tenant its own in-process database.
type MemoryDialer struct{}

// Dial returns a fresh in-memory database named after the tenant.
func (MemoryDialer) Dial(_ context.Context, tenantKey, _ string) (Conn, error) {
	return NewStaticConn(docstore.NewMemory(tenantKey)), nil
}

// StaticConn wraps a database whose lifetime is managed elsewhere.
type StaticConn struct {
	db docstore.Database
}

// NewStaticConn wraps db. Ping and Close are no-ops.
func NewStaticConn(db docstore.Database) *StaticConn {
	return &StaticConn{db: db}
}

func (c *StaticConn) Database() docstore.Database { return c.db }
func (c *StaticConn) Ping(context.Context) error  { return nil }
func (c *StaticConn) Close(context.Context) error { return nil }
