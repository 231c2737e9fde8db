package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/wms-platform/fulfillment-service/pkg/tracing"
)

// Config holds MongoDB connection configuration
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	PingTimeout    time.Duration
	MaxPoolSize    uint64
	MinPoolSize    uint64

	Username string
	Password string
	// AuthDB defaults to "admin" when credentials are set
	AuthDB string

	ReplicaSet string
	// Direct connects to the given host without replica set discovery
	Direct bool
	// Registry overrides the BSON codecs, e.g. to store decimals
	Registry *bsoncodec.Registry
}

// DefaultConfig points at a local single-node replica set
func DefaultConfig() *Config {
	return &Config{
		URI:            "mongodb://localhost:27017",
		Database:       "fulfillment_db",
		ConnectTimeout: 10 * time.Second,
		PingTimeout:    5 * time.Second,
		MaxPoolSize:    100,
		MinPoolSize:    5,
	}
}

func (cfg *Config) clientOptions() *options.ClientOptions {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize)

	if cfg.Username != "" {
		authDB := cfg.AuthDB
		if authDB == "" {
			authDB = "admin"
		}
		opts.SetAuth(options.Credential{
			Username:   cfg.Username,
			Password:   cfg.Password,
			AuthSource: authDB,
		})
	}
	if cfg.ReplicaSet != "" {
		opts.SetReplicaSet(cfg.ReplicaSet)
	}
	if cfg.Direct {
		opts.SetDirect(true)
	}
	if cfg.Registry != nil {
		opts.SetRegistry(cfg.Registry)
	}
	return opts
}

// Client owns the driver connection and the service database
type Client struct {
	client   *mongo.Client
	database *mongo.Database
	name     string
}

// NewClient connects and pings the primary. The connection is dropped again
// when the ping fails.
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	client, err := mongo.Connect(ctx, cfg.clientOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB at %s: %w", cfg.Database, err)
	}

	return &Client{
		client:   client,
		database: client.Database(cfg.Database),
		name:     cfg.Database,
	}, nil
}

// Database returns the service database
func (c *Client) Database() *mongo.Database {
	return c.database
}

// Close disconnects the client
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// HealthCheck pings the primary
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// WithTransaction runs fn inside a snapshot/majority transaction. The driver
// re-invokes fn on TransientTransactionError, so fn must derive everything
// from reads made through sessCtx.
func (c *Client) WithTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) (err error) {
	ctx, span := tracing.StartSpan(ctx, "mongodb.transaction",
		semconv.DBSystemMongoDB,
		semconv.DBNameKey.String(c.name),
	)
	defer func() { tracing.EndSpan(span, err) }()

	session, err := c.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	}, txnOpts)
	return err
}

// IsDuplicateKey reports whether err is a unique index violation
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// IsNotFound reports whether err is mongo.ErrNoDocuments
func IsNotFound(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
