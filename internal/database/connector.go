package database

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/imaginify/imaginify/backend/go-services/pkg/logger"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/singleflight"
)

// ErrNotConfigured is returned when the connector has no URI to dial.
var ErrNotConfigured = errors.New("mongo uri not configured")

// DialFunc opens a client. ConnectMongo is the production implementation.
type DialFunc func(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error)

// Connector owns the process-wide MongoDB client. The first caller of Client
// dials; concurrent first callers wait on the same dial. A failed dial is not
// cached so a later call can recover once the server is reachable.
type Connector struct {
	uri      string
	database string
	timeout  time.Duration
	dial     DialFunc

	group  singleflight.Group
	mu     sync.RWMutex
	client *mongo.Client
}

func NewConnector(uri, database string, timeout time.Duration) *Connector {
	return &Connector{uri: uri, database: database, timeout: timeout, dial: ConnectMongo}
}

// WithDialer replaces the dial function (tests).
func (c *Connector) WithDialer(d DialFunc) *Connector {
	c.dial = d
	return c
}

// Configured reports whether a URI was provided.
func (c *Connector) Configured() bool { return c.uri != "" }

// Connected reports whether a client has been established.
func (c *Connector) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client != nil
}

// Client returns the shared client, establishing it on first use.
func (c *Connector) Client(ctx context.Context) (*mongo.Client, error) {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client != nil {
		return client, nil
	}
	if c.uri == "" {
		return nil, ErrNotConfigured
	}

	v, err, shared := c.group.Do("connect", func() (interface{}, error) {
		c.mu.RLock()
		existing := c.client
		c.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}
		cl, err := c.dial(ctx, c.uri, c.timeout)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.client = cl
		c.mu.Unlock()
		logger.Infof("connected to MongoDB (database=%s)", c.database)
		return cl, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Debugf("mongo connect shared with concurrent caller")
	}
	return v.(*mongo.Client), nil
}

// Collection returns the named collection of the configured database.
func (c *Connector) Collection(ctx context.Context, name string) (*mongo.Collection, error) {
	client, err := c.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Database(c.database).Collection(name), nil
}

// Ping checks the established client. It does not dial.
func (c *Connector) Ping(ctx context.Context) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil {
		return errors.New("mongo not connected")
	}
	return client.Ping(ctx, nil)
}

// Close disconnects the client if one was established.
func (c *Connector) Close(ctx context.Context) error {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.mu.Unlock()
	if client == nil {
		return nil
	}
	return client.Disconnect(ctx)
}
