package sheet

import (
	"context"
	"errors"
	"sync"
)

// Dialer opens a Backend for a resource.
type Dialer func(ctx context.Context, resource string) (Backend, error)

// Connection lazily dials and caches one Backend per resource. It is the
// process-wide authenticated client: created once, shared by reference and
// safe for concurrent use. Failed dials are not cached.
type Connection struct {
	dial     Dialer
	backends map[string]Backend
	mx       sync.RWMutex
}

// NewConnection returns a Connection that dials with dial on first use.
func NewConnection(dial Dialer) *Connection {
	return &Connection{
		dial:     dial,
		backends: make(map[string]Backend),
	}
}

// Backend returns the backend for resource, dialing it on first use.
func (c *Connection) Backend(ctx context.Context, resource string) (Backend, error) {
	if resource == "" {
		return nil, errors.New("resource name cannot be empty")
	}

	c.mx.RLock()
	if b, ok := c.backends[resource]; ok {
		c.mx.RUnlock()
		return b, nil
	}
	c.mx.RUnlock()

	c.mx.Lock()
	defer c.mx.Unlock()

	if b, ok := c.backends[resource]; ok {
		return b, nil
	}

	b, err := c.dial(ctx, resource)
	if err != nil {
		return nil, classify("connect", "", err)
	}
	c.backends[resource] = b
	return b, nil
}

// Reset drops all dialed backends.
func (c *Connection) Reset() {
	c.mx.Lock()
	defer c.mx.Unlock()

	c.backends = make(map[string]Backend)
}
