package leasequeue

import (
	"context"
	"strings"

	// Packages
	sql "github.com/mediastore/dispatch/pkg/leasequeue/sql"
	pg "github.com/mutablelogic/go-pg"
	trace "go.opentelemetry.io/otel/trace"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type Manager struct {
	conn   pg.PoolConn
	tracer trace.Tracer
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New creates a new lease queue manager, creating the schema objects
// if they do not yet exist.
func New(ctx context.Context, conn pg.PoolConn, opt ...Opt) (*Manager, error) {
	self := new(Manager)

	// Apply options
	o, err := applyOpts(opt)
	if err != nil {
		return nil, err
	}
	self.tracer = o.tracer

	// Parse query SQL
	queries, err := pg.NewQueries(strings.NewReader(sql.Queries))
	if err != nil {
		return nil, err
	}

	// Parse object SQL
	objects, err := pg.NewQueries(strings.NewReader(sql.Objects))
	if err != nil {
		return nil, err
	}

	// Check and set connection
	if conn == nil {
		return nil, pg.ErrBadParameter.With("connection is nil")
	} else {
		self.conn = conn.WithQueries(queries).(pg.PoolConn)
	}

	// Execute object SQL
	for _, key := range objects.Keys() {
		if err := self.conn.Exec(ctx, objects.Get(key)); err != nil {
			return nil, err
		}
	}

	// Return success
	return self, nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (manager *Manager) Conn() pg.PoolConn {
	return manager.conn
}
