package leasequeue

import (
	"context"
	"errors"

	// Packages
	schema "github.com/mediastore/dispatch/pkg/leasequeue/schema"
	pg "github.com/mutablelogic/go-pg"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - QUEUE

// RegisterQueue creates a new queue, or updates an existing queue, and returns it.
func (manager *Manager) RegisterQueue(ctx context.Context, meta schema.QueueMeta) (*schema.Queue, error) {
	var queue schema.Queue
	if err := manager.conn.Tx(ctx, func(conn pg.Conn) error {
		// Get a queue
		if err := conn.Get(ctx, &queue, schema.QueueName(meta.Queue)); err != nil && !errors.Is(err, pg.ErrNotFound) {
			return err
		} else if errors.Is(err, pg.ErrNotFound) {
			// If the queue does not exist, then create it
			if err := conn.Insert(ctx, &queue, meta); err != nil {
				return err
			}
		}

		// Apply any explicit settings
		if meta.StaleTimeout == nil && meta.Retention == nil && meta.Retries == nil {
			return nil
		}
		return conn.Update(ctx, &queue, schema.QueueName(meta.Queue), meta)
	}); err != nil {
		return nil, err
	}

	return &queue, nil
}

// GetQueue returns a queue by name.
func (manager *Manager) GetQueue(ctx context.Context, name string) (*schema.Queue, error) {
	var queue schema.Queue
	if err := manager.conn.Get(ctx, &queue, schema.QueueName(name)); err != nil {
		return nil, err
	}
	return &queue, nil
}

// ListQueues returns all queues as a list.
func (manager *Manager) ListQueues(ctx context.Context, req schema.QueueListRequest) (*schema.QueueList, error) {
	var list schema.QueueList
	if err := manager.conn.List(ctx, &list, req); err != nil {
		return nil, err
	}
	return &list, nil
}

// DeleteQueue deletes an existing queue and its items, and returns it.
func (manager *Manager) DeleteQueue(ctx context.Context, name string) (*schema.Queue, error) {
	var queue schema.Queue
	if err := manager.conn.Tx(ctx, func(conn pg.Conn) error {
		return conn.Delete(ctx, &queue, schema.QueueName(name))
	}); err != nil {
		return nil, err
	}
	return &queue, nil
}

// Stats returns the number of items per queue and status.
func (manager *Manager) Stats(ctx context.Context) ([]schema.QueueStatus, error) {
	var resp schema.QueueStatusResponse
	if err := manager.conn.List(ctx, &resp, schema.QueueStatusRequest{}); err != nil {
		return nil, err
	}
	return resp.Body, nil
}
