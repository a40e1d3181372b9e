package leasequeue

import (
	"context"
	"errors"
	"time"

	// Packages
	schema "github.com/mediastore/dispatch/pkg/leasequeue/schema"
	otel "github.com/mutablelogic/go-client/pkg/otel"
	pg "github.com/mutablelogic/go-pg"
	attribute "go.opentelemetry.io/otel/attribute"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - ITEM

// Enqueue inserts a new pending item into a queue, and returns it.
func (manager *Manager) Enqueue(ctx context.Context, queue string, meta schema.ItemMeta) (*schema.Item, error) {
	var itemId schema.ItemId
	var item schema.Item

	// Insert the item, and return it
	if err := manager.conn.Tx(ctx, func(conn pg.Conn) error {
		if err := conn.With("id", queue).Insert(ctx, &itemId, meta); err != nil {
			return err
		}
		return conn.Get(ctx, &item, itemId)
	}); err != nil {
		return nil, err
	}

	// Return the item
	return &item, nil
}

// Claim atomically leases the oldest pending item in a queue to a worker,
// and returns it. Returns nil if there is no pending item.
func (manager *Manager) Claim(ctx context.Context, queue, worker string) (*schema.Item, error) {
	var itemId schema.ItemId
	var item schema.Item
	var result error

	// Start the span
	ctx, endspan := otel.StartSpan(manager.tracer, ctx, spanName("claim"),
		attribute.String("queue", queue),
		attribute.String("worker", worker),
	)
	defer func() { endspan(result) }()

	// Claim the item, and return it
	if err := manager.conn.Tx(ctx, func(conn pg.Conn) error {
		if err := conn.Get(ctx, &itemId, schema.ItemClaim{
			Queue:  queue,
			Worker: worker,
		}); err != nil {
			return err
		}

		// No item to claim
		if itemId == 0 {
			return nil
		}

		// Get the item
		return conn.Get(ctx, &item, itemId)
	}); err != nil {
		result = err
		return nil, err
	}

	// Return the item
	if itemId == 0 {
		return nil, nil
	} else {
		return &item, nil
	}
}

// Heartbeat renews the lease on an item. Returns false if the item is no
// longer claimed by the worker.
func (manager *Manager) Heartbeat(ctx context.Context, id uint64, worker string) (bool, error) {
	var itemId schema.ItemId
	if err := manager.conn.Get(ctx, &itemId, schema.ItemHeartbeat{Id: id, Worker: worker}); err != nil {
		return false, err
	}
	return itemId != 0, nil
}

// Progress records the execution stage of a claimed item, renewing the
// lease. Returns false if the item is no longer claimed by the worker.
func (manager *Manager) Progress(ctx context.Context, id uint64, worker, stage string) (bool, error) {
	var itemId schema.ItemId
	if err := manager.conn.Get(ctx, &itemId, schema.ItemProgress{Id: id, Worker: worker, Stage: stage}); err != nil {
		return false, err
	}
	return itemId != 0, nil
}

// Complete transitions a claimed item to completed, storing the result.
// Returns false if the item is no longer claimed by the worker.
func (manager *Manager) Complete(ctx context.Context, id uint64, worker string, result any) (bool, error) {
	return manager.CompleteWith(ctx, id, worker, result, nil)
}

// CompleteWith transitions a claimed item to completed after running a
// side effect in the same transaction. When the side effect returns an
// error the transaction is rolled back and the item remains claimed, so
// that the work is eventually retried after lease expiry. Returns false
// if the item is no longer claimed by the worker, in which case the side
// effect is also rolled back.
func (manager *Manager) CompleteWith(ctx context.Context, id uint64, worker string, result any, sideEffect func(pg.Conn) error) (bool, error) {
	var itemId schema.ItemId
	if err := manager.conn.Tx(ctx, func(conn pg.Conn) error {
		if sideEffect != nil {
			if err := sideEffect(conn); err != nil {
				return err
			}
		}
		if err := conn.Get(ctx, &itemId, schema.ItemRelease{Id: id, Worker: worker, Result: result}); err != nil {
			return err
		}
		// Roll back the side effect when the lease has been lost
		if itemId == 0 {
			return pg.ErrNotFound
		}
		return nil
	}); errors.Is(err, pg.ErrNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}

// Fail transitions a claimed item to failed with a cause, or back to
// pending when the item has retries remaining. Returns false if the item
// is no longer claimed by the worker.
func (manager *Manager) Fail(ctx context.Context, id uint64, worker, cause string) (bool, error) {
	var itemId schema.ItemId
	if err := manager.conn.Get(ctx, &itemId, schema.ItemRelease{
		Id:     id,
		Worker: worker,
		Fail:   true,
		Result: map[string]string{"error": cause},
	}); err != nil {
		return false, err
	}
	return itemId != 0, nil
}

// ExpireStale returns claimed items whose heartbeat is older than the
// timeout back to pending, and returns the number of items reclaimed.
func (manager *Manager) ExpireStale(ctx context.Context, queue string, timeout time.Duration) (uint64, error) {
	var expired schema.ItemIdList
	if err := manager.conn.List(ctx, &expired, schema.ItemExpire{Queue: queue, Timeout: timeout}); err != nil {
		return 0, err
	}
	return uint64(len(expired.Body)), nil
}

// CleanFinished deletes terminal items older than the retention window,
// and returns the number of items deleted.
func (manager *Manager) CleanFinished(ctx context.Context, queue string, retention time.Duration) (uint64, error) {
	var deleted schema.ItemIdList
	if err := manager.conn.List(ctx, &deleted, schema.ItemClean{Queue: queue, Retention: retention}); err != nil {
		return 0, err
	}
	return uint64(len(deleted.Body)), nil
}

// GetItem returns an item by id.
func (manager *Manager) GetItem(ctx context.Context, id uint64) (*schema.Item, error) {
	var item schema.Item
	if err := manager.conn.Get(ctx, &item, schema.ItemId(id)); err != nil {
		return nil, err
	}
	return &item, nil
}

// ListItems returns items as a list, with optional queue and status filters.
func (manager *Manager) ListItems(ctx context.Context, req schema.ItemListRequest) (*schema.ItemList, error) {
	var list schema.ItemList
	if err := manager.conn.List(ctx, &list, req); err != nil {
		return nil, err
	}
	return &list, nil
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func spanName(op string) string {
	return schema.SchemaName + ".manager." + op
}
