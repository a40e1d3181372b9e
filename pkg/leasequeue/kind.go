package leasequeue

import (
	"context"
	"encoding/json"

	// Packages
	schema "github.com/mediastore/dispatch/pkg/leasequeue/schema"
	pg "github.com/mutablelogic/go-pg"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Kind is a typed view over one queue, parameterized by its payload and
// result types. The claim, heartbeat and expiry protocol is shared across
// kinds; only the payload and result shapes differ.
type Kind[P, R any] struct {
	name    string
	manager *Manager
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewKind returns a typed view over the named queue.
func NewKind[P, R any](manager *Manager, name string) Kind[P, R] {
	return Kind[P, R]{name: name, manager: manager}
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (k Kind[P, R]) Name() string {
	return k.name
}

// Enqueue inserts a new pending item with a typed payload.
func (k Kind[P, R]) Enqueue(ctx context.Context, payload P) (*schema.Item, error) {
	return k.manager.Enqueue(ctx, k.name, schema.ItemMeta{Payload: payload})
}

// Claim leases the oldest pending item to a worker, or returns nil.
func (k Kind[P, R]) Claim(ctx context.Context, worker string) (*schema.Item, error) {
	return k.manager.Claim(ctx, k.name, worker)
}

// Complete transitions a claimed item to completed with a typed result.
func (k Kind[P, R]) Complete(ctx context.Context, id uint64, worker string, result R) (bool, error) {
	return k.manager.Complete(ctx, id, worker, result)
}

// CompleteWith transitions a claimed item to completed with a typed result,
// running the side effect in the same transaction.
func (k Kind[P, R]) CompleteWith(ctx context.Context, id uint64, worker string, result R, sideEffect func(pg.Conn) error) (bool, error) {
	return k.manager.CompleteWith(ctx, id, worker, result, sideEffect)
}

// Payload decodes the opaque payload of an item into the kind's payload type.
func (k Kind[P, R]) Payload(item *schema.Item) (P, error) {
	var payload P
	data, err := json.Marshal(item.Payload)
	if err != nil {
		return payload, err
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, err
	}
	return payload, nil
}

// Result decodes the stored result of a terminal item into the kind's
// result type.
func (k Kind[P, R]) Result(item *schema.Item) (R, error) {
	var result R
	data, err := json.Marshal(item.Result)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, err
	}
	return result, nil
}
