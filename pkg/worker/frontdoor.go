package worker

import (
	"context"
	"encoding/json"
	"errors"

	// Packages
	catalog "github.com/mediastore/dispatch/pkg/catalog"
	eventstore "github.com/mediastore/dispatch/pkg/eventstore"
	httpclient "github.com/mediastore/dispatch/pkg/httpclient"
	schema "github.com/mediastore/dispatch/pkg/leasequeue/schema"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// FrontDoor is the subset of the dispatch front door a runner consumes.
// Implemented by *httpclient.Client.
type FrontDoor interface {
	ClaimJob(ctx context.Context, worker string) (*schema.Item, error)
	JobProgress(ctx context.Context, id uint64, worker, stage string) error
	JobHeartbeat(ctx context.Context, id uint64, worker string) error
	CompleteJob(ctx context.Context, id uint64, worker string, result catalog.ProxyResult) error
	FailJob(ctx context.Context, id uint64, worker, cause string) error

	ClaimBatch(ctx context.Context, worker string) (*schema.Item, error)
	BatchHeartbeat(ctx context.Context, id uint64, worker string) error
	CompleteBatch(ctx context.Context, id uint64, worker string, result eventstore.BatchResult) error
	FailBatch(ctx context.Context, id uint64, worker, cause string) error
}

// JobHandler executes one media-proxy job. The progress callback records
// the current stage; failures to record progress are ignored.
type JobHandler func(ctx context.Context, job catalog.ProxyJob, progress func(stage string)) (catalog.ProxyResult, error)

// BatchHandler parses one event batch.
type BatchHandler func(ctx context.Context, batch eventstore.EventBatch) (eventstore.BatchResult, error)

// kind is one queue kind the runner polls: how to claim, renew and
// release its items. execute invokes beforeReport after the handler
// returns and before the completion report, so the runner can stop the
// heartbeat without racing the transition.
type kind struct {
	name      string
	claim     func(ctx context.Context, worker string) (*schema.Item, error)
	heartbeat func(ctx context.Context, id uint64, worker string) error
	execute   func(ctx context.Context, item *schema.Item, worker string, beforeReport func()) error
}

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

// ErrLeaseLost indicates the front door no longer recognises this worker
// as the holder of a lease.
var ErrLeaseLost = errors.New("lease lost")

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// leaseLost normalizes a front-door rejection into ErrLeaseLost.
func leaseLost(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrLeaseLost) || httpclient.IsNotFound(err) {
		return ErrLeaseLost
	}
	return err
}

// decodePayload round-trips an item payload into its concrete type.
func decodePayload(payload any, dest any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// jobKind builds the media-proxy kind over the front door.
func jobKind(frontdoor FrontDoor, handler JobHandler) kind {
	return kind{
		name: schema.QueueProxy,
		claim: func(ctx context.Context, worker string) (*schema.Item, error) {
			return frontdoor.ClaimJob(ctx, worker)
		},
		heartbeat: func(ctx context.Context, id uint64, worker string) error {
			return leaseLost(frontdoor.JobHeartbeat(ctx, id, worker))
		},
		execute: func(ctx context.Context, item *schema.Item, worker string, beforeReport func()) error {
			var job catalog.ProxyJob
			if err := decodePayload(item.Payload, &job); err != nil {
				beforeReport()
				return leaseLost(frontdoor.FailJob(ctx, item.Id, worker, err.Error()))
			}

			// Run the handler, reporting stage transitions as progress
			var result catalog.ProxyResult
			err := runWork(ctx, func(ctx context.Context) error {
				var err error
				result, err = handler(ctx, job, func(stage string) {
					_ = frontdoor.JobProgress(ctx, item.Id, worker, stage)
				})
				return err
			})

			// Stop the heartbeat before reporting; an abandoned lease is
			// not reported at all
			beforeReport()
			if ctx.Err() != nil {
				return ErrLeaseLost
			}
			if err != nil {
				return leaseLost(frontdoor.FailJob(ctx, item.Id, worker, err.Error()))
			}
			return leaseLost(frontdoor.CompleteJob(ctx, item.Id, worker, result))
		},
	}
}

// batchKind builds the event-batch kind over the front door.
func batchKind(frontdoor FrontDoor, handler BatchHandler) kind {
	return kind{
		name: schema.QueueIngest,
		claim: func(ctx context.Context, worker string) (*schema.Item, error) {
			return frontdoor.ClaimBatch(ctx, worker)
		},
		heartbeat: func(ctx context.Context, id uint64, worker string) error {
			return leaseLost(frontdoor.BatchHeartbeat(ctx, id, worker))
		},
		execute: func(ctx context.Context, item *schema.Item, worker string, beforeReport func()) error {
			var batch eventstore.EventBatch
			if err := decodePayload(item.Payload, &batch); err != nil {
				beforeReport()
				return leaseLost(frontdoor.FailBatch(ctx, item.Id, worker, err.Error()))
			}

			var result eventstore.BatchResult
			err := runWork(ctx, func(ctx context.Context) error {
				var err error
				result, err = handler(ctx, batch)
				return err
			})

			beforeReport()
			if ctx.Err() != nil {
				return ErrLeaseLost
			}
			if err != nil {
				return leaseLost(frontdoor.FailBatch(ctx, item.Id, worker, err.Error()))
			}
			return leaseLost(frontdoor.CompleteBatch(ctx, item.Id, worker, result))
		},
	}
}
