package httpclient

import (
	"context"

	// Packages
	eventstore "github.com/mediastore/dispatch/pkg/eventstore"
	schema "github.com/mediastore/dispatch/pkg/leasequeue/schema"
)

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const batchPath = "worker/batches"

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// ClaimBatch claims the oldest pending event batch, returning nil when
// there is no work (POST /worker/batches/claim).
func (c *Client) ClaimBatch(ctx context.Context, worker string) (*schema.Item, error) {
	return c.claim(ctx, batchPath, worker)
}

// BatchHeartbeat renews the lease on a claimed batch
// (PUT /worker/batches/{id}/heartbeat).
func (c *Client) BatchHeartbeat(ctx context.Context, id uint64, worker string) error {
	return c.put(ctx, batchPath, id, "heartbeat", struct {
		Worker string `json:"worker"`
	}{
		Worker: worker,
	})
}

// CompleteBatch reports a batch as completed with its parsed records,
// which the front door persists in the same transaction as the status
// transition (PUT /worker/batches/{id}/complete).
func (c *Client) CompleteBatch(ctx context.Context, id uint64, worker string, result eventstore.BatchResult) error {
	return c.put(ctx, batchPath, id, "complete", struct {
		Worker string                 `json:"worker"`
		Result eventstore.BatchResult `json:"result"`
	}{
		Worker: worker,
		Result: result,
	})
}

// FailBatch reports a batch as failed with a cause
// (PUT /worker/batches/{id}/fail).
func (c *Client) FailBatch(ctx context.Context, id uint64, worker, cause string) error {
	return c.put(ctx, batchPath, id, "fail", struct {
		Worker string `json:"worker"`
		Error  string `json:"error,omitempty"`
	}{
		Worker: worker,
		Error:  cause,
	})
}
