package httpclient

import (
	"context"

	// Packages
	catalog "github.com/mediastore/dispatch/pkg/catalog"
	schema "github.com/mediastore/dispatch/pkg/leasequeue/schema"
)

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const jobPath = "worker/jobs"

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// ClaimJob claims the oldest pending media-proxy job, returning nil when
// there is no work (POST /worker/jobs/claim).
func (c *Client) ClaimJob(ctx context.Context, worker string) (*schema.Item, error) {
	return c.claim(ctx, jobPath, worker)
}

// JobProgress records the current execution stage of a claimed job
// (PUT /worker/jobs/{id}/progress).
func (c *Client) JobProgress(ctx context.Context, id uint64, worker, stage string) error {
	return c.put(ctx, jobPath, id, "progress", struct {
		Worker string `json:"worker"`
		Stage  string `json:"stage"`
	}{
		Worker: worker,
		Stage:  stage,
	})
}

// JobHeartbeat renews the lease on a claimed job
// (PUT /worker/jobs/{id}/heartbeat).
func (c *Client) JobHeartbeat(ctx context.Context, id uint64, worker string) error {
	return c.put(ctx, jobPath, id, "heartbeat", struct {
		Worker string `json:"worker"`
	}{
		Worker: worker,
	})
}

// CompleteJob reports a job as completed with its proxy result
// (PUT /worker/jobs/{id}/complete).
func (c *Client) CompleteJob(ctx context.Context, id uint64, worker string, result catalog.ProxyResult) error {
	return c.put(ctx, jobPath, id, "complete", struct {
		Worker string              `json:"worker"`
		Result catalog.ProxyResult `json:"result"`
	}{
		Worker: worker,
		Result: result,
	})
}

// FailJob reports a job as failed with a cause
// (PUT /worker/jobs/{id}/fail).
func (c *Client) FailJob(ctx context.Context, id uint64, worker, cause string) error {
	return c.put(ctx, jobPath, id, "fail", struct {
		Worker string `json:"worker"`
		Error  string `json:"error,omitempty"`
	}{
		Worker: worker,
		Error:  cause,
	})
}
