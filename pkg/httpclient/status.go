package httpclient

import (
	"context"

	// Packages
	eventstore "github.com/mediastore/dispatch/pkg/eventstore"
	schema "github.com/mediastore/dispatch/pkg/leasequeue/schema"
	client "github.com/mutablelogic/go-client"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Status reports item counts per queue and status, plus the per-source
// ingest tallies.
type Status struct {
	Queues  []schema.QueueStatus    `json:"queues"`
	Sources []eventstore.SourceStat `json:"sources,omitempty"`
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Status returns queue depth counts from the front door
// (GET /worker/status).
func (c *Client) Status(ctx context.Context) (*Status, error) {
	req := client.NewRequest()

	// Perform request
	var response Status
	if err := c.DoWithContext(ctx, req, &response, client.OptPath("worker", "status")); err != nil {
		return nil, err
	}

	// Return the response
	return &response, nil
}
