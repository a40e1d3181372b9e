package httphandler

import (
	"context"
	"encoding/json"
	"net/http"

	// Packages
	eventstore "github.com/mediastore/dispatch/pkg/eventstore"
	leasequeue "github.com/mediastore/dispatch/pkg/leasequeue"
	schema "github.com/mediastore/dispatch/pkg/leasequeue/schema"
	pg "github.com/mutablelogic/go-pg"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
)

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// RegisterBatchHandlers registers the route family for ingested event
// batches. Completion persists the parsed records and the source tally in
// the same transaction as the status transition, so a failed write leaves
// the batch claimed for eventual reclaim.
func RegisterBatchHandlers(router *http.ServeMux, prefix string, manager *leasequeue.Manager, events *eventstore.Store, middleware HTTPMiddlewareFuncs) {
	routes := leaseRoutes{
		manager: manager,
		queue:   schema.QueueIngest,
		complete: func(ctx context.Context, id uint64, worker string, result json.RawMessage) (bool, error) {
			if len(result) == 0 {
				return false, httpresponse.ErrBadRequest.With("missing result")
			}
			var batch eventstore.BatchResult
			if err := json.Unmarshal(result, &batch); err != nil {
				return false, httpresponse.ErrBadRequest.With(err.Error())
			}
			return manager.CompleteWith(ctx, id, worker, batch, func(conn pg.Conn) error {
				return events.SaveBatch(ctx, conn, batch)
			})
		},
	}
	routes.register(router, prefix, "worker/batches", middleware)
}
