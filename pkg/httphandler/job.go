package httphandler

import (
	"context"
	"encoding/json"
	"net/http"

	// Packages
	catalog "github.com/mediastore/dispatch/pkg/catalog"
	leasequeue "github.com/mediastore/dispatch/pkg/leasequeue"
	schema "github.com/mediastore/dispatch/pkg/leasequeue/schema"
	pg "github.com/mutablelogic/go-pg"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
)

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// RegisterJobHandlers registers the route family for media-proxy jobs.
// Completion writes the proxy result into the asset catalog in the same
// transaction as the status transition.
func RegisterJobHandlers(router *http.ServeMux, prefix string, manager *leasequeue.Manager, assets *catalog.Store, middleware HTTPMiddlewareFuncs) {
	routes := leaseRoutes{
		manager:  manager,
		queue:    schema.QueueProxy,
		progress: true,
		complete: func(ctx context.Context, id uint64, worker string, result json.RawMessage) (bool, error) {
			if len(result) == 0 {
				return false, httpresponse.ErrBadRequest.With("missing result")
			}
			var proxy catalog.ProxyResult
			if err := json.Unmarshal(result, &proxy); err != nil {
				return false, httpresponse.ErrBadRequest.With(err.Error())
			}
			return manager.CompleteWith(ctx, id, worker, proxy, func(conn pg.Conn) error {
				return assets.Save(ctx, conn, proxy)
			})
		},
	}
	routes.register(router, prefix, "worker/jobs", middleware)
}
