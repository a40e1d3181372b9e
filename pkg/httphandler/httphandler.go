package httphandler

import (
	"errors"
	"net/http"

	// Packages
	catalog "github.com/mediastore/dispatch/pkg/catalog"
	eventstore "github.com/mediastore/dispatch/pkg/eventstore"
	leasequeue "github.com/mediastore/dispatch/pkg/leasequeue"
	pg "github.com/mutablelogic/go-pg"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// RegisterWorkerHandlers registers the worker-facing HTTP surface on the
// provided router with the given path prefix: the claim/progress/complete/
// fail/heartbeat route family for each queue kind, the status route and the
// metrics route. All worker routes require the shared secret; an empty
// secret disables the surface entirely.
func RegisterWorkerHandlers(router *http.ServeMux, prefix string, manager *leasequeue.Manager, assets *catalog.Store, events *eventstore.Store, secret string) {
	auth := HTTPMiddlewareFuncs{WorkerAuth(secret)}
	RegisterJobHandlers(router, prefix, manager, assets, auth)
	RegisterBatchHandlers(router, prefix, manager, events, auth)
	RegisterStatusHandler(router, prefix, manager, events, auth)
	RegisterMetricsHandler(router, prefix, manager)
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func joinPath(prefix, path string) string {
	return types.JoinPath(prefix, path)
}

// httperr converts pg errors to appropriate HTTP errors.
// Returns the original error if it's already an httpresponse.Err,
// otherwise maps pg errors to their HTTP equivalents.
func httperr(err error) error {
	if err == nil {
		return nil
	}

	// If already an HTTP error, return as-is
	var httpErr httpresponse.Err
	if errors.As(err, &httpErr) {
		return err
	}

	// Map pg errors to HTTP errors
	switch {
	case errors.Is(err, pg.ErrNotFound):
		return httpresponse.ErrNotFound.With(err.Error())
	case errors.Is(err, pg.ErrBadParameter):
		return httpresponse.ErrBadRequest.With(err.Error())
	case errors.Is(err, pg.ErrNotImplemented):
		return httpresponse.ErrNotImplemented.With(err.Error())
	default:
		return httpresponse.ErrInternalError.With(err.Error())
	}
}
