package httphandler

import (
	"net/http"

	// Packages
	eventstore "github.com/mediastore/dispatch/pkg/eventstore"
	leasequeue "github.com/mediastore/dispatch/pkg/leasequeue"
	schema "github.com/mediastore/dispatch/pkg/leasequeue/schema"
	httprequest "github.com/mutablelogic/go-server/pkg/httprequest"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type statusResponse struct {
	Queues  []schema.QueueStatus    `json:"queues"`
	Sources []eventstore.SourceStat `json:"sources,omitempty"`
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// RegisterStatusHandler registers GET /worker/status, which reports item
// counts per queue and status, plus the per-source ingest tallies.
func RegisterStatusHandler(router *http.ServeMux, prefix string, manager *leasequeue.Manager, events *eventstore.Store, middleware HTTPMiddlewareFuncs) {
	router.HandleFunc(joinPath(prefix, "worker/status"), middleware.Wrap(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = status(w, r, manager, events)
		default:
			_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
		}
	}))
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func status(w http.ResponseWriter, r *http.Request, manager *leasequeue.Manager, events *eventstore.Store) error {
	var response statusResponse

	// Queue depth per status
	queues, err := manager.Stats(r.Context())
	if err != nil {
		return httpresponse.Error(w, httperr(err))
	}
	response.Queues = queues

	// Ingest tallies per source
	if events != nil {
		sources, err := events.Sources(r.Context())
		if err != nil {
			return httpresponse.Error(w, httperr(err))
		}
		response.Sources = sources.Body
	}

	// Return success
	return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), response)
}
