package httphandler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	// Packages
	leasequeue "github.com/mediastore/dispatch/pkg/leasequeue"
	httprequest "github.com/mutablelogic/go-server/pkg/httprequest"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// completeFunc releases an item, persisting any domain side effect in the
// same transaction as the status transition.
type completeFunc func(ctx context.Context, id uint64, worker string, result json.RawMessage) (bool, error)

// leaseRoutes is the claim/progress/complete/fail/heartbeat route family
// for one queue kind.
type leaseRoutes struct {
	manager  *leasequeue.Manager
	queue    string
	complete completeFunc
	progress bool
}

type okResponse struct {
	Ok bool `json:"ok"`
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// register adds the route family under the given base path.
func (routes leaseRoutes) register(router *http.ServeMux, prefix, base string, middleware HTTPMiddlewareFuncs) {
	// POST <base>/claim atomically claims the oldest pending item,
	// returning null when there is no work
	router.HandleFunc(joinPath(prefix, base+"/claim"), middleware.Wrap(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			_ = routes.claim(w, r)
		default:
			_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
		}
	}))

	// PUT <base>/{id}/{op} transitions a claimed item under the
	// worker-identity guard
	router.HandleFunc(joinPath(prefix, base+"/{id}/{op}"), middleware.Wrap(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
		if err != nil {
			_ = httpresponse.Error(w, httpresponse.ErrBadRequest.With("invalid item id"), r.PathValue("id"))
			return
		}
		if r.Method != http.MethodPut {
			_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			return
		}
		switch op := r.PathValue("op"); op {
		case "heartbeat":
			_ = routes.heartbeat(w, r, id)
		case "progress":
			if routes.progress {
				_ = routes.stage(w, r, id)
			} else {
				_ = httpresponse.Error(w, httpresponse.ErrNotFound, r.URL.String())
			}
		case "complete":
			_ = routes.release(w, r, id, false)
		case "fail":
			_ = routes.release(w, r, id, true)
		default:
			_ = httpresponse.Error(w, httpresponse.ErrNotFound, r.URL.String())
		}
	}))
}

func (routes leaseRoutes) claim(w http.ResponseWriter, r *http.Request) error {
	var req struct {
		Worker string `json:"worker"`
	}
	if err := httprequest.Read(r, &req); err != nil {
		return httpresponse.Error(w, err)
	}

	// Claim the next item, which may be nil when the queue is empty
	item, err := routes.manager.Claim(r.Context(), routes.queue, req.Worker)
	if err != nil {
		return httpresponse.Error(w, httperr(err))
	}

	// Return success
	return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), item)
}

func (routes leaseRoutes) heartbeat(w http.ResponseWriter, r *http.Request, id uint64) error {
	var req struct {
		Worker string `json:"worker"`
	}
	if err := httprequest.Read(r, &req); err != nil {
		return httpresponse.Error(w, err)
	}

	ok, err := routes.manager.Heartbeat(r.Context(), id, req.Worker)
	if err != nil {
		return httpresponse.Error(w, httperr(err))
	} else if !ok {
		return httpresponse.Error(w, httpresponse.ErrNotFound.With("not claimed by worker"), strconv.FormatUint(id, 10))
	}

	// Return success
	return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), okResponse{Ok: true})
}

func (routes leaseRoutes) stage(w http.ResponseWriter, r *http.Request, id uint64) error {
	var req struct {
		Worker string `json:"worker"`
		Stage  string `json:"stage"`
	}
	if err := httprequest.Read(r, &req); err != nil {
		return httpresponse.Error(w, err)
	}

	ok, err := routes.manager.Progress(r.Context(), id, req.Worker, req.Stage)
	if err != nil {
		return httpresponse.Error(w, httperr(err))
	} else if !ok {
		return httpresponse.Error(w, httpresponse.ErrNotFound.With("not claimed by worker"), strconv.FormatUint(id, 10))
	}

	// Return success
	return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), okResponse{Ok: true})
}

func (routes leaseRoutes) release(w http.ResponseWriter, r *http.Request, id uint64, fail bool) error {
	var req struct {
		Worker string          `json:"worker"`
		Result json.RawMessage `json:"result,omitempty"`
		Error  string          `json:"error,omitempty"`
	}
	if err := httprequest.Read(r, &req); err != nil {
		return httpresponse.Error(w, err)
	}

	var ok bool
	var err error
	if fail {
		ok, err = routes.manager.Fail(r.Context(), id, req.Worker, req.Error)
	} else {
		ok, err = routes.complete(r.Context(), id, req.Worker, req.Result)
	}
	if err != nil {
		return httpresponse.Error(w, httperr(err))
	} else if !ok {
		return httpresponse.Error(w, httpresponse.ErrNotFound.With("not claimed by worker"), strconv.FormatUint(id, 10))
	}

	// Return success
	return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), okResponse{Ok: true})
}
