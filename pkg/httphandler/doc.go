/*
Package httphandler provides the worker-facing HTTP surface for the
dispatch lease queue.

All worker routes require the shared secret presented as
"Authorization: Worker <secret>". When no secret is configured, the
surface is disabled and every request is rejected.

# Job Endpoints (media-proxy generation)

	POST /worker/jobs/claim           - Claim the oldest pending job, or null
	PUT  /worker/jobs/{id}/progress   - Record the current stage
	PUT  /worker/jobs/{id}/heartbeat  - Renew the lease
	PUT  /worker/jobs/{id}/complete   - Store the result in the asset catalog
	PUT  /worker/jobs/{id}/fail       - Record the failure

# Batch Endpoints (ingested log events)

	POST /worker/batches/claim           - Claim the oldest pending batch, or null
	PUT  /worker/batches/{id}/heartbeat  - Renew the lease
	PUT  /worker/batches/{id}/complete   - Persist parsed records with the transition
	PUT  /worker/batches/{id}/fail       - Record the failure

# Status and Metrics

	GET /worker/status - Item counts per queue and status, ingest tallies
	GET /metrics       - Prometheus metrics (no worker auth)

# Usage

	manager, _ := leasequeue.New(ctx, conn)
	assets, _ := catalog.NewStore(ctx, conn)
	events, _ := eventstore.NewStore(ctx, conn)
	router := http.NewServeMux()

	httphandler.RegisterWorkerHandlers(router, "/api/v1", manager, assets, events, secret)
*/
package httphandler
