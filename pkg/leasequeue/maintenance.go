package leasequeue

import (
	"context"
	"os"
	"time"

	// Packages
	schema "github.com/mediastore/dispatch/pkg/leasequeue/schema"
	otel "github.com/mutablelogic/go-client/pkg/otel"
	server "github.com/mutablelogic/go-server"
	logger "github.com/mutablelogic/go-server/pkg/logger"
	ref "github.com/mutablelogic/go-server/pkg/ref"
	types "github.com/mutablelogic/go-server/pkg/types"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - MAINTENANCE

// RunMaintenance sweeps all queues on a fixed period until the context is
// cancelled: stale leases are returned to pending and terminal items past
// their retention window are deleted. A failure in one queue's sweep does
// not block the others. This should be called as a goroutine.
func (manager *Manager) RunMaintenance(ctx context.Context, period time.Duration) error {
	if period <= 0 {
		period = schema.DefaultMaintenancePeriod
	}

	// Get the logger from the context
	log := ref.Log(ctx)
	if log == nil {
		log = logger.New(os.Stdout, logger.Text, false)
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			manager.sweep(ctx, log)
		}
	}
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// sweep expires stale leases and cleans terminal items for every queue.
func (manager *Manager) sweep(ctx context.Context, log server.Logger) {
	// Start the span
	var result error
	ctx, endspan := otel.StartSpan(manager.tracer, ctx, spanName("sweep"))
	defer func() { endspan(result) }()

	// List the queues
	queues, err := manager.ListQueues(ctx, schema.QueueListRequest{})
	if err != nil {
		result = err
		log.Print(ctx, "maintenance: ", err)
		return
	}

	// Sweep each queue independently
	for _, queue := range queues.Body {
		timeout := types.PtrDuration(queue.StaleTimeout)
		if timeout <= 0 {
			timeout = schema.DefaultStaleTimeout
		}
		if expired, err := manager.ExpireStale(ctx, queue.Queue, timeout); err != nil {
			log.With("queue", queue.Queue).Print(ctx, "expire: ", err)
		} else if expired > 0 {
			log.With("queue", queue.Queue, "expired", expired).Print(ctx, "reclaimed stale leases")
		}

		retention := types.PtrDuration(queue.Retention)
		if retention <= 0 {
			retention = schema.DefaultRetention
		}
		if deleted, err := manager.CleanFinished(ctx, queue.Queue, retention); err != nil {
			log.With("queue", queue.Queue).Print(ctx, "clean: ", err)
		} else if deleted > 0 {
			log.With("queue", queue.Queue, "deleted", deleted).Print(ctx, "cleaned terminal items")
		}
	}
}
