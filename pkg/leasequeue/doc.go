/*
Package leasequeue provides a PostgreSQL-backed lease queue for distributing
units of work to external worker processes, with exclusive claiming, liveness
tracking via heartbeats, and automatic reclaim of abandoned work.

# Manager

Create a manager with a connection pool:

	mgr, err := leasequeue.New(ctx, pool)
	if err != nil {
		panic(err)
	}

# Queues

Register queues that define lease expiry and retention behavior:

	timeout := 5 * time.Minute
	queue, err := mgr.RegisterQueue(ctx, schema.QueueMeta{
		Queue:        schema.QueueProxy,
		StaleTimeout: &timeout,
	})

# Items

Producers enqueue work, workers claim and release it:

	// Enqueue an item
	item, err := mgr.Enqueue(ctx, schema.QueueProxy, schema.ItemMeta{
		Payload: map[string]any{"asset": "a1b2"},
	})

	// Claim the oldest pending item (nil when the queue is empty)
	item, err := mgr.Claim(ctx, schema.QueueProxy, "worker-1")

	// Renew the lease while executing
	ok, err := mgr.Heartbeat(ctx, item.Id, "worker-1")

	// Release on success or failure
	ok, err = mgr.Complete(ctx, item.Id, "worker-1", result)
	ok, err = mgr.Fail(ctx, item.Id, "worker-1", "probe failed")

Claiming is a single atomic statement, so two concurrent claims can never
return the same item. Heartbeat, complete and fail are guarded by the
worker identity and return false, not an error, when the lease has been
lost in the meantime.

# Maintenance

Run the periodic sweep which returns stale leases to pending and deletes
terminal items past their retention window:

	go mgr.RunMaintenance(ctx, time.Minute)

# Typed kinds

A Kind provides a typed view over one queue:

	proxy := leasequeue.NewKind[catalog.ProxyJob, catalog.ProxyResult](mgr, schema.QueueProxy)
	item, err := proxy.Enqueue(ctx, catalog.ProxyJob{AssetId: "a1b2"})
*/
package leasequeue
