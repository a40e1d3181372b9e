/*
Package worker implements the long-running poll loop for a dispatch
worker process.

A Runner claims items from the front door across its registered queue
kinds, executes them under a concurrency ceiling, and renews each lease
on a fixed period while the item is in flight. When spare capacity
remains after a successful claim the runner claims again immediately,
falling back to the poll interval once the queues are empty.

	client, _ := httpclient.New(endpoint, httpclient.WithSecret(secret))
	runner, _ := worker.NewRunner(client,
		worker.WithConcurrency(8),
		worker.WithPollInterval(5*time.Second))

	runner.HandleJobs(func(ctx context.Context, job catalog.ProxyJob, progress func(string)) (catalog.ProxyResult, error) {
		progress("transcode")
		// ... generate renditions ...
		return result, nil
	})

	runner.Run(ctx)

On shutdown the runner stops polling immediately, waits a bounded time
for in-flight items, and abandons the remainder; the reaper returns
abandoned items to pending once their heartbeats go stale. Handlers must
therefore tolerate at-least-once execution.
*/
package worker
