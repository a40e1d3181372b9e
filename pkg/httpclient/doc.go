// Package httpclient provides a typed Go client for the dispatch worker
// front door.
//
// Create a client with the endpoint and the shared worker secret:
//
//	client, err := httpclient.New("http://localhost:8080/api/v1",
//		httpclient.WithSecret(secret))
//	if err != nil {
//	   panic(err)
//	}
//
// Claim work, renew the lease while executing, and report the outcome:
//
//	job, err := client.ClaimJob(ctx, "worker-1")
//	if job != nil {
//		err = client.JobHeartbeat(ctx, job.Id, "worker-1")
//		err = client.CompleteJob(ctx, job.Id, "worker-1", result)
//	}
//
// A nil item from a claim means the queue is empty. A 404 from a lease
// transition means the lease was lost; test with IsNotFound.
package httpclient
