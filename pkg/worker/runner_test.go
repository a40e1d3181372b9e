package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	// Packages
	catalog "github.com/mediastore/dispatch/pkg/catalog"
	eventstore "github.com/mediastore/dispatch/pkg/eventstore"
	schema "github.com/mediastore/dispatch/pkg/leasequeue/schema"
	worker "github.com/mediastore/dispatch/pkg/worker"
	assert "github.com/stretchr/testify/assert"
)

////////////////////////////////////////////////////////////////////////////////
// FAKE FRONT DOOR

// frontdoor is an in-memory front door which leases items from two
// slices and records every report it receives.
type frontdoor struct {
	sync.Mutex
	jobs    []*schema.Item
	batches []*schema.Item

	heartbeats   map[uint64]int
	heartbeatErr error
	completed    map[uint64]catalog.ProxyResult
	ingested     map[uint64]eventstore.BatchResult
	failed       map[uint64]string
	stages       map[uint64][]string
}

func newFrontdoor() *frontdoor {
	return &frontdoor{
		heartbeats: make(map[uint64]int),
		completed:  make(map[uint64]catalog.ProxyResult),
		ingested:   make(map[uint64]eventstore.BatchResult),
		failed:     make(map[uint64]string),
		stages:     make(map[uint64][]string),
	}
}

func (f *frontdoor) addJob(id uint64, payload any) {
	f.Lock()
	defer f.Unlock()
	f.jobs = append(f.jobs, &schema.Item{
		Id:       id,
		ItemMeta: schema.ItemMeta{Payload: payload},
		Queue:    schema.QueueProxy,
		Status:   schema.StatusPending,
	})
}

func (f *frontdoor) addBatch(id uint64, payload any) {
	f.Lock()
	defer f.Unlock()
	f.batches = append(f.batches, &schema.Item{
		Id:       id,
		ItemMeta: schema.ItemMeta{Payload: payload},
		Queue:    schema.QueueIngest,
		Status:   schema.StatusPending,
	})
}

func (f *frontdoor) claim(items *[]*schema.Item) (*schema.Item, error) {
	f.Lock()
	defer f.Unlock()
	if len(*items) == 0 {
		return nil, nil
	}
	item := (*items)[0]
	*items = (*items)[1:]
	return item, nil
}

func (f *frontdoor) ClaimJob(ctx context.Context, w string) (*schema.Item, error) {
	return f.claim(&f.jobs)
}

func (f *frontdoor) ClaimBatch(ctx context.Context, w string) (*schema.Item, error) {
	return f.claim(&f.batches)
}

func (f *frontdoor) JobHeartbeat(ctx context.Context, id uint64, w string) error {
	f.Lock()
	defer f.Unlock()
	f.heartbeats[id]++
	return f.heartbeatErr
}

func (f *frontdoor) BatchHeartbeat(ctx context.Context, id uint64, w string) error {
	return f.JobHeartbeat(ctx, id, w)
}

func (f *frontdoor) JobProgress(ctx context.Context, id uint64, w, stage string) error {
	f.Lock()
	defer f.Unlock()
	f.stages[id] = append(f.stages[id], stage)
	return nil
}

func (f *frontdoor) CompleteJob(ctx context.Context, id uint64, w string, result catalog.ProxyResult) error {
	f.Lock()
	defer f.Unlock()
	f.completed[id] = result
	return nil
}

func (f *frontdoor) CompleteBatch(ctx context.Context, id uint64, w string, result eventstore.BatchResult) error {
	f.Lock()
	defer f.Unlock()
	f.ingested[id] = result
	return nil
}

func (f *frontdoor) FailJob(ctx context.Context, id uint64, w, cause string) error {
	f.Lock()
	defer f.Unlock()
	f.failed[id] = cause
	return nil
}

func (f *frontdoor) FailBatch(ctx context.Context, id uint64, w, cause string) error {
	return f.FailJob(ctx, id, w, cause)
}

func (f *frontdoor) completedCount() int {
	f.Lock()
	defer f.Unlock()
	return len(f.completed) + len(f.ingested)
}

func (f *frontdoor) failedCause(id uint64) (string, bool) {
	f.Lock()
	defer f.Unlock()
	cause, ok := f.failed[id]
	return cause, ok
}

func (f *frontdoor) heartbeatCount(id uint64) int {
	f.Lock()
	defer f.Unlock()
	return f.heartbeats[id]
}

func (f *frontdoor) setHeartbeatErr(err error) {
	f.Lock()
	defer f.Unlock()
	f.heartbeatErr = err
}

////////////////////////////////////////////////////////////////////////////////
// RUNNER LIFECYCLE TESTS

func Test_Runner_New(t *testing.T) {
	assert := assert.New(t)
	fd := newFrontdoor()

	t.Run("Defaults", func(t *testing.T) {
		runner, err := worker.NewRunner(fd)
		assert.NoError(err)
		assert.NotNil(runner)
		assert.NotEmpty(runner.Name())
		assert.Zero(runner.Leases())
	})

	t.Run("WithName", func(t *testing.T) {
		runner, err := worker.NewRunner(fd, worker.WithName("unit-worker"))
		assert.NoError(err)
		assert.Equal("unit-worker", runner.Name())
	})

	t.Run("InvalidConcurrency", func(t *testing.T) {
		_, err := worker.NewRunner(fd, worker.WithConcurrency(0))
		assert.ErrorIs(err, worker.ErrInvalidConcurrency)
	})

	t.Run("InvalidPollInterval", func(t *testing.T) {
		_, err := worker.NewRunner(fd, worker.WithPollInterval(100*time.Microsecond))
		assert.ErrorIs(err, worker.ErrInvalidPeriod)
	})

	t.Run("NoHandlers", func(t *testing.T) {
		runner, err := worker.NewRunner(fd)
		assert.NoError(err)
		assert.Error(runner.Run(context.TODO()))
	})
}

////////////////////////////////////////////////////////////////////////////////
// EXECUTION TESTS

func Test_Runner_Jobs(t *testing.T) {
	assert := assert.New(t)

	t.Run("Complete", func(t *testing.T) {
		fd := newFrontdoor()
		fd.addJob(1, catalog.ProxyJob{AssetId: "a1", Path: "/in/a1.mov"})

		runner, err := worker.NewRunner(fd, worker.WithName("w1"), worker.WithPollInterval(10*time.Millisecond))
		assert.NoError(err)
		runner.HandleJobs(func(ctx context.Context, job catalog.ProxyJob, progress func(string)) (catalog.ProxyResult, error) {
			progress("transcode")
			return catalog.ProxyResult{AssetId: job.AssetId}, nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- runner.Run(ctx) }()

		assert.Eventually(func() bool { return fd.completedCount() == 1 }, time.Second, 10*time.Millisecond)
		cancel()
		assert.NoError(<-done)

		fd.Lock()
		defer fd.Unlock()
		assert.Equal("a1", fd.completed[1].AssetId)
		assert.Equal([]string{"transcode"}, fd.stages[1])
	})

	t.Run("HandlerError", func(t *testing.T) {
		fd := newFrontdoor()
		fd.addJob(2, catalog.ProxyJob{AssetId: "a2"})

		runner, err := worker.NewRunner(fd, worker.WithName("w1"), worker.WithPollInterval(10*time.Millisecond))
		assert.NoError(err)
		runner.HandleJobs(func(ctx context.Context, job catalog.ProxyJob, progress func(string)) (catalog.ProxyResult, error) {
			return catalog.ProxyResult{}, errors.New("codec not supported")
		})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- runner.Run(ctx) }()

		assert.Eventually(func() bool {
			_, ok := fd.failedCause(2)
			return ok
		}, time.Second, 10*time.Millisecond)
		cancel()
		assert.NoError(<-done)

		cause, _ := fd.failedCause(2)
		assert.Equal("codec not supported", cause)
	})

	t.Run("HandlerPanic", func(t *testing.T) {
		fd := newFrontdoor()
		fd.addJob(3, catalog.ProxyJob{AssetId: "a3"})

		runner, err := worker.NewRunner(fd, worker.WithName("w1"), worker.WithPollInterval(10*time.Millisecond))
		assert.NoError(err)
		runner.HandleJobs(func(ctx context.Context, job catalog.ProxyJob, progress func(string)) (catalog.ProxyResult, error) {
			panic("boom")
		})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- runner.Run(ctx) }()

		assert.Eventually(func() bool {
			_, ok := fd.failedCause(3)
			return ok
		}, time.Second, 10*time.Millisecond)
		cancel()
		assert.NoError(<-done)

		cause, _ := fd.failedCause(3)
		assert.Contains(cause, "panic")
	})

	t.Run("BadPayload", func(t *testing.T) {
		fd := newFrontdoor()
		fd.addJob(4, []int{1, 2, 3})

		runner, err := worker.NewRunner(fd, worker.WithName("w1"), worker.WithPollInterval(10*time.Millisecond))
		assert.NoError(err)
		var invoked atomic.Bool
		runner.HandleJobs(func(ctx context.Context, job catalog.ProxyJob, progress func(string)) (catalog.ProxyResult, error) {
			invoked.Store(true)
			return catalog.ProxyResult{}, nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- runner.Run(ctx) }()

		assert.Eventually(func() bool {
			_, ok := fd.failedCause(4)
			return ok
		}, time.Second, 10*time.Millisecond)
		cancel()
		assert.NoError(<-done)
		assert.False(invoked.Load())
	})
}

func Test_Runner_Batches(t *testing.T) {
	assert := assert.New(t)
	fd := newFrontdoor()
	fd.addBatch(10, eventstore.EventBatch{BatchId: "b1", Source: "syslog", Lines: []string{"hello"}})

	runner, err := worker.NewRunner(fd, worker.WithName("w1"), worker.WithPollInterval(10*time.Millisecond))
	assert.NoError(err)
	runner.HandleBatches(func(ctx context.Context, batch eventstore.EventBatch) (eventstore.BatchResult, error) {
		return eventstore.BatchResult{
			BatchId: batch.BatchId,
			Source:  batch.Source,
			Records: []eventstore.EventRecord{{Message: batch.Lines[0]}},
		}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	assert.Eventually(func() bool { return fd.completedCount() == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	assert.NoError(<-done)

	fd.Lock()
	defer fd.Unlock()
	assert.Equal("b1", fd.ingested[10].BatchId)
	assert.Len(fd.ingested[10].Records, 1)
}

////////////////////////////////////////////////////////////////////////////////
// CONCURRENCY TESTS

func Test_Runner_Concurrency(t *testing.T) {
	assert := assert.New(t)
	fd := newFrontdoor()
	for id := uint64(1); id <= 8; id++ {
		fd.addJob(id, catalog.ProxyJob{AssetId: "a"})
	}

	// A long poll interval proves claimed items do not wait for the
	// next tick: all eight must complete through the tight loop
	runner, err := worker.NewRunner(fd,
		worker.WithName("w1"),
		worker.WithConcurrency(2),
		worker.WithPollInterval(time.Hour),
	)
	assert.NoError(err)

	var current, peak atomic.Int32
	runner.HandleJobs(func(ctx context.Context, job catalog.ProxyJob, progress func(string)) (catalog.ProxyResult, error) {
		n := current.Add(1)
		defer current.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return catalog.ProxyResult{}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	assert.Eventually(func() bool { return fd.completedCount() == 8 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	assert.NoError(<-done)

	assert.LessOrEqual(peak.Load(), int32(2))
	assert.Zero(runner.Leases())
}

////////////////////////////////////////////////////////////////////////////////
// LEASE TESTS

func Test_Runner_Heartbeat(t *testing.T) {
	assert := assert.New(t)

	t.Run("RenewsWhileExecuting", func(t *testing.T) {
		fd := newFrontdoor()
		fd.addJob(1, catalog.ProxyJob{AssetId: "a1"})

		runner, err := worker.NewRunner(fd,
			worker.WithName("w1"),
			worker.WithPollInterval(10*time.Millisecond),
			worker.WithHeartbeatPeriod(10*time.Millisecond),
		)
		assert.NoError(err)
		runner.HandleJobs(func(ctx context.Context, job catalog.ProxyJob, progress func(string)) (catalog.ProxyResult, error) {
			time.Sleep(100 * time.Millisecond)
			return catalog.ProxyResult{}, nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- runner.Run(ctx) }()

		assert.Eventually(func() bool { return fd.completedCount() == 1 }, time.Second, 10*time.Millisecond)
		cancel()
		assert.NoError(<-done)

		assert.GreaterOrEqual(fd.heartbeatCount(1), 2)
	})

	t.Run("LostLeaseAbandonsExecution", func(t *testing.T) {
		fd := newFrontdoor()
		fd.addJob(2, catalog.ProxyJob{AssetId: "a2"})
		fd.setHeartbeatErr(worker.ErrLeaseLost)

		runner, err := worker.NewRunner(fd,
			worker.WithName("w1"),
			worker.WithPollInterval(10*time.Millisecond),
			worker.WithHeartbeatPeriod(10*time.Millisecond),
		)
		assert.NoError(err)

		cancelled := make(chan struct{})
		runner.HandleJobs(func(ctx context.Context, job catalog.ProxyJob, progress func(string)) (catalog.ProxyResult, error) {
			<-ctx.Done()
			close(cancelled)
			return catalog.ProxyResult{}, ctx.Err()
		})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- runner.Run(ctx) }()

		select {
		case <-cancelled:
		case <-time.After(time.Second):
			assert.Fail("execution was not cancelled on lease loss")
		}
		cancel()
		assert.NoError(<-done)

		// An abandoned lease is never reported back
		fd.Lock()
		defer fd.Unlock()
		assert.Empty(fd.completed)
		assert.Empty(fd.failed)
	})
}

func Test_Runner_Drain(t *testing.T) {
	assert := assert.New(t)

	t.Run("WaitsForInflight", func(t *testing.T) {
		fd := newFrontdoor()
		fd.addJob(1, catalog.ProxyJob{AssetId: "a1"})

		runner, err := worker.NewRunner(fd,
			worker.WithName("w1"),
			worker.WithPollInterval(10*time.Millisecond),
			worker.WithDrainTimeout(time.Second),
		)
		assert.NoError(err)

		started := make(chan struct{})
		runner.HandleJobs(func(ctx context.Context, job catalog.ProxyJob, progress func(string)) (catalog.ProxyResult, error) {
			close(started)
			time.Sleep(50 * time.Millisecond)
			return catalog.ProxyResult{AssetId: job.AssetId}, nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- runner.Run(ctx) }()

		// Shut down while the item is executing; the drain completes it
		<-started
		cancel()
		assert.NoError(<-done)
		assert.Equal(1, fd.completedCount())
	})

	t.Run("TimeoutAbandons", func(t *testing.T) {
		fd := newFrontdoor()
		fd.addJob(2, catalog.ProxyJob{AssetId: "a2"})

		runner, err := worker.NewRunner(fd,
			worker.WithName("w1"),
			worker.WithPollInterval(10*time.Millisecond),
			worker.WithDrainTimeout(20*time.Millisecond),
		)
		assert.NoError(err)

		started := make(chan struct{})
		released := make(chan struct{})
		runner.HandleJobs(func(ctx context.Context, job catalog.ProxyJob, progress func(string)) (catalog.ProxyResult, error) {
			close(started)
			select {
			case <-ctx.Done():
			case <-released:
			}
			return catalog.ProxyResult{}, ctx.Err()
		})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- runner.Run(ctx) }()

		<-started
		cancel()
		err = <-done
		assert.Error(err)
		assert.Contains(err.Error(), "drain timeout")
		close(released)
	})
}
