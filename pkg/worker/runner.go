package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	// Packages
	schema "github.com/mediastore/dispatch/pkg/leasequeue/schema"
	otel "github.com/mutablelogic/go-client/pkg/otel"
	server "github.com/mutablelogic/go-server"
	logger "github.com/mutablelogic/go-server/pkg/logger"
	ref "github.com/mutablelogic/go-server/pkg/ref"
	attribute "go.opentelemetry.io/otel/attribute"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Runner polls the front door for work across its registered queue kinds,
// executes items under a concurrency ceiling, and renews each lease while
// it is held. Register handlers before calling Run.
type Runner struct {
	frontdoor FrontDoor
	opts      opts
	kinds     []kind
	registry  *registry
	sem       chan struct{}
	wg        sync.WaitGroup
	log       server.Logger
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewRunner creates a new runner over the front door.
func NewRunner(frontdoor FrontDoor, opt ...Opt) (*Runner, error) {
	o, err := applyOpts(opt)
	if err != nil {
		return nil, err
	}

	return &Runner{
		frontdoor: frontdoor,
		opts:      o,
		registry:  newRegistry(),
		sem:       make(chan struct{}, o.concurrency),
	}, nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Name returns the worker identity presented to the front door.
func (runner *Runner) Name() string {
	return runner.opts.name
}

// Leases returns the number of leases currently held.
func (runner *Runner) Leases() int {
	return runner.registry.size()
}

// HandleJobs registers the handler for media-proxy jobs. Kinds are polled
// in registration order.
func (runner *Runner) HandleJobs(handler JobHandler) {
	runner.kinds = append(runner.kinds, jobKind(runner.frontdoor, handler))
}

// HandleBatches registers the handler for event batches.
func (runner *Runner) HandleBatches(handler BatchHandler) {
	runner.kinds = append(runner.kinds, batchKind(runner.frontdoor, handler))
}

// Run polls for work until the context is cancelled, then drains: polling
// stops immediately, in-flight items are given a bounded time to finish,
// and any remainder is abandoned for the reaper to reclaim.
func (runner *Runner) Run(ctx context.Context) error {
	if len(runner.kinds) == 0 {
		return errors.New("no handlers registered")
	}

	// Get the logger from the context
	runner.log = ref.Log(ctx)
	if runner.log == nil {
		runner.log = logger.New(os.Stdout, logger.Text, false)
	}

loop:
	for {
		// Respect the concurrency ceiling before claiming
		select {
		case <-ctx.Done():
			break loop
		case runner.sem <- struct{}{}:
		}

		// Claim the next item across kinds in priority order. While
		// capacity and work remain the loop claims again immediately,
		// falling back to the poll interval when the queues are empty
		item, k := runner.claimNext(ctx)
		if item == nil {
			<-runner.sem
			select {
			case <-ctx.Done():
				break loop
			case <-time.After(runner.opts.pollInterval):
			}
			continue
		}

		runner.wg.Add(1)
		go runner.execute(context.WithoutCancel(ctx), k, item)
	}

	return runner.drain()
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// claimNext tries each kind in registration order and returns the first
// claimed item, or nil when no work is available.
func (runner *Runner) claimNext(ctx context.Context) (*schema.Item, kind) {
	for _, k := range runner.kinds {
		if ctx.Err() != nil {
			return nil, kind{}
		}
		item, err := k.claim(ctx, runner.opts.name)
		if err != nil {
			if runner.log != nil && ctx.Err() == nil {
				runner.log.Print(ctx, "claim ", k.name, ": ", err)
			}
			continue
		}
		if item != nil {
			return item, k
		}
	}
	return nil, kind{}
}

// execute runs one claimed item: the lease is registered, a heartbeater
// renews it for the lifetime of the execution, and the heartbeat is
// stopped before the completion report.
func (runner *Runner) execute(ctx context.Context, k kind, item *schema.Item) {
	defer runner.wg.Done()
	defer func() { <-runner.sem }()

	// Execution context, cancelled when the lease is lost or abandoned
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !runner.registry.start(item.Id, cancel) {
		return
	}
	defer runner.registry.stop(item.Id)

	// Renew the lease while executing; a lost lease cancels the execution
	hb := &heartbeater{
		period: runner.opts.heartbeatPeriod,
		renew: func(ctx context.Context) error {
			return k.heartbeat(ctx, item.Id, runner.opts.name)
		},
		onLost: func() {
			runner.registry.stop(item.Id)
		},
		log: runner.log,
	}
	stop := hb.start(ctx)

	// Execute and report
	var result error
	spanCtx, endspan := otel.StartSpan(runner.opts.tracer, ctx, "dispatch.worker."+k.name,
		attribute.Int64("item", int64(item.Id)),
	)
	result = k.execute(spanCtx, item, runner.opts.name, stop)
	endspan(result)

	if runner.log != nil {
		if errors.Is(result, ErrLeaseLost) {
			runner.log.Print(ctx, k.name, " item ", item.Id, ": lease lost, abandoning")
		} else if result != nil {
			runner.log.Print(ctx, k.name, " item ", item.Id, ": ", result)
		}
	}
}

// drain waits up to the drain timeout for in-flight items, then abandons
// the rest to the reaper by cancelling their leases.
func (runner *Runner) drain() error {
	done := make(chan struct{})
	go func() {
		runner.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(runner.opts.drainTimeout):
		abandoned := runner.registry.size()
		runner.registry.stopAll()
		return fmt.Errorf("drain timeout, abandoned %d leases", abandoned)
	}
}

// runWork executes a handler with panic recovery.
func runWork(ctx context.Context, fn func(context.Context) error) (errs error) {
	defer func() {
		if r := recover(); r != nil {
			errs = errors.Join(errs, fmt.Errorf("panic: %v", r))
		}
	}()
	return fn(ctx)
}
