package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	// Packages
	catalog "github.com/mediastore/dispatch/pkg/catalog"
	eventstore "github.com/mediastore/dispatch/pkg/eventstore"
	version "github.com/mediastore/dispatch/pkg/version"
	worker "github.com/mediastore/dispatch/pkg/worker"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type WorkerCommands struct {
	RunWorker RunWorker `cmd:"" name:"worker" help:"Run a worker process." group:"WORKER"`
}

type RunWorker struct {
	Convert         string        `name:"convert" env:"DISPATCH_CONVERT" help:"Proxy conversion command; jobs are not claimed when unset"`
	Name            string        `name:"name" help:"Worker identity (defaults to hostname with a random suffix)"`
	Concurrency     int           `name:"concurrency" env:"MAX_CONCURRENT_JOBS" help:"Ceiling on simultaneously executing items" default:"4"`
	PollInterval    time.Duration `name:"poll-interval" help:"Interval between claim attempts when idle" default:"5s"`
	HeartbeatPeriod time.Duration `name:"heartbeat-period" help:"Lease renewal period" default:"30s"`
	DrainTimeout    time.Duration `name:"drain-timeout" help:"Bounded wait for in-flight items on shutdown" default:"30s"`
}

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

func (cmd *RunWorker) Run(ctx *Globals) error {
	client, err := ctx.Client()
	if err != nil {
		return err
	}

	// Runner options
	opts := []worker.Opt{
		worker.WithConcurrency(cmd.Concurrency),
		worker.WithPollInterval(cmd.PollInterval),
		worker.WithHeartbeatPeriod(cmd.HeartbeatPeriod),
		worker.WithDrainTimeout(cmd.DrainTimeout),
		worker.WithTracer(ctx.tracer),
	}
	if cmd.Name != "" {
		opts = append(opts, worker.WithName(cmd.Name))
	}

	// Create the runner and register handlers. Jobs are only polled when
	// a conversion command is configured; batches are always polled
	runner, err := worker.NewRunner(client, opts...)
	if err != nil {
		return err
	}
	if cmd.Convert != "" {
		runner.HandleJobs(proxyHandler(cmd.Convert))
	}
	runner.HandleBatches(parseBatch)

	// Poll until interrupted, then drain
	fmt.Println(version.ExecName(), version.Version(), "worker", runner.Name())
	return runner.Run(ctx.ctx)
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// proxyHandler runs an external conversion command for each claimed job.
// The command receives the source path and profile as arguments and must
// print the proxy result as JSON on stdout.
func proxyHandler(convert string) worker.JobHandler {
	return func(ctx context.Context, job catalog.ProxyJob, progress func(string)) (catalog.ProxyResult, error) {
		var result catalog.ProxyResult

		progress("convert")
		started := time.Now()
		out, err := exec.CommandContext(ctx, convert, job.Path, job.Profile).Output()
		if err != nil {
			var exit *exec.ExitError
			if errors.As(err, &exit) && len(exit.Stderr) > 0 {
				return result, fmt.Errorf("%s: %w: %s", convert, err, strings.TrimSpace(string(exit.Stderr)))
			}
			return result, err
		}

		progress("catalog")
		if err := json.Unmarshal(out, &result); err != nil {
			return result, fmt.Errorf("%s: invalid result: %w", convert, err)
		}
		result.AssetId = job.AssetId
		result.ElapsedMs = time.Since(started).Milliseconds()
		return result, nil
	}
}

// parseBatch parses the raw lines of an event batch. Lines which are JSON
// objects contribute their ts, severity, host and message fields; other
// non-empty lines become records with the line as the message. Blank or
// malformed lines are counted as dropped.
func parseBatch(ctx context.Context, batch eventstore.EventBatch) (eventstore.BatchResult, error) {
	result := eventstore.BatchResult{
		BatchId: batch.BatchId,
		Source:  batch.Source,
	}

	for _, line := range batch.Lines {
		line = strings.TrimSpace(line)
		if line == "" {
			result.Dropped++
			continue
		}

		var record eventstore.EventRecord
		if strings.HasPrefix(line, "{") {
			if err := json.Unmarshal([]byte(line), &record); err != nil || record.Message == "" {
				result.Dropped++
				continue
			}
		} else {
			record.Message = line
		}
		if record.Ts.IsZero() {
			record.Ts = time.Now().UTC()
		}
		result.Records = append(result.Records, record)
	}

	return result, nil
}
