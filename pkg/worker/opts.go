package worker

import (
	"errors"
	"os"
	"time"

	// Packages
	uuid "github.com/google/uuid"
	schema "github.com/mediastore/dispatch/pkg/leasequeue/schema"
	trace "go.opentelemetry.io/otel/trace"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Opt is a functional option for runner configuration.
type Opt func(*opts) error

type opts struct {
	name            string
	concurrency     int
	pollInterval    time.Duration
	heartbeatPeriod time.Duration
	drainTimeout    time.Duration
	tracer          trace.Tracer
}

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	DefaultConcurrency  = 4
	DefaultPollInterval = 5 * time.Second
	DefaultDrainTimeout = 30 * time.Second
)

var (
	ErrInvalidConcurrency = errors.New("concurrency must be >= 1")
	ErrInvalidPeriod      = errors.New("period must be >= 1ms")
)

////////////////////////////////////////////////////////////////////////////////
// OPTIONS

// WithName sets the worker identity presented to the front door.
// Defaults to the hostname with a random suffix so two processes on
// the same host remain distinguishable.
func WithName(name string) Opt {
	return func(o *opts) error {
		o.name = name
		return nil
	}
}

// WithConcurrency sets the ceiling on simultaneously executing items.
// Returns ErrInvalidConcurrency if n < 1.
func WithConcurrency(n int) Opt {
	return func(o *opts) error {
		if n < 1 {
			return ErrInvalidConcurrency
		}
		o.concurrency = n
		return nil
	}
}

// WithPollInterval sets the interval between claim attempts when the
// queues are empty or capacity is saturated.
func WithPollInterval(d time.Duration) Opt {
	return func(o *opts) error {
		if d < time.Millisecond {
			return ErrInvalidPeriod
		}
		o.pollInterval = d
		return nil
	}
}

// WithHeartbeatPeriod sets the lease renewal period, which must be
// materially shorter than the reaper's stale timeout.
func WithHeartbeatPeriod(d time.Duration) Opt {
	return func(o *opts) error {
		if d < time.Millisecond {
			return ErrInvalidPeriod
		}
		o.heartbeatPeriod = d
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer for execution spans.
func WithTracer(tracer trace.Tracer) Opt {
	return func(o *opts) error {
		o.tracer = tracer
		return nil
	}
}

// WithDrainTimeout bounds the wait for in-flight items on shutdown.
func WithDrainTimeout(d time.Duration) Opt {
	return func(o *opts) error {
		if d < time.Millisecond {
			return ErrInvalidPeriod
		}
		o.drainTimeout = d
		return nil
	}
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func applyOpts(opt []Opt) (opts, error) {
	// Get hostname
	hostname, err := os.Hostname()
	if err != nil {
		return opts{}, err
	}

	// Set defaults
	o := opts{
		name:            hostname + "-" + uuid.NewString()[:8],
		concurrency:     DefaultConcurrency,
		pollInterval:    DefaultPollInterval,
		heartbeatPeriod: schema.DefaultHeartbeatPeriod,
		drainTimeout:    DefaultDrainTimeout,
	}

	// Apply options
	for _, fn := range opt {
		if err := fn(&o); err != nil {
			return opts{}, err
		}
	}

	// Return success
	return o, nil
}
