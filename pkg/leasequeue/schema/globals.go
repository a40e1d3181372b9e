package schema

import (
	"encoding/json"
	"time"
)

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	SchemaName    = "dispatch"
	ItemListLimit = 100

	// Queue kinds
	QueueProxy  = "proxy"  // media-proxy generation jobs, keyed by asset
	QueueIngest = "ingest" // ingested log-event batches, keyed by batch id
)

const (
	// DefaultHeartbeatPeriod is how often a worker renews a lease.
	DefaultHeartbeatPeriod = 30 * time.Second

	// DefaultStaleTimeout is how long a lease may go without a heartbeat
	// before the reaper returns it to pending. Kept well above the
	// heartbeat period so transient network delay does not revoke live work.
	DefaultStaleTimeout = 10 * DefaultHeartbeatPeriod

	// DefaultRetention is how long terminal items are kept before deletion.
	DefaultRetention = 7 * 24 * time.Hour

	// DefaultMaintenancePeriod is the reaper sweep interval.
	DefaultMaintenancePeriod = time.Minute
)

// Item statuses
const (
	StatusPending   = "pending"
	StatusClaimed   = "claimed"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func stringify[T any](v T) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(data)
}
