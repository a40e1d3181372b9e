package schema

import (
	"strings"
	"time"

	// Packages
	pg "github.com/mutablelogic/go-pg"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	types "github.com/mutablelogic/go-server/pkg/types"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type QueueName string

type QueueMeta struct {
	Queue        string         `json:"queue,omitempty" arg:"" help:"Queue name"`
	StaleTimeout *time.Duration `json:"stale_timeout,omitempty" help:"Lease expiry after missed heartbeats"`
	Retention    *time.Duration `json:"retention,omitempty" help:"Retention window for terminal items"`
	Retries      *uint64        `json:"retries,omitempty" help:"Re-pend count before an item is failed"`
}

type Queue struct {
	QueueMeta
}

type QueueListRequest struct {
	pg.OffsetLimit
}

type QueueList struct {
	QueueListRequest
	Count uint64  `json:"count"`
	Body  []Queue `json:"body,omitempty"`
}

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (q Queue) String() string {
	return stringify(q)
}

func (q QueueMeta) String() string {
	return stringify(q)
}

func (q QueueList) String() string {
	return stringify(q)
}

////////////////////////////////////////////////////////////////////////////////
// READER

// Queue
func (q *Queue) Scan(row pg.Row) error {
	return row.Scan(&q.Queue, &q.StaleTimeout, &q.Retention, &q.Retries)
}

// QueueList
func (l *QueueList) Scan(row pg.Row) error {
	var queue Queue
	if err := queue.Scan(row); err != nil {
		return err
	}
	l.Body = append(l.Body, queue)
	return nil
}

// QueueListCount
func (l *QueueList) ScanCount(row pg.Row) error {
	return row.Scan(&l.Count)
}

////////////////////////////////////////////////////////////////////////////////
// SELECTOR

func (q QueueName) Select(bind *pg.Bind, op pg.Op) (string, error) {
	// Set queue name
	if name, err := q.queueName(); err != nil {
		return "", err
	} else {
		bind.Set("id", name)
	}

	switch op {
	case pg.Get:
		return bind.Replace("${dispatch.queue_get}"), nil
	case pg.Update:
		return bind.Replace("${dispatch.queue_patch}"), nil
	case pg.Delete:
		return bind.Replace("${dispatch.queue_delete}"), nil
	default:
		return "", httpresponse.ErrInternalError.Withf("Unsupported QueueName operation %q", op)
	}
}

func (l QueueListRequest) Select(bind *pg.Bind, op pg.Op) (string, error) {
	l.OffsetLimit.Bind(bind, ItemListLimit)

	switch op {
	case pg.List:
		return bind.Replace("${dispatch.queue_list}"), nil
	default:
		return "", httpresponse.ErrInternalError.Withf("Unsupported QueueListRequest operation %q", op)
	}
}

////////////////////////////////////////////////////////////////////////////////
// WRITER

// Insert
func (q QueueMeta) Insert(bind *pg.Bind) (string, error) {
	// Queue name
	queue, err := QueueName(q.Queue).queueName()
	if err != nil {
		return "", err
	} else {
		bind.Set("queue", queue)
	}

	// Defaults are inserted for stale_timeout, retention and retries,
	// a subsequent update sets explicit values
	return bind.Replace("${dispatch.queue_insert}"), nil
}

// Patch
func (q QueueMeta) Update(bind *pg.Bind) error {
	var patch []string

	// Queue name
	if q.Queue != "" {
		if queue, err := QueueName(q.Queue).queueName(); err != nil {
			return err
		} else {
			patch = append(patch, `queue=`+bind.Set("queue", queue))
		}
	}

	// Set patch values
	if q.StaleTimeout != nil {
		patch = append(patch, `stale_timeout=`+bind.Set("stale_timeout", q.StaleTimeout))
	}
	if q.Retention != nil {
		patch = append(patch, `retention=`+bind.Set("retention", q.Retention))
	}
	if q.Retries != nil {
		patch = append(patch, `retries=`+bind.Set("retries", q.Retries))
	}

	// Check patch values
	if len(patch) == 0 {
		return httpresponse.ErrBadRequest.With("No patch values")
	} else {
		bind.Set("patch", strings.Join(patch, ", "))
	}

	// Return success
	return nil
}

// Normalize queue name
func (q QueueName) queueName() (string, error) {
	if queue := strings.ToLower(strings.TrimSpace(string(q))); queue == "" {
		return "", httpresponse.ErrBadRequest.With("Missing queue name")
	} else if !types.IsIdentifier(queue) {
		return "", httpresponse.ErrBadRequest.Withf("Invalid queue name: %q", queue)
	} else {
		return queue, nil
	}
}
