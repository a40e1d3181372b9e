package schema

import (
	"encoding/json"
	"strings"
	"time"

	// Packages
	pg "github.com/mutablelogic/go-pg"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	types "github.com/mutablelogic/go-server/pkg/types"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type ItemId uint64

type ItemMeta struct {
	Payload any `json:"payload,omitempty"`
}

type Item struct {
	Id uint64 `json:"id,omitempty"`
	ItemMeta
	Queue       string     `json:"queue,omitempty"`
	Result      any        `json:"result,omitempty"`
	Stage       *string    `json:"stage,omitempty"`
	Status      string     `json:"status,omitempty"`
	Worker      *string    `json:"worker,omitempty"`
	Retries     uint64     `json:"retries"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	HeartbeatAt *time.Time `json:"heartbeat_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// ItemClaim atomically leases the oldest pending item in a queue.
type ItemClaim struct {
	Queue  string `json:"queue,omitempty"`
	Worker string `json:"worker,omitempty"`
}

// ItemRelease transitions a claimed item to completed or failed.
type ItemRelease struct {
	Id     uint64 `json:"id,omitempty"`
	Worker string `json:"worker,omitempty"`
	Fail   bool   `json:"fail,omitempty"`
	Result any    `json:"result,omitempty"`
}

// ItemHeartbeat renews a lease held by a worker.
type ItemHeartbeat struct {
	Id     uint64 `json:"id,omitempty"`
	Worker string `json:"worker,omitempty"`
}

// ItemProgress records the execution stage of a claimed item.
type ItemProgress struct {
	Id     uint64 `json:"id,omitempty"`
	Worker string `json:"worker,omitempty"`
	Stage  string `json:"stage,omitempty"`
}

// ItemExpire returns claimed items with stale heartbeats to pending.
type ItemExpire struct {
	Queue   string        `json:"queue,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

// ItemClean deletes terminal items older than the retention window.
type ItemClean struct {
	Queue     string        `json:"queue,omitempty"`
	Retention time.Duration `json:"retention,omitempty"`
}

type ItemListRequest struct {
	pg.OffsetLimit
	Queue  string `json:"queue,omitempty"`
	Status string `json:"status,omitempty"`
}

type ItemList struct {
	ItemListRequest
	Count uint64 `json:"count"`
	Body  []Item `json:"body,omitempty"`
}

// ItemIdList collects item ids returned by bulk expire and clean
// operations. It is deliberately not a ListReader so the underlying
// mutating statement is executed exactly once.
type ItemIdList struct {
	Body []uint64 `json:"body,omitempty"`
}

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (i Item) String() string {
	return stringify(i)
}

func (i ItemMeta) String() string {
	return stringify(i)
}

func (l ItemList) String() string {
	return stringify(l)
}

////////////////////////////////////////////////////////////////////////////////
// READER

func (i *ItemId) Scan(row pg.Row) error {
	var id *uint64
	if err := row.Scan(&id); err != nil {
		return err
	} else {
		*i = ItemId(types.PtrUint64(id))
	}
	return nil
}

func (i *Item) Scan(row pg.Row) error {
	return row.Scan(&i.Id, &i.Queue, &i.Payload, &i.Result, &i.Stage, &i.Status, &i.Worker, &i.Retries, &i.CreatedAt, &i.ClaimedAt, &i.HeartbeatAt, &i.FinishedAt)
}

// ItemList
func (l *ItemList) Scan(row pg.Row) error {
	var item Item
	if err := item.Scan(row); err != nil {
		return err
	}
	l.Body = append(l.Body, item)
	return nil
}

// ItemListCount
func (l *ItemList) ScanCount(row pg.Row) error {
	return row.Scan(&l.Count)
}

// ItemIdList
func (l *ItemIdList) Scan(row pg.Row) error {
	var id uint64
	if err := row.Scan(&id); err != nil {
		return err
	}
	l.Body = append(l.Body, id)
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// WRITER

func (i ItemMeta) Insert(bind *pg.Bind) (string, error) {
	if !bind.Has("id") {
		return "", httpresponse.ErrBadRequest.With("missing queue id")
	} else {
		bind.Set("queue", bind.Get("id"))
	}
	if i.Payload == nil {
		return "", httpresponse.ErrBadRequest.With("missing payload")
	} else if data, err := json.Marshal(i.Payload); err != nil {
		return "", err
	} else {
		bind.Set("payload", string(data))
	}
	return bind.Replace("${dispatch.item_insert}"), nil
}

func (i ItemMeta) Update(bind *pg.Bind) error {
	return httpresponse.ErrNotImplemented.With("items cannot be updated")
}

////////////////////////////////////////////////////////////////////////////////
// SELECTOR

func (i ItemId) Select(bind *pg.Bind, op pg.Op) (string, error) {
	bind.Set("iid", uint64(i))
	switch op {
	case pg.Get:
		return bind.Replace("${dispatch.item_get}"), nil
	default:
		return "", httpresponse.ErrInternalError.Withf("Unsupported ItemId operation %q", op)
	}
}

func (i ItemClaim) Select(bind *pg.Bind, op pg.Op) (string, error) {
	// Queue is required
	if queue := strings.TrimSpace(i.Queue); queue == "" {
		return "", httpresponse.ErrBadRequest.With("Missing queue")
	} else {
		bind.Set("queue", queue)
	}

	// Worker is required
	if worker := strings.TrimSpace(i.Worker); worker == "" {
		return "", httpresponse.ErrBadRequest.With("Missing worker")
	} else {
		bind.Set("worker", worker)
	}

	switch op {
	case pg.Get:
		return bind.Replace("${dispatch.claim}"), nil
	default:
		return "", httpresponse.ErrInternalError.Withf("Unsupported ItemClaim operation %q", op)
	}
}

func (i ItemRelease) Select(bind *pg.Bind, op pg.Op) (string, error) {
	if i.Id == 0 {
		return "", httpresponse.ErrBadRequest.With("Missing item id")
	} else {
		bind.Set("iid", i.Id)
	}
	if worker := strings.TrimSpace(i.Worker); worker == "" {
		return "", httpresponse.ErrBadRequest.With("Missing worker")
	} else {
		bind.Set("worker", worker)
	}

	// Result of the item
	if data, err := json.Marshal(i.Result); err != nil {
		return "", err
	} else {
		bind.Set("result", string(data))
	}

	switch op {
	case pg.Get:
		if i.Fail {
			return bind.Replace("${dispatch.fail}"), nil
		} else {
			return bind.Replace("${dispatch.complete}"), nil
		}
	default:
		return "", httpresponse.ErrInternalError.Withf("Unsupported ItemRelease operation %q", op)
	}
}

func (i ItemHeartbeat) Select(bind *pg.Bind, op pg.Op) (string, error) {
	if i.Id == 0 {
		return "", httpresponse.ErrBadRequest.With("Missing item id")
	} else {
		bind.Set("iid", i.Id)
	}
	if worker := strings.TrimSpace(i.Worker); worker == "" {
		return "", httpresponse.ErrBadRequest.With("Missing worker")
	} else {
		bind.Set("worker", worker)
	}

	switch op {
	case pg.Get:
		return bind.Replace("${dispatch.heartbeat}"), nil
	default:
		return "", httpresponse.ErrInternalError.Withf("Unsupported ItemHeartbeat operation %q", op)
	}
}

func (i ItemProgress) Select(bind *pg.Bind, op pg.Op) (string, error) {
	if i.Id == 0 {
		return "", httpresponse.ErrBadRequest.With("Missing item id")
	} else {
		bind.Set("iid", i.Id)
	}
	if worker := strings.TrimSpace(i.Worker); worker == "" {
		return "", httpresponse.ErrBadRequest.With("Missing worker")
	} else {
		bind.Set("worker", worker)
	}
	bind.Set("stage", i.Stage)

	switch op {
	case pg.Get:
		return bind.Replace("${dispatch.progress}"), nil
	default:
		return "", httpresponse.ErrInternalError.Withf("Unsupported ItemProgress operation %q", op)
	}
}

func (i ItemExpire) Select(bind *pg.Bind, op pg.Op) (string, error) {
	if queue := strings.TrimSpace(i.Queue); queue == "" {
		return "", httpresponse.ErrBadRequest.With("Missing queue")
	} else {
		bind.Set("queue", queue)
	}
	if i.Timeout <= 0 {
		return "", httpresponse.ErrBadRequest.With("Missing timeout")
	} else {
		bind.Set("timeout", i.Timeout)
	}

	switch op {
	case pg.List:
		return bind.Replace("${dispatch.expire}"), nil
	default:
		return "", httpresponse.ErrInternalError.Withf("Unsupported ItemExpire operation %q", op)
	}
}

func (i ItemClean) Select(bind *pg.Bind, op pg.Op) (string, error) {
	if queue := strings.TrimSpace(i.Queue); queue == "" {
		return "", httpresponse.ErrBadRequest.With("Missing queue")
	} else {
		bind.Set("queue", queue)
	}
	if i.Retention <= 0 {
		return "", httpresponse.ErrBadRequest.With("Missing retention")
	} else {
		bind.Set("retention", i.Retention)
	}

	switch op {
	case pg.List:
		return bind.Replace("${dispatch.clean}"), nil
	default:
		return "", httpresponse.ErrInternalError.Withf("Unsupported ItemClean operation %q", op)
	}
}

func (l ItemListRequest) Select(bind *pg.Bind, op pg.Op) (string, error) {
	// Bind parameters
	var where []string
	if l.Queue != "" {
		where = append(where, `queue=`+bind.Set("queue", l.Queue))
	}
	if l.Status != "" {
		where = append(where, `status=`+bind.Set("status", l.Status))
	}
	if len(where) == 0 {
		bind.Set("where", "")
	} else {
		bind.Set("where", "WHERE "+strings.Join(where, " AND "))
	}
	l.OffsetLimit.Bind(bind, ItemListLimit)

	switch op {
	case pg.List:
		return bind.Replace("${dispatch.item_list}"), nil
	default:
		return "", httpresponse.ErrInternalError.Withf("Unsupported ItemListRequest operation %q", op)
	}
}
