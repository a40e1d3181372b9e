package eventstore

import (
	"encoding/json"
	"time"

	// Packages
	pg "github.com/mutablelogic/go-pg"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// EventBatch is the payload of an ingest item: a batch of raw log lines
// received from one source, to be parsed by a worker.
type EventBatch struct {
	BatchId string   `json:"batch_id"`
	Source  string   `json:"source"`
	Lines   []string `json:"lines"`
}

// EventRecord is one parsed log event.
type EventRecord struct {
	Ts       time.Time `json:"ts"`
	Severity string    `json:"severity,omitempty"`
	Host     string    `json:"host,omitempty"`
	Message  string    `json:"message"`
}

// BatchResult is the result of an ingest item: the parsed records and the
// number of lines which could not be parsed.
type BatchResult struct {
	BatchId string        `json:"batch_id"`
	Source  string        `json:"source"`
	Records []EventRecord `json:"records,omitempty"`
	Dropped uint64        `json:"dropped,omitempty"`
}

// SourceStat is the running tally of events received and dropped for
// one source.
type SourceStat struct {
	Source    string     `json:"source"`
	Received  uint64     `json:"received"`
	Dropped   uint64     `json:"dropped"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// SourceStatList is a list of source tallies.
type SourceStatList struct {
	Count uint64       `json:"count"`
	Body  []SourceStat `json:"body,omitempty"`
}

type sourceStatRequest struct{}

// eventRow is one record written on behalf of a batch.
type eventRow struct {
	BatchId string
	Source  string
	Record  EventRecord
}

// sourceTally accumulates received and dropped counts for a source.
type sourceTally struct {
	Source   string
	Received uint64
	Dropped  uint64
}

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (s SourceStat) String() string {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(data)
}

func (s SourceStatList) String() string {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(data)
}

////////////////////////////////////////////////////////////////////////////////
// READER

func (s *SourceStat) Scan(row pg.Row) error {
	return row.Scan(&s.Source, &s.Received, &s.Dropped, &s.UpdatedAt)
}

func (l *SourceStatList) Scan(row pg.Row) error {
	var stat SourceStat
	if err := stat.Scan(row); err != nil {
		return err
	}
	l.Body = append(l.Body, stat)
	return nil
}

func (l *SourceStatList) ScanCount(row pg.Row) error {
	return row.Scan(&l.Count)
}

////////////////////////////////////////////////////////////////////////////////
// WRITER

func (r eventRow) Insert(bind *pg.Bind) (string, error) {
	if r.BatchId == "" {
		return "", httpresponse.ErrBadRequest.With("missing batch_id")
	}
	bind.Set("batch_id", r.BatchId)
	bind.Set("source", r.Source)
	bind.Set("ts", r.Record.Ts)
	bind.Set("severity", r.Record.Severity)
	bind.Set("host", r.Record.Host)
	bind.Set("message", r.Record.Message)
	return bind.Replace("${eventlog.event_insert}"), nil
}

func (r eventRow) Update(bind *pg.Bind) error {
	return httpresponse.ErrNotImplemented.With("events cannot be updated")
}

func (t sourceTally) Insert(bind *pg.Bind) (string, error) {
	if t.Source == "" {
		return "", httpresponse.ErrBadRequest.With("missing source")
	}
	bind.Set("source", t.Source)
	bind.Set("received", t.Received)
	bind.Set("dropped", t.Dropped)
	return bind.Replace("${eventlog.source_upsert}"), nil
}

func (t sourceTally) Update(bind *pg.Bind) error {
	return httpresponse.ErrNotImplemented.With("tallies are upserted, not patched")
}

////////////////////////////////////////////////////////////////////////////////
// SELECTOR

func (s sourceStatRequest) Select(bind *pg.Bind, op pg.Op) (string, error) {
	switch op {
	case pg.List:
		return bind.Replace("${eventlog.source_list}"), nil
	default:
		return "", httpresponse.ErrInternalError.Withf("Unsupported sourceStatRequest operation %q", op)
	}
}
