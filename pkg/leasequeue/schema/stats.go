package schema

import (
	// Packages
	pg "github.com/mutablelogic/go-pg"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type QueueStatus struct {
	Queue  string `json:"queue"`
	Status string `json:"status"`
	Count  uint64 `json:"count"`
}

type QueueStatusRequest struct{}

type QueueStatusResponse struct {
	Body []QueueStatus `json:"body,omitempty"`
}

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (s QueueStatus) String() string {
	return stringify(s)
}

func (s QueueStatusResponse) String() string {
	return stringify(s)
}

////////////////////////////////////////////////////////////////////////////////
// READER

func (s *QueueStatus) Scan(row pg.Row) error {
	return row.Scan(&s.Queue, &s.Status, &s.Count)
}

func (l *QueueStatusResponse) Scan(row pg.Row) error {
	var status QueueStatus
	if err := status.Scan(row); err != nil {
		return err
	}
	l.Body = append(l.Body, status)
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// SELECTOR

func (l QueueStatusRequest) Select(bind *pg.Bind, op pg.Op) (string, error) {
	switch op {
	case pg.List:
		return bind.Replace("${dispatch.stats}"), nil
	default:
		return "", httpresponse.ErrInternalError.Withf("Unsupported QueueStatusRequest operation %q", op)
	}
}
