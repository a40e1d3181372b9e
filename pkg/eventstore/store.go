package eventstore

import (
	"context"
	"strings"

	// Packages
	pg "github.com/mutablelogic/go-pg"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Store persists parsed event batches and per-source tallies. SaveBatch is
// expected to run on the same transaction that releases the originating
// item, so the records and the release commit or roll back together.
type Store struct {
	conn    pg.PoolConn
	queries *pg.Queries
}

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	eventQueries = `
-- eventlog.event_insert
INSERT INTO "dispatch"."event" ("batch_id", "source", "ts", "severity", "host", "message")
	VALUES (@batch_id, @source, @ts, @severity, @host, @message)

-- eventlog.source_upsert
INSERT INTO "dispatch"."source_stat" ("source", "received", "dropped", "updated_at")
	VALUES (@source, @received, @dropped, NOW())
	ON CONFLICT ("source") DO UPDATE SET
		"received" = "source_stat"."received" + EXCLUDED."received",
		"dropped" = "source_stat"."dropped" + EXCLUDED."dropped",
		"updated_at" = NOW()

-- eventlog.source_list
SELECT "source", "received", "dropped", "updated_at"
	FROM "dispatch"."source_stat"
	ORDER BY "source"
`
	eventObjects = `
-- schema
CREATE SCHEMA IF NOT EXISTS "dispatch"

-- event
CREATE TABLE IF NOT EXISTS "dispatch"."event" (
	"id"       BIGSERIAL PRIMARY KEY,
	"batch_id" TEXT NOT NULL,
	"source"   TEXT NOT NULL,
	"ts"       TIMESTAMP NOT NULL,
	"severity" TEXT,
	"host"     TEXT,
	"message"  TEXT NOT NULL
)

-- event_source_ts_idx
CREATE INDEX IF NOT EXISTS "event_source_ts_idx" ON "dispatch"."event" ("source", "ts")

-- source_stat
CREATE TABLE IF NOT EXISTS "dispatch"."source_stat" (
	"source"     TEXT PRIMARY KEY,
	"received"   BIGINT NOT NULL DEFAULT 0,
	"dropped"    BIGINT NOT NULL DEFAULT 0,
	"updated_at" TIMESTAMP NOT NULL DEFAULT NOW()
)
`
)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewStore creates the event tables if they do not exist, and returns a
// store bound to the connection pool.
func NewStore(ctx context.Context, conn pg.PoolConn) (*Store, error) {
	self := new(Store)

	// Register queries and create objects
	if queries, err := pg.NewQueries(strings.NewReader(eventQueries)); err != nil {
		return nil, err
	} else {
		self.queries = queries
		self.conn = conn.WithQueries(queries).(pg.PoolConn)
	}
	if objects, err := pg.NewQueries(strings.NewReader(eventObjects)); err != nil {
		return nil, err
	} else {
		for _, key := range objects.Keys() {
			if err := self.conn.Exec(ctx, objects.Query(key)); err != nil {
				return nil, err
			}
		}
	}

	// Return success
	return self, nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// SaveBatch inserts the parsed records of a batch and accumulates the
// source tally, on the supplied connection.
func (store *Store) SaveBatch(ctx context.Context, conn pg.Conn, result BatchResult) error {
	conn = conn.WithQueries(store.queries)
	for _, record := range result.Records {
		row := eventRow{BatchId: result.BatchId, Source: result.Source, Record: record}
		if err := conn.Insert(ctx, nil, row); err != nil {
			return err
		}
	}
	tally := sourceTally{Source: result.Source, Received: uint64(len(result.Records)), Dropped: result.Dropped}
	return conn.Insert(ctx, nil, tally)
}

// Sources returns the tally of received and dropped events for each source.
func (store *Store) Sources(ctx context.Context) (*SourceStatList, error) {
	var list SourceStatList
	if err := store.conn.List(ctx, &list, sourceStatRequest{}); err != nil {
		return nil, err
	}
	return &list, nil
}
