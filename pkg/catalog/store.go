package catalog

import (
	"context"
	"strings"

	// Packages
	pg "github.com/mutablelogic/go-pg"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Store persists proxy results into the asset catalog. Writes are expected
// to run on the same transaction that releases the originating item, so a
// failed write leaves the item claimed.
type Store struct {
	conn    pg.PoolConn
	queries *pg.Queries
}

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	catalogQueries = `
-- catalog.asset_upsert
INSERT INTO "dispatch"."asset" ("asset_id", "renditions", "metadata", "updated_at")
	VALUES (@asset_id, @renditions, @metadata, NOW())
	ON CONFLICT ("asset_id") DO UPDATE SET
		"renditions" = EXCLUDED."renditions",
		"metadata" = EXCLUDED."metadata",
		"updated_at" = NOW()

-- catalog.asset_get
SELECT "asset_id", "renditions", "metadata", "updated_at"
	FROM "dispatch"."asset"
	WHERE "asset_id" = @asset_id
`
	catalogObjects = `
-- schema
CREATE SCHEMA IF NOT EXISTS "dispatch"

-- asset
CREATE TABLE IF NOT EXISTS "dispatch"."asset" (
	"asset_id"   TEXT PRIMARY KEY,
	"renditions" JSONB,
	"metadata"   JSONB,
	"updated_at" TIMESTAMP NOT NULL DEFAULT NOW()
)
`
)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewStore creates the asset table if it does not exist, and returns a
// store bound to the connection pool.
func NewStore(ctx context.Context, conn pg.PoolConn) (*Store, error) {
	self := new(Store)

	// Register queries and create objects
	if queries, err := pg.NewQueries(strings.NewReader(catalogQueries)); err != nil {
		return nil, err
	} else {
		self.queries = queries
		self.conn = conn.WithQueries(queries).(pg.PoolConn)
	}
	if objects, err := pg.NewQueries(strings.NewReader(catalogObjects)); err != nil {
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

// Save upserts a proxy result on the supplied connection, which may be a
// transaction owned by the caller.
func (store *Store) Save(ctx context.Context, conn pg.Conn, result ProxyResult) error {
	return conn.WithQueries(store.queries).Insert(ctx, nil, result)
}

// Get returns the catalog row for an asset.
func (store *Store) Get(ctx context.Context, assetId string) (*Asset, error) {
	var asset Asset
	if err := store.conn.Get(ctx, &asset, AssetName(assetId)); err != nil {
		return nil, err
	}
	return &asset, nil
}
