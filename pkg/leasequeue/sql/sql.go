// Package sql contains the SQL objects and named queries for the lease queue,
// parsed with pg.NewQueries.
package sql

import (
	_ "embed"
)

//go:embed objects.sql
var Objects string

//go:embed queries.sql
var Queries string
