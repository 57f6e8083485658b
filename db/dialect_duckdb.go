//go:build duckdb

package db

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/nickyhof/sqlbatch/core"

	_ "github.com/duckdb/duckdb-go/v2"
)

func init() {
	RegisterDialect(duckdbDialect{})
}

// duckdbDialect has no connection-level change counter and no insert id.
// Exec results carry the affected row count; queries keep the previous one.
type duckdbDialect struct{}

func (duckdbDialect) Name() string { return "duckdb" }

func (duckdbDialect) DSN(path string) string {
	if path == ":memory:" {
		return ""
	}
	return path
}

func (duckdbDialect) Sample(_ context.Context, _ sqlx.QueryerContext, res sql.Result, prev core.Counters) (core.Counters, error) {
	if res == nil {
		return core.Counters{RowsAffected: prev.RowsAffected}, nil
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Counters{RowsAffected: prev.RowsAffected}, nil
	}
	return core.Counters{RowsAffected: n}, nil
}

func (duckdbDialect) Snapshot(context.Context, sqlx.ExecerContext, string) error {
	return ErrSnapshotUnsupported
}
