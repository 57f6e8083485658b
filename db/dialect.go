package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/nickyhof/sqlbatch/core"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

// ErrSnapshotUnsupported is returned by dialects that cannot snapshot a database.
var ErrSnapshotUnsupported = errors.New("snapshot not supported by this driver")

// Dialect adapts one database/sql driver to the executor.
type Dialect interface {
	// Name is the database/sql driver name.
	Name() string
	// DSN turns a local database path into a data source name.
	DSN(path string) string
	// Sample reads the engine change counters after a statement. res is the
	// Exec result, nil when the statement ran as a query.
	Sample(ctx context.Context, q sqlx.QueryerContext, res sql.Result, prev core.Counters) (core.Counters, error)
	// Snapshot writes a consistent copy of the database to path.
	Snapshot(ctx context.Context, db sqlx.ExecerContext, path string) error
}

var (
	dialectsMu sync.RWMutex
	dialects   = map[string]Dialect{}
)

// RegisterDialect makes a dialect available by name. Registering a name twice
// replaces the earlier dialect.
func RegisterDialect(dialect Dialect) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	dialects[dialect.Name()] = dialect
}

// LookupDialect returns the dialect registered under name.
func LookupDialect(name string) (Dialect, error) {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()

	dialect, ok := dialects[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown driver %q (available: %s)", name, strings.Join(dialectNames(), ", "))
	}
	return dialect, nil
}

func dialectNames() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	RegisterDialect(sqliteDialect{})
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) DSN(path string) string { return path }

// Sample reads changes() and last_insert_rowid() on the transaction's
// connection. Both are connection state, so the value after a SELECT or DDL
// statement is whatever the last write left behind.
func (sqliteDialect) Sample(ctx context.Context, q sqlx.QueryerContext, _ sql.Result, _ core.Counters) (core.Counters, error) {
	var changes, rowid int64
	if err := q.QueryRowxContext(ctx, "SELECT changes(), last_insert_rowid()").Scan(&changes, &rowid); err != nil {
		return core.Counters{}, errors.Wrap(err, "sample change counters")
	}
	return core.Counters{RowsAffected: changes, InsertID: &rowid}, nil
}

func (sqliteDialect) Snapshot(ctx context.Context, db sqlx.ExecerContext, path string) error {
	quoted := "'" + strings.ReplaceAll(path, "'", "''") + "'"
	if _, err := db.ExecContext(ctx, "VACUUM INTO "+quoted); err != nil {
		return errors.Wrap(err, "vacuum into snapshot")
	}
	return nil
}
