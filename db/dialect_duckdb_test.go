//go:build duckdb

package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuckDBExecute(t *testing.T) {
	exec, reg := newTestExecutorWithOptions(t, Options{Driver: "duckdb", WorkDir: t.TempDir()})
	require.NoError(t, reg.Open("analytics.duckdb"))

	results := mustExecute(t, exec, batch(
		stmt("1", "CREATE TABLE t(v INTEGER)"),
		stmt("2", "INSERT INTO t VALUES (1), (2)"),
		stmt("3", "SELECT SUM(v) AS total FROM t"),
		stmt("4", "DROP TABLE t"),
		stmt("5", "SELECT COUNT(*) AS n FROM t"),
	))

	require.Len(t, results, 5)
	for _, result := range results {
		assert.Nil(t, result.Result.InsertID)
	}
	require.Len(t, results[2].Result.Rows, 1)
	// The rewritten drop runs as an exec and reports the deleted rows.
	assert.Equal(t, int64(2), results[3].Result.RowsAffected)
	assert.Equal(t, int64(2), results[4].Result.RowsAffected)
	n, _ := results[4].Result.Rows[0].Get("n")
	assert.Equal(t, int64(0), n.Int())
}

func TestDuckDBSnapshotUnsupported(t *testing.T) {
	h, err := OpenHandle(context.Background(), Options{Driver: "duckdb"}, ":memory:")
	require.NoError(t, err)
	defer h.Close()

	err = Backup(context.Background(), h, t.TempDir()+"/x.db", nil)
	assert.ErrorIs(t, err, ErrSnapshotUnsupported)
}
