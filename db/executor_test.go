package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickyhof/sqlbatch/core"
	"github.com/nickyhof/sqlbatch/ps"
	"github.com/nickyhof/sqlbatch/session"
)

func newTestExecutor(t *testing.T, opts ...ExecutorOption) (*Executor, *session.Registry[*Handle]) {
	t.Helper()
	return newTestExecutorWithOptions(t, Options{WorkDir: t.TempDir()}, opts...)
}

func newTestExecutorWithOptions(t *testing.T, handleOpts Options, opts ...ExecutorOption) (*Executor, *session.Registry[*Handle]) {
	t.Helper()
	reg := session.NewRegistry(NewOpener(handleOpts), 100*time.Millisecond)
	t.Cleanup(func() { reg.Close() })
	return NewExecutor(reg, opts...), reg
}

func stmt(id, text string, params ...any) core.StatementRequest {
	if params == nil {
		params = []any{}
	}
	return core.StatementRequest{ID: id, SQL: text, Params: params}
}

func batch(stmts ...core.StatementRequest) core.BatchRequest {
	return core.BatchRequest{Statements: stmts}
}

func mustExecute(t *testing.T, exec *Executor, req core.BatchRequest) core.BatchResult {
	t.Helper()
	results, err := exec.Execute(context.Background(), req)
	require.NoError(t, err)
	return results
}

func countRows(t *testing.T, exec *Executor, table string) int64 {
	t.Helper()
	results := mustExecute(t, exec, batch(stmt("count", "SELECT COUNT(*) AS n FROM "+table)))
	require.Len(t, results, 1)
	require.Len(t, results[0].Result.Rows, 1)
	n, ok := results[0].Result.Rows[0].Get("n")
	require.True(t, ok)
	return n.Int()
}

func TestExecuteEndToEnd(t *testing.T) {
	exec, reg := newTestExecutor(t)
	require.NoError(t, reg.Open("t.db"))

	results := mustExecute(t, exec, batch(
		stmt("1", "CREATE TABLE t(id INTEGER PRIMARY KEY, v TEXT)"),
		stmt("2", "INSERT INTO t(v) VALUES(?)", "hello"),
		stmt("3", "SELECT * FROM t"),
	))

	require.Len(t, results, 3)
	for i, id := range []string{"1", "2", "3"} {
		assert.Equal(t, id, results[i].ID)
		assert.Equal(t, core.SuccessResultType, results[i].Type)
	}

	insert := results[1].Result
	assert.Equal(t, int64(1), insert.RowsAffected)
	require.NotNil(t, insert.InsertID)
	assert.Equal(t, int64(1), *insert.InsertID)
	assert.Empty(t, insert.Rows)

	rows := results[2].Result.Rows
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"id", "v"}, rows[0].Columns())
	id, _ := rows[0].Get("id")
	v, _ := rows[0].Get("v")
	assert.Equal(t, core.Integer(1), id)
	assert.Equal(t, core.Text("hello"), v)
}

func TestExecutePreservesOrder(t *testing.T) {
	exec, reg := newTestExecutor(t)
	require.NoError(t, reg.Open("order.db"))

	stmts := []core.StatementRequest{stmt("create", "CREATE TABLE n(x INTEGER)")}
	for i := 0; i < 25; i++ {
		stmts = append(stmts, stmt("dup", "INSERT INTO n(x) VALUES(?)", int64(i)))
		stmts = append(stmts, stmt(string(rune('a'+i)), "SELECT x FROM n ORDER BY x DESC LIMIT 1"))
	}

	results := mustExecute(t, exec, batch(stmts...))
	require.Len(t, results, len(stmts))
	for i := range stmts {
		assert.Equal(t, stmts[i].ID, results[i].ID)
	}

	last := results[len(results)-1].Result.Rows
	require.Len(t, last, 1)
	x, _ := last[0].Get("x")
	assert.Equal(t, int64(24), x.Int())
}

func TestExecuteDropTableKeepsSchema(t *testing.T) {
	exec, reg := newTestExecutor(t)
	require.NoError(t, reg.Open("drop.db"))

	mustExecute(t, exec, batch(
		stmt("1", "CREATE TABLE t(id INTEGER PRIMARY KEY, v TEXT)"),
		stmt("2", "INSERT INTO t(v) VALUES('a')"),
		stmt("3", "INSERT INTO t(v) VALUES('b')"),
	))

	results := mustExecute(t, exec, batch(stmt("drop", "DROP TABLE IF EXISTS t")))
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Result.Rows)
	assert.Equal(t, int64(2), results[0].Result.RowsAffected)

	assert.Equal(t, int64(0), countRows(t, exec, "t"))

	schema := mustExecute(t, exec, batch(stmt("s", "SELECT name FROM sqlite_master WHERE type = 'table' AND name = 't'")))
	assert.Len(t, schema[0].Result.Rows, 1, "table schema survives the rewritten drop")
}

func TestExecuteSkipsCommitAndRollback(t *testing.T) {
	exec, reg := newTestExecutor(t)
	require.NoError(t, reg.Open("skip.db"))

	results := mustExecute(t, exec, batch(
		stmt("1", "CREATE TABLE t(v TEXT)"),
		stmt("2", "INSERT INTO t(v) VALUES(?)", "x"),
		stmt("3", "  Commit \n"),
		stmt("4", "ROLLBACK"),
		stmt("5", "SELECT v FROM t"),
	))

	require.Len(t, results, 5)
	for _, i := range []int{2, 3} {
		assert.Equal(t, core.SuccessResultType, results[i].Type)
		assert.Empty(t, results[i].Result.Rows)
		// Counters are carried over from the insert.
		assert.Equal(t, int64(1), results[i].Result.RowsAffected)
		require.NotNil(t, results[i].Result.InsertID)
		assert.Equal(t, int64(1), *results[i].Result.InsertID)
	}
	assert.Len(t, results[4].Result.Rows, 1)
	assert.Equal(t, int64(1), countRows(t, exec, "t"))
}

func TestExecuteLeadingSkipReportsConnectionCounters(t *testing.T) {
	exec, reg := newTestExecutor(t)
	require.NoError(t, reg.Open("leading.db"))

	mustExecute(t, exec, batch(
		stmt("1", "CREATE TABLE t(id INTEGER PRIMARY KEY, v TEXT)"),
		stmt("2", "INSERT INTO t(id, v) VALUES(7, 'a')"),
	))

	results := mustExecute(t, exec, batch(stmt("c", "COMMIT")))
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Result.Rows)
	assert.Equal(t, int64(1), results[0].Result.RowsAffected)
	require.NotNil(t, results[0].Result.InsertID)
	assert.Equal(t, int64(7), *results[0].Result.InsertID)
}

func TestExecuteCommitDoesNotEndTransactionEarly(t *testing.T) {
	exec, reg := newTestExecutor(t)
	require.NoError(t, reg.Open("early.db"))
	mustExecute(t, exec, batch(stmt("1", "CREATE TABLE t(v TEXT)")))

	_, err := exec.Execute(context.Background(), batch(
		stmt("a", "INSERT INTO t(v) VALUES('a')"),
		stmt("c", "COMMIT"),
		stmt("bad", "INSERT INTO missing(v) VALUES('b')"),
	))
	require.Error(t, err)
	assert.Equal(t, int64(0), countRows(t, exec, "t"))
}

func TestExecuteAtomicFailure(t *testing.T) {
	exec, reg := newTestExecutor(t)
	require.NoError(t, reg.Open("atomic.db"))
	mustExecute(t, exec, batch(stmt("1", "CREATE TABLE t(v TEXT)")))

	results, err := exec.Execute(context.Background(), batch(
		stmt("a", "INSERT INTO t(v) VALUES('a')"),
		stmt("bad", "INSERT INTO t(nope) VALUES('x')"),
		stmt("b", "INSERT INTO t(v) VALUES('b')"),
	))

	require.Error(t, err)
	assert.Nil(t, results)

	var execErr *core.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, 1, execErr.Index)
	assert.Equal(t, "bad", execErr.ID)

	assert.Equal(t, int64(0), countRows(t, exec, "t"))
}

func TestExecuteSyntaxErrorRollsBackCreate(t *testing.T) {
	exec, reg := newTestExecutor(t)
	require.NoError(t, reg.Open("syntax.db"))

	_, err := exec.Execute(context.Background(), batch(
		stmt("1", "CREATE TABLE t(v TEXT)"),
		stmt("2", "SELEKT * FROM t"),
	))
	require.Error(t, err)

	results := mustExecute(t, exec, batch(stmt("s", "SELECT name FROM sqlite_master WHERE name = 't'")))
	assert.Empty(t, results[0].Result.Rows)
}

func TestExecuteConstraintViolation(t *testing.T) {
	exec, reg := newTestExecutor(t)
	require.NoError(t, reg.Open("constraint.db"))
	mustExecute(t, exec, batch(stmt("1", "CREATE TABLE t(id INTEGER PRIMARY KEY)")))

	_, err := exec.Execute(context.Background(), batch(
		stmt("a", "INSERT INTO t(id) VALUES(?)", int64(7)),
		stmt("b", "INSERT INTO t(id) VALUES(?)", int64(7)),
	))

	var execErr *core.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "b", execErr.ID)
	assert.Equal(t, int64(0), countRows(t, exec, "t"))
}

func TestExecuteNotOpen(t *testing.T) {
	exec, _ := newTestExecutor(t)

	start := time.Now()
	results, err := exec.Execute(context.Background(), batch(stmt("1", "SELECT 1")))
	assert.ErrorIs(t, err, core.ErrNotOpen)
	assert.Nil(t, results)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestExecuteExplicitDatabase(t *testing.T) {
	exec, reg := newTestExecutor(t)

	req := batch(stmt("1", "SELECT 42 AS answer"))
	req.DbArgs = core.DbArgs{DBNameAlias: "other.db"}

	results := mustExecute(t, exec, req)
	answer, _ := results[0].Result.Rows[0].Get("answer")
	assert.Equal(t, int64(42), answer.Int())
	assert.Equal(t, "", reg.Name(), "an explicit name does not become the session name")

	current, ok := reg.Current()
	require.True(t, ok)
	assert.Equal(t, "other.db", current.Name())
}

func TestExecuteEmptyBatch(t *testing.T) {
	exec, reg := newTestExecutor(t)
	require.NoError(t, reg.Open("empty.db"))

	results := mustExecute(t, exec, batch())
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestExecuteReusesHandle(t *testing.T) {
	exec, reg := newTestExecutor(t)
	require.NoError(t, reg.Open("reuse.db"))

	mustExecute(t, exec, batch(stmt("1", "SELECT 1")))
	first, _ := reg.Current()
	mustExecute(t, exec, batch(stmt("2", "SELECT 2")))
	second, _ := reg.Current()
	assert.Same(t, first, second)

	require.NoError(t, reg.Close())
	assert.False(t, first.IsOpen())

	// The session name survives close; the next batch reopens lazily.
	mustExecute(t, exec, batch(stmt("3", "SELECT 3")))
	third, _ := reg.Current()
	assert.NotSame(t, first, third)
}

func TestExecuteRacingOpen(t *testing.T) {
	reg := session.NewRegistry(NewOpener(Options{WorkDir: t.TempDir()}), time.Second)
	t.Cleanup(func() { reg.Close() })
	exec := NewExecutor(reg)

	type outcome struct {
		results core.BatchResult
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		results, err := exec.Execute(context.Background(), batch(stmt("1", "SELECT 'x' AS db")))
		done <- outcome{results, err}
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, reg.Open("x"))

	select {
	case o := <-done:
		require.NoError(t, o.err)
		require.Len(t, o.results, 1)
		current, _ := reg.Current()
		assert.Equal(t, "x", current.Name())
	case <-time.After(3 * time.Second):
		t.Fatal("batch did not finish")
	}
}

func TestExecuteBindsParamTypes(t *testing.T) {
	exec, reg := newTestExecutor(t)
	require.NoError(t, reg.Open("params.db"))

	results := mustExecute(t, exec, batch(
		stmt("1", "CREATE TABLE p(s TEXT, i INTEGER, r REAL, n TEXT, b INTEGER)"),
		stmt("2", "INSERT INTO p VALUES(?, ?, ?, ?, ?)", "str", int64(5), 2.5, nil, true),
		stmt("3", "SELECT s, i, r, n, b, typeof(i) AS ti FROM p"),
	))

	row := results[2].Result.Rows[0]
	assert.Equal(t, []string{"s", "i", "r", "n", "b", "ti"}, row.Columns())

	s, _ := row.Get("s")
	i, _ := row.Get("i")
	r, _ := row.Get("r")
	n, _ := row.Get("n")
	b, _ := row.Get("b")
	ti, _ := row.Get("ti")
	assert.Equal(t, core.Text("str"), s)
	assert.Equal(t, core.Integer(5), i)
	assert.Equal(t, core.Real(2.5), r)
	assert.True(t, n.IsNull())
	assert.Equal(t, core.Integer(1), b)
	assert.Equal(t, core.Text("integer"), ti)
}

func TestExecuteStringParamsFollowColumnAffinity(t *testing.T) {
	exec, reg := newTestExecutor(t)
	require.NoError(t, reg.Open("affinity.db"))

	results := mustExecute(t, exec, batch(
		stmt("1", "CREATE TABLE a(i INTEGER)"),
		stmt("2", "INSERT INTO a(i) VALUES(?)", "12"),
		stmt("3", "SELECT i FROM a"),
	))

	i, _ := results[2].Result.Rows[0].Get("i")
	assert.Equal(t, core.Integer(12), i)
}

func TestExecuteJournalsCommittedBatches(t *testing.T) {
	journal, err := ps.NewMemoryJournal(core.Identity{Name: "test", Email: "test@test.com"})
	require.NoError(t, err)

	exec, reg := newTestExecutor(t, WithJournal(journal))
	require.NoError(t, reg.Open("journal.db"))

	mustExecute(t, exec, batch(
		stmt("1", "CREATE TABLE t(v TEXT)"),
		stmt("2", "INSERT INTO t(v) VALUES(?)", "x"),
		stmt("3", "drop table t"),
		stmt("4", "commit"),
	))

	_, err = exec.Execute(context.Background(), batch(stmt("bad", "SELEKT")))
	require.Error(t, err)

	entries, err := journal.Entries("journal.db")
	require.NoError(t, err)
	require.Len(t, entries, 1, "failed batches are not journaled")

	entry := entries[0]
	assert.Equal(t, "journal.db", entry.Database)
	require.Len(t, entry.Statements, 4)
	assert.Equal(t, "query", entry.Statements[0].Kind)
	assert.Equal(t, 1, entry.Statements[1].Params)
	assert.Equal(t, int64(1), entry.Statements[1].RowsAffected)
	assert.Equal(t, "no-result", entry.Statements[2].Kind)
	assert.Equal(t, "DELETE FROM t", entry.Statements[2].SQL)
	assert.Equal(t, "drop table t", entry.Statements[2].Original)
	assert.Equal(t, "skip", entry.Statements[3].Kind)
	assert.Equal(t, ps.Fingerprint("DELETE FROM t"), entry.Statements[2].Fingerprint)
}

func TestExecuteUnknownDriver(t *testing.T) {
	reg := session.NewRegistry(NewOpener(Options{Driver: "nope", WorkDir: t.TempDir()}), 50*time.Millisecond)
	exec := NewExecutor(reg)
	require.NoError(t, reg.Open("x.db"))

	_, err := exec.Execute(context.Background(), batch(stmt("1", "SELECT 1")))
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrNotOpen)
	assert.Contains(t, err.Error(), "unknown driver")
}
