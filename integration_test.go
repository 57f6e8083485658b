package sqlbatch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nickyhof/sqlbatch/bridge"
	"github.com/nickyhof/sqlbatch/config"
	"github.com/nickyhof/sqlbatch/core"
)

// TestFunc is the signature for test functions that work with any journal
type TestFunc func(t *testing.T, instance *Instance, plugin *bridge.Plugin)

// runWithBothJournals runs a test function with a memory and a file journal
func runWithBothJournals(t *testing.T, testFunc TestFunc) {
	for _, mode := range []string{"Memory", "File"} {
		t.Run(mode, func(t *testing.T) {
			cfg := config.MustDefault()
			cfg.WorkDir = t.TempDir()
			cfg.Journal.Enabled = true
			if mode == "File" {
				cfg.Journal.Dir = filepath.Join(t.TempDir(), "journal")
			}

			instance, err := Open(cfg)
			if err != nil {
				t.Fatalf("Failed to open instance: %v", err)
			}
			defer instance.Close()

			testFunc(t, instance, instance.Plugin(nil))
		})
	}
}

func batchRequest(callback string, statements ...string) string {
	executes := make([]map[string]any, len(statements))
	for i, sql := range statements {
		executes[i] = map[string]any{"qid": fmt.Sprint(i + 1), "sql": sql, "params": []any{}}
	}
	payload, _ := json.Marshal(map[string]any{"dbargs": map[string]any{}, "executes": executes})
	request, _ := json.Marshal([]string{string(payload), callback})
	return string(request)
}

func mustOK(t *testing.T, result bridge.Result) core.BatchResult {
	t.Helper()
	if result.Status != bridge.StatusOK {
		t.Fatalf("Expected OK, got %s (%s)", result.Status, result.Message)
	}
	var out core.BatchResult
	if err := json.Unmarshal(result.Payload, &out); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	return out
}

// TestIntegrationWorkflow runs a complete session workflow
func TestIntegrationWorkflow(t *testing.T) {
	runWithBothJournals(t, func(t *testing.T, instance *Instance, plugin *bridge.Plugin) {
		ctx := context.Background()

		if res := plugin.Open(ctx, `[{"name":"company.db"},"open"]`); !res.OK() {
			t.Fatalf("Open failed: %v", res)
		}

		results := mustOK(t, plugin.ExecuteSqlBatch(ctx, batchRequest("setup",
			"CREATE TABLE employees (id INTEGER PRIMARY KEY, name TEXT, department TEXT, salary INTEGER)",
			"INSERT INTO employees (name, department, salary) VALUES ('Alice', 'Engineering', 100000)",
			"INSERT INTO employees (name, department, salary) VALUES ('Bob', 'Engineering', 90000)",
			"INSERT INTO employees (name, department, salary) VALUES ('Charlie', 'Sales', 80000)",
		)))
		if len(results) != 4 {
			t.Fatalf("Expected 4 results, got %d", len(results))
		}
		if id := results[3].Result.InsertID; id == nil || *id != 3 {
			t.Errorf("Expected insert id 3, got %v", id)
		}

		results = mustOK(t, plugin.ExecuteSqlBatch(ctx, batchRequest("report",
			"SELECT department, SUM(salary) AS total FROM employees GROUP BY department ORDER BY department",
			"UPDATE employees SET salary = salary + 1000 WHERE department = 'Engineering'",
			"COMMIT",
		)))
		rows := results[0].Result.Rows
		if len(rows) != 2 {
			t.Fatalf("Expected 2 departments, got %d", len(rows))
		}
		if cols := rows[0].Columns(); cols[0] != "department" || cols[1] != "total" {
			t.Errorf("Unexpected column order %v", cols)
		}
		total, _ := rows[0].Get("total")
		if total.Int() != 190000 {
			t.Errorf("Expected Engineering total 190000, got %v", total)
		}
		if results[1].Result.RowsAffected != 2 {
			t.Errorf("Expected 2 rows updated, got %d", results[1].Result.RowsAffected)
		}
		if results[2].Result.RowsAffected != 2 {
			t.Errorf("Expected COMMIT to carry the update count, got %d", results[2].Result.RowsAffected)
		}

		// Dropping keeps the table but removes its rows.
		mustOK(t, plugin.ExecuteSqlBatch(ctx, batchRequest("drop", "DROP TABLE IF EXISTS employees")))
		results = mustOK(t, plugin.ExecuteSqlBatch(ctx, batchRequest("count", "SELECT COUNT(*) AS n FROM employees")))
		if n, _ := results[0].Result.Rows[0].Get("n"); n.Int() != 0 {
			t.Errorf("Expected no rows after drop, got %v", n)
		}

		entries, err := instance.Journal.Entries("company.db")
		if err != nil {
			t.Fatalf("Failed to read journal: %v", err)
		}
		if len(entries) != 4 {
			t.Errorf("Expected 4 journal entries, got %d", len(entries))
		}
	})
}

// TestIntegrationAtomicBatch checks a failing batch leaves nothing behind
func TestIntegrationAtomicBatch(t *testing.T) {
	runWithBothJournals(t, func(t *testing.T, instance *Instance, plugin *bridge.Plugin) {
		ctx := context.Background()
		plugin.Open(ctx, `[{"name":"atomic.db"},"open"]`)
		mustOK(t, plugin.ExecuteSqlBatch(ctx, batchRequest("setup", "CREATE TABLE t (v TEXT UNIQUE)")))

		res := plugin.ExecuteSqlBatch(ctx, batchRequest("fail",
			"INSERT INTO t VALUES ('a')",
			"INSERT INTO t VALUES ('a')",
			"INSERT INTO t VALUES ('b')",
		))
		if res.Status != bridge.StatusParseError {
			t.Fatalf("Expected PARSE_ERROR, got %s", res.Status)
		}
		if res.Payload != nil {
			t.Errorf("Expected no per-statement body, got %s", res.Payload)
		}

		results := mustOK(t, plugin.ExecuteSqlBatch(ctx, batchRequest("count", "SELECT COUNT(*) AS n FROM t")))
		if n, _ := results[0].Result.Rows[0].Get("n"); n.Int() != 0 {
			t.Errorf("Expected 0 rows, got %v", n)
		}

		entries, _ := instance.Journal.Entries("atomic.db")
		if len(entries) != 2 {
			t.Errorf("Expected only the committed batches in the journal, got %d", len(entries))
		}
	})
}

// TestIntegrationReopenAfterClose checks data survives a close on a file database
func TestIntegrationReopenAfterClose(t *testing.T) {
	runWithBothJournals(t, func(t *testing.T, instance *Instance, plugin *bridge.Plugin) {
		ctx := context.Background()
		plugin.Open(ctx, `[{"name":"persist.db"},"open"]`)
		mustOK(t, plugin.ExecuteSqlBatch(ctx, batchRequest("w", "CREATE TABLE t (v INTEGER)", "INSERT INTO t VALUES (7)")))

		if res := plugin.Close(ctx, `[{},"close"]`); !res.OK() {
			t.Fatalf("Close failed: %v", res)
		}
		if _, err := os.Stat(filepath.Join(instance.Config.WorkDir, "persist.db")); err != nil {
			t.Fatalf("Expected database file in work dir: %v", err)
		}

		results := mustOK(t, plugin.ExecuteSqlBatch(ctx, batchRequest("r", "SELECT v FROM t")))
		if v, _ := results[0].Result.Rows[0].Get("v"); v.Int() != 7 {
			t.Errorf("Expected 7, got %v", v)
		}
	})
}

func TestOpenWithoutJournal(t *testing.T) {
	cfg := config.MustDefault()
	cfg.WorkDir = t.TempDir()

	instance, err := Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open instance: %v", err)
	}
	defer instance.Close()

	if instance.Journal != nil {
		t.Error("Expected no journal")
	}
	if err := instance.PushJournal(context.Background()); err == nil {
		t.Error("Expected push without a journal to fail")
	}
}

func TestOpenNilConfigReportsEnvironmentErrors(t *testing.T) {
	t.Setenv("SQLBATCH_LOG_LEVEL", "loud")

	instance, err := Open(nil)
	if err == nil {
		instance.Close()
		t.Fatal("Expected an invalid SQLBATCH_LOG_LEVEL to fail Open")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("Expected a log_level error, got %v", err)
	}
}
