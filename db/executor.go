package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/nickyhof/sqlbatch/core"
	"github.com/nickyhof/sqlbatch/ps"
	"github.com/nickyhof/sqlbatch/session"
	"github.com/nickyhof/sqlbatch/sql"
)

// Recorder keeps a history of committed batches.
type Recorder interface {
	Record(ctx context.Context, entry ps.Entry) (ps.Transaction, error)
}

// Executor runs batches against the database chosen by a session registry.
type Executor struct {
	sessions *session.Registry[*Handle]
	journal  Recorder
}

type ExecutorOption func(*Executor)

// WithJournal records every committed batch in journal.
func WithJournal(journal Recorder) ExecutorOption {
	return func(e *Executor) {
		e.journal = journal
	}
}

func NewExecutor(sessions *session.Registry[*Handle], opts ...ExecutorOption) *Executor {
	e := &Executor{sessions: sessions}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sessions returns the registry the executor resolves databases through.
func (e *Executor) Sessions() *session.Registry[*Handle] {
	return e.sessions
}

// Execute runs every statement of req in one transaction and returns one
// result per statement. The first engine error rolls the whole batch back and
// is returned as a *core.ExecutionError with no partial results.
func (e *Executor) Execute(ctx context.Context, req core.BatchRequest) (core.BatchResult, error) {
	name, err := e.sessions.ResolveName(ctx, req.DbArgs.DBName())
	if err != nil {
		return nil, err
	}

	batchID := uuid.NewString()
	logger := log.WithFields(log.Fields{
		"db":         name,
		"batch":      batchID,
		"statements": len(req.Statements),
	})

	startTime := time.Now()
	var results core.BatchResult
	var executed []sql.Statement

	err = e.sessions.Acquire(ctx, name, func(h *Handle) error {
		if len(req.Statements) == 0 {
			results = core.BatchResult{}
			return nil
		}
		var runErr error
		results, executed, runErr = e.run(ctx, h, req.Statements, logger)
		return runErr
	})
	if err != nil {
		logger.WithError(err).Warn("batch failed")
		return nil, err
	}

	logger.WithField("elapsed", time.Since(startTime)).Debug("batch committed")

	if e.journal != nil && len(results) > 0 {
		entry := journalEntry(batchID, name, req.Statements, executed, results)
		if txn, err := e.journal.Record(ctx, entry); err != nil {
			logger.WithError(err).Error("journal batch")
		} else {
			logger.WithField("commit", txn.Id).Debug("batch journaled")
		}
	}

	return results, nil
}

func (e *Executor) run(ctx context.Context, h *Handle, statements []core.StatementRequest, logger *log.Entry) (core.BatchResult, []sql.Statement, error) {
	tx, err := h.DB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "begin transaction")
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if err := tx.Rollback(); err != nil {
			logger.WithError(err).Warn("rollback")
		}
	}()

	dialect := h.Dialect()
	results := make(core.BatchResult, 0, len(statements))
	executed := make([]sql.Statement, 0, len(statements))

	// A leading skipped statement reports what the connection last changed.
	counters, err := dialect.Sample(ctx, tx, nil, core.Counters{})
	if err != nil {
		return nil, nil, errors.Wrap(err, "sample counters")
	}

	for i, req := range statements {
		stmt := sql.Classify(req.SQL)
		stmtLogger := logger.WithFields(log.Fields{
			"index": i,
			"qid":   req.ID,
			"kind":  stmt.Kind,
		})
		if stmt.Rewritten() {
			stmtLogger = stmtLogger.WithField("rewritten", stmt.SQL)
		}
		stmtLogger.Debug("statement")

		rows := []core.Record{}

		switch stmt.Kind {
		case sql.NoResult:
			res, err := tx.ExecContext(ctx, stmt.SQL, req.Params...)
			if err != nil {
				return nil, nil, statementError(i, req, err, stmtLogger)
			}
			counters, err = dialect.Sample(ctx, tx, res, counters)
			if err != nil {
				return nil, nil, statementError(i, req, err, stmtLogger)
			}

		case sql.Skip:
			// Not sent to the engine; the counters of the previous statement
			// carry over.

		default:
			cursor, err := tx.QueryxContext(ctx, stmt.SQL, req.Params...)
			if err != nil {
				return nil, nil, statementError(i, req, err, stmtLogger)
			}
			rows, err = EncodeRows(cursor)
			if err != nil {
				return nil, nil, statementError(i, req, err, stmtLogger)
			}
			counters, err = dialect.Sample(ctx, tx, nil, counters)
			if err != nil {
				return nil, nil, statementError(i, req, err, stmtLogger)
			}
		}

		results = append(results, core.StatementResult{
			ID:   req.ID,
			Type: core.SuccessResultType,
			Result: core.ResultRows{
				Rows:         rows,
				RowsAffected: counters.RowsAffected,
				InsertID:     copyID(counters.InsertID),
			},
		})
		executed = append(executed, stmt)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, errors.Wrap(err, "commit transaction")
	}
	committed = true

	return results, executed, nil
}

func statementError(index int, req core.StatementRequest, err error, logger *log.Entry) error {
	logger.WithError(err).Warn("statement failed, rolling back batch")
	return &core.ExecutionError{
		Index: index,
		ID:    req.ID,
		SQL:   req.SQL,
		Err:   err,
	}
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func journalEntry(batchID, database string, requests []core.StatementRequest, executed []sql.Statement, results core.BatchResult) ps.Entry {
	entry := ps.Entry{
		ID:         batchID,
		Database:   database,
		When:       time.Now(),
		Statements: make([]ps.StatementEntry, len(executed)),
	}

	for i, stmt := range executed {
		se := ps.StatementEntry{
			QID:          requests[i].ID,
			SQL:          stmt.SQL,
			Kind:         stmt.Kind.String(),
			Fingerprint:  ps.Fingerprint(stmt.SQL),
			Params:       len(requests[i].Params),
			Rows:         len(results[i].Result.Rows),
			RowsAffected: results[i].Result.RowsAffected,
		}
		if stmt.Rewritten() {
			se.Original = stmt.Original
		}
		entry.Statements[i] = se
	}

	return entry
}
