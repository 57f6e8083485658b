package bridge

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/nickyhof/sqlbatch/core"
	"github.com/nickyhof/sqlbatch/db"
	"github.com/nickyhof/sqlbatch/ps"
)

// BackupRequest names the database to copy and where the copy goes. Tag, when
// set, also names the current journal commit.
type BackupRequest struct {
	core.DbArgs
	Target string `json:"target"`
	Tag    string `json:"tag,omitempty"`
}

// Plugin maps raw requests onto the session registry and executor.
type Plugin struct {
	executor   *db.Executor
	dispatcher Dispatcher
	remote     db.RemoteConfig
	journal    *ps.Journal
}

type Option func(*Plugin)

// WithRemote sets the S3 settings used for backups to s3:// targets.
func WithRemote(cfg db.RemoteConfig) Option {
	return func(p *Plugin) {
		p.remote = cfg
	}
}

// WithJournal enables tagging the journal on backup.
func WithJournal(journal *ps.Journal) Option {
	return func(p *Plugin) {
		p.journal = journal
	}
}

// New creates a plugin. A nil dispatcher drops results; callers still get
// them as return values.
func New(executor *db.Executor, dispatcher Dispatcher, opts ...Option) *Plugin {
	if dispatcher == nil {
		dispatcher = discard{}
	}
	p := &Plugin{
		executor:   executor,
		dispatcher: dispatcher,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Plugin) dispatch(result Result) Result {
	p.dispatcher.Dispatch(result)
	return result
}

func ok(callback string, payload json.RawMessage) Result {
	return Result{Status: StatusOK, Payload: payload, Callback: callback}
}

func failure(callback, message string) Result {
	return Result{Status: StatusError, Message: message, Callback: callback}
}

func parseFailure(callback string) Result {
	return Result{Status: StatusParseError, Callback: callback}
}

// Open records the session database. It does not connect; the first batch
// does.
func (p *Plugin) Open(ctx context.Context, request string) Result {
	payload, callback, err := splitRequest(request)
	if err != nil {
		log.WithError(err).Warn("open: malformed request")
		return p.dispatch(parseFailure(callback))
	}

	var args core.DbArgs
	if err := decodePayload(payload, &args); err != nil {
		log.WithError(err).Warn("open: malformed options")
		return p.dispatch(parseFailure(callback))
	}

	if err := p.executor.Sessions().Open(args.DBName()); err != nil {
		return p.dispatch(failure(callback, err.Error()))
	}
	return p.dispatch(ok(callback, nil))
}

// Close closes the open handle. It always succeeds.
func (p *Plugin) Close(ctx context.Context, request string) Result {
	_, callback, _ := splitRequest(request)

	if err := p.executor.Sessions().Close(); err != nil {
		log.WithError(err).Warn("close")
	}
	return p.dispatch(ok(callback, nil))
}

// ExecuteSqlBatch runs a batch and dispatches one result per statement, or a
// single failure with no per-statement body.
func (p *Plugin) ExecuteSqlBatch(ctx context.Context, request string) Result {
	payload, callback, err := splitRequest(request)
	if err != nil {
		log.WithError(err).Warn("executeSqlBatch: malformed request")
		return p.dispatch(parseFailure(callback))
	}

	var req core.BatchRequest
	if err := decodePayload(payload, &req); err != nil {
		log.WithError(err).Warn("executeSqlBatch: malformed batch")
		return p.dispatch(parseFailure(callback))
	}

	results, err := p.executor.Execute(ctx, req)
	if err != nil {
		if errors.Is(err, core.ErrNotOpen) {
			return p.dispatch(failure(callback, core.ErrNotOpen.Error()))
		}
		return p.dispatch(parseFailure(callback))
	}

	body, err := json.Marshal(results)
	if err != nil {
		log.WithError(err).Error("executeSqlBatch: encode results")
		return p.dispatch(parseFailure(callback))
	}
	return p.dispatch(ok(callback, body))
}

// Backup writes a snapshot of the named (or session) database to the target
// path or s3:// URL.
func (p *Plugin) Backup(ctx context.Context, request string) Result {
	payload, callback, err := splitRequest(request)
	if err != nil {
		log.WithError(err).Warn("backup: malformed request")
		return p.dispatch(parseFailure(callback))
	}

	var req BackupRequest
	if err := decodePayload(payload, &req); err != nil {
		log.WithError(err).Warn("backup: malformed options")
		return p.dispatch(parseFailure(callback))
	}
	if strings.TrimSpace(req.Target) == "" {
		return p.dispatch(failure(callback, "No backup target"))
	}

	sessions := p.executor.Sessions()
	name, err := sessions.ResolveName(ctx, req.DBName())
	if err != nil {
		return p.dispatch(failure(callback, err.Error()))
	}

	err = sessions.Acquire(ctx, name, func(h *db.Handle) error {
		return db.Backup(ctx, h, req.Target, &p.remote)
	})
	if err != nil {
		log.WithError(err).WithField("db", name).Warn("backup failed")
		return p.dispatch(failure(callback, err.Error()))
	}

	if req.Tag != "" && p.journal != nil {
		if err := p.journal.Tag(req.Tag, nil); err != nil {
			log.WithError(err).WithField("tag", req.Tag).Warn("tag journal")
		}
	}

	body, _ := json.Marshal(map[string]string{"db": name, "target": req.Target})
	return p.dispatch(ok(callback, body))
}
