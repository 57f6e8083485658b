package sqlbatch

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/nickyhof/sqlbatch/bridge"
	"github.com/nickyhof/sqlbatch/config"
	"github.com/nickyhof/sqlbatch/db"
	"github.com/nickyhof/sqlbatch/ps"
	"github.com/nickyhof/sqlbatch/session"
)

type Instance struct {
	Config   *config.Config
	Sessions *session.Registry[*db.Handle]
	Executor *db.Executor
	Journal  *ps.Journal // nil unless journaling is enabled
}

// Open wires a session registry, executor and optional journal from cfg. A
// nil cfg loads defaults and SQLBATCH_ environment variables.
func Open(cfg *config.Config) (*Instance, error) {
	if cfg == nil {
		loaded, err := config.Load("")
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.ApplyLogging()

	instance := &Instance{Config: cfg}
	instance.Sessions = session.NewRegistry(db.NewOpener(cfg.HandleOptions()), cfg.GateTimeout)

	var opts []db.ExecutorOption
	if cfg.Journal.Enabled {
		journal, err := openJournal(cfg)
		if err != nil {
			return nil, err
		}
		instance.Journal = journal
		opts = append(opts, db.WithJournal(journal))
	}
	instance.Executor = db.NewExecutor(instance.Sessions, opts...)

	log.WithFields(log.Fields{
		"driver":  cfg.Driver,
		"workdir": cfg.WorkDir,
		"journal": cfg.Journal.Enabled,
	}).Debug("sqlbatch instance opened")

	return instance, nil
}

func openJournal(cfg *config.Config) (*ps.Journal, error) {
	var journal *ps.Journal
	var err error
	if cfg.Journal.Dir == "" {
		journal, err = ps.NewMemoryJournal(cfg.Identity())
	} else {
		journal, err = ps.NewFileJournal(cfg.Journal.Dir, cfg.Identity())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if cfg.Journal.RemoteURL != "" {
		if err := journal.AddRemote("origin", cfg.Journal.RemoteURL); err != nil {
			return nil, err
		}
	}
	return journal, nil
}

// Plugin returns a bridge plugin dispatching to dispatcher.
func (instance *Instance) Plugin(dispatcher bridge.Dispatcher) *bridge.Plugin {
	opts := []bridge.Option{bridge.WithRemote(instance.Config.Remote)}
	if instance.Journal != nil {
		opts = append(opts, bridge.WithJournal(instance.Journal))
	}
	return bridge.New(instance.Executor, dispatcher, opts...)
}

// PushJournal pushes the journal to its configured remote.
func (instance *Instance) PushJournal(ctx context.Context) error {
	if instance.Journal == nil {
		return fmt.Errorf("journal is not enabled")
	}
	if instance.Config.Journal.RemoteURL == "" {
		return fmt.Errorf("journal has no remote_url")
	}
	return instance.Journal.Push(ctx, "origin", &instance.Config.Journal.Auth)
}

// Close closes any open database handle.
func (instance *Instance) Close() error {
	return instance.Sessions.Close()
}
