package db

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/nickyhof/sqlbatch/session"
)

const memoryName = ":memory:"

// Options configure how database names become engine connections.
type Options struct {
	// Driver selects the dialect, "sqlite" when empty.
	Driver string
	// WorkDir holds relative database files and downloaded remote databases.
	WorkDir string
	// Remote configures S3 access for s3:// names and backups.
	Remote RemoteConfig
}

// Handle is the open connection for one database name.
type Handle struct {
	name    string
	path    string
	dialect Dialect
	db      *sqlx.DB
	closed  atomic.Bool
}

func (h *Handle) Name() string { return h.name }

// Path is the local file backing the handle.
func (h *Handle) Path() string { return h.path }

func (h *Handle) Dialect() Dialect { return h.dialect }

func (h *Handle) DB() *sqlx.DB { return h.db }

func (h *Handle) IsOpen() bool { return h != nil && !h.closed.Load() }

// Close closes the connection. Closing twice is a no-op.
func (h *Handle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	log.WithField("db", h.name).Info("database handle closed")
	return h.db.Close()
}

// NewOpener returns a session opener that opens handles with opts.
func NewOpener(opts Options) session.Opener[*Handle] {
	return func(ctx context.Context, name string) (*Handle, error) {
		return OpenHandle(ctx, opts, name)
	}
}

// OpenHandle resolves name to a local database and connects to it.
func OpenHandle(ctx context.Context, opts Options, name string) (*Handle, error) {
	driver := opts.Driver
	if driver == "" {
		driver = "sqlite"
	}
	dialect, err := LookupDialect(driver)
	if err != nil {
		return nil, err
	}

	path, err := localPath(ctx, opts, name)
	if err != nil {
		return nil, err
	}

	conn, err := sqlx.Open(dialect.Name(), dialect.DSN(path))
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database %s", dialect.Name(), path)
	}

	// One connection, so change counters and in-memory databases belong to
	// the handle rather than to whichever pooled connection ran last.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "connect to %s", path)
	}

	log.WithFields(log.Fields{
		"db":     name,
		"path":   path,
		"driver": dialect.Name(),
	}).Debug("connected")

	return &Handle{
		name:    name,
		path:    path,
		dialect: dialect,
		db:      conn,
	}, nil
}

// localPath maps a database name to a file: remote names are downloaded into
// the work directory, relative names are placed under it.
func localPath(ctx context.Context, opts Options, name string) (string, error) {
	if name == memoryName {
		return name, nil
	}

	switch detectScheme(name) {
	case schemeFile:
		return strings.TrimPrefix(name, "file://"), nil
	case schemeS3, schemeHTTP, schemeHTTPS:
		return fetchRemote(ctx, name, opts.WorkDir, &opts.Remote)
	}

	if opts.WorkDir == "" || filepath.IsAbs(name) {
		return name, nil
	}
	if err := os.MkdirAll(opts.WorkDir, 0755); err != nil {
		return "", errors.Wrap(err, "create work directory")
	}
	return filepath.Join(opts.WorkDir, name), nil
}
