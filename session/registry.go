package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/nickyhof/sqlbatch/core"
)

// Handle is an open engine connection owned by a Registry.
type Handle interface {
	Name() string
	IsOpen() bool
	Close() error
}

// Opener creates a handle for a database name.
type Opener[H Handle] func(ctx context.Context, name string) (H, error)

// Registry holds the session's database name and its single tracked handle.
type Registry[H Handle] struct {
	gate    *Gate
	timeout time.Duration
	opener  Opener[H]

	mu   sync.Mutex
	name string

	// handleMu is held for the whole of Acquire's callback, so a Close waits
	// for an in-flight batch instead of pulling the connection from under it.
	handleMu  sync.Mutex
	handle    H
	hasHandle bool
	retired   []H
}

// NewRegistry creates a registry that opens handles with opener. A
// non-positive timeout uses DefaultWaitTimeout.
func NewRegistry[H Handle](opener Opener[H], timeout time.Duration) *Registry[H] {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	return &Registry[H]{
		gate:    NewGate(),
		timeout: timeout,
		opener:  opener,
	}
}

// Open records name as the session database and signals any batch waiting
// for it. It does not connect.
func (r *Registry[H]) Open(name string) error {
	if strings.TrimSpace(name) == "" {
		return core.ErrInvalidArgument
	}

	r.mu.Lock()
	r.name = name
	r.mu.Unlock()

	log.WithField("db", name).Debug("session opened")
	r.gate.Signal()
	return nil
}

// Name returns the session database name, or "" before Open.
func (r *Registry[H]) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name
}

// ResolveName picks the database a batch runs against: the override when
// set, else the session name. With neither it waits once for Open and
// re-checks; it does not wait again.
func (r *Registry[H]) ResolveName(ctx context.Context, override string) (string, error) {
	if strings.TrimSpace(override) != "" {
		return override, nil
	}
	if name := r.Name(); strings.TrimSpace(name) != "" {
		return name, nil
	}

	start := time.Now()
	signaled := r.gate.Wait(ctx, r.timeout)
	name := r.Name()
	log.WithFields(log.Fields{
		"signaled": signaled,
		"waited":   time.Since(start),
		"pending":  r.gate.Pending(),
	}).Debug("waited for open")

	if strings.TrimSpace(name) == "" {
		return "", core.ErrNotOpen
	}
	return name, nil
}

// Acquire runs fn with the handle for name, opening one when the tracked
// handle is missing, closed, or for another database. A replaced handle is
// not closed here; it stays retired until Close.
func (r *Registry[H]) Acquire(ctx context.Context, name string, fn func(H) error) error {
	r.handleMu.Lock()
	defer r.handleMu.Unlock()

	if !r.hasHandle || r.handle.Name() != name || !r.handle.IsOpen() {
		handle, err := r.opener(ctx, name)
		if err != nil {
			return errors.Wrapf(err, "open database %s", name)
		}
		if r.hasHandle {
			r.retired = append(r.retired, r.handle)
		}
		r.handle = handle
		r.hasHandle = true
		log.WithField("db", name).Info("database handle opened")
	}

	return fn(r.handle)
}

// Current returns the tracked handle, if any.
func (r *Registry[H]) Current() (H, bool) {
	r.handleMu.Lock()
	defer r.handleMu.Unlock()
	return r.handle, r.hasHandle
}

// Close closes the tracked handle and any retired ones. Closing an already
// closed registry is a no-op.
func (r *Registry[H]) Close() error {
	r.handleMu.Lock()
	defer r.handleMu.Unlock()

	var firstErr error
	handles := r.retired
	if r.hasHandle {
		handles = append(handles, r.handle)
	}
	for _, handle := range handles {
		if err := handle.Close(); err != nil {
			log.WithError(err).WithField("db", handle.Name()).Warn("close database handle")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	var zero H
	r.handle = zero
	r.hasHandle = false
	r.retired = nil
	return firstErr
}
