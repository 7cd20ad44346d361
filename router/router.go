// Package router picks the logical connection, primary or replica, that
// serves a database operation.
package router

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/rvohealth/dream-sub006/dialect"
	"github.com/rvohealth/dream-sub006/schema"
)

// Kind is the kind of a database operation.
type Kind uint8

// Operation kinds.
const (
	Read Kind = iota
	Write
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k == Write {
		return "write"
	}
	return "read"
}

// Target is a logical connection. Auto leaves the choice to the router.
type Target uint8

// Connection targets.
const (
	Auto Target = iota
	Primary
	Replica
)

// String implements fmt.Stringer.
func (t Target) String() string {
	switch t {
	case Primary:
		return "primary"
	case Replica:
		return "replica"
	default:
		return "auto"
	}
}

// Router routes operations between a primary and an optional replica
// connection. It is safe for concurrent use; only the replica switch
// changes after construction.
type Router struct {
	primary  dialect.Driver
	replica  dialect.Driver
	disabled atomic.Bool
	logger   *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithReplica sets the replica connection.
func WithReplica(drv dialect.Driver) Option {
	return func(r *Router) { r.replica = drv }
}

// WithLogger sets the logger reporting replica switches.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// New returns a router over primary.
func New(primary dialect.Driver, opts ...Option) *Router {
	r := &Router{primary: primary, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route returns the target of an operation. In priority order: an active
// transaction always uses the primary, then an explicit override wins,
// writes use the primary, and reads of replica-safe entity types use the
// replica.
func (r *Router) Route(kind Kind, e *schema.EntityType, override Target, inTx bool) Target {
	switch {
	case inTx:
		return Primary
	case override != Auto:
		return override
	case kind == Write:
		return Primary
	case e != nil && e.Base().ReplicaSafe:
		return Replica
	default:
		return Primary
	}
}

// Driver returns the connection serving target. Replica reads fall back
// to the primary when no replica is configured or it is disabled.
func (r *Router) Driver(t Target) dialect.Driver {
	if t == Replica && r.replica != nil && !r.disabled.Load() {
		return r.replica
	}
	return r.primary
}

// Pick routes an operation and returns its connection.
func (r *Router) Pick(kind Kind, e *schema.EntityType, override Target) dialect.Driver {
	return r.Driver(r.Route(kind, e, override, false))
}

// Primary returns the primary connection.
func (r *Router) Primary() dialect.Driver { return r.primary }

// HasReplica reports whether a replica is configured.
func (r *Router) HasReplica() bool { return r.replica != nil }

// SetReplicaEnabled turns replica routing on or off at runtime.
func (r *Router) SetReplicaEnabled(enabled bool) {
	if r.disabled.Swap(!enabled) == !enabled {
		return
	}
	r.logger.Info("router: replica routing changed", "enabled", enabled)
}

// ReplicaEnabled reports whether replica reads are served by the replica.
func (r *Router) ReplicaEnabled() bool {
	return r.replica != nil && !r.disabled.Load()
}

// Close closes both connections.
func (r *Router) Close() error {
	err := r.primary.Close()
	if r.replica != nil {
		err = errors.Join(err, r.replica.Close())
	}
	return err
}
