// Package client is the entry point of dream. A Client ties a schema
// registry to a primary and an optional replica connection and exposes
// the query, persistence and transaction surfaces:
//
//	c := client.New(registry, drv)
//	pets, err := c.Query("Pet").
//		Where(where.Clause{"species": "dog"}).
//		Preload(graph.ParsePath("collars")).
//		All(ctx)
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	dream "github.com/rvohealth/dream-sub006"
	"github.com/rvohealth/dream-sub006/cache"
	"github.com/rvohealth/dream-sub006/config"
	"github.com/rvohealth/dream-sub006/dialect"
	"github.com/rvohealth/dream-sub006/dialect/sql"
	"github.com/rvohealth/dream-sub006/persist"
	"github.com/rvohealth/dream-sub006/router"
	"github.com/rvohealth/dream-sub006/schema"
	"github.com/rvohealth/dream-sub006/txn"
)

// Client runs queries and writes for the entities of one registry.
type Client struct {
	reg     *schema.Registry
	router  *router.Router
	persist *persist.Orchestrator
	logger  *slog.Logger

	cache    dream.Cache
	cacheTTL time.Duration

	parallelism int
	batchSize   int
	now         func() time.Time

	// stats drivers opened by Open, retuned by Apply.
	stats []*sql.StatsDriver

	mu      sync.Mutex
	watcher *config.Watcher
}

type options struct {
	replica     dialect.Driver
	logger      *slog.Logger
	cache       dream.Cache
	cacheTTL    time.Duration
	registerer  prometheus.Registerer
	parallelism int
	batchSize   int
	now         func() time.Time
}

// Option configures a Client.
type Option func(*options)

// WithReplica sets the replica connection serving replica-safe reads.
func WithReplica(drv dialect.Driver) Option {
	return func(o *options) { o.replica = drv }
}

// WithLogger sets the logger of the client and its components.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCache enables result caching for queries that ask for it. Entries
// expire after ttl; zero keeps them until a write invalidates them.
func WithCache(c dream.Cache, ttl time.Duration) Option {
	return func(o *options) { o.cache, o.cacheTTL = c, ttl }
}

// WithMetrics registers the write metrics, and the connection metrics of
// clients created by Open, with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithPreload bounds preloading: parallelism concurrent queries per
// level and batchSize keys per IN list.
func WithPreload(parallelism, batchSize int) Option {
	return func(o *options) { o.parallelism, o.batchSize = parallelism, batchSize }
}

// WithClock sets the time source stamping timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New returns a client over the primary connection drv.
func New(reg *schema.Registry, drv dialect.Driver, opts ...Option) *Client {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return newClient(reg, drv, o)
}

func newClient(reg *schema.Registry, drv dialect.Driver, o *options) *Client {
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	ropts := []router.Option{router.WithLogger(o.logger)}
	if o.replica != nil {
		ropts = append(ropts, router.WithReplica(o.replica))
	}
	var metrics *persist.Metrics
	if o.registerer != nil {
		metrics = persist.NewMetrics("dream", o.registerer)
	}
	return &Client{
		reg:    reg,
		router: router.New(drv, ropts...),
		persist: persist.New(drv, persist.Config{
			Logger:  o.logger,
			Metrics: metrics,
			Cache:   o.cache,
			Now:     o.now,
		}),
		logger:      o.logger,
		cache:       o.cache,
		cacheTTL:    o.cacheTTL,
		parallelism: o.parallelism,
		batchSize:   o.batchSize,
		now:         o.now,
	}
}

// Open opens the connections described by cfg and returns a client over
// them. Connections record statistics and log slow queries; options
// given here take precedence over cfg.
func Open(reg *schema.Registry, cfg config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &options{
		logger:      cfg.Log.Logger(os.Stderr),
		parallelism: cfg.Preload.Parallelism,
		batchSize:   cfg.Preload.BatchSize,
	}
	if cfg.Cache.Enabled {
		o.cache = cache.NewMemory(cache.WithMaxSize(cfg.Cache.MaxSize))
		o.cacheTTL = cfg.Cache.TTL
	}
	for _, opt := range opts {
		opt(o)
	}
	open := func(dsn, namespace string) (*sql.StatsDriver, error) {
		drv, err := sql.OpenWithPool(cfg.Driver, dsn, sql.PoolOptions{
			MaxOpenConns:    cfg.Pool.MaxOpenConns,
			MaxIdleConns:    cfg.Pool.MaxIdleConns,
			ConnMaxLifetime: cfg.Pool.ConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("client: opening %s connection: %w", namespace, err)
		}
		sd := sql.NewStatsDriver(drv, sql.WithSlowThreshold(cfg.SlowQuery), sql.WithSlowQueryLog(o.logger))
		if o.registerer != nil {
			if err := o.registerer.Register(sql.NewCollector(namespace, sd.Stats())); err != nil {
				drv.Close()
				return nil, fmt.Errorf("client: registering %s metrics: %w", namespace, err)
			}
		}
		return sd, nil
	}
	primary, err := open(cfg.PrimaryDSN, "dream")
	if err != nil {
		return nil, err
	}
	stats := []*sql.StatsDriver{primary}
	if cfg.HasReplica() && o.replica == nil {
		replica, err := open(cfg.ReplicaDSN, "dream_replica")
		if err != nil {
			primary.Close()
			return nil, err
		}
		o.replica = replica
		stats = append(stats, replica)
	}
	c := newClient(reg, primary, o)
	c.stats = stats
	c.Apply(cfg)
	return c, nil
}

// Apply applies the runtime-adjustable settings of cfg: replica routing
// and the slow query threshold.
func (c *Client) Apply(cfg config.Config) {
	c.router.SetReplicaEnabled(cfg.ReplicaEnabled)
	for _, sd := range c.stats {
		sd.SetSlowThreshold(cfg.SlowQuery)
	}
}

// Watch reloads the YAML configuration at path on every change and
// applies it until the client is closed.
func (c *Client) Watch(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watcher != nil {
		return errors.New("client: already watching a configuration file")
	}
	w, err := config.Watch(path, c.Apply, config.WatchLogger(c.logger))
	if err != nil {
		return err
	}
	c.watcher = w
	return nil
}

// Close stops watching the configuration and closes the connections.
func (c *Client) Close() error {
	c.mu.Lock()
	w := c.watcher
	c.watcher = nil
	c.mu.Unlock()
	var err error
	if w != nil {
		err = w.Close()
	}
	return errors.Join(err, c.router.Close())
}

// Registry returns the schema registry of the client.
func (c *Client) Registry() *schema.Registry { return c.reg }

// Router returns the connection router of the client.
func (c *Client) Router() *router.Router { return c.router }

// Entity returns the entity type registered under name.
func (c *Client) Entity(name string) (*schema.EntityType, error) {
	return c.reg.Entity(name)
}

// RunInTransaction runs fn in a transaction on the primary connection.
// The context handed to fn carries the transaction, so queries and writes
// made with it join the transaction without passing it explicitly. The
// transaction is rolled back when fn fails or panics and committed
// otherwise; deferred commit hooks run after the commit.
func (c *Client) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx *txn.Context) error) error {
	return txn.Run(ctx, c.router.Primary(), func(tx *txn.Context) error {
		return fn(txn.NewContext(ctx, tx), tx)
	}, txn.WithLogger(c.logger))
}

// Begin starts a transaction on the primary connection. The caller
// commits or rolls it back.
func (c *Client) Begin(ctx context.Context) (*txn.Context, error) {
	return txn.Begin(ctx, c.router.Primary(), txn.WithLogger(c.logger))
}

// transaction returns tx, or the transaction carried by ctx.
func transaction(ctx context.Context, tx *txn.Context) *txn.Context {
	if tx != nil {
		return tx
	}
	return txn.FromContext(ctx)
}
