package sql

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rvohealth/dream-sub006/dialect"
)

// Stats counts the statements a StatsDriver ran. The zero value is ready
// to use.
type Stats struct {
	reads    atomic.Int64
	writes   atomic.Int64
	duration atomic.Int64 // nanoseconds
	slow     atomic.Int64
	errors   atomic.Int64
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Reads    int64
	Writes   int64
	Duration time.Duration
	Slow     int64
	Errors   int64
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Reads:    s.reads.Load(),
		Writes:   s.writes.Load(),
		Duration: time.Duration(s.duration.Load()),
		Slow:     s.slow.Load(),
		Errors:   s.errors.Load(),
	}
}

// Reset zeroes the counters.
func (s *Stats) Reset() {
	s.reads.Store(0)
	s.writes.Store(0)
	s.duration.Store(0)
	s.slow.Store(0)
	s.errors.Store(0)
}

// Avg returns the mean statement duration.
func (s Snapshot) Avg() time.Duration {
	if n := s.Reads + s.Writes; n > 0 {
		return s.Duration / time.Duration(n)
	}
	return 0
}

func (s Snapshot) String() string {
	return fmt.Sprintf("reads=%d writes=%d duration=%s avg=%s slow=%d errors=%d",
		s.Reads, s.Writes, s.Duration, s.Avg(), s.Slow, s.Errors)
}

// StatsDriver wraps a Driver, counting its statements and logging the
// ones slower than a threshold. Statements run in its transactions are
// counted too.
type StatsDriver struct {
	*Driver
	stats  *Stats
	slow   atomic.Int64 // threshold in nanoseconds, 0 disables
	logger *slog.Logger
}

// StatsOption configures a StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the duration above which a statement is slow.
// Zero disables slow statement detection. The default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) { s.SetSlowThreshold(d) }
}

// WithSlowQueryLog logs slow statements to l at warn level. Without it
// slow statements are only counted.
func WithSlowQueryLog(l *slog.Logger) StatsOption {
	return func(s *StatsDriver) { s.logger = l }
}

// NewStatsDriver wraps drv.
//
//	drv, _ := sql.Open(dialect.Postgres, dsn)
//	sd := sql.NewStatsDriver(drv, sql.WithSlowThreshold(200*time.Millisecond))
//	prometheus.MustRegister(sql.NewCollector("dream", sd.Stats()))
//	c := client.New(registry, sd)
func NewStatsDriver(drv *Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{Driver: drv, stats: &Stats{}}
	s.SetSlowThreshold(100 * time.Millisecond)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stats returns the counters of the driver.
func (d *StatsDriver) Stats() *Stats { return d.stats }

// SlowThreshold returns the current slow statement threshold.
func (d *StatsDriver) SlowThreshold() time.Duration {
	return time.Duration(d.slow.Load())
}

// SetSlowThreshold changes the slow statement threshold. It is safe to
// call while statements run.
func (d *StatsDriver) SetSlowThreshold(t time.Duration) {
	if t < 0 {
		t = 0
	}
	d.slow.Store(int64(t))
}

// Query implements dialect.Driver.
func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Query(ctx, query, args, v)
	d.record(ctx, query, start, err, true)
	return err
}

// Exec implements dialect.Driver.
func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Exec(ctx, query, args, v)
	d.record(ctx, query, start, err, false)
	return err
}

// Tx implements dialect.Driver.
func (d *StatsDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		d.failed(err)
		return nil, err
	}
	return &statsTx{Tx: tx, d: d}, nil
}

func (d *StatsDriver) failed(err error) {
	if err != nil {
		d.stats.errors.Add(1)
	}
}

func (d *StatsDriver) record(ctx context.Context, query string, start time.Time, err error, read bool) {
	took := time.Since(start)
	if read {
		d.stats.reads.Add(1)
	} else {
		d.stats.writes.Add(1)
	}
	d.stats.duration.Add(int64(took))
	d.failed(err)
	if t := d.SlowThreshold(); t == 0 || took <= t {
		return
	}
	d.stats.slow.Add(1)
	if d.logger != nil {
		d.logger.WarnContext(ctx, "slow statement",
			slog.String("dialect", d.Dialect()),
			slog.Duration("duration", took),
			slog.String("query", query),
		)
	}
}

type statsTx struct {
	dialect.Tx
	d *StatsDriver
}

func (tx *statsTx) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Query(ctx, query, args, v)
	tx.d.record(ctx, query, start, err, true)
	return err
}

func (tx *statsTx) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Exec(ctx, query, args, v)
	tx.d.record(ctx, query, start, err, false)
	return err
}

var (
	_ dialect.Driver = (*StatsDriver)(nil)
	_ dialect.Tx     = (*statsTx)(nil)
)
