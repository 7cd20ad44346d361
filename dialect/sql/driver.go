package sql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rvohealth/dream-sub006/dialect"
)

type (
	// Result is the result of an Exec.
	Result = sql.Result
	// NullInt64 scans a nullable integer column.
	NullInt64 = sql.NullInt64
)

// ExecQuerier is the part of *sql.DB and *sql.Tx a Conn runs statements
// through.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ColumnScanner is the subset of *sql.Rows used to read a result set.
type ColumnScanner interface {
	Close() error
	ColumnTypes() ([]*sql.ColumnType, error)
	Columns() ([]string, error)
	Err() error
	Next() bool
	NextResultSet() bool
	Scan(dest ...any) error
}

// Rows is the scan destination of Query.
type Rows struct{ ColumnScanner }

// Conn adapts an ExecQuerier to dialect.ExecQuerier.
type Conn struct {
	ExecQuerier
	dialect string
}

// Dialect returns the dialect of the connection.
func (c Conn) Dialect() string { return c.dialect }

// Exec runs a statement. args must be a []any; v is nil or a *Result
// receiving the outcome.
func (c Conn) Exec(ctx context.Context, query string, args, v any) error {
	argv, ok := args.([]any)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect []any for args", args)
	}
	var res *Result
	switch v := v.(type) {
	case nil:
	case *Result:
		res = v
	default:
		return fmt.Errorf("dialect/sql: invalid type %T. expect *sql.Result", v)
	}
	r, err := c.ExecContext(ctx, query, argv...)
	if err != nil {
		return fmt.Errorf("dialect/sql: exec: %w", err)
	}
	if res != nil {
		*res = r
	}
	return nil
}

// Query runs a statement returning rows into v, which must be a *Rows.
// The caller closes the rows.
func (c Conn) Query(ctx context.Context, query string, args, v any) error {
	rows, ok := v.(*Rows)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect *sql.Rows", v)
	}
	argv, ok := args.([]any)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect []any for args", args)
	}
	r, err := c.QueryContext(ctx, query, argv...)
	if err != nil {
		return fmt.Errorf("dialect/sql: query: %w", err)
	}
	rows.ColumnScanner = r
	return nil
}

// Driver is a dialect.Driver over a database/sql pool.
type Driver struct {
	Conn
	db *sql.DB
}

// PoolOptions bounds the connection pool of a Driver. Zero values keep
// the database/sql defaults.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open opens a pool for the named dialect.
func Open(name, source string) (*Driver, error) {
	return OpenWithPool(name, source, PoolOptions{})
}

// OpenWithPool is like Open and sizes the pool with opts. The
// database/sql driver is resolved with dialect.DriverName.
func OpenWithPool(name, source string, opts PoolOptions) (*Driver, error) {
	db, err := sql.Open(dialect.DriverName(baseDialect(name)), source)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: open %s: %w", name, err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	return OpenDB(name, db), nil
}

// OpenDB wraps an open pool.
func OpenDB(name string, db *sql.DB) *Driver {
	return &Driver{Conn: Conn{ExecQuerier: db, dialect: baseDialect(name)}, db: db}
}

// baseDialect strips driver name suffixes such as "postgres-otel".
func baseDialect(name string) string {
	if name == "sqlite" {
		return dialect.SQLite
	}
	for _, d := range []string{dialect.MySQL, dialect.SQLite, dialect.Postgres} {
		if strings.HasPrefix(name, d) {
			return d
		}
	}
	return name
}

// DB returns the pool.
func (d *Driver) DB() *sql.DB { return d.db }

// Ping checks the database is reachable.
func (d *Driver) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

// Close closes the pool.
func (d *Driver) Close() error { return d.db.Close() }

// Tx begins a transaction.
func (d *Driver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: begin: %w", err)
	}
	return &Tx{Conn: Conn{ExecQuerier: tx, dialect: d.dialect}, tx: tx}, nil
}

// Tx is a dialect.Tx over a database/sql transaction.
type Tx struct {
	Conn
	tx *sql.Tx
}

// Commit commits the transaction.
func (t *Tx) Commit() error { return t.tx.Commit() }

// Rollback aborts the transaction.
func (t *Tx) Rollback() error { return t.tx.Rollback() }

var (
	_ dialect.Driver = (*Driver)(nil)
	_ dialect.Tx     = (*Tx)(nil)
)
