// Package dialect defines the connection contracts dream runs on.
//
// A Driver is a pooled logical connection (the primary or the replica),
// a Tx is a live transaction on one of them, and both satisfy
// ExecQuerier so compiled queries can run against either:
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// The supported dialects are Postgres, MySQL and SQLite. The dialect name
// decides placeholder style, identifier quoting and whether INSERT and
// UPDATE statements can use RETURNING.
//
// Opening a connection:
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
package dialect
