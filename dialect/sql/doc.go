// Package sql implements the database/sql backed driver and the SQL dsl
// used by the query compiler.
//
// The compiler turns association paths, scopes and clauses into the
// builders below; application code rarely needs them directly, but they
// can be used for custom statements run through a Driver.
//
// # Builder Types
//
//   - Builder: low-level buffer with identifier quoting and placeholders
//   - Selector: SELECT with joins, predicates, ordering and pagination
//   - InsertBuilder: INSERT with RETURNING on Postgres and SQLite
//   - UpdateBuilder: UPDATE with SET and WHERE clauses
//   - DeleteBuilder: DELETE with WHERE predicates
//
// # Dialect Support
//
// Builders render identifiers and placeholders for their dialect.
// Postgres uses $1 placeholders, MySQL and SQLite use ?; MySQL quotes
// identifiers with backticks and the others with double quotes:
//
//	pets := sql.Table("pets")
//	collars := sql.Table("collars").As("collars_1a2b3c4d")
//	q, args := sql.Dialect(dialect.Postgres).
//	    Select(pets.C("*")).
//	    From(pets).
//	    Join(collars).On(pets.C("id"), collars.C("pet_id")).
//	    Where(sql.EQ(collars.C("lost"), false)).
//	    Query()
//	// SELECT "pets".* FROM "pets" JOIN "collars" AS "collars_1a2b3c4d"
//	//   ON "pets"."id" = "collars_1a2b3c4d"."pet_id"
//	//   WHERE "collars_1a2b3c4d"."lost" = $1
//
// # Predicates
//
//	// Comparison
//	sql.EQ("name", "aster")          // "name" = ?
//	sql.NEQ("color", "red")          // "color" <> ?
//	sql.GT("position", 2)            // "position" > ?
//
//	// String matching, with LIKE wildcards in the input escaped
//	sql.Contains("name", "ast")      // "name" LIKE ?
//	sql.HasPrefix("tag_name", "a")   // "tag_name" LIKE ?
//
//	// NULL checks
//	sql.IsNull("deleted_at")         // "deleted_at" IS NULL
//	sql.NotNull("balloon_id")        // "balloon_id" IS NOT NULL
//
//	// IN lists; an empty list matches nothing, an empty NOT IN everything
//	sql.In("species", "cat", "dog")  // "species" IN (?, ?)
//	sql.In("species")                // 1 = 0
//	sql.NotIn("species")             // 1 = 1
//
//	// Subqueries share the numbering of the enclosing statement
//	sql.InSelect("collars.id", sub)  // "collars"."id" IN (SELECT ...)
//
// And and Or drop nil operands and wrap nested groups in parentheses
// only where precedence requires it:
//
//	sql.Or(sql.NEQ("color", "red"), sql.IsNull("color"))
//	sql.And(sql.IsNull("deleted_at"), nil, sql.EQ("hidden", false))
//
// # Pagination
//
//	sql.Select("id").From(sql.Table("pets")).
//	    OrderBy(sql.Asc("name"), sql.Asc("id")).
//	    Limit(10).
//	    Offset(20)
//
// An offset without a limit renders the largest limit the dialect
// accepts on MySQL and SQLite.
//
// # Drivers
//
// Open resolves the database/sql driver for a dialect; lib/pq,
// go-sql-driver/mysql and modernc.org/sqlite are registered by this
// package. OpenWithPool sizes the pool, and OpenDB wraps a pool opened
// elsewhere:
//
//	drv, err := sql.OpenWithPool(dialect.Postgres, dsn, sql.PoolOptions{MaxOpenConns: 20})
//	if err != nil {
//	    return err
//	}
//	rows := &sql.Rows{}
//	if err := drv.Query(ctx, "SELECT id FROM pets", []any{}, rows); err != nil {
//	    return err
//	}
//	defer rows.Close()
//	maps, err := sql.ScanMaps(rows)
//
// # Statistics
//
// StatsDriver counts the statements of a Driver, transactions included,
// and logs the ones slower than its threshold. Collector exports the
// counters to Prometheus:
//
//	sd := sql.NewStatsDriver(drv, sql.WithSlowThreshold(200*time.Millisecond))
//	prometheus.MustRegister(sql.NewCollector("dream", sd.Stats()))
package sql
