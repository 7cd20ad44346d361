package sql

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvohealth/dream-sub006/dialect"
)

func TestBuilderStatements(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     Querier
		wantQuery string
		wantArgs  []any
	}{
		{
			name: "select with join postgres",
			input: func() Querier {
				users := Table("users").As("u")
				posts := Table("posts").As("p")
				return Dialect(dialect.Postgres).
					Select(users.C("id"), posts.C("title")).
					From(users).
					Join(posts).On(users.C("id"), posts.C("user_id")).
					Where(EQ(users.C("active"), true)).
					OrderBy(Desc(users.C("created_at"))).
					Limit(10)
			}(),
			wantQuery: `SELECT "u"."id", "p"."title" FROM "users" AS "u" JOIN "posts" AS "p" ON "u"."id" = "p"."user_id" WHERE "u"."active" = $1 ORDER BY "u"."created_at" DESC LIMIT 10`,
			wantArgs:  []any{true},
		},
		{
			name: "left join with extra on predicate",
			input: func() Querier {
				pets := Table("pets")
				collars := Table("collars").As("c")
				return Dialect(dialect.SQLite).
					Select(pets.C("*")).
					From(pets).
					LeftJoin(collars).On(pets.C("id"), collars.C("pet_id")).
					OnP(IsNull(collars.C("deleted_at")))
			}(),
			wantQuery: `SELECT "pets".* FROM "pets" LEFT JOIN "collars" AS "c" ON "pets"."id" = "c"."pet_id" AND "c"."deleted_at" IS NULL`,
		},
		{
			name:      "mysql quoting and offset without limit",
			input:     Dialect(dialect.MySQL).Select("id").From(Table("users")).Where(In("id", 1, 2)).Offset(5),
			wantQuery: "SELECT `id` FROM `users` WHERE `id` IN (?, ?) LIMIT 18446744073709551615 OFFSET 5",
			wantArgs:  []any{1, 2},
		},
		{
			name:      "empty in matches nothing",
			input:     Select().From(Table("t")).Where(In("x")),
			wantQuery: `SELECT * FROM "t" WHERE 1 = 0`,
		},
		{
			name:      "empty not in matches everything",
			input:     Select().From(Table("t")).Where(NotIn("x")),
			wantQuery: `SELECT * FROM "t" WHERE 1 = 1`,
		},
		{
			name:      "count distinct",
			input:     Dialect(dialect.Postgres).Select().From(Table("pets")).Count("pets.id"),
			wantQuery: `SELECT COUNT(DISTINCT "pets"."id") FROM "pets"`,
		},
		{
			name:      "insert returning",
			input:     Dialect(dialect.Postgres).Insert("pets").Columns("name", "age").Values("aster", 3).Returning("*"),
			wantQuery: `INSERT INTO "pets" ("name", "age") VALUES ($1, $2) RETURNING *`,
			wantArgs:  []any{"aster", 3},
		},
		{
			name:      "insert default mysql ignores returning",
			input:     Dialect(dialect.MySQL).Insert("pets").Default().Returning("id"),
			wantQuery: "INSERT INTO `pets` VALUES ()",
		},
		{
			name:      "update with null",
			input:     Dialect(dialect.SQLite).Update("pets").Set("name", "b").SetNull("position").Where(EQ("id", 7)).Returning("id"),
			wantQuery: `UPDATE "pets" SET "name" = ?, "position" = NULL WHERE "id" = ? RETURNING "id"`,
			wantArgs:  []any{"b", 7},
		},
		{
			name:      "delete",
			input:     Dialect(dialect.Postgres).Delete("pets").Where(EQ("id", 1)),
			wantQuery: `DELETE FROM "pets" WHERE "id" = $1`,
			wantArgs:  []any{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			query, args := tt.input.Query()
			assert.Equal(t, tt.wantQuery, query)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestPredicateNesting(t *testing.T) {
	t.Parallel()

	query, args := And(EQ("a", 1), Or(EQ("b", 2), IsNull("b"))).Query()
	assert.Equal(t, `"a" = ? AND ("b" = ? OR "b" IS NULL)`, query)
	assert.Equal(t, []any{1, 2}, args)

	query, _ = Not(EQ("a", 1)).Query()
	assert.Equal(t, `NOT ("a" = ?)`, query)

	query, _ = Or().Query()
	assert.Equal(t, "1 = 0", query)

	query, args = Expr("COALESCE(MAX(position), 0) + ?", 1).Query()
	assert.Equal(t, "COALESCE(MAX(position), 0) + ?", query)
	assert.Equal(t, []any{1}, args)
}

func TestPostgresPlaceholdersFollowStatementOrder(t *testing.T) {
	t.Parallel()

	pets := Table("pets")
	toys := Table("toys").As("t")
	query, args := Dialect(dialect.Postgres).
		Select(pets.C("id")).
		From(pets).
		Join(toys).On(pets.C("id"), toys.C("pet_id")).
		OnP(EQ(toys.C("color"), "red")).
		Where(EQ(pets.C("name"), "aster")).
		Query()
	assert.Equal(t, `SELECT "pets"."id" FROM "pets" JOIN "toys" AS "t" ON "pets"."id" = "t"."pet_id" AND "t"."color" = $1 WHERE "pets"."name" = $2`, query)
	assert.Equal(t, []any{"red", "aster"}, args)
}

func TestInSelect(t *testing.T) {
	t.Parallel()

	d := Dialect(dialect.Postgres)
	sub := d.Select("c.pet_id").From(Table("collars").As("c")).Where(EQ("c.lost", true))
	query, args := d.Select("id").From(Table("pets")).
		Where(EQ("species", "dog")).
		Where(InSelect("id", sub)).
		Query()
	assert.Equal(t, `SELECT "id" FROM "pets" WHERE "species" = $1 AND "id" IN (SELECT "c"."pet_id" FROM "collars" AS "c" WHERE "c"."lost" = $2)`, query)
	assert.Equal(t, []any{"dog", true}, args)
}

func TestSelectorClone(t *testing.T) {
	t.Parallel()

	s := Dialect(dialect.SQLite).Select("id").From(Table("pets")).Where(EQ("id", 1)).Limit(1)
	c := s.Clone().Where(EQ("name", "x"))
	q1, _ := s.Query()
	q2, _ := c.Query()
	assert.Equal(t, `SELECT "id" FROM "pets" WHERE "id" = ? LIMIT 1`, q1)
	assert.Equal(t, `SELECT "id" FROM "pets" WHERE "id" = ? AND "name" = ? LIMIT 1`, q2)
}

func TestScanMaps(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)
	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "aster").
			AddRow(int64(2), nil),
	)
	rows := &Rows{}
	require.NoError(t, drv.Query(context.Background(), "SELECT id, name FROM pets", []any{}, rows))
	maps, err := ScanMaps(rows)
	require.NoError(t, err)
	require.Len(t, maps, 2)
	assert.Equal(t, int64(1), maps[0]["id"])
	assert.Equal(t, "aster", maps[0]["name"])
	assert.Nil(t, maps[1]["name"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScanInt64(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.SQLite, db)
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))
	rows := &Rows{}
	require.NoError(t, drv.Query(context.Background(), "SELECT COUNT(*) FROM pets", []any{}, rows))
	n, err := ScanInt64(rows)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
