package sqlgraph_test

import (
	"context"
	"path/filepath"
	"testing"

	dream "github.com/rvohealth/dream-sub006"
	"github.com/rvohealth/dream-sub006/dialect"
	"github.com/rvohealth/dream-sub006/dialect/sql"
	"github.com/rvohealth/dream-sub006/dialect/sql/sqlgraph"
	"github.com/rvohealth/dream-sub006/examples/petstore"
	"github.com/rvohealth/dream-sub006/graph"
	"github.com/rvohealth/dream-sub006/schema"
	"github.com/rvohealth/dream-sub006/schema/where"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seed holds the rows shared by the database tests. Pet 1 wears three
// collars holding a red, a green and a colorless balloon. Pet 2 wears a
// plain collar and a hidden one.
var seed = []string{
	`INSERT INTO users (id, name) VALUES (1, 'Ann'), (2, 'Bob')`,
	`INSERT INTO pets (id, name, species, user_id) VALUES (1, 'Fido', 'dog', 1), (2, 'Rex', 'dog', 1), (3, 'Tom', 'cat', 1), (4, 'Max', 'dog', 2)`,
	`INSERT INTO balloons (id, color, pet_id, type, shape) VALUES (1, 'red', 1, 'Latex', NULL), (2, 'green', 1, 'Mylar', 'star'), (3, NULL, 1, 'Latex', NULL)`,
	`INSERT INTO collars (id, position, pet_id, balloon_id, tag_name, lost, hidden) VALUES
		(1, 3, 1, 1, 'Ann', 0, 0),
		(2, 1, 1, 2, NULL, 1, 0),
		(3, 2, 1, 3, NULL, 0, 0),
		(4, 1, 2, NULL, 'Ann', 0, 0),
		(5, 2, 2, 1, NULL, 0, 1)`,
	`INSERT INTO posts (id, title, user_id) VALUES (1, 'Hello', 1)`,
	`INSERT INTO translations (id, locale, text, localizable_id, localizable_type) VALUES
		(1, 'en', 'Fido', 1, 'Pet'),
		(2, 'es', 'Hola', 1, 'Post'),
		(3, 'es', 'Fido', 1, 'Pet')`,
}

func open(t *testing.T) *sql.Driver {
	t.Helper()
	ctx := context.Background()
	drv, err := sql.Open(dialect.SQLite, filepath.Join(t.TempDir(), "sqlgraph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { drv.Close() })
	require.NoError(t, petstore.Create(ctx, drv))
	for _, q := range seed {
		require.NoError(t, drv.Exec(ctx, q, []any{}, nil))
	}
	return drv
}

// load runs sel and hydrates its rows as e.
func load(t *testing.T, drv *sql.Driver, e *schema.EntityType, sel *sql.Selector) []*schema.Record {
	t.Helper()
	query, args := sel.Query()
	require.NoError(t, sel.Err())
	rows := &sql.Rows{}
	require.NoError(t, drv.Query(context.Background(), query, args, rows))
	maps, err := sql.ScanMaps(rows)
	require.NoError(t, err)
	recs := make([]*schema.Record, len(maps))
	for i, m := range maps {
		recs[i], err = e.Hydrate(m)
		require.NoError(t, err)
	}
	return recs
}

// roots loads every row of e under the plan root alias.
func roots(t *testing.T, drv *sql.Driver, c *sqlgraph.Compiler, e *schema.EntityType) []*schema.Record {
	t.Helper()
	sel := c.Select(e, e.Table).Select(sqlgraph.Columns(e, e.Table)...)
	p, err := c.Root(e, e.Table)
	require.NoError(t, err)
	sel.Where(p).OrderBy(sql.Asc(e.Table + ".id"))
	return load(t, drv, e, sel)
}

func ids(recs []*schema.Record) []int64 {
	out := make([]int64, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID().(int64))
	}
	return out
}

func TestFilterQuery(t *testing.T) {
	t.Parallel()
	pet := entity(t, "Pet")
	plan, err := graph.Resolve(pet, graph.ParsePath("collars").As("c").Then(
		graph.ParsePath("balloon").As("b").And(where.Clause{"color": "red"}),
	))
	require.NoError(t, err)
	c := &sqlgraph.Compiler{Dialect: dialect.SQLite}
	sel := sql.Dialect(dialect.SQLite).Select("pets.id").From(sql.Table("pets"))
	require.NoError(t, c.FilterQuery(sel, plan))
	query, args := sel.Query()
	assert.Equal(t, `SELECT DISTINCT "pets"."id" FROM "pets"`+
		` JOIN "collars" AS "c" ON "pets"."id" = "c"."pet_id" AND "c"."deleted_at" IS NULL AND "c"."hidden" = ?`+
		` JOIN "balloons" AS "b" ON "c"."balloon_id" = "b"."id" AND "b"."color" = ?`, query)
	assert.Equal(t, []any{false, "red"}, args)
}

func TestFilterRows(t *testing.T) {
	t.Parallel()
	drv := open(t)
	pet := entity(t, "Pet")
	tests := []struct {
		name string
		path graph.Path
		want []int64
	}{
		{name: "and", path: graph.ParsePath("collar_balloons").And(where.Clause{"color": "red"}), want: []int64{1}},
		{name: "and not", path: graph.ParsePath("collar_balloons").AndNot(where.Clause{"color": "red"}), want: []int64{1}},
		{name: "any collar", path: graph.ParsePath("collars"), want: []int64{1, 2}},
		{name: "lost collar", path: graph.ParsePath("collars").And(where.Clause{"lost": true}), want: []int64{1}},
		{name: "owner", path: graph.ParsePath("user").And(where.Clause{"name": "Bob"}), want: []int64{4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			plan, err := graph.Resolve(pet, tt.path)
			require.NoError(t, err)
			c := &sqlgraph.Compiler{Dialect: dialect.SQLite}
			sel := c.Select(pet, plan.RootAlias).Select(sqlgraph.Columns(pet, plan.RootAlias)...)
			require.NoError(t, c.FilterQuery(sel, plan))
			sel.OrderBy(sql.Asc(plan.RootAlias + ".id"))
			assert.Equal(t, tt.want, ids(load(t, drv, pet, sel)))
		})
	}
}

func TestAssociationQuery(t *testing.T) {
	t.Parallel()
	drv := open(t)
	pet := entity(t, "Pet")
	tests := []struct {
		name string
		path graph.Path
		want []int64
	}{
		{name: "and", path: graph.ParsePath("collar_balloons").And(where.Clause{"color": "red"}), want: []int64{1}},
		{name: "and not keeps null", path: graph.ParsePath("collar_balloons").AndNot(where.Clause{"color": "red"}), want: []int64{2, 3}},
		{name: "and null", path: graph.ParsePath("collar_balloons").And(where.Clause{"color": nil}), want: []int64{3}},
		{name: "and empty list", path: graph.ParsePath("collar_balloons").And(where.Clause{"color": []string{}}), want: []int64{}},
		{name: "and not empty list", path: graph.ParsePath("collar_balloons").AndNot(where.Clause{"color": []string{}}), want: []int64{1, 2, 3}},
		{name: "any", path: graph.ParsePath("collar_balloons").AndAny(where.Clause{"color": "green"}, where.Clause{"color": nil}), want: []int64{2, 3}},
		{name: "ordered", path: graph.ParsePath("collars"), want: []int64{2, 3, 1}},
		{name: "has one", path: graph.ParsePath("current_collar"), want: []int64{3, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			plan, err := graph.Resolve(pet, tt.path)
			require.NoError(t, err)
			c := &sqlgraph.Compiler{Dialect: dialect.SQLite}
			sel, last, err := c.AssociationQuery(plan, 1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(load(t, drv, last.Entity, sel)))
		})
	}
}

func TestAssociationQueryVariants(t *testing.T) {
	t.Parallel()
	drv := open(t)
	plan, err := graph.Resolve(entity(t, "Pet"), graph.ParsePath("collar_balloons"))
	require.NoError(t, err)
	c := &sqlgraph.Compiler{Dialect: dialect.SQLite}
	sel, last, err := c.AssociationQuery(plan, 1)
	require.NoError(t, err)
	recs := load(t, drv, last.Entity, sel)
	require.Len(t, recs, 3)
	assert.Equal(t, "Latex", recs[0].Entity().Name)
	assert.Equal(t, "Mylar", recs[1].Entity().Name)
	assert.Equal(t, "star", recs[1].Get("shape"))
}

func TestHydrateAndPreload(t *testing.T) {
	t.Parallel()
	drv := open(t)
	tests := []struct {
		name   string
		entity string
		paths  []graph.Path
		check  func(*testing.T, []*schema.Record)
	}{
		{
			name:   "lists and misses",
			entity: "Pet",
			paths: []graph.Path{
				graph.ParsePath("collars"),
				graph.ParsePath("collar_balloons").AndNot(where.Clause{"color": "red"}),
				graph.ParsePath("user"),
			},
			check: func(t *testing.T, pets []*schema.Record) {
				require.Equal(t, []int64{1, 2, 3, 4}, ids(pets))
				want := map[int64]struct{ collars, balloons []int64 }{
					1: {collars: []int64{2, 3, 1}, balloons: []int64{2, 3}},
					2: {collars: []int64{4}, balloons: []int64{}},
					3: {collars: []int64{}, balloons: []int64{}},
					4: {collars: []int64{}, balloons: []int64{}},
				}
				for _, p := range pets {
					collars, err := p.Many("collars")
					require.NoError(t, err)
					assert.Equal(t, want[p.ID().(int64)].collars, ids(collars), "pet %v", p.ID())
					balloons, err := p.Many("collar_balloons")
					require.NoError(t, err)
					assert.Equal(t, want[p.ID().(int64)].balloons, ids(balloons), "pet %v", p.ID())
					user, err := p.One("user")
					require.NoError(t, err)
					require.NotNil(t, user)
				}
			},
		},
		{
			name:   "nested",
			entity: "User",
			paths:  []graph.Path{graph.ParsePath("pets.collars.balloon")},
			check: func(t *testing.T, users []*schema.Record) {
				require.Equal(t, []int64{1, 2}, ids(users))
				pets, err := users[0].Many("pets")
				require.NoError(t, err)
				require.Equal(t, []int64{1, 2, 3}, ids(pets))
				collars, err := pets[1].Many("collars")
				require.NoError(t, err)
				require.Equal(t, []int64{4}, ids(collars))
				balloon, err := collars[0].One("balloon")
				require.NoError(t, err)
				assert.Nil(t, balloon)
				collars, err = pets[0].Many("collars")
				require.NoError(t, err)
				balloon, err = collars[0].One("balloon")
				require.NoError(t, err)
				require.NotNil(t, balloon)
				assert.Equal(t, "green", balloon.Get("color"))
			},
		},
		{
			name:   "self against origin",
			entity: "User",
			paths:  []graph.Path{graph.ParsePath("named_collars"), graph.ParsePath("balloons")},
			check: func(t *testing.T, users []*schema.Record) {
				collars, err := users[0].Many("named_collars")
				require.NoError(t, err)
				assert.Equal(t, []int64{4, 1}, ids(collars), "ordered by position")
				balloons, err := users[0].Many("balloons")
				require.NoError(t, err)
				assert.Equal(t, []int64{1, 2, 3}, ids(balloons))
				collars, err = users[1].Many("named_collars")
				require.NoError(t, err)
				assert.Empty(t, collars)
			},
		},
		{
			name:   "self through a belongs to",
			entity: "Pet",
			paths:  []graph.Path{graph.ParsePath("same_species_pets")},
			check: func(t *testing.T, pets []*schema.Record) {
				want := map[int64][]int64{1: {1, 2}, 2: {1, 2}, 3: {3}, 4: {4}}
				for _, p := range pets {
					same, err := p.Many("same_species_pets")
					require.NoError(t, err)
					assert.Equal(t, want[p.ID().(int64)], ids(same), "pet %v", p.ID())
				}
			},
		},
		{
			name:   "has one with order and condition",
			entity: "Pet",
			paths:  []graph.Path{graph.ParsePath("current_collar")},
			check: func(t *testing.T, pets []*schema.Record) {
				want := map[int64]any{1: int64(3), 2: int64(4), 3: nil, 4: nil}
				for _, p := range pets {
					c, err := p.One("current_collar")
					require.NoError(t, err)
					if want[p.ID().(int64)] == nil {
						assert.Nil(t, c)
						continue
					}
					require.NotNil(t, c)
					assert.Equal(t, want[p.ID().(int64)], c.ID())
				}
			},
		},
	}
	for _, tt := range tests {
		e := entity(t, tt.entity)
		t.Run(tt.name+"/hydrate", func(t *testing.T) {
			t.Parallel()
			plan, err := graph.Resolve(e, tt.paths...)
			require.NoError(t, err)
			c := &sqlgraph.Compiler{Dialect: dialect.SQLite}
			sel := c.Select(e, plan.RootAlias)
			p, err := c.Root(e, plan.RootAlias)
			require.NoError(t, err)
			sel.Where(p)
			h, err := c.HydratingQuery(sel, plan)
			require.NoError(t, err)
			query, args := sel.Query()
			require.NoError(t, sel.Err())
			rows := &sql.Rows{}
			require.NoError(t, drv.Query(context.Background(), query, args, rows))
			recs, err := h.Scan(rows)
			require.NoError(t, err)
			tt.check(t, recs)
		})
		t.Run(tt.name+"/preload", func(t *testing.T) {
			t.Parallel()
			plan, err := graph.Resolver{Preload: true}.Resolve(e, tt.paths...)
			require.NoError(t, err)
			c := &sqlgraph.Compiler{Dialect: dialect.SQLite, BatchSize: 2, Parallelism: 2}
			recs := roots(t, drv, c, e)
			require.NoError(t, c.Preload(context.Background(), drv, recs, plan))
			tt.check(t, recs)
		})
	}
}

func TestPreloadPolymorphic(t *testing.T) {
	t.Parallel()
	drv := open(t)
	translation := entity(t, "Translation")
	plan, err := graph.Resolver{Preload: true}.Resolve(translation, graph.ParsePath("localizable"))
	require.NoError(t, err)
	c := &sqlgraph.Compiler{Dialect: dialect.SQLite}
	recs := roots(t, drv, c, translation)
	require.NoError(t, c.Preload(context.Background(), drv, recs, plan))
	require.Len(t, recs, 3)
	for i, want := range []string{"Pet", "Post", "Pet"} {
		owner, err := recs[i].One("localizable")
		require.NoError(t, err)
		require.NotNil(t, owner)
		assert.Equal(t, want, owner.Entity().Name)
		assert.Equal(t, int64(1), owner.ID())
	}
	_, err = c.HydratingQuery(c.Select(translation, plan.RootAlias), plan)
	var perr *dream.AmbiguousPolymorphicError
	assert.ErrorAs(t, err, &perr)
}

func TestPreloadPassthrough(t *testing.T) {
	t.Parallel()
	drv := open(t)
	pet := entity(t, "Pet")
	plan, err := graph.Resolver{Preload: true}.Resolve(pet, graph.ParsePath("current_translation"))
	require.NoError(t, err)
	assert.Equal(t, []string{"locale"}, plan.Refs())

	c := &sqlgraph.Compiler{Dialect: dialect.SQLite, Passthrough: map[string]any{"locale": "es"}}
	pets := roots(t, drv, c, pet)
	require.NoError(t, c.Preload(context.Background(), drv, pets, plan))
	tr, err := pets[0].One("current_translation")
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.Equal(t, int64(3), tr.ID())
	tr, err = pets[1].One("current_translation")
	require.NoError(t, err)
	assert.Nil(t, tr)

	c = &sqlgraph.Compiler{Dialect: dialect.SQLite}
	err = c.Preload(context.Background(), drv, roots(t, drv, c, pet), plan)
	assert.True(t, dream.IsMissingPassthroughValue(err))
}

func TestRequiredConditions(t *testing.T) {
	t.Parallel()
	drv := open(t)
	pet := entity(t, "Pet")
	for _, r := range []graph.Resolver{{}, {Preload: true}} {
		_, err := r.Resolve(pet, graph.ParsePath("translations"))
		assert.True(t, dream.IsMissingRequiredCondition(err))
	}
	plan, err := graph.Resolver{Preload: true}.Resolve(pet, graph.ParsePath("translations").On(where.Clause{"locale": "en"}))
	require.NoError(t, err)
	c := &sqlgraph.Compiler{Dialect: dialect.SQLite}
	pets := roots(t, drv, c, pet)
	require.NoError(t, c.Preload(context.Background(), drv, pets, plan))
	trs, err := pets[0].Many("translations")
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(trs))
}

func TestPreloadEmpty(t *testing.T) {
	t.Parallel()
	plan, err := graph.Resolver{Preload: true}.Resolve(entity(t, "Pet"), graph.ParsePath("collars"))
	require.NoError(t, err)
	c := &sqlgraph.Compiler{Dialect: dialect.SQLite}
	require.NoError(t, c.Preload(context.Background(), nil, nil, plan))
}
