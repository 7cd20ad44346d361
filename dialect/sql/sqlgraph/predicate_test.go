package sqlgraph_test

import (
	"testing"

	dream "github.com/rvohealth/dream-sub006"
	"github.com/rvohealth/dream-sub006/dialect/sql/sqlgraph"
	"github.com/rvohealth/dream-sub006/examples/petstore"
	"github.com/rvohealth/dream-sub006/schema"
	"github.com/rvohealth/dream-sub006/schema/where"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var registry = petstore.MustRegistry(nil)

func entity(t *testing.T, name string) *schema.EntityType {
	t.Helper()
	e, err := registry.Entity(name)
	require.NoError(t, err)
	return e
}

func TestClause(t *testing.T) {
	t.Parallel()
	balloon := entity(t, "Balloon")
	tests := []struct {
		name    string
		clause  where.Clause
		negate  bool
		wantSQL string
		args    []any
	}{
		{
			name:    "equal",
			clause:  where.Clause{"color": "red"},
			wantSQL: `"b"."color" = ?`,
			args:    []any{"red"},
		},
		{
			name:    "null",
			clause:  where.Clause{"color": nil},
			wantSQL: `"b"."color" IS NULL`,
		},
		{
			name:    "empty list",
			clause:  where.Clause{"color": []string{}},
			wantSQL: `1 = 0`,
		},
		{
			name:    "list",
			clause:  where.Clause{"color": []string{"red", "green"}},
			wantSQL: `"b"."color" IN (?, ?)`,
			args:    []any{"red", "green"},
		},
		{
			name:    "list with null",
			clause:  where.Clause{"color": []any{"red", nil}},
			wantSQL: `"b"."color" IN (?) OR "b"."color" IS NULL`,
			args:    []any{"red"},
		},
		{
			name:    "sorted columns",
			clause:  where.Clause{"pet_id": 1, "color": "red"},
			wantSQL: `"b"."color" = ? AND "b"."pet_id" = ?`,
			args:    []any{"red", 1},
		},
		{
			name:    "operator",
			clause:  where.Clause{"pet_id": where.GT(3)},
			wantSQL: `"b"."pet_id" > ?`,
			args:    []any{3},
		},
		{
			name:    "not equal null",
			clause:  where.Clause{"color": where.NEQ(nil)},
			wantSQL: `"b"."color" IS NOT NULL`,
		},
		{
			name:    "negated equal keeps null",
			clause:  where.Clause{"color": "red"},
			negate:  true,
			wantSQL: `"b"."color" <> ? OR "b"."color" IS NULL`,
			args:    []any{"red"},
		},
		{
			name:    "negated null",
			clause:  where.Clause{"color": nil},
			negate:  true,
			wantSQL: `"b"."color" IS NOT NULL`,
		},
		{
			name:    "negated empty list matches everything",
			clause:  where.Clause{"color": []string{}},
			negate:  true,
			wantSQL: `1 = 1`,
		},
		{
			name:    "negated list keeps null",
			clause:  where.Clause{"color": []string{"red", "green"}},
			negate:  true,
			wantSQL: `"b"."color" NOT IN (?, ?) OR "b"."color" IS NULL`,
			args:    []any{"red", "green"},
		},
		{
			name:    "negated list with null",
			clause:  where.Clause{"color": []any{"red", nil}},
			negate:  true,
			wantSQL: `"b"."color" NOT IN (?) AND "b"."color" IS NOT NULL`,
			args:    []any{"red"},
		},
		{
			name:    "negated operator",
			clause:  where.Clause{"pet_id": where.GT(3)},
			negate:  true,
			wantSQL: `NOT ("b"."pet_id" > ?) OR "b"."pet_id" IS NULL`,
			args:    []any{3},
		},
		{
			name:    "negated columns",
			clause:  where.Clause{"pet_id": 1, "color": "red"},
			negate:  true,
			wantSQL: `"b"."color" <> ? OR "b"."color" IS NULL OR "b"."pet_id" <> ? OR "b"."pet_id" IS NULL`,
			args:    []any{"red", 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := &sqlgraph.Compiler{}
			compile := c.Clause
			if tt.negate {
				compile = c.Not
			}
			p, err := compile(balloon, "b", tt.clause)
			require.NoError(t, err)
			query, args := p.Query()
			assert.Equal(t, tt.wantSQL, query)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestAny(t *testing.T) {
	t.Parallel()
	c := &sqlgraph.Compiler{}
	p, err := c.Any(entity(t, "Balloon"), "b", []where.Clause{{"color": "red"}, {"color": nil, "pet_id": 2}})
	require.NoError(t, err)
	query, args := p.Query()
	assert.Equal(t, `"b"."color" = ? OR ("b"."color" IS NULL AND "b"."pet_id" = ?)`, query)
	assert.Equal(t, []any{"red", 2}, args)

	p, err = c.Any(entity(t, "Balloon"), "b", nil)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestPassthrough(t *testing.T) {
	t.Parallel()
	translation := entity(t, "Translation")
	clause := where.Clause{"locale": where.Passthrough("locale")}

	c := &sqlgraph.Compiler{Passthrough: map[string]any{"locale": "es"}}
	p, err := c.Clause(translation, "t", clause)
	require.NoError(t, err)
	query, args := p.Query()
	assert.Equal(t, `"t"."locale" = ?`, query)
	assert.Equal(t, []any{"es"}, args)

	_, err = (&sqlgraph.Compiler{}).Clause(translation, "t", clause)
	require.Error(t, err)
	assert.True(t, dream.IsMissingPassthroughValue(err))
}

func TestScopes(t *testing.T) {
	t.Parallel()
	collar := entity(t, "Collar")
	tests := []struct {
		name    string
		c       *sqlgraph.Compiler
		wantSQL string
		args    []any
	}{
		{
			name:    "all",
			c:       &sqlgraph.Compiler{},
			wantSQL: `"c"."deleted_at" IS NULL AND "c"."hidden" = ?`,
			args:    []any{false},
		},
		{
			name:    "bypass by name",
			c:       &sqlgraph.Compiler{BypassScopes: []string{"visible"}},
			wantSQL: `"c"."deleted_at" IS NULL`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := tt.c.Scopes(collar, "c", collar.Scopes())
			require.NoError(t, err)
			query, args := p.Query()
			assert.Equal(t, tt.wantSQL, query)
			assert.Equal(t, tt.args, args)
		})
	}

	p, err := (&sqlgraph.Compiler{BypassAllScopes: true}).Scopes(collar, "c", collar.Scopes())
	require.NoError(t, err)
	assert.Nil(t, p)
}
