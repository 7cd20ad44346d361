package graph_test

import (
	"strings"
	"testing"

	dream "github.com/rvohealth/dream-sub006"
	"github.com/rvohealth/dream-sub006/examples/petstore"
	"github.com/rvohealth/dream-sub006/graph"
	"github.com/rvohealth/dream-sub006/schema"
	"github.com/rvohealth/dream-sub006/schema/edge"
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

func TestParsePath(t *testing.T) {
	t.Parallel()
	p := graph.ParsePath("collars.balloon")
	require.Len(t, p, 2)
	assert.Equal(t, "collars", p[0].Name)
	assert.Equal(t, "balloon", p[1].Name)
	assert.Nil(t, graph.ParsePath(""))

	q := p.As("b").And(where.Clause{"color": "red"}).OfType("Latex")
	assert.Equal(t, "collars.b", q.String())
	assert.Equal(t, where.Clause{"color": "red"}, q[1].And)
	assert.Equal(t, "Latex", q[1].Type)
	assert.Empty(t, p[1].Alias, "builders copy the path")
	assert.Equal(t, "collars.balloon.collars", p.Then(graph.ParsePath("collars")).String())
}

func TestResolveDirect(t *testing.T) {
	t.Parallel()
	pet := entity(t, "Pet")
	plan, err := graph.Resolve(pet, graph.ParsePath("collars"))
	require.NoError(t, err)
	assert.Equal(t, "pets", plan.RootAlias)
	require.Len(t, plan.Steps, 1)

	s := plan.Steps[0]
	assert.Equal(t, graph.Root, s.Parent)
	assert.Equal(t, graph.Root, s.GraftTo)
	assert.False(t, s.Hidden)
	assert.True(t, s.Many)
	assert.Equal(t, "collars", s.Name)
	assert.True(t, strings.HasPrefix(s.Alias, "collars_"), s.Alias)
	assert.Equal(t, "id", s.ParentColumn)
	assert.Equal(t, "pet_id", s.Column)
	assert.Equal(t, entity(t, "Collar"), s.Entity)
	assert.Equal(t, []where.Order{where.Asc("position")}, s.Order)
	assert.Equal(t, 1, s.Depth())

	var names []string
	for _, sc := range s.Scopes {
		names = append(names, sc.Name)
	}
	assert.Equal(t, []string{"soft_delete", "visible"}, names)

	again, err := graph.Resolve(pet, graph.ParsePath("collars"))
	require.NoError(t, err)
	assert.Equal(t, s.Alias, again.Steps[0].Alias, "aliases are stable")
}

func TestResolveSharedPrefix(t *testing.T) {
	t.Parallel()
	plan, err := graph.Resolve(entity(t, "Pet"),
		graph.ParsePath("collars"),
		graph.ParsePath("collars.balloon"),
		graph.ParsePath("user"),
	)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 3)
	balloon := plan.Steps[1]
	assert.Equal(t, 0, balloon.Parent)
	assert.Equal(t, 0, balloon.GraftTo)
	assert.False(t, balloon.Many)
	assert.Equal(t, "balloon_id", balloon.ParentColumn)
	assert.Equal(t, "id", balloon.Column)
	assert.Len(t, plan.Levels(), 2)
	assert.Equal(t, []*graph.Step{plan.Steps[0], plan.Steps[2]}, plan.Children(graph.Root))
	assert.Equal(t, []*graph.Step{balloon}, plan.Children(0))

	aliases := map[string]bool{plan.RootAlias: true}
	for _, s := range plan.Steps {
		assert.False(t, aliases[s.Alias], s.Alias)
		aliases[s.Alias] = true
	}
}

func TestResolveThrough(t *testing.T) {
	t.Parallel()

	t.Run("one hop", func(t *testing.T) {
		t.Parallel()
		plan, err := graph.Resolve(entity(t, "Pet"), graph.ParsePath("collar_balloons"))
		require.NoError(t, err)
		require.Len(t, plan.Steps, 2)
		collars, balloons := plan.Steps[0], plan.Steps[1]
		assert.True(t, collars.Hidden)
		assert.False(t, balloons.Hidden)
		assert.Equal(t, "collar_balloons", balloons.Name)
		assert.Equal(t, 0, balloons.Parent)
		assert.Equal(t, graph.Root, balloons.GraftTo)
		assert.True(t, balloons.Many)
		assert.Equal(t, []*graph.Step{collars, balloons}, plan.Chain(balloons))
		assert.Equal(t, []*graph.Step{balloons}, plan.Visible())
		assert.Equal(t, balloons, plan.Last())
	})

	t.Run("nested through", func(t *testing.T) {
		t.Parallel()
		plan, err := graph.Resolve(entity(t, "User"), graph.ParsePath("balloons"))
		require.NoError(t, err)
		require.Len(t, plan.Steps, 3)
		assert.Equal(t, "Pet", plan.Steps[0].Entity.Name)
		assert.Equal(t, "Collar", plan.Steps[1].Entity.Name)
		last := plan.Steps[2]
		assert.Equal(t, "Balloon", last.Entity.Name)
		assert.Equal(t, graph.Root, last.GraftTo)
		assert.Equal(t, 3, last.Depth())
		assert.Len(t, plan.Chain(last), 3)
		assert.Len(t, plan.Levels(), 3)
	})

	t.Run("self against origin", func(t *testing.T) {
		t.Parallel()
		plan, err := graph.Resolve(entity(t, "Pet"), graph.ParsePath("same_species_pets"))
		require.NoError(t, err)
		require.Len(t, plan.Steps, 2)
		last := plan.Steps[1]
		assert.Equal(t, 0, last.Parent)
		assert.Equal(t, graph.Root, last.Origin)
		assert.Equal(t, []graph.SelfCondition{{Column: "species", OriginColumn: "species"}}, last.Self)
		assert.Equal(t, "Pet", last.Entity.Name)
	})

	t.Run("self below a join", func(t *testing.T) {
		t.Parallel()
		plan, err := graph.Resolve(entity(t, "Collar"), graph.ParsePath("pet.user.named_collars"))
		require.NoError(t, err)
		require.Len(t, plan.Steps, 4)
		last := plan.Steps[3]
		assert.Equal(t, 1, last.Origin, "compares against the user step")
		assert.Equal(t, 2, last.Parent)
		assert.Equal(t, 1, last.GraftTo)
		assert.Equal(t, []graph.SelfCondition{{Column: "tag_name", OriginColumn: "name"}}, last.Self)
	})

	t.Run("caller conditions land on the source", func(t *testing.T) {
		t.Parallel()
		plan, err := graph.Resolve(entity(t, "Pet"), graph.ParsePath("collar_balloons").AndNot(where.Clause{"color": "red"}))
		require.NoError(t, err)
		assert.Empty(t, plan.Steps[0].AndNot)
		assert.Equal(t, where.Clause{"color": "red"}, plan.Steps[1].AndNot)
	})
}

func TestResolveRequired(t *testing.T) {
	t.Parallel()
	pet := entity(t, "Pet")
	_, err := graph.Resolve(pet, graph.ParsePath("translations"))
	var rerr *dream.MissingRequiredConditionError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, []string{"locale"}, rerr.Missing)
	assert.Equal(t, "translations", rerr.Association)

	_, err = graph.Resolver{Preload: true}.Resolve(pet, graph.ParsePath("translations"))
	assert.True(t, dream.IsMissingRequiredCondition(err))

	plan, err := graph.Resolve(pet, graph.ParsePath("translations").On(where.Clause{"locale": "en"}))
	require.NoError(t, err)
	s := plan.Steps[0]
	assert.Equal(t, where.Clause{"locale": "en"}, s.On)
	assert.Equal(t, "localizable_id", s.Column)
	assert.Equal(t, "localizable_type", s.TypeColumn)
	assert.Equal(t, "Pet", s.TypeValue)
}

func TestResolvePolymorphic(t *testing.T) {
	t.Parallel()
	translation := entity(t, "Translation")

	_, err := graph.Resolve(translation, graph.ParsePath("localizable"))
	var perr *dream.AmbiguousPolymorphicError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, []string{"Post", "Pet"}, perr.Candidates)

	plan, err := graph.Resolve(translation, graph.ParsePath("localizable").OfType("Pet"))
	require.NoError(t, err)
	s := plan.Steps[0]
	assert.Equal(t, entity(t, "Pet"), s.Entity)
	assert.Equal(t, "localizable_id", s.ParentColumn)
	assert.Equal(t, "localizable_type", s.ParentTypeColumn)
	assert.Equal(t, "Pet", s.ParentTypeValue)
	assert.Equal(t, "id", s.TargetColumn(s.Entity))

	_, err = graph.Resolve(translation, graph.ParsePath("localizable").OfType("User"))
	assert.True(t, dream.IsUnknownEntity(err))

	plan, err = graph.Resolver{Preload: true}.Resolve(translation, graph.ParsePath("localizable"))
	require.NoError(t, err)
	assert.True(t, plan.Steps[0].Polymorphic())
	assert.Len(t, plan.Steps[0].Candidates, 2)

	_, err = graph.Resolver{Preload: true}.Resolve(translation, graph.ParsePath("localizable.collars"))
	assert.ErrorAs(t, err, &perr)

	rec := translation.New(map[string]any{"localizable_id": int64(4), "localizable_type": "Post"})
	plan, err = graph.Resolver{}.ResolveFrom(rec, graph.ParsePath("localizable.comments"))
	require.NoError(t, err)
	assert.Equal(t, "Post", plan.Steps[0].Entity.Name)
	assert.Equal(t, "Comment", plan.Steps[1].Entity.Name)
}

func TestResolveErrors(t *testing.T) {
	t.Parallel()
	pet := entity(t, "Pet")

	_, err := graph.Resolve(pet, graph.ParsePath("collars.ribbon"))
	var uerr *dream.UnknownAssociationError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "Collar", uerr.Entity)
	assert.Contains(t, uerr.Valid, "balloon")

	_, err = graph.Resolve(pet, graph.ParsePath("collars").As("c"), graph.ParsePath("current_collar").As("c"))
	var derr *dream.DuplicateAliasError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "c", derr.Alias)

	_, err = graph.Resolve(pet,
		graph.ParsePath("collars").And(where.Clause{"lost": true}),
		graph.ParsePath("collars").And(where.Clause{"lost": false}),
	)
	assert.ErrorAs(t, err, &derr)

	plan, err := graph.Resolve(pet,
		graph.ParsePath("collars").And(where.Clause{"lost": true}).As("lost_collars"),
		graph.ParsePath("collars").And(where.Clause{"lost": false}),
	)
	require.NoError(t, err)
	assert.Equal(t, "lost_collars", plan.Steps[0].Alias)
	assert.Equal(t, "lost_collars", plan.Steps[0].Name)
	assert.Equal(t, "collars", plan.Steps[1].Name)
}

type Loop struct{ schema.Schema }

func (Loop) Edges() []schema.Edge {
	return []schema.Edge{
		edge.HasManyThrough("ins", "outs", "x"),
		edge.HasManyThrough("outs", "ins", "y"),
		edge.HasMany("items", Item.Type),
		edge.HasManyThrough("widgets", "items", ""),
	}
}

type Item struct{ schema.Schema }

func (Item) Fields() []schema.Field { return nil }

func TestResolveSchemaErrors(t *testing.T) {
	t.Parallel()
	reg := schema.MustNewRegistry(Loop{}, Item{})
	loop, err := reg.Entity("Loop")
	require.NoError(t, err)

	_, err = graph.Resolve(loop, graph.ParsePath("ins"))
	var cerr *dream.CyclicAssociationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []string{"Loop.ins", "Loop.outs", "Loop.ins"}, cerr.Chain)

	_, err = graph.Resolve(loop, graph.ParsePath("widgets"))
	var serr *dream.MissingThroughSourceError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "Item", serr.Intermediate)
	assert.Equal(t, "widgets", serr.Source)
}

func TestPlanRefs(t *testing.T) {
	t.Parallel()
	plan, err := graph.Resolve(entity(t, "Pet"),
		graph.ParsePath("current_translation"),
		graph.ParsePath("collars").And(where.Clause{"tag_name": where.Passthrough("tag")}),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"locale", "tag"}, plan.Refs())
}
