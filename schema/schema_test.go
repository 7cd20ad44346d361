package schema_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	dream "github.com/rvohealth/dream-sub006"
	"github.com/rvohealth/dream-sub006/examples/petstore"
	"github.com/rvohealth/dream-sub006/schema"
	"github.com/rvohealth/dream-sub006/schema/edge"
	"github.com/rvohealth/dream-sub006/schema/field"
	"github.com/rvohealth/dream-sub006/schema/where"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entity(t *testing.T, reg *schema.Registry, name string) *schema.EntityType {
	t.Helper()
	e, err := reg.Entity(name)
	require.NoError(t, err)
	return e
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	reg := petstore.MustRegistry(nil)
	require.NoError(t, reg.Validate())
	assert.Equal(t, []string{"Balloon", "Collar", "Comment", "Latex", "Mylar", "Pet", "Post", "Reaction", "Translation", "User"}, reg.Names())
	assert.Len(t, reg.Entities(), 10)

	_, err := reg.Entity("Dog")
	require.Error(t, err)
	assert.True(t, dream.IsUnknownEntity(err))
	assert.Contains(t, err.Error(), "Pet")

	pet := entity(t, reg, "Pet")
	assert.Equal(t, "pets", pet.Table)
	assert.Equal(t, "id", pet.PrimaryKey.Column())
	assert.Equal(t, field.TypeInt64, pet.PrimaryKey.Type)
	assert.Equal(t, []string{"id", "created_at", "updated_at", "deleted_at", "name", "species", "user_id"}, pet.ColumnNames())
	assert.Equal(t, "deleted_at", pet.SoftDeleteColumn())
	assert.False(t, pet.ReplicaSafe)
	assert.True(t, entity(t, reg, "User").ReplicaSafe)
}

func TestAssociationLinking(t *testing.T) {
	t.Parallel()
	reg := petstore.MustRegistry(nil)
	pet := entity(t, reg, "Pet")

	tests := []struct {
		owner, name         string
		kind                edge.Kind
		ownerCol, targetCol string
		typeCol, typeValue  string
		target              string
	}{
		{owner: "Pet", name: "user", kind: edge.KindBelongsTo, ownerCol: "user_id", targetCol: "id", target: "User"},
		{owner: "Pet", name: "collars", kind: edge.KindHasMany, ownerCol: "id", targetCol: "pet_id", target: "Collar"},
		{owner: "Pet", name: "translations", kind: edge.KindHasMany, ownerCol: "id", targetCol: "localizable_id", typeCol: "localizable_type", typeValue: "Pet", target: "Translation"},
		{owner: "Balloon", name: "collars", kind: edge.KindHasMany, ownerCol: "id", targetCol: "balloon_id", target: "Collar"},
		{owner: "Collar", name: "balloon", kind: edge.KindBelongsTo, ownerCol: "balloon_id", targetCol: "id", target: "Balloon"},
	}
	for _, tt := range tests {
		t.Run(tt.owner+"."+tt.name, func(t *testing.T) {
			t.Parallel()
			a, err := entity(t, reg, tt.owner).Association(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, a.Kind)
			assert.Equal(t, tt.ownerCol, a.OwnerColumn)
			assert.Equal(t, tt.targetCol, a.TargetColumn)
			assert.Equal(t, tt.typeCol, a.TypeColumn)
			assert.Equal(t, tt.typeValue, a.TypeValue)
			target, err := a.Target()
			require.NoError(t, err)
			assert.Equal(t, tt.target, target.Name)
		})
	}

	t.Run("polymorphic", func(t *testing.T) {
		t.Parallel()
		a, err := entity(t, reg, "Translation").Association("localizable")
		require.NoError(t, err)
		assert.True(t, a.Polymorphic)
		assert.Equal(t, "localizable_id", a.OwnerColumn)
		assert.Equal(t, "localizable_type", a.TypeColumn)
		assert.Equal(t, []string{"Post", "Pet"}, a.CandidateNames())
		c, err := a.Candidate("Pet")
		require.NoError(t, err)
		assert.Equal(t, pet, c)
		assert.Equal(t, "id", a.TargetKey(c))
		_, err = a.Candidate("User")
		assert.True(t, dream.IsUnknownEntity(err))
	})

	t.Run("unknown", func(t *testing.T) {
		t.Parallel()
		_, err := pet.Association("collar")
		var uerr *dream.UnknownAssociationError
		require.ErrorAs(t, err, &uerr)
		assert.Contains(t, uerr.Valid, "collars")
		assert.Contains(t, err.Error(), "current_collar")
	})
}

type Ghost struct{ schema.Schema }

func (Ghost) Edges() []schema.Edge {
	return []schema.Edge{edge.HasMany("chains", "Chain")}
}

func TestUnknownTarget(t *testing.T) {
	t.Parallel()
	reg, err := schema.NewRegistry([]schema.Definition{Ghost{}})
	require.NoError(t, err)
	a, err := entity(t, reg, "Ghost").Association("chains")
	require.NoError(t, err)
	_, err = a.Target()
	require.Error(t, err)
	assert.True(t, dream.IsUnknownEntity(err))
	assert.Contains(t, err.Error(), "Ghost.chains")
	assert.True(t, dream.IsUnknownEntity(reg.Validate()))
}

type Broken struct{ schema.Schema }

func (Broken) Fields() []schema.Field {
	return []schema.Field{
		field.String("name"),
		field.String("title").StorageKey("name"),
		field.Bool("flag").CreateTime(),
	}
}

func TestRegistryErrors(t *testing.T) {
	t.Parallel()
	_, err := schema.NewRegistry([]schema.Definition{Broken{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `declares column "name" twice`)
	assert.Contains(t, err.Error(), "role requires a time field")

	_, err = schema.NewRegistry([]schema.Definition{Ghost{}, Ghost{}})
	assert.ErrorContains(t, err, "defined twice")

	_, err = schema.NewRegistry([]schema.Definition{petstore.Latex{}})
	assert.True(t, dream.IsUnknownEntity(err))
}

func TestSingleTableInheritance(t *testing.T) {
	t.Parallel()
	reg := petstore.MustRegistry(nil)
	balloon := entity(t, reg, "Balloon")
	latex := entity(t, reg, "Latex")
	mylar := entity(t, reg, "Mylar")

	assert.Equal(t, "type", balloon.TypeColumn())
	assert.Equal(t, "balloons", latex.Table)
	assert.Equal(t, balloon, latex.Base())
	assert.True(t, mylar.IsVariant())
	assert.False(t, balloon.IsVariant())
	assert.Equal(t, []*schema.EntityType{latex, mylar}, balloon.Variants())
	_, ok := balloon.Column("type")
	assert.True(t, ok)
	_, ok = mylar.Column("shape")
	assert.True(t, ok)
	_, ok = balloon.Column("shape")
	assert.False(t, ok)

	var names []string
	for _, c := range balloon.TableColumns() {
		names = append(names, c.Column())
	}
	assert.Equal(t, []string{"id", "color", "pet_id", "type", "shape"}, names)

	col, val, ok := latex.Discriminator()
	assert.True(t, ok)
	assert.Equal(t, "type", col)
	assert.Equal(t, "Latex", val)
	assert.Equal(t, "Latex", latex.New(nil).Get("type"))

	a, err := mylar.Association("collars")
	require.NoError(t, err)
	assert.Equal(t, balloon, a.Owner)

	t.Run("hydrate", func(t *testing.T) {
		t.Parallel()
		r, err := balloon.Hydrate(map[string]any{"id": int64(1), "type": []byte("Mylar"), "color": "red", "shape": "star"})
		require.NoError(t, err)
		assert.Equal(t, mylar, r.Entity())
		assert.Equal(t, "star", r.Get("shape"))
		assert.True(t, r.IsPersisted())
		assert.False(t, r.IsDirty())

		r, err = balloon.Hydrate(map[string]any{"id": int64(2), "type": nil})
		require.NoError(t, err)
		assert.Equal(t, balloon, r.Entity())

		_, err = balloon.Hydrate(map[string]any{"id": int64(3), "type": "Foil"})
		var verr *dream.UnknownVariantError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []string{"Latex", "Mylar"}, verr.Known)
	})
}

func TestRecordChanges(t *testing.T) {
	t.Parallel()
	reg := petstore.MustRegistry(nil)
	pet := entity(t, reg, "Pet")

	r := pet.New(map[string]any{"name": "Aster"})
	assert.False(t, r.IsPersisted())
	assert.True(t, r.IsDirty())
	assert.Equal(t, []string{"name"}, r.Changes().Columns())

	r.Set("id", int64(1))
	r.MarkSaved(r.Changes())
	assert.False(t, r.IsDirty())
	assert.True(t, r.SavedChanges().Has("name"))

	r.Set("name", "Aster")
	r.Set("user_id", int32(0))
	r.Set("user_id", nil)
	assert.Empty(t, r.Changes())

	r.Set("name", "Basil")
	c := r.Changes()
	assert.Equal(t, schema.Change{Old: "Aster", New: "Basil"}, c["name"])
	old, ok := r.Original("name")
	assert.True(t, ok)
	assert.Equal(t, "Aster", old)

	_, err := r.Many("collars")
	assert.True(t, dream.IsNotLoaded(err))
	r.SetLoaded("collars", []*schema.Record{})
	r.SetLoaded("user", (*schema.Record)(nil))
	many, err := r.Many("collars")
	require.NoError(t, err)
	assert.Empty(t, many)
	one, err := r.One("user")
	require.NoError(t, err)
	assert.Nil(t, one)
	assert.Equal(t, []string{"collars", "user"}, r.LoadedNames())
}

func TestRecordMarkWritten(t *testing.T) {
	t.Parallel()
	pet := entity(t, petstore.MustRegistry(nil), "Pet")
	r, err := pet.Hydrate(map[string]any{"id": int64(1), "name": "Aster"})
	require.NoError(t, err)

	stamp := time.Unix(10, 0)
	r.Set("name", "Basil")
	r.MarkWritten(map[string]any{"deleted_at": stamp, "name": "Basil"})
	assert.Empty(t, r.Changes())
	assert.Equal(t, []string{"deleted_at", "name"}, r.SavedChanges().Columns())

	r.Set("name", "Cleo")
	r.MarkWritten(map[string]any{"deleted_at": nil})
	assert.Equal(t, []string{"name"}, r.Changes().Columns(), "unwritten edits stay dirty")
	assert.Equal(t, schema.Change{Old: stamp, New: nil}, r.SavedChanges()["deleted_at"])
	old, _ := r.Original("name")
	assert.Equal(t, "Basil", old)
}

func TestEqualAndKey(t *testing.T) {
	t.Parallel()
	now := time.Now()
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{name: "ints", a: int64(1), b: 1, want: true},
		{name: "int float", a: 1, b: 1.0, want: true},
		{name: "times", a: now, b: now.UTC(), want: true},
		{name: "bytes string", a: []byte("x"), b: "x", want: true},
		{name: "nil", a: nil, b: nil, want: true},
		{name: "nil value", a: nil, b: 0, want: false},
		{name: "strings", a: "a", b: "b", want: false},
		{name: "json", a: json.RawMessage(`{}`), b: json.RawMessage(`{}`), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, schema.Equal(tt.a, tt.b))
		})
	}
	assert.Equal(t, schema.Key(int32(7)), schema.Key(int64(7)))
	assert.Equal(t, schema.Key([]byte("k")), schema.Key("k"))
}

func TestValidate(t *testing.T) {
	t.Parallel()
	reg := petstore.MustRegistry(nil)
	ctx := context.Background()

	t.Run("create collects every violation", func(t *testing.T) {
		t.Parallel()
		user := entity(t, reg, "User")
		r := user.New(map[string]any{"name": strings.Repeat("x", 101), "email": "nope"})
		err := user.Validate(ctx, r, dream.OpCreate)
		var verr *dream.ValidationFailedError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []string{"is too long (maximum is 100 characters)"}, verr.Violations["name"])
		assert.Equal(t, []string{"is invalid"}, verr.Violations["email"])
	})

	t.Run("presence and belongs to", func(t *testing.T) {
		t.Parallel()
		collar := entity(t, reg, "Collar")
		r := collar.New(nil)
		err := collar.Validate(ctx, r, dream.OpCreate)
		var verr *dream.ValidationFailedError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []string{"must exist"}, verr.Violations["pet"])
		assert.NotContains(t, verr.Violations, "pet_id", "reported under the association")
		assert.NotContains(t, verr.Violations, "balloon", "optional association")
		assert.NotContains(t, verr.Violations, "lost")
		assert.NotContains(t, verr.Violations, "position")
		assert.Contains(t, verr.FullMessages(), "Pet must exist")
	})

	t.Run("immutable", func(t *testing.T) {
		t.Parallel()
		pet := entity(t, reg, "Pet")
		r, err := pet.Hydrate(map[string]any{"id": int64(1), "name": "Aster", "created_at": time.Unix(1, 0)})
		require.NoError(t, err)
		r.Set("created_at", time.Unix(2, 0))
		err = pet.Validate(ctx, r, dream.OpUpdate)
		var verr *dream.ValidationFailedError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []string{"can't be changed"}, verr.Violations["created_at"])
	})

	t.Run("enum", func(t *testing.T) {
		t.Parallel()
		pet := entity(t, reg, "Pet")
		r := pet.New(map[string]any{"name": "Aster", "species": "cow"})
		err := pet.Validate(ctx, r, dream.OpCreate)
		var verr *dream.ValidationFailedError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []string{"is not included in the list"}, verr.Violations["species"])
		r.Set("species", "cat")
		assert.NoError(t, pet.Validate(ctx, r, dream.OpCreate))
	})
}

type Checked struct{ schema.Schema }

func (Checked) Fields() []schema.Field {
	return []schema.Field{field.Int("low").Optional(), field.Int("high").Optional()}
}

func (Checked) Validations() []schema.Validation {
	return []schema.Validation{{
		Name: "ordered",
		Fn: func(_ context.Context, r *schema.Record, errs *dream.ValidationFailedError) {
			low, _ := r.Get("low").(int)
			high, _ := r.Get("high").(int)
			if low > high {
				errs.Add("low", "must not exceed high")
			}
		},
	}}
}

func TestCustomValidation(t *testing.T) {
	t.Parallel()
	reg := schema.MustNewRegistry(Checked{})
	e := entity(t, reg, "Checked")
	err := e.Validate(context.Background(), e.New(map[string]any{"low": 3, "high": 1}), dream.OpCreate)
	assert.True(t, dream.IsValidationFailed(err))
	assert.NoError(t, e.Validate(context.Background(), e.New(map[string]any{"low": 1, "high": 3}), dream.OpCreate))
}

func TestDefaultCodec(t *testing.T) {
	t.Parallel()
	id := uuid.New()
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		f    *field.Descriptor
		in   any
		want any
	}{
		{name: "bool int", f: field.Bool("b").Descriptor(), in: int64(1), want: true},
		{name: "bool bytes", f: field.Bool("b").Descriptor(), in: []byte("0"), want: false},
		{name: "time string", f: field.Time("t").Descriptor(), in: "2024-03-01 12:00:00", want: ts},
		{name: "uuid string", f: field.UUID("u").Descriptor(), in: id.String(), want: id},
		{name: "uuid raw", f: field.UUID("u").Descriptor(), in: id[:], want: id},
		{name: "json", f: field.JSON("j").Descriptor(), in: []byte(`{"a":1}`), want: json.RawMessage(`{"a":1}`)},
		{name: "string bytes", f: field.String("s").Descriptor(), in: []byte("hi"), want: "hi"},
		{name: "int", f: field.Int("i").Descriptor(), in: int64(3), want: 3},
		{name: "int64 bytes", f: field.Int64("i").Descriptor(), in: []byte("42"), want: int64(42)},
		{name: "float", f: field.Float64("f").Descriptor(), in: []byte("1.5"), want: 1.5},
		{name: "null", f: field.Int("i").Descriptor(), in: nil, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := schema.DefaultCodec{}.Decode(tt.f, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := schema.DefaultCodec{}.Decode(field.Int("i").Descriptor(), struct{}{})
	assert.Error(t, err)

	enc, err := schema.DefaultCodec{}.Encode(field.JSON("j").Descriptor(), map[string]int{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), enc)
	enc, err = schema.DefaultCodec{}.Encode(field.UUID("u").Descriptor(), id)
	require.NoError(t, err)
	assert.Equal(t, id.String(), enc)
}

func TestHookTable(t *testing.T) {
	t.Parallel()
	noop := func(context.Context, *schema.Record, schema.Changes) error { return nil }
	table := schema.NewHookTable(
		schema.On(schema.BeforeSave, noop).Named("first"),
		schema.On(schema.BeforeSave, noop),
		schema.On(schema.AfterSaveCommit, noop).IfChanged("name"),
	)
	assert.Equal(t, 3, table.Len())
	before := table.For(schema.BeforeSave)
	require.Len(t, before, 2)
	assert.Equal(t, "first", before[0].String())
	assert.Equal(t, "beforeSave", before[1].String())

	commit := table.For(schema.AfterSaveCommit)[0]
	assert.True(t, commit.Event.Commit())
	assert.False(t, schema.AfterSave.Commit())
	assert.True(t, commit.Applies(schema.Changes{"name": {Old: "a", New: "b"}}))
	assert.False(t, commit.Applies(schema.Changes{"species": {}}))
	assert.Empty(t, table.For(schema.BeforeDestroy))
}

const petsYAML = `
entities:
  - name: Owner
    fields:
      - {name: name, type: string, max_len: 20}
    edges:
      - {name: dogs, kind: has_many, target: Dog, dependent: true, order: ["-name"]}
  - name: Dog
    table: hounds
    replica_safe: true
    fields:
      - {name: name, type: string}
      - {name: owner_id, type: int64}
      - {name: deleted_at, type: time, role: soft_delete}
      - {name: locale, type: string, optional: true}
    edges:
      - {name: owner, kind: belongs_to, target: Owner}
      - {name: siblings, kind: has_many, through: owner, source: dogs}
    scopes:
      - {name: soft_delete, where: {deleted_at: null}}
      - {name: localized, where: {locale: {passthrough: locale}}}
`

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	defs, err := schema.LoadYAML(strings.NewReader(petsYAML))
	require.NoError(t, err)
	reg, err := schema.NewRegistry(defs)
	require.NoError(t, err)
	require.NoError(t, reg.Validate())

	dog := entity(t, reg, "Dog")
	assert.Equal(t, "hounds", dog.Table)
	assert.True(t, dog.ReplicaSafe)
	assert.Equal(t, "deleted_at", dog.SoftDeleteColumn())
	require.Len(t, dog.Scopes(), 2)
	assert.Equal(t, where.Passthrough("locale"), dog.Scopes()[1].Where["locale"])

	dogs, err := entity(t, reg, "Owner").Association("dogs")
	require.NoError(t, err)
	assert.True(t, dogs.Dependent)
	assert.Equal(t, []where.Order{where.Desc("name")}, dogs.Order)
	assert.Equal(t, "owner_id", dogs.TargetColumn)

	_, err = schema.LoadYAML(strings.NewReader("entities:\n  - {name: X, fields: [{name: a, type: money}]}\n"))
	assert.ErrorContains(t, err, "unknown type")
	_, err = schema.LoadYAML(strings.NewReader("entities:\n  - {name: X, colour: red}\n"))
	assert.Error(t, err)
}
