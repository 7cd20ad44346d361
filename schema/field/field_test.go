package field_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvohealth/dream-sub006/schema/field"
)

func TestInt(t *testing.T) {
	fd := field.Int("age").
		Positive().
		Comment("comment").
		Descriptor()
	assert.Equal(t, "age", fd.Name)
	assert.Equal(t, field.TypeInt, fd.Type)
	assert.Len(t, fd.Validators, 1)
	assert.Equal(t, "comment", fd.Comment)

	fd = field.Int("age").
		Default(10).
		Min(10).
		Max(20).
		Descriptor()
	assert.Equal(t, 10, fd.Default)
	assert.Len(t, fd.Validators, 2)
	assert.Equal(t, []string{"must be less than or equal to 20"}, fd.Check(21))
	assert.Equal(t, []string{"must be greater than or equal to 10"}, fd.Check(int64(9)))
	assert.Empty(t, fd.Check(15))

	fd = field.Int64("rank").Range(1, 5).Nillable().Descriptor()
	assert.Nil(t, fd.Default)
	assert.True(t, fd.Nillable)
	assert.False(t, fd.Immutable)
	assert.Len(t, fd.Validators, 2)
}

func TestFloat(t *testing.T) {
	fd := field.Float64("weight").Positive().Descriptor()
	assert.Equal(t, field.TypeFloat64, fd.Type)
	assert.Equal(t, []string{"must be greater than 0"}, fd.Check(0.0))
	assert.Empty(t, fd.Check(1.5))
}

func TestString(t *testing.T) {
	fd := field.String("name").
		NotEmpty().
		MaxLen(5).
		Match(regexp.MustCompile(`^[a-z]*$`)).
		Descriptor()
	assert.Equal(t, field.TypeString, fd.Type)
	assert.Len(t, fd.Validators, 3)

	tests := []struct {
		name  string
		value any
		want  []string
	}{
		{name: "valid", value: "aster", want: nil},
		{name: "blank", value: "", want: []string{"can't be blank"}},
		{name: "too_long", value: "abcdefg", want: []string{"is too long (maximum is 5 characters)"}},
		{name: "too_long_and_invalid", value: "ABCDEFG", want: []string{"is too long (maximum is 5 characters)", "is invalid"}},
		{name: "nil_is_skipped", value: nil, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fd.Check(tt.value))
		})
	}

	fd = field.String("nickname").MinLen(3).Descriptor()
	assert.Equal(t, []string{"is too short (minimum is 3 characters)"}, fd.Check("ab"))
	assert.Empty(t, fd.Check("日本語"))
}

func TestStringDefault(t *testing.T) {
	fd := field.String("status").Default("active").Descriptor()
	require.NoError(t, fd.Err)
	v, ok := fd.DefaultValue()
	assert.True(t, ok)
	assert.Equal(t, "active", v)

	fd = field.String("status").Default(1).Descriptor()
	assert.Error(t, fd.Err)

	fd = field.String("status").Default(func() string { return "x" }).Descriptor()
	require.NoError(t, fd.Err)
	v, ok = fd.DefaultValue()
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	fd = field.String("status").Default(func(int) string { return "x" }).Descriptor()
	assert.Error(t, fd.Err)
}

func TestField_Enums(t *testing.T) {
	fd := field.Enum("species").
		Validate(func(any) error { return nil }).
		Values("cat", "dog").
		Values("bird").
		Descriptor()
	assert.Equal(t, field.TypeEnum, fd.Type)
	assert.Equal(t, []string{"cat", "dog", "bird"}, fd.Enums)
	assert.Len(t, fd.Validators, 2)
	assert.Empty(t, fd.Check("bird"))
	assert.Equal(t, []string{"is not included in the list"}, fd.Check("cow"))
}

func TestField_UUID(t *testing.T) {
	fd := field.UUID("id").Default(uuid.New).Immutable().Descriptor()
	require.NoError(t, fd.Err)
	assert.Equal(t, field.TypeUUID, fd.Type)
	assert.True(t, fd.Immutable)
	v1, ok := fd.DefaultValue()
	require.True(t, ok)
	v2, _ := fd.DefaultValue()
	assert.IsType(t, uuid.UUID{}, v1)
	assert.NotEqual(t, v1, v2)
}

func TestTime(t *testing.T) {
	now := time.Now()
	fd := field.Time("updated_at").
		Default(func() time.Time { return now }).
		UpdateDefault(func() time.Time { return now }).
		UpdateTime().
		Descriptor()
	require.NoError(t, fd.Err)
	assert.Equal(t, field.RoleUpdateTime, fd.Role)
	v, ok := fd.UpdateDefaultValue()
	assert.True(t, ok)
	assert.Equal(t, now, v)

	fd = field.Time("deleted_at").SoftDelete().Descriptor()
	assert.Equal(t, field.RoleSoftDelete, fd.Role)
	assert.True(t, fd.Optional)
	assert.True(t, fd.Nillable)

	fd = field.Bool("deleted").SoftDelete().Descriptor()
	assert.Error(t, fd.Err)
}

func TestPosition(t *testing.T) {
	fd := field.Int("position").Position("owner_id", "kind").Descriptor()
	assert.Equal(t, field.RolePosition, fd.Role)
	assert.Equal(t, []string{"owner_id", "kind"}, fd.PositionScope)
	assert.True(t, fd.Nillable)
}

func TestFieldDescriptorOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		desc     *field.Descriptor
		optional bool
		nillable bool
		column   string
	}{
		{name: "string", desc: field.String("a").Optional().StorageKey("b").Descriptor(), optional: true, column: "b"},
		{name: "numeric", desc: field.Int("a").Nillable().Descriptor(), nillable: true, column: "a"},
		{name: "bool", desc: field.Bool("a").Optional().Nillable().Descriptor(), optional: true, nillable: true, column: "a"},
		{name: "json", desc: field.JSON("a").StorageKey("data").Descriptor(), column: "data"},
		{name: "bytes", desc: field.Bytes("a").Descriptor(), column: "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.optional, tt.desc.Optional)
			assert.Equal(t, tt.nillable, tt.desc.Nillable)
			assert.Equal(t, tt.column, tt.desc.Column())
		})
	}
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "string", field.TypeString.String())
	assert.Equal(t, "uuid.UUID", field.TypeUUID.String())
	assert.Equal(t, "invalid", field.Type(200).String())
}

func TestTypeNumeric(t *testing.T) {
	assert.True(t, field.TypeInt.Numeric())
	assert.True(t, field.TypeFloat64.Numeric())
	assert.False(t, field.TypeString.Numeric())
}

func TestTypeValid(t *testing.T) {
	assert.True(t, field.TypeBool.Valid())
	assert.False(t, field.TypeInvalid.Valid())
	assert.False(t, field.Type(200).Valid())
}

func TestToFloat(t *testing.T) {
	f, ok := field.ToFloat(int32(3))
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)
	_, ok = field.ToFloat("3")
	assert.False(t, ok)
}
