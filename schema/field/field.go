package field

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"unicode/utf8"
)

// A Type represents a field type.
type Type uint8

// List of field types.
const (
	TypeInvalid Type = iota
	TypeBool
	TypeTime
	TypeJSON
	TypeUUID
	TypeBytes
	TypeEnum
	TypeString
	TypeInt
	TypeInt64
	TypeFloat64
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeBool:    "bool",
	TypeTime:    "time.Time",
	TypeJSON:    "json.RawMessage",
	TypeUUID:    "uuid.UUID",
	TypeBytes:   "[]byte",
	TypeEnum:    "string",
	TypeString:  "string",
	TypeInt:     "int",
	TypeInt64:   "int64",
	TypeFloat64: "float64",
}

// String returns the Go type name of t.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return typeNames[TypeInvalid]
}

// Numeric reports whether t is a numeric type.
func (t Type) Numeric() bool {
	return t == TypeInt || t == TypeInt64 || t == TypeFloat64
}

// Valid reports if the given type is known.
func (t Type) Valid() bool {
	return t > TypeInvalid && int(t) < len(typeNames)
}

// Role marks a column the persistence layer maintains itself.
type Role uint8

// Column roles.
const (
	RoleNone Role = iota
	RoleCreateTime
	RoleUpdateTime
	RoleSoftDelete
	RolePosition
)

// Validator checks a non-nil value and returns an error whose message is
// reported as the violation, e.g. "is too long (maximum is 10 characters)".
type Validator func(any) error

// A Descriptor for field configuration.
type Descriptor struct {
	Name          string
	Type          Type
	StorageKey    string
	Optional      bool
	Nillable      bool
	Immutable     bool
	Default       any
	UpdateDefault any
	Enums         []string
	Validators    []Validator
	Role          Role
	PositionScope []string
	Comment       string
	Err           error
}

// Column returns the column name of the field.
func (d *Descriptor) Column() string {
	if d.StorageKey != "" {
		return d.StorageKey
	}
	return d.Name
}

// DefaultValue returns the default value of the field. Function
// defaults such as time.Now or uuid.New are called on every invocation.
func (d *Descriptor) DefaultValue() (any, bool) {
	return evalDefault(d.Default)
}

// UpdateDefaultValue returns the value set on every update, if any.
func (d *Descriptor) UpdateDefaultValue() (any, bool) {
	return evalDefault(d.UpdateDefault)
}

func evalDefault(v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Func && rv.Type().NumIn() == 0 && rv.Type().NumOut() == 1 {
		return rv.Call(nil)[0].Interface(), true
	}
	return v, true
}

// Check runs the validators of the field against v and returns every
// violation message. Nil values are checked only for presence.
func (d *Descriptor) Check(v any) []string {
	if v == nil {
		return nil
	}
	var msgs []string
	for _, fn := range d.Validators {
		if err := fn(v); err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	return msgs
}

func (d *Descriptor) checkDefault(t reflect.Kind) {
	if d.Default == nil {
		return
	}
	rv := reflect.ValueOf(d.Default)
	if rv.Kind() == reflect.Func {
		if rv.Type().NumIn() != 0 || rv.Type().NumOut() != 1 {
			d.Err = fmt.Errorf("field %q: default func must have no arguments and one result", d.Name)
		}
		return
	}
	if t != reflect.Invalid && rv.Kind() != t {
		d.Err = fmt.Errorf("field %q: expect default value of kind %s, got %s", d.Name, t, rv.Kind())
	}
}

// Bool returns a new Field with type bool.
func Bool(name string) *Builder {
	return &Builder{&Descriptor{Name: name, Type: TypeBool}}
}

// Time returns a new Field with type timestamp.
func Time(name string) *Builder {
	return &Builder{&Descriptor{Name: name, Type: TypeTime}}
}

// UUID returns a new Field with type UUID.
//
//	field.UUID("id").Default(uuid.New)
func UUID(name string) *Builder {
	return &Builder{&Descriptor{Name: name, Type: TypeUUID}}
}

// JSON returns a new Field with type json that is serialized to the
// underlying database as a JSON document.
func JSON(name string) *Builder {
	return &Builder{&Descriptor{Name: name, Type: TypeJSON}}
}

// Bytes returns a new Field with type bytes/buffer.
func Bytes(name string) *Builder {
	return &Builder{&Descriptor{Name: name, Type: TypeBytes}}
}

// Enum returns a new Field with type enum. Values are set with Values.
//
//	field.Enum("species").Values("cat", "dog")
func Enum(name string) *Builder {
	return &Builder{&Descriptor{Name: name, Type: TypeEnum}}
}

// Builder is the builder for bool, time, uuid, json, bytes and enum fields.
type Builder struct {
	desc *Descriptor
}

// Values adds the allowed values of an enum field.
func (b *Builder) Values(values ...string) *Builder {
	first := len(b.desc.Enums) == 0
	b.desc.Enums = append(b.desc.Enums, values...)
	if first {
		b.desc.Validators = append(b.desc.Validators, func(v any) error {
			s, ok := v.(string)
			if !ok {
				return errors.New("is not included in the list")
			}
			for _, e := range b.desc.Enums {
				if s == e {
					return nil
				}
			}
			return errors.New("is not included in the list")
		})
	}
	return b
}

// Optional indicates that this field is not required on create.
func (b *Builder) Optional() *Builder {
	b.desc.Optional = true
	return b
}

// Nillable indicates that this field is a nullable column.
func (b *Builder) Nillable() *Builder {
	b.desc.Nillable = true
	return b
}

// Immutable indicates that this field cannot be updated.
func (b *Builder) Immutable() *Builder {
	b.desc.Immutable = true
	return b
}

// Default sets the default value of the field. It accepts a literal or a
// function such as time.Now.
func (b *Builder) Default(v any) *Builder {
	b.desc.Default = v
	b.desc.checkDefault(reflect.Invalid)
	return b
}

// UpdateDefault sets the function called to produce the value on update.
func (b *Builder) UpdateDefault(fn any) *Builder {
	b.desc.UpdateDefault = fn
	return b
}

// StorageKey sets the column name of the field.
func (b *Builder) StorageKey(key string) *Builder {
	b.desc.StorageKey = key
	return b
}

// Comment sets the comment of the field.
func (b *Builder) Comment(c string) *Builder {
	b.desc.Comment = c
	return b
}

// Validate adds a validator for this field.
func (b *Builder) Validate(fn Validator) *Builder {
	b.desc.Validators = append(b.desc.Validators, fn)
	return b
}

// CreateTime marks a time field as the creation timestamp.
func (b *Builder) CreateTime() *Builder {
	return b.role(RoleCreateTime)
}

// UpdateTime marks a time field as the update timestamp.
func (b *Builder) UpdateTime() *Builder {
	return b.role(RoleUpdateTime)
}

// SoftDelete marks a nullable time field as the soft-delete marker.
func (b *Builder) SoftDelete() *Builder {
	b.desc.Optional = true
	b.desc.Nillable = true
	return b.role(RoleSoftDelete)
}

func (b *Builder) role(r Role) *Builder {
	if b.desc.Type != TypeTime {
		b.desc.Err = fmt.Errorf("field %q: role requires a time field, got %s", b.desc.Name, b.desc.Type)
	}
	b.desc.Role = r
	return b
}

// Descriptor implements the schema.Field interface by returning its descriptor.
func (b *Builder) Descriptor() *Descriptor {
	return b.desc
}

// String returns a new Field with type string.
func String(name string) *StringBuilder {
	return &StringBuilder{&Descriptor{Name: name, Type: TypeString}}
}

// Text returns a new string field without length limit.
func Text(name string) *StringBuilder {
	return String(name)
}

// StringBuilder is the builder for string fields.
type StringBuilder struct {
	desc *Descriptor
}

// NotEmpty adds a length validator for this field.
// Operation fails if the length of the string is zero.
func (b *StringBuilder) NotEmpty() *StringBuilder {
	return b.MinLen(1)
}

// MinLen adds a length validator for this field.
// Operation fails if the length of the string is less than the given value.
func (b *StringBuilder) MinLen(i int) *StringBuilder {
	return b.Validate(func(v any) error {
		s, _ := v.(string)
		if utf8.RuneCountInString(s) < i {
			if i == 1 {
				return errors.New("can't be blank")
			}
			return fmt.Errorf("is too short (minimum is %d characters)", i)
		}
		return nil
	})
}

// MaxLen adds a length validator for this field.
// Operation fails if the length of the string is greater than the given value.
func (b *StringBuilder) MaxLen(i int) *StringBuilder {
	return b.Validate(func(v any) error {
		s, _ := v.(string)
		if utf8.RuneCountInString(s) > i {
			return fmt.Errorf("is too long (maximum is %d characters)", i)
		}
		return nil
	})
}

// Match adds a regex matcher for this field. Operation fails
// if the regex fails.
func (b *StringBuilder) Match(re *regexp.Regexp) *StringBuilder {
	return b.Validate(func(v any) error {
		s, _ := v.(string)
		if !re.MatchString(s) {
			return errors.New("is invalid")
		}
		return nil
	})
}

// Optional indicates that this field is not required on create.
func (b *StringBuilder) Optional() *StringBuilder {
	b.desc.Optional = true
	return b
}

// Nillable indicates that this field is a nullable column.
func (b *StringBuilder) Nillable() *StringBuilder {
	b.desc.Nillable = true
	return b
}

// Immutable indicates that this field cannot be updated.
func (b *StringBuilder) Immutable() *StringBuilder {
	b.desc.Immutable = true
	return b
}

// Default sets the default value of the field.
func (b *StringBuilder) Default(v any) *StringBuilder {
	b.desc.Default = v
	b.desc.checkDefault(reflect.String)
	return b
}

// StorageKey sets the column name of the field.
func (b *StringBuilder) StorageKey(key string) *StringBuilder {
	b.desc.StorageKey = key
	return b
}

// Comment sets the comment of the field.
func (b *StringBuilder) Comment(c string) *StringBuilder {
	b.desc.Comment = c
	return b
}

// Validate adds a validator for this field.
func (b *StringBuilder) Validate(fn Validator) *StringBuilder {
	b.desc.Validators = append(b.desc.Validators, fn)
	return b
}

// Descriptor implements the schema.Field interface by returning its descriptor.
func (b *StringBuilder) Descriptor() *Descriptor {
	return b.desc
}

// Int returns a new Field with type int.
func Int(name string) *NumericBuilder {
	return &NumericBuilder{&Descriptor{Name: name, Type: TypeInt}}
}

// Int64 returns a new Field with type int64.
func Int64(name string) *NumericBuilder {
	return &NumericBuilder{&Descriptor{Name: name, Type: TypeInt64}}
}

// Float64 returns a new Field with type float64.
func Float64(name string) *NumericBuilder {
	return &NumericBuilder{&Descriptor{Name: name, Type: TypeFloat64}}
}

// NumericBuilder is the builder for int, int64 and float64 fields.
type NumericBuilder struct {
	desc *Descriptor
}

// Min adds a minimum value validator for this field.
func (b *NumericBuilder) Min(i float64) *NumericBuilder {
	return b.Validate(func(v any) error {
		if f, ok := ToFloat(v); ok && f < i {
			return fmt.Errorf("must be greater than or equal to %v", i)
		}
		return nil
	})
}

// Max adds a maximum value validator for this field.
func (b *NumericBuilder) Max(i float64) *NumericBuilder {
	return b.Validate(func(v any) error {
		if f, ok := ToFloat(v); ok && f > i {
			return fmt.Errorf("must be less than or equal to %v", i)
		}
		return nil
	})
}

// Range adds a range validator for this field where the given value needs to be in the range of [i, j].
func (b *NumericBuilder) Range(i, j float64) *NumericBuilder {
	return b.Min(i).Max(j)
}

// Positive adds a minimum value validator with the value of 1. Operation fails if the validator fails.
func (b *NumericBuilder) Positive() *NumericBuilder {
	return b.Validate(func(v any) error {
		if f, ok := ToFloat(v); ok && f <= 0 {
			return errors.New("must be greater than 0")
		}
		return nil
	})
}

// NonNegative adds a minimum value validator with the value of 0. Operation fails if the validator fails.
func (b *NumericBuilder) NonNegative() *NumericBuilder {
	return b.Min(0)
}

// Position marks an integer field as the ordering position of rows that
// share the scope columns.
func (b *NumericBuilder) Position(scope ...string) *NumericBuilder {
	b.desc.Role = RolePosition
	b.desc.PositionScope = scope
	b.desc.Optional = true
	b.desc.Nillable = true
	return b
}

// Optional indicates that this field is not required on create.
func (b *NumericBuilder) Optional() *NumericBuilder {
	b.desc.Optional = true
	return b
}

// Nillable indicates that this field is a nullable column.
func (b *NumericBuilder) Nillable() *NumericBuilder {
	b.desc.Nillable = true
	return b
}

// Immutable indicates that this field cannot be updated.
func (b *NumericBuilder) Immutable() *NumericBuilder {
	b.desc.Immutable = true
	return b
}

// Default sets the default value of the field.
func (b *NumericBuilder) Default(v any) *NumericBuilder {
	b.desc.Default = v
	b.desc.checkDefault(reflect.Invalid)
	return b
}

// StorageKey sets the column name of the field.
func (b *NumericBuilder) StorageKey(key string) *NumericBuilder {
	b.desc.StorageKey = key
	return b
}

// Comment sets the comment of the field.
func (b *NumericBuilder) Comment(c string) *NumericBuilder {
	b.desc.Comment = c
	return b
}

// Validate adds a validator for this field.
func (b *NumericBuilder) Validate(fn Validator) *NumericBuilder {
	b.desc.Validators = append(b.desc.Validators, fn)
	return b
}

// Descriptor implements the schema.Field interface by returning its descriptor.
func (b *NumericBuilder) Descriptor() *Descriptor {
	return b.desc
}

// ToFloat converts a numeric value to float64.
func ToFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
