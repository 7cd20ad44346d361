package schema

import (
	"fmt"
	"sort"

	dream "github.com/rvohealth/dream-sub006"
	"github.com/rvohealth/dream-sub006/schema/edge"
	"github.com/rvohealth/dream-sub006/schema/field"
)

// EntityType is the compiled, immutable description of one entity type.
type EntityType struct {
	Name        string
	Table       string
	ReplicaSafe bool
	PrimaryKey  *field.Descriptor
	Hooks       HookTable

	columns     []*field.Descriptor
	columnIndex map[string]*field.Descriptor
	scopes      []Scope
	assocs      []*Association
	assocIndex  map[string]*Association
	validations []Validation
	policy      dream.Policy

	softDelete *field.Descriptor
	position   *field.Descriptor
	createdAt  *field.Descriptor
	updatedAt  *field.Descriptor

	base         *EntityType
	typeColumn   string
	variants     map[string]*EntityType
	variantNames []string
	registry     *Registry
}

// Registry returns the registry the entity type belongs to.
func (e *EntityType) Registry() *Registry { return e.registry }

// Columns returns the column descriptors, primary key first.
func (e *EntityType) Columns() []*field.Descriptor { return e.columns }

// Column returns the descriptor of a column.
func (e *EntityType) Column(name string) (*field.Descriptor, bool) {
	f, ok := e.columnIndex[name]
	return f, ok
}

// ColumnNames returns the column names, primary key first.
func (e *EntityType) ColumnNames() []string {
	names := make([]string, len(e.columns))
	for i, c := range e.columns {
		names[i] = c.Column()
	}
	return names
}

// TableColumns returns the columns of the table shared by the base and
// its variants: the base columns followed by variant-only columns.
func (e *EntityType) TableColumns() []*field.Descriptor {
	b := e.Base()
	if len(b.variantNames) == 0 {
		return b.columns
	}
	cols := append([]*field.Descriptor(nil), b.columns...)
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		seen[c.Column()] = true
	}
	for _, n := range b.variantNames {
		for _, c := range b.variants[n].columns {
			if !seen[c.Column()] {
				seen[c.Column()] = true
				cols = append(cols, c)
			}
		}
	}
	return cols
}

// Scopes returns the default scopes of the entity type.
func (e *EntityType) Scopes() []Scope { return e.scopes }

// Validations returns the record-level validations.
func (e *EntityType) Validations() []Validation { return e.validations }

// Policy returns the privacy policy of the entity type, or nil.
func (e *EntityType) Policy() dream.Policy { return e.policy }

// SoftDeleteColumn returns the soft-delete marker column, or "".
func (e *EntityType) SoftDeleteColumn() string {
	if e.softDelete == nil {
		return ""
	}
	return e.softDelete.Column()
}

// PositionColumn returns the ordering position column and the columns
// scoping it, or "".
func (e *EntityType) PositionColumn() (string, []string) {
	if e.position == nil {
		return "", nil
	}
	return e.position.Column(), e.position.PositionScope
}

// CreateTimeColumn returns the creation timestamp column, or "".
func (e *EntityType) CreateTimeColumn() string {
	if e.createdAt == nil {
		return ""
	}
	return e.createdAt.Column()
}

// UpdateTimeColumn returns the update timestamp column, or "".
func (e *EntityType) UpdateTimeColumn() string {
	if e.updatedAt == nil {
		return ""
	}
	return e.updatedAt.Column()
}

// Associations returns the associations in declaration order.
func (e *EntityType) Associations() []*Association { return e.assocs }

// AssociationNames returns the association names, sorted.
func (e *EntityType) AssociationNames() []string {
	names := make([]string, 0, len(e.assocs))
	for _, a := range e.assocs {
		names = append(names, a.Name)
	}
	sort.Strings(names)
	return names
}

// Association returns the association named name.
func (e *EntityType) Association(name string) (*Association, error) {
	if a, ok := e.assocIndex[name]; ok {
		return a, nil
	}
	return nil, &dream.UnknownAssociationError{Entity: e.Name, Association: name, Valid: e.AssociationNames()}
}

// Base returns the single-table-inheritance base of a variant, or e.
func (e *EntityType) Base() *EntityType {
	if e.base != nil {
		return e.base
	}
	return e
}

// IsVariant reports whether e is a single-table-inheritance variant.
func (e *EntityType) IsVariant() bool { return e.base != nil }

// TypeColumn returns the discriminator column shared by a base and its
// variants, or "".
func (e *EntityType) TypeColumn() string { return e.typeColumn }

// Discriminator returns the column and value selecting rows of a variant.
func (e *EntityType) Discriminator() (string, string, bool) {
	if e.base == nil {
		return "", "", false
	}
	return e.typeColumn, e.Name, true
}

// Variants returns the registered variants of a base, sorted by name.
func (e *EntityType) Variants() []*EntityType {
	b := e.Base()
	out := make([]*EntityType, 0, len(b.variantNames))
	for _, n := range b.variantNames {
		out = append(out, b.variants[n])
	}
	return out
}

// Variant returns the concrete entity type for a discriminator value.
// Empty values and the base name select the base.
func (e *EntityType) Variant(value string) (*EntityType, error) {
	b := e.Base()
	if value == "" || value == b.Name {
		return b, nil
	}
	if v, ok := b.variants[value]; ok {
		return v, nil
	}
	return nil, &dream.UnknownVariantError{Entity: b.Name, Value: value, Known: b.variantNames}
}

// Hydrate builds a persisted record from a scanned row. The concrete type
// is chosen from the closed variant set by the discriminator column.
func (e *EntityType) Hydrate(row map[string]any) (*Record, error) {
	typ := e
	if e.typeColumn != "" {
		raw, err := e.registry.codec.Decode(e.columnIndex[e.typeColumn], row[e.typeColumn])
		if err != nil {
			return nil, err
		}
		s, _ := raw.(string)
		if typ, err = e.Variant(s); err != nil {
			return nil, err
		}
	}
	r := &Record{entity: typ, attrs: make(map[string]any, len(typ.columns))}
	for _, c := range typ.columns {
		raw, ok := row[c.Column()]
		if !ok {
			continue
		}
		v, err := typ.registry.codec.Decode(c, raw)
		if err != nil {
			return nil, fmt.Errorf("schema: decoding %s.%s: %w", typ.Name, c.Column(), err)
		}
		r.attrs[c.Column()] = v
	}
	r.MarkSaved(nil)
	return r, nil
}

// Encode converts a value for a column to its driver representation.
func (e *EntityType) Encode(column string, v any) (any, error) {
	f, ok := e.columnIndex[column]
	if !ok {
		return v, nil
	}
	return e.registry.codec.Encode(f, v)
}

// Decode converts a scanned value of a column to its in-memory form.
func (e *EntityType) Decode(column string, v any) (any, error) {
	f, ok := e.columnIndex[column]
	if !ok {
		return v, nil
	}
	return e.registry.codec.Decode(f, v)
}

// Refresh overwrites the attributes of r with the columns of a row
// returned by the database.
func (r *Record) Refresh(row map[string]any) error {
	for col, raw := range row {
		v, err := r.entity.Decode(col, raw)
		if err != nil {
			return fmt.Errorf("schema: decoding %s.%s: %w", r.entity.Name, col, err)
		}
		r.attrs[col] = v
	}
	return nil
}

// Association describes one named relationship of an entity type.
type Association struct {
	*edge.Descriptor
	// Owner is the entity type declaring the association.
	Owner *EntityType
	// OwnerColumn and TargetColumn link the two rows:
	// owner.OwnerColumn = target.TargetColumn.
	OwnerColumn  string
	TargetColumn string
	// TypeColumn is the polymorphic type column: on the owner for a
	// polymorphic belongs-to, on the target for an As association whose
	// rows must carry TypeValue.
	TypeColumn string
	TypeValue  string

	target     *EntityType
	candidates []*EntityType
	err        error
}

// Target returns the target entity type. Through and polymorphic
// associations have no static target.
func (a *Association) Target() (*EntityType, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.target, nil
}

// Candidates returns the possible targets of a polymorphic belongs-to.
func (a *Association) Candidates() []*EntityType { return a.candidates }

// CandidateNames returns the names of the polymorphic candidates.
func (a *Association) CandidateNames() []string {
	names := make([]string, len(a.candidates))
	for i, c := range a.candidates {
		names[i] = c.Name
	}
	return names
}

// Candidate returns the polymorphic candidate named name.
func (a *Association) Candidate(name string) (*EntityType, error) {
	if a.err != nil {
		return nil, a.err
	}
	for _, c := range a.candidates {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, &dream.UnknownEntityError{Name: name, Referrer: a.Owner.Name + "." + a.Name, Valid: a.CandidateNames()}
}

// TargetKey returns the column of target rows matched against the owner,
// which for a polymorphic belongs-to is the key of the concrete target.
func (a *Association) TargetKey(target *EntityType) string {
	if a.TargetColumn != "" {
		return a.TargetColumn
	}
	return target.PrimaryKey.Column()
}

// Err returns the error found while compiling the association, if any.
func (a *Association) Err() error { return a.err }
