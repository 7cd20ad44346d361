package schema

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rvohealth/dream-sub006/schema/edge"
	"github.com/rvohealth/dream-sub006/schema/field"
	"github.com/rvohealth/dream-sub006/schema/where"
)

// LoadYAML reads definitions from a YAML document of the form:
//
//	entities:
//	  - name: Pet
//	    fields:
//	      - {name: name, type: string}
//	      - {name: deleted_at, type: time, role: soft_delete}
//	    edges:
//	      - {name: collars, kind: has_many, target: Collar, dependent: true}
//	    scopes:
//	      - {name: visible, where: {hidden: false}}
//
// Condition values of the form {passthrough: locale} reference
// passthrough values.
func LoadYAML(r io.Reader) ([]Definition, error) {
	var doc struct {
		Entities []yamlDefinition `yaml:"entities"`
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("schema: decoding yaml: %w", err)
	}
	defs := make([]Definition, 0, len(doc.Entities))
	for i := range doc.Entities {
		d := &doc.Entities[i]
		if d.EntityName == "" {
			return nil, fmt.Errorf("schema: yaml entity #%d has no name", i+1)
		}
		if err := d.compile(); err != nil {
			return nil, fmt.Errorf("schema: yaml entity %s: %w", d.EntityName, err)
		}
		defs = append(defs, d)
	}
	return defs, nil
}

type yamlDefinition struct {
	Schema      `yaml:"-"`
	EntityName  string      `yaml:"name"`
	Table       string      `yaml:"table"`
	ReplicaSafe bool        `yaml:"replica_safe"`
	Inherits    string      `yaml:"inherits"`
	TypeColumn  string      `yaml:"type_column"`
	FieldDefs   []yamlField `yaml:"fields"`
	EdgeDefs    []yamlEdge  `yaml:"edges"`
	ScopeDefs   []yamlScope `yaml:"scopes"`

	fields []Field
	edges  []Edge
	scopes []Scope
}

type yamlField struct {
	Name          string   `yaml:"name"`
	Type          string   `yaml:"type"`
	Column        string   `yaml:"column"`
	Optional      bool     `yaml:"optional"`
	Nillable      bool     `yaml:"nillable"`
	Immutable     bool     `yaml:"immutable"`
	Default       any      `yaml:"default"`
	Values        []string `yaml:"values"`
	Role          string   `yaml:"role"`
	PositionScope []string `yaml:"position_scope"`
	MaxLen        int      `yaml:"max_len"`
}

type yamlEdge struct {
	Name       string            `yaml:"name"`
	Kind       string            `yaml:"kind"`
	Target     string            `yaml:"target"`
	Targets    []string          `yaml:"targets"`
	ForeignKey string            `yaml:"foreign_key"`
	References string            `yaml:"references"`
	As         string            `yaml:"as"`
	Through    string            `yaml:"through"`
	Source     string            `yaml:"source"`
	Dependent  bool              `yaml:"dependent"`
	Optional   bool              `yaml:"optional"`
	Required   []string          `yaml:"required"`
	SkipScopes []string          `yaml:"skip_scopes"`
	On         map[string]any    `yaml:"on"`
	Self       map[string]string `yaml:"self"`
	Order      []string          `yaml:"order"`
}

type yamlScope struct {
	Name  string         `yaml:"name"`
	Where map[string]any `yaml:"where"`
}

func (d *yamlDefinition) Name() string { return d.EntityName }

func (d *yamlDefinition) Config() Config {
	cfg := Config{Table: d.Table, ReplicaSafe: d.ReplicaSafe, TypeColumn: d.TypeColumn}
	if d.Inherits != "" {
		cfg.Inherits = d.Inherits
	}
	return cfg
}

func (d *yamlDefinition) Fields() []Field { return d.fields }
func (d *yamlDefinition) Edges() []Edge   { return d.edges }
func (d *yamlDefinition) Scopes() []Scope { return d.scopes }

func (d *yamlDefinition) compile() error {
	for _, f := range d.FieldDefs {
		desc, err := f.descriptor()
		if err != nil {
			return err
		}
		d.fields = append(d.fields, descriptorField{desc})
	}
	for _, e := range d.EdgeDefs {
		b, err := e.builder()
		if err != nil {
			return err
		}
		d.edges = append(d.edges, b)
	}
	for _, s := range d.ScopeDefs {
		d.scopes = append(d.scopes, Scope{Name: s.Name, Where: yamlClause(s.Where)})
	}
	return nil
}

type descriptorField struct{ desc *field.Descriptor }

func (f descriptorField) Descriptor() *field.Descriptor { return f.desc }

func (f yamlField) descriptor() (*field.Descriptor, error) {
	var desc *field.Descriptor
	switch f.Type {
	case "string":
		b := field.String(f.Name)
		if f.MaxLen > 0 {
			b.MaxLen(f.MaxLen)
		}
		desc = b.Descriptor()
	case "text":
		desc = field.Text(f.Name).Descriptor()
	case "int":
		desc = field.Int(f.Name).Descriptor()
	case "int64", "bigint":
		desc = field.Int64(f.Name).Descriptor()
	case "float", "float64":
		desc = field.Float64(f.Name).Descriptor()
	case "bool":
		desc = field.Bool(f.Name).Descriptor()
	case "time":
		desc = field.Time(f.Name).Descriptor()
	case "uuid":
		desc = field.UUID(f.Name).Descriptor()
	case "json":
		desc = field.JSON(f.Name).Descriptor()
	case "bytes":
		desc = field.Bytes(f.Name).Descriptor()
	case "enum":
		desc = field.Enum(f.Name).Values(f.Values...).Descriptor()
	default:
		return nil, fmt.Errorf("field %q has unknown type %q", f.Name, f.Type)
	}
	desc.StorageKey = f.Column
	desc.Optional = f.Optional
	desc.Nillable = f.Nillable
	desc.Immutable = f.Immutable
	desc.Default = f.Default
	switch f.Role {
	case "":
	case "create_time", "update_time", "soft_delete":
		if desc.Type != field.TypeTime {
			return nil, fmt.Errorf("field %q with role %s must be of type time", f.Name, f.Role)
		}
		desc.Role = map[string]field.Role{
			"create_time": field.RoleCreateTime,
			"update_time": field.RoleUpdateTime,
			"soft_delete": field.RoleSoftDelete,
		}[f.Role]
		desc.Optional = true
		desc.Nillable = desc.Nillable || desc.Role == field.RoleSoftDelete
	case "position":
		if !desc.Type.Numeric() {
			return nil, fmt.Errorf("field %q with role position must be numeric", f.Name)
		}
		desc.Role = field.RolePosition
		desc.PositionScope = f.PositionScope
		desc.Optional, desc.Nillable = true, true
	default:
		return nil, fmt.Errorf("field %q has unknown role %q", f.Name, f.Role)
	}
	return desc, nil
}

func (e yamlEdge) builder() (*edge.Builder, error) {
	var b *edge.Builder
	switch {
	case e.Through != "" && e.Kind == "has_one":
		b = edge.HasOneThrough(e.Name, e.Through, e.Source)
	case e.Through != "" && e.Kind == "has_many":
		b = edge.HasManyThrough(e.Name, e.Through, e.Source)
	case e.Kind == "belongs_to" && len(e.Targets) > 0:
		targets := make([]any, len(e.Targets))
		for i, t := range e.Targets {
			targets[i] = t
		}
		b = edge.BelongsTo(e.Name, targets...).Polymorphic()
	case e.Kind == "belongs_to":
		b = edge.BelongsTo(e.Name, e.Target)
	case e.Kind == "has_one":
		b = edge.HasOne(e.Name, e.Target)
	case e.Kind == "has_many":
		b = edge.HasMany(e.Name, e.Target)
	default:
		return nil, fmt.Errorf("edge %q has unknown kind %q", e.Name, e.Kind)
	}
	if e.ForeignKey != "" {
		b.Field(e.ForeignKey)
	}
	if e.References != "" {
		b.References(e.References)
	}
	if e.As != "" {
		b.As(e.As)
	}
	if e.Dependent {
		b.Dependent()
	}
	if e.Optional {
		b.Optional()
	}
	if len(e.On) > 0 {
		b.On(yamlClause(e.On))
	}
	for target, source := range e.Self {
		b.Self(target, source)
	}
	for _, o := range e.Order {
		if col, ok := strings.CutPrefix(o, "-"); ok {
			b.Order(where.Desc(col))
		} else {
			b.Order(where.Asc(o))
		}
	}
	b.Required(e.Required...)
	b.SkipScopes(e.SkipScopes...)
	return b, nil
}

func yamlClause(m map[string]any) where.Clause {
	if len(m) == 0 {
		return nil
	}
	c := make(where.Clause, len(m))
	for k, v := range m {
		if ref, ok := v.(map[string]any); ok {
			if name, ok := ref["passthrough"].(string); ok {
				c[k] = where.Passthrough(name)
				continue
			}
		}
		c[k] = v
	}
	return c
}
