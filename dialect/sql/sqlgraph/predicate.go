package sqlgraph

import (
	"fmt"
	"slices"

	dream "github.com/rvohealth/dream-sub006"
	"github.com/rvohealth/dream-sub006/dialect/sql"
	"github.com/rvohealth/dream-sub006/schema"
	"github.com/rvohealth/dream-sub006/schema/where"
)

// Clause compiles the conditions of c on the columns of e under alias.
// Every column must hold; nil means IS NULL and lists mean IN, where a
// nil element also admits NULL and an empty list matches nothing.
func (c *Compiler) Clause(e *schema.EntityType, alias string, cl where.Clause) (*sql.Predicate, error) {
	if len(cl) == 0 {
		return nil, nil
	}
	preds := make([]*sql.Predicate, 0, len(cl))
	for _, col := range cl.Columns() {
		p, err := c.condition(e, alias, col, cl[col], false)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return sql.And(preds...), nil
}

// Not compiles the negation of cl. A negated comparison keeps rows whose
// column is NULL, and a negated empty list matches every row.
func (c *Compiler) Not(e *schema.EntityType, alias string, cl where.Clause) (*sql.Predicate, error) {
	if len(cl) == 0 {
		return nil, nil
	}
	preds := make([]*sql.Predicate, 0, len(cl))
	for _, col := range cl.Columns() {
		p, err := c.condition(e, alias, col, cl[col], true)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return sql.Or(preds...), nil
}

// Any compiles alternatives: a row matches when one clause holds.
func (c *Compiler) Any(e *schema.EntityType, alias string, cls []where.Clause) (*sql.Predicate, error) {
	if len(cls) == 0 {
		return nil, nil
	}
	preds := make([]*sql.Predicate, 0, len(cls))
	for _, cl := range cls {
		p, err := c.Clause(e, alias, cl)
		if err != nil {
			return nil, err
		}
		if p == nil {
			p = sql.True()
		}
		preds = append(preds, p)
	}
	return sql.Or(preds...), nil
}

// Scopes compiles the default scopes of e under alias, leaving out the
// bypassed ones.
func (c *Compiler) Scopes(e *schema.EntityType, alias string, scopes []schema.Scope) (*sql.Predicate, error) {
	if c.BypassAllScopes {
		return nil, nil
	}
	var preds []*sql.Predicate
	for _, sc := range scopes {
		if slices.Contains(c.BypassScopes, sc.Name) {
			continue
		}
		p, err := c.Clause(e, alias, sc.Where)
		if err != nil {
			return nil, fmt.Errorf("sqlgraph: scope %s of %s: %w", sc.Name, e.Name, err)
		}
		preds = append(preds, p)
	}
	if len(preds) == 0 {
		return nil, nil
	}
	return sql.And(preds...), nil
}

func (c *Compiler) condition(e *schema.EntityType, alias, col string, v any, negate bool) (*sql.Predicate, error) {
	v, err := c.resolve(col, v)
	if err != nil {
		return nil, err
	}
	qcol := alias + "." + col
	if op, ok := v.(where.Op); ok {
		val, err := c.resolve(col, op.Value)
		if err != nil {
			return nil, err
		}
		if val == nil {
			if (op.Kind == where.KindNEQ) != negate {
				return sql.NotNull(qcol), nil
			}
			return sql.IsNull(qcol), nil
		}
		if val, err = encode(e, col, val); err != nil {
			return nil, err
		}
		p := compare(qcol, op.Kind, val)
		if negate {
			return sql.Or(sql.Not(p), sql.IsNull(qcol)), nil
		}
		return p, nil
	}
	if v == nil {
		if negate {
			return sql.NotNull(qcol), nil
		}
		return sql.IsNull(qcol), nil
	}
	if list, ok := where.List(v); ok {
		var (
			values  []any
			withNil bool
		)
		for _, x := range list {
			if x == nil {
				withNil = true
				continue
			}
			enc, err := encode(e, col, x)
			if err != nil {
				return nil, err
			}
			values = append(values, enc)
		}
		switch {
		case !negate && withNil && len(values) == 0:
			return sql.IsNull(qcol), nil
		case !negate && withNil:
			return sql.Or(sql.In(qcol, values...), sql.IsNull(qcol)), nil
		case !negate:
			return sql.In(qcol, values...), nil
		case withNil && len(values) == 0:
			return sql.NotNull(qcol), nil
		case withNil:
			return sql.And(sql.NotIn(qcol, values...), sql.NotNull(qcol)), nil
		case len(values) == 0:
			return sql.True(), nil
		default:
			return sql.Or(sql.NotIn(qcol, values...), sql.IsNull(qcol)), nil
		}
	}
	enc, err := encode(e, col, v)
	if err != nil {
		return nil, err
	}
	if negate {
		return sql.Or(sql.NEQ(qcol, enc), sql.IsNull(qcol)), nil
	}
	return sql.EQ(qcol, enc), nil
}

// resolve replaces a passthrough reference with its supplied value.
func (c *Compiler) resolve(col string, v any) (any, error) {
	ref, ok := v.(where.Ref)
	if !ok {
		return v, nil
	}
	val, ok := c.Passthrough[ref.Name]
	if !ok {
		return nil, &dream.MissingPassthroughValueError{Name: ref.Name, Column: col}
	}
	return val, nil
}

func encode(e *schema.EntityType, col string, v any) (any, error) {
	if e == nil {
		return v, nil
	}
	return e.Encode(col, v)
}

func compare(col string, k where.Kind, v any) *sql.Predicate {
	switch k {
	case where.KindNEQ:
		return sql.NEQ(col, v)
	case where.KindGT:
		return sql.GT(col, v)
	case where.KindGTE:
		return sql.GTE(col, v)
	case where.KindLT:
		return sql.LT(col, v)
	case where.KindLTE:
		return sql.LTE(col, v)
	case where.KindLike:
		return sql.Like(col, fmt.Sprint(v))
	case where.KindContains:
		return sql.Contains(col, fmt.Sprint(v))
	case where.KindHasPrefix:
		return sql.HasPrefix(col, fmt.Sprint(v))
	case where.KindHasSuffix:
		return sql.HasSuffix(col, fmt.Sprint(v))
	default:
		return sql.EQ(col, v)
	}
}
