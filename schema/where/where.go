// Package where holds the condition vocabulary shared by association
// declarations, default scopes and query filters.
//
// A Clause maps column names to values. A plain value means equality, nil
// means IS NULL, a slice means IN, an Op applies a comparison, and a Ref
// defers the value to a passthrough supplied when the query is compiled:
//
//	where.Clause{"color": "red"}
//	where.Clause{"color": nil}
//	where.Clause{"species": []string{"cat", "dog"}}
//	where.Clause{"age": where.GT(3)}
//	where.Clause{"locale": where.Passthrough("locale")}
package where

import (
	"reflect"
	"sort"
)

// Clause is a set of column conditions joined with AND.
type Clause map[string]any

// Columns returns the clause columns in sorted order, which keeps the
// rendered SQL and its arguments stable.
func (c Clause) Columns() []string {
	cols := make([]string, 0, len(c))
	for col := range c {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

// Merge returns a new clause holding the conditions of c and o. On
// conflict the values of o win.
func (c Clause) Merge(o Clause) Clause {
	if len(c) == 0 && len(o) == 0 {
		return nil
	}
	out := make(Clause, len(c)+len(o))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Has reports whether the clause constrains column.
func (c Clause) Has(column string) bool {
	_, ok := c[column]
	return ok
}

// Kind is the comparison applied by an Op.
type Kind uint8

// Comparison kinds.
const (
	KindEQ Kind = iota
	KindNEQ
	KindGT
	KindGTE
	KindLT
	KindLTE
	KindLike
	KindContains
	KindHasPrefix
	KindHasSuffix
)

// Op is a comparison against a value.
type Op struct {
	Kind  Kind
	Value any
}

// EQ returns an equality comparison.
func EQ(v any) Op { return Op{Kind: KindEQ, Value: v} }

// NEQ returns an inequality comparison.
func NEQ(v any) Op { return Op{Kind: KindNEQ, Value: v} }

// GT returns a greater-than comparison.
func GT(v any) Op { return Op{Kind: KindGT, Value: v} }

// GTE returns a greater-or-equal comparison.
func GTE(v any) Op { return Op{Kind: KindGTE, Value: v} }

// LT returns a less-than comparison.
func LT(v any) Op { return Op{Kind: KindLT, Value: v} }

// LTE returns a less-or-equal comparison.
func LTE(v any) Op { return Op{Kind: KindLTE, Value: v} }

// Like returns a LIKE comparison with a raw pattern.
func Like(pattern string) Op { return Op{Kind: KindLike, Value: pattern} }

// Contains matches values containing sub.
func Contains(sub string) Op { return Op{Kind: KindContains, Value: sub} }

// HasPrefix matches values starting with prefix.
func HasPrefix(prefix string) Op { return Op{Kind: KindHasPrefix, Value: prefix} }

// HasSuffix matches values ending with suffix.
func HasSuffix(suffix string) Op { return Op{Kind: KindHasSuffix, Value: suffix} }

// Ref references a passthrough value by name.
type Ref struct {
	Name string
}

// Passthrough returns a reference to a value supplied at compile time.
func Passthrough(name string) Ref {
	return Ref{Name: name}
}

// Refs returns the passthrough names referenced by the clause, in column
// order.
func (c Clause) Refs() []string {
	var names []string
	for _, col := range c.Columns() {
		switch v := c[col].(type) {
		case Ref:
			names = append(names, v.Name)
		case Op:
			if r, ok := v.Value.(Ref); ok {
				names = append(names, r.Name)
			}
		}
	}
	return names
}

// List returns the elements of v when v is a slice or an array other
// than []byte, which is a scalar column value.
func List(v any) ([]any, bool) {
	switch v := v.(type) {
	case nil, []byte:
		return nil, false
	case []any:
		return v, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
	default:
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// Order is an ordering term on a column.
type Order struct {
	Column string
	Desc   bool
}

// Asc orders by column ascending. NULL values sort first.
func Asc(column string) Order { return Order{Column: column} }

// Desc orders by column descending. NULL values sort last.
func Desc(column string) Order { return Order{Column: column, Desc: true} }
