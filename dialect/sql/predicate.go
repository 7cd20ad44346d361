package sql

type predicateKind uint8

const (
	kindSimple predicateKind = iota
	kindAnd
	kindOr
)

// Predicate is a where predicate. It is rendered lazily into the Builder
// of the statement it is attached to, so placeholders are numbered in
// statement order.
type Predicate struct {
	kind predicateKind
	fns  []func(*Builder)
}

// P creates a new predicate from the given rendering functions.
//
//	P(func(b *Builder) {
//		b.Ident("name").WriteString(" = ").Arg("a8m")
//	})
func P(fns ...func(*Builder)) *Predicate {
	return &Predicate{fns: fns}
}

func (p *Predicate) build(b *Builder) {
	for _, f := range p.fns {
		f(b)
	}
}

// Query renders the predicate alone with generic quoting, mostly useful
// in tests and logs.
func (p *Predicate) Query() (string, []any) {
	return p.QueryDialect("")
}

// QueryDialect renders the predicate alone for a dialect.
func (p *Predicate) QueryDialect(d string) (string, []any) {
	b := &Builder{dialect: d}
	p.build(b)
	return b.String(), b.args
}

func compare(col, op string, v any) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" " + op + " ").Arg(v)
	})
}

// EQ returns a "=" predicate.
func EQ(col string, v any) *Predicate { return compare(col, "=", v) }

// NEQ returns a "<>" predicate.
func NEQ(col string, v any) *Predicate { return compare(col, "<>", v) }

// GT returns a ">" predicate.
func GT(col string, v any) *Predicate { return compare(col, ">", v) }

// GTE returns a ">=" predicate.
func GTE(col string, v any) *Predicate { return compare(col, ">=", v) }

// LT returns a "<" predicate.
func LT(col string, v any) *Predicate { return compare(col, "<", v) }

// LTE returns a "<=" predicate.
func LTE(col string, v any) *Predicate { return compare(col, "<=", v) }

// Like returns a "LIKE" predicate.
func Like(col, pattern string) *Predicate { return compare(col, "LIKE", pattern) }

// Contains is a helper predicate that checks substring using the LIKE predicate.
func Contains(col, sub string) *Predicate { return Like(col, "%"+escapeLike(sub)+"%") }

// HasPrefix is a helper predicate that checks prefix using the LIKE predicate.
func HasPrefix(col, prefix string) *Predicate { return Like(col, escapeLike(prefix)+"%") }

// HasSuffix is a helper predicate that checks suffix using the LIKE predicate.
func HasSuffix(col, suffix string) *Predicate { return Like(col, "%"+escapeLike(suffix)) }

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

// IsNull returns the `IS NULL` predicate.
func IsNull(col string) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" IS NULL")
	})
}

// NotNull returns the `IS NOT NULL` predicate.
func NotNull(col string) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" IS NOT NULL")
	})
}

// True returns a predicate that is always true.
func True() *Predicate {
	return P(func(b *Builder) { b.WriteString("1 = 1") })
}

// False returns a predicate that is always false.
func False() *Predicate {
	return P(func(b *Builder) { b.WriteString("1 = 0") })
}

// In returns the `IN` predicate. An empty list matches no rows.
func In(col string, args ...any) *Predicate {
	if len(args) == 0 {
		return False()
	}
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" IN (").Args(args...).Byte(')')
	})
}

// NotIn returns the `NOT IN` predicate. An empty list matches every row.
func NotIn(col string, args ...any) *Predicate {
	if len(args) == 0 {
		return True()
	}
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" NOT IN (").Args(args...).Byte(')')
	})
}

// ColumnsEQ appends a "=" predicate between 2 columns.
func ColumnsEQ(c1, c2 string) *Predicate {
	return P(func(b *Builder) {
		b.Ident(c1).WriteString(" = ").Ident(c2)
	})
}

// And combines all given predicates with AND between them.
func And(preds ...*Predicate) *Predicate {
	return joinPredicates(kindAnd, " AND ", preds)
}

// Or combines all given predicates with OR between them.
func Or(preds ...*Predicate) *Predicate {
	return joinPredicates(kindOr, " OR ", preds)
}

func joinPredicates(kind predicateKind, sep string, preds []*Predicate) *Predicate {
	ps := make([]*Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			ps = append(ps, p)
		}
	}
	switch len(ps) {
	case 0:
		if kind == kindOr {
			return False()
		}
		return True()
	case 1:
		return ps[0]
	}
	p := P(func(b *Builder) {
		for i, x := range ps {
			if i > 0 {
				b.WriteString(sep)
			}
			if x.kind != kindSimple && x.kind != kind {
				b.Wrap(x.build)
			} else {
				x.build(b)
			}
		}
	})
	p.kind = kind
	return p
}

// Not wraps the given predicate with the not predicate.
func Not(pred *Predicate) *Predicate {
	return P(func(b *Builder) {
		b.WriteString("NOT ").Wrap(pred.build)
	})
}
