package sql

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rvohealth/dream-sub006/dialect"
)

// Querier wraps the basic Query method implemented by the statement builders.
type Querier interface {
	// Query returns the query representation of the element
	// and its arguments (if any).
	Query() (string, []any)
}

// Builder is the base query builder for the sql dsl. It renders
// identifiers and placeholders according to its dialect.
type Builder struct {
	sb      *strings.Builder
	dialect string
	args    []any
	total   int
	errs    []error
}

func (b *Builder) init() {
	if b.sb == nil {
		b.sb = &strings.Builder{}
	}
}

// Dialect returns the dialect of the builder.
func (b Builder) Dialect() string {
	return b.dialect
}

// SetDialect sets the builder dialect.
func (b *Builder) SetDialect(d string) {
	b.dialect = d
}

// WriteString writes s to the underlying buffer.
func (b *Builder) WriteString(s string) *Builder {
	b.init()
	b.sb.WriteString(s)
	return b
}

// Byte writes c to the underlying buffer.
func (b *Builder) Byte(c byte) *Builder {
	b.init()
	b.sb.WriteByte(c)
	return b
}

// Pad adds a space to the query.
func (b *Builder) Pad() *Builder {
	return b.Byte(' ')
}

// String returns the accumulated string.
func (b *Builder) String() string {
	if b.sb == nil {
		return ""
	}
	return b.sb.String()
}

// AddError appends an error to the builder errors.
func (b *Builder) AddError(err error) *Builder {
	if err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

// Err returns a concatenated error of all errors encountered during
// the query-building, or were added manually by calling AddError.
func (b *Builder) Err() error {
	return errors.Join(b.errs...)
}

// Quote quotes one identifier part for the builder dialect.
func (b *Builder) Quote(ident string) string {
	q := `"`
	if b.dialect == dialect.MySQL {
		q = "`"
	}
	return q + strings.ReplaceAll(ident, q, q+q) + q
}

// Ident writes a possibly qualified identifier ("table.column"). Stars
// stay bare, and expressions containing parentheses or spaces are
// written verbatim.
func (b *Builder) Ident(s string) *Builder {
	switch {
	case s == "*":
		return b.WriteString(s)
	case strings.ContainsAny(s, "( "):
		return b.WriteString(s)
	}
	parts := strings.Split(s, ".")
	for i, p := range parts {
		if i > 0 {
			b.Byte('.')
		}
		if p == "*" {
			b.WriteString(p)
			continue
		}
		b.WriteString(b.Quote(p))
	}
	return b
}

// Arg appends an input argument to the builder and writes its placeholder.
func (b *Builder) Arg(a any) *Builder {
	b.total++
	b.args = append(b.args, a)
	if b.dialect == dialect.Postgres {
		return b.WriteString("$" + strconv.Itoa(b.total))
	}
	return b.Byte('?')
}

// Args appends a list of arguments separated by commas.
func (b *Builder) Args(a ...any) *Builder {
	for i := range a {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Arg(a[i])
	}
	return b
}

// Wrap writes the output of f wrapped in parentheses.
func (b *Builder) Wrap(f func(*Builder)) *Builder {
	b.Byte('(')
	f(b)
	return b.Byte(')')
}

// Query implements the Querier interface.
func (b *Builder) Query() (string, []any) {
	return b.String(), b.args
}

// Raw is a verbatim SQL expression used where a column is expected.
type Raw string

// DialectBuilder prefixes all root builders with the Dialect value.
type DialectBuilder struct {
	dialect string
}

// Dialect creates a new DialectBuilder with the given dialect name.
func Dialect(name string) *DialectBuilder {
	return &DialectBuilder{name}
}

// Select creates a Selector for the configured dialect.
func (d *DialectBuilder) Select(columns ...string) *Selector {
	s := Select(columns...)
	s.SetDialect(d.dialect)
	return s
}

// Insert creates an InsertBuilder for the configured dialect.
func (d *DialectBuilder) Insert(table string) *InsertBuilder {
	i := Insert(table)
	i.SetDialect(d.dialect)
	return i
}

// Update creates an UpdateBuilder for the configured dialect.
func (d *DialectBuilder) Update(table string) *UpdateBuilder {
	u := Update(table)
	u.SetDialect(d.dialect)
	return u
}

// Delete creates a DeleteBuilder for the configured dialect.
func (d *DialectBuilder) Delete(table string) *DeleteBuilder {
	del := Delete(table)
	del.SetDialect(d.dialect)
	return del
}

// SelectTable is a table reference inside a FROM or JOIN clause.
type SelectTable struct {
	name string
	as   string
}

// Table returns a new table selector.
func Table(name string) *SelectTable {
	return &SelectTable{name: name}
}

// As adds the AS clause to the table selector.
func (t *SelectTable) As(alias string) *SelectTable {
	t.as = alias
	return t
}

// C returns a formatted string for the table column.
func (t *SelectTable) C(column string) string {
	return t.Ref() + "." + column
}

// Ref returns the name used to reference the table in the query.
func (t *SelectTable) Ref() string {
	if t.as != "" {
		return t.as
	}
	return t.name
}

// Name returns the table name.
func (t *SelectTable) Name() string {
	return t.name
}

func (t *SelectTable) build(b *Builder) {
	b.Ident(t.name)
	if t.as != "" && t.as != t.name {
		b.WriteString(" AS ")
		b.Ident(t.as)
	}
}

type selection struct {
	expr string
	as   string
}

type join struct {
	kind  string
	table *SelectTable
	on    *Predicate
}

// Selector is a builder for the `SELECT` statement.
type Selector struct {
	Builder
	columns  []selection
	from     *SelectTable
	joins    []join
	where    *Predicate
	order    []string
	limit    *int
	offset   *int
	distinct bool
	count    string
}

// Select returns a new selector for the `SELECT` statement.
func Select(columns ...string) *Selector {
	s := &Selector{}
	return s.Select(columns...)
}

// Select changes the columns selection of the SELECT statement.
func (s *Selector) Select(columns ...string) *Selector {
	s.columns = s.columns[:0]
	return s.AppendSelect(columns...)
}

// AppendSelect appends additional columns to the SELECT statement.
func (s *Selector) AppendSelect(columns ...string) *Selector {
	for _, c := range columns {
		s.columns = append(s.columns, selection{expr: c})
	}
	return s
}

// AppendSelectAs appends a column with an alias.
func (s *Selector) AppendSelectAs(column, as string) *Selector {
	s.columns = append(s.columns, selection{expr: column, as: as})
	return s
}

// SelectedColumns returns the selected column expressions.
func (s *Selector) SelectedColumns() []string {
	out := make([]string, len(s.columns))
	for i := range s.columns {
		out[i] = s.columns[i].expr
	}
	return out
}

// From sets the source of `FROM` clause.
func (s *Selector) From(t *SelectTable) *Selector {
	s.from = t
	return s
}

// Table returns the table of the FROM clause.
func (s *Selector) Table() *SelectTable {
	return s.from
}

// C returns a column qualified by the FROM table reference.
func (s *Selector) C(column string) string {
	if s.from == nil {
		return column
	}
	return s.from.C(column)
}

// Distinct adds the DISTINCT keyword to the `SELECT` statement.
func (s *Selector) Distinct() *Selector {
	s.distinct = true
	return s
}

// Join appends an `INNER JOIN` clause to the statement.
func (s *Selector) Join(t *SelectTable) *Selector {
	return s.join("JOIN", t)
}

// LeftJoin appends a `LEFT JOIN` clause to the statement.
func (s *Selector) LeftJoin(t *SelectTable) *Selector {
	return s.join("LEFT JOIN", t)
}

func (s *Selector) join(kind string, t *SelectTable) *Selector {
	s.joins = append(s.joins, join{kind: kind, table: t})
	return s
}

// On sets the `ON` clause of the last `JOIN` operation to a column equality.
func (s *Selector) On(c1, c2 string) *Selector {
	return s.OnP(ColumnsEQ(c1, c2))
}

// OnP sets or extends the `ON` predicate of the last `JOIN` operation.
func (s *Selector) OnP(p *Predicate) *Selector {
	if len(s.joins) == 0 {
		s.AddError(errors.New("sql: ON clause without JOIN"))
		return s
	}
	j := &s.joins[len(s.joins)-1]
	if j.on == nil {
		j.on = p
	} else {
		j.on = And(j.on, p)
	}
	return s
}

// HasJoins reports whether the selector joins other tables.
func (s *Selector) HasJoins() bool {
	return len(s.joins) > 0
}

// Where sets or appends the given predicate to the statement.
func (s *Selector) Where(p *Predicate) *Selector {
	if p == nil {
		return s
	}
	if s.where == nil {
		s.where = p
	} else {
		s.where = And(s.where, p)
	}
	return s
}

// P returns the predicate of the WHERE clause.
func (s *Selector) P() *Predicate {
	return s.where
}

// OrderBy appends the `ORDER BY` terms. A term is a column optionally
// followed by ASC or DESC, as returned by Asc and Desc.
func (s *Selector) OrderBy(terms ...string) *Selector {
	s.order = append(s.order, terms...)
	return s
}

// ClearOrder removes all ORDER BY terms.
func (s *Selector) ClearOrder() *Selector {
	s.order = nil
	return s
}

// Asc adds the ASC suffix for ordering.
func Asc(column string) string { return column + " ASC" }

// Desc adds the DESC suffix for ordering.
func Desc(column string) string { return column + " DESC" }

// Limit adds the `LIMIT` clause to the `SELECT` statement.
func (s *Selector) Limit(limit int) *Selector {
	s.limit = &limit
	return s
}

// Offset adds the `OFFSET` clause to the `SELECT` statement.
func (s *Selector) Offset(offset int) *Selector {
	s.offset = &offset
	return s
}

// Count sets the Select statement to be a `SELECT COUNT(*)`. When a
// column is given, the count is `COUNT(DISTINCT column)`.
func (s *Selector) Count(column ...string) *Selector {
	if len(column) > 0 {
		s.count = column[0]
	} else {
		s.count = "*"
	}
	return s
}

// Clone returns a duplicate of the selector.
func (s *Selector) Clone() *Selector {
	if s == nil {
		return nil
	}
	c := &Selector{
		Builder:  Builder{dialect: s.dialect},
		columns:  append([]selection(nil), s.columns...),
		joins:    append([]join(nil), s.joins...),
		where:    s.where,
		order:    append([]string(nil), s.order...),
		distinct: s.distinct,
		count:    s.count,
	}
	if s.from != nil {
		t := *s.from
		c.from = &t
	}
	if s.limit != nil {
		l := *s.limit
		c.limit = &l
	}
	if s.offset != nil {
		o := *s.offset
		c.offset = &o
	}
	c.Builder.errs = append(c.Builder.errs, s.Builder.errs...)
	return c
}

// Query returns query representation of a `SELECT` statement.
func (s *Selector) Query() (string, []any) {
	b := &Builder{dialect: s.dialect, errs: append([]error(nil), s.errs...)}
	s.build(b)
	s.Builder.errs = b.errs
	return b.String(), b.args
}

// InSelect returns the `col IN (SELECT ...)` predicate. The arguments of
// sub are numbered within the enclosing statement.
func InSelect(col string, sub *Selector) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" IN (")
		b.errs = append(b.errs, sub.errs...)
		sub.build(b)
		b.Byte(')')
	})
}

func (s *Selector) build(b *Builder) {
	b.WriteString("SELECT ")
	switch {
	case s.count == "*":
		b.WriteString("COUNT(*)")
	case s.count != "":
		b.WriteString("COUNT(DISTINCT ")
		b.Ident(s.count)
		b.Byte(')')
	default:
		if s.distinct {
			b.WriteString("DISTINCT ")
		}
		if len(s.columns) == 0 {
			b.Byte('*')
		}
		for i, c := range s.columns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.Ident(c.expr)
			if c.as != "" {
				b.WriteString(" AS ")
				b.Ident(c.as)
			}
		}
	}
	if s.from != nil {
		b.WriteString(" FROM ")
		s.from.build(b)
	}
	for _, j := range s.joins {
		b.Pad().WriteString(j.kind).Pad()
		j.table.build(b)
		if j.on != nil {
			b.WriteString(" ON ")
			j.on.build(b)
		}
	}
	if s.where != nil {
		b.WriteString(" WHERE ")
		s.where.build(b)
	}
	if len(s.order) > 0 && s.count == "" {
		b.WriteString(" ORDER BY ")
		for i, term := range s.order {
			if i > 0 {
				b.WriteString(", ")
			}
			col, dir := splitOrder(term)
			b.Ident(col)
			if dir != "" {
				b.Pad().WriteString(dir)
			}
		}
	}
	if s.count == "" {
		switch {
		case s.limit != nil:
			b.WriteString(" LIMIT ")
			b.WriteString(strconv.Itoa(*s.limit))
		case s.offset != nil && s.dialect == dialect.MySQL:
			b.WriteString(" LIMIT 18446744073709551615")
		case s.offset != nil && s.dialect == dialect.SQLite:
			b.WriteString(" LIMIT -1")
		}
		if s.offset != nil {
			b.WriteString(" OFFSET ")
			b.WriteString(strconv.Itoa(*s.offset))
		}
	}
}

// Err returns the errors collected while building the last query.
func (s *Selector) Err() error {
	return errors.Join(s.errs...)
}

func splitOrder(term string) (string, string) {
	if i := strings.LastIndexByte(term, ' '); i > 0 {
		switch dir := strings.ToUpper(term[i+1:]); dir {
		case "ASC", "DESC":
			return term[:i], dir
		}
	}
	return term, ""
}

// InsertBuilder is a builder for `INSERT INTO` statement.
type InsertBuilder struct {
	Builder
	table     string
	columns   []string
	values    [][]any
	defaults  bool
	returning []string
}

// Insert creates a builder for the `INSERT INTO` statement.
func Insert(table string) *InsertBuilder { return &InsertBuilder{table: table} }

// Columns sets the columns of the insert statement.
func (i *InsertBuilder) Columns(columns ...string) *InsertBuilder {
	i.columns = append(i.columns, columns...)
	return i
}

// Values append a value tuple for the insert statement.
func (i *InsertBuilder) Values(values ...any) *InsertBuilder {
	i.values = append(i.values, values)
	return i
}

// Default sets the default values clause based on the dialect type.
func (i *InsertBuilder) Default() *InsertBuilder {
	i.defaults = true
	return i
}

// Returning adds the `RETURNING` clause to the insert statement.
// It is ignored by MySQL, which has no RETURNING support.
func (i *InsertBuilder) Returning(columns ...string) *InsertBuilder {
	i.returning = columns
	return i
}

// Query returns query representation of an `INSERT INTO` statement.
func (i *InsertBuilder) Query() (string, []any) {
	b := &Builder{dialect: i.dialect}
	b.WriteString("INSERT INTO ")
	b.Ident(i.table)
	if i.defaults && len(i.columns) == 0 {
		if i.dialect == dialect.MySQL {
			b.WriteString(" VALUES ()")
		} else {
			b.WriteString(" DEFAULT VALUES")
		}
	} else {
		b.WriteString(" (")
		for j, c := range i.columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.Ident(c)
		}
		b.WriteString(") VALUES ")
		for j, v := range i.values {
			if j > 0 {
				b.WriteString(", ")
			}
			b.Byte('(').Args(v...).Byte(')')
		}
	}
	writeReturning(b, i.returning)
	return b.String(), b.args
}

func writeReturning(b *Builder, columns []string) {
	if len(columns) == 0 || b.dialect == dialect.MySQL {
		return
	}
	b.WriteString(" RETURNING ")
	for j, c := range columns {
		if j > 0 {
			b.WriteString(", ")
		}
		b.Ident(c)
	}
}

// UpdateBuilder is a builder for `UPDATE` statement.
type UpdateBuilder struct {
	Builder
	table     string
	columns   []string
	values    []any
	where     *Predicate
	returning []string
}

// Update creates a builder for the `UPDATE` statement.
func Update(table string) *UpdateBuilder { return &UpdateBuilder{table: table} }

// Set sets a column to a given value.
func (u *UpdateBuilder) Set(column string, v any) *UpdateBuilder {
	u.columns = append(u.columns, column)
	u.values = append(u.values, v)
	return u
}

// SetNull sets a column as null value.
func (u *UpdateBuilder) SetNull(column string) *UpdateBuilder {
	return u.Set(column, Raw("NULL"))
}

// Where adds a where predicate for update statement.
func (u *UpdateBuilder) Where(p *Predicate) *UpdateBuilder {
	if u.where == nil {
		u.where = p
	} else {
		u.where = And(u.where, p)
	}
	return u
}

// Returning adds the `RETURNING` clause to the update statement.
func (u *UpdateBuilder) Returning(columns ...string) *UpdateBuilder {
	u.returning = columns
	return u
}

// Empty reports whether this builder does not contain update changes.
func (u *UpdateBuilder) Empty() bool {
	return len(u.columns) == 0
}

// Query returns query representation of an `UPDATE` statement.
func (u *UpdateBuilder) Query() (string, []any) {
	b := &Builder{dialect: u.dialect}
	b.WriteString("UPDATE ")
	b.Ident(u.table)
	b.WriteString(" SET ")
	for j, c := range u.columns {
		if j > 0 {
			b.WriteString(", ")
		}
		b.Ident(c).WriteString(" = ")
		if raw, ok := u.values[j].(Raw); ok {
			b.WriteString(string(raw))
		} else {
			b.Arg(u.values[j])
		}
	}
	if u.where != nil {
		b.WriteString(" WHERE ")
		u.where.build(b)
	}
	writeReturning(b, u.returning)
	return b.String(), b.args
}

// DeleteBuilder is a builder for `DELETE` statement.
type DeleteBuilder struct {
	Builder
	table string
	where *Predicate
}

// Delete creates a builder for the `DELETE` statement.
func Delete(table string) *DeleteBuilder { return &DeleteBuilder{table: table} }

// Where appends a where predicate to the `DELETE` statement.
func (d *DeleteBuilder) Where(p *Predicate) *DeleteBuilder {
	if d.where == nil {
		d.where = p
	} else {
		d.where = And(d.where, p)
	}
	return d
}

// Query returns query representation of a `DELETE` statement.
func (d *DeleteBuilder) Query() (string, []any) {
	b := &Builder{dialect: d.dialect}
	b.WriteString("DELETE FROM ")
	b.Ident(d.table)
	if d.where != nil {
		b.WriteString(" WHERE ")
		d.where.build(b)
	}
	return b.String(), b.args
}

// SupportsReturning reports whether INSERT and UPDATE statements of the
// dialect can return columns.
func SupportsReturning(d string) bool {
	return d == dialect.Postgres || d == dialect.SQLite
}

// Expr formats an expression with a placeholder for each argument, as in
// Expr("MAX(?)", v). It is intended for trusted, static SQL fragments.
func Expr(format string, args ...any) *Predicate {
	return P(func(b *Builder) {
		parts := strings.Split(format, "?")
		if len(parts)-1 != len(args) {
			b.AddError(fmt.Errorf("sql: expression %q expects %d arguments, got %d", format, len(parts)-1, len(args)))
		}
		for i, p := range parts {
			b.WriteString(p)
			if i < len(args) && i < len(parts)-1 {
				b.Arg(args[i])
			}
		}
	})
}
