package sqlgraph_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	dream "github.com/rvohealth/dream-sub006"
	"github.com/rvohealth/dream-sub006/dialect/sql/sqlgraph"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want dream.PersistenceKind
	}{
		{name: "nil", err: nil, want: dream.KindUnknown},
		{name: "postgres unique", err: &pq.Error{Code: "23505"}, want: dream.KindUniqueViolation},
		{name: "postgres foreign key", err: fmt.Errorf("exec: %w", &pq.Error{Code: "23503"}), want: dream.KindForeignKeyViolation},
		{name: "postgres other", err: &pq.Error{Code: "42P01"}, want: dream.KindUnknown},
		{name: "mysql duplicate", err: &mysql.MySQLError{Number: 1062}, want: dream.KindUniqueViolation},
		{name: "mysql check", err: &mysql.MySQLError{Number: 3819}, want: dream.KindCheckViolation},
		{name: "sqlite message", err: errors.New("constraint failed: FOREIGN KEY constraint failed (787)"), want: dream.KindForeignKeyViolation},
		{name: "timeout", err: fmt.Errorf("query: %w", context.DeadlineExceeded), want: dream.KindTimeout},
		{name: "other", err: errors.New("connection reset"), want: dream.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, sqlgraph.Classify(tt.err))
		})
	}
}

func TestWrapConstraint(t *testing.T) {
	t.Parallel()
	err := sqlgraph.WrapConstraint(errors.New("UNIQUE constraint failed: users.email"))
	var ce *sqlgraph.ConstraintError
	assert.ErrorAs(t, err, &ce)
	assert.Equal(t, dream.KindUniqueViolation, ce.Kind())
	assert.True(t, sqlgraph.IsConstraintError(err))
	assert.Equal(t, dream.KindUniqueViolation, sqlgraph.Classify(err))

	plain := errors.New("boom")
	assert.Same(t, plain, sqlgraph.WrapConstraint(plain))
	assert.False(t, sqlgraph.IsConstraintError(plain))
}
