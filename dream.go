// Package dream holds the runtime contracts shared by every dream package:
// the error taxonomy, write operation flags, and the interfaces privacy
// policies and caches are written against.
package dream

import (
	"context"
	"strings"
)

// Op represents the operation of a write. Ops are bit flags so that a
// policy or hook can match several at once.
type Op uint

// Write operations.
const (
	OpCreate Op = 1 << iota
	OpUpdate
	OpDestroy
	OpReallyDestroy
	OpUndestroy
	OpUpdateAll
	OpDeleteAll
)

// OpSave matches creates and updates.
const OpSave = OpCreate | OpUpdate

// Is reports whether o matches the given operation.
func (o Op) Is(op Op) bool { return o&op != 0 }

var opNames = []string{
	OpCreate:        "create",
	OpUpdate:        "update",
	OpDestroy:       "destroy",
	OpReallyDestroy: "really destroy",
	OpUndestroy:     "undestroy",
	OpUpdateAll:     "update all",
	OpDeleteAll:     "delete all",
}

// String returns the operation name. Combined flags are joined with "|".
func (o Op) String() string {
	if int(o) < len(opNames) && opNames[o] != "" {
		return opNames[o]
	}
	var names []string
	for i := Op(1); i <= OpDeleteAll; i <<= 1 {
		if o.Is(i) {
			names = append(names, opNames[i])
		}
	}
	if len(names) == 0 {
		return "unknown"
	}
	return strings.Join(names, "|")
}

// Mutation is the view of a pending write handed to privacy rules.
type Mutation interface {
	// Entity returns the entity name.
	Entity() string
	// Op returns the write operation.
	Op() Op
	// Field returns the value that will be written for a column.
	Field(name string) (any, bool)
	// OldField returns the value a column held when the record was loaded.
	OldField(name string) (any, bool)
	// ChangedFields returns the columns the write modifies.
	ChangedFields() []string
}

// Query is the view of a read handed to privacy rules.
type Query interface {
	// Entity returns the entity name.
	Entity() string
	// WhereP narrows the query with an equality condition on a base column.
	WhereP(column string, value any)
}

// Policy decides whether a read or write may proceed.
type Policy interface {
	EvalQuery(context.Context, Query) error
	EvalMutation(context.Context, Mutation) error
}
