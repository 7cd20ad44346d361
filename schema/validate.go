package schema

import (
	"context"

	dream "github.com/rvohealth/dream-sub006"
	"github.com/rvohealth/dream-sub006/schema/edge"
	"github.com/rvohealth/dream-sub006/schema/field"
)

// Validation is a record-level check. It reports violations on errs
// instead of returning early so that every problem surfaces at once.
type Validation struct {
	Name string
	Fn   func(ctx context.Context, r *Record, errs *dream.ValidationFailedError)
}

// Validate checks a record before it is written and returns a
// *dream.ValidationFailedError holding every violation, or nil.
func (e *EntityType) Validate(ctx context.Context, r *Record, op dream.Op) error {
	errs := &dream.ValidationFailedError{Entity: e.Name}
	creating := op.Is(dream.OpCreate)
	changes := r.Changes()
	owners := e.requiredOwners()
	for _, c := range e.columns {
		col := c.Column()
		v, set := r.attrs[col]
		switch {
		case creating && v == nil && owners[col]:
			// Reported once, under the association name.
			continue
		case creating && (v == nil) && e.required(c):
			if _, ok := c.DefaultValue(); !ok {
				errs.Add(col, "can't be blank")
				continue
			}
		case !creating && c.Immutable && changes.Has(col):
			errs.Add(col, "can't be changed")
			continue
		}
		if !set || (!creating && !changes.Has(col)) {
			continue
		}
		for _, msg := range c.Check(v) {
			errs.Add(col, msg)
		}
	}
	if creating {
		for _, a := range e.assocs {
			if requiredOwner(a) && r.attrs[a.OwnerColumn] == nil {
				errs.Add(a.Name, "must exist")
			}
		}
	}
	for _, v := range e.validations {
		v.Fn(ctx, r, errs)
	}
	if errs.Empty() {
		return nil
	}
	return errs
}

// required reports whether a column must hold a value on insert. Keys and
// columns the orchestrator maintains are filled in later.
func (e *EntityType) required(c *field.Descriptor) bool {
	if c.Optional || c.Nillable || c == e.PrimaryKey || c.Role != field.RoleNone {
		return false
	}
	if c == e.createdAt || c == e.updatedAt || c.Column() == e.typeColumn {
		return false
	}
	return true
}

// requiredOwners returns the foreign key columns of the mandatory
// belongs-to associations.
func (e *EntityType) requiredOwners() map[string]bool {
	var cols map[string]bool
	for _, a := range e.assocs {
		if !requiredOwner(a) {
			continue
		}
		if cols == nil {
			cols = make(map[string]bool)
		}
		cols[a.OwnerColumn] = true
	}
	return cols
}

func requiredOwner(a *Association) bool {
	return a.Kind == edge.KindBelongsTo && !a.Optional && a.OwnerColumn != ""
}
