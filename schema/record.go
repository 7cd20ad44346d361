package schema

import (
	"bytes"
	"reflect"
	"sort"
	"sync"
	"time"

	dream "github.com/rvohealth/dream-sub006"
	"github.com/rvohealth/dream-sub006/schema/field"
)

// Change is the old and new value of a column.
type Change struct {
	Old any
	New any
}

// Changes maps columns to their changes.
type Changes map[string]Change

// Has reports whether any of columns changed.
func (c Changes) Has(columns ...string) bool {
	for _, col := range columns {
		if _, ok := c[col]; ok {
			return true
		}
	}
	return false
}

// Columns returns the changed columns in sorted order.
func (c Changes) Columns() []string {
	cols := make([]string, 0, len(c))
	for col := range c {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

func (c Changes) clone() Changes {
	if c == nil {
		return nil
	}
	out := make(Changes, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Record is an in-memory entity instance. A record is owned by one call
// chain; only its loaded associations may be filled concurrently.
type Record struct {
	entity          *EntityType
	attrs           map[string]any
	snapshot        map[string]any
	persisted       bool
	destroyed       bool
	preventDeletion bool
	saved           Changes

	mu     sync.Mutex
	loaded map[string]any
}

// New returns an unsaved record of the entity type holding attrs. Records
// of a variant carry its discriminator.
func (e *EntityType) New(attrs map[string]any) *Record {
	r := &Record{entity: e, attrs: make(map[string]any, len(attrs))}
	for k, v := range attrs {
		r.attrs[k] = v
	}
	if col, val, ok := e.Discriminator(); ok {
		if _, set := r.attrs[col]; !set {
			r.attrs[col] = val
		}
	}
	return r
}

// Entity returns the concrete entity type of the record.
func (r *Record) Entity() *EntityType {
	return r.entity
}

// Get returns the value of a column, or nil.
func (r *Record) Get(column string) any {
	return r.attrs[column]
}

// Lookup returns the value of a column and whether it is set.
func (r *Record) Lookup(column string) (any, bool) {
	v, ok := r.attrs[column]
	return v, ok
}

// Set assigns a column value.
func (r *Record) Set(column string, v any) *Record {
	r.attrs[column] = v
	return r
}

// SetAll assigns several column values.
func (r *Record) SetAll(attrs map[string]any) *Record {
	for k, v := range attrs {
		r.attrs[k] = v
	}
	return r
}

// ID returns the primary key value.
func (r *Record) ID() any {
	return r.attrs[r.entity.PrimaryKey.Column()]
}

// Attributes returns a copy of the record attributes.
func (r *Record) Attributes() map[string]any {
	out := make(map[string]any, len(r.attrs))
	for k, v := range r.attrs {
		out[k] = v
	}
	return out
}

// Original returns the value a column held at the last load or save.
func (r *Record) Original(column string) (any, bool) {
	v, ok := r.snapshot[column]
	return v, ok
}

// Changes returns the attributes that differ from the last load or save.
// Every set attribute of an unsaved record is a change.
func (r *Record) Changes() Changes {
	out := make(Changes)
	for col, v := range r.attrs {
		old, ok := r.snapshot[col]
		if !ok || !Equal(old, v) {
			if !ok && r.persisted && v == nil {
				continue
			}
			out[col] = Change{Old: old, New: v}
		}
	}
	return out
}

// IsDirty reports whether the record has unsaved changes.
func (r *Record) IsDirty() bool {
	return !r.persisted || len(r.Changes()) > 0
}

// IsPersisted reports whether the record exists in the database.
func (r *Record) IsPersisted() bool {
	return r.persisted
}

// IsDestroyed reports whether the record was destroyed or soft deleted.
func (r *Record) IsDestroyed() bool {
	return r.destroyed
}

// SavedChanges returns the changes applied by the last save.
func (r *Record) SavedChanges() Changes {
	return r.saved.clone()
}

// PreventDeletion asks a running destroy to leave the row in place. It
// is meant to be called from a BeforeDestroy hook.
func (r *Record) PreventDeletion() {
	r.preventDeletion = true
}

// DeletionPrevented reports whether PreventDeletion was called.
func (r *Record) DeletionPrevented() bool {
	return r.preventDeletion
}

// MarkSaved freezes the current attributes as the persisted state and
// records the changes of the write.
func (r *Record) MarkSaved(saved Changes) {
	r.persisted = true
	r.saved = saved.clone()
	r.snapshot = make(map[string]any, len(r.attrs))
	for k, v := range r.attrs {
		r.snapshot[k] = v
	}
}

// MarkWritten assigns values that a partial write stored and commits only
// those columns: they become the saved changes and part of the persisted
// state. Other pending edits stay dirty.
func (r *Record) MarkWritten(values map[string]any) {
	saved := make(Changes, len(values))
	if r.snapshot == nil {
		r.snapshot = make(map[string]any, len(values))
	}
	for col, v := range values {
		if old, ok := r.snapshot[col]; !ok || !Equal(old, v) {
			saved[col] = Change{Old: old, New: v}
		}
		r.attrs[col] = v
		r.snapshot[col] = v
	}
	r.persisted = true
	r.saved = saved
}

// MarkDestroyed flags the record as removed.
func (r *Record) MarkDestroyed(destroyed bool) {
	r.destroyed = destroyed
	r.preventDeletion = false
}

// Loaded returns the loaded value of an association: a *Record (nil on a
// miss) or a []*Record.
func (r *Record) Loaded(name string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.loaded[name]
	return v, ok
}

// SetLoaded stores the loaded value of an association.
func (r *Record) SetLoaded(name string, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded == nil {
		r.loaded = make(map[string]any)
	}
	r.loaded[name] = v
}

// LoadedNames returns the names of the loaded associations, sorted.
func (r *Record) LoadedNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.loaded))
	for n := range r.loaded {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// One returns a loaded singular association. A loaded miss returns nil
// without error.
func (r *Record) One(name string) (*Record, error) {
	v, ok := r.Loaded(name)
	if !ok {
		return nil, dream.NewNotLoadedError(r.entity.Name, name)
	}
	rec, _ := v.(*Record)
	return rec, nil
}

// Many returns a loaded list association.
func (r *Record) Many(name string) ([]*Record, error) {
	v, ok := r.Loaded(name)
	if !ok {
		return nil, dream.NewNotLoadedError(r.entity.Name, name)
	}
	recs, _ := v.([]*Record)
	return recs, nil
}

// Equal reports whether two column values are the same. Integers of
// different widths and equal instants in different locations are equal.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case []byte:
		switch bv := b.(type) {
		case []byte:
			return bytes.Equal(av, bv)
		case string:
			return string(av) == bv
		}
		return false
	case string:
		if bv, ok := b.([]byte); ok {
			return av == string(bv)
		}
	}
	if ai, ok := toInt64(a); ok {
		if bi, ok := toInt64(b); ok {
			return ai == bi
		}
	}
	if af, ok := field.ToFloat(a); ok {
		if bf, ok := field.ToFloat(b); ok {
			return af == bf
		}
	}
	if reflect.TypeOf(a).Comparable() && reflect.TypeOf(b).Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

func toInt64(v any) (int64, bool) {
	switch v := v.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	}
	return 0, false
}

// Key returns a comparable form of a column value for use in maps.
// Integers of any width map to the same key.
func Key(v any) any {
	if i, ok := toInt64(v); ok {
		return i
	}
	switch v := v.(type) {
	case []byte:
		return string(v)
	case time.Time:
		return v.UnixNano()
	}
	if v != nil && !reflect.TypeOf(v).Comparable() {
		return reflect.ValueOf(v).String()
	}
	return v
}
