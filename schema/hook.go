package schema

import (
	"context"
)

// Event identifies the point of the write lifecycle a hook runs at.
type Event uint8

// Lifecycle events. Events ending in Commit are deferred until the
// surrounding transaction commits.
const (
	BeforeCreate Event = iota + 1
	BeforeUpdate
	BeforeSave
	AfterCreate
	AfterUpdate
	AfterSave
	AfterCreateCommit
	AfterUpdateCommit
	AfterSaveCommit
	BeforeDestroy
	AfterDestroy
	AfterDestroyCommit
)

var eventNames = [...]string{
	BeforeCreate:       "beforeCreate",
	BeforeUpdate:       "beforeUpdate",
	BeforeSave:         "beforeSave",
	AfterCreate:        "afterCreate",
	AfterUpdate:        "afterUpdate",
	AfterSave:          "afterSave",
	AfterCreateCommit:  "afterCreateCommit",
	AfterUpdateCommit:  "afterUpdateCommit",
	AfterSaveCommit:    "afterSaveCommit",
	BeforeDestroy:      "beforeDestroy",
	AfterDestroy:       "afterDestroy",
	AfterDestroyCommit: "afterDestroyCommit",
}

// String returns the event name.
func (e Event) String() string {
	if int(e) < len(eventNames) && eventNames[e] != "" {
		return eventNames[e]
	}
	return "unknown"
}

// Commit reports whether hooks of the event are deferred until commit.
func (e Event) Commit() bool {
	return e == AfterCreateCommit || e == AfterUpdateCommit || e == AfterSaveCommit || e == AfterDestroyCommit
}

// HookFunc is called with the record and the attribute changes of the
// write: pending changes for before hooks, saved changes afterwards.
type HookFunc func(ctx context.Context, r *Record, c Changes) error

// Hook is a lifecycle callback bound to one event.
type Hook struct {
	Name      string
	Event     Event
	Fn        HookFunc
	ifChanged []string
}

// On returns a hook running fn at event.
//
//	schema.On(schema.AfterSaveCommit, notify).IfChanged("name")
func On(event Event, fn HookFunc) Hook {
	return Hook{Event: event, Fn: fn}
}

// Named sets the hook name used in logs and errors.
func (h Hook) Named(name string) Hook {
	h.Name = name
	return h
}

// IfChanged restricts the hook to writes that change one of columns.
func (h Hook) IfChanged(columns ...string) Hook {
	h.ifChanged = append(append([]string(nil), h.ifChanged...), columns...)
	return h
}

// Applies reports whether the hook runs for a write with changes c.
func (h Hook) Applies(c Changes) bool {
	return len(h.ifChanged) == 0 || c.Has(h.ifChanged...)
}

// String returns the hook name, or its event when unnamed.
func (h Hook) String() string {
	if h.Name != "" {
		return h.Name
	}
	return h.Event.String()
}

// HookTable holds the hooks of an entity type by event, in declaration
// order.
type HookTable struct {
	hooks map[Event][]Hook
}

// NewHookTable returns a table holding hooks.
func NewHookTable(hooks ...Hook) HookTable {
	var t HookTable
	for _, h := range hooks {
		t.add(h)
	}
	return t
}

func (t *HookTable) add(h Hook) {
	if t.hooks == nil {
		t.hooks = make(map[Event][]Hook)
	}
	t.hooks[h.Event] = append(t.hooks[h.Event], h)
}

// For returns the hooks registered for e.
func (t HookTable) For(e Event) []Hook {
	return t.hooks[e]
}

// Len returns the number of hooks in the table.
func (t HookTable) Len() int {
	n := 0
	for _, hs := range t.hooks {
		n += len(hs)
	}
	return n
}

func (t HookTable) merge(o HookTable) HookTable {
	var out HookTable
	for e := BeforeCreate; e <= AfterDestroyCommit; e++ {
		for _, h := range t.hooks[e] {
			out.add(h)
		}
		for _, h := range o.hooks[e] {
			out.add(h)
		}
	}
	return out
}
