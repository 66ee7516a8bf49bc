// Package handle issues the numeric ids the solver layer works with.
//
// Every compile gets its own Allocator, so handle numbering is a pure
// function of declaration order: the same document always produces the
// same handles. The three namespaces start at well-separated bases so a
// param handle can never collide with an entity or constraint handle,
// which makes solver-side failure reports attributable at a glance.
package handle

import "fmt"

// Handle is a solver-side numeric id. Zero is reserved (the solver uses
// it for "no workplane"), so allocators never issue it.
type Handle uint32

// Group ids. Fixed geometry lives in the reference group and is never
// touched by the solver; everything else solves in the active group.
const (
	GroupReference Handle = 1
	GroupActive    Handle = 2
)

// Default namespace bases.
const (
	ParamBase      Handle = 10000
	EntityBase     Handle = 1000
	ConstraintBase Handle = 100000
)

// Config sets the base offset per namespace. The zero value is not
// usable; call DefaultConfig.
type Config struct {
	ParamBase      Handle
	EntityBase     Handle
	ConstraintBase Handle
}

// DefaultConfig returns the standard namespace layout.
func DefaultConfig() Config {
	return Config{
		ParamBase:      ParamBase,
		EntityBase:     EntityBase,
		ConstraintBase: ConstraintBase,
	}
}

// Allocator hands out sequential handles in three namespaces and keeps
// the logical-id maps for entities. Not safe for concurrent use; a
// compile owns its allocator exclusively.
type Allocator struct {
	cfg            Config
	nextParam      Handle
	nextEntity     Handle
	nextConstraint Handle

	byID     map[string]Handle // logical entity id -> primary entity handle
	byHandle map[Handle]string // reverse, for diagnostics
}

// New returns an allocator using cfg's bases.
func New(cfg Config) *Allocator {
	return &Allocator{
		cfg:            cfg,
		nextParam:      cfg.ParamBase,
		nextEntity:     cfg.EntityBase,
		nextConstraint: cfg.ConstraintBase,
		byID:           make(map[string]Handle),
		byHandle:       make(map[Handle]string),
	}
}

// NextParam issues the next parameter handle.
func (a *Allocator) NextParam() Handle {
	h := a.nextParam
	a.nextParam++
	return h
}

// NextEntity issues the next entity handle.
func (a *Allocator) NextEntity() Handle {
	h := a.nextEntity
	a.nextEntity++
	return h
}

// NextConstraint issues the next constraint handle.
func (a *Allocator) NextConstraint() Handle {
	h := a.nextConstraint
	a.nextConstraint++
	return h
}

// Bind records the primary entity handle for a logical id. Auxiliary
// handles a lowering recipe creates (normals, distance entities) are not
// bound; only the handle the document id stands for is.
func (a *Allocator) Bind(id string, h Handle) error {
	if _, dup := a.byID[id]; dup {
		return fmt.Errorf("handle: id %q bound twice", id)
	}
	a.byID[id] = h
	a.byHandle[h] = id
	return nil
}

// Lookup returns the primary entity handle for a logical id.
func (a *Allocator) Lookup(id string) (Handle, bool) {
	h, ok := a.byID[id]
	return h, ok
}

// IDOf returns the logical id a primary entity handle was bound to, for
// diagnostics. Auxiliary handles have no id.
func (a *Allocator) IDOf(h Handle) (string, bool) {
	id, ok := a.byHandle[h]
	return id, ok
}

// Counts reports how many handles have been issued per namespace.
func (a *Allocator) Counts() (params, entities, constraints int) {
	return int(a.nextParam - a.cfg.ParamBase),
		int(a.nextEntity - a.cfg.EntityBase),
		int(a.nextConstraint - a.cfg.ConstraintBase)
}
