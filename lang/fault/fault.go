// Package fault implements the fault handles thrown by the machine: a primary
// fault owns the thrown object, a dependent fault references a primary one
// (e.g. to rethrow a captured fault) and shares its type and object.
package fault

import (
	"fmt"

	"github.com/mna/landingpad/lang/types"
)

// Hooks are the user-installed handlers invoked by the machine. They are
// snapshotted on the fault when it is thrown, so that changes made after the
// throw do not affect its handling.
type Hooks struct {
	// Unexpected is called with the fault that violates a declared fault
	// specification. It may throw a new fault or rethrow the one it
	// receives; if it returns, the Terminate hook is called.
	Unexpected func(*Fault)

	// Terminate is called when a fault cannot be handled. It must not return;
	// if it does, the machine aborts anyway.
	Terminate func()
}

// A Fault is the handle of a thrown value.
type Fault struct {
	typ     types.Type
	obj     types.Addr
	value   any
	primary *Fault

	// Cleanup, if set, is called by Release.
	Cleanup func(*Fault)

	// Hooks is the snapshot of the hooks at the time the fault was thrown.
	Hooks Hooks

	// AdjustedPtr is the address of the thrown object as seen by the catch
	// clause that was selected, set when the machine commits to a handler.
	AdjustedPtr types.Addr

	// HandlerSwitch is the id of the clause that was selected, set when the
	// machine commits to a handler. It is retained so that a fault thrown by
	// the Unexpected hook can be checked against the original filter.
	HandlerSwitch int32
}

// New returns a primary fault for an object of type typ at address obj. The
// optional value is the Go value carried by the fault, if any.
func New(typ types.Type, obj types.Addr, value any) *Fault {
	return &Fault{typ: typ, obj: obj, value: value}
}

// NewDependent returns a fault that references the primary fault of f.
func NewDependent(f *Fault) *Fault {
	p := f.Primary()
	return &Fault{primary: p, Hooks: p.Hooks}
}

// Primary returns the primary fault of f, which is f itself if it is not a
// dependent fault.
func (f *Fault) Primary() *Fault {
	if f.primary != nil {
		return f.primary
	}
	return f
}

// Dependent returns true if f references a primary fault.
func (f *Fault) Dependent() bool { return f.primary != nil }

// Type returns the type of the thrown object.
func (f *Fault) Type() types.Type { return f.Primary().typ }

// Object returns the address of the thrown object.
func (f *Fault) Object() types.Addr { return f.Primary().obj }

// Value returns the Go value carried by the thrown object.
func (f *Fault) Value() any { return f.Primary().value }

// Release calls the Cleanup function of f, if any. A dependent fault without
// a Cleanup function releases its primary fault.
func (f *Fault) Release() {
	switch {
	case f.Cleanup != nil:
		f.Cleanup(f)
	case f.primary != nil:
		f.primary.Release()
	}
}

func (f *Fault) String() string {
	if f == nil {
		return "fault(nil)"
	}
	name := "<nil>"
	if t := f.Type(); t != nil {
		name = t.Name()
	}
	return fmt.Sprintf("fault(%s at %s)", name, f.Object())
}
