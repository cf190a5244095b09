// Package types defines the type descriptors of thrown values and the
// capability used by the machine to decide if a declared catch type can catch
// a thrown type.
package types

import "fmt"

// Type is an opaque runtime type descriptor. The machine never inspects a Type
// beyond passing it to a Comparator, except for the nil Type which, as an
// entry of a type table, means "catch anything".
type Type interface {
	// Name returns the name of the type, mostly for debugging and for the
	// textual table format.
	Name() string
}

// Addr is the address of a thrown object. Catching a value by one of its base
// types may require adjusting that address to the base subobject.
type Addr uint64

func (a Addr) String() string { return fmt.Sprintf("0x%x", uint64(a)) }

// A Comparator decides if a value thrown with type thrown can be caught by a
// handler declared for type declared. If it can, CanCatch may adjust *obj so
// that it addresses the declared view of the object. Callers must only retain
// that adjustment if CanCatch returns true.
type Comparator interface {
	CanCatch(declared, thrown Type, obj *Addr) bool
}

// ComparatorFunc is an adapter to use a function as a Comparator.
type ComparatorFunc func(declared, thrown Type, obj *Addr) bool

func (fn ComparatorFunc) CanCatch(declared, thrown Type, obj *Addr) bool {
	return fn(declared, thrown, obj)
}

// Identity is a Comparator that only matches identical type descriptors and
// never adjusts the address.
var Identity Comparator = ComparatorFunc(func(declared, thrown Type, _ *Addr) bool {
	return declared == nil || declared == thrown
})
