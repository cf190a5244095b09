package types

import (
	"fmt"

	"github.com/dolthub/swiss"
)

// A Class is a Type that may derive from other classes. Each base is located
// at a fixed offset inside an object of the derived class.
type Class struct {
	name  string
	bases []Base
}

var _ Type = (*Class)(nil)

// Base is a direct base class along with the offset of its subobject in the
// derived class.
type Base struct {
	Class  *Class
	Offset Addr
}

func (c *Class) Name() string   { return c.name }
func (c *Class) String() string { return "class " + c.name }

// Bases returns the direct bases of the class, in declaration order.
func (c *Class) Bases() []Base { return c.bases }

// offsets appends to dst the distinct offsets of target as a (possibly
// indirect) base of c, with acc being the offset of c itself.
func (c *Class) offsets(target *Class, acc Addr, dst []Addr) []Addr {
	if c == target {
		for _, off := range dst {
			if off == acc {
				return dst
			}
		}
		return append(dst, acc)
	}
	for _, b := range c.bases {
		dst = b.Class.offsets(target, acc+b.Offset, dst)
	}
	return dst
}

// Universe classes, predeclared in every Hierarchy.
var (
	Exception    = &Class{name: "exception"}
	BadException = &Class{name: "bad_exception", bases: []Base{{Class: Exception}}}
)

var universe = []*Class{Exception, BadException}

// IsUniverse returns true if name is the name of a predeclared class.
func IsUniverse(name string) bool {
	for _, c := range universe {
		if c.name == name {
			return true
		}
	}
	return false
}

// A Hierarchy is a registry of classes and the Comparator that implements
// catching by base class. The zero value is not ready to use, create one with
// NewHierarchy.
type Hierarchy struct {
	classes *swiss.Map[string, *Class]
	order   []*Class // declared classes, excluding the universe
}

var _ Comparator = (*Hierarchy)(nil)

// NewHierarchy returns a Hierarchy that contains only the universe classes.
func NewHierarchy() *Hierarchy {
	h := &Hierarchy{classes: swiss.NewMap[string, *Class](uint32(len(universe)))}
	for _, c := range universe {
		h.classes.Put(c.name, c)
	}
	return h
}

// Declare adds a new class to the hierarchy. The bases must already be
// declared in h, which guarantees that the hierarchy is acyclic.
func (h *Hierarchy) Declare(name string, bases ...Base) (*Class, error) {
	if name == "" || name == "*" {
		return nil, fmt.Errorf("invalid class name: %q", name)
	}
	if h.classes.Has(name) {
		return nil, fmt.Errorf("class %s already declared", name)
	}
	for i, b := range bases {
		if b.Class == nil {
			return nil, fmt.Errorf("class %s: base %d is nil", name, i)
		}
		if got, ok := h.classes.Get(b.Class.name); !ok || got != b.Class {
			return nil, fmt.Errorf("class %s: base %s is not declared", name, b.Class.name)
		}
	}

	c := &Class{name: name, bases: append([]Base(nil), bases...)}
	h.classes.Put(name, c)
	h.order = append(h.order, c)
	return c, nil
}

// Lookup returns the class with that name, or nil if it does not exist.
func (h *Hierarchy) Lookup(name string) *Class {
	c, _ := h.classes.Get(name)
	return c
}

// Classes returns the classes declared in h, in declaration order. The
// universe classes are not included.
func (h *Hierarchy) Classes() []*Class {
	return h.order
}

// Len returns the number of classes in h, including the universe.
func (h *Hierarchy) Len() int { return h.classes.Count() }

// CanCatch implements Comparator. A nil declared type catches anything. A
// class catches itself and any class that derives from it through exactly
// one base subobject; *obj is moved to that subobject. A base reachable at
// different offsets is ambiguous and does not match.
func (h *Hierarchy) CanCatch(declared, thrown Type, obj *Addr) bool {
	if declared == nil || declared == thrown {
		return true
	}
	dc, ok := declared.(*Class)
	if !ok {
		return false
	}
	tc, ok := thrown.(*Class)
	if !ok {
		return false
	}

	var buf [2]Addr
	offs := tc.offsets(dc, 0, buf[:0])
	if len(offs) != 1 {
		return false
	}
	*obj += offs[0]
	return true
}
