// Package ehtab defines the static exception tables consumed by the machine:
// the clause table, the type table and the filter table. The tables are
// produced ahead of time (by a code generator, or from the assembler format
// implemented in this package) and are never mutated at run time.
package ehtab

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/mna/landingpad/lang/types"
)

// ClauseEntry is a node of a clause list. Clause lists are intrusive singly
// linked lists in the flat Clauses table, addressed by 1-based position. A
// Next value of 0 terminates the list.
//
// The ClauseID encodes the kind of clause:
//   - 0 is a cleanup clause;
//   - a positive value is the 1-based index of the declared catch type in the
//     Types table (a nil type catches anything);
//   - a negative value -k designates the filter list that starts at index k-1
//     in the Filters table.
type ClauseEntry struct {
	ClauseID int32
	Next     uint32
}

// Kind is the kind of a clause.
type Kind uint8

// List of clause kinds.
const (
	Cleanup Kind = iota
	Catch
	Filter
)

func (k Kind) String() string {
	switch k {
	case Cleanup:
		return "cleanup"
	case Catch:
		return "catch"
	case Filter:
		return "filter"
	}
	return fmt.Sprintf("illegal kind (%d)", k)
}

// KindOf returns the kind of clause identified by id.
func KindOf(id int32) Kind {
	switch {
	case id == 0:
		return Cleanup
	case id > 0:
		return Catch
	default:
		return Filter
	}
}

// Tables is the set of static exception tables of a program.
type Tables struct {
	Clauses []ClauseEntry
	Types   []types.Type
	Filters []int32 // lists of Types ordinals, each terminated by 0
}

// Entry returns the clause list entry at the 1-based id.
func (t *Tables) Entry(id uint32) ClauseEntry {
	return t.Clauses[id-1]
}

// CatchType returns the declared type of a catch clause. It returns nil for
// a catch-all clause.
func (t *Tables) CatchType(clauseID int32) types.Type {
	return t.Types[clauseID-1]
}

// FilterList returns the type ordinals of the filter designated by the
// (negative) filterID, without the terminating 0.
func (t *Tables) FilterList(filterID int32) []int32 {
	start := -filterID - 1
	end := start
	for t.Filters[end] != 0 {
		end++
	}
	return t.Filters[start:end]
}

// List returns the entries of the clause list that starts at id, in order.
// It stops early if the list is longer than the clause table, which can only
// happen if the list has a cycle.
func (t *Tables) List(id uint32) []ClauseEntry {
	var list []ClauseEntry
	for id != 0 && len(list) <= len(t.Clauses) {
		e := t.Entry(id)
		list = append(list, e)
		id = e.Next
	}
	return list
}

// Validate checks that every index stored in the tables is in range, that
// every filter list is terminated and that no clause list has a cycle. It
// returns all problems found, as a *multierror.Error.
func (t *Tables) Validate() error {
	var errs *multierror.Error

	// a filter list may only start at the beginning of the table or right
	// after a terminator
	starts := make(map[int]bool)
	start := true
	for i, ord := range t.Filters {
		if start {
			starts[i] = true
		}
		start = ord == 0
		if ord < 0 || int(ord) > len(t.Types) {
			errs = multierror.Append(errs, fmt.Errorf("filter table index %d: invalid type ordinal %d", i, ord))
		}
	}
	if n := len(t.Filters); n > 0 && t.Filters[n-1] != 0 {
		errs = multierror.Append(errs, errors.New("filter table: last list is not terminated"))
	}

	for i, e := range t.Clauses {
		id := i + 1
		switch KindOf(e.ClauseID) {
		case Catch:
			if int(e.ClauseID) > len(t.Types) {
				errs = multierror.Append(errs, fmt.Errorf("clause %d: catch type %d out of range", id, e.ClauseID))
			}
		case Filter:
			if off := -int64(e.ClauseID) - 1; off >= int64(len(t.Filters)) || !starts[int(off)] {
				errs = multierror.Append(errs, fmt.Errorf("clause %d: filter %d does not start a filter list", id, e.ClauseID))
			}
		}
		if int(e.Next) > len(t.Clauses) {
			errs = multierror.Append(errs, fmt.Errorf("clause %d: next %d out of range", id, e.Next))
		}
	}
	if errs != nil {
		// cycle detection below assumes in-range links
		return errs.ErrorOrNil()
	}

	// any entry can be the head of a list, so check them all; a list longer
	// than the table has a cycle.
	for i := range t.Clauses {
		if l := t.List(uint32(i + 1)); len(l) > len(t.Clauses) {
			errs = multierror.Append(errs, fmt.Errorf("clause %d: clause list has a cycle", i+1))
		}
	}
	return errs.ErrorOrNil()
}

// CheckCleanupLast verifies that no cleanup clause is followed by another
// clause in a list. The machine does not rely on it, but code generators are
// expected to emit cleanup clauses last.
func (t *Tables) CheckCleanupLast() error {
	var errs *multierror.Error
	for i, e := range t.Clauses {
		if e.ClauseID == 0 && e.Next != 0 {
			errs = multierror.Append(errs, fmt.Errorf("clause %d: cleanup clause followed by clause %d", i+1, e.Next))
		}
	}
	return errs.ErrorOrNil()
}
