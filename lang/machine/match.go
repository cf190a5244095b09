package machine

import (
	"math"

	"github.com/mna/landingpad/lang/ehtab"
	"github.com/mna/landingpad/lang/types"
)

// AnyClause is the clause id reported when a fault is dispatched to a region
// owned by the machine (e.g. the one that runs the Unexpected hook), which
// catches anything.
const AnyClause int32 = math.MaxInt32

// A Matcher implements the search of a handler for a fault in the region
// stack. It has no state besides the tables, so it can be used for a
// non-committing search.
type Matcher struct {
	Tables     *ehtab.Tables
	Comparator types.Comparator
}

// ViolatesSpec returns true if the thrown value does not match any of the
// types listed in the filter filterID, i.e. if it violates the declared
// fault specification. Any address adjustment made by the Comparator is
// ignored.
func (m Matcher) ViolatesSpec(thrown types.Type, obj types.Addr, filterID int32) bool {
	for _, ord := range m.Tables.FilterList(filterID) {
		declared := m.Tables.Types[ord-1]
		adj := obj
		if declared == nil || m.Comparator.CanCatch(declared, thrown, &adj) {
			return false
		}
	}
	return true
}

// MatchClause returns true if the thrown value matches the clause. A cleanup
// clause always matches, a filter clause matches if the value violates the
// filter. If a catch clause matches, *obj is adjusted to the declared view of
// the object.
func (m Matcher) MatchClause(thrown types.Type, obj *types.Addr, clauseID int32) bool {
	switch ehtab.KindOf(clauseID) {
	case ehtab.Cleanup:
		return true
	case ehtab.Filter:
		return m.ViolatesSpec(thrown, *obj, clauseID)
	}

	declared := m.Tables.CatchType(clauseID)
	if declared == nil {
		return true
	}
	adj := *obj
	if !m.Comparator.CanCatch(declared, thrown, &adj) {
		return false
	}
	*obj = adj
	return true
}

// MatchList returns the id of the first clause of the list that matches the
// thrown value, in table order.
func (m Matcher) MatchList(thrown types.Type, obj *types.Addr, clauseListID uint32) (int32, bool) {
	for id := clauseListID; id != 0; {
		e := m.Tables.Entry(id)
		if m.MatchClause(thrown, obj, e.ClauseID) {
			return e.ClauseID, true
		}
		id = e.Next
	}
	return 0, false
}

func (m Matcher) matchFrame(thrown types.Type, obj *types.Addr, fr *Frame) (int32, bool) {
	if fr.catchAll {
		return AnyClause, true
	}
	return m.MatchList(thrown, obj, fr.clauseListID)
}

// FindMatch searches the region stack from top outward for a region that
// handles the thrown value. It returns the first matching frame and clause;
// *obj is adjusted if that clause is a catch clause.
func (m Matcher) FindMatch(thrown types.Type, obj *types.Addr, top *Frame) (*Frame, int32, bool) {
	for fr := top; fr != nil; fr = fr.next {
		if id, ok := m.matchFrame(thrown, obj, fr); ok {
			return fr, id, true
		}
	}
	return nil, 0, false
}

// IsCaught returns true if a region from top outward handles the thrown
// value with a clause that is not a cleanup.
func (m Matcher) IsCaught(thrown types.Type, obj types.Addr, top *Frame) bool {
	for fr := top; fr != nil; fr = fr.next {
		adj := obj
		if id, ok := m.matchFrame(thrown, &adj, fr); ok && id != 0 {
			return true
		}
	}
	return false
}
