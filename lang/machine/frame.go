package machine

import (
	"fmt"

	"github.com/mna/landingpad/lang/fault"
)

// Phase indicates how the payload of a Frame must be read.
type Phase uint8

// List of frame phases.
const (
	// PhaseCheckpoint is the phase of an active region: the payload is the
	// checkpoint where execution resumes if a fault is dispatched to it.
	PhaseCheckpoint Phase = iota + 1

	// PhaseResult is the phase of a region that a fault was dispatched to: the
	// payload is the result read by the resumed region.
	PhaseResult
)

func (p Phase) String() string {
	switch p {
	case PhaseCheckpoint:
		return "checkpoint"
	case PhaseResult:
		return "result"
	}
	return fmt.Sprintf("illegal phase (%d)", p)
}

// A Checkpoint identifies the point where a region resumes when a fault is
// dispatched to it.
type Checkpoint struct {
	th  *Thread
	seq uint64
}

// Result is what a region receives when a fault is dispatched to it: the
// fault and the id of the clause that matched.
type Result struct {
	Fault    *fault.Fault
	ClauseID int32
}

// A Frame records an active protected region.
type Frame struct {
	phase   Phase
	payload any // Checkpoint or Result, depending on phase

	next         *Frame // outer region, not owned
	depth        int
	clauseListID uint32

	// set for regions owned by the machine itself, which catch anything
	catchAll bool
}

// Phase returns the current phase of the frame.
func (fr *Frame) Phase() Phase { return fr.phase }

// Next returns the enclosing region frame.
func (fr *Frame) Next() *Frame { return fr.next }

// ClauseListID returns the id of the first entry of the clause list of the
// region, 0 if it has no clause.
func (fr *Frame) ClauseListID() uint32 { return fr.clauseListID }

// Checkpoint returns the checkpoint of the frame. It panics if the frame is
// not in the checkpoint phase.
func (fr *Frame) Checkpoint() Checkpoint {
	if fr.phase != PhaseCheckpoint {
		panic(fmt.Sprintf("machine: reading checkpoint of frame in %s phase", fr.phase))
	}
	return fr.payload.(Checkpoint)
}

// Result returns the result of the frame. It panics if the frame is not in
// the result phase.
func (fr *Frame) Result() Result {
	if fr.phase != PhaseResult {
		panic(fmt.Sprintf("machine: reading result of frame in %s phase", fr.phase))
	}
	return fr.payload.(Result)
}

// setResult reuses the payload of the frame for the result. The checkpoint
// must have been copied before, as it is lost.
func (fr *Frame) setResult(res Result) {
	fr.phase = PhaseResult
	fr.payload = res
}

func (fr *Frame) String() string {
	return fmt.Sprintf("region(%d, depth %d, %s)", fr.clauseListID, fr.depth, fr.phase)
}
