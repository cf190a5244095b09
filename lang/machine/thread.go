package machine

import (
	"reflect"

	"github.com/mna/landingpad/lang/ehtab"
	"github.com/mna/landingpad/lang/fault"
	"github.com/mna/landingpad/lang/types"
	"github.com/rs/zerolog"
)

// A Thread is the execution context that owns a region stack. Each goroutine
// that enters protected regions must use its own Thread, a Thread is not safe
// for concurrent use.
type Thread struct {
	// Name is an optional name that describes the thread, mostly for debugging.
	Name string

	// Tables are the static exception tables of the program, the clause list
	// ids of the regions refer to those tables. They should be valid (see
	// ehtab.Tables.Validate).
	Tables *ehtab.Tables

	// Comparator decides if a declared catch type can catch a thrown type. If
	// nil, types.Identity is used.
	Comparator types.Comparator

	// Hooks are the currently installed hooks, snapshotted on a fault when it
	// is thrown.
	Hooks fault.Hooks

	// Logger receives debug events of the dispatch of faults. If it is the
	// zero value, nothing is logged.
	Logger zerolog.Logger

	top     *Frame
	depth   int
	seq     uint64
	matcher Matcher
	logger  zerolog.Logger
	inited  bool
}

func (th *Thread) init() {
	// one-time initialization of thread
	if th.inited {
		return
	}
	th.inited = true

	if th.Tables == nil {
		th.Tables = new(ehtab.Tables)
	}
	if th.Comparator == nil {
		th.Comparator = types.Identity
	}
	th.matcher = Matcher{Tables: th.Tables, Comparator: th.Comparator}

	// the zero Logger has no writer
	th.logger = zerolog.Nop()
	if !reflect.ValueOf(th.Logger).IsZero() {
		th.logger = th.Logger.With().Str("thread", th.Name).Logger()
	}
}

// Top returns the innermost active region frame, or nil if no region is
// active.
func (th *Thread) Top() *Frame { return th.top }

// Depth returns the number of active region frames.
func (th *Thread) Depth() int { return th.depth }

func (th *Thread) push(clauseListID uint32, catchAll bool) *Frame {
	th.seq++
	fr := &Frame{
		phase:        PhaseCheckpoint,
		payload:      Checkpoint{th: th, seq: th.seq},
		next:         th.top,
		depth:        th.depth + 1,
		clauseListID: clauseListID,
		catchAll:     catchAll,
	}
	th.top, th.depth = fr, fr.depth
	return fr
}

func (th *Thread) pop(fr *Frame) {
	if th.top != fr {
		panic("machine: region stack corrupted: exiting a region that is not the innermost one")
	}
	th.unwindTo(fr.next)
}

func (th *Thread) unwindTo(fr *Frame) {
	th.top = fr
	th.depth = 0
	if fr != nil {
		th.depth = fr.depth
	}
}
