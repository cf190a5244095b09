package machine

import (
	"errors"

	"github.com/mna/landingpad/lang/fault"
)

// ErrUnhandled is returned by Raise when no region handles the fault.
var ErrUnhandled = errors.New("unhandled fault")

var errResumeUnhandled = errors.New("no handler found after running cleanups")

// transfer is the value panicked to resume execution at a checkpoint. It is
// recovered by the Try call that owns that checkpoint and forwarded by all
// the others.
type transfer struct {
	to Checkpoint
}

// Raise dispatches a newly thrown fault to the first region that handles it.
// It does not return if a region handles it, execution resumes in that
// region's landing. Otherwise it returns ErrUnhandled, and no region was
// unwound.
//
// If the first matching region only has a cleanup for the fault, Raise first
// checks that an enclosing region has a non-cleanup handler, so that an
// unhandled fault does not run any cleanup (the state at the throw site is
// preserved for diagnostics).
func (th *Thread) Raise(f *fault.Fault) error {
	th.init()
	th.handle(f, true)
	return ErrUnhandled
}

// Rethrow dispatches an already thrown fault again, e.g. from a handler that
// rethrows the fault it caught. It behaves like Raise.
func (th *Thread) Rethrow(f *fault.Fault) error {
	return th.Raise(f)
}

// ResumeUnwind continues the dispatch of a fault after a region ran its
// cleanup. It never returns: if no further region handles the fault, the
// terminate hook is called. That should not happen since Raise verified that
// a handler exists before running any cleanup.
func (th *Thread) ResumeUnwind(f *fault.Fault) {
	th.init()

	// The check for a non-cleanup handler was done when the fault was
	// raised, doing it again for each cleanup would make unwinding quadratic
	// in the number of cleanup regions.
	th.handle(f, false)
	th.terminate(f, errResumeUnhandled)
}

// Throw snapshots the current hooks on the fault and raises it. If no region
// handles it, the terminate hook is called. It never returns.
func (th *Thread) Throw(f *fault.Fault) {
	th.init()
	f.Hooks = th.Hooks
	err := th.Raise(f)
	th.terminate(f, err)
}

// ReleaseFault releases a fault after it was handled without being
// rethrown.
func (th *Thread) ReleaseFault(f *fault.Fault) {
	f.Release()
}

func (th *Thread) handle(f *fault.Fault, checkForCatch bool) {
	thrown := f.Type()
	obj := f.Object()

	fr, clauseID, ok := th.matcher.FindMatch(thrown, &obj, th.top)
	if !ok {
		th.logger.Debug().Stringer("fault", f).Msg("no matching region")
		return
	}
	if checkForCatch && clauseID == 0 && !th.matcher.IsCaught(thrown, obj, fr.next) {
		th.logger.Debug().Stringer("fault", f).Stringer("region", fr).Msg("only cleanup regions match")
		return
	}

	// commit: the matched region and all regions inside it are unwound
	th.unwindTo(fr.next)
	f.AdjustedPtr = obj
	f.HandlerSwitch = clauseID

	// the checkpoint and the result share the payload, copy the checkpoint
	// before it is overwritten.
	cp := fr.Checkpoint()
	fr.setResult(Result{Fault: f, ClauseID: clauseID})

	th.logger.Debug().
		Stringer("fault", f).
		Stringer("region", fr).
		Int32("clause", clauseID).
		Stringer("adjusted", obj).
		Msg("transfer")
	panic(transfer{to: cp})
}
