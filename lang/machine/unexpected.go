package machine

import (
	"errors"
	"fmt"

	"github.com/mna/landingpad/lang/fault"
	"github.com/mna/landingpad/lang/types"
)

var (
	errUnexpectedReturned = errors.New("unexpected hook returned")
	errSpecViolated       = errors.New("fault thrown by unexpected hook violates the fault specification")
)

// Abort is the value panicked by the machine after the terminate hook was
// called, as it must not return. It is an error.
type Abort struct {
	Fault *fault.Fault // may be nil
	Err   error
}

func (a *Abort) Error() string {
	if a.Fault == nil {
		return "abort: " + a.Err.Error()
	}
	return fmt.Sprintf("abort: %s: %s", a.Err, a.Fault)
}

func (a *Abort) Unwrap() error { return a.Err }

// terminate calls the terminate hook snapshotted on f, or the thread's hook
// if f has none, and panics with an *Abort.
func (th *Thread) terminate(f *fault.Fault, reason error) {
	hook := th.Hooks.Terminate
	if f != nil && f.Hooks.Terminate != nil {
		hook = f.Hooks.Terminate
	}
	th.logger.Debug().Stringer("fault", f).Err(reason).Msg("terminate")
	if hook != nil {
		hook()
	}
	panic(&Abort{Fault: f, Err: reason})
}

// CallUnexpected is called by the landing of a region whose filter clause
// matched f, i.e. f violated the region's declared fault specification. It
// never returns.
//
// It calls the Unexpected hook snapshotted on f, with f. If that hook throws
// a fault (possibly f itself, or a dependent fault of f) that is allowed by
// the original specification, that fault is rethrown. Otherwise, if the specification allows bad_exception, a new
// bad_exception fault is thrown instead. In all other cases, the terminate
// hook is called. The fault f is released unless the terminate hook is
// called.
func (th *Thread) CallUnexpected(f *fault.Fault) {
	th.init()

	filterID := f.HandlerSwitch
	hooks := f.Hooks
	if filterID >= 0 {
		th.terminate(f, fmt.Errorf("fault was not dispatched to a filter clause (clause %d)", filterID))
	}

	// the hook runs in a region that catches anything, so that a fault it
	// throws is dispatched here like any other.
	fr := th.push(0, true)
	landed, _ := th.protect(fr, func() error {
		if hooks.Unexpected != nil {
			hooks.Unexpected(f)
		}
		return nil
	})
	if !landed {
		th.terminate(f, errUnexpectedReturned)
	}

	nf := fr.Result().Fault
	same := nf.Primary() == f.Primary()
	if !th.matcher.ViolatesSpec(nf.Type(), nf.Object(), filterID) {
		th.logger.Debug().Stringer("fault", nf).Int32("filter", filterID).Msg("rethrow fault allowed by filter")
		if !same {
			f.Release()
		}
		err := th.Rethrow(nf)
		th.terminate(nf, err)
	}

	be := fault.New(types.BadException, 0, nil)
	if !th.matcher.ViolatesSpec(be.Type(), be.Object(), filterID) {
		th.logger.Debug().Stringer("fault", nf).Int32("filter", filterID).Msg("throw bad_exception")
		// a rethrown f is released only once
		if !same {
			nf.Release()
		}
		f.Release()
		th.Throw(be)
	}

	th.terminate(f, errSpecViolated)
}
