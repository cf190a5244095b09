package scenario

import (
	"errors"
	"fmt"
	"io"

	"github.com/mna/landingpad/lang/ehtab"
	"github.com/mna/landingpad/lang/fault"
	"github.com/mna/landingpad/lang/machine"
	"github.com/rs/zerolog"
)

// Run runs the scenario on a new machine thread and writes the trace to w.
// If the thread aborts, the trace is complete and the *machine.Abort is
// returned. The logger receives the debug events of the thread.
func Run(w io.Writer, s *Scenario, logger zerolog.Logger) (err error) {
	r := &runner{w: w, s: s}
	r.th = &machine.Thread{
		Name:       "scenario",
		Tables:     s.Unit.Tables,
		Comparator: s.Unit.Classes,
		Logger:     logger,
		Hooks: fault.Hooks{
			Unexpected: r.unexpected,
			Terminate:  func() { r.printf("terminate") },
		},
	}

	defer func() {
		if v := recover(); v != nil {
			var abort *machine.Abort
			if e, ok := v.(error); !ok || !errors.As(e, &abort) {
				panic(v)
			}
			err = abort
		}
	}()

	if err := r.enter(0); err != nil {
		return err
	}
	r.printf("done")
	return nil
}

type runner struct {
	w  io.Writer
	s  *Scenario
	th *machine.Thread
}

func (r *runner) printf(format string, args ...any) {
	fmt.Fprintf(r.w, format+"\n", args...)
}

func (r *runner) newFault(t Thrown) *fault.Fault {
	f := fault.New(t.Class, t.Addr, nil)
	f.Cleanup = func(f *fault.Fault) { r.printf("release %s", f) }
	return f
}

// enter enters the region at index i and the ones nested inside it, the
// fault is thrown from the innermost one.
func (r *runner) enter(i int) error {
	if i == len(r.s.Regions) {
		f := r.newFault(r.s.Throw)
		r.printf("throw %s", f)
		r.th.Throw(f)
		return nil
	}

	reg := r.s.Regions[i]
	r.printf("enter %s (list %d)", reg.Label, reg.ClauseListID)
	return r.th.Try(reg.ClauseListID, func() error {
		err := r.enter(i + 1)
		r.printf("exit %s", reg.Label)
		return err
	}, func(res machine.Result) error {
		return r.land(reg, res)
	})
}

func (r *runner) land(reg Region, res machine.Result) error {
	f := res.Fault

	switch ehtab.KindOf(res.ClauseID) {
	case ehtab.Cleanup:
		r.printf("land %s: cleanup", reg.Label)
		r.th.ResumeUnwind(f)

	case ehtab.Filter:
		r.printf("land %s: filter %d violated", reg.Label, res.ClauseID)
		r.th.CallUnexpected(f)

	case ehtab.Catch:
		name := "*"
		if t := r.s.Unit.Tables.CatchType(res.ClauseID); t != nil {
			name = t.Name()
		}
		r.printf("land %s: catch %s at %s (clause %d)", reg.Label, name, f.AdjustedPtr, res.ClauseID)
		if reg.Rethrow {
			r.printf("rethrow %s", f)
			if err := r.th.Rethrow(fault.NewDependent(f)); err != nil {
				return fmt.Errorf("rethrow in %s: %w", reg.Label, err)
			}
		}
		r.th.ReleaseFault(f)
	}
	return nil
}

func (r *runner) unexpected(f *fault.Fault) {
	r.printf("unexpected")
	switch r.s.Unexpected {
	case HookReturn:
		r.printf("unexpected returns")
	case HookRethrow:
		r.printf("rethrow %s", f)
		r.th.Throw(fault.NewDependent(f))
	case HookThrow:
		nf := r.newFault(r.s.UnexpectedThrow)
		r.printf("throw %s", nf)
		r.th.Throw(nf)
	}
}
