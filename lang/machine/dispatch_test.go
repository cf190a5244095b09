package machine_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/mna/landingpad/lang/fault"
	"github.com/mna/landingpad/lang/machine"
	"github.com/mna/landingpad/lang/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dispatchTables = `
tables:
	classes:
		X
		Y
		Base
		Derived Y Base+16
	types:
		X              # 001
		Y              # 002
		Base           # 003
		*              # 004
		bad_exception  # 005
	filters:
		1              # -1: X
		1 5            # -3: X, bad_exception
		-              # -6: nothing
	clauses:
		0 0            # 001 cleanup
		1 0            # 002 catch X
		2 0            # 003 catch Y
		2 1            # 004 catch Y, then cleanup
		3 0            # 005 catch Base
		-1 0           # 006 filter X
		-3 0           # 007 filter X, bad_exception
		-6 0           # 008 filter nothing
		4 0            # 009 catch-all
		5 0            # 010 catch bad_exception
`

const (
	listCleanup      = 1
	listCatchX       = 2
	listCatchY       = 3
	listCatchYClean  = 4
	listCatchBase    = 5
	listFilterX      = 6
	listFilterXBad   = 7
	listFilterNone   = 8
	listCatchAll     = 9
	listCatchBadExcp = 10
)

func newThread(t *testing.T) (*machine.Thread, *types.Hierarchy) {
	t.Helper()
	u := asm(t, dispatchTables)
	return &machine.Thread{Name: "main", Tables: u.Tables, Comparator: u.Classes}, u.Classes
}

// catchAbort runs fn and returns the *machine.Abort it panicked with, or nil
// if it returned normally.
func catchAbort(t *testing.T, fn func()) (abort *machine.Abort) {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			a, ok := r.(*machine.Abort)
			if !ok {
				panic(r)
			}
			abort = a
		}
	}()
	fn()
	return nil
}

func unreachable(t *testing.T) func(machine.Result) error {
	return func(res machine.Result) error {
		t.Errorf("unexpected landing with clause %d", res.ClauseID)
		return nil
	}
}

func TestTryNoFault(t *testing.T) {
	th, _ := newThread(t)
	var depth int
	err := th.Try(listCatchX, func() error {
		depth = th.Depth()
		return nil
	}, unreachable(t))
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
	assert.Equal(t, 0, th.Depth())
	assert.Nil(t, th.Top())

	errBody := errors.New("body")
	err = th.Try(listCatchX, func() error { return errBody }, unreachable(t))
	assert.ErrorIs(t, err, errBody)
	assert.Equal(t, 0, th.Depth())
}

func TestCatchWithAdjustment(t *testing.T) {
	th, h := newThread(t)
	f := fault.New(h.Lookup("Derived"), 0x1000, "derived")

	var fr *machine.Frame
	var got machine.Result
	errLanding := errors.New("landing")
	err := th.Try(listCatchBase, func() error {
		fr = th.Top()
		return th.Raise(f)
	}, func(res machine.Result) error {
		got = res
		return errLanding
	})

	assert.ErrorIs(t, err, errLanding)
	assert.Same(t, f, got.Fault)
	assert.Equal(t, int32(listCatchBase), got.ClauseID)
	assert.Equal(t, types.Addr(0x1010), f.AdjustedPtr)
	assert.Equal(t, int32(listCatchBase), f.HandlerSwitch)
	assert.Equal(t, types.Addr(0x1000), f.Object())
	assert.Equal(t, "derived", f.Value())
	assert.Equal(t, 0, th.Depth())

	require.NotNil(t, fr)
	assert.Equal(t, machine.PhaseResult, fr.Phase())
	assert.Equal(t, got, fr.Result())
	assert.Panics(t, func() { fr.Checkpoint() })
}

func TestCheckpointPhase(t *testing.T) {
	th, _ := newThread(t)
	_ = th.Try(listCleanup, func() error {
		fr := th.Top()
		assert.Equal(t, machine.PhaseCheckpoint, fr.Phase())
		assert.Equal(t, uint32(listCleanup), fr.ClauseListID())
		assert.Nil(t, fr.Next())
		assert.NotPanics(t, func() { fr.Checkpoint() })
		assert.Panics(t, func() { fr.Result() })
		return nil
	}, unreachable(t))
}

func TestCleanupThenCatch(t *testing.T) {
	th, h := newThread(t)
	f := fault.New(h.Lookup("X"), 0x100, nil)

	var f3 *machine.Frame
	var trace []string
	err := th.Try(listCatchY, func() error {
		f3 = th.Top()
		return th.Try(listCatchX, func() error {
			return th.Try(listCleanup, func() error {
				require.Equal(t, 3, th.Depth())
				return th.Raise(f)
			}, func(res machine.Result) error {
				trace = append(trace, "cleanup")
				assert.Equal(t, int32(0), res.ClauseID)
				// the catching region is still active while the cleanup runs
				assert.Equal(t, 2, th.Depth())
				th.ResumeUnwind(res.Fault)
				return nil
			})
		}, func(res machine.Result) error {
			trace = append(trace, "catch")
			assert.Same(t, f, res.Fault)
			assert.Equal(t, int32(listCatchX), res.ClauseID)
			assert.Same(t, f3, th.Top())
			assert.Equal(t, 1, th.Depth())
			return nil
		})
	}, unreachable(t))

	require.NoError(t, err)
	assert.Equal(t, []string{"cleanup", "catch"}, trace)
	assert.Equal(t, 0, th.Depth())
}

func TestUnhandledRaiseRunsNoCleanup(t *testing.T) {
	th, h := newThread(t)
	f := fault.New(h.Lookup("X"), 0x100, nil)

	err := th.Try(listCatchY, func() error {
		return th.Try(listCleanup, func() error {
			top := th.Top()
			err := th.Raise(f)
			assert.Same(t, top, th.Top())
			assert.Equal(t, 2, th.Depth())
			assert.Equal(t, machine.PhaseCheckpoint, top.Phase())
			assert.Equal(t, machine.PhaseCheckpoint, top.Next().Phase())
			return err
		}, unreachable(t))
	}, unreachable(t))

	assert.ErrorIs(t, err, machine.ErrUnhandled)
	assert.Equal(t, 0, th.Depth())
}

func TestCatchAllIsNotCleanup(t *testing.T) {
	th, h := newThread(t)
	f := fault.New(h.Lookup("Base"), 0x100, nil)

	var clauses []int32
	err := th.Try(listCatchAll, func() error {
		return th.Try(listCatchYClean, func() error {
			return th.Raise(f)
		}, func(res machine.Result) error {
			clauses = append(clauses, res.ClauseID)
			th.ResumeUnwind(res.Fault)
			return nil
		})
	}, func(res machine.Result) error {
		clauses = append(clauses, res.ClauseID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 4}, clauses)
}

func TestResumeUnwindIsLinear(t *testing.T) {
	const n = 50

	th, h := newThread(t)
	cmp := &countingComparator{Comparator: h}
	th.Comparator = cmp
	f := fault.New(h.Lookup("X"), 0x100, nil)

	var cleanups int
	var nest func(i int) error
	nest = func(i int) error {
		if i == n {
			return th.Raise(f)
		}
		return th.Try(listCatchYClean, func() error {
			return nest(i + 1)
		}, func(res machine.Result) error {
			cleanups++
			th.ResumeUnwind(res.Fault)
			return nil
		})
	}

	var handled bool
	err := th.Try(listCatchX, func() error {
		return nest(0)
	}, func(res machine.Result) error {
		handled = true
		assert.Equal(t, int32(listCatchX), res.ClauseID)
		return nil
	})

	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, n, cleanups)
	assert.LessOrEqual(t, cmp.calls, 4*n)
	assert.Equal(t, 0, th.Depth())
}

func TestRethrowDependent(t *testing.T) {
	th, h := newThread(t)
	f := fault.New(h.Lookup("Y"), 0x100, nil)

	var got *fault.Fault
	err := th.Try(listCatchAll, func() error {
		return th.Try(listCatchY, func() error {
			return th.Raise(f)
		}, func(res machine.Result) error {
			return th.Rethrow(fault.NewDependent(res.Fault))
		})
	}, func(res machine.Result) error {
		got = res.Fault
		return nil
	})

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Dependent())
	assert.Same(t, f, got.Primary())
	assert.Equal(t, f.Type(), got.Type())
	assert.Equal(t, f.Object(), got.Object())
}

func TestIdentityComparator(t *testing.T) {
	u := asm(t, dispatchTables)
	th := &machine.Thread{Tables: u.Tables}

	// without the hierarchy, a derived class is not caught by its base
	f := fault.New(u.Classes.Lookup("Derived"), 0x100, nil)
	err := th.Try(listCatchBase, func() error {
		return th.Raise(f)
	}, unreachable(t))
	assert.ErrorIs(t, err, machine.ErrUnhandled)

	var caught bool
	f = fault.New(u.Classes.Lookup("Base"), 0x100, nil)
	err = th.Try(listCatchBase, func() error {
		return th.Raise(f)
	}, func(res machine.Result) error {
		caught = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, caught)
}

func TestThrowUnhandled(t *testing.T) {
	th, h := newThread(t)
	var terminated int
	th.Hooks.Terminate = func() { terminated++ }

	f := fault.New(h.Lookup("X"), 0x100, nil)
	abort := catchAbort(t, func() { th.Throw(f) })
	require.NotNil(t, abort)
	assert.ErrorIs(t, abort, machine.ErrUnhandled)
	assert.Same(t, f, abort.Fault)
	assert.Equal(t, 1, terminated)
	assert.NotNil(t, f.Hooks.Terminate)
}

func TestResumeUnwindEmptyStack(t *testing.T) {
	th, h := newThread(t)
	var terminated int
	th.Hooks.Terminate = func() { terminated++ }

	f := fault.New(h.Lookup("X"), 0x100, nil)
	abort := catchAbort(t, func() { th.ResumeUnwind(f) })
	require.NotNil(t, abort)
	assert.Contains(t, abort.Error(), "no handler found after running cleanups")
	assert.Equal(t, 1, terminated)
}

func TestForeignPanicRestoresStack(t *testing.T) {
	th, _ := newThread(t)
	assert.PanicsWithValue(t, "boom", func() {
		_ = th.Try(listCatchAll, func() error {
			return th.Try(listCleanup, func() error {
				panic("boom")
			}, unreachable(t))
		}, unreachable(t))
	})
	assert.Equal(t, 0, th.Depth())
	assert.Nil(t, th.Top())

	// the thread is still usable
	var caught bool
	err := th.Try(listCatchAll, func() error {
		return th.Raise(fault.New(types.Exception, 0, nil))
	}, func(res machine.Result) error {
		caught = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, caught)
}

func TestReleaseFault(t *testing.T) {
	th, h := newThread(t)
	var released *fault.Fault
	f := fault.New(h.Lookup("X"), 0x100, nil)
	f.Cleanup = func(f *fault.Fault) { released = f }

	err := th.Try(listCatchX, func() error {
		return th.Raise(f)
	}, func(res machine.Result) error {
		th.ReleaseFault(res.Fault)
		return nil
	})
	require.NoError(t, err)
	assert.Same(t, f, released)
}

func TestDispatchLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	th, h := newThread(t)
	th.Logger = logger
	err := th.Try(listCatchX, func() error {
		return th.Raise(fault.New(h.Lookup("X"), 0x100, nil))
	}, func(res machine.Result) error { return nil })
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"message":"transfer"`)
	assert.Contains(t, out, `"thread":"main"`)
	assert.Contains(t, out, `"clause":2`)
}
