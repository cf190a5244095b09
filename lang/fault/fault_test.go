package fault_test

import (
	"testing"

	"github.com/mna/landingpad/lang/fault"
	"github.com/mna/landingpad/lang/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDependent(t *testing.T) {
	var calls int
	p := fault.New(types.BadException, 0x40, "boom")
	p.Hooks.Terminate = func() { calls++ }

	d := fault.NewDependent(p)
	require.True(t, d.Dependent())
	require.False(t, p.Dependent())
	assert.Same(t, p, d.Primary())
	assert.Same(t, p, fault.NewDependent(d).Primary())
	assert.Equal(t, types.Type(types.BadException), d.Type())
	assert.Equal(t, types.Addr(0x40), d.Object())
	assert.Equal(t, "boom", d.Value())
	assert.Equal(t, "fault(bad_exception at 0x40)", d.String())

	// the hooks are copied from the primary
	require.NotNil(t, d.Hooks.Terminate)
	d.Hooks.Terminate()
	assert.Equal(t, 1, calls)

	// state set by the machine is per-handle
	d.HandlerSwitch = 3
	assert.Equal(t, int32(0), p.HandlerSwitch)
}

func TestRelease(t *testing.T) {
	f := fault.New(nil, 0, nil)
	assert.NotPanics(t, f.Release)
	assert.Equal(t, "fault(<nil> at 0x0)", f.String())

	var released *fault.Fault
	f.Cleanup = func(f *fault.Fault) { released = f }
	f.Release()
	assert.Same(t, f, released)

	// a dependent fault releases its primary
	released = nil
	d := fault.NewDependent(f)
	d.Release()
	assert.Same(t, f, released)

	d.Cleanup = func(*fault.Fault) {}
	released = nil
	d.Release()
	assert.Nil(t, released)
}
