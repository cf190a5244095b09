package scenario_test

import (
	"bytes"
	"flag"
	"testing"

	"github.com/mna/landingpad/internal/filetest"
	"github.com/mna/landingpad/internal/scenario"
	"github.com/mna/landingpad/lang/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpdateScenarioTests = flag.Bool("test.update-scenario-tests", false, "If set, replace expected scenario test results with actual results.")

func TestScenarios(t *testing.T) {
	filetest.Run(t, "testdata", ".eh", testUpdateScenarioTests, func(t *testing.T, src []byte) (string, string) {
		var out bytes.Buffer
		s, err := scenario.Parse(src)
		if err == nil {
			// cleanup clauses must be last in every list of the scenarios
			assert.NoError(t, s.Unit.Tables.CheckCleanupLast())
			err = scenario.Run(&out, s, zerolog.Nop())
		}
		var errs string
		if err != nil {
			errs = err.Error() + "\n"
		}
		return out.String(), errs
	})
}

func TestParse(t *testing.T) {
	const tables = "tables:\n\tclasses:\n\t\tX\n\tclauses:\n\t\t0 0\n"

	s, err := scenario.Parse([]byte(tables + `
scenario:   # comment
	regions:
		a 1
		b 0 rethrow
	throw: X 0x10
	unexpected: throw bad_exception 8
`))
	require.NoError(t, err)
	assert.Equal(t, []scenario.Region{
		{Label: "a", ClauseListID: 1},
		{Label: "b", ClauseListID: 0, Rethrow: true},
	}, s.Regions)
	assert.Equal(t, "X", s.Throw.Class.Name())
	assert.Equal(t, types.Addr(0x10), s.Throw.Addr)
	assert.Equal(t, scenario.HookThrow, s.Unexpected)
	assert.Same(t, types.BadException, s.UnexpectedThrow.Class)
	assert.Equal(t, types.Addr(8), s.UnexpectedThrow.Addr)

	cases := []struct {
		desc string
		in   string
		err  string
	}{
		{"no scenario", tables, "expected scenario section"},
		{"invalid tables", "tables:\nscenario:\n", "expected clauses section"},
		{"duplicate label", "scenario:\n regions:\n  a 1\n  a 1\n throw: X 0\n", "line 9: invalid region: duplicate label a"},
		{"bad option", "scenario:\n regions:\n  a 1 catch\n throw: X 0\n", "line 8: invalid region a: unknown option catch"},
		{"region fields", "scenario:\n regions:\n  a\n throw: X 0\n", "line 8: invalid region: expected label"},
		{"undeclared class", "scenario:\n throw: Y 0\n", "line 7: invalid throw: Y is not declared"},
		{"bad address", "scenario:\n throw: X z\n", "line 7: invalid throw"},
		{"bad unexpected", "scenario:\n throw: X 0\n unexpected: call\n", "line 8: invalid unexpected"},
		{"rethrow with args", "scenario:\n throw: X 0\n unexpected: rethrow X\n", "line 8: invalid unexpected"},
		{"trailing", "scenario:\n throw: X 0\n extra:\n", "line 8: unexpected extra:"},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			in := tc.in
			if in != tables && tc.desc != "invalid tables" {
				in = tables + in
			}
			_, err := scenario.Parse([]byte(in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.err)
		})
	}
}
