// Package scenario implements scenario files, used to exercise the machine
// without a code generator. A scenario file starts with exception tables in
// the ehtab assembler format, followed by a scenario section that describes a
// nest of protected regions and the fault thrown from the innermost one:
//
// 	tables:
// 		...
// 	scenario:
// 		regions:                      # optional, outermost first
// 			outer 2                     # label clause_list_id
// 			inner 1 rethrow             # a catch landing rethrows the fault
// 		throw: Derived 0x1000         # required, class and object address
// 		unexpected: throw X 0x2000    # optional, or: return, rethrow
//
// Running a scenario prints a deterministic trace of the regions entered and
// exited, the landings executed and the hooks called.
package scenario

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mna/landingpad/lang/ehtab"
	"github.com/mna/landingpad/lang/types"
)

// Region describes a protected region of a scenario.
type Region struct {
	Label        string
	ClauseListID uint32

	// Rethrow indicates that a catch landing of the region rethrows the fault
	// instead of releasing it.
	Rethrow bool
}

// Thrown describes a fault to throw.
type Thrown struct {
	Class *types.Class
	Addr  types.Addr
}

// HookAction is the behavior of the Unexpected hook of a scenario.
type HookAction int

// List of hook actions.
const (
	HookUnset HookAction = iota
	HookReturn
	HookThrow
	HookRethrow
)

// Scenario is a parsed scenario file.
type Scenario struct {
	Unit    *ehtab.Unit
	Regions []Region // outermost first
	Throw   Thrown

	Unexpected      HookAction
	UnexpectedThrow Thrown // if Unexpected is HookThrow
}

// Parse parses a scenario file.
func Parse(b []byte) (*Scenario, error) {
	tables, rest, line := split(b)
	if rest == nil {
		return nil, errors.New("expected scenario section")
	}

	u, err := ehtab.Asm(tables)
	if err != nil {
		return nil, err
	}

	p := parser{
		s:    bufio.NewScanner(bytes.NewReader(rest)),
		line: line,
		sc:   &Scenario{Unit: u},
	}
	fields := p.next()
	fields = p.regions(fields)
	fields = p.throw(fields)
	fields = p.unexpected(fields)
	if p.err == nil && len(fields) > 0 {
		p.err = fmt.Errorf("line %d: unexpected %s", p.line, fields[0])
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.sc, nil
}

// split returns the tables part of b, the rest of b after the scenario:
// line and the line number of that scenario: line. The rest is nil if there
// is no scenario section.
func split(b []byte) (tables, rest []byte, line int) {
	var off int
	for off < len(b) {
		line++
		end := bytes.IndexByte(b[off:], '\n')
		if end < 0 {
			end = len(b) - off
		} else {
			end++
		}
		if fields := strings.Fields(string(b[off : off+end])); len(fields) > 0 && fields[0] == "scenario:" {
			return b[:off], b[off+end:], line
		}
		off += end
	}
	return b, nil, line
}

type parser struct {
	s    *bufio.Scanner
	line int
	sc   *Scenario
	err  error
}

func (p *parser) regions(fields []string) []string {
	if p.err != nil || len(fields) == 0 || fields[0] != "regions:" {
		return fields
	}

	labels := make(map[string]bool)
	for fields = p.next(); len(fields) > 0 && !strings.HasSuffix(fields[0], ":"); fields = p.next() {
		if len(fields) < 2 || len(fields) > 3 {
			p.err = fmt.Errorf("line %d: invalid region: expected label, clause list id and optional rethrow, got %d fields", p.line, len(fields))
			return fields
		}

		reg := Region{Label: fields[0]}
		if labels[reg.Label] {
			p.err = fmt.Errorf("line %d: invalid region: duplicate label %s", p.line, reg.Label)
			return fields
		}
		labels[reg.Label] = true

		id, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			p.err = fmt.Errorf("line %d: invalid region %s: %w", p.line, reg.Label, err)
			return fields
		}
		if int(id) > len(p.sc.Unit.Tables.Clauses) {
			p.err = fmt.Errorf("line %d: invalid region %s: clause list %d out of range", p.line, reg.Label, id)
			return fields
		}
		reg.ClauseListID = uint32(id)

		if len(fields) == 3 {
			if fields[2] != "rethrow" {
				p.err = fmt.Errorf("line %d: invalid region %s: unknown option %s", p.line, reg.Label, fields[2])
				return fields
			}
			reg.Rethrow = true
		}
		p.sc.Regions = append(p.sc.Regions, reg)
	}
	return fields
}

func (p *parser) throw(fields []string) []string {
	if p.err != nil {
		return fields
	}
	if len(fields) == 0 || fields[0] != "throw:" {
		msg := "expected throw"
		if len(fields) > 0 {
			msg += ", found " + fields[0]
		}
		p.err = fmt.Errorf("line %d: %s", p.line, msg)
		return fields
	}
	p.sc.Throw = p.thrown(fields[1:])
	return p.next()
}

func (p *parser) unexpected(fields []string) []string {
	if p.err != nil || len(fields) == 0 || fields[0] != "unexpected:" {
		return fields
	}

	switch {
	case len(fields) == 2 && fields[1] == "return":
		p.sc.Unexpected = HookReturn
	case len(fields) == 2 && fields[1] == "rethrow":
		p.sc.Unexpected = HookRethrow
	case len(fields) > 1 && fields[1] == "throw":
		p.sc.Unexpected = HookThrow
		p.sc.UnexpectedThrow = p.thrown(fields[2:])
	default:
		p.err = fmt.Errorf("line %d: invalid unexpected: expected return, rethrow or throw", p.line)
	}
	return p.next()
}

func (p *parser) thrown(fields []string) Thrown {
	if p.err != nil {
		return Thrown{}
	}
	if len(fields) != 2 {
		p.err = fmt.Errorf("line %d: invalid throw: expected class name and address, got %d fields", p.line, len(fields))
		return Thrown{}
	}

	c := p.sc.Unit.Classes.Lookup(fields[0])
	if c == nil {
		p.err = fmt.Errorf("line %d: invalid throw: %s is not declared", p.line, fields[0])
		return Thrown{}
	}
	addr, err := strconv.ParseUint(fields[1], 0, 64)
	if err != nil {
		p.err = fmt.Errorf("line %d: invalid throw: %w", p.line, err)
		return Thrown{}
	}
	return Thrown{Class: c, Addr: types.Addr(addr)}
}

// returns the fields of the next non-empty line, without comments.
func (p *parser) next() []string {
	if p.err != nil {
		return nil
	}
	for p.s.Scan() {
		p.line++
		line, _, _ := strings.Cut(p.s.Text(), "#")
		if fields := strings.Fields(line); len(fields) > 0 {
			return fields
		}
	}
	p.err = p.s.Err()
	return nil
}
