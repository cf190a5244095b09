package ehtab

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mna/landingpad/lang/types"
)

// This asm file implements a human-readable/writable form of the exception
// tables, along with the class declarations needed to resolve the type table.
// This is mostly to support testing of the machine without going through a
// code generator. A disassembler is also implemented.
//
// The assembly format looks like this (indentation and spacing is arbitrary,
// but order of sections is important):
//
// 	tables:                 # required
// 		classes:              # optional, list of class declarations
// 			Base
// 			Derived Base+8      # base class name and offset of its subobject
// 		types:                # optional, type table (ordinals start at 1)
// 			Derived
// 			*                   # catch-all entry
// 		filters:              # optional, one filter list per line
// 			1 2                 # type ordinals, the terminating 0 is implicit
// 			-                   # empty filter list
// 		clauses:              # required, clause table (ids start at 1)
// 			1 2                 # clause_id next_id
// 			0 0
//
// A filter clause references its filter list by the negated 1-based index of
// the first ordinal of that list in the flat filter table (the disassembler
// prints that clause id as a comment on each filter line).

var sections = map[string]bool{
	"tables:":  true,
	"classes:": true,
	"types:":   true,
	"filters:": true,
	"clauses:": true,
}

// Unit is the result of assembling tables: the tables themselves and the
// class hierarchy that defines the types they reference.
type Unit struct {
	Classes *types.Hierarchy
	Tables  *Tables
}

// Asm loads a unit from its assembler textual format. The resulting tables
// are validated.
func Asm(b []byte) (*Unit, error) {
	asm := asm{s: bufio.NewScanner(bytes.NewReader(b))}

	// must start with the tables: section
	fields := asm.next()
	asm.tables(fields)

	fields = asm.next()
	fields = asm.classes(fields)
	fields = asm.types(fields)
	fields = asm.filters(fields)
	fields = asm.clauses(fields)

	if asm.err == nil && len(fields) > 0 {
		asm.err = fmt.Errorf("unexpected section: %s", fields[0])
	}
	if asm.err != nil {
		return nil, asm.err
	}
	if err := asm.u.Tables.Validate(); err != nil {
		return nil, err
	}
	return asm.u, nil
}

type asm struct {
	s    *bufio.Scanner
	line int // current line number
	u    *Unit
	err  error
}

func (a *asm) tables(fields []string) {
	if a.err != nil {
		return
	}
	if len(fields) == 0 || !strings.EqualFold(fields[0], "tables:") {
		msg := "expected tables section"
		if len(fields) > 0 {
			msg += ", found " + fields[0]
		}
		a.err = errors.New(msg)
		return
	}
	a.u = &Unit{Classes: types.NewHierarchy(), Tables: new(Tables)}
}

func (a *asm) classes(fields []string) []string {
	if a.err != nil || len(fields) == 0 || !strings.EqualFold(fields[0], "classes:") {
		return fields
	}

	for fields = a.next(); len(fields) > 0 && !sections[fields[0]]; fields = a.next() {
		bases := make([]types.Base, 0, len(fields)-1)
		for _, fld := range fields[1:] {
			name, off, _ := strings.Cut(fld, "+")
			base := a.u.Classes.Lookup(name)
			if base == nil {
				a.err = fmt.Errorf("line %d: invalid base of class %s: %s is not declared", a.line, fields[0], name)
				return fields
			}
			var offset uint64
			if off != "" {
				offset = a.uint(off)
			}
			bases = append(bases, types.Base{Class: base, Offset: types.Addr(offset)})
		}
		if a.err != nil {
			return fields
		}
		if _, err := a.u.Classes.Declare(fields[0], bases...); err != nil {
			a.err = fmt.Errorf("line %d: %w", a.line, err)
			return fields
		}
	}
	return fields
}

func (a *asm) types(fields []string) []string {
	if a.err != nil || len(fields) == 0 || !strings.EqualFold(fields[0], "types:") {
		return fields
	}

	for fields = a.next(); len(fields) > 0 && !sections[fields[0]]; fields = a.next() {
		if len(fields) != 1 {
			a.err = fmt.Errorf("line %d: invalid type: expected a class name or *, got %d fields", a.line, len(fields))
			return fields
		}
		if fields[0] == "*" {
			a.u.Tables.Types = append(a.u.Tables.Types, nil)
			continue
		}
		c := a.u.Classes.Lookup(fields[0])
		if c == nil {
			a.err = fmt.Errorf("line %d: invalid type: %s is not declared", a.line, fields[0])
			return fields
		}
		a.u.Tables.Types = append(a.u.Tables.Types, c)
	}
	return fields
}

func (a *asm) filters(fields []string) []string {
	if a.err != nil || len(fields) == 0 || !strings.EqualFold(fields[0], "filters:") {
		return fields
	}

	for fields = a.next(); len(fields) > 0 && !sections[fields[0]]; fields = a.next() {
		if len(fields) == 1 && fields[0] == "-" {
			a.u.Tables.Filters = append(a.u.Tables.Filters, 0)
			continue
		}
		for _, fld := range fields {
			ord := a.uint(fld)
			if a.err != nil {
				return fields
			}
			if ord == 0 {
				a.err = fmt.Errorf("line %d: invalid filter: type ordinals start at 1", a.line)
				return fields
			}
			a.u.Tables.Filters = append(a.u.Tables.Filters, int32(ord))
		}
		a.u.Tables.Filters = append(a.u.Tables.Filters, 0)
	}
	return fields
}

func (a *asm) clauses(fields []string) []string {
	if a.err != nil {
		return fields
	}
	if len(fields) == 0 || !strings.EqualFold(fields[0], "clauses:") {
		msg := "expected clauses section"
		if len(fields) > 0 {
			msg += ", found " + fields[0]
		}
		a.err = errors.New(msg)
		return fields
	}

	for fields = a.next(); len(fields) > 0 && !sections[fields[0]]; fields = a.next() {
		if len(fields) != 2 {
			a.err = fmt.Errorf("line %d: invalid clause: expected clause_id and next_id, got %d fields", a.line, len(fields))
			return fields
		}
		id := a.int(fields[0])
		next := a.uint(fields[1])
		if a.err != nil {
			return fields
		}
		a.u.Tables.Clauses = append(a.u.Tables.Clauses, ClauseEntry{ClauseID: int32(id), Next: uint32(next)})
	}
	return fields
}

func (a *asm) int(s string) int64 {
	i, err := strconv.ParseInt(s, 10, 32)
	if err != nil && a.err == nil {
		a.err = fmt.Errorf("line %d: invalid integer: %s: %w", a.line, s, err)
	}
	return i
}

func (a *asm) uint(s string) uint64 {
	u, err := strconv.ParseUint(s, 0, 32)
	if err != nil && a.err == nil {
		a.err = fmt.Errorf("line %d: invalid unsigned integer: %s: %w", a.line, s, err)
	}
	return u
}

// returns the fields for the next non-empty, non-comment-only line, so that
// fields[0] will contain the line identification if it is a section.
func (a *asm) next() []string {
	if a.err != nil {
		return nil
	}
	for a.s.Scan() {
		a.line++
		fields := strings.Fields(a.s.Text())
		if len(fields) != 0 && !strings.HasPrefix(fields[0], "#") {
			// strip comments to make rest of parsing simpler
			for i, fld := range fields {
				if strings.HasPrefix(fld, "#") {
					fields = fields[:i]
					break
				}
			}
			return fields
		}
	}
	a.err = a.s.Err()
	return nil
}

// Dasm writes a unit to its assembler textual format. The classes may be nil
// if the type table only contains catch-all entries or universe classes.
func Dasm(u *Unit) ([]byte, error) {
	d := dasm{u: u, buf: new(bytes.Buffer)}
	if u.Tables == nil {
		return nil, errors.New("missing tables")
	}

	d.write("tables:\n")
	d.classes()
	d.types()
	d.filters()
	d.clauses()
	return d.buf.Bytes(), d.err
}

type dasm struct {
	u   *Unit
	buf *bytes.Buffer
	err error
}

func (d *dasm) classes() {
	if d.u.Classes == nil || len(d.u.Classes.Classes()) == 0 {
		return
	}
	d.write("\tclasses:\n")
	for _, c := range d.u.Classes.Classes() {
		d.writef("\t\t%s", c.Name())
		for _, b := range c.Bases() {
			if b.Offset == 0 {
				d.writef(" %s", b.Class.Name())
			} else {
				d.writef(" %s+%d", b.Class.Name(), uint64(b.Offset))
			}
		}
		d.write("\n")
	}
}

func (d *dasm) types() {
	tt := d.u.Tables.Types
	if len(tt) == 0 {
		return
	}
	d.write("\ttypes:\n")
	for i, t := range tt {
		if t == nil {
			d.writef("\t\t*\t# %03d\n", i+1)
			continue
		}
		d.writef("\t\t%s\t# %03d\n", t.Name(), i+1)
	}
}

func (d *dasm) filters() {
	ft := d.u.Tables.Filters
	if len(ft) == 0 {
		return
	}
	d.write("\tfilters:\n")
	start := 0
	for i, ord := range ft {
		if ord != 0 {
			continue
		}
		if i == start {
			d.write("\t\t-")
		} else {
			d.write("\t\t")
			for j, o := range ft[start:i] {
				if j > 0 {
					d.write(" ")
				}
				d.writef("%d", o)
			}
		}
		d.writef("\t# %d\n", -(start + 1))
		start = i + 1
	}
	if start < len(ft) {
		d.err = errors.New("filter table: last list is not terminated")
	}
}

func (d *dasm) clauses() {
	d.write("\tclauses:\n")
	for i, e := range d.u.Tables.Clauses {
		d.writef("\t\t%d %d\t# %03d %s\n", e.ClauseID, e.Next, i+1, KindOf(e.ClauseID))
	}
}

func (d *dasm) writef(s string, args ...any) {
	d.write(fmt.Sprintf(s, args...))
}

func (d *dasm) write(s string) {
	if d.err != nil {
		return
	}
	_, d.err = d.buf.WriteString(s)
}
