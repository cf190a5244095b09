package ehtab

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mna/landingpad/lang/types"
	"gopkg.in/yaml.v3"
)

// The YAML encoding is the format used to exchange tables with code
// generators. Unlike the flat Filters table, filter lists are encoded as
// separate lists; the clause ids of filter clauses still use the offset in
// the flat table, as in the assembler format.

type yamlUnit struct {
	Classes []yamlClass  `yaml:"classes,omitempty"`
	Types   []*string    `yaml:"types,omitempty"`
	Filters [][]int32    `yaml:"filters,omitempty"`
	Clauses []yamlClause `yaml:"clauses"`
}

type yamlClass struct {
	Name  string     `yaml:"name"`
	Bases []yamlBase `yaml:"bases,omitempty"`
}

type yamlBase struct {
	Name   string `yaml:"name"`
	Offset uint64 `yaml:"offset,omitempty"`
}

type yamlClause struct {
	Clause int32  `yaml:"clause"`
	Next   uint32 `yaml:"next"`
}

// DecodeYAML loads a unit from its YAML encoding. The resulting tables are
// validated.
func DecodeYAML(b []byte) (*Unit, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	var yu yamlUnit
	if err := dec.Decode(&yu); err != nil {
		return nil, fmt.Errorf("invalid yaml tables: %w", err)
	}

	u := &Unit{Classes: types.NewHierarchy(), Tables: new(Tables)}
	for _, yc := range yu.Classes {
		bases := make([]types.Base, 0, len(yc.Bases))
		for _, yb := range yc.Bases {
			base := u.Classes.Lookup(yb.Name)
			if base == nil {
				return nil, fmt.Errorf("invalid base of class %s: %s is not declared", yc.Name, yb.Name)
			}
			bases = append(bases, types.Base{Class: base, Offset: types.Addr(yb.Offset)})
		}
		if _, err := u.Classes.Declare(yc.Name, bases...); err != nil {
			return nil, err
		}
	}

	for i, name := range yu.Types {
		if name == nil {
			u.Tables.Types = append(u.Tables.Types, nil)
			continue
		}
		c := u.Classes.Lookup(*name)
		if c == nil {
			return nil, fmt.Errorf("invalid type %d: %s is not declared", i+1, *name)
		}
		u.Tables.Types = append(u.Tables.Types, c)
	}

	for i, list := range yu.Filters {
		for _, ord := range list {
			if ord == 0 {
				return nil, fmt.Errorf("invalid filter %d: type ordinals start at 1", i+1)
			}
		}
		u.Tables.Filters = append(u.Tables.Filters, list...)
		u.Tables.Filters = append(u.Tables.Filters, 0)
	}

	for _, yc := range yu.Clauses {
		u.Tables.Clauses = append(u.Tables.Clauses, ClauseEntry{ClauseID: yc.Clause, Next: yc.Next})
	}

	if err := u.Tables.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// EncodeYAML writes a unit to its YAML encoding.
func EncodeYAML(u *Unit) ([]byte, error) {
	if u.Tables == nil {
		return nil, errors.New("missing tables")
	}

	var yu yamlUnit
	if u.Classes != nil {
		for _, c := range u.Classes.Classes() {
			yc := yamlClass{Name: c.Name()}
			for _, b := range c.Bases() {
				yc.Bases = append(yc.Bases, yamlBase{Name: b.Class.Name(), Offset: uint64(b.Offset)})
			}
			yu.Classes = append(yu.Classes, yc)
		}
	}

	for _, t := range u.Tables.Types {
		if t == nil {
			yu.Types = append(yu.Types, nil)
			continue
		}
		name := t.Name()
		yu.Types = append(yu.Types, &name)
	}

	list := []int32{}
	for _, ord := range u.Tables.Filters {
		if ord == 0 {
			yu.Filters = append(yu.Filters, list)
			list = []int32{}
			continue
		}
		list = append(list, ord)
	}
	if len(list) > 0 {
		return nil, errors.New("filter table: last list is not terminated")
	}

	yu.Clauses = make([]yamlClause, 0, len(u.Tables.Clauses))
	for _, e := range u.Tables.Clauses {
		yu.Clauses = append(yu.Clauses, yamlClause{Clause: e.ClauseID, Next: e.Next})
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(yu); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
