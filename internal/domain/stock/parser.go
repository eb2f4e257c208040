// Package stock turns the ERP "stock by branch" export into a branch index.
//
// The export is a flattened spreadsheet: each branch starts with a section
// header row ("Filial:" in the code column, "F<NN> - NAME" two columns to the
// right), followed by one row per product and a blank row closing the section.
package stock

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"pricetags/internal/core/apperror"
)

const (
	// CodeColumn is the exact header of the product code column.
	CodeColumn = "Cód."

	// SectionMarker opens a branch section when found in the code column.
	SectionMarker = "Filial:"

	// branchOffset is the distance from the code column to the branch label.
	branchOffset = 2
)

// Index maps a branch id to the set of product codes stocked there.
// It is immutable once returned by Parse.
type Index struct {
	branches map[int]map[int]struct{}
}

// Branches returns branch ids in ascending order.
func (x Index) Branches() []int {
	out := make([]int, 0, len(x.branches))
	for b := range x.branches {
		out = append(out, b)
	}
	sort.Ints(out)
	return out
}

// Codes returns the codes of a branch in ascending order.
func (x Index) Codes(branch int) []int {
	set := x.branches[branch]
	out := make([]int, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

// HasBranch reports whether the branch appeared in the export.
func (x Index) HasBranch(branch int) bool {
	_, ok := x.branches[branch]
	return ok
}

// Contains reports whether code is stocked in branch.
func (x Index) Contains(branch, code int) bool {
	_, ok := x.branches[branch][code]
	return ok
}

// Len returns the number of branches.
func (x Index) Len() int { return len(x.branches) }

// Size returns the number of codes in a branch.
func (x Index) Size(branch int) int { return len(x.branches[branch]) }

// Rows is the minimal tabular view the parser needs.
type Rows interface {
	ColumnIndex(name string) (int, bool)
	Len() int
	Cell(row, col int) string
}

// Parse builds an Index from a stock export. The only fatal condition is a
// missing CodeColumn; malformed rows are skipped.
func Parse(rows Rows) (Index, error) {
	col, ok := rows.ColumnIndex(CodeColumn)
	if !ok {
		return Index{}, apperror.NewMissingColumn(CodeColumn)
	}

	p := newParser()
	for i := 0; i < rows.Len(); i++ {
		p.feed(rows.Cell(i, col), rows.Cell(i, col+branchOffset))
	}
	return p.finish(), nil
}

type state int

const (
	stateIdle state = iota
	stateCollecting
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateCollecting:
		return "collecting"
	}
	return "unknown"
}

type rowKind int

const (
	rowIgnored rowKind = iota
	rowHeader
	rowTerminator
	rowData
)

// classify decides what a code cell means. Header detection comes first and is
// independent of the state; terminator and data only matter while collecting.
func classify(code string) (rowKind, int) {
	v := strings.TrimSpace(code)
	switch {
	case v == SectionMarker:
		return rowHeader, 0
	case v == "" || strings.EqualFold(v, "nan"):
		return rowTerminator, 0
	}
	if n, ok := parseCode(v); ok {
		return rowData, n
	}
	return rowIgnored, 0
}

// parseCode reads "100", "100.0" or "1e2" and truncates toward zero.
func parseCode(v string) (int, bool) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int(f), true
}

// parseBranch reads "F01 - CENTRO" as 1.
func parseBranch(label string) (int, bool) {
	fields := strings.Fields(label)
	if len(fields) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(fields[0], "F"))
	if err != nil {
		return 0, false
	}
	return n, true
}

type parser struct {
	state    state
	current  int
	branches map[int]map[int]struct{}
}

func newParser() *parser {
	return &parser{
		state:    stateIdle,
		branches: make(map[int]map[int]struct{}),
	}
}

func (p *parser) feed(code, branchLabel string) {
	kind, value := classify(code)

	if kind == rowHeader {
		branch, ok := parseBranch(branchLabel)
		if !ok {
			return
		}
		p.branches[branch] = make(map[int]struct{})
		p.current = branch
		p.state = stateCollecting
		return
	}

	if p.state != stateCollecting {
		return
	}

	switch kind {
	case rowTerminator:
		p.state = stateIdle
	case rowData:
		p.branches[p.current][value] = struct{}{}
	}
}

func (p *parser) finish() Index {
	p.state = stateIdle
	return Index{branches: p.branches}
}
