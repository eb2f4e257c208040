package stock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricetags/internal/core/apperror"
)

// fixture is a three-column export: code, description, branch label.
type fixture struct {
	columns []string
	rows    [][]string
}

func (f fixture) ColumnIndex(name string) (int, bool) {
	for i, c := range f.columns {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

func (f fixture) Len() int { return len(f.rows) }

func (f fixture) Cell(row, col int) string {
	if col >= len(f.rows[row]) {
		return ""
	}
	return f.rows[row][col]
}

func export(rows ...[]string) fixture {
	return fixture{columns: []string{CodeColumn, "Descrição", "Filial"}, rows: rows}
}

func header(label string) []string { return []string{"Filial:", "", label} }
func item(code string) []string     { return []string{code, "PRODUTO"} }
func blank() []string               { return []string{"", "", ""} }

func TestParse_TwoBranches(t *testing.T) {
	idx, err := Parse(export(
		header("F01 - CENTRO"),
		item("100"),
		item("101.0"),
		blank(),
		header("F02 - BAIRRO"),
		item("101"),
		blank(),
	))
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, idx.Branches())
	assert.Equal(t, []int{100, 101}, idx.Codes(1))
	assert.Equal(t, []int{101}, idx.Codes(2))
	assert.True(t, idx.Contains(2, 101))
	assert.False(t, idx.Contains(2, 100))
}

func TestParse_MissingCodeColumn(t *testing.T) {
	_, err := Parse(fixture{columns: []string{"Codigo"}})
	require.Error(t, err)
	assert.True(t, apperror.IsMissingColumn(err))
}

func TestParse_NValidRowsYieldNCodes(t *testing.T) {
	for n := 0; n <= 5; n++ {
		rows := [][]string{header("F07")}
		for i := 0; i < n; i++ {
			rows = append(rows, item(string(rune('1'+i))))
		}
		rows = append(rows, blank())

		idx, err := Parse(export(rows...))
		require.NoError(t, err)
		assert.Equal(t, n, idx.Size(7), "n=%d", n)
		assert.True(t, idx.HasBranch(7))
	}
}

func TestParse_EmptySectionKeepsKey(t *testing.T) {
	idx, err := Parse(export(header("F03"), blank()))
	require.NoError(t, err)

	assert.True(t, idx.HasBranch(3))
	assert.Empty(t, idx.Codes(3))
}

func TestParse_TerminatorIsCaseInsensitive(t *testing.T) {
	for _, term := range []string{"", "  ", "nan", "NaN", "NAN"} {
		idx, err := Parse(export(
			header("F01"),
			item("100"),
			item(term),
			item("200"),
		))
		require.NoError(t, err)
		assert.Equal(t, []int{100}, idx.Codes(1), "terminator %q", term)
	}
}

func TestParse_UnparsableRowsAreSkippedWithoutClosing(t *testing.T) {
	idx, err := Parse(export(
		header("F01"),
		item("Cód."),
		item("100"),
		item("Subtotal"),
		item("inf"),
		item("101"),
		blank(),
	))
	require.NoError(t, err)
	assert.Equal(t, []int{100, 101}, idx.Codes(1))
}

func TestParse_LargeCodesAreKept(t *testing.T) {
	idx, err := Parse(export(
		header("F01"),
		item("3000000000"),
		item("7891234567894.0"),
		item("1e30"),
		blank(),
	))
	require.NoError(t, err)
	assert.Equal(t, []int{3000000000, 7891234567894}, idx.Codes(1))
}

func TestParse_LastSectionWins(t *testing.T) {
	idx, err := Parse(export(
		header("F01"),
		item("100"),
		item("101"),
		blank(),
		header("F01"),
		item("102"),
		blank(),
	))
	require.NoError(t, err)
	assert.Equal(t, []int{102}, idx.Codes(1))
}

func TestParse_MalformedHeaderIsSkipped(t *testing.T) {
	idx, err := Parse(export(
		header("LOJA CENTRO"),
		item("100"),
		blank(),
		header(""),
		item("101"),
		[]string{"Filial:"}, // branch cell missing entirely
		item("102"),
	))
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
}

func TestParse_RowsOutsideSectionsAreIgnored(t *testing.T) {
	idx, err := Parse(export(
		item("999"),
		header("F01"),
		item("100"),
		blank(),
		item("555"),
	))
	require.NoError(t, err)
	assert.Equal(t, []int{100}, idx.Codes(1))
}

func TestParse_EndOfInputClosesSection(t *testing.T) {
	idx, err := Parse(export(header("F04 - SUL"), item("100"), item("100")))
	require.NoError(t, err)
	assert.Equal(t, []int{100}, idx.Codes(4))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		in   string
		kind rowKind
		code int
	}{
		{" Filial: ", rowHeader, 0},
		{"", rowTerminator, 0},
		{"nan", rowTerminator, 0},
		{"123", rowData, 123},
		{"123.9", rowData, 123},
		{"Total", rowIgnored, 0},
	}
	for _, tc := range cases {
		kind, code := classify(tc.in)
		assert.Equal(t, tc.kind, kind, tc.in)
		assert.Equal(t, tc.code, code, tc.in)
	}
}

func TestParser_Transitions(t *testing.T) {
	p := newParser()
	assert.Equal(t, stateIdle, p.state)

	p.feed("Filial:", "F01")
	assert.Equal(t, stateCollecting, p.state)

	p.feed("Filial:", "bad")
	assert.Equal(t, stateCollecting, p.state, "malformed header leaves state untouched")
	assert.Equal(t, 1, p.current)

	p.feed("nan", "")
	assert.Equal(t, stateIdle, p.state)
	assert.Equal(t, "idle", p.state.String())
}

func TestParseBranch(t *testing.T) {
	n, ok := parseBranch("F12 - NORTE")
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	n, ok = parseBranch("5")
	assert.True(t, ok)
	assert.Equal(t, 5, n)

	_, ok = parseBranch("nan")
	assert.False(t, ok)
}
