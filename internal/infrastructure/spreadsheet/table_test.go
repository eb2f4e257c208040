package spreadsheet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stockRecords() [][]string {
	return [][]string{
		{"EMPRESA XYZ"},
		{"Saldo em estoque"},
		{"", ""},
		{" Cód. ", "Descrição", "Loja"},
		{"Filial:", "", "F01 - CENTRO"},
		{"100", "DIPIRONA", ""},
		{"101", "PARACETAMOL", ""},
	}
}

func TestReadFile_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "estoque.xlsx")
	require.NoError(t, WriteXLSX(path, stockRecords(), false))

	table, err := ReadFile(path, 3)
	require.NoError(t, err)

	idx, ok := table.ColumnIndex("Cód.")
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, "Filial:", table.Cell(0, idx))
	assert.Equal(t, "F01 - CENTRO", table.Cell(0, idx+2))
	assert.Equal(t, "100", table.Cell(1, idx))
	// trailing empty cells are not materialized but read as ""
	assert.Equal(t, "", table.Cell(2, 2))
	assert.Equal(t, "", table.Cell(1, 10))
	assert.Equal(t, "", table.Cell(99, 0))
}

func TestReadFile_CSVWithBOMAndSemicolon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "produtos.csv")
	require.NoError(t, WriteCSV(path, [][]string{
		{"Código", "Produto", "Preço"},
		{"100", "DESC A", "10,00"},
	}))

	table, err := ReadFile(path, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Código", "Produto", "Preço"}, table.Columns)
	assert.Equal(t, "10,00", table.Cell(0, 2))
}

func TestReadFile_HeaderOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.xlsx")
	require.NoError(t, WriteXLSX(path, [][]string{{"a"}}, true))

	_, err := ReadFile(path, 11)
	assert.Error(t, err)
}

func TestReadFile_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o644))

	_, err := ReadFile(path, 0)
	assert.Error(t, err)
}

func TestColumnIndex_Missing(t *testing.T) {
	table := &Table{Columns: []string{"Codigo"}}
	_, ok := table.ColumnIndex("Cód.")
	assert.False(t, ok)
}
