package labels

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricetags/internal/core/types"
	"pricetags/internal/domain/product"
	"pricetags/internal/domain/stock"
)

type stockRows [][]string

func (r stockRows) ColumnIndex(name string) (int, bool) { return 0, name == stock.CodeColumn }
func (r stockRows) Len() int                            { return len(r) }
func (r stockRows) Cell(row, col int) string {
	if col >= len(r[row]) {
		return ""
	}
	return r[row][col]
}

func buildIndex(t *testing.T, rows ...[]string) stock.Index {
	t.Helper()
	idx, err := stock.Parse(stockRows(rows))
	require.NoError(t, err)
	return idx
}

var pageObject = regexp.MustCompile(`/Type /Page[^s]`)

func countPages(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return len(pageObject.FindAll(data, -1))
}

func sampleChanges() []product.Change {
	return []product.Change{
		{Code: 100, Description: "Desc A", Price: types.NewMoney(10.0), EAN: "111111"},
		{Code: 101, Description: "Desc B", Price: types.NewMoney(5.0), EAN: "222222222222"},
	}
}

func sampleIndex(t *testing.T) stock.Index {
	return buildIndex(t,
		[]string{"Filial:", "", "F01 - CENTRO"},
		[]string{"100"},
		[]string{"101"},
		[]string{""},
		[]string{"Filial:", "", "F02 - BAIRRO"},
		[]string{"101"},
		[]string{""},
		[]string{"Filial:", "", "F03 - SEM ALTERACAO"},
		[]string{"555"},
		[]string{""},
	)
}

func TestBatches_MatchesByBranch(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	batches := Batches(sampleChanges(), sampleIndex(t), "/out", now)

	require.Len(t, batches, 2)

	assert.Equal(t, 1, batches[0].Branch)
	require.Len(t, batches[0].Labels, 2)
	assert.Equal(t, "Desc A", batches[0].Labels[0].Description)
	assert.Equal(t, "R$ 10,00", batches[0].Labels[0].Price)
	assert.Equal(t, "Desc B", batches[0].Labels[1].Description)
	assert.Equal(t, "R$ 5,00", batches[0].Labels[1].Price)
	assert.Equal(t, filepath.Join("/out", "etiquetas_F01_20250304_050607.pdf"), batches[0].Path)

	assert.Equal(t, 2, batches[1].Branch)
	require.Len(t, batches[1].Labels, 1)
	assert.Equal(t, 101, batches[1].Labels[0].Code)
	assert.Equal(t, "222222222222", batches[1].Labels[0].EAN)
}

func TestGenerator_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(DefaultSize(), dir)
	g.now = func() time.Time { return time.Date(2025, 1, 2, 8, 0, 0, 0, time.UTC) }

	files, err := g.Generate(context.Background(), sampleChanges(), sampleIndex(t))
	require.NoError(t, err)

	require.Len(t, files, 2)
	assert.NotContains(t, files, 3)

	assert.Equal(t, filepath.Join(dir, "etiquetas_F01_20250102_080000.pdf"), files[1])
	assert.Equal(t, 2, countPages(t, files[1]))
	assert.Equal(t, 1, countPages(t, files[2]))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no file for a branch without matches")
}

func TestGenerator_NoMatches(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(DefaultSize(), dir)

	files, err := g.Generate(context.Background(), sampleChanges(), buildIndex(t,
		[]string{"Filial:", "", "F09"},
		[]string{"999"},
	))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestRenderer_DegradedBarcodeStillEmitsLabel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.pdf")
	r := NewRenderer(DefaultSize())

	pages, err := r.Render(context.Background(), []Label{
		{Code: 1, Description: "ÁGUA OXIGENADA 10 VOLUMES", Price: "R$ 3,50", EAN: "ÁÉÍÓÚÇ€"},
		{Code: 2, Description: "SEM EAN", Price: "R$ 1,00", EAN: "123"},
		{Code: 3, Description: "", Price: "R$ 0,00", EAN: "7891234567894"},
	}, path)
	require.NoError(t, err)

	assert.Equal(t, 3, pages)
	assert.Equal(t, 3, countPages(t, path))
}

func TestRenderer_VeryLongDescription(t *testing.T) {
	path := filepath.Join(t.TempDir(), "long.pdf")
	r := NewRenderer(DefaultSize())

	long := "SUPLEMENTO ALIMENTAR EM CAPSULAS COM VITAMINAS DO COMPLEXO B E MINERAIS QUELATADOS FRASCO COM 120 UNIDADES SABOR NEUTRO"
	pages, err := r.Render(context.Background(), []Label{{Code: 9, Description: long, Price: "R$ 99,90"}}, path)
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
}

func TestEncodeBarcode(t *testing.T) {
	img, err := EncodeBarcode("7891234567894")
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), img[:4])
}
