// Package product holds the products whose sell price changed in the report period.
package product

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"pricetags/internal/core/apperror"
	"pricetags/internal/core/types"
	"pricetags/pkg/logger"
)

// Price-change export columns (after trimming).
const (
	ColumnCode        = "Código"
	ColumnDescription = "Descrição Produto"
	ColumnPrice       = "Preço Venda Atual"
)

// Change is one row of the price-change report.
type Change struct {
	Code int

	// Description starts as the short report name and is replaced by the long
	// catalog description during enrichment.
	Description string

	Price types.Money

	// EAN is the main barcode; may be empty.
	EAN string
}

// Table is the tabular view of the price-change export.
type Table interface {
	ColumnIndex(name string) (int, bool)
	Len() int
	Cell(row, col int) string
}

// FromTable maps the price-change export into Changes. Rows with an empty code
// are discarded; rows with an unreadable code or price are logged and skipped.
func FromTable(ctx context.Context, t Table) ([]Change, error) {
	codeCol, err := requireColumn(t, ColumnCode)
	if err != nil {
		return nil, err
	}
	descCol, err := requireColumn(t, ColumnDescription)
	if err != nil {
		return nil, err
	}
	priceCol, err := requireColumn(t, ColumnPrice)
	if err != nil {
		return nil, err
	}

	changes := make([]Change, 0, t.Len())
	seen := make(map[int]struct{}, t.Len())
	for i := 0; i < t.Len(); i++ {
		raw := strings.TrimSpace(t.Cell(i, codeCol))
		if raw == "" || strings.EqualFold(raw, "nan") {
			continue
		}

		code, err := ParseCode(raw)
		if err != nil {
			logger.Warn(ctx, "skipping row with invalid code", "row", i, "code", raw)
			continue
		}
		if _, dup := seen[code]; dup {
			logger.Warn(ctx, "skipping duplicated product code", "row", i, "code", code)
			continue
		}

		price, err := types.ParseMoney(t.Cell(i, priceCol))
		if err != nil || price.IsNegative() {
			logger.Warn(ctx, "skipping row with invalid price", "row", i, "code", code, "price", t.Cell(i, priceCol))
			continue
		}

		seen[code] = struct{}{}
		changes = append(changes, Change{
			Code:        code,
			Description: strings.TrimSpace(t.Cell(i, descCol)),
			Price:       price,
		})
	}

	return changes, nil
}

func requireColumn(t Table, name string) (int, error) {
	idx, ok := t.ColumnIndex(name)
	if !ok {
		return 0, apperror.NewMissingColumn(name)
	}
	return idx, nil
}

// ParseCode reads a product code written as "100" or "100.0".
func ParseCode(s string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("parse code %q: %w", s, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("code %q out of range", s)
	}
	return int(f), nil
}

// Codes returns the product codes in report order.
func Codes(changes []Change) []int {
	out := make([]int, len(changes))
	for i, c := range changes {
		out[i] = c.Code
	}
	return out
}

// ApplyEnrichment stores EANs and long descriptions aligned positionally with
// changes. An empty description keeps the short one from the report.
func ApplyEnrichment(changes []Change, eans, descriptions []string) error {
	if len(eans) != len(changes) || len(descriptions) != len(changes) {
		return apperror.NewInternal(fmt.Errorf(
			"enrichment size mismatch: %d products, %d eans, %d descriptions",
			len(changes), len(eans), len(descriptions),
		))
	}

	for i := range changes {
		changes[i].EAN = strings.TrimSpace(eans[i])
		if d := strings.TrimSpace(descriptions[i]); d != "" {
			changes[i].Description = d
		}
	}
	return nil
}

// Records renders changes as archive rows, header first.
func Records(changes []Change) [][]string {
	records := make([][]string, 0, len(changes)+1)
	records = append(records, []string{"Código", "Descrição Completa", "Preço", "EAN"})
	for _, c := range changes {
		records = append(records, []string{
			strconv.Itoa(c.Code),
			c.Description,
			strings.Replace(c.Price.StringFixed(2), ".", ",", 1),
			c.EAN,
		})
	}
	return records
}
