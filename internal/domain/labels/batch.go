package labels

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	appctx "pricetags/internal/core/context"
	"pricetags/internal/domain/product"
	"pricetags/internal/domain/stock"
	"pricetags/pkg/logger"
)

// TimestampLayout is embedded in every generated file name.
const TimestampLayout = "20060102_150405"

// Batch is the set of labels printed for one branch.
type Batch struct {
	Branch int
	Labels []Label
	Path   string
}

// FileName returns the label file name for a branch, e.g. etiquetas_F01_20250101_080000.pdf.
func FileName(branch int, now time.Time) string {
	return fmt.Sprintf("etiquetas_F%02d_%s.pdf", branch, now.Format(TimestampLayout))
}

// Batches filters changes by each branch's stock, keeping report order.
// Branches without any match are dropped.
func Batches(changes []product.Change, index stock.Index, dir string, now time.Time) []Batch {
	var out []Batch
	for _, branch := range index.Branches() {
		var items []Label
		for _, c := range changes {
			if !index.Contains(branch, c.Code) {
				continue
			}
			items = append(items, Label{
				Code:        c.Code,
				Description: c.Description,
				Price:       FormatPrice(c.Price),
				EAN:         c.EAN,
			})
		}
		if len(items) == 0 {
			continue
		}
		out = append(out, Batch{
			Branch: branch,
			Labels: items,
			Path:   filepath.Join(dir, FileName(branch, now)),
		})
	}
	return out
}

// Generator writes one label PDF per branch.
type Generator struct {
	renderer *Renderer
	dir      string
	now      func() time.Time
}

// NewGenerator creates a Generator writing into dir.
func NewGenerator(size Size, dir string) *Generator {
	return &Generator{
		renderer: NewRenderer(size),
		dir:      dir,
		now:      time.Now,
	}
}

// Generate renders every non-empty branch batch and returns branch -> file path.
func (g *Generator) Generate(ctx context.Context, changes []product.Change, index stock.Index) (map[int]string, error) {
	logger.Info(ctx, "stock index loaded", "branches", index.Len())

	batches := Batches(changes, index, g.dir, g.now())
	matched := make(map[int]int, len(batches))
	for _, b := range batches {
		matched[b.Branch] = len(b.Labels)
	}

	files := make(map[int]string, len(batches))
	for _, branch := range index.Branches() {
		bctx := appctx.WithBranch(ctx, branch)
		logger.Info(bctx, "processing branch", "stock_codes", index.Size(branch), "changed_products", matched[branch])
		if matched[branch] == 0 {
			logger.Warn(bctx, "no changed product in this branch, skipping")
		}
	}

	for _, b := range batches {
		bctx := appctx.WithBranch(ctx, b.Branch)

		pages, err := g.renderer.Render(bctx, b.Labels, b.Path)
		if err != nil {
			return nil, fmt.Errorf("render labels for branch %d: %w", b.Branch, err)
		}
		logger.Info(bctx, "labels generated", "file", b.Path, "pages", pages)
		files[b.Branch] = b.Path
	}

	return files, nil
}
