// Package pipeline runs one label job end to end: acquire the reports, build
// the branch index, render labels and distribute them.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pricetags/internal/core/apperror"
	appctx "pricetags/internal/core/context"
	"pricetags/internal/domain/product"
	"pricetags/internal/domain/stock"
	"pricetags/internal/infrastructure/files"
	"pricetags/internal/infrastructure/spreadsheet"
	"pricetags/pkg/logger"
)

var tracer = otel.Tracer("pricetags/pipeline")

// Header rows (0-based) of the ERP exports.
const (
	PriceChangeHeaderRow = 7
	StockHeaderRow       = 11
)

// Acquirer fetches reports from the ERP.
type Acquirer interface {
	Authenticate(ctx context.Context) error
	DownloadPriceChangeReport(ctx context.Context) (reportPath, tablePath string, err error)
	// EnrichProducts returns EANs and long descriptions aligned with codes;
	// failed lookups yield empty strings.
	EnrichProducts(ctx context.Context, codes []int) (eans, descriptions []string, err error)
	DownloadStockReport(ctx context.Context, codes []int) (tablePath string, err error)
	Close() error
}

// Distributor delivers the report and branch label files.
type Distributor interface {
	Send(ctx context.Context, reportPath string, labels map[int]string) error
}

// LabelGenerator renders branch label files.
type LabelGenerator interface {
	Generate(ctx context.Context, changes []product.Change, index stock.Index) (map[int]string, error)
}

// Result summarizes a run.
type Result struct {
	ReportPath  string
	ProductList string
	Products    int
	Branches    int
	LabelFiles  map[int]string
	Sent        bool
}

// Pipeline wires the collaborators of a run.
type Pipeline struct {
	work      *files.WorkDir
	archiver  *files.Archiver
	acquirer  Acquirer
	generator LabelGenerator
	// distributor is nil on dry runs.
	distributor Distributor
	now         func() time.Time
}

// New creates a Pipeline. A nil distributor disables sending.
func New(work *files.WorkDir, archiver *files.Archiver, acquirer Acquirer, generator LabelGenerator, distributor Distributor) *Pipeline {
	return &Pipeline{
		work:        work,
		archiver:    archiver,
		acquirer:    acquirer,
		generator:   generator,
		distributor: distributor,
		now:         time.Now,
	}
}

// Run executes the job. The acquirer is closed on every path.
func (p *Pipeline) Run(ctx context.Context) (res *Result, err error) {
	ctx, span := tracer.Start(ctx, "run")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	defer p.closeAcquirer(ctx)

	res = &Result{}

	if err := p.stage(ctx, "prepare", func(ctx context.Context) error {
		return p.work.Clean(ctx)
	}); err != nil {
		return nil, err
	}

	var changes []product.Change
	err = p.stage(ctx, "price-change", func(ctx context.Context) error {
		if err := p.acquirer.Authenticate(ctx); err != nil {
			return err
		}

		reportPath, tablePath, err := p.acquirer.DownloadPriceChangeReport(ctx)
		if err != nil {
			return err
		}
		res.ReportPath = reportPath

		table, err := spreadsheet.ReadFile(tablePath, PriceChangeHeaderRow)
		if err != nil {
			return err
		}
		changes, err = product.FromTable(ctx, table)
		if err != nil {
			return err
		}

		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("products", len(changes)))
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Products = len(changes)
	if len(changes) == 0 {
		logger.Warn(ctx, "no price changes in the report, nothing to do")
		return res, nil
	}

	productCodes := product.Codes(changes)
	err = p.stage(ctx, "enrich", func(ctx context.Context) error {
		eans, descriptions, err := p.acquirer.EnrichProducts(ctx, productCodes)
		if err != nil {
			return err
		}
		if err := product.ApplyEnrichment(changes, eans, descriptions); err != nil {
			return err
		}

		res.ProductList, err = p.archiver.Save(ctx, product.Records(changes), p.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	var index stock.Index
	err = p.stage(ctx, "stock", func(ctx context.Context) error {
		tablePath, err := p.acquirer.DownloadStockReport(ctx, productCodes)
		if err != nil {
			return err
		}
		p.closeAcquirer(ctx)

		table, err := spreadsheet.ReadFile(tablePath, StockHeaderRow)
		if err != nil {
			return err
		}
		index, err = stock.Parse(table)
		if err != nil {
			return err
		}

		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("branches", index.Len()))
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Branches = index.Len()

	err = p.stage(ctx, "labels", func(ctx context.Context) error {
		generated, err := p.generator.Generate(ctx, changes, index)
		if err != nil {
			return err
		}
		res.LabelFiles = generated
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("label_files", len(generated)))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(res.LabelFiles) == 0 {
		logger.Warn(ctx, "no branch stocks any changed product, nothing to send")
		return res, nil
	}

	if p.distributor == nil {
		logger.Info(ctx, "dry run, skipping distribution", "label_files", len(res.LabelFiles))
		return res, nil
	}

	err = p.stage(ctx, "distribute", func(ctx context.Context) error {
		return p.distributor.Send(ctx, res.ReportPath, res.LabelFiles)
	})
	if err != nil {
		return nil, err
	}
	res.Sent = true

	return res, nil
}

// stage runs fn inside a span and a stage-tagged context. A panic in fn is
// converted into an internal error.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	ctx = appctx.WithStage(ctx, name)
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attribute.String("stage", name)))
	defer span.End()

	if cerr := ctx.Err(); cerr != nil {
		return apperror.NewInternal(fmt.Errorf("run canceled before %s: %w", name, cerr))
	}

	started := time.Now()
	logger.Info(ctx, "stage started")

	defer func() {
		if r := recover(); r != nil {
			err = apperror.NewInternal(fmt.Errorf("panic in stage %s: %v", name, r))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error(ctx, "stage failed", "error", err, "elapsed", time.Since(started))
			return
		}
		logger.Info(ctx, "stage finished", "elapsed", time.Since(started))
	}()

	return fn(ctx)
}

func (p *Pipeline) closeAcquirer(ctx context.Context) {
	if err := p.acquirer.Close(); err != nil {
		logger.Warn(ctx, "closing acquisition session failed", "error", err)
	}
}
