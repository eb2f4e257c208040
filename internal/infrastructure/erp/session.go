// Package erp drives the web ERP through a headless Chrome session to export
// the reports the label run needs.
package erp

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"pricetags/internal/core/apperror"
	"pricetags/internal/infrastructure/files"
	"pricetags/pkg/logger"
)

const (
	// LookupTimeout bounds the product screen lookup of a single code.
	LookupTimeout = 30 * time.Second

	downloadPoll = 500 * time.Millisecond
	idlePoll     = 250 * time.Millisecond
)

// Options configures a Session.
type Options struct {
	LoginURL   string
	Username   string
	Password   string
	Department string

	// ReportDate is written into both ends of the price-change date range.
	ReportDate time.Time

	Headless        bool
	WindowWidth     int
	WindowHeight    int
	Timeout         time.Duration
	DownloadTimeout time.Duration
}

// Session is one authenticated browser session. It is not safe for
// concurrent use.
type Session struct {
	opts Options
	work *files.WorkDir

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	closeOnce sync.Once
}

// NewSession starts Chrome with downloads routed into the work directory.
// The parent context bounds the browser lifetime.
func NewSession(ctx context.Context, opts Options, work *files.WorkDir) (*Session, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	log := logger.FromContext(ctx)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) { log.Debugf(format, args...) }),
	)

	s := &Session{
		opts:          opts,
		work:          work,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}

	err := chromedp.Run(browserCtx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(work.Path).
			WithEventsEnabled(true),
	)
	if err != nil {
		s.Close()
		return nil, apperror.NewAcquisition("start browser", err)
	}

	logger.Info(ctx, "browser started", "headless", opts.Headless, "download_dir", work.Path)
	return s, nil
}

// Close shuts the browser down. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.browserCancel != nil {
			s.browserCancel()
		}
		if s.allocCancel != nil {
			s.allocCancel()
		}
	})
	return nil
}

// run executes actions on the browser tab, bounded by the step timeout and
// by the caller's context.
func (s *Session) run(ctx context.Context, step string, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.browserCtx, s.opts.Timeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return apperror.NewAcquisition(step, ctx.Err())
		}
		return apperror.NewAcquisition(step, err)
	}
	return nil
}

// Authenticate signs into the ERP.
func (s *Session) Authenticate(ctx context.Context) error {
	err := s.run(ctx, "login",
		chromedp.Navigate(s.opts.LoginURL),
		chromedp.WaitVisible(selUser, chromedp.ByQuery),
		chromedp.SendKeys(selUser, s.opts.Username, chromedp.ByQuery),
		chromedp.SendKeys(selPassword, s.opts.Password, chromedp.ByQuery),
		chromedp.Click(selLoginButton, chromedp.ByQuery),
		waitIdle(),
	)
	if err != nil {
		return err
	}
	logger.Info(ctx, "authenticated", "user", s.opts.Username)
	return nil
}

// DownloadPriceChangeReport exports the price-change report for the report
// date as PDF and as spreadsheet.
func (s *Session) DownloadPriceChangeReport(ctx context.Context) (reportPath, tablePath string, err error) {
	date := s.opts.ReportDate.Format("02/01/2006")

	err = s.run(ctx, "open price-change report",
		clickMenu(menuPriceChange...),
		chromedp.WaitVisible(selDepartment, chromedp.ByQuery),
		chromedp.SendKeys(selDepartment, s.opts.Department+"\r", chromedp.ByQuery),
		waitIdle(),
		chromedp.Click(selConsiderDepartment, chromedp.ByQuery),
		chromedp.Click(tabPriceFilters, chromedp.BySearch),
		chromedp.SetValue(selDateFrom, date, chromedp.ByQuery),
		chromedp.SetValue(selDateTo, date, chromedp.ByQuery),
		chromedp.Click(selLastChange, chromedp.ByQuery),
		chromedp.Click(selChangedProducts, chromedp.ByQuery),
		chromedp.Click(selPriceChangeType, chromedp.ByQuery),
	)
	if err != nil {
		return "", "", err
	}

	reportPath, err = s.export(ctx, "price-change pdf", "pdf")
	if err != nil {
		return "", "", err
	}

	if err := s.closeExtraTabs(ctx); err != nil {
		logger.Warn(ctx, "could not close report tabs", "error", err)
	}

	if err := s.run(ctx, "select spreadsheet output", chromedp.Click(selSpreadsheetOutput, chromedp.ByQuery)); err != nil {
		return "", "", err
	}
	tablePath, err = s.export(ctx, "price-change spreadsheet", "xls")
	if err != nil {
		return "", "", err
	}

	logger.Info(ctx, "price-change report downloaded", "date", date, "report", reportPath, "table", tablePath)
	return reportPath, tablePath, nil
}

// EnrichProducts looks every code up on the product screen and returns EANs
// and long descriptions in input order. A code whose lookup fails or times out
// yields empty strings and the screen is reloaded before the next one.
func (s *Session) EnrichProducts(ctx context.Context, codes []int) ([]string, []string, error) {
	if err := s.run(ctx, "open product screen", clickMenu(menuProducts...), chromedp.WaitVisible(selProductCode, chromedp.ByQuery)); err != nil {
		return nil, nil, err
	}

	eans := make([]string, 0, len(codes))
	descriptions := make([]string, 0, len(codes))

	for i, code := range codes {
		if err := ctx.Err(); err != nil {
			return nil, nil, apperror.NewAcquisition("enrich products", err)
		}

		ean, desc, err := s.lookup(ctx, code)
		if err != nil {
			logger.Warn(ctx, "product lookup failed", "code", code, "error", err)
			eans = append(eans, "")
			descriptions = append(descriptions, "")

			if rerr := s.run(ctx, "reload product screen", chromedp.Reload(), waitIdle(), chromedp.WaitVisible(selProductCode, chromedp.ByQuery)); rerr != nil {
				logger.Warn(ctx, "product screen reload failed", "error", rerr)
			}
			continue
		}

		eans = append(eans, ean)
		descriptions = append(descriptions, desc)
		logger.Debug(ctx, "product enriched", "code", code, "ean", ean, "n", i+1, "total", len(codes))
	}

	logger.Info(ctx, "products enriched", "count", len(codes))
	return eans, descriptions, nil
}

func (s *Session) lookup(ctx context.Context, code int) (ean, description string, err error) {
	lookupCtx, cancel := context.WithTimeout(s.browserCtx, LookupTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err = chromedp.Run(lookupCtx,
		chromedp.SetValue(selProductCode, "", chromedp.ByQuery),
		chromedp.SendKeys(selProductCode, strconv.Itoa(code)+"\r", chromedp.ByQuery),
		waitIdle(),
		chromedp.WaitVisible(selMainBarcode, chromedp.ByQuery),
		chromedp.Value(selMainBarcode, &ean, chromedp.ByQuery),
		chromedp.Value(selLongDescription, &description, chromedp.ByQuery),
	)
	if err != nil {
		return "", "", err
	}
	return ean, description, nil
}

// DownloadStockReport exports stock grouped by branch for the codes.
func (s *Session) DownloadStockReport(ctx context.Context, codes []int) (string, error) {
	err := s.run(ctx, "open stock report",
		clickMenu(menuStock...),
		chromedp.WaitVisible(selGroupByBranch, chromedp.ByQuery),
		chromedp.Click(selGroupByBranch, chromedp.ByQuery),
		chromedp.Click(tabStockProducts, chromedp.BySearch),
		chromedp.WaitVisible(selStockCode, chromedp.ByQuery),
	)
	if err != nil {
		return "", err
	}

	for _, code := range codes {
		if err := s.run(ctx, "add stock code",
			chromedp.SendKeys(selStockCode, strconv.Itoa(code)+"\r", chromedp.ByQuery),
			waitIdle(),
		); err != nil {
			return "", err
		}
	}

	err = s.run(ctx, "select stock output",
		chromedp.Click(tabStockOutput, chromedp.BySearch),
		chromedp.Click(selSpreadsheetOutput, chromedp.ByQuery),
	)
	if err != nil {
		return "", err
	}

	path, err := s.export(ctx, "stock spreadsheet", "xls")
	if err != nil {
		return "", err
	}
	logger.Info(ctx, "stock report downloaded", "path", path, "codes", len(codes))
	return path, nil
}

// export triggers the report and waits for the file with ext.
func (s *Session) export(ctx context.Context, step, ext string) (string, error) {
	started := time.Now()
	if err := s.run(ctx, step, chromedp.Click(selRunReport, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return s.work.WaitForDownload(ctx, ext, started, s.opts.DownloadTimeout, downloadPoll)
}

// closeExtraTabs closes every page target except the session's own tab.
func (s *Session) closeExtraTabs(ctx context.Context) error {
	c := chromedp.FromContext(s.browserCtx)
	if c == nil || c.Target == nil {
		return nil
	}
	own := c.Target.TargetID

	targets, err := chromedp.Targets(s.browserCtx)
	if err != nil {
		return fmt.Errorf("list targets: %w", err)
	}

	for _, t := range targets {
		if t.Type != "page" || t.TargetID == own {
			continue
		}
		if err := chromedp.Run(s.browserCtx, target.CloseTarget(t.TargetID)); err != nil {
			logger.Warn(ctx, "close tab failed", "target", t.TargetID, "error", err)
		}
	}
	return nil
}
