// Package main is the entry point of the price-label job. One invocation
// performs one run and exits.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pricetags/internal/config"
	"pricetags/internal/core/apperror"
	appctx "pricetags/internal/core/context"
	"pricetags/internal/domain/labels"
	"pricetags/internal/infrastructure/erp"
	"pricetags/internal/infrastructure/files"
	"pricetags/internal/infrastructure/mail"
	"pricetags/internal/pipeline"
	"pricetags/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	now := time.Now()

	cfg, cfgErr := config.Load(now)

	logCfg := logger.Config{Level: "info", Development: true}
	if cfg != nil {
		logCfg = logger.Config{Level: cfg.LogLevel, Development: cfg.Development}
	}
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runCtx := appctx.NewRunContext(now)
	ctx = appctx.WithRun(ctx, runCtx)
	ctx = logger.WithLogger(ctx, log.WithComponent("pricetags"))

	if cfgErr != nil {
		msg := "failed to load configuration"
		if apperror.IsConfig(cfgErr) {
			msg = "invalid configuration"
		}
		logger.Error(ctx, msg, "error", cfgErr)
		return 1
	}

	logger.Info(ctx, "starting price label run",
		"report_date", cfg.ReportDate.Format("02/01/2006"),
		"branches", len(cfg.Mail.Directory),
		"dry_run", cfg.DryRun,
	)

	p, closeFn, err := build(ctx, cfg)
	if err != nil {
		logger.Error(ctx, "failed to initialize", "error", err)
		return 1
	}
	defer closeFn()

	res, err := p.Run(ctx)
	if err != nil {
		logger.Error(ctx, "run failed", "error", err, "elapsed", time.Since(runCtx.StartedAt))
		return 1
	}

	logger.Info(ctx, "run finished",
		"products", res.Products,
		"branches", res.Branches,
		"label_files", len(res.LabelFiles),
		"sent", res.Sent,
		"elapsed", time.Since(runCtx.StartedAt),
	)
	return 0
}

// build wires the pipeline. The returned func releases the browser.
func build(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, func(), error) {
	work, err := files.NewWorkDir(cfg.WorkDir)
	if err != nil {
		return nil, nil, err
	}

	var distributor pipeline.Distributor
	if !cfg.DryRun {
		transport, err := newTransport(ctx, cfg.Mail)
		if err != nil {
			return nil, nil, err
		}
		distributor = mail.NewDistributor(transport, cfg.Mail.Sender, cfg.Mail.Directory, cfg.ReportDate)
	}

	session, err := erp.NewSession(ctx, erp.Options{
		LoginURL:        cfg.ERP.LoginURL,
		Username:        cfg.ERP.Username,
		Password:        cfg.ERP.Password,
		Department:      cfg.ERP.Department,
		ReportDate:      cfg.ReportDate,
		Headless:        cfg.Browser.Headless,
		WindowWidth:     cfg.Browser.WindowWidth,
		WindowHeight:    cfg.Browser.WindowHeight,
		Timeout:         cfg.Browser.Timeout,
		DownloadTimeout: cfg.Browser.DownloadTimeout,
	}, work)
	if err != nil {
		return nil, nil, err
	}

	generator := labels.NewGenerator(labels.Size{WidthCM: cfg.Label.WidthCM, HeightCM: cfg.Label.HeightCM}, work.Path)
	p := pipeline.New(work, files.NewArchiver(work, cfg.ArchiveDir), session, generator, distributor)

	return p, func() { _ = session.Close() }, nil
}

func newTransport(ctx context.Context, cfg config.MailConfig) (mail.Transport, error) {
	switch cfg.Transport {
	case config.TransportSMTP:
		return mail.NewSMTPTransport(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword), nil
	default:
		return mail.NewGmailTransport(ctx, []byte(cfg.ServiceAccountJSON), cfg.Sender)
	}
}
