// Package mail delivers the price-change report and branch labels to the
// branch managers.
package mail

import (
	"context"
	"sort"
	"time"

	"gopkg.in/gomail.v2"

	"pricetags/internal/core/apperror"
	"pricetags/pkg/logger"
)

// Body is the fixed message text sent to every branch.
const Body = `
Bom dia,

Segue em anexo o relatório de alterações de preços e as etiquetas correspondentes para sua filial.

Atenciosamente,
Sistema de Automação - Drogaria Cidade
`

// Subject returns the message subject for the report date.
func Subject(date time.Time) string {
	return "ALTERAÇÕES DE PREÇOS - " + date.Format("02/01/2006")
}

// Transport hands a composed message to a mail system.
type Transport interface {
	Deliver(ctx context.Context, to string, msg *gomail.Message) error
}

// Distributor sends each branch its labels together with the global report.
type Distributor struct {
	transport  Transport
	sender     string
	directory  map[int]string
	reportDate time.Time
}

// NewDistributor creates a Distributor over the branch directory.
func NewDistributor(transport Transport, sender string, directory map[int]string, reportDate time.Time) *Distributor {
	return &Distributor{
		transport:  transport,
		sender:     sender,
		directory:  directory,
		reportDate: reportDate,
	}
}

// Outcome counts what Send did.
type Outcome struct {
	Sent    int
	Skipped int
	Failed  int
}

// Send mails every directory branch that has a label file. Per-recipient
// failures are logged and do not stop the remaining deliveries.
func (d *Distributor) Send(ctx context.Context, reportPath string, labels map[int]string) error {
	_, err := d.SendAll(ctx, reportPath, labels)
	return err
}

// SendAll is Send with counters.
func (d *Distributor) SendAll(ctx context.Context, reportPath string, labels map[int]string) (Outcome, error) {
	var out Outcome

	branches := make([]int, 0, len(d.directory))
	for b := range d.directory {
		branches = append(branches, b)
	}
	sort.Ints(branches)

	for _, branch := range branches {
		if err := ctx.Err(); err != nil {
			return out, apperror.NewDelivery(d.directory[branch], err).WithDetail("branch", branch)
		}

		to := d.directory[branch]
		labelPath, ok := labels[branch]
		if !ok {
			logger.Info(ctx, "no labels for branch, skipping", "branch", branch)
			out.Skipped++
			continue
		}

		msg := d.compose(to, reportPath, labelPath)
		if err := d.transport.Deliver(ctx, to, msg); err != nil {
			logger.Error(ctx, "email delivery failed", "branch", branch, "to", to, "error", err)
			out.Failed++
			continue
		}
		logger.Info(ctx, "email sent", "branch", branch, "to", to, "labels", labelPath)
		out.Sent++
	}

	for branch := range labels {
		if _, ok := d.directory[branch]; !ok {
			logger.Warn(ctx, "labels generated for branch without recipient", "branch", branch)
		}
	}

	logger.Info(ctx, "distribution finished", "sent", out.Sent, "skipped", out.Skipped, "failed", out.Failed)
	return out, nil
}

func (d *Distributor) compose(to, reportPath, labelPath string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", d.sender)
	m.SetHeader("To", to)
	m.SetHeader("Subject", Subject(d.reportDate))
	m.SetBody("text/plain", Body)
	if reportPath != "" {
		m.Attach(reportPath)
	}
	m.Attach(labelPath)
	return m
}
