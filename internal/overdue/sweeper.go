// Package overdue scans for loans past their expected return date and
// reports them in one consolidated notification.
package overdue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"libralend/internal/model"
	"libralend/internal/notify"
	"libralend/internal/storage"
)

const (
	noneMessage   = "🎉 There are no overdue borrow today.!"
	headerMessage = "🔔 ATTENTION! Overdue borrow:\n"
)

// Report is the outcome of one sweep.
type Report struct {
	AsOf    model.Date          `json:"as_of"`
	Loans   []model.OverdueLoan `json:"loans"`
	Message string              `json:"message"`
}

// Sweeper reads outstanding loans and never writes to the repository.
type Sweeper struct {
	repo   storage.Tx
	sink   notify.Sink
	now    func() time.Time
	log    *slog.Logger
	tracer trace.Tracer
	found  metric.Int64Gauge
}

func NewSweeper(repo storage.Tx, sink notify.Sink, meter metric.Meter, now func() time.Time, log *slog.Logger) (*Sweeper, error) {
	found, err := meter.Int64Gauge("lending_overdue_loans",
		metric.WithDescription("Outstanding loans past their expected return date at the last sweep"))
	if err != nil {
		return nil, fmt.Errorf("failed to create overdue gauge: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	return &Sweeper{
		repo:   repo,
		sink:   sink,
		now:    now,
		log:    log,
		tracer: otel.Tracer("libralend/overdue"),
		found:  found,
	}, nil
}

// RunOnce scans for overdue loans as of today and sends exactly one message.
func (s *Sweeper) RunOnce(ctx context.Context) (*Report, error) {
	ctx, span := s.tracer.Start(ctx, "overdue.sweep")
	defer span.End()

	asOf := model.DateOf(s.now())
	loans, err := s.repo.FindOverdueLoans(ctx, asOf)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to find overdue loans: %w", err)
	}
	span.SetAttributes(attribute.Int("overdue.count", len(loans)))
	s.found.Record(ctx, int64(len(loans)))

	report := &Report{AsOf: asOf, Loans: loans, Message: FormatMessage(loans)}
	s.sink.Send(ctx, report.Message)
	s.log.Info("overdue sweep finished", "as_of", asOf.String(), "overdue", len(loans))
	return report, nil
}

// Run sweeps once at start and then every interval until ctx is cancelled.
// A failed sweep is logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("overdue sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// FormatMessage renders the consolidated notification in scan order. The
// header is followed by a blank line.
func FormatMessage(loans []model.OverdueLoan) string {
	if len(loans) == 0 {
		return noneMessage
	}
	var b strings.Builder
	b.WriteString(headerMessage)
	for _, l := range loans {
		fmt.Fprintf(&b, "\n• ID: %s, Book: %s, User: %s", l.LoanID, l.ItemTitle, l.BorrowerID)
	}
	return b.String()
}
