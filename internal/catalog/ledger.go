package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"libralend/internal/apperr"
	"libralend/internal/storage"
)

// Ledger owns the available-copies counter of every item. Each operation is
// a single conditional update inside the caller's transaction, so the count
// stays within [0, total] no matter how many checkouts race.
type Ledger struct {
	tracer   trace.Tracer
	reserved metric.Int64Counter
	released metric.Int64Counter
	refused  metric.Int64Counter
}

func NewLedger(meter metric.Meter) (*Ledger, error) {
	reserved, err := meter.Int64Counter("lending_inventory_reserved_total",
		metric.WithDescription("Copies taken by checkouts"))
	if err != nil {
		return nil, fmt.Errorf("failed to create reserved counter: %w", err)
	}
	released, err := meter.Int64Counter("lending_inventory_released_total",
		metric.WithDescription("Copies put back by returns"))
	if err != nil {
		return nil, fmt.Errorf("failed to create released counter: %w", err)
	}
	refused, err := meter.Int64Counter("lending_inventory_out_of_stock_total",
		metric.WithDescription("Checkouts refused for lack of copies"))
	if err != nil {
		return nil, fmt.Errorf("failed to create refused counter: %w", err)
	}
	return &Ledger{
		tracer:   otel.Tracer("libralend/catalog"),
		reserved: reserved,
		released: released,
		refused:  refused,
	}, nil
}

// Reserve takes one copy of the item.
func (l *Ledger) Reserve(ctx context.Context, tx storage.Tx, itemID uuid.UUID) error {
	ctx, span := l.tracer.Start(ctx, "ledger.reserve", trace.WithAttributes(attribute.String("item.id", itemID.String())))
	defer span.End()

	ok, err := tx.ReserveCopy(ctx, itemID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if ok {
		l.reserved.Add(ctx, 1)
		return nil
	}

	// Nothing was updated: either the item is gone or no copy is left.
	if _, err := tx.GetItem(ctx, itemID); err != nil {
		return err
	}
	l.refused.Add(ctx, 1)
	span.SetAttributes(attribute.Bool("ledger.out_of_stock", true))
	return apperr.New(apperr.KindOutOfStock, "no copies available")
}

// Release puts one copy back. Releasing more copies than exist is a
// bookkeeping error and is reported, not ignored.
func (l *Ledger) Release(ctx context.Context, tx storage.Tx, itemID uuid.UUID) error {
	ctx, span := l.tracer.Start(ctx, "ledger.release", trace.WithAttributes(attribute.String("item.id", itemID.String())))
	defer span.End()

	ok, err := tx.ReleaseCopy(ctx, itemID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !ok {
		return apperr.New(apperr.KindStorageConflict, "inventory already at total copies")
	}
	l.released.Add(ctx, 1)
	return nil
}
