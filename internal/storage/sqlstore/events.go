package sqlstore

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"libralend/internal/model"
)

const tableEvents = "events"

type eventRow struct {
	AggregateID   uuid.UUID `db:"aggregate_id"`
	AggregateType string    `db:"aggregate_type"`
	EventType     string    `db:"event_type"`
	Payload       []byte    `db:"payload"`
	Version       int       `db:"version"`
	CreatedAt     time.Time `db:"created_at"`
}

// AppendEvent stores event with the next version of its aggregate. Two
// writers racing for the same version collide on UNIQUE(aggregate_id, version)
// and the loser gets a storage conflict.
func (q *queries) AppendEvent(ctx context.Context, event model.Event) (int, error) {
	var current int
	maxStmt := q.dialect.From(tableEvents).Prepared(true).
		Select(goqu.COALESCE(goqu.MAX("version"), 0)).
		Where(goqu.C("aggregate_id").Eq(event.AggregateID.String()))
	if err := q.get(ctx, &current, maxStmt, "read event version"); err != nil {
		return 0, err
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	version := current + 1
	stmt := q.dialect.Insert(tableEvents).Prepared(true).Rows(goqu.Record{
		"aggregate_id":   event.AggregateID.String(),
		"aggregate_type": event.AggregateType,
		"event_type":     event.EventType,
		"payload":        string(event.Payload),
		"version":        version,
		"created_at":     event.CreatedAt,
	})
	if _, err := q.exec(ctx, stmt, "append event"); err != nil {
		return 0, err
	}
	return version, nil
}

func (q *queries) LoadEvents(ctx context.Context, aggregateID uuid.UUID) ([]model.Event, error) {
	stmt := q.dialect.From(tableEvents).Prepared(true).
		Select("aggregate_id", "aggregate_type", "event_type", "payload", "version", "created_at").
		Where(goqu.C("aggregate_id").Eq(aggregateID.String())).
		Order(goqu.C("version").Asc())

	var rows []eventRow
	if err := q.selectAll(ctx, &rows, stmt, "load events"); err != nil {
		return nil, err
	}
	events := make([]model.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, model.Event{
			AggregateID:   r.AggregateID,
			AggregateType: r.AggregateType,
			EventType:     r.EventType,
			Payload:       r.Payload,
			Version:       r.Version,
			CreatedAt:     r.CreatedAt.UTC(),
		})
	}
	return events, nil
}
