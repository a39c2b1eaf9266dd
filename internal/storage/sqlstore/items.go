package sqlstore

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"libralend/internal/model"
)

const tableItems = "items"

var itemColumns = []any{"id", "title", "author", "cover", "total_copies", "available", "daily_rate"}

func (q *queries) CreateItem(ctx context.Context, item *model.Item) error {
	stmt := q.dialect.Insert(tableItems).Prepared(true).Rows(goqu.Record{
		"id":           item.ID.String(),
		"title":        item.Title,
		"author":       item.Author,
		"cover":        string(item.Cover),
		"total_copies": item.TotalCopies,
		"available":    item.Available,
		"daily_rate":   item.DailyRate.String(),
	})
	_, err := q.exec(ctx, stmt, "insert item")
	return err
}

func (q *queries) GetItem(ctx context.Context, id uuid.UUID) (*model.Item, error) {
	stmt := q.dialect.From(tableItems).Prepared(true).
		Select(itemColumns...).
		Where(goqu.C("id").Eq(id.String()))

	var item model.Item
	if err := q.get(ctx, &item, stmt, "get item"); err != nil {
		return nil, err
	}
	return &item, nil
}

func (q *queries) ReserveCopy(ctx context.Context, itemID uuid.UUID) (bool, error) {
	stmt := q.dialect.Update(tableItems).Prepared(true).
		Set(goqu.Record{"available": goqu.L("available - 1")}).
		Where(
			goqu.C("id").Eq(itemID.String()),
			goqu.C("available").Gt(0),
		)
	n, err := q.exec(ctx, stmt, "reserve copy")
	return n == 1, err
}

func (q *queries) ReleaseCopy(ctx context.Context, itemID uuid.UUID) (bool, error) {
	stmt := q.dialect.Update(tableItems).Prepared(true).
		Set(goqu.Record{"available": goqu.L("available + 1")}).
		Where(
			goqu.C("id").Eq(itemID.String()),
			goqu.C("available").Lt(goqu.I("total_copies")),
		)
	n, err := q.exec(ctx, stmt, "release copy")
	return n == 1, err
}

func (q *queries) AdjustCopies(ctx context.Context, itemID uuid.UUID, totalCopies int) (bool, error) {
	stmt := q.dialect.Update(tableItems).Prepared(true).
		Set(goqu.Record{
			"total_copies": totalCopies,
			"available":    goqu.L("available + (? - total_copies)", totalCopies),
		}).
		Where(
			goqu.C("id").Eq(itemID.String()),
			goqu.L("available + (? - total_copies) >= 0", totalCopies),
		)
	n, err := q.exec(ctx, stmt, "adjust copies")
	return n == 1, err
}
