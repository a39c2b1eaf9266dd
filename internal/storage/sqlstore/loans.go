package sqlstore

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"libralend/internal/model"
)

const tableLoans = "loans"

var loanColumns = []any{"id", "item_id", "borrower_id", "borrow_date", "expected_return_date", "actual_return_date"}

func (q *queries) CreateLoan(ctx context.Context, loan *model.Loan) error {
	record := goqu.Record{
		"id":                   loan.ID.String(),
		"item_id":              loan.ItemID.String(),
		"borrower_id":          loan.BorrowerID,
		"borrow_date":          loan.BorrowDate.String(),
		"expected_return_date": loan.ExpectedReturnDate.String(),
	}
	if loan.ActualReturnDate != nil {
		record["actual_return_date"] = loan.ActualReturnDate.String()
	}
	_, err := q.exec(ctx, q.dialect.Insert(tableLoans).Prepared(true).Rows(record), "insert loan")
	return err
}

func (q *queries) GetLoan(ctx context.Context, id uuid.UUID) (*model.Loan, error) {
	stmt := q.dialect.From(tableLoans).Prepared(true).
		Select(loanColumns...).
		Where(goqu.C("id").Eq(id.String()))

	var loan model.Loan
	if err := q.get(ctx, &loan, stmt, "get loan"); err != nil {
		return nil, err
	}
	return &loan, nil
}

func (q *queries) MarkLoanReturned(ctx context.Context, id uuid.UUID, date model.Date) (bool, error) {
	stmt := q.dialect.Update(tableLoans).Prepared(true).
		Set(goqu.Record{"actual_return_date": date.String()}).
		Where(
			goqu.C("id").Eq(id.String()),
			goqu.C("actual_return_date").IsNull(),
		)
	n, err := q.exec(ctx, stmt, "mark loan returned")
	return n == 1, err
}

func (q *queries) FindOverdueLoans(ctx context.Context, asOf model.Date) ([]model.OverdueLoan, error) {
	stmt := q.dialect.From(goqu.T(tableLoans).As("l")).Prepared(true).
		Join(goqu.T(tableItems).As("i"), goqu.On(goqu.I("i.id").Eq(goqu.I("l.item_id")))).
		Select(
			goqu.I("l.id").As("loan_id"),
			goqu.I("i.title").As("item_title"),
			goqu.I("l.borrower_id").As("borrower_id"),
			goqu.I("l.expected_return_date").As("expected_return_date"),
		).
		Where(
			goqu.I("l.actual_return_date").IsNull(),
			goqu.I("l.expected_return_date").Lt(asOf.String()),
		).
		Order(goqu.I("l.id").Asc())

	loans := []model.OverdueLoan{}
	if err := q.selectAll(ctx, &loans, stmt, "find overdue loans"); err != nil {
		return nil, err
	}
	return loans, nil
}
