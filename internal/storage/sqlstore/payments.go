package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"libralend/internal/model"
)

const tablePayments = "payments"

var paymentColumns = []any{"id", "loan_id", "kind", "status", "amount", "session_token", "session_url", "created_at", "paid_at"}

type paymentRow struct {
	ID           uuid.UUID       `db:"id"`
	LoanID       uuid.UUID       `db:"loan_id"`
	Kind         string          `db:"kind"`
	Status       string          `db:"status"`
	Amount       decimal.Decimal `db:"amount"`
	SessionToken sql.NullString  `db:"session_token"`
	SessionURL   sql.NullString  `db:"session_url"`
	CreatedAt    time.Time       `db:"created_at"`
	PaidAt       sql.NullTime    `db:"paid_at"`
}

func (r paymentRow) toModel() model.Payment {
	p := model.Payment{
		ID:           r.ID,
		LoanID:       r.LoanID,
		Kind:         model.PaymentKind(r.Kind),
		Status:       model.PaymentStatus(r.Status),
		Amount:       r.Amount,
		SessionToken: r.SessionToken.String,
		SessionURL:   r.SessionURL.String,
		CreatedAt:    r.CreatedAt.UTC(),
	}
	if r.PaidAt.Valid {
		paid := r.PaidAt.Time.UTC()
		p.PaidAt = &paid
	}
	return p
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (q *queries) CreatePayment(ctx context.Context, payment *model.Payment) error {
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	stmt := q.dialect.Insert(tablePayments).Prepared(true).Rows(goqu.Record{
		"id":            payment.ID.String(),
		"loan_id":       payment.LoanID.String(),
		"kind":          string(payment.Kind),
		"status":        string(payment.Status),
		"amount":        payment.Amount.String(),
		"session_token": nullable(payment.SessionToken),
		"session_url":   nullable(payment.SessionURL),
		"created_at":    payment.CreatedAt,
	})
	_, err := q.exec(ctx, stmt, "insert payment")
	return err
}

func (q *queries) GetPayment(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	return q.getPayment(ctx, goqu.C("id").Eq(id.String()), "get payment")
}

func (q *queries) FindPaymentBySessionToken(ctx context.Context, token string) (*model.Payment, error) {
	return q.getPayment(ctx, goqu.C("session_token").Eq(token), "find payment by session")
}

func (q *queries) getPayment(ctx context.Context, where goqu.Expression, op string) (*model.Payment, error) {
	stmt := q.dialect.From(tablePayments).Prepared(true).
		Select(paymentColumns...).
		Where(where)

	var row paymentRow
	if err := q.get(ctx, &row, stmt, op); err != nil {
		return nil, err
	}
	p := row.toModel()
	return &p, nil
}

func (q *queries) ListPaymentsByLoan(ctx context.Context, loanID uuid.UUID) ([]model.Payment, error) {
	stmt := q.dialect.From(tablePayments).Prepared(true).
		Select(paymentColumns...).
		Where(goqu.C("loan_id").Eq(loanID.String())).
		Order(goqu.C("id").Asc())

	var rows []paymentRow
	if err := q.selectAll(ctx, &rows, stmt, "list payments"); err != nil {
		return nil, err
	}
	payments := make([]model.Payment, 0, len(rows))
	for _, r := range rows {
		payments = append(payments, r.toModel())
	}
	return payments, nil
}

func (q *queries) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, from, to model.PaymentStatus) (bool, error) {
	set := goqu.Record{"status": string(to)}
	if to == model.PaymentPaid {
		set["paid_at"] = time.Now().UTC()
	}
	stmt := q.dialect.Update(tablePayments).Prepared(true).
		Set(set).
		Where(
			goqu.C("id").Eq(id.String()),
			goqu.C("status").Eq(string(from)),
		)
	n, err := q.exec(ctx, stmt, "update payment status")
	return n == 1, err
}

// UpdatePaymentSession attaches a new gateway session to a payment that is
// not yet paid, as long as the stored session is still prevToken. An expired
// payment becomes pending again.
func (q *queries) UpdatePaymentSession(ctx context.Context, id uuid.UUID, prevToken, token, url string) (bool, error) {
	current := goqu.C("session_token").IsNull()
	if prevToken != "" {
		current = goqu.C("session_token").Eq(prevToken)
	}
	stmt := q.dialect.Update(tablePayments).Prepared(true).
		Set(goqu.Record{
			"session_token": nullable(token),
			"session_url":   nullable(url),
			"status":        string(model.PaymentPending),
		}).
		Where(
			goqu.C("id").Eq(id.String()),
			goqu.C("status").Neq(string(model.PaymentPaid)),
			current,
		)
	n, err := q.exec(ctx, stmt, "update payment session")
	return n == 1, err
}
