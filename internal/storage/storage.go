// Package storage defines the repository consumed by the lending core.
//
// Every method of Tx observes and mutates state within the transaction it was
// handed by WithTransaction; the Repository itself also satisfies Tx for
// single-statement reads outside a transaction. Missing rows are reported as
// apperr.KindNotFound and constraint violations as apperr.KindStorageConflict.
package storage

import (
	"context"

	"github.com/google/uuid"

	"libralend/internal/model"
)

// Tx is the transaction-scoped view of the repository.
type Tx interface {
	CreateItem(ctx context.Context, item *model.Item) error
	GetItem(ctx context.Context, id uuid.UUID) (*model.Item, error)
	// ReserveCopy decrements the available count if it is positive and
	// reports whether a copy was taken.
	ReserveCopy(ctx context.Context, itemID uuid.UUID) (bool, error)
	// ReleaseCopy increments the available count if it is below the total
	// and reports whether a copy was put back.
	ReleaseCopy(ctx context.Context, itemID uuid.UUID) (bool, error)
	// AdjustCopies sets the total and shifts the available count by the same
	// delta, refusing to drive it negative.
	AdjustCopies(ctx context.Context, itemID uuid.UUID, totalCopies int) (bool, error)

	CreateLoan(ctx context.Context, loan *model.Loan) error
	GetLoan(ctx context.Context, id uuid.UUID) (*model.Loan, error)
	// MarkLoanReturned sets actual_return_date only while it is still null.
	MarkLoanReturned(ctx context.Context, id uuid.UUID, date model.Date) (bool, error)
	FindOverdueLoans(ctx context.Context, asOf model.Date) ([]model.OverdueLoan, error)

	CreatePayment(ctx context.Context, payment *model.Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	ListPaymentsByLoan(ctx context.Context, loanID uuid.UUID) ([]model.Payment, error)
	FindPaymentBySessionToken(ctx context.Context, token string) (*model.Payment, error)
	// UpdatePaymentStatus moves a payment from one status to another and
	// reports whether the row was in the expected status.
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, from, to model.PaymentStatus) (bool, error)
	// UpdatePaymentSession replaces the session of an unpaid payment only
	// while it still holds prevToken (empty for none), and reports whether
	// the swap happened.
	UpdatePaymentSession(ctx context.Context, id uuid.UUID, prevToken, token, url string) (bool, error)

	// AppendEvent assigns the next version for the aggregate and stores the event.
	AppendEvent(ctx context.Context, event model.Event) (int, error)
	LoadEvents(ctx context.Context, aggregateID uuid.UUID) ([]model.Event, error)
}

// Repository is durable storage with all-or-nothing transactions.
type Repository interface {
	Tx
	// WithTransaction runs fn in a transaction that commits only if fn returns nil.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
