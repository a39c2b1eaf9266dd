// internal/circulation/domain.go
package circulation

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"libralend/internal/model"
)

// Event types appended to a loan's history.
const (
	EventLoanCreated  = "LoanCreated"
	EventLoanReturned = "LoanReturned"
	EventFineAssessed = "FineAssessed"
)

// CheckoutRequest is the borrower's input for a new loan.
type CheckoutRequest struct {
	ItemID             uuid.UUID  `json:"item_id" validate:"required"`
	ExpectedReturnDate model.Date `json:"expected_return_date" validate:"required"`
}

// CheckoutResult is the new loan and the rental payment the borrower is
// redirected to settle.
type CheckoutResult struct {
	Loan    *model.Loan    `json:"loan"`
	Payment *model.Payment `json:"payment"`
}

// ReturnResult is the closed loan and the fine raised for it, if any.
type ReturnResult struct {
	Loan *model.Loan    `json:"loan"`
	Fine *model.Payment `json:"fine,omitempty"`
}

// LoanDetail is a loan with every payment attached to it.
type LoanDetail struct {
	Loan     *model.Loan     `json:"loan"`
	Payments []model.Payment `json:"payments"`
}

// LoanCreatedEvent is recorded when an item is checked out.
type LoanCreatedEvent struct {
	LoanID             uuid.UUID       `json:"loan_id"`
	ItemID             uuid.UUID       `json:"item_id"`
	BorrowerID         string          `json:"borrower_id"`
	BorrowDate         model.Date      `json:"borrow_date"`
	ExpectedReturnDate model.Date      `json:"expected_return_date"`
	PaymentID          uuid.UUID       `json:"payment_id"`
	Amount             decimal.Decimal `json:"amount"`
}

// LoanReturnedEvent is recorded when an item is returned.
type LoanReturnedEvent struct {
	LoanID     uuid.UUID  `json:"loan_id"`
	ItemID     uuid.UUID  `json:"item_id"`
	ReturnDate model.Date `json:"return_date"`
	DaysLate   int        `json:"days_late"`
}

// FineAssessedEvent is recorded when a late return raises a fine.
type FineAssessedEvent struct {
	LoanID    uuid.UUID       `json:"loan_id"`
	PaymentID uuid.UUID       `json:"payment_id"`
	DaysLate  int             `json:"days_late"`
	Amount    decimal.Decimal `json:"amount"`
}
