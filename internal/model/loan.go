package model

import (
	"github.com/google/uuid"
)

// Loan is a time-bounded reservation of one copy of an item by a borrower.
// ActualReturnDate is nil while the loan is outstanding and is set exactly once.
type Loan struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	ItemID             uuid.UUID `json:"item_id" db:"item_id"`
	BorrowerID         string    `json:"borrower_id" db:"borrower_id"`
	BorrowDate         Date      `json:"borrow_date" db:"borrow_date"`
	ExpectedReturnDate Date      `json:"expected_return_date" db:"expected_return_date"`
	ActualReturnDate   *Date     `json:"actual_return_date,omitempty" db:"actual_return_date"`
}

func (l *Loan) Returned() bool { return l.ActualReturnDate != nil }

// IsOverdue reports whether the loan is outstanding past its expected return date.
func (l *Loan) IsOverdue(asOf Date) bool {
	return !l.Returned() && l.ExpectedReturnDate.Before(asOf)
}

// OverdueLoan is one line of the overdue report.
type OverdueLoan struct {
	LoanID             uuid.UUID `json:"loan_id" db:"loan_id"`
	ItemTitle          string    `json:"item_title" db:"item_title"`
	BorrowerID         string    `json:"borrower_id" db:"borrower_id"`
	ExpectedReturnDate Date      `json:"expected_return_date" db:"expected_return_date"`
}
