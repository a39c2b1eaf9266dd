package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentKind distinguishes the rental charge from an overdue fine.
type PaymentKind string

const (
	PaymentRental PaymentKind = "RENTAL"
	PaymentFine   PaymentKind = "FINE"
)

// PaymentStatus is the settlement state of a payment record.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentExpired PaymentStatus = "EXPIRED"
)

// Payment is an obligation attached to a loan. SessionToken is empty until a
// gateway session has been opened for it.
type Payment struct {
	ID           uuid.UUID       `json:"id"`
	LoanID       uuid.UUID       `json:"loan_id"`
	Kind         PaymentKind     `json:"kind"`
	Status       PaymentStatus   `json:"status"`
	Amount       decimal.Decimal `json:"amount"`
	SessionToken string          `json:"session_id,omitempty"`
	SessionURL   string          `json:"session_url,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	PaidAt       *time.Time      `json:"paid_at,omitempty"`
}

func (p *Payment) HasSession() bool { return p.SessionToken != "" }
