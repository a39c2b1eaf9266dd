package billing

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"libralend/internal/gateway"
	"libralend/internal/model"
)

// Event types appended to a payment's history.
const (
	EventPaymentSettled        = "PaymentSettled"
	EventPaymentSessionRenewed = "PaymentSessionRenewed"
)

// Config holds the pricing and redirect settings shared by checkout and
// payment sessions.
type Config struct {
	// SuccessURL may contain {CHECKOUT_SESSION_ID}, which the processor
	// replaces with the session token on redirect.
	SuccessURL     string
	CancelURL      string
	FineMultiplier decimal.Decimal
}

// SessionRequest builds the gateway request for a payment.
func (c Config) SessionRequest(payment *model.Payment, itemTitle string) gateway.SessionRequest {
	label := itemTitle
	if payment.Kind == model.PaymentFine {
		label = "Overdue fine: " + itemTitle
	}
	return gateway.SessionRequest{
		Amount:     payment.Amount,
		Label:      label,
		SuccessURL: c.SuccessURL,
		CancelURL:  c.CancelURL,
		Reference:  payment.ID.String(),
	}
}

// Settlement is the outcome of a success callback.
type Settlement struct {
	PaymentID uuid.UUID         `json:"payment_id"`
	LoanID    uuid.UUID         `json:"loan_id"`
	Kind      model.PaymentKind `json:"kind"`
	Amount    decimal.Decimal   `json:"amount"`
	// AlreadyPaid is set when an earlier callback performed the transition.
	AlreadyPaid bool `json:"already_paid"`
}

type PaymentSettledEvent struct {
	PaymentID    uuid.UUID         `json:"payment_id"`
	LoanID       uuid.UUID         `json:"loan_id"`
	Kind         model.PaymentKind `json:"kind"`
	Amount       decimal.Decimal   `json:"amount"`
	SessionToken string            `json:"session_id"`
}

type PaymentSessionRenewedEvent struct {
	PaymentID    uuid.UUID `json:"payment_id"`
	LoanID       uuid.UUID `json:"loan_id"`
	SessionToken string    `json:"session_id"`
}

// PaymentSuccessMessage is the operator notification for a settled payment.
func PaymentSuccessMessage(loanID uuid.UUID, amount decimal.Decimal) string {
	return fmt.Sprintf("✅ Payment success!\nBorrow ID: %s\nTotal: $%s", loanID, amount.StringFixed(2))
}
