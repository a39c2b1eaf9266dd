// Package gateway is the payment processor boundary: opening hosted checkout
// sessions and asking for their settlement status.
package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

// Status is the settlement state of a checkout session as the processor sees it.
type Status string

const (
	StatusPaid    Status = "paid"
	StatusPending Status = "pending"
	StatusExpired Status = "expired"
)

// SessionRequest describes a one-off payment.
type SessionRequest struct {
	Amount     decimal.Decimal
	Label      string
	SuccessURL string
	CancelURL  string
	// Reference is echoed back by the processor; the payment id is used.
	Reference string
}

// Session is an opened checkout session. The payer is redirected to URL.
type Session struct {
	Token string
	URL   string
}

// Gateway failures are reported as apperr.KindGatewayUnavailable, except an
// unknown session token which is apperr.KindNotFound.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	QueryStatus(ctx context.Context, token string) (Status, error)
}
