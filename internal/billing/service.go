package billing

import (
	"context"

	"github.com/google/uuid"

	"libralend/internal/auth"
	"libralend/internal/model"
)

// Service reconciles local payment records with the payment processor.
type Service interface {
	// HandleSuccess settles the payment behind a session the processor reports
	// as paid. Repeated calls for the same session perform no writes.
	HandleSuccess(ctx context.Context, sessionToken string) (*Settlement, error)
	// HandleCancel acknowledges an abandoned checkout; nothing changes.
	HandleCancel(ctx context.Context, sessionToken string)
	// StartPayment returns a payable session for a payment, opening a new
	// one when it has none or the previous one has expired.
	StartPayment(ctx context.Context, p auth.Principal, paymentID uuid.UUID) (*model.Payment, error)
}
