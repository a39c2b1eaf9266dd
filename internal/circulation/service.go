// internal/circulation/service.go
package circulation

import (
	"context"

	"github.com/google/uuid"

	"libralend/internal/auth"
	"libralend/internal/model"
)

// Service defines the interface for the circulation service.
type Service interface {
	Checkout(ctx context.Context, p auth.Principal, itemID uuid.UUID, expectedReturn model.Date) (*CheckoutResult, error)
	Return(ctx context.Context, p auth.Principal, loanID uuid.UUID) (*ReturnResult, error)
	GetLoan(ctx context.Context, p auth.Principal, loanID uuid.UUID) (*LoanDetail, error)
	History(ctx context.Context, p auth.Principal, loanID uuid.UUID) ([]model.Event, error)
}
