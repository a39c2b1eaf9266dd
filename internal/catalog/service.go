// internal/catalog/service.go
package catalog

import (
	"context"

	"github.com/google/uuid"

	"libralend/internal/auth"
	"libralend/internal/model"
)

// Service defines the interface for the catalog service.
type Service interface {
	AddItem(ctx context.Context, p auth.Principal, req AddItemRequest) (*model.Item, error)
	GetItem(ctx context.Context, id uuid.UUID) (*model.Item, error)
	Restock(ctx context.Context, p auth.Principal, id uuid.UUID, totalCopies int) (*model.Item, error)
}
