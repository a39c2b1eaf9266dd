// internal/catalog/domain.go
package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"libralend/internal/model"
)

// Event types appended to an item's history.
const (
	EventItemAdded         = "ItemAdded"
	EventItemCopiesUpdated = "ItemCopiesUpdated"
)

// ItemAddedEvent is recorded when a new item enters the catalog.
type ItemAddedEvent struct {
	ID          uuid.UUID       `json:"id"`
	Title       string          `json:"title"`
	Author      string          `json:"author"`
	TotalCopies int             `json:"total_copies"`
	DailyRate   decimal.Decimal `json:"daily_rate"`
}

// ItemCopiesUpdatedEvent is recorded when the number of copies changes.
type ItemCopiesUpdatedEvent struct {
	ID           uuid.UUID `json:"id"`
	NewTotal     int       `json:"new_total"`
	NewAvailable int       `json:"new_available"`
}

// AddItemRequest is the admin input for a new catalog item.
type AddItemRequest struct {
	Title       string          `json:"title" validate:"required,max=255"`
	Author      string          `json:"author" validate:"max=255"`
	Cover       model.Cover     `json:"cover" validate:"omitempty,oneof=HARD SOFT"`
	TotalCopies int             `json:"total_copies" validate:"gte=1"`
	DailyRate   decimal.Decimal `json:"daily_rate"`
}

// RestockRequest sets the total number of copies of an item.
type RestockRequest struct {
	TotalCopies int `json:"total_copies" validate:"gte=0"`
}
