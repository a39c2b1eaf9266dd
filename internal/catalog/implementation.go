// internal/catalog/implementation.go
package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"libralend/internal/apperr"
	"libralend/internal/auth"
	"libralend/internal/model"
	"libralend/internal/storage"
)

// service implements the Service interface.
type service struct {
	repo storage.Repository
	log  *slog.Logger
}

// NewService creates a new catalog service instance.
func NewService(repo storage.Repository, log *slog.Logger) Service {
	return &service{repo: repo, log: log}
}

// AddItem creates a new item in the catalog with every copy available.
func (s *service) AddItem(ctx context.Context, p auth.Principal, req AddItemRequest) (*model.Item, error) {
	if !p.Admin {
		return nil, apperr.New(apperr.KindForbidden, "admin role required")
	}
	if req.TotalCopies < 1 {
		return nil, apperr.New(apperr.KindInvalidInput, "total_copies must be positive")
	}
	if !req.DailyRate.IsPositive() {
		return nil, apperr.New(apperr.KindInvalidPricing, "daily_rate must be positive")
	}
	cover := req.Cover
	if cover == "" {
		cover = model.CoverHard
	}

	item := &model.Item{
		ID:          model.NewID(),
		Title:       req.Title,
		Author:      req.Author,
		Cover:       cover,
		TotalCopies: req.TotalCopies,
		Available:   req.TotalCopies,
		DailyRate:   req.DailyRate,
	}
	event, err := model.NewEvent(item.ID, model.AggregateItem, EventItemAdded, ItemAddedEvent{
		ID:          item.ID,
		Title:       item.Title,
		Author:      item.Author,
		TotalCopies: item.TotalCopies,
		DailyRate:   item.DailyRate,
	})
	if err != nil {
		return nil, err
	}

	err = s.repo.WithTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.CreateItem(ctx, item); err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}
		if _, err := tx.AppendEvent(ctx, event); err != nil {
			return fmt.Errorf("failed to append event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("item added", "item_id", item.ID, "title", item.Title, "copies", item.TotalCopies)
	return item, nil
}

// GetItem retrieves an item from the catalog by its ID.
func (s *service) GetItem(ctx context.Context, id uuid.UUID) (*model.Item, error) {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get item %s: %w", id, err)
	}
	return item, nil
}

// Restock sets the total copies of an item and shifts the available count by
// the same delta. Copies currently on loan cannot be removed.
func (s *service) Restock(ctx context.Context, p auth.Principal, id uuid.UUID, totalCopies int) (*model.Item, error) {
	if !p.Admin {
		return nil, apperr.New(apperr.KindForbidden, "admin role required")
	}
	if totalCopies < 0 {
		return nil, apperr.New(apperr.KindInvalidInput, "total_copies must not be negative")
	}

	var item *model.Item
	err := s.repo.WithTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
		ok, err := tx.AdjustCopies(ctx, id, totalCopies)
		if err != nil {
			return fmt.Errorf("failed to adjust copies: %w", err)
		}
		if !ok {
			if _, err := tx.GetItem(ctx, id); err != nil {
				return err
			}
			return apperr.New(apperr.KindStorageConflict, "more copies are on loan than the new total")
		}

		item, err = tx.GetItem(ctx, id)
		if err != nil {
			return err
		}
		event, err := model.NewEvent(id, model.AggregateItem, EventItemCopiesUpdated, ItemCopiesUpdatedEvent{
			ID:           id,
			NewTotal:     item.TotalCopies,
			NewAvailable: item.Available,
		})
		if err != nil {
			return err
		}
		if _, err := tx.AppendEvent(ctx, event); err != nil {
			return fmt.Errorf("failed to append event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("item restocked", "item_id", id, "total", item.TotalCopies, "available", item.Available)
	return item, nil
}
