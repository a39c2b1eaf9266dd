package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cover is the binding of a catalog item.
type Cover string

const (
	CoverHard Cover = "HARD"
	CoverSoft Cover = "SOFT"
)

// Item is a lendable title with a limited number of physical copies.
type Item struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Title       string          `json:"title" db:"title"`
	Author      string          `json:"author" db:"author"`
	Cover       Cover           `json:"cover" db:"cover"`
	TotalCopies int             `json:"total_copies" db:"total_copies"`
	Available   int             `json:"available" db:"available"`
	DailyRate   decimal.Decimal `json:"daily_rate" db:"daily_rate"`
}
