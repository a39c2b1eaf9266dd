package billing

import (
	"github.com/shopspring/decimal"

	"libralend/internal/apperr"
	"libralend/internal/model"
)

// DefaultFineMultiplier is applied to the daily rate for every day past due.
var DefaultFineMultiplier = decimal.NewFromInt(2)

// ComputeFine returns the fine for a return on actual of a loan due on
// expected: days late × daily rate × multiplier, or zero when on time.
func ComputeFine(expected, actual model.Date, dailyRate, multiplier decimal.Decimal) (decimal.Decimal, error) {
	if dailyRate.IsNegative() {
		return decimal.Zero, apperr.New(apperr.KindInvalidPricing, "daily rate must not be negative")
	}
	if multiplier.IsNegative() {
		return decimal.Zero, apperr.New(apperr.KindInvalidPricing, "fine multiplier must not be negative")
	}
	if !actual.After(expected) {
		return decimal.Zero, nil
	}
	days := decimal.NewFromInt(int64(expected.DaysUntil(actual)))
	return days.Mul(dailyRate).Mul(multiplier), nil
}

// RentalAmount is the charge for borrowing from borrow until expected.
func RentalAmount(borrow, expected model.Date, dailyRate decimal.Decimal) (decimal.Decimal, error) {
	days := decimal.NewFromInt(int64(borrow.DaysUntil(expected)))
	amount := days.Mul(dailyRate)
	if !amount.IsPositive() {
		return decimal.Zero, apperr.New(apperr.KindInvalidPricing, "rental amount must be positive")
	}
	return amount, nil
}
