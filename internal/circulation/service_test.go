package circulation

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"libralend/internal/apperr"
	"libralend/internal/auth"
	"libralend/internal/billing"
	"libralend/internal/catalog"
	"libralend/internal/gateway"
	"libralend/internal/model"
	"libralend/internal/storage/sqlstore"
)

var today = model.NewDate(2026, time.October, 15)

var (
	alice     = auth.Principal{Subject: "alice"}
	mallory   = auth.Principal{Subject: "mallory"}
	librarian = auth.Principal{Subject: "librarian", Admin: true}
)

type fixture struct {
	repo *sqlstore.Store
	gw   *gateway.Fake
	now  time.Time
	svc  Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo: sqlstore.NewTestStore(t),
		gw:   gateway.NewFake(),
		now:  today.Time().Add(10 * time.Hour),
	}
	ledger, err := catalog.NewLedger(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	cfg := billing.Config{
		SuccessURL:     "https://lend.example/api/v1/payments/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:      "https://lend.example/api/v1/payments/cancel",
		FineMultiplier: billing.DefaultFineMultiplier,
	}
	f.svc = NewService(f.repo, ledger, f.gw, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithClock(func() time.Time { return f.now }))
	return f
}

// advance moves the service clock forward by whole days.
func (f *fixture) advance(days int) { f.now = f.now.AddDate(0, 0, days) }

func (f *fixture) item(t *testing.T, copies int, rate int64) *model.Item {
	t.Helper()
	item := &model.Item{
		ID: model.NewID(), Title: "Dune", Author: "Frank Herbert", Cover: model.CoverHard,
		TotalCopies: copies, Available: copies, DailyRate: decimal.NewFromInt(rate),
	}
	require.NoError(t, f.repo.CreateItem(context.Background(), item))
	return item
}

func (f *fixture) available(t *testing.T, item *model.Item) int {
	t.Helper()
	got, err := f.repo.GetItem(context.Background(), item.ID)
	require.NoError(t, err)
	return got.Available
}

func TestCheckout(t *testing.T) {
	f := newFixture(t)
	item := f.item(t, 2, 5)

	res, err := f.svc.Checkout(context.Background(), alice, item.ID, today.AddDays(3))
	require.NoError(t, err)

	assert.Equal(t, "alice", res.Loan.BorrowerID)
	assert.True(t, today.Equal(res.Loan.BorrowDate))
	assert.False(t, res.Loan.Returned())
	assert.Equal(t, model.PaymentRental, res.Payment.Kind)
	assert.Equal(t, model.PaymentPending, res.Payment.Status)
	assert.True(t, decimal.NewFromInt(15).Equal(res.Payment.Amount))
	assert.True(t, res.Payment.HasSession())
	assert.Equal(t, 1, f.available(t, item))

	req, ok := f.gw.Request(res.Payment.SessionToken)
	require.True(t, ok)
	assert.Equal(t, "Dune", req.Label)
	assert.Equal(t, res.Payment.ID.String(), req.Reference)

	events, err := f.repo.LoadEvents(context.Background(), res.Loan.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventLoanCreated, events[0].EventType)
}

func TestCheckoutInvalidDateRange(t *testing.T) {
	f := newFixture(t)
	item := f.item(t, 1, 5)

	for _, expected := range []model.Date{today, today.AddDays(-1)} {
		_, err := f.svc.Checkout(context.Background(), alice, item.ID, expected)
		assert.Equal(t, apperr.KindInvalidDateRange, apperr.KindOf(err))
	}
	assert.Equal(t, 1, f.available(t, item))
	assert.Zero(t, f.gw.SessionCount())
}

func TestCheckoutUnknownItem(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Checkout(context.Background(), alice, model.NewID(), today.AddDays(1))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestConcurrentCheckoutOfLastCopy(t *testing.T) {
	f := newFixture(t)
	item := f.item(t, 1, 5)

	const n = 6
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Checkout(context.Background(), alice, item.ID, today.AddDays(2))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, apperr.KindOutOfStock, apperr.KindOf(err))
	}
	assert.Equal(t, 1, succeeded)
	assert.Zero(t, f.available(t, item))
}

func TestCheckoutRollsBackWhenGatewayFails(t *testing.T) {
	f := newFixture(t)
	item := f.item(t, 1, 5)
	f.gw.SetDown(true)

	_, err := f.svc.Checkout(context.Background(), alice, item.ID, today.AddDays(2))
	assert.Equal(t, apperr.KindGatewayUnavailable, apperr.KindOf(err))
	assert.Equal(t, 1, f.available(t, item))

	overdue, err := f.repo.FindOverdueLoans(context.Background(), today.AddDays(30))
	require.NoError(t, err)
	assert.Empty(t, overdue)

	f.gw.SetDown(false)
	_, err = f.svc.Checkout(context.Background(), alice, item.ID, today.AddDays(2))
	require.NoError(t, err)
}

func TestReturnOnTime(t *testing.T) {
	f := newFixture(t)
	item := f.item(t, 1, 5)
	res, err := f.svc.Checkout(context.Background(), alice, item.ID, today.AddDays(3))
	require.NoError(t, err)

	f.advance(3)
	ret, err := f.svc.Return(context.Background(), alice, res.Loan.ID)
	require.NoError(t, err)
	assert.Nil(t, ret.Fine)
	require.True(t, ret.Loan.Returned())
	assert.True(t, today.AddDays(3).Equal(*ret.Loan.ActualReturnDate))
	assert.Equal(t, 1, f.available(t, item))
}

func TestReturnLateAssessesFine(t *testing.T) {
	f := newFixture(t)
	item := f.item(t, 1, 5)
	res, err := f.svc.Checkout(context.Background(), alice, item.ID, today.AddDays(3))
	require.NoError(t, err)

	f.advance(5)
	ret, err := f.svc.Return(context.Background(), alice, res.Loan.ID)
	require.NoError(t, err)
	require.NotNil(t, ret.Fine)
	assert.Equal(t, model.PaymentFine, ret.Fine.Kind)
	assert.Equal(t, model.PaymentPending, ret.Fine.Status)
	assert.True(t, decimal.NewFromInt(20).Equal(ret.Fine.Amount), ret.Fine.Amount.String())
	assert.False(t, ret.Fine.HasSession())
	assert.Equal(t, 1, f.available(t, item))

	detail, err := f.svc.GetLoan(context.Background(), alice, res.Loan.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Payments, 2)

	history, err := f.svc.History(context.Background(), alice, res.Loan.ID)
	require.NoError(t, err)
	var types []string
	for _, e := range history {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []string{EventLoanCreated, EventFineAssessed, EventLoanReturned}, types)
}

func TestReturnTwice(t *testing.T) {
	f := newFixture(t)
	item := f.item(t, 1, 5)
	res, err := f.svc.Checkout(context.Background(), alice, item.ID, today.AddDays(1))
	require.NoError(t, err)

	_, err = f.svc.Return(context.Background(), alice, res.Loan.ID)
	require.NoError(t, err)

	// A second return days later changes nothing, late or not.
	f.advance(3)
	_, err = f.svc.Return(context.Background(), alice, res.Loan.ID)
	assert.Equal(t, apperr.KindAlreadyReturned, apperr.KindOf(err))
	assert.Equal(t, 1, f.available(t, item))

	loan, err := f.repo.GetLoan(context.Background(), res.Loan.ID)
	require.NoError(t, err)
	require.True(t, loan.Returned())
	assert.True(t, today.Equal(*loan.ActualReturnDate))

	payments, err := f.repo.ListPaymentsByLoan(context.Background(), res.Loan.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, model.PaymentRental, payments[0].Kind)
}

func TestConcurrentReturnsOfOneLoan(t *testing.T) {
	f := newFixture(t)
	item := f.item(t, 1, 5)
	res, err := f.svc.Checkout(context.Background(), alice, item.ID, today.AddDays(1))
	require.NoError(t, err)
	f.advance(4)

	const n = 8
	var wg sync.WaitGroup
	results := make(chan *ReturnResult, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ret, err := f.svc.Return(context.Background(), alice, res.Loan.ID)
			if err != nil {
				errs <- err
				return
			}
			results <- ret
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	assert.Len(t, results, 1)
	for err := range errs {
		assert.Equal(t, apperr.KindAlreadyReturned, apperr.KindOf(err))
	}
	assert.Equal(t, 1, f.available(t, item))

	payments, err := f.repo.ListPaymentsByLoan(context.Background(), res.Loan.ID)
	require.NoError(t, err)
	fines := 0
	for _, p := range payments {
		if p.Kind == model.PaymentFine {
			fines++
		}
	}
	assert.Equal(t, 1, fines)
}

func TestCheckoutAfterGatewayRestart(t *testing.T) {
	f := newFixture(t)
	item := f.item(t, 2, 5)
	first, err := f.svc.Checkout(context.Background(), alice, item.ID, today.AddDays(2))
	require.NoError(t, err)

	// A fresh in-memory gateway over the same store, as after a process restart.
	ledger, err := catalog.NewLedger(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	restarted := NewService(f.repo, ledger, gateway.NewFake(), billing.Config{FineMultiplier: billing.DefaultFineMultiplier},
		slog.New(slog.NewTextHandler(io.Discard, nil)), WithClock(func() time.Time { return f.now }))

	second, err := restarted.Checkout(context.Background(), alice, item.ID, today.AddDays(2))
	require.NoError(t, err)
	assert.NotEqual(t, first.Payment.SessionToken, second.Payment.SessionToken)
	assert.Zero(t, f.available(t, item))
}

func TestLoanOwnership(t *testing.T) {
	f := newFixture(t)
	item := f.item(t, 1, 5)
	res, err := f.svc.Checkout(context.Background(), alice, item.ID, today.AddDays(1))
	require.NoError(t, err)

	_, err = f.svc.GetLoan(context.Background(), mallory, res.Loan.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	_, err = f.svc.History(context.Background(), mallory, res.Loan.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	_, err = f.svc.Return(context.Background(), mallory, res.Loan.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.Zero(t, f.available(t, item))

	_, err = f.svc.Return(context.Background(), librarian, res.Loan.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.available(t, item))
}

func TestReturnUnknownLoan(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Return(context.Background(), alice, model.NewID())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
