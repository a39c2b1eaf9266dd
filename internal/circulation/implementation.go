// internal/circulation/implementation.go
package circulation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"libralend/internal/apperr"
	"libralend/internal/auth"
	"libralend/internal/billing"
	"libralend/internal/catalog"
	"libralend/internal/gateway"
	"libralend/internal/model"
	"libralend/internal/storage"
)

// Option configures the circulation service.
type Option func(*service)

// WithClock replaces the wall clock used to date checkouts and returns.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// service implements the Service interface.
type service struct {
	repo    storage.Repository
	ledger  *catalog.Ledger
	gateway gateway.Gateway
	cfg     billing.Config
	log     *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// NewService creates a new circulation service instance.
func NewService(repo storage.Repository, ledger *catalog.Ledger, gw gateway.Gateway, cfg billing.Config, log *slog.Logger, opts ...Option) Service {
	s := &service{
		repo:    repo,
		ledger:  ledger,
		gateway: gw,
		cfg:     cfg,
		log:     log,
		tracer:  otel.Tracer("libralend/circulation"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) today() model.Date { return model.DateOf(s.now()) }

// Checkout reserves a copy, records the loan and opens the rental payment
// session in one transaction. If any step fails nothing is kept.
func (s *service) Checkout(ctx context.Context, p auth.Principal, itemID uuid.UUID, expectedReturn model.Date) (*CheckoutResult, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.checkout", trace.WithAttributes(
		attribute.String("item.id", itemID.String()),
		attribute.String("borrower.id", p.Subject),
	))
	defer span.End()

	today := s.today()
	if !expectedReturn.After(today) {
		return nil, apperr.New(apperr.KindInvalidDateRange, "expected_return_date must be after today")
	}

	var result CheckoutResult
	err := s.repo.WithTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
		item, err := tx.GetItem(ctx, itemID)
		if err != nil {
			return fmt.Errorf("failed to get item: %w", err)
		}
		amount, err := billing.RentalAmount(today, expectedReturn, item.DailyRate)
		if err != nil {
			return err
		}

		if err := s.ledger.Reserve(ctx, tx, item.ID); err != nil {
			return err
		}

		loan := &model.Loan{
			ID:                 model.NewID(),
			ItemID:             item.ID,
			BorrowerID:         p.Subject,
			BorrowDate:         today,
			ExpectedReturnDate: expectedReturn,
		}
		if err := tx.CreateLoan(ctx, loan); err != nil {
			return fmt.Errorf("failed to create loan: %w", err)
		}

		payment := &model.Payment{
			ID:     model.NewID(),
			LoanID: loan.ID,
			Kind:   model.PaymentRental,
			Status: model.PaymentPending,
			Amount: amount,
		}
		session, err := s.gateway.CreateSession(ctx, s.cfg.SessionRequest(payment, item.Title))
		if err != nil {
			return gatewayError(err)
		}
		payment.SessionToken = session.Token
		payment.SessionURL = session.URL
		if err := tx.CreatePayment(ctx, payment); err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}

		event, err := model.NewEvent(loan.ID, model.AggregateLoan, EventLoanCreated, LoanCreatedEvent{
			LoanID:             loan.ID,
			ItemID:             item.ID,
			BorrowerID:         loan.BorrowerID,
			BorrowDate:         loan.BorrowDate,
			ExpectedReturnDate: loan.ExpectedReturnDate,
			PaymentID:          payment.ID,
			Amount:             amount,
		})
		if err != nil {
			return err
		}
		if _, err := tx.AppendEvent(ctx, event); err != nil {
			return fmt.Errorf("failed to append event: %w", err)
		}

		result = CheckoutResult{Loan: loan, Payment: payment}
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, string(apperr.KindOf(err)))
		span.RecordError(err)
		return nil, err
	}

	s.log.Info("item checked out", "loan_id", result.Loan.ID, "item_id", itemID,
		"borrower", p.Subject, "amount", result.Payment.Amount.String())
	return &result, nil
}

// Return closes the loan, puts the copy back and raises a fine for a late
// return, all in one transaction.
func (s *service) Return(ctx context.Context, p auth.Principal, loanID uuid.UUID) (*ReturnResult, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.return", trace.WithAttributes(attribute.String("loan.id", loanID.String())))
	defer span.End()

	today := s.today()
	var result ReturnResult
	err := s.repo.WithTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
		loan, err := tx.GetLoan(ctx, loanID)
		if err != nil {
			return fmt.Errorf("failed to get loan: %w", err)
		}
		if !p.CanActOn(loan.BorrowerID) {
			return apperr.New(apperr.KindForbidden, "loan belongs to another borrower")
		}

		ok, err := tx.MarkLoanReturned(ctx, loan.ID, today)
		if err != nil {
			return fmt.Errorf("failed to mark loan returned: %w", err)
		}
		if !ok {
			return apperr.New(apperr.KindAlreadyReturned, "loan has already been returned")
		}
		loan.ActualReturnDate = &today

		if err := s.ledger.Release(ctx, tx, loan.ItemID); err != nil {
			return err
		}

		item, err := tx.GetItem(ctx, loan.ItemID)
		if err != nil {
			return fmt.Errorf("failed to get item: %w", err)
		}
		amount, err := billing.ComputeFine(loan.ExpectedReturnDate, today, item.DailyRate, s.cfg.FineMultiplier)
		if err != nil {
			return err
		}

		daysLate := 0
		if today.After(loan.ExpectedReturnDate) {
			daysLate = loan.ExpectedReturnDate.DaysUntil(today)
		}
		if amount.IsPositive() {
			fine, err := s.assessFine(ctx, tx, loan, daysLate, amount)
			if err != nil {
				return err
			}
			result.Fine = fine
		}

		event, err := model.NewEvent(loan.ID, model.AggregateLoan, EventLoanReturned, LoanReturnedEvent{
			LoanID:     loan.ID,
			ItemID:     loan.ItemID,
			ReturnDate: today,
			DaysLate:   daysLate,
		})
		if err != nil {
			return err
		}
		if _, err := tx.AppendEvent(ctx, event); err != nil {
			return fmt.Errorf("failed to append event: %w", err)
		}

		result.Loan = loan
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, string(apperr.KindOf(err)))
		span.RecordError(err)
		return nil, err
	}

	if result.Fine != nil {
		span.SetAttributes(attribute.String("fine.amount", result.Fine.Amount.String()))
		s.log.Info("item returned late", "loan_id", loanID, "fine", result.Fine.Amount.String())
	} else {
		s.log.Info("item returned", "loan_id", loanID)
	}
	return &result, nil
}

func (s *service) assessFine(ctx context.Context, tx storage.Tx, loan *model.Loan, daysLate int, amount decimal.Decimal) (*model.Payment, error) {
	fine := &model.Payment{
		ID:     model.NewID(),
		LoanID: loan.ID,
		Kind:   model.PaymentFine,
		Status: model.PaymentPending,
		Amount: amount,
	}
	if err := tx.CreatePayment(ctx, fine); err != nil {
		return nil, fmt.Errorf("failed to create fine: %w", err)
	}

	event, err := model.NewEvent(loan.ID, model.AggregateLoan, EventFineAssessed, FineAssessedEvent{
		LoanID:    loan.ID,
		PaymentID: fine.ID,
		DaysLate:  daysLate,
		Amount:    amount,
	})
	if err != nil {
		return nil, err
	}
	if _, err := tx.AppendEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}
	return fine, nil
}

// GetLoan returns a loan and its payments to its borrower or an admin.
func (s *service) GetLoan(ctx context.Context, p auth.Principal, loanID uuid.UUID) (*LoanDetail, error) {
	loan, err := s.authorizedLoan(ctx, p, loanID)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPaymentsByLoan(ctx, loan.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return &LoanDetail{Loan: loan, Payments: payments}, nil
}

// History returns the events of a loan and of its payments in the order
// they were recorded.
func (s *service) History(ctx context.Context, p auth.Principal, loanID uuid.UUID) ([]model.Event, error) {
	loan, err := s.authorizedLoan(ctx, p, loanID)
	if err != nil {
		return nil, err
	}

	events, err := s.repo.LoadEvents(ctx, loan.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load loan events: %w", err)
	}
	payments, err := s.repo.ListPaymentsByLoan(ctx, loan.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	for _, payment := range payments {
		more, err := s.repo.LoadEvents(ctx, payment.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load payment events: %w", err)
		}
		events = append(events, more...)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	return events, nil
}

func (s *service) authorizedLoan(ctx context.Context, p auth.Principal, loanID uuid.UUID) (*model.Loan, error) {
	loan, err := s.repo.GetLoan(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	if !p.CanActOn(loan.BorrowerID) {
		return nil, apperr.New(apperr.KindForbidden, "loan belongs to another borrower")
	}
	return loan, nil
}

func gatewayError(err error) error {
	if apperr.Is(err, apperr.KindGatewayUnavailable) {
		return err
	}
	return apperr.Wrap(apperr.KindGatewayUnavailable, "payment gateway unavailable", err)
}
