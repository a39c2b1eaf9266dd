package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"libralend/internal/apperr"
	"libralend/internal/auth"
	"libralend/internal/gateway"
	"libralend/internal/model"
	"libralend/internal/notify"
	"libralend/internal/storage"
)

type service struct {
	repo    storage.Repository
	gateway gateway.Gateway
	sink    notify.Sink
	cfg     Config
	log     *slog.Logger
	tracer  trace.Tracer
}

func NewService(repo storage.Repository, gw gateway.Gateway, sink notify.Sink, cfg Config, log *slog.Logger) Service {
	return &service{
		repo:    repo,
		gateway: gw,
		sink:    sink,
		cfg:     cfg,
		log:     log,
		tracer:  otel.Tracer("libralend/billing"),
	}
}

func (s *service) HandleSuccess(ctx context.Context, sessionToken string) (*Settlement, error) {
	ctx, span := s.tracer.Start(ctx, "billing.handle_success", trace.WithAttributes(attribute.String("payment.session", sessionToken)))
	defer span.End()

	if sessionToken == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "session_id is required")
	}

	status, err := s.gateway.QueryStatus(ctx, sessionToken)
	if err != nil {
		span.SetStatus(codes.Error, "query status failed")
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Wrap(apperr.KindNotFound, "payment not found", err)
		}
		return nil, gatewayError(err)
	}
	span.SetAttributes(attribute.String("payment.gateway_status", string(status)))
	if status != gateway.StatusPaid {
		return nil, apperr.New(apperr.KindNotYetPaid, "payment not successful")
	}

	var settlement *Settlement
	err = s.repo.WithTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
		payment, err := tx.FindPaymentBySessionToken(ctx, sessionToken)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return apperr.Wrap(apperr.KindNotFound, "payment not found", err)
			}
			return fmt.Errorf("failed to find payment: %w", err)
		}
		settlement = &Settlement{
			PaymentID: payment.ID,
			LoanID:    payment.LoanID,
			Kind:      payment.Kind,
			Amount:    payment.Amount,
		}
		if payment.Status == model.PaymentPaid {
			settlement.AlreadyPaid = true
			return nil
		}

		ok, err := tx.UpdatePaymentStatus(ctx, payment.ID, payment.Status, model.PaymentPaid)
		if err != nil {
			return fmt.Errorf("failed to mark payment paid: %w", err)
		}
		if !ok {
			current, err := tx.GetPayment(ctx, payment.ID)
			if err != nil {
				return err
			}
			if current.Status != model.PaymentPaid {
				return apperr.New(apperr.KindStorageConflict, "payment changed concurrently")
			}
			settlement.AlreadyPaid = true
			return nil
		}

		event, err := model.NewEvent(payment.ID, model.AggregatePayment, EventPaymentSettled, PaymentSettledEvent{
			PaymentID:    payment.ID,
			LoanID:       payment.LoanID,
			Kind:         payment.Kind,
			Amount:       payment.Amount,
			SessionToken: sessionToken,
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
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Bool("payment.already_paid", settlement.AlreadyPaid))
	if settlement.AlreadyPaid {
		s.log.Info("duplicate payment callback", "payment_id", settlement.PaymentID)
		return settlement, nil
	}

	s.log.Info("payment settled", "payment_id", settlement.PaymentID, "loan_id", settlement.LoanID,
		"kind", settlement.Kind, "amount", settlement.Amount.String())
	s.sink.Send(ctx, PaymentSuccessMessage(settlement.LoanID, settlement.Amount))
	return settlement, nil
}

func (s *service) HandleCancel(ctx context.Context, sessionToken string) {
	s.log.Info("payment cancelled by payer", "session_id", sessionToken)
}

func (s *service) StartPayment(ctx context.Context, p auth.Principal, paymentID uuid.UUID) (*model.Payment, error) {
	ctx, span := s.tracer.Start(ctx, "billing.start_payment", trace.WithAttributes(attribute.String("payment.id", paymentID.String())))
	defer span.End()

	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	loan, err := s.repo.GetLoan(ctx, payment.LoanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	if !p.CanActOn(loan.BorrowerID) {
		return nil, apperr.New(apperr.KindForbidden, "payment belongs to another borrower")
	}
	if payment.Status == model.PaymentPaid {
		return nil, apperr.New(apperr.KindStorageConflict, "payment already settled")
	}

	if payment.HasSession() && payment.Status == model.PaymentPending {
		status, err := s.gateway.QueryStatus(ctx, payment.SessionToken)
		switch {
		case err != nil && !apperr.Is(err, apperr.KindNotFound):
			return nil, gatewayError(err)
		case err == nil && status == gateway.StatusPending:
			return payment, nil
		case err == nil && status == gateway.StatusPaid:
			// The success redirect never arrived; settle now.
			if _, err := s.HandleSuccess(ctx, payment.SessionToken); err != nil {
				return nil, err
			}
			return s.repo.GetPayment(ctx, payment.ID)
		}
	}

	item, err := s.repo.GetItem(ctx, loan.ItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	session, err := s.gateway.CreateSession(ctx, s.cfg.SessionRequest(payment, item.Title))
	if err != nil {
		return nil, gatewayError(err)
	}

	swapped := false
	err = s.repo.WithTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
		ok, err := tx.UpdatePaymentSession(ctx, payment.ID, payment.SessionToken, session.Token, session.URL)
		if err != nil {
			return fmt.Errorf("failed to store session: %w", err)
		}
		if !ok {
			return nil
		}
		swapped = true
		event, err := model.NewEvent(payment.ID, model.AggregatePayment, EventPaymentSessionRenewed, PaymentSessionRenewedEvent{
			PaymentID:    payment.ID,
			LoanID:       payment.LoanID,
			SessionToken: session.Token,
		})
		if err != nil {
			return err
		}
		_, err = tx.AppendEvent(ctx, event)
		return err
	})
	if err != nil {
		return nil, err
	}

	current, err := s.repo.GetPayment(ctx, payment.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	if !swapped {
		// Another request stored its session first; ours is never handed out.
		s.log.Warn("discarding concurrently opened payment session", "payment_id", payment.ID, "session_id", session.Token)
		if current.Status == model.PaymentPaid || !current.HasSession() {
			return nil, apperr.New(apperr.KindStorageConflict, "payment changed while opening a session")
		}
		return current, nil
	}

	s.log.Info("payment session opened", "payment_id", payment.ID, "kind", payment.Kind)
	return current, nil
}

func gatewayError(err error) error {
	if apperr.Is(err, apperr.KindGatewayUnavailable) {
		return err
	}
	return apperr.Wrap(apperr.KindGatewayUnavailable, "payment gateway unavailable", err)
}
