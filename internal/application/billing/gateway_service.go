package billing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dormitory/backend/internal/domain/billing"
	"github.com/dormitory/backend/internal/domain/residence"
	"github.com/dormitory/backend/internal/domain/shared"
	"github.com/dormitory/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// errAlreadyConfirmed aborts an IPN transaction that lost the race to a
// concurrent delivery of the same notification.
var errAlreadyConfirmed = errors.New("gateway: notification already applied")

// GatewayService issues VNPay checkout URLs and reconciles the gateway's
// notifications with payments and the invoice ledger.
type GatewayService struct {
	paymentRepo    billing.PaymentRepository
	invoiceRepo    billing.InvoiceRepository
	gateway        billing.PaymentGateway
	idempotency    shared.IdempotencyStore
	idempotencyTTL time.Duration
	ledger         *ledgerRunner
	eventPublisher shared.EventPublisher
	metrics        *telemetry.BillingMetrics
	logger         *zap.Logger
	now            func() time.Time
}

// GatewayServiceConfig holds the dependencies of GatewayService
type GatewayServiceConfig struct {
	PaymentRepo         billing.PaymentRepository
	InvoiceRepo         billing.InvoiceRepository
	StudentRepo         residence.StudentProfileRepository
	TxScope             TransactionScope
	Gateway             billing.PaymentGateway
	IdempotencyStore    shared.IdempotencyStore // optional
	IdempotencyTTL      time.Duration
	EventPublisher      shared.EventPublisher
	Metrics             *telemetry.BillingMetrics
	Logger              *zap.Logger
	LedgerRetryAttempts int
}

// NewGatewayService creates a new GatewayService
func NewGatewayService(cfg GatewayServiceConfig) *GatewayService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	txScope := cfg.TxScope
	if txScope == nil {
		txScope = NewNoOpTransactionScope(cfg.InvoiceRepo, cfg.PaymentRepo, cfg.StudentRepo, nil)
	}
	ttl := cfg.IdempotencyTTL
	if ttl <= 0 {
		ttl = shared.DefaultIdempotencyTTL
	}

	ledger := newLedgerRunner(txScope, cfg.LedgerRetryAttempts, logger)
	ledger.metrics = cfg.Metrics

	return &GatewayService{
		paymentRepo:    cfg.PaymentRepo,
		invoiceRepo:    cfg.InvoiceRepo,
		gateway:        cfg.Gateway,
		idempotency:    cfg.IdempotencyStore,
		idempotencyTTL: ttl,
		ledger:         ledger,
		eventPublisher: cfg.EventPublisher,
		metrics:        cfg.Metrics,
		logger:         logger,
		now:            time.Now,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *GatewayService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetBillingMetrics sets the billing metrics collector
func (s *GatewayService) SetBillingMetrics(bm *telemetry.BillingMetrics) {
	s.metrics = bm
	s.ledger.metrics = bm
}

// IPNIdempotencyKey is the dedup key of one gateway notification
func IPNIdempotencyKey(txnRef, transactionNo string) string {
	return fmt.Sprintf("vnpay:ipn:%s:%s", txnRef, transactionNo)
}

// CreatePaymentURL records a pending VNPay payment for the invoice's
// outstanding amount and returns the signed checkout URL. The payment does
// not count toward the paid amount until the gateway confirms it.
func (s *GatewayService) CreatePaymentURL(
	ctx context.Context,
	invoiceID uuid.UUID,
	req CreatePaymentURLRequest,
	clientIP string,
) (*PaymentURLResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "vnpay", "create_payment_url")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, invoiceID.String(),
		telemetry.SpanAttrPaymentGateway, "vnpay",
	)

	if s.gateway == nil {
		err := shared.WrapDomainError("GATEWAY_NOT_CONFIGURED", "Payment gateway is not configured", billing.ErrGatewayNotConfigured)
		telemetry.RecordError(span, err)
		return nil, err
	}

	var (
		payment    *billing.Payment
		paymentURL string
	)
	err := s.ledger.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		inv, _, err := loadInvoiceForPayer(ctx, repos, invoiceID, req.StudentProfileID)
		if err != nil {
			return err
		}
		if inv.Status == billing.InvoiceStatusPaid {
			return shared.NewDomainError(shared.CodeInvalidState, "Invoice is already paid")
		}
		outstanding := inv.OutstandingAmount()
		if !outstanding.IsPositive() {
			return shared.NewDomainError(shared.CodeInvalidState, "Invoice has no outstanding amount")
		}

		p, err := billing.NewGatewayPayment(inv.ID, req.StudentProfileID, outstanding,
			fmt.Sprintf("VNPay checkout for %s", inv.InvoiceNumber))
		if err != nil {
			return err
		}
		if err := repos.PaymentRepo().Create(ctx, p); err != nil {
			return err
		}

		u, err := s.gateway.BuildPaymentURL(ctx, &billing.PaymentURLRequest{
			TxnRef:    p.TxnRef,
			Amount:    p.Amount,
			OrderInfo: fmt.Sprintf("Thanh toan hoa don %s", inv.InvoiceNumber),
			ClientIP:  clientIP,
			BankCode:  req.BankCode,
			Locale:    req.Locale,
			CreatedAt: s.now(),
		})
		if err != nil {
			return fmt.Errorf("build payment url: %w", err)
		}

		payment, paymentURL = p, u
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrPaymentID, payment.ID.String(),
		telemetry.SpanAttrTxnRef, payment.TxnRef,
		telemetry.SpanAttrAmount, payment.Amount.String(),
	)
	s.logger.Info("VNPay checkout started",
		zap.String("invoice_id", invoiceID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("txn_ref", payment.TxnRef),
		zap.String("amount", payment.Amount.String()))

	return &PaymentURLResponse{
		PaymentID:  payment.ID,
		InvoiceID:  payment.InvoiceID,
		TxnRef:     payment.TxnRef,
		Amount:     payment.Amount,
		PaymentURL: paymentURL,
	}, nil
}

// HandleIPN reconciles one gateway notification. It never returns an error:
// every outcome, including internal failures, maps to an acknowledgement code.
func (s *GatewayService) HandleIPN(ctx context.Context, query url.Values) billing.IPNAck {
	ctx, span := telemetry.StartServiceSpan(ctx, "vnpay", "ipn",
		telemetry.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	ack := s.handleIPN(ctx, span, query)

	telemetry.SetAttribute(span, telemetry.SpanAttrRspCode, ack.RspCode)
	s.metrics.RecordIPNOutcome(ctx, ack.RspCode)
	return ack
}

func (s *GatewayService) handleIPN(ctx context.Context, span trace.Span, query url.Values) billing.IPNAck {
	if s.gateway == nil {
		s.logger.Error("VNPay IPN received but gateway is not configured")
		return billing.AckUnknownError
	}

	n, err := s.gateway.VerifyNotification(ctx, query)
	if err != nil {
		if errors.Is(err, billing.ErrGatewayInvalidCallback) {
			s.logger.Warn("Malformed VNPay IPN", zap.Error(err))
			return billing.AckInvalidChecksum
		}
		telemetry.RecordError(span, err)
		s.logger.Error("Failed to verify VNPay IPN", zap.Error(err))
		return billing.AckUnknownError
	}
	if !n.Verified {
		s.logger.Warn("VNPay IPN checksum mismatch", zap.String("txn_ref", n.TxnRef))
		return billing.AckInvalidChecksum
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrTxnRef, n.TxnRef)

	payment, err := s.paymentRepo.FindByTxnRef(ctx, n.TxnRef)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("VNPay IPN for unknown transaction", zap.String("txn_ref", n.TxnRef))
			return billing.AckOrderNotFound
		}
		telemetry.RecordError(span, err)
		s.logger.Error("Failed to load payment for VNPay IPN", zap.String("txn_ref", n.TxnRef), zap.Error(err))
		return billing.AckUnknownError
	}

	if n.Amount != payment.AmountInMinorUnits() {
		s.logger.Warn("VNPay IPN amount mismatch",
			zap.String("txn_ref", n.TxnRef),
			zap.Int64("notified_amount", n.Amount),
			zap.Int64("expected_amount", payment.AmountInMinorUnits()))
		return billing.AckInvalidAmount
	}

	invoice, err := s.invoiceRepo.FindByID(ctx, payment.InvoiceID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("VNPay IPN for payment without invoice",
				zap.String("txn_ref", n.TxnRef),
				zap.String("invoice_id", payment.InvoiceID.String()))
			return billing.AckOrderNotFound
		}
		telemetry.RecordError(span, err)
		s.logger.Error("Failed to load invoice for VNPay IPN", zap.String("txn_ref", n.TxnRef), zap.Error(err))
		return billing.AckUnknownError
	}

	if invoice.Status == billing.InvoiceStatusPaid || !payment.IsPending() {
		s.logger.Info("VNPay IPN already confirmed",
			zap.String("txn_ref", n.TxnRef),
			zap.String("invoice_status", invoice.Status.String()),
			zap.String("gateway_status", payment.GatewayStatus.String()))
		return billing.AckAlreadyConfirmed
	}

	key := IPNIdempotencyKey(n.TxnRef, n.TransactionNo)
	if s.idempotency != nil {
		processed, err := s.idempotency.IsProcessed(ctx, key)
		if err != nil {
			s.logger.Warn("Idempotency lookup failed, relying on ledger version check",
				zap.String("key", key), zap.Error(err))
		} else if processed {
			return billing.AckAlreadyConfirmed
		}
	}

	applied, err := s.applyNotification(ctx, n)
	if err != nil {
		if errors.Is(err, errAlreadyConfirmed) {
			return billing.AckAlreadyConfirmed
		}
		telemetry.RecordError(span, err)
		s.logger.Error("Failed to apply VNPay IPN", zap.String("txn_ref", n.TxnRef), zap.Error(err))
		return billing.AckUnknownError
	}

	if s.idempotency != nil {
		if _, err := s.idempotency.MarkProcessed(ctx, key, s.idempotencyTTL); err != nil {
			s.logger.Warn("Failed to mark VNPay IPN processed", zap.String("key", key), zap.Error(err))
		}
	}

	if applied.IsSettled() {
		s.metrics.RecordPayment(ctx, billing.PaymentMethodVNPay.String(), applied.Amount)
		s.metrics.RecordLedgerApplied(ctx, LedgerSourceGatewayIPN, billing.InvoiceStatusPaid.String())
	}
	s.logger.Info("VNPay IPN applied",
		zap.String("txn_ref", n.TxnRef),
		zap.String("transaction_no", n.TransactionNo),
		zap.String("response_code", n.ResponseCode),
		zap.Bool("settled", applied.IsSettled()))

	return billing.AckConfirmSuccess
}

// applyNotification settles or fails the pending payment. Payment and invoice
// are re-read inside the transaction so a concurrent delivery is detected.
func (s *GatewayService) applyNotification(ctx context.Context, n *billing.GatewayNotification) (*billing.Payment, error) {
	var (
		applied *billing.Payment
		invoice *billing.Invoice
	)
	err := s.ledger.run(ctx, LedgerSourceGatewayIPN, func(repos TransactionalRepositories) error {
		rejected := false
		p, err := repos.PaymentRepo().FindByTxnRef(ctx, n.TxnRef)
		if err != nil {
			return err
		}
		inv, err := repos.InvoiceRepo().FindByID(ctx, p.InvoiceID)
		if err != nil {
			return err
		}
		if !p.IsPending() || inv.Status == billing.InvoiceStatusPaid {
			return errAlreadyConfirmed
		}

		if n.Success && !inv.Status.CanAcceptPayment() {
			// Money was captured for a voided invoice. The payment is left
			// unsettled with the gateway's transaction number for a refund.
			s.logger.Error("VNPay payment captured for cancelled invoice, refund required",
				zap.String("txn_ref", n.TxnRef),
				zap.String("transaction_no", n.TransactionNo),
				zap.String("invoice_id", inv.ID.String()))
			rejected = true
		}

		if !n.Success || rejected {
			if err := p.FailGateway(n.TransactionNo); err != nil {
				return err
			}
			if err := repos.PaymentRepo().Save(ctx, p); err != nil {
				return err
			}
			applied = p
			return nil
		}

		if err := p.ConfirmGateway(n.TransactionNo); err != nil {
			return err
		}
		if err := repos.PaymentRepo().Save(ctx, p); err != nil {
			return err
		}
		paid := billing.InvoiceStatusPaid
		if err := s.ledger.applyDelta(ctx, repos.InvoiceRepo(), inv, p.Amount, &paid); err != nil {
			return err
		}
		applied, invoice = p, inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	publishInvoiceEvents(ctx, s.eventPublisher, s.logger, invoice)
	return applied, nil
}

// HandleReturn reports the checkout outcome to the payer's browser. It only
// verifies and reads; the IPN is the single writer.
func (s *GatewayService) HandleReturn(ctx context.Context, query url.Values) (*ReturnResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "vnpay", "return")
	defer span.End()

	if s.gateway == nil {
		err := shared.WrapDomainError("GATEWAY_NOT_CONFIGURED", "Payment gateway is not configured", billing.ErrGatewayNotConfigured)
		telemetry.RecordError(span, err)
		return nil, err
	}

	n, err := s.gateway.VerifyNotification(ctx, query)
	if err != nil {
		if errors.Is(err, billing.ErrGatewayInvalidCallback) {
			return &ReturnResult{Message: "Invalid payment response"}, nil
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &ReturnResult{
		Verified:     n.Verified,
		TxnRef:       n.TxnRef,
		ResponseCode: n.ResponseCode,
	}
	if !n.Verified {
		result.Message = "Invalid signature"
		return result, nil
	}

	payment, err := s.paymentRepo.FindByTxnRef(ctx, n.TxnRef)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		result.Message = "Order not found"
		return result, nil
	case err != nil:
		telemetry.RecordError(span, err)
		return nil, err
	}

	result.InvoiceID = &payment.InvoiceID
	result.PaymentID = &payment.ID
	result.Success = n.Success
	if n.Success {
		result.Message = "Payment successful"
	} else {
		result.Message = "Payment was not completed"
	}
	return result, nil
}
