package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/dormitory/backend/internal/domain/billing"
	"github.com/dormitory/backend/internal/domain/residence"
	"github.com/dormitory/backend/internal/domain/shared"
	"github.com/dormitory/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentService records payments against invoices and keeps the invoice
// ledger in step with them. Every payment write and the ledger change it
// causes commit in one transaction.
type PaymentService struct {
	paymentRepo    billing.PaymentRepository
	invoiceRepo    billing.InvoiceRepository
	studentRepo    residence.StudentProfileRepository
	ledger         *ledgerRunner
	eventPublisher shared.EventPublisher
	metrics        *telemetry.BillingMetrics
	logger         *zap.Logger
}

// PaymentServiceConfig holds the dependencies of PaymentService
type PaymentServiceConfig struct {
	PaymentRepo         billing.PaymentRepository
	InvoiceRepo         billing.InvoiceRepository
	StudentRepo         residence.StudentProfileRepository
	TxScope             TransactionScope
	EventPublisher      shared.EventPublisher
	Metrics             *telemetry.BillingMetrics
	Logger              *zap.Logger
	LedgerRetryAttempts int
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(cfg PaymentServiceConfig) *PaymentService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	txScope := cfg.TxScope
	if txScope == nil {
		txScope = NewNoOpTransactionScope(cfg.InvoiceRepo, cfg.PaymentRepo, cfg.StudentRepo, nil)
	}

	ledger := newLedgerRunner(txScope, cfg.LedgerRetryAttempts, logger)
	ledger.metrics = cfg.Metrics

	return &PaymentService{
		paymentRepo:    cfg.PaymentRepo,
		invoiceRepo:    cfg.InvoiceRepo,
		studentRepo:    cfg.StudentRepo,
		ledger:         ledger,
		eventPublisher: cfg.EventPublisher,
		metrics:        cfg.Metrics,
		logger:         logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *PaymentService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetBillingMetrics sets the billing metrics collector
func (s *PaymentService) SetBillingMetrics(bm *telemetry.BillingMetrics) {
	s.metrics = bm
	s.ledger.metrics = bm
}

// Create records a payment and adds its amount to the invoice's paid amount
func (s *PaymentService) Create(ctx context.Context, req CreatePaymentRequest) (*PaymentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "create")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, req.InvoiceID.String(),
		telemetry.SpanAttrStudentProfileID, req.StudentProfileID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	method := billing.PaymentMethod(req.Method)
	if method == "" {
		method = billing.PaymentMethodCash
	}

	var (
		payment *billing.Payment
		invoice *billing.Invoice
		payer   *residence.StudentProfile
		opErr   error
	)
	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels(telemetry.OperationRecordPayment, map[string]string{
		telemetry.ProfilingLabelPaymentMethod: string(method),
	}), func(c context.Context) {
		opErr = s.ledger.run(c, LedgerSourcePaymentCreate, func(repos TransactionalRepositories) error {
			p, err := billing.NewPayment(req.InvoiceID, req.StudentProfileID, req.Amount, method, req.TransactionCode, req.Notes)
			if err != nil {
				return err
			}
			if req.PaymentDate != nil {
				if err := p.SetPaymentDate(*req.PaymentDate); err != nil {
					return err
				}
			}

			inv, student, err := loadInvoiceForPayer(c, repos, req.InvoiceID, req.StudentProfileID)
			if err != nil {
				return err
			}

			if err := repos.PaymentRepo().Create(c, p); err != nil {
				return err
			}
			if err := s.ledger.applyDelta(c, repos.InvoiceRepo(), inv, p.Amount, nil); err != nil {
				return err
			}

			payment, invoice, payer = p, inv, student
			return nil
		})
	})
	if opErr != nil {
		telemetry.RecordError(span, opErr)
		return nil, opErr
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrPaymentID, payment.ID.String(),
		telemetry.SpanAttrPaymentMethod, payment.Method.String(),
		telemetry.SpanAttrInvoiceStatus, invoice.Status.String(),
	)
	s.logger.Info("Payment recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("amount", payment.Amount.String()),
		zap.String("method", payment.Method.String()),
		zap.String("invoice_status", invoice.Status.String()))

	s.metrics.RecordPayment(ctx, payment.Method.String(), payment.Amount)
	s.metrics.RecordLedgerApplied(ctx, LedgerSourcePaymentCreate, invoice.Status.String())
	publishInvoiceEvents(ctx, s.eventPublisher, s.logger, invoice)

	response := ToPaymentResponse(payment, invoice, payer)
	return &response, nil
}

// loadInvoiceForPayer loads the invoice and the student and checks that the
// student may pay it. Checked in order: invoice exists, payer matches,
// student exists, invoice accepts payments.
func loadInvoiceForPayer(
	ctx context.Context,
	repos TransactionalRepositories,
	invoiceID, studentProfileID uuid.UUID,
) (*billing.Invoice, *residence.StudentProfile, error) {
	inv, err := repos.InvoiceRepo().FindByID(ctx, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	if !inv.AcceptsPayer(studentProfileID) {
		return nil, nil, shared.NewDomainError(shared.CodeConflict,
			"Invoice is billed to a different student profile")
	}
	student, err := repos.StudentRepo().FindByID(ctx, studentProfileID)
	if err != nil {
		return nil, nil, err
	}
	if !inv.Status.CanAcceptPayment() {
		return nil, nil, shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("Cannot record payment for invoice in %s status", inv.Status))
	}
	return inv, student, nil
}

// Update changes a payment. When the amount changes, the difference is
// applied to the invoice in the same transaction.
func (s *PaymentService) Update(ctx context.Context, id uuid.UUID, req UpdatePaymentRequest) (*PaymentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "update")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrPaymentID, id.String())

	var (
		payment *billing.Payment
		invoice *billing.Invoice
		delta   decimal.Decimal
	)
	err := s.ledger.run(ctx, LedgerSourcePaymentUpdate, func(repos TransactionalRepositories) error {
		p, err := repos.PaymentRepo().FindByID(ctx, id)
		if err != nil {
			return err
		}
		inv, err := repos.InvoiceRepo().FindByID(ctx, p.InvoiceID)
		if err != nil {
			return err
		}

		d := decimal.Zero
		if req.Amount != nil {
			if !p.IsSettled() && !req.Amount.Equal(p.Amount) {
				return shared.NewDomainError(shared.CodeInvalidState,
					"Cannot change the amount of an unsettled gateway payment")
			}
			if d, err = p.ChangeAmount(*req.Amount); err != nil {
				return err
			}
		}
		if req.Method != nil {
			if err := p.ChangeMethod(billing.PaymentMethod(*req.Method)); err != nil {
				return err
			}
		}
		if req.TransactionCode != nil {
			if err := p.SetTransactionCode(*req.TransactionCode); err != nil {
				return err
			}
		}
		if req.PaymentDate != nil {
			if err := p.SetPaymentDate(*req.PaymentDate); err != nil {
				return err
			}
		}
		if req.Notes != nil {
			p.SetNotes(*req.Notes)
		}

		if err := repos.PaymentRepo().Save(ctx, p); err != nil {
			return err
		}
		if !d.IsZero() {
			if err := s.ledger.applyDelta(ctx, repos.InvoiceRepo(), inv, d, nil); err != nil {
				return err
			}
		}

		payment, invoice, delta = p, inv, d
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrDelta, delta.String())
	s.logger.Info("Payment updated",
		zap.String("payment_id", payment.ID.String()),
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("delta", delta.String()),
		zap.String("invoice_status", invoice.Status.String()))

	if !delta.IsZero() {
		s.metrics.RecordLedgerApplied(ctx, LedgerSourcePaymentUpdate, invoice.Status.String())
	}
	publishInvoiceEvents(ctx, s.eventPublisher, s.logger, invoice)

	response := ToPaymentResponse(payment, invoice, nil)
	return &response, nil
}

// Delete removes a payment and subtracts its amount from the invoice.
// Unsettled gateway payments never reached the ledger and are removed as is.
func (s *PaymentService) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "delete")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrPaymentID, id.String())

	var invoice *billing.Invoice
	err := s.ledger.run(ctx, LedgerSourcePaymentDelete, func(repos TransactionalRepositories) error {
		p, err := repos.PaymentRepo().FindByID(ctx, id)
		if err != nil {
			return err
		}
		inv, err := repos.InvoiceRepo().FindByID(ctx, p.InvoiceID)
		if err != nil {
			return err
		}
		if p.IsSettled() {
			if err := s.ledger.applyDelta(ctx, repos.InvoiceRepo(), inv, p.Amount.Neg(), nil); err != nil {
				return err
			}
		}
		if err := repos.PaymentRepo().Delete(ctx, p.ID); err != nil {
			return err
		}
		invoice = inv
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	s.logger.Info("Payment deleted",
		zap.String("payment_id", id.String()),
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_status", invoice.Status.String()))

	s.metrics.RecordLedgerApplied(ctx, LedgerSourcePaymentDelete, invoice.Status.String())
	publishInvoiceEvents(ctx, s.eventPublisher, s.logger, invoice)
	return nil
}

// GetByID retrieves a payment with its invoice and payer summaries
func (s *PaymentService) GetByID(ctx context.Context, id uuid.UUID) (*PaymentResponse, error) {
	p, err := s.paymentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	inv, err := s.invoiceRepo.FindByID(ctx, p.InvoiceID)
	if err != nil {
		return nil, err
	}
	// The payer summary is informational; a missing profile does not hide the payment.
	payer, err := s.studentRepo.FindByID(ctx, p.StudentProfileID)
	if err != nil {
		payer = nil
	}

	response := ToPaymentResponse(p, inv, payer)
	return &response, nil
}

// List retrieves payments with filtering and pagination
func (s *PaymentService) List(ctx context.Context, filter PaymentListFilter) ([]PaymentResponse, int64, error) {
	domainFilter := billing.PaymentFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
			Search:   filter.Search,
		},
		InvoiceID:        filter.InvoiceID,
		StudentProfileID: filter.StudentProfileID,
		From:             filter.From,
		To:               endOfDay(filter.To),
	}
	if domainFilter.OrderBy == "" {
		domainFilter.OrderBy = "payment_date"
	}
	if filter.Method != "" {
		method := billing.PaymentMethod(filter.Method)
		if !method.IsValid() {
			return nil, 0, shared.NewDomainError("INVALID_PAYMENT_METHOD", fmt.Sprintf("Payment method %q is not supported", filter.Method))
		}
		domainFilter.Method = &method
	}
	domainFilter.Normalize()

	payments, err := s.paymentRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.paymentRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	items := make([]PaymentResponse, len(payments))
	for i := range payments {
		items[i] = ToPaymentResponse(&payments[i], nil, nil)
	}
	return items, total, nil
}

// endOfDay turns a date-only upper bound into an inclusive one
func endOfDay(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	y, m, d := t.Date()
	end := time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
	return &end
}
