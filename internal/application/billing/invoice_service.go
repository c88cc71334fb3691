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
	"go.uber.org/zap"
)

// InvoiceService handles invoice business operations
type InvoiceService struct {
	invoiceRepo    billing.InvoiceRepository
	paymentRepo    billing.PaymentRepository
	studentRepo    residence.StudentProfileRepository
	roomRepo       residence.RoomRepository
	ledger         *ledgerRunner
	eventPublisher shared.EventPublisher
	metrics        *telemetry.BillingMetrics
	logger         *zap.Logger
}

// InvoiceServiceConfig holds the dependencies of InvoiceService
type InvoiceServiceConfig struct {
	InvoiceRepo         billing.InvoiceRepository
	PaymentRepo         billing.PaymentRepository
	StudentRepo         residence.StudentProfileRepository
	RoomRepo            residence.RoomRepository
	TxScope             TransactionScope
	EventPublisher      shared.EventPublisher
	Metrics             *telemetry.BillingMetrics
	Logger              *zap.Logger
	LedgerRetryAttempts int
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(cfg InvoiceServiceConfig) *InvoiceService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	txScope := cfg.TxScope
	if txScope == nil {
		txScope = NewNoOpTransactionScope(cfg.InvoiceRepo, cfg.PaymentRepo, cfg.StudentRepo, cfg.RoomRepo)
	}

	ledger := newLedgerRunner(txScope, cfg.LedgerRetryAttempts, logger)
	ledger.metrics = cfg.Metrics

	return &InvoiceService{
		invoiceRepo:    cfg.InvoiceRepo,
		paymentRepo:    cfg.PaymentRepo,
		studentRepo:    cfg.StudentRepo,
		roomRepo:       cfg.RoomRepo,
		ledger:         ledger,
		eventPublisher: cfg.EventPublisher,
		metrics:        cfg.Metrics,
		logger:         logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *InvoiceService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetBillingMetrics sets the billing metrics collector
func (s *InvoiceService) SetBillingMetrics(bm *telemetry.BillingMetrics) {
	s.metrics = bm
	s.ledger.metrics = bm
}

// Create issues a new invoice to a student or a room
func (s *InvoiceService) Create(ctx context.Context, req CreateInvoiceRequest) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "create")
	defer span.End()

	if err := s.ensurePayerExists(ctx, req.StudentProfileID, req.RoomID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	params := billing.NewInvoiceParams{
		InvoiceNumber:    req.InvoiceNumber,
		StudentProfileID: req.StudentProfileID,
		RoomID:           req.RoomID,
		BillingMonth:     req.BillingMonth,
		BillingYear:      req.BillingYear,
		DueDate:          req.DueDate,
		Deadline:         req.Deadline,
		Notes:            req.Notes,
		Items:            toItemSpecs(req.Items),
	}
	if req.IssueDate != nil {
		params.IssueDate = *req.IssueDate
	}

	inv, err := billing.NewInvoice(params)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.invoiceRepo.Create(ctx, inv); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, inv.ID.String(),
		telemetry.SpanAttrInvoiceNumber, inv.InvoiceNumber,
		telemetry.SpanAttrAmount, inv.TotalAmount.String(),
	)
	s.logger.Info("Invoice created",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("total_amount", inv.TotalAmount.String()))

	s.publishDomainEvents(ctx, inv)

	response := ToInvoiceResponse(inv)
	return &response, nil
}

func (s *InvoiceService) ensurePayerExists(ctx context.Context, studentProfileID, roomID *uuid.UUID) error {
	if studentProfileID != nil && *studentProfileID != uuid.Nil {
		exists, err := s.studentRepo.ExistsByID(ctx, *studentProfileID)
		if err != nil {
			return err
		}
		if !exists {
			return shared.NewDomainError(shared.CodeNotFound, "Student profile not found")
		}
	}
	if roomID != nil && *roomID != uuid.Nil {
		exists, err := s.roomRepo.ExistsByID(ctx, *roomID)
		if err != nil {
			return err
		}
		if !exists {
			return shared.NewDomainError(shared.CodeNotFound, "Room not found")
		}
	}
	return nil
}

// GetByID retrieves an invoice with its items
func (s *InvoiceService) GetByID(ctx context.Context, id uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToInvoiceResponse(inv)
	return &response, nil
}

// List retrieves invoices with filtering and pagination
func (s *InvoiceService) List(ctx context.Context, filter InvoiceListFilter) ([]InvoiceListItemResponse, int64, error) {
	domainFilter := billing.InvoiceFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
			Search:   filter.Search,
		},
		StudentProfileID: filter.StudentProfileID,
		RoomID:           filter.RoomID,
		BillingMonth:     filter.BillingMonth,
		BillingYear:      filter.BillingYear,
	}
	if domainFilter.OrderBy == "" {
		domainFilter.OrderBy = "created_at"
	}
	if filter.Status != "" {
		status := billing.InvoiceStatus(filter.Status)
		if !status.IsValid() {
			return nil, 0, shared.NewDomainError("INVALID_STATUS", fmt.Sprintf("Invalid invoice status: %s", filter.Status))
		}
		domainFilter.Status = &status
	}
	domainFilter.Normalize()

	invoices, err := s.invoiceRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.invoiceRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	items := make([]InvoiceListItemResponse, len(invoices))
	for i := range invoices {
		items[i] = ToInvoiceListItemResponse(&invoices[i])
	}
	return items, total, nil
}

// Update changes the schedule and notes of an invoice and, when items are
// supplied, replaces them in the same transaction.
func (s *InvoiceService) Update(ctx context.Context, id uuid.UUID, req UpdateInvoiceRequest) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "update")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceID, id.String())

	var updated *billing.Invoice
	err := s.ledger.run(ctx, LedgerSourceItemsReplaced, func(repos TransactionalRepositories) error {
		repo := repos.InvoiceRepo()
		inv, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}

		if req.DueDate != nil || req.Deadline != nil || req.Notes != nil {
			if err := inv.UpdateDetails(req.DueDate, req.Deadline, req.Notes); err != nil {
				return err
			}
		}
		if req.Items != nil {
			if err := inv.ReplaceItems(toItemSpecs(req.Items)); err != nil {
				return err
			}
		}

		if err := repo.SaveWithLock(ctx, inv); err != nil {
			return err
		}
		if req.Items != nil {
			if err := repo.ReplaceItems(ctx, inv); err != nil {
				return err
			}
		}
		updated = inv
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if req.Items != nil {
		s.metrics.RecordLedgerApplied(ctx, LedgerSourceItemsReplaced, updated.Status.String())
	}
	s.publishDomainEvents(ctx, updated)

	response := ToInvoiceResponse(updated)
	return &response, nil
}

// ReplaceItems replaces every item of an invoice, recomputes its total and
// re-derives its status against the amount already paid.
func (s *InvoiceService) ReplaceItems(ctx context.Context, id uuid.UUID, req ReplaceItemsRequest) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "replace_items")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceID, id.String())

	var updated *billing.Invoice
	err := s.ledger.run(ctx, LedgerSourceItemsReplaced, func(repos TransactionalRepositories) error {
		repo := repos.InvoiceRepo()
		inv, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := inv.ReplaceItems(toItemSpecs(req.Items)); err != nil {
			return err
		}
		if err := repo.SaveWithLock(ctx, inv); err != nil {
			return err
		}
		if err := repo.ReplaceItems(ctx, inv); err != nil {
			return err
		}
		updated = inv
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrAmount, updated.TotalAmount.String(),
		telemetry.SpanAttrInvoiceStatus, updated.Status.String(),
	)
	s.logger.Info("Invoice items replaced",
		zap.String("invoice_id", updated.ID.String()),
		zap.Int("items", len(updated.Items)),
		zap.String("total_amount", updated.TotalAmount.String()),
		zap.String("status", updated.Status.String()))

	s.metrics.RecordLedgerApplied(ctx, LedgerSourceItemsReplaced, updated.Status.String())
	s.publishDomainEvents(ctx, updated)

	response := ToInvoiceResponse(updated)
	return &response, nil
}

// Cancel voids an invoice that has no payments. An open gateway checkout
// counts as a payment until the gateway reports its outcome.
func (s *InvoiceService) Cancel(ctx context.Context, id uuid.UUID, req CancelInvoiceRequest) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "cancel")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceID, id.String())

	var cancelled *billing.Invoice
	err := s.ledger.run(ctx, LedgerSourceCancel, func(repos TransactionalRepositories) error {
		repo := repos.InvoiceRepo()
		inv, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		pending := billing.GatewayStatusPending
		open, err := repos.PaymentRepo().Count(ctx, billing.PaymentFilter{InvoiceID: &id, GatewayStatus: &pending})
		if err != nil {
			return err
		}
		if open > 0 {
			return shared.NewDomainError("HAS_PAYMENTS", "Cannot cancel invoice with a gateway payment in progress")
		}
		if err := inv.Cancel(req.Reason); err != nil {
			return err
		}
		if err := repo.SaveWithLock(ctx, inv); err != nil {
			return err
		}
		cancelled = inv
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Invoice cancelled",
		zap.String("invoice_id", cancelled.ID.String()),
		zap.String("reason", cancelled.CancelReason))
	s.metrics.RecordLedgerApplied(ctx, LedgerSourceCancel, cancelled.Status.String())
	s.publishDomainEvents(ctx, cancelled)

	response := ToInvoiceResponse(cancelled)
	return &response, nil
}

// MarkOverdue flags every unsettled invoice whose due date is before asOf.
// Invoices that change concurrently are re-read and re-checked; a failure on
// one invoice is logged and does not stop the sweep.
func (s *InvoiceService) MarkOverdue(ctx context.Context, asOf time.Time) (*MarkOverdueResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "mark_overdue")
	defer span.End()

	candidates, err := s.invoiceRepo.FindOverdueCandidates(ctx, asOf)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &MarkOverdueResponse{InvoiceIDs: make([]uuid.UUID, 0, len(candidates))}
	for i := range candidates {
		id := candidates[i].ID

		var marked *billing.Invoice
		err := s.ledger.run(ctx, LedgerSourceOverdue, func(repos TransactionalRepositories) error {
			marked = nil
			repo := repos.InvoiceRepo()
			inv, err := repo.FindByID(ctx, id)
			if err != nil {
				return err
			}
			changed, err := inv.MarkOverdue(asOf)
			if err != nil || !changed {
				return err
			}
			if err := repo.SaveWithLock(ctx, inv); err != nil {
				return err
			}
			marked = inv
			return nil
		})
		if err != nil {
			s.logger.Warn("Failed to mark invoice overdue",
				zap.String("invoice_id", id.String()),
				zap.Error(err))
			continue
		}
		if marked == nil {
			continue
		}

		result.InvoiceIDs = append(result.InvoiceIDs, marked.ID)
		s.metrics.RecordLedgerApplied(ctx, LedgerSourceOverdue, marked.Status.String())
		s.publishDomainEvents(ctx, marked)
	}
	result.Marked = len(result.InvoiceIDs)

	telemetry.SetAttribute(span, "marked", result.Marked)
	s.logger.Info("Overdue sweep finished",
		zap.Time("as_of", asOf),
		zap.Int("candidates", len(candidates)),
		zap.Int("marked", result.Marked))

	return result, nil
}

// Delete removes an invoice that has no payments recorded against it
func (s *InvoiceService) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "delete")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceID, id.String())

	err := s.ledger.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.InvoiceRepo().FindByID(ctx, id); err != nil {
			return err
		}
		count, err := repos.PaymentRepo().CountByInvoice(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return shared.NewDomainError("HAS_PAYMENTS", "Cannot delete invoice with recorded payments")
		}
		return repos.InvoiceRepo().Delete(ctx, id)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	s.logger.Info("Invoice deleted", zap.String("invoice_id", id.String()))
	return nil
}

// publishDomainEvents publishes all domain events from the invoice
func (s *InvoiceService) publishDomainEvents(ctx context.Context, inv *billing.Invoice) {
	publishInvoiceEvents(ctx, s.eventPublisher, s.logger, inv)
}

func publishInvoiceEvents(ctx context.Context, publisher shared.EventPublisher, logger *zap.Logger, inv *billing.Invoice) {
	if publisher == nil || inv == nil {
		return
	}
	events := inv.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	if err := publisher.Publish(ctx, events...); err != nil {
		logger.Warn("Failed to publish invoice events",
			zap.String("invoice_id", inv.ID.String()),
			zap.Error(err))
	}
	inv.ClearDomainEvents()
}
