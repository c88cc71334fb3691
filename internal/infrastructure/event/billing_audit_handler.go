package event

import (
	"context"

	"github.com/dormitory/backend/internal/domain/billing"
	"github.com/dormitory/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// BillingAuditHandler writes one structured log line per invoice ledger event.
// The lines form the audit trail of paid amount and status changes.
type BillingAuditHandler struct {
	logger *zap.Logger
}

// NewBillingAuditHandler creates a BillingAuditHandler
func NewBillingAuditHandler(logger *zap.Logger) *BillingAuditHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingAuditHandler{logger: logger.Named("billing_audit")}
}

// EventTypes returns the invoice events this handler records
func (h *BillingAuditHandler) EventTypes() []string {
	return []string{
		billing.EventTypeInvoiceCreated,
		billing.EventTypeInvoiceItemsReplaced,
		billing.EventTypeInvoicePaymentApplied,
		billing.EventTypeInvoicePaid,
		billing.EventTypeInvoiceCancelled,
		billing.EventTypeInvoiceOverdue,
	}
}

// Handle logs the event with the fields relevant to its type
func (h *BillingAuditHandler) Handle(_ context.Context, evt shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_type", evt.EventType()),
		zap.String("event_id", evt.EventID().String()),
		zap.String("invoice_id", evt.AggregateID().String()),
		zap.Time("occurred_at", evt.OccurredAt()),
	}

	switch e := evt.(type) {
	case *billing.InvoiceCreatedEvent:
		fields = append(fields,
			zap.String("invoice_number", e.InvoiceNumber),
			zap.String("total_amount", e.TotalAmount.String()),
			zap.Int("billing_month", e.BillingMonth),
			zap.Int("billing_year", e.BillingYear))
	case *billing.InvoiceItemsReplacedEvent:
		fields = append(fields,
			zap.String("previous_total", e.PreviousTotal.String()),
			zap.String("total_amount", e.NewTotal.String()))
	case *billing.InvoicePaymentAppliedEvent:
		fields = append(fields,
			zap.String("delta", e.Delta.String()),
			zap.String("paid_amount", e.PaidAmount.String()),
			zap.String("total_amount", e.TotalAmount.String()),
			zap.String("previous_status", e.PreviousStatus.String()),
			zap.String("status", e.Status.String()))
	case *billing.InvoicePaidEvent:
		fields = append(fields,
			zap.String("invoice_number", e.InvoiceNumber),
			zap.String("paid_amount", e.PaidAmount.String()))
	case *billing.InvoiceCancelledEvent:
		fields = append(fields,
			zap.String("invoice_number", e.InvoiceNumber),
			zap.String("reason", e.Reason))
	case *billing.InvoiceOverdueEvent:
		fields = append(fields,
			zap.String("invoice_number", e.InvoiceNumber),
			zap.Time("due_date", e.DueDate),
			zap.String("outstanding_amount", e.OutstandingAmount.String()))
	}

	h.logger.Info("Invoice ledger event", fields...)
	return nil
}

var _ shared.EventHandler = (*BillingAuditHandler)(nil)
