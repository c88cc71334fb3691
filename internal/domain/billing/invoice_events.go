package billing

import (
	"time"

	"github.com/dormitory/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type names
const (
	EventTypeInvoiceCreated        = "InvoiceCreated"
	EventTypeInvoiceItemsReplaced  = "InvoiceItemsReplaced"
	EventTypeInvoicePaymentApplied = "InvoicePaymentApplied"
	EventTypeInvoicePaid           = "InvoicePaid"
	EventTypeInvoiceCancelled      = "InvoiceCancelled"
	EventTypeInvoiceOverdue        = "InvoiceOverdue"
)

const aggregateTypeInvoice = "Invoice"

// InvoiceCreatedEvent is raised when a new invoice is issued
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceID        uuid.UUID       `json:"invoice_id"`
	InvoiceNumber    string          `json:"invoice_number"`
	StudentProfileID *uuid.UUID      `json:"student_profile_id,omitempty"`
	RoomID           *uuid.UUID      `json:"room_id,omitempty"`
	BillingMonth     int             `json:"billing_month"`
	BillingYear      int             `json:"billing_year"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	DueDate          time.Time       `json:"due_date"`
}

// EventType returns the event type name
func (e *InvoiceCreatedEvent) EventType() string {
	return EventTypeInvoiceCreated
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeInvoiceCreated, aggregateTypeInvoice, inv.ID),
		InvoiceID:        inv.ID,
		InvoiceNumber:    inv.InvoiceNumber,
		StudentProfileID: inv.StudentProfileID,
		RoomID:           inv.RoomID,
		BillingMonth:     inv.BillingMonth,
		BillingYear:      inv.BillingYear,
		TotalAmount:      inv.TotalAmount,
		DueDate:          inv.DueDate,
	}
}

// InvoiceItemsReplacedEvent is raised when the line items of an invoice are replaced
type InvoiceItemsReplacedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	PreviousTotal decimal.Decimal `json:"previous_total"`
	NewTotal      decimal.Decimal `json:"new_total"`
	ItemCount     int             `json:"item_count"`
}

// EventType returns the event type name
func (e *InvoiceItemsReplacedEvent) EventType() string {
	return EventTypeInvoiceItemsReplaced
}

// NewInvoiceItemsReplacedEvent creates a new InvoiceItemsReplacedEvent
func NewInvoiceItemsReplacedEvent(inv *Invoice, previousTotal decimal.Decimal) *InvoiceItemsReplacedEvent {
	return &InvoiceItemsReplacedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceItemsReplaced, aggregateTypeInvoice, inv.ID),
		InvoiceID:       inv.ID,
		PreviousTotal:   previousTotal,
		NewTotal:        inv.TotalAmount,
		ItemCount:       len(inv.Items),
	}
}

// InvoicePaymentAppliedEvent is raised whenever a payment delta changes the paid amount
type InvoicePaymentAppliedEvent struct {
	shared.BaseDomainEvent
	InvoiceID      uuid.UUID       `json:"invoice_id"`
	Delta          decimal.Decimal `json:"delta"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	PreviousStatus InvoiceStatus   `json:"previous_status"`
	Status         InvoiceStatus   `json:"status"`
}

// EventType returns the event type name
func (e *InvoicePaymentAppliedEvent) EventType() string {
	return EventTypeInvoicePaymentApplied
}

// NewInvoicePaymentAppliedEvent creates a new InvoicePaymentAppliedEvent
func NewInvoicePaymentAppliedEvent(inv *Invoice, delta decimal.Decimal, previous InvoiceStatus) *InvoicePaymentAppliedEvent {
	return &InvoicePaymentAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoicePaymentApplied, aggregateTypeInvoice, inv.ID),
		InvoiceID:       inv.ID,
		Delta:           delta,
		PaidAmount:      inv.PaidAmount,
		TotalAmount:     inv.TotalAmount,
		PreviousStatus:  previous,
		Status:          inv.Status,
	}
}

// InvoicePaidEvent is raised when an invoice becomes fully paid
type InvoicePaidEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	PaidAt        time.Time       `json:"paid_at"`
}

// EventType returns the event type name
func (e *InvoicePaidEvent) EventType() string {
	return EventTypeInvoicePaid
}

// NewInvoicePaidEvent creates a new InvoicePaidEvent
func NewInvoicePaidEvent(inv *Invoice) *InvoicePaidEvent {
	paidAt := time.Now()
	if inv.PaidAt != nil {
		paidAt = *inv.PaidAt
	}
	return &InvoicePaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoicePaid, aggregateTypeInvoice, inv.ID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		PaidAmount:      inv.PaidAmount,
		PaidAt:          paidAt,
	}
}

// InvoiceCancelledEvent is raised when an invoice is cancelled
type InvoiceCancelledEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
	Reason        string    `json:"reason,omitempty"`
}

// EventType returns the event type name
func (e *InvoiceCancelledEvent) EventType() string {
	return EventTypeInvoiceCancelled
}

// NewInvoiceCancelledEvent creates a new InvoiceCancelledEvent
func NewInvoiceCancelledEvent(inv *Invoice) *InvoiceCancelledEvent {
	return &InvoiceCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCancelled, aggregateTypeInvoice, inv.ID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		Reason:          inv.CancelReason,
	}
}

// InvoiceOverdueEvent is raised when an invoice passes its due date unsettled
type InvoiceOverdueEvent struct {
	shared.BaseDomainEvent
	InvoiceID         uuid.UUID       `json:"invoice_id"`
	InvoiceNumber     string          `json:"invoice_number"`
	DueDate           time.Time       `json:"due_date"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
}

// EventType returns the event type name
func (e *InvoiceOverdueEvent) EventType() string {
	return EventTypeInvoiceOverdue
}

// NewInvoiceOverdueEvent creates a new InvoiceOverdueEvent
func NewInvoiceOverdueEvent(inv *Invoice) *InvoiceOverdueEvent {
	return &InvoiceOverdueEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeInvoiceOverdue, aggregateTypeInvoice, inv.ID),
		InvoiceID:         inv.ID,
		InvoiceNumber:     inv.InvoiceNumber,
		DueDate:           inv.DueDate,
		OutstandingAmount: inv.OutstandingAmount(),
	}
}
