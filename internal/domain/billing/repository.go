package billing

import (
	"context"
	"time"

	"github.com/dormitory/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	StudentProfileID *uuid.UUID     // Filter by billed student
	RoomID           *uuid.UUID     // Filter by billed room
	Status           *InvoiceStatus // Filter by status
	BillingMonth     *int           // Filter by billing month
	BillingYear      *int           // Filter by billing year
}

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	// FindByID finds an invoice with its items
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindByInvoiceNumber finds an invoice by its number
	FindByInvoiceNumber(ctx context.Context, number string) (*Invoice, error)

	// FindAll finds invoices matching the filter
	FindAll(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)

	// Count counts invoices matching the filter
	Count(ctx context.Context, filter InvoiceFilter) (int64, error)

	// FindOverdueCandidates finds UNPAID or PARTIALLY_PAID invoices due before asOf
	FindOverdueCandidates(ctx context.Context, asOf time.Time) ([]Invoice, error)

	// Create inserts a new invoice together with its items
	Create(ctx context.Context, invoice *Invoice) error

	// SaveWithLock updates the invoice row using an optimistic version check.
	// Returns shared.ErrConcurrencyConflict when the stored version moved on.
	SaveWithLock(ctx context.Context, invoice *Invoice) error

	// ReplaceItems deletes all stored items of the invoice and inserts invoice.Items
	ReplaceItems(ctx context.Context, invoice *Invoice) error

	// Delete removes an invoice and its items
	Delete(ctx context.Context, id uuid.UUID) error
}

// PaymentFilter defines filtering options for payment queries
type PaymentFilter struct {
	shared.Filter
	InvoiceID        *uuid.UUID     // Filter by invoice
	StudentProfileID *uuid.UUID     // Filter by payer
	Method           *PaymentMethod // Filter by payment method
	GatewayStatus    *GatewayStatus // Filter by gateway status
	From             *time.Time     // Filter by payment date range start
	To               *time.Time     // Filter by payment date range end
}

// PaymentRepository defines the interface for payment persistence
type PaymentRepository interface {
	// FindByID finds a payment by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// FindByTxnRef finds a gateway payment by its transaction reference
	FindByTxnRef(ctx context.Context, txnRef string) (*Payment, error)

	// FindAll finds payments matching the filter
	FindAll(ctx context.Context, filter PaymentFilter) ([]Payment, error)

	// Count counts payments matching the filter
	Count(ctx context.Context, filter PaymentFilter) (int64, error)

	// CountByInvoice counts payments recorded against an invoice
	CountByInvoice(ctx context.Context, invoiceID uuid.UUID) (int64, error)

	// SumByInvoice sums the amounts of settled payments recorded against an invoice.
	// Pending and failed gateway payments are excluded.
	SumByInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error)

	// Create inserts a new payment
	Create(ctx context.Context, payment *Payment) error

	// Save updates a payment
	Save(ctx context.Context, payment *Payment) error

	// Delete removes a payment
	Delete(ctx context.Context, id uuid.UUID) error
}
