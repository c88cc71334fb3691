package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/dormitory/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusUnpaid        InvoiceStatus = "UNPAID"         // Nothing paid yet
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID" // 0 < paid < total
	InvoiceStatusPaid          InvoiceStatus = "PAID"           // paid >= total
	InvoiceStatusOverdue       InvoiceStatus = "OVERDUE"        // Past due date and not settled
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED"      // Administratively voided
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusUnpaid, InvoiceStatusPartiallyPaid, InvoiceStatusPaid,
		InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further ledger changes are expected
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusCancelled
}

// CanAcceptPayment returns true if payments may be recorded against the invoice
func (s InvoiceStatus) CanAcceptPayment() bool {
	return s != InvoiceStatusCancelled
}

// DeriveInvoiceStatus computes the status implied by the paid and total amounts.
// Checked in order: paid >= total is PAID, paid > 0 is PARTIALLY_PAID, otherwise UNPAID.
func DeriveInvoiceStatus(paid, total decimal.Decimal) InvoiceStatus {
	if paid.GreaterThanOrEqual(total) {
		return InvoiceStatusPaid
	}
	if paid.IsPositive() {
		return InvoiceStatusPartiallyPaid
	}
	return InvoiceStatusUnpaid
}

// Invoice is the billing aggregate root. It is owed either by one student
// profile or collectively by one room, never both and never neither.
type Invoice struct {
	shared.BaseAggregateRoot
	InvoiceNumber    string
	StudentProfileID *uuid.UUID
	RoomID           *uuid.UUID
	BillingMonth     int
	BillingYear      int
	IssueDate        time.Time
	DueDate          time.Time
	Deadline         *time.Time
	TotalAmount      decimal.Decimal
	PaidAmount       decimal.Decimal
	Status           InvoiceStatus
	Notes            string
	Items            []InvoiceItem
	PaidAt           *time.Time
	CancelledAt      *time.Time
	CancelReason     string
}

// NewInvoiceParams holds the data needed to issue an invoice
type NewInvoiceParams struct {
	InvoiceNumber    string
	StudentProfileID *uuid.UUID
	RoomID           *uuid.UUID
	BillingMonth     int
	BillingYear      int
	IssueDate        time.Time
	DueDate          time.Time
	Deadline         *time.Time
	Notes            string
	Items            []ItemSpec
}

// NewInvoice creates a new unpaid invoice with its line items
func NewInvoice(p NewInvoiceParams) (*Invoice, error) {
	if p.InvoiceNumber == "" {
		p.InvoiceNumber = GenerateInvoiceNumber(p.BillingYear, p.BillingMonth)
	}
	if len(p.InvoiceNumber) > 50 {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot exceed 50 characters")
	}
	if err := validatePayer(p.StudentProfileID, p.RoomID); err != nil {
		return nil, err
	}
	if p.BillingMonth < 1 || p.BillingMonth > 12 {
		return nil, shared.NewDomainError("INVALID_BILLING_PERIOD", "Billing month must be between 1 and 12")
	}
	if p.BillingYear < 2000 || p.BillingYear > 9999 {
		return nil, shared.NewDomainError("INVALID_BILLING_PERIOD", "Billing year is out of range")
	}
	if p.IssueDate.IsZero() {
		p.IssueDate = time.Now()
	}
	if err := validateDates(p.IssueDate, p.DueDate, p.Deadline); err != nil {
		return nil, err
	}

	inv := &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		InvoiceNumber:     p.InvoiceNumber,
		StudentProfileID:  p.StudentProfileID,
		RoomID:            p.RoomID,
		BillingMonth:      p.BillingMonth,
		BillingYear:       p.BillingYear,
		IssueDate:         p.IssueDate,
		DueDate:           p.DueDate,
		Deadline:          p.Deadline,
		PaidAmount:        decimal.Zero,
		Notes:             strings.TrimSpace(p.Notes),
	}

	items, total, err := buildItems(inv.ID, p.Items)
	if err != nil {
		return nil, err
	}
	inv.Items = items
	inv.TotalAmount = total
	inv.Status = DeriveInvoiceStatus(inv.PaidAmount, inv.TotalAmount)

	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))

	return inv, nil
}

// GenerateInvoiceNumber builds a unique human readable invoice number
func GenerateInvoiceNumber(year, month int) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("INV-%04d%02d-%s", year, month, suffix)
}

func validatePayer(studentProfileID, roomID *uuid.UUID) error {
	hasStudent := studentProfileID != nil && *studentProfileID != uuid.Nil
	hasRoom := roomID != nil && *roomID != uuid.Nil
	if hasStudent == hasRoom {
		return shared.NewDomainError("INVALID_PAYER", "Invoice must reference exactly one of student profile or room")
	}
	return nil
}

func validateDates(issue, due time.Time, deadline *time.Time) error {
	if due.IsZero() {
		return shared.NewDomainError("INVALID_DUE_DATE", "Due date is required")
	}
	if due.Before(truncateDay(issue)) {
		return shared.NewDomainError("INVALID_DUE_DATE", "Due date cannot be before issue date")
	}
	if deadline != nil && deadline.Before(due) {
		return shared.NewDomainError("INVALID_DEADLINE", "Deadline cannot be before due date")
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ApplyPaymentDelta adds a signed delta to the paid amount and re-derives the status.
// A non-nil override replaces the derived status. No clamping is applied: a
// negative or over-paid balance is kept as is.
func (inv *Invoice) ApplyPaymentDelta(delta decimal.Decimal, override *InvoiceStatus) error {
	if override != nil && !override.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", fmt.Sprintf("Invalid invoice status: %s", *override))
	}

	previous := inv.Status
	inv.PaidAmount = inv.PaidAmount.Add(delta)

	switch {
	case override != nil:
		inv.Status = *override
	case previous == InvoiceStatusCancelled:
		// cancelled invoices stay cancelled until explicitly overridden
	default:
		inv.Status = DeriveInvoiceStatus(inv.PaidAmount, inv.TotalAmount)
	}

	now := time.Now()
	switch {
	case inv.Status == InvoiceStatusPaid && previous != InvoiceStatusPaid:
		inv.PaidAt = &now
	case inv.Status != InvoiceStatusPaid:
		inv.PaidAt = nil
	}

	inv.UpdatedAt = now
	inv.IncrementVersion()

	if !delta.IsZero() {
		inv.AddDomainEvent(NewInvoicePaymentAppliedEvent(inv, delta, previous))
	}
	if inv.Status != previous {
		switch inv.Status {
		case InvoiceStatusPaid:
			inv.AddDomainEvent(NewInvoicePaidEvent(inv))
		case InvoiceStatusCancelled:
			inv.AddDomainEvent(NewInvoiceCancelledEvent(inv))
		case InvoiceStatusOverdue:
			inv.AddDomainEvent(NewInvoiceOverdueEvent(inv))
		}
	}

	return nil
}

// ReplaceItems swaps all line items, recomputes the total and re-derives the
// status against the existing paid amount.
func (inv *Invoice) ReplaceItems(specs []ItemSpec) error {
	if inv.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot change items of invoice in %s status", inv.Status))
	}

	items, total, err := buildItems(inv.ID, specs)
	if err != nil {
		return err
	}

	previousTotal := inv.TotalAmount
	inv.Items = items
	inv.TotalAmount = total

	inv.AddDomainEvent(NewInvoiceItemsReplacedEvent(inv, previousTotal))

	// Status is re-derived through the ledger with a zero delta.
	return inv.ApplyPaymentDelta(decimal.Zero, nil)
}

// Cancel administratively voids the invoice. Only invoices without payments can be cancelled.
func (inv *Invoice) Cancel(reason string) error {
	if inv.Status == InvoiceStatusCancelled {
		return shared.NewDomainError("INVALID_STATE", "Invoice is already cancelled")
	}
	if !inv.PaidAmount.IsZero() {
		return shared.NewDomainError("HAS_PAYMENTS", "Cannot cancel invoice with recorded payments")
	}

	now := time.Now()
	inv.CancelledAt = &now
	inv.CancelReason = strings.TrimSpace(reason)

	cancelled := InvoiceStatusCancelled
	return inv.ApplyPaymentDelta(decimal.Zero, &cancelled)
}

// MarkOverdue flags an unsettled invoice whose due date has passed.
// Returns true when the status changed.
func (inv *Invoice) MarkOverdue(asOf time.Time) (bool, error) {
	if !inv.IsOverdueAt(asOf) {
		return false, nil
	}
	overdue := InvoiceStatusOverdue
	if err := inv.ApplyPaymentDelta(decimal.Zero, &overdue); err != nil {
		return false, err
	}
	return true, nil
}

// IsOverdueAt reports whether the invoice should be flagged overdue at the given time
func (inv *Invoice) IsOverdueAt(asOf time.Time) bool {
	if inv.Status != InvoiceStatusUnpaid && inv.Status != InvoiceStatusPartiallyPaid {
		return false
	}
	return asOf.After(inv.DueDate)
}

// UpdateDetails changes the schedule and notes of the invoice
func (inv *Invoice) UpdateDetails(dueDate *time.Time, deadline *time.Time, notes *string) error {
	if inv.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot modify invoice in %s status", inv.Status))
	}

	due := inv.DueDate
	if dueDate != nil {
		due = *dueDate
	}
	dl := inv.Deadline
	if deadline != nil {
		dl = deadline
	}
	if err := validateDates(inv.IssueDate, due, dl); err != nil {
		return err
	}

	inv.DueDate = due
	inv.Deadline = dl
	if notes != nil {
		inv.Notes = strings.TrimSpace(*notes)
	}
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
	return nil
}

// OutstandingAmount returns total minus paid. It can be negative when over-paid.
func (inv *Invoice) OutstandingAmount() decimal.Decimal {
	return inv.TotalAmount.Sub(inv.PaidAmount)
}

// IsOverpaid returns true if more than the total has been paid
func (inv *Invoice) IsOverpaid() bool {
	return inv.PaidAmount.GreaterThan(inv.TotalAmount)
}

// HasNegativeBalance returns true if the paid amount dropped below zero
func (inv *Invoice) HasNegativeBalance() bool {
	return inv.PaidAmount.IsNegative()
}

// IsOwnedByStudent returns true if the invoice is billed to a single student
func (inv *Invoice) IsOwnedByStudent() bool {
	return inv.StudentProfileID != nil && *inv.StudentProfileID != uuid.Nil
}

// AcceptsPayer reports whether the student may pay this invoice.
// Room invoices accept any payer; student invoices only their own.
func (inv *Invoice) AcceptsPayer(studentProfileID uuid.UUID) bool {
	if !inv.IsOwnedByStudent() {
		return true
	}
	return *inv.StudentProfileID == studentProfileID
}
