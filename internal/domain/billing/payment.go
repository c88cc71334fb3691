package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/dormitory/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how a payment was settled
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodVNPay        PaymentMethod = "VNPAY"
	PaymentMethodOther        PaymentMethod = "OTHER"
)

// IsValid checks if the payment method is supported
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodVNPay, PaymentMethodOther:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// GatewayStatus tracks a gateway-initiated payment. Manual payments leave it empty.
type GatewayStatus string

const (
	GatewayStatusNone      GatewayStatus = ""
	GatewayStatusPending   GatewayStatus = "PENDING"   // URL issued, no notification yet
	GatewayStatusConfirmed GatewayStatus = "CONFIRMED" // gateway reported success
	GatewayStatusFailed    GatewayStatus = "FAILED"    // gateway reported failure
)

// String returns the string representation of GatewayStatus
func (s GatewayStatus) String() string {
	return string(s)
}

// Payment records a single settlement against exactly one invoice.
// InvoiceID never changes after creation.
type Payment struct {
	shared.BaseEntity
	InvoiceID        uuid.UUID
	StudentProfileID uuid.UUID
	Amount           decimal.Decimal
	Method           PaymentMethod
	TransactionCode  string
	TxnRef           string
	GatewayStatus    GatewayStatus
	PaymentDate      time.Time
	Notes            string
}

// NewPayment creates a payment recorded by staff or imported from a bank statement
func NewPayment(
	invoiceID uuid.UUID,
	studentProfileID uuid.UUID,
	amount decimal.Decimal,
	method PaymentMethod,
	transactionCode string,
	notes string,
) (*Payment, error) {
	if invoiceID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Invoice ID cannot be empty")
	}
	if studentProfileID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_STUDENT", "Student profile ID cannot be empty")
	}
	if err := validatePaymentAmount(amount); err != nil {
		return nil, err
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("INVALID_PAYMENT_METHOD", fmt.Sprintf("Payment method %q is not supported", method))
	}
	if len(transactionCode) > 100 {
		return nil, shared.NewDomainError("INVALID_TRANSACTION_CODE", "Transaction code cannot exceed 100 characters")
	}

	return &Payment{
		BaseEntity:       shared.NewBaseEntity(),
		InvoiceID:        invoiceID,
		StudentProfileID: studentProfileID,
		Amount:           amount,
		Method:           method,
		TransactionCode:  strings.TrimSpace(transactionCode),
		PaymentDate:      time.Now(),
		Notes:            strings.TrimSpace(notes),
	}, nil
}

// NewGatewayPayment creates a pending VNPay payment. The transaction code stays
// empty until the gateway reports back; TxnRef identifies the payment to the gateway.
// A pending payment does not count toward the invoice's paid amount.
func NewGatewayPayment(invoiceID, studentProfileID uuid.UUID, amount decimal.Decimal, notes string) (*Payment, error) {
	p, err := NewPayment(invoiceID, studentProfileID, amount, PaymentMethodVNPay, "", notes)
	if err != nil {
		return nil, err
	}
	p.TxnRef = NewTxnRef()
	p.GatewayStatus = GatewayStatusPending
	return p, nil
}

// NewTxnRef returns a fresh alphanumeric gateway transaction reference
func NewTxnRef() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func validatePaymentAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return shared.NewDomainError("INVALID_AMOUNT", "Payment amount cannot be negative")
	}
	if !amount.Equal(amount.Round(2)) {
		return shared.NewDomainError("INVALID_AMOUNT", "Payment amount cannot have more than 2 decimal places")
	}
	return nil
}

// ChangeAmount sets a new amount and returns the signed delta (new - old)
func (p *Payment) ChangeAmount(amount decimal.Decimal) (decimal.Decimal, error) {
	if err := validatePaymentAmount(amount); err != nil {
		return decimal.Zero, err
	}
	delta := amount.Sub(p.Amount)
	if delta.IsZero() {
		return decimal.Zero, nil
	}
	p.Amount = amount
	p.UpdatedAt = time.Now()
	return delta, nil
}

// ChangeMethod sets a new payment method
func (p *Payment) ChangeMethod(method PaymentMethod) error {
	if !method.IsValid() {
		return shared.NewDomainError("INVALID_PAYMENT_METHOD", fmt.Sprintf("Payment method %q is not supported", method))
	}
	p.Method = method
	p.UpdatedAt = time.Now()
	return nil
}

// SetTransactionCode records the external transaction reference
func (p *Payment) SetTransactionCode(code string) error {
	if len(code) > 100 {
		return shared.NewDomainError("INVALID_TRANSACTION_CODE", "Transaction code cannot exceed 100 characters")
	}
	p.TransactionCode = strings.TrimSpace(code)
	p.UpdatedAt = time.Now()
	return nil
}

// SetPaymentDate records when the money was actually received
func (p *Payment) SetPaymentDate(date time.Time) error {
	if date.IsZero() {
		return shared.NewDomainError("INVALID_PAYMENT_DATE", "Payment date cannot be empty")
	}
	if date.After(time.Now().Add(24 * time.Hour)) {
		return shared.NewDomainError("INVALID_PAYMENT_DATE", "Payment date cannot be in the future")
	}
	p.PaymentDate = date
	p.UpdatedAt = time.Now()
	return nil
}

// SetNotes replaces the notes
func (p *Payment) SetNotes(notes string) {
	p.Notes = strings.TrimSpace(notes)
	p.UpdatedAt = time.Now()
}

// IsPending returns true for gateway payments that have not been reported on yet
func (p *Payment) IsPending() bool {
	return p.GatewayStatus == GatewayStatusPending
}

// IsSettled reports whether the payment counts toward the invoice's paid amount.
// Manual payments always do; gateway payments only once confirmed.
func (p *Payment) IsSettled() bool {
	return p.GatewayStatus == GatewayStatusNone || p.GatewayStatus == GatewayStatusConfirmed
}

// ConfirmGateway settles a pending gateway payment with the gateway's transaction number
func (p *Payment) ConfirmGateway(transactionNo string) error {
	return p.resolveGateway(GatewayStatusConfirmed, transactionNo)
}

// FailGateway records a failed gateway attempt. The payment stays unsettled.
func (p *Payment) FailGateway(transactionNo string) error {
	return p.resolveGateway(GatewayStatusFailed, transactionNo)
}

func (p *Payment) resolveGateway(status GatewayStatus, transactionNo string) error {
	if !p.IsPending() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Gateway payment is already %s", p.GatewayStatus))
	}
	if err := p.SetTransactionCode(transactionNo); err != nil {
		return err
	}
	p.GatewayStatus = status
	return nil
}

// AmountInMinorUnits returns the amount in the gateway scale (x100)
func (p *Payment) AmountInMinorUnits() int64 {
	return ToMinorUnits(p.Amount)
}

// ToMinorUnits converts an amount to the gateway's integer scale (x100)
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
