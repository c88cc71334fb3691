package billing

import (
	"time"

	"github.com/dormitory/backend/internal/domain/billing"
	"github.com/dormitory/backend/internal/domain/residence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ============================================
// Invoice DTOs
// ============================================

// InvoiceItemInput is one charge line in a create or replace request.
// Type and amount are validated by the domain so errors can name the offending line.
type InvoiceItemInput struct {
	Type        string          `json:"type" binding:"required"`
	Description string          `json:"description" binding:"max=255"`
	Amount      decimal.Decimal `json:"amount"`
}

// CreateInvoiceRequest represents a request to issue an invoice
type CreateInvoiceRequest struct {
	InvoiceNumber    string             `json:"invoice_number" binding:"omitempty,max=50"`
	StudentProfileID *uuid.UUID         `json:"student_profile_id"`
	RoomID           *uuid.UUID         `json:"room_id"`
	BillingMonth     int                `json:"billing_month" binding:"required,min=1,max=12"`
	BillingYear      int                `json:"billing_year" binding:"required,min=2000,max=2100"`
	IssueDate        *time.Time         `json:"issue_date"`
	DueDate          time.Time          `json:"due_date" binding:"required"`
	Deadline         *time.Time         `json:"deadline"`
	Notes            string             `json:"notes" binding:"max=2000"`
	Items            []InvoiceItemInput `json:"items" binding:"required,min=1,dive"`
}

// UpdateInvoiceRequest changes schedule, notes and optionally the items.
// A nil Items leaves the stored items untouched.
type UpdateInvoiceRequest struct {
	DueDate  *time.Time         `json:"due_date"`
	Deadline *time.Time         `json:"deadline"`
	Notes    *string            `json:"notes" binding:"omitempty,max=2000"`
	Items    []InvoiceItemInput `json:"items" binding:"omitempty,min=1,dive"`
}

// ReplaceItemsRequest replaces every item of an invoice
type ReplaceItemsRequest struct {
	Items []InvoiceItemInput `json:"items" binding:"required,min=1,dive"`
}

// CancelInvoiceRequest represents a request to cancel an invoice
type CancelInvoiceRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// InvoiceListFilter represents filter options for the invoice list
type InvoiceListFilter struct {
	Search           string     `form:"search"`
	StudentProfileID *uuid.UUID `form:"student_profile_id"`
	RoomID           *uuid.UUID `form:"room_id"`
	Status           string     `form:"status" binding:"omitempty,invoice_status"`
	BillingMonth     *int       `form:"billing_month" binding:"omitempty,min=1,max=12"`
	BillingYear      *int       `form:"billing_year" binding:"omitempty,min=2000,max=2100"`
	Page             int        `form:"page" binding:"omitempty,min=1"`
	PageSize         int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy          string     `form:"order_by"`
	OrderDir         string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// InvoiceItemResponse represents an invoice item in API responses
type InvoiceItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID                uuid.UUID             `json:"id"`
	InvoiceNumber     string                `json:"invoice_number"`
	StudentProfileID  *uuid.UUID            `json:"student_profile_id,omitempty"`
	RoomID            *uuid.UUID            `json:"room_id,omitempty"`
	BillingMonth      int                   `json:"billing_month"`
	BillingYear       int                   `json:"billing_year"`
	IssueDate         time.Time             `json:"issue_date"`
	DueDate           time.Time             `json:"due_date"`
	Deadline          *time.Time            `json:"deadline,omitempty"`
	TotalAmount       decimal.Decimal       `json:"total_amount"`
	PaidAmount        decimal.Decimal       `json:"paid_amount"`
	OutstandingAmount decimal.Decimal       `json:"outstanding_amount"`
	Status            string                `json:"status"`
	Notes             string                `json:"notes,omitempty"`
	Items             []InvoiceItemResponse `json:"items"`
	PaidAt            *time.Time            `json:"paid_at,omitempty"`
	CancelledAt       *time.Time            `json:"cancelled_at,omitempty"`
	CancelReason      string                `json:"cancel_reason,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
	Version           int                   `json:"version"`
}

// InvoiceListItemResponse represents an invoice in list responses (no items)
type InvoiceListItemResponse struct {
	ID                uuid.UUID       `json:"id"`
	InvoiceNumber     string          `json:"invoice_number"`
	StudentProfileID  *uuid.UUID      `json:"student_profile_id,omitempty"`
	RoomID            *uuid.UUID      `json:"room_id,omitempty"`
	BillingMonth      int             `json:"billing_month"`
	BillingYear       int             `json:"billing_year"`
	DueDate           time.Time       `json:"due_date"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
	Status            string          `json:"status"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// MarkOverdueResponse reports how many invoices were flagged overdue
type MarkOverdueResponse struct {
	Marked     int         `json:"marked"`
	InvoiceIDs []uuid.UUID `json:"invoice_ids"`
}

// ToInvoiceResponse converts a domain Invoice to InvoiceResponse
func ToInvoiceResponse(inv *billing.Invoice) InvoiceResponse {
	items := make([]InvoiceItemResponse, len(inv.Items))
	for i, it := range inv.Items {
		items[i] = InvoiceItemResponse{
			ID:          it.ID,
			Type:        it.Type.String(),
			Description: it.Description,
			Amount:      it.Amount,
		}
	}
	return InvoiceResponse{
		ID:                inv.ID,
		InvoiceNumber:     inv.InvoiceNumber,
		StudentProfileID:  inv.StudentProfileID,
		RoomID:            inv.RoomID,
		BillingMonth:      inv.BillingMonth,
		BillingYear:       inv.BillingYear,
		IssueDate:         inv.IssueDate,
		DueDate:           inv.DueDate,
		Deadline:          inv.Deadline,
		TotalAmount:       inv.TotalAmount,
		PaidAmount:        inv.PaidAmount,
		OutstandingAmount: inv.OutstandingAmount(),
		Status:            inv.Status.String(),
		Notes:             inv.Notes,
		Items:             items,
		PaidAt:            inv.PaidAt,
		CancelledAt:       inv.CancelledAt,
		CancelReason:      inv.CancelReason,
		CreatedAt:         inv.CreatedAt,
		UpdatedAt:         inv.UpdatedAt,
		Version:           inv.Version,
	}
}

// ToInvoiceListItemResponse converts a domain Invoice to InvoiceListItemResponse
func ToInvoiceListItemResponse(inv *billing.Invoice) InvoiceListItemResponse {
	return InvoiceListItemResponse{
		ID:                inv.ID,
		InvoiceNumber:     inv.InvoiceNumber,
		StudentProfileID:  inv.StudentProfileID,
		RoomID:            inv.RoomID,
		BillingMonth:      inv.BillingMonth,
		BillingYear:       inv.BillingYear,
		DueDate:           inv.DueDate,
		TotalAmount:       inv.TotalAmount,
		PaidAmount:        inv.PaidAmount,
		OutstandingAmount: inv.OutstandingAmount(),
		Status:            inv.Status.String(),
		UpdatedAt:         inv.UpdatedAt,
	}
}

func toItemSpecs(inputs []InvoiceItemInput) []billing.ItemSpec {
	specs := make([]billing.ItemSpec, len(inputs))
	for i, in := range inputs {
		specs[i] = billing.ItemSpec{
			Type:        billing.ItemType(in.Type),
			Description: in.Description,
			Amount:      in.Amount,
		}
	}
	return specs
}

// ============================================
// Payment DTOs
// ============================================

// CreatePaymentRequest represents a request to record a payment
type CreatePaymentRequest struct {
	StudentProfileID uuid.UUID       `json:"student_profile_id" binding:"required"`
	InvoiceID        uuid.UUID       `json:"invoice_id" binding:"required"`
	Amount           decimal.Decimal `json:"amount"`
	Method           string          `json:"method" binding:"omitempty,payment_method"`
	TransactionCode  string          `json:"transaction_code" binding:"max=100"`
	PaymentDate      *time.Time      `json:"payment_date"`
	Notes            string          `json:"notes" binding:"max=2000"`
}

// UpdatePaymentRequest represents a partial payment update. Nil fields are left unchanged.
type UpdatePaymentRequest struct {
	Amount          *decimal.Decimal `json:"amount"`
	Method          *string          `json:"method" binding:"omitempty,payment_method"`
	TransactionCode *string          `json:"transaction_code" binding:"omitempty,max=100"`
	PaymentDate     *time.Time       `json:"payment_date"`
	Notes           *string          `json:"notes" binding:"omitempty,max=2000"`
}

// PaymentListFilter represents filter options for the payment list
type PaymentListFilter struct {
	Search           string     `form:"search"`
	InvoiceID        *uuid.UUID `form:"invoice_id"`
	StudentProfileID *uuid.UUID `form:"student_profile_id"`
	Method           string     `form:"method" binding:"omitempty,payment_method"`
	From             *time.Time `form:"from" time_format:"2006-01-02"`
	To               *time.Time `form:"to" time_format:"2006-01-02"`
	Page             int        `form:"page" binding:"omitempty,min=1"`
	PageSize         int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy          string     `form:"order_by"`
	OrderDir         string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// InvoiceSummary is the invoice view embedded in payment responses
type InvoiceSummary struct {
	ID            uuid.UUID       `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	Status        string          `json:"status"`
}

// PayerSummary is the student view embedded in payment responses
type PayerSummary struct {
	ID          uuid.UUID `json:"id"`
	StudentCode string    `json:"student_code"`
	FullName    string    `json:"full_name"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID               uuid.UUID       `json:"id"`
	InvoiceID        uuid.UUID       `json:"invoice_id"`
	StudentProfileID uuid.UUID       `json:"student_profile_id"`
	Amount           decimal.Decimal `json:"amount"`
	Method           string          `json:"method"`
	TransactionCode  string          `json:"transaction_code,omitempty"`
	TxnRef           string          `json:"txn_ref,omitempty"`
	GatewayStatus    string          `json:"gateway_status,omitempty"`
	PaymentDate      time.Time       `json:"payment_date"`
	Notes            string          `json:"notes,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Invoice          *InvoiceSummary `json:"invoice,omitempty"`
	Payer            *PayerSummary   `json:"payer,omitempty"`
}

// ToPaymentResponse converts a domain Payment to PaymentResponse.
// inv and payer are optional and only fill the embedded summaries.
func ToPaymentResponse(p *billing.Payment, inv *billing.Invoice, payer *residence.StudentProfile) PaymentResponse {
	resp := PaymentResponse{
		ID:               p.ID,
		InvoiceID:        p.InvoiceID,
		StudentProfileID: p.StudentProfileID,
		Amount:           p.Amount,
		Method:           p.Method.String(),
		TransactionCode:  p.TransactionCode,
		TxnRef:           p.TxnRef,
		GatewayStatus:    p.GatewayStatus.String(),
		PaymentDate:      p.PaymentDate,
		Notes:            p.Notes,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
	if inv != nil {
		resp.Invoice = &InvoiceSummary{
			ID:            inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			TotalAmount:   inv.TotalAmount,
			PaidAmount:    inv.PaidAmount,
			Status:        inv.Status.String(),
		}
	}
	if payer != nil {
		resp.Payer = &PayerSummary{
			ID:          payer.ID,
			StudentCode: payer.StudentCode,
			FullName:    payer.FullName,
		}
	}
	return resp
}

// ============================================
// Gateway DTOs
// ============================================

// CreatePaymentURLRequest asks for a VNPay checkout URL for an invoice
type CreatePaymentURLRequest struct {
	StudentProfileID uuid.UUID `json:"student_profile_id" binding:"required"`
	BankCode         string    `json:"bank_code" binding:"omitempty,max=20"`
	Locale           string    `json:"locale" binding:"omitempty,oneof=vn en"`
}

// PaymentURLResponse carries the checkout redirect
type PaymentURLResponse struct {
	PaymentID  uuid.UUID       `json:"payment_id"`
	InvoiceID  uuid.UUID       `json:"invoice_id"`
	TxnRef     string          `json:"txn_ref"`
	Amount     decimal.Decimal `json:"amount"`
	PaymentURL string          `json:"payment_url"`
}

// ReturnResult is what the browser return page shows after checkout
type ReturnResult struct {
	Success      bool       `json:"success"`
	Verified     bool       `json:"verified"`
	InvoiceID    *uuid.UUID `json:"invoice_id,omitempty"`
	PaymentID    *uuid.UUID `json:"payment_id,omitempty"`
	TxnRef       string     `json:"txn_ref,omitempty"`
	ResponseCode string     `json:"response_code,omitempty"`
	Message      string     `json:"message"`
}
