package models

import (
	"time"

	"github.com/dormitory/backend/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	AggregateModel
	InvoiceNumber    string                `gorm:"type:varchar(50);not null;uniqueIndex"`
	StudentProfileID *uuid.UUID            `gorm:"type:uuid;index"`
	RoomID           *uuid.UUID            `gorm:"type:uuid;index"`
	BillingMonth     int                   `gorm:"not null"`
	BillingYear      int                   `gorm:"not null"`
	IssueDate        time.Time             `gorm:"not null"`
	DueDate          time.Time             `gorm:"not null;index"`
	Deadline         *time.Time
	TotalAmount      decimal.Decimal       `gorm:"type:decimal(18,2);not null;default:0"`
	PaidAmount       decimal.Decimal       `gorm:"type:decimal(18,2);not null;default:0"`
	Status           billing.InvoiceStatus `gorm:"type:varchar(20);not null;default:'UNPAID';index"`
	Notes            string                `gorm:"type:text"`
	PaidAt           *time.Time
	CancelledAt      *time.Time
	CancelReason     string                `gorm:"type:varchar(500)"`
	Items            []InvoiceItemModel    `gorm:"foreignKey:InvoiceID;references:ID"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice entity.
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	inv := &billing.Invoice{
		InvoiceNumber:    m.InvoiceNumber,
		StudentProfileID: m.StudentProfileID,
		RoomID:           m.RoomID,
		BillingMonth:     m.BillingMonth,
		BillingYear:      m.BillingYear,
		IssueDate:        m.IssueDate,
		DueDate:          m.DueDate,
		Deadline:         m.Deadline,
		TotalAmount:      m.TotalAmount,
		PaidAmount:       m.PaidAmount,
		Status:           m.Status,
		Notes:            m.Notes,
		PaidAt:           m.PaidAt,
		CancelledAt:      m.CancelledAt,
		CancelReason:     m.CancelReason,
	}
	m.toAggregate(&inv.BaseAggregateRoot)
	inv.Items = make([]billing.InvoiceItem, len(m.Items))
	for i := range m.Items {
		inv.Items[i] = m.Items[i].ToDomain()
	}
	return inv
}

// FromDomain populates the persistence model from a domain Invoice entity.
func (m *InvoiceModel) FromDomain(inv *billing.Invoice) {
	m.fromAggregate(inv.BaseAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.StudentProfileID = inv.StudentProfileID
	m.RoomID = inv.RoomID
	m.BillingMonth = inv.BillingMonth
	m.BillingYear = inv.BillingYear
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.DueDate
	m.Deadline = inv.Deadline
	m.TotalAmount = inv.TotalAmount
	m.PaidAmount = inv.PaidAmount
	m.Status = inv.Status
	m.Notes = inv.Notes
	m.PaidAt = inv.PaidAt
	m.CancelledAt = inv.CancelledAt
	m.CancelReason = inv.CancelReason
	m.Items = InvoiceItemModelsFromDomain(inv.Items)
}

// InvoiceModelFromDomain creates a new persistence model from domain entity.
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// InvoiceItemModel is the persistence model for a charge line.
type InvoiceItemModel struct {
	ID          uuid.UUID        `gorm:"type:uuid;primary_key"`
	InvoiceID   uuid.UUID        `gorm:"type:uuid;not null;index"`
	Type        billing.ItemType `gorm:"type:varchar(20);not null"`
	Description string           `gorm:"type:varchar(255)"`
	Amount      decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	CreatedAt   time.Time        `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InvoiceItemModel) TableName() string {
	return "invoice_items"
}

// ToDomain converts the persistence model to a domain InvoiceItem.
func (m *InvoiceItemModel) ToDomain() billing.InvoiceItem {
	return billing.InvoiceItem{
		ID:          m.ID,
		InvoiceID:   m.InvoiceID,
		Type:        m.Type,
		Description: m.Description,
		Amount:      m.Amount,
	}
}

// InvoiceItemModelsFromDomain converts domain items to persistence models stamped with the current time.
func InvoiceItemModelsFromDomain(items []billing.InvoiceItem) []InvoiceItemModel {
	now := time.Now()
	out := make([]InvoiceItemModel, len(items))
	for i, it := range items {
		out[i] = InvoiceItemModel{
			ID:          it.ID,
			InvoiceID:   it.InvoiceID,
			Type:        it.Type,
			Description: it.Description,
			Amount:      it.Amount,
			CreatedAt:   now,
		}
	}
	return out
}

// PaymentModel is the persistence model for a Payment.
type PaymentModel struct {
	BaseModel
	InvoiceID        uuid.UUID             `gorm:"type:uuid;not null;index"`
	StudentProfileID uuid.UUID             `gorm:"type:uuid;not null;index"`
	Amount           decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	Method           billing.PaymentMethod `gorm:"type:varchar(20);not null"`
	TransactionCode  string                `gorm:"type:varchar(100)"`
	TxnRef           *string               `gorm:"type:varchar(64);uniqueIndex"`
	GatewayStatus    billing.GatewayStatus `gorm:"type:varchar(20);not null;default:''"`
	PaymentDate      time.Time             `gorm:"not null;index"`
	Notes            string                `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment entity.
func (m *PaymentModel) ToDomain() *billing.Payment {
	p := &billing.Payment{
		BaseEntity:       m.BaseModel.toEntity(),
		InvoiceID:        m.InvoiceID,
		StudentProfileID: m.StudentProfileID,
		Amount:           m.Amount,
		Method:           m.Method,
		TransactionCode:  m.TransactionCode,
		GatewayStatus:    m.GatewayStatus,
		PaymentDate:      m.PaymentDate,
		Notes:            m.Notes,
	}
	if m.TxnRef != nil {
		p.TxnRef = *m.TxnRef
	}
	return p
}

// FromDomain populates the persistence model from a domain Payment entity.
// An empty TxnRef is stored as NULL so the unique index only covers gateway payments.
func (m *PaymentModel) FromDomain(p *billing.Payment) {
	m.fromEntity(p.BaseEntity)
	m.InvoiceID = p.InvoiceID
	m.StudentProfileID = p.StudentProfileID
	m.Amount = p.Amount
	m.Method = p.Method
	m.TransactionCode = p.TransactionCode
	m.TxnRef = nil
	if p.TxnRef != "" {
		ref := p.TxnRef
		m.TxnRef = &ref
	}
	m.GatewayStatus = p.GatewayStatus
	m.PaymentDate = p.PaymentDate
	m.Notes = p.Notes
}

// PaymentModelFromDomain creates a new persistence model from domain entity.
func PaymentModelFromDomain(p *billing.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}
