package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/dormitory/backend/internal/domain/billing"
	"github.com/dormitory/backend/internal/domain/shared"
	"github.com/dormitory/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormInvoiceRepository) WithTx(tx *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: tx}
}

// FindByID finds an invoice by ID with its items preloaded
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	var model models.InvoiceModel
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		return nil, translateError(err, "Invoice")
	}
	return model.ToDomain(), nil
}

// FindByInvoiceNumber finds an invoice by its number
func (r *GormInvoiceRepository) FindByInvoiceNumber(ctx context.Context, number string) (*billing.Invoice, error) {
	var model models.InvoiceModel
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("invoice_number = ?", number).
		First(&model).Error
	if err != nil {
		return nil, translateError(err, "Invoice")
	}
	return model.ToDomain(), nil
}

// FindAll finds invoices matching the filter. Items are not loaded.
func (r *GormInvoiceRepository) FindAll(ctx context.Context, filter billing.InvoiceFilter) ([]billing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.InvoiceModel{}), filter)

	query = invoiceSort.page(query, filter.Filter)

	if err := query.Find(&invoiceModels).Error; err != nil {
		return nil, err
	}

	invoices := make([]billing.Invoice, len(invoiceModels))
	for i := range invoiceModels {
		invoices[i] = *invoiceModels[i].ToDomain()
	}
	return invoices, nil
}

// Count counts invoices matching the filter
func (r *GormInvoiceRepository) Count(ctx context.Context, filter billing.InvoiceFilter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.InvoiceModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindOverdueCandidates finds open invoices whose due date is before asOf
func (r *GormInvoiceRepository) FindOverdueCandidates(ctx context.Context, asOf time.Time) ([]billing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	err := r.db.WithContext(ctx).
		Where("status IN ?", []billing.InvoiceStatus{billing.InvoiceStatusUnpaid, billing.InvoiceStatusPartiallyPaid}).
		Where("due_date < ?", asOf).
		Order("due_date ASC").
		Find(&invoiceModels).Error
	if err != nil {
		return nil, err
	}

	invoices := make([]billing.Invoice, len(invoiceModels))
	for i := range invoiceModels {
		invoices[i] = *invoiceModels[i].ToDomain()
	}
	return invoices, nil
}

// Create inserts the invoice and its items
func (r *GormInvoiceRepository) Create(ctx context.Context, invoice *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateError(err, "Invoice")
	}
	invoice.SetPersistedVersion(invoice.Version)
	return nil
}

// SaveWithLock updates the invoice row only if the stored version still matches
// the version it was loaded with. Items are written separately by ReplaceItems.
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	model.Items = nil

	result := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("id = ? AND version = ?", invoice.ID, invoice.PersistedVersion()).
		Select("*").
		Omit("id", "created_at", "Items").
		Updates(model)
	if result.Error != nil {
		return translateError(result.Error, "Invoice")
	}
	if result.RowsAffected == 0 {
		return shared.WrapDomainError(shared.CodeConcurrencyConflict,
			"Invoice was modified by another request, please retry", shared.ErrConcurrencyConflict)
	}

	invoice.SetPersistedVersion(invoice.Version)
	return nil
}

// ReplaceItems deletes all stored items of the invoice and inserts invoice.Items
func (r *GormInvoiceRepository) ReplaceItems(ctx context.Context, invoice *billing.Invoice) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("invoice_id = ?", invoice.ID).Delete(&models.InvoiceItemModel{}).Error; err != nil {
		return err
	}
	items := models.InvoiceItemModelsFromDomain(invoice.Items)
	if len(items) == 0 {
		return nil
	}
	if err := db.Create(&items).Error; err != nil {
		return translateError(err, "Invoice item")
	}
	return nil
}

// Delete removes an invoice and its items
func (r *GormInvoiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("invoice_id = ?", id).Delete(&models.InvoiceItemModel{}).Error; err != nil {
		return err
	}
	result := db.Where("id = ?", id).Delete(&models.InvoiceModel{})
	if result.Error != nil {
		return translateError(result.Error, "Invoice")
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *GormInvoiceRepository) applyFilter(query *gorm.DB, filter billing.InvoiceFilter) *gorm.DB {
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(invoice_number) LIKE ? OR LOWER(notes) LIKE ?", pattern, pattern)
	}
	if filter.StudentProfileID != nil {
		query = query.Where("student_profile_id = ?", *filter.StudentProfileID)
	}
	if filter.RoomID != nil {
		query = query.Where("room_id = ?", *filter.RoomID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.BillingMonth != nil {
		query = query.Where("billing_month = ?", *filter.BillingMonth)
	}
	if filter.BillingYear != nil {
		query = query.Where("billing_year = ?", *filter.BillingYear)
	}
	return query
}

// Ensure GormInvoiceRepository implements InvoiceRepository
var _ billing.InvoiceRepository = (*GormInvoiceRepository)(nil)
