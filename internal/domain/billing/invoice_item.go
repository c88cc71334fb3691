package billing

import (
	"fmt"
	"strings"

	"github.com/dormitory/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemType is the charge category of an invoice line
type ItemType string

const (
	ItemTypeRoomFee     ItemType = "ROOM_FEE"
	ItemTypeElectricity ItemType = "ELECTRICITY"
	ItemTypeWater       ItemType = "WATER"
	ItemTypeService     ItemType = "SERVICE"
	ItemTypeParking     ItemType = "PARKING"
	ItemTypeOther       ItemType = "OTHER"
)

// AllItemTypes returns every supported item type
func AllItemTypes() []ItemType {
	return []ItemType{
		ItemTypeRoomFee,
		ItemTypeElectricity,
		ItemTypeWater,
		ItemTypeService,
		ItemTypeParking,
		ItemTypeOther,
	}
}

// IsValid checks if the item type is one of the supported categories
func (t ItemType) IsValid() bool {
	switch t {
	case ItemTypeRoomFee, ItemTypeElectricity, ItemTypeWater,
		ItemTypeService, ItemTypeParking, ItemTypeOther:
		return true
	}
	return false
}

// String returns the string representation of ItemType
func (t ItemType) String() string {
	return string(t)
}

// InvoiceItem is a single charge line of an invoice.
// Items are immutable; an invoice replaces its items wholesale.
type InvoiceItem struct {
	ID          uuid.UUID
	InvoiceID   uuid.UUID
	Type        ItemType
	Description string
	Amount      decimal.Decimal
}

// ItemSpec describes an invoice line to be created
type ItemSpec struct {
	Type        ItemType
	Description string
	Amount      decimal.Decimal
}

// Validate checks type and amount; index names the offending item in errors.
func (s ItemSpec) Validate(index int) error {
	if !s.Type.IsValid() {
		return shared.NewDomainError("INVALID_ITEM_TYPE",
			fmt.Sprintf("Item %d: type %q is not one of %s", index+1, s.Type, joinItemTypes()))
	}
	if s.Amount.IsNegative() {
		return shared.NewDomainError("INVALID_ITEM_AMOUNT",
			fmt.Sprintf("Item %d (%s): amount must be a non-negative number", index+1, s.Type))
	}
	if !s.Amount.Equal(s.Amount.Round(2)) {
		return shared.NewDomainError("INVALID_ITEM_AMOUNT",
			fmt.Sprintf("Item %d (%s): amount cannot have more than 2 decimal places", index+1, s.Type))
	}
	if len(s.Description) > 255 {
		return shared.NewDomainError("INVALID_ITEM_DESCRIPTION",
			fmt.Sprintf("Item %d (%s): description cannot exceed 255 characters", index+1, s.Type))
	}
	return nil
}

// buildItems validates specs and materialises them for the given invoice
func buildItems(invoiceID uuid.UUID, specs []ItemSpec) ([]InvoiceItem, decimal.Decimal, error) {
	if len(specs) == 0 {
		return nil, decimal.Zero, shared.NewDomainError("INVALID_ITEMS", "Invoice must have at least one item")
	}

	items := make([]InvoiceItem, 0, len(specs))
	total := decimal.Zero
	for i, spec := range specs {
		if err := spec.Validate(i); err != nil {
			return nil, decimal.Zero, err
		}
		items = append(items, InvoiceItem{
			ID:          uuid.New(),
			InvoiceID:   invoiceID,
			Type:        spec.Type,
			Description: strings.TrimSpace(spec.Description),
			Amount:      spec.Amount,
		})
		total = total.Add(spec.Amount)
	}
	return items, total, nil
}

func joinItemTypes() string {
	types := AllItemTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
