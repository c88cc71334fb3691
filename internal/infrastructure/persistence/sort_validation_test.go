package persistence

import (
	"testing"

	"github.com/dormitory/backend/internal/domain/shared"
	"github.com/dormitory/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestSortColumns_Column(t *testing.T) {
	tests := []struct {
		requested string
		want      string
	}{
		{"", "created_at"},
		{"due_date", "due_date"},
		{"  paid_amount  ", "paid_amount"},
		{"id", "id"},
		{"DUE_DATE", "created_at"},
		{"payment_date", "created_at"},
		{"due_date; DROP TABLE invoices;--", "created_at"},
		{"due_date, (SELECT 1)", "created_at"},
		{"status desc", "created_at"},
	}

	for _, tt := range tests {
		t.Run(tt.requested, func(t *testing.T) {
			assert.Equal(t, tt.want, invoiceSort.column(tt.requested))
		})
	}
}

func TestSortColumns_OrderByDirection(t *testing.T) {
	assert.False(t, roomSort.orderBy("floor", "asc").Desc)
	assert.False(t, roomSort.orderBy("floor", " ASC ").Desc)
	assert.True(t, roomSort.orderBy("floor", "desc").Desc)
	assert.True(t, roomSort.orderBy("floor", "").Desc)
	assert.True(t, roomSort.orderBy("floor", "asc; DELETE FROM rooms").Desc)
}

func TestSortColumns_FallbackAlwaysAllowed(t *testing.T) {
	for name, s := range map[string]sortColumns{
		"invoice": invoiceSort,
		"payment": paymentSort,
		"student": studentProfileSort,
		"room":    roomSort,
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, s.fallback, s.column(s.fallback))
			assert.Equal(t, "updated_at", s.column("updated_at"))
		})
	}
}

func TestSortColumns_PageSQL(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{DryRun: true})
	require.NoError(t, err)

	filter := shared.Filter{Page: 3, PageSize: 20, OrderBy: "due_date", OrderDir: "asc"}
	stmt := invoiceSort.page(db.Model(&models.InvoiceModel{}), filter).
		Find(&[]models.InvoiceModel{}).Statement

	sql := stmt.SQL.String()
	assert.Contains(t, sql, "ORDER BY `due_date`")
	assert.NotContains(t, sql, "DESC")
	assert.Contains(t, sql, "LIMIT 20")
	assert.Contains(t, sql, "OFFSET 40")

	stmt = invoiceSort.page(db.Model(&models.InvoiceModel{}), shared.Filter{OrderBy: "nope"}).
		Find(&[]models.InvoiceModel{}).Statement
	assert.Contains(t, stmt.SQL.String(), "ORDER BY `created_at` DESC")
}
