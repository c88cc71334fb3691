package persistence

import (
	"strings"

	"github.com/dormitory/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// sortColumns whitelists the columns a list endpoint may order by.
// Anything else falls back to the fallback column so user input never
// reaches the ORDER BY clause.
type sortColumns struct {
	fallback string
	allowed  map[string]struct{}
}

func newSortColumns(fallback string, columns ...string) sortColumns {
	allowed := map[string]struct{}{"id": {}, "created_at": {}, "updated_at": {}, fallback: {}}
	for _, c := range columns {
		allowed[c] = struct{}{}
	}
	return sortColumns{fallback: fallback, allowed: allowed}
}

func (s sortColumns) column(requested string) string {
	requested = strings.TrimSpace(requested)
	if _, ok := s.allowed[requested]; ok {
		return requested
	}
	return s.fallback
}

// orderBy builds the ORDER BY clause; descending unless dir is "asc".
func (s sortColumns) orderBy(requested, dir string) clause.OrderByColumn {
	return clause.OrderByColumn{
		Column: clause.Column{Name: s.column(requested)},
		Desc:   !strings.EqualFold(strings.TrimSpace(dir), "asc"),
	}
}

// page normalizes filter and applies ordering, offset and limit to query.
func (s sortColumns) page(query *gorm.DB, filter shared.Filter) *gorm.DB {
	filter.Normalize()
	return query.Order(s.orderBy(filter.OrderBy, filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(filter.PageSize)
}

var (
	invoiceSort = newSortColumns("created_at",
		"invoice_number", "billing_year", "billing_month", "issue_date",
		"due_date", "total_amount", "paid_amount", "status")
	paymentSort        = newSortColumns("payment_date", "amount", "method", "gateway_status")
	studentProfileSort = newSortColumns("student_code", "full_name", "email")
	roomSort           = newSortColumns("building", "room_number", "floor", "capacity")
)
