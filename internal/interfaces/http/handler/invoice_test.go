package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billingapp "github.com/dormitory/backend/internal/application/billing"
	"github.com/dormitory/backend/internal/interfaces/http/dto"
)

func TestInvoiceHandler_CreateAndGet(t *testing.T) {
	api := newTestAPI(t)
	student := api.createStudent("SV001")

	created := api.createInvoice(student.ID.String(), "500000", "120000.50")
	assert.True(t, decimal.RequireFromString("620000.5").Equal(created.TotalAmount))
	assert.True(t, created.PaidAmount.IsZero())
	assert.Equal(t, "UNPAID", created.Status)
	assert.NotEmpty(t, created.InvoiceNumber)

	fetched := api.getInvoice(created.ID.String())
	assert.Equal(t, created.ID, fetched.ID)
	assert.Len(t, fetched.Items, 2)
	assert.True(t, created.TotalAmount.Equal(fetched.OutstandingAmount))
}

func TestInvoiceHandler_Create_Validation(t *testing.T) {
	api := newTestAPI(t)
	student := api.createStudent("SV001")

	t.Run("missing items", func(t *testing.T) {
		w := api.do(http.MethodPost, "/api/v1/invoices", map[string]any{
			"student_profile_id": student.ID,
			"billing_month":      3,
			"billing_year":       2026,
			"due_date":           "2026-03-15T00:00:00Z",
		})
		resp := decodeError(t, w, http.StatusBadRequest, dto.ErrCodeValidation)
		require.NotEmpty(t, resp.Details)
		assert.Equal(t, "items", resp.Details[0].Field)
		assert.NotEmpty(t, resp.RequestID)
	})

	t.Run("unknown item type names the line", func(t *testing.T) {
		w := api.do(http.MethodPost, "/api/v1/invoices", map[string]any{
			"student_profile_id": student.ID,
			"billing_month":      3,
			"billing_year":       2026,
			"issue_date":         "2026-03-01T00:00:00Z",
			"due_date":           "2026-03-15T00:00:00Z",
			"items": []map[string]any{
				{"type": "ROOM_FEE", "amount": "100"},
				{"type": "LAUNDRY", "amount": "100"},
			},
		})
		resp := decodeError(t, w, http.StatusBadRequest, "INVALID_ITEM_TYPE")
		assert.Contains(t, resp.Message, "Item 2")
	})

	t.Run("both payers", func(t *testing.T) {
		var room struct {
			ID uuid.UUID `json:"id"`
		}
		w := api.do(http.MethodPost, "/api/v1/rooms", map[string]any{"building": "A", "room_number": "101", "capacity": 4})
		decodeData(t, w, http.StatusCreated, &room)

		w = api.do(http.MethodPost, "/api/v1/invoices", map[string]any{
			"student_profile_id": student.ID,
			"room_id":            room.ID,
			"billing_month":      3,
			"billing_year":       2026,
			"due_date":           "2026-03-15T00:00:00Z",
			"items":              []map[string]any{{"type": "ROOM_FEE", "amount": "100"}},
		})
		decodeError(t, w, http.StatusBadRequest, "INVALID_PAYER")
	})

	t.Run("unknown student", func(t *testing.T) {
		w := api.do(http.MethodPost, "/api/v1/invoices", map[string]any{
			"student_profile_id": uuid.New(),
			"billing_month":      3,
			"billing_year":       2026,
			"due_date":           "2026-03-15T00:00:00Z",
			"items":              []map[string]any{{"type": "ROOM_FEE", "amount": "100"}},
		})
		decodeError(t, w, http.StatusNotFound, "NOT_FOUND")
	})

	t.Run("malformed body", func(t *testing.T) {
		w := api.do(http.MethodPost, "/api/v1/invoices", `{"items":`)
		decodeError(t, w, http.StatusBadRequest, dto.ErrCodeBadRequest)
	})
}

func TestInvoiceHandler_GetByID_Errors(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/api/v1/invoices/not-a-uuid", nil)
	resp := decodeError(t, w, http.StatusBadRequest, dto.ErrCodeBadRequest)
	assert.Equal(t, "Invalid invoice ID format", resp.Message)

	w = api.do(http.MethodGet, "/api/v1/invoices/"+uuid.NewString(), nil)
	decodeError(t, w, http.StatusNotFound, "NOT_FOUND")
}

func TestInvoiceHandler_List(t *testing.T) {
	api := newTestAPI(t)
	first := api.createStudent("SV001")
	second := api.createStudent("SV002")
	api.createInvoice(first.ID.String(), "100000")
	api.createInvoice(first.ID.String(), "200000")
	api.createInvoice(second.ID.String(), "300000")

	var page []billingapp.InvoiceListItemResponse
	env := decodeData(t, api.do(http.MethodGet, "/api/v1/invoices?page_size=2", nil), http.StatusOK, &page)
	assert.Len(t, page, 2)
	require.NotNil(t, env.Meta)
	assert.Equal(t, int64(3), env.Meta.Total)
	assert.Equal(t, 1, env.Meta.Page)
	assert.Equal(t, 2, env.Meta.PageSize)
	assert.Equal(t, 2, env.Meta.TotalPages)

	var mine []billingapp.InvoiceListItemResponse
	env = decodeData(t, api.do(http.MethodGet, "/api/v1/invoices?student_profile_id="+second.ID.String(), nil), http.StatusOK, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, int64(1), env.Meta.Total)
	assert.Equal(t, 20, env.Meta.PageSize)

	w := api.do(http.MethodGet, "/api/v1/invoices?status=SETTLED", nil)
	decodeError(t, w, http.StatusBadRequest, dto.ErrCodeValidation)
}

func TestInvoiceHandler_ReplaceItems(t *testing.T) {
	api := newTestAPI(t)
	student := api.createStudent("SV001")
	invoice := api.createInvoice(student.ID.String(), "500000")
	api.recordPayment(invoice.ID.String(), student.ID.String(), "300000")

	t.Run("raising the total keeps the invoice partially paid", func(t *testing.T) {
		var updated billingapp.InvoiceResponse
		w := api.do(http.MethodPut, "/api/v1/invoices/"+invoice.ID.String()+"/items", map[string]any{
			"items": []map[string]any{
				{"type": "ROOM_FEE", "amount": "500000"},
				{"type": "ELECTRICITY", "description": "March", "amount": "85000"},
			},
		})
		decodeData(t, w, http.StatusOK, &updated)
		assert.True(t, decimal.NewFromInt(585000).Equal(updated.TotalAmount))
		assert.Equal(t, "PARTIALLY_PAID", updated.Status)
		assert.Len(t, updated.Items, 2)
	})

	t.Run("lowering the total below the paid amount settles it", func(t *testing.T) {
		var updated billingapp.InvoiceResponse
		w := api.do(http.MethodPut, "/api/v1/invoices/"+invoice.ID.String()+"/items", map[string]any{
			"items": []map[string]any{{"type": "ROOM_FEE", "amount": "250000"}},
		})
		decodeData(t, w, http.StatusOK, &updated)
		assert.Equal(t, "PAID", updated.Status)
		assert.True(t, decimal.NewFromInt(300000).Equal(updated.PaidAmount))
		assert.True(t, updated.OutstandingAmount.IsNegative())
		assert.NotNil(t, updated.PaidAt)
	})

	t.Run("empty items", func(t *testing.T) {
		w := api.do(http.MethodPut, "/api/v1/invoices/"+invoice.ID.String()+"/items", map[string]any{
			"items": []map[string]any{},
		})
		decodeError(t, w, http.StatusBadRequest, dto.ErrCodeValidation)
	})

	t.Run("negative amount", func(t *testing.T) {
		w := api.do(http.MethodPut, "/api/v1/invoices/"+invoice.ID.String()+"/items", map[string]any{
			"items": []map[string]any{{"type": "ROOM_FEE", "amount": "-1"}},
		})
		decodeError(t, w, http.StatusBadRequest, "INVALID_ITEM_AMOUNT")
	})
}

func TestInvoiceHandler_Update(t *testing.T) {
	api := newTestAPI(t)
	student := api.createStudent("SV001")
	invoice := api.createInvoice(student.ID.String(), "500000")

	var updated billingapp.InvoiceResponse
	w := api.do(http.MethodPut, "/api/v1/invoices/"+invoice.ID.String(), map[string]any{
		"due_date": "2026-03-31T00:00:00Z",
		"notes":    "Extended after request",
	})
	decodeData(t, w, http.StatusOK, &updated)
	assert.Equal(t, 31, updated.DueDate.Day())
	assert.Equal(t, "Extended after request", updated.Notes)
	assert.True(t, invoice.TotalAmount.Equal(updated.TotalAmount))

	w = api.do(http.MethodPut, "/api/v1/invoices/"+invoice.ID.String(), map[string]any{
		"due_date": "2026-02-01T00:00:00Z",
	})
	decodeError(t, w, http.StatusBadRequest, "INVALID_DUE_DATE")
}

func TestInvoiceHandler_Cancel(t *testing.T) {
	api := newTestAPI(t)
	student := api.createStudent("SV001")

	t.Run("without payments", func(t *testing.T) {
		invoice := api.createInvoice(student.ID.String(), "500000")

		var cancelled billingapp.InvoiceResponse
		w := api.do(http.MethodPost, "/api/v1/invoices/"+invoice.ID.String()+"/cancel", map[string]any{"reason": "Moved out"})
		decodeData(t, w, http.StatusOK, &cancelled)
		assert.Equal(t, "CANCELLED", cancelled.Status)
		assert.Equal(t, "Moved out", cancelled.CancelReason)

		w = api.do(http.MethodPut, "/api/v1/invoices/"+invoice.ID.String()+"/items", map[string]any{
			"items": []map[string]any{{"type": "ROOM_FEE", "amount": "1"}},
		})
		decodeError(t, w, http.StatusConflict, "INVALID_STATE")

		w = api.do(http.MethodPost, "/api/v1/invoices/"+invoice.ID.String()+"/cancel", nil)
		decodeError(t, w, http.StatusConflict, "INVALID_STATE")
	})

	t.Run("with payments", func(t *testing.T) {
		invoice := api.createInvoice(student.ID.String(), "500000")
		api.recordPayment(invoice.ID.String(), student.ID.String(), "100000")

		w := api.do(http.MethodPost, "/api/v1/invoices/"+invoice.ID.String()+"/cancel", nil)
		decodeError(t, w, http.StatusConflict, dto.ErrCodeHasPayments)
	})
}

func TestInvoiceHandler_Delete(t *testing.T) {
	api := newTestAPI(t)
	student := api.createStudent("SV001")

	paid := api.createInvoice(student.ID.String(), "500000")
	api.recordPayment(paid.ID.String(), student.ID.String(), "500000")
	w := api.do(http.MethodDelete, "/api/v1/invoices/"+paid.ID.String(), nil)
	decodeError(t, w, http.StatusConflict, dto.ErrCodeHasPayments)

	unpaid := api.createInvoice(student.ID.String(), "500000")
	var deleted dto.DeletedResponse
	decodeData(t, api.do(http.MethodDelete, "/api/v1/invoices/"+unpaid.ID.String(), nil), http.StatusOK, &deleted)
	assert.True(t, deleted.Deleted)
	assert.Equal(t, unpaid.ID.String(), deleted.ID)

	w = api.do(http.MethodGet, "/api/v1/invoices/"+unpaid.ID.String(), nil)
	decodeError(t, w, http.StatusNotFound, "NOT_FOUND")
}

func TestInvoiceHandler_MarkOverdue(t *testing.T) {
	api := newTestAPI(t)
	api.invoices.now = func() time.Time { return time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC) }
	student := api.createStudent("SV001")

	open := api.createInvoice(student.ID.String(), "500000")
	settled := api.createInvoice(student.ID.String(), "500000")
	api.recordPayment(settled.ID.String(), student.ID.String(), "500000")

	var result billingapp.MarkOverdueResponse
	decodeData(t, api.do(http.MethodPost, "/api/v1/invoices/mark-overdue", nil), http.StatusOK, &result)
	assert.Equal(t, 1, result.Marked)
	assert.Equal(t, []uuid.UUID{open.ID}, result.InvoiceIDs)

	assert.Equal(t, "OVERDUE", api.getInvoice(open.ID.String()).Status)
	assert.Equal(t, "PAID", api.getInvoice(settled.ID.String()).Status)

	decodeData(t, api.do(http.MethodPost, "/api/v1/invoices/mark-overdue", nil), http.StatusOK, &result)
	assert.Equal(t, 0, result.Marked)
}
