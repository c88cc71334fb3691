package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	billingapp "github.com/dormitory/backend/internal/application/billing"
	"github.com/dormitory/backend/internal/interfaces/http/dto"
)

// InvoiceHandler handles invoice endpoints, including the VNPay checkout
// that settles an invoice
type InvoiceHandler struct {
	BaseHandler
	invoiceService *billingapp.InvoiceService
	gatewayService *billingapp.GatewayService
	now            func() time.Time
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoiceService *billingapp.InvoiceService, gatewayService *billingapp.GatewayService) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		gatewayService: gatewayService,
		now:            time.Now,
	}
}

// Create godoc
// @Summary      Issue an invoice
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        request body billingapp.CreateInvoiceRequest true "Invoice"
// @Success      201 {object} dto.Response
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Router       /invoices [post]
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req billingapp.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	invoice, err := h.invoiceService.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, invoice)
}

// GetByID godoc
// @Summary      Get an invoice with its items
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.ErrorResponse
// @Router       /invoices/{id} [get]
func (h *InvoiceHandler) GetByID(c *gin.Context) {
	id, ok := h.parseID(c, "id", "invoice")
	if !ok {
		return
	}

	invoice, err := h.invoiceService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// List godoc
// @Summary      List invoices
// @Tags         invoices
// @Produce      json
// @Param        status query string false "Invoice status" Enums(UNPAID, PARTIALLY_PAID, PAID, OVERDUE, CANCELLED)
// @Param        student_profile_id query string false "Payer"
// @Param        room_id query string false "Room"
// @Param        billing_month query int false "Billing month"
// @Param        billing_year query int false "Billing year"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} dto.Response
// @Router       /invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	var filter billingapp.InvoiceListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	invoices, total, err := h.invoiceService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, invoices, total, filter.Page, filter.PageSize)
}

// Update godoc
// @Summary      Update invoice dates, notes and optionally items
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body billingapp.UpdateInvoiceRequest true "Changes"
// @Success      200 {object} dto.Response
// @Failure      409 {object} dto.ErrorResponse
// @Router       /invoices/{id} [put]
func (h *InvoiceHandler) Update(c *gin.Context) {
	id, ok := h.parseID(c, "id", "invoice")
	if !ok {
		return
	}
	var req billingapp.UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	invoice, err := h.invoiceService.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// ReplaceItems godoc
// @Summary      Replace every item of an invoice
// @Description  Recomputes the total and re-derives the status against the paid amount
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body billingapp.ReplaceItemsRequest true "Items"
// @Success      200 {object} dto.Response
// @Failure      400 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Router       /invoices/{id}/items [put]
func (h *InvoiceHandler) ReplaceItems(c *gin.Context) {
	id, ok := h.parseID(c, "id", "invoice")
	if !ok {
		return
	}
	var req billingapp.ReplaceItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	invoice, err := h.invoiceService.ReplaceItems(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// Cancel godoc
// @Summary      Cancel an invoice that has no payments
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body billingapp.CancelInvoiceRequest false "Reason"
// @Success      200 {object} dto.Response
// @Failure      409 {object} dto.ErrorResponse
// @Router       /invoices/{id}/cancel [post]
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	id, ok := h.parseID(c, "id", "invoice")
	if !ok {
		return
	}
	var req billingapp.CancelInvoiceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}

	invoice, err := h.invoiceService.Cancel(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// MarkOverdue godoc
// @Summary      Flag unsettled invoices past their due date as overdue
// @Tags         invoices
// @Produce      json
// @Success      200 {object} dto.Response
// @Router       /invoices/mark-overdue [post]
func (h *InvoiceHandler) MarkOverdue(c *gin.Context) {
	result, err := h.invoiceService.MarkOverdue(c.Request.Context(), h.now())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Delete godoc
// @Summary      Delete an invoice that has no payments
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      409 {object} dto.ErrorResponse
// @Router       /invoices/{id} [delete]
func (h *InvoiceHandler) Delete(c *gin.Context) {
	id, ok := h.parseID(c, "id", "invoice")
	if !ok {
		return
	}

	if err := h.invoiceService.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.DeletedResponse{ID: id.String(), Deleted: true})
}

// CreatePaymentURL godoc
// @Summary      Start a VNPay checkout for the outstanding amount
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body billingapp.CreatePaymentURLRequest true "Payer"
// @Success      201 {object} dto.Response
// @Failure      409 {object} dto.ErrorResponse
// @Failure      503 {object} dto.ErrorResponse
// @Router       /invoices/{id}/vnpay [post]
func (h *InvoiceHandler) CreatePaymentURL(c *gin.Context) {
	id, ok := h.parseID(c, "id", "invoice")
	if !ok {
		return
	}
	var req billingapp.CreatePaymentURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.gatewayService.CreatePaymentURL(c.Request.Context(), id, req, c.ClientIP())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}
