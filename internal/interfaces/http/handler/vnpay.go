package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	billingapp "github.com/dormitory/backend/internal/application/billing"
)

// VNPayHandler serves the gateway callbacks. The IPN is answered in VNPay's
// own JSON shape; the browser return uses the API envelope.
type VNPayHandler struct {
	BaseHandler
	gatewayService *billingapp.GatewayService
}

// NewVNPayHandler creates a new VNPayHandler
func NewVNPayHandler(gatewayService *billingapp.GatewayService) *VNPayHandler {
	return &VNPayHandler{gatewayService: gatewayService}
}

// IPN godoc
// @Summary      VNPay instant payment notification
// @Description  Always answers 200; the outcome is carried in RspCode
// @Tags         vnpay
// @Produce      json
// @Success      200 {object} billing.IPNAck
// @Router       /vnpay/ipn [get]
func (h *VNPayHandler) IPN(c *gin.Context) {
	ack := h.gatewayService.HandleIPN(c.Request.Context(), c.Request.URL.Query())
	c.JSON(http.StatusOK, ack)
}

// Return godoc
// @Summary      VNPay browser return
// @Description  Verifies the redirect and reports the checkout outcome without changing any state
// @Tags         vnpay
// @Produce      json
// @Success      200 {object} dto.Response
// @Failure      503 {object} dto.ErrorResponse
// @Router       /vnpay/return [get]
func (h *VNPayHandler) Return(c *gin.Context) {
	result, err := h.gatewayService.HandleReturn(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
