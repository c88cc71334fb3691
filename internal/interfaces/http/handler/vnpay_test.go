package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billingapp "github.com/dormitory/backend/internal/application/billing"
	"github.com/dormitory/backend/internal/domain/billing"
	"github.com/dormitory/backend/internal/interfaces/http/dto"
)

// checkout starts a VNPay checkout for the invoice through the API
func (a *testAPI) checkout(invoiceID, studentID string) billingapp.PaymentURLResponse {
	a.t.Helper()
	var resp billingapp.PaymentURLResponse
	w := a.do(http.MethodPost, "/api/v1/invoices/"+invoiceID+"/vnpay", map[string]any{
		"student_profile_id": studentID,
		"bank_code":          "NCB",
	})
	decodeData(a.t, w, http.StatusCreated, &resp)
	return resp
}

func (a *testAPI) ipn(query string) billing.IPNAck {
	a.t.Helper()
	w := a.do(http.MethodGet, "/api/v1/vnpay/ipn?"+query, nil)
	require.Equal(a.t, http.StatusOK, w.Code, "the gateway is always answered with 200")
	var ack billing.IPNAck
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &ack))
	return ack
}

func ipnParams(txnRef string, minorAmount int64, code string) map[string]string {
	return map[string]string{
		"vnp_Amount":            strconv.FormatInt(minorAmount, 10),
		"vnp_BankCode":          "NCB",
		"vnp_OrderInfo":         "Thanh toan hoa don",
		"vnp_PayDate":           "20260310103000",
		"vnp_ResponseCode":      code,
		"vnp_TmnCode":           "DORM0001",
		"vnp_TransactionNo":     "14226112",
		"vnp_TransactionStatus": code,
		"vnp_TxnRef":            txnRef,
	}
}

func TestVNPayHandler_Checkout(t *testing.T) {
	api := newTestAPI(t)
	student := api.createStudent("SV001")
	invoice := api.createInvoice(student.ID.String(), "500000")

	resp := api.checkout(invoice.ID.String(), student.ID.String())
	assert.Equal(t, invoice.ID, resp.InvoiceID)
	assert.Len(t, resp.TxnRef, 32)
	assert.True(t, invoice.TotalAmount.Equal(resp.Amount))

	u, err := url.Parse(resp.PaymentURL)
	require.NoError(t, err)
	assert.Equal(t, "sandbox.vnpayment.vn", u.Host)
	assert.Equal(t, "50000000", u.Query().Get("vnp_Amount"))
	assert.Equal(t, resp.TxnRef, u.Query().Get("vnp_TxnRef"))
	assert.NotEmpty(t, u.Query().Get("vnp_SecureHash"))

	// the pending payment does not count until the gateway confirms it
	assert.True(t, api.getInvoice(invoice.ID.String()).PaidAmount.IsZero())

	t.Run("someone else's invoice", func(t *testing.T) {
		other := api.createStudent("SV002")
		w := api.do(http.MethodPost, "/api/v1/invoices/"+invoice.ID.String()+"/vnpay", map[string]any{
			"student_profile_id": other.ID,
		})
		decodeError(t, w, http.StatusConflict, "CONFLICT")
	})

	t.Run("paid invoice", func(t *testing.T) {
		paid := api.createInvoice(student.ID.String(), "100000")
		api.recordPayment(paid.ID.String(), student.ID.String(), "100000")
		w := api.do(http.MethodPost, "/api/v1/invoices/"+paid.ID.String()+"/vnpay", map[string]any{
			"student_profile_id": student.ID,
		})
		decodeError(t, w, http.StatusConflict, "INVALID_STATE")
	})

	t.Run("bad locale", func(t *testing.T) {
		w := api.do(http.MethodPost, "/api/v1/invoices/"+invoice.ID.String()+"/vnpay", map[string]any{
			"student_profile_id": student.ID,
			"locale":             "fr",
		})
		decodeError(t, w, http.StatusBadRequest, dto.ErrCodeValidation)
	})
}

func TestVNPayHandler_IPN(t *testing.T) {
	api := newTestAPI(t)
	student := api.createStudent("SV001")

	t.Run("confirms once", func(t *testing.T) {
		invoice := api.createInvoice(student.ID.String(), "500000")
		checkout := api.checkout(invoice.ID.String(), student.ID.String())
		query := signedQuery(ipnParams(checkout.TxnRef, 50000000, "00"))

		assert.Equal(t, billing.AckConfirmSuccess, api.ipn(query))

		inv := api.getInvoice(invoice.ID.String())
		assert.Equal(t, "PAID", inv.Status)
		assert.True(t, invoice.TotalAmount.Equal(inv.PaidAmount))

		assert.Equal(t, billing.AckAlreadyConfirmed, api.ipn(query))
		assert.True(t, invoice.TotalAmount.Equal(api.getInvoice(invoice.ID.String()).PaidAmount),
			"a replayed notification must not be applied twice")
	})

	t.Run("failed transaction leaves the invoice open", func(t *testing.T) {
		invoice := api.createInvoice(student.ID.String(), "500000")
		checkout := api.checkout(invoice.ID.String(), student.ID.String())

		ack := api.ipn(signedQuery(ipnParams(checkout.TxnRef, 50000000, "24")))
		assert.Equal(t, billing.AckConfirmSuccess, ack)

		inv := api.getInvoice(invoice.ID.String())
		assert.Equal(t, "UNPAID", inv.Status)
		assert.True(t, inv.PaidAmount.IsZero())
	})

	t.Run("tampered signature", func(t *testing.T) {
		invoice := api.createInvoice(student.ID.String(), "500000")
		checkout := api.checkout(invoice.ID.String(), student.ID.String())

		values, err := url.ParseQuery(signedQuery(ipnParams(checkout.TxnRef, 50000000, "00")))
		require.NoError(t, err)
		values.Set("vnp_Amount", "100")

		assert.Equal(t, billing.AckInvalidChecksum, api.ipn(values.Encode()))
		assert.Equal(t, "UNPAID", api.getInvoice(invoice.ID.String()).Status)
	})

	t.Run("missing signature", func(t *testing.T) {
		assert.Equal(t, billing.AckInvalidChecksum, api.ipn("vnp_TxnRef=abc"))
	})

	t.Run("unknown transaction", func(t *testing.T) {
		txnRef := uuid.New().String()
		assert.Equal(t, billing.AckOrderNotFound, api.ipn(signedQuery(ipnParams(txnRef, 100, "00"))))
	})

	t.Run("amount mismatch", func(t *testing.T) {
		invoice := api.createInvoice(student.ID.String(), "500000")
		checkout := api.checkout(invoice.ID.String(), student.ID.String())

		assert.Equal(t, billing.AckInvalidAmount, api.ipn(signedQuery(ipnParams(checkout.TxnRef, 100, "00"))))
		assert.Equal(t, "UNPAID", api.getInvoice(invoice.ID.String()).Status)
	})
}

func TestVNPayHandler_Return(t *testing.T) {
	api := newTestAPI(t)
	student := api.createStudent("SV001")
	invoice := api.createInvoice(student.ID.String(), "500000")
	checkout := api.checkout(invoice.ID.String(), student.ID.String())

	var result billingapp.ReturnResult
	w := api.do(http.MethodGet, "/api/v1/vnpay/return?"+signedQuery(ipnParams(checkout.TxnRef, 50000000, "00")), nil)
	decodeData(t, w, http.StatusOK, &result)
	assert.True(t, result.Verified)
	assert.True(t, result.Success)
	require.NotNil(t, result.PaymentID)
	assert.Equal(t, checkout.PaymentID, *result.PaymentID)

	// the browser return never settles the invoice
	assert.Equal(t, "UNPAID", api.getInvoice(invoice.ID.String()).Status)

	values, err := url.ParseQuery(signedQuery(ipnParams(checkout.TxnRef, 50000000, "00")))
	require.NoError(t, err)
	values.Set("vnp_ResponseCode", "24")
	decodeData(t, api.do(http.MethodGet, "/api/v1/vnpay/return?"+values.Encode(), nil), http.StatusOK, &result)
	assert.False(t, result.Verified)
	assert.False(t, result.Success)
}

func TestVNPayHandler_GatewayNotConfigured(t *testing.T) {
	api := newTestAPI(t, withoutGateway())
	student := api.createStudent("SV001")
	invoice := api.createInvoice(student.ID.String(), "500000")

	w := api.do(http.MethodPost, "/api/v1/invoices/"+invoice.ID.String()+"/vnpay", map[string]any{
		"student_profile_id": student.ID,
	})
	decodeError(t, w, http.StatusServiceUnavailable, dto.ErrCodeGatewayNotConfigured)

	assert.Equal(t, billing.AckUnknownError, api.ipn(signedQuery(ipnParams("abc", 100, "00"))))

	w = api.do(http.MethodGet, "/api/v1/vnpay/return?vnp_TxnRef=abc", nil)
	decodeError(t, w, http.StatusServiceUnavailable, dto.ErrCodeGatewayNotConfigured)
}
