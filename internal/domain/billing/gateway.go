package billing

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrGatewayNotConfigured   = errors.New("payment: gateway not configured")
	ErrGatewayInvalidRequest  = errors.New("payment: invalid payment URL request")
	ErrGatewayInvalidCallback = errors.New("payment: malformed gateway notification")
)

// PaymentURLRequest holds what the gateway needs to build a checkout redirect
type PaymentURLRequest struct {
	TxnRef    string
	Amount    decimal.Decimal
	OrderInfo string
	ClientIP  string
	BankCode  string
	Locale    string
	CreatedAt time.Time
}

// Validate checks the request
func (r *PaymentURLRequest) Validate() error {
	if r.TxnRef == "" || r.ClientIP == "" || r.OrderInfo == "" {
		return ErrGatewayInvalidRequest
	}
	if !r.Amount.IsPositive() {
		return ErrGatewayInvalidRequest
	}
	return nil
}

// GatewayNotification is a verified view of a gateway callback query
type GatewayNotification struct {
	// Verified is false when the signature did not match
	Verified bool
	// Success is true when the response code reports a completed payment.
	// TransactionStatus is informational and does not change the outcome.
	Success bool
	// ResponseCode is the gateway's raw response code
	ResponseCode string
	// TransactionStatus is the gateway's raw transaction status
	TransactionStatus string
	// TxnRef is the reference we sent when building the payment URL
	TxnRef string
	// Amount is in the gateway's integer scale (x100)
	Amount int64
	// TransactionNo is the gateway's own transaction number
	TransactionNo string
	BankCode      string
	PayDate       string
}

// PaymentGateway is the port to an external payment gateway. Implementations
// live in the infrastructure layer.
type PaymentGateway interface {
	// BuildPaymentURL returns the signed checkout URL the payer is redirected to
	BuildPaymentURL(ctx context.Context, req *PaymentURLRequest) (string, error)

	// VerifyNotification checks the signature of a callback query and parses it.
	// A signature mismatch is reported through Verified, not as an error.
	VerifyNotification(ctx context.Context, query url.Values) (*GatewayNotification, error)
}

// IPNAck is the acknowledgment returned to the gateway for a notification
type IPNAck struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// Acknowledgments understood by VNPay
var (
	AckConfirmSuccess   = IPNAck{RspCode: "00", Message: "Confirm Success"}
	AckOrderNotFound    = IPNAck{RspCode: "01", Message: "Order not found"}
	AckAlreadyConfirmed = IPNAck{RspCode: "02", Message: "Order already confirmed"}
	AckInvalidAmount    = IPNAck{RspCode: "04", Message: "Invalid amount"}
	AckInvalidChecksum  = IPNAck{RspCode: "97", Message: "Invalid Checksum"}
	AckUnknownError     = IPNAck{RspCode: "99", Message: "Unknown error"}
)
