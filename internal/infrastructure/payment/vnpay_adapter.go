package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/dormitory/backend/internal/domain/billing"
)

const (
	vnpayDefaultVersion  = "2.1.0"
	vnpayCommandPay      = "pay"
	vnpayTimeLayout      = "20060102150405"
	vnpayParamPrefix     = "vnp_"
	vnpaySecureHash      = "vnp_SecureHash"
	vnpaySecureHashType  = "vnp_SecureHashType"
	vnpaySuccessCode     = "00"
	vnpayOrderInfoMaxLen = 255
)

// VNPayAdapter implements billing.PaymentGateway for VNPay
type VNPayAdapter struct {
	config *VNPayConfig
}

// NewVNPayAdapter creates a new VNPay adapter
func NewVNPayAdapter(config *VNPayConfig) (*VNPayAdapter, error) {
	if config == nil {
		return nil, billing.ErrGatewayNotConfigured
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &VNPayAdapter{config: config}, nil
}

// BuildPaymentURL returns the signed checkout URL for req
func (a *VNPayAdapter) BuildPaymentURL(_ context.Context, req *billing.PaymentURLRequest) (string, error) {
	if req == nil {
		return "", billing.ErrGatewayInvalidRequest
	}
	if err := req.Validate(); err != nil {
		return "", err
	}

	created := req.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	created = created.In(a.config.Location)

	locale := req.Locale
	if locale == "" {
		locale = a.config.Locale
	}

	params := map[string]string{
		"vnp_Version":    a.config.Version,
		"vnp_Command":    vnpayCommandPay,
		"vnp_TmnCode":    a.config.TmnCode,
		"vnp_Amount":     strconv.FormatInt(billing.ToMinorUnits(req.Amount), 10),
		"vnp_CurrCode":   a.config.CurrCode,
		"vnp_TxnRef":     req.TxnRef,
		"vnp_OrderInfo":  foldOrderInfo(req.OrderInfo),
		"vnp_OrderType":  a.config.OrderType,
		"vnp_Locale":     locale,
		"vnp_ReturnUrl":  a.config.ReturnURL,
		"vnp_IpAddr":     req.ClientIP,
		"vnp_CreateDate": created.Format(vnpayTimeLayout),
		"vnp_ExpireDate": created.Add(a.config.ExpireAfter).Format(vnpayTimeLayout),
	}
	if req.BankCode != "" {
		params["vnp_BankCode"] = req.BankCode
	}

	query := a.buildSignString(params)
	return fmt.Sprintf("%s?%s&%s=%s", a.config.PayURL, query, vnpaySecureHash, a.sign(query)), nil
}

// VerifyNotification checks the vnp_SecureHash of a callback query and parses it
func (a *VNPayAdapter) VerifyNotification(_ context.Context, query url.Values) (*billing.GatewayNotification, error) {
	signature := query.Get(vnpaySecureHash)
	txnRef := query.Get("vnp_TxnRef")
	if signature == "" || txnRef == "" {
		return nil, billing.ErrGatewayInvalidCallback
	}

	params := make(map[string]string, len(query))
	for key := range query {
		if strings.HasPrefix(key, vnpayParamPrefix) {
			params[key] = query.Get(key)
		}
	}

	n := &billing.GatewayNotification{
		Verified:          a.verifySign(params, signature),
		ResponseCode:      query.Get("vnp_ResponseCode"),
		TransactionStatus: query.Get("vnp_TransactionStatus"),
		TxnRef:            txnRef,
		TransactionNo:     query.Get("vnp_TransactionNo"),
		BankCode:          query.Get("vnp_BankCode"),
		PayDate:           query.Get("vnp_PayDate"),
	}
	n.Success = n.ResponseCode == vnpaySuccessCode

	if raw := query.Get("vnp_Amount"); raw != "" {
		amount, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: vnp_Amount %q", billing.ErrGatewayInvalidCallback, raw)
		}
		n.Amount = amount
	}
	return n, nil
}

// sign returns the lowercase hex HMAC-SHA512 of data
func (a *VNPayAdapter) sign(data string) string {
	mac := hmac.New(sha512.New, []byte(a.config.HashSecret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *VNPayAdapter) verifySign(params map[string]string, signature string) bool {
	expected := a.sign(a.buildSignString(params))
	got := strings.ToLower(signature)
	return hmac.Equal([]byte(expected), []byte(got))
}

// buildSignString sorts params by key and URL-encodes them the way VNPay hashes them.
// The result doubles as the checkout query string.
func (a *VNPayAdapter) buildSignString(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		if key == vnpaySecureHash || key == vnpaySecureHashType {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, url.QueryEscape(key)+"="+url.QueryEscape(params[key]))
	}
	return strings.Join(parts, "&")
}

// foldOrderInfo strips Vietnamese diacritics since VNPay rejects them in vnp_OrderInfo
func foldOrderInfo(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.NewReplacer("đ", "d", "Đ", "D").Replace(folded)
	if len(folded) > vnpayOrderInfoMaxLen {
		folded = folded[:vnpayOrderInfoMaxLen]
	}
	return folded
}
