package payment

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dormitory/backend/internal/infrastructure/config"
)

// VNPayConfig contains the merchant settings for the VNPay checkout API
type VNPayConfig struct {
	// TmnCode is the merchant terminal code issued by VNPay
	TmnCode string
	// HashSecret signs outgoing URLs and verifies callbacks
	HashSecret string
	// PayURL is the checkout endpoint payers are redirected to
	PayURL string
	// ReturnURL is where VNPay sends the browser after checkout
	ReturnURL string
	Version   string
	Locale    string
	CurrCode  string
	OrderType string
	// ExpireAfter bounds how long a checkout URL stays valid
	ExpireAfter time.Duration
	// Location is the timezone VNPay expects for vnp_CreateDate and vnp_ExpireDate
	Location *time.Location
}

// Errors for configuration validation
var (
	ErrVNPayMissingTmnCode    = errors.New("vnpay: missing terminal code")
	ErrVNPayMissingHashSecret = errors.New("vnpay: missing hash secret")
	ErrVNPayInvalidPayURL     = errors.New("vnpay: invalid pay URL")
	ErrVNPayInvalidReturnURL  = errors.New("vnpay: invalid return URL")
	ErrVNPayInvalidLocale     = errors.New("vnpay: locale must be vn or en")
)

// Validate validates the configuration and fills defaults
func (c *VNPayConfig) Validate() error {
	if c.TmnCode == "" {
		return ErrVNPayMissingTmnCode
	}
	if c.HashSecret == "" {
		return ErrVNPayMissingHashSecret
	}
	if !isAbsoluteURL(c.PayURL) {
		return ErrVNPayInvalidPayURL
	}
	if !isAbsoluteURL(c.ReturnURL) {
		return ErrVNPayInvalidReturnURL
	}
	if c.Version == "" {
		c.Version = vnpayDefaultVersion
	}
	if c.Locale == "" {
		c.Locale = "vn"
	}
	if c.Locale != "vn" && c.Locale != "en" {
		return ErrVNPayInvalidLocale
	}
	if c.CurrCode == "" {
		c.CurrCode = "VND"
	}
	if c.OrderType == "" {
		c.OrderType = "billpayment"
	}
	if c.ExpireAfter <= 0 {
		c.ExpireAfter = 15 * time.Minute
	}
	if c.Location == nil {
		c.Location = time.FixedZone("ICT", 7*60*60)
	}
	return nil
}

// IsConfigured reports whether merchant credentials were supplied at all
func IsConfigured(c config.VNPayConfig) bool {
	return c.TmnCode != "" && c.HashSecret != ""
}

// NewVNPayConfig converts application settings into an adapter config
func NewVNPayConfig(c config.VNPayConfig) (*VNPayConfig, error) {
	loc := time.FixedZone("ICT", 7*60*60)
	if c.Timezone != "" {
		l, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return nil, fmt.Errorf("vnpay: load timezone %q: %w", c.Timezone, err)
		}
		loc = l
	}

	cfg := &VNPayConfig{
		TmnCode:     c.TmnCode,
		HashSecret:  c.HashSecret,
		PayURL:      c.PayURL,
		ReturnURL:   c.ReturnURL,
		Version:     c.Version,
		Locale:      c.Locale,
		CurrCode:    c.CurrCode,
		OrderType:   c.OrderType,
		ExpireAfter: time.Duration(c.ExpireMinutes) * time.Minute,
		Location:    loc,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}
