package telemetry

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BillingMetrics tracks payment and ledger activity of the dormitory billing system.
// All methods are safe to call on a nil receiver so services can run without metrics.
type BillingMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	paymentsRecorded *Counter
	paymentAmount    *Histogram
	ledgerApplied    *Counter
	ledgerConflicts  *Counter
	ipnOutcomes      *Counter
}

// BillingMetricsConfig holds configuration for billing metrics.
type BillingMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewBillingMetrics creates the billing instruments on cfg.Meter.
func NewBillingMetrics(cfg BillingMetricsConfig) (*BillingMetrics, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	in := NewInstruments(cfg.Meter)
	bm := &BillingMetrics{meter: cfg.Meter, logger: logger}
	bm.paymentsRecorded = in.Counter("dorm_payment_recorded_total",
		"Payments recorded against invoices", "{payment}")
	bm.paymentAmount = in.Histogram("dorm_payment_amount",
		"Recorded payment amounts", "VND", PaymentAmountBuckets)
	bm.ledgerApplied = in.Counter("dorm_ledger_applied_total",
		"Ledger applications by resulting invoice status", "{application}")
	bm.ledgerConflicts = in.Counter("dorm_ledger_conflict_total",
		"Optimistic lock conflicts on invoice writes", "{conflict}")
	bm.ipnOutcomes = in.Counter("dorm_vnpay_ipn_total",
		"VNPay IPN notifications by acknowledgement code", "{notification}")
	if err := in.Err(); err != nil {
		return nil, err
	}
	return bm, nil
}

// RecordPayment records a newly created payment and its amount.
func (bm *BillingMetrics) RecordPayment(ctx context.Context, method string, amount decimal.Decimal) {
	if bm == nil {
		return
	}
	bm.paymentsRecorded.Inc(ctx, AttrPaymentMethod.String(method))
	bm.paymentAmount.Record(ctx, amount.InexactFloat64(), AttrPaymentMethod.String(method))
}

// RecordLedgerApplied records one ledger application and the status it produced.
// source names the triggering operation, e.g. "payment_create" or "vnpay_ipn".
func (bm *BillingMetrics) RecordLedgerApplied(ctx context.Context, source, status string) {
	if bm == nil {
		return
	}
	bm.ledgerApplied.Inc(ctx, AttrLedgerSource.String(source), AttrInvoiceStatus.String(status))
}

// RecordLedgerConflict records an optimistic lock conflict that forced a retry.
func (bm *BillingMetrics) RecordLedgerConflict(ctx context.Context, source string) {
	if bm == nil {
		return
	}
	bm.ledgerConflicts.Inc(ctx, AttrLedgerSource.String(source))
}

// RecordIPNOutcome records the acknowledgement code returned to the gateway.
func (bm *BillingMetrics) RecordIPNOutcome(ctx context.Context, rspCode string) {
	if bm == nil {
		return
	}
	bm.ipnOutcomes.Inc(ctx, AttrIPNRspCode.String(rspCode))
}
