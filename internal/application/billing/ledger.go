package billing

import (
	"context"
	"errors"

	"github.com/dormitory/backend/internal/domain/billing"
	"github.com/dormitory/backend/internal/domain/shared"
	"github.com/dormitory/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger sources label what triggered a ledger write in logs and metrics
const (
	LedgerSourcePaymentCreate   = "payment_create"
	LedgerSourcePaymentUpdate   = "payment_update"
	LedgerSourcePaymentDelete   = "payment_delete"
	LedgerSourceGatewayCheckout = "vnpay_checkout"
	LedgerSourceGatewayIPN      = "vnpay_ipn"
	LedgerSourceItemsReplaced   = "items_replaced"
	LedgerSourceCancel          = "invoice_cancel"
	LedgerSourceOverdue         = "invoice_overdue"
)

// DefaultLedgerRetryAttempts is used when no attempt count is configured
const DefaultLedgerRetryAttempts = 3

// ledgerRunner executes ledger units of work and retries them when the
// invoice version check fails. Each attempt runs in a fresh transaction, so fn
// must reload everything it reads.
type ledgerRunner struct {
	txScope  TransactionScope
	attempts int
	logger   *zap.Logger
	metrics  *telemetry.BillingMetrics
}

func newLedgerRunner(txScope TransactionScope, attempts int, logger *zap.Logger) *ledgerRunner {
	if attempts < 1 {
		attempts = DefaultLedgerRetryAttempts
	}
	return &ledgerRunner{
		txScope:  txScope,
		attempts: attempts,
		logger:   logger,
	}
}

// run executes fn until it succeeds, fails with an error other than a
// concurrency conflict, or the attempts are used up.
func (r *ledgerRunner) run(ctx context.Context, source string, fn func(repos TransactionalRepositories) error) error {
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		err = r.txScope.Execute(ctx, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, shared.ErrConcurrencyConflict) {
			return err
		}

		r.metrics.RecordLedgerConflict(ctx, source)
		r.logger.Warn("Invoice version conflict, retrying ledger write",
			zap.String("source", source),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.attempts))

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}

// applyDelta applies a signed delta (and optional status override) to the
// invoice and persists it with the version check. Must run inside run.
func (r *ledgerRunner) applyDelta(
	ctx context.Context,
	repo billing.InvoiceRepository,
	inv *billing.Invoice,
	delta decimal.Decimal,
	override *billing.InvoiceStatus,
) error {
	if err := inv.ApplyPaymentDelta(delta, override); err != nil {
		return err
	}
	if err := repo.SaveWithLock(ctx, inv); err != nil {
		return err
	}

	if inv.IsOverpaid() {
		r.logger.Warn("Invoice is over-paid",
			zap.String("invoice_id", inv.ID.String()),
			zap.String("paid_amount", inv.PaidAmount.String()),
			zap.String("total_amount", inv.TotalAmount.String()))
	}
	if inv.HasNegativeBalance() {
		r.logger.Warn("Invoice paid amount is negative",
			zap.String("invoice_id", inv.ID.String()),
			zap.String("paid_amount", inv.PaidAmount.String()))
	}
	return nil
}
