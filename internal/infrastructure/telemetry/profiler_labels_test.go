package telemetry

import (
	"context"
	"runtime/pprof"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeLabels(t *testing.T) {
	tests := []struct {
		name   string
		labels map[string]string
		want   []string
	}{
		{"nil", nil, nil},
		{"sorted pairs", map[string]string{"operation": "apply_ledger", "ledger_source": "vnpay_ipn"},
			[]string{"ledger_source", "vnpay_ipn", "operation", "apply_ledger"}},
		{"high cardinality dropped", map[string]string{"txn_ref": "abc", "invoice_id": "x", "operation": "op"},
			[]string{"operation", "op"}},
		{"empty values dropped", map[string]string{"route": "", "method": "GET"},
			[]string{"method", "GET"}},
		{"keys normalised", map[string]string{"Payment-Method": "CASH", "Ledger Source": "payment_create", "!!": "x"},
			[]string{"ledger_source", "payment_create", "payment_method", "CASH"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeLabels(tt.labels))
		})
	}

	t.Run("long values truncated", func(t *testing.T) {
		pairs := sanitizeLabels(map[string]string{"route": strings.Repeat("r", 300)})
		assert.Len(t, pairs[1], maxLabelValueLength)
	})
}

func TestOperationLabels(t *testing.T) {
	labels := OperationLabels(OperationRecordPayment, map[string]string{
		ProfilingLabelPaymentMethod: "CASH",
		ProfilingLabelOperation:     "overridden",
	})
	assert.Equal(t, map[string]string{
		ProfilingLabelOperation:     OperationRecordPayment,
		ProfilingLabelPaymentMethod: "CASH",
	}, labels)
}

func TestHTTPRequestLabels(t *testing.T) {
	assert.Equal(t, map[string]string{"route": "/api/v1/payments", "method": "POST"},
		HTTPRequestLabels("/api/v1/payments", "POST"))
	assert.Empty(t, HTTPRequestLabels("", ""))
}

func TestWithPprofLabels(t *testing.T) {
	var got string
	WithPprofLabels(context.Background(), OperationLabels(OperationReconcileIPN, nil), func(ctx context.Context) {
		got, _ = pprof.Label(ctx, ProfilingLabelOperation)
	})
	assert.Equal(t, OperationReconcileIPN, got)
}

func TestWithProfilingLabels_RunsFn(t *testing.T) {
	for _, labels := range []map[string]string{nil, {"txn_ref": "only high cardinality"}, OperationLabels(OperationApplyLedger, nil)} {
		ran := false
		WithProfilingLabels(context.Background(), labels, func(context.Context) { ran = true })
		assert.True(t, ran)
	}
}
