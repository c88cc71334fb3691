package telemetry

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer used for service-level billing spans.
const TracerName = "dormitory-backend"

// Span attribute keys. Metric attribute keys live in metrics.go.
const (
	SpanAttrInvoiceID        = "invoice_id"
	SpanAttrInvoiceNumber    = "invoice_number"
	SpanAttrInvoiceStatus    = "invoice_status"
	SpanAttrPaymentID        = "payment_id"
	SpanAttrPaymentMethod    = "payment_method"
	SpanAttrPaymentGateway   = "payment_gateway"
	SpanAttrAmount           = "amount"
	SpanAttrDelta            = "ledger_delta"
	SpanAttrTxnRef           = "txn_ref"
	SpanAttrRspCode          = "rsp_code"
	SpanAttrStudentProfileID = "student_profile_id"
	SpanAttrRoomID           = "room_id"
	SpanAttrAttempt          = "attempt"
)

// SpanOption adjusts a span at start. WithSpanKind and WithAttribute cover
// what the services need.
type SpanOption = trace.SpanStartOption

func WithSpanKind(kind trace.SpanKind) SpanOption { return trace.WithSpanKind(kind) }

func WithAttribute(key string, value any) SpanOption {
	return trace.WithAttributes(toAttribute(key, value))
}

// StartServiceSpan starts an internal span named "<service>.<method>", for
// example "payment.create" or "vnpay.ipn". The caller ends it.
func StartServiceSpan(ctx context.Context, service, method string, opts ...SpanOption) (context.Context, trace.Span) {
	opts = append([]SpanOption{trace.WithSpanKind(trace.SpanKindInternal)}, opts...)
	return otel.Tracer(TracerName).Start(ctx, service+"."+method, opts...)
}

// SetAttributes takes alternating key, value pairs. Pairs with a non-string
// key are skipped, as is a trailing key with no value.
func SetAttributes(span trace.Span, kv ...any) {
	if span == nil {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			attrs = append(attrs, toAttribute(key, kv[i+1]))
		}
	}
	span.SetAttributes(attrs...)
}

func SetAttribute(span trace.Span, key string, value any) {
	if span != nil {
		span.SetAttributes(toAttribute(key, value))
	}
}

// RecordError marks span failed. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// toAttribute keeps money as its exact decimal string; float conversion
// would lose the VND amounts' precision in exported traces.
func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case uuid.UUID:
		return attribute.String(key, v.String())
	case decimal.Decimal:
		return attribute.String(key, v.String())
	case []string:
		return attribute.StringSlice(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}
