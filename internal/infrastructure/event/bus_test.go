package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dormitory/backend/internal/domain/billing"
	"github.com/dormitory/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// recordingHandler collects the events it receives
type recordingHandler struct {
	eventTypes []string
	err        error
	panicMsg   string
	mu         sync.Mutex
	handled    []shared.DomainEvent
}

func (h *recordingHandler) Handle(_ context.Context, evt shared.DomainEvent) error {
	h.mu.Lock()
	h.handled = append(h.handled, evt)
	h.mu.Unlock()
	if h.panicMsg != "" {
		panic(h.panicMsg)
	}
	return h.err
}

func (h *recordingHandler) EventTypes() []string { return h.eventTypes }

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func newTestInvoice(t *testing.T) *billing.Invoice {
	t.Helper()
	student := uuid.New()
	inv, err := billing.NewInvoice(billing.NewInvoiceParams{
		StudentProfileID: &student,
		BillingMonth:     3,
		BillingYear:      2026,
		IssueDate:        time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:          time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Items: []billing.ItemSpec{
			{Type: billing.ItemTypeRoomFee, Amount: decimal.NewFromInt(600000)},
		},
	})
	require.NoError(t, err)
	return inv
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	ctx := context.Background()
	inv := newTestInvoice(t)
	created := billing.NewInvoiceCreatedEvent(inv)
	paid := billing.NewInvoicePaidEvent(inv)

	t.Run("routes by event type", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		onPaid := &recordingHandler{eventTypes: []string{billing.EventTypeInvoicePaid}}
		bus.Subscribe(onPaid)

		require.NoError(t, bus.Publish(ctx, created, paid))
		assert.Equal(t, 1, onPaid.count())
	})

	t.Run("catch-all handlers see everything", func(t *testing.T) {
		bus := NewInMemoryEventBus(nil)
		all := &recordingHandler{}
		bus.Subscribe(all)

		require.NoError(t, bus.Publish(ctx, created, paid))
		assert.Equal(t, 2, all.count())
	})

	t.Run("explicit types override the handler's own", func(t *testing.T) {
		bus := NewInMemoryEventBus(nil)
		h := &recordingHandler{eventTypes: []string{billing.EventTypeInvoicePaid}}
		bus.Subscribe(h, billing.EventTypeInvoiceCreated)

		require.NoError(t, bus.Publish(ctx, paid))
		assert.Zero(t, h.count())
		require.NoError(t, bus.Publish(ctx, created))
		assert.Equal(t, 1, h.count())
	})

	t.Run("a failing or panicking handler does not stop the others", func(t *testing.T) {
		bus := NewInMemoryEventBus(nil)
		failing := &recordingHandler{err: errors.New("handler error")}
		panicking := &recordingHandler{panicMsg: "boom"}
		healthy := &recordingHandler{}
		bus.Subscribe(failing)
		bus.Subscribe(panicking)
		bus.Subscribe(healthy)

		require.NoError(t, bus.Publish(ctx, paid))
		assert.Equal(t, 1, healthy.count())
		assert.Equal(t, int64(2), bus.Failures())
	})

	t.Run("unsubscribed handlers stop receiving", func(t *testing.T) {
		bus := NewInMemoryEventBus(nil)
		h := &recordingHandler{}
		bus.Subscribe(h, billing.EventTypeInvoicePaid, billing.EventTypeInvoiceCreated)

		require.NoError(t, bus.Publish(ctx, paid))
		bus.Unsubscribe(h)
		require.NoError(t, bus.Publish(ctx, paid, created))

		assert.Equal(t, 1, h.count())
		assert.Empty(t, bus.registry.GetHandlers(billing.EventTypeInvoiceCreated))
	})
}

func TestInMemoryEventBus_StartStop(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	require.NoError(t, bus.Start(context.Background()))
	assert.True(t, bus.running.Load())
	require.NoError(t, bus.Stop(context.Background()))
	assert.False(t, bus.running.Load())
}

func TestBillingAuditHandler(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	bus := NewInMemoryEventBus(nil)
	bus.Subscribe(NewBillingAuditHandler(zap.New(core)))

	inv := newTestInvoice(t)
	require.NoError(t, inv.ApplyPaymentDelta(decimal.NewFromInt(600000), nil))
	require.NoError(t, bus.Publish(context.Background(), inv.GetDomainEvents()...))

	entries := logs.FilterMessage("Invoice ledger event").All()
	require.Len(t, entries, 3, "created, payment applied, paid")

	applied := logs.FilterField(zap.String("event_type", billing.EventTypeInvoicePaymentApplied)).All()
	require.Len(t, applied, 1)
	fields := applied[0].ContextMap()
	assert.Equal(t, "600000", fields["delta"])
	assert.Equal(t, "UNPAID", fields["previous_status"])
	assert.Equal(t, "PAID", fields["status"])
	assert.Equal(t, inv.ID.String(), fields["invoice_id"])
}
