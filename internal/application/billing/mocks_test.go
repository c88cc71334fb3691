package billing

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/dormitory/backend/internal/domain/billing"
	"github.com/dormitory/backend/internal/domain/residence"
	"github.com/dormitory/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ============================================
// Repository mocks
// ============================================

// MockInvoiceRepository is a mock implementation of billing.InvoiceRepository
type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByInvoiceNumber(ctx context.Context, number string) (*billing.Invoice, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindAll(ctx context.Context, filter billing.InvoiceFilter) ([]billing.Invoice, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) Count(ctx context.Context, filter billing.InvoiceFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockInvoiceRepository) FindOverdueCandidates(ctx context.Context, asOf time.Time) ([]billing.Invoice, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) Create(ctx context.Context, invoice *billing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) SaveWithLock(ctx context.Context, invoice *billing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) ReplaceItems(ctx context.Context, invoice *billing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockPaymentRepository is a mock implementation of billing.PaymentRepository
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByTxnRef(ctx context.Context, txnRef string) (*billing.Payment, error) {
	args := m.Called(ctx, txnRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindAll(ctx context.Context, filter billing.PaymentFilter) ([]billing.Payment, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Payment), args.Error(1)
}

func (m *MockPaymentRepository) Count(ctx context.Context, filter billing.PaymentFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPaymentRepository) CountByInvoice(ctx context.Context, invoiceID uuid.UUID) (int64, error) {
	args := m.Called(ctx, invoiceID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPaymentRepository) SumByInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, invoiceID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *billing.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) Save(ctx context.Context, payment *billing.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockStudentProfileRepository is a mock implementation of residence.StudentProfileRepository
type MockStudentProfileRepository struct {
	mock.Mock
}

func (m *MockStudentProfileRepository) FindByID(ctx context.Context, id uuid.UUID) (*residence.StudentProfile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*residence.StudentProfile), args.Error(1)
}

func (m *MockStudentProfileRepository) FindAll(ctx context.Context, filter shared.Filter) ([]residence.StudentProfile, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]residence.StudentProfile), args.Error(1)
}

func (m *MockStudentProfileRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStudentProfileRepository) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockStudentProfileRepository) ExistsByStudentCode(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockStudentProfileRepository) CountByRoom(ctx context.Context, roomID uuid.UUID) (int64, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStudentProfileRepository) Save(ctx context.Context, profile *residence.StudentProfile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

// MockRoomRepository is a mock implementation of residence.RoomRepository
type MockRoomRepository struct {
	mock.Mock
}

func (m *MockRoomRepository) FindByID(ctx context.Context, id uuid.UUID) (*residence.Room, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*residence.Room), args.Error(1)
}

func (m *MockRoomRepository) FindAll(ctx context.Context, filter shared.Filter) ([]residence.Room, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]residence.Room), args.Error(1)
}

func (m *MockRoomRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRoomRepository) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockRoomRepository) Save(ctx context.Context, room *residence.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

// ============================================
// Collaborator mocks
// ============================================

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{
		events: make([]shared.DomainEvent, 0),
	}
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) GetEventsByType(eventType string) []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]shared.DomainEvent, 0)
	for _, e := range m.events {
		if e.EventType() == eventType {
			result = append(result, e)
		}
	}
	return result
}

func (m *MockEventPublisher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// MockPaymentGateway is a mock implementation of billing.PaymentGateway
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) BuildPaymentURL(ctx context.Context, req *billing.PaymentURLRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockPaymentGateway) VerifyNotification(ctx context.Context, query url.Values) (*billing.GatewayNotification, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.GatewayNotification), args.Error(1)
}

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

// ============================================
// Fixtures
// ============================================

type testRepos struct {
	invoices *MockInvoiceRepository
	payments *MockPaymentRepository
	students *MockStudentProfileRepository
	rooms    *MockRoomRepository
}

func newTestRepos() testRepos {
	return testRepos{
		invoices: new(MockInvoiceRepository),
		payments: new(MockPaymentRepository),
		students: new(MockStudentProfileRepository),
		rooms:    new(MockRoomRepository),
	}
}

func (r testRepos) txScope() *NoOpTransactionScope {
	return NewNoOpTransactionScope(r.invoices, r.payments, r.students, r.rooms)
}

func (r testRepos) assertExpectations(t *testing.T) {
	r.invoices.AssertExpectations(t)
	r.payments.AssertExpectations(t)
	r.students.AssertExpectations(t)
	r.rooms.AssertExpectations(t)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newStoredInvoice builds an invoice as a repository would return it: events
// cleared and the persisted version recorded.
func newStoredInvoice(t *testing.T, studentID uuid.UUID, total string) *billing.Invoice {
	t.Helper()
	inv, err := billing.NewInvoice(billing.NewInvoiceParams{
		StudentProfileID: &studentID,
		BillingMonth:     3,
		BillingYear:      2026,
		IssueDate:        time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:          time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Items: []billing.ItemSpec{
			{Type: billing.ItemTypeRoomFee, Description: "Room fee", Amount: dec(total)},
		},
	})
	require.NoError(t, err)
	inv.ClearDomainEvents()
	inv.SetPersistedVersion(inv.Version)
	return inv
}

func newStoredStudent(t *testing.T) *residence.StudentProfile {
	t.Helper()
	s, err := residence.NewStudentProfile("SV001", "Nguyen Van A", "a@example.com", "")
	require.NoError(t, err)
	return s
}

func domainCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	return de.Code
}
