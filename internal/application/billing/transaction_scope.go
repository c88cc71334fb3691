package billing

import (
	"context"

	"github.com/dormitory/backend/internal/domain/billing"
	"github.com/dormitory/backend/internal/domain/residence"
)

// TransactionScope provides transactional access to billing repositories.
// All repository operations executed inside fn share one database transaction
// and are committed or rolled back together.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all repositories within a transaction.
//
// Aggregate boundary notes:
//   - InvoiceRepo: the Invoice aggregate root. Every change to paid amount or status
//     goes through SaveWithLock so concurrent ledger writes are detected.
//   - PaymentRepo: payments reference exactly one invoice and are written in the
//     same transaction as the ledger change they cause.
type TransactionalRepositories interface {
	// InvoiceRepo returns the invoice repository scoped to the current transaction
	InvoiceRepo() billing.InvoiceRepository
	// PaymentRepo returns the payment repository scoped to the current transaction
	PaymentRepo() billing.PaymentRepository
	// StudentRepo returns the student profile repository scoped to the current transaction
	StudentRepo() residence.StudentProfileRepository
	// RoomRepo returns the room repository scoped to the current transaction
	RoomRepo() residence.RoomRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use transactions.
// This is useful for testing or when transaction support is not required.
type NoOpTransactionScope struct {
	invoiceRepo billing.InvoiceRepository
	paymentRepo billing.PaymentRepository
	studentRepo residence.StudentProfileRepository
	roomRepo    residence.RoomRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	invoiceRepo billing.InvoiceRepository,
	paymentRepo billing.PaymentRepository,
	studentRepo residence.StudentProfileRepository,
	roomRepo residence.RoomRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		invoiceRepo: invoiceRepo,
		paymentRepo: paymentRepo,
		studentRepo: studentRepo,
		roomRepo:    roomRepo,
	}
}

// Execute runs the function without a real transaction (for testing/compatibility).
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// InvoiceRepo returns the invoice repository.
func (s *NoOpTransactionScope) InvoiceRepo() billing.InvoiceRepository {
	return s.invoiceRepo
}

// PaymentRepo returns the payment repository.
func (s *NoOpTransactionScope) PaymentRepo() billing.PaymentRepository {
	return s.paymentRepo
}

// StudentRepo returns the student profile repository.
func (s *NoOpTransactionScope) StudentRepo() residence.StudentProfileRepository {
	return s.studentRepo
}

// RoomRepo returns the room repository.
func (s *NoOpTransactionScope) RoomRepo() residence.RoomRepository {
	return s.roomRepo
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
