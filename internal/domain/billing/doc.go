// Package billing provides domain models for dormitory invoicing and payments.
//
// This package implements the billing bounded context, which is responsible for:
//   - Issuing invoices to a single resident or collectively to a room
//   - Keeping each invoice's paid amount and status consistent with its payments
//   - Describing the payment gateway port used for online (VNPay) settlement
//
// Key Aggregates:
//   - Invoice: the ledger. Every change to PaidAmount goes through ApplyPaymentDelta
//
// Entities:
//   - InvoiceItem: one charge line owned by an Invoice
//   - Payment: a settlement recorded against exactly one Invoice
//
// The billing domain integrates with:
//   - Residence domain: for student profile and room references
//   - Payment gateways: through the PaymentGateway port
package billing
