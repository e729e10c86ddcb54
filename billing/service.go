// Package billing bridges freight documents to the accounting service:
// freight and charge invoices, payment entries, payment status and the
// Booking Party / Shipping Vendor mirror onto customers and suppliers.
package billing

import (
	"context"
	"time"

	"github.com/mmdatafocus/freight_backend/models"
	"github.com/mmdatafocus/freight_backend/storage"
	"github.com/shopspring/decimal"
)

// AccountingService is the accounting collaborator. Invoices it creates are submitted.
type AccountingService interface {
	CreateInvoice(ctx context.Context, inv *models.Invoice) (*models.Invoice, error)
	CancelInvoice(ctx context.Context, id int) (*models.Invoice, error)
	GetInvoice(ctx context.Context, id int) (*models.Invoice, error)
	ListInvoices(ctx context.Context, filter models.InvoiceFilter) ([]*models.Invoice, error)

	CreatePaymentEntry(ctx context.Context, draft *models.PaymentEntry) (*models.PaymentEntry, error)
	SubmitPaymentEntry(ctx context.Context, id int) (*models.PaymentEntry, error)

	// UpsertParty creates the customer or supplier when party.Ref is empty,
	// otherwise overwrites its name and address, and returns its ref.
	UpsertParty(ctx context.Context, party models.AccountingParty) (string, error)
	TaxRate(ctx context.Context, template string) (decimal.Decimal, error)

	// Transactional reports whether writes commit and roll back with the freight store.
	Transactional() bool
}

// ServiceFactory scopes an accounting service to a store, usually a transaction.
type ServiceFactory func(store storage.Store) AccountingService

// BillingOptions replaces the ambient invoice flags with an explicit parameter object.
type BillingOptions struct {
	BillTo             models.BillTo
	TaxesAndCharges    string
	IsFreightInvoice   bool
	LoadingOperationId *int
	// SkipValidation disables the cumulative freight quantity check.
	SkipValidation bool
	// ValidateLoading requires every freight line to come from LoadingOperationId.
	ValidateLoading bool
	PostingDate     time.Time
}
