// Package storage is the document persistence boundary of the freight service.
//
// A Store reads and writes typed documents with docstatus semantics and answers
// grouped ledger aggregations. Every mutating orchestrator operation runs inside
// RunInTx; reads meant for mutation pass forUpdate so the SQL implementation
// takes row locks.
package storage

import (
	"context"

	"github.com/mmdatafocus/freight_backend/models"
)

type Store interface {
	// RunInTx runs fn in one transaction. Returning an error rolls back every write made through tx.
	RunInTx(ctx context.Context, fn func(tx Store) error) error

	// NextName issues the next document number of the doctype's naming series.
	NextName(ctx context.Context, doctype string) (string, error)

	MasterData
	BookingOrders
	BookingLogs
	ShippingOrders
	LoadingOperations
	Accounting
	Outbox
}

type MasterData interface {
	CreateStation(ctx context.Context, station *models.Station) error
	GetStation(ctx context.Context, id int) (*models.Station, error)
	CreateVehicle(ctx context.Context, vehicle *models.Vehicle) error
	GetVehicle(ctx context.Context, id int) (*models.Vehicle, error)

	CreateBookingParty(ctx context.Context, party *models.BookingParty) error
	GetBookingParty(ctx context.Context, id int) (*models.BookingParty, error)
	UpdateBookingParty(ctx context.Context, party *models.BookingParty) error
	CreateShippingVendor(ctx context.Context, vendor *models.ShippingVendor) error
	GetShippingVendor(ctx context.Context, id int) (*models.ShippingVendor, error)
	UpdateShippingVendor(ctx context.Context, vendor *models.ShippingVendor) error

	CreateChargeTemplate(ctx context.Context, template *models.BookingOrderChargeTemplate) error
	GetChargeTemplate(ctx context.Context, id int) (*models.BookingOrderChargeTemplate, error)
	// GetDefaultChargeTemplate returns a NotFound error when no template is flagged default.
	GetDefaultChargeTemplate(ctx context.Context) (*models.BookingOrderChargeTemplate, error)
}

type BookingOrders interface {
	CreateBookingOrder(ctx context.Context, bo *models.BookingOrder) error
	GetBookingOrder(ctx context.Context, id int, forUpdate bool) (*models.BookingOrder, error)
	// UpdateBookingOrder saves the header and the existing freight and charge rows.
	UpdateBookingOrder(ctx context.Context, bo *models.BookingOrder) error
	ListBookingOrders(ctx context.Context, filter models.BookingOrderFilter) ([]*models.BookingOrder, error)
}

type BookingLogs interface {
	InsertBookingLogs(ctx context.Context, logs []*models.BookingLog) error
	// DeleteBookingLogs removes the entries of owner, limited to detailIds when given.
	DeleteBookingLogs(ctx context.Context, owner models.Owner, detailIds ...int) (int64, error)
	// FindBookingLogs returns matching entries in posting order.
	FindBookingLogs(ctx context.Context, filter models.BookingLogFilter) ([]models.BookingLog, error)
	SumBookingLogs(ctx context.Context, filter models.BookingLogFilter, groupBy models.BookingLogGroupBy) ([]models.BookingLogBalance, error)
}

type ShippingOrders interface {
	CreateShippingOrder(ctx context.Context, so *models.ShippingOrder) error
	GetShippingOrder(ctx context.Context, id int, forUpdate bool) (*models.ShippingOrder, error)
	UpdateShippingOrder(ctx context.Context, so *models.ShippingOrder) error
	ListShippingOrders(ctx context.Context, filter models.ShippingOrderFilter) ([]*models.ShippingOrder, error)

	InsertShippingLog(ctx context.Context, log *models.ShippingLog) error
	FindShippingLogs(ctx context.Context, filter models.ShippingLogFilter) ([]models.ShippingLog, error)
	DeleteShippingLogs(ctx context.Context, loadingOperationId int) (int64, error)
}

type LoadingOperations interface {
	CreateLoadingOperation(ctx context.Context, op *models.LoadingOperation) error
	GetLoadingOperation(ctx context.Context, id int, forUpdate bool) (*models.LoadingOperation, error)
	// UpdateLoadingOperation saves the header and replaces the row set with op's rows.
	UpdateLoadingOperation(ctx context.Context, op *models.LoadingOperation) error
	ListLoadingOperations(ctx context.Context, filter models.LoadingOperationFilter) ([]*models.LoadingOperation, error)
}

type Accounting interface {
	CreateInvoice(ctx context.Context, inv *models.Invoice) error
	GetInvoice(ctx context.Context, id int, forUpdate bool) (*models.Invoice, error)
	// UpdateInvoice saves the invoice header only.
	UpdateInvoice(ctx context.Context, inv *models.Invoice) error
	ListInvoices(ctx context.Context, filter models.InvoiceFilter) ([]*models.Invoice, error)

	CreateTaxTemplate(ctx context.Context, tax *models.TaxTemplate) error
	GetTaxTemplate(ctx context.Context, name string) (*models.TaxTemplate, error)

	CreatePaymentEntry(ctx context.Context, pe *models.PaymentEntry) error
	GetPaymentEntry(ctx context.Context, id int, forUpdate bool) (*models.PaymentEntry, error)
	UpdatePaymentEntry(ctx context.Context, pe *models.PaymentEntry) error

	CreateAccountingParty(ctx context.Context, party *models.AccountingPartyRecord) error
	GetAccountingParty(ctx context.Context, ref string) (*models.AccountingPartyRecord, error)
	UpdateAccountingParty(ctx context.Context, party *models.AccountingPartyRecord) error
}

type Outbox interface {
	CreateOutboxRecord(ctx context.Context, record *models.PubSubMessageRecord) error
	ListOutboxRecords(ctx context.Context, filter models.OutboxFilter) ([]*models.PubSubMessageRecord, error)
}
