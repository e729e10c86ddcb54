package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/mmdatafocus/freight_backend/config"
	"github.com/mmdatafocus/freight_backend/models"
	"github.com/mmdatafocus/freight_backend/storage"
	"github.com/mmdatafocus/freight_backend/utils"
	"github.com/shopspring/decimal"
)

// Bridge posts freight documents to the accounting service and mirrors the
// resulting invoices back onto booking orders. It works inside one store
// transaction and remembers the invoices it created so they can be
// compensated when the accounting service is not transactional.
type Bridge struct {
	store    storage.Store
	accounts AccountingService
	settings config.FreightSettings
	created  []int
}

func NewBridge(store storage.Store, accounts AccountingService, settings config.FreightSettings) *Bridge {
	return &Bridge{store: store, accounts: accounts, settings: settings}
}

// Created lists the ids of invoices created through the bridge.
func (b *Bridge) Created() []int {
	return b.created
}

// ValidateSettings requires one distinct freight item per basis.
func ValidateSettings(settings config.FreightSettings) error {
	var result *multierror.Error
	if settings.FreightItemPackages == "" || settings.FreightItemWeight == "" {
		result = multierror.Append(result, models.NewValidationError("a freight item is required for both Packages and Weight"))
	} else if settings.FreightItemPackages == settings.FreightItemWeight {
		result = multierror.Append(result, models.NewValidationError(
			"freight item %q is mapped to both Packages and Weight", settings.FreightItemPackages))
	}
	return result.ErrorOrNil()
}

func freightItem(settings config.FreightSettings, basis models.FreightBasis) string {
	if basis == models.FreightBasisWeight {
		return settings.FreightItemWeight
	}
	return settings.FreightItemPackages
}

func (b *Bridge) freightLine(detail models.BookingOrderFreightDetail, qty decimal.Decimal, rowId *int) models.InvoiceLine {
	description := detail.ItemDescription
	if description == "" {
		description = fmt.Sprintf("Freight (%s)", detail.BasedOn)
	}
	return models.InvoiceLine{
		ItemCode:              freightItem(b.settings, detail.BasedOn),
		Description:           description,
		IsFreight:             true,
		BoDetailId:            utils.Ptr(detail.ID),
		LoadingOperationRowId: rowId,
		Qty:                   qty.Round(models.QuantityPrecision),
		Rate:                  detail.Rate,
	}
}

// uninvoicedCharges bills what is left of every charge row. Lines carry the
// charge row id since one charge type may appear on several rows.
func (b *Bridge) uninvoicedCharges(bo *models.BookingOrder) []models.InvoiceLine {
	var lines []models.InvoiceLine
	for _, c := range bo.Charges {
		remaining := c.Amount.Sub(c.InvoicedAmount)
		if !remaining.IsPositive() {
			continue
		}
		lines = append(lines, models.InvoiceLine{
			ItemCode:    b.settings.ChargeItemPrefix + c.ChargeType,
			Description: c.ChargeType,
			ChargeType:  c.ChargeType,
			BoChargeId:  utils.Ptr(c.ID),
			Qty:         decimal.NewFromInt(1),
			Rate:        remaining,
		})
	}
	return lines
}

// BookingOrderLines bills the uninvoiced remainder of every freight and charge row.
func (b *Bridge) BookingOrderLines(bo *models.BookingOrder) []models.InvoiceLine {
	var lines []models.InvoiceLine
	for _, row := range bo.Freight {
		remaining := row.Qty.Sub(row.InvoicedQty)
		if remaining.Round(3).IsPositive() {
			lines = append(lines, b.freightLine(row, remaining, nil))
		}
	}
	return append(lines, b.uninvoicedCharges(bo)...)
}

// LoadingLines bills the rows of one booking order moved by a loading operation,
// each in its freight detail's basis, plus the charges not billed yet.
func (b *Bridge) LoadingLines(bo *models.BookingOrder, rows []models.LoadingOperationRow) ([]models.InvoiceLine, error) {
	var lines []models.InvoiceLine
	for _, r := range rows {
		detail, ok := bo.FreightRow(r.BoDetailId)
		if !ok {
			return nil, models.NewValidationError("freight detail %d does not belong to booking order %s", r.BoDetailId, bo.OrderNumber)
		}
		var rowId *int
		if r.ID != 0 {
			rowId = utils.Ptr(r.ID)
		}
		lines = append(lines, b.freightLine(*detail, r.Quantity().In(detail.BasedOn), rowId))
	}
	return append(lines, b.uninvoicedCharges(bo)...), nil
}

// ValidateFreightLines rejects lines that would push the cumulative invoiced
// quantity of a freight detail above its declared quantity.
func ValidateFreightLines(bo *models.BookingOrder, lines []models.InvoiceLine) error {
	var result *multierror.Error
	requested := make(map[int]decimal.Decimal)
	items := make(map[int]string)
	for _, line := range lines {
		if !line.IsFreight || line.BoDetailId == nil {
			continue
		}
		detailId := *line.BoDetailId
		if prev, ok := items[detailId]; ok && prev != line.ItemCode {
			result = multierror.Append(result, models.NewValidationError(
				"freight detail %d is billed with items %q and %q", detailId, prev, line.ItemCode))
		}
		items[detailId] = line.ItemCode
		requested[detailId] = requested[detailId].Add(line.Qty)
	}
	for _, row := range bo.Freight {
		qty, ok := requested[row.ID]
		if !ok {
			continue
		}
		delete(requested, row.ID)
		if models.ExceedsAt3dp(row.InvoicedQty.Add(qty), row.Qty) {
			result = multierror.Append(result, models.NewConflictError(
				"booking order %s row #%d: invoicing %s more would exceed booked %s (already invoiced %s)",
				bo.OrderNumber, row.Idx, qty, row.Qty, row.InvoicedQty))
		}
	}
	for detailId := range requested {
		result = multierror.Append(result, models.NewValidationError(
			"freight detail %d does not belong to booking order %s", detailId, bo.OrderNumber))
	}
	return result.ErrorOrNil()
}

func validateLoading(lines []models.InvoiceLine, opts BillingOptions) error {
	if !opts.ValidateLoading {
		return nil
	}
	if opts.LoadingOperationId == nil {
		return models.NewValidationError("a loading operation is required to validate loading")
	}
	var result *multierror.Error
	for _, line := range lines {
		if line.IsFreight && line.LoadingOperationRowId == nil {
			result = multierror.Append(result, models.NewValidationError(
				"freight line for detail %d is not linked to a loading operation row", utils.DereferencePtr(line.BoDetailId)))
		}
	}
	return result.ErrorOrNil()
}

// CheckInvoice runs every check CreateInvoice would without writing anything.
func (b *Bridge) CheckInvoice(ctx context.Context, bo *models.BookingOrder, lines []models.InvoiceLine, opts BillingOptions) error {
	var result *multierror.Error
	if err := ValidateSettings(b.settings); err != nil {
		result = multierror.Append(result, err)
	}
	if !opts.BillTo.IsValid() {
		result = multierror.Append(result, models.NewValidationError("invalid bill to %q", opts.BillTo))
	} else if _, err := b.store.GetBookingParty(ctx, bo.BillToParty(opts.BillTo)); err != nil {
		result = multierror.Append(result, err)
	}
	if len(lines) == 0 {
		result = multierror.Append(result, models.NewValidationError("booking order %s has nothing to invoice", bo.OrderNumber))
	}
	if !opts.SkipValidation {
		if err := ValidateFreightLines(bo, lines); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := validateLoading(lines, opts); err != nil {
		result = multierror.Append(result, err)
	}
	if opts.TaxesAndCharges != "" {
		if _, err := b.accounts.TaxRate(ctx, opts.TaxesAndCharges); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// CreateInvoice creates and submits a sales invoice for bo, then refreshes the
// order's payment status and invoiced quantities.
func (b *Bridge) CreateInvoice(ctx context.Context, bo *models.BookingOrder, lines []models.InvoiceLine, opts BillingOptions) (*models.Invoice, error) {
	if err := b.CheckInvoice(ctx, bo, lines, opts); err != nil {
		return nil, err
	}
	customer, err := b.ensureCustomer(ctx, bo.BillToParty(opts.BillTo))
	if err != nil {
		return nil, err
	}
	taxRate := decimal.Zero
	if opts.TaxesAndCharges != "" {
		if taxRate, err = b.accounts.TaxRate(ctx, opts.TaxesAndCharges); err != nil {
			return nil, err
		}
	}
	posting := opts.PostingDate
	if posting.IsZero() {
		posting = time.Now()
	}
	inv := &models.Invoice{
		InvoiceType:        models.InvoiceTypeSales,
		PartyType:          models.PartyTypeCustomer,
		PartyRef:           customer,
		PostingDate:        posting,
		BookingOrderId:     utils.Ptr(bo.ID),
		LoadingOperationId: opts.LoadingOperationId,
		IsFreightInvoice:   opts.IsFreightInvoice,
		TaxesAndCharges:    opts.TaxesAndCharges,
		Account:            b.settings.ReceivableAccount,
		Lines:              lines,
	}
	inv.SetTotals(taxRate)
	inv, err = b.accounts.CreateInvoice(ctx, inv)
	if err != nil {
		return nil, err
	}
	b.created = append(b.created, inv.ID)
	if _, err := b.SyncBookingOrder(ctx, bo.ID); err != nil {
		return nil, err
	}
	return inv, nil
}

// CancelInvoice cancels an invoice and refreshes its booking order.
func (b *Bridge) CancelInvoice(ctx context.Context, id int) (*models.Invoice, error) {
	inv, err := b.accounts.CancelInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.BookingOrderId != nil {
		if _, err := b.SyncBookingOrder(ctx, *inv.BookingOrderId); err != nil {
			return nil, err
		}
	}
	return inv, nil
}

// ActiveInvoices lists the submitted sales invoices of a booking order.
func (b *Bridge) ActiveInvoices(ctx context.Context, bookingOrderId int) ([]*models.Invoice, error) {
	return b.accounts.ListInvoices(ctx, models.InvoiceFilter{
		InvoiceType:    models.InvoiceTypeSales,
		BookingOrderId: bookingOrderId,
		DocStatus:      utils.Ptr(models.DocStatusSubmitted),
	})
}

// SyncBookingOrder recomputes payment status and the invoiced quantities and
// amounts of a booking order from its active invoices.
func (b *Bridge) SyncBookingOrder(ctx context.Context, bookingOrderId int) (*models.BookingOrder, error) {
	bo, err := b.store.GetBookingOrder(ctx, bookingOrderId, true)
	if err != nil {
		return nil, err
	}
	invoices, err := b.ActiveInvoices(ctx, bookingOrderId)
	if err != nil {
		return nil, err
	}
	Mirror(bo, invoices)
	if err := b.store.UpdateBookingOrder(ctx, bo); err != nil {
		return nil, err
	}
	return bo, nil
}

// Mirror rebuilds payment status and invoiced figures of bo from invoices.
func Mirror(bo *models.BookingOrder, invoices []*models.Invoice) {
	for i := range bo.Freight {
		bo.Freight[i].InvoicedQty = decimal.Zero
		bo.Freight[i].InvoicedAmount = decimal.Zero
	}
	for i := range bo.Charges {
		bo.Charges[i].InvoicedAmount = decimal.Zero
	}

	total, outstanding := decimal.Zero, decimal.Zero
	for _, inv := range invoices {
		if !inv.IsActive() {
			continue
		}
		total = total.Add(inv.GrandTotal)
		outstanding = outstanding.Add(inv.OutstandingAmount)
		for _, line := range inv.Lines {
			switch {
			case line.IsFreight && line.BoDetailId != nil:
				if row, ok := bo.FreightRow(*line.BoDetailId); ok {
					row.InvoicedQty = row.InvoicedQty.Add(line.Qty)
					row.InvoicedAmount = row.InvoicedAmount.Add(line.Amount)
				}
			case line.BoChargeId != nil:
				if charge, ok := bo.ChargeRow(*line.BoChargeId); ok {
					charge.InvoicedAmount = charge.InvoicedAmount.Add(line.Amount)
				}
			}
		}
	}

	switch {
	case len(invoices) == 0 || total.IsZero():
		bo.PaymentStatus = models.PaymentStatusUnbilled
	case outstanding.IsPositive():
		bo.PaymentStatus = models.PaymentStatusUnpaid
	default:
		bo.PaymentStatus = models.PaymentStatusPaid
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}
