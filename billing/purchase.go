package billing

import (
	"context"
	"time"

	"github.com/mmdatafocus/freight_backend/models"
	"github.com/mmdatafocus/freight_backend/utils"
	"github.com/shopspring/decimal"
)

// MakePurchaseInvoice bills the vendor of a shipping order for the trip.
// A shipping order carries at most one submitted purchase invoice.
func (b *Bridge) MakePurchaseInvoice(ctx context.Context, so *models.ShippingOrder, amount decimal.Decimal, description string, postingDate time.Time) (*models.Invoice, error) {
	if so.DocStatus != models.DocStatusSubmitted {
		return nil, models.NewConflictError("shipping order %s is not submitted", so.OrderNumber)
	}
	if so.ShippingVendorId == nil {
		return nil, models.NewValidationError("shipping order %s has no shipping vendor", so.OrderNumber)
	}
	if !amount.IsPositive() {
		return nil, models.NewValidationError("purchase amount must be greater than zero")
	}
	if err := ValidateSettings(b.settings); err != nil {
		return nil, err
	}

	existing, err := b.accounts.ListInvoices(ctx, models.InvoiceFilter{
		InvoiceType:     models.InvoiceTypePurchase,
		ShippingOrderId: so.ID,
		DocStatus:       utils.Ptr(models.DocStatusSubmitted),
	})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, models.NewConflictError("shipping order %s already has purchase invoice %s", so.OrderNumber, existing[0].InvoiceNumber)
	}

	supplier, err := b.ensureSupplier(ctx, *so.ShippingVendorId)
	if err != nil {
		return nil, err
	}
	if description == "" {
		description = "Freight " + so.OrderNumber
	}
	if postingDate.IsZero() {
		postingDate = time.Now()
	}
	inv := &models.Invoice{
		InvoiceType:      models.InvoiceTypePurchase,
		PartyType:        models.PartyTypeSupplier,
		PartyRef:         supplier,
		PostingDate:      postingDate,
		ShippingOrderId:  utils.Ptr(so.ID),
		IsFreightInvoice: true,
		Account:          b.settings.PayableAccount,
		Lines: []models.InvoiceLine{{
			ItemCode:    b.settings.FreightItemPackages,
			Description: description,
			IsFreight:   true,
			Qty:         decimal.NewFromInt(1),
			Rate:        amount,
		}},
	}
	inv.SetTotals(decimal.Zero)
	inv, err = b.accounts.CreateInvoice(ctx, inv)
	if err != nil {
		return nil, err
	}
	b.created = append(b.created, inv.ID)
	return inv, nil
}
