package billing

import (
	"context"
	"time"

	"github.com/mmdatafocus/freight_backend/models"
	"github.com/mmdatafocus/freight_backend/utils"
	"github.com/samber/lo"
)

// MakePaymentEntry drafts one payment entry over every outstanding invoice of
// a party. Without outstanding invoices the draft is empty and points at the
// default cash account.
func (b *Bridge) MakePaymentEntry(ctx context.Context, partyType models.PartyType, partyRef string, postingDate time.Time) (*models.PaymentEntry, error) {
	if postingDate.IsZero() {
		postingDate = time.Now()
	}
	draft := &models.PaymentEntry{
		PaymentType: models.PaymentTypeReceive,
		PartyType:   partyType,
		PartyRef:    partyRef,
		PostingDate: postingDate,
		Account:     b.settings.DefaultCashAccount,
	}
	invoiceType := models.InvoiceTypeSales
	if partyType == models.PartyTypeSupplier {
		draft.PaymentType = models.PaymentTypePay
		invoiceType = models.InvoiceTypePurchase
	}

	if partyRef != "" {
		invoices, err := b.accounts.ListInvoices(ctx, models.InvoiceFilter{
			InvoiceType:     invoiceType,
			PartyRef:        partyRef,
			DocStatus:       utils.Ptr(models.DocStatusSubmitted),
			OnlyOutstanding: true,
		})
		if err != nil {
			return nil, err
		}
		for _, inv := range invoices {
			draft.References = append(draft.References, models.PaymentEntryReference{
				InvoiceId:         inv.ID,
				OutstandingAmount: inv.OutstandingAmount,
				AllocatedAmount:   inv.OutstandingAmount,
			})
		}
	}
	draft.SetTotals()
	return b.accounts.CreatePaymentEntry(ctx, draft)
}

// SubmitPaymentEntry submits a drafted entry and refreshes the payment status
// of every booking order it settles.
func (b *Bridge) SubmitPaymentEntry(ctx context.Context, id int) (*models.PaymentEntry, error) {
	pe, err := b.accounts.SubmitPaymentEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	var orders []int
	for _, ref := range pe.References {
		inv, err := b.accounts.GetInvoice(ctx, ref.InvoiceId)
		if err != nil {
			return nil, err
		}
		if inv.BookingOrderId != nil {
			orders = append(orders, *inv.BookingOrderId)
		}
	}
	for _, boId := range lo.Uniq(orders) {
		if _, err := b.SyncBookingOrder(ctx, boId); err != nil {
			return nil, err
		}
	}
	return pe, nil
}
