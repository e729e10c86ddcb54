package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmdatafocus/freight_backend/models"
	"github.com/mmdatafocus/freight_backend/storage"
	"github.com/shopspring/decimal"
)

// Books is the AccountingService kept in the freight store itself, so invoices
// commit and roll back with the documents that create them.
type Books struct {
	store storage.Store
}

var _ AccountingService = (*Books)(nil)

func NewBooks(store storage.Store) *Books {
	return &Books{store: store}
}

// BooksFactory binds Books to whatever store the caller is working in.
func BooksFactory(store storage.Store) AccountingService {
	return NewBooks(store)
}

func (b *Books) Transactional() bool {
	return true
}

func (b *Books) CreateInvoice(ctx context.Context, inv *models.Invoice) (*models.Invoice, error) {
	if len(inv.Lines) == 0 {
		return nil, models.NewValidationError("invoice requires at least one line")
	}
	if inv.PartyRef == "" {
		return nil, models.NewValidationError("invoice requires a party")
	}
	doctype := models.DocTypeSalesInvoice
	if inv.InvoiceType == models.InvoiceTypePurchase {
		doctype = models.DocTypePurchaseInvoice
	}
	name, err := b.store.NextName(ctx, doctype)
	if err != nil {
		return nil, err
	}
	inv.InvoiceNumber = name
	inv.DocStatus = models.DocStatusSubmitted
	if err := b.store.CreateInvoice(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// CancelInvoice cancels a submitted invoice. Allocations of payment entries stay on record.
func (b *Books) CancelInvoice(ctx context.Context, id int) (*models.Invoice, error) {
	inv, err := b.store.GetInvoice(ctx, id, true)
	if err != nil {
		return nil, err
	}
	switch inv.DocStatus {
	case models.DocStatusCancelled:
		return nil, fmt.Errorf("invoice %s: %w", inv.InvoiceNumber, models.ErrAlreadyCancelled)
	case models.DocStatusDraft:
		return nil, fmt.Errorf("invoice %s: %w", inv.InvoiceNumber, models.ErrNotSubmitted)
	}
	inv.DocStatus = models.DocStatusCancelled
	if err := b.store.UpdateInvoice(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (b *Books) GetInvoice(ctx context.Context, id int) (*models.Invoice, error) {
	return b.store.GetInvoice(ctx, id, false)
}

func (b *Books) ListInvoices(ctx context.Context, filter models.InvoiceFilter) ([]*models.Invoice, error) {
	return b.store.ListInvoices(ctx, filter)
}

func (b *Books) CreatePaymentEntry(ctx context.Context, draft *models.PaymentEntry) (*models.PaymentEntry, error) {
	name, err := b.store.NextName(ctx, models.DocTypePaymentEntry)
	if err != nil {
		return nil, err
	}
	draft.EntryNumber = name
	draft.DocStatus = models.DocStatusDraft
	if err := b.store.CreatePaymentEntry(ctx, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// SubmitPaymentEntry allocates the entry against its referenced invoices.
func (b *Books) SubmitPaymentEntry(ctx context.Context, id int) (*models.PaymentEntry, error) {
	pe, err := b.store.GetPaymentEntry(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if pe.DocStatus != models.DocStatusDraft {
		return nil, fmt.Errorf("payment entry %s: %w", pe.EntryNumber, models.ErrNotDraft)
	}
	allocated := decimal.Zero
	for i := range pe.References {
		ref := &pe.References[i]
		inv, err := b.store.GetInvoice(ctx, ref.InvoiceId, true)
		if err != nil {
			return nil, err
		}
		if !inv.IsActive() {
			return nil, models.NewConflictError("invoice %s is not submitted", inv.InvoiceNumber)
		}
		if ref.AllocatedAmount.GreaterThan(inv.OutstandingAmount) {
			return nil, models.NewConflictError("allocated %s exceeds outstanding %s of invoice %s",
				ref.AllocatedAmount, inv.OutstandingAmount, inv.InvoiceNumber)
		}
		ref.OutstandingAmount = inv.OutstandingAmount
		inv.OutstandingAmount = inv.OutstandingAmount.Sub(ref.AllocatedAmount)
		if err := b.store.UpdateInvoice(ctx, inv); err != nil {
			return nil, err
		}
		allocated = allocated.Add(ref.AllocatedAmount)
	}
	if allocated.GreaterThan(pe.PaidAmount) {
		return nil, models.NewValidationError("allocated %s exceeds paid amount %s", allocated, pe.PaidAmount)
	}
	pe.DocStatus = models.DocStatusSubmitted
	if err := b.store.UpdatePaymentEntry(ctx, pe); err != nil {
		return nil, err
	}
	return pe, nil
}

func (b *Books) UpsertParty(ctx context.Context, party models.AccountingParty) (string, error) {
	if party.Ref != "" {
		rec, err := b.store.GetAccountingParty(ctx, party.Ref)
		if err != nil {
			return "", err
		}
		rec.Name = party.Name
		rec.Group = party.Group
		rec.PrimaryAddress = party.PrimaryAddress
		rec.Phone = party.Phone
		return rec.Ref, b.store.UpdateAccountingParty(ctx, rec)
	}

	name := strings.TrimSpace(party.Name)
	if name == "" {
		return "", models.NewValidationError("%s name is required", party.Type)
	}
	ref, err := b.freeRef(ctx, name)
	if err != nil {
		return "", err
	}
	rec := &models.AccountingPartyRecord{
		Type:           party.Type,
		Ref:            ref,
		Name:           name,
		Group:          party.Group,
		PrimaryAddress: party.PrimaryAddress,
		Phone:          party.Phone,
	}
	if err := b.store.CreateAccountingParty(ctx, rec); err != nil {
		return "", err
	}
	return rec.Ref, nil
}

// freeRef returns name, or name suffixed with a counter when taken.
func (b *Books) freeRef(ctx context.Context, name string) (string, error) {
	ref := name
	for n := 1; ; n++ {
		_, err := b.store.GetAccountingParty(ctx, ref)
		if err != nil {
			if isNotFound(err) {
				return ref, nil
			}
			return "", err
		}
		ref = fmt.Sprintf("%s - %d", name, n)
	}
}

func (b *Books) TaxRate(ctx context.Context, template string) (decimal.Decimal, error) {
	tax, err := b.store.GetTaxTemplate(ctx, template)
	if err != nil {
		return decimal.Zero, err
	}
	return tax.Rate, nil
}
