package memory

import (
	"context"
	"slices"

	"github.com/mmdatafocus/freight_backend/models"
)

func cloneInvoice(inv *models.Invoice) *models.Invoice {
	c := *inv
	c.Lines = slices.Clone(inv.Lines)
	return &c
}

func clonePaymentEntry(pe *models.PaymentEntry) *models.PaymentEntry {
	c := *pe
	c.References = slices.Clone(pe.References)
	return &c
}

func (s *Store) CreateInvoice(ctx context.Context, inv *models.Invoice) error {
	defer s.lock()()
	inv.ID = s.st.nextId("invoices")
	for i := range inv.Lines {
		inv.Lines[i].ID = s.st.nextId("invoice_lines")
		inv.Lines[i].InvoiceId = inv.ID
	}
	stamp(&inv.CreatedAt, &inv.UpdatedAt)
	s.st.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, id int, forUpdate bool) (*models.Invoice, error) {
	defer s.lock()()
	if inv, ok := s.st.invoices[id]; ok {
		return cloneInvoice(inv), nil
	}
	return nil, models.NewNotFoundError("Invoice", id)
}

func (s *Store) UpdateInvoice(ctx context.Context, inv *models.Invoice) error {
	defer s.lock()()
	stored, ok := s.st.invoices[inv.ID]
	if !ok {
		return models.NewNotFoundError("Invoice", inv.ID)
	}
	c := cloneInvoice(inv)
	c.Lines = slices.Clone(stored.Lines)
	stamp(nil, &c.UpdatedAt)
	inv.UpdatedAt = c.UpdatedAt
	s.st.invoices[inv.ID] = c
	return nil
}

func (s *Store) ListInvoices(ctx context.Context, filter models.InvoiceFilter) ([]*models.Invoice, error) {
	defer s.lock()()
	var results []*models.Invoice
	for _, id := range s.st.invoices.sortedIds() {
		inv := s.st.invoices[id]
		if filter.InvoiceType != "" && inv.InvoiceType != filter.InvoiceType {
			continue
		}
		if filter.PartyRef != "" && inv.PartyRef != filter.PartyRef {
			continue
		}
		if filter.BookingOrderId != 0 && (inv.BookingOrderId == nil || *inv.BookingOrderId != filter.BookingOrderId) {
			continue
		}
		if filter.ShippingOrderId != 0 && (inv.ShippingOrderId == nil || *inv.ShippingOrderId != filter.ShippingOrderId) {
			continue
		}
		if filter.LoadingOperationId != 0 && (inv.LoadingOperationId == nil || *inv.LoadingOperationId != filter.LoadingOperationId) {
			continue
		}
		if filter.DocStatus != nil && inv.DocStatus != *filter.DocStatus {
			continue
		}
		if filter.OnlyOutstanding && !inv.OutstandingAmount.IsPositive() {
			continue
		}
		results = append(results, cloneInvoice(inv))
	}
	return results, nil
}

func (s *Store) CreateTaxTemplate(ctx context.Context, tax *models.TaxTemplate) error {
	defer s.lock()()
	for _, existing := range s.st.taxes {
		if existing.Name == tax.Name {
			return models.NewConflictError("tax template %q already exists", tax.Name)
		}
	}
	tax.ID = s.st.nextId("tax_templates")
	stamp(&tax.CreatedAt, nil)
	s.st.taxes[tax.ID] = clonePtr(tax)
	return nil
}

func (s *Store) GetTaxTemplate(ctx context.Context, name string) (*models.TaxTemplate, error) {
	defer s.lock()()
	for _, tax := range s.st.taxes {
		if tax.Name == name {
			return clonePtr(tax), nil
		}
	}
	return nil, models.NewNotFoundError("Tax Template", name)
}

func (s *Store) CreatePaymentEntry(ctx context.Context, pe *models.PaymentEntry) error {
	defer s.lock()()
	pe.ID = s.st.nextId("payment_entries")
	for i := range pe.References {
		pe.References[i].ID = s.st.nextId("payment_entry_references")
		pe.References[i].PaymentEntryId = pe.ID
	}
	stamp(&pe.CreatedAt, &pe.UpdatedAt)
	s.st.payments[pe.ID] = clonePaymentEntry(pe)
	return nil
}

func (s *Store) GetPaymentEntry(ctx context.Context, id int, forUpdate bool) (*models.PaymentEntry, error) {
	defer s.lock()()
	if pe, ok := s.st.payments[id]; ok {
		return clonePaymentEntry(pe), nil
	}
	return nil, models.NewNotFoundError("Payment Entry", id)
}

func (s *Store) UpdatePaymentEntry(ctx context.Context, pe *models.PaymentEntry) error {
	defer s.lock()()
	if _, ok := s.st.payments[pe.ID]; !ok {
		return models.NewNotFoundError("Payment Entry", pe.ID)
	}
	for i := range pe.References {
		if pe.References[i].ID == 0 {
			pe.References[i].ID = s.st.nextId("payment_entry_references")
		}
		pe.References[i].PaymentEntryId = pe.ID
	}
	stamp(nil, &pe.UpdatedAt)
	s.st.payments[pe.ID] = clonePaymentEntry(pe)
	return nil
}

func (s *Store) CreateAccountingParty(ctx context.Context, party *models.AccountingPartyRecord) error {
	defer s.lock()()
	for _, existing := range s.st.accountingParties {
		if existing.Ref == party.Ref {
			return models.NewConflictError("%s %q already exists", party.Type, party.Ref)
		}
	}
	party.ID = s.st.nextId("accounting_parties")
	stamp(&party.CreatedAt, &party.UpdatedAt)
	s.st.accountingParties[party.ID] = clonePtr(party)
	return nil
}

func (s *Store) GetAccountingParty(ctx context.Context, ref string) (*models.AccountingPartyRecord, error) {
	defer s.lock()()
	for _, party := range s.st.accountingParties {
		if party.Ref == ref {
			return clonePtr(party), nil
		}
	}
	return nil, models.NewNotFoundError("Accounting Party", ref)
}

func (s *Store) UpdateAccountingParty(ctx context.Context, party *models.AccountingPartyRecord) error {
	defer s.lock()()
	if _, ok := s.st.accountingParties[party.ID]; !ok {
		return models.NewNotFoundError("Accounting Party", party.Ref)
	}
	stamp(nil, &party.UpdatedAt)
	s.st.accountingParties[party.ID] = clonePtr(party)
	return nil
}

func (s *Store) CreateOutboxRecord(ctx context.Context, record *models.PubSubMessageRecord) error {
	defer s.lock()()
	record.ID = s.st.nextId("pub_sub_message_records")
	stamp(&record.CreatedAt, &record.UpdatedAt)
	s.st.outbox[record.ID] = clonePtr(record)
	return nil
}

func (s *Store) ListOutboxRecords(ctx context.Context, filter models.OutboxFilter) ([]*models.PubSubMessageRecord, error) {
	defer s.lock()()
	var results []*models.PubSubMessageRecord
	for _, id := range s.st.outbox.sortedIds() {
		rec := s.st.outbox[id]
		if filter.ReferenceType != "" && rec.ReferenceType != filter.ReferenceType {
			continue
		}
		if filter.ReferenceId != 0 && rec.ReferenceId != filter.ReferenceId {
			continue
		}
		if filter.ProcessingStatus != "" && rec.ProcessingStatus != filter.ProcessingStatus {
			continue
		}
		results = append(results, clonePtr(rec))
		if filter.Limit > 0 && len(results) >= filter.Limit {
			break
		}
	}
	return results, nil
}
