package mysql

import (
	"context"

	"github.com/mmdatafocus/freight_backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Store) CreateInvoice(ctx context.Context, inv *models.Invoice) error {
	return s.db.WithContext(ctx).Create(inv).Error
}

func (s *Store) GetInvoice(ctx context.Context, id int, forUpdate bool) (*models.Invoice, error) {
	var inv models.Invoice
	if err := s.conn(ctx, forUpdate).Preload("Lines", orderByIdx).First(&inv, id).Error; err != nil {
		return nil, notFound(err, "Invoice", id)
	}
	return &inv, nil
}

func (s *Store) UpdateInvoice(ctx context.Context, inv *models.Invoice) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Save(inv).Error
}

func (s *Store) ListInvoices(ctx context.Context, filter models.InvoiceFilter) ([]*models.Invoice, error) {
	db := s.db.WithContext(ctx)
	if filter.InvoiceType != "" {
		db = db.Where("invoice_type = ?", filter.InvoiceType)
	}
	if filter.PartyRef != "" {
		db = db.Where("party_ref = ?", filter.PartyRef)
	}
	if filter.BookingOrderId != 0 {
		db = db.Where("booking_order_id = ?", filter.BookingOrderId)
	}
	if filter.ShippingOrderId != 0 {
		db = db.Where("shipping_order_id = ?", filter.ShippingOrderId)
	}
	if filter.LoadingOperationId != 0 {
		db = db.Where("loading_operation_id = ?", filter.LoadingOperationId)
	}
	if filter.DocStatus != nil {
		db = db.Where("doc_status = ?", *filter.DocStatus)
	}
	if filter.OnlyOutstanding {
		db = db.Where("outstanding_amount > 0")
	}
	var results []*models.Invoice
	err := db.Preload("Lines", orderByIdx).Order("id").Find(&results).Error
	return results, err
}

func (s *Store) CreateTaxTemplate(ctx context.Context, tax *models.TaxTemplate) error {
	err := s.db.WithContext(ctx).Create(tax).Error
	return duplicateAsConflict(err, "tax template %q already exists", tax.Name)
}

func (s *Store) GetTaxTemplate(ctx context.Context, name string) (*models.TaxTemplate, error) {
	var tax models.TaxTemplate
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&tax).Error; err != nil {
		return nil, notFound(err, "Tax Template", name)
	}
	return &tax, nil
}

func (s *Store) CreatePaymentEntry(ctx context.Context, pe *models.PaymentEntry) error {
	return s.db.WithContext(ctx).Create(pe).Error
}

func (s *Store) GetPaymentEntry(ctx context.Context, id int, forUpdate bool) (*models.PaymentEntry, error) {
	var pe models.PaymentEntry
	if err := s.conn(ctx, forUpdate).Preload("References").First(&pe, id).Error; err != nil {
		return nil, notFound(err, "Payment Entry", id)
	}
	return &pe, nil
}

func (s *Store) UpdatePaymentEntry(ctx context.Context, pe *models.PaymentEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(pe).Error; err != nil {
			return err
		}
		for i := range pe.References {
			pe.References[i].PaymentEntryId = pe.ID
			if err := tx.Save(&pe.References[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) CreateAccountingParty(ctx context.Context, party *models.AccountingPartyRecord) error {
	err := s.db.WithContext(ctx).Create(party).Error
	return duplicateAsConflict(err, "%s %q already exists", party.Type, party.Ref)
}

func (s *Store) GetAccountingParty(ctx context.Context, ref string) (*models.AccountingPartyRecord, error) {
	var party models.AccountingPartyRecord
	if err := s.db.WithContext(ctx).Where("ref = ?", ref).First(&party).Error; err != nil {
		return nil, notFound(err, "Accounting Party", ref)
	}
	return &party, nil
}

func (s *Store) UpdateAccountingParty(ctx context.Context, party *models.AccountingPartyRecord) error {
	return s.db.WithContext(ctx).Save(party).Error
}

func (s *Store) CreateOutboxRecord(ctx context.Context, record *models.PubSubMessageRecord) error {
	return s.db.WithContext(ctx).Create(record).Error
}

func (s *Store) ListOutboxRecords(ctx context.Context, filter models.OutboxFilter) ([]*models.PubSubMessageRecord, error) {
	db := s.db.WithContext(ctx)
	if filter.ReferenceType != "" {
		db = db.Where("reference_type = ?", filter.ReferenceType)
	}
	if filter.ReferenceId != 0 {
		db = db.Where("reference_id = ?", filter.ReferenceId)
	}
	if filter.ProcessingStatus != "" {
		db = db.Where("processing_status = ?", filter.ProcessingStatus)
	}
	if filter.Limit > 0 {
		db = db.Limit(filter.Limit)
	}
	var results []*models.PubSubMessageRecord
	err := db.Order("id").Find(&results).Error
	return results, err
}
