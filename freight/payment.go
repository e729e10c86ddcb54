package freight

import (
	"context"

	"github.com/mmdatafocus/freight_backend/models"
	"github.com/mmdatafocus/freight_backend/utils"
)

// MakeBookingPartyPaymentEntry drafts a receipt over the party's outstanding sales
// invoices. A party without a customer gets an empty draft.
func (s *Service) MakeBookingPartyPaymentEntry(ctx context.Context, partyId int) (*models.PaymentEntry, error) {
	var pe *models.PaymentEntry
	err := s.run(ctx, "MakeBookingPartyPaymentEntry", nil, func(ctx context.Context, tx txScope) error {
		party, err := tx.store.GetBookingParty(ctx, partyId)
		if err != nil {
			return err
		}
		pe, err = tx.bridge.MakePaymentEntry(ctx, models.PartyTypeCustomer, utils.DereferencePtr(party.CustomerRef), s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return pe, nil
}

// MakeShippingVendorPaymentEntry drafts a payment over the vendor's outstanding purchase invoices.
func (s *Service) MakeShippingVendorPaymentEntry(ctx context.Context, vendorId int) (*models.PaymentEntry, error) {
	var pe *models.PaymentEntry
	err := s.run(ctx, "MakeShippingVendorPaymentEntry", nil, func(ctx context.Context, tx txScope) error {
		vendor, err := tx.store.GetShippingVendor(ctx, vendorId)
		if err != nil {
			return err
		}
		pe, err = tx.bridge.MakePaymentEntry(ctx, models.PartyTypeSupplier, utils.DereferencePtr(vendor.SupplierRef), s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return pe, nil
}

func (s *Service) SubmitPaymentEntry(ctx context.Context, id int) (*models.PaymentEntry, error) {
	var pe *models.PaymentEntry
	err := s.run(ctx, "SubmitPaymentEntry", nil, func(ctx context.Context, tx txScope) error {
		var err error
		pe, err = tx.bridge.SubmitPaymentEntry(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pe, nil
}
