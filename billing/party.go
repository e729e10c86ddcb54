package billing

import (
	"context"

	"github.com/mmdatafocus/freight_backend/models"
	"github.com/mmdatafocus/freight_backend/utils"
)

// CreateCustomer links a booking party to a new customer.
func (b *Bridge) CreateCustomer(ctx context.Context, partyId int) (*models.BookingParty, error) {
	party, err := b.store.GetBookingParty(ctx, partyId)
	if err != nil {
		return nil, err
	}
	if party.CustomerRef != nil {
		return nil, models.NewConflictError("booking party %s is already linked to customer %s", party.PartyName, *party.CustomerRef)
	}
	if err := b.linkCustomer(ctx, party); err != nil {
		return nil, err
	}
	return party, nil
}

// CreateSupplier links a shipping vendor to a new supplier.
func (b *Bridge) CreateSupplier(ctx context.Context, vendorId int) (*models.ShippingVendor, error) {
	vendor, err := b.store.GetShippingVendor(ctx, vendorId)
	if err != nil {
		return nil, err
	}
	if vendor.SupplierRef != nil {
		return nil, models.NewConflictError("shipping vendor %s is already linked to supplier %s", vendor.VendorName, *vendor.SupplierRef)
	}
	if err := b.linkSupplier(ctx, vendor); err != nil {
		return nil, err
	}
	return vendor, nil
}

// SyncBookingParty pushes name, address and phone onto the linked customer.
// Unlinked parties are left alone.
func (b *Bridge) SyncBookingParty(ctx context.Context, party *models.BookingParty) error {
	if party.CustomerRef == nil {
		return nil
	}
	_, err := b.accounts.UpsertParty(ctx, party.AccountingParty(b.settings.CustomerGroup))
	return err
}

func (b *Bridge) SyncShippingVendor(ctx context.Context, vendor *models.ShippingVendor) error {
	if vendor.SupplierRef == nil {
		return nil
	}
	_, err := b.accounts.UpsertParty(ctx, vendor.AccountingParty(b.settings.SupplierGroup))
	return err
}

func (b *Bridge) linkCustomer(ctx context.Context, party *models.BookingParty) error {
	ref, err := b.accounts.UpsertParty(ctx, party.AccountingParty(b.settings.CustomerGroup))
	if err != nil {
		return err
	}
	party.CustomerRef = utils.Ptr(ref)
	return b.store.UpdateBookingParty(ctx, party)
}

func (b *Bridge) linkSupplier(ctx context.Context, vendor *models.ShippingVendor) error {
	ref, err := b.accounts.UpsertParty(ctx, vendor.AccountingParty(b.settings.SupplierGroup))
	if err != nil {
		return err
	}
	vendor.SupplierRef = utils.Ptr(ref)
	return b.store.UpdateShippingVendor(ctx, vendor)
}

// ensureCustomer returns the customer of a booking party, creating it on first billing.
func (b *Bridge) ensureCustomer(ctx context.Context, partyId int) (string, error) {
	party, err := b.store.GetBookingParty(ctx, partyId)
	if err != nil {
		return "", err
	}
	if party.Disabled {
		return "", models.NewConflictError("booking party %s is disabled", party.PartyName)
	}
	if party.CustomerRef == nil {
		if err := b.linkCustomer(ctx, party); err != nil {
			return "", err
		}
	}
	return *party.CustomerRef, nil
}

func (b *Bridge) ensureSupplier(ctx context.Context, vendorId int) (string, error) {
	vendor, err := b.store.GetShippingVendor(ctx, vendorId)
	if err != nil {
		return "", err
	}
	if vendor.SupplierRef == nil {
		if err := b.linkSupplier(ctx, vendor); err != nil {
			return "", err
		}
	}
	return *vendor.SupplierRef, nil
}
