package freight

import (
	"context"
	"strings"

	"github.com/mmdatafocus/freight_backend/models"
)

func (s *Service) CreateStation(ctx context.Context, input models.NewStation) (*models.Station, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	station := &models.Station{Name: strings.TrimSpace(input.Name), IsActive: true}
	err := s.run(ctx, "CreateStation", nil, func(ctx context.Context, tx txScope) error {
		return tx.store.CreateStation(ctx, station)
	})
	if err != nil {
		return nil, err
	}
	return station, nil
}

func (s *Service) CreateVehicle(ctx context.Context, input models.NewVehicle) (*models.Vehicle, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	vehicle := &models.Vehicle{
		RegistrationNo: strings.ToUpper(strings.TrimSpace(input.RegistrationNo)),
		Description:    input.Description,
	}
	err := s.run(ctx, "CreateVehicle", nil, func(ctx context.Context, tx txScope) error {
		return tx.store.CreateVehicle(ctx, vehicle)
	})
	if err != nil {
		return nil, err
	}
	return vehicle, nil
}

func (s *Service) CreateBookingParty(ctx context.Context, input models.NewBookingParty) (*models.BookingParty, error) {
	if err := input.Normalize(s.settings.DefaultPhoneRegion); err != nil {
		return nil, err
	}
	party := &models.BookingParty{
		PartyName:      input.PartyName,
		Phone:          input.Phone,
		PrimaryAddress: input.PrimaryAddress,
	}
	err := s.run(ctx, "CreateBookingParty", nil, func(ctx context.Context, tx txScope) error {
		return tx.store.CreateBookingParty(ctx, party)
	})
	if err != nil {
		return nil, err
	}
	return party, nil
}

// UpdateBookingParty saves the party and re-syncs its linked customer.
func (s *Service) UpdateBookingParty(ctx context.Context, id int, input models.NewBookingParty) (*models.BookingParty, error) {
	if err := input.Normalize(s.settings.DefaultPhoneRegion); err != nil {
		return nil, err
	}
	var party *models.BookingParty
	err := s.run(ctx, "UpdateBookingParty", nil, func(ctx context.Context, tx txScope) error {
		var err error
		if party, err = tx.store.GetBookingParty(ctx, id); err != nil {
			return err
		}
		party.PartyName = input.PartyName
		party.Phone = input.Phone
		party.PrimaryAddress = input.PrimaryAddress
		if err := tx.store.UpdateBookingParty(ctx, party); err != nil {
			return err
		}
		return tx.bridge.SyncBookingParty(ctx, party)
	})
	if err != nil {
		return nil, err
	}
	return party, nil
}

func (s *Service) CreateShippingVendor(ctx context.Context, input models.NewShippingVendor) (*models.ShippingVendor, error) {
	if err := input.Normalize(s.settings.DefaultPhoneRegion); err != nil {
		return nil, err
	}
	vendor := &models.ShippingVendor{
		VendorName:     input.VendorName,
		Phone:          input.Phone,
		PrimaryAddress: input.PrimaryAddress,
	}
	err := s.run(ctx, "CreateShippingVendor", nil, func(ctx context.Context, tx txScope) error {
		return tx.store.CreateShippingVendor(ctx, vendor)
	})
	if err != nil {
		return nil, err
	}
	return vendor, nil
}

func (s *Service) UpdateShippingVendor(ctx context.Context, id int, input models.NewShippingVendor) (*models.ShippingVendor, error) {
	if err := input.Normalize(s.settings.DefaultPhoneRegion); err != nil {
		return nil, err
	}
	var vendor *models.ShippingVendor
	err := s.run(ctx, "UpdateShippingVendor", nil, func(ctx context.Context, tx txScope) error {
		var err error
		if vendor, err = tx.store.GetShippingVendor(ctx, id); err != nil {
			return err
		}
		vendor.VendorName = input.VendorName
		vendor.Phone = input.Phone
		vendor.PrimaryAddress = input.PrimaryAddress
		if err := tx.store.UpdateShippingVendor(ctx, vendor); err != nil {
			return err
		}
		return tx.bridge.SyncShippingVendor(ctx, vendor)
	})
	if err != nil {
		return nil, err
	}
	return vendor, nil
}

// CreateCustomer links a booking party to a new customer of the accounting service.
func (s *Service) CreateCustomer(ctx context.Context, partyId int) (*models.BookingParty, error) {
	var party *models.BookingParty
	err := s.run(ctx, "CreateCustomer", nil, func(ctx context.Context, tx txScope) error {
		var err error
		party, err = tx.bridge.CreateCustomer(ctx, partyId)
		return err
	})
	if err != nil {
		return nil, err
	}
	return party, nil
}

func (s *Service) CreateSupplier(ctx context.Context, vendorId int) (*models.ShippingVendor, error) {
	var vendor *models.ShippingVendor
	err := s.run(ctx, "CreateSupplier", nil, func(ctx context.Context, tx txScope) error {
		var err error
		vendor, err = tx.bridge.CreateSupplier(ctx, vendorId)
		return err
	})
	if err != nil {
		return nil, err
	}
	return vendor, nil
}

// CreateChargeTemplate saves a charge template. Only one template may be the default.
func (s *Service) CreateChargeTemplate(ctx context.Context, input models.NewChargeTemplate) (*models.BookingOrderChargeTemplate, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	template := input.ChargeTemplate()
	err := s.run(ctx, "CreateChargeTemplate", []string{"lock:ChargeTemplate:default"}, func(ctx context.Context, tx txScope) error {
		if template.IsDefault {
			existing, err := tx.store.GetDefaultChargeTemplate(ctx)
			if err == nil {
				return models.NewConflictError("charge template %s is already the default", existing.Name)
			}
			if !isNotFound(err) {
				return err
			}
		}
		return tx.store.CreateChargeTemplate(ctx, template)
	})
	if err != nil {
		return nil, err
	}
	return template, nil
}
