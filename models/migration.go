package models

import "gorm.io/gorm"

// AllModels lists every table owned by the service.
func AllModels() []any {
	return []any{
		&Station{}, &Vehicle{},
		&BookingParty{}, &ShippingVendor{},
		&BookingOrderChargeTemplate{}, &BookingOrderChargeTemplateRow{},
		&BookingOrder{}, &BookingOrderFreightDetail{}, &BookingOrderCharge{},
		&BookingLog{},
		&ShippingOrder{}, &ShippingOrderTransitStation{}, &ShippingLog{},
		&LoadingOperation{}, &LoadingOperationRow{},
		&Invoice{}, &InvoiceLine{}, &TaxTemplate{},
		&PaymentEntry{}, &PaymentEntryReference{},
		&AccountingPartyRecord{},
		&NamingSeries{},
		&PubSubMessageRecord{}, &IdempotencyKey{},
	}
}

func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
