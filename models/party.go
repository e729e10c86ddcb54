package models

import (
	"strings"
	"time"

	"github.com/mmdatafocus/freight_backend/utils"
)

// BookingParty is a consignor or consignee, mirrored into the accounting service as a Customer.
type BookingParty struct {
	ID             int       `gorm:"primary_key" json:"id"`
	PartyName      string    `gorm:"size:140;not null;index" json:"party_name"`
	Phone          string    `gorm:"size:32" json:"phone"`
	PrimaryAddress string    `gorm:"type:text" json:"primary_address"`
	CustomerRef    *string   `gorm:"size:140;index" json:"customer"`
	Disabled       bool      `gorm:"not null;default:false" json:"disabled"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ShippingVendor operates vehicles, mirrored into the accounting service as a Supplier.
type ShippingVendor struct {
	ID             int       `gorm:"primary_key" json:"id"`
	VendorName     string    `gorm:"size:140;not null;index" json:"vendor_name"`
	Phone          string    `gorm:"size:32" json:"phone"`
	PrimaryAddress string    `gorm:"type:text" json:"primary_address"`
	SupplierRef    *string   `gorm:"size:140;index" json:"supplier"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBookingParty struct {
	PartyName      string `json:"party_name" validate:"required"`
	Phone          string `json:"phone"`
	PrimaryAddress string `json:"primary_address"`
}

type NewShippingVendor struct {
	VendorName     string `json:"vendor_name" validate:"required"`
	Phone          string `json:"phone"`
	PrimaryAddress string `json:"primary_address"`
}

// Normalize validates the input and rewrites the phone number in E.164.
func (input *NewBookingParty) Normalize(phoneRegion string) error {
	input.PartyName = strings.TrimSpace(input.PartyName)
	if err := validateInput(input); err != nil {
		return err
	}
	phone, err := utils.NormalizePhone(input.Phone, phoneRegion)
	if err != nil {
		return NewValidationError("%s", err.Error())
	}
	input.Phone = phone
	return nil
}

func (input *NewShippingVendor) Normalize(phoneRegion string) error {
	input.VendorName = strings.TrimSpace(input.VendorName)
	if err := validateInput(input); err != nil {
		return err
	}
	phone, err := utils.NormalizePhone(input.Phone, phoneRegion)
	if err != nil {
		return NewValidationError("%s", err.Error())
	}
	input.Phone = phone
	return nil
}

// AccountingParty is the name/address payload mirrored onto a Customer or Supplier.
type AccountingParty struct {
	Type           PartyType `json:"party_type"`
	Ref            string    `json:"ref"`
	Name           string    `json:"name"`
	Group          string    `json:"group"`
	PrimaryAddress string    `json:"primary_address"`
	Phone          string    `json:"phone"`
}

func (p BookingParty) AccountingParty(group string) AccountingParty {
	return AccountingParty{
		Type:           PartyTypeCustomer,
		Ref:            utils.DereferencePtr(p.CustomerRef),
		Name:           p.PartyName,
		Group:          group,
		PrimaryAddress: p.PrimaryAddress,
		Phone:          p.Phone,
	}
}

func (v ShippingVendor) AccountingParty(group string) AccountingParty {
	return AccountingParty{
		Type:           PartyTypeSupplier,
		Ref:            utils.DereferencePtr(v.SupplierRef),
		Name:           v.VendorName,
		Group:          group,
		PrimaryAddress: v.PrimaryAddress,
	}
}

// AccountingPartyRecord is the Customer or Supplier kept by the local books.
type AccountingPartyRecord struct {
	ID             int       `gorm:"primary_key" json:"id"`
	Type           PartyType `gorm:"size:20;not null;index" json:"party_type"`
	Ref            string    `gorm:"size:140;not null;uniqueIndex" json:"ref"`
	Name           string    `gorm:"size:140;not null" json:"name"`
	Group          string    `gorm:"size:140" json:"group"`
	PrimaryAddress string    `gorm:"type:text" json:"primary_address"`
	Phone          string    `gorm:"size:32" json:"phone"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AccountingPartyRecord) TableName() string {
	return "accounting_parties"
}
