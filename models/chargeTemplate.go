package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingOrderChargeTemplate is a reusable set of charges; at most one is the default.
type BookingOrderChargeTemplate struct {
	ID        int                             `gorm:"primary_key" json:"id"`
	Name      string                          `gorm:"size:140;not null;uniqueIndex" json:"name"`
	IsDefault bool                            `gorm:"not null;default:false;index" json:"is_default"`
	Charges   []BookingOrderChargeTemplateRow `gorm:"foreignKey:TemplateId" json:"charges"`
	CreatedAt time.Time                       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time                       `gorm:"autoUpdateTime" json:"updated_at"`
}

type BookingOrderChargeTemplateRow struct {
	ID         int             `gorm:"primary_key" json:"id"`
	TemplateId int             `gorm:"index;not null" json:"template_id"`
	Idx        int             `gorm:"not null;default:0" json:"idx"`
	ChargeType string          `gorm:"size:140;not null" json:"charge_type"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
}

type NewChargeTemplate struct {
	Name      string      `json:"name" validate:"required"`
	IsDefault bool        `json:"is_default"`
	Charges   []NewCharge `json:"charges" validate:"required,min=1,dive"`
}

func (input NewChargeTemplate) Validate() error {
	return validateInput(input)
}

func (input NewChargeTemplate) ChargeTemplate() *BookingOrderChargeTemplate {
	t := &BookingOrderChargeTemplate{Name: input.Name, IsDefault: input.IsDefault}
	for i, c := range input.Charges {
		t.Charges = append(t.Charges, BookingOrderChargeTemplateRow{Idx: i + 1, ChargeType: c.ChargeType, Amount: c.Amount})
	}
	return t
}

// BookingOrderCharges copies the template rows onto a booking order.
func (t *BookingOrderChargeTemplate) BookingOrderCharges() []BookingOrderCharge {
	charges := make([]BookingOrderCharge, 0, len(t.Charges))
	for i, c := range t.Charges {
		charges = append(charges, BookingOrderCharge{Idx: i + 1, ChargeType: c.ChargeType, Amount: c.Amount})
	}
	return charges
}
