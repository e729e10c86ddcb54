package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentEntry settles outstanding invoices of one party.
type PaymentEntry struct {
	ID          int                     `gorm:"primary_key" json:"id"`
	EntryNumber string                  `gorm:"size:64;not null;uniqueIndex" json:"entry_number"`
	DocStatus   DocStatus               `gorm:"not null;default:0;index" json:"docstatus"`
	PaymentType PaymentType             `gorm:"size:20;not null" json:"payment_type"`
	PartyType   PartyType               `gorm:"size:20;not null" json:"party_type"`
	PartyRef    string                  `gorm:"size:140;index" json:"party"`
	PostingDate time.Time               `gorm:"not null" json:"posting_date"`
	Account     string                  `gorm:"size:140;not null" json:"account"`
	PaidAmount  decimal.Decimal         `gorm:"type:decimal(20,4);default:0" json:"paid_amount"`
	ReferenceNo string                  `gorm:"size:140" json:"reference_no"`
	References  []PaymentEntryReference `gorm:"foreignKey:PaymentEntryId" json:"references"`
	CreatedAt   time.Time               `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time               `gorm:"autoUpdateTime" json:"updated_at"`
}

type PaymentEntryReference struct {
	ID                int             `gorm:"primary_key" json:"id"`
	PaymentEntryId    int             `gorm:"index;not null" json:"payment_entry_id"`
	InvoiceId         int             `gorm:"index;not null" json:"invoice_id"`
	OutstandingAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"outstanding_amount"`
	AllocatedAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"allocated_amount"`
}

// SetTotals sets the paid amount to the sum of allocations.
func (pe *PaymentEntry) SetTotals() {
	total := decimal.Zero
	for _, ref := range pe.References {
		total = total.Add(ref.AllocatedAmount)
	}
	pe.PaidAmount = total
}
