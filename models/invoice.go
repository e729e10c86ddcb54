package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is a sales or purchase invoice kept by the accounting service.
type Invoice struct {
	ID                 int             `gorm:"primary_key" json:"id"`
	InvoiceNumber      string          `gorm:"size:64;not null;uniqueIndex" json:"invoice_number"`
	InvoiceType        InvoiceType     `gorm:"size:20;not null;index" json:"invoice_type"`
	DocStatus          DocStatus       `gorm:"not null;default:0;index" json:"docstatus"`
	PartyType          PartyType       `gorm:"size:20;not null" json:"party_type"`
	PartyRef           string          `gorm:"size:140;not null;index" json:"party"`
	PostingDate        time.Time       `gorm:"not null" json:"posting_date"`
	BookingOrderId     *int            `gorm:"index" json:"booking_order_id"`
	ShippingOrderId    *int            `gorm:"index" json:"shipping_order_id"`
	LoadingOperationId *int            `gorm:"index" json:"loading_operation_id"`
	IsFreightInvoice   bool            `gorm:"not null;default:false" json:"is_freight_invoice"`
	TaxesAndCharges    string          `gorm:"size:140" json:"taxes_and_charges"`
	NetTotal           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"net_total"`
	TaxAmount          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	GrandTotal         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"grand_total"`
	OutstandingAmount  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"outstanding_amount"`
	Account            string          `gorm:"size:140" json:"account"`
	Lines              []InvoiceLine   `gorm:"foreignKey:InvoiceId" json:"lines"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type InvoiceLine struct {
	ID                    int             `gorm:"primary_key" json:"id"`
	InvoiceId             int             `gorm:"index;not null" json:"invoice_id"`
	Idx                   int             `gorm:"not null;default:0" json:"idx"`
	ItemCode              string          `gorm:"size:140;not null" json:"item_code"`
	Description           string          `gorm:"size:255" json:"description"`
	IsFreight             bool            `gorm:"not null;default:false" json:"is_freight"`
	ChargeType            string          `gorm:"size:140" json:"charge_type"`
	BoChargeId            *int            `gorm:"index" json:"bo_charge_id"`
	BoDetailId            *int            `gorm:"index" json:"bo_detail_id"`
	LoadingOperationRowId *int            `gorm:"index" json:"loading_operation_row_id"`
	Qty                   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty"`
	Rate                  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"rate"`
	Amount                decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
}

// TaxTemplate is a named tax rate applied to the net total of an invoice.
type TaxTemplate struct {
	ID        int             `gorm:"primary_key" json:"id"`
	Name      string          `gorm:"size:140;not null;uniqueIndex" json:"name"`
	Rate      decimal.Decimal `gorm:"type:decimal(10,4);default:0" json:"rate"`
	Account   string          `gorm:"size:140" json:"account"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// SetTotals derives line amounts, net, tax and grand totals. taxRate is a percentage.
func (inv *Invoice) SetTotals(taxRate decimal.Decimal) {
	net := decimal.Zero
	for i := range inv.Lines {
		line := &inv.Lines[i]
		line.Idx = i + 1
		line.Amount = line.Qty.Mul(line.Rate).Round(2)
		net = net.Add(line.Amount)
	}
	inv.NetTotal = net
	inv.TaxAmount = net.Mul(taxRate).DivRound(decimal.NewFromInt(100), 2)
	inv.GrandTotal = net.Add(inv.TaxAmount)
	inv.OutstandingAmount = inv.GrandTotal
}

func (inv *Invoice) IsActive() bool {
	return inv.DocStatus == DocStatusSubmitted
}

// HasPayments reports whether any amount was settled against the invoice.
func (inv *Invoice) HasPayments() bool {
	return inv.OutstandingAmount.LessThan(inv.GrandTotal)
}

// InvoiceFilter selects invoices; zero values do not filter.
type InvoiceFilter struct {
	InvoiceType        InvoiceType
	PartyRef           string
	BookingOrderId     int
	ShippingOrderId    int
	LoadingOperationId int
	DocStatus          *DocStatus
	OnlyOutstanding    bool
}
