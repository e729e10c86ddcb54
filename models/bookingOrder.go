package models

import (
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"
)

// BookingOrder is a contract to move cargo from a source to a destination station.
type BookingOrder struct {
	ID                   int                         `gorm:"primary_key" json:"id"`
	OrderNumber          string                      `gorm:"size:64;not null;uniqueIndex" json:"order_number"`
	DocStatus            DocStatus                   `gorm:"not null;default:0;index" json:"docstatus"`
	Status               BookingOrderStatus          `gorm:"size:20;not null;index" json:"status"`
	PaymentStatus        PaymentStatus               `gorm:"size:20;index" json:"payment_status"`
	BookingDatetime      time.Time                   `gorm:"not null" json:"booking_datetime"`
	SourceStationId      int                         `gorm:"index;not null" json:"source_station_id"`
	DestinationStationId int                         `gorm:"index;not null" json:"destination_station_id"`
	ConsignorId          int                         `gorm:"index;not null" json:"consignor_id"`
	ConsigneeId          int                         `gorm:"index;not null" json:"consignee_id"`
	AutoBillTo           *BillTo                     `gorm:"size:20" json:"auto_bill_to"`
	ChargeTemplateId     *int                        `json:"charge_template_id"`
	TaxesAndCharges      string                      `gorm:"size:140" json:"taxes_and_charges"`
	CurrentStationId     *int                        `gorm:"index" json:"current_station_id"`
	LastShippingOrderId  *int                        `gorm:"index" json:"last_shipping_order_id"`
	GoodsValue           decimal.Decimal             `gorm:"type:decimal(20,4);default:0" json:"goods_value"`
	FreightTotal         decimal.Decimal             `gorm:"type:decimal(20,4);default:0" json:"freight_total"`
	ChargeTotal          decimal.Decimal             `gorm:"type:decimal(20,4);default:0" json:"charge_total"`
	TotalAmount          decimal.Decimal             `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	Remarks              string                      `gorm:"type:text" json:"remarks"`
	Freight              []BookingOrderFreightDetail `gorm:"foreignKey:BookingOrderId" json:"freight"`
	Charges              []BookingOrderCharge        `gorm:"foreignKey:BookingOrderId" json:"charges"`
	CreatedAt            time.Time                   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
}

// BookingOrderFreightDetail is one billable quantity line of a booking order.
// Qty is the declared quantity in the row's basis.
type BookingOrderFreightDetail struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BookingOrderId  int             `gorm:"index;not null" json:"booking_order_id"`
	Idx             int             `gorm:"not null;default:0" json:"idx"`
	BasedOn         FreightBasis    `gorm:"size:20;not null" json:"based_on"`
	ItemDescription string          `gorm:"size:255" json:"item_description"`
	NoOfPackages    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"no_of_packages"`
	WeightActual    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"weight_actual"`
	Qty             decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty"`
	Rate            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"rate"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	InvoicedQty     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"invoiced_qty"`
	InvoicedAmount  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"invoiced_amount"`
}

type BookingOrderCharge struct {
	ID             int             `gorm:"primary_key" json:"id"`
	BookingOrderId int             `gorm:"index;not null" json:"booking_order_id"`
	Idx            int             `gorm:"not null;default:0" json:"idx"`
	ChargeType     string          `gorm:"size:140;not null" json:"charge_type"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	InvoicedAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"invoiced_amount"`
}

type NewBookingOrder struct {
	BookingDatetime      *time.Time         `json:"booking_datetime"`
	SourceStationId      int                `json:"source_station_id" validate:"required"`
	DestinationStationId int                `json:"destination_station_id" validate:"required,nefield=SourceStationId"`
	ConsignorId          int                `json:"consignor_id" validate:"required"`
	ConsigneeId          int                `json:"consignee_id" validate:"required"`
	AutoBillTo           *BillTo            `json:"auto_bill_to" validate:"omitempty,oneof=Consignor Consignee"`
	ChargeTemplateId     *int               `json:"charge_template_id"`
	TaxesAndCharges      string             `json:"taxes_and_charges"`
	GoodsValue           decimal.Decimal    `json:"goods_value"`
	Remarks              string             `json:"remarks"`
	Freight              []NewFreightDetail `json:"freight" validate:"dive"`
	Charges              []NewCharge        `json:"charges" validate:"dive"`
}

type NewFreightDetail struct {
	BasedOn         FreightBasis    `json:"based_on" validate:"required,oneof=Packages Weight"`
	ItemDescription string          `json:"item_description"`
	NoOfPackages    decimal.Decimal `json:"no_of_packages"`
	WeightActual    decimal.Decimal `json:"weight_actual"`
	Rate            decimal.Decimal `json:"rate"`
}

type NewCharge struct {
	ChargeType string          `json:"charge_type" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
}

func (input NewBookingOrder) Validate() error {
	return validateInput(input)
}

// BookingOrder builds a draft from the input; totals are set.
func (input NewBookingOrder) BookingOrder(now time.Time) *BookingOrder {
	bookingTime := now
	if input.BookingDatetime != nil {
		bookingTime = *input.BookingDatetime
	}
	bo := &BookingOrder{
		DocStatus:            DocStatusDraft,
		Status:               BookingOrderStatusDraft,
		BookingDatetime:      bookingTime,
		SourceStationId:      input.SourceStationId,
		DestinationStationId: input.DestinationStationId,
		ConsignorId:          input.ConsignorId,
		ConsigneeId:          input.ConsigneeId,
		AutoBillTo:           input.AutoBillTo,
		ChargeTemplateId:     input.ChargeTemplateId,
		TaxesAndCharges:      input.TaxesAndCharges,
		GoodsValue:           input.GoodsValue,
		Remarks:              input.Remarks,
	}
	for i, f := range input.Freight {
		bo.Freight = append(bo.Freight, BookingOrderFreightDetail{
			Idx:             i + 1,
			BasedOn:         f.BasedOn,
			ItemDescription: f.ItemDescription,
			NoOfPackages:    f.NoOfPackages,
			WeightActual:    f.WeightActual,
			Rate:            f.Rate,
		})
	}
	for i, c := range input.Charges {
		bo.Charges = append(bo.Charges, BookingOrderCharge{
			Idx:        i + 1,
			ChargeType: c.ChargeType,
			Amount:     c.Amount,
		})
	}
	bo.SetTotals()
	return bo
}

// SetTotals derives row quantities and amounts and the order totals.
// Call it before every persist.
func (bo *BookingOrder) SetTotals() {
	freightTotal := decimal.Zero
	for i := range bo.Freight {
		row := &bo.Freight[i]
		row.Qty = row.Declared().In(row.BasedOn)
		row.Amount = row.Qty.Mul(row.Rate).Round(2)
		freightTotal = freightTotal.Add(row.Amount)
	}
	chargeTotal := decimal.Zero
	for _, c := range bo.Charges {
		chargeTotal = chargeTotal.Add(c.Amount)
	}
	bo.FreightTotal = freightTotal
	bo.ChargeTotal = chargeTotal
	bo.TotalAmount = freightTotal.Add(chargeTotal)
}

// ValidateForSubmit reports every inconsistency of the freight and charge rows together.
func (bo *BookingOrder) ValidateForSubmit() error {
	var result *multierror.Error
	if bo.SourceStationId == 0 || bo.DestinationStationId == 0 {
		result = multierror.Append(result, NewValidationError("source and destination stations are required"))
	} else if bo.SourceStationId == bo.DestinationStationId {
		result = multierror.Append(result, NewValidationError("source and destination stations must differ"))
	}
	if bo.ConsignorId == 0 || bo.ConsigneeId == 0 {
		result = multierror.Append(result, NewValidationError("consignor and consignee are required"))
	}
	if bo.AutoBillTo != nil && !bo.AutoBillTo.IsValid() {
		result = multierror.Append(result, NewValidationError("invalid auto_bill_to %q", *bo.AutoBillTo))
	}
	if len(bo.Freight) == 0 {
		result = multierror.Append(result, NewValidationError("at least one freight row is required"))
	}
	for _, row := range bo.Freight {
		if err := row.Validate(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for _, c := range bo.Charges {
		if c.ChargeType == "" {
			result = multierror.Append(result, NewValidationError("charge row #%d: charge type is required", c.Idx))
		}
		if c.Amount.IsNegative() {
			result = multierror.Append(result, NewValidationError("charge row #%d: amount cannot be negative", c.Idx))
		}
	}
	if result == nil && !bo.TotalAmount.IsPositive() {
		result = multierror.Append(result, NewValidationError("total amount must be greater than zero"))
	}
	return result.ErrorOrNil()
}

// CanCancel allows cancellation only before any loading and while unpaid.
func (bo *BookingOrder) CanCancel() error {
	if bo.DocStatus == DocStatusCancelled {
		return ErrAlreadyCancelled
	}
	if bo.DocStatus != DocStatusSubmitted {
		return ErrNotSubmitted
	}
	if bo.PaymentStatus == PaymentStatusPaid {
		return NewConflictError("booking order %s is already paid", bo.OrderNumber)
	}
	switch bo.Status {
	case BookingOrderStatusBooked:
		return nil
	case BookingOrderStatusCollected:
		return NewConflictError("booking order %s is already collected", bo.OrderNumber)
	}
	return NewConflictError("booking order %s is %s", bo.OrderNumber, bo.Status)
}

func (bo *BookingOrder) FreightRow(detailId int) (*BookingOrderFreightDetail, bool) {
	for i := range bo.Freight {
		if bo.Freight[i].ID == detailId {
			return &bo.Freight[i], true
		}
	}
	return nil, false
}

func (bo *BookingOrder) ChargeRow(chargeId int) (*BookingOrderCharge, bool) {
	for i := range bo.Charges {
		if bo.Charges[i].ID == chargeId {
			return &bo.Charges[i], true
		}
	}
	return nil, false
}

// BillToParty returns the booking party billed for the given side.
func (bo *BookingOrder) BillToParty(billTo BillTo) int {
	if billTo == BillToConsignee {
		return bo.ConsigneeId
	}
	return bo.ConsignorId
}

// DeclaredTotal sums the declared packages and weight of every freight row.
func (bo *BookingOrder) DeclaredTotal() Quantity {
	total := Quantity{}
	for _, row := range bo.Freight {
		total = total.Add(row.Declared())
	}
	return total
}

// IsFullyCollected reports whether every row's collected quantity reached its declared quantity.
func (bo *BookingOrder) IsFullyCollected(collected map[int]Quantity) bool {
	if len(bo.Freight) == 0 {
		return false
	}
	for _, row := range bo.Freight {
		got := collected[row.ID].In(row.BasedOn)
		if got.Round(3).LessThan(row.Qty.Round(3)) {
			return false
		}
	}
	return true
}

func (d BookingOrderFreightDetail) Declared() Quantity {
	return Quantity{Packages: d.NoOfPackages, Weight: d.WeightActual}
}

func (d BookingOrderFreightDetail) Validate() error {
	if !d.BasedOn.IsValid() {
		return NewValidationError("freight row #%d: invalid basis %q", d.Idx, d.BasedOn)
	}
	if d.NoOfPackages.IsNegative() || d.WeightActual.IsNegative() {
		return NewValidationError("freight row #%d: quantities cannot be negative", d.Idx)
	}
	if d.Rate.IsNegative() {
		return NewValidationError("freight row #%d: rate cannot be negative", d.Idx)
	}
	switch d.BasedOn {
	case FreightBasisPackages:
		if !d.NoOfPackages.IsPositive() {
			return NewValidationError("freight row #%d: no of packages is required for Packages basis", d.Idx)
		}
	case FreightBasisWeight:
		if !d.WeightActual.IsPositive() {
			return NewValidationError("freight row #%d: weight is required for Weight basis", d.Idx)
		}
	}
	return nil
}

// ConversionFactor is qty divided by the row's declared quantity in unit.
func (d BookingOrderFreightDetail) ConversionFactor(unit FreightBasis, qty decimal.Decimal) (decimal.Decimal, error) {
	if !unit.IsValid() {
		return decimal.Zero, NewInvalidConversionError("unknown loading unit %q", unit)
	}
	declared := d.Declared().In(unit)
	if declared.IsZero() {
		return decimal.Zero, NewInvalidConversionError("freight row #%d has no declared %s to convert from", d.Idx, unit)
	}
	return qty.Div(declared), nil
}

// Convert expresses qty in unit as packages and weight, scaling both declared
// measures by the conversion factor. The requested measure is kept exact.
func (d BookingOrderFreightDetail) Convert(unit FreightBasis, qty decimal.Decimal) (Quantity, error) {
	factor, err := d.ConversionFactor(unit, qty)
	if err != nil {
		return Quantity{}, err
	}
	q := Quantity{
		Packages: d.NoOfPackages.Mul(factor),
		Weight:   d.WeightActual.Mul(factor),
	}.Round()
	if unit == FreightBasisWeight {
		q.Weight = qty
	} else {
		q.Packages = qty
	}
	return q, nil
}

// BookingOrderFilter selects booking orders; zero values do not filter.
type BookingOrderFilter struct {
	Ids                  []int
	PartyId              int
	DocStatus            *DocStatus
	Statuses             []BookingOrderStatus
	LastShippingOrderId  int
	ExcludePaymentStatus PaymentStatus
}

// NewDelivery hands over cargo of one freight detail at the destination station.
type NewDelivery struct {
	BookingOrderId  int             `json:"booking_order_id" validate:"required"`
	BoDetailId      int             `json:"bo_detail_id" validate:"required"`
	Qty             decimal.Decimal `json:"qty"`
	Unit            FreightBasis    `json:"unit" validate:"required,oneof=Packages Weight"`
	PostingDatetime *time.Time      `json:"posting_datetime"`
}

func (input NewDelivery) Validate() error {
	return validateInput(input)
}
