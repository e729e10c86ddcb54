package models

import (
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"
)

// LoadingOperation moves cargo onto and off a shipping order at a station as one unit of work.
type LoadingOperation struct {
	ID                int                   `gorm:"primary_key" json:"id"`
	OperationNumber   string                `gorm:"size:64;not null;uniqueIndex" json:"operation_number"`
	DocStatus         DocStatus             `gorm:"not null;default:0;index" json:"docstatus"`
	StationId         int                   `gorm:"index;not null" json:"station_id"`
	ShippingOrderId   int                   `gorm:"index;not null" json:"shipping_order_id"`
	PostingDatetime   time.Time             `gorm:"not null" json:"posting_datetime"`
	OnLoads           []LoadingOperationRow `gorm:"foreignKey:LoadingOperationId" json:"on_loads"`
	OffLoads          []LoadingOperationRow `gorm:"foreignKey:LoadingOperationId" json:"off_loads"`
	OnLoadPackages    decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"on_load_no_of_packages"`
	OnLoadWeight      decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"on_load_weight_actual"`
	OnLoadGoodsValue  decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"on_load_goods_value"`
	OffLoadPackages   decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"off_load_no_of_packages"`
	OffLoadWeight     decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"off_load_weight_actual"`
	OffLoadGoodsValue decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"off_load_goods_value"`
	CreatedAt         time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

// LoadingOperationRow is one freight detail moved by an operation.
// ParentField tells on_loads from off_loads; both share the table.
type LoadingOperationRow struct {
	ID                 int             `gorm:"primary_key" json:"id"`
	LoadingOperationId int             `gorm:"index;not null" json:"loading_operation_id"`
	ParentField        LoadSide        `gorm:"size:20;not null;index" json:"parentfield"`
	Idx                int             `gorm:"not null;default:0" json:"idx"`
	BookingOrderId     int             `gorm:"index;not null" json:"booking_order_id"`
	BoDetailId         int             `gorm:"index;not null" json:"bo_detail_id"`
	LoadingUnit        FreightBasis    `gorm:"size:20;not null" json:"loading_unit"`
	Qty                decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty"`
	Available          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"available"`
	NoOfPackages       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"no_of_packages"`
	WeightActual       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"weight_actual"`
	GoodsValue         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"goods_value"`
	AutoBillTo         *BillTo         `gorm:"size:20" json:"auto_bill_to"`
	SalesInvoiceId     *int            `gorm:"index" json:"sales_invoice_id"`
}

type NewLoadingOperation struct {
	StationId       int             `json:"station_id" validate:"required"`
	ShippingOrderId int             `json:"shipping_order_id" validate:"required"`
	PostingDatetime *time.Time      `json:"posting_datetime"`
	OnLoads         []NewLoadingRow `json:"on_loads" validate:"dive"`
	OffLoads        []NewLoadingRow `json:"off_loads" validate:"dive"`
}

type NewLoadingRow struct {
	BookingOrderId int             `json:"booking_order_id" validate:"required"`
	BoDetailId     int             `json:"bo_detail_id" validate:"required"`
	LoadingUnit    FreightBasis    `json:"loading_unit" validate:"required,oneof=Packages Weight"`
	Qty            decimal.Decimal `json:"qty"`
	AutoBillTo     *BillTo         `json:"auto_bill_to" validate:"omitempty,oneof=Consignor Consignee"`
}

func (input NewLoadingOperation) Validate() error {
	return validateInput(input)
}

func (input NewLoadingOperation) LoadingOperation(now time.Time) *LoadingOperation {
	posting := now
	if input.PostingDatetime != nil {
		posting = *input.PostingDatetime
	}
	op := &LoadingOperation{
		DocStatus:       DocStatusDraft,
		StationId:       input.StationId,
		ShippingOrderId: input.ShippingOrderId,
		PostingDatetime: posting,
	}
	for _, r := range input.OnLoads {
		op.OnLoads = append(op.OnLoads, r.row())
	}
	for _, r := range input.OffLoads {
		op.OffLoads = append(op.OffLoads, r.row())
	}
	op.Normalize()
	return op
}

func (r NewLoadingRow) row() LoadingOperationRow {
	return LoadingOperationRow{
		BookingOrderId: r.BookingOrderId,
		BoDetailId:     r.BoDetailId,
		LoadingUnit:    r.LoadingUnit,
		Qty:            r.Qty,
		AutoBillTo:     r.AutoBillTo,
	}
}

// Rows returns the rows of one side.
func (op *LoadingOperation) Rows(side LoadSide) []LoadingOperationRow {
	if side == LoadSideOffLoads {
		return op.OffLoads
	}
	return op.OnLoads
}

// Normalize stamps parent field and position on every row.
func (op *LoadingOperation) Normalize() {
	for i := range op.OnLoads {
		op.OnLoads[i].ParentField = LoadSideOnLoads
		op.OnLoads[i].Idx = i + 1
	}
	for i := range op.OffLoads {
		op.OffLoads[i].ParentField = LoadSideOffLoads
		op.OffLoads[i].Idx = i + 1
	}
}

// SetTotals aggregates packages, weight and goods value per side.
func (op *LoadingOperation) SetTotals() {
	op.OnLoadPackages, op.OnLoadWeight, op.OnLoadGoodsValue = sumRows(op.OnLoads)
	op.OffLoadPackages, op.OffLoadWeight, op.OffLoadGoodsValue = sumRows(op.OffLoads)
}

func sumRows(rows []LoadingOperationRow) (packages, weight, goodsValue decimal.Decimal) {
	for _, r := range rows {
		packages = packages.Add(r.NoOfPackages)
		weight = weight.Add(r.WeightActual)
		goodsValue = goodsValue.Add(r.GoodsValue)
	}
	return packages, weight, goodsValue
}

// ValidateRows checks row shape: at least one row, positive quantities, no duplicate
// details per side, and one auto_bill_to per booking order among on_loads.
func (op *LoadingOperation) ValidateRows() error {
	var result *multierror.Error
	if len(op.OnLoads) == 0 && len(op.OffLoads) == 0 {
		return NewValidationError("at least one on-load or off-load row is required")
	}
	for _, side := range []LoadSide{LoadSideOnLoads, LoadSideOffLoads} {
		seen := make(map[int]int)
		for _, r := range op.Rows(side) {
			if !r.LoadingUnit.IsValid() {
				result = multierror.Append(result, NewValidationError("%s row #%d: invalid loading unit %q", side, r.Idx, r.LoadingUnit))
			}
			if !r.Qty.IsPositive() {
				result = multierror.Append(result, NewValidationError("%s row #%d: qty must be greater than zero", side, r.Idx))
			}
			if r.AutoBillTo != nil && !r.AutoBillTo.IsValid() {
				result = multierror.Append(result, NewValidationError("%s row #%d: invalid auto_bill_to %q", side, r.Idx, *r.AutoBillTo))
			}
			if prev, ok := seen[r.BoDetailId]; ok {
				result = multierror.Append(result, NewValidationError("%s row #%d: freight detail %d already used in row #%d", side, r.Idx, r.BoDetailId, prev))
				continue
			}
			seen[r.BoDetailId] = r.Idx
		}
	}

	billTo := make(map[int]*BillTo)
	for _, r := range op.OnLoads {
		prev, ok := billTo[r.BookingOrderId]
		if !ok {
			billTo[r.BookingOrderId] = r.AutoBillTo
			continue
		}
		if !sameBillTo(prev, r.AutoBillTo) {
			result = multierror.Append(result, NewValidationError("on_loads row #%d: auto_bill_to differs from other rows of booking order %d", r.Idx, r.BookingOrderId))
		}
	}
	return result.ErrorOrNil()
}

func sameBillTo(a, b *BillTo) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Quantity returns the derived packages and weight of the row.
func (r LoadingOperationRow) Quantity() Quantity {
	return Quantity{Packages: r.NoOfPackages, Weight: r.WeightActual}
}

// LoadingOperationFilter selects loading operations; zero values do not filter.
type LoadingOperationFilter struct {
	ShippingOrderId int
	StationId       int
	BookingOrderId  int
	DocStatus       *DocStatus
	ExcludeId       int
}

// OperationLog is the "Operation" entry the submitted operation leaves on its shipping order's log.
func (op *LoadingOperation) OperationLog() *ShippingLog {
	stationId := op.StationId
	operationId := op.ID
	return &ShippingLog{
		ShippingOrderId:    op.ShippingOrderId,
		StationId:          &stationId,
		Activity:           ShippingLogActivityOperation,
		LoadingOperationId: &operationId,
		OnLoadPackages:     op.OnLoadPackages,
		OnLoadWeight:       op.OnLoadWeight,
		OffLoadPackages:    op.OffLoadPackages,
		OffLoadWeight:      op.OffLoadWeight,
		PostingDatetime:    op.PostingDatetime,
	}
}

// RowById finds a row of either side.
func (op *LoadingOperation) RowById(id int) (LoadingOperationRow, bool) {
	for _, rows := range [][]LoadingOperationRow{op.OnLoads, op.OffLoads} {
		for _, r := range rows {
			if r.ID == id {
				return r, true
			}
		}
	}
	return LoadingOperationRow{}, false
}

// BookingOrderIds lists the booking orders touched by either side, in row order.
func (op *LoadingOperation) BookingOrderIds() []int {
	var ids []int
	seen := make(map[int]bool)
	for _, rows := range [][]LoadingOperationRow{op.OffLoads, op.OnLoads} {
		for _, r := range rows {
			if !seen[r.BookingOrderId] {
				seen[r.BookingOrderId] = true
				ids = append(ids, r.BookingOrderId)
			}
		}
	}
	return ids
}
