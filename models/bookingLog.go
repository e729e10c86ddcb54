package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BookingLog is one signed quantity movement of a booking order's cargo.
// Entries are inserted by their owning transaction and deleted only by its cancellation.
type BookingLog struct {
	ID                 int                `gorm:"primary_key" json:"id"`
	BookingOrderId     int                `gorm:"index;not null" json:"booking_order_id"`
	BoDetailId         *int               `gorm:"index" json:"bo_detail_id"`
	StationId          int                `gorm:"index;not null" json:"station_id"`
	ShippingOrderId    *int               `gorm:"index" json:"shipping_order_id"`
	LoadingOperationId *int               `gorm:"index" json:"loading_operation_id"`
	Activity           BookingLogActivity `gorm:"size:20;not null;index" json:"activity"`
	NoOfPackages       decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"no_of_packages"`
	WeightActual       decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"weight_actual"`
	LoadingUnit        *FreightBasis      `gorm:"size:20" json:"loading_unit"`
	PostingDatetime    time.Time          `gorm:"not null;index" json:"posting_datetime"`
	OwnerType          OwnerType          `gorm:"size:40;not null;index:idx_booking_log_owner,priority:1" json:"owner_type"`
	OwnerId            int                `gorm:"not null;index:idx_booking_log_owner,priority:2" json:"owner_id"`
	CreatedAt          time.Time          `gorm:"autoCreateTime" json:"created_at"`
}

var ErrBookingLogImmutable = errors.New("booking log entries are immutable")

func (l BookingLog) Quantity() Quantity {
	return Quantity{Packages: l.NoOfPackages, Weight: l.WeightActual}
}

// Validate enforces the sign convention of the activity.
func (l *BookingLog) Validate() error {
	if l.BookingOrderId == 0 || l.StationId == 0 {
		return NewValidationError("booking log requires a booking order and a station")
	}
	if l.OwnerType == "" || l.OwnerId == 0 {
		return NewValidationError("booking log requires an owning transaction")
	}
	sign := l.Activity.Sign()
	if sign == 0 {
		return NewValidationError("invalid booking log activity %q", l.Activity)
	}
	q := l.Quantity()
	if q.IsZero() {
		return NewValidationError("booking log quantity cannot be zero")
	}
	if (sign > 0 && q.IsNegative()) || (sign < 0 && q.IsPositive()) {
		return NewValidationError("booking log quantity sign does not match %s", l.Activity)
	}
	if l.Activity != BookingLogActivityBooked && l.LoadingUnit == nil {
		return NewValidationError("loading unit is required for %s entries", l.Activity)
	}
	if (l.Activity == BookingLogActivityLoaded || l.Activity == BookingLogActivityUnloaded) && l.ShippingOrderId == nil {
		return NewValidationError("shipping order is required for %s entries", l.Activity)
	}
	return nil
}

// BeforeUpdate keeps the ledger append-only.
func (l *BookingLog) BeforeUpdate(tx *gorm.DB) error {
	_ = tx
	return ErrBookingLogImmutable
}

// BeforeCreate rejects rows that break the sign convention.
func (l *BookingLog) BeforeCreate(tx *gorm.DB) error {
	_ = tx
	return l.Validate()
}

// BookingLogFilter selects ledger entries; zero values do not filter.
type BookingLogFilter struct {
	BookingOrderId     int
	BookingOrderIds    []int
	BoDetailId         int
	BoDetailIds        []int
	StationId          int
	ShippingOrderId    int
	LoadingOperationId int
	Activities         []BookingLogActivity
	Owner              *Owner
	ExcludeOwner       *Owner
}

// BookingLogGroupBy is the aggregation key of a ledger sum.
type BookingLogGroupBy string

const (
	GroupByDetail       BookingLogGroupBy = "detail"
	GroupByBookingOrder BookingLogGroupBy = "booking_order"
)

// BookingLogBalance is one group of a ledger aggregation.
type BookingLogBalance struct {
	BookingOrderId int             `json:"booking_order_id"`
	BoDetailId     int             `json:"bo_detail_id"`
	NoOfPackages   decimal.Decimal `json:"no_of_packages"`
	WeightActual   decimal.Decimal `json:"weight_actual"`
}

func (b BookingLogBalance) Quantity() Quantity {
	return Quantity{Packages: b.NoOfPackages, Weight: b.WeightActual}
}

// Owner identifies the transaction a ledger or shipping log entry belongs to.
type Owner struct {
	Type OwnerType `json:"owner_type"`
	Id   int       `json:"owner_id"`
}
