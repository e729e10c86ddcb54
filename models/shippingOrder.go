package models

import (
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"
)

// ShippingOrder is one vehicle's journey through an itinerary of stations.
type ShippingOrder struct {
	ID               int                           `gorm:"primary_key" json:"id"`
	OrderNumber      string                        `gorm:"size:64;not null;uniqueIndex" json:"order_number"`
	DocStatus        DocStatus                     `gorm:"not null;default:0;index" json:"docstatus"`
	Status           ShippingOrderStatus           `gorm:"size:20;not null;index" json:"status"`
	VehicleId        int                           `gorm:"index;not null" json:"vehicle_id"`
	ShippingVendorId *int                          `gorm:"index" json:"shipping_vendor_id"`
	DriverName       string                        `gorm:"size:140" json:"driver_name"`
	InitialStationId int                           `gorm:"not null" json:"initial_station_id"`
	FinalStationId   int                           `gorm:"not null" json:"final_station_id"`
	CurrentStationId *int                          `json:"current_station_id"`
	NextStationId    *int                          `json:"next_station_id"`
	StartDatetime    *time.Time                    `json:"start_datetime"`
	EndDatetime      *time.Time                    `json:"end_datetime"`
	TransitStations  []ShippingOrderTransitStation `gorm:"foreignKey:ShippingOrderId" json:"transit_stations"`
	CreatedAt        time.Time                     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time                     `gorm:"autoUpdateTime" json:"updated_at"`
}

type ShippingOrderTransitStation struct {
	ID              int `gorm:"primary_key" json:"id"`
	ShippingOrderId int `gorm:"index;not null" json:"shipping_order_id"`
	Idx             int `gorm:"not null;default:0" json:"idx"`
	StationId       int `gorm:"not null" json:"station_id"`
}

// ShippingLog is the vehicle's own activity trail.
type ShippingLog struct {
	ID                 int                 `gorm:"primary_key" json:"id"`
	ShippingOrderId    int                 `gorm:"index;not null" json:"shipping_order_id"`
	StationId          *int                `gorm:"index" json:"station_id"`
	NextStationId      *int                `json:"next_station_id"`
	Activity           ShippingLogActivity `gorm:"size:20;not null" json:"activity"`
	LoadingOperationId *int                `gorm:"index" json:"loading_operation_id"`
	OnLoadPackages     decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"on_load_no_of_packages"`
	OnLoadWeight       decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"on_load_weight_actual"`
	OffLoadPackages    decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"off_load_no_of_packages"`
	OffLoadWeight      decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"off_load_weight_actual"`
	PostingDatetime    time.Time           `gorm:"not null;index" json:"posting_datetime"`
	CreatedAt          time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

type NewShippingOrder struct {
	VehicleId         int    `json:"vehicle_id" validate:"required"`
	ShippingVendorId  *int   `json:"shipping_vendor_id"`
	DriverName        string `json:"driver_name"`
	InitialStationId  int    `json:"initial_station_id" validate:"required"`
	FinalStationId    int    `json:"final_station_id" validate:"required,nefield=InitialStationId"`
	TransitStationIds []int  `json:"transit_station_ids" validate:"dive,required"`
}

func (input NewShippingOrder) Validate() error {
	return validateInput(input)
}

func (input NewShippingOrder) ShippingOrder() *ShippingOrder {
	so := &ShippingOrder{
		DocStatus:        DocStatusDraft,
		Status:           ShippingOrderStatusDraft,
		VehicleId:        input.VehicleId,
		ShippingVendorId: input.ShippingVendorId,
		DriverName:       input.DriverName,
		InitialStationId: input.InitialStationId,
		FinalStationId:   input.FinalStationId,
	}
	for i, stationId := range input.TransitStationIds {
		so.TransitStations = append(so.TransitStations, ShippingOrderTransitStation{Idx: i + 1, StationId: stationId})
	}
	return so
}

// ValidateItinerary checks that transit stations are unique and exclude the terminals.
func (so *ShippingOrder) ValidateItinerary() error {
	var result *multierror.Error
	if so.VehicleId == 0 {
		result = multierror.Append(result, NewValidationError("vehicle is required"))
	}
	if so.InitialStationId == 0 || so.FinalStationId == 0 {
		result = multierror.Append(result, NewValidationError("initial and final stations are required"))
	} else if so.InitialStationId == so.FinalStationId {
		result = multierror.Append(result, NewValidationError("initial and final stations must differ"))
	}
	seen := make(map[int]bool)
	for _, ts := range so.TransitStations {
		if ts.StationId == so.InitialStationId || ts.StationId == so.FinalStationId {
			result = multierror.Append(result, NewValidationError("transit station #%d cannot be the initial or final station", ts.Idx))
			continue
		}
		if seen[ts.StationId] {
			result = multierror.Append(result, NewValidationError("transit station #%d is a duplicate", ts.Idx))
			continue
		}
		seen[ts.StationId] = true
	}
	return result.ErrorOrNil()
}

// Itinerary lists every station of the journey in order.
func (so *ShippingOrder) Itinerary() []int {
	stations := []int{so.InitialStationId}
	for _, ts := range so.TransitStations {
		stations = append(stations, ts.StationId)
	}
	return append(stations, so.FinalStationId)
}

func (so *ShippingOrder) OnItinerary(stationId int) bool {
	for _, s := range so.Itinerary() {
		if s == stationId {
			return true
		}
	}
	return false
}

// IsStoppedAt reports whether the vehicle is standing at stationId.
func (so *ShippingOrder) IsStoppedAt(stationId int) bool {
	return so.DocStatus == DocStatusSubmitted &&
		so.Status == ShippingOrderStatusStopped &&
		so.CurrentStationId != nil && *so.CurrentStationId == stationId
}

// ShippingOrderSummary is the dashboard of a shipping order.
type ShippingOrderSummary struct {
	ShippingOrderId int           `json:"shipping_order_id"`
	OnLoad          Quantity      `json:"on_load"`
	OffLoad         Quantity      `json:"off_load"`
	Current         Quantity      `json:"current"`
	History         []ShippingLog `json:"history"`
}

// ManifestRow is one booking order currently onboard.
type ManifestRow struct {
	BookingOrderId       int             `json:"booking_order_id"`
	OrderNumber          string          `json:"order_number"`
	DestinationStationId int             `json:"destination_station_id"`
	ConsigneeId          int             `json:"consignee_id"`
	Onboard              Quantity        `json:"onboard"`
	GoodsValue           decimal.Decimal `json:"goods_value"`
}

// ShippingOrderFilter selects shipping orders; zero values do not filter.
type ShippingOrderFilter struct {
	VehicleId int
	Statuses  []ShippingOrderStatus
	DocStatus *DocStatus
	ExcludeId int
}

// ShippingLogFilter selects shipping log entries; zero values do not filter.
type ShippingLogFilter struct {
	ShippingOrderId    int
	LoadingOperationId int
	Activity           ShippingLogActivity
}
