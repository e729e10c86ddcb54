package mysql

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/freight_backend/models"
	"gorm.io/gorm"
)

func bookingLogScope(f models.BookingLogFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.BookingOrderId != 0 {
			db = db.Where("booking_order_id = ?", f.BookingOrderId)
		}
		if len(f.BookingOrderIds) > 0 {
			db = db.Where("booking_order_id IN ?", f.BookingOrderIds)
		}
		if f.BoDetailId != 0 {
			db = db.Where("bo_detail_id = ?", f.BoDetailId)
		}
		if len(f.BoDetailIds) > 0 {
			db = db.Where("bo_detail_id IN ?", f.BoDetailIds)
		}
		if f.StationId != 0 {
			db = db.Where("station_id = ?", f.StationId)
		}
		if f.ShippingOrderId != 0 {
			db = db.Where("shipping_order_id = ?", f.ShippingOrderId)
		}
		if f.LoadingOperationId != 0 {
			db = db.Where("loading_operation_id = ?", f.LoadingOperationId)
		}
		if len(f.Activities) > 0 {
			db = db.Where("activity IN ?", f.Activities)
		}
		if f.Owner != nil {
			db = db.Where("owner_type = ? AND owner_id = ?", f.Owner.Type, f.Owner.Id)
		}
		if f.ExcludeOwner != nil {
			db = db.Where("NOT (owner_type = ? AND owner_id = ?)", f.ExcludeOwner.Type, f.ExcludeOwner.Id)
		}
		return db
	}
}

// InsertBookingLogs relies on the BeforeCreate hook of BookingLog for sign validation.
func (s *Store) InsertBookingLogs(ctx context.Context, logs []*models.BookingLog) error {
	if len(logs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&logs).Error
}

func (s *Store) DeleteBookingLogs(ctx context.Context, owner models.Owner, detailIds ...int) (int64, error) {
	db := s.db.WithContext(ctx).Where("owner_type = ? AND owner_id = ?", owner.Type, owner.Id)
	if len(detailIds) > 0 {
		db = db.Where("bo_detail_id IN ?", detailIds)
	}
	res := db.Delete(&models.BookingLog{})
	return res.RowsAffected, res.Error
}

func (s *Store) FindBookingLogs(ctx context.Context, filter models.BookingLogFilter) ([]models.BookingLog, error) {
	var logs []models.BookingLog
	err := s.db.WithContext(ctx).Scopes(bookingLogScope(filter)).Order("posting_datetime, id").Find(&logs).Error
	return logs, err
}

// SumBookingLogs aggregates signed quantities; nothing is cached between calls.
func (s *Store) SumBookingLogs(ctx context.Context, filter models.BookingLogFilter, groupBy models.BookingLogGroupBy) ([]models.BookingLogBalance, error) {
	var selectSQL, groupSQL string
	switch groupBy {
	case models.GroupByDetail:
		selectSQL = "booking_order_id, COALESCE(bo_detail_id, 0) AS bo_detail_id"
		groupSQL = "booking_order_id, bo_detail_id"
	case models.GroupByBookingOrder:
		selectSQL = "booking_order_id, 0 AS bo_detail_id"
		groupSQL = "booking_order_id"
	default:
		return nil, fmt.Errorf("unsupported booking log grouping %q", groupBy)
	}

	var balances []models.BookingLogBalance
	err := s.db.WithContext(ctx).
		Model(&models.BookingLog{}).
		Scopes(bookingLogScope(filter)).
		Select(selectSQL + ", SUM(no_of_packages) AS no_of_packages, SUM(weight_actual) AS weight_actual").
		Group(groupSQL).
		Order(groupSQL).
		Scan(&balances).Error
	return balances, err
}
