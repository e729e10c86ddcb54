package mysql

import (
	"context"
	"strconv"
	"time"

	"github.com/mmdatafocus/freight_backend/config"
	"github.com/mmdatafocus/freight_backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Master data

func (s *Store) CreateStation(ctx context.Context, station *models.Station) error {
	err := s.db.WithContext(ctx).Create(station).Error
	return duplicateAsConflict(err, "station %q already exists", station.Name)
}

const stationCacheTTL = time.Hour

// GetStation reads through the Redis cache; stations are never edited once created.
func (s *Store) GetStation(ctx context.Context, id int) (*models.Station, error) {
	var station models.Station
	key := "Station:" + strconv.Itoa(id)
	if ok, err := config.GetRedisObject(ctx, key, &station); err == nil && ok {
		return &station, nil
	}
	if err := s.db.WithContext(ctx).First(&station, id).Error; err != nil {
		return nil, notFound(err, "Station", id)
	}
	_ = config.SetRedisObject(ctx, key, station, stationCacheTTL)
	return &station, nil
}

func (s *Store) CreateVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	err := s.db.WithContext(ctx).Create(vehicle).Error
	return duplicateAsConflict(err, "vehicle %q already exists", vehicle.RegistrationNo)
}

func (s *Store) GetVehicle(ctx context.Context, id int) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	if err := s.db.WithContext(ctx).First(&vehicle, id).Error; err != nil {
		return nil, notFound(err, "Vehicle", id)
	}
	return &vehicle, nil
}

func (s *Store) CreateBookingParty(ctx context.Context, party *models.BookingParty) error {
	return s.db.WithContext(ctx).Create(party).Error
}

func (s *Store) GetBookingParty(ctx context.Context, id int) (*models.BookingParty, error) {
	var party models.BookingParty
	if err := s.db.WithContext(ctx).First(&party, id).Error; err != nil {
		return nil, notFound(err, "Booking Party", id)
	}
	return &party, nil
}

func (s *Store) UpdateBookingParty(ctx context.Context, party *models.BookingParty) error {
	return s.db.WithContext(ctx).Save(party).Error
}

func (s *Store) CreateShippingVendor(ctx context.Context, vendor *models.ShippingVendor) error {
	return s.db.WithContext(ctx).Create(vendor).Error
}

func (s *Store) GetShippingVendor(ctx context.Context, id int) (*models.ShippingVendor, error) {
	var vendor models.ShippingVendor
	if err := s.db.WithContext(ctx).First(&vendor, id).Error; err != nil {
		return nil, notFound(err, "Shipping Vendor", id)
	}
	return &vendor, nil
}

func (s *Store) UpdateShippingVendor(ctx context.Context, vendor *models.ShippingVendor) error {
	return s.db.WithContext(ctx).Save(vendor).Error
}

func (s *Store) CreateChargeTemplate(ctx context.Context, template *models.BookingOrderChargeTemplate) error {
	err := s.db.WithContext(ctx).Create(template).Error
	return duplicateAsConflict(err, "charge template %q already exists", template.Name)
}

func (s *Store) GetChargeTemplate(ctx context.Context, id int) (*models.BookingOrderChargeTemplate, error) {
	var template models.BookingOrderChargeTemplate
	if err := s.db.WithContext(ctx).Preload("Charges", orderByIdx).First(&template, id).Error; err != nil {
		return nil, notFound(err, "Booking Order Charge Template", id)
	}
	return &template, nil
}

func (s *Store) GetDefaultChargeTemplate(ctx context.Context) (*models.BookingOrderChargeTemplate, error) {
	var template models.BookingOrderChargeTemplate
	if err := s.db.WithContext(ctx).Preload("Charges", orderByIdx).
		Where("is_default = ?", true).Order("id").First(&template).Error; err != nil {
		return nil, notFound(err, "Booking Order Charge Template", "default")
	}
	return &template, nil
}

// Booking orders

func (s *Store) CreateBookingOrder(ctx context.Context, bo *models.BookingOrder) error {
	return s.db.WithContext(ctx).Create(bo).Error
}

func (s *Store) GetBookingOrder(ctx context.Context, id int, forUpdate bool) (*models.BookingOrder, error) {
	var bo models.BookingOrder
	if err := s.conn(ctx, forUpdate).
		Preload("Freight", orderByIdx).
		Preload("Charges", orderByIdx).
		First(&bo, id).Error; err != nil {
		return nil, notFound(err, "Booking Order", id)
	}
	return &bo, nil
}

func (s *Store) UpdateBookingOrder(ctx context.Context, bo *models.BookingOrder) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(bo).Error; err != nil {
			return err
		}
		for i := range bo.Freight {
			bo.Freight[i].BookingOrderId = bo.ID
			if err := tx.Save(&bo.Freight[i]).Error; err != nil {
				return err
			}
		}
		for i := range bo.Charges {
			bo.Charges[i].BookingOrderId = bo.ID
			if err := tx.Save(&bo.Charges[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListBookingOrders(ctx context.Context, filter models.BookingOrderFilter) ([]*models.BookingOrder, error) {
	db := s.db.WithContext(ctx)
	if len(filter.Ids) > 0 {
		db = db.Where("id IN ?", filter.Ids)
	}
	if filter.PartyId != 0 {
		db = db.Where("(consignor_id = ? OR consignee_id = ?)", filter.PartyId, filter.PartyId)
	}
	if filter.DocStatus != nil {
		db = db.Where("doc_status = ?", *filter.DocStatus)
	}
	if len(filter.Statuses) > 0 {
		db = db.Where("status IN ?", filter.Statuses)
	}
	if filter.LastShippingOrderId != 0 {
		db = db.Where("last_shipping_order_id = ?", filter.LastShippingOrderId)
	}
	if filter.ExcludePaymentStatus != "" {
		db = db.Where("payment_status <> ?", filter.ExcludePaymentStatus)
	}
	var results []*models.BookingOrder
	err := db.Preload("Freight", orderByIdx).Preload("Charges", orderByIdx).Order("id").Find(&results).Error
	return results, err
}

// Shipping orders

func (s *Store) CreateShippingOrder(ctx context.Context, so *models.ShippingOrder) error {
	return s.db.WithContext(ctx).Create(so).Error
}

func (s *Store) GetShippingOrder(ctx context.Context, id int, forUpdate bool) (*models.ShippingOrder, error) {
	var so models.ShippingOrder
	if err := s.conn(ctx, forUpdate).Preload("TransitStations", orderByIdx).First(&so, id).Error; err != nil {
		return nil, notFound(err, "Shipping Order", id)
	}
	return &so, nil
}

func (s *Store) UpdateShippingOrder(ctx context.Context, so *models.ShippingOrder) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Save(so).Error
}

func (s *Store) ListShippingOrders(ctx context.Context, filter models.ShippingOrderFilter) ([]*models.ShippingOrder, error) {
	db := s.db.WithContext(ctx)
	if filter.VehicleId != 0 {
		db = db.Where("vehicle_id = ?", filter.VehicleId)
	}
	if len(filter.Statuses) > 0 {
		db = db.Where("status IN ?", filter.Statuses)
	}
	if filter.DocStatus != nil {
		db = db.Where("doc_status = ?", *filter.DocStatus)
	}
	if filter.ExcludeId != 0 {
		db = db.Where("id <> ?", filter.ExcludeId)
	}
	var results []*models.ShippingOrder
	err := db.Preload("TransitStations", orderByIdx).Order("id").Find(&results).Error
	return results, err
}

func (s *Store) InsertShippingLog(ctx context.Context, log *models.ShippingLog) error {
	return s.db.WithContext(ctx).Create(log).Error
}

func (s *Store) FindShippingLogs(ctx context.Context, filter models.ShippingLogFilter) ([]models.ShippingLog, error) {
	db := s.db.WithContext(ctx)
	if filter.ShippingOrderId != 0 {
		db = db.Where("shipping_order_id = ?", filter.ShippingOrderId)
	}
	if filter.LoadingOperationId != 0 {
		db = db.Where("loading_operation_id = ?", filter.LoadingOperationId)
	}
	if filter.Activity != "" {
		db = db.Where("activity = ?", filter.Activity)
	}
	var results []models.ShippingLog
	err := db.Order("posting_datetime, id").Find(&results).Error
	return results, err
}

func (s *Store) DeleteShippingLogs(ctx context.Context, loadingOperationId int) (int64, error) {
	res := s.db.WithContext(ctx).Where("loading_operation_id = ?", loadingOperationId).Delete(&models.ShippingLog{})
	return res.RowsAffected, res.Error
}

// Loading operations

func preloadLoadingRows(db *gorm.DB) *gorm.DB {
	return db.
		Preload("OnLoads", func(db *gorm.DB) *gorm.DB {
			return db.Where("parent_field = ?", models.LoadSideOnLoads).Order("idx")
		}).
		Preload("OffLoads", func(db *gorm.DB) *gorm.DB {
			return db.Where("parent_field = ?", models.LoadSideOffLoads).Order("idx")
		})
}

func (s *Store) CreateLoadingOperation(ctx context.Context, op *models.LoadingOperation) error {
	op.Normalize()
	return s.db.WithContext(ctx).Create(op).Error
}

func (s *Store) GetLoadingOperation(ctx context.Context, id int, forUpdate bool) (*models.LoadingOperation, error) {
	var op models.LoadingOperation
	if err := s.conn(ctx, forUpdate).Scopes(preloadLoadingRows).First(&op, id).Error; err != nil {
		return nil, notFound(err, "Loading Operation", id)
	}
	return &op, nil
}

func (s *Store) UpdateLoadingOperation(ctx context.Context, op *models.LoadingOperation) error {
	op.Normalize()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(op).Error; err != nil {
			return err
		}
		var keep []int
		for _, rows := range [][]models.LoadingOperationRow{op.OnLoads, op.OffLoads} {
			for i := range rows {
				rows[i].LoadingOperationId = op.ID
				if err := tx.Save(&rows[i]).Error; err != nil {
					return err
				}
				keep = append(keep, rows[i].ID)
			}
		}
		stale := tx.Where("loading_operation_id = ?", op.ID)
		if len(keep) > 0 {
			stale = stale.Where("id NOT IN ?", keep)
		}
		return stale.Delete(&models.LoadingOperationRow{}).Error
	})
}

func (s *Store) ListLoadingOperations(ctx context.Context, filter models.LoadingOperationFilter) ([]*models.LoadingOperation, error) {
	db := s.db.WithContext(ctx)
	if filter.ShippingOrderId != 0 {
		db = db.Where("shipping_order_id = ?", filter.ShippingOrderId)
	}
	if filter.StationId != 0 {
		db = db.Where("station_id = ?", filter.StationId)
	}
	if filter.DocStatus != nil {
		db = db.Where("doc_status = ?", *filter.DocStatus)
	}
	if filter.ExcludeId != 0 {
		db = db.Where("id <> ?", filter.ExcludeId)
	}
	if filter.BookingOrderId != 0 {
		rows := s.db.WithContext(ctx).Model(&models.LoadingOperationRow{}).
			Select("loading_operation_id").
			Where("booking_order_id = ?", filter.BookingOrderId)
		db = db.Where("id IN (?)", rows)
	}
	var results []*models.LoadingOperation
	err := db.Scopes(preloadLoadingRows).Order("id").Find(&results).Error
	return results, err
}
