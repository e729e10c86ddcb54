package memory

import (
	"context"
	"slices"

	"github.com/mmdatafocus/freight_backend/models"
)

func cloneBookingOrder(bo *models.BookingOrder) *models.BookingOrder {
	c := *bo
	c.Freight = slices.Clone(bo.Freight)
	c.Charges = slices.Clone(bo.Charges)
	return &c
}

func cloneShippingOrder(so *models.ShippingOrder) *models.ShippingOrder {
	c := *so
	c.TransitStations = slices.Clone(so.TransitStations)
	return &c
}

func cloneLoadingOperation(op *models.LoadingOperation) *models.LoadingOperation {
	c := *op
	c.OnLoads = slices.Clone(op.OnLoads)
	c.OffLoads = slices.Clone(op.OffLoads)
	return &c
}

func cloneChargeTemplate(t *models.BookingOrderChargeTemplate) *models.BookingOrderChargeTemplate {
	c := *t
	c.Charges = slices.Clone(t.Charges)
	return &c
}

func clonePtr[T any](v *T) *T {
	c := *v
	return &c
}

// Master data

func (s *Store) CreateStation(ctx context.Context, station *models.Station) error {
	defer s.lock()()
	for _, existing := range s.st.stations {
		if existing.Name == station.Name {
			return models.NewConflictError("station %q already exists", station.Name)
		}
	}
	station.ID = s.st.nextId("stations")
	stamp(&station.CreatedAt, &station.UpdatedAt)
	s.st.stations[station.ID] = clonePtr(station)
	return nil
}

func (s *Store) GetStation(ctx context.Context, id int) (*models.Station, error) {
	defer s.lock()()
	if station, ok := s.st.stations[id]; ok {
		return clonePtr(station), nil
	}
	return nil, models.NewNotFoundError("Station", id)
}

func (s *Store) CreateVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	defer s.lock()()
	vehicle.ID = s.st.nextId("vehicles")
	stamp(&vehicle.CreatedAt, &vehicle.UpdatedAt)
	s.st.vehicles[vehicle.ID] = clonePtr(vehicle)
	return nil
}

func (s *Store) GetVehicle(ctx context.Context, id int) (*models.Vehicle, error) {
	defer s.lock()()
	if vehicle, ok := s.st.vehicles[id]; ok {
		return clonePtr(vehicle), nil
	}
	return nil, models.NewNotFoundError("Vehicle", id)
}

func (s *Store) CreateBookingParty(ctx context.Context, party *models.BookingParty) error {
	defer s.lock()()
	party.ID = s.st.nextId("booking_parties")
	stamp(&party.CreatedAt, &party.UpdatedAt)
	s.st.parties[party.ID] = clonePtr(party)
	return nil
}

func (s *Store) GetBookingParty(ctx context.Context, id int) (*models.BookingParty, error) {
	defer s.lock()()
	if party, ok := s.st.parties[id]; ok {
		return clonePtr(party), nil
	}
	return nil, models.NewNotFoundError("Booking Party", id)
}

func (s *Store) UpdateBookingParty(ctx context.Context, party *models.BookingParty) error {
	defer s.lock()()
	if _, ok := s.st.parties[party.ID]; !ok {
		return models.NewNotFoundError("Booking Party", party.ID)
	}
	stamp(nil, &party.UpdatedAt)
	s.st.parties[party.ID] = clonePtr(party)
	return nil
}

func (s *Store) CreateShippingVendor(ctx context.Context, vendor *models.ShippingVendor) error {
	defer s.lock()()
	vendor.ID = s.st.nextId("shipping_vendors")
	stamp(&vendor.CreatedAt, &vendor.UpdatedAt)
	s.st.vendors[vendor.ID] = clonePtr(vendor)
	return nil
}

func (s *Store) GetShippingVendor(ctx context.Context, id int) (*models.ShippingVendor, error) {
	defer s.lock()()
	if vendor, ok := s.st.vendors[id]; ok {
		return clonePtr(vendor), nil
	}
	return nil, models.NewNotFoundError("Shipping Vendor", id)
}

func (s *Store) UpdateShippingVendor(ctx context.Context, vendor *models.ShippingVendor) error {
	defer s.lock()()
	if _, ok := s.st.vendors[vendor.ID]; !ok {
		return models.NewNotFoundError("Shipping Vendor", vendor.ID)
	}
	stamp(nil, &vendor.UpdatedAt)
	s.st.vendors[vendor.ID] = clonePtr(vendor)
	return nil
}

func (s *Store) CreateChargeTemplate(ctx context.Context, template *models.BookingOrderChargeTemplate) error {
	defer s.lock()()
	template.ID = s.st.nextId("charge_templates")
	for i := range template.Charges {
		template.Charges[i].ID = s.st.nextId("charge_template_rows")
		template.Charges[i].TemplateId = template.ID
	}
	stamp(&template.CreatedAt, &template.UpdatedAt)
	s.st.templates[template.ID] = cloneChargeTemplate(template)
	return nil
}

func (s *Store) GetChargeTemplate(ctx context.Context, id int) (*models.BookingOrderChargeTemplate, error) {
	defer s.lock()()
	if template, ok := s.st.templates[id]; ok {
		return cloneChargeTemplate(template), nil
	}
	return nil, models.NewNotFoundError("Booking Order Charge Template", id)
}

func (s *Store) GetDefaultChargeTemplate(ctx context.Context) (*models.BookingOrderChargeTemplate, error) {
	defer s.lock()()
	for _, id := range s.st.templates.sortedIds() {
		if t := s.st.templates[id]; t.IsDefault {
			return cloneChargeTemplate(t), nil
		}
	}
	return nil, models.NewNotFoundError("Booking Order Charge Template", "default")
}

// Booking orders

func (s *Store) assignBookingOrderRowIds(bo *models.BookingOrder) {
	for i := range bo.Freight {
		if bo.Freight[i].ID == 0 {
			bo.Freight[i].ID = s.st.nextId("booking_order_freight_details")
		}
		bo.Freight[i].BookingOrderId = bo.ID
	}
	for i := range bo.Charges {
		if bo.Charges[i].ID == 0 {
			bo.Charges[i].ID = s.st.nextId("booking_order_charges")
		}
		bo.Charges[i].BookingOrderId = bo.ID
	}
}

func (s *Store) CreateBookingOrder(ctx context.Context, bo *models.BookingOrder) error {
	defer s.lock()()
	bo.ID = s.st.nextId("booking_orders")
	s.assignBookingOrderRowIds(bo)
	stamp(&bo.CreatedAt, &bo.UpdatedAt)
	s.st.bookingOrders[bo.ID] = cloneBookingOrder(bo)
	return nil
}

func (s *Store) GetBookingOrder(ctx context.Context, id int, forUpdate bool) (*models.BookingOrder, error) {
	defer s.lock()()
	if bo, ok := s.st.bookingOrders[id]; ok {
		return cloneBookingOrder(bo), nil
	}
	return nil, models.NewNotFoundError("Booking Order", id)
}

func (s *Store) UpdateBookingOrder(ctx context.Context, bo *models.BookingOrder) error {
	defer s.lock()()
	if _, ok := s.st.bookingOrders[bo.ID]; !ok {
		return models.NewNotFoundError("Booking Order", bo.ID)
	}
	s.assignBookingOrderRowIds(bo)
	stamp(nil, &bo.UpdatedAt)
	s.st.bookingOrders[bo.ID] = cloneBookingOrder(bo)
	return nil
}

func (s *Store) ListBookingOrders(ctx context.Context, filter models.BookingOrderFilter) ([]*models.BookingOrder, error) {
	defer s.lock()()
	var results []*models.BookingOrder
	for _, id := range s.st.bookingOrders.sortedIds() {
		bo := s.st.bookingOrders[id]
		if len(filter.Ids) > 0 && !slices.Contains(filter.Ids, bo.ID) {
			continue
		}
		if filter.PartyId != 0 && bo.ConsignorId != filter.PartyId && bo.ConsigneeId != filter.PartyId {
			continue
		}
		if filter.DocStatus != nil && bo.DocStatus != *filter.DocStatus {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, bo.Status) {
			continue
		}
		if filter.LastShippingOrderId != 0 && (bo.LastShippingOrderId == nil || *bo.LastShippingOrderId != filter.LastShippingOrderId) {
			continue
		}
		if filter.ExcludePaymentStatus != "" && bo.PaymentStatus == filter.ExcludePaymentStatus {
			continue
		}
		results = append(results, cloneBookingOrder(bo))
	}
	return results, nil
}

// Shipping orders

func (s *Store) CreateShippingOrder(ctx context.Context, so *models.ShippingOrder) error {
	defer s.lock()()
	so.ID = s.st.nextId("shipping_orders")
	for i := range so.TransitStations {
		so.TransitStations[i].ID = s.st.nextId("shipping_order_transit_stations")
		so.TransitStations[i].ShippingOrderId = so.ID
	}
	stamp(&so.CreatedAt, &so.UpdatedAt)
	s.st.shippingOrders[so.ID] = cloneShippingOrder(so)
	return nil
}

func (s *Store) GetShippingOrder(ctx context.Context, id int, forUpdate bool) (*models.ShippingOrder, error) {
	defer s.lock()()
	if so, ok := s.st.shippingOrders[id]; ok {
		return cloneShippingOrder(so), nil
	}
	return nil, models.NewNotFoundError("Shipping Order", id)
}

func (s *Store) UpdateShippingOrder(ctx context.Context, so *models.ShippingOrder) error {
	defer s.lock()()
	stored, ok := s.st.shippingOrders[so.ID]
	if !ok {
		return models.NewNotFoundError("Shipping Order", so.ID)
	}
	c := cloneShippingOrder(so)
	c.TransitStations = slices.Clone(stored.TransitStations)
	stamp(nil, &c.UpdatedAt)
	so.UpdatedAt = c.UpdatedAt
	s.st.shippingOrders[so.ID] = c
	return nil
}

func (s *Store) ListShippingOrders(ctx context.Context, filter models.ShippingOrderFilter) ([]*models.ShippingOrder, error) {
	defer s.lock()()
	var results []*models.ShippingOrder
	for _, id := range s.st.shippingOrders.sortedIds() {
		so := s.st.shippingOrders[id]
		if filter.VehicleId != 0 && so.VehicleId != filter.VehicleId {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, so.Status) {
			continue
		}
		if filter.DocStatus != nil && so.DocStatus != *filter.DocStatus {
			continue
		}
		if filter.ExcludeId != 0 && so.ID == filter.ExcludeId {
			continue
		}
		results = append(results, cloneShippingOrder(so))
	}
	return results, nil
}

func (s *Store) InsertShippingLog(ctx context.Context, log *models.ShippingLog) error {
	defer s.lock()()
	log.ID = s.st.nextId("shipping_logs")
	stamp(&log.CreatedAt, nil)
	s.st.shippingLogs[log.ID] = clonePtr(log)
	return nil
}

func (s *Store) FindShippingLogs(ctx context.Context, filter models.ShippingLogFilter) ([]models.ShippingLog, error) {
	defer s.lock()()
	var results []models.ShippingLog
	for _, log := range s.st.shippingLogs {
		if filter.ShippingOrderId != 0 && log.ShippingOrderId != filter.ShippingOrderId {
			continue
		}
		if filter.LoadingOperationId != 0 && (log.LoadingOperationId == nil || *log.LoadingOperationId != filter.LoadingOperationId) {
			continue
		}
		if filter.Activity != "" && log.Activity != filter.Activity {
			continue
		}
		results = append(results, *log)
	}
	slices.SortFunc(results, func(a, b models.ShippingLog) int {
		if c := a.PostingDatetime.Compare(b.PostingDatetime); c != 0 {
			return c
		}
		return a.ID - b.ID
	})
	return results, nil
}

func (s *Store) DeleteShippingLogs(ctx context.Context, loadingOperationId int) (int64, error) {
	defer s.lock()()
	var deleted int64
	for id, log := range s.st.shippingLogs {
		if log.LoadingOperationId != nil && *log.LoadingOperationId == loadingOperationId {
			delete(s.st.shippingLogs, id)
			deleted++
		}
	}
	return deleted, nil
}

// Loading operations

func (s *Store) assignLoadingRowIds(op *models.LoadingOperation) {
	op.Normalize()
	for _, rows := range [][]models.LoadingOperationRow{op.OnLoads, op.OffLoads} {
		for i := range rows {
			if rows[i].ID == 0 {
				rows[i].ID = s.st.nextId("loading_operation_rows")
			}
			rows[i].LoadingOperationId = op.ID
		}
	}
}

func (s *Store) CreateLoadingOperation(ctx context.Context, op *models.LoadingOperation) error {
	defer s.lock()()
	op.ID = s.st.nextId("loading_operations")
	s.assignLoadingRowIds(op)
	stamp(&op.CreatedAt, &op.UpdatedAt)
	s.st.loadingOps[op.ID] = cloneLoadingOperation(op)
	return nil
}

func (s *Store) GetLoadingOperation(ctx context.Context, id int, forUpdate bool) (*models.LoadingOperation, error) {
	defer s.lock()()
	if op, ok := s.st.loadingOps[id]; ok {
		return cloneLoadingOperation(op), nil
	}
	return nil, models.NewNotFoundError("Loading Operation", id)
}

func (s *Store) UpdateLoadingOperation(ctx context.Context, op *models.LoadingOperation) error {
	defer s.lock()()
	if _, ok := s.st.loadingOps[op.ID]; !ok {
		return models.NewNotFoundError("Loading Operation", op.ID)
	}
	s.assignLoadingRowIds(op)
	stamp(nil, &op.UpdatedAt)
	s.st.loadingOps[op.ID] = cloneLoadingOperation(op)
	return nil
}

func (s *Store) ListLoadingOperations(ctx context.Context, filter models.LoadingOperationFilter) ([]*models.LoadingOperation, error) {
	defer s.lock()()
	var results []*models.LoadingOperation
	for _, id := range s.st.loadingOps.sortedIds() {
		op := s.st.loadingOps[id]
		if filter.ShippingOrderId != 0 && op.ShippingOrderId != filter.ShippingOrderId {
			continue
		}
		if filter.StationId != 0 && op.StationId != filter.StationId {
			continue
		}
		if filter.DocStatus != nil && op.DocStatus != *filter.DocStatus {
			continue
		}
		if filter.ExcludeId != 0 && op.ID == filter.ExcludeId {
			continue
		}
		if filter.BookingOrderId != 0 && !touchesBookingOrder(op, filter.BookingOrderId) {
			continue
		}
		results = append(results, cloneLoadingOperation(op))
	}
	return results, nil
}

func touchesBookingOrder(op *models.LoadingOperation, bookingOrderId int) bool {
	for _, rows := range [][]models.LoadingOperationRow{op.OnLoads, op.OffLoads} {
		for _, r := range rows {
			if r.BookingOrderId == bookingOrderId {
				return true
			}
		}
	}
	return false
}
