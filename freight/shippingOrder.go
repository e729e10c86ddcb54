package freight

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/mmdatafocus/freight_backend/ledger"
	"github.com/mmdatafocus/freight_backend/models"
	"github.com/mmdatafocus/freight_backend/utils"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// onVehicleStatuses are the booking order states that follow their shipping order around.
var onVehicleStatuses = []models.BookingOrderStatus{
	models.BookingOrderStatusInProgress,
	models.BookingOrderStatusLoaded,
	models.BookingOrderStatusInTransit,
}

func (s *Service) CreateShippingOrder(ctx context.Context, input models.NewShippingOrder) (*models.ShippingOrder, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	so := input.ShippingOrder()
	if err := so.ValidateItinerary(); err != nil {
		return nil, err
	}
	err := s.run(ctx, "CreateShippingOrder", nil, func(ctx context.Context, tx txScope) error {
		var result *multierror.Error
		for _, id := range so.Itinerary() {
			if _, err := tx.store.GetStation(ctx, id); err != nil {
				result = multierror.Append(result, err)
			}
		}
		if vehicle, err := tx.store.GetVehicle(ctx, so.VehicleId); err != nil {
			result = multierror.Append(result, err)
		} else if vehicle.Disabled {
			result = multierror.Append(result, models.NewValidationError("vehicle %s is disabled", vehicle.RegistrationNo))
		}
		if so.ShippingVendorId != nil {
			if _, err := tx.store.GetShippingVendor(ctx, *so.ShippingVendorId); err != nil {
				result = multierror.Append(result, err)
			}
		}
		if err := result.ErrorOrNil(); err != nil {
			return err
		}

		var err error
		if so.OrderNumber, err = tx.store.NextName(ctx, models.DocTypeShippingOrder); err != nil {
			return err
		}
		return tx.store.CreateShippingOrder(ctx, so)
	})
	if err != nil {
		return nil, err
	}
	return so, nil
}

func (s *Service) GetShippingOrder(ctx context.Context, id int) (*models.ShippingOrder, error) {
	return s.store.GetShippingOrder(ctx, id, false)
}

// SubmitShippingOrder puts the vehicle at its initial station. A vehicle runs
// one active shipping order at a time.
func (s *Service) SubmitShippingOrder(ctx context.Context, id int) (*models.ShippingOrder, error) {
	draft, err := s.store.GetShippingOrder(ctx, id, false)
	if err != nil {
		return nil, err
	}
	var so *models.ShippingOrder
	err = s.run(ctx, "SubmitShippingOrder", []string{shippingOrderKey(id), vehicleKey(draft.VehicleId)}, func(ctx context.Context, tx txScope) error {
		var err error
		if so, err = tx.store.GetShippingOrder(ctx, id, true); err != nil {
			return err
		}
		if so.DocStatus != models.DocStatusDraft {
			return fmt.Errorf("shipping order %s: %w", so.OrderNumber, models.ErrNotDraft)
		}
		if err := so.ValidateItinerary(); err != nil {
			return err
		}
		active, err := tx.store.ListShippingOrders(ctx, models.ShippingOrderFilter{
			VehicleId: so.VehicleId,
			Statuses:  []models.ShippingOrderStatus{models.ShippingOrderStatusStopped, models.ShippingOrderStatusInTransit},
			DocStatus: utils.Ptr(models.DocStatusSubmitted),
			ExcludeId: so.ID,
		})
		if err != nil {
			return err
		}
		if len(active) > 0 {
			return models.NewConflictError("vehicle %d is already running shipping order %s", so.VehicleId, active[0].OrderNumber)
		}

		now := s.now()
		so.DocStatus = models.DocStatusSubmitted
		so.Status = models.ShippingOrderStatusStopped
		so.CurrentStationId = utils.Ptr(so.InitialStationId)
		so.NextStationId = nil
		if err := tx.store.UpdateShippingOrder(ctx, so); err != nil {
			return err
		}
		return tx.store.InsertShippingLog(ctx, &models.ShippingLog{
			ShippingOrderId: so.ID,
			StationId:       utils.Ptr(so.InitialStationId),
			Activity:        models.ShippingLogActivityStopped,
			PostingDatetime: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return so, nil
}

// StartShippingOrder sends a stopped vehicle towards nextStationId.
func (s *Service) StartShippingOrder(ctx context.Context, id, nextStationId int, at *time.Time) (*models.ShippingOrder, error) {
	var so *models.ShippingOrder
	err := s.run(ctx, "StartShippingOrder", []string{shippingOrderKey(id)}, func(ctx context.Context, tx txScope) error {
		var err error
		if so, err = tx.store.GetShippingOrder(ctx, id, true); err != nil {
			return err
		}
		if so.DocStatus != models.DocStatusSubmitted || so.Status != models.ShippingOrderStatusStopped {
			return models.NewConflictError("shipping order %s is %s, not stopped", so.OrderNumber, so.Status)
		}
		if !so.OnItinerary(nextStationId) {
			return models.NewValidationError("station %d is not on the itinerary of shipping order %s", nextStationId, so.OrderNumber)
		}
		from := utils.DereferencePtr(so.CurrentStationId)
		if from == nextStationId {
			return models.NewValidationError("shipping order %s is already at station %d", so.OrderNumber, nextStationId)
		}

		posting := postingTime(at, s.now)
		if from == so.InitialStationId && so.StartDatetime == nil {
			so.StartDatetime = &posting
		}
		so.Status = models.ShippingOrderStatusInTransit
		so.NextStationId = utils.Ptr(nextStationId)
		so.CurrentStationId = nil
		if err := tx.store.UpdateShippingOrder(ctx, so); err != nil {
			return err
		}
		if err := tx.store.InsertShippingLog(ctx, &models.ShippingLog{
			ShippingOrderId: so.ID,
			StationId:       utils.NilIfEmpty(from),
			NextStationId:   utils.Ptr(nextStationId),
			Activity:        models.ShippingLogActivityMoving,
			PostingDatetime: posting,
		}); err != nil {
			return err
		}
		return s.cascade(ctx, tx, so)
	})
	if err != nil {
		return nil, err
	}
	return so, nil
}

// StopShippingOrder parks a moving vehicle at stationId.
func (s *Service) StopShippingOrder(ctx context.Context, id, stationId int, at *time.Time) (*models.ShippingOrder, error) {
	var so *models.ShippingOrder
	err := s.run(ctx, "StopShippingOrder", []string{shippingOrderKey(id)}, func(ctx context.Context, tx txScope) error {
		var err error
		if so, err = tx.store.GetShippingOrder(ctx, id, true); err != nil {
			return err
		}
		if so.DocStatus != models.DocStatusSubmitted || so.Status != models.ShippingOrderStatusInTransit {
			return models.NewConflictError("shipping order %s is %s, not in transit", so.OrderNumber, so.Status)
		}
		if !so.OnItinerary(stationId) {
			return models.NewValidationError("station %d is not on the itinerary of shipping order %s", stationId, so.OrderNumber)
		}

		posting := postingTime(at, s.now)
		if stationId == so.FinalStationId {
			so.EndDatetime = &posting
		}
		so.Status = models.ShippingOrderStatusStopped
		so.CurrentStationId = utils.Ptr(stationId)
		so.NextStationId = nil
		if err := tx.store.UpdateShippingOrder(ctx, so); err != nil {
			return err
		}
		if err := tx.store.InsertShippingLog(ctx, &models.ShippingLog{
			ShippingOrderId: so.ID,
			StationId:       utils.Ptr(stationId),
			Activity:        models.ShippingLogActivityStopped,
			PostingDatetime: posting,
		}); err != nil {
			return err
		}
		return s.cascade(ctx, tx, so)
	})
	if err != nil {
		return nil, err
	}
	return so, nil
}

// cascade moves the booking orders riding on so along with it.
func (s *Service) cascade(ctx context.Context, tx txScope, so *models.ShippingOrder) error {
	orders, err := tx.store.ListBookingOrders(ctx, models.BookingOrderFilter{
		DocStatus:           utils.Ptr(models.DocStatusSubmitted),
		Statuses:            onVehicleStatuses,
		LastShippingOrderId: so.ID,
	})
	if err != nil {
		return err
	}
	for _, bo := range orders {
		bo.Status = models.BookingOrderStatusInTransit
		bo.CurrentStationId = so.CurrentStationId
		if err := tx.store.UpdateBookingOrder(ctx, bo); err != nil {
			return err
		}
	}
	if len(orders) > 0 {
		s.logInfo("cascade", logrus.Fields{"shipping_order": so.OrderNumber, "booking_orders": len(orders)}, "booking orders moved with shipping order")
	}
	return nil
}

// SetShippingOrderCompleted closes a shipping order stopped at its final station. With validateOnboard,
// any cargo still on the vehicle blocks completion.
func (s *Service) SetShippingOrderCompleted(ctx context.Context, id int, validateOnboard bool) (*models.ShippingOrder, error) {
	var so *models.ShippingOrder
	err := s.run(ctx, "SetShippingOrderCompleted", []string{shippingOrderKey(id)}, func(ctx context.Context, tx txScope) error {
		var err error
		if so, err = tx.store.GetShippingOrder(ctx, id, true); err != nil {
			return err
		}
		if so.DocStatus != models.DocStatusSubmitted || so.Status != models.ShippingOrderStatusStopped {
			return models.NewConflictError("shipping order %s is %s, not stopped", so.OrderNumber, so.Status)
		}
		if !so.IsStoppedAt(so.FinalStationId) {
			return models.NewConflictError("shipping order %s can only be completed at its final station", so.OrderNumber)
		}
		if validateOnboard {
			onboard, err := tx.ledger.AvailableOnShippingOrder(ctx, so.ID)
			if err != nil {
				return err
			}
			if len(onboard) > 0 {
				orders := lo.Uniq(lo.Map(onboard, func(b models.BookingLogBalance, _ int) int { return b.BookingOrderId }))
				return models.NewConflictError("shipping order %s still carries %d booking order(s)", so.OrderNumber, len(orders))
			}
		}

		so.Status = models.ShippingOrderStatusCompleted
		if err := tx.store.UpdateShippingOrder(ctx, so); err != nil {
			return err
		}
		return tx.store.InsertShippingLog(ctx, &models.ShippingLog{
			ShippingOrderId: so.ID,
			StationId:       so.CurrentStationId,
			Activity:        models.ShippingLogActivityCompleted,
			PostingDatetime: s.now(),
		})
	})
	if err != nil {
		return nil, err
	}
	return so, nil
}

// CancelShippingOrder cancels a shipping order no loading operation has used.
// Its purchase invoice is cancelled with it.
func (s *Service) CancelShippingOrder(ctx context.Context, id int) (*models.ShippingOrder, error) {
	var so *models.ShippingOrder
	err := s.run(ctx, "CancelShippingOrder", []string{shippingOrderKey(id)}, func(ctx context.Context, tx txScope) error {
		var err error
		if so, err = tx.store.GetShippingOrder(ctx, id, true); err != nil {
			return err
		}
		switch so.DocStatus {
		case models.DocStatusCancelled:
			return fmt.Errorf("shipping order %s: %w", so.OrderNumber, models.ErrAlreadyCancelled)
		case models.DocStatusDraft:
			return fmt.Errorf("shipping order %s: %w", so.OrderNumber, models.ErrNotSubmitted)
		}
		ops, err := tx.store.ListLoadingOperations(ctx, models.LoadingOperationFilter{
			ShippingOrderId: so.ID,
			DocStatus:       utils.Ptr(models.DocStatusSubmitted),
		})
		if err != nil {
			return err
		}
		if len(ops) > 0 {
			return models.NewConflictError("shipping order %s is used by loading operation %s", so.OrderNumber, ops[0].OperationNumber)
		}

		invoices, err := tx.store.ListInvoices(ctx, models.InvoiceFilter{
			InvoiceType:     models.InvoiceTypePurchase,
			ShippingOrderId: so.ID,
			DocStatus:       utils.Ptr(models.DocStatusSubmitted),
		})
		if err != nil {
			return err
		}
		for _, inv := range invoices {
			if inv.HasPayments() && !utils.IsElevated(ctx) {
				return models.NewConflictError("shipping order %s: purchase invoice %s is already paid", so.OrderNumber, inv.InvoiceNumber)
			}
			if _, err := tx.bridge.CancelInvoice(ctx, inv.ID); err != nil {
				return err
			}
		}

		so.DocStatus = models.DocStatusCancelled
		so.Status = models.ShippingOrderStatusCancelled
		return tx.store.UpdateShippingOrder(ctx, so)
	})
	if err != nil {
		return nil, err
	}
	return so, nil
}

// ShippingOrderSummary totals what the vehicle loaded and unloaded, what it
// carries now, and its log.
func (s *Service) ShippingOrderSummary(ctx context.Context, id int) (*models.ShippingOrderSummary, error) {
	var summary *models.ShippingOrderSummary
	err := s.read(ctx, "ShippingOrderSummary", func(ctx context.Context) error {
		so, err := s.store.GetShippingOrder(ctx, id, false)
		if err != nil {
			return err
		}
		ops, err := s.store.ListLoadingOperations(ctx, models.LoadingOperationFilter{
			ShippingOrderId: so.ID,
			DocStatus:       utils.Ptr(models.DocStatusSubmitted),
		})
		if err != nil {
			return err
		}
		summary = &models.ShippingOrderSummary{ShippingOrderId: so.ID}
		for _, op := range ops {
			summary.OnLoad = summary.OnLoad.Add(models.NewQuantity(op.OnLoadPackages, op.OnLoadWeight))
			summary.OffLoad = summary.OffLoad.Add(models.NewQuantity(op.OffLoadPackages, op.OffLoadWeight))
		}
		onboard, err := ledger.New(s.store).AvailableOnShippingOrder(ctx, so.ID)
		if err != nil {
			return err
		}
		for _, b := range onboard {
			summary.Current = summary.Current.Add(b.Quantity())
		}
		summary.History, err = s.store.FindShippingLogs(ctx, models.ShippingLogFilter{ShippingOrderId: so.ID})
		return err
	})
	return summary, err
}

// Manifest lists the booking orders on the vehicle with what each has onboard.
func (s *Service) Manifest(ctx context.Context, id int) ([]models.ManifestRow, error) {
	var manifest []models.ManifestRow
	err := s.read(ctx, "Manifest", func(ctx context.Context) error {
		if _, err := s.store.GetShippingOrder(ctx, id, false); err != nil {
			return err
		}
		onboard, err := ledger.New(s.store).AvailableOnShippingOrder(ctx, id)
		if err != nil {
			return err
		}
		byOrder := lo.GroupBy(onboard, func(b models.BookingLogBalance) int { return b.BookingOrderId })
		ids := lo.Keys(byOrder)
		if len(ids) == 0 {
			return nil
		}
		orders, err := s.store.ListBookingOrders(ctx, models.BookingOrderFilter{Ids: ids})
		if err != nil {
			return err
		}
		for _, bo := range orders {
			row := models.ManifestRow{
				BookingOrderId:       bo.ID,
				OrderNumber:          bo.OrderNumber,
				DestinationStationId: bo.DestinationStationId,
				ConsigneeId:          bo.ConsigneeId,
			}
			for _, b := range byOrder[bo.ID] {
				row.Onboard = row.Onboard.Add(b.Quantity())
			}
			row.GoodsValue = goodsValueOf(bo, row.Onboard)
			manifest = append(manifest, row)
		}
		return nil
	})
	return manifest, err
}

// MakePurchaseInvoice bills the shipping vendor of a shipping order.
func (s *Service) MakePurchaseInvoice(ctx context.Context, id int, amount decimal.Decimal, description string) (*models.Invoice, error) {
	var inv *models.Invoice
	err := s.run(ctx, "MakePurchaseInvoice", []string{shippingOrderKey(id)}, func(ctx context.Context, tx txScope) error {
		so, err := tx.store.GetShippingOrder(ctx, id, true)
		if err != nil {
			return err
		}
		inv, err = tx.bridge.MakePurchaseInvoice(ctx, so, amount, description, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// goodsValueOf pro-rates the goods value of bo by the share of its packages in q,
// or of its weight when no packages were declared.
func goodsValueOf(bo *models.BookingOrder, q models.Quantity) decimal.Decimal {
	declared := bo.DeclaredTotal()
	switch {
	case declared.Packages.IsPositive():
		return bo.GoodsValue.Mul(q.Packages).Div(declared.Packages).Round(2)
	case declared.Weight.IsPositive():
		return bo.GoodsValue.Mul(q.Weight).Div(declared.Weight).Round(2)
	}
	return decimal.Zero
}
