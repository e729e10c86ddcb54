package freight

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/mmdatafocus/freight_backend/billing"
	"github.com/mmdatafocus/freight_backend/ledger"
	"github.com/mmdatafocus/freight_backend/models"
	"github.com/mmdatafocus/freight_backend/utils"
	"github.com/sirupsen/logrus"
)

// CreateBookingOrder saves a draft booking order. Charges come from the chosen
// charge template, or the default one when neither a template nor charges are given.
func (s *Service) CreateBookingOrder(ctx context.Context, input models.NewBookingOrder) (*models.BookingOrder, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	bo := input.BookingOrder(s.now())
	err := s.run(ctx, "CreateBookingOrder", nil, func(ctx context.Context, tx txScope) error {
		var result *multierror.Error
		for _, id := range []int{bo.SourceStationId, bo.DestinationStationId} {
			if _, err := tx.store.GetStation(ctx, id); err != nil {
				result = multierror.Append(result, err)
			}
		}
		for _, id := range []int{bo.ConsignorId, bo.ConsigneeId} {
			if _, err := tx.store.GetBookingParty(ctx, id); err != nil {
				result = multierror.Append(result, err)
			}
		}
		if err := result.ErrorOrNil(); err != nil {
			return err
		}

		template, err := s.chargeTemplateFor(ctx, tx, bo)
		if err != nil {
			return err
		}
		if template != nil {
			bo.ChargeTemplateId = utils.Ptr(template.ID)
			bo.Charges = append(bo.Charges, template.BookingOrderCharges()...)
			for i := range bo.Charges {
				bo.Charges[i].Idx = i + 1
			}
		}
		bo.SetTotals()

		if bo.OrderNumber, err = tx.store.NextName(ctx, models.DocTypeBookingOrder); err != nil {
			return err
		}
		return tx.store.CreateBookingOrder(ctx, bo)
	})
	if err != nil {
		return nil, err
	}
	return bo, nil
}

func (s *Service) chargeTemplateFor(ctx context.Context, tx txScope, bo *models.BookingOrder) (*models.BookingOrderChargeTemplate, error) {
	if bo.ChargeTemplateId != nil {
		return tx.store.GetChargeTemplate(ctx, *bo.ChargeTemplateId)
	}
	if len(bo.Charges) > 0 {
		return nil, nil
	}
	template, err := tx.store.GetDefaultChargeTemplate(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	return template, err
}

func (s *Service) GetBookingOrder(ctx context.Context, id int) (*models.BookingOrder, error) {
	return s.store.GetBookingOrder(ctx, id, false)
}

// SubmitBookingOrder books the cargo at the source station and, with
// auto_bill_to set, bills the whole order.
func (s *Service) SubmitBookingOrder(ctx context.Context, id int) (*models.BookingOrder, error) {
	var bo *models.BookingOrder
	err := s.run(ctx, "SubmitBookingOrder", []string{bookingOrderKey(id)}, func(ctx context.Context, tx txScope) error {
		var err error
		if bo, err = tx.store.GetBookingOrder(ctx, id, true); err != nil {
			return err
		}
		if bo.DocStatus != models.DocStatusDraft {
			return fmt.Errorf("booking order %s: %w", bo.OrderNumber, models.ErrNotDraft)
		}
		bo.SetTotals()
		if err := bo.ValidateForSubmit(); err != nil {
			return err
		}
		if bo.AutoBillTo != nil {
			if err := billing.ValidateSettings(s.settings); err != nil {
				return err
			}
		}

		bo.DocStatus = models.DocStatusSubmitted
		bo.Status = models.BookingOrderStatusBooked
		bo.PaymentStatus = models.PaymentStatusUnbilled
		bo.CurrentStationId = utils.Ptr(bo.SourceStationId)
		if err := tx.store.UpdateBookingOrder(ctx, bo); err != nil {
			return err
		}

		movements := make([]ledger.Movement, 0, len(bo.Freight))
		for _, row := range bo.Freight {
			movements = append(movements, ledger.Movement{
				BookingOrderId:  bo.ID,
				BoDetailId:      utils.Ptr(row.ID),
				StationId:       bo.SourceStationId,
				Activity:        models.BookingLogActivityBooked,
				Quantity:        row.Declared(),
				PostingDatetime: bo.BookingDatetime,
				Owner:           models.Owner{Type: models.OwnerTypeBookingOrder, Id: bo.ID},
			})
		}
		if _, err := tx.ledger.RecordMovements(ctx, movements); err != nil {
			return err
		}

		if bo.AutoBillTo != nil {
			_, err := tx.bridge.CreateInvoice(ctx, bo, tx.bridge.BookingOrderLines(bo), billing.BillingOptions{
				BillTo:           *bo.AutoBillTo,
				TaxesAndCharges:  bo.TaxesAndCharges,
				IsFreightInvoice: true,
				PostingDate:      bo.BookingDatetime,
			})
			if err != nil {
				return err
			}
		}
		bo, err = tx.store.GetBookingOrder(ctx, id, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logInfo("SubmitBookingOrder", logrus.Fields{"order_number": bo.OrderNumber, "payment_status": bo.PaymentStatus}, "booking order submitted")
	return bo, nil
}

// CancelBookingOrder removes the order's ledger entries and cancels its invoices.
// Only booked, unpaid orders can be cancelled.
func (s *Service) CancelBookingOrder(ctx context.Context, id int) (*models.BookingOrder, error) {
	var bo *models.BookingOrder
	err := s.run(ctx, "CancelBookingOrder", []string{bookingOrderKey(id)}, func(ctx context.Context, tx txScope) error {
		var err error
		if bo, err = tx.store.GetBookingOrder(ctx, id, true); err != nil {
			return err
		}
		if err := bo.CanCancel(); err != nil {
			return err
		}
		invoices, err := tx.bridge.ActiveInvoices(ctx, bo.ID)
		if err != nil {
			return err
		}
		for _, inv := range invoices {
			if inv.HasPayments() {
				return models.NewConflictError("booking order %s: invoice %s is already paid", bo.OrderNumber, inv.InvoiceNumber)
			}
		}

		for _, owner := range []models.Owner{
			{Type: models.OwnerTypeBookingOrder, Id: bo.ID},
			{Type: models.OwnerTypeDelivery, Id: bo.ID},
		} {
			if _, err := tx.ledger.DeleteAllFor(ctx, owner); err != nil {
				return err
			}
		}
		for _, inv := range invoices {
			if _, err := tx.bridge.CancelInvoice(ctx, inv.ID); err != nil {
				return err
			}
		}

		if bo, err = tx.store.GetBookingOrder(ctx, id, true); err != nil {
			return err
		}
		bo.DocStatus = models.DocStatusCancelled
		bo.Status = models.BookingOrderStatusCancelled
		bo.CurrentStationId = nil
		return tx.store.UpdateBookingOrder(ctx, bo)
	})
	if err != nil {
		return nil, err
	}
	return bo, nil
}

// Deliver records the collection of cargo at the destination station and marks
// the order Collected once every freight detail is fully collected.
func (s *Service) Deliver(ctx context.Context, input models.NewDelivery) (*models.BookingOrder, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	existing, err := s.store.GetBookingOrder(ctx, input.BookingOrderId, false)
	if err != nil {
		return nil, err
	}
	// The destination station is locked too: off-loads into it add to what is deliverable.
	keys := []string{bookingOrderKey(existing.ID), stationKey(existing.DestinationStationId)}
	var bo *models.BookingOrder
	err = s.run(ctx, "Deliver", keys, func(ctx context.Context, tx txScope) error {
		var err error
		if bo, err = tx.store.GetBookingOrder(ctx, input.BookingOrderId, true); err != nil {
			return err
		}
		if bo.DocStatus != models.DocStatusSubmitted {
			return fmt.Errorf("booking order %s: %w", bo.OrderNumber, models.ErrNotSubmitted)
		}
		if bo.Status == models.BookingOrderStatusCollected {
			return models.NewConflictError("booking order %s is already collected", bo.OrderNumber)
		}
		detail, ok := bo.FreightRow(input.BoDetailId)
		if !ok {
			return models.NewValidationError("freight detail %d does not belong to booking order %s", input.BoDetailId, bo.OrderNumber)
		}

		deliverable, err := tx.ledger.DeliverableAt(ctx, detail.ID, bo.DestinationStationId)
		if err != nil {
			return err
		}
		q, err := ledger.Plan(*detail, input.Unit, input.Qty, deliverable)
		if err != nil {
			return err
		}
		unit := input.Unit
		if _, err := tx.ledger.RecordMovement(ctx, ledger.Movement{
			BookingOrderId:  bo.ID,
			BoDetailId:      utils.Ptr(detail.ID),
			StationId:       bo.DestinationStationId,
			Activity:        models.BookingLogActivityCollected,
			Quantity:        q,
			LoadingUnit:     &unit,
			PostingDatetime: postingTime(input.PostingDatetime, s.now),
			Owner:           models.Owner{Type: models.OwnerTypeDelivery, Id: bo.ID},
		}); err != nil {
			return err
		}
		return s.setAsCompleted(ctx, tx, bo)
	})
	if err != nil {
		return nil, err
	}
	return bo, nil
}

// setAsCompleted marks bo Collected when every freight detail is fully collected.
func (s *Service) setAsCompleted(ctx context.Context, tx txScope, bo *models.BookingOrder) error {
	collected := make(map[int]models.Quantity, len(bo.Freight))
	for _, row := range bo.Freight {
		q, err := tx.ledger.DeliveredFor(ctx, row.ID)
		if err != nil {
			return err
		}
		collected[row.ID] = q
	}
	if !bo.IsFullyCollected(collected) {
		return nil
	}
	bo.Status = models.BookingOrderStatusCollected
	bo.CurrentStationId = utils.Ptr(bo.DestinationStationId)
	return tx.store.UpdateBookingOrder(ctx, bo)
}

// OpenOrders lists submitted orders of a party, as consignor or consignee, that are not paid yet.
func (s *Service) OpenOrders(ctx context.Context, partyId int) ([]*models.BookingOrder, error) {
	var orders []*models.BookingOrder
	err := s.read(ctx, "OpenOrders", func(ctx context.Context) error {
		var err error
		orders, err = s.store.ListBookingOrders(ctx, models.BookingOrderFilter{
			PartyId:              partyId,
			DocStatus:            utils.Ptr(models.DocStatusSubmitted),
			ExcludePaymentStatus: models.PaymentStatusPaid,
		})
		return err
	})
	return orders, err
}

// History replays the ledger of a booking order with running balances.
func (s *Service) History(ctx context.Context, bookingOrderId int) ([]ledger.HistoryEntry, error) {
	var history []ledger.HistoryEntry
	err := s.read(ctx, "History", func(ctx context.Context) error {
		if _, err := s.store.GetBookingOrder(ctx, bookingOrderId, false); err != nil {
			return err
		}
		var err error
		history, err = ledger.New(s.store).History(ctx, bookingOrderId)
		return err
	})
	return history, err
}

// AuditLedger checks conservation for every submitted booking order.
func (s *Service) AuditLedger(ctx context.Context) error {
	return s.read(ctx, "AuditLedger", func(ctx context.Context) error {
		orders, err := s.store.ListBookingOrders(ctx, models.BookingOrderFilter{DocStatus: utils.Ptr(models.DocStatusSubmitted)})
		if err != nil {
			return err
		}
		l := ledger.New(s.store)
		var result *multierror.Error
		for _, bo := range orders {
			if err := l.CheckConservation(ctx, bo); err != nil {
				result = multierror.Append(result, err)
			}
		}
		return result.ErrorOrNil()
	})
}
