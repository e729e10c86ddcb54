package freight

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/mmdatafocus/freight_backend/billing"
	"github.com/mmdatafocus/freight_backend/ledger"
	"github.com/mmdatafocus/freight_backend/models"
	"github.com/mmdatafocus/freight_backend/utils"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// checked is what validation resolved for an operation.
type checked struct {
	so     *models.ShippingOrder
	orders map[int]*models.BookingOrder
}

// operationKeys covers the station, the shipping order and every booking order
// the rows of ops touch. The locker takes them in sorted order.
func operationKeys(ops ...*models.LoadingOperation) []string {
	var keys []string
	for _, op := range ops {
		keys = append(keys, stationKey(op.StationId), shippingOrderKey(op.ShippingOrderId))
		keys = append(keys, lo.Map(op.BookingOrderIds(), func(id int, _ int) string { return bookingOrderKey(id) })...)
	}
	return lo.Uniq(keys)
}

func idSet(ids []int) map[int]bool {
	return lo.Associate(ids, func(id int) (int, bool) { return id, true })
}

// sameOrders fails when op now touches booking orders that were not locked
// from the earlier read.
func sameOrders(locked, op *models.LoadingOperation) error {
	held := idSet(locked.BookingOrderIds())
	if lo.EveryBy(op.BookingOrderIds(), func(id int) bool { return held[id] }) {
		return nil
	}
	return models.NewConflictError("loading operation %s changed while it was being processed; retry", op.OperationNumber)
}

// CreateLoadingOperation saves a draft. Rows given with the draft are checked
// against the ledger and get their packages, weight and goods value.
func (s *Service) CreateLoadingOperation(ctx context.Context, input models.NewLoadingOperation) (*models.LoadingOperation, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	op := input.LoadingOperation(s.now())
	err := s.run(ctx, "CreateLoadingOperation", operationKeys(op), func(ctx context.Context, tx txScope) error {
		if _, err := s.checkOperation(ctx, tx, op, false); err != nil {
			return err
		}
		var err error
		if op.OperationNumber, err = tx.store.NextName(ctx, models.DocTypeLoadingOperation); err != nil {
			return err
		}
		return tx.store.CreateLoadingOperation(ctx, op)
	})
	if err != nil {
		return nil, err
	}
	return op, nil
}

func (s *Service) GetLoadingOperation(ctx context.Context, id int) (*models.LoadingOperation, error) {
	return s.store.GetLoadingOperation(ctx, id, false)
}

// UpdateLoadingOperation replaces the rows of a draft.
func (s *Service) UpdateLoadingOperation(ctx context.Context, id int, input models.NewLoadingOperation) (*models.LoadingOperation, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	draft, err := s.draftOperation(ctx, id)
	if err != nil {
		return nil, err
	}
	var op *models.LoadingOperation
	err = s.run(ctx, "UpdateLoadingOperation", operationKeys(draft, input.LoadingOperation(draft.PostingDatetime)), func(ctx context.Context, tx txScope) error {
		if op, err = s.lockDraft(ctx, tx, id); err != nil {
			return err
		}
		if err := sameOrders(draft, op); err != nil {
			return err
		}
		edited := input.LoadingOperation(op.PostingDatetime)
		op.OnLoads, op.OffLoads = edited.OnLoads, edited.OffLoads
		if input.PostingDatetime != nil {
			op.PostingDatetime = edited.PostingDatetime
		}
		if _, err := s.checkOperation(ctx, tx, op, false); err != nil {
			return err
		}
		return tx.store.UpdateLoadingOperation(ctx, op)
	})
	if err != nil {
		return nil, err
	}
	return op, nil
}

// GetOnLoads fills the on-load rows of a draft with everything waiting at its
// station, one row per freight detail, excluding cargo that has arrived.
func (s *Service) GetOnLoads(ctx context.Context, id int) (*models.LoadingOperation, error) {
	draft, err := s.draftOperation(ctx, id)
	if err != nil {
		return nil, err
	}
	var op *models.LoadingOperation
	err = s.run(ctx, "GetOnLoads", operationKeys(draft), func(ctx context.Context, tx txScope) error {
		if op, err = s.lockDraft(ctx, tx, id); err != nil {
			return err
		}
		balances, err := tx.ledger.AvailableAt(ctx, op.StationId)
		if err != nil {
			return err
		}
		rows, err := s.candidateRows(ctx, tx, balances, func(bo *models.BookingOrder) bool {
			return bo.DestinationStationId != op.StationId
		})
		if err != nil {
			return err
		}
		op.OnLoads = rows
		op.Normalize()
		op.SetTotals()
		return tx.store.UpdateLoadingOperation(ctx, op)
	})
	if err != nil {
		return nil, err
	}
	return op, nil
}

// GetOffLoads fills the off-load rows of a draft with everything onboard its shipping order.
func (s *Service) GetOffLoads(ctx context.Context, id int) (*models.LoadingOperation, error) {
	draft, err := s.draftOperation(ctx, id)
	if err != nil {
		return nil, err
	}
	var op *models.LoadingOperation
	err = s.run(ctx, "GetOffLoads", operationKeys(draft), func(ctx context.Context, tx txScope) error {
		if op, err = s.lockDraft(ctx, tx, id); err != nil {
			return err
		}
		balances, err := tx.ledger.AvailableOnShippingOrder(ctx, op.ShippingOrderId)
		if err != nil {
			return err
		}
		rows, err := s.candidateRows(ctx, tx, balances, nil)
		if err != nil {
			return err
		}
		op.OffLoads = rows
		op.Normalize()
		op.SetTotals()
		return tx.store.UpdateLoadingOperation(ctx, op)
	})
	if err != nil {
		return nil, err
	}
	return op, nil
}

// candidateRows turns ledger balances into rows moving everything available,
// in the unit each detail is already tracked in.
func (s *Service) candidateRows(ctx context.Context, tx txScope, balances []models.BookingLogBalance, keep func(*models.BookingOrder) bool) ([]models.LoadingOperationRow, error) {
	if len(balances) == 0 {
		return nil, nil
	}
	orders, err := tx.store.ListBookingOrders(ctx, models.BookingOrderFilter{
		Ids:       lo.Uniq(lo.Map(balances, func(b models.BookingLogBalance, _ int) int { return b.BookingOrderId })),
		DocStatus: utils.Ptr(models.DocStatusSubmitted),
	})
	if err != nil {
		return nil, err
	}
	byId := lo.KeyBy(orders, func(bo *models.BookingOrder) int { return bo.ID })

	var rows []models.LoadingOperationRow
	for _, b := range balances {
		bo, ok := byId[b.BookingOrderId]
		if !ok || bo.Status == models.BookingOrderStatusCollected || (keep != nil && !keep(bo)) {
			continue
		}
		detail, ok := bo.FreightRow(b.BoDetailId)
		if !ok {
			continue
		}
		unit, tracked, err := tx.ledger.TrackedUnit(ctx, detail.ID)
		if err != nil {
			return nil, err
		}
		if !tracked {
			unit = detail.BasedOn
		}
		q := b.Quantity()
		rows = append(rows, models.LoadingOperationRow{
			BookingOrderId: bo.ID,
			BoDetailId:     detail.ID,
			LoadingUnit:    unit,
			Qty:            q.In(unit),
			Available:      q.In(unit),
			NoOfPackages:   q.Packages,
			WeightActual:   q.Weight,
			GoodsValue:     goodsValueOf(bo, q),
		})
	}
	return rows, nil
}

// ValidateLoadingOperation runs the submit checks of a draft without submitting it.
func (s *Service) ValidateLoadingOperation(ctx context.Context, id int) (*models.LoadingOperation, error) {
	draft, err := s.draftOperation(ctx, id)
	if err != nil {
		return nil, err
	}
	err = s.run(ctx, "ValidateLoadingOperation", nil, func(ctx context.Context, tx txScope) error {
		_, err := s.checkOperation(ctx, tx, draft, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return draft, nil
}

// checkOperation validates op against the documents and the ledger as they are
// now, derives packages, weight and goods value of every row, and dry-runs the
// auto-bill invoices. Every problem found is reported together.
func (s *Service) checkOperation(ctx context.Context, tx txScope, op *models.LoadingOperation, submitting bool) (*checked, error) {
	op.Normalize()
	var result *multierror.Error
	if submitting || len(op.OnLoads)+len(op.OffLoads) > 0 {
		if err := op.ValidateRows(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if _, err := tx.store.GetStation(ctx, op.StationId); err != nil {
		result = multierror.Append(result, err)
	}
	so, err := tx.store.GetShippingOrder(ctx, op.ShippingOrderId, submitting)
	if err != nil {
		result = multierror.Append(result, err)
		return nil, result.ErrorOrNil()
	}
	switch {
	case so.DocStatus == models.DocStatusCancelled || so.Status == models.ShippingOrderStatusCompleted:
		result = multierror.Append(result, models.NewConflictError("shipping order %s is %s", so.OrderNumber, so.Status))
	case !so.OnItinerary(op.StationId):
		result = multierror.Append(result, models.NewValidationError("station %d is not on the itinerary of shipping order %s", op.StationId, so.OrderNumber))
	case submitting && !so.IsStoppedAt(op.StationId):
		result = multierror.Append(result, models.NewConflictError("shipping order %s is not stopped at station %d", so.OrderNumber, op.StationId))
	}

	offloaded := lo.Associate(op.OffLoads, func(r models.LoadingOperationRow) (int, bool) { return r.BoDetailId, true })
	for _, r := range op.OnLoads {
		if offloaded[r.BoDetailId] {
			result = multierror.Append(result, models.NewValidationError("on_loads row #%d: freight detail %d is also off-loaded by this operation", r.Idx, r.BoDetailId))
		}
	}

	// Submitting reads the booking orders FOR UPDATE; their balances are only
	// trusted while those rows are held.
	orders := make(map[int]*models.BookingOrder)
	for _, id := range op.BookingOrderIds() {
		bo, err := tx.store.GetBookingOrder(ctx, id, submitting)
		switch {
		case errors.Is(err, models.ErrNotFound):
			result = multierror.Append(result, err)
		case err != nil:
			return nil, err
		case bo.DocStatus != models.DocStatusSubmitted:
			result = multierror.Append(result, fmt.Errorf("booking order %s: %w", bo.OrderNumber, models.ErrNotSubmitted))
		case bo.Status == models.BookingOrderStatusCollected:
			result = multierror.Append(result, models.NewConflictError("booking order %s is already collected", bo.OrderNumber))
		default:
			orders[id] = bo
		}
	}

	onStation, err := s.available(op.OnLoads, func(ids []int) ([]models.BookingLogBalance, error) {
		return tx.ledger.AvailableAt(ctx, op.StationId, ids...)
	})
	if err != nil {
		return nil, err
	}
	onVehicle, err := s.available(op.OffLoads, func(ids []int) ([]models.BookingLogBalance, error) {
		return tx.ledger.AvailableOnShippingOrder(ctx, op.ShippingOrderId, ids...)
	})
	if err != nil {
		return nil, err
	}

	for _, side := range []models.LoadSide{models.LoadSideOffLoads, models.LoadSideOnLoads} {
		available := onStation
		rows := op.OnLoads
		if side == models.LoadSideOffLoads {
			available, rows = onVehicle, op.OffLoads
		}
		for i := range rows {
			if err := s.deriveRow(ctx, tx, orders, &rows[i], available[rows[i].BoDetailId]); err != nil {
				result = multierror.Append(result, fmt.Errorf("%s row #%d: %w", side, rows[i].Idx, err))
			}
		}
	}
	op.SetTotals()

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	if err := s.checkAutoBill(ctx, tx, op, orders); err != nil {
		return nil, err
	}
	return &checked{so: so, orders: orders}, nil
}

func (s *Service) available(rows []models.LoadingOperationRow, sum func(ids []int) ([]models.BookingLogBalance, error)) (map[int]models.Quantity, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	balances, err := sum(lo.Map(rows, func(r models.LoadingOperationRow, _ int) int { return r.BoDetailId }))
	if err != nil {
		return nil, err
	}
	return ledger.ByDetail(balances), nil
}

// deriveRow converts the row's qty into packages and weight within what is available.
func (s *Service) deriveRow(ctx context.Context, tx txScope, orders map[int]*models.BookingOrder, row *models.LoadingOperationRow, available models.Quantity) error {
	bo, ok := orders[row.BookingOrderId]
	if !ok {
		return nil
	}
	detail, ok := bo.FreightRow(row.BoDetailId)
	if !ok {
		return models.NewValidationError("freight detail %d does not belong to booking order %s", row.BoDetailId, bo.OrderNumber)
	}
	unit, tracked, err := tx.ledger.TrackedUnit(ctx, detail.ID)
	if err != nil {
		return err
	}
	if tracked && unit != row.LoadingUnit {
		return models.NewConflictError("freight detail %d is tracked in %s, not %s", detail.ID, unit, row.LoadingUnit)
	}
	q, err := ledger.Plan(*detail, row.LoadingUnit, row.Qty, available)
	if err != nil {
		return err
	}
	row.Available = available.In(row.LoadingUnit)
	row.NoOfPackages = q.Packages
	row.WeightActual = q.Weight
	row.GoodsValue = goodsValueOf(bo, q)
	return nil
}

// autoBillGroups splits the auto-billed on-load rows by booking order, in row order.
func autoBillGroups(op *models.LoadingOperation) ([]int, map[int][]models.LoadingOperationRow) {
	billed := lo.Filter(op.OnLoads, func(r models.LoadingOperationRow, _ int) bool { return r.AutoBillTo != nil })
	groups := lo.GroupBy(billed, func(r models.LoadingOperationRow) int { return r.BookingOrderId })
	order := lo.Uniq(lo.Map(billed, func(r models.LoadingOperationRow, _ int) int { return r.BookingOrderId }))
	return order, groups
}

func (s *Service) loadingBillingOptions(op *models.LoadingOperation, bo *models.BookingOrder, billTo models.BillTo) billing.BillingOptions {
	opts := billing.BillingOptions{
		BillTo:           billTo,
		TaxesAndCharges:  bo.TaxesAndCharges,
		IsFreightInvoice: true,
		PostingDate:      op.PostingDatetime,
	}
	if op.ID != 0 {
		opts.LoadingOperationId = utils.Ptr(op.ID)
		opts.ValidateLoading = lo.EveryBy(op.OnLoads, func(r models.LoadingOperationRow) bool { return r.ID != 0 })
	}
	return opts
}

// checkAutoBill dry-runs the invoice of every auto-billed booking order.
func (s *Service) checkAutoBill(ctx context.Context, tx txScope, op *models.LoadingOperation, orders map[int]*models.BookingOrder) error {
	var result *multierror.Error
	ids, groups := autoBillGroups(op)
	for _, id := range ids {
		bo := orders[id]
		rows := groups[id]
		lines, err := tx.bridge.LoadingLines(bo, rows)
		if err == nil {
			err = tx.bridge.CheckInvoice(ctx, bo, lines, s.loadingBillingOptions(op, bo, *rows[0].AutoBillTo))
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("booking order %s: %w", bo.OrderNumber, err))
		}
	}
	return result.ErrorOrNil()
}

// SubmitLoadingOperation moves the cargo of every row in the ledger, moves the
// booking orders along, bills the auto-billed ones and logs the operation on
// its shipping order.
func (s *Service) SubmitLoadingOperation(ctx context.Context, id int) (*models.LoadingOperation, error) {
	draft, err := s.draftOperation(ctx, id)
	if err != nil {
		return nil, err
	}
	var op *models.LoadingOperation
	err = s.run(ctx, "SubmitLoadingOperation", operationKeys(draft), func(ctx context.Context, tx txScope) error {
		if op, err = s.lockDraft(ctx, tx, id); err != nil {
			return err
		}
		if err := sameOrders(draft, op); err != nil {
			return err
		}
		c, err := s.checkOperation(ctx, tx, op, true)
		if err != nil {
			return err
		}
		if err := tx.store.UpdateLoadingOperation(ctx, op); err != nil {
			return err
		}

		if _, err := tx.ledger.RecordMovements(ctx, s.movements(op)); err != nil {
			return err
		}
		if err := s.advanceBookingOrders(ctx, tx, op, c); err != nil {
			return err
		}
		if err := s.billLoadedOrders(ctx, tx, op, idSet(lo.Keys(c.orders))); err != nil {
			return err
		}

		op.DocStatus = models.DocStatusSubmitted
		if err := tx.store.UpdateLoadingOperation(ctx, op); err != nil {
			return err
		}
		if s.deferLogs {
			correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
			return tx.store.CreateOutboxRecord(ctx, models.NewOperationLogsRecord(op, correlationId))
		}
		return tx.store.InsertShippingLog(ctx, op.OperationLog())
	})
	if err != nil {
		return nil, err
	}
	s.logInfo("SubmitLoadingOperation", logrus.Fields{
		"operation_number": op.OperationNumber,
		"on_loads":         len(op.OnLoads),
		"off_loads":        len(op.OffLoads),
		"deferred_logs":    s.deferLogs,
	}, "loading operation submitted")
	return op, nil
}

func (s *Service) movements(op *models.LoadingOperation) []ledger.Movement {
	owner := models.Owner{Type: models.OwnerTypeLoadingOperation, Id: op.ID}
	var movements []ledger.Movement
	for _, side := range []models.LoadSide{models.LoadSideOffLoads, models.LoadSideOnLoads} {
		activity := models.BookingLogActivityLoaded
		if side == models.LoadSideOffLoads {
			activity = models.BookingLogActivityUnloaded
		}
		for _, r := range op.Rows(side) {
			unit := r.LoadingUnit
			movements = append(movements, ledger.Movement{
				BookingOrderId:     r.BookingOrderId,
				BoDetailId:         utils.Ptr(r.BoDetailId),
				StationId:          op.StationId,
				Activity:           activity,
				Quantity:           r.Quantity(),
				LoadingUnit:        &unit,
				ShippingOrderId:    utils.Ptr(op.ShippingOrderId),
				LoadingOperationId: utils.Ptr(op.ID),
				PostingDatetime:    op.PostingDatetime,
				Owner:              owner,
			})
		}
	}
	return movements
}

// advanceBookingOrders sets In Progress on every loaded order, and Unloaded on
// orders with nothing left on the vehicle after the off-loads.
func (s *Service) advanceBookingOrders(ctx context.Context, tx txScope, op *models.LoadingOperation, c *checked) error {
	loaded := lo.Associate(op.OnLoads, func(r models.LoadingOperationRow) (int, bool) { return r.BookingOrderId, true })
	for _, id := range op.BookingOrderIds() {
		bo, err := tx.store.GetBookingOrder(ctx, id, true)
		if err != nil {
			return err
		}
		if err := stillMovable(bo); err != nil {
			return err
		}
		if loaded[id] {
			bo.Status = models.BookingOrderStatusInProgress
			bo.LastShippingOrderId = utils.Ptr(c.so.ID)
			bo.CurrentStationId = utils.Ptr(op.StationId)
		} else {
			onboard, err := tx.ledger.AvailableOnShippingOrder(ctx, c.so.ID, lo.Map(bo.Freight, func(d models.BookingOrderFreightDetail, _ int) int { return d.ID })...)
			if err != nil {
				return err
			}
			if len(onboard) > 0 {
				continue
			}
			bo.Status = models.BookingOrderStatusUnloaded
			bo.CurrentStationId = utils.Ptr(op.StationId)
		}
		if err := tx.store.UpdateBookingOrder(ctx, bo); err != nil {
			return err
		}
	}
	return nil
}

// stillMovable re-checks a booking order read FOR UPDATE before its status is rewritten.
func stillMovable(bo *models.BookingOrder) error {
	if bo.DocStatus != models.DocStatusSubmitted {
		return fmt.Errorf("booking order %s: %w", bo.OrderNumber, models.ErrNotSubmitted)
	}
	if bo.Status == models.BookingOrderStatusCollected || bo.Status == models.BookingOrderStatusCancelled {
		return models.NewConflictError("booking order %s is %s", bo.OrderNumber, bo.Status)
	}
	return nil
}

// billLoadedOrders issues one invoice per auto-billed booking order covering
// its rows of this operation, and links the rows to it.
func (s *Service) billLoadedOrders(ctx context.Context, tx txScope, op *models.LoadingOperation, only map[int]bool) error {
	ids, groups := autoBillGroups(op)
	for _, id := range ids {
		if !only[id] {
			continue
		}
		bo, err := tx.store.GetBookingOrder(ctx, id, true)
		if err != nil {
			return err
		}
		rows := groups[id]
		lines, err := tx.bridge.LoadingLines(bo, rows)
		if err != nil {
			return err
		}
		inv, err := tx.bridge.CreateInvoice(ctx, bo, lines, s.loadingBillingOptions(op, bo, *rows[0].AutoBillTo))
		if err != nil {
			return fmt.Errorf("booking order %s: %w", bo.OrderNumber, err)
		}
		for i := range op.OnLoads {
			if op.OnLoads[i].BookingOrderId == id {
				op.OnLoads[i].SalesInvoiceId = utils.Ptr(inv.ID)
			}
		}
	}
	return nil
}

// CancelLoadingOperation reverses a submitted operation: its ledger entries,
// its shipping log, its invoices and the statuses it set. Nothing is reversed
// when any check fails.
func (s *Service) CancelLoadingOperation(ctx context.Context, id int) (*models.LoadingOperation, error) {
	existing, err := s.store.GetLoadingOperation(ctx, id, false)
	if err != nil {
		return nil, err
	}
	var op *models.LoadingOperation
	err = s.run(ctx, "CancelLoadingOperation", operationKeys(existing), func(ctx context.Context, tx txScope) error {
		if op, err = tx.store.GetLoadingOperation(ctx, id, true); err != nil {
			return err
		}
		if err := sameOrders(existing, op); err != nil {
			return err
		}
		switch op.DocStatus {
		case models.DocStatusCancelled:
			return fmt.Errorf("loading operation %s: %w", op.OperationNumber, models.ErrAlreadyCancelled)
		case models.DocStatusDraft:
			return fmt.Errorf("loading operation %s: %w", op.OperationNumber, models.ErrNotSubmitted)
		}
		invoices, err := s.reversible(ctx, tx, op, append(append([]models.LoadingOperationRow{}, op.OffLoads...), op.OnLoads...))
		if err != nil {
			return err
		}

		if _, err := tx.ledger.DeleteAllFor(ctx, models.Owner{Type: models.OwnerTypeLoadingOperation, Id: op.ID}); err != nil {
			return err
		}
		if _, err := tx.store.DeleteShippingLogs(ctx, op.ID); err != nil {
			return err
		}
		for _, inv := range invoices {
			if _, err := tx.bridge.CancelInvoice(ctx, inv.ID); err != nil {
				return err
			}
		}
		for _, boId := range op.BookingOrderIds() {
			if err := s.restoreStatus(ctx, tx, boId); err != nil {
				return err
			}
		}

		op.DocStatus = models.DocStatusCancelled
		return tx.store.UpdateLoadingOperation(ctx, op)
	})
	if err != nil {
		return nil, err
	}
	return op, nil
}

// reversible checks that rows of op can be taken back: their booking orders
// are not collected, their cargo has not moved on and, unless the caller is
// elevated, their invoices are unpaid. It returns those invoices.
func (s *Service) reversible(ctx context.Context, tx txScope, op *models.LoadingOperation, rows []models.LoadingOperationRow) ([]*models.Invoice, error) {
	var result *multierror.Error
	ids := lo.Uniq(lo.Map(rows, func(r models.LoadingOperationRow, _ int) int { return r.BookingOrderId }))
	orders, err := tx.store.ListBookingOrders(ctx, models.BookingOrderFilter{Ids: ids})
	if err != nil {
		return nil, err
	}
	for _, bo := range orders {
		if bo.Status == models.BookingOrderStatusCollected {
			result = multierror.Append(result, models.NewConflictError("booking order %s is already collected", bo.OrderNumber))
		}
	}

	for _, r := range rows {
		var balances []models.BookingLogBalance
		if r.ParentField == models.LoadSideOnLoads {
			balances, err = tx.ledger.AvailableOnShippingOrder(ctx, op.ShippingOrderId, r.BoDetailId)
		} else {
			balances, err = tx.ledger.AvailableAt(ctx, op.StationId, r.BoDetailId)
		}
		if err != nil {
			return nil, err
		}
		left := ledger.ByDetail(balances)[r.BoDetailId]
		if models.ExceedsAt3dp(r.NoOfPackages, left.Packages) || models.ExceedsAt3dp(r.WeightActual, left.Weight) {
			result = multierror.Append(result, models.NewConflictError(
				"%s row #%d: cargo of freight detail %d was moved by a later operation", r.ParentField, r.Idx, r.BoDetailId))
		}
	}

	invoiceIds := lo.Uniq(lo.FilterMap(rows, func(r models.LoadingOperationRow, _ int) (int, bool) {
		return utils.DereferencePtr(r.SalesInvoiceId), r.SalesInvoiceId != nil
	}))
	var invoices []*models.Invoice
	for _, invId := range invoiceIds {
		inv, err := tx.store.GetInvoice(ctx, invId, true)
		if err != nil {
			return nil, err
		}
		if !inv.IsActive() {
			continue
		}
		if inv.HasPayments() && !utils.IsElevated(ctx) {
			result = multierror.Append(result, models.NewConflictError("invoice %s is already paid", inv.InvoiceNumber))
			continue
		}
		invoices = append(invoices, inv)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return invoices, nil
}

// restoreStatus derives the status of a booking order from its latest remaining
// load or unload entry, or Booked at the source station when none is left.
func (s *Service) restoreStatus(ctx context.Context, tx txScope, boId int) error {
	bo, err := tx.store.GetBookingOrder(ctx, boId, true)
	if err != nil {
		return err
	}
	if err := stillMovable(bo); err != nil {
		return err
	}
	logs, err := tx.store.FindBookingLogs(ctx, models.BookingLogFilter{
		BookingOrderId: boId,
		Activities:     []models.BookingLogActivity{models.BookingLogActivityLoaded, models.BookingLogActivityUnloaded},
	})
	if err != nil {
		return err
	}
	var last models.BookingLog
	if len(logs) > 0 {
		last = logs[len(logs)-1]
	}
	switch {
	case len(logs) == 0:
		bo.Status = models.BookingOrderStatusBooked
		bo.CurrentStationId = utils.Ptr(bo.SourceStationId)
		bo.LastShippingOrderId = nil
	case last.Activity == models.BookingLogActivityUnloaded:
		bo.Status = models.BookingOrderStatusUnloaded
		bo.CurrentStationId = utils.Ptr(last.StationId)
	default:
		so, err := tx.store.GetShippingOrder(ctx, utils.DereferencePtr(last.ShippingOrderId), false)
		if err != nil {
			return err
		}
		bo.LastShippingOrderId = utils.Ptr(so.ID)
		if so.IsStoppedAt(last.StationId) {
			bo.Status = models.BookingOrderStatusInProgress
			bo.CurrentStationId = utils.Ptr(last.StationId)
		} else {
			bo.Status = models.BookingOrderStatusInTransit
			bo.CurrentStationId = so.CurrentStationId
		}
	}
	return tx.store.UpdateBookingOrder(ctx, bo)
}

// RemoveBookingOrders takes rows out of a submitted operation. Their ledger
// entries go, their invoices are cancelled and reissued for the rows that stay,
// and the operation totals and log are recomputed.
func (s *Service) RemoveBookingOrders(ctx context.Context, id int, rowIds []int) (*models.LoadingOperation, error) {
	if len(rowIds) == 0 {
		return nil, models.NewValidationError("no rows to remove")
	}
	existing, err := s.store.GetLoadingOperation(ctx, id, false)
	if err != nil {
		return nil, err
	}
	var op *models.LoadingOperation
	err = s.run(ctx, "RemoveBookingOrders", operationKeys(existing), func(ctx context.Context, tx txScope) error {
		if op, err = tx.store.GetLoadingOperation(ctx, id, true); err != nil {
			return err
		}
		if err := sameOrders(existing, op); err != nil {
			return err
		}
		if op.DocStatus != models.DocStatusSubmitted {
			return fmt.Errorf("loading operation %s: %w", op.OperationNumber, models.ErrNotSubmitted)
		}
		var removed []models.LoadingOperationRow
		for _, rowId := range lo.Uniq(rowIds) {
			row, ok := op.RowById(rowId)
			if !ok {
				return models.NewValidationError("row %d does not belong to loading operation %s", rowId, op.OperationNumber)
			}
			removed = append(removed, row)
		}
		gone := lo.Associate(removed, func(r models.LoadingOperationRow) (int, bool) { return r.ID, true })
		keep := func(r models.LoadingOperationRow, _ int) bool { return !gone[r.ID] }
		onLoads, offLoads := lo.Filter(op.OnLoads, keep), lo.Filter(op.OffLoads, keep)
		if len(op.OnLoads) > 0 && len(onLoads) == 0 {
			return models.NewConflictError("loading operation %s: cannot remove every on-load row", op.OperationNumber)
		}
		if len(onLoads)+len(offLoads) == 0 {
			return models.NewConflictError("loading operation %s: cannot remove every row", op.OperationNumber)
		}

		invoices, err := s.reversible(ctx, tx, op, removed)
		if err != nil {
			return err
		}
		detailIds := lo.Map(removed, func(r models.LoadingOperationRow, _ int) int { return r.BoDetailId })
		if _, err := tx.ledger.DeleteAllFor(ctx, models.Owner{Type: models.OwnerTypeLoadingOperation, Id: op.ID}, detailIds...); err != nil {
			return err
		}
		for _, inv := range invoices {
			if _, err := tx.bridge.CancelInvoice(ctx, inv.ID); err != nil {
				return err
			}
		}

		affected := lo.Uniq(lo.Map(removed, func(r models.LoadingOperationRow, _ int) int { return r.BookingOrderId }))
		op.OnLoads, op.OffLoads = onLoads, offLoads
		op.Normalize()
		op.SetTotals()
		rebill := lo.Uniq(lo.FilterMap(invoices, func(inv *models.Invoice, _ int) (int, bool) {
			return utils.DereferencePtr(inv.BookingOrderId), inv.BookingOrderId != nil
		}))
		for i := range op.OnLoads {
			if lo.Contains(rebill, op.OnLoads[i].BookingOrderId) {
				op.OnLoads[i].SalesInvoiceId = nil
			}
		}
		if err := s.billLoadedOrders(ctx, tx, op, idSet(rebill)); err != nil {
			return err
		}
		for _, boId := range affected {
			if err := s.restoreStatus(ctx, tx, boId); err != nil {
				return err
			}
		}
		if err := tx.store.UpdateLoadingOperation(ctx, op); err != nil {
			return err
		}

		logs, err := tx.store.FindShippingLogs(ctx, models.ShippingLogFilter{LoadingOperationId: op.ID})
		if err != nil || len(logs) == 0 {
			return err
		}
		if _, err := tx.store.DeleteShippingLogs(ctx, op.ID); err != nil {
			return err
		}
		return tx.store.InsertShippingLog(ctx, op.OperationLog())
	})
	if err != nil {
		return nil, err
	}
	return op, nil
}

func (s *Service) draftOperation(ctx context.Context, id int) (*models.LoadingOperation, error) {
	op, err := s.store.GetLoadingOperation(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if op.DocStatus != models.DocStatusDraft {
		return nil, fmt.Errorf("loading operation %s: %w", op.OperationNumber, models.ErrNotDraft)
	}
	return op, nil
}

func (s *Service) lockDraft(ctx context.Context, tx txScope, id int) (*models.LoadingOperation, error) {
	op, err := tx.store.GetLoadingOperation(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if op.DocStatus != models.DocStatusDraft {
		return nil, fmt.Errorf("loading operation %s: %w", op.OperationNumber, models.ErrNotDraft)
	}
	return op, nil
}
