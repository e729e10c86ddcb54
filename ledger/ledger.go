// Package ledger is the freight ledger: the append-only booking log and the
// balances derived from it. Balances are never stored; every query sums the
// signed entries again.
package ledger

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/mmdatafocus/freight_backend/models"
	"github.com/mmdatafocus/freight_backend/storage"
	"github.com/shopspring/decimal"
)

// Ledger reads and writes the booking log through one store, usually a transaction.
type Ledger struct {
	store storage.Store
}

func New(store storage.Store) *Ledger {
	return &Ledger{store: store}
}

// Movement is one quantity change to record. Quantity is a magnitude; the
// stored sign follows the activity.
type Movement struct {
	BookingOrderId     int
	BoDetailId         *int
	StationId          int
	Activity           models.BookingLogActivity
	Quantity           models.Quantity
	LoadingUnit        *models.FreightBasis
	ShippingOrderId    *int
	LoadingOperationId *int
	PostingDatetime    time.Time
	Owner              models.Owner
}

func (m Movement) entry() *models.BookingLog {
	q := m.Quantity.Round()
	if m.Activity.Sign() < 0 {
		q = q.Neg()
	}
	return &models.BookingLog{
		BookingOrderId:     m.BookingOrderId,
		BoDetailId:         m.BoDetailId,
		StationId:          m.StationId,
		ShippingOrderId:    m.ShippingOrderId,
		LoadingOperationId: m.LoadingOperationId,
		Activity:           m.Activity,
		NoOfPackages:       q.Packages,
		WeightActual:       q.Weight,
		LoadingUnit:        m.LoadingUnit,
		PostingDatetime:    m.PostingDatetime,
		OwnerType:          m.Owner.Type,
		OwnerId:            m.Owner.Id,
	}
}

// RecordMovement appends one ledger entry and returns it with its id.
func (l *Ledger) RecordMovement(ctx context.Context, m Movement) (*models.BookingLog, error) {
	entries, err := l.RecordMovements(ctx, []Movement{m})
	if err != nil {
		return nil, err
	}
	return entries[0], nil
}

// RecordMovements appends entries in order after checking that every freight
// detail keeps a single loading unit.
func (l *Ledger) RecordMovements(ctx context.Context, movements []Movement) ([]*models.BookingLog, error) {
	var result *multierror.Error
	units := make(map[int]models.FreightBasis)
	entries := make([]*models.BookingLog, 0, len(movements))
	for _, m := range movements {
		entry := m.entry()
		if err := entry.Validate(); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if m.Activity != models.BookingLogActivityBooked && m.BoDetailId != nil && m.LoadingUnit != nil {
			detailId := *m.BoDetailId
			unit, seen := units[detailId]
			if !seen {
				var err error
				if unit, seen, err = l.TrackedUnit(ctx, detailId); err != nil {
					return nil, err
				}
			}
			if seen && unit != *m.LoadingUnit {
				result = multierror.Append(result, models.NewConflictError(
					"freight detail %d is already tracked in %s and cannot be moved in %s", detailId, unit, *m.LoadingUnit))
				continue
			}
			units[detailId] = *m.LoadingUnit
		}
		entries = append(entries, entry)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	if err := l.store.InsertBookingLogs(ctx, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// TrackedUnit returns the loading unit of the first non-Booked entry of a freight detail.
func (l *Ledger) TrackedUnit(ctx context.Context, detailId int) (models.FreightBasis, bool, error) {
	logs, err := l.store.FindBookingLogs(ctx, models.BookingLogFilter{
		BoDetailId: detailId,
		Activities: []models.BookingLogActivity{
			models.BookingLogActivityLoaded, models.BookingLogActivityUnloaded, models.BookingLogActivityCollected,
		},
	})
	if err != nil {
		return "", false, err
	}
	for _, log := range logs {
		if log.LoadingUnit != nil {
			return *log.LoadingUnit, true, nil
		}
	}
	return "", false, nil
}

// AvailableAt lists freight details with cargo waiting at a station, optionally limited to detailIds.
func (l *Ledger) AvailableAt(ctx context.Context, stationId int, detailIds ...int) ([]models.BookingLogBalance, error) {
	balances, err := l.store.SumBookingLogs(ctx, models.BookingLogFilter{
		StationId:   stationId,
		BoDetailIds: detailIds,
	}, models.GroupByDetail)
	if err != nil {
		return nil, err
	}
	return positive(balances), nil
}

// AvailableOnShippingOrder lists freight details loaded onto a shipping order and not yet unloaded.
func (l *Ledger) AvailableOnShippingOrder(ctx context.Context, shippingOrderId int, detailIds ...int) ([]models.BookingLogBalance, error) {
	balances, err := l.store.SumBookingLogs(ctx, models.BookingLogFilter{
		ShippingOrderId: shippingOrderId,
		BoDetailIds:     detailIds,
		Activities:      []models.BookingLogActivity{models.BookingLogActivityLoaded, models.BookingLogActivityUnloaded},
	}, models.GroupByDetail)
	if err != nil {
		return nil, err
	}
	for i := range balances {
		balances[i].NoOfPackages = balances[i].NoOfPackages.Neg()
		balances[i].WeightActual = balances[i].WeightActual.Neg()
	}
	return positive(balances), nil
}

// DeliveredFor is the collected quantity of a freight detail, as a positive quantity.
func (l *Ledger) DeliveredFor(ctx context.Context, detailId int) (models.Quantity, error) {
	q, err := l.sum(ctx, models.BookingLogFilter{
		BoDetailId: detailId,
		Activities: []models.BookingLogActivity{models.BookingLogActivityCollected},
	})
	return q.Neg(), err
}

// DeliverableAt is the quantity of a freight detail standing at a station and free to collect.
func (l *Ledger) DeliverableAt(ctx context.Context, detailId, stationId int) (models.Quantity, error) {
	return l.sum(ctx, models.BookingLogFilter{BoDetailId: detailId, StationId: stationId})
}

// Balance is the sum of every entry of a freight detail: what is booked and not yet collected.
func (l *Ledger) Balance(ctx context.Context, detailId int) (models.Quantity, error) {
	return l.sum(ctx, models.BookingLogFilter{BoDetailId: detailId})
}

func (l *Ledger) sum(ctx context.Context, filter models.BookingLogFilter) (models.Quantity, error) {
	balances, err := l.store.SumBookingLogs(ctx, filter, models.GroupByDetail)
	if err != nil {
		return models.Quantity{}, err
	}
	total := models.Quantity{}
	for _, b := range balances {
		total = total.Add(b.Quantity())
	}
	return total, nil
}

// DeleteAllFor removes the entries owned by a transaction, limited to detailIds when given.
func (l *Ledger) DeleteAllFor(ctx context.Context, owner models.Owner, detailIds ...int) (int64, error) {
	return l.store.DeleteBookingLogs(ctx, owner, detailIds...)
}

// CheckConservation verifies that no freight detail of bo holds a negative
// balance or more than was booked, in total or at any station or vehicle.
func (l *Ledger) CheckConservation(ctx context.Context, bo *models.BookingOrder) error {
	logs, err := l.store.FindBookingLogs(ctx, models.BookingLogFilter{BookingOrderId: bo.ID})
	if err != nil {
		return err
	}
	var result *multierror.Error
	for _, row := range bo.Freight {
		declared := row.Declared()
		total := models.Quantity{}
		for _, log := range logs {
			if log.BoDetailId != nil && *log.BoDetailId == row.ID {
				total = total.Add(log.Quantity())
			}
		}
		if total.Round().IsNegative() {
			result = multierror.Append(result, models.NewConflictError(
				"booking order %s row #%d: ledger balance %s/%s is negative",
				bo.OrderNumber, row.Idx, total.Packages, total.Weight))
		}
		if bo.DocStatus == models.DocStatusSubmitted &&
			(models.ExceedsAt3dp(total.Packages, declared.Packages) || models.ExceedsAt3dp(total.Weight, declared.Weight)) {
			result = multierror.Append(result, models.NewConflictError(
				"booking order %s row #%d: ledger balance %s/%s exceeds booked %s/%s",
				bo.OrderNumber, row.Idx, total.Packages, total.Weight, declared.Packages, declared.Weight))
		}
	}
	return result.ErrorOrNil()
}

// ByDetail indexes balances by freight detail.
func ByDetail(balances []models.BookingLogBalance) map[int]models.Quantity {
	out := make(map[int]models.Quantity, len(balances))
	for _, b := range balances {
		out[b.BoDetailId] = out[b.BoDetailId].Add(b.Quantity())
	}
	return out
}

// positive keeps groups with a balance above zero at the 3 decimal place tolerance.
func positive(balances []models.BookingLogBalance) []models.BookingLogBalance {
	out := balances[:0]
	for _, b := range balances {
		if b.NoOfPackages.Round(3).IsPositive() || b.WeightActual.Round(3).IsPositive() {
			out = append(out, b)
		}
	}
	return out
}

// Plan converts a requested quantity in unit into the packages and weight to
// move, given what is available. Moving everything available takes both
// measures whole so no rounding residue is left behind.
func Plan(detail models.BookingOrderFreightDetail, unit models.FreightBasis, qty decimal.Decimal, available models.Quantity) (models.Quantity, error) {
	if !qty.IsPositive() {
		return models.Quantity{}, models.NewValidationError("freight detail %d: qty must be greater than zero", detail.ID)
	}
	limit := available.In(unit)
	if models.ExceedsAt3dp(qty, limit) {
		return models.Quantity{}, models.NewQuantityExceededError(
			"freight detail %d: requested %s %s exceeds available %s", detail.ID, qty, unit, limit)
	}
	if qty.Round(3).Equal(limit.Round(3)) {
		return available, nil
	}
	q, err := detail.Convert(unit, qty)
	if err != nil {
		return models.Quantity{}, err
	}
	q.Packages = decimal.Min(q.Packages, available.Packages)
	q.Weight = decimal.Min(q.Weight, available.Weight)
	return q, nil
}
