package memory

import (
	"context"
	"slices"

	"github.com/mmdatafocus/freight_backend/models"
	"github.com/mmdatafocus/freight_backend/utils"
	"github.com/samber/lo"
)

func (s *Store) InsertBookingLogs(ctx context.Context, logs []*models.BookingLog) error {
	defer s.lock()()
	for _, log := range logs {
		if err := log.Validate(); err != nil {
			return err
		}
	}
	for _, log := range logs {
		log.ID = s.st.nextId("booking_logs")
		stamp(&log.CreatedAt, nil)
		s.st.bookingLogs[log.ID] = clonePtr(log)
	}
	return nil
}

func (s *Store) DeleteBookingLogs(ctx context.Context, owner models.Owner, detailIds ...int) (int64, error) {
	defer s.lock()()
	var deleted int64
	for id, log := range s.st.bookingLogs {
		if log.OwnerType != owner.Type || log.OwnerId != owner.Id {
			continue
		}
		if len(detailIds) > 0 && (log.BoDetailId == nil || !slices.Contains(detailIds, *log.BoDetailId)) {
			continue
		}
		delete(s.st.bookingLogs, id)
		deleted++
	}
	return deleted, nil
}

func (s *Store) FindBookingLogs(ctx context.Context, filter models.BookingLogFilter) ([]models.BookingLog, error) {
	defer s.lock()()
	return s.findBookingLogs(filter), nil
}

func (s *Store) findBookingLogs(filter models.BookingLogFilter) []models.BookingLog {
	var results []models.BookingLog
	for _, log := range s.st.bookingLogs {
		if matchBookingLog(filter, log) {
			results = append(results, *log)
		}
	}
	slices.SortFunc(results, func(a, b models.BookingLog) int {
		if c := a.PostingDatetime.Compare(b.PostingDatetime); c != 0 {
			return c
		}
		return a.ID - b.ID
	})
	return results
}

func (s *Store) SumBookingLogs(ctx context.Context, filter models.BookingLogFilter, groupBy models.BookingLogGroupBy) ([]models.BookingLogBalance, error) {
	defer s.lock()()
	logs := s.findBookingLogs(filter)

	type key struct{ bookingOrderId, detailId int }
	groups := lo.GroupBy(logs, func(l models.BookingLog) key {
		if groupBy == models.GroupByBookingOrder {
			return key{bookingOrderId: l.BookingOrderId}
		}
		return key{bookingOrderId: l.BookingOrderId, detailId: utils.DereferencePtr(l.BoDetailId)}
	})

	balances := make([]models.BookingLogBalance, 0, len(groups))
	for k, entries := range groups {
		b := models.BookingLogBalance{BookingOrderId: k.bookingOrderId, BoDetailId: k.detailId}
		for _, e := range entries {
			b.NoOfPackages = b.NoOfPackages.Add(e.NoOfPackages)
			b.WeightActual = b.WeightActual.Add(e.WeightActual)
		}
		balances = append(balances, b)
	}
	slices.SortFunc(balances, func(a, b models.BookingLogBalance) int {
		if a.BookingOrderId != b.BookingOrderId {
			return a.BookingOrderId - b.BookingOrderId
		}
		return a.BoDetailId - b.BoDetailId
	})
	return balances, nil
}

func matchBookingLog(f models.BookingLogFilter, l *models.BookingLog) bool {
	detailId := utils.DereferencePtr(l.BoDetailId)
	switch {
	case f.BookingOrderId != 0 && l.BookingOrderId != f.BookingOrderId:
		return false
	case len(f.BookingOrderIds) > 0 && !slices.Contains(f.BookingOrderIds, l.BookingOrderId):
		return false
	case f.BoDetailId != 0 && detailId != f.BoDetailId:
		return false
	case len(f.BoDetailIds) > 0 && !slices.Contains(f.BoDetailIds, detailId):
		return false
	case f.StationId != 0 && l.StationId != f.StationId:
		return false
	case f.ShippingOrderId != 0 && utils.DereferencePtr(l.ShippingOrderId) != f.ShippingOrderId:
		return false
	case f.LoadingOperationId != 0 && utils.DereferencePtr(l.LoadingOperationId) != f.LoadingOperationId:
		return false
	case len(f.Activities) > 0 && !slices.Contains(f.Activities, l.Activity):
		return false
	case f.Owner != nil && (l.OwnerType != f.Owner.Type || l.OwnerId != f.Owner.Id):
		return false
	case f.ExcludeOwner != nil && l.OwnerType == f.ExcludeOwner.Type && l.OwnerId == f.ExcludeOwner.Id:
		return false
	}
	return true
}
