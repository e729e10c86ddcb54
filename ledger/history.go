package ledger

import (
	"context"

	"github.com/mmdatafocus/freight_backend/models"
)

// HistoryEntry is one ledger entry with the balances that held right after it.
type HistoryEntry struct {
	models.BookingLog
	// AtStation is what remained at the entry's station.
	AtStation models.Quantity `json:"at_station"`
	// Onboard is what was loaded on vehicles and not yet unloaded.
	Onboard   models.Quantity `json:"onboard"`
	Delivered models.Quantity `json:"delivered"`
}

// History replays the entries of a booking order in posting order.
func (l *Ledger) History(ctx context.Context, bookingOrderId int) ([]HistoryEntry, error) {
	logs, err := l.store.FindBookingLogs(ctx, models.BookingLogFilter{BookingOrderId: bookingOrderId})
	if err != nil {
		return nil, err
	}

	stations := make(map[int]models.Quantity)
	onboard := models.Quantity{}
	delivered := models.Quantity{}
	history := make([]HistoryEntry, 0, len(logs))
	for _, log := range logs {
		q := log.Quantity()
		stations[log.StationId] = stations[log.StationId].Add(q)
		switch log.Activity {
		case models.BookingLogActivityLoaded, models.BookingLogActivityUnloaded:
			onboard = onboard.Sub(q)
		case models.BookingLogActivityCollected:
			delivered = delivered.Sub(q)
		}
		history = append(history, HistoryEntry{
			BookingLog: log,
			AtStation:  stations[log.StationId],
			Onboard:    onboard,
			Delivered:  delivered,
		})
	}
	return history, nil
}
