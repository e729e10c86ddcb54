package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/freight_backend/ledger"
	"github.com/mmdatafocus/freight_backend/models"
	"github.com/mmdatafocus/freight_backend/storage/memory"
	"github.com/mmdatafocus/freight_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	bookingOrderId = 1
	detailId       = 11
	stationX       = 100
	stationY       = 200
	shippingOrder  = 7
	operationLoad  = 31
	operationDrop  = 32
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func qty(packages, weight string) models.Quantity {
	return models.NewQuantity(dec(packages), dec(weight))
}

func assertQuantity(t *testing.T, want, got models.Quantity) {
	t.Helper()
	assert.True(t, want.Packages.Equal(got.Packages), "packages: want %s, got %s", want.Packages, got.Packages)
	assert.True(t, want.Weight.Equal(got.Weight), "weight: want %s, got %s", want.Weight, got.Weight)
}

func book(t *testing.T, l *ledger.Ledger, q models.Quantity) {
	t.Helper()
	_, err := l.RecordMovement(context.Background(), ledger.Movement{
		BookingOrderId:  bookingOrderId,
		BoDetailId:      utils.Ptr(detailId),
		StationId:       stationX,
		Activity:        models.BookingLogActivityBooked,
		Quantity:        q,
		PostingDatetime: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
		Owner:           models.Owner{Type: models.OwnerTypeBookingOrder, Id: bookingOrderId},
	})
	require.NoError(t, err)
}

func move(activity models.BookingLogActivity, station, operation int, q models.Quantity, at time.Time) ledger.Movement {
	unit := models.FreightBasisPackages
	m := ledger.Movement{
		BookingOrderId:  bookingOrderId,
		BoDetailId:      utils.Ptr(detailId),
		StationId:       station,
		Activity:        activity,
		Quantity:        q,
		LoadingUnit:     &unit,
		PostingDatetime: at,
		Owner:           models.Owner{Type: models.OwnerTypeLoadingOperation, Id: operation},
	}
	if activity != models.BookingLogActivityCollected {
		m.ShippingOrderId = utils.Ptr(shippingOrder)
		m.LoadingOperationId = utils.Ptr(operation)
	} else {
		m.Owner = models.Owner{Type: models.OwnerTypeDelivery, Id: bookingOrderId}
	}
	return m
}

func TestRoundTripThroughStationsAndVehicle(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(memory.New())
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	book(t, l, qty("100", "1000"))

	available, err := l.AvailableAt(ctx, stationX)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assertQuantity(t, qty("100", "1000"), available[0].Quantity())

	_, err = l.RecordMovement(ctx, move(models.BookingLogActivityLoaded, stationX, operationLoad, qty("100", "1000"), day))
	require.NoError(t, err)

	available, err = l.AvailableAt(ctx, stationX)
	require.NoError(t, err)
	assert.Empty(t, available)

	onboard, err := l.AvailableOnShippingOrder(ctx, shippingOrder)
	require.NoError(t, err)
	require.Len(t, onboard, 1)
	assert.Equal(t, detailId, onboard[0].BoDetailId)
	assertQuantity(t, qty("100", "1000"), onboard[0].Quantity())

	_, err = l.RecordMovement(ctx, move(models.BookingLogActivityUnloaded, stationY, operationDrop, qty("100", "1000"), day.Add(time.Hour)))
	require.NoError(t, err)

	onboard, err = l.AvailableOnShippingOrder(ctx, shippingOrder)
	require.NoError(t, err)
	assert.Empty(t, onboard)

	deliverable, err := l.DeliverableAt(ctx, detailId, stationY)
	require.NoError(t, err)
	assertQuantity(t, qty("100", "1000"), deliverable)

	_, err = l.RecordMovement(ctx, move(models.BookingLogActivityCollected, stationY, 0, qty("100", "1000"), day.Add(2*time.Hour)))
	require.NoError(t, err)

	delivered, err := l.DeliveredFor(ctx, detailId)
	require.NoError(t, err)
	assertQuantity(t, qty("100", "1000"), delivered)

	balance, err := l.Balance(ctx, detailId)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestPartialLoadLeavesRemainderAvailable(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(memory.New())
	book(t, l, qty("100", "1000"))

	_, err := l.RecordMovement(ctx, move(models.BookingLogActivityLoaded, stationX, operationLoad, qty("40", "400"), time.Now()))
	require.NoError(t, err)

	available, err := l.AvailableAt(ctx, stationX, detailId)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assertQuantity(t, qty("60", "600"), available[0].Quantity())
}

func TestLoadingUnitMustStayConsistent(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(memory.New())
	book(t, l, qty("100", "1000"))

	_, err := l.RecordMovement(ctx, move(models.BookingLogActivityLoaded, stationX, operationLoad, qty("10", "100"), time.Now()))
	require.NoError(t, err)

	m := move(models.BookingLogActivityLoaded, stationX, operationDrop, qty("10", "100"), time.Now())
	weight := models.FreightBasisWeight
	m.LoadingUnit = &weight
	_, err = l.RecordMovement(ctx, m)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConflict))
}

func TestDeleteAllForRemovesOnlyOwnedEntries(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(memory.New())
	book(t, l, qty("100", "1000"))

	_, err := l.RecordMovement(ctx, move(models.BookingLogActivityLoaded, stationX, operationLoad, qty("100", "1000"), time.Now()))
	require.NoError(t, err)

	deleted, err := l.DeleteAllFor(ctx, models.Owner{Type: models.OwnerTypeLoadingOperation, Id: operationLoad})
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	available, err := l.AvailableAt(ctx, stationX)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assertQuantity(t, qty("100", "1000"), available[0].Quantity())
}

func TestHistoryCarriesRunningBalances(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(memory.New())
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	book(t, l, qty("100", "1000"))

	_, err := l.RecordMovements(ctx, []ledger.Movement{
		move(models.BookingLogActivityLoaded, stationX, operationLoad, qty("100", "1000"), day),
		move(models.BookingLogActivityUnloaded, stationY, operationDrop, qty("100", "1000"), day.Add(time.Hour)),
		move(models.BookingLogActivityCollected, stationY, 0, qty("30", "300"), day.Add(2*time.Hour)),
	})
	require.NoError(t, err)

	history, err := l.History(ctx, bookingOrderId)
	require.NoError(t, err)
	require.Len(t, history, 4)

	assert.Equal(t, models.BookingLogActivityBooked, history[0].Activity)
	assertQuantity(t, qty("100", "1000"), history[0].AtStation)

	assertQuantity(t, qty("0", "0"), history[1].AtStation)
	assertQuantity(t, qty("100", "1000"), history[1].Onboard)

	assertQuantity(t, qty("100", "1000"), history[2].AtStation)
	assertQuantity(t, qty("0", "0"), history[2].Onboard)

	assertQuantity(t, qty("70", "700"), history[3].AtStation)
	assertQuantity(t, qty("30", "300"), history[3].Delivered)
}

func TestCheckConservation(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(memory.New())
	book(t, l, qty("100", "1000"))

	bo := &models.BookingOrder{
		ID:          bookingOrderId,
		OrderNumber: "BO-00001",
		DocStatus:   models.DocStatusSubmitted,
		Freight: []models.BookingOrderFreightDetail{
			{ID: detailId, Idx: 1, BasedOn: models.FreightBasisPackages, NoOfPackages: dec("100"), WeightActual: dec("1000")},
		},
	}
	require.NoError(t, l.CheckConservation(ctx, bo))

	bo.Freight[0].NoOfPackages = dec("50")
	err := l.CheckConservation(ctx, bo)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConflict))
}

func TestPlan(t *testing.T) {
	detail := models.BookingOrderFreightDetail{
		ID:           detailId,
		BasedOn:      models.FreightBasisPackages,
		NoOfPackages: dec("50"),
		WeightActual: dec("500"),
	}

	t.Run("weight unit converts to packages", func(t *testing.T) {
		q, err := ledger.Plan(detail, models.FreightBasisWeight, dec("20"), qty("50", "500"))
		require.NoError(t, err)
		assertQuantity(t, qty("2", "20"), q)
	})

	t.Run("whole balance is taken exactly", func(t *testing.T) {
		q, err := ledger.Plan(detail, models.FreightBasisPackages, dec("30"), qty("30", "300.0001"))
		require.NoError(t, err)
		assertQuantity(t, qty("30", "300.0001"), q)
	})

	t.Run("more than available", func(t *testing.T) {
		big := models.BookingOrderFreightDetail{ID: detailId, BasedOn: models.FreightBasisPackages, NoOfPackages: dec("100")}
		_, err := ledger.Plan(big, models.FreightBasisPackages, dec("101"), qty("100", "0"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrQuantityExceeded))
	})

	t.Run("zero denominator", func(t *testing.T) {
		noWeight := models.BookingOrderFreightDetail{ID: detailId, BasedOn: models.FreightBasisPackages, NoOfPackages: dec("10")}
		_, err := ledger.Plan(noWeight, models.FreightBasisWeight, dec("5"), qty("10", "10"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrInvalidConversion))
	})
}
