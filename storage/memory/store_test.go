package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/freight_backend/models"
	"github.com/mmdatafocus/freight_backend/storage"
	"github.com/mmdatafocus/freight_backend/storage/memory"
	"github.com/mmdatafocus/freight_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.CreateStation(ctx, &models.Station{Name: "Yangon"}))

	boom := errors.New("boom")
	err := store.RunInTx(ctx, func(tx storage.Store) error {
		if err := tx.CreateStation(ctx, &models.Station{Name: "Mandalay"}); err != nil {
			return err
		}
		if _, err := tx.NextName(ctx, models.DocTypeBookingOrder); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.GetStation(ctx, 2)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	name, err := store.NextName(ctx, models.DocTypeBookingOrder)
	require.NoError(t, err)
	assert.Equal(t, "BO-00001", name)
}

func TestRunInTxCommits(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	var id int
	require.NoError(t, store.RunInTx(ctx, func(tx storage.Store) error {
		station := &models.Station{Name: "Bago"}
		if err := tx.CreateStation(ctx, station); err != nil {
			return err
		}
		id = station.ID
		return nil
	}))
	station, err := store.GetStation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Bago", station.Name)
}

func TestReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	bo := &models.BookingOrder{
		Status:  models.BookingOrderStatusDraft,
		Freight: []models.BookingOrderFreightDetail{{Idx: 1, BasedOn: models.FreightBasisPackages, NoOfPackages: decimal.NewFromInt(5)}},
	}
	require.NoError(t, store.CreateBookingOrder(ctx, bo))
	require.NotZero(t, bo.Freight[0].ID)

	got, err := store.GetBookingOrder(ctx, bo.ID, false)
	require.NoError(t, err)
	got.Status = models.BookingOrderStatusBooked
	got.Freight[0].NoOfPackages = decimal.NewFromInt(99)

	again, err := store.GetBookingOrder(ctx, bo.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.BookingOrderStatusDraft, again.Status)
	assert.True(t, again.Freight[0].NoOfPackages.Equal(decimal.NewFromInt(5)))
}

func TestSumBookingLogsGroupsAndFilters(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	unit := models.FreightBasisPackages
	owner := models.Owner{Type: models.OwnerTypeBookingOrder, Id: 1}
	now := time.Now()

	logs := []*models.BookingLog{
		{BookingOrderId: 1, BoDetailId: utils.Ptr(10), StationId: 1, Activity: models.BookingLogActivityBooked,
			NoOfPackages: decimal.NewFromInt(10), WeightActual: decimal.NewFromInt(100), PostingDatetime: now, OwnerType: owner.Type, OwnerId: owner.Id},
		{BookingOrderId: 1, BoDetailId: utils.Ptr(11), StationId: 1, Activity: models.BookingLogActivityBooked,
			NoOfPackages: decimal.NewFromInt(4), WeightActual: decimal.NewFromInt(40), PostingDatetime: now, OwnerType: owner.Type, OwnerId: owner.Id},
		{BookingOrderId: 1, BoDetailId: utils.Ptr(10), StationId: 1, Activity: models.BookingLogActivityLoaded, ShippingOrderId: utils.Ptr(3),
			NoOfPackages: decimal.NewFromInt(-6), WeightActual: decimal.NewFromInt(-60), LoadingUnit: &unit, PostingDatetime: now.Add(time.Minute),
			OwnerType: models.OwnerTypeLoadingOperation, OwnerId: 7},
	}
	require.NoError(t, store.InsertBookingLogs(ctx, logs))

	byDetail, err := store.SumBookingLogs(ctx, models.BookingLogFilter{StationId: 1}, models.GroupByDetail)
	require.NoError(t, err)
	require.Len(t, byDetail, 2)
	sums := map[int]decimal.Decimal{}
	for _, b := range byDetail {
		sums[b.BoDetailId] = b.NoOfPackages
	}
	assert.True(t, sums[10].Equal(decimal.NewFromInt(4)))
	assert.True(t, sums[11].Equal(decimal.NewFromInt(4)))

	byOrder, err := store.SumBookingLogs(ctx, models.BookingLogFilter{BookingOrderId: 1}, models.GroupByBookingOrder)
	require.NoError(t, err)
	require.Len(t, byOrder, 1)
	assert.True(t, byOrder[0].WeightActual.Equal(decimal.NewFromInt(80)))

	deleted, err := store.DeleteBookingLogs(ctx, models.Owner{Type: models.OwnerTypeLoadingOperation, Id: 7})
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
}

func TestInsertBookingLogsRejectsWrongSign(t *testing.T) {
	store := memory.New()
	err := store.InsertBookingLogs(context.Background(), []*models.BookingLog{{
		BookingOrderId: 1, StationId: 1, Activity: models.BookingLogActivityBooked,
		NoOfPackages: decimal.NewFromInt(-1), PostingDatetime: time.Now(),
		OwnerType: models.OwnerTypeBookingOrder, OwnerId: 1,
	}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrValidation))
}
