package mysql_test

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/mmdatafocus/freight_backend/config"
	"github.com/mmdatafocus/freight_backend/freight"
	"github.com/mmdatafocus/freight_backend/ledger"
	"github.com/mmdatafocus/freight_backend/models"
	"github.com/mmdatafocus/freight_backend/storage"
	"github.com/mmdatafocus/freight_backend/storage/mysql"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openStore needs INTEGRATION_TESTS=1 and TEST_DB_DSN pointing at a scratch database.
func openStore(t *testing.T) *mysql.Store {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if os.Getenv("INTEGRATION_TESTS") != "1" || dsn == "" {
		t.Skip("set INTEGRATION_TESTS=1 and TEST_DB_DSN to run mysql tests")
	}
	db, err := config.OpenDatabase(dsn)
	require.NoError(t, err)
	require.NoError(t, models.MigrateTable(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return mysql.New(db)
}

func unique(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

func TestRunInTxRollsBack(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	name := unique("Pyay")

	boom := errors.New("boom")
	err := store.RunInTx(ctx, func(tx storage.Store) error {
		if err := tx.CreateStation(ctx, &models.Station{Name: name}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, store.DB().Model(&models.Station{}).Where("name = ?", name).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDuplicateStationIsConflict(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	name := unique("Magway")

	require.NoError(t, store.CreateStation(ctx, &models.Station{Name: name}))
	err := store.CreateStation(ctx, &models.Station{Name: name})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestLoadingRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	svc := freight.NewService(store, freight.WithLogger(logger), freight.WithDeferredOperationLogs(false))

	from, err := svc.CreateStation(ctx, models.NewStation{Name: unique("Hpa-an")})
	require.NoError(t, err)
	to, err := svc.CreateStation(ctx, models.NewStation{Name: unique("Dawei")})
	require.NoError(t, err)
	vehicle, err := svc.CreateVehicle(ctx, models.NewVehicle{RegistrationNo: unique("hpa")})
	require.NoError(t, err)
	consignor, err := svc.CreateBookingParty(ctx, models.NewBookingParty{PartyName: "Thaton Rice Mill"})
	require.NoError(t, err)
	consignee, err := svc.CreateBookingParty(ctx, models.NewBookingParty{PartyName: "Dawei Wholesale"})
	require.NoError(t, err)

	bo, err := svc.CreateBookingOrder(ctx, models.NewBookingOrder{
		SourceStationId:      from.ID,
		DestinationStationId: to.ID,
		ConsignorId:          consignor.ID,
		ConsigneeId:          consignee.ID,
		Freight: []models.NewFreightDetail{{
			BasedOn:      models.FreightBasisPackages,
			NoOfPackages: decimal.NewFromInt(8),
			WeightActual: decimal.NewFromInt(160),
			Rate:         decimal.NewFromInt(900),
		}},
	})
	require.NoError(t, err)
	bo, err = svc.SubmitBookingOrder(ctx, bo.ID)
	require.NoError(t, err)

	so, err := svc.CreateShippingOrder(ctx, models.NewShippingOrder{VehicleId: vehicle.ID, InitialStationId: from.ID, FinalStationId: to.ID})
	require.NoError(t, err)
	_, err = svc.SubmitShippingOrder(ctx, so.ID)
	require.NoError(t, err)

	op, err := svc.CreateLoadingOperation(ctx, models.NewLoadingOperation{
		StationId:       from.ID,
		ShippingOrderId: so.ID,
		OnLoads: []models.NewLoadingRow{{
			BookingOrderId: bo.ID,
			BoDetailId:     bo.Freight[0].ID,
			LoadingUnit:    models.FreightBasisPackages,
			Qty:            decimal.NewFromInt(8),
		}},
	})
	require.NoError(t, err)
	op, err = svc.SubmitLoadingOperation(ctx, op.ID)
	require.NoError(t, err)

	onboard, err := ledger.New(store).AvailableOnShippingOrder(ctx, so.ID, bo.Freight[0].ID)
	require.NoError(t, err)
	require.Len(t, onboard, 1)
	assert.True(t, decimal.NewFromInt(8).Equal(onboard[0].NoOfPackages))

	logs, err := store.FindShippingLogs(ctx, models.ShippingLogFilter{LoadingOperationId: op.ID})
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	_, err = svc.CancelLoadingOperation(ctx, op.ID)
	require.NoError(t, err)
	onboard, err = ledger.New(store).AvailableOnShippingOrder(ctx, so.ID, bo.Freight[0].ID)
	require.NoError(t, err)
	for _, b := range onboard {
		assert.True(t, b.NoOfPackages.IsZero())
	}
}
