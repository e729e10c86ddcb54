package workflow_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/mmdatafocus/freight_backend/config"
	"github.com/mmdatafocus/freight_backend/freight"
	"github.com/mmdatafocus/freight_backend/models"
	"github.com/mmdatafocus/freight_backend/storage/memory"
	"github.com/mmdatafocus/freight_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// deferredOperation submits a loading operation whose shipping log is left to the worker.
func deferredOperation(t *testing.T) (context.Context, *memory.Store, *freight.Service, *models.LoadingOperation, config.PubSubMessage) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	svc := freight.NewService(store,
		freight.WithLogger(quietLogger()),
		freight.WithDeferredOperationLogs(true),
		freight.WithClock(func() time.Time { return time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC) }),
	)

	from, err := svc.CreateStation(ctx, models.NewStation{Name: "Bago"})
	require.NoError(t, err)
	to, err := svc.CreateStation(ctx, models.NewStation{Name: "Taunggyi"})
	require.NoError(t, err)
	vehicle, err := svc.CreateVehicle(ctx, models.NewVehicle{RegistrationNo: "bgo-7781"})
	require.NoError(t, err)
	consignor, err := svc.CreateBookingParty(ctx, models.NewBookingParty{PartyName: "Myint Traders"})
	require.NoError(t, err)
	consignee, err := svc.CreateBookingParty(ctx, models.NewBookingParty{PartyName: "Inle Grocers"})
	require.NoError(t, err)

	bo, err := svc.CreateBookingOrder(ctx, models.NewBookingOrder{
		SourceStationId:      from.ID,
		DestinationStationId: to.ID,
		ConsignorId:          consignor.ID,
		ConsigneeId:          consignee.ID,
		Freight: []models.NewFreightDetail{{
			BasedOn:      models.FreightBasisPackages,
			NoOfPackages: decimal.NewFromInt(12),
			WeightActual: decimal.NewFromInt(240),
			Rate:         decimal.NewFromInt(1500),
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
			Qty:            decimal.NewFromInt(12),
		}},
	})
	require.NoError(t, err)
	op, err = svc.SubmitLoadingOperation(ctx, op.ID)
	require.NoError(t, err)

	records, err := store.ListOutboxRecords(ctx, models.OutboxFilter{ReferenceType: models.OutboxReferenceOperationLogs, ReferenceId: op.ID})
	require.NoError(t, err)
	require.Len(t, records, 1)
	return ctx, store, svc, op, models.ConvertToPubSubMessage(*records[0])
}

func operationLogs(t *testing.T, ctx context.Context, store *memory.Store, opId int) []models.ShippingLog {
	t.Helper()
	logs, err := store.FindShippingLogs(ctx, models.ShippingLogFilter{LoadingOperationId: opId})
	require.NoError(t, err)
	return logs
}

func TestOperationLogsJobWritesLogOnce(t *testing.T) {
	ctx, store, _, op, msg := deferredOperation(t)
	require.Empty(t, operationLogs(t, ctx, store, op.ID))

	require.NoError(t, workflow.ProcessJob(ctx, store, quietLogger(), msg))
	logs := operationLogs(t, ctx, store, op.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, models.ShippingLogActivityOperation, logs[0].Activity)
	assert.True(t, decimal.NewFromInt(12).Equal(logs[0].OnLoadPackages))
	assert.True(t, decimal.NewFromInt(240).Equal(logs[0].OnLoadWeight))

	// redelivery
	require.NoError(t, workflow.ProcessJob(ctx, store, quietLogger(), msg))
	assert.Len(t, operationLogs(t, ctx, store, op.ID), 1)
}

func TestOperationLogsJobSkipsCancelledOperation(t *testing.T) {
	ctx, store, svc, op, msg := deferredOperation(t)
	_, err := svc.CancelLoadingOperation(ctx, op.ID)
	require.NoError(t, err)

	require.NoError(t, workflow.ProcessJob(ctx, store, quietLogger(), msg))
	assert.Empty(t, operationLogs(t, ctx, store, op.ID))
}

func TestOperationLogsJobForMissingOperation(t *testing.T) {
	store := memory.New()
	err := workflow.ProcessJob(context.Background(), store, quietLogger(), config.PubSubMessage{
		ID:            7,
		ReferenceType: models.OutboxReferenceOperationLogs,
		ReferenceId:   404,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUnknownJobIsDropped(t *testing.T) {
	err := workflow.ProcessJob(context.Background(), memory.New(), quietLogger(), config.PubSubMessage{ReferenceType: "Reconcile", ReferenceId: 1})
	assert.NoError(t, err)
}

func TestPublishBackoff(t *testing.T) {
	assert.Equal(t, 5*time.Second, workflow.PublishBackoff(5*time.Second, 1))
	assert.Equal(t, 20*time.Second, workflow.PublishBackoff(5*time.Second, 3))
	assert.Equal(t, 10*time.Minute, workflow.PublishBackoff(5*time.Second, 30))
}
