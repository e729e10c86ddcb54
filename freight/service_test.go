package freight_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/mmdatafocus/freight_backend/config"
	"github.com/mmdatafocus/freight_backend/freight"
	"github.com/mmdatafocus/freight_backend/models"
	"github.com/mmdatafocus/freight_backend/storage/memory"
	"github.com/mmdatafocus/freight_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var settings = config.FreightSettings{
	FreightItemPackages: "FREIGHT-PKG",
	FreightItemWeight:   "FREIGHT-WT",
	ChargeItemPrefix:    "CHG-",
	DefaultCashAccount:  "Cash",
	ReceivableAccount:   "Debtors",
	PayableAccount:      "Creditors",
	CustomerGroup:       "Freight Customers",
	SupplierGroup:       "Freight Vendors",
	DefaultPhoneRegion:  "MM",
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// network is a small freight network: two stations, one vehicle and two parties.
type network struct {
	t         *testing.T
	ctx       context.Context
	store     *memory.Store
	svc       *freight.Service
	yangon    int
	mandalay  int
	vehicle   int
	consignor int
	consignee int
}

func newNetwork(t *testing.T, opts ...freight.Option) *network {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	store := memory.New()
	opts = append([]freight.Option{
		freight.WithSettings(settings),
		freight.WithLogger(logger),
		freight.WithDeferredOperationLogs(false),
		freight.WithClock(func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		}),
	}, opts...)
	n := &network{t: t, ctx: context.Background(), store: store, svc: freight.NewService(store, opts...)}

	yangon, err := n.svc.CreateStation(n.ctx, models.NewStation{Name: "Yangon"})
	require.NoError(t, err)
	mandalay, err := n.svc.CreateStation(n.ctx, models.NewStation{Name: "Mandalay"})
	require.NoError(t, err)
	vehicle, err := n.svc.CreateVehicle(n.ctx, models.NewVehicle{RegistrationNo: "ygn-4521"})
	require.NoError(t, err)
	consignor, err := n.svc.CreateBookingParty(n.ctx, models.NewBookingParty{PartyName: "Golden Rice Trading"})
	require.NoError(t, err)
	consignee, err := n.svc.CreateBookingParty(n.ctx, models.NewBookingParty{PartyName: "Shwe Mart"})
	require.NoError(t, err)

	n.yangon, n.mandalay, n.vehicle = yangon.ID, mandalay.ID, vehicle.ID
	n.consignor, n.consignee = consignor.ID, consignee.ID
	return n
}

func packages(count, weight, rate string) models.NewFreightDetail {
	return models.NewFreightDetail{BasedOn: models.FreightBasisPackages, NoOfPackages: dec(count), WeightActual: dec(weight), Rate: dec(rate)}
}

// book submits a Yangon to Mandalay booking order.
func (n *network) book(billTo *models.BillTo, freightRows ...models.NewFreightDetail) *models.BookingOrder {
	n.t.Helper()
	bo, err := n.svc.CreateBookingOrder(n.ctx, models.NewBookingOrder{
		SourceStationId:      n.yangon,
		DestinationStationId: n.mandalay,
		ConsignorId:          n.consignor,
		ConsigneeId:          n.consignee,
		AutoBillTo:           billTo,
		Freight:              freightRows,
	})
	require.NoError(n.t, err)
	bo, err = n.svc.SubmitBookingOrder(n.ctx, bo.ID)
	require.NoError(n.t, err)
	return bo
}

// dispatch submits a shipping order for the vehicle from Yangon to Mandalay.
func (n *network) dispatch() *models.ShippingOrder {
	n.t.Helper()
	so, err := n.svc.CreateShippingOrder(n.ctx, models.NewShippingOrder{
		VehicleId:        n.vehicle,
		InitialStationId: n.yangon,
		FinalStationId:   n.mandalay,
	})
	require.NoError(n.t, err)
	so, err = n.svc.SubmitShippingOrder(n.ctx, so.ID)
	require.NoError(n.t, err)
	return so
}

func row(bo *models.BookingOrder, idx int, unit models.FreightBasis, qty string) models.NewLoadingRow {
	return models.NewLoadingRow{BookingOrderId: bo.ID, BoDetailId: bo.Freight[idx].ID, LoadingUnit: unit, Qty: dec(qty)}
}

func (n *network) operate(station int, so *models.ShippingOrder, onLoads, offLoads []models.NewLoadingRow) *models.LoadingOperation {
	n.t.Helper()
	op, err := n.svc.CreateLoadingOperation(n.ctx, models.NewLoadingOperation{
		StationId:       station,
		ShippingOrderId: so.ID,
		OnLoads:         onLoads,
		OffLoads:        offLoads,
	})
	require.NoError(n.t, err)
	op, err = n.svc.SubmitLoadingOperation(n.ctx, op.ID)
	require.NoError(n.t, err)
	return op
}

func (n *network) bookingOrder(id int) *models.BookingOrder {
	n.t.Helper()
	bo, err := n.svc.GetBookingOrder(n.ctx, id)
	require.NoError(n.t, err)
	return bo
}

func (n *network) availableAt(station, detailId int) models.Quantity {
	n.t.Helper()
	balances, err := n.svc.Ledger().AvailableAt(n.ctx, station, detailId)
	require.NoError(n.t, err)
	total := models.Quantity{}
	for _, b := range balances {
		total = total.Add(b.Quantity())
	}
	return total
}

func (n *network) onboard(so, detailId int) models.Quantity {
	n.t.Helper()
	balances, err := n.svc.Ledger().AvailableOnShippingOrder(n.ctx, so, detailId)
	require.NoError(n.t, err)
	total := models.Quantity{}
	for _, b := range balances {
		total = total.Add(b.Quantity())
	}
	return total
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func TestFullLifecycle(t *testing.T) {
	n := newNetwork(t)
	bo := n.book(nil, packages("100", "1000", "10"))
	detail := bo.Freight[0].ID
	assert.Equal(t, models.BookingOrderStatusBooked, bo.Status)
	assert.Equal(t, models.PaymentStatusUnbilled, bo.PaymentStatus)
	assertDecimal(t, "100", n.availableAt(n.yangon, detail).Packages)

	so := n.dispatch()
	load := n.operate(n.yangon, so, []models.NewLoadingRow{row(bo, 0, models.FreightBasisPackages, "100")}, nil)
	assertDecimal(t, "100", load.OnLoadPackages)
	assertDecimal(t, "1000", load.OnLoadWeight)
	assert.True(t, n.availableAt(n.yangon, detail).IsZero())
	assertDecimal(t, "100", n.onboard(so.ID, detail).Packages)

	loaded := n.bookingOrder(bo.ID)
	assert.Equal(t, models.BookingOrderStatusInProgress, loaded.Status)
	require.NotNil(t, loaded.LastShippingOrderId)
	assert.Equal(t, so.ID, *loaded.LastShippingOrderId)

	_, err := n.svc.StartShippingOrder(n.ctx, so.ID, n.mandalay, nil)
	require.NoError(t, err)
	moving := n.bookingOrder(bo.ID)
	assert.Equal(t, models.BookingOrderStatusInTransit, moving.Status)
	assert.Nil(t, moving.CurrentStationId)

	stopped, err := n.svc.StopShippingOrder(n.ctx, so.ID, n.mandalay, nil)
	require.NoError(t, err)
	require.NotNil(t, stopped.EndDatetime)
	arrived := n.bookingOrder(bo.ID)
	require.NotNil(t, arrived.CurrentStationId)
	assert.Equal(t, n.mandalay, *arrived.CurrentStationId)

	n.operate(n.mandalay, so, nil, []models.NewLoadingRow{row(bo, 0, models.FreightBasisPackages, "100")})
	unloaded := n.bookingOrder(bo.ID)
	assert.Equal(t, models.BookingOrderStatusUnloaded, unloaded.Status)
	assert.True(t, n.onboard(so.ID, detail).IsZero())

	collected, err := n.svc.Deliver(n.ctx, models.NewDelivery{
		BookingOrderId: bo.ID,
		BoDetailId:     detail,
		Qty:            dec("100"),
		Unit:           models.FreightBasisPackages,
	})
	require.NoError(t, err)
	assert.Equal(t, models.BookingOrderStatusCollected, collected.Status)

	balance, err := n.svc.Ledger().Balance(n.ctx, detail)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
	require.NoError(t, n.svc.AuditLedger(n.ctx))

	history, err := n.svc.History(n.ctx, bo.ID)
	require.NoError(t, err)
	assert.Len(t, history, 4)

	completed, err := n.svc.SetShippingOrderCompleted(n.ctx, so.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.ShippingOrderStatusCompleted, completed.Status)

	_, err = n.svc.CancelLoadingOperation(n.ctx, load.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConflict))
}

func TestVehicleRunsOneShippingOrderAtATime(t *testing.T) {
	n := newNetwork(t)
	n.dispatch()

	second, err := n.svc.CreateShippingOrder(n.ctx, models.NewShippingOrder{
		VehicleId:        n.vehicle,
		InitialStationId: n.mandalay,
		FinalStationId:   n.yangon,
	})
	require.NoError(t, err)
	_, err = n.svc.SubmitShippingOrder(n.ctx, second.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConflict))

	draft, err := n.svc.GetShippingOrder(n.ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusDraft, draft.DocStatus)
}

func TestCancelBookingOrderAfterLoadingIsRejected(t *testing.T) {
	n := newNetwork(t)
	bo := n.book(nil, packages("100", "1000", "10"))
	so := n.dispatch()
	n.operate(n.yangon, so, []models.NewLoadingRow{row(bo, 0, models.FreightBasisPackages, "100")}, nil)

	_, err := n.svc.CancelBookingOrder(n.ctx, bo.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConflict))
	assert.Contains(t, err.Error(), "In Progress")
	assertDecimal(t, "100", n.onboard(so.ID, bo.Freight[0].ID).Packages)
}

func TestCancelBookingOrderRemovesLedgerEntries(t *testing.T) {
	n := newNetwork(t)
	bo := n.book(nil, packages("100", "1000", "10"))

	cancelled, err := n.svc.CancelBookingOrder(n.ctx, bo.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingOrderStatusCancelled, cancelled.Status)
	assert.True(t, n.availableAt(n.yangon, bo.Freight[0].ID).IsZero())

	_, err = n.svc.CancelBookingOrder(n.ctx, bo.ID)
	assert.True(t, errors.Is(err, models.ErrAlreadyCancelled))
}

func TestCancelLoadingOperationTwice(t *testing.T) {
	n := newNetwork(t)
	bo := n.book(nil, packages("100", "1000", "10"))
	so := n.dispatch()
	op := n.operate(n.yangon, so, []models.NewLoadingRow{row(bo, 0, models.FreightBasisPackages, "60")}, nil)
	assertDecimal(t, "40", n.availableAt(n.yangon, bo.Freight[0].ID).Packages)

	cancelled, err := n.svc.CancelLoadingOperation(n.ctx, op.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusCancelled, cancelled.DocStatus)

	restored := n.bookingOrder(bo.ID)
	assert.Equal(t, models.BookingOrderStatusBooked, restored.Status)
	assert.Nil(t, restored.LastShippingOrderId)
	assertDecimal(t, "100", n.availableAt(n.yangon, bo.Freight[0].ID).Packages)
	assert.True(t, n.onboard(so.ID, bo.Freight[0].ID).IsZero())

	logs, err := n.store.FindShippingLogs(n.ctx, models.ShippingLogFilter{LoadingOperationId: op.ID})
	require.NoError(t, err)
	assert.Empty(t, logs)

	_, err = n.svc.CancelLoadingOperation(n.ctx, op.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrAlreadyCancelled))
	assertDecimal(t, "100", n.availableAt(n.yangon, bo.Freight[0].ID).Packages)
}

func TestLoadingConvertsWeightToPackages(t *testing.T) {
	n := newNetwork(t)
	bo := n.book(nil, packages("50", "500", "10"))
	so := n.dispatch()

	op, err := n.svc.CreateLoadingOperation(n.ctx, models.NewLoadingOperation{
		StationId:       n.yangon,
		ShippingOrderId: so.ID,
		OnLoads:         []models.NewLoadingRow{row(bo, 0, models.FreightBasisWeight, "20")},
	})
	require.NoError(t, err)
	require.Len(t, op.OnLoads, 1)
	assertDecimal(t, "2", op.OnLoads[0].NoOfPackages)
	assertDecimal(t, "20", op.OnLoads[0].WeightActual)
	assertDecimal(t, "500", op.OnLoads[0].Available)
}

func TestLoadingMoreThanAvailable(t *testing.T) {
	n := newNetwork(t)
	bo := n.book(nil, packages("100", "1000", "10"))
	so := n.dispatch()

	_, err := n.svc.CreateLoadingOperation(n.ctx, models.NewLoadingOperation{
		StationId:       n.yangon,
		ShippingOrderId: so.ID,
		OnLoads:         []models.NewLoadingRow{row(bo, 0, models.FreightBasisPackages, "101")},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrQuantityExceeded))

	_, err = n.svc.Deliver(n.ctx, models.NewDelivery{
		BookingOrderId: bo.ID,
		BoDetailId:     bo.Freight[0].ID,
		Qty:            dec("1"),
		Unit:           models.FreightBasisPackages,
	})
	assert.True(t, errors.Is(err, models.ErrQuantityExceeded))
}

func TestLoadingReportsEveryRowProblem(t *testing.T) {
	n := newNetwork(t)
	bo := n.book(nil, packages("100", "1000", "10"))
	so := n.dispatch()

	_, err := n.svc.CreateLoadingOperation(n.ctx, models.NewLoadingOperation{
		StationId:       n.yangon,
		ShippingOrderId: so.ID,
		OnLoads: []models.NewLoadingRow{
			row(bo, 0, models.FreightBasisPackages, "101"),
			{BookingOrderId: bo.ID, BoDetailId: 999, LoadingUnit: models.FreightBasisPackages, Qty: dec("1")},
		},
	})
	require.Error(t, err)
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 2)
	assert.True(t, errors.Is(err, models.ErrQuantityExceeded))
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestSubmitRequiresVehicleAtStation(t *testing.T) {
	n := newNetwork(t)
	bo := n.book(nil, packages("100", "1000", "10"))
	so := n.dispatch()
	op, err := n.svc.CreateLoadingOperation(n.ctx, models.NewLoadingOperation{
		StationId:       n.yangon,
		ShippingOrderId: so.ID,
		OnLoads:         []models.NewLoadingRow{row(bo, 0, models.FreightBasisPackages, "100")},
	})
	require.NoError(t, err)

	_, err = n.svc.StartShippingOrder(n.ctx, so.ID, n.mandalay, nil)
	require.NoError(t, err)
	_, err = n.svc.SubmitLoadingOperation(n.ctx, op.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConflict))
	assertDecimal(t, "100", n.availableAt(n.yangon, bo.Freight[0].ID).Packages)
}

func TestGetOnLoadsAndOffLoads(t *testing.T) {
	n := newNetwork(t)
	first := n.book(nil, packages("100", "1000", "10"))
	second := n.book(nil, packages("30", "300", "10"))
	so := n.dispatch()

	op, err := n.svc.CreateLoadingOperation(n.ctx, models.NewLoadingOperation{StationId: n.yangon, ShippingOrderId: so.ID})
	require.NoError(t, err)
	op, err = n.svc.GetOnLoads(n.ctx, op.ID)
	require.NoError(t, err)
	require.Len(t, op.OnLoads, 2)
	assertDecimal(t, "130", op.OnLoadPackages)

	_, err = n.svc.SubmitLoadingOperation(n.ctx, op.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingOrderStatusInProgress, n.bookingOrder(first.ID).Status)
	assert.Equal(t, models.BookingOrderStatusInProgress, n.bookingOrder(second.ID).Status)

	manifest, err := n.svc.Manifest(n.ctx, so.ID)
	require.NoError(t, err)
	require.Len(t, manifest, 2)
	assertDecimal(t, "30", manifest[1].Onboard.Packages)

	_, err = n.svc.StartShippingOrder(n.ctx, so.ID, n.mandalay, nil)
	require.NoError(t, err)
	_, err = n.svc.StopShippingOrder(n.ctx, so.ID, n.mandalay, nil)
	require.NoError(t, err)

	drop, err := n.svc.CreateLoadingOperation(n.ctx, models.NewLoadingOperation{StationId: n.mandalay, ShippingOrderId: so.ID})
	require.NoError(t, err)
	drop, err = n.svc.GetOffLoads(n.ctx, drop.ID)
	require.NoError(t, err)
	require.Len(t, drop.OffLoads, 2)
	assertDecimal(t, "1300", drop.OffLoadWeight)

	_, err = n.svc.SetShippingOrderCompleted(n.ctx, so.ID, true)
	assert.True(t, errors.Is(err, models.ErrConflict))

	_, err = n.svc.SubmitLoadingOperation(n.ctx, drop.ID)
	require.NoError(t, err)
	summary, err := n.svc.ShippingOrderSummary(n.ctx, so.ID)
	require.NoError(t, err)
	assertDecimal(t, "130", summary.OnLoad.Packages)
	assertDecimal(t, "130", summary.OffLoad.Packages)
	assert.True(t, summary.Current.IsZero())
	assert.NotEmpty(t, summary.History)
}

func TestRemoveBookingOrdersReissuesInvoice(t *testing.T) {
	n := newNetwork(t)
	billed := n.book(nil, packages("100", "1000", "10"), packages("20", "200", "5"))
	other := n.book(nil, packages("50", "500", "10"))
	so := n.dispatch()

	consignor := models.BillToConsignor
	onLoads := []models.NewLoadingRow{
		row(billed, 0, models.FreightBasisPackages, "100"),
		row(billed, 1, models.FreightBasisPackages, "20"),
		row(other, 0, models.FreightBasisPackages, "50"),
	}
	onLoads[0].AutoBillTo = &consignor
	onLoads[1].AutoBillTo = &consignor
	op := n.operate(n.yangon, so, onLoads, nil)
	require.NotNil(t, op.OnLoads[0].SalesInvoiceId)
	assert.Equal(t, models.PaymentStatusUnpaid, n.bookingOrder(billed.ID).PaymentStatus)

	first, err := n.store.GetInvoice(n.ctx, *op.OnLoads[0].SalesInvoiceId, false)
	require.NoError(t, err)
	assertDecimal(t, "1100", first.GrandTotal)

	op, err = n.svc.RemoveBookingOrders(n.ctx, op.ID, []int{op.OnLoads[1].ID})
	require.NoError(t, err)
	require.Len(t, op.OnLoads, 2)
	assertDecimal(t, "150", op.OnLoadPackages)
	assertDecimal(t, "20", n.availableAt(n.yangon, billed.Freight[1].ID).Packages)

	active, err := n.store.ListInvoices(n.ctx, models.InvoiceFilter{
		InvoiceType:        models.InvoiceTypeSales,
		LoadingOperationId: op.ID,
		DocStatus:          utils.Ptr(models.DocStatusSubmitted),
	})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assertDecimal(t, "1000", active[0].GrandTotal)
	assert.NotEqual(t, first.ID, active[0].ID)

	bo := n.bookingOrder(billed.ID)
	assert.Equal(t, models.BookingOrderStatusInProgress, bo.Status)
	assertDecimal(t, "100", bo.Freight[0].InvoicedQty)
	assert.True(t, bo.Freight[1].InvoicedQty.IsZero())

	logs, err := n.store.FindShippingLogs(n.ctx, models.ShippingLogFilter{LoadingOperationId: op.ID})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assertDecimal(t, "150", logs[0].OnLoadPackages)

	_, err = n.svc.RemoveBookingOrders(n.ctx, op.ID, []int{op.OnLoads[0].ID, op.OnLoads[1].ID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConflict))
}

func TestDeferredOperationLogsGoThroughOutbox(t *testing.T) {
	n := newNetwork(t, freight.WithDeferredOperationLogs(true))
	bo := n.book(nil, packages("10", "100", "10"))
	so := n.dispatch()
	op := n.operate(n.yangon, so, []models.NewLoadingRow{row(bo, 0, models.FreightBasisPackages, "10")}, nil)

	logs, err := n.store.FindShippingLogs(n.ctx, models.ShippingLogFilter{LoadingOperationId: op.ID})
	require.NoError(t, err)
	assert.Empty(t, logs)

	records, err := n.store.ListOutboxRecords(n.ctx, models.OutboxFilter{
		ReferenceType: models.OutboxReferenceOperationLogs,
		ReferenceId:   op.ID,
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.OutboxProcessStatusPending, records[0].ProcessingStatus)
}

func TestAutoBilledOrderPaidCannotBeCancelled(t *testing.T) {
	n := newNetwork(t)
	consignor := models.BillToConsignor
	bo := n.book(&consignor, packages("100", "1000", "10"))
	assert.Equal(t, models.PaymentStatusUnpaid, bo.PaymentStatus)
	assertDecimal(t, "100", bo.Freight[0].InvoicedQty)

	open, err := n.svc.OpenOrders(n.ctx, n.consignor)
	require.NoError(t, err)
	require.Len(t, open, 1)

	pe, err := n.svc.MakeBookingPartyPaymentEntry(n.ctx, n.consignor)
	require.NoError(t, err)
	require.Len(t, pe.References, 1)
	assertDecimal(t, "1000", pe.PaidAmount)
	_, err = n.svc.SubmitPaymentEntry(n.ctx, pe.ID)
	require.NoError(t, err)

	paid := n.bookingOrder(bo.ID)
	assert.Equal(t, models.PaymentStatusPaid, paid.PaymentStatus)
	open, err = n.svc.OpenOrders(n.ctx, n.consignor)
	require.NoError(t, err)
	assert.Empty(t, open)

	_, err = n.svc.CancelBookingOrder(n.ctx, bo.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConflict))
}

func TestUnlinkedPartyGetsEmptyPaymentDraft(t *testing.T) {
	n := newNetwork(t)
	pe, err := n.svc.MakeBookingPartyPaymentEntry(n.ctx, n.consignee)
	require.NoError(t, err)
	assert.Empty(t, pe.References)
	assert.Equal(t, settings.DefaultCashAccount, pe.Account)
	assert.Equal(t, models.DocStatusDraft, pe.DocStatus)
}

func TestDefaultChargeTemplate(t *testing.T) {
	n := newNetwork(t)
	_, err := n.svc.CreateChargeTemplate(n.ctx, models.NewChargeTemplate{
		Name:      "Standard",
		IsDefault: true,
		Charges:   []models.NewCharge{{ChargeType: "Handling", Amount: dec("25")}},
	})
	require.NoError(t, err)
	_, err = n.svc.CreateChargeTemplate(n.ctx, models.NewChargeTemplate{
		Name:      "Express",
		IsDefault: true,
		Charges:   []models.NewCharge{{ChargeType: "Priority", Amount: dec("40")}},
	})
	assert.True(t, errors.Is(err, models.ErrConflict))

	bo := n.book(nil, packages("10", "100", "10"))
	require.Len(t, bo.Charges, 1)
	assert.Equal(t, "Handling", bo.Charges[0].ChargeType)
	assertDecimal(t, "125", bo.TotalAmount)
}

func TestPurchaseInvoicePerShippingOrder(t *testing.T) {
	n := newNetwork(t)
	vendor, err := n.svc.CreateShippingVendor(n.ctx, models.NewShippingVendor{VendorName: "Ayeyar Haulage"})
	require.NoError(t, err)
	so, err := n.svc.CreateShippingOrder(n.ctx, models.NewShippingOrder{
		VehicleId:        n.vehicle,
		ShippingVendorId: utils.Ptr(vendor.ID),
		InitialStationId: n.yangon,
		FinalStationId:   n.mandalay,
	})
	require.NoError(t, err)
	_, err = n.svc.SubmitShippingOrder(n.ctx, so.ID)
	require.NoError(t, err)

	inv, err := n.svc.MakePurchaseInvoice(n.ctx, so.ID, dec("300000"), "Yangon to Mandalay")
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceTypePurchase, inv.InvoiceType)
	_, err = n.svc.MakePurchaseInvoice(n.ctx, so.ID, dec("1000"), "again")
	assert.True(t, errors.Is(err, models.ErrConflict))

	cancelled, err := n.svc.CancelShippingOrder(n.ctx, so.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ShippingOrderStatusCancelled, cancelled.Status)
	again, err := n.store.GetInvoice(n.ctx, inv.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusCancelled, again.DocStatus)
}
