package billing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/freight_backend/billing"
	"github.com/mmdatafocus/freight_backend/config"
	"github.com/mmdatafocus/freight_backend/models"
	"github.com/mmdatafocus/freight_backend/storage/memory"
	"github.com/mmdatafocus/freight_backend/utils"
	"github.com/shopspring/decimal"
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
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

type fixture struct {
	store  *memory.Store
	bridge *billing.Bridge
	bo     *models.BookingOrder
}

func setup(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	consignor := &models.BookingParty{PartyName: "Golden Rice Trading"}
	consignee := &models.BookingParty{PartyName: "Shwe Mart"}
	require.NoError(t, store.CreateBookingParty(ctx, consignor))
	require.NoError(t, store.CreateBookingParty(ctx, consignee))
	require.NoError(t, store.CreateTaxTemplate(ctx, &models.TaxTemplate{Name: "Commercial Tax 5%", Rate: dec("5")}))

	bo := &models.BookingOrder{
		OrderNumber:          "BO-00001",
		DocStatus:            models.DocStatusSubmitted,
		Status:               models.BookingOrderStatusBooked,
		PaymentStatus:        models.PaymentStatusUnbilled,
		BookingDatetime:      time.Now(),
		SourceStationId:      1,
		DestinationStationId: 2,
		ConsignorId:          consignor.ID,
		ConsigneeId:          consignee.ID,
		Freight: []models.BookingOrderFreightDetail{
			{Idx: 1, BasedOn: models.FreightBasisPackages, NoOfPackages: dec("100"), WeightActual: dec("1000"), Rate: dec("10")},
		},
		Charges: []models.BookingOrderCharge{
			{Idx: 1, ChargeType: "Handling", Amount: dec("50")},
		},
	}
	bo.SetTotals()
	require.NoError(t, store.CreateBookingOrder(ctx, bo))

	return fixture{
		store:  store,
		bridge: billing.NewBridge(store, billing.NewBooks(store), settings),
		bo:     bo,
	}
}

func (f fixture) reload(t *testing.T) *models.BookingOrder {
	t.Helper()
	bo, err := f.store.GetBookingOrder(context.Background(), f.bo.ID, false)
	require.NoError(t, err)
	return bo
}

func (f fixture) invoiceAll(t *testing.T) *models.Invoice {
	t.Helper()
	inv, err := f.bridge.CreateInvoice(context.Background(), f.bo, f.bridge.BookingOrderLines(f.bo), billing.BillingOptions{
		BillTo:           models.BillToConsignor,
		TaxesAndCharges:  "Commercial Tax 5%",
		IsFreightInvoice: true,
	})
	require.NoError(t, err)
	return inv
}

func TestCreateInvoiceMirrorsOntoBookingOrder(t *testing.T) {
	f := setup(t)
	inv := f.invoiceAll(t)

	assert.Equal(t, "SINV-00001", inv.InvoiceNumber)
	assert.Equal(t, models.DocStatusSubmitted, inv.DocStatus)
	assert.True(t, dec("1050").Equal(inv.NetTotal), "net total %s", inv.NetTotal)
	assert.True(t, dec("52.5").Equal(inv.TaxAmount), "tax %s", inv.TaxAmount)
	assert.True(t, dec("1102.5").Equal(inv.GrandTotal), "grand total %s", inv.GrandTotal)
	require.Len(t, inv.Lines, 2)
	assert.Equal(t, "FREIGHT-PKG", inv.Lines[0].ItemCode)
	assert.Equal(t, "CHG-Handling", inv.Lines[1].ItemCode)

	bo := f.reload(t)
	assert.Equal(t, models.PaymentStatusUnpaid, bo.PaymentStatus)
	assert.True(t, dec("100").Equal(bo.Freight[0].InvoicedQty))
	assert.True(t, dec("1000").Equal(bo.Freight[0].InvoicedAmount))
	assert.True(t, dec("50").Equal(bo.Charges[0].InvoicedAmount))

	party, err := f.store.GetBookingParty(context.Background(), bo.ConsignorId)
	require.NoError(t, err)
	require.NotNil(t, party.CustomerRef)
	assert.Equal(t, "Golden Rice Trading", *party.CustomerRef)
	assert.Equal(t, *party.CustomerRef, inv.PartyRef)
}

func TestRepeatedChargeTypesMirrorPerRow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.bo.Charges = append(f.bo.Charges,
		models.BookingOrderCharge{Idx: 2, ChargeType: "Loading", Amount: dec("10")},
		models.BookingOrderCharge{Idx: 3, ChargeType: "Loading", Amount: dec("20")},
	)
	f.bo.SetTotals()
	require.NoError(t, f.store.UpdateBookingOrder(ctx, f.bo))
	f.bo = f.reload(t)

	inv := f.invoiceAll(t)
	require.Len(t, inv.Lines, 4)
	assert.True(t, dec("1080").Equal(inv.NetTotal), "net total %s", inv.NetTotal)

	bo := f.reload(t)
	require.Len(t, bo.Charges, 3)
	assert.True(t, dec("10").Equal(bo.Charges[1].InvoicedAmount), "first loading charge %s", bo.Charges[1].InvoicedAmount)
	assert.True(t, dec("20").Equal(bo.Charges[2].InvoicedAmount), "second loading charge %s", bo.Charges[2].InvoicedAmount)
	assert.Empty(t, f.bridge.BookingOrderLines(bo))
}

func TestInvoicingBeyondBookedQuantityConflicts(t *testing.T) {
	f := setup(t)
	f.invoiceAll(t)

	bo := f.reload(t)
	extra := []models.InvoiceLine{{
		ItemCode:   "FREIGHT-PKG",
		IsFreight:  true,
		BoDetailId: utils.Ptr(bo.Freight[0].ID),
		Qty:        dec("0.01"),
		Rate:       dec("10"),
	}}
	_, err := f.bridge.CreateInvoice(context.Background(), bo, extra, billing.BillingOptions{BillTo: models.BillToConsignor})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConflict))

	_, err = f.bridge.CreateInvoice(context.Background(), bo, extra, billing.BillingOptions{BillTo: models.BillToConsignor, SkipValidation: true})
	require.NoError(t, err)
}

func TestValidateFreightLines(t *testing.T) {
	bo := &models.BookingOrder{
		OrderNumber: "BO-00009",
		Freight: []models.BookingOrderFreightDetail{
			{ID: 5, Idx: 1, BasedOn: models.FreightBasisWeight, WeightActual: dec("10"), Qty: dec("10"), InvoicedQty: dec("4")},
		},
	}

	t.Run("within tolerance", func(t *testing.T) {
		lines := []models.InvoiceLine{{ItemCode: "W", IsFreight: true, BoDetailId: utils.Ptr(5), Qty: dec("6.0004")}}
		assert.NoError(t, billing.ValidateFreightLines(bo, lines))
	})

	t.Run("cumulative excess", func(t *testing.T) {
		lines := []models.InvoiceLine{
			{ItemCode: "W", IsFreight: true, BoDetailId: utils.Ptr(5), Qty: dec("3")},
			{ItemCode: "W", IsFreight: true, BoDetailId: utils.Ptr(5), Qty: dec("3.01")},
		}
		err := billing.ValidateFreightLines(bo, lines)
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrConflict))
	})

	t.Run("two items for one detail", func(t *testing.T) {
		lines := []models.InvoiceLine{
			{ItemCode: "W", IsFreight: true, BoDetailId: utils.Ptr(5), Qty: dec("1")},
			{ItemCode: "P", IsFreight: true, BoDetailId: utils.Ptr(5), Qty: dec("1")},
		}
		err := billing.ValidateFreightLines(bo, lines)
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrValidation))
	})
}

func TestValidateSettingsRejectsSharedFreightItem(t *testing.T) {
	s := settings
	s.FreightItemWeight = s.FreightItemPackages
	err := billing.ValidateSettings(s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrValidation))
	assert.NoError(t, billing.ValidateSettings(settings))
}

func TestPaymentEntrySettlesOutstanding(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	inv := f.invoiceAll(t)

	pe, err := f.bridge.MakePaymentEntry(ctx, models.PartyTypeCustomer, inv.PartyRef, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusDraft, pe.DocStatus)
	assert.Equal(t, models.PaymentTypeReceive, pe.PaymentType)
	require.Len(t, pe.References, 1)
	assert.True(t, dec("1102.5").Equal(pe.PaidAmount))

	_, err = f.bridge.SubmitPaymentEntry(ctx, pe.ID)
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusPaid, f.reload(t).PaymentStatus)
	paid, err := f.store.GetInvoice(ctx, inv.ID, false)
	require.NoError(t, err)
	assert.True(t, paid.OutstandingAmount.IsZero())
	assert.True(t, paid.HasPayments())

	_, err = f.bridge.SubmitPaymentEntry(ctx, pe.ID)
	assert.True(t, errors.Is(err, models.ErrNotDraft))
}

func TestPaymentEntryWithoutOutstandingIsEmptyDraft(t *testing.T) {
	f := setup(t)
	pe, err := f.bridge.MakePaymentEntry(context.Background(), models.PartyTypeCustomer, "Nobody", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, pe.References)
	assert.True(t, pe.PaidAmount.IsZero())
	assert.Equal(t, "Cash", pe.Account)
}

func TestCancelInvoiceResetsBookingOrder(t *testing.T) {
	f := setup(t)
	inv := f.invoiceAll(t)

	_, err := f.bridge.CancelInvoice(context.Background(), inv.ID)
	require.NoError(t, err)

	bo := f.reload(t)
	assert.Equal(t, models.PaymentStatusUnbilled, bo.PaymentStatus)
	assert.True(t, bo.Freight[0].InvoicedQty.IsZero())
	assert.True(t, bo.Charges[0].InvoicedAmount.IsZero())

	_, err = f.bridge.CancelInvoice(context.Background(), inv.ID)
	assert.True(t, errors.Is(err, models.ErrAlreadyCancelled))
}

func TestPartySync(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	party, err := f.bridge.CreateCustomer(ctx, f.bo.ConsigneeId)
	require.NoError(t, err)
	require.NotNil(t, party.CustomerRef)

	_, err = f.bridge.CreateCustomer(ctx, f.bo.ConsigneeId)
	assert.True(t, errors.Is(err, models.ErrConflict))

	party.PrimaryAddress = "No. 12, Strand Road, Yangon"
	require.NoError(t, f.bridge.SyncBookingParty(ctx, party))
	customer, err := f.store.GetAccountingParty(ctx, *party.CustomerRef)
	require.NoError(t, err)
	assert.Equal(t, "No. 12, Strand Road, Yangon", customer.PrimaryAddress)
	assert.Equal(t, models.PartyTypeCustomer, customer.Type)
}

func TestPurchaseInvoiceOncePerShippingOrder(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	vendor := &models.ShippingVendor{VendorName: "Ayeyar Logistics"}
	require.NoError(t, f.store.CreateShippingVendor(ctx, vendor))

	so := &models.ShippingOrder{
		OrderNumber:      "SO-00001",
		DocStatus:        models.DocStatusSubmitted,
		Status:           models.ShippingOrderStatusStopped,
		VehicleId:        1,
		ShippingVendorId: utils.Ptr(vendor.ID),
		InitialStationId: 1,
		FinalStationId:   2,
	}
	require.NoError(t, f.store.CreateShippingOrder(ctx, so))

	inv, err := f.bridge.MakePurchaseInvoice(ctx, so, dec("250000"), "", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "PINV-00001", inv.InvoiceNumber)
	assert.Equal(t, "Ayeyar Logistics", inv.PartyRef)
	assert.True(t, dec("250000").Equal(inv.OutstandingAmount))

	_, err = f.bridge.MakePurchaseInvoice(ctx, so, dec("1000"), "", time.Time{})
	assert.True(t, errors.Is(err, models.ErrConflict))
}

// remoteBooks behaves like an accounting service outside the store transaction.
type remoteBooks struct {
	*billing.Books
}

func (remoteBooks) Transactional() bool {
	return false
}

func TestCompensateCancelsInvoicesOfRemoteService(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	inv := f.invoiceAll(t)

	require.NoError(t, billing.Compensate(ctx, billing.NewBooks(f.store), []int{inv.ID}))
	stored, err := f.store.GetInvoice(ctx, inv.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusSubmitted, stored.DocStatus)

	remote := remoteBooks{billing.NewBooks(f.store)}
	require.NoError(t, billing.Compensate(ctx, remote, []int{inv.ID, 999}))
	stored, err = f.store.GetInvoice(ctx, inv.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusCancelled, stored.DocStatus)

	require.NoError(t, billing.Compensate(ctx, remote, []int{inv.ID}))
}
