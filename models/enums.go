package models

// DocStatus follows the document lifecycle shared by every submittable document.
type DocStatus int

const (
	DocStatusDraft     DocStatus = 0
	DocStatusSubmitted DocStatus = 1
	DocStatusCancelled DocStatus = 2
)

func (s DocStatus) String() string {
	switch s {
	case DocStatusDraft:
		return "Draft"
	case DocStatusSubmitted:
		return "Submitted"
	case DocStatusCancelled:
		return "Cancelled"
	}
	return "Unknown"
}

type FreightBasis string

const (
	FreightBasisPackages FreightBasis = "Packages"
	FreightBasisWeight   FreightBasis = "Weight"
)

func (b FreightBasis) IsValid() bool {
	return b == FreightBasisPackages || b == FreightBasisWeight
}

type BookingOrderStatus string

const (
	BookingOrderStatusDraft      BookingOrderStatus = "Draft"
	BookingOrderStatusBooked     BookingOrderStatus = "Booked"
	BookingOrderStatusInProgress BookingOrderStatus = "In Progress"
	BookingOrderStatusLoaded     BookingOrderStatus = "Loaded"
	BookingOrderStatusUnloaded   BookingOrderStatus = "Unloaded"
	BookingOrderStatusInTransit  BookingOrderStatus = "In Transit"
	BookingOrderStatusCollected  BookingOrderStatus = "Collected"
	BookingOrderStatusCancelled  BookingOrderStatus = "Cancelled"
)

// IsEnRoute covers the sub-states driven by loading operations and vehicle movement.
func (s BookingOrderStatus) IsEnRoute() bool {
	switch s {
	case BookingOrderStatusInProgress, BookingOrderStatusLoaded, BookingOrderStatusUnloaded, BookingOrderStatusInTransit:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusUnbilled PaymentStatus = "Unbilled"
	PaymentStatusUnpaid   PaymentStatus = "Unpaid"
	PaymentStatusPaid     PaymentStatus = "Paid"
)

type BookingLogActivity string

const (
	BookingLogActivityBooked    BookingLogActivity = "Booked"
	BookingLogActivityLoaded    BookingLogActivity = "Loaded"
	BookingLogActivityUnloaded  BookingLogActivity = "Unloaded"
	BookingLogActivityCollected BookingLogActivity = "Collected"
)

// Sign is the direction an activity moves quantity relative to a station balance.
func (a BookingLogActivity) Sign() int {
	switch a {
	case BookingLogActivityBooked, BookingLogActivityUnloaded:
		return 1
	case BookingLogActivityLoaded, BookingLogActivityCollected:
		return -1
	}
	return 0
}

type ShippingOrderStatus string

const (
	ShippingOrderStatusDraft     ShippingOrderStatus = "Draft"
	ShippingOrderStatusStopped   ShippingOrderStatus = "Stopped"
	ShippingOrderStatusInTransit ShippingOrderStatus = "In Transit"
	ShippingOrderStatusCompleted ShippingOrderStatus = "Completed"
	ShippingOrderStatusCancelled ShippingOrderStatus = "Cancelled"
)

func (s ShippingOrderStatus) IsActive() bool {
	return s == ShippingOrderStatusStopped || s == ShippingOrderStatusInTransit
}

type ShippingLogActivity string

const (
	ShippingLogActivityStopped   ShippingLogActivity = "Stopped"
	ShippingLogActivityMoving    ShippingLogActivity = "Moving"
	ShippingLogActivityOperation ShippingLogActivity = "Operation"
	ShippingLogActivityCompleted ShippingLogActivity = "Completed"
)

// BillTo selects which party of a booking order is invoiced.
type BillTo string

const (
	BillToConsignor BillTo = "Consignor"
	BillToConsignee BillTo = "Consignee"
)

func (b BillTo) IsValid() bool {
	return b == BillToConsignor || b == BillToConsignee
}

type LoadSide string

const (
	LoadSideOnLoads  LoadSide = "on_loads"
	LoadSideOffLoads LoadSide = "off_loads"
)

// OwnerType names the transaction that owns a ledger entry.
type OwnerType string

const (
	OwnerTypeBookingOrder     OwnerType = "Booking Order"
	OwnerTypeLoadingOperation OwnerType = "Loading Operation"
	OwnerTypeDelivery         OwnerType = "Delivery"
)

type InvoiceType string

const (
	InvoiceTypeSales    InvoiceType = "Sales Invoice"
	InvoiceTypePurchase InvoiceType = "Purchase Invoice"
)

type PartyType string

const (
	PartyTypeCustomer PartyType = "Customer"
	PartyTypeSupplier PartyType = "Supplier"
)

type PaymentType string

const (
	PaymentTypeReceive PaymentType = "Receive"
	PaymentTypePay     PaymentType = "Pay"
)
