package models

import (
	"fmt"
	"time"
)

// Document types numbered by a naming series.
const (
	DocTypeBookingOrder     = "Booking Order"
	DocTypeShippingOrder    = "Shipping Order"
	DocTypeLoadingOperation = "Loading Operation"
	DocTypeSalesInvoice     = "Sales Invoice"
	DocTypePurchaseInvoice  = "Purchase Invoice"
	DocTypePaymentEntry     = "Payment Entry"
)

var namingPrefixes = map[string]string{
	DocTypeBookingOrder:     "BO-",
	DocTypeShippingOrder:    "SO-",
	DocTypeLoadingOperation: "LO-",
	DocTypeSalesInvoice:     "SINV-",
	DocTypePurchaseInvoice:  "PINV-",
	DocTypePaymentEntry:     "PE-",
}

// NamingSeries holds the last number issued for a document type.
type NamingSeries struct {
	DocType   string    `gorm:"primaryKey;size:64;autoIncrement:false" json:"doctype"`
	Prefix    string    `gorm:"size:10;not null" json:"prefix"`
	Current   int       `gorm:"not null;default:0" json:"current"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func NamingPrefix(doctype string) string {
	if p, ok := namingPrefixes[doctype]; ok {
		return p
	}
	return "DOC-"
}

// FormatName renders the n-th document number of a series, e.g. BO-00042.
func FormatName(prefix string, n int) string {
	return fmt.Sprintf("%s%05d", prefix, n)
}
