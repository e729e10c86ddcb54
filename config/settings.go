package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// FreightSettings are the accounting defaults used when billing freight.
type FreightSettings struct {
	FreightItemPackages string
	FreightItemWeight   string
	ChargeItemPrefix    string
	DefaultCashAccount  string
	ReceivableAccount   string
	PayableAccount      string
	CustomerGroup       string
	SupplierGroup       string
	DefaultPhoneRegion  string
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// GetFreightSettings reads settings from the environment on every call so tests
// and operators can override them without a restart.
func GetFreightSettings() FreightSettings {
	return FreightSettings{
		FreightItemPackages: envOr("FREIGHT_ITEM_PACKAGES", "FREIGHT-PKG"),
		FreightItemWeight:   envOr("FREIGHT_ITEM_WEIGHT", "FREIGHT-WT"),
		ChargeItemPrefix:    envOr("CHARGE_ITEM_PREFIX", "CHG-"),
		DefaultCashAccount:  envOr("DEFAULT_CASH_ACCOUNT", "Cash"),
		ReceivableAccount:   envOr("RECEIVABLE_ACCOUNT", "Debtors"),
		PayableAccount:      envOr("PAYABLE_ACCOUNT", "Creditors"),
		CustomerGroup:       envOr("CUSTOMER_GROUP", "Freight Customers"),
		SupplierGroup:       envOr("SUPPLIER_GROUP", "Freight Vendors"),
		DefaultPhoneRegion:  envOr("DEFAULT_PHONE_REGION", "MM"),
	}
}

// DocumentLockTTL is how long a Redis document lock outlives a crashed holder.
//
// Set via env:
// - DOCUMENT_LOCK_TTL_SECONDS=30
func DocumentLockTTL() time.Duration {
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv("DOCUMENT_LOCK_TTL_SECONDS"))); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return 30 * time.Second
}
