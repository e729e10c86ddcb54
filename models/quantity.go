package models

import "github.com/shopspring/decimal"

// QuantityPrecision is the scale persisted for packages and weight.
const QuantityPrecision = 4

// Quantity pairs the two measures every freight movement carries.
type Quantity struct {
	Packages decimal.Decimal `json:"no_of_packages"`
	Weight   decimal.Decimal `json:"weight_actual"`
}

func NewQuantity(packages, weight decimal.Decimal) Quantity {
	return Quantity{Packages: packages, Weight: weight}
}

// In returns the measure matching unit.
func (q Quantity) In(unit FreightBasis) decimal.Decimal {
	if unit == FreightBasisWeight {
		return q.Weight
	}
	return q.Packages
}

func (q Quantity) Add(o Quantity) Quantity {
	return Quantity{Packages: q.Packages.Add(o.Packages), Weight: q.Weight.Add(o.Weight)}
}

func (q Quantity) Sub(o Quantity) Quantity {
	return Quantity{Packages: q.Packages.Sub(o.Packages), Weight: q.Weight.Sub(o.Weight)}
}

func (q Quantity) Neg() Quantity {
	return Quantity{Packages: q.Packages.Neg(), Weight: q.Weight.Neg()}
}

// IsPositive is true when either measure is above zero.
func (q Quantity) IsPositive() bool {
	return q.Packages.IsPositive() || q.Weight.IsPositive()
}

// IsNegative is true when either measure is below zero.
func (q Quantity) IsNegative() bool {
	return q.Packages.IsNegative() || q.Weight.IsNegative()
}

func (q Quantity) IsZero() bool {
	return q.Packages.IsZero() && q.Weight.IsZero()
}

func (q Quantity) Round() Quantity {
	return Quantity{Packages: q.Packages.Round(QuantityPrecision), Weight: q.Weight.Round(QuantityPrecision)}
}

// ExceedsAt3dp compares with the 3 decimal place tolerance used for invoiced quantities.
func ExceedsAt3dp(value, limit decimal.Decimal) bool {
	return value.Round(3).GreaterThan(limit.Round(3))
}
