// Package uom converts stock quantities between the units used across
// the plant: metric tons, kilograms and litres. Conversion is only
// defined inside a unit class; mass and volume never convert into each
// other.
package uom

import (
	"strings"

	"github.com/shopspring/decimal"

	apperrors "feedmill/pkg/errors"
)

type Unit string

const (
	MT  Unit = "MT"
	KGS Unit = "KGS"
	LTR Unit = "LTR"
)

type Class int

const (
	ClassUnknown Class = iota
	ClassMass
	ClassVolume
)

var kgsPerMT = decimal.NewFromInt(1000)

// Parse normalizes a unit tag. Upstream data carries mixed-case tags
// and the odd "KG"/"Kgs" spelling.
func Parse(s string) (Unit, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MT", "TON", "TONS":
		return MT, true
	case "KGS", "KG":
		return KGS, true
	case "LTR", "L", "LTRS":
		return LTR, true
	}
	return "", false
}

func ClassOf(u Unit) Class {
	switch u {
	case MT, KGS:
		return ClassMass
	case LTR:
		return ClassVolume
	}
	return ClassUnknown
}

// Convert converts q from one unit to another. Same-unit conversion is
// the identity. Crossing unit classes fails rather than silently
// passing the value through.
func Convert(q decimal.Decimal, from, to Unit) (decimal.Decimal, error) {
	if from == to {
		return q, nil
	}
	if ClassOf(from) != ClassOf(to) || ClassOf(from) == ClassUnknown {
		return decimal.Zero, &apperrors.IncompatibleUnitsError{From: string(from), To: string(to)}
	}
	switch {
	case from == MT && to == KGS:
		return q.Mul(kgsPerMT), nil
	case from == KGS && to == MT:
		return q.Div(kgsPerMT), nil
	}
	return decimal.Zero, &apperrors.IncompatibleUnitsError{From: string(from), To: string(to)}
}

// Round3 rounds to the ledger's 3-decimal-place precision.
func Round3(q decimal.Decimal) decimal.Decimal {
	return q.Round(3)
}
