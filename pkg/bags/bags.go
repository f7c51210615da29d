// Package bags derives pack counts from stock quantities using the
// product-grade to bag-weight table maintained by the packing section.
package bags

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"feedmill/pkg/uom"
)

// DefaultBagKG is used when neither the table nor the grade string
// yields a bag weight.
var DefaultBagKG = decimal.NewFromInt(50)

// bagWeightKG maps known product grades to bag weight in kilograms.
var bagWeightKG = map[string]decimal.Decimal{
	"TITAN NO.1":       decimal.NewFromInt(25),
	"TITAN NO.2":       decimal.NewFromInt(25),
	"TITAN NO.3":       decimal.NewFromInt(25),
	"PROFEED STARTER":  decimal.NewFromInt(50),
	"PROFEED GROWER":   decimal.NewFromInt(50),
	"PROFEED FINISHER": decimal.NewFromInt(50),
	"MANAMEI SCAMPI":   decimal.NewFromInt(25),
	"MANAMEI VANNAMEI": decimal.NewFromInt(25),
}

// e.g. "TITAN NO.1 - 25 KG" -> 25
var weightSuffix = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*KGS?\s*$`)

// Weight resolves the bag weight in KGS for a grade: exact table hit
// first, then a prefix table hit, then a "... - 25 KG" suffix parsed
// out of the grade string, then the default.
func Weight(grade string) decimal.Decimal {
	g := strings.ToUpper(strings.TrimSpace(grade))
	if w, ok := bagWeightKG[g]; ok {
		return w
	}
	for known, w := range bagWeightKG {
		if strings.HasPrefix(g, known) {
			return w
		}
	}
	if m := weightSuffix.FindStringSubmatch(g); m != nil {
		if w, err := decimal.NewFromString(m[1]); err == nil && w.IsPositive() {
			return w
		}
	}
	return DefaultBagKG
}

// Count converts qty to kilograms and divides by the grade's bag
// weight. The remainder is whatever does not fill a whole bag.
func Count(qty decimal.Decimal, unit uom.Unit, grade string) (bags int64, remainderKG decimal.Decimal, err error) {
	kgs, err := uom.Convert(qty, unit, uom.KGS)
	if err != nil {
		return 0, decimal.Zero, err
	}
	w := Weight(grade)
	bags = kgs.Div(w).IntPart()
	remainderKG = uom.Round3(kgs.Sub(w.Mul(decimal.NewFromInt(bags))))
	return bags, remainderKG, nil
}
