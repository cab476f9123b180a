package cvd

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vendeo/vendeo-backend/pkg/enums"
)

// Unbounded marks the open upper end of the last tier.
const Unbounded = -1

// CommissionTier is a point band [Min, Max] paying a flat amount per product.
type CommissionTier struct {
	Index   int
	Label   string
	Min     int
	Max     int
	amounts map[enums.ProductType]decimal.Decimal
}

// Contains reports whether the cumulative point total falls in the band.
func (t CommissionTier) Contains(points int) bool {
	return points >= t.Min && (t.Max == Unbounded || points <= t.Max)
}

// AmountFor returns the flat commission the tier pays for product. The bool is
// false when the tier does not price the product.
func (t CommissionTier) AmountFor(product enums.ProductType) (decimal.Decimal, bool) {
	amount, ok := t.amounts[product]
	if !ok {
		return decimal.Zero, false
	}
	return amount, true
}

// Amounts returns a copy of the per-product price list.
func (t CommissionTier) Amounts() map[enums.ProductType]decimal.Decimal {
	out := make(map[enums.ProductType]decimal.Decimal, len(t.amounts))
	for k, v := range t.amounts {
		out[k] = v
	}
	return out
}

// TierSpec is the raw definition used to build a TierTable.
type TierSpec struct {
	Label   string
	Min     int
	Max     int
	Amounts map[enums.ProductType]decimal.Decimal
}

// TierTable is an immutable, gap-free ordered list of tiers covering [0, ∞).
type TierTable struct {
	tiers []CommissionTier
}

// NewTierTable validates the specs and freezes them into a table. Specs must
// start at 0, be contiguous, and end with an unbounded tier.
func NewTierTable(specs []TierSpec) (*TierTable, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("at least one tier is required")
	}
	sorted := make([]TierSpec, len(specs))
	copy(sorted, specs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Min < sorted[j].Min })

	if sorted[0].Min != 0 {
		return nil, fmt.Errorf("first tier must start at 0, got %d", sorted[0].Min)
	}

	tiers := make([]CommissionTier, 0, len(sorted))
	for i, ts := range sorted {
		last := i == len(sorted)-1
		switch {
		case last && ts.Max != Unbounded:
			return nil, fmt.Errorf("last tier %q must be unbounded", ts.Label)
		case !last && ts.Max == Unbounded:
			return nil, fmt.Errorf("only the last tier may be unbounded, %q is not last", ts.Label)
		case !last && ts.Max < ts.Min:
			return nil, fmt.Errorf("tier %q has max %d below min %d", ts.Label, ts.Max, ts.Min)
		case !last && sorted[i+1].Min != ts.Max+1:
			return nil, fmt.Errorf("tier %q ends at %d but next tier starts at %d", ts.Label, ts.Max, sorted[i+1].Min)
		}

		amounts := make(map[enums.ProductType]decimal.Decimal, len(ts.Amounts))
		for product, amount := range ts.Amounts {
			if amount.IsNegative() {
				return nil, fmt.Errorf("tier %q has a negative amount for %s", ts.Label, product)
			}
			amounts[product] = amount
		}
		tiers = append(tiers, CommissionTier{
			Index:   i + 1,
			Label:   ts.Label,
			Min:     ts.Min,
			Max:     ts.Max,
			amounts: amounts,
		})
	}
	return &TierTable{tiers: tiers}, nil
}

// TierFor returns the tier whose band contains the cumulative point total.
// A value below every band falls back to the last tier.
func (t *TierTable) TierFor(points int) CommissionTier {
	for _, tier := range t.tiers {
		if tier.Contains(points) {
			return tier
		}
	}
	return t.tiers[len(t.tiers)-1]
}

// Tiers returns the ordered tiers.
func (t *TierTable) Tiers() []CommissionTier {
	out := make([]CommissionTier, len(t.tiers))
	copy(out, t.tiers)
	return out
}

func eur(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// DefaultTierSpecs is the CVD grid in euros.
func DefaultTierSpecs() []TierSpec {
	return []TierSpec{
		{
			Label: "0-25", Min: 0, Max: 25,
			Amounts: map[enums.ProductType]decimal.Decimal{
				enums.ProductTypeForfait5G:        eur(10),
				enums.ProductTypeFreeboxEssentiel: eur(40),
				enums.ProductTypeFreeboxPop:       eur(50),
				enums.ProductTypeFreeboxUltra:     eur(70),
			},
		},
		{
			Label: "26-50", Min: 26, Max: 50,
			Amounts: map[enums.ProductType]decimal.Decimal{
				enums.ProductTypeForfait5G:        eur(12),
				enums.ProductTypeFreeboxEssentiel: eur(50),
				enums.ProductTypeFreeboxPop:       eur(60),
				enums.ProductTypeFreeboxUltra:     eur(80),
			},
		},
		{
			Label: "51-100", Min: 51, Max: 100,
			Amounts: map[enums.ProductType]decimal.Decimal{
				enums.ProductTypeForfait5G:        eur(15),
				enums.ProductTypeFreeboxEssentiel: eur(60),
				enums.ProductTypeFreeboxPop:       eur(75),
				enums.ProductTypeFreeboxUltra:     eur(95),
			},
		},
		{
			Label: "101+", Min: 101, Max: Unbounded,
			Amounts: map[enums.ProductType]decimal.Decimal{
				enums.ProductTypeForfait5G:        eur(20),
				enums.ProductTypeFreeboxEssentiel: eur(70),
				enums.ProductTypeFreeboxPop:       eur(90),
				enums.ProductTypeFreeboxUltra:     eur(110),
			},
		},
	}
}

var defaultTable = mustTierTable(DefaultTierSpecs())

// DefaultTierTable returns the process-wide CVD grid.
func DefaultTierTable() *TierTable {
	return defaultTable
}

func mustTierTable(specs []TierSpec) *TierTable {
	table, err := NewTierTable(specs)
	if err != nil {
		panic(fmt.Sprintf("cvd: invalid tier table: %v", err))
	}
	return table
}
