package cvd

import (
	"github.com/shopspring/decimal"

	"github.com/vendeo/vendeo-backend/pkg/enums"
)

// SaleInput is one sale as seen by the calculator, in chronological order.
type SaleInput struct {
	ProductType enums.ProductType
}

// SaleCommission is the breakdown line for one sale.
type SaleCommission struct {
	ProductType      enums.ProductType `json:"product_type"`
	Points           int               `json:"points"`
	Commission       decimal.Decimal   `json:"commission"`
	CumulativePoints int               `json:"cumulative_points"`
	TierIndex        int               `json:"tier_index"`
}

// MonthlyCommissionResult is the CVD outcome for one seller over one month.
type MonthlyCommissionResult struct {
	TotalCommission     decimal.Decimal  `json:"total_commission"`
	TotalPoints         int              `json:"total_points"`
	UnknownProductSales int              `json:"unknown_product_sales"`
	DetailedSales       []SaleCommission `json:"detailed_sales"`
}

// CalculateMonth walks the sales in order. Each sale is paid at the tier
// selected by the cumulative total after that sale, so the sale that crosses a
// boundary is paid entirely at the new tier.
func (t *TierTable) CalculateMonth(sales []SaleInput) MonthlyCommissionResult {
	result := MonthlyCommissionResult{
		TotalCommission: decimal.Zero,
		DetailedSales:   make([]SaleCommission, 0, len(sales)),
	}

	cumulative := 0
	for _, sale := range sales {
		points := PointsFor(sale.ProductType)
		if !sale.ProductType.IsValid() {
			result.UnknownProductSales++
		}
		cumulative += points

		tier := t.TierFor(cumulative)
		commission, _ := tier.AmountFor(sale.ProductType)

		result.DetailedSales = append(result.DetailedSales, SaleCommission{
			ProductType:      sale.ProductType,
			Points:           points,
			Commission:       commission,
			CumulativePoints: cumulative,
			TierIndex:        tier.Index,
		})
		result.TotalCommission = result.TotalCommission.Add(commission)
	}
	result.TotalPoints = cumulative
	return result
}
