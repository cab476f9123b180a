package cvd

import "github.com/vendeo/vendeo-backend/pkg/enums"

var productPoints = map[enums.ProductType]int{
	enums.ProductTypeForfait5G:        1,
	enums.ProductTypeFreeboxEssentiel: 3,
	enums.ProductTypeFreeboxPop:       4,
	enums.ProductTypeFreeboxUltra:     6,
}

// PointsFor returns the CVD point value of a product. Unknown products are
// worth 0 points; callers that care can check enums.ProductType.IsValid.
func PointsFor(product enums.ProductType) int {
	return productPoints[product]
}
