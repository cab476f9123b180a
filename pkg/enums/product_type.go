package enums

import "slices"

// ProductType identifies a sellable offer. Unknown values are tolerated by the
// commission engine and simply earn nothing.
type ProductType string

const (
	ProductTypeForfait5G        ProductType = "forfait_5g"
	ProductTypeFreeboxEssentiel ProductType = "freebox_essentiel"
	ProductTypeFreeboxPop       ProductType = "freebox_pop"
	ProductTypeFreeboxUltra     ProductType = "freebox_ultra"
)

var validProductTypes = []ProductType{
	ProductTypeForfait5G,
	ProductTypeFreeboxEssentiel,
	ProductTypeFreeboxPop,
	ProductTypeFreeboxUltra,
}

// String implements fmt.Stringer.
func (p ProductType) String() string {
	return string(p)
}

// IsValid reports whether the value is part of the catalog.
func (p ProductType) IsValid() bool {
	return slices.Contains(validProductTypes, p)
}

// ProductTypes returns the catalog in display order.
func ProductTypes() []ProductType {
	out := make([]ProductType, len(validProductTypes))
	copy(out, validProductTypes)
	return out
}

// ParseProductType converts raw input into a ProductType.
func ParseProductType(value string) (ProductType, error) {
	return parse("product type", validProductTypes, value)
}
