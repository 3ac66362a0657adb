package cart

import (
	"github.com/angelmondragon/storefront-checkout/pkg/pricing"
	"github.com/shopspring/decimal"
)

// Product is the live product joined onto a cart line.
type Product struct {
	ID               string          `json:"id"`
	ProductName      string          `json:"product_name"`
	BuyingPrice      decimal.Decimal `json:"buying_price"`
	ComparePrice     decimal.Decimal `json:"compare_price"`
	SalePrice        decimal.Decimal `json:"sale_price"`
	Quantity         int             `json:"quantity"`
	ShortDescription string          `json:"short_description,omitempty"`
	GalleryImage     string          `json:"gallery_image"`
}

// EffectivePrice is the unit price this product is sold at right now.
func (p Product) EffectivePrice() decimal.Decimal {
	return pricing.EffectivePrice(p.BuyingPrice, p.ComparePrice, p.SalePrice)
}

// OnSale reports whether the sale price is the one in effect.
func (p Product) OnSale() bool {
	return p.ComparePrice.IsPositive() && p.EffectivePrice().LessThan(p.ComparePrice)
}

// Line is a cart row joined with its product.
type Line struct {
	ID       string  `json:"id"`
	Quantity int     `json:"quantity"`
	Product  Product `json:"product"`
}

func (l Line) UnitPrice() decimal.Decimal {
	return l.Product.EffectivePrice()
}

func (l Line) Total() decimal.Decimal {
	return pricing.LineTotal(l.UnitPrice(), l.Quantity)
}

// LineIDs returns the ids of lines in order.
func LineIDs(lines []Line) []string {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ID)
	}
	return ids
}

// Subtotal sums the effective line totals.
func Subtotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Total())
	}
	return total
}
