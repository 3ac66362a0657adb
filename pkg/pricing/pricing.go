// Package pricing holds the money rules shared by cart, coupon and checkout.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	DiscountPercentage = "PERCENTAGE"
	DiscountFixed      = "FIXED"
)

var hundred = decimal.NewFromInt(100)

// EffectivePrice is the unit price used for display and totals: the sale price when the item is
// on sale against a compare price, else the compare price, else the buying price.
func EffectivePrice(buying, compare, sale decimal.Decimal) decimal.Decimal {
	if compare.IsPositive() {
		if sale.IsPositive() && sale.LessThan(compare) {
			return sale
		}
		return compare
	}
	return buying
}

// LineTotal is unit price times quantity.
func LineTotal(unit decimal.Decimal, quantity int) decimal.Decimal {
	if quantity <= 0 {
		return decimal.Zero
	}
	return unit.Mul(decimal.NewFromInt(int64(quantity)))
}

// CouponDiscount returns the amount taken off subtotal, never more than subtotal itself.
// Unknown discount types and non-positive values discount nothing.
func CouponDiscount(discountType string, value, subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() || !value.IsPositive() {
		return decimal.Zero
	}
	var discount decimal.Decimal
	switch strings.ToUpper(strings.TrimSpace(discountType)) {
	case DiscountPercentage:
		discount = subtotal.Mul(value).Div(hundred)
	case DiscountFixed:
		discount = value
	default:
		return decimal.Zero
	}
	return decimal.Min(discount, subtotal)
}

// FinalTotal subtracts discount from subtotal, flooring at zero.
func FinalTotal(subtotal, discount decimal.Decimal) decimal.Decimal {
	total := subtotal.Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// FormatVND renders an amount the way the storefront shows prices: rounded to whole dong with
// Vietnamese thousands grouping and a trailing currency sign, e.g. "1.250.000 ₫".
func FormatVND(amount decimal.Decimal) string {
	return message.NewPrinter(language.Vietnamese).Sprintf("%d ₫", amount.Round(0).IntPart())
}
