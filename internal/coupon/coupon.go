// Package coupon applies, re-validates and forgets the shopper's single active coupon.
package coupon

import (
	"github.com/angelmondragon/storefront-checkout/pkg/backend"
	"github.com/angelmondragon/storefront-checkout/pkg/pricing"
	"github.com/shopspring/decimal"
)

// Coupon is the active coupon as stored in the checkout session.
type Coupon struct {
	ID               string           `json:"id"`
	Code             string           `json:"code"`
	DiscountValue    decimal.Decimal  `json:"discount_value"`
	DiscountType     string           `json:"discount_type"`
	OrderAmountLimit *decimal.Decimal `json:"order_amount_limit,omitempty"`
}

func fromBackend(c *backend.Coupon) *Coupon {
	return &Coupon{
		ID:               c.ID.String(),
		Code:             c.Code,
		DiscountValue:    c.DiscountValue,
		DiscountType:     c.DiscountType,
		OrderAmountLimit: c.OrderAmountLimit,
	}
}

// Discount is the amount this coupon takes off subtotal.
func (c *Coupon) Discount(subtotal decimal.Decimal) decimal.Decimal {
	if c == nil || !c.Eligible(subtotal) {
		return decimal.Zero
	}
	return pricing.CouponDiscount(c.DiscountType, c.DiscountValue, subtotal)
}

// Eligible reports whether subtotal reaches the coupon's minimum order amount.
func (c *Coupon) Eligible(subtotal decimal.Decimal) bool {
	if c == nil {
		return false
	}
	return c.OrderAmountLimit == nil || !subtotal.LessThan(*c.OrderAmountLimit)
}

// Application is the outcome of applying a code.
type Application struct {
	Valid           bool            `json:"valid"`
	Message         string          `json:"message,omitempty"`
	Coupon          *Coupon         `json:"coupon,omitempty"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Discount        decimal.Decimal `json:"discount"`
	FinalTotal      decimal.Decimal `json:"final_total"`
	DiscountDisplay string          `json:"discount_display"`
}
