package checkout

import (
	"github.com/angelmondragon/storefront-checkout/pkg/pricing"
	"github.com/shopspring/decimal"
)

// Result is what a checkout attempt, a return trip or a confirmation lookup renders.
type Result struct {
	Success              bool            `json:"success"`
	State                State           `json:"state"`
	OrderID              string          `json:"order_id,omitempty"`
	Message              string          `json:"message,omitempty"`
	OriginalTotal        decimal.Decimal `json:"original_total"`
	DiscountAmount       decimal.Decimal `json:"discount_amount"`
	FinalTotal           decimal.Decimal `json:"final_total"`
	FinalTotalDisplay    string          `json:"final_total_display"`
	PaymentURL           string          `json:"payment_url,omitempty"`
	RedirectTo           string          `json:"redirect_to,omitempty"`
	RedirectAfterSeconds int             `json:"redirect_after_seconds,omitempty"`
}

type totals struct {
	original decimal.Decimal
	discount decimal.Decimal
	final    decimal.Decimal
}

func newTotals(original, discount decimal.Decimal) totals {
	return totals{original: original, discount: discount, final: pricing.FinalTotal(original, discount)}
}

func (t totals) isZero() bool {
	return t.original.IsZero() && t.discount.IsZero() && t.final.IsZero()
}

func (r *Result) setTotals(t totals) {
	r.OriginalTotal = t.original
	r.DiscountAmount = t.discount
	r.FinalTotal = t.final
	r.FinalTotalDisplay = pricing.FormatVND(t.final)
}
