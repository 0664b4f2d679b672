package invoice

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Discount is the tagged discount directive handed down by the promotions
// layer. Only percentage and fixed shapes are legal on an invoice.
type Discount struct {
	Type  DiscountType
	Value decimal.Decimal
}

// Amount computes the monetary discount for the given subtotal. It validates
// the directive but not the resulting payable amount; the deriver enforces
// that the discount stays below the subtotal.
func (d Discount) Amount(subtotal decimal.Decimal) (decimal.Decimal, error) {
	switch d.Type {
	case DiscountPercentage:
		if d.Value.IsNegative() || d.Value.GreaterThan(hundred) {
			return decimal.Zero, ErrPercentOutOfRange
		}
		return subtotal.Mul(d.Value).Div(hundred).Round(2), nil
	case DiscountFixed:
		if !d.Value.IsPositive() {
			return decimal.Zero, ErrDiscountNotPositive
		}
		return d.Value.Round(2), nil
	default:
		return decimal.Zero, ErrInvalidDiscountType
	}
}
