package pricing

import "github.com/shopspring/decimal"

// Line is a priced order line. UnitPrice is the charged (post-discount) price
// per unit rounded to 2 decimal places.
type Line struct {
	BasePrice       decimal.Decimal
	UnitPrice       decimal.Decimal
	Quantity        int
	DiscountPercent int64
}

// Summary aggregates the monetary components of a set of priced lines.
type Summary struct {
	Subtotal         decimal.Decimal
	QuantityDiscount decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// DiscountPercent returns the quantity discount tier for the requested
// quantity. Tiers are non-overlapping; the highest qualifying tier wins.
func DiscountPercent(quantity int) int64 {
	switch {
	case quantity >= 10:
		return 15
	case quantity >= 5:
		return 10
	case quantity >= 3:
		return 5
	default:
		return 0
	}
}

// PriceLine prices a single line: the discounted unit price is rounded to
// 2 decimal places before it is multiplied by the quantity. Callers must
// reject non-positive quantities before this stage.
func PriceLine(basePrice decimal.Decimal, quantity int) Line {
	percent := DiscountPercent(quantity)
	factor := hundred.Sub(decimal.NewFromInt(percent)).Div(hundred)
	unit := basePrice.Mul(factor).Round(2)
	return Line{
		BasePrice:       basePrice,
		UnitPrice:       unit,
		Quantity:        quantity,
		DiscountPercent: percent,
	}
}

// Total returns the line total at the charged unit price.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))).Round(2)
}

// Discount returns how much the quantity tier saved versus the base price,
// never negative.
func (l Line) Discount() decimal.Decimal {
	base := l.BasePrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
	d := base.Sub(l.Total()).Round(2)
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Compute accumulates the subtotal and total quantity discount across lines,
// rounding at every accumulation step so stored totals can be reproduced
// exactly from persisted line items.
func Compute(lines []Line) Summary {
	subtotal := decimal.Zero
	discount := decimal.Zero
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		subtotal = subtotal.Add(l.Total()).Round(2)
		discount = discount.Add(l.Discount()).Round(2)
	}
	return Summary{Subtotal: subtotal, QuantityDiscount: discount}
}
