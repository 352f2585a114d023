// Package pricing derives effective prices and cart totals from catalog state.
//
// Every call site that needs a unit price (cart view, order snapshot) goes
// through EffectivePrice so both observe the same precision. Values are kept
// exact; rounding happens only in Display.
package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Line is the minimal view of a priced cart line.
type Line struct {
	Price    decimal.Decimal
	Discount int
	Qty      int
}

// Summary aggregates the monetary totals of a set of lines.
type Summary struct {
	Items       int
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
}

// EffectivePrice returns price - price*discount/100. Discounts outside 0..100
// are clamped.
func EffectivePrice(price decimal.Decimal, discount int) decimal.Decimal {
	switch {
	case discount <= 0:
		return price
	case discount >= 100:
		return decimal.Zero
	}
	off := price.Mul(decimal.NewFromInt(int64(discount))).Div(hundred)
	return price.Sub(off)
}

// LineTotal returns the effective unit price multiplied by qty.
func LineTotal(l Line) decimal.Decimal {
	return EffectivePrice(l.Price, l.Discount).Mul(decimal.NewFromInt(int64(l.Qty)))
}

// Subtotal returns the sum of line totals.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(LineTotal(l))
	}
	return sum
}

// DeliveryFee returns flat when there is at least one line and zero otherwise.
func DeliveryFee(lines []Line, flat decimal.Decimal) decimal.Decimal {
	if len(lines) == 0 {
		return decimal.Zero
	}
	return flat
}

// Summarize computes item count, subtotal, delivery fee and total.
func Summarize(lines []Line, flat decimal.Decimal) Summary {
	items := 0
	for _, l := range lines {
		items += l.Qty
	}
	subtotal := Subtotal(lines)
	fee := DeliveryFee(lines, flat)
	return Summary{
		Items:       items,
		Subtotal:    subtotal,
		DeliveryFee: fee,
		Total:       subtotal.Add(fee),
	}
}

// Display formats an amount with two decimal places.
func Display(d decimal.Decimal) string {
	return d.StringFixed(2)
}
