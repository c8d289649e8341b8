package orders

const taxRatePercent = 10

// ComputeTotals sums line-item subtotals and applies the 10% tax, rounded
// half-up to the nearest currency unit. The delivery fee is decided by the
// caller (0 when the order qualifies for free delivery); this function only
// sums. Pure.
func ComputeTotals(items []LineItem, deliveryFee int64) Totals {
	var subtotal int64
	for _, it := range items {
		subtotal += it.Subtotal
	}
	tax := (subtotal*taxRatePercent + 50) / 100
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Delivery: deliveryFee,
		Total:    subtotal + tax + deliveryFee,
	}
}
