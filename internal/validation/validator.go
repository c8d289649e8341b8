package validation

import (
	"fmt"

	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// Line-item subtotals are client-computed; reject any line whose
	// subtotal disagrees with price * quantity. Order totals themselves
	// are recomputed server-side, never trusted.
	v.RegisterStructValidation(createOrderStructValidation, CreateOrderRequest{})

	return v
}

func createOrderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateOrderRequest)

	for i, it := range req.Items {
		if it.Price > 0 && it.Subtotal != it.Price*int64(it.Quantity) {
			sl.ReportError(it.Subtotal, fmt.Sprintf("items[%d].subtotal", i), "Subtotal", "subtotal_match_line",
				fmt.Sprintf("subtotal %d != price %d x quantity %d", it.Subtotal, it.Price, it.Quantity))
		}
	}
}
