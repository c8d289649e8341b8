package validation

// ItemRequest is a single order line item as submitted by a client. The
// subtotal is client-computed per line but cross-checked against
// price * quantity at bind time; order totals are always recomputed
// server-side.
type ItemRequest struct {
	MenuID   string `json:"menuId"`
	Name     string `json:"name" validate:"required"`
	Price    int64  `json:"price" validate:"gte=0"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
	Subtotal int64  `json:"subtotal" validate:"required,gt=0"`
}

// CustomerRequest carries the raw customer identity; name and phone are
// both required before any write happens.
type CustomerRequest struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"required"`
}

// CreateOrderRequest is the payload for POST /orders.
type CreateOrderRequest struct {
	StoreID         string          `json:"storeId" validate:"required"`
	Items           []ItemRequest   `json:"items" validate:"required,min=1,dive"`
	Customer        CustomerRequest `json:"customer" validate:"required"`
	OrderType       string          `json:"orderType" validate:"required"`
	PaymentMethod   string          `json:"paymentMethod" validate:"required"`
	DeliveryAddress string          `json:"deliveryAddress,omitempty"`
	SpecialRequests string          `json:"specialRequests,omitempty"`
	DeliveryFee     int64           `json:"deliveryFee" validate:"gte=0"`
}

// SetStatusRequest is the payload for POST /orders/:orderID/status.
type SetStatusRequest struct {
	StoreID    string `json:"storeId" validate:"required"`
	Status     string `json:"status" validate:"required"`
	Note       string `json:"note,omitempty"`
	MutationID string `json:"mutationId,omitempty"`
}

// ConfirmPaymentRequest is the payload for POST /payments/confirm.
type ConfirmPaymentRequest struct {
	OrderID string `json:"orderId" validate:"required"`
	Amount  int64  `json:"amount" validate:"required,gt=0"`
	TID     string `json:"tid" validate:"required"`
}

// RetryNotifyRequest is the payload for POST /notifications/retry.
type RetryNotifyRequest struct {
	FailureIDs []string `json:"failureIds" validate:"required,min=1"`
}

// RenderTemplateRequest is the payload for template rendering.
type RenderTemplateRequest struct {
	Data map[string]any `json:"data"`
}
