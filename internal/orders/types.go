package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Order statuses.
const (
	StatusNew              = "NEW"
	StatusConfirmed        = "CONFIRMED"
	StatusPreparing        = "PREPARING"
	StatusReady            = "READY"
	StatusFulfilled        = "FULFILLED"
	StatusCancelled        = "CANCELLED"
	StatusPaymentTampering = "PAYMENT_TAMPERING"
)

// Payment statuses.
const (
	PaymentPending = "PENDING"
	PaymentPaid    = "PAID"
	PaymentFailed  = "FAILED"
)

// Payment channels.
const (
	ChannelOnline  = "ONLINE"
	ChannelOffline = "OFFLINE"
)

// MethodAppCard is the only payment method settled through the online gateway.
const MethodAppCard = "APP_CARD"

// LineItem is one order line with its precomputed subtotal.
type LineItem struct {
	MenuID   string `dynamodbav:"menu_id,omitempty" json:"menuId,omitempty"`
	Name     string `dynamodbav:"name" json:"name"`
	Price    int64  `dynamodbav:"price" json:"price"`
	Quantity int    `dynamodbav:"quantity" json:"quantity"`
	Subtotal int64  `dynamodbav:"subtotal" json:"subtotal"`
}

// Customer is the raw contact record; never exposed on public reads.
type Customer struct {
	Name  string `dynamodbav:"name" json:"name"`
	Phone string `dynamodbav:"phone" json:"phone"`
}

// Totals is computed once at creation and never recomputed from items.
type Totals struct {
	Subtotal int64 `dynamodbav:"subtotal" json:"subtotal"`
	Tax      int64 `dynamodbav:"tax" json:"tax"`
	Delivery int64 `dynamodbav:"delivery" json:"delivery"`
	Total    int64 `dynamodbav:"total" json:"total"`
}

// Payment is the payment sub-record of an order.
type Payment struct {
	Enabled     bool   `dynamodbav:"enabled" json:"enabled"`
	Method      string `dynamodbav:"method" json:"method"`
	Channel     string `dynamodbav:"channel" json:"channel"` // ONLINE | OFFLINE
	Status      string `dynamodbav:"status" json:"status"`
	TotalAmount int64  `dynamodbav:"total_amount" json:"totalAmount"`
	TID         string `dynamodbav:"tid,omitempty" json:"tid,omitempty"`
	ApprovedAt  int64  `dynamodbav:"approved_at,omitempty" json:"approvedAt,omitempty"`
	FailReason  string `dynamodbav:"fail_reason,omitempty" json:"failReason,omitempty"`
}

// Order is the item stored in the orders table.
type Order struct {
	OrderID         string     `dynamodbav:"order_id" json:"orderId"` // PK
	OrderNumber     string     `dynamodbav:"order_number" json:"orderNumber"`
	StoreID         string     `dynamodbav:"store_id" json:"storeId"`
	Items           []LineItem `dynamodbav:"items" json:"items"`
	Customer        *Customer  `dynamodbav:"customer,omitempty" json:"customer,omitempty"`
	CustomerMasked  Customer   `dynamodbav:"customer_masked" json:"customerMasked"`
	DeliveryAddress string     `dynamodbav:"delivery_address,omitempty" json:"deliveryAddress,omitempty"`
	SpecialRequests string     `dynamodbav:"special_requests,omitempty" json:"specialRequests,omitempty"`
	OrderType       string     `dynamodbav:"order_type" json:"orderType"`
	Status          string     `dynamodbav:"status" json:"status"`
	Payment         Payment    `dynamodbav:"payment" json:"payment"`
	Totals          Totals     `dynamodbav:"totals" json:"totals"`
	CreatedAt       int64      `dynamodbav:"created_at" json:"createdAt"` // epoch millis
	UpdatedAt       int64      `dynamodbav:"updated_at" json:"updatedAt"`
}

// PublicOrder is the projection served to anonymous order-tracking clients.
// It carries the masked customer and never the raw one.
type PublicOrder struct {
	OrderID         string     `json:"orderId"`
	OrderNumber     string     `json:"orderNumber"`
	StoreID         string     `json:"storeId"`
	Items           []LineItem `json:"items"`
	Customer        Customer   `json:"customer"`
	DeliveryAddress string     `json:"deliveryAddress,omitempty"`
	SpecialRequests string     `json:"specialRequests,omitempty"`
	OrderType       string     `json:"orderType"`
	Status          string     `json:"status"`
	Payment         Payment    `json:"payment"`
	Totals          Totals     `json:"totals"`
	CreatedAt       int64      `json:"createdAt"`
	UpdatedAt       int64      `json:"updatedAt"`
}

// Public re-projects the order for unauthenticated readers.
func (o *Order) Public() PublicOrder {
	return PublicOrder{
		OrderID:         o.OrderID,
		OrderNumber:     o.OrderNumber,
		StoreID:         o.StoreID,
		Items:           o.Items,
		Customer:        o.CustomerMasked,
		DeliveryAddress: o.DeliveryAddress,
		SpecialRequests: o.SpecialRequests,
		OrderType:       o.OrderType,
		Status:          o.Status,
		Payment:         o.Payment,
		Totals:          o.Totals,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

// HistoryEntry is the append-only audit record written with each status
// change. New entries are the sole trigger for notification fan-out.
type HistoryEntry struct {
	HistoryID string `dynamodbav:"history_id" json:"historyId"` // PK
	OrderID   string `dynamodbav:"order_id" json:"orderId"`
	StoreID   string `dynamodbav:"store_id" json:"storeId"`
	Status    string `dynamodbav:"status" json:"status"`
	Note      string `dynamodbav:"note,omitempty" json:"note,omitempty"`
	Actor     string `dynamodbav:"actor" json:"actor"`
	CreatedAt int64  `dynamodbav:"created_at" json:"createdAt"`
}

// HistoryEvent is the queue payload published when a history entry is
// written; the notification worker fans it out to customer channels.
type HistoryEvent struct {
	HistoryID   string `json:"historyId"`
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	StoreID     string `json:"storeId"`
	Status      string `json:"status"`
	Note        string `json:"note,omitempty"`
}

// NewOrderID returns an opaque, time-derived id with a random suffix.
func NewOrderID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%s", now.UTC().Format("20060102T150405"), suffix)
}

// NewOrderNumber returns the short human-facing display number derived
// from the creation timestamp.
func NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("%06d", now.UnixMilli()%1_000_000)
}
