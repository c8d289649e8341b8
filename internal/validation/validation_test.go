package validation

import "testing"

func validRequest() CreateOrderRequest {
	return CreateOrderRequest{
		StoreID: "s1",
		Items: []ItemRequest{
			{Name: "americano", Price: 4500, Quantity: 2, Subtotal: 9000},
		},
		Customer:      CustomerRequest{Name: "홍길동", Phone: "01012345678"},
		OrderType:     "PICKUP",
		PaymentMethod: "CASH",
	}
}

func TestCreateOrderRequest_Valid(t *testing.T) {
	v := New()
	if err := v.Struct(validRequest()); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}
}

func TestCreateOrderRequest_RequiredFields(t *testing.T) {
	v := New()

	mutate := map[string]func(*CreateOrderRequest){
		"storeId":        func(r *CreateOrderRequest) { r.StoreID = "" },
		"items":          func(r *CreateOrderRequest) { r.Items = nil },
		"customer.name":  func(r *CreateOrderRequest) { r.Customer.Name = "" },
		"customer.phone": func(r *CreateOrderRequest) { r.Customer.Phone = "" },
		"orderType":      func(r *CreateOrderRequest) { r.OrderType = "" },
		"paymentMethod":  func(r *CreateOrderRequest) { r.PaymentMethod = "" },
	}
	for field, f := range mutate {
		req := validRequest()
		f(&req)
		if err := v.Struct(req); err == nil {
			t.Errorf("missing %s accepted", field)
		}
	}
}

func TestCreateOrderRequest_LineSubtotalMismatch(t *testing.T) {
	v := New()
	req := validRequest()
	req.Items[0].Subtotal = 8999 // price 4500 x 2 = 9000
	if err := v.Struct(req); err == nil {
		t.Fatal("line subtotal mismatch accepted")
	}
}

func TestCreateOrderRequest_NegativeDeliveryFee(t *testing.T) {
	v := New()
	req := validRequest()
	req.DeliveryFee = -1
	if err := v.Struct(req); err == nil {
		t.Fatal("negative delivery fee accepted")
	}
}
