package orders_test

import (
	"context"
	"errors"
	"testing"
	"time"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/suhachi/mystorestory-orders/internal/awsx/awstest"
	"github.com/suhachi/mystorestory-orders/internal/mutations"
	"github.com/suhachi/mystorestory-orders/internal/orders"
)

const (
	ordersTable    = "orders"
	historyTable   = "order_history"
	mutationsTable = "mutations"
)

func newTestDB() *awstest.DB {
	db := awstest.NewDB()
	db.CreateTable(ordersTable, "order_id")
	db.CreateTable(historyTable, "history_id")
	db.CreateTable(mutationsTable, "mutation_id")
	return db
}

func sampleOrder(id, storeID string) orders.Order {
	items := []orders.LineItem{{Name: "americano", Price: 4500, Quantity: 2, Subtotal: 9000}}
	totals := orders.ComputeTotals(items, 0)
	customer := orders.Customer{Name: "홍길동", Phone: "01012345678"}
	now := time.Now().UnixMilli()
	return orders.Order{
		OrderID:        id,
		OrderNumber:    "000123",
		StoreID:        storeID,
		Items:          items,
		Customer:       &customer,
		CustomerMasked: orders.MaskCustomer(customer),
		OrderType:      "PICKUP",
		Status:         orders.StatusNew,
		Payment: orders.Payment{
			Method:      "CASH",
			Channel:     orders.ChannelOffline,
			Status:      orders.PaymentPending,
			TotalAmount: totals.Total,
		},
		Totals:    totals,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateAndGet(t *testing.T) {
	db := newTestDB()
	s := orders.NewStore(db, ordersTable, historyTable)
	ctx := context.Background()

	if err := s.Create(ctx, sampleOrder("o1", "store-1"), mutationsTable, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.Get(ctx, "store-1", "o1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != orders.StatusNew || got.Totals.Total != 9900 {
		t.Fatalf("unexpected order %+v", got)
	}

	// wrong store reads as absent
	if _, err := s.Get(ctx, "store-2", "o1"); !errors.Is(err, orders.ErrNotFound) {
		t.Fatalf("cross-store Get err = %v, want ErrNotFound", err)
	}
	if _, err := s.Get(ctx, "store-1", "nope"); !errors.Is(err, orders.ErrNotFound) {
		t.Fatalf("missing Get err = %v, want ErrNotFound", err)
	}
}

func TestCreate_DuplicateOrderID(t *testing.T) {
	db := newTestDB()
	s := orders.NewStore(db, ordersTable, historyTable)
	ctx := context.Background()

	if err := s.Create(ctx, sampleOrder("o1", "store-1"), mutationsTable, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, sampleOrder("o1", "store-1"), mutationsTable, nil); !errors.Is(err, orders.ErrAlreadyExists) {
		t.Fatalf("duplicate Create err = %v, want ErrAlreadyExists", err)
	}
}

func TestTransition_AppendsHistory(t *testing.T) {
	db := newTestDB()
	s := orders.NewStore(db, ordersTable, historyTable)
	ctx := context.Background()

	if err := s.Create(ctx, sampleOrder("o1", "store-1"), mutationsTable, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	entry, err := s.Transition(ctx, "store-1", "o1", orders.StatusConfirmed, "accepted", "owner-1", mutationsTable, nil)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if entry.Status != orders.StatusConfirmed || entry.Actor != "owner-1" {
		t.Fatalf("unexpected history entry %+v", entry)
	}
	if db.Len(historyTable) != 1 {
		t.Fatalf("history entries = %d, want 1", db.Len(historyTable))
	}

	got, err := s.Get(ctx, "store-1", "o1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != orders.StatusConfirmed {
		t.Fatalf("status = %s, want CONFIRMED", got.Status)
	}
}

func TestTransition_InvalidRejectedWithoutMutation(t *testing.T) {
	db := newTestDB()
	s := orders.NewStore(db, ordersTable, historyTable)
	ctx := context.Background()

	if err := s.Create(ctx, sampleOrder("o1", "store-1"), mutationsTable, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err := s.Transition(ctx, "store-1", "o1", orders.StatusReady, "", "owner-1", mutationsTable, nil)
	var te *orders.TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("NEW->READY err = %v, want TransitionError", err)
	}
	if te.From != orders.StatusNew || te.To != orders.StatusReady {
		t.Fatalf("TransitionError = %+v", te)
	}
	if db.Len(historyTable) != 0 {
		t.Fatal("invalid transition must not append history")
	}
	got, _ := s.Get(ctx, "store-1", "o1")
	if got.Status != orders.StatusNew {
		t.Fatalf("status mutated to %s on rejected transition", got.Status)
	}
}

func TestTransition_MutationRecordRace(t *testing.T) {
	db := newTestDB()
	s := orders.NewStore(db, ordersTable, historyTable)
	muts := mutations.NewStore(db, mutationsTable, 48*time.Hour)
	ctx := context.Background()

	if err := s.Create(ctx, sampleOrder("o1", "store-1"), mutationsTable, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, sampleOrder("o2", "store-1"), mutationsTable, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	m1 := muts.NewRecord("m1", "o1", orders.StatusConfirmed)
	if _, err := s.Transition(ctx, "store-1", "o1", orders.StatusConfirmed, "", "owner-1", mutationsTable, &m1); err != nil {
		t.Fatalf("first Transition: %v", err)
	}

	// A concurrent retry that raced past the pre-read hits the conditional
	// on the mutation record and reports already-applied.
	m1b := muts.NewRecord("m1", "o2", orders.StatusConfirmed)
	_, err := s.Transition(ctx, "store-1", "o2", orders.StatusConfirmed, "", "owner-1", mutationsTable, &m1b)
	if !errors.Is(err, orders.ErrMutationApplied) {
		t.Fatalf("err = %v, want ErrMutationApplied", err)
	}
	if db.Len(historyTable) != 1 {
		t.Fatalf("history entries = %d, want exactly 1", db.Len(historyTable))
	}
}

func TestMarkPaymentTampering(t *testing.T) {
	db := newTestDB()
	s := orders.NewStore(db, ordersTable, historyTable)
	ctx := context.Background()

	if err := s.Create(ctx, sampleOrder("o1", "store-1"), mutationsTable, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.MarkPaymentTampering(ctx, "o1", 100); err != nil {
		t.Fatalf("MarkPaymentTampering: %v", err)
	}

	got, err := s.GetByID(ctx, "o1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != orders.StatusPaymentTampering {
		t.Fatalf("status = %s, want PAYMENT_TAMPERING", got.Status)
	}
	if got.Payment.Status != orders.PaymentFailed {
		t.Fatalf("payment status = %s, want FAILED", got.Payment.Status)
	}
	if got.Payment.FailReason == "" {
		t.Fatal("fail reason should record the claimed amount")
	}
}

func TestMarkPaid(t *testing.T) {
	db := newTestDB()
	s := orders.NewStore(db, ordersTable, historyTable)
	ctx := context.Background()

	if err := s.Create(ctx, sampleOrder("o1", "store-1"), mutationsTable, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.MarkPaid(ctx, "o1", "tid-123"); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	got, _ := s.GetByID(ctx, "o1")
	if got.Payment.Status != orders.PaymentPaid || got.Payment.TID != "tid-123" || got.Payment.ApprovedAt == 0 {
		t.Fatalf("payment not recorded: %+v", got.Payment)
	}
}

func TestGetByID_NormalizesStringTimestamps(t *testing.T) {
	db := newTestDB()
	s := orders.NewStore(db, ordersTable, historyTable)
	ctx := context.Background()

	// An item written by an older producer with RFC3339 timestamps.
	stamp := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	item := map[string]types.AttributeValue{
		"order_id":   &types.AttributeValueMemberS{Value: "legacy-1"},
		"store_id":   &types.AttributeValueMemberS{Value: "store-1"},
		"status":     &types.AttributeValueMemberS{Value: orders.StatusNew},
		"created_at": &types.AttributeValueMemberS{Value: stamp.Format(time.RFC3339)},
		"updated_at": &types.AttributeValueMemberS{Value: stamp.Format(time.RFC3339)},
	}
	table := ordersTable
	if _, err := db.PutItem(ctx, &dyn.PutItemInput{TableName: &table, Item: item}); err != nil {
		t.Fatalf("seed legacy item: %v", err)
	}

	got, err := s.GetByID(ctx, "legacy-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.CreatedAt != stamp.UnixMilli() || got.UpdatedAt != stamp.UnixMilli() {
		t.Fatalf("timestamps not normalized: created=%d updated=%d want %d", got.CreatedAt, got.UpdatedAt, stamp.UnixMilli())
	}
}

func TestPublicProjectionDropsRawCustomer(t *testing.T) {
	o := sampleOrder("o1", "store-1")
	pub := o.Public()
	if pub.Customer.Phone == o.Customer.Phone {
		t.Fatal("public projection leaks the raw phone")
	}
	if pub.Customer != o.CustomerMasked {
		t.Fatalf("public customer %+v, want masked %+v", pub.Customer, o.CustomerMasked)
	}
}
