package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/suhachi/mystorestory-orders/internal/awsx"
	"github.com/suhachi/mystorestory-orders/internal/mutations"
)

// ErrNotFound is returned when the referenced order does not exist.
var ErrNotFound = errors.New("order not found")

// ErrAlreadyExists is returned when a conditional create lost to an
// existing order or mutation record.
var ErrAlreadyExists = errors.New("order or mutation record already exists")

// ErrMutationApplied signals that the mutation id was applied by a
// concurrent request; the caller should treat the operation as done.
var ErrMutationApplied = errors.New("mutation already applied")

// TransitionError reports an illegal status transition, naming both states.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

// Store encapsulates operations on the orders and history tables.
type Store struct {
	client       awsx.DynamoDBAPI
	tableName    string
	historyTable string
	nowFunc      func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(client awsx.DynamoDBAPI, tableName, historyTable string) *Store {
	return &Store{
		client:       client,
		tableName:    tableName,
		historyTable: historyTable,
		nowFunc:      time.Now,
	}
}

// Create persists a new order, optionally coupled with a mutation record in
// mutationsTable so a client retry of the same creation is a no-op. Both
// writes commit together or not at all.
func (s *Store) Create(ctx context.Context, order Order, mutationsTable string, mut *mutations.Record) error {
	orderMap, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	items := []types.TransactWriteItem{
		{
			Put: &types.Put{
				TableName:           &s.tableName,
				Item:                orderMap,
				ConditionExpression: awsString("attribute_not_exists(order_id)"),
			},
		},
	}
	if mut != nil {
		mutMap, err := attributevalue.MarshalMap(*mut)
		if err != nil {
			return fmt.Errorf("marshal mutation record: %w", err)
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           &mutationsTable,
				Item:                mutMap,
				ConditionExpression: awsString("attribute_not_exists(mutation_id)"),
			},
		})
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}

// GetByID fetches an order by order_id alone (payment callbacks carry no
// store id). Returns ErrNotFound when absent.
func (s *Store) GetByID(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	// Older writers stored timestamps as RFC3339 strings; normalize to
	// epoch millis so clients never branch on the representation.
	normalizeEpochMillis(out.Item, "created_at")
	normalizeEpochMillis(out.Item, "updated_at")

	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// Get fetches an order scoped to a store. A store mismatch reads as absent.
func (s *Store) Get(ctx context.Context, storeID, orderID string) (*Order, error) {
	o, err := s.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.StoreID != storeID {
		return nil, ErrNotFound
	}
	return o, nil
}

// Transition atomically applies current -> target on the order, appends a
// history entry, and (when mut is non-nil) writes the mutation record. The
// status update is conditioned on the status observed here, so of two
// concurrent attempts exactly one commits; the loser re-validates against
// the now-current status.
func (s *Store) Transition(ctx context.Context, storeID, orderID, target, note, actor string, mutationsTable string, mut *mutations.Record) (*HistoryEntry, error) {
	order, err := s.Get(ctx, storeID, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(order.Status, target) {
		return nil, &TransitionError{From: order.Status, To: target}
	}

	now := s.nowFunc()
	entry := HistoryEntry{
		HistoryID: uuid.NewString(),
		OrderID:   orderID,
		StoreID:   storeID,
		Status:    target,
		Note:      note,
		Actor:     actor,
		CreatedAt: now.UnixMilli(),
	}
	entryMap, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return nil, fmt.Errorf("marshal history entry: %w", err)
	}

	items := []types.TransactWriteItem{
		{
			Update: &types.Update{
				TableName: &s.tableName,
				Key: map[string]types.AttributeValue{
					"order_id": &types.AttributeValueMemberS{Value: orderID},
				},
				UpdateExpression:         awsString("SET #s = :next, updated_at = :ua"),
				ConditionExpression:      awsString("#s = :cur"),
				ExpressionAttributeNames: map[string]string{"#s": "status"},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":next": &types.AttributeValueMemberS{Value: target},
					":cur":  &types.AttributeValueMemberS{Value: order.Status},
					":ua":   &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMilli(), 10)},
				},
			},
		},
		{
			Put: &types.Put{
				TableName: &s.historyTable,
				Item:      entryMap,
			},
		},
	}
	if mut != nil {
		mutMap, err := attributevalue.MarshalMap(*mut)
		if err != nil {
			return nil, fmt.Errorf("marshal mutation record: %w", err)
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           &mutationsTable,
				Item:                mutMap,
				ConditionExpression: awsString("attribute_not_exists(mutation_id)"),
			},
		})
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		var tce *types.TransactionCanceledException
		if !errors.As(err, &tce) {
			return nil, fmt.Errorf("transact write: %w", err)
		}
		// The transaction lost a race. If our mutation id was applied by a
		// concurrent retry, report that; otherwise re-validate against the
		// now-current status.
		if mut != nil {
			out, gerr := s.client.GetItem(ctx, &dyn.GetItemInput{
				TableName: &mutationsTable,
				Key: map[string]types.AttributeValue{
					"mutation_id": &types.AttributeValueMemberS{Value: mut.MutationID},
				},
			})
			if gerr == nil && len(out.Item) > 0 {
				return nil, ErrMutationApplied
			}
		}
		current, gerr := s.Get(ctx, storeID, orderID)
		if gerr != nil {
			return nil, gerr
		}
		return nil, &TransitionError{From: current.Status, To: target}
	}

	return &entry, nil
}

// MarkPaid records gateway approval on the payment sub-record.
func (s *Store) MarkPaid(ctx context.Context, orderID, tid string) error {
	now := s.nowFunc()
	return s.updatePayment(ctx, orderID, map[string]types.AttributeValue{
		":ps":  &types.AttributeValueMemberS{Value: PaymentPaid},
		":tid": &types.AttributeValueMemberS{Value: tid},
		":at":  &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMilli(), 10)},
		":ua":  &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMilli(), 10)},
	}, "SET payment.#ps = :ps, payment.tid = :tid, payment.approved_at = :at, updated_at = :ua", nil)
}

// MarkPaymentFailed records a gateway failure reason on the payment
// sub-record.
func (s *Store) MarkPaymentFailed(ctx context.Context, orderID, reason string) error {
	now := s.nowFunc()
	return s.updatePayment(ctx, orderID, map[string]types.AttributeValue{
		":ps": &types.AttributeValueMemberS{Value: PaymentFailed},
		":fr": &types.AttributeValueMemberS{Value: reason},
		":ua": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMilli(), 10)},
	}, "SET payment.#ps = :ps, payment.fail_reason = :fr, updated_at = :ua", nil)
}

/// MarkPaymentTampering flags an amount mismatch: the order itself records
// the tampering signal so the audit trail survives the rejected call.
func (s *Store) MarkPaymentTampering(ctx context.Context, orderID string, claimed int64) error {
	now := s.nowFunc()
	reason := fmt.Sprintf("claimed amount %d does not match order total", claimed)
	extraNames := map[string]string{"#s": "status"}
	return s.updatePayment(ctx, orderID, map[string]types.AttributeValue{
		":st": &types.AttributeValueMemberS{Value: StatusPaymentTampering},
		":ps": &types.AttributeValueMemberS{Value: PaymentFailed},
		":fr": &types.AttributeValueMemberS{Value: reason},
		":ua": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMilli(), 10)},
	}, "SET #s = :st, payment.#ps = :ps, payment.fail_reason = :fr, updated_at = :ua", extraNames)
}

func (s *Store) updatePayment(ctx context.Context, orderID string, values map[string]types.AttributeValue, expr string, extraNames map[string]string) error {
	names := map[string]string{"#ps": "status"}
	for k, v := range extraNames {
		names[k] = v
	}
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression:          &expr,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	return nil
}

// normalizeEpochMillis rewrites an RFC3339 string attribute as epoch millis.
func normalizeEpochMillis(item map[string]types.AttributeValue, attr string) {
	sv, ok := item[attr].(*types.AttributeValueMemberS)
	if !ok {
		return
	}
	if t, err := time.Parse(time.RFC3339, sv.Value); err == nil {
		item[attr] = &types.AttributeValueMemberN{Value: strconv.FormatInt(t.UnixMilli(), 10)}
	}
}

func awsString(s string) *string { return &s }
