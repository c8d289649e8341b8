// Package mutations persists idempotency markers for caller-retryable
// mutations, keyed by a caller-supplied mutation id.
package mutations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/suhachi/mystorestory-orders/internal/awsx"
)

// Store encapsulates mutation-record operations against DynamoDB.
type Store struct {
	client    awsx.DynamoDBAPI
	tableName string
	ttlWindow time.Duration
	nowFunc   func() time.Time
}

// NewStore returns a configured Store. ttlWindow bounds how long applied
// mutation ids are remembered (e.g. 48h).
func NewStore(client awsx.DynamoDBAPI, tableName string, ttlWindow time.Duration) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

// TableName returns the backing table, for callers composing transactions.
func (s *Store) TableName() string { return s.tableName }

// NewRecord builds a Record with the store's TTL window applied.
func (s *Store) NewRecord(mutationID, orderID, status string) Record {
	now := s.nowFunc()
	return Record{
		MutationID: mutationID,
		OrderID:    orderID,
		Status:     status,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttlWindow).Unix(),
	}
}

// CreateIfNotExists writes the record unless the mutation id is already
// marked applied. Returns created=false (no error) on a duplicate.
func (s *Store) CreateIfNotExists(ctx context.Context, rec Record) (bool, error) {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, fmt.Errorf("marshal record: %w", err)
	}

	input := &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(mutation_id)"),
	}

	_, err = s.client.PutItem(ctx, input)
	if err != nil {
		var cond *types.ConditionalCheckFailedException
		if errors.As(err, &cond) {
			return false, nil
		}
		var api smithy.APIError
		if errors.As(err, &api) && api.ErrorCode() == "ConditionalCheckFailedException" {
			return false, nil
		}
		return false, fmt.Errorf("put item: %w", err)
	}
	return true, nil
}

// Get retrieves a mutation record. Returns (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, mutationID string) (*Record, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"mutation_id": &types.AttributeValueMemberS{Value: mutationID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return &rec, nil
}

func awsString(s string) *string { return &s }
