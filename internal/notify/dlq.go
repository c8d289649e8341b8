package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/suhachi/mystorestory-orders/internal/awsx"
)

// DLQStore persists notification failures pending operator retry.
type DLQStore struct {
	client    awsx.DynamoDBAPI
	tableName string
}

func NewDLQStore(client awsx.DynamoDBAPI, tableName string) *DLQStore {
	return &DLQStore{client: client, tableName: tableName}
}

// Put records a failed delivery.
func (s *DLQStore) Put(ctx context.Context, f Failure) error {
	item, err := attributevalue.MarshalMap(f)
	if err != nil {
		return fmt.Errorf("marshal failure: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put failure: %w", err)
	}
	return nil
}

// Get fetches a failure record. Returns (nil, nil) when absent.
func (s *DLQStore) Get(ctx context.Context, failureID string) (*Failure, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"failure_id": &types.AttributeValueMemberS{Value: failureID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get failure: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var f Failure
	if err := attributevalue.UnmarshalMap(out.Item, &f); err != nil {
		return nil, fmt.Errorf("unmarshal failure: %w", err)
	}
	return &f, nil
}

// Delete removes a failure record after a successful replay.
func (s *DLQStore) Delete(ctx context.Context, failureID string) error {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"failure_id": &types.AttributeValueMemberS{Value: failureID},
		},
	})
	if err != nil {
		return fmt.Errorf("delete failure: %w", err)
	}
	return nil
}
