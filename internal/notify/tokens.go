package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/suhachi/mystorestory-orders/internal/awsx"
)

// TokenStore persists push-notification tokens per store.
type TokenStore struct {
	client    awsx.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

func NewTokenStore(client awsx.DynamoDBAPI, tableName string) *TokenStore {
	return &TokenStore{client: client, tableName: tableName, nowFunc: time.Now}
}

// Put registers or refreshes a token.
func (s *TokenStore) Put(ctx context.Context, tok Token) error {
	if tok.LastUsedAt == 0 {
		tok.LastUsedAt = s.nowFunc().UnixMilli()
	}
	item, err := attributevalue.MarshalMap(tok)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put token: %w", err)
	}
	return nil
}

// ListByStore returns every token registered for a store.
func (s *TokenStore) ListByStore(ctx context.Context, storeID string) ([]Token, error) {
	out, err := s.client.Scan(ctx, &dyn.ScanInput{
		TableName:        &s.tableName,
		FilterExpression: awsString("store_id = :sid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sid": &types.AttributeValueMemberS{Value: storeID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("scan tokens: %w", err)
	}
	var tokens []Token
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &tokens); err != nil {
		return nil, fmt.Errorf("unmarshal tokens: %w", err)
	}
	return tokens, nil
}

// DeleteInactive removes tokens unused since before cutoff and returns how
// many were deleted. Run daily by the cleanup job.
func (s *TokenStore) DeleteInactive(ctx context.Context, cutoff time.Time) (int, error) {
	out, err := s.client.Scan(ctx, &dyn.ScanInput{
		TableName:        &s.tableName,
		FilterExpression: awsString("last_used_at < :cutoff"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cutoff": &types.AttributeValueMemberN{Value: strconv.FormatInt(cutoff.UnixMilli(), 10)},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("scan tokens: %w", err)
	}

	deleted := 0
	for _, item := range out.Items {
		tok, ok := item["token"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
			TableName: &s.tableName,
			Key: map[string]types.AttributeValue{
				"token": &types.AttributeValueMemberS{Value: tok.Value},
			},
		})
		if err != nil {
			return deleted, fmt.Errorf("delete token: %w", err)
		}
		deleted++
	}
	return deleted, nil
}

func awsString(s string) *string { return &s }
