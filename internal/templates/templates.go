// Package templates stores notification message templates and renders the
// published ones.
package templates

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/suhachi/mystorestory-orders/internal/apperr"
	"github.com/suhachi/mystorestory-orders/internal/awsx"
)

// Template states.
const (
	StateDraft     = "draft"
	StatePublished = "published"
	StateArchived  = "archived"
)

// Template is a store-scoped message template.
type Template struct {
	TemplateID string `dynamodbav:"template_id"` // PK
	StoreID    string `dynamodbav:"store_id"`
	State      string `dynamodbav:"state"` // draft | published | archived
	Subject    string `dynamodbav:"subject"`
	Body       string `dynamodbav:"body"`
	Channel    string `dynamodbav:"channel"`
	Locale     string `dynamodbav:"locale"`
}

// Rendered is the output of rendering a template against caller data.
type Rendered struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Channel string `json:"channel"`
	Locale  string `json:"locale"`
}

// Store encapsulates template reads.
type Store struct {
	client    awsx.DynamoDBAPI
	tableName string
}

func NewStore(client awsx.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// Get fetches a template scoped to a store. Returns (nil, nil) when absent
// or owned by another store.
func (s *Store) Get(ctx context.Context, storeID, templateID string) (*Template, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"template_id": &types.AttributeValueMemberS{Value: templateID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var t Template
	if err := attributevalue.UnmarshalMap(out.Item, &t); err != nil {
		return nil, fmt.Errorf("unmarshal template: %w", err)
	}
	if t.StoreID != storeID {
		return nil, nil
	}
	return &t, nil
}

// Render substitutes data into a published template's subject and body.
// Unpublished templates are rejected with failed-precondition.
func Render(t *Template, data map[string]any) (*Rendered, error) {
	if t.State != StatePublished {
		return nil, apperr.New(apperr.FailedPrecondition, "template %s is %s, not published", t.TemplateID, t.State)
	}
	subject, err := renderText("subject", t.Subject, data)
	if err != nil {
		return nil, err
	}
	body, err := renderText("body", t.Body, data)
	if err != nil {
		return nil, err
	}
	return &Rendered{
		Subject: subject,
		Body:    body,
		Channel: t.Channel,
		Locale:  t.Locale,
	}, nil
}

func renderText(name, text string, data map[string]any) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", apperr.Wrap(err, apperr.InvalidArgument, "malformed template "+name)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", apperr.Wrap(err, apperr.InvalidArgument, "render template "+name)
	}
	return sb.String(), nil
}
