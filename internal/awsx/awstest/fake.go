// Package awstest provides in-memory stand-ins for the narrow AWS service
// interfaces in awsx. They implement just enough of the DynamoDB expression
// language for the stores in this repo: SET update expressions, equality and
// attribute_not_exists conditions, and simple scan filters.
package awstest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// DB is an in-memory DynamoDB fake. Tables must be registered with their
// partition key attribute before use.
type DB struct {
	mu     sync.Mutex
	keys   map[string]string // table -> pk attribute name
	tables map[string]map[string]map[string]types.AttributeValue
}

func NewDB() *DB {
	return &DB{
		keys:   map[string]string{},
		tables: map[string]map[string]map[string]types.AttributeValue{},
	}
}

// CreateTable registers a table and its partition key attribute.
func (db *DB) CreateTable(name, pkAttr string) *DB {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.keys[name] = pkAttr
	db.tables[name] = map[string]map[string]types.AttributeValue{}
	return db
}

// Item returns the raw stored item, or nil.
func (db *DB) Item(table, pk string) map[string]types.AttributeValue {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.tables[table][pk]
}

// Len returns the number of items in a table.
func (db *DB) Len(table string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.tables[table])
}

func (db *DB) pkOf(table string, item map[string]types.AttributeValue) (string, error) {
	attr, ok := db.keys[table]
	if !ok {
		return "", fmt.Errorf("awstest: unknown table %q", table)
	}
	v, ok := item[attr].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("awstest: item missing string pk %q", attr)
	}
	return v.Value, nil
}

func (db *DB) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	table := *params.TableName
	pk, err := db.pkOf(table, params.Item)
	if err != nil {
		return nil, err
	}
	existing := db.tables[table][pk]
	if params.ConditionExpression != nil {
		if err := evalCondition(*params.ConditionExpression, existing, params.ExpressionAttributeNames, params.ExpressionAttributeValues); err != nil {
			return nil, err
		}
	}
	db.tables[table][pk] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (db *DB) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	table := *params.TableName
	pk, err := db.pkOf(table, params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := db.tables[table][pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (db *DB) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	table := *params.TableName
	pk, err := db.pkOf(table, params.Key)
	if err != nil {
		return nil, err
	}
	delete(db.tables[table], pk)
	return &dyn.DeleteItemOutput{}, nil
}

func (db *DB) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	table := *params.TableName
	pk, err := db.pkOf(table, params.Key)
	if err != nil {
		return nil, err
	}
	item, exists := db.tables[table][pk]
	if !exists {
		return nil, &types.ConditionalCheckFailedException{}
	}
	if params.ConditionExpression != nil {
		if err := evalCondition(*params.ConditionExpression, item, params.ExpressionAttributeNames, params.ExpressionAttributeValues); err != nil {
			return nil, err
		}
	}
	if params.UpdateExpression != nil {
		if err := applySet(item, *params.UpdateExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues); err != nil {
			return nil, err
		}
	}
	db.tables[table][pk] = item
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

func (db *DB) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	table := *params.TableName
	var out []map[string]types.AttributeValue
	for _, item := range db.tables[table] {
		if params.FilterExpression != nil {
			ok, err := evalFilter(*params.FilterExpression, item, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, item)
	}
	return &dyn.ScanOutput{Items: out, Count: int32(len(out))}, nil
}

func (db *DB) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	// Validate every condition first so a failure leaves nothing applied.
	for _, it := range params.TransactItems {
		switch {
		case it.Put != nil:
			p := it.Put
			pk, err := db.pkOf(*p.TableName, p.Item)
			if err != nil {
				return nil, err
			}
			if p.ConditionExpression != nil {
				existing := db.tables[*p.TableName][pk]
				if err := evalCondition(*p.ConditionExpression, existing, p.ExpressionAttributeNames, p.ExpressionAttributeValues); err != nil {
					return nil, &types.TransactionCanceledException{}
				}
			}
		case it.Update != nil:
			u := it.Update
			pk, err := db.pkOf(*u.TableName, u.Key)
			if err != nil {
				return nil, err
			}
			existing, ok := db.tables[*u.TableName][pk]
			if !ok {
				return nil, &types.TransactionCanceledException{}
			}
			if u.ConditionExpression != nil {
				if err := evalCondition(*u.ConditionExpression, existing, u.ExpressionAttributeNames, u.ExpressionAttributeValues); err != nil {
					return nil, &types.TransactionCanceledException{}
				}
			}
		}
	}

	for _, it := range params.TransactItems {
		switch {
		case it.Put != nil:
			p := it.Put
			pk, _ := db.pkOf(*p.TableName, p.Item)
			db.tables[*p.TableName][pk] = p.Item
		case it.Update != nil:
			u := it.Update
			pk, _ := db.pkOf(*u.TableName, u.Key)
			item := db.tables[*u.TableName][pk]
			if u.UpdateExpression != nil {
				if err := applySet(item, *u.UpdateExpression, u.ExpressionAttributeNames, u.ExpressionAttributeValues); err != nil {
					return nil, err
				}
			}
			db.tables[*u.TableName][pk] = item
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func resolveName(tok string, names map[string]string) string {
	if strings.HasPrefix(tok, "#") {
		if n, ok := names[tok]; ok {
			return n
		}
	}
	return tok
}

// applySet supports "SET a = :v, b.c = :w, #n = :x" update expressions.
func applySet(item map[string]types.AttributeValue, expr string, names map[string]string, values map[string]types.AttributeValue) error {
	expr = strings.TrimSpace(expr)
	if !strings.HasPrefix(expr, "SET ") {
		return fmt.Errorf("awstest: unsupported update expression %q", expr)
	}
	for _, clause := range strings.Split(strings.TrimPrefix(expr, "SET "), ",") {
		parts := strings.SplitN(clause, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("awstest: bad SET clause %q", clause)
		}
		path := strings.TrimSpace(parts[0])
		valTok := strings.TrimSpace(parts[1])
		v, ok := values[valTok]
		if !ok {
			return fmt.Errorf("awstest: missing expression value %q", valTok)
		}
		target := item
		segs := strings.Split(path, ".")
		for i, seg := range segs {
			name := resolveName(seg, names)
			if i == len(segs)-1 {
				target[name] = v
				break
			}
			m, ok := target[name].(*types.AttributeValueMemberM)
			if !ok {
				m = &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{}}
				target[name] = m
			}
			target = m.Value
		}
	}
	return nil
}

// evalCondition supports "attribute_not_exists(x)" and "path = :v".
// A nil item means the item does not exist.
func evalCondition(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) error {
	expr = strings.TrimSpace(expr)
	if strings.HasPrefix(expr, "attribute_not_exists(") {
		attr := resolveName(strings.TrimSuffix(strings.TrimPrefix(expr, "attribute_not_exists("), ")"), names)
		if item != nil {
			if _, ok := item[attr]; ok {
				return &types.ConditionalCheckFailedException{}
			}
		}
		return nil
	}
	parts := strings.SplitN(expr, "=", 2)
	if len(parts) == 2 {
		if item == nil {
			return &types.ConditionalCheckFailedException{}
		}
		attr := resolveName(strings.TrimSpace(parts[0]), names)
		want, ok := values[strings.TrimSpace(parts[1])]
		if !ok {
			return fmt.Errorf("awstest: missing condition value in %q", expr)
		}
		if !attrEqual(item[attr], want) {
			return &types.ConditionalCheckFailedException{}
		}
		return nil
	}
	return fmt.Errorf("awstest: unsupported condition %q", expr)
}

// evalFilter supports conjunctions of "path op :v" with op in {=, <, <=, >, >=}.
func evalFilter(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	for _, cond := range strings.Split(expr, " AND ") {
		fields := strings.Fields(strings.TrimSpace(cond))
		if len(fields) != 3 {
			return false, fmt.Errorf("awstest: unsupported filter %q", cond)
		}
		attr := resolveName(fields[0], names)
		op := fields[1]
		want, ok := values[fields[2]]
		if !ok {
			return false, fmt.Errorf("awstest: missing filter value in %q", cond)
		}
		got, ok := item[attr]
		if !ok {
			return false, nil
		}
		cmp, err := attrCompare(got, want)
		if err != nil {
			return false, err
		}
		var pass bool
		switch op {
		case "=":
			pass = cmp == 0
		case "<":
			pass = cmp < 0
		case "<=":
			pass = cmp <= 0
		case ">":
			pass = cmp > 0
		case ">=":
			pass = cmp >= 0
		default:
			return false, fmt.Errorf("awstest: unsupported operator %q", op)
		}
		if !pass {
			return false, nil
		}
	}
	return true, nil
}

func attrEqual(a, b types.AttributeValue) bool {
	cmp, err := attrCompare(a, b)
	return err == nil && cmp == 0
}

func attrCompare(a, b types.AttributeValue) (int, error) {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return 0, errors.New("awstest: type mismatch in comparison")
		}
		return strings.Compare(av.Value, bv.Value), nil
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return 0, errors.New("awstest: type mismatch in comparison")
		}
		af, err1 := strconv.ParseFloat(av.Value, 64)
		bf, err2 := strconv.ParseFloat(bv.Value, 64)
		if err1 != nil || err2 != nil {
			return 0, errors.New("awstest: bad number in comparison")
		}
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		default:
			return 0, nil
		}
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		if !ok || av.Value != bv.Value {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, errors.New("awstest: unsupported attribute type in comparison")
	}
}

// Queue is an in-memory SQS fake recording sent message bodies.
type Queue struct {
	mu       sync.Mutex
	Messages []string
	Fail     error // when set, SendMessage returns this error
}

func NewQueue() *Queue { return &Queue{} }

func (q *Queue) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Fail != nil {
		return nil, q.Fail
	}
	q.Messages = append(q.Messages, *params.MessageBody)
	return &sqs.SendMessageOutput{}, nil
}

// Metrics is an in-memory CloudWatch fake recording metric publishes.
type Metrics struct {
	mu     sync.Mutex
	Inputs []*cloudwatch.PutMetricDataInput
}

func NewMetrics() *Metrics { return &Metrics{} }

func (m *Metrics) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Inputs = append(m.Inputs, params)
	return &cloudwatch.PutMetricDataOutput{}, nil
}
