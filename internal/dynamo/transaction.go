package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrTransactionFailed reports an all-or-nothing write that was rejected
// by the store for a reason other than a staged precondition.
var ErrTransactionFailed = errors.New("transaction failed")

// conditionalCheckFailed is the cancellation code DynamoDB reports for an
// intent whose condition expression did not hold.
const conditionalCheckFailed = "ConditionalCheckFailed"

// Transaction accumulates write intents and submits them as one atomic
// TransactWriteItems call. Intents are applied all together or not at
// all; after a rejection the per-slot cancellation reasons are available
// through CanceledError so callers can map a specific failed precondition
// to a domain error.
type Transaction struct {
	client    Client
	tableName string
	items     []types.TransactWriteItem
}

// NewTransaction creates an empty transaction against one table.
func NewTransaction(client Client, tableName string) *Transaction {
	return &Transaction{
		client:    client,
		tableName: tableName,
	}
}

// Put stages an unconditional put intent.
func (t *Transaction) Put(item map[string]types.AttributeValue) {
	t.items = append(t.items, types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(t.tableName),
			Item:      item,
		},
	})
}

// PutIfAbsent stages a put intent conditioned on no row existing yet at
// the item's primary key.
func (t *Transaction) PutIfAbsent(item map[string]types.AttributeValue) {
	t.items = append(t.items, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(t.tableName),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(pk)"),
		},
	})
}

// Update stages an update intent with a condition expression. Attribute
// name aliases may be nil when the expression needs none.
func (t *Transaction) Update(key map[string]types.AttributeValue, updateExpr, conditionExpr string, names map[string]string, values map[string]types.AttributeValue) {
	t.items = append(t.items, types.TransactWriteItem{
		Update: &types.Update{
			TableName:                 aws.String(t.tableName),
			Key:                       key,
			UpdateExpression:          aws.String(updateExpr),
			ConditionExpression:       aws.String(conditionExpr),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		},
	})
}

// Run submits the staged intents. A cancellation caused by a failed
// precondition is returned as *CanceledError; any other store failure is
// wrapped in ErrTransactionFailed.
func (t *Transaction) Run(ctx context.Context) error {
	_, err := t.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: t.items,
	})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			reasons := make([]string, len(canceled.CancellationReasons))
			for i, reason := range canceled.CancellationReasons {
				if reason.Code != nil {
					reasons[i] = *reason.Code
				}
			}
			return &CanceledError{Reasons: reasons}
		}
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	return nil
}

// CanceledError carries the per-slot cancellation codes of a rejected
// transaction, in the order the intents were staged.
type CanceledError struct {
	Reasons []string
}

func (e *CanceledError) Error() string {
	return fmt.Sprintf("transaction canceled: %v", e.Reasons)
}

func (e *CanceledError) Unwrap() error {
	return ErrTransactionFailed
}

// ConditionFailed reports whether the intent at slot i was the one
// rejected by its precondition.
func (e *CanceledError) ConditionFailed(i int) bool {
	return i >= 0 && i < len(e.Reasons) && e.Reasons[i] == conditionalCheckFailed
}
