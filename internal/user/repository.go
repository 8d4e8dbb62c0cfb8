package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"notekeeper/internal/dynamo"
)

// Error types for repository operations.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already taken")
)

// Repository handles user storage operations.
type Repository struct {
	client    dynamo.Client
	tableName string
}

// NewRepository creates a new Repository.
func NewRepository(client dynamo.Client, tableName string) *Repository {
	return &Repository{
		client:    client,
		tableName: tableName,
	}
}

// emailLockSlot is the transaction slot the email-lock intent is staged
// at in CreateUser; its condition failure means the address is taken.
const emailLockSlot = 1

// CreateUser stores a new user profile and reserves its email address in
// one transaction. The lock put is conditioned on no lock existing yet,
// so a second registration with the same address cancels the whole
// transaction: there is never a profile without a lock or a lock without
// a profile.
func (r *Repository) CreateUser(ctx context.Context, name, email string) (*UserItem, error) {
	u := &UserItem{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	lock := &EmailLockItem{
		Email:     email,
		UserID:    u.ID,
		CreatedAt: u.CreatedAt,
	}

	tx := dynamo.NewTransaction(r.client, r.tableName)
	tx.Put(marshalUserItem(u))
	tx.PutIfAbsent(marshalEmailLockItem(lock))

	if err := tx.Run(ctx); err != nil {
		var canceled *dynamo.CanceledError
		if errors.As(err, &canceled) && canceled.ConditionFailed(emailLockSlot) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

// GetUser retrieves a user profile by ID.
func (r *Repository) GetUser(ctx context.Context, userID string) (*UserItem, error) {
	u := &UserItem{ID: userID}

	output, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			dynamo.AttrPK: &types.AttributeValueMemberS{Value: u.PK()},
			dynamo.AttrSK: &types.AttributeValueMemberS{Value: u.SK()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if output.Item == nil {
		return nil, ErrUserNotFound
	}

	return unmarshalUserItem(output.Item), nil
}

// GetUserByEmail resolves a user profile through the email lookup index.
// The index cannot serve point reads, so this is a query capped at one
// row; uniqueness of the address guarantees at most one match.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*UserItem, error) {
	output, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(dynamo.IndexGSI1),
		KeyConditionExpression: aws.String("gsi1pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: PrefixEmail + email},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query user by email: %w", err)
	}

	if len(output.Items) == 0 {
		return nil, ErrUserNotFound
	}

	return unmarshalUserItem(output.Items[0]), nil
}

// marshalUserItem converts a UserItem to DynamoDB attribute values.
func marshalUserItem(u *UserItem) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		dynamo.AttrPK:     &types.AttributeValueMemberS{Value: u.PK()},
		dynamo.AttrSK:     &types.AttributeValueMemberS{Value: u.SK()},
		dynamo.AttrGSI1PK: &types.AttributeValueMemberS{Value: u.GSI1PK()},
		dynamo.AttrGSI1SK: &types.AttributeValueMemberS{Value: u.GSI1SK()},
		AttrType:          &types.AttributeValueMemberS{Value: TypeUser},
		AttrID:            &types.AttributeValueMemberS{Value: u.ID},
		AttrName:          &types.AttributeValueMemberS{Value: u.Name},
		AttrEmail:         &types.AttributeValueMemberS{Value: u.Email},
		AttrCreatedAt:     &types.AttributeValueMemberS{Value: u.CreatedAt.UTC().Format(time.RFC3339)},
	}
}

// marshalEmailLockItem converts an EmailLockItem to DynamoDB attribute values.
func marshalEmailLockItem(l *EmailLockItem) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		dynamo.AttrPK: &types.AttributeValueMemberS{Value: l.PK()},
		dynamo.AttrSK: &types.AttributeValueMemberS{Value: l.SK()},
		AttrType:      &types.AttributeValueMemberS{Value: TypeEmailLock},
		AttrUserID:    &types.AttributeValueMemberS{Value: l.UserID},
		AttrCreatedAt: &types.AttributeValueMemberS{Value: l.CreatedAt.UTC().Format(time.RFC3339)},
	}
}

// unmarshalUserItem converts DynamoDB attribute values to a UserItem. Key
// fields are not carried over: callers only see logical attributes.
func unmarshalUserItem(item map[string]types.AttributeValue) *UserItem {
	u := &UserItem{}

	if v, ok := item[AttrID].(*types.AttributeValueMemberS); ok {
		u.ID = v.Value
	}
	if v, ok := item[AttrName].(*types.AttributeValueMemberS); ok {
		u.Name = v.Value
	}
	if v, ok := item[AttrEmail].(*types.AttributeValueMemberS); ok {
		u.Email = v.Value
	}
	if v, ok := item[AttrCreatedAt].(*types.AttributeValueMemberS); ok {
		if t, err := time.Parse(time.RFC3339, v.Value); err == nil {
			u.CreatedAt = t
		}
	}

	return u
}
