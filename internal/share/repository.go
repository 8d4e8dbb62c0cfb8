package share

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"notekeeper/internal/dynamo"
	"notekeeper/internal/note"
)

// NoteStore is the slice of the note repository the share repository
// needs: existence checks when granting access and bulk resolution when
// listing a recipient's shared notes.
type NoteStore interface {
	GetByID(ctx context.Context, noteID string) (*note.NoteItem, error)
	BatchGet(ctx context.Context, keys []note.Key) ([]*note.NoteItem, error)
}

// Repository manages share rows in DynamoDB.
type Repository struct {
	client    dynamo.Client
	tableName string
	notes     NoteStore
}

// NewRepository creates a share repository backed by the given client
// and note store.
func NewRepository(client dynamo.Client, tableName string, notes NoteStore) *Repository {
	return &Repository{
		client:    client,
		tableName: tableName,
		notes:     notes,
	}
}

// Share grants sharedWith read access to ownerID's note. The note is
// resolved first so the row can cache the deadline; a missing note, or
// one owned by someone else, surfaces as note.ErrNoteNotFound.
// Re-sharing with the same recipient rewrites an identical row.
func (r *Repository) Share(ctx context.Context, ownerID, noteID, sharedWith string) (*SharedNoteItem, error) {
	n, err := r.notes.GetByID(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if n.UserID != ownerID {
		return nil, note.ErrNoteNotFound
	}

	s := &SharedNoteItem{
		NoteID:       n.ID,
		SharedBy:     n.UserID,
		SharedWith:   sharedWith,
		NoteDeadline: n.Deadline,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      marshalSharedNoteItem(s),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to share note: %w", err)
	}

	return s, nil
}

// SharedWithMe returns the notes other users have shared with userID.
// Notes deleted after being shared drop out of the batch resolution, so
// a stale share row never produces a phantom note.
func (r *Repository) SharedWithMe(ctx context.Context, userID string) ([]*note.NoteItem, error) {
	output, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: dynamo.PrefixUser + userID},
			":prefix": &types.AttributeValueMemberS{Value: PrefixShared},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list shared notes: %w", err)
	}

	if len(output.Items) == 0 {
		return nil, nil
	}

	keys := make([]note.Key, len(output.Items))
	for i, item := range output.Items {
		keys[i] = unmarshalSharedNoteItem(item).NoteKey()
	}

	return r.notes.BatchGet(ctx, keys)
}

// AccessList returns the IDs of the users the note has been shared
// with. The note row shares the index partition, so the sort-key prefix
// restricts the query to share rows.
func (r *Repository) AccessList(ctx context.Context, noteID string) ([]string, error) {
	output, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(dynamo.IndexGSI2),
		KeyConditionExpression: aws.String("gsi2pk = :pk AND begins_with(gsi2sk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: note.PrefixNote + noteID},
			":prefix": &types.AttributeValueMemberS{Value: PrefixShared},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list note access: %w", err)
	}

	users := make([]string, len(output.Items))
	for i, item := range output.Items {
		users[i] = unmarshalSharedNoteItem(item).SharedWith
	}
	return users, nil
}

// marshalSharedNoteItem converts a SharedNoteItem to DynamoDB attribute
// values.
func marshalSharedNoteItem(s *SharedNoteItem) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		dynamo.AttrPK:     &types.AttributeValueMemberS{Value: s.PK()},
		dynamo.AttrSK:     &types.AttributeValueMemberS{Value: s.SK()},
		dynamo.AttrGSI2PK: &types.AttributeValueMemberS{Value: s.GSI2PK()},
		dynamo.AttrGSI2SK: &types.AttributeValueMemberS{Value: s.GSI2SK()},
		AttrType:          &types.AttributeValueMemberS{Value: TypeSharedNote},
		AttrNoteID:        &types.AttributeValueMemberS{Value: s.NoteID},
		AttrSharedBy:      &types.AttributeValueMemberS{Value: s.SharedBy},
		AttrSharedWith:    &types.AttributeValueMemberS{Value: s.SharedWith},
		AttrNoteDeadline:  &types.AttributeValueMemberS{Value: note.FormatDeadline(s.NoteDeadline)},
		AttrCreatedAt:     &types.AttributeValueMemberS{Value: s.CreatedAt.UTC().Format(time.RFC3339)},
	}
}

// unmarshalSharedNoteItem converts DynamoDB attribute values to a
// SharedNoteItem. Key fields are not carried over.
func unmarshalSharedNoteItem(item map[string]types.AttributeValue) *SharedNoteItem {
	s := &SharedNoteItem{}

	if v, ok := item[AttrNoteID].(*types.AttributeValueMemberS); ok {
		s.NoteID = v.Value
	}
	if v, ok := item[AttrSharedBy].(*types.AttributeValueMemberS); ok {
		s.SharedBy = v.Value
	}
	if v, ok := item[AttrSharedWith].(*types.AttributeValueMemberS); ok {
		s.SharedWith = v.Value
	}
	if v, ok := item[AttrNoteDeadline].(*types.AttributeValueMemberS); ok {
		if t, err := time.Parse(time.RFC3339, v.Value); err == nil {
			s.NoteDeadline = t
		}
	}
	if v, ok := item[AttrCreatedAt].(*types.AttributeValueMemberS); ok {
		if t, err := time.Parse(time.RFC3339, v.Value); err == nil {
			s.CreatedAt = t
		}
	}

	return s
}
