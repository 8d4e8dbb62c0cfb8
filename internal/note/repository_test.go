package note

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"notekeeper/internal/dynamo"
)

// mockDynamoDBClient is a test double for DynamoDB operations.
type mockDynamoDBClient struct {
	putItemFunc            func(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	getItemFunc            func(ctx context.Context, input *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	batchGetItemFunc       func(ctx context.Context, input *dynamodb.BatchGetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	queryFunc              func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	deleteItemFunc         func(ctx context.Context, input *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	transactWriteItemsFunc func(ctx context.Context, input *dynamodb.TransactWriteItemsInput, opts ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

func (m *mockDynamoDBClient) PutItem(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if m.putItemFunc != nil {
		return m.putItemFunc(ctx, input, opts...)
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDynamoDBClient) GetItem(ctx context.Context, input *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.getItemFunc != nil {
		return m.getItemFunc(ctx, input, opts...)
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (m *mockDynamoDBClient) BatchGetItem(ctx context.Context, input *dynamodb.BatchGetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	if m.batchGetItemFunc != nil {
		return m.batchGetItemFunc(ctx, input, opts...)
	}
	return &dynamodb.BatchGetItemOutput{}, nil
}

func (m *mockDynamoDBClient) Query(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, input, opts...)
	}
	return &dynamodb.QueryOutput{}, nil
}

func (m *mockDynamoDBClient) DeleteItem(ctx context.Context, input *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if m.deleteItemFunc != nil {
		return m.deleteItemFunc(ctx, input, opts...)
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

func (m *mockDynamoDBClient) TransactWriteItems(ctx context.Context, input *dynamodb.TransactWriteItemsInput, opts ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	if m.transactWriteItemsFunc != nil {
		return m.transactWriteItemsFunc(ctx, input, opts...)
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

// noteRow builds a stored note item the way the repository marshals one.
func noteRow(id, userID, title, content string, deadline time.Time, version int, tags []string) map[string]types.AttributeValue {
	n := &NoteItem{
		ID:       id,
		UserID:   userID,
		Title:    title,
		Content:  content,
		Deadline: deadline,
		Tags:     tags,
		Version:  version,
	}
	return marshalNoteItem(n)
}

func TestCreateNote(t *testing.T) {
	ctx := context.Background()
	deadline := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var captured *dynamodb.PutItemInput

	mock := &mockDynamoDBClient{
		putItemFunc: func(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			captured = input
			return &dynamodb.PutItemOutput{}, nil
		},
	}

	repo := NewRepository(mock, "test-table")
	n, err := repo.CreateNote(ctx, "u1", "Title", "Body", deadline)
	if err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}
	if n.ID == "" {
		t.Error("created note has no ID")
	}
	if n.Version != 1 {
		t.Errorf("new note version = %d, want 1", n.Version)
	}
	if len(n.Tags) != 0 {
		t.Errorf("new note tags = %v, want empty", n.Tags)
	}

	if captured == nil {
		t.Fatal("PutItem not called")
	}
	if pk, ok := captured.Item["pk"].(*types.AttributeValueMemberS); !ok || pk.Value != "USER#u1" {
		t.Errorf("pk = %v", captured.Item["pk"])
	}
	if sk, ok := captured.Item["sk"].(*types.AttributeValueMemberS); !ok || sk.Value != "NOTE#2025-01-01T00:00:00Z#"+n.ID {
		t.Errorf("sk = %v", captured.Item["sk"])
	}
	if gsi2pk, ok := captured.Item["gsi2pk"].(*types.AttributeValueMemberS); !ok || gsi2pk.Value != "NOTE#"+n.ID {
		t.Errorf("gsi2pk = %v", captured.Item["gsi2pk"])
	}
	if _, present := captured.Item["tags"]; present {
		t.Error("empty tag set must not be marshaled")
	}
}

func TestListByUser(t *testing.T) {
	deadline := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock := &mockDynamoDBClient{
		queryFunc: func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			if pk, ok := input.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS); !ok || pk.Value != "USER#u1" {
				t.Errorf(":pk = %v", input.ExpressionAttributeValues[":pk"])
			}
			if prefix, ok := input.ExpressionAttributeValues[":prefix"].(*types.AttributeValueMemberS); !ok || prefix.Value != "NOTE#" {
				t.Errorf(":prefix = %v", input.ExpressionAttributeValues[":prefix"])
			}
			return &dynamodb.QueryOutput{
				Items: []map[string]types.AttributeValue{
					noteRow("n1", "u1", "A", "", deadline, 1, nil),
					noteRow("n2", "u1", "B", "", deadline.AddDate(0, 1, 0), 2, []string{"work"}),
				},
			}, nil
		},
	}

	repo := NewRepository(mock, "test-table")
	notes, err := repo.ListByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("got %d notes, want 2", len(notes))
	}
	if notes[0].ID != "n1" || notes[1].ID != "n2" {
		t.Errorf("notes = %v, %v", notes[0].ID, notes[1].ID)
	}
	if notes[1].Version != 2 || len(notes[1].Tags) != 1 {
		t.Errorf("note n2 round-trip = %+v", notes[1])
	}
}

func TestDueBeforeAfter_Bounds(t *testing.T) {
	date := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		query  func(*Repository) ([]*NoteItem, error)
		wantLo string
		wantHi string
	}{
		{
			name: "due before",
			query: func(r *Repository) ([]*NoteItem, error) {
				return r.DueBefore(context.Background(), "u1", date)
			},
			wantLo: "NOTE#",
			wantHi: "NOTE#2025-01-01T00:00:00Z#" + dynamo.MinID,
		},
		{
			name: "due after",
			query: func(r *Repository) ([]*NoteItem, error) {
				return r.DueAfter(context.Background(), "u1", date)
			},
			wantLo: "NOTE#2025-01-01T00:00:00Z#" + dynamo.MaxID,
			wantHi: "NOTE#" + dynamo.MaxID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockDynamoDBClient{
				queryFunc: func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
					lo, _ := input.ExpressionAttributeValues[":lo"].(*types.AttributeValueMemberS)
					hi, _ := input.ExpressionAttributeValues[":hi"].(*types.AttributeValueMemberS)
					if lo == nil || lo.Value != tt.wantLo {
						t.Errorf(":lo = %v, want %q", lo, tt.wantLo)
					}
					if hi == nil || hi.Value != tt.wantHi {
						t.Errorf(":hi = %v, want %q", hi, tt.wantHi)
					}
					return &dynamodb.QueryOutput{}, nil
				},
			}
			repo := NewRepository(mock, "test-table")
			if _, err := tt.query(repo); err != nil {
				t.Fatalf("query error = %v", err)
			}
		})
	}
}

func TestGetByID_PinsNoteRow(t *testing.T) {
	deadline := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock := &mockDynamoDBClient{
		queryFunc: func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			if aws.ToString(input.IndexName) != "gsi2" {
				t.Errorf("index = %q, want gsi2", aws.ToString(input.IndexName))
			}
			if pk, ok := input.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS); !ok || pk.Value != "NOTE#n1" {
				t.Errorf(":pk = %v", input.ExpressionAttributeValues[":pk"])
			}
			// Share rows live in the same index partition under SHARED#.
			if prefix, ok := input.ExpressionAttributeValues[":prefix"].(*types.AttributeValueMemberS); !ok || prefix.Value != "USER#" {
				t.Errorf(":prefix = %v", input.ExpressionAttributeValues[":prefix"])
			}
			return &dynamodb.QueryOutput{
				Items: []map[string]types.AttributeValue{
					noteRow("n1", "u1", "A", "body", deadline, 3, nil),
				},
			}, nil
		},
	}

	repo := NewRepository(mock, "test-table")
	n, err := repo.GetByID(context.Background(), "n1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if n.UserID != "u1" || !n.Deadline.Equal(deadline) || n.Version != 3 {
		t.Errorf("GetByID() = %+v", n)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	mock := &mockDynamoDBClient{
		queryFunc: func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			return &dynamodb.QueryOutput{}, nil
		},
	}

	repo := NewRepository(mock, "test-table")
	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrNoteNotFound) {
		t.Fatalf("GetByID() error = %v, want ErrNoteNotFound", err)
	}
}

func TestUpdateContent_ArchivesAndBumpsVersion(t *testing.T) {
	ctx := context.Background()
	deadline := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var captured *dynamodb.TransactWriteItemsInput

	mock := &mockDynamoDBClient{
		queryFunc: func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			return &dynamodb.QueryOutput{
				Items: []map[string]types.AttributeValue{
					noteRow("n1", "u1", "Old title", "Old body", deadline, 2, []string{"work"}),
				},
			}, nil
		},
		transactWriteItemsFunc: func(ctx context.Context, input *dynamodb.TransactWriteItemsInput, opts ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
			captured = input
			return &dynamodb.TransactWriteItemsOutput{}, nil
		},
	}

	repo := NewRepository(mock, "test-table")
	updated, err := repo.UpdateContent(ctx, "n1", aws.String("New title"), aws.String("New body"))
	if err != nil {
		t.Fatalf("UpdateContent() error = %v", err)
	}
	if updated.Version != 3 {
		t.Errorf("updated version = %d, want 3", updated.Version)
	}
	if updated.Title != "New title" || updated.Content != "New body" {
		t.Errorf("updated = %+v", updated)
	}

	if captured == nil || len(captured.TransactItems) != 2 {
		t.Fatalf("expected one transaction with 2 intents, got %+v", captured)
	}

	snapshot := captured.TransactItems[0].Put
	if snapshot == nil {
		t.Fatal("slot 0 should be the snapshot put")
	}
	if pk, ok := snapshot.Item["pk"].(*types.AttributeValueMemberS); !ok || pk.Value != "NOTE_HISTORY#n1" {
		t.Errorf("snapshot pk = %v", snapshot.Item["pk"])
	}
	if sk, ok := snapshot.Item["sk"].(*types.AttributeValueMemberS); !ok || sk.Value != "VER#2" {
		t.Errorf("snapshot sk = %v", snapshot.Item["sk"])
	}
	if title, ok := snapshot.Item["title"].(*types.AttributeValueMemberS); !ok || title.Value != "Old title" {
		t.Errorf("snapshot holds %v, want the pre-mutation title", snapshot.Item["title"])
	}

	patch := captured.TransactItems[1].Update
	if patch == nil {
		t.Fatal("slot 1 should be the note patch")
	}
	if sk, ok := patch.Key["sk"].(*types.AttributeValueMemberS); !ok || sk.Value != "NOTE#2025-01-01T00:00:00Z#n1" {
		t.Errorf("patch sk = %v", patch.Key["sk"])
	}
	if cond := aws.ToString(patch.ConditionExpression); cond != "attribute_exists(pk) AND #version = :current" {
		t.Errorf("patch condition = %q", cond)
	}
	if next, ok := patch.ExpressionAttributeValues[":next"].(*types.AttributeValueMemberN); !ok || next.Value != "3" {
		t.Errorf(":next = %v", patch.ExpressionAttributeValues[":next"])
	}
	if current, ok := patch.ExpressionAttributeValues[":current"].(*types.AttributeValueMemberN); !ok || current.Value != "2" {
		t.Errorf(":current = %v", patch.ExpressionAttributeValues[":current"])
	}
}

func TestUpdateContent_ConcurrentDeleteSurfacesNotFound(t *testing.T) {
	deadline := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock := &mockDynamoDBClient{
		queryFunc: func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			return &dynamodb.QueryOutput{
				Items: []map[string]types.AttributeValue{
					noteRow("n1", "u1", "T", "B", deadline, 1, nil),
				},
			}, nil
		},
		transactWriteItemsFunc: func(ctx context.Context, input *dynamodb.TransactWriteItemsInput, opts ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
			return nil, &types.TransactionCanceledException{
				CancellationReasons: []types.CancellationReason{
					{Code: aws.String("None")},
					{Code: aws.String("ConditionalCheckFailed")},
				},
			}
		},
	}

	repo := NewRepository(mock, "test-table")
	_, err := repo.UpdateContent(context.Background(), "n1", aws.String("X"), aws.String("Y"))
	if !errors.Is(err, ErrNoteNotFound) {
		t.Fatalf("UpdateContent() error = %v, want ErrNoteNotFound", err)
	}
}

func TestUpdateContent_PartialKeepsOtherField(t *testing.T) {
	deadline := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var captured *dynamodb.TransactWriteItemsInput

	mock := &mockDynamoDBClient{
		queryFunc: func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			return &dynamodb.QueryOutput{
				Items: []map[string]types.AttributeValue{
					noteRow("n1", "u1", "Keep me", "Old body", deadline, 1, nil),
				},
			}, nil
		},
		transactWriteItemsFunc: func(ctx context.Context, input *dynamodb.TransactWriteItemsInput, opts ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
			captured = input
			return &dynamodb.TransactWriteItemsOutput{}, nil
		},
	}

	repo := NewRepository(mock, "test-table")
	updated, err := repo.UpdateContent(context.Background(), "n1", nil, aws.String("New body"))
	if err != nil {
		t.Fatalf("UpdateContent() error = %v", err)
	}
	if updated.Title != "Keep me" || updated.Content != "New body" {
		t.Errorf("updated = %+v", updated)
	}

	patch := captured.TransactItems[1].Update
	if title, ok := patch.ExpressionAttributeValues[":title"].(*types.AttributeValueMemberS); !ok || title.Value != "Keep me" {
		t.Errorf(":title = %v, want the current title carried over", patch.ExpressionAttributeValues[":title"])
	}
}

func TestDelete(t *testing.T) {
	deadline := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var deletedKey map[string]types.AttributeValue

	mock := &mockDynamoDBClient{
		queryFunc: func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			return &dynamodb.QueryOutput{
				Items: []map[string]types.AttributeValue{
					noteRow("n1", "u1", "T", "B", deadline, 1, nil),
				},
			}, nil
		},
		deleteItemFunc: func(ctx context.Context, input *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
			deletedKey = input.Key
			return &dynamodb.DeleteItemOutput{}, nil
		},
	}

	repo := NewRepository(mock, "test-table")
	n, found, err := repo.Delete(context.Background(), "n1")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !found {
		t.Fatal("Delete() found = false, want true")
	}
	if n.UserID != "u1" {
		t.Errorf("deleted note = %+v", n)
	}
	if sk, ok := deletedKey["sk"].(*types.AttributeValueMemberS); !ok || sk.Value != "NOTE#2025-01-01T00:00:00Z#n1" {
		t.Errorf("delete sk = %v", deletedKey["sk"])
	}
}

func TestDelete_MissingIsNotAnError(t *testing.T) {
	mock := &mockDynamoDBClient{
		queryFunc: func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			return &dynamodb.QueryOutput{}, nil
		},
		deleteItemFunc: func(ctx context.Context, input *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
			t.Fatal("DeleteItem must not be called for a missing note")
			return nil, nil
		},
	}

	repo := NewRepository(mock, "test-table")
	_, found, err := repo.Delete(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if found {
		t.Error("Delete() found = true for a missing note")
	}
}

func TestAddTag_TransactionShape(t *testing.T) {
	deadline := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var captured *dynamodb.TransactWriteItemsInput

	mock := &mockDynamoDBClient{
		queryFunc: func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			return &dynamodb.QueryOutput{
				Items: []map[string]types.AttributeValue{
					noteRow("n1", "u1", "T", "B", deadline, 1, nil),
				},
			}, nil
		},
		transactWriteItemsFunc: func(ctx context.Context, input *dynamodb.TransactWriteItemsInput, opts ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
			captured = input
			return &dynamodb.TransactWriteItemsOutput{}, nil
		},
	}

	repo := NewRepository(mock, "test-table")
	updated, err := repo.AddTag(context.Background(), "n1", "u1", "  Work ")
	if err != nil {
		t.Fatalf("AddTag() error = %v", err)
	}
	if len(updated.Tags) != 1 || updated.Tags[0] != "work" {
		t.Errorf("updated tags = %v, want [work]", updated.Tags)
	}

	if captured == nil || len(captured.TransactItems) != 2 {
		t.Fatalf("expected one transaction with 2 intents, got %+v", captured)
	}

	setAdd := captured.TransactItems[0].Update
	if setAdd == nil {
		t.Fatal("slot 0 should be the note set-add")
	}
	if cond := aws.ToString(setAdd.ConditionExpression); cond != "attribute_exists(pk)" {
		t.Errorf("set-add condition = %q", cond)
	}
	if tag, ok := setAdd.ExpressionAttributeValues[":tag"].(*types.AttributeValueMemberSS); !ok || len(tag.Value) != 1 || tag.Value[0] != "work" {
		t.Errorf(":tag = %v, want normalized [work]", setAdd.ExpressionAttributeValues[":tag"])
	}

	tagRow := captured.TransactItems[1].Put
	if tagRow == nil {
		t.Fatal("slot 1 should be the tag row put")
	}
	if sk, ok := tagRow.Item["sk"].(*types.AttributeValueMemberS); !ok || sk.Value != "TAG#work#NOTE#n1" {
		t.Errorf("tag row sk = %v", tagRow.Item["sk"])
	}
	if dl, ok := tagRow.Item["noteDeadline"].(*types.AttributeValueMemberS); !ok || dl.Value != "2025-01-01T00:00:00Z" {
		t.Errorf("tag row noteDeadline = %v", tagRow.Item["noteDeadline"])
	}
}

func TestAddTag_ConcurrentDeleteLeavesNoOrphan(t *testing.T) {
	deadline := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock := &mockDynamoDBClient{
		queryFunc: func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			return &dynamodb.QueryOutput{
				Items: []map[string]types.AttributeValue{
					noteRow("n1", "u1", "T", "B", deadline, 1, nil),
				},
			}, nil
		},
		transactWriteItemsFunc: func(ctx context.Context, input *dynamodb.TransactWriteItemsInput, opts ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
			// The note vanished between the lookup and the commit; the
			// conditioned set-add cancels the whole transaction.
			return nil, &types.TransactionCanceledException{
				CancellationReasons: []types.CancellationReason{
					{Code: aws.String("ConditionalCheckFailed")},
					{Code: aws.String("None")},
				},
			}
		},
	}

	repo := NewRepository(mock, "test-table")
	_, err := repo.AddTag(context.Background(), "n1", "u1", "work")
	if !errors.Is(err, ErrNoteNotFound) {
		t.Fatalf("AddTag() error = %v, want ErrNoteNotFound", err)
	}
}

func TestAddTag_WrongOwner(t *testing.T) {
	deadline := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock := &mockDynamoDBClient{
		queryFunc: func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			return &dynamodb.QueryOutput{
				Items: []map[string]types.AttributeValue{
					noteRow("n1", "owner", "T", "B", deadline, 1, nil),
				},
			}, nil
		},
		transactWriteItemsFunc: func(ctx context.Context, input *dynamodb.TransactWriteItemsInput, opts ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
			t.Fatal("transaction must not run for someone else's note")
			return nil, nil
		},
	}

	repo := NewRepository(mock, "test-table")
	_, err := repo.AddTag(context.Background(), "n1", "impostor", "work")
	if !errors.Is(err, ErrNoteNotFound) {
		t.Fatalf("AddTag() error = %v, want ErrNoteNotFound", err)
	}
}

func TestFindByTag(t *testing.T) {
	deadline := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock := &mockDynamoDBClient{
		queryFunc: func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			if prefix, ok := input.ExpressionAttributeValues[":prefix"].(*types.AttributeValueMemberS); !ok || prefix.Value != "TAG#work#NOTE#" {
				t.Errorf(":prefix = %v", input.ExpressionAttributeValues[":prefix"])
			}
			return &dynamodb.QueryOutput{
				Items: []map[string]types.AttributeValue{
					marshalTagItem(&TagItem{UserID: "u1", NoteID: "n1", Tag: "work", NoteDeadline: deadline}),
					marshalTagItem(&TagItem{UserID: "u1", NoteID: "n2", Tag: "work", NoteDeadline: deadline.AddDate(0, 1, 0)}),
				},
			}, nil
		},
		batchGetItemFunc: func(ctx context.Context, input *dynamodb.BatchGetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
			keys := input.RequestItems["test-table"].Keys
			if len(keys) != 2 {
				t.Fatalf("batch get %d keys, want 2", len(keys))
			}
			if sk, ok := keys[0]["sk"].(*types.AttributeValueMemberS); !ok || sk.Value != "NOTE#2025-01-01T00:00:00Z#n1" {
				t.Errorf("batch key sk = %v", keys[0]["sk"])
			}
			// n2 was deleted since its tag row was written: omitted.
			return &dynamodb.BatchGetItemOutput{
				Responses: map[string][]map[string]types.AttributeValue{
					"test-table": {noteRow("n1", "u1", "T", "B", deadline, 1, []string{"work"})},
				},
			}, nil
		},
	}

	repo := NewRepository(mock, "test-table")
	notes, err := repo.FindByTag(context.Background(), "u1", "Work")
	if err != nil {
		t.Fatalf("FindByTag() error = %v", err)
	}
	if len(notes) != 1 || notes[0].ID != "n1" {
		t.Errorf("FindByTag() = %v", notes)
	}
}

func TestFindByTag_EmptyTag(t *testing.T) {
	mock := &mockDynamoDBClient{
		queryFunc: func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			t.Fatal("Query must not be called for an empty tag")
			return nil, nil
		},
	}

	repo := NewRepository(mock, "test-table")
	notes, err := repo.FindByTag(context.Background(), "u1", "   ")
	if err != nil {
		t.Fatalf("FindByTag() error = %v", err)
	}
	if notes != nil {
		t.Errorf("FindByTag() = %v, want nil", notes)
	}
}

func TestBatchGet_FollowsUpUnprocessedKeys(t *testing.T) {
	deadline := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0

	mock := &mockDynamoDBClient{
		batchGetItemFunc: func(ctx context.Context, input *dynamodb.BatchGetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
			calls++
			if calls == 1 {
				return &dynamodb.BatchGetItemOutput{
					Responses: map[string][]map[string]types.AttributeValue{
						"test-table": {noteRow("n1", "u1", "A", "", deadline, 1, nil)},
					},
					UnprocessedKeys: map[string]types.KeysAndAttributes{
						"test-table": {Keys: input.RequestItems["test-table"].Keys[1:]},
					},
				}, nil
			}
			return &dynamodb.BatchGetItemOutput{
				Responses: map[string][]map[string]types.AttributeValue{
					"test-table": {noteRow("n2", "u2", "B", "", deadline, 1, nil)},
				},
			}, nil
		},
	}

	repo := NewRepository(mock, "test-table")
	notes, err := repo.BatchGet(context.Background(), []Key{
		{UserID: "u1", ID: "n1", Deadline: deadline},
		{UserID: "u2", ID: "n2", Deadline: deadline},
	})
	if err != nil {
		t.Fatalf("BatchGet() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("BatchGetItem called %d times, want 2", calls)
	}
	if len(notes) != 2 {
		t.Errorf("got %d notes, want 2", len(notes))
	}
}

func TestGetVersion(t *testing.T) {
	deadline := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock := &mockDynamoDBClient{
		getItemFunc: func(ctx context.Context, input *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			if pk, ok := input.Key["pk"].(*types.AttributeValueMemberS); !ok || pk.Value != "NOTE_HISTORY#n1" {
				t.Errorf("pk = %v", input.Key["pk"])
			}
			if sk, ok := input.Key["sk"].(*types.AttributeValueMemberS); !ok || sk.Value != "VER#2" {
				t.Errorf("sk = %v", input.Key["sk"])
			}
			return &dynamodb.GetItemOutput{
				Item: marshalVersionItem(&NoteVersionItem{
					NoteID:   "n1",
					Title:    "Old",
					Version:  2,
					Deadline: deadline,
				}),
			}, nil
		},
	}

	repo := NewRepository(mock, "test-table")
	v, err := repo.GetVersion(context.Background(), "n1", 2)
	if err != nil {
		t.Fatalf("GetVersion() error = %v", err)
	}
	if v.Title != "Old" || v.Version != 2 {
		t.Errorf("GetVersion() = %+v", v)
	}
}

func TestGetVersion_NotFound(t *testing.T) {
	mock := &mockDynamoDBClient{
		getItemFunc: func(ctx context.Context, input *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{}, nil
		},
	}

	repo := NewRepository(mock, "test-table")
	_, err := repo.GetVersion(context.Background(), "n1", 99)
	if !errors.Is(err, ErrVersionNotFound) {
		t.Fatalf("GetVersion() error = %v, want ErrVersionNotFound", err)
	}
}

func TestDeleteTagEntries_OnlyTargetNote(t *testing.T) {
	deadline := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var deletedSKs []string

	mock := &mockDynamoDBClient{
		queryFunc: func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			return &dynamodb.QueryOutput{
				Items: []map[string]types.AttributeValue{
					marshalTagItem(&TagItem{UserID: "u1", NoteID: "n1", Tag: "work", NoteDeadline: deadline}),
					marshalTagItem(&TagItem{UserID: "u1", NoteID: "other", Tag: "work", NoteDeadline: deadline}),
					marshalTagItem(&TagItem{UserID: "u1", NoteID: "n1", Tag: "urgent", NoteDeadline: deadline}),
				},
			}, nil
		},
		deleteItemFunc: func(ctx context.Context, input *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
			if sk, ok := input.Key["sk"].(*types.AttributeValueMemberS); ok {
				deletedSKs = append(deletedSKs, sk.Value)
			}
			return &dynamodb.DeleteItemOutput{}, nil
		},
	}

	repo := NewRepository(mock, "test-table")
	deleted, err := repo.DeleteTagEntries(context.Background(), "u1", "n1")
	if err != nil {
		t.Fatalf("DeleteTagEntries() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
	for _, sk := range deletedSKs {
		if sk != "TAG#work#NOTE#n1" && sk != "TAG#urgent#NOTE#n1" {
			t.Errorf("deleted unexpected row %q", sk)
		}
	}
}

func TestDeleteVersionHistory(t *testing.T) {
	deleted := 0

	mock := &mockDynamoDBClient{
		queryFunc: func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			if pk, ok := input.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS); !ok || pk.Value != "NOTE_HISTORY#n1" {
				t.Errorf(":pk = %v", input.ExpressionAttributeValues[":pk"])
			}
			return &dynamodb.QueryOutput{
				Items: []map[string]types.AttributeValue{
					marshalVersionItem(&NoteVersionItem{NoteID: "n1", Version: 1}),
					marshalVersionItem(&NoteVersionItem{NoteID: "n1", Version: 2}),
				},
			}, nil
		},
		deleteItemFunc: func(ctx context.Context, input *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
			deleted++
			return &dynamodb.DeleteItemOutput{}, nil
		},
	}

	repo := NewRepository(mock, "test-table")
	n, err := repo.DeleteVersionHistory(context.Background(), "n1")
	if err != nil {
		t.Fatalf("DeleteVersionHistory() error = %v", err)
	}
	if n != 2 || deleted != 2 {
		t.Errorf("deleted %d rows (reported %d), want 2", deleted, n)
	}
}
