package note

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"notekeeper/internal/dynamo"
)

// Error types for repository operations.
var (
	ErrNoteNotFound    = errors.New("note not found")
	ErrVersionNotFound = errors.New("note version not found")
)

// Repository handles note storage operations.
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

// CreateNote stores a new note with a fresh globally-unique ID, an empty
// tag set and version 1.
func (r *Repository) CreateNote(ctx context.Context, userID, title, content string, deadline time.Time) (*NoteItem, error) {
	now := time.Now().UTC().Truncate(time.Second)
	n := &NoteItem{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Content:   content,
		Deadline:  deadline.UTC().Truncate(time.Second),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      marshalNoteItem(n),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	return n, nil
}

// ListByUser returns all of a user's notes in store order: ascending by
// deadline, then by ID.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]*NoteItem, error) {
	output, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: dynamo.PrefixUser + userID},
			":prefix": &types.AttributeValueMemberS{Value: PrefixNote},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}

	notes := make([]*NoteItem, len(output.Items))
	for i, item := range output.Items {
		notes[i] = unmarshalNoteItem(item)
	}
	return notes, nil
}

// DueBefore returns the user's notes with a deadline strictly before
// date. The minimum-codepoint sentinel on the ID component keeps
// boundary-date notes out of the range whatever their IDs, so DueBefore,
// DueAfter and the boundary date itself partition the user's notes.
func (r *Repository) DueBefore(ctx context.Context, userID string, date time.Time) ([]*NoteItem, error) {
	hi := fmt.Sprintf("NOTE#%s#%s", FormatDeadline(date), dynamo.MinID)
	return r.queryRange(ctx, userID, PrefixNote, hi)
}

// DueAfter returns the user's notes with a deadline strictly after date.
// The maximum-codepoint sentinel mirrors DueBefore on the other side of
// the boundary; the upper bound fences the scan off from the partition's
// PROFILE, SHARED# and TAG# rows that sort after the note rows.
func (r *Repository) DueAfter(ctx context.Context, userID string, date time.Time) ([]*NoteItem, error) {
	lo := fmt.Sprintf("NOTE#%s#%s", FormatDeadline(date), dynamo.MaxID)
	return r.queryRange(ctx, userID, lo, PrefixNote+dynamo.MaxID)
}

// queryRange scans (lo, hi) within the user's partition. The sentinel
// bounds never collide with real sort keys, so BETWEEN's inclusive ends
// behave as strict comparisons.
func (r *Repository) queryRange(ctx context.Context, userID, lo, hi string) ([]*NoteItem, error) {
	output, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("pk = :pk AND sk BETWEEN :lo AND :hi"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: dynamo.PrefixUser + userID},
			":lo": &types.AttributeValueMemberS{Value: lo},
			":hi": &types.AttributeValueMemberS{Value: hi},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query notes by deadline: %w", err)
	}

	notes := make([]*NoteItem, len(output.Items))
	for i, item := range output.Items {
		notes[i] = unmarshalNoteItem(item)
	}
	return notes, nil
}

// GetByID resolves a note from its ID alone via the reverse-lookup
// index. Notes and share rows live in the same NOTE#{id} index
// partition, so the sort-key prefix pins the note row.
func (r *Repository) GetByID(ctx context.Context, noteID string) (*NoteItem, error) {
	output, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(dynamo.IndexGSI2),
		KeyConditionExpression: aws.String("gsi2pk = :pk AND begins_with(gsi2sk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: PrefixNote + noteID},
			":prefix": &types.AttributeValueMemberS{Value: dynamo.PrefixUser},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve note: %w", err)
	}

	if len(output.Items) == 0 {
		return nil, ErrNoteNotFound
	}

	return unmarshalNoteItem(output.Items[0]), nil
}

// Transaction slots holding the conditioned note mutation.
const (
	updateNoteSlot = 1
	tagNoteSlot    = 0
)

// UpdateContent patches a note's title and/or content through the
// versioned path: one transaction archives the pre-mutation state as a
// snapshot at the current version number and bumps the note to the next
// version. A nil field keeps its current value. The note patch is
// conditioned on the row still existing at the version the snapshot was
// taken from, so a concurrent delete or update cancels both intents and
// no history slot is ever overwritten.
func (r *Repository) UpdateContent(ctx context.Context, noteID string, title, content *string) (*NoteItem, error) {
	current, err := r.GetByID(ctx, noteID)
	if err != nil {
		return nil, err
	}

	newTitle := current.Title
	if title != nil {
		newTitle = *title
	}
	newContent := current.Content
	if content != nil {
		newContent = *content
	}

	now := time.Now().UTC().Truncate(time.Second)
	snapshot := &NoteVersionItem{
		NoteID:     current.ID,
		Title:      current.Title,
		Content:    current.Content,
		Deadline:   current.Deadline,
		Tags:       current.Tags,
		Version:    current.Version,
		ArchivedAt: now,
	}

	tx := dynamo.NewTransaction(r.client, r.tableName)
	tx.Put(marshalVersionItem(snapshot))
	tx.Update(
		map[string]types.AttributeValue{
			dynamo.AttrPK: &types.AttributeValueMemberS{Value: current.PK()},
			dynamo.AttrSK: &types.AttributeValueMemberS{Value: current.SK()},
		},
		"SET #title = :title, #content = :content, updatedAt = :updatedAt, #version = :next",
		"attribute_exists(pk) AND #version = :current",
		map[string]string{
			"#title":   AttrTitle,
			"#content": AttrContent,
			"#version": AttrVersion,
		},
		map[string]types.AttributeValue{
			":title":     &types.AttributeValueMemberS{Value: newTitle},
			":content":   &types.AttributeValueMemberS{Value: newContent},
			":updatedAt": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
			":next":      &types.AttributeValueMemberN{Value: strconv.Itoa(current.Version + 1)},
			":current":   &types.AttributeValueMemberN{Value: strconv.Itoa(current.Version)},
		},
	)

	if err := tx.Run(ctx); err != nil {
		var canceled *dynamo.CanceledError
		if errors.As(err, &canceled) && canceled.ConditionFailed(updateNoteSlot) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to update note: %w", err)
	}

	updated := *current
	updated.Title = newTitle
	updated.Content = newContent
	updated.Version = current.Version + 1
	updated.UpdatedAt = now
	return &updated, nil
}

// Delete removes a note by ID. A missing note is not an error: the bool
// reports whether a row was actually deleted. The deleted note is
// returned so callers can fan out cleanup of its denormalized rows.
func (r *Repository) Delete(ctx context.Context, noteID string) (*NoteItem, bool, error) {
	current, err := r.GetByID(ctx, noteID)
	if errors.Is(err, ErrNoteNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			dynamo.AttrPK: &types.AttributeValueMemberS{Value: current.PK()},
			dynamo.AttrSK: &types.AttributeValueMemberS{Value: current.SK()},
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to delete note: %w", err)
	}

	return current, true, nil
}

// AddTag adds a normalized tag to a note's tag set and writes the
// matching search-index row in one transaction. The set-add is
// conditioned on the note still existing, so a concurrent delete cancels
// the index write too instead of leaving an orphaned tag row. Re-adding
// a tag is a no-op on both sides: ADD on a string set and re-putting an
// identical tag row are idempotent.
func (r *Repository) AddTag(ctx context.Context, noteID, userID, tag string) (*NoteItem, error) {
	normalized := NormalizeTag(tag)

	current, err := r.GetByID(ctx, noteID)
	if err != nil {
		return nil, err
	}
	// The tag row must live in the owner's partition for FindByTag to
	// see it; a mismatched caller reads as a missing note.
	if current.UserID != userID {
		return nil, ErrNoteNotFound
	}

	tagRow := &TagItem{
		UserID:       userID,
		NoteID:       current.ID,
		Tag:          normalized,
		NoteDeadline: current.Deadline,
	}

	tx := dynamo.NewTransaction(r.client, r.tableName)
	tx.Update(
		map[string]types.AttributeValue{
			dynamo.AttrPK: &types.AttributeValueMemberS{Value: current.PK()},
			dynamo.AttrSK: &types.AttributeValueMemberS{Value: current.SK()},
		},
		"ADD #tags :tag",
		"attribute_exists(pk)",
		map[string]string{"#tags": AttrTags},
		map[string]types.AttributeValue{
			":tag": &types.AttributeValueMemberSS{Value: []string{normalized}},
		},
	)
	tx.Put(marshalTagItem(tagRow))

	if err := tx.Run(ctx); err != nil {
		var canceled *dynamo.CanceledError
		if errors.As(err, &canceled) && canceled.ConditionFailed(tagNoteSlot) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to tag note: %w", err)
	}

	updated := *current
	if !slices.Contains(updated.Tags, normalized) {
		updated.Tags = append(slices.Clone(updated.Tags), normalized)
	}
	return &updated, nil
}

// FindByTag returns the user's notes whose tag set contains the
// normalized tag. The tag index rows supply each note's full key; the
// notes themselves come from one batched read, which silently omits any
// note deleted since its tag row was written. An empty tag matches
// nothing.
func (r *Repository) FindByTag(ctx context.Context, userID, tag string) ([]*NoteItem, error) {
	normalized := NormalizeTag(tag)
	if normalized == "" {
		return nil, nil
	}

	output, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: dynamo.PrefixUser + userID},
			":prefix": &types.AttributeValueMemberS{Value: fmt.Sprintf("TAG#%s#NOTE#", normalized)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query tag index: %w", err)
	}

	keys := make([]Key, 0, len(output.Items))
	for _, item := range output.Items {
		row := unmarshalTagItem(item)
		keys = append(keys, Key{UserID: row.UserID, ID: row.NoteID, Deadline: row.NoteDeadline})
	}

	return r.BatchGet(ctx, keys)
}

// BatchGet reads the notes at the given keys in one batched call,
// following up on unprocessed keys until the store has answered for all
// of them. Keys with no row are silently omitted from the result.
func (r *Repository) BatchGet(ctx context.Context, keys []Key) ([]*NoteItem, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	requestKeys := make([]map[string]types.AttributeValue, len(keys))
	for i, key := range keys {
		n := &NoteItem{ID: key.ID, UserID: key.UserID, Deadline: key.Deadline}
		requestKeys[i] = map[string]types.AttributeValue{
			dynamo.AttrPK: &types.AttributeValueMemberS{Value: n.PK()},
			dynamo.AttrSK: &types.AttributeValueMemberS{Value: n.SK()},
		}
	}

	notes := make([]*NoteItem, 0, len(keys))
	request := map[string]types.KeysAndAttributes{
		r.tableName: {Keys: requestKeys},
	}
	for len(request) > 0 {
		output, err := r.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
			RequestItems: request,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to batch get notes: %w", err)
		}
		for _, item := range output.Responses[r.tableName] {
			notes = append(notes, unmarshalNoteItem(item))
		}
		request = output.UnprocessedKeys
	}

	return notes, nil
}

// GetVersion retrieves the snapshot a note held at the given version.
func (r *Repository) GetVersion(ctx context.Context, noteID string, version int) (*NoteVersionItem, error) {
	v := &NoteVersionItem{NoteID: noteID, Version: version}

	output, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			dynamo.AttrPK: &types.AttributeValueMemberS{Value: v.PK()},
			dynamo.AttrSK: &types.AttributeValueMemberS{Value: v.SK()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get note version: %w", err)
	}

	if output.Item == nil {
		return nil, ErrVersionNotFound
	}

	return unmarshalVersionItem(output.Item), nil
}

// DeleteTagEntries removes every tag-index row a deleted note left in
// its owner's partition. Deletes are idempotent, so replays are safe.
func (r *Repository) DeleteTagEntries(ctx context.Context, userID, noteID string) (int, error) {
	output, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: dynamo.PrefixUser + userID},
			":prefix": &types.AttributeValueMemberS{Value: PrefixTag},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to query tag rows: %w", err)
	}

	deleted := 0
	for _, item := range output.Items {
		row := unmarshalTagItem(item)
		if row.NoteID != noteID {
			continue
		}
		_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(r.tableName),
			Key: map[string]types.AttributeValue{
				dynamo.AttrPK: &types.AttributeValueMemberS{Value: row.PK()},
				dynamo.AttrSK: &types.AttributeValueMemberS{Value: row.SK()},
			},
		})
		if err != nil {
			return deleted, fmt.Errorf("failed to delete tag row: %w", err)
		}
		deleted++
	}
	return deleted, nil
}

// DeleteVersionHistory removes every archived snapshot of a deleted note.
func (r *Repository) DeleteVersionHistory(ctx context.Context, noteID string) (int, error) {
	output, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: PrefixHistory + noteID},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to query version history: %w", err)
	}

	deleted := 0
	for _, item := range output.Items {
		sk, ok := item[dynamo.AttrSK].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(r.tableName),
			Key: map[string]types.AttributeValue{
				dynamo.AttrPK: &types.AttributeValueMemberS{Value: PrefixHistory + noteID},
				dynamo.AttrSK: sk,
			},
		})
		if err != nil {
			return deleted, fmt.Errorf("failed to delete version row: %w", err)
		}
		deleted++
	}
	return deleted, nil
}
