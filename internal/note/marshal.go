package note

import (
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"notekeeper/internal/dynamo"
)

// marshalNoteItem converts a NoteItem to DynamoDB attribute values.
func marshalNoteItem(n *NoteItem) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		dynamo.AttrPK:     &types.AttributeValueMemberS{Value: n.PK()},
		dynamo.AttrSK:     &types.AttributeValueMemberS{Value: n.SK()},
		dynamo.AttrGSI2PK: &types.AttributeValueMemberS{Value: n.GSI2PK()},
		dynamo.AttrGSI2SK: &types.AttributeValueMemberS{Value: n.GSI2SK()},
		AttrType:          &types.AttributeValueMemberS{Value: TypeNote},
		AttrID:            &types.AttributeValueMemberS{Value: n.ID},
		AttrUserID:        &types.AttributeValueMemberS{Value: n.UserID},
		AttrTitle:         &types.AttributeValueMemberS{Value: n.Title},
		AttrContent:       &types.AttributeValueMemberS{Value: n.Content},
		AttrDeadline:      &types.AttributeValueMemberS{Value: FormatDeadline(n.Deadline)},
		AttrVersion:       &types.AttributeValueMemberN{Value: strconv.Itoa(n.Version)},
		AttrCreatedAt:     &types.AttributeValueMemberS{Value: n.CreatedAt.UTC().Format(time.RFC3339)},
		AttrUpdatedAt:     &types.AttributeValueMemberS{Value: n.UpdatedAt.UTC().Format(time.RFC3339)},
	}

	// DynamoDB rejects empty string sets; the attribute appears with the
	// first ADD.
	if len(n.Tags) > 0 {
		item[AttrTags] = &types.AttributeValueMemberSS{Value: n.Tags}
	}

	return item
}

// unmarshalNoteItem converts DynamoDB attribute values to a NoteItem.
// Key fields are not carried over: callers only see logical attributes.
func unmarshalNoteItem(item map[string]types.AttributeValue) *NoteItem {
	n := &NoteItem{}

	if v, ok := item[AttrID].(*types.AttributeValueMemberS); ok {
		n.ID = v.Value
	}
	if v, ok := item[AttrUserID].(*types.AttributeValueMemberS); ok {
		n.UserID = v.Value
	}
	if v, ok := item[AttrTitle].(*types.AttributeValueMemberS); ok {
		n.Title = v.Value
	}
	if v, ok := item[AttrContent].(*types.AttributeValueMemberS); ok {
		n.Content = v.Value
	}
	if v, ok := item[AttrDeadline].(*types.AttributeValueMemberS); ok {
		if t, err := time.Parse(time.RFC3339, v.Value); err == nil {
			n.Deadline = t
		}
	}
	if v, ok := item[AttrTags].(*types.AttributeValueMemberSS); ok {
		n.Tags = v.Value
	}
	if v, ok := item[AttrVersion].(*types.AttributeValueMemberN); ok {
		if ver, err := strconv.Atoi(v.Value); err == nil {
			n.Version = ver
		}
	}
	if v, ok := item[AttrCreatedAt].(*types.AttributeValueMemberS); ok {
		if t, err := time.Parse(time.RFC3339, v.Value); err == nil {
			n.CreatedAt = t
		}
	}
	if v, ok := item[AttrUpdatedAt].(*types.AttributeValueMemberS); ok {
		if t, err := time.Parse(time.RFC3339, v.Value); err == nil {
			n.UpdatedAt = t
		}
	}

	return n
}

// marshalVersionItem converts a NoteVersionItem to DynamoDB attribute values.
func marshalVersionItem(v *NoteVersionItem) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		dynamo.AttrPK:  &types.AttributeValueMemberS{Value: v.PK()},
		dynamo.AttrSK:  &types.AttributeValueMemberS{Value: v.SK()},
		AttrType:       &types.AttributeValueMemberS{Value: TypeNoteVersion},
		AttrNoteID:     &types.AttributeValueMemberS{Value: v.NoteID},
		AttrTitle:      &types.AttributeValueMemberS{Value: v.Title},
		AttrContent:    &types.AttributeValueMemberS{Value: v.Content},
		AttrDeadline:   &types.AttributeValueMemberS{Value: FormatDeadline(v.Deadline)},
		AttrVersion:    &types.AttributeValueMemberN{Value: strconv.Itoa(v.Version)},
		AttrArchivedAt: &types.AttributeValueMemberS{Value: v.ArchivedAt.UTC().Format(time.RFC3339)},
	}

	if len(v.Tags) > 0 {
		item[AttrTags] = &types.AttributeValueMemberSS{Value: v.Tags}
	}

	return item
}

// unmarshalVersionItem converts DynamoDB attribute values to a NoteVersionItem.
func unmarshalVersionItem(item map[string]types.AttributeValue) *NoteVersionItem {
	v := &NoteVersionItem{}

	if a, ok := item[AttrNoteID].(*types.AttributeValueMemberS); ok {
		v.NoteID = a.Value
	}
	if a, ok := item[AttrTitle].(*types.AttributeValueMemberS); ok {
		v.Title = a.Value
	}
	if a, ok := item[AttrContent].(*types.AttributeValueMemberS); ok {
		v.Content = a.Value
	}
	if a, ok := item[AttrDeadline].(*types.AttributeValueMemberS); ok {
		if t, err := time.Parse(time.RFC3339, a.Value); err == nil {
			v.Deadline = t
		}
	}
	if a, ok := item[AttrTags].(*types.AttributeValueMemberSS); ok {
		v.Tags = a.Value
	}
	if a, ok := item[AttrVersion].(*types.AttributeValueMemberN); ok {
		if ver, err := strconv.Atoi(a.Value); err == nil {
			v.Version = ver
		}
	}
	if a, ok := item[AttrArchivedAt].(*types.AttributeValueMemberS); ok {
		if t, err := time.Parse(time.RFC3339, a.Value); err == nil {
			v.ArchivedAt = t
		}
	}

	return v
}

// marshalTagItem converts a TagItem to DynamoDB attribute values.
func marshalTagItem(t *TagItem) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		dynamo.AttrPK:    &types.AttributeValueMemberS{Value: t.PK()},
		dynamo.AttrSK:    &types.AttributeValueMemberS{Value: t.SK()},
		AttrType:         &types.AttributeValueMemberS{Value: TypeTag},
		AttrUserID:       &types.AttributeValueMemberS{Value: t.UserID},
		AttrNoteID:       &types.AttributeValueMemberS{Value: t.NoteID},
		AttrTag:          &types.AttributeValueMemberS{Value: t.Tag},
		AttrNoteDeadline: &types.AttributeValueMemberS{Value: FormatDeadline(t.NoteDeadline)},
	}
}

// unmarshalTagItem converts DynamoDB attribute values to a TagItem.
func unmarshalTagItem(item map[string]types.AttributeValue) *TagItem {
	t := &TagItem{}

	if v, ok := item[AttrUserID].(*types.AttributeValueMemberS); ok {
		t.UserID = v.Value
	}
	if v, ok := item[AttrNoteID].(*types.AttributeValueMemberS); ok {
		t.NoteID = v.Value
	}
	if v, ok := item[AttrTag].(*types.AttributeValueMemberS); ok {
		t.Tag = v.Value
	}
	if v, ok := item[AttrNoteDeadline].(*types.AttributeValueMemberS); ok {
		if ts, err := time.Parse(time.RFC3339, v.Value); err == nil {
			t.NoteDeadline = ts
		}
	}

	return t
}
