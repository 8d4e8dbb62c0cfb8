package share

// PrefixShared marks share rows in both the recipient's partition and
// the note's reverse-lookup index partition.
const PrefixShared = "SHARED#"

// Attribute names for DynamoDB items.
const (
	AttrNoteID       = "noteId"
	AttrSharedBy     = "sharedBy"
	AttrSharedWith   = "sharedWith"
	AttrNoteDeadline = "noteDeadline"
	AttrCreatedAt    = "createdAt"
	AttrType         = "entityType"
)

// TypeSharedNote is the entity type discriminator for share rows.
const TypeSharedNote = "shared_note"
