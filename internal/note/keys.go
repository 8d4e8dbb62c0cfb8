package note

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Key prefixes for note-family rows.
const (
	PrefixNote    = "NOTE#"
	PrefixHistory = "NOTE_HISTORY#"
	PrefixVersion = "VER#"
	PrefixTag     = "TAG#"
)

// Attribute names for DynamoDB items.
const (
	AttrID           = "id"
	AttrUserID       = "userId"
	AttrNoteID       = "noteId"
	AttrTitle        = "title"
	AttrContent      = "content"
	AttrDeadline     = "deadline"
	AttrTags         = "tags"
	AttrTag          = "tag"
	AttrVersion      = "version"
	AttrNoteDeadline = "noteDeadline"
	AttrCreatedAt    = "createdAt"
	AttrUpdatedAt    = "updatedAt"
	AttrArchivedAt   = "archivedAt"
	AttrType         = "entityType"
)

// Entity type discriminators.
const (
	TypeNote        = "note"
	TypeNoteVersion = "note_version"
	TypeTag         = "tag"
)

// NormalizeTag canonicalizes a tag for case-insensitive matching: Unicode
// NFC, lower-cased, surrounding whitespace removed. The normalized form
// is what gets stored in the note's tag set and embedded in the tag
// row's sort key, so lookups never depend on the caller's casing.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(tag)))
}

// FormatDeadline renders a deadline for sort keys and attributes.
// RFC 3339 UTC at second precision is fixed width, so the store's
// lexicographic key order is chronological order.
func FormatDeadline(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}
