// Package note provides note, note-version and tag storage for the notes
// table.
package note

import (
	"fmt"
	"time"
)

// NoteItem represents a note stored in DynamoDB. The ID is globally
// unique and immutable; the deadline is part of the physical sort key and
// never changes in place.
type NoteItem struct {
	ID        string
	UserID    string
	Title     string
	Content   string
	Deadline  time.Time
	Tags      []string
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PK returns the DynamoDB partition key for this note.
func (n *NoteItem) PK() string {
	return fmt.Sprintf("USER#%s", n.UserID)
}

// SK returns the DynamoDB sort key for this note. The deadline leads so
// a user's notes range-scan in chronological order, with the ID breaking
// ties.
func (n *NoteItem) SK() string {
	return fmt.Sprintf("NOTE#%s#%s", FormatDeadline(n.Deadline), n.ID)
}

// GSI2PK returns the reverse-lookup index partition key.
func (n *NoteItem) GSI2PK() string {
	return fmt.Sprintf("NOTE#%s", n.ID)
}

// GSI2SK returns the reverse-lookup index sort key.
func (n *NoteItem) GSI2SK() string {
	return fmt.Sprintf("USER#%s", n.UserID)
}

// Key identifies a note by its full physical key attributes. Batch reads
// need all three because the sort key embeds the deadline.
type Key struct {
	UserID   string
	ID       string
	Deadline time.Time
}

// NoteVersionItem is an immutable snapshot of a note as it was just
// before the update that replaced it, keyed by the version number it
// held at the time. Snapshots are append-only.
type NoteVersionItem struct {
	NoteID     string
	Title      string
	Content    string
	Deadline   time.Time
	Tags       []string
	Version    int
	ArchivedAt time.Time
}

// PK returns the DynamoDB partition key for this snapshot.
func (v *NoteVersionItem) PK() string {
	return fmt.Sprintf("NOTE_HISTORY#%s", v.NoteID)
}

// SK returns the DynamoDB sort key for this snapshot.
func (v *NoteVersionItem) SK() string {
	return fmt.Sprintf("VER#%d", v.Version)
}

// TagItem is a denormalized search-index row. The note's own tag set
// stays authoritative; this row only exists so tag lookups are a single
// partition query. The deadline is cached because the note's primary key
// cannot be rebuilt from its ID alone.
type TagItem struct {
	UserID       string
	NoteID       string
	Tag          string
	NoteDeadline time.Time
}

// PK returns the DynamoDB partition key for this tag row.
func (t *TagItem) PK() string {
	return fmt.Sprintf("USER#%s", t.UserID)
}

// SK returns the DynamoDB sort key for this tag row.
func (t *TagItem) SK() string {
	return fmt.Sprintf("TAG#%s#NOTE#%s", t.Tag, t.NoteID)
}
