package share

import (
	"fmt"
	"time"

	"notekeeper/internal/dynamo"
	"notekeeper/internal/note"
)

// SharedNoteItem grants one user read access to another user's note.
// The row lives in the recipient's partition so "shared with me" is a
// single partition query, and carries the owner and deadline so the
// note's primary key can be rebuilt without a reverse lookup.
type SharedNoteItem struct {
	NoteID       string
	SharedBy     string
	SharedWith   string
	NoteDeadline time.Time
	CreatedAt    time.Time
}

func (s *SharedNoteItem) PK() string {
	return dynamo.PrefixUser + s.SharedWith
}

func (s *SharedNoteItem) SK() string {
	return PrefixShared + s.NoteID
}

// GSI2 collects a note's share rows under the note's own reverse-lookup
// partition, next to the note row itself.
func (s *SharedNoteItem) GSI2PK() string {
	return note.PrefixNote + s.NoteID
}

func (s *SharedNoteItem) GSI2SK() string {
	return PrefixShared + s.SharedWith
}

// NoteKey rebuilds the shared note's primary-table key from the cached
// owner and deadline.
func (s *SharedNoteItem) NoteKey() note.Key {
	return note.Key{UserID: s.SharedBy, ID: s.NoteID, Deadline: s.NoteDeadline}
}

func (s *SharedNoteItem) String() string {
	return fmt.Sprintf("note %s shared by %s with %s", s.NoteID, s.SharedBy, s.SharedWith)
}
