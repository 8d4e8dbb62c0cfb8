// Package user provides user profile storage and email uniqueness for the
// notes table.
package user

import (
	"fmt"
	"time"
)

// UserItem represents a user profile stored in DynamoDB. Profiles are
// immutable after creation.
type UserItem struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

// PK returns the DynamoDB partition key for this user.
func (u *UserItem) PK() string {
	return fmt.Sprintf("USER#%s", u.ID)
}

// SK returns the DynamoDB sort key for this user.
func (u *UserItem) SK() string {
	return SKProfile
}

// GSI1PK returns the email-lookup index partition key.
func (u *UserItem) GSI1PK() string {
	return fmt.Sprintf("EMAIL#%s", u.Email)
}

// GSI1SK returns the email-lookup index sort key.
func (u *UserItem) GSI1SK() string {
	return fmt.Sprintf("USER#%s", u.ID)
}

// EmailLockItem reserves an email address. Its bare existence is the
// uniqueness constraint: at most one lock row may exist per address, and
// it is written in the same transaction as the user profile it belongs to.
type EmailLockItem struct {
	Email     string
	UserID    string
	CreatedAt time.Time
}

// PK returns the DynamoDB partition key for this lock.
func (l *EmailLockItem) PK() string {
	return fmt.Sprintf("EMAIL#%s", l.Email)
}

// SK returns the DynamoDB sort key for this lock.
func (l *EmailLockItem) SK() string {
	return SKUniqueEmail
}
