// Package models provides data model definitions for the classlog core.
package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// UUID is a wrapper around string for UUID v4 type safety.
type UUID string

// Value implements driver.Valuer for UUID.
func (u UUID) Value() (driver.Value, error) {
	return string(u), nil
}

// Scan implements sql.Scanner for UUID.
func (u *UUID) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*u = ""
	case string:
		*u = UUID(v)
	case []byte:
		*u = UUID(v)
	default:
		return fmt.Errorf("cannot scan %T into UUID", value)
	}
	return nil
}

// String returns the string representation of the UUID.
func (u UUID) String() string {
	return string(u)
}

// EventKind classifies a behavior event.
type EventKind string

const (
	KindPositive EventKind = "positive"
	KindNegative EventKind = "negative"
	KindNeutral  EventKind = "neutral"
)

// Valid reports whether k is one of the known kinds.
func (k EventKind) Valid() bool {
	switch k {
	case KindPositive, KindNegative, KindNeutral:
		return true
	}
	return false
}

// EventRecord represents a single logged behavior event.
// The id is assigned locally at creation time, before any delivery attempt,
// so the same logical event is never represented by two records.
type EventRecord struct {
	ID          UUID      `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	StudentName string    `db:"student_name" json:"student_name"` // captured at logging time, never re-fetched
	Kind        EventKind `db:"kind" json:"kind"`
	Category    string    `db:"category" json:"category"`
	Note        string    `db:"note" json:"note,omitempty"`
	LoggedAt    int64     `db:"logged_at" json:"logged_at"`
	Delivered   bool      `db:"delivered" json:"delivered"`
	DeliveredAt int64     `db:"delivered_at" json:"delivered_at,omitempty"`
}

// TableName returns the table name for EventRecord.
func (EventRecord) TableName() string {
	return "events"
}

// LoggedAtTime returns LoggedAt as time.Time.
func (e *EventRecord) LoggedAtTime() time.Time {
	return time.Unix(e.LoggedAt, 0)
}

// DeliveredAtTime returns DeliveredAt as time.Time, or the zero time if the
// record has not been delivered.
func (e *EventRecord) DeliveredAtTime() time.Time {
	if e.DeliveredAt == 0 {
		return time.Time{}
	}
	return time.Unix(e.DeliveredAt, 0)
}

// Label returns the human-readable label shown in the feedback toast.
func (e *EventRecord) Label() string {
	return fmt.Sprintf("%s: %s", e.StudentName, e.Category)
}
