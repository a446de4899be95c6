// Package journal persists dictated notes as timestamped journal entries.
package journal

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when no entry has the requested id.
	ErrNotFound = errors.New("journal entry not found")
	// ErrExists is returned when creating an entry whose id is taken.
	ErrExists = errors.New("journal entry already exists")
	// ErrNothingToSave is returned when the transcript is blank.
	ErrNothingToSave = errors.New("nothing to save")
)

// Entry is one saved note.
type Entry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Edited reports whether the entry changed after it was created.
func (e Entry) Edited() bool {
	return !e.UpdatedAt.Equal(e.CreatedAt)
}

// LongDate formats t as "October 16th, 2026".
func LongDate(t time.Time) string {
	return fmt.Sprintf("%s %d%s, %d", t.Month(), t.Day(), ordinalSuffix(t.Day()), t.Year())
}

func ordinalSuffix(day int) string {
	if day%100 >= 11 && day%100 <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}
