package models

// EntryChanged is emitted when a journal entry is created, updated or deleted.
// Content is omitted for deletions.
type EntryChanged struct {
	EventType string `json:"eventType"`
	EntryID   string `json:"entryId"`
	Title     string `json:"title,omitempty"`
	Content   string `json:"content,omitempty"`
	CreatedAt int64  `json:"createdAt,omitempty"`
	UpdatedAt int64  `json:"updatedAt,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
