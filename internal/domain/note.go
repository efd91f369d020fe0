package domain

import "time"

// Note is a staff note attached to a user record.
type Note struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	AuthorID   int64     `json:"author_id"`
	AuthorName string    `json:"author_name,omitempty"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}
