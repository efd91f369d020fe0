package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/hexborne/warden/internal/domain"
)

// AddNote attaches a staff note to a user record.
func (s *Store) AddNote(ctx context.Context, userID, authorID int64, body string) (*domain.Note, error) {
	now := time.Now()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO staff_notes (user_id, author_id, body, created_at)
		VALUES (?, ?, ?, ?)
	`, userID, authorID, body, formatTimestamp(now))
	if err != nil {
		return nil, fmt.Errorf("adding note: %w", err)
	}
	id, _ := result.LastInsertId()
	return &domain.Note{
		ID:        id,
		UserID:    userID,
		AuthorID:  authorID,
		Body:      body,
		CreatedAt: now.UTC(),
	}, nil
}

// NotesForUser returns the user's notes, newest first, with author names.
func (s *Store) NotesForUser(ctx context.Context, userID int64) ([]domain.Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT n.id, n.user_id, n.author_id, COALESCE(u.display_name, ''), n.body, n.created_at
		FROM staff_notes n
		LEFT JOIN users u ON u.id = n.author_id
		WHERE n.user_id = ?
		ORDER BY n.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []domain.Note
	for rows.Next() {
		var n domain.Note
		if err := rows.Scan(&n.ID, &n.UserID, &n.AuthorID, &n.AuthorName, &n.Body, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// DeleteNote removes a note by id.
func (s *Store) DeleteNote(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM staff_notes WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("note %d not found", id)
	}
	return nil
}
