package database

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/dansontsui/aistock-analysis/internal/models"
)

// ErrDuplicateEmail is returned when a subscriber email already exists.
var ErrDuplicateEmail = fmt.Errorf("email already subscribed")

// ListSubscribers returns all report recipients, newest first.
func (db *DB) ListSubscribers() ([]models.Subscriber, error) {
	query := `
		SELECT id, email, created_at
		FROM subscribers
		ORDER BY id DESC
	`
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscribers: %w", err)
	}
	defer rows.Close()

	subscribers := []models.Subscriber{}
	for rows.Next() {
		var s models.Subscriber
		if err := rows.Scan(&s.ID, &s.Email, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber row: %w", err)
		}
		subscribers = append(subscribers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscribers: %w", err)
	}
	return subscribers, nil
}

// AddSubscriber registers a new recipient and fills in its ID.
func (db *DB) AddSubscriber(s *models.Subscriber) error {
	s.Email = strings.ToLower(strings.TrimSpace(s.Email))

	query := `
		INSERT INTO subscribers (email, created_at)
		VALUES ($1, NOW())
		RETURNING id, created_at
	`
	err := db.conn.QueryRow(query, s.Email).Scan(&s.ID, &s.CreatedAt)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to add subscriber: %w", err)
	}
	return nil
}

// DeleteSubscriber removes a recipient. Returns false when the ID is unknown.
func (db *DB) DeleteSubscriber(id int64) (bool, error) {
	res, err := db.conn.Exec(`DELETE FROM subscribers WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete subscriber %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result: %w", err)
	}
	return affected > 0, nil
}
