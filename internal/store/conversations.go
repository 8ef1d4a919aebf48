package store

import (
	"context"
	"fmt"

	"github.com/nidhogg/codsworth/internal/provider"
)

// AppendMessage stores one turn of a user's conversation.
func (s *Store) AppendMessage(ctx context.Context, userID, role, content string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO conversation_messages (user_id, role, content)
		VALUES ($1, $2, $3)`,
		userID, role, content,
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// RecentMessages returns the last limit turns for a user, oldest first.
func (s *Store) RecentMessages(ctx context.Context, userID string, limit int) ([]provider.Message, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(ctx, `
		SELECT role, content FROM (
			SELECT id, role, content
			FROM conversation_messages
			WHERE user_id = $1
			ORDER BY id DESC
			LIMIT $2
		) recent
		ORDER BY id ASC`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	var msgs []provider.Message
	for rows.Next() {
		var msg provider.Message
		if err := rows.Scan(&msg.Role, &msg.Content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// PruneMessages drops all but the newest keep turns for a user.
func (s *Store) PruneMessages(ctx context.Context, userID string, keep int) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM conversation_messages
		WHERE user_id = $1 AND id NOT IN (
			SELECT id FROM conversation_messages
			WHERE user_id = $1
			ORDER BY id DESC
			LIMIT $2
		)`, userID, keep)
	if err != nil {
		return fmt.Errorf("prune messages: %w", err)
	}
	return nil
}
