package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nidhogg/codsworth/internal/engine"
)

// CreateMemoryCategory inserts a category row. Creating one that already
// exists returns the existing category unchanged.
func (s *Store) CreateMemoryCategory(ctx context.Context, userID, name, catType string, opts engine.CategoryOpts) (*engine.MemoryCategory, error) {
	now := time.Now().UTC()
	_, err := s.db.Exec(ctx, `
		INSERT INTO memory_categories (user_id, name, type, description, color, icon, items, next_item_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, '[]', 1, $7, $7)
		ON CONFLICT (user_id, name) DO NOTHING`,
		userID, name, catType, opts.Description, opts.Color, opts.Icon, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create memory category %s: %w", name, err)
	}
	return s.getMemoryCategory(ctx, userID, name)
}

func (s *Store) getMemoryCategory(ctx context.Context, userID, name string) (*engine.MemoryCategory, error) {
	row := s.db.QueryRow(ctx, `
		SELECT user_id, name, type, description, color, icon, items, created_at, updated_at
		FROM memory_categories WHERE user_id = $1 AND name = $2`, userID, name)

	var c engine.MemoryCategory
	var raw []byte
	err := row.Scan(&c.UserID, &c.Name, &c.Type, &c.Description, &c.Color, &c.Icon, &raw, &c.Created, &c.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, engine.ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get memory category %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, &c.Items); err != nil {
		return nil, fmt.Errorf("decode memory items %s: %w", name, err)
	}
	return &c, nil
}

// AddMemoryItem appends a key/value memory to a category. A missing
// category surfaces as engine.ErrCategoryNotFound so the dispatcher can
// run its create-and-retry recovery.
func (s *Store) AddMemoryItem(ctx context.Context, userID, category, key, value string, opts engine.MemoryOpts) (*engine.MemoryItem, error) {
	var added *engine.MemoryItem
	err := s.mutateMemoryItems(ctx, userID, category, func(items []engine.MemoryItem, nextID int64) ([]engine.MemoryItem, int64, error) {
		item := engine.MemoryItem{
			ID:         nextID,
			Key:        key,
			Value:      value,
			MemoryType: opts.Type,
			Importance: opts.Importance,
			Tags:       opts.Tags,
			ExpiresAt:  opts.ExpiresAt,
			Private:    opts.Private,
			CreatedAt:  time.Now().UTC(),
		}
		added = &item
		return append(items, item), nextID + 1, nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// EditMemoryItem applies partial updates to a memory item.
func (s *Store) EditMemoryItem(ctx context.Context, userID, category string, itemID int64, updates engine.MemoryUpdates) error {
	return s.mutateMemoryItems(ctx, userID, category, func(items []engine.MemoryItem, nextID int64) ([]engine.MemoryItem, int64, error) {
		for i := range items {
			if items[i].ID != itemID {
				continue
			}
			if updates.Key != nil {
				items[i].Key = *updates.Key
			}
			if updates.Value != nil {
				items[i].Value = *updates.Value
			}
			if updates.Importance != nil {
				items[i].Importance = *updates.Importance
			}
			if updates.Tags != nil {
				items[i].Tags = *updates.Tags
			}
			return items, nextID, nil
		}
		return nil, 0, engine.ErrItemNotFound
	})
}

// DeleteMemoryItem removes a memory item from a category.
func (s *Store) DeleteMemoryItem(ctx context.Context, userID, category string, itemID int64) error {
	return s.mutateMemoryItems(ctx, userID, category, func(items []engine.MemoryItem, nextID int64) ([]engine.MemoryItem, int64, error) {
		for i := range items {
			if items[i].ID == itemID {
				return append(items[:i], items[i+1:]...), nextID, nil
			}
		}
		return nil, 0, engine.ErrItemNotFound
	})
}

// DeleteMemoryCategory removes the category row and everything in it.
func (s *Store) DeleteMemoryCategory(ctx context.Context, userID, name string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM memory_categories WHERE user_id = $1 AND name = $2`, userID, name)
	if err != nil {
		return fmt.Errorf("delete memory category %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return engine.ErrCategoryNotFound
	}
	return nil
}

// MemoryAll returns every category for a user in creation order.
func (s *Store) MemoryAll(ctx context.Context, userID string) ([]*engine.MemoryCategory, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id, name, type, description, color, icon, items, created_at, updated_at
		FROM memory_categories WHERE user_id = $1 ORDER BY created_at, name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list memory categories: %w", err)
	}
	defer rows.Close()

	var categories []*engine.MemoryCategory
	for rows.Next() {
		var c engine.MemoryCategory
		var raw []byte
		if err := rows.Scan(&c.UserID, &c.Name, &c.Type, &c.Description, &c.Color, &c.Icon, &raw, &c.Created, &c.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan memory category: %w", err)
		}
		if err := json.Unmarshal(raw, &c.Items); err != nil {
			return nil, fmt.Errorf("decode memory items %s: %w", c.Name, err)
		}
		categories = append(categories, &c)
	}
	return categories, nil
}

func (s *Store) mutateMemoryItems(ctx context.Context, userID, category string, fn func([]engine.MemoryItem, int64) ([]engine.MemoryItem, int64, error)) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT items, next_item_id FROM memory_categories
		WHERE user_id = $1 AND name = $2 FOR UPDATE`, userID, category)

	var raw []byte
	var nextID int64
	err = row.Scan(&raw, &nextID)
	if errors.Is(err, pgx.ErrNoRows) {
		return engine.ErrCategoryNotFound
	}
	if err != nil {
		return fmt.Errorf("lock memory category %s: %w", category, err)
	}

	var items []engine.MemoryItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("decode memory items %s: %w", category, err)
	}

	items, nextID, err = fn(items, nextID)
	if err != nil {
		return err
	}

	if items == nil {
		items = []engine.MemoryItem{}
	}
	buf, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode memory items %s: %w", category, err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE memory_categories SET items = $3, next_item_id = $4, updated_at = NOW()
		WHERE user_id = $1 AND name = $2`, userID, category, buf, nextID); err != nil {
		return fmt.Errorf("update memory category %s: %w", category, err)
	}
	return tx.Commit(ctx)
}
