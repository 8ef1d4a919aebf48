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

// CreateList inserts a list row. Creating a list that already exists
// returns the existing list unchanged.
func (s *Store) CreateList(ctx context.Context, userID, name, listType string, opts engine.ListOpts) (*engine.List, error) {
	now := time.Now().UTC()
	_, err := s.db.Exec(ctx, `
		INSERT INTO lists (user_id, name, type, description, color, icon, items, next_item_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, '[]', 1, $7, $7)
		ON CONFLICT (user_id, name) DO NOTHING`,
		userID, name, listType, opts.Description, opts.Color, opts.Icon, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create list %s: %w", name, err)
	}
	return s.getList(ctx, userID, name)
}

func (s *Store) getList(ctx context.Context, userID, name string) (*engine.List, error) {
	row := s.db.QueryRow(ctx, `
		SELECT user_id, name, type, description, color, icon, items, created_at, updated_at
		FROM lists WHERE user_id = $1 AND name = $2`, userID, name)

	var l engine.List
	var raw []byte
	err := row.Scan(&l.UserID, &l.Name, &l.Type, &l.Description, &l.Color, &l.Icon, &raw, &l.Created, &l.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, engine.ErrListNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get list %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, &l.Items); err != nil {
		return nil, fmt.Errorf("decode list items %s: %w", name, err)
	}
	return &l, nil
}

// AddListItem appends an item, assigning the next monotonic id from the
// row's counter. Deleted ids are never reused.
func (s *Store) AddListItem(ctx context.Context, userID, listName, text string, opts engine.ItemOpts) (*engine.ListItem, error) {
	var added *engine.ListItem
	err := s.mutateListItems(ctx, userID, listName, func(items []engine.ListItem, nextID int64) ([]engine.ListItem, int64, error) {
		item := engine.ListItem{
			ID:       nextID,
			Text:     text,
			Priority: opts.Priority,
			DueDate:  opts.DueDate,
			Notes:    opts.Notes,
			Quantity: opts.Quantity,
			AddedAt:  time.Now().UTC(),
		}
		added = &item
		return append(items, item), nextID + 1, nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// SetListItemStatus marks an item completed or not.
func (s *Store) SetListItemStatus(ctx context.Context, userID, listName string, itemID int64, completed bool) error {
	return s.mutateListItems(ctx, userID, listName, func(items []engine.ListItem, nextID int64) ([]engine.ListItem, int64, error) {
		for i := range items {
			if items[i].ID == itemID {
				items[i].Completed = completed
				return items, nextID, nil
			}
		}
		return nil, 0, engine.ErrItemNotFound
	})
}

// EditListItemText replaces an item's text.
func (s *Store) EditListItemText(ctx context.Context, userID, listName string, itemID int64, text string) error {
	return s.mutateListItems(ctx, userID, listName, func(items []engine.ListItem, nextID int64) ([]engine.ListItem, int64, error) {
		for i := range items {
			if items[i].ID == itemID {
				items[i].Text = text
				return items, nextID, nil
			}
		}
		return nil, 0, engine.ErrItemNotFound
	})
}

// DeleteListItem removes an item from the list.
func (s *Store) DeleteListItem(ctx context.Context, userID, listName string, itemID int64) error {
	return s.mutateListItems(ctx, userID, listName, func(items []engine.ListItem, nextID int64) ([]engine.ListItem, int64, error) {
		for i := range items {
			if items[i].ID == itemID {
				return append(items[:i], items[i+1:]...), nextID, nil
			}
		}
		return nil, 0, engine.ErrItemNotFound
	})
}

// DeleteList removes the list row and reports how many items went with it.
func (s *Store) DeleteList(ctx context.Context, userID, name string) (int, error) {
	row := s.db.QueryRow(ctx, `
		DELETE FROM lists WHERE user_id = $1 AND name = $2
		RETURNING jsonb_array_length(items)`, userID, name)

	var deleted int
	err := row.Scan(&deleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, engine.ErrListNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("delete list %s: %w", name, err)
	}
	return deleted, nil
}

// ListAll returns every list for a user in creation order.
func (s *Store) ListAll(ctx context.Context, userID string) ([]*engine.List, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id, name, type, description, color, icon, items, created_at, updated_at
		FROM lists WHERE user_id = $1 ORDER BY created_at, name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	defer rows.Close()

	var lists []*engine.List
	for rows.Next() {
		var l engine.List
		var raw []byte
		if err := rows.Scan(&l.UserID, &l.Name, &l.Type, &l.Description, &l.Color, &l.Icon, &raw, &l.Created, &l.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		if err := json.Unmarshal(raw, &l.Items); err != nil {
			return nil, fmt.Errorf("decode list items %s: %w", l.Name, err)
		}
		lists = append(lists, &l)
	}
	return lists, nil
}

// mutateListItems runs a read-modify-write cycle on a list's JSONB items
// with the row locked for the duration of the transaction.
func (s *Store) mutateListItems(ctx context.Context, userID, listName string, fn func([]engine.ListItem, int64) ([]engine.ListItem, int64, error)) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT items, next_item_id FROM lists
		WHERE user_id = $1 AND name = $2 FOR UPDATE`, userID, listName)

	var raw []byte
	var nextID int64
	err = row.Scan(&raw, &nextID)
	if errors.Is(err, pgx.ErrNoRows) {
		return engine.ErrListNotFound
	}
	if err != nil {
		return fmt.Errorf("lock list %s: %w", listName, err)
	}

	var items []engine.ListItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("decode list items %s: %w", listName, err)
	}

	items, nextID, err = fn(items, nextID)
	if err != nil {
		return err
	}

	if items == nil {
		items = []engine.ListItem{}
	}
	buf, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode list items %s: %w", listName, err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE lists SET items = $3, next_item_id = $4, updated_at = NOW()
		WHERE user_id = $1 AND name = $2`, userID, listName, buf, nextID); err != nil {
		return fmt.Errorf("update list %s: %w", listName, err)
	}
	return tx.Commit(ctx)
}
