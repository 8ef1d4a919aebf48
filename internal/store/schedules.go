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

// CreateSchedule inserts a schedule row. Creating one that already exists
// returns the existing schedule unchanged.
func (s *Store) CreateSchedule(ctx context.Context, userID, name, schedType string, opts engine.ScheduleOpts) (*engine.Schedule, error) {
	now := time.Now().UTC()
	_, err := s.db.Exec(ctx, `
		INSERT INTO schedules (user_id, name, type, timezone, description, color, events, next_event_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, '[]', 1, $7, $7)
		ON CONFLICT (user_id, name) DO NOTHING`,
		userID, name, schedType, opts.Timezone, opts.Description, opts.Color, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create schedule %s: %w", name, err)
	}
	return s.getSchedule(ctx, userID, name)
}

func (s *Store) getSchedule(ctx context.Context, userID, name string) (*engine.Schedule, error) {
	row := s.db.QueryRow(ctx, `
		SELECT user_id, name, type, timezone, description, color, events, created_at, updated_at
		FROM schedules WHERE user_id = $1 AND name = $2`, userID, name)

	var sc engine.Schedule
	var raw []byte
	err := row.Scan(&sc.UserID, &sc.Name, &sc.Type, &sc.Timezone, &sc.Description, &sc.Color, &raw, &sc.Created, &sc.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, engine.ErrScheduleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, &sc.Events); err != nil {
		return nil, fmt.Errorf("decode schedule events %s: %w", name, err)
	}
	return &sc, nil
}

// AddEvent appends an event, assigning the next monotonic id from the
// row's counter.
func (s *Store) AddEvent(ctx context.Context, userID, scheduleName, title, startTime string, opts engine.EventOpts) (*engine.Event, error) {
	var added *engine.Event
	err := s.mutateEvents(ctx, userID, scheduleName, func(events []engine.Event, nextID int64) ([]engine.Event, int64, error) {
		ev := engine.Event{
			ID:              nextID,
			Title:           title,
			StartTime:       startTime,
			EndTime:         opts.EndTime,
			Location:        opts.Location,
			Description:     opts.Description,
			EventType:       opts.EventType,
			IsAllDay:        opts.IsAllDay,
			ReminderMinutes: opts.ReminderMinutes,
			AddedAt:         time.Now().UTC(),
		}
		added = &ev
		return append(events, ev), nextID + 1, nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// EditEvent applies partial updates to an event and returns the new state.
func (s *Store) EditEvent(ctx context.Context, userID, scheduleName string, eventID int64, updates engine.EventUpdates) (*engine.Event, error) {
	var edited *engine.Event
	err := s.mutateEvents(ctx, userID, scheduleName, func(events []engine.Event, nextID int64) ([]engine.Event, int64, error) {
		for i := range events {
			if events[i].ID != eventID {
				continue
			}
			if updates.Title != nil {
				events[i].Title = *updates.Title
			}
			if updates.StartTime != nil {
				events[i].StartTime = *updates.StartTime
			}
			if updates.EndTime != nil {
				events[i].EndTime = *updates.EndTime
			}
			if updates.Location != nil {
				events[i].Location = *updates.Location
			}
			if updates.Description != nil {
				events[i].Description = *updates.Description
			}
			if updates.IsAllDay != nil {
				events[i].IsAllDay = *updates.IsAllDay
			}
			if updates.ReminderMinutes != nil {
				events[i].ReminderMinutes = *updates.ReminderMinutes
			}
			ev := events[i]
			edited = &ev
			return events, nextID, nil
		}
		return nil, 0, engine.ErrEventNotFound
	})
	if err != nil {
		return nil, err
	}
	return edited, nil
}

// DeleteEvent removes an event and returns its last state.
func (s *Store) DeleteEvent(ctx context.Context, userID, scheduleName string, eventID int64) (*engine.Event, error) {
	var removed *engine.Event
	err := s.mutateEvents(ctx, userID, scheduleName, func(events []engine.Event, nextID int64) ([]engine.Event, int64, error) {
		for i := range events {
			if events[i].ID == eventID {
				ev := events[i]
				removed = &ev
				return append(events[:i], events[i+1:]...), nextID, nil
			}
		}
		return nil, 0, engine.ErrEventNotFound
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// DeleteSchedule removes the schedule row and reports how many events went
// with it.
func (s *Store) DeleteSchedule(ctx context.Context, userID, name string) (int, error) {
	row := s.db.QueryRow(ctx, `
		DELETE FROM schedules WHERE user_id = $1 AND name = $2
		RETURNING jsonb_array_length(events)`, userID, name)

	var deleted int
	err := row.Scan(&deleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, engine.ErrScheduleNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("delete schedule %s: %w", name, err)
	}
	return deleted, nil
}

// ScheduleAll returns every schedule for a user in creation order.
func (s *Store) ScheduleAll(ctx context.Context, userID string) ([]*engine.Schedule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id, name, type, timezone, description, color, events, created_at, updated_at
		FROM schedules WHERE user_id = $1 ORDER BY created_at, name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*engine.Schedule
	for rows.Next() {
		var sc engine.Schedule
		var raw []byte
		if err := rows.Scan(&sc.UserID, &sc.Name, &sc.Type, &sc.Timezone, &sc.Description, &sc.Color, &raw, &sc.Created, &sc.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		if err := json.Unmarshal(raw, &sc.Events); err != nil {
			return nil, fmt.Errorf("decode schedule events %s: %w", sc.Name, err)
		}
		schedules = append(schedules, &sc)
	}
	return schedules, nil
}

func (s *Store) mutateEvents(ctx context.Context, userID, scheduleName string, fn func([]engine.Event, int64) ([]engine.Event, int64, error)) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT events, next_event_id FROM schedules
		WHERE user_id = $1 AND name = $2 FOR UPDATE`, userID, scheduleName)

	var raw []byte
	var nextID int64
	err = row.Scan(&raw, &nextID)
	if errors.Is(err, pgx.ErrNoRows) {
		return engine.ErrScheduleNotFound
	}
	if err != nil {
		return fmt.Errorf("lock schedule %s: %w", scheduleName, err)
	}

	var events []engine.Event
	if err := json.Unmarshal(raw, &events); err != nil {
		return fmt.Errorf("decode schedule events %s: %w", scheduleName, err)
	}

	events, nextID, err = fn(events, nextID)
	if err != nil {
		return err
	}

	if events == nil {
		events = []engine.Event{}
	}
	buf, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("encode schedule events %s: %w", scheduleName, err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE schedules SET events = $3, next_event_id = $4, updated_at = NOW()
		WHERE user_id = $1 AND name = $2`, userID, scheduleName, buf, nextID); err != nil {
		return fmt.Errorf("update schedule %s: %w", scheduleName, err)
	}
	return tx.Commit(ctx)
}
