package engine

import (
	"context"
	"time"
)

// List is a named per-user collection of checkable items.
type List struct {
	UserID      string     `json:"user_id"`
	Name        string     `json:"name"`
	Type        string     `json:"type"`
	Description string     `json:"description,omitempty"`
	Color       string     `json:"color,omitempty"`
	Icon        string     `json:"icon,omitempty"`
	Items       []ListItem `json:"items"`
	Created     time.Time  `json:"created"`
	LastUpdated time.Time  `json:"last_updated"`
}

// ListItem is a single entry in a List. IDs are monotonic within the list.
type ListItem struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	Priority  string    `json:"priority,omitempty"`
	DueDate   string    `json:"due_date,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

// Schedule is a named per-user calendar.
type Schedule struct {
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Timezone    string    `json:"timezone,omitempty"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color,omitempty"`
	Events      []Event   `json:"events"`
	Created     time.Time `json:"created"`
	LastUpdated time.Time `json:"last_updated"`
}

// Event is a single entry in a Schedule. IDs are unique within the schedule.
type Event struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time,omitempty"`
	Location        string    `json:"location,omitempty"`
	Description     string    `json:"description,omitempty"`
	EventType       string    `json:"event_type,omitempty"`
	IsAllDay        bool      `json:"is_all_day"`
	ReminderMinutes int       `json:"reminder_minutes,omitempty"`
	AddedAt         time.Time `json:"added_at"`
}

// MemoryCategory is a named per-user bucket of key/value memories.
type MemoryCategory struct {
	UserID      string       `json:"user_id"`
	Name        string       `json:"name"`
	Type        string       `json:"type"`
	Description string       `json:"description,omitempty"`
	Color       string       `json:"color,omitempty"`
	Icon        string       `json:"icon,omitempty"`
	Items       []MemoryItem `json:"items"`
	Created     time.Time    `json:"created"`
	LastUpdated time.Time    `json:"last_updated"`
}

// MemoryItem is a single stored memory. IDs are unique within the category.
type MemoryItem struct {
	ID         int64     `json:"id"`
	Key        string    `json:"key"`
	Value      string    `json:"value"`
	MemoryType string    `json:"memory_type,omitempty"`
	Importance string    `json:"importance,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	ExpiresAt  string    `json:"expires_at,omitempty"`
	Private    bool      `json:"private"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListOpts carries optional fields for list creation.
type ListOpts struct {
	Description string
	Color       string
	Icon        string
}

// ItemOpts carries optional fields for list item creation.
type ItemOpts struct {
	Priority string
	DueDate  string
	Notes    string
	Quantity int
}

// ScheduleOpts carries optional fields for schedule creation.
type ScheduleOpts struct {
	Timezone    string
	Description string
	Color       string
}

// EventOpts carries optional fields for event creation.
type EventOpts struct {
	EndTime         string
	Location        string
	Description     string
	EventType       string
	IsAllDay        bool
	ReminderMinutes int
}

// EventUpdates carries partial updates for an existing event.
// Nil fields are left unchanged.
type EventUpdates struct {
	Title           *string
	StartTime       *string
	EndTime         *string
	Location        *string
	Description     *string
	IsAllDay        *bool
	ReminderMinutes *int
}

// CategoryOpts carries optional fields for memory category creation.
type CategoryOpts struct {
	Description string
	Color       string
	Icon        string
}

// MemoryOpts carries optional fields for memory item creation.
type MemoryOpts struct {
	Type       string
	Importance string
	Tags       []string
	ExpiresAt  string
	Private    bool
}

// MemoryUpdates carries partial updates for an existing memory item.
// Nil fields are left unchanged.
type MemoryUpdates struct {
	Key        *string
	Value      *string
	Importance *string
	Tags       *[]string
}

// Repository is the persistence collaborator the engine dispatches against.
// Implementations are the single writer for all three domains; the engine
// never mutates entities directly. Missing-entity conditions are reported
// via the typed sentinel errors in this package.
type Repository interface {
	CreateList(ctx context.Context, userID, name, listType string, opts ListOpts) (*List, error)
	AddListItem(ctx context.Context, userID, listName, text string, opts ItemOpts) (*ListItem, error)
	SetListItemStatus(ctx context.Context, userID, listName string, itemID int64, completed bool) error
	EditListItemText(ctx context.Context, userID, listName string, itemID int64, text string) error
	DeleteListItem(ctx context.Context, userID, listName string, itemID int64) error
	DeleteList(ctx context.Context, userID, name string) (deletedItems int, err error)
	ListAll(ctx context.Context, userID string) ([]*List, error)

	CreateSchedule(ctx context.Context, userID, name, schedType string, opts ScheduleOpts) (*Schedule, error)
	AddEvent(ctx context.Context, userID, scheduleName, title, startTime string, opts EventOpts) (*Event, error)
	EditEvent(ctx context.Context, userID, scheduleName string, eventID int64, updates EventUpdates) (*Event, error)
	DeleteEvent(ctx context.Context, userID, scheduleName string, eventID int64) (*Event, error)
	DeleteSchedule(ctx context.Context, userID, name string) (deletedEvents int, err error)
	ScheduleAll(ctx context.Context, userID string) ([]*Schedule, error)

	CreateMemoryCategory(ctx context.Context, userID, name, catType string, opts CategoryOpts) (*MemoryCategory, error)
	AddMemoryItem(ctx context.Context, userID, category, key, value string, opts MemoryOpts) (*MemoryItem, error)
	EditMemoryItem(ctx context.Context, userID, category string, itemID int64, updates MemoryUpdates) error
	DeleteMemoryItem(ctx context.Context, userID, category string, itemID int64) error
	DeleteMemoryCategory(ctx context.Context, userID, name string) error
	MemoryAll(ctx context.Context, userID string) ([]*MemoryCategory, error)
}
