package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Dispatcher executes action batches against the repository. Actions are
// processed strictly in input order, one at a time: a later action may
// depend on an entity created by an earlier one in the same batch, so the
// loop must never be parallelized.
type Dispatcher struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewDispatcher wires a dispatcher to its persistence collaborator.
func NewDispatcher(repo Repository, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{repo: repo, logger: logger, now: time.Now}
}

// Dispatch runs every action in the batch and reports per-action results.
// A failing action never aborts the batch.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, actions []Action) BatchResult {
	batch := BatchResult{Results: make([]ActionResult, 0, len(actions))}
	for _, a := range actions {
		data, err := d.dispatchOne(ctx, userID, a)
		res := ActionResult{Type: a.Type, Success: err == nil, Data: data}
		if err != nil {
			res.Error = err.Error()
			batch.Failed++
			d.logger.Warn("action failed",
				zap.String("user_id", userID),
				zap.String("action", a.Type),
				zap.Error(err))
		} else {
			batch.Succeeded++
		}
		batch.Results = append(batch.Results, res)
	}
	return batch
}

func (d *Dispatcher) dispatchOne(ctx context.Context, userID string, a Action) (any, error) {
	switch a.Type {
	case "create_list":
		return d.createList(ctx, userID, a)
	case "add_to_list":
		return d.addToList(ctx, userID, a)
	case "update_list":
		return d.updateList(ctx, userID, a)
	case "delete_list":
		return d.deleteList(ctx, userID, a)
	case "create_schedule":
		return d.createSchedule(ctx, userID, a)
	case "add_event":
		return d.addEvent(ctx, userID, a)
	case "edit_event":
		return d.editEvent(ctx, userID, a)
	case "delete_event":
		return d.deleteEvent(ctx, userID, a)
	case "delete_schedule":
		return d.deleteSchedule(ctx, userID, a)
	case "create_memory":
		return d.createMemory(ctx, userID, a)
	case "store_memory":
		return d.storeMemory(ctx, userID, a)
	case "update_memory":
		return d.updateMemory(ctx, userID, a)
	case "delete_memory_item":
		return d.deleteMemoryItem(ctx, userID, a)
	case "delete_memory":
		return d.deleteMemory(ctx, userID, a)
	default:
		return nil, fmt.Errorf("unknown action type %q", a.Type)
	}
}

// Snapshots are rebuilt from the repository before every resolution so an
// action sees entities created earlier in the same batch.

func (d *Dispatcher) listSnapshot(ctx context.Context, userID string) (*Snapshot, error) {
	lists, err := d.repo.ListAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load lists: %w", err)
	}
	snap := NewSnapshot()
	for _, l := range lists {
		snap.Add(EntityRef{Name: l.Name, Created: l.Created, LastUpdated: l.LastUpdated})
	}
	return snap, nil
}

func (d *Dispatcher) scheduleSnapshot(ctx context.Context, userID string) (*Snapshot, error) {
	schedules, err := d.repo.ScheduleAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load schedules: %w", err)
	}
	snap := NewSnapshot()
	for _, s := range schedules {
		snap.Add(EntityRef{Name: s.Name, Created: s.Created, LastUpdated: s.LastUpdated})
	}
	return snap, nil
}

func (d *Dispatcher) memorySnapshot(ctx context.Context, userID string) (*Snapshot, error) {
	categories, err := d.repo.MemoryAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load memory categories: %w", err)
	}
	snap := NewSnapshot()
	for _, c := range categories {
		snap.Add(EntityRef{Name: c.Name, Created: c.Created, LastUpdated: c.LastUpdated})
	}
	return snap, nil
}

func (d *Dispatcher) createList(ctx context.Context, userID string, a Action) (any, error) {
	f := ExtractList(a, d.now())
	if f.Name == "" {
		return nil, errors.New("list name is required")
	}
	list, err := d.repo.CreateList(ctx, userID, f.Name, f.Type, ListOpts{
		Description: f.Description,
		Color:       f.Color,
		Icon:        f.Icon,
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (d *Dispatcher) addToList(ctx context.Context, userID string, a Action) (any, error) {
	f := ExtractList(a, d.now())
	if f.Name == "" {
		return nil, errors.New("list name is required")
	}
	if len(f.Items) == 0 {
		return nil, errors.New("no items to add")
	}

	snap, err := d.listSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	name, ok := Resolve(f.Name, snap, DomainList)
	if !ok {
		// Adding to a list nobody created yet makes a new one under
		// the requested name.
		if _, err := d.repo.CreateList(ctx, userID, f.Name, f.Type, ListOpts{}); err != nil {
			return nil, fmt.Errorf("create list %q: %w", f.Name, err)
		}
		name = f.Name
	}

	opts := ItemOpts{
		Priority: probeString(a, "priority", "data.priority"),
		Notes:    probeString(a, "notes", "data.notes"),
		DueDate:  resolveTime(probeString(a, "dueDate", "due_date", "data.dueDate", "data.due_date"), d.now()),
	}
	if q, ok := probeInt(a, "quantity", "data.quantity"); ok {
		opts.Quantity = int(q)
	}

	added := make([]*ListItem, 0, len(f.Items))
	for _, text := range f.Items {
		item, err := d.repo.AddListItem(ctx, userID, name, text, opts)
		if err != nil {
			return nil, fmt.Errorf("add %q to list %q: %w", text, name, err)
		}
		added = append(added, item)
	}
	return map[string]any{"list": name, "items": added}, nil
}

func (d *Dispatcher) updateList(ctx context.Context, userID string, a Action) (any, error) {
	f := ExtractList(a, d.now())
	if f.Name == "" {
		return nil, errors.New("list name is required")
	}
	if !f.HasItemID {
		return nil, errors.New("item id is required")
	}

	snap, err := d.listSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	name, ok := Resolve(f.Name, snap, DomainList)
	if !ok {
		return nil, fmt.Errorf("list %q: %w", f.Name, ErrListNotFound)
	}

	switch f.Operation {
	case "complete", "check", "done":
		err = d.repo.SetListItemStatus(ctx, userID, name, f.ItemID, true)
	case "uncomplete", "uncheck":
		err = d.repo.SetListItemStatus(ctx, userID, name, f.ItemID, false)
	case "edit", "update":
		if f.NewText == "" {
			return nil, errors.New("new text is required for edit")
		}
		err = d.repo.EditListItemText(ctx, userID, name, f.ItemID, f.NewText)
	case "remove", "delete":
		err = d.repo.DeleteListItem(ctx, userID, name, f.ItemID)
	case "":
		return nil, errors.New("operation is required")
	default:
		return nil, fmt.Errorf("unknown list operation %q", f.Operation)
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"list": name, "item_id": f.ItemID, "operation": f.Operation}, nil
}

func (d *Dispatcher) deleteList(ctx context.Context, userID string, a Action) (any, error) {
	f := ExtractList(a, d.now())
	if f.Name == "" {
		return nil, errors.New("list name is required")
	}
	snap, err := d.listSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	name, ok := Resolve(f.Name, snap, DomainList)
	if !ok {
		return nil, fmt.Errorf("list %q: %w", f.Name, ErrListNotFound)
	}
	deleted, err := d.repo.DeleteList(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	return map[string]any{"list": name, "deleted_items": deleted}, nil
}

func (d *Dispatcher) createSchedule(ctx context.Context, userID string, a Action) (any, error) {
	f := ExtractSchedule(a, d.now())
	if f.Name == "" {
		return nil, errors.New("schedule name is required")
	}
	schedule, err := d.repo.CreateSchedule(ctx, userID, f.Name, f.Type, ScheduleOpts{
		Timezone:    f.Timezone,
		Description: f.Description,
	})
	if err != nil {
		return nil, err
	}
	return schedule, nil
}

func (d *Dispatcher) addEvent(ctx context.Context, userID string, a Action) (any, error) {
	f := ExtractSchedule(a, d.now())
	if f.Name == "" {
		return nil, errors.New("schedule name is required")
	}
	if f.EventTitle == "" {
		return nil, errors.New("event title is required")
	}
	if f.StartTime == "" {
		return nil, errors.New("event start time is required")
	}

	snap, err := d.scheduleSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	name, ok := Resolve(f.Name, snap, DomainSchedule)
	if !ok {
		if _, err := d.repo.CreateSchedule(ctx, userID, f.Name, f.Type, ScheduleOpts{}); err != nil {
			return nil, fmt.Errorf("create schedule %q: %w", f.Name, err)
		}
		name = f.Name
	}

	event, err := d.repo.AddEvent(ctx, userID, name, f.EventTitle, f.StartTime, EventOpts{
		EndTime:         f.EndTime,
		Location:        f.Location,
		Description:     f.Description,
		EventType:       f.EventType,
		IsAllDay:        f.IsAllDay,
		ReminderMinutes: f.ReminderMinutes,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"schedule": name, "event": event}, nil
}

func (d *Dispatcher) editEvent(ctx context.Context, userID string, a Action) (any, error) {
	f := ExtractSchedule(a, d.now())
	if f.Name == "" {
		return nil, errors.New("schedule name is required")
	}
	if !f.HasEventID {
		return nil, errors.New("event id is required")
	}

	snap, err := d.scheduleSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	name, ok := Resolve(f.Name, snap, DomainSchedule)
	if !ok {
		return nil, fmt.Errorf("schedule %q: %w", f.Name, ErrScheduleNotFound)
	}

	updates := EventUpdates{}
	if f.EventTitle != "" {
		updates.Title = &f.EventTitle
	}
	if f.StartTime != "" {
		updates.StartTime = &f.StartTime
	}
	if f.EndTime != "" {
		updates.EndTime = &f.EndTime
	}
	if f.Location != "" {
		updates.Location = &f.Location
	}
	if f.Description != "" {
		updates.Description = &f.Description
	}
	if v, ok := probeBool(a, "isAllDay", "is_all_day", "data.isAllDay", "data.is_all_day"); ok {
		updates.IsAllDay = &v
	}
	if v, ok := probeInt(a, "reminderMinutes", "reminder_minutes", "data.reminderMinutes", "data.reminder_minutes"); ok {
		minutes := int(v)
		updates.ReminderMinutes = &minutes
	}

	event, err := d.repo.EditEvent(ctx, userID, name, f.EventID, updates)
	if err != nil {
		return nil, err
	}
	return map[string]any{"schedule": name, "event": event}, nil
}

func (d *Dispatcher) deleteEvent(ctx context.Context, userID string, a Action) (any, error) {
	f := ExtractSchedule(a, d.now())
	if f.Name == "" {
		return nil, errors.New("schedule name is required")
	}
	if !f.HasEventID {
		return nil, errors.New("event id is required")
	}
	snap, err := d.scheduleSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	name, ok := Resolve(f.Name, snap, DomainSchedule)
	if !ok {
		return nil, fmt.Errorf("schedule %q: %w", f.Name, ErrScheduleNotFound)
	}
	event, err := d.repo.DeleteEvent(ctx, userID, name, f.EventID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"schedule": name, "event": event}, nil
}

func (d *Dispatcher) deleteSchedule(ctx context.Context, userID string, a Action) (any, error) {
	f := ExtractSchedule(a, d.now())
	if f.Name == "" {
		return nil, errors.New("schedule name is required")
	}
	snap, err := d.scheduleSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	name, ok := Resolve(f.Name, snap, DomainSchedule)
	if !ok {
		return nil, fmt.Errorf("schedule %q: %w", f.Name, ErrScheduleNotFound)
	}
	deleted, err := d.repo.DeleteSchedule(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	return map[string]any{"schedule": name, "deleted_events": deleted}, nil
}

func (d *Dispatcher) createMemory(ctx context.Context, userID string, a Action) (any, error) {
	f := ExtractMemory(a, d.now())
	category, err := d.repo.CreateMemoryCategory(ctx, userID, f.Category, f.CategoryType, CategoryOpts{
		Description: probeString(a, "description", "data.description"),
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}

// storeMemory adds a memory item, recovering once from a missing category:
// the category is created with type "general" and the add is retried
// exactly one time. Any other failure, or a second one, is the action's
// failure.
func (d *Dispatcher) storeMemory(ctx context.Context, userID string, a Action) (any, error) {
	f := ExtractMemory(a, d.now())
	if !f.HasValue {
		return nil, errors.New("memory value is required")
	}

	snap, err := d.memorySnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	name := f.Category
	if resolved, ok := Resolve(f.Category, snap, DomainMemory); ok {
		name = resolved
	}

	opts := MemoryOpts{
		Type:       f.MemoryType,
		Importance: f.Importance,
		Tags:       f.Tags,
	}
	item, err := d.repo.AddMemoryItem(ctx, userID, name, f.Key, f.Value, opts)
	if errors.Is(err, ErrCategoryNotFound) {
		if _, cerr := d.repo.CreateMemoryCategory(ctx, userID, name, "general", CategoryOpts{}); cerr != nil {
			return nil, fmt.Errorf("create memory category %q: %w", name, cerr)
		}
		item, err = d.repo.AddMemoryItem(ctx, userID, name, f.Key, f.Value, opts)
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"category": name, "item": item}, nil
}

func (d *Dispatcher) updateMemory(ctx context.Context, userID string, a Action) (any, error) {
	f := ExtractMemory(a, d.now())
	if !f.HasItemID {
		return nil, errors.New("memory item id is required")
	}

	snap, err := d.memorySnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	name, ok := Resolve(f.Category, snap, DomainMemory)
	if !ok {
		return nil, fmt.Errorf("memory category %q: %w", f.Category, ErrCategoryNotFound)
	}

	updates := MemoryUpdates{}
	// Probe the key directly: the extractor substitutes a generated
	// placeholder for an absent key, which must not overwrite anything.
	if key := probeString(a, "memoryKey", "key", "data.memoryKey", "data.key"); key != "" {
		updates.Key = &key
	}
	if f.HasValue {
		updates.Value = &f.Value
	}
	if f.Importance != "" {
		updates.Importance = &f.Importance
	}
	if f.Tags != nil {
		updates.Tags = &f.Tags
	}

	if err := d.repo.EditMemoryItem(ctx, userID, name, f.ItemID, updates); err != nil {
		return nil, err
	}
	return map[string]any{"category": name, "item_id": f.ItemID}, nil
}

func (d *Dispatcher) deleteMemoryItem(ctx context.Context, userID string, a Action) (any, error) {
	f := ExtractMemory(a, d.now())
	if !f.HasItemID {
		return nil, errors.New("memory item id is required")
	}
	snap, err := d.memorySnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	name, ok := Resolve(f.Category, snap, DomainMemory)
	if !ok {
		return nil, fmt.Errorf("memory category %q: %w", f.Category, ErrCategoryNotFound)
	}
	if err := d.repo.DeleteMemoryItem(ctx, userID, name, f.ItemID); err != nil {
		return nil, err
	}
	return map[string]any{"category": name, "item_id": f.ItemID}, nil
}

func (d *Dispatcher) deleteMemory(ctx context.Context, userID string, a Action) (any, error) {
	f := ExtractMemory(a, d.now())
	snap, err := d.memorySnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	name, ok := Resolve(f.Category, snap, DomainMemory)
	if !ok {
		return nil, fmt.Errorf("memory category %q: %w", f.Category, ErrCategoryNotFound)
	}
	if err := d.repo.DeleteMemoryCategory(ctx, userID, name); err != nil {
		return nil, err
	}
	return map[string]any{"category": name}, nil
}
