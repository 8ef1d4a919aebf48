package engine

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// fakeRepo is an in-memory Repository that preserves insertion order and
// returns the package sentinel errors, mirroring the contract of the real
// store.
type fakeRepo struct {
	lists      []*List
	schedules  []*Schedule
	categories []*MemoryCategory

	addItemCalls int
	failAddItem  error
}

func (r *fakeRepo) findList(name string) *List {
	for _, l := range r.lists {
		if l.Name == name {
			return l
		}
	}
	return nil
}

func (r *fakeRepo) findSchedule(name string) *Schedule {
	for _, s := range r.schedules {
		if s.Name == name {
			return s
		}
	}
	return nil
}

func (r *fakeRepo) findCategory(name string) *MemoryCategory {
	for _, c := range r.categories {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (r *fakeRepo) CreateList(_ context.Context, userID, name, listType string, opts ListOpts) (*List, error) {
	if r.findList(name) != nil {
		return nil, fmt.Errorf("list %q already exists", name)
	}
	l := &List{UserID: userID, Name: name, Type: listType, Description: opts.Description, Created: time.Now()}
	r.lists = append(r.lists, l)
	return l, nil
}

func (r *fakeRepo) AddListItem(_ context.Context, _, listName, text string, opts ItemOpts) (*ListItem, error) {
	l := r.findList(listName)
	if l == nil {
		return nil, ErrListNotFound
	}
	item := ListItem{ID: int64(len(l.Items) + 1), Text: text, Priority: opts.Priority, DueDate: opts.DueDate, AddedAt: time.Now()}
	l.Items = append(l.Items, item)
	l.LastUpdated = time.Now()
	return &l.Items[len(l.Items)-1], nil
}

func (r *fakeRepo) SetListItemStatus(_ context.Context, _, listName string, itemID int64, completed bool) error {
	l := r.findList(listName)
	if l == nil {
		return ErrListNotFound
	}
	for i := range l.Items {
		if l.Items[i].ID == itemID {
			l.Items[i].Completed = completed
			return nil
		}
	}
	return ErrItemNotFound
}

func (r *fakeRepo) EditListItemText(_ context.Context, _, listName string, itemID int64, text string) error {
	l := r.findList(listName)
	if l == nil {
		return ErrListNotFound
	}
	for i := range l.Items {
		if l.Items[i].ID == itemID {
			l.Items[i].Text = text
			return nil
		}
	}
	return ErrItemNotFound
}

func (r *fakeRepo) DeleteListItem(_ context.Context, _, listName string, itemID int64) error {
	l := r.findList(listName)
	if l == nil {
		return ErrListNotFound
	}
	for i := range l.Items {
		if l.Items[i].ID == itemID {
			l.Items = append(l.Items[:i], l.Items[i+1:]...)
			return nil
		}
	}
	return ErrItemNotFound
}

func (r *fakeRepo) DeleteList(_ context.Context, _, name string) (int, error) {
	for i, l := range r.lists {
		if l.Name == name {
			n := len(l.Items)
			r.lists = append(r.lists[:i], r.lists[i+1:]...)
			return n, nil
		}
	}
	return 0, ErrListNotFound
}

func (r *fakeRepo) ListAll(_ context.Context, _ string) ([]*List, error) {
	return r.lists, nil
}

func (r *fakeRepo) CreateSchedule(_ context.Context, userID, name, schedType string, opts ScheduleOpts) (*Schedule, error) {
	if r.findSchedule(name) != nil {
		return nil, fmt.Errorf("schedule %q already exists", name)
	}
	s := &Schedule{UserID: userID, Name: name, Type: schedType, Timezone: opts.Timezone, Created: time.Now()}
	r.schedules = append(r.schedules, s)
	return s, nil
}

func (r *fakeRepo) AddEvent(_ context.Context, _, scheduleName, title, startTime string, opts EventOpts) (*Event, error) {
	s := r.findSchedule(scheduleName)
	if s == nil {
		return nil, ErrScheduleNotFound
	}
	ev := Event{ID: int64(len(s.Events) + 1), Title: title, StartTime: startTime, EndTime: opts.EndTime, Location: opts.Location, AddedAt: time.Now()}
	s.Events = append(s.Events, ev)
	s.LastUpdated = time.Now()
	return &s.Events[len(s.Events)-1], nil
}

func (r *fakeRepo) EditEvent(_ context.Context, _, scheduleName string, eventID int64, updates EventUpdates) (*Event, error) {
	s := r.findSchedule(scheduleName)
	if s == nil {
		return nil, ErrScheduleNotFound
	}
	for i := range s.Events {
		if s.Events[i].ID == eventID {
			if updates.Title != nil {
				s.Events[i].Title = *updates.Title
			}
			if updates.StartTime != nil {
				s.Events[i].StartTime = *updates.StartTime
			}
			if updates.Location != nil {
				s.Events[i].Location = *updates.Location
			}
			return &s.Events[i], nil
		}
	}
	return nil, ErrEventNotFound
}

func (r *fakeRepo) DeleteEvent(_ context.Context, _, scheduleName string, eventID int64) (*Event, error) {
	s := r.findSchedule(scheduleName)
	if s == nil {
		return nil, ErrScheduleNotFound
	}
	for i := range s.Events {
		if s.Events[i].ID == eventID {
			ev := s.Events[i]
			s.Events = append(s.Events[:i], s.Events[i+1:]...)
			return &ev, nil
		}
	}
	return nil, ErrEventNotFound
}

func (r *fakeRepo) DeleteSchedule(_ context.Context, _, name string) (int, error) {
	for i, s := range r.schedules {
		if s.Name == name {
			n := len(s.Events)
			r.schedules = append(r.schedules[:i], r.schedules[i+1:]...)
			return n, nil
		}
	}
	return 0, ErrScheduleNotFound
}

func (r *fakeRepo) ScheduleAll(_ context.Context, _ string) ([]*Schedule, error) {
	return r.schedules, nil
}

func (r *fakeRepo) CreateMemoryCategory(_ context.Context, userID, name, catType string, opts CategoryOpts) (*MemoryCategory, error) {
	if r.findCategory(name) != nil {
		return nil, fmt.Errorf("memory category %q already exists", name)
	}
	c := &MemoryCategory{UserID: userID, Name: name, Type: catType, Description: opts.Description, Created: time.Now()}
	r.categories = append(r.categories, c)
	return c, nil
}

func (r *fakeRepo) AddMemoryItem(_ context.Context, _, category, key, value string, opts MemoryOpts) (*MemoryItem, error) {
	r.addItemCalls++
	if r.failAddItem != nil {
		return nil, r.failAddItem
	}
	c := r.findCategory(category)
	if c == nil {
		return nil, ErrCategoryNotFound
	}
	item := MemoryItem{ID: int64(len(c.Items) + 1), Key: key, Value: value, MemoryType: opts.Type, Tags: opts.Tags, CreatedAt: time.Now()}
	c.Items = append(c.Items, item)
	c.LastUpdated = time.Now()
	return &c.Items[len(c.Items)-1], nil
}

func (r *fakeRepo) EditMemoryItem(_ context.Context, _, category string, itemID int64, updates MemoryUpdates) error {
	c := r.findCategory(category)
	if c == nil {
		return ErrCategoryNotFound
	}
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			if updates.Key != nil {
				c.Items[i].Key = *updates.Key
			}
			if updates.Value != nil {
				c.Items[i].Value = *updates.Value
			}
			return nil
		}
	}
	return ErrItemNotFound
}

func (r *fakeRepo) DeleteMemoryItem(_ context.Context, _, category string, itemID int64) error {
	c := r.findCategory(category)
	if c == nil {
		return ErrCategoryNotFound
	}
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return nil
		}
	}
	return ErrItemNotFound
}

func (r *fakeRepo) DeleteMemoryCategory(_ context.Context, _, name string) error {
	for i, c := range r.categories {
		if c.Name == name {
			r.categories = append(r.categories[:i], r.categories[i+1:]...)
			return nil
		}
	}
	return ErrCategoryNotFound
}

func (r *fakeRepo) MemoryAll(_ context.Context, _ string) ([]*MemoryCategory, error) {
	return r.categories, nil
}

func dispatchJSON(t *testing.T, d *Dispatcher, raw string) BatchResult {
	t.Helper()
	_, actions, err := ParseActions(raw)
	if err != nil {
		t.Fatalf("parse actions: %v", err)
	}
	return d.Dispatch(context.Background(), "u1", actions)
}

func TestDispatchCreateThenAddSameBatch(t *testing.T) {
	repo := &fakeRepo{}
	d := NewDispatcher(repo, nil)

	batch := dispatchJSON(t, d, `{"response":"","actions":[
		{"type":"create_list","name":"Trip"},
		{"type":"add_to_list","listName":"Trip","items":["passport"]}
	]}`)

	if batch.Succeeded != 2 || batch.Failed != 0 {
		t.Fatalf("batch = %d ok / %d failed: %+v", batch.Succeeded, batch.Failed, batch.Results)
	}
	l := repo.findList("Trip")
	if l == nil || len(l.Items) != 1 || l.Items[0].Text != "passport" {
		t.Fatalf("list state = %+v; want one item passport", l)
	}
}

func TestDispatchFailureDoesNotAbortBatch(t *testing.T) {
	repo := &fakeRepo{}
	d := NewDispatcher(repo, nil)

	batch := dispatchJSON(t, d, `{"response":"","actions":[
		{"type":"update_list","name":"Missing","itemId":1,"operation":"complete"},
		{"type":"create_list","name":"After"}
	]}`)

	if batch.Failed != 1 || batch.Succeeded != 1 {
		t.Fatalf("batch = %d ok / %d failed: %+v", batch.Succeeded, batch.Failed, batch.Results)
	}
	if batch.Results[0].Success || batch.Results[0].Error == "" {
		t.Fatalf("first result = %+v; want failure with error", batch.Results[0])
	}
	if repo.findList("After") == nil {
		t.Fatal("second action did not run after first failed")
	}
}

func TestDispatchValidationError(t *testing.T) {
	d := NewDispatcher(&fakeRepo{}, nil)
	batch := dispatchJSON(t, d, `{"response":"","actions":[{"type":"create_list"}]}`)
	if batch.Failed != 1 {
		t.Fatalf("batch = %+v; want validation failure", batch)
	}
	if batch.Results[0].Error != "list name is required" {
		t.Fatalf("error = %q", batch.Results[0].Error)
	}
}

func TestDispatchAddToListFuzzyName(t *testing.T) {
	repo := &fakeRepo{}
	d := NewDispatcher(repo, nil)
	dispatchJSON(t, d, `{"response":"","actions":[{"type":"create_list","name":"Shopping List"}]}`)

	batch := dispatchJSON(t, d, `{"response":"","actions":[{"type":"add_to_list","name":"shopping","items":["milk"]}]}`)
	if batch.Failed != 0 {
		t.Fatalf("batch = %+v", batch)
	}
	if l := repo.findList("Shopping List"); l == nil || len(l.Items) != 1 {
		t.Fatalf("item went to the wrong list: %+v", repo.lists)
	}
	if len(repo.lists) != 1 {
		t.Fatalf("fuzzy add created a duplicate list: %+v", repo.lists)
	}
}

func TestDispatchAddToListCreatesWhenUnresolved(t *testing.T) {
	repo := &fakeRepo{}
	d := NewDispatcher(repo, nil)
	batch := dispatchJSON(t, d, `{"response":"","actions":[{"type":"add_to_list","name":"Errands","items":["post office"]}]}`)
	if batch.Failed != 0 {
		t.Fatalf("batch = %+v", batch)
	}
	if l := repo.findList("Errands"); l == nil || len(l.Items) != 1 {
		t.Fatalf("list not created on demand: %+v", repo.lists)
	}
}

func TestDispatchUpdateListNoImplicitCreation(t *testing.T) {
	repo := &fakeRepo{}
	d := NewDispatcher(repo, nil)
	batch := dispatchJSON(t, d, `{"response":"","actions":[{"type":"update_list","name":"Ghost","itemId":1,"operation":"remove"}]}`)
	if batch.Failed != 1 {
		t.Fatalf("batch = %+v; want resolution miss failure", batch)
	}
	if len(repo.lists) != 0 {
		t.Fatalf("resolution miss created a list: %+v", repo.lists)
	}
}

func TestDispatchUpdateListOperations(t *testing.T) {
	repo := &fakeRepo{}
	d := NewDispatcher(repo, nil)
	dispatchJSON(t, d, `{"response":"","actions":[
		{"type":"create_list","name":"Chores"},
		{"type":"add_to_list","name":"Chores","items":["vacuum","dishes"]}
	]}`)

	batch := dispatchJSON(t, d, `{"response":"","actions":[
		{"type":"update_list","name":"Chores","itemId":1,"operation":"complete"},
		{"type":"update_list","name":"Chores","itemId":2,"operation":"edit","text":"wash dishes"},
		{"type":"update_list","name":"Chores","itemId":1,"operation":"remove"}
	]}`)
	if batch.Failed != 0 {
		t.Fatalf("batch = %+v", batch)
	}
	l := repo.findList("Chores")
	if len(l.Items) != 1 || l.Items[0].Text != "wash dishes" {
		t.Fatalf("list state = %+v", l.Items)
	}
}

func TestDispatchStoreMemoryRetryWithCreate(t *testing.T) {
	repo := &fakeRepo{}
	d := NewDispatcher(repo, nil)

	batch := dispatchJSON(t, d, `{"response":"","actions":[{"type":"store_memory","category":"Recipes","key":"carbonara","value":"no cream"}]}`)
	if batch.Failed != 0 {
		t.Fatalf("batch = %+v", batch)
	}
	if repo.addItemCalls != 2 {
		t.Fatalf("addItemCalls = %d; want first miss then one retry", repo.addItemCalls)
	}
	c := repo.findCategory("Recipes")
	if c == nil || c.Type != "general" {
		t.Fatalf("category = %+v; want created with type general", c)
	}
	if len(c.Items) != 1 || c.Items[0].Key != "carbonara" {
		t.Fatalf("items = %+v", c.Items)
	}
}

func TestDispatchStoreMemoryOtherErrorNoRetry(t *testing.T) {
	repo := &fakeRepo{failAddItem: fmt.Errorf("connection reset")}
	d := NewDispatcher(repo, nil)
	batch := dispatchJSON(t, d, `{"response":"","actions":[{"type":"store_memory","category":"Recipes","value":"x"}]}`)
	if batch.Failed != 1 {
		t.Fatalf("batch = %+v", batch)
	}
	if repo.addItemCalls != 1 {
		t.Fatalf("addItemCalls = %d; only typed category misses may retry", repo.addItemCalls)
	}
}

func TestDispatchStoreMemoryMissingValue(t *testing.T) {
	repo := &fakeRepo{}
	d := NewDispatcher(repo, nil)
	batch := dispatchJSON(t, d, `{"response":"","actions":[{"type":"store_memory","category":"Recipes","key":"k"}]}`)
	if batch.Failed != 1 || repo.addItemCalls != 0 {
		t.Fatalf("batch = %+v calls = %d; want validation before any repo call", batch, repo.addItemCalls)
	}
}

func TestDispatchAddEventLazySchedule(t *testing.T) {
	repo := &fakeRepo{}
	d := NewDispatcher(repo, nil)
	batch := dispatchJSON(t, d, `{"response":"","actions":[{"type":"add_event","schedule":"Work","title":"Standup","startTime":"2025-07-18T09:00:00Z"}]}`)
	if batch.Failed != 0 {
		t.Fatalf("batch = %+v", batch)
	}
	s := repo.findSchedule("Work")
	if s == nil || len(s.Events) != 1 || s.Events[0].Title != "Standup" {
		t.Fatalf("schedule state = %+v", repo.schedules)
	}
}

func TestDispatchEditEventPartialUpdate(t *testing.T) {
	repo := &fakeRepo{}
	d := NewDispatcher(repo, nil)
	dispatchJSON(t, d, `{"response":"","actions":[{"type":"add_event","schedule":"Work","title":"Standup","startTime":"2025-07-18T09:00:00Z"}]}`)

	batch := dispatchJSON(t, d, `{"response":"","actions":[{"type":"edit_event","schedule":"Work","eventId":1,"location":"Room 4"}]}`)
	if batch.Failed != 0 {
		t.Fatalf("batch = %+v", batch)
	}
	ev := repo.findSchedule("Work").Events[0]
	if ev.Location != "Room 4" || ev.Title != "Standup" {
		t.Fatalf("event = %+v; want location updated, title untouched", ev)
	}
}

func TestDispatchUnknownActionType(t *testing.T) {
	d := NewDispatcher(&fakeRepo{}, nil)
	batch := dispatchJSON(t, d, `{"response":"","actions":[{"type":"launch_missiles"}]}`)
	if batch.Failed != 1 {
		t.Fatalf("batch = %+v", batch)
	}
}

func TestDispatchDeleteListReportsCount(t *testing.T) {
	repo := &fakeRepo{}
	d := NewDispatcher(repo, nil)
	dispatchJSON(t, d, `{"response":"","actions":[
		{"type":"create_list","name":"Trip"},
		{"type":"add_to_list","name":"Trip","items":["a","b","c"]}
	]}`)

	batch := dispatchJSON(t, d, `{"response":"","actions":[{"type":"delete_list","name":"trip"}]}`)
	if batch.Failed != 0 {
		t.Fatalf("batch = %+v", batch)
	}
	data, ok := batch.Results[0].Data.(map[string]any)
	if !ok || data["deleted_items"] != 3 {
		t.Fatalf("data = %+v; want deleted_items 3", batch.Results[0].Data)
	}
}
