package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nidhogg/codsworth/internal/timeparse"
)

// The field extractor normalizes an arbitrarily-shaped action payload into a
// canonical per-domain record. Each field is probed along a fixed, ordered
// list of alias paths (top-level legacy keys first, then the nested data
// object, then synonyms); the first non-null, non-empty value wins. The
// extractor never fails: absent required fields surface as zero values and
// are validated by the dispatcher. The bare top-level "type" key is the
// union tag and is never probed; only "data.type" participates in aliases.

// ListFields is the canonical record for list actions.
type ListFields struct {
	Name        string
	Type        string
	Description string
	Color       string
	Icon        string
	Items       []string
	ItemID      int64
	HasItemID   bool
	Operation   string
	Completed   bool
	NewText     string
}

// ScheduleFields is the canonical record for schedule actions.
type ScheduleFields struct {
	Name            string
	Type            string
	Timezone        string
	EventTitle      string
	StartTime       string
	EndTime         string
	Location        string
	Description     string
	EventType       string
	IsAllDay        bool
	ReminderMinutes int
	EventID         int64
	HasEventID      bool
}

// MemoryFields is the canonical record for memory actions.
type MemoryFields struct {
	Category     string
	CategoryType string
	Key          string
	Value        string
	HasValue     bool
	MemoryType   string
	Importance   string
	Tags         []string
	ItemID       int64
	HasItemID    bool
}

// ExtractList builds the canonical list record for an action. Item due
// dates are run through the date/time resolver relative to now.
func ExtractList(a Action, now time.Time) ListFields {
	f := ListFields{
		Name: probeString(a,
			"listName", "list_name", "name",
			"data.listName", "data.list_name", "data.name",
			"data.targetList", "data.target"),
		Type: probeString(a,
			"listType", "list_type",
			"data.listType", "data.list_type", "data.type"),
		Description: probeString(a, "description", "data.description"),
		Color:       probeString(a, "color", "data.color"),
		Icon:        probeString(a, "icon", "data.icon"),
		Items:       extractItems(a),
		Operation:   probeString(a, "operation", "action", "data.operation", "data.action"),
		NewText:     probeString(a, "text", "newText", "data.text", "data.new_text", "data.newText"),
	}
	if f.Type == "" {
		f.Type = "general"
	}
	f.ItemID, f.HasItemID = probeInt(a, "itemId", "item_id", "data.itemId", "data.item_id")
	if v, ok := probeBool(a, "completed", "data.completed"); ok {
		f.Completed = v
	}
	return f
}

// ExtractSchedule builds the canonical schedule record for an action,
// resolving natural-language start and end times relative to now.
func ExtractSchedule(a Action, now time.Time) ScheduleFields {
	f := ScheduleFields{
		Name: probeString(a,
			"scheduleName", "schedule_name", "name", "schedule", "target",
			"data.scheduleName", "data.schedule_name", "data.name",
			"data.schedule", "data.target"),
		Type: probeString(a,
			"scheduleType", "schedule_type",
			"data.scheduleType", "data.schedule_type", "data.type"),
		Timezone: probeString(a, "timezone", "data.timezone"),
		EventTitle: probeString(a,
			"eventTitle", "event_title", "title", "event", "eventName",
			"data.eventTitle", "data.event_title", "data.title",
			"data.event", "data.eventName"),
		Location:    probeString(a, "location", "data.location"),
		Description: probeString(a, "description", "data.description"),
		EventType:   probeString(a, "eventType", "event_type", "data.eventType", "data.event_type"),
	}
	if f.Type == "" {
		f.Type = "personal"
	}
	f.StartTime = resolveTime(probeString(a,
		"startTime", "start_time", "time", "when", "datetime",
		"data.startTime", "data.start_time", "data.time",
		"data.when", "data.datetime"), now)
	f.EndTime = resolveTime(probeString(a,
		"endTime", "end_time", "data.endTime", "data.end_time"), now)
	if v, ok := probeBool(a, "isAllDay", "is_all_day", "data.isAllDay", "data.is_all_day"); ok {
		f.IsAllDay = v
	}
	if v, ok := probeInt(a, "reminderMinutes", "reminder_minutes", "data.reminderMinutes", "data.reminder_minutes"); ok {
		f.ReminderMinutes = int(v)
	}
	f.EventID, f.HasEventID = probeInt(a, "eventId", "event_id", "data.eventId", "data.event_id")
	return f
}

// ExtractMemory builds the canonical memory record for an action. A missing
// key defaults to a timestamp-based placeholder; a missing value has no
// default because store_memory treats absence as a validation error.
func ExtractMemory(a Action, now time.Time) MemoryFields {
	f := MemoryFields{
		Category:     probeString(a, "category", "categoryName", "data.category", "data.categoryName"),
		CategoryType: probeString(a, "categoryType", "category_type", "data.categoryType", "data.category_type"),
		Key:          probeString(a, "memoryKey", "key", "data.memoryKey", "data.key", "data.name"),
		MemoryType:   probeString(a, "memoryType", "memory_type", "data.memoryType", "data.memory_type"),
		Importance:   probeString(a, "importance", "data.importance"),
		Tags:         probeStrings(a, "tags", "data.tags"),
	}
	if v := probe(a, "memoryValue", "value", "data.memoryValue", "data.value", "data.content"); v != nil {
		f.Value = stringify(v)
		f.HasValue = true
	}
	if f.Category == "" {
		f.Category = "General"
	}
	if f.CategoryType == "" {
		f.CategoryType = "general"
	}
	if f.Key == "" {
		f.Key = fmt.Sprintf("Memory_%d", now.UnixMilli())
	}
	if f.MemoryType == "" {
		f.MemoryType = "general"
	}
	f.ItemID, f.HasItemID = probeInt(a, "itemId", "item_id", "data.itemId", "data.item_id")
	return f
}

// extractItems collects list items: an items array first, then a single
// item, then empty. String items are used verbatim; object items project
// text then name, else their literal JSON form.
func extractItems(a Action) []string {
	if v := probe(a, "items", "data.items"); v != nil {
		if arr, ok := v.([]any); ok {
			items := make([]string, 0, len(arr))
			for _, it := range arr {
				items = append(items, normalizeItem(it))
			}
			return items
		}
		return []string{normalizeItem(v)}
	}
	if v := probe(a, "item", "data.item"); v != nil {
		return []string{normalizeItem(v)}
	}
	return nil
}

func normalizeItem(v any) string {
	switch it := v.(type) {
	case string:
		return it
	case map[string]any:
		if s, ok := it["text"].(string); ok && s != "" {
			return s
		}
		if s, ok := it["name"].(string); ok && s != "" {
			return s
		}
		b, _ := json.Marshal(it)
		return string(b)
	default:
		return stringify(v)
	}
}

func resolveTime(raw string, now time.Time) string {
	if raw == "" {
		return ""
	}
	if iso, ok := timeparse.Parse(raw, timeparse.Options{Reference: &now}); ok {
		return iso
	}
	return raw
}

// probe returns the first value along the alias paths that is neither null
// nor an empty string.
func probe(a Action, paths ...string) any {
	for _, p := range paths {
		v := lookup(a, p)
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		return v
	}
	return nil
}

func lookup(a Action, path string) any {
	if rest, ok := strings.CutPrefix(path, "data."); ok {
		d := a.Data()
		if d == nil {
			return nil
		}
		return d[rest]
	}
	return a.Fields[path]
}

func probeString(a Action, paths ...string) string {
	v := probe(a, paths...)
	if v == nil {
		return ""
	}
	return stringify(v)
}

func probeStrings(a Action, paths ...string) []string {
	v := probe(a, paths...)
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		out = append(out, stringify(e))
	}
	return out
}

func probeInt(a Action, paths ...string) (int64, bool) {
	switch v := probe(a, paths...).(type) {
	case float64:
		return int64(v), true
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

func probeBool(a Action, paths ...string) (bool, bool) {
	switch v := probe(a, paths...).(type) {
	case bool:
		return v, true
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b, true
		}
	}
	return false, false
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}
