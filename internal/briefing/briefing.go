package briefing

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/nidhogg/codsworth/internal/engine"
)

// Reader is the read side of the persistence layer the builder fans out to.
type Reader interface {
	ListAll(ctx context.Context, userID string) ([]*engine.List, error)
	ScheduleAll(ctx context.Context, userID string) ([]*engine.Schedule, error)
	MemoryAll(ctx context.Context, userID string) ([]*engine.MemoryCategory, error)
}

// SessionSource supplies the per-user working copies cached for the
// current conversation. A nil source or a cold cache contributes nothing.
type SessionSource interface {
	Lists(ctx context.Context, userID string) ([]*engine.List, error)
	Schedules(ctx context.Context, userID string) ([]*engine.Schedule, error)
	Memory(ctx context.Context, userID string) ([]*engine.MemoryCategory, error)
}

// Builder assembles the entity briefing given to the language model so it
// reuses exact existing names instead of inventing near-duplicates.
type Builder struct {
	reader  Reader
	session SessionSource
	logger  *zap.Logger
}

// NewBuilder wires a context builder. session may be nil.
func NewBuilder(reader Reader, session SessionSource, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{reader: reader, session: session, logger: logger}
}

// Snapshot is the merged view of all three domains for one user.
// Slices keep insertion order: persisted entities first, session-only
// additions after.
type Snapshot struct {
	Lists     []*engine.List
	Schedules []*engine.Schedule
	Memory    []*engine.MemoryCategory
}

// Build fans out the three domain reads concurrently, joins them, and
// merges the session copies over the persisted state. A failed read
// degrades that domain to empty instead of failing the briefing.
func (b *Builder) Build(ctx context.Context, userID string) *Snapshot {
	snap := &Snapshot{}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		lists, err := b.reader.ListAll(ctx, userID)
		if err != nil {
			b.logger.Warn("briefing lists read failed", zap.String("user_id", userID), zap.Error(err))
			return
		}
		snap.Lists = lists
	}()
	go func() {
		defer wg.Done()
		schedules, err := b.reader.ScheduleAll(ctx, userID)
		if err != nil {
			b.logger.Warn("briefing schedules read failed", zap.String("user_id", userID), zap.Error(err))
			return
		}
		snap.Schedules = schedules
	}()
	go func() {
		defer wg.Done()
		categories, err := b.reader.MemoryAll(ctx, userID)
		if err != nil {
			b.logger.Warn("briefing memory read failed", zap.String("user_id", userID), zap.Error(err))
			return
		}
		snap.Memory = categories
	}()
	wg.Wait()

	if b.session != nil {
		b.mergeSession(ctx, userID, snap)
	}
	return snap
}

// mergeSession overlays cached session copies. Session values win on name
// collision; session-only entities append after persisted ones.
func (b *Builder) mergeSession(ctx context.Context, userID string, snap *Snapshot) {
	if lists, err := b.session.Lists(ctx, userID); err != nil {
		b.logger.Warn("session lists read failed", zap.String("user_id", userID), zap.Error(err))
	} else {
		for _, l := range lists {
			snap.Lists = overlay(snap.Lists, l, func(v *engine.List) string { return v.Name })
		}
	}
	if schedules, err := b.session.Schedules(ctx, userID); err != nil {
		b.logger.Warn("session schedules read failed", zap.String("user_id", userID), zap.Error(err))
	} else {
		for _, s := range schedules {
			snap.Schedules = overlay(snap.Schedules, s, func(v *engine.Schedule) string { return v.Name })
		}
	}
	if categories, err := b.session.Memory(ctx, userID); err != nil {
		b.logger.Warn("session memory read failed", zap.String("user_id", userID), zap.Error(err))
	} else {
		for _, c := range categories {
			snap.Memory = overlay(snap.Memory, c, func(v *engine.MemoryCategory) string { return v.Name })
		}
	}
}

func overlay[T any](vals []T, v T, nameOf func(T) string) []T {
	for i := range vals {
		if nameOf(vals[i]) == nameOf(v) {
			vals[i] = v
			return vals
		}
	}
	return append(vals, v)
}

const previewLimit = 3

// Render produces the deterministic text block enumerated in merged-map
// order: exact entity names, item counts, and up to the three most recent
// item previews per entity.
func (s *Snapshot) Render() string {
	var sb strings.Builder
	sb.WriteString("Existing entities. Always reuse these exact names; never invent near-duplicates.\n")

	sb.WriteString("\nLISTS:\n")
	if len(s.Lists) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, l := range s.Lists {
		fmt.Fprintf(&sb, "- %q (%s, %d items)", l.Name, l.Type, len(l.Items))
		if previews := listPreviews(l.Items); len(previews) > 0 {
			fmt.Fprintf(&sb, ": %s", strings.Join(previews, ", "))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\nSCHEDULES:\n")
	if len(s.Schedules) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, sc := range s.Schedules {
		fmt.Fprintf(&sb, "- %q (%s, %d events)", sc.Name, sc.Type, len(sc.Events))
		if previews := eventPreviews(sc.Events); len(previews) > 0 {
			fmt.Fprintf(&sb, ": %s", strings.Join(previews, ", "))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\nMEMORY:\n")
	if len(s.Memory) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, c := range s.Memory {
		fmt.Fprintf(&sb, "- %q (%s, %d items)", c.Name, c.Type, len(c.Items))
		if previews := memoryPreviews(c.Items); len(previews) > 0 {
			fmt.Fprintf(&sb, ": %s", strings.Join(previews, ", "))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func listPreviews(items []engine.ListItem) []string {
	start := len(items) - previewLimit
	if start < 0 {
		start = 0
	}
	out := make([]string, 0, previewLimit)
	for _, it := range items[start:] {
		out = append(out, it.Text)
	}
	return out
}

func eventPreviews(events []engine.Event) []string {
	start := len(events) - previewLimit
	if start < 0 {
		start = 0
	}
	out := make([]string, 0, previewLimit)
	for _, ev := range events[start:] {
		out = append(out, fmt.Sprintf("%s @ %s", ev.Title, ev.StartTime))
	}
	return out
}

func memoryPreviews(items []engine.MemoryItem) []string {
	start := len(items) - previewLimit
	if start < 0 {
		start = 0
	}
	out := make([]string, 0, previewLimit)
	for _, it := range items[start:] {
		out = append(out, it.Key)
	}
	return out
}
