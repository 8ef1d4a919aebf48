package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/nidhogg/codsworth/internal/engine"
	"github.com/nidhogg/codsworth/internal/gateway"
)

type fakeSource struct {
	schedules []*engine.Schedule
}

func (f *fakeSource) Users(_ context.Context) ([]string, error) {
	return []string{"u1"}, nil
}

func (f *fakeSource) ScheduleAll(_ context.Context, _ string) ([]*engine.Schedule, error) {
	return f.schedules, nil
}

type fakeNotifier struct {
	msgs []*gateway.BroadcastMessage
}

func (f *fakeNotifier) Send(_ context.Context, msg *gateway.BroadcastMessage) error {
	f.msgs = append(f.msgs, msg)
	return nil
}

func testScheduler(src Source, n Notifier, at time.Time) *Scheduler {
	s := New(src, n, time.Minute, nil)
	s.now = func() time.Time { return at }
	return s
}

func TestScanNotifiesInsideWindow(t *testing.T) {
	now := time.Date(2025, 7, 17, 8, 50, 0, 0, time.UTC)
	src := &fakeSource{schedules: []*engine.Schedule{{
		Name: "Work",
		Events: []engine.Event{{
			ID:              1,
			Title:           "Standup",
			StartTime:       "2025-07-17T09:00:00Z",
			ReminderMinutes: 15,
		}},
	}}}
	n := &fakeNotifier{}

	testScheduler(src, n, now).Scan(context.Background())
	if len(n.msgs) != 1 {
		t.Fatalf("msgs = %d, want 1", len(n.msgs))
	}
	if n.msgs[0].Type != gateway.BroadcastReminder {
		t.Fatalf("type = %q", n.msgs[0].Type)
	}
}

func TestScanFiresOncePerEvent(t *testing.T) {
	now := time.Date(2025, 7, 17, 8, 50, 0, 0, time.UTC)
	src := &fakeSource{schedules: []*engine.Schedule{{
		Name: "Work",
		Events: []engine.Event{{
			ID: 1, Title: "Standup",
			StartTime:       "2025-07-17T09:00:00Z",
			ReminderMinutes: 15,
		}},
	}}}
	n := &fakeNotifier{}
	s := testScheduler(src, n, now)

	s.Scan(context.Background())
	s.Scan(context.Background())
	if len(n.msgs) != 1 {
		t.Fatalf("msgs = %d, want 1 after repeated scans", len(n.msgs))
	}
}

func TestScanSkipsOutsideWindow(t *testing.T) {
	src := &fakeSource{schedules: []*engine.Schedule{{
		Name: "Work",
		Events: []engine.Event{
			{ID: 1, Title: "Too early", StartTime: "2025-07-17T12:00:00Z", ReminderMinutes: 15},
			{ID: 2, Title: "Already started", StartTime: "2025-07-17T08:00:00Z", ReminderMinutes: 15},
			{ID: 3, Title: "No reminder", StartTime: "2025-07-17T09:00:00Z"},
			{ID: 4, Title: "Unresolved", StartTime: "sometime soon", ReminderMinutes: 15},
		},
	}}}
	n := &fakeNotifier{}
	now := time.Date(2025, 7, 17, 8, 50, 0, 0, time.UTC)

	testScheduler(src, n, now).Scan(context.Background())
	if len(n.msgs) != 0 {
		t.Fatalf("msgs = %v, want none", n.msgs)
	}
}
