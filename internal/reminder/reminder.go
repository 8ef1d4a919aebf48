package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/codsworth/internal/engine"
	"github.com/nidhogg/codsworth/internal/gateway"
)

// Source supplies the users and schedules to scan for due reminders.
type Source interface {
	Users(ctx context.Context) ([]string, error)
	ScheduleAll(ctx context.Context, userID string) ([]*engine.Schedule, error)
}

// Notifier is the outbound side; the gateway Broadcaster satisfies it.
type Notifier interface {
	Send(ctx context.Context, msg *gateway.BroadcastMessage) error
}

// Scheduler periodically scans upcoming events and pushes a reminder when
// an event's reminder window opens. Each event fires at most once per
// process lifetime.
type Scheduler struct {
	source   Source
	notifier Notifier
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger

	mu   sync.Mutex
	sent map[string]bool
}

// New creates a reminder scheduler.
func New(source Source, notifier Notifier, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		source:   source,
		notifier: notifier,
		interval: interval,
		now:      time.Now,
		logger:   logger,
		sent:     make(map[string]bool),
	}
}

// Run blocks until the context is cancelled, scanning on every tick.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Scan(ctx)
		}
	}
}

// Scan walks every user's schedules once and notifies for events whose
// reminder window has opened but whose start is still in the future.
func (s *Scheduler) Scan(ctx context.Context) {
	users, err := s.source.Users(ctx)
	if err != nil {
		s.logger.Warn("reminder user scan failed", zap.Error(err))
		return
	}
	for _, userID := range users {
		schedules, err := s.source.ScheduleAll(ctx, userID)
		if err != nil {
			s.logger.Warn("reminder schedule scan failed",
				zap.String("user_id", userID), zap.Error(err))
			continue
		}
		for _, sc := range schedules {
			for i := range sc.Events {
				s.maybeNotify(ctx, userID, sc.Name, &sc.Events[i])
			}
		}
	}
}

func (s *Scheduler) maybeNotify(ctx context.Context, userID, scheduleName string, ev *engine.Event) {
	if ev.ReminderMinutes <= 0 {
		return
	}
	start, err := time.Parse(time.RFC3339, ev.StartTime)
	if err != nil {
		// Natural-language starts that never resolved are skipped.
		return
	}

	now := s.now()
	window := time.Duration(ev.ReminderMinutes) * time.Minute
	if now.Before(start.Add(-window)) || !now.Before(start) {
		return
	}

	key := fmt.Sprintf("%s|%s|%d", userID, scheduleName, ev.ID)
	s.mu.Lock()
	if s.sent[key] {
		s.mu.Unlock()
		return
	}
	s.sent[key] = true
	s.mu.Unlock()

	msg := &gateway.BroadcastMessage{
		Type:    gateway.BroadcastReminder,
		Title:   fmt.Sprintf("Upcoming: %s", ev.Title),
		Content: fmt.Sprintf("%s starts at %s (%s)", ev.Title, ev.StartTime, scheduleName),
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Warn("reminder send failed",
			zap.String("user_id", userID),
			zap.String("event", ev.Title),
			zap.Error(err))
		return
	}
	s.logger.Info("reminder sent",
		zap.String("user_id", userID),
		zap.String("schedule", scheduleName),
		zap.String("event", ev.Title))
}
