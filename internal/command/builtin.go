package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/nidhogg/codsworth/internal/briefing"
	"github.com/nidhogg/codsworth/internal/gateway"
	"github.com/nidhogg/codsworth/internal/recall"
)

// ---------------------------------------------------------------------------
// Interfaces, kept here so builtin commands avoid importing concrete types.
// ---------------------------------------------------------------------------

// SnapshotSource builds the merged entity view for a user.
type SnapshotSource interface {
	Briefing(ctx context.Context, userID string) *briefing.Snapshot
}

// Recaller searches the semantic memory index.
type Recaller interface {
	Query(ctx context.Context, userID, query string, topK int) ([]recall.Result, error)
}

// StatusSource reports platform adapter connection state.
type StatusSource interface {
	StatusAll() []gateway.AdapterStatus
}

// ---------------------------------------------------------------------------
// RegisterBuiltins wires up the built-in slash commands.
// ---------------------------------------------------------------------------

// RegisterBuiltins registers /help, /lists, /schedules, /memory, /context,
// /recall, and /status. recaller and status may be nil when the semantic
// index or the gateway is not configured; the commands degrade gracefully.
func RegisterBuiltins(reg *Registry, snapshots SnapshotSource, recaller Recaller, status StatusSource) {
	reg.Register(helpCommand(reg))
	reg.Register(listsCommand(snapshots))
	reg.Register(schedulesCommand(snapshots))
	reg.Register(memoryCommand(snapshots))
	reg.Register(contextCommand(snapshots))
	reg.Register(recallCommand(recaller))
	reg.Register(statusCommand(status))
}

// ---------------------------------------------------------------------------
// /help
// ---------------------------------------------------------------------------

func helpCommand(reg *Registry) *Command {
	return &Command{
		Name:        "help",
		Description: "List all available commands",
		Usage:       "/help",
		Handler: func(_ context.Context, _ string, _ *CommandContext) (*Result, error) {
			cmds := reg.List()
			var b strings.Builder
			b.WriteString("Available commands:\n")
			for _, c := range cmds {
				fmt.Fprintf(&b, "  /%s, %s\n", c.Name, c.Description)
				if c.Usage != "" {
					fmt.Fprintf(&b, "    Usage: %s\n", c.Usage)
				}
			}
			return &Result{Content: b.String()}, nil
		},
	}
}

// ---------------------------------------------------------------------------
// /lists
// ---------------------------------------------------------------------------

func listsCommand(snapshots SnapshotSource) *Command {
	return &Command{
		Name:        "lists",
		Description: "Show your lists and their items",
		Usage:       "/lists",
		Handler: func(ctx context.Context, _ string, cc *CommandContext) (*Result, error) {
			snap := snapshots.Briefing(ctx, cc.UserID)
			if len(snap.Lists) == 0 {
				return &Result{Content: "You have no lists yet."}, nil
			}
			var b strings.Builder
			fmt.Fprintf(&b, "Your lists (%d):\n", len(snap.Lists))
			for _, l := range snap.Lists {
				fmt.Fprintf(&b, "  %s (%d items)\n", l.Name, len(l.Items))
				for _, it := range l.Items {
					mark := " "
					if it.Completed {
						mark = "x"
					}
					fmt.Fprintf(&b, "    [%s] %s\n", mark, it.Text)
				}
			}
			return &Result{Content: b.String(), Data: snap.Lists}, nil
		},
	}
}

// ---------------------------------------------------------------------------
// /schedules
// ---------------------------------------------------------------------------

func schedulesCommand(snapshots SnapshotSource) *Command {
	return &Command{
		Name:        "schedules",
		Description: "Show your schedules and upcoming events",
		Usage:       "/schedules",
		Handler: func(ctx context.Context, _ string, cc *CommandContext) (*Result, error) {
			snap := snapshots.Briefing(ctx, cc.UserID)
			if len(snap.Schedules) == 0 {
				return &Result{Content: "You have no schedules yet."}, nil
			}
			var b strings.Builder
			fmt.Fprintf(&b, "Your schedules (%d):\n", len(snap.Schedules))
			for _, s := range snap.Schedules {
				fmt.Fprintf(&b, "  %s (%d events)\n", s.Name, len(s.Events))
				for _, ev := range s.Events {
					fmt.Fprintf(&b, "    #%d %s @ %s\n", ev.ID, ev.Title, ev.StartTime)
				}
			}
			return &Result{Content: b.String(), Data: snap.Schedules}, nil
		},
	}
}

// ---------------------------------------------------------------------------
// /memory
// ---------------------------------------------------------------------------

func memoryCommand(snapshots SnapshotSource) *Command {
	return &Command{
		Name:        "memory",
		Description: "Show your memory categories and stored keys",
		Usage:       "/memory",
		Handler: func(ctx context.Context, _ string, cc *CommandContext) (*Result, error) {
			snap := snapshots.Briefing(ctx, cc.UserID)
			if len(snap.Memory) == 0 {
				return &Result{Content: "You have no memory categories yet."}, nil
			}
			var b strings.Builder
			fmt.Fprintf(&b, "Your memory (%d categories):\n", len(snap.Memory))
			for _, c := range snap.Memory {
				fmt.Fprintf(&b, "  %s (%d items)\n", c.Name, len(c.Items))
				for _, it := range c.Items {
					val := it.Value
					if it.Private {
						val = "(private)"
					}
					fmt.Fprintf(&b, "    %s: %s\n", it.Key, val)
				}
			}
			return &Result{Content: b.String(), Data: snap.Memory}, nil
		},
	}
}

// ---------------------------------------------------------------------------
// /context
// ---------------------------------------------------------------------------

func contextCommand(snapshots SnapshotSource) *Command {
	return &Command{
		Name:        "context",
		Description: "Show the entity briefing the assistant sees",
		Usage:       "/context",
		Handler: func(ctx context.Context, _ string, cc *CommandContext) (*Result, error) {
			snap := snapshots.Briefing(ctx, cc.UserID)
			return &Result{Content: snap.Render()}, nil
		},
	}
}

// ---------------------------------------------------------------------------
// /recall
// ---------------------------------------------------------------------------

func recallCommand(recaller Recaller) *Command {
	return &Command{
		Name:        "recall",
		Description: "Search your memories semantically",
		Usage:       "/recall <query>",
		Handler: func(ctx context.Context, args string, cc *CommandContext) (*Result, error) {
			if recaller == nil {
				return &Result{Content: "Semantic recall is not configured."}, nil
			}
			if args == "" {
				return &Result{Content: "Usage: /recall <query>"}, nil
			}
			results, err := recaller.Query(ctx, cc.UserID, args, 5)
			if err != nil {
				return nil, fmt.Errorf("recall query: %w", err)
			}
			if len(results) == 0 {
				return &Result{Content: "No matching memories found."}, nil
			}
			var b strings.Builder
			fmt.Fprintf(&b, "Memories matching %q:\n", args)
			for _, r := range results {
				fmt.Fprintf(&b, "  [%.2f] %s / %s: %s\n", r.Score, r.Category, r.Key, r.Value)
			}
			return &Result{Content: b.String(), Data: results}, nil
		},
	}
}

// ---------------------------------------------------------------------------
// /status
// ---------------------------------------------------------------------------

func statusCommand(status StatusSource) *Command {
	return &Command{
		Name:        "status",
		Description: "Show platform adapter connection status",
		Usage:       "/status",
		Handler: func(_ context.Context, _ string, _ *CommandContext) (*Result, error) {
			if status == nil {
				return &Result{Content: "No adapters configured."}, nil
			}
			adapters := status.StatusAll()
			if len(adapters) == 0 {
				return &Result{Content: "No adapters configured."}, nil
			}
			var b strings.Builder
			b.WriteString("Adapter status:\n")
			for _, a := range adapters {
				state := "disconnected"
				if a.Connected {
					state = "connected"
				}
				fmt.Fprintf(&b, "  %s: %s", a.Platform, state)
				if a.Details != "" {
					fmt.Fprintf(&b, " (%s)", a.Details)
				}
				if a.Error != "" {
					fmt.Fprintf(&b, " last error: %s", a.Error)
				}
				b.WriteString("\n")
			}
			return &Result{Content: b.String(), Data: adapters}, nil
		},
	}
}
