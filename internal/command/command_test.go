package command

import (
	"context"
	"strings"
	"testing"

	"github.com/nidhogg/codsworth/internal/briefing"
	"github.com/nidhogg/codsworth/internal/engine"
	"github.com/nidhogg/codsworth/internal/gateway"
	"github.com/nidhogg/codsworth/internal/recall"
)

func TestRegistryDispatch(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Command{
		Name:        "ping",
		Description: "Ping test",
		Usage:       "/ping",
		Handler: func(ctx context.Context, args string, cc *CommandContext) (*Result, error) {
			return &Result{Content: "pong: " + args}, nil
		},
	})

	ctx := context.Background()
	cc := &CommandContext{Platform: "test", UserID: "u1"}

	result, err := reg.Dispatch(ctx, "/ping hello", cc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != "pong: hello" {
		t.Errorf("got %q, want %q", result.Content, "pong: hello")
	}

	result, err = reg.Dispatch(ctx, "/unknown", cc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Content, "Unknown command") {
		t.Errorf("got %q, want unknown command message", result.Content)
	}
}

func TestRegistryList(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Command{Name: "beta"})
	reg.Register(&Command{Name: "alpha"})

	list := reg.List()
	if len(list) != 2 {
		t.Fatalf("got %d commands, want 2", len(list))
	}
	if list[0].Name != "alpha" {
		t.Errorf("got %q first, want %q", list[0].Name, "alpha")
	}
}

func TestIsCommand(t *testing.T) {
	if !IsCommand("/help") {
		t.Error("IsCommand(\"/help\") = false, want true")
	}
	if !IsCommand("  /lists") {
		t.Error("leading whitespace should not hide a command")
	}
	if IsCommand("add milk to my list") {
		t.Error("plain text should not be a command")
	}
}

type fakeSnapshots struct {
	snap *briefing.Snapshot
}

func (f *fakeSnapshots) Briefing(_ context.Context, _ string) *briefing.Snapshot {
	return f.snap
}

type fakeRecaller struct {
	results []recall.Result
	lastQ   string
}

func (f *fakeRecaller) Query(_ context.Context, _, query string, _ int) ([]recall.Result, error) {
	f.lastQ = query
	return f.results, nil
}

type fakeStatus struct {
	statuses []gateway.AdapterStatus
}

func (f *fakeStatus) StatusAll() []gateway.AdapterStatus { return f.statuses }

func testRegistry(snap *briefing.Snapshot, rec Recaller, st StatusSource) *Registry {
	reg := NewRegistry()
	RegisterBuiltins(reg, &fakeSnapshots{snap: snap}, rec, st)
	return reg
}

func TestHelpListsAllBuiltins(t *testing.T) {
	reg := testRegistry(&briefing.Snapshot{}, nil, nil)
	result, err := reg.Dispatch(context.Background(), "/help", &CommandContext{UserID: "u1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range []string{"/help", "/lists", "/schedules", "/memory", "/context", "/recall", "/status"} {
		if !strings.Contains(result.Content, name) {
			t.Errorf("help output missing %s", name)
		}
	}
}

func TestListsCommand(t *testing.T) {
	snap := &briefing.Snapshot{
		Lists: []*engine.List{
			{Name: "Shopping List", Items: []engine.ListItem{
				{ID: 1, Text: "milk"},
				{ID: 2, Text: "eggs", Completed: true},
			}},
		},
	}
	reg := testRegistry(snap, nil, nil)
	result, err := reg.Dispatch(context.Background(), "/lists", &CommandContext{UserID: "u1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Content, "Shopping List (2 items)") {
		t.Errorf("got %q, want list header", result.Content)
	}
	if !strings.Contains(result.Content, "[ ] milk") || !strings.Contains(result.Content, "[x] eggs") {
		t.Errorf("got %q, want completion marks", result.Content)
	}
}

func TestListsCommandEmpty(t *testing.T) {
	reg := testRegistry(&briefing.Snapshot{}, nil, nil)
	result, _ := reg.Dispatch(context.Background(), "/lists", &CommandContext{UserID: "u1"})
	if result.Content != "You have no lists yet." {
		t.Errorf("got %q, want empty message", result.Content)
	}
}

func TestMemoryCommandHidesPrivateValues(t *testing.T) {
	snap := &briefing.Snapshot{
		Memory: []*engine.MemoryCategory{
			{Name: "Passwords", Items: []engine.MemoryItem{
				{ID: 1, Key: "bank pin", Value: "1234", Private: true},
				{ID: 2, Key: "wifi", Value: "hunter2"},
			}},
		},
	}
	reg := testRegistry(snap, nil, nil)
	result, _ := reg.Dispatch(context.Background(), "/memory", &CommandContext{UserID: "u1"})
	if strings.Contains(result.Content, "1234") {
		t.Errorf("private value leaked: %q", result.Content)
	}
	if !strings.Contains(result.Content, "bank pin: (private)") {
		t.Errorf("got %q, want private marker", result.Content)
	}
	if !strings.Contains(result.Content, "wifi: hunter2") {
		t.Errorf("got %q, want public value", result.Content)
	}
}

func TestRecallCommand(t *testing.T) {
	rec := &fakeRecaller{results: []recall.Result{
		{Category: "Contacts", Key: "dad phone", Value: "555-1234", Score: 0.91},
	}}
	reg := testRegistry(&briefing.Snapshot{}, rec, nil)

	result, err := reg.Dispatch(context.Background(), "/recall dad's number", &CommandContext{UserID: "u1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.lastQ != "dad's number" {
		t.Errorf("got query %q, want %q", rec.lastQ, "dad's number")
	}
	if !strings.Contains(result.Content, "Contacts / dad phone: 555-1234") {
		t.Errorf("got %q, want result line", result.Content)
	}

	result, _ = reg.Dispatch(context.Background(), "/recall", &CommandContext{UserID: "u1"})
	if !strings.Contains(result.Content, "Usage:") {
		t.Errorf("got %q, want usage message", result.Content)
	}
}

func TestRecallCommandUnconfigured(t *testing.T) {
	reg := testRegistry(&briefing.Snapshot{}, nil, nil)
	result, _ := reg.Dispatch(context.Background(), "/recall anything", &CommandContext{UserID: "u1"})
	if result.Content != "Semantic recall is not configured." {
		t.Errorf("got %q, want unconfigured message", result.Content)
	}
}

func TestStatusCommand(t *testing.T) {
	st := &fakeStatus{statuses: []gateway.AdapterStatus{
		{Platform: "discord", Connected: true, Details: "2 guilds"},
		{Platform: "slack", Connected: false, Error: "bad token"},
	}}
	reg := testRegistry(&briefing.Snapshot{}, nil, st)
	result, _ := reg.Dispatch(context.Background(), "/status", &CommandContext{UserID: "u1"})
	if !strings.Contains(result.Content, "discord: connected (2 guilds)") {
		t.Errorf("got %q, want discord line", result.Content)
	}
	if !strings.Contains(result.Content, "slack: disconnected last error: bad token") {
		t.Errorf("got %q, want slack line", result.Content)
	}
}
