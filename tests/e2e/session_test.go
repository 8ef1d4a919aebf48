package e2e

import (
	"context"
	"testing"

	"github.com/nidhogg/codsworth/internal/engine"
)

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	user := "e2e-session"

	lists := []*engine.List{
		{UserID: user, Name: "Trip", Type: "travel"},
		{UserID: user, Name: "Chores", Type: "general"},
	}
	if err := testSession.PutLists(ctx, user, lists); err != nil {
		t.Fatalf("put lists: %v", err)
	}

	got, err := testSession.Lists(ctx, user)
	if err != nil {
		t.Fatalf("get lists: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Trip" {
		t.Errorf("got %+v, want cached lists in order", got)
	}
}

func TestSessionColdCache(t *testing.T) {
	got, err := testSession.Lists(context.Background(), "e2e-nobody")
	if err != nil {
		t.Fatalf("cold read: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil for cold cache", got)
	}
}

func TestSessionUpsertReplacesByName(t *testing.T) {
	ctx := context.Background()
	user := "e2e-session-upsert"

	if err := testSession.PutLists(ctx, user, []*engine.List{{Name: "Trip", Type: "travel"}}); err != nil {
		t.Fatal(err)
	}
	if err := testSession.UpsertList(ctx, user, &engine.List{
		Name:  "Trip",
		Type:  "travel",
		Items: []engine.ListItem{{ID: 1, Text: "passport"}},
	}); err != nil {
		t.Fatal(err)
	}

	got, err := testSession.Lists(ctx, user)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d lists, want upsert to replace in place", len(got))
	}
	if len(got[0].Items) != 1 || got[0].Items[0].Text != "passport" {
		t.Errorf("got %+v, want replaced list with item", got[0])
	}
}

func TestSessionClear(t *testing.T) {
	ctx := context.Background()
	user := "e2e-session-clear"

	if err := testSession.PutMemory(ctx, user, []*engine.MemoryCategory{{Name: "Notes"}}); err != nil {
		t.Fatal(err)
	}
	if err := testSession.Clear(ctx, user); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, err := testSession.Memory(ctx, user)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("got %+v after clear, want nil", got)
	}
}
