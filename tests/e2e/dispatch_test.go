package e2e

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nidhogg/codsworth/internal/engine"
)

func mustActions(t *testing.T, raw string) []engine.Action {
	t.Helper()
	var actions []engine.Action
	if err := json.Unmarshal([]byte(raw), &actions); err != nil {
		t.Fatalf("parse actions: %v", err)
	}
	return actions
}

func TestDispatchBatchAgainstStore(t *testing.T) {
	ctx := context.Background()
	user := "e2e-dispatch"
	d := engine.NewDispatcher(testStore, testLogger)

	// Later actions in a batch must see entities created earlier in it,
	// including through fuzzy name references.
	batch := d.Dispatch(ctx, user, mustActions(t, `[
		{"type": "create_list", "name": "Groceries", "listType": "shopping"},
		{"type": "add_to_list", "data": {"name": "groceries", "items": ["milk", "eggs"]}},
		{"type": "add_to_list", "data": {"name": "the list", "items": ["butter"]}}
	]`))
	if batch.Failed != 0 {
		t.Fatalf("batch failed: %+v", batch.Results)
	}

	lists, err := testStore.ListAll(ctx, user)
	if err != nil {
		t.Fatal(err)
	}
	if len(lists) != 1 {
		t.Fatalf("got %d lists, want fuzzy matches to reuse one list", len(lists))
	}
	if len(lists[0].Items) != 3 {
		t.Errorf("got %d items, want 3", len(lists[0].Items))
	}
}

func TestDispatchStoreMemoryCreatesCategory(t *testing.T) {
	ctx := context.Background()
	user := "e2e-dispatch-memory"
	d := engine.NewDispatcher(testStore, testLogger)

	batch := d.Dispatch(ctx, user, mustActions(t, `[
		{"type": "store_memory", "data": {"category": "Contacts", "key": "mom phone", "value": "555-0000"}}
	]`))
	if batch.Failed != 0 {
		t.Fatalf("batch failed: %+v", batch.Results)
	}

	cats, err := testStore.MemoryAll(ctx, user)
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 1 || cats[0].Name != "Contacts" {
		t.Fatalf("got %+v, want auto-created Contacts category", cats)
	}
	if cats[0].Type != "general" {
		t.Errorf("got type %q, want %q for auto-created category", cats[0].Type, "general")
	}
	if len(cats[0].Items) != 1 || cats[0].Items[0].Value != "555-0000" {
		t.Errorf("got %+v, want stored item", cats[0].Items)
	}
}

func TestDispatchFailureDoesNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	user := "e2e-dispatch-partial"
	d := engine.NewDispatcher(testStore, testLogger)

	batch := d.Dispatch(ctx, user, mustActions(t, `[
		{"type": "update_list", "data": {"name": "Nonexistent", "operation": "complete", "itemId": 1}},
		{"type": "create_list", "name": "Survivor"}
	]`))
	if batch.Failed != 1 || batch.Succeeded != 1 {
		t.Fatalf("got %d failed / %d succeeded, want 1/1", batch.Failed, batch.Succeeded)
	}

	lists, err := testStore.ListAll(ctx, user)
	if err != nil {
		t.Fatal(err)
	}
	if len(lists) != 1 || lists[0].Name != "Survivor" {
		t.Errorf("got %+v, want Survivor created despite earlier failure", lists)
	}
}
