package attacks

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestMemoryListDuringUpdate(t *testing.T) {
	store := NewMemoryStore()
	events := seed(t, store, 5, nil)
	ctx := context.Background()
	id := events[0].ID

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		statuses := []Status{StatusWorking, StatusEscalated, StatusRemediated}
		for i := 0; i < 200; i++ {
			st := statuses[i%len(statuses)]
			notes := fmt.Sprintf("pass %d", i)
			a := &ActionLog{UserID: analyst.ID, ActionType: ActionStatusChange}
			if _, err := store.Update(ctx, id, Changes{Status: &st, AnalystNotes: &notes}, a); err != nil {
				t.Errorf("Update() error = %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if _, _, err := store.List(ctx, Filter{}); err != nil {
				t.Errorf("List() error = %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if _, err := store.Resequence(ctx, false); err != nil {
				t.Errorf("Resequence() error = %v", err)
				return
			}
		}
	}()
	wg.Wait()

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Actions) != 200 {
		t.Errorf("actions = %d, want 200", len(got.Actions))
	}
}

func TestMemoryListReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	seed(t, store, 1, nil)
	ctx := context.Background()

	items, _, _ := store.List(ctx, Filter{})
	items[0].Status = StatusRemediated
	items[0].Flow["injected"] = 1

	again, _, _ := store.List(ctx, Filter{})
	if again[0].Status != StatusNew {
		t.Errorf("status = %s, want new", again[0].Status)
	}
	if _, ok := again[0].Flow["injected"]; ok {
		t.Error("caller mutation reached the store")
	}
}

func TestMemoryUpdateIsAllOrNothing(t *testing.T) {
	store := NewMemoryStore()
	events := seed(t, store, 1, nil)
	ctx := context.Background()
	id := events[0].ID
	escalated := StatusEscalated
	notes := "should not stick"

	tests := []struct {
		name   string
		action *ActionLog
	}{
		{"missing user", &ActionLog{ActionType: ActionStatusChange}},
		{"unknown action", &ActionLog{UserID: analyst.ID, ActionType: "nuke"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Update(ctx, id, Changes{Status: &escalated, AnalystNotes: &notes}, tt.action)
			if !IsValidation(err) {
				t.Fatalf("err = %v, want validation error", err)
			}
			got, err := store.Get(ctx, id)
			if err != nil {
				t.Fatal(err)
			}
			if got.Status != StatusNew || got.AnalystNotes != "" || len(got.Actions) != 0 {
				t.Errorf("failed update left partial state: status=%s notes=%q actions=%d",
					got.Status, got.AnalystNotes, len(got.Actions))
			}
		})
	}

	a := &ActionLog{UserID: analyst.ID, ActionType: ActionStatusChange, Details: map[string]any{"status": escalated}}
	updated, err := store.Update(ctx, id, Changes{Status: &escalated}, a)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != StatusEscalated || a.ID == 0 || a.AttackID != id {
		t.Errorf("updated = %+v, action = %+v", updated, a)
	}
}
