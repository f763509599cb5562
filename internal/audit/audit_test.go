package audit

import (
	"context"
	"testing"
)

func TestMemorySinkAppend(t *testing.T) {
	sink := NewMemorySink()
	actor := int64(7)
	ctx := context.Background()

	if err := sink.Append(ctx, &Entry{Event: LoginFail, Details: map[string]any{"email": "x@y.z"}}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := sink.Append(ctx, &Entry{ActorID: &actor, Event: LoginSuccess, Success: true}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got := sink.Entries()
	if len(got) != 2 {
		t.Fatalf("len(Entries()) = %d, want 2", len(got))
	}
	if got[0].Event != LoginFail || got[0].ActorID != nil {
		t.Errorf("first entry = %+v", got[0])
	}
	if got[1].ID != 2 || *got[1].ActorID != 7 || got[1].CreatedAt.IsZero() {
		t.Errorf("second entry = %+v", got[1])
	}

	got[0].Event = UserDelete
	if sink.Entries()[0].Event != LoginFail {
		t.Error("Entries() exposed internal slice")
	}
}
