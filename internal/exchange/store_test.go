package exchange_test

import (
	"context"
	"testing"

	"github.com/corvid-labs/ragline/internal/exchange"
	"github.com/corvid-labs/ragline/internal/log"
	"github.com/corvid-labs/ragline/internal/testutil"
)

func TestStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	tdb, cleanup := testutil.SetupPostgres(t)
	defer cleanup()

	ctx := context.Background()
	store := exchange.New(tdb.Pool, log.NewNop())

	t.Run("empty store", func(t *testing.T) {
		n, err := store.Count(ctx)
		if err != nil {
			t.Fatalf("Count() error = %v", err)
		}
		if n != 0 {
			t.Errorf("Count() = %d, want 0", n)
		}

		recent, err := store.Recent(ctx, 10)
		if err != nil {
			t.Fatalf("Recent() error = %v", err)
		}
		if len(recent) != 0 {
			t.Errorf("Recent() returned %d exchanges, want 0", len(recent))
		}
	})

	t.Run("save and list", func(t *testing.T) {
		turns := []struct{ prompt, response string }{
			{"What is Go?", "A programming language."},
			{"Who made it?", "Google, in 2009."},
			{"Is it fast?", "Yes, it compiles to native code."},
		}
		for _, turn := range turns {
			if err := store.Save(ctx, turn.prompt, turn.response); err != nil {
				t.Fatalf("Save(%q) error = %v", turn.prompt, err)
			}
		}

		n, err := store.Count(ctx)
		if err != nil {
			t.Fatalf("Count() error = %v", err)
		}
		if n != 3 {
			t.Errorf("Count() = %d, want 3", n)
		}

		// Recent returns a transcript: oldest first.
		recent, err := store.Recent(ctx, 10)
		if err != nil {
			t.Fatalf("Recent() error = %v", err)
		}
		if len(recent) != 3 {
			t.Fatalf("Recent() returned %d exchanges, want 3", len(recent))
		}
		for i, turn := range turns {
			if recent[i].Prompt != turn.prompt || recent[i].Response != turn.response {
				t.Errorf("exchange %d = {%q, %q}, want {%q, %q}",
					i, recent[i].Prompt, recent[i].Response, turn.prompt, turn.response)
			}
			if recent[i].ID == 0 {
				t.Errorf("exchange %d has zero ID", i)
			}
			if recent[i].CreatedAt.IsZero() {
				t.Errorf("exchange %d has zero timestamp", i)
			}
		}
	})

	t.Run("limit keeps newest", func(t *testing.T) {
		recent, err := store.Recent(ctx, 2)
		if err != nil {
			t.Fatalf("Recent(2) error = %v", err)
		}
		if len(recent) != 2 {
			t.Fatalf("Recent(2) returned %d exchanges", len(recent))
		}
		// The two newest turns, still oldest-first.
		if recent[0].Prompt != "Who made it?" || recent[1].Prompt != "Is it fast?" {
			t.Errorf("Recent(2) = [%q, %q]", recent[0].Prompt, recent[1].Prompt)
		}
	})

	t.Run("non-positive limit", func(t *testing.T) {
		recent, err := store.Recent(ctx, 0)
		if err != nil {
			t.Fatalf("Recent(0) error = %v", err)
		}
		if recent != nil {
			t.Errorf("Recent(0) = %v, want nil", recent)
		}
	})
}
