package linkmon

import (
	"context"
	"testing"
	"time"

	"github.com/HerbHall/linkpulse/internal/testutil"
)

func TestSQLiteLedgerStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteLedgerStore(ctx, testutil.NewStore(t))
	if err != nil {
		t.Fatalf("NewSQLiteLedgerStore: %v", err)
	}

	empty, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load on fresh table: %v", err)
	}
	if empty.Len() != 0 {
		t.Errorf("fresh Load() Len = %d, want 0", empty.Len())
	}

	l := NewLedger()
	l.Put("Unit_A", "Provider_1", Outage{Since: time.Date(2025, 3, 10, 9, 15, 0, 0, time.Local)})
	l.Put("Unit_C", "Provider_Alt", Outage{Since: time.Date(2025, 3, 11, 7, 5, 0, 0, time.Local)})
	if err := s.Save(ctx, l); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("Load() Len = %d, want 2", got.Len())
	}
	o, _ := got.Get("Unit_C", "Provider_Alt")
	if want := time.Date(2025, 3, 11, 7, 5, 0, 0, time.Local); !o.Since.Equal(want) {
		t.Errorf("Since = %v, want %v", o.Since, want)
	}

	// Save replaces the previous contents.
	l.Remove("Unit_A", "Provider_1")
	if err := s.Save(ctx, l); err != nil {
		t.Fatalf("Save after remove: %v", err)
	}
	got, _ = s.Load(ctx)
	if got.Has("Unit_A", "Provider_1") || got.Len() != 1 {
		t.Errorf("Load() after removal = %v, want only Unit_C/Provider_Alt", got)
	}

	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestSQLiteLedgerStore_MigrationsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewStore(t)

	if _, err := NewSQLiteLedgerStore(ctx, db); err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := NewSQLiteLedgerStore(ctx, db); err != nil {
		t.Fatalf("second open: %v", err)
	}
}
