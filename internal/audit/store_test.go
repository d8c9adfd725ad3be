package audit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/alverad/inout/pkg/inout"
)

func newTestAudit(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "audit.db")
	s, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndRecent(t *testing.T) {
	s := newTestAudit(t)

	base := time.Now().UTC().Add(-time.Minute)
	for i, kind := range []string{"register_provider", "provide", "provide"} {
		err := s.Append(Event{
			ID:        string(rune('a' + i)),
			Store:     "global",
			Kind:      kind,
			Hint:      "int",
			OK:        i < 2,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	events, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Kind != "provide" || events[0].OK {
		t.Errorf("newest event should be the failed provide: %+v", events[0])
	}
	if events[2].Kind != "register_provider" {
		t.Errorf("oldest event wrong: %+v", events[2])
	}
}

func TestRecentLimit(t *testing.T) {
	s := newTestAudit(t)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		s.Append(Event{
			ID:        string(rune('a' + i)),
			Store:     "global",
			Kind:      "provide",
			OK:        true,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}

	events, err := s.Recent(2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("expected 2 events, got %d", len(events))
	}
}

func TestGetStats(t *testing.T) {
	s := newTestAudit(t)

	now := time.Now().UTC()
	s.Append(Event{ID: "1", Store: "global", Kind: "provide", OK: true, CreatedAt: now})
	s.Append(Event{ID: "2", Store: "global", Kind: "provide", OK: false, CreatedAt: now})
	s.Append(Event{ID: "3", Store: "other", Kind: "process", OK: true, CreatedAt: now})

	stats, err := s.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("Total = %d, want 3", stats.Total)
	}
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
	if stats.ByKind["provide"] != 2 {
		t.Errorf("ByKind[provide] = %d, want 2", stats.ByKind["provide"])
	}
	if stats.ByStore["other"] != 1 {
		t.Errorf("ByStore[other] = %d, want 1", stats.ByStore["other"])
	}
}

func TestPurge(t *testing.T) {
	s := newTestAudit(t)

	old := time.Now().UTC().Add(-48 * time.Hour)
	s.Append(Event{ID: "old", Store: "global", Kind: "provide", OK: true, CreatedAt: old})
	s.Append(Event{ID: "new", Store: "global", Kind: "provide", OK: true})

	removed, err := s.Purge(24 * time.Hour)
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Purge removed %d rows, want 1", removed)
	}

	events, _ := s.Recent(10)
	if len(events) != 1 || events[0].ID != "new" {
		t.Errorf("unexpected surviving events: %+v", events)
	}
}

func TestRecorderWritesStoreEvents(t *testing.T) {
	s := newTestAudit(t)

	r := NewRecorder(s)
	defer r.Close()

	store, err := inout.NewStore("audit-recorder-test")
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer inout.DestroyStore("audit-recorder-test")

	r.Attach(store)

	d, _ := store.RegisterProvider(inout.HintOf[int](), inout.ProvideValue(1))
	if _, err := inout.Provide[int](store); err != nil {
		t.Fatalf("Provide failed: %v", err)
	}
	d()

	// The recorder writes asynchronously; Close flushes the queue.
	r.Close()

	events, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(events), events)
	}
	for _, ev := range events {
		if ev.Store != "audit-recorder-test" {
			t.Errorf("event has wrong store: %+v", ev)
		}
		if ev.ID == "" {
			t.Error("event should have a generated id")
		}
	}
}
