package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alverad/inout/internal/config"
)

type flushRecorder struct {
	mu      sync.Mutex
	batches [][]FileEvent
}

func (r *flushRecorder) record(events []FileEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, events)
}

func (r *flushRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func TestDebouncerCoalescesByPath(t *testing.T) {
	rec := &flushRecorder{}
	d := NewDebouncer(30*time.Millisecond, 100, rec.record)

	d.Add(FileEvent{Path: "/a.yaml", Type: EventCreate})
	d.Add(FileEvent{Path: "/a.yaml", Type: EventModify})
	d.Add(FileEvent{Path: "/b.yaml", Type: EventModify})

	if got := d.Pending(); got != 2 {
		t.Errorf("Pending = %d, want 2", got)
	}

	time.Sleep(100 * time.Millisecond)

	if rec.count() != 1 {
		t.Fatalf("expected 1 flush, got %d", rec.count())
	}

	rec.mu.Lock()
	batch := rec.batches[0]
	rec.mu.Unlock()

	if len(batch) != 2 {
		t.Errorf("batch size = %d, want 2", len(batch))
	}
	for _, ev := range batch {
		if ev.Path == "/a.yaml" && ev.Type != EventModify {
			t.Errorf("latest event for path should win, got %s", ev.Type)
		}
	}
}

func TestDebouncerMaxBatchFlushesImmediately(t *testing.T) {
	rec := &flushRecorder{}
	d := NewDebouncer(time.Hour, 2, rec.record)

	d.Add(FileEvent{Path: "/a.yaml", Type: EventModify})
	d.Add(FileEvent{Path: "/b.yaml", Type: EventModify})

	if rec.count() != 1 {
		t.Fatalf("expected immediate flush at maxBatch, got %d", rec.count())
	}
	if d.Pending() != 0 {
		t.Errorf("Pending = %d after flush, want 0", d.Pending())
	}
}

func TestDebouncerStopFlushesPending(t *testing.T) {
	rec := &flushRecorder{}
	d := NewDebouncer(time.Hour, 100, rec.record)

	d.Add(FileEvent{Path: "/a.yaml", Type: EventModify})
	d.Stop()

	if rec.count() != 1 {
		t.Fatalf("Stop should flush pending events, got %d flushes", rec.count())
	}

	d.Add(FileEvent{Path: "/b.yaml", Type: EventModify})
	if d.Pending() != 0 {
		t.Error("events after Stop should be dropped")
	}
}

type stubReloader struct {
	ch chan struct{}
}

func (r *stubReloader) Reload() error {
	select {
	case r.ch <- struct{}{}:
	default:
	}
	return nil
}

func TestWatcherReloadsOnManifestChange(t *testing.T) {
	dir := t.TempDir()
	reloader := &stubReloader{ch: make(chan struct{}, 1)}

	cfg := config.WatcherConfig{
		Enabled:        true,
		DebounceWindow: 20 * time.Millisecond,
		MaxBatchSize:   100,
	}

	w, err := New(cfg, reloader)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Stop()

	if err := w.AddDir(dir); err != nil {
		t.Fatalf("AddDir failed: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	path := filepath.Join(dir, "bindings.yaml")
	if err := os.WriteFile(path, []byte("bindings: []\n"), 0644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	select {
	case <-reloader.ch:
	case <-time.After(3 * time.Second):
		t.Fatal("reload was not triggered by manifest write")
	}
}

func TestWatcherRemoveDirStopsReloads(t *testing.T) {
	kept := t.TempDir()
	dropped := t.TempDir()
	reloader := &stubReloader{ch: make(chan struct{}, 1)}

	cfg := config.WatcherConfig{
		Enabled:        true,
		DebounceWindow: 20 * time.Millisecond,
		MaxBatchSize:   100,
	}

	w, err := New(cfg, reloader)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Stop()

	for _, dir := range []string{kept, dropped} {
		if err := w.AddDir(dir); err != nil {
			t.Fatalf("AddDir failed: %v", err)
		}
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	w.RemoveDir(dropped)

	path := filepath.Join(dropped, "bindings.yaml")
	if err := os.WriteFile(path, []byte("bindings: []\n"), 0644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	select {
	case <-reloader.ch:
		t.Fatal("write in a removed dir should not reload")
	case <-time.After(200 * time.Millisecond):
	}

	path = filepath.Join(kept, "bindings.yaml")
	if err := os.WriteFile(path, []byte("bindings: []\n"), 0644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	select {
	case <-reloader.ch:
	case <-time.After(3 * time.Second):
		t.Fatal("kept dir should still trigger reloads")
	}
}

func TestWatcherIgnoresNonManifests(t *testing.T) {
	dir := t.TempDir()
	reloader := &stubReloader{ch: make(chan struct{}, 1)}

	cfg := config.WatcherConfig{
		DebounceWindow: 20 * time.Millisecond,
		MaxBatchSize:   100,
		IgnorePatterns: []string{"**/generated-*.yaml"},
	}

	w, err := New(cfg, reloader)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Stop()

	if w.shouldIgnore(filepath.Join(dir, "notes.txt")) != true {
		t.Error("non-yaml file should be ignored")
	}
	if w.shouldIgnore(filepath.Join(dir, ".hidden.yaml")) != true {
		t.Error("hidden file should be ignored")
	}
	if w.shouldIgnore(filepath.Join(dir, "bindings.yaml")) {
		t.Error("manifest should not be ignored")
	}
	if w.shouldIgnore(filepath.Join(dir, "generated-locks.yaml")) != true {
		t.Error("ignore pattern should apply")
	}
}
