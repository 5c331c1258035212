package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitFor(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case got := <-ch:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("no reindex callback for %q", want)
		}
	}
}

func TestWatcherTriggersReindex(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "owner1", "init1")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}

	events := make(chan string, 16)
	w := NewWatcher(root, func(id string) { events <- id }, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "1_notes.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, events, "init1")
}

func TestWatcherPicksUpNewDirectories(t *testing.T) {
	root := t.TempDir()
	events := make(chan string, 16)
	w := NewWatcher(root, func(id string) { events <- id }, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	dir := filepath.Join(root, "owner2", "init2")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	// give the watcher a moment to pick up the new directories
	time.Sleep(300 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "1_plan.txt"), []byte("plan"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, events, "init2")
}

func TestWatcherIgnoresFilesOutsideInitiativeDirs(t *testing.T) {
	root := t.TempDir()
	events := make(chan string, 16)
	w := NewWatcher(root, func(id string) { events <- id }, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	select {
	case id := <-events:
		t.Errorf("unexpected reindex of %q", id)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherStopDuringEvents(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "owner3", "init3")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}

	w := NewWatcher(root, func(string) {}, WithDebounce(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}

	// keep events flowing while Stop tears the watcher down
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for i := 0; i < 200; i++ {
			name := filepath.Join(dir, "burst.txt")
			_ = os.WriteFile(name, []byte("x"), 0644)
		}
	}()
	time.Sleep(5 * time.Millisecond)
	w.Stop()
	<-writerDone
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	w := NewWatcher(t.TempDir(), nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}
