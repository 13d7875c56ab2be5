package library

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestWatcherReportsNewFolder(t *testing.T) {
	root := t.TempDir()
	w, err := NewWatcher(zap.NewNop(), []string{root}, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("watcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changed := make(chan string, 4)
	go func() {
		_ = w.Run(ctx, func(r string) { changed <- r })
	}()

	writeFile(t, filepath.Join(root, "New Artist", "Album", "Song.mp3"))

	select {
	case got := <-changed:
		if got != root {
			t.Fatalf("expected %s, got %s", root, got)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for change")
	}
}

func TestWatcherRootOf(t *testing.T) {
	w := &Watcher{roots: []string{"/music", "/music/extra"}}
	if got := w.rootOf("/music/extra/a/b.mp3"); got != "/music/extra" {
		t.Fatalf("expected longest root, got %q", got)
	}
	if got := w.rootOf("/musicals/x.mp3"); got != "" {
		t.Fatalf("expected no root, got %q", got)
	}
}
