package georef

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	dir := t.TempDir()
	touch := func(name string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	touch("c.jpg")
	touch("d.jpg")
	touch("old_georef.tif")

	tile := f.req.Renderer.(StaticRenderer).Tile
	w, err := f.p.NewWatcher(dir, "", tile)
	if err != nil {
		t.Fatal(err)
	}
	w.Settle = 20 * time.Millisecond
	w.Skip = func(input string) bool { return filepath.Base(input) == "d.jpg" }
	results := make(chan PipelineResult, 8)
	w.OnResult = func(r PipelineResult) { results <- r }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	got := map[string]PipelineResult{}
	timeout := time.After(10 * time.Second)
	for len(got) < 2 {
		select {
		case r := <-results:
			got[filepath.Base(r.Input)] = r
			if len(got) == 1 {
				touch("a.jpg")
			}
		case <-timeout:
			t.Fatalf("watcher produced %d results", len(got))
		}
	}
	cancel()
	if err = <-done; err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.jpg", "c.jpg"} {
		r, ok := got[name]
		if !ok || !r.Success {
			t.Errorf("%s: %+v", name, r)
			continue
		}
		if r.Output != filepath.Join(dir, name[:1]+"_georef.tif") {
			t.Errorf("%s output %s", name, r.Output)
		}
	}
	select {
	case r := <-results:
		t.Errorf("unexpected extra result %s", r.Input)
	default:
	}
}

func TestWatcherNeedsTile(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	if _, err := f.p.NewWatcher(t.TempDir(), "", nil); err != ErrNoReference {
		t.Errorf("expected ErrNoReference, got %v", err)
	}
}
