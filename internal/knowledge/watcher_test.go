package knowledge

import (
	"context"
	"testing"
	"time"

	"github.com/inkrouter/ink-router/internal/pkg/logger"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()

	reg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	store := NewStore(reg)

	reloaded := make(chan *Registry, 1)
	w := NewWatcher(WatcherConfig{
		Dir:      dir,
		Store:    store,
		Debounce: 50 * time.Millisecond,
		OnReload: func(r *Registry) {
			select {
			case reloaded <- r:
			default:
			}
		},
	}, logger.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = w.Start(ctx)
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)

	writeCorpus(t, dir, "piercing.yaml", `
name: piercing
entries:
  - patterns: ["do you do piercings"]
    keywords: [piercing]
    answer: "Yes."
`)

	select {
	case r := <-reloaded:
		if r.Get("piercing") == nil {
			t.Error("reloaded registry missing new pipeline")
		}
		if store.Registry() != r {
			t.Error("store must serve the reloaded registry")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcher_KeepsOldRegistryOnBrokenCorpus(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir, "faq.yaml", `
name: faq
entries:
  - patterns: ["x"]
    keywords: [x]
    answer: "y"
`)

	reg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	store := NewStore(reg)

	w := NewWatcher(WatcherConfig{
		Dir:      dir,
		Store:    store,
		Debounce: 10 * time.Millisecond,
	}, logger.Default())

	// Exercise the reload path directly with a now-broken corpus.
	writeCorpus(t, dir, "faq.yaml", "name: [unclosed")
	w.reload()

	if store.Registry() != reg {
		t.Error("broken corpus must leave the previous registry serving")
	}
}
