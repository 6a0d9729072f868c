package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/assetpipe/internal/logging"
)

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestCoalesce(t *testing.T) {
	events := []ChangeEvent{
		{Type: EventTypeCreated, Path: "b.js"},
		{Type: EventTypeModified, Path: "a.css"},
		{Type: EventTypeModified, Path: "b.js"},
		{Type: EventTypeDeleted, Path: "a.css"},
	}

	got := Coalesce(events)

	require.Len(t, got, 2)
	assert.Equal(t, ChangeEvent{Type: EventTypeDeleted, Path: "a.css"}, got[0])
	assert.Equal(t, ChangeEvent{Type: EventTypeModified, Path: "b.js"}, got[1])
}

func TestDebouncer_BatchesRapidEvents(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.stop()

	for i := 0; i < 5; i++ {
		d.Add(ChangeEvent{Type: EventTypeModified, Path: "site.css"})
	}
	d.Add(ChangeEvent{Type: EventTypeCreated, Path: "app.js"})

	select {
	case batch := <-d.Output():
		require.Len(t, batch, 2)
		assert.Equal(t, "app.js", batch[0].Path)
		assert.Equal(t, "site.css", batch[1].Path)
	case <-time.After(2 * time.Second):
		t.Fatal("no batch delivered")
	}

	select {
	case batch := <-d.Output():
		t.Fatalf("unexpected second batch: %v", batch)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFilters(t *testing.T) {
	known := ExtensionFilter(func(name string) bool {
		return strings.HasSuffix(name, ".js") || strings.HasSuffix(name, ".css")
	})

	assert.True(t, known("/app/content/scripts/a.js"))
	assert.False(t, known("/app/content/scripts/readme.md"))

	assert.True(t, NoHiddenFilter("/app/content/site.css"))
	assert.False(t, NoHiddenFilter("/app/content/.site.css"))
	assert.False(t, NoHiddenFilter("/app/content/site.css~"))
	assert.False(t, NoHiddenFilter("/app/content/site.css.swp"))
}

func TestFileWatcher_AddRecursiveSkipsDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "content", "scripts"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "lib"), 0o755))

	fw, err := NewFileWatcher(20*time.Millisecond, logging.NewNopLogger())
	require.NoError(t, err)
	defer fw.Stop()

	require.NoError(t, fw.AddRecursive(root, "node_modules"))

	list := fw.WatchList()
	assert.Contains(t, list, root)
	assert.Contains(t, list, filepath.Join(root, "content", "scripts"))
	assert.NotContains(t, list, filepath.Join(root, "node_modules"))

	assert.Error(t, fw.AddRecursive(filepath.Join(root, "missing")))
}

func TestFileWatcher_DeliversFilteredChanges(t *testing.T) {
	root := t.TempDir()

	fw, err := NewFileWatcher(30*time.Millisecond, logging.NewNopLogger())
	require.NoError(t, err)
	defer fw.Stop()

	fw.AddFilter(NoHiddenFilter)
	fw.AddFilter(ExtensionFilter(func(name string) bool { return strings.HasSuffix(name, ".js") }))

	var mu sync.Mutex
	var seen []string
	fw.AddHandler(func(_ context.Context, events []ChangeEvent) error {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			seen = append(seen, filepath.Base(e.Path))
		}
		return nil
	})

	require.NoError(t, fw.AddRecursive(root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fw.Start(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(root, "app.js"), []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden.js"), []byte("1"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0
	}, 3*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, name := range seen {
		assert.Equal(t, "app.js", name)
	}
}
