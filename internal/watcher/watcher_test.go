package watcher

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcher_DebouncesBursts(t *testing.T) {
	root := t.TempDir()

	var calls atomic.Int32
	w, err := New(100*time.Millisecond, func() { calls.Add(1) }, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.AddRoot(root))
	w.Start()

	// A burst of writes should coalesce into one rescan.
	for i := 0; i < 5; i++ {
		path := filepath.Join(root, "snap.new")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return calls.Load() >= 1
	}, 2*time.Second, 20*time.Millisecond, "rescan never fired")

	// Allow any stragglers to land, then confirm coalescing kept the
	// call count low.
	time.Sleep(300 * time.Millisecond)
	if got := calls.Load(); got > 2 {
		t.Errorf("rescan fired %d times for one burst, want 1 or 2", got)
	}
}

func TestWatcher_CloseCancelsPending(t *testing.T) {
	root := t.TempDir()

	var calls atomic.Int32
	w, err := New(time.Hour, func() { calls.Add(1) }, nil)
	require.NoError(t, err)

	require.NoError(t, w.AddRoot(root))
	w.Start()

	require.NoError(t, os.WriteFile(filepath.Join(root, "f"), []byte("x"), 0644))
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, w.Close())
	if calls.Load() != 0 {
		t.Error("pending rescan fired despite Close")
	}
}
