package registry

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"snapreview/internal/snapfile"
)

// PendingBatchSuffix marks pending inline batch files written by the
// test runtime alongside the snapshots.
const PendingBatchSuffix = ".pending-snap"

// BatchDiscoverer finds pending inline snapshots by reading batch
// files under a root directly, without invoking the external reviewer
// tool. It serves as the discovery path when that tool is absent.
type BatchDiscoverer struct {
	Log *slog.Logger
}

// Discover walks root for pending batch files and converts their
// records into discovery entries. Unreadable batches are skipped;
// record source paths are resolved relative to root.
func (b BatchDiscoverer) Discover(root string) ([]DiscoveryEntry, error) {
	var entries []DiscoveryEntry
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, PendingBatchSuffix) {
			return nil
		}
		batch, lerr := snapfile.LoadPendingBatch(path)
		if lerr != nil {
			if b.Log != nil {
				b.Log.Warn("skipping unreadable pending batch", "path", path, "error", lerr)
			}
			return nil
		}
		for _, rec := range batch {
			if e, ok := batchEntry(root, rec); ok {
				entries = append(entries, e)
			}
		}
		return nil
	})
	return entries, nil
}

// batchEntry converts one batch record into a discovery entry.
// Records without a source file are dropped; they cannot be
// addressed for review.
func batchEntry(root string, rec snapfile.PendingInline) (DiscoveryEntry, bool) {
	snap := rec.New
	if snap == nil {
		snap = rec.Old
	}
	if snap == nil || snap.Metadata.Source == "" {
		return DiscoveryEntry{}, false
	}

	source := snap.Metadata.Source
	if !filepath.IsAbs(source) {
		source = filepath.Join(root, source)
	}

	line := rec.Line
	e := DiscoveryEntry{
		Path: source,
		Line: &line,
		Type: TypeInlineSnapshot,
	}
	if rec.Old != nil {
		v := rec.Old.Contents
		e.OldSnapshot = &v
	}
	if rec.New != nil {
		v := rec.New.Contents
		e.NewSnapshot = &v
		if rec.New.Metadata.Expression != "" {
			expr := rec.New.Metadata.Expression
			e.Expression = &expr
		}
	}
	return e, true
}
