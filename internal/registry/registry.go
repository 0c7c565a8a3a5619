// Package registry keeps the in-memory index of pending snapshots
// discovered across one or more project roots. It never touches the
// filesystem beyond reading during discovery; applying decisions is
// the review driver's job.
package registry

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"snapreview/internal/snapfile"
)

// Kind of a pending snapshot.
type Kind string

const (
	KindFile   Kind = "file"
	KindInline Kind = "inline"
)

// Pending is one reviewable unit of change.
type Pending struct {
	Key  string `json:"key"`
	Kind Kind   `json:"kind"`
	Root string `json:"root"`

	// File-based: the committed reference and its pending candidate.
	ReferencePath string `json:"referencePath,omitempty"`
	CandidatePath string `json:"candidatePath,omitempty"`

	// Inline: the source file and call line, with the old literal
	// value and the externally reported new value.
	Path       string `json:"path,omitempty"`
	Line       int    `json:"line,omitempty"`
	OldValue   string `json:"oldValue,omitempty"`
	NewValue   string `json:"newValue,omitempty"`
	Expression string `json:"expression,omitempty"`
	Name       string `json:"name,omitempty"`
}

// Discoverer produces pending inline entries for one project root,
// typically by running the external reviewer tool and parsing its
// JSON output stream.
type Discoverer interface {
	Discover(root string) ([]DiscoveryEntry, error)
}

// Registry is the process-lifetime index of pending snapshots. It is
// owned by one review session; construct a fresh one per session.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Pending
	order   []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]Pending)}
}

// Scan rebuilds the registry from the given roots, merging file-based
// candidates found on disk with inline entries from the discoverer.
// Roots are processed in enumeration order; on duplicate identity
// keys the first root wins. A discoverer error for one root aborts
// the scan; walk errors inside a root are skipped.
func (r *Registry) Scan(roots []string, discover Discoverer) error {
	entries := make(map[string]Pending)
	var order []string

	add := func(p Pending) {
		if _, exists := entries[p.Key]; exists {
			return
		}
		entries[p.Key] = p
		order = append(order, p.Key)
	}

	for _, root := range roots {
		for _, cand := range findCandidates(root) {
			add(Pending{
				Key:           snapfile.ReferencePath(cand),
				Kind:          KindFile,
				Root:          root,
				ReferencePath: snapfile.ReferencePath(cand),
				CandidatePath: cand,
			})
		}

		if discover == nil {
			continue
		}
		found, err := discover.Discover(root)
		if err != nil {
			return fmt.Errorf("discovering pending snapshots in %s: %w", root, err)
		}
		for _, e := range found {
			p, ok := e.pending(root)
			if !ok {
				continue
			}
			add(p)
		}
	}

	r.mu.Lock()
	r.entries = entries
	r.order = order
	r.mu.Unlock()
	return nil
}

// Get returns the pending snapshot for an identity key.
func (r *Registry) Get(key string) (Pending, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.entries[key]
	return p, ok
}

// Invalidate removes an entry after a decision has been applied.
func (r *Registry) Invalidate(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[key]; !ok {
		return
	}
	delete(r.entries, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// List returns all pending snapshots in stable discovery order.
func (r *Registry) List() []Pending {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Pending, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.entries[k])
	}
	return out
}

// Len returns the number of pending snapshots.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// findCandidates walks a root for candidate snapshot files, sorted
// for deterministic ordering. Unreadable subtrees are skipped.
func findCandidates(root string) []string {
	var out []string
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && d.Name() != "." && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if snapfile.IsCandidate(path) {
			out = append(out, path)
		}
		return nil
	})
	sort.Strings(out)
	return out
}
