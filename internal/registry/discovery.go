package registry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
)

// TypeInlineSnapshot is the discovery protocol type for pending
// inline snapshots; other types describe file-based pending entries.
const TypeInlineSnapshot = "inline_snapshot"

// DiscoveryEntry is one line of the discovery protocol: the external
// reviewer emits one JSON object per line on stdout.
type DiscoveryEntry struct {
	Path        string  `json:"path"`
	Line        *int    `json:"line"`
	Type        string  `json:"type"`
	OldSnapshot *string `json:"old_snapshot"`
	NewSnapshot *string `json:"new_snapshot"`
	Expression  *string `json:"expression"`
	Name        *string `json:"name"`
}

// pending converts a protocol entry into a registry entry. Entries
// without a usable identity are dropped.
func (e DiscoveryEntry) pending(root string) (Pending, bool) {
	if e.Path == "" {
		return Pending{}, false
	}

	if e.Type == TypeInlineSnapshot {
		if e.Line == nil {
			return Pending{}, false
		}
		p := Pending{
			Key:  fmt.Sprintf("%s:%d", e.Path, *e.Line),
			Kind: KindInline,
			Root: root,
			Path: e.Path,
			Line: *e.Line,
		}
		if e.OldSnapshot != nil {
			p.OldValue = *e.OldSnapshot
		}
		if e.NewSnapshot != nil {
			p.NewValue = *e.NewSnapshot
		}
		if e.Expression != nil {
			p.Expression = *e.Expression
		}
		if e.Name != nil {
			p.Name = *e.Name
		}
		return p, true
	}

	p := Pending{
		Key:           e.Path,
		Kind:          KindFile,
		Root:          root,
		ReferencePath: e.Path,
		CandidatePath: e.Path + ".new",
	}
	if e.Name != nil {
		p.Name = *e.Name
	}
	return p, true
}

// ParseDiscoveryStream reads the JSON-lines discovery protocol.
// Malformed lines are skipped individually and counted; they never
// abort the scan.
func ParseDiscoveryStream(r io.Reader, log *slog.Logger) (entries []DiscoveryEntry, skipped int, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e DiscoveryEntry
		if uerr := json.Unmarshal(line, &e); uerr != nil {
			skipped++
			if log != nil {
				log.Debug("skipping malformed discovery line", "error", uerr)
			}
			continue
		}
		entries = append(entries, e)
	}
	if serr := sc.Err(); serr != nil {
		return entries, skipped, serr
	}
	return entries, skipped, nil
}
