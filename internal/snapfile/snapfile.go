// Package snapfile reads and writes snapshot files: a metadata header
// delimited by --- lines, followed by the snapshot body. It also
// knows the candidate (".new") naming convention for pending
// file-based snapshots.
package snapfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// CandidateSuffix marks a newly produced snapshot awaiting review.
const CandidateSuffix = ".new"

// ErrNotFound is returned when a snapshot file does not exist.
var ErrNotFound = errors.New("snapshot file not found")

// Metadata is the header block of a snapshot file.
type Metadata struct {
	Source        string `yaml:"source,omitempty" json:"source,omitempty"`
	Expression    string `yaml:"expression,omitempty" json:"expression,omitempty"`
	AssertionLine int    `yaml:"assertion_line,omitempty" json:"assertion_line,omitempty"`
	InputFile     string `yaml:"input_file,omitempty" json:"input_file,omitempty"`
}

// Snapshot is one stored snapshot: its identity recovered from the
// file name, the header metadata, and the body.
type Snapshot struct {
	ModuleName   string   `json:"module_name"`
	SnapshotName string   `json:"snapshot_name,omitempty"`
	Metadata     Metadata `json:"metadata"`
	Contents     string   `json:"snapshot"`
}

// FromFile loads a snapshot from disk. The module and snapshot names
// are recovered from the <module>__<name>.snap file naming scheme.
func FromFile(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, err
	}
	defer f.Close()

	snap, err := Parse(f)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	base := filepath.Base(path)
	base = strings.TrimSuffix(base, CandidateSuffix)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	snap.ModuleName, snap.SnapshotName = splitModuleName(base)
	return snap, nil
}

// Parse reads a snapshot's header and body from r. The header is
// either a YAML block between --- lines, or a legacy "key: value"
// block terminated by a blank line. The body starts on the first line
// after the closing delimiter.
func Parse(r io.Reader) (Snapshot, error) {
	br := bufio.NewReader(r)

	first, err := readLine(br)
	if err != nil && err != io.EOF {
		return Snapshot{}, err
	}

	var snap Snapshot
	if strings.TrimRight(first, "\r\n") == "---" {
		var block strings.Builder
		for {
			line, err := readLine(br)
			if err == io.EOF && line == "" {
				break
			}
			if err != nil && err != io.EOF {
				return Snapshot{}, err
			}
			if strings.TrimRight(line, "\r\n") == "---" {
				break
			}
			block.WriteString(line)
		}
		if err := yaml.Unmarshal([]byte(block.String()), &snap.Metadata); err != nil {
			return Snapshot{}, fmt.Errorf("snapshot header: %w", err)
		}
	} else {
		// Legacy header: key: value lines up to the first blank line.
		line := first
		for {
			trimmed := strings.TrimRight(line, "\r\n")
			if trimmed == "" {
				break
			}
			if key, value, ok := strings.Cut(trimmed, ":"); ok {
				value = strings.TrimSpace(value)
				switch strings.ToLower(key) {
				case "expression":
					snap.Metadata.Expression = value
				case "source":
					snap.Metadata.Source = value
				}
			}
			var err error
			line, err = readLine(br)
			if err == io.EOF && line == "" {
				break
			}
			if err != nil && err != io.EOF {
				return Snapshot{}, err
			}
		}
	}

	body, err := io.ReadAll(br)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Contents = strings.TrimSuffix(string(body), "\n")
	return snap, nil
}

func readLine(br *bufio.Reader) (string, error) {
	return br.ReadString('\n')
}

// ReferenceBytes renders the snapshot as a committed reference file.
// The assertion line is not retained in committed snapshots; it only
// matters for candidates.
func (s Snapshot) ReferenceBytes() ([]byte, error) {
	md := s.Metadata
	md.AssertionLine = 0
	return s.encodeWith(md)
}

// Save writes the snapshot to path as a committed reference.
func (s Snapshot) Save(path string) error {
	data, err := s.ReferenceBytes()
	if err != nil {
		return err
	}
	return s.write(path, data)
}

// SaveCandidate writes the snapshot including candidate-only
// metadata such as the assertion line.
func (s Snapshot) SaveCandidate(path string) error {
	data, err := s.encodeWith(s.Metadata)
	if err != nil {
		return err
	}
	return s.write(path, data)
}

func (s Snapshot) encodeWith(md Metadata) ([]byte, error) {
	var b strings.Builder
	b.WriteString("---\n")
	if md != (Metadata{}) {
		header, err := yaml.Marshal(md)
		if err != nil {
			return nil, err
		}
		b.Write(header)
	}
	b.WriteString("---\n")
	b.WriteString(s.Contents)
	b.WriteString("\n")
	return []byte(b.String()), nil
}

func (s Snapshot) write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// CandidatePath returns the pending candidate path for a reference
// snapshot file.
func CandidatePath(reference string) string {
	return reference + CandidateSuffix
}

// ReferencePath returns the reference path for a candidate file.
func ReferencePath(candidate string) string {
	return strings.TrimSuffix(candidate, CandidateSuffix)
}

// IsCandidate reports whether path follows the candidate naming
// convention.
func IsCandidate(path string) bool {
	return strings.HasSuffix(path, CandidateSuffix)
}

// splitModuleName splits a snapshot base name into module and
// snapshot name on the double-underscore separator.
func splitModuleName(base string) (module, name string) {
	module, name, ok := strings.Cut(base, "__")
	if !ok {
		return base, ""
	}
	return module, name
}
