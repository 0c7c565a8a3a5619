// Package locator resolves a cursor position in a source file to a
// concrete snapshot match: which assertion, which enclosing test,
// the disambiguated ordinal among unnamed siblings, and whether the
// snapshot is inline or file-based. Resolution always fails closed;
// it never guesses a snapshot identity.
package locator

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"snapreview/internal/scanner"
)

// Resolution errors. All of them mean "no match"; callers must not
// fall back to guessing.
var (
	ErrNoAssertion         = errors.New("no assertion call at position")
	ErrNoEnclosingFunction = errors.New("no enclosing test function")
	ErrSnapshotNotFound    = errors.New("snapshot file not found")
	ErrAmbiguousSnapshot   = errors.New("multiple snapshot files match")
)

// Kind distinguishes inline from file-based matches.
type Kind int

const (
	KindInline Kind = iota
	KindFile
)

func (k Kind) String() string {
	if k == KindInline {
		return "inline"
	}
	return "file"
}

// Position is a 1-based line and 0-based column in a document.
type Position struct {
	Line   int
	Column int
}

// Document is a source file under resolution.
type Document struct {
	Path string
	Text string
}

// Match is a resolved snapshot assertion.
type Match struct {
	Assertion   scanner.Assertion
	Kind        Kind
	Function    string // enclosing test function, "" for named file-based
	Ordinal     int    // 1-based among unnamed siblings, 0 for named
	DerivedName string // file-based lookup name, "" for inline
	// SnapshotPath is the resolved snapshot file for file-based
	// matches.
	SnapshotPath string
	// IdentityKey addresses the match for review decisions:
	// "<path>:<line>" for inline, the snapshot path for file-based.
	IdentityKey string
}

// Options configures snapshot file search.
type Options struct {
	// Roots are the project roots searched for snapshot files, in
	// enumeration order.
	Roots []string
	// SnapshotDir is the directory base name holding snapshot files.
	SnapshotDir string
	// Extension is the snapshot file extension including the dot.
	Extension string
	// StrictAmbiguity upgrades multiple matches within one search
	// pass from first-wins to an explicit error.
	StrictAmbiguity bool
}

// DefaultOptions returns the conventional search settings.
func DefaultOptions(roots []string) Options {
	return Options{
		Roots:       roots,
		SnapshotDir: "snapshots",
		Extension:   ".snap",
	}
}

// Locator resolves positions to snapshot matches.
type Locator struct {
	scan *scanner.Scanner
	opts Options
}

// New creates a locator using the scanner's grammar and the given
// search options.
func New(s *scanner.Scanner, opts Options) *Locator {
	if opts.SnapshotDir == "" {
		opts.SnapshotDir = "snapshots"
	}
	if opts.Extension == "" {
		opts.Extension = ".snap"
	}
	return &Locator{scan: s, opts: opts}
}

// Locate resolves the assertion at pos in doc.
func (l *Locator) Locate(doc Document, pos Position) (Match, error) {
	lines, _ := scanner.SplitLines(doc.Text)
	if pos.Line < 1 || pos.Line > len(lines) {
		return Match{}, ErrNoAssertion
	}
	g := l.scan.Grammar()

	callLine := pos.Line
	if !g.Head.MatchString(lineAt(lines, callLine)) {
		// One-line lookback: the cursor may sit on the value line of
		// a call opened on the previous line after its name literal.
		if callLine > 1 && g.NamedOpen.MatchString(lineAt(lines, callLine-1)) {
			callLine--
		} else {
			return Match{}, ErrNoAssertion
		}
	}

	var assertion *scanner.Assertion
	for _, a := range l.scan.ScanFile(doc.Path, doc.Text) {
		if a.Line == callLine {
			found := a
			assertion = &found
			break
		}
	}
	if assertion == nil {
		return Match{}, ErrNoAssertion
	}

	function, ordinal, found := l.backscan(lines, callLine, assertion.Named)
	if assertion.Named {
		ordinal = 0
	}

	if assertion.Inline {
		// Inline snapshots outside a test function (or in any context
		// the backward scan cannot anchor) are rejected outright: a
		// mis-anchored patch would rewrite the wrong literal.
		if !found {
			return Match{}, ErrNoEnclosingFunction
		}
		m := Match{
			Assertion:   *assertion,
			Kind:        KindInline,
			Function:    function,
			Ordinal:     ordinal,
			IdentityKey: fmt.Sprintf("%s:%d", doc.Path, callLine),
		}
		return m, nil
	}

	var derived string
	switch {
	case assertion.Named:
		derived = assertion.ExplicitName
	case found:
		derived = strings.TrimPrefix(function, g.TestPrefix)
		if ordinal > 1 {
			derived = fmt.Sprintf("%s-%d", derived, ordinal)
		}
	default:
		return Match{}, ErrNoEnclosingFunction
	}

	mod, err := scanner.ModuleContext(doc.Path)
	if err != nil {
		return Match{}, err
	}

	snapPath, err := l.findSnapshotFile(mod.Name, derived)
	if err != nil {
		return Match{}, err
	}

	m := Match{
		Assertion:    *assertion,
		Kind:         KindFile,
		Function:     function,
		Ordinal:      ordinal,
		DerivedName:  derived,
		SnapshotPath: snapPath,
		IdentityKey:  snapPath,
	}
	return m, nil
}

// backscan walks upward from the call line counting unnamed sibling
// candidates until it reaches the nearest function declaration. Only
// a test function header (a declaration immediately preceded by a
// test annotation line) anchors the scan; a plain function or an
// exhausted file yields found=false.
func (l *Locator) backscan(lines []string, callLine int, selfNamed bool) (function string, ordinal int, found bool) {
	g := l.scan.Grammar()
	if !selfNamed {
		ordinal = 1
	}
	for j := callLine - 1; j >= 1; j-- {
		line := lineAt(lines, j)
		if m := g.FuncDecl.FindStringSubmatch(line); m != nil {
			if j > 1 && g.TestAnnotation.MatchString(lineAt(lines, j-1)) {
				return m[1], ordinal, true
			}
			return "", 0, false
		}
		if g.Head.MatchString(line) && !g.Named.MatchString(line) {
			ordinal++
		}
	}
	return "", 0, false
}

// findSnapshotFile searches the snapshot directories of all roots in
// three decreasing-specificity passes: exact module-prefixed name,
// wildcard module prefix, then wildcard prefix and suffix. The first
// existing match wins unless strict ambiguity is enabled.
func (l *Locator) findSnapshotFile(module, name string) (string, error) {
	dirs := l.snapshotDirs()
	patterns := []string{
		module + "__" + name + l.opts.Extension,
		"*" + module + "*__" + name + l.opts.Extension,
		"*" + module + "*__*" + name + "*" + l.opts.Extension,
	}

	for _, pattern := range patterns {
		var matches []string
		for _, dir := range dirs {
			found, err := filepath.Glob(filepath.Join(dir, pattern))
			if err != nil {
				continue
			}
			sort.Strings(found)
			for _, f := range found {
				if !strings.HasSuffix(f, snapCandidateSuffix) {
					matches = append(matches, f)
				}
			}
		}
		if len(matches) == 0 {
			continue
		}
		if len(matches) > 1 && l.opts.StrictAmbiguity {
			return "", fmt.Errorf("%w: %q resolves to %d files", ErrAmbiguousSnapshot, name, len(matches))
		}
		return matches[0], nil
	}
	return "", ErrSnapshotNotFound
}

const snapCandidateSuffix = ".new"

// snapshotDirs walks every root collecting directories whose base
// name matches the configured snapshot directory, preserving root
// enumeration order and sorting within each root.
func (l *Locator) snapshotDirs() []string {
	var dirs []string
	for _, root := range l.opts.Roots {
		var inRoot []string
		filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() && d.Name() == l.opts.SnapshotDir {
				inRoot = append(inRoot, path)
			}
			return nil
		})
		sort.Strings(inRoot)
		dirs = append(dirs, inRoot...)
	}
	return dirs
}

func lineAt(lines []string, n int) string {
	return strings.TrimSuffix(lines[n-1], "\r")
}
