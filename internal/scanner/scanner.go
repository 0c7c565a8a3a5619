package scanner

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrNoModuleContext is returned when a file path does not decompose
// into <dir>/<module>.<ext> and no module partition can be derived.
var ErrNoModuleContext = errors.New("no module context")

// Scanner finds assertion call sites using a configured grammar.
type Scanner struct {
	grammar Grammar
}

// New creates a scanner with the given grammar.
func New(g Grammar) *Scanner {
	return &Scanner{grammar: g}
}

// Grammar returns the scanner's grammar.
func (s *Scanner) Grammar() Grammar {
	return s.grammar
}

// ModuleContext decomposes a file path into its module partition.
// Returns ErrNoModuleContext when the path has no name or extension.
func ModuleContext(path string) (Module, error) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if name == "" || ext == "" || ext == base {
		return Module{}, ErrNoModuleContext
	}
	return Module{Dir: filepath.Dir(path), Name: name, Ext: ext}, nil
}

// SplitLines splits text into physical lines without their newline
// bytes and returns the byte offset of each line start. A trailing
// carriage return is kept in the line; Lines trims it before matching.
func SplitLines(text string) (lines []string, offsets []int) {
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, text[start:i])
			offsets = append(offsets, start)
			start = i + 1
		}
	}
	if start < len(text) || len(text) == 0 {
		lines = append(lines, text[start:])
		offsets = append(offsets, start)
	}
	return lines, offsets
}

// matchLine strips a trailing carriage return so line-anchored
// patterns behave the same for LF and CRLF files.
func matchLine(line string) string {
	return strings.TrimSuffix(line, "\r")
}

// ScanFile scans file text and returns every candidate assertion call
// in source order. Test function headers (a function declaration
// immediately preceded by a test annotation line) delimit the unnamed
// ordinal counter; calls outside any test function get ordinal 0.
func (s *Scanner) ScanFile(path, text string) []Assertion {
	lines, offsets := SplitLines(text)
	g := s.grammar

	var out []Assertion
	currentFunc := ""
	unnamed := 0

	for i, raw := range lines {
		line := matchLine(raw)

		if m := g.FuncDecl.FindStringSubmatch(line); m != nil {
			if i > 0 && g.TestAnnotation.MatchString(matchLine(lines[i-1])) {
				currentFunc = m[1]
			} else {
				// A plain function ends the test context; its
				// assertions must not inherit the previous test name.
				currentFunc = ""
			}
			unnamed = 0
		}

		head := g.Head.FindStringIndex(line)
		if head == nil {
			continue
		}

		a := Assertion{
			FilePath:          path,
			Line:              i + 1,
			Column:            head[0],
			EnclosingFunction: currentFunc,
		}

		if m := g.Named.FindStringSubmatch(line); m != nil {
			a.Named = true
			a.ExplicitName = m[1]
		} else if currentFunc != "" {
			unnamed++
			a.Ordinal = unnamed
		}

		// The inline marker sits on the call line, or on the next
		// line for the two-line named opening.
		if off, ok := s.inlineLiteralAt(line, head[0]); ok {
			a.Inline = true
			a.LiteralOffset = offsets[i] + off
		} else if g.NamedOpen.MatchString(line) && i+1 < len(lines) {
			if off, ok := s.inlineLiteralAt(matchLine(lines[i+1]), 0); ok {
				a.Inline = true
				a.LiteralOffset = offsets[i+1] + off
			}
		}

		out = append(out, a)
	}
	return out
}

// inlineLiteralAt finds the inline marker on a line starting at from
// and returns the byte offset of the literal opening delimiter.
func (s *Scanner) inlineLiteralAt(line string, from int) (int, bool) {
	if from > len(line) {
		return 0, false
	}
	loc := s.grammar.InlineMarker.FindStringSubmatchIndex(line[from:])
	if loc == nil || loc[2] < 0 {
		return 0, false
	}
	return from + loc[2], true
}
