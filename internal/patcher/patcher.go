// Package patcher rewrites inline snapshot literals in place. It
// computes the byte range of the existing literal, renders the new
// value with the right delimiter style and indentation, and verifies
// the result round-trips before handing it back.
package patcher

import (
	"errors"
	"fmt"
	"strings"

	"snapreview/internal/scanner"
)

// ErrNotInline is returned when the assertion carries no inline
// reference literal.
var ErrNotInline = errors.New("assertion has no inline literal")

// ErrVerification is returned when the patched text no longer parses
// back to the new value at the assertion's line. The original file
// text is never returned modified in that case.
var ErrVerification = errors.New("patch verification failed")

// Patcher rewrites inline literals using the scanner's grammar for
// locating and re-verifying call sites.
type Patcher struct {
	scan *scanner.Scanner
}

// New creates a patcher around the given scanner.
func New(s *scanner.Scanner) *Patcher {
	return &Patcher{scan: s}
}

// Patch replaces the inline literal of the given assertion with
// newValue and returns the full new file text. Patching with the
// current value returns fileText unchanged. The returned text is
// verified by re-scanning: the assertion must still parse at the same
// line and its literal must read back as exactly newValue.
func (p *Patcher) Patch(fileText string, a scanner.Assertion, newValue string) (string, error) {
	if !a.Inline {
		return "", ErrNotInline
	}

	lit, err := scanner.ParseLiteral(fileText, a.LiteralOffset)
	if err != nil {
		return "", fmt.Errorf("locating literal at %s:%d: %w", a.FilePath, a.Line, err)
	}

	newValue = normalizeValue(newValue)
	if literalValue(lit, fileText) == newValue {
		return fileText, nil
	}

	replacement := renderLiteral(newValue, a.Column, lit.Fence)
	patched := fileText[:lit.OpenStart] + replacement + fileText[lit.CloseEnd:]

	if err := p.verify(patched, a, newValue); err != nil {
		return "", err
	}
	return patched, nil
}

// verify re-scans the patched text and confirms the assertion at the
// original line still parses and reads back as newValue.
func (p *Patcher) verify(patched string, a scanner.Assertion, newValue string) error {
	for _, got := range p.scan.ScanFile(a.FilePath, patched) {
		if got.Line != a.Line || !got.Inline {
			continue
		}
		lit, err := scanner.ParseLiteral(patched, got.LiteralOffset)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrVerification, err)
		}
		if literalValue(lit, patched) != newValue {
			return fmt.Errorf("%w: literal does not read back", ErrVerification)
		}
		return nil
	}
	return fmt.Errorf("%w: no assertion at line %d after patch", ErrVerification, a.Line)
}

// literalValue reads the logical value out of a parsed literal:
// raw literals are dedented, plain literals are unescaped.
func literalValue(lit scanner.Literal, text string) string {
	content := normalizeNewlines(lit.Content(text))
	if lit.Raw {
		return dedent(content)
	}
	return unescapePlain(content)
}

// renderLiteral produces the replacement literal text. Values free of
// newlines, quotes and backslashes become plain quoted strings; all
// others become raw strings. The fence is never narrower than the
// existing one, and always wide enough that no quote run inside the
// value can terminate the literal early.
func renderLiteral(value string, indentation, existingFence int) string {
	if !strings.ContainsAny(value, "\n\"\\") {
		return `"` + value + `"`
	}

	fence := 1 + maxQuoteRun(value)
	if existingFence > fence {
		fence = existingFence
	}
	hashes := strings.Repeat("#", fence)

	var b strings.Builder
	b.WriteString("r")
	b.WriteString(hashes)
	b.WriteString(`"`)

	if strings.Contains(value, "\n") {
		indent := strings.Repeat(" ", indentation)
		for _, line := range strings.Split(value, "\n") {
			b.WriteString("\n")
			if line != "" {
				b.WriteString(indent)
				b.WriteString(line)
			}
		}
		b.WriteString("\n")
		b.WriteString(indent)
	} else {
		b.WriteString(value)
	}

	b.WriteString(`"`)
	b.WriteString(hashes)
	return b.String()
}

// maxQuoteRun returns the length of the longest run of double quote
// characters in s.
func maxQuoteRun(s string) int {
	max, run := 0, 0
	for i := 0; i < len(s); i++ {
		if s[i] == '"' {
			run++
			if run > max {
				max = run
			}
		} else {
			run = 0
		}
	}
	return max
}

// dedent strips the leading empty line, common indentation, and
// trailing whitespace from a multi-line raw literal body, recovering
// the logical value from its indented block form. Single-line bodies
// are returned untouched.
func dedent(s string) string {
	if !strings.Contains(s, "\n") {
		return s
	}
	s = strings.TrimRight(s, " \t\n")
	lines := strings.Split(s, "\n")
	if len(lines) <= 1 {
		return s
	}

	min := -1
	for _, line := range lines {
		if line == "" {
			continue
		}
		n := leadingSpaces(line)
		if min < 0 || n < min {
			min = n
		}
	}
	if min < 0 {
		min = 0
	}

	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for i, line := range lines {
		if len(line) >= min {
			lines[i] = line[min:]
		} else {
			lines[i] = ""
		}
	}
	return strings.Join(lines, "\n")
}

func leadingSpaces(s string) int {
	n := 0
	for n < len(s) && (s[n] == ' ' || s[n] == '\t') {
		n++
	}
	return n
}

// unescapePlain resolves backslash escapes in a plain quoted literal
// body.
func unescapePlain(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// normalizeValue prepares a reported value for rendering. Leading
// newlines and trailing whitespace cannot survive the indented block
// form's round trip, so they are stripped up front; CRLF collapses
// to LF.
func normalizeValue(s string) string {
	s = strings.TrimLeft(s, "\r\n")
	s = strings.TrimRight(s, " \t\r\n")
	return normalizeNewlines(s)
}
