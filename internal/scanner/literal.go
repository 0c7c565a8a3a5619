package scanner

import "errors"

// ErrBadLiteral is returned when no structurally valid string literal
// starts at the given offset.
var ErrBadLiteral = errors.New("malformed string literal")

// Literal describes the span of one string literal in scanned text.
// Offsets index the full text, not a single line; raw literals may
// span multiple lines.
type Literal struct {
	Raw   bool
	Fence int // number of fence hashes around a raw literal

	OpenStart    int // offset of the opening delimiter
	ContentStart int // offset of the first payload byte
	ContentEnd   int // offset just past the last payload byte
	CloseEnd     int // offset just past the closing delimiter
}

// Content returns the literal payload bytes from text, undelimited
// and unprocessed.
func (l Literal) Content(text string) string {
	return text[l.ContentStart:l.ContentEnd]
}

// ParseLiteral parses the string literal starting at offset, which
// must point at the opening delimiter (optionally after whitespace).
// Plain quoted literals handle backslash escapes and must not span
// lines; raw literals terminate at a quote followed by the fence.
func ParseLiteral(text string, offset int) (Literal, error) {
	i := offset
	for i < len(text) && (text[i] == ' ' || text[i] == '\t') {
		i++
	}
	if i >= len(text) {
		return Literal{}, ErrBadLiteral
	}

	lit := Literal{OpenStart: i}

	if text[i] == 'r' {
		lit.Raw = true
		i++
		for i < len(text) && text[i] == '#' {
			lit.Fence++
			i++
		}
		if i >= len(text) || text[i] != '"' {
			return Literal{}, ErrBadLiteral
		}
		i++
		lit.ContentStart = i
		for ; i < len(text); i++ {
			if text[i] != '"' {
				continue
			}
			if hasFence(text, i+1, lit.Fence) {
				lit.ContentEnd = i
				lit.CloseEnd = i + 1 + lit.Fence
				return lit, nil
			}
		}
		return Literal{}, ErrBadLiteral
	}

	if text[i] != '"' {
		return Literal{}, ErrBadLiteral
	}
	i++
	lit.ContentStart = i
	for ; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++ // skip escaped byte
		case '\n':
			return Literal{}, ErrBadLiteral
		case '"':
			lit.ContentEnd = i
			lit.CloseEnd = i + 1
			return lit, nil
		}
	}
	return Literal{}, ErrBadLiteral
}

func hasFence(text string, at, fence int) bool {
	if at+fence > len(text) {
		return false
	}
	for j := 0; j < fence; j++ {
		if text[at+j] != '#' {
			return false
		}
	}
	return true
}
