// Package scanner finds snapshot assertion call sites in source text.
// Matching is line-oriented: it recognizes the assertion call grammar,
// named and unnamed forms, inline markers, and test function headers,
// without parsing the full language.
package scanner

// Assertion is one textual occurrence of a snapshot assertion call.
type Assertion struct {
	FilePath string `json:"filePath"`
	Line     int    `json:"line"`   // 1-based line of the call head
	Column   int    `json:"column"` // 0-based byte column of the call head

	Named        bool   `json:"named"`
	ExplicitName string `json:"explicitName,omitempty"` // set iff Named

	// Inline is true when the call carries a reference value literal
	// (the @"..." form) instead of delegating to a snapshot file.
	Inline bool `json:"inline"`

	// LiteralOffset is the byte offset in the scanned text of the
	// literal opening delimiter that follows the inline marker.
	// Valid only when Inline is true.
	LiteralOffset int `json:"-"`

	// EnclosingFunction is the name of the nearest preceding test
	// function header, or "" when the call sits outside any test.
	EnclosingFunction string `json:"enclosingFunction,omitempty"`

	// Ordinal is the 1-based count of unnamed candidates from the
	// enclosing function start up to and including this call.
	// Zero for named calls and calls outside a test function.
	Ordinal int `json:"ordinal,omitempty"`
}

// Module is the file-name-derived module partition of a source file.
type Module struct {
	Dir  string // directory containing the file
	Name string // file name without extension
	Ext  string // extension including the dot
}
