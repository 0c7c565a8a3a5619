package scanner

import "regexp"

// Grammar holds the patterns that define what counts as an assertion
// call, a named call, and a test function header. All patterns operate
// on single physical lines.
type Grammar struct {
	// Head matches the assertion call head up to and including the
	// opening parenthesis.
	Head *regexp.Regexp

	// Named matches a call head followed by a quoted name literal and
	// a comma. Capture group 1 is the name.
	Named *regexp.Regexp

	// NamedOpen matches a call whose opening line ends right after the
	// name literal and comma, with the value argument on the next
	// physical line. Capture group 1 is the name.
	NamedOpen *regexp.Regexp

	// TestAnnotation matches the annotation line that marks the next
	// function declaration as a test.
	TestAnnotation *regexp.Regexp

	// FuncDecl matches a function declaration line. Capture group 1 is
	// the function name.
	FuncDecl *regexp.Regexp

	// InlineMarker matches the @-marker that introduces an inline
	// reference literal. Capture group 1 is the literal opening
	// delimiter (a quote, or r plus fence hashes plus a quote).
	InlineMarker *regexp.Regexp

	// TestPrefix is stripped from function names when deriving
	// snapshot names ("test_foo" -> "foo").
	TestPrefix string
}

var (
	defaultHead           = regexp.MustCompile(`\bassert(?:_[a-z_]+)?_snapshot!\s*\(`)
	defaultNamed          = regexp.MustCompile(`\bassert(?:_[a-z_]+)?_snapshot!\s*\(\s*"((?:[^"\\]|\\.)*)"\s*,`)
	defaultNamedOpen      = regexp.MustCompile(`\bassert(?:_[a-z_]+)?_snapshot!\s*\(\s*"((?:[^"\\]|\\.)*)"\s*,\s*$`)
	defaultTestAnnotation = regexp.MustCompile(`^\s*#\[[\w:]*test[\w:()="\s,]*\]`)
	defaultFuncDecl       = regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?(?:async\s+)?fn\s+([A-Za-z_][A-Za-z0-9_]*)`)
	defaultInlineMarker   = regexp.MustCompile(`@\s*(r#*"|")`)
)

// DefaultGrammar returns the grammar for the insta-style assertion
// macros: assert_snapshot!, assert_debug_snapshot!, and friends, with
// #[test]-style annotations and fn declarations.
func DefaultGrammar() Grammar {
	return Grammar{
		Head:           defaultHead,
		Named:          defaultNamed,
		NamedOpen:      defaultNamedOpen,
		TestAnnotation: defaultTestAnnotation,
		FuncDecl:       defaultFuncDecl,
		InlineMarker:   defaultInlineMarker,
		TestPrefix:     "test_",
	}
}
