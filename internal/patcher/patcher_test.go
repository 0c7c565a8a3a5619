package patcher

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"snapreview/internal/scanner"
)

func newPatcher() *Patcher {
	return New(scanner.New(scanner.DefaultGrammar()))
}

func scanOne(t *testing.T, text string) scanner.Assertion {
	t.Helper()
	got := scanner.New(scanner.DefaultGrammar()).ScanFile("src/lib.rs", text)
	if len(got) != 1 {
		t.Fatalf("found %d assertions, want 1", len(got))
	}
	if !got[0].Inline {
		t.Fatal("assertion is not inline")
	}
	return got[0]
}

func testSource(literal string) string {
	return strings.Join([]string{
		"#[test]",
		"fn test_render() {",
		"    assert_snapshot!(render(), @" + literal + ");",
		"}",
		"",
	}, "\n")
}

func TestPatch_SimpleValue(t *testing.T) {
	src := testSource(`"old"`)
	a := scanOne(t, src)

	patched, err := newPatcher().Patch(src, a, "new")
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	want := testSource(`"new"`)
	if patched != want {
		t.Errorf("patched text:\n%s\nwant:\n%s", patched, want)
	}
}

func TestPatch_Idempotent(t *testing.T) {
	tests := []struct {
		name    string
		literal string
		value   string
	}{
		{"plain", `"same"`, "same"},
		{"raw single line", `r#"has "quote""#`, `has "quote"`},
		{"raw multiline", "r#\"\n    line one\n    line two\n    \"#", "line one\nline two"},
		{"wide fence kept", `r###"plain enough"###`, "plain enough"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := testSource(tt.literal)
			a := scanOne(t, src)

			patched, err := newPatcher().Patch(src, a, tt.value)
			if err != nil {
				t.Fatalf("Patch: %v", err)
			}
			if patched != src {
				t.Errorf("patch with current value changed the file:\n%s\nwas:\n%s", patched, src)
			}
		})
	}
}

func TestPatch_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"plain", "hello world"},
		{"with quote", `say "hi"`},
		{"multiline", "line one\nline two\nline three"},
		{"multiline with blank", "first\n\nlast"},
		{"with backslash", `a\b`},
		{"quote run", `before """" after`},
	}

	p := newPatcher()
	s := scanner.New(scanner.DefaultGrammar())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := testSource(`"old"`)
			a := scanOne(t, src)

			patched, err := p.Patch(src, a, tt.value)
			if err != nil {
				t.Fatalf("Patch: %v", err)
			}

			rescanned := s.ScanFile("src/lib.rs", patched)
			if len(rescanned) != 1 || !rescanned[0].Inline {
				t.Fatalf("patched file does not rescan to one inline assertion")
			}
			lit, err := scanner.ParseLiteral(patched, rescanned[0].LiteralOffset)
			if err != nil {
				t.Fatalf("ParseLiteral after patch: %v", err)
			}
			if got := literalValue(lit, patched); got != tt.value {
				t.Errorf("read back %q, want %q", got, tt.value)
			}
		})
	}
}

func TestPatch_NormalizesReportedValue(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"trailing newline", "a\nb\n", "a\nb"},
		{"trailing spaces", "value  ", "value"},
		{"leading newlines", "\n\nvalue", "value"},
		{"crlf", "a\r\nb", "a\nb"},
	}

	p := newPatcher()
	s := scanner.New(scanner.DefaultGrammar())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := testSource(`"old"`)
			a := scanOne(t, src)

			patched, err := p.Patch(src, a, tt.value)
			if err != nil {
				t.Fatalf("Patch: %v", err)
			}

			rescanned := s.ScanFile("src/lib.rs", patched)
			if len(rescanned) != 1 || !rescanned[0].Inline {
				t.Fatalf("patched file does not rescan to one inline assertion")
			}
			lit, err := scanner.ParseLiteral(patched, rescanned[0].LiteralOffset)
			if err != nil {
				t.Fatalf("ParseLiteral after patch: %v", err)
			}
			if got := literalValue(lit, patched); got != tt.want {
				t.Errorf("read back %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPatch_MultilineIndentation(t *testing.T) {
	src := testSource(`"old"`)
	a := scanOne(t, src)

	patched, err := newPatcher().Patch(src, a, "alpha\nbeta")
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	want := testSource("r#\"\n    alpha\n    beta\n    \"#")
	if patched != want {
		t.Errorf("patched text:\n%s\nwant:\n%s", patched, want)
	}
}

func TestPatch_NeverNarrowsFence(t *testing.T) {
	src := testSource(`r####"wide "fence" here"####`)
	a := scanOne(t, src)

	patched, err := newPatcher().Patch(src, a, `new "value"`)
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if !strings.Contains(patched, `r####"new "value""####`) {
		t.Errorf("fence narrowed:\n%s", patched)
	}
}

func TestPatch_NotInline(t *testing.T) {
	src := "#[test]\nfn test_file_based() {\n    assert_snapshot!(render());\n}\n"
	got := scanner.New(scanner.DefaultGrammar()).ScanFile("src/lib.rs", src)
	if len(got) != 1 {
		t.Fatalf("found %d assertions, want 1", len(got))
	}

	_, err := newPatcher().Patch(src, got[0], "value")
	if err != ErrNotInline {
		t.Errorf("error = %v, want ErrNotInline", err)
	}
}

func TestPatch_FenceWidening_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	p := newPatcher()
	s := scanner.New(scanner.DefaultGrammar())

	properties.Property("any quote run reads back exactly", prop.ForAll(
		func(prefix string, quotes uint8, suffix string) bool {
			value := prefix + strings.Repeat(`"`, int(quotes%8)+1) + suffix

			src := testSource(`"old"`)
			a := scanOne(t, src)

			patched, err := p.Patch(src, a, value)
			if err != nil {
				return false
			}
			rescanned := s.ScanFile("src/lib.rs", patched)
			if len(rescanned) != 1 || !rescanned[0].Inline {
				return false
			}
			lit, err := scanner.ParseLiteral(patched, rescanned[0].LiteralOffset)
			if err != nil {
				return false
			}
			return literalValue(lit, patched) == value
		},
		gen.AlphaString(),
		gen.UInt8(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestMaxQuoteRun(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"plain", 0},
		{`a"b`, 1},
		{`a""b""""c`, 4},
		{`""`, 2},
	}
	for _, tt := range tests {
		if got := maxQuoteRun(tt.in); got != tt.want {
			t.Errorf("maxQuoteRun(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
