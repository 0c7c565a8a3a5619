package review

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"

	"snapreview/internal/registry"
	"snapreview/internal/snapfile"
)

// Diff renders a unified diff of old versus new content for one
// pending snapshot, for display before a decision. context is the
// number of context lines per hunk; zero means the default of 4.
func (s *Session) Diff(key string, context int) (string, error) {
	p, ok := s.reg.Get(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if context <= 0 {
		context = 4
	}

	var oldText, newText, fromFile, toFile string
	switch p.Kind {
	case registry.KindFile:
		if ref, err := snapfile.FromFile(p.ReferencePath); err == nil {
			oldText = ref.Contents
		}
		cand, err := snapfile.FromFile(p.CandidatePath)
		if err != nil {
			return "", fmt.Errorf("reading candidate: %w", err)
		}
		newText = cand.Contents
		fromFile = p.ReferencePath
		toFile = p.CandidatePath
	case registry.KindInline:
		oldText = p.OldValue
		newText = p.NewValue
		fromFile = p.Key + " (old)"
		toFile = p.Key + " (new)"
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldText),
		B:        difflib.SplitLines(newText),
		FromFile: fromFile,
		ToFile:   toFile,
		Context:  context,
	})
	if err != nil {
		return "", err
	}
	return diff, nil
}
