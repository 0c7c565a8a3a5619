package snapfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse_YAMLHeader(t *testing.T) {
	input := strings.Join([]string{
		"---",
		"source: src/lib.rs",
		"expression: render()",
		"assertion_line: 12",
		"---",
		"line one",
		"line two",
	}, "\n") + "\n"

	snap, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if snap.Metadata.Source != "src/lib.rs" {
		t.Errorf("Source = %q, want %q", snap.Metadata.Source, "src/lib.rs")
	}
	if snap.Metadata.Expression != "render()" {
		t.Errorf("Expression = %q, want %q", snap.Metadata.Expression, "render()")
	}
	if snap.Metadata.AssertionLine != 12 {
		t.Errorf("AssertionLine = %d, want 12", snap.Metadata.AssertionLine)
	}
	if snap.Contents != "line one\nline two" {
		t.Errorf("Contents = %q", snap.Contents)
	}
}

func TestParse_LegacyHeader(t *testing.T) {
	input := strings.Join([]string{
		"source: old.rs",
		"expression: old_expr",
		"",
		"the body",
	}, "\n") + "\n"

	snap, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if snap.Metadata.Source != "old.rs" {
		t.Errorf("Source = %q, want %q", snap.Metadata.Source, "old.rs")
	}
	if snap.Metadata.Expression != "old_expr" {
		t.Errorf("Expression = %q, want %q", snap.Metadata.Expression, "old_expr")
	}
	if snap.Contents != "the body" {
		t.Errorf("Contents = %q, want %q", snap.Contents, "the body")
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lib__render.snap")

	snap := Snapshot{
		Metadata: Metadata{
			Source:     "src/lib.rs",
			Expression: "render()",
		},
		Contents: "alpha\nbeta",
	}
	if err := snap.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if loaded.ModuleName != "lib" {
		t.Errorf("ModuleName = %q, want %q", loaded.ModuleName, "lib")
	}
	if loaded.SnapshotName != "render" {
		t.Errorf("SnapshotName = %q, want %q", loaded.SnapshotName, "render")
	}
	if loaded.Contents != snap.Contents {
		t.Errorf("Contents = %q, want %q", loaded.Contents, snap.Contents)
	}
	if loaded.Metadata.Expression != "render()" {
		t.Errorf("Expression = %q, want %q", loaded.Metadata.Expression, "render()")
	}
}

func TestSave_DropsAssertionLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lib__x.snap")

	snap := Snapshot{
		Metadata: Metadata{Source: "src/lib.rs", AssertionLine: 42},
		Contents: "body",
	}
	if err := snap.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if loaded.Metadata.AssertionLine != 0 {
		t.Errorf("AssertionLine retained in committed snapshot: %d", loaded.Metadata.AssertionLine)
	}

	if err := snap.SaveCandidate(CandidatePath(path)); err != nil {
		t.Fatalf("SaveCandidate: %v", err)
	}
	cand, err := FromFile(CandidatePath(path))
	if err != nil {
		t.Fatalf("FromFile candidate: %v", err)
	}
	if cand.Metadata.AssertionLine != 42 {
		t.Errorf("candidate AssertionLine = %d, want 42", cand.Metadata.AssertionLine)
	}
}

func TestCandidateNaming(t *testing.T) {
	ref := "snapshots/lib__render.snap"
	cand := CandidatePath(ref)
	if cand != "snapshots/lib__render.snap.new" {
		t.Errorf("CandidatePath = %q", cand)
	}
	if !IsCandidate(cand) {
		t.Error("IsCandidate(candidate) = false")
	}
	if IsCandidate(ref) {
		t.Error("IsCandidate(reference) = true")
	}
	if got := ReferencePath(cand); got != ref {
		t.Errorf("ReferencePath = %q, want %q", got, ref)
	}
}

func TestLoadPendingBatch_KeepsLastRunOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".pending-snap")

	lines := []string{
		`{"run_id":"1-0","line":10,"new":{"snapshot":"stale"}}`,
		`not json at all`,
		`{"run_id":"2-0","line":10,"new":{"snapshot":"fresh"}}`,
		`{"run_id":"2-0","line":14,"new":{"snapshot":"fresh too"}}`,
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	batch, err := LoadPendingBatch(path)
	if err != nil {
		t.Fatalf("LoadPendingBatch: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("kept %d records, want 2", len(batch))
	}
	for _, rec := range batch {
		if rec.RunID != "2-0" {
			t.Errorf("record from run %q survived, want only 2-0", rec.RunID)
		}
	}
	if batch[0].New == nil || batch[0].New.Contents != "fresh" {
		t.Errorf("first record new = %+v", batch[0].New)
	}
}

func TestSavePendingBatch_EmptyRemovesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".pending-snap")
	if err := os.WriteFile(path, []byte("{}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := SavePendingBatch(path, nil); err != nil {
		t.Fatalf("SavePendingBatch: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("empty batch did not remove the file")
	}

	// Removing an already-missing file is a no-op.
	if err := SavePendingBatch(path, nil); err != nil {
		t.Fatalf("SavePendingBatch on missing file: %v", err)
	}
}
