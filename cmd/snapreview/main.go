package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"snapreview/internal/cli"
	"snapreview/internal/config"
	"snapreview/internal/locator"
	"snapreview/internal/logging"
	"snapreview/internal/registry"
	"snapreview/internal/review"
	"snapreview/internal/runner"
	"snapreview/internal/scanner"
	"snapreview/internal/watcher"
)

func main() {
	exitCode := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	os.Exit(exitCode)
}

// run orchestrates the full execution flow. It returns an exit code
// (0 for success, non-zero for failure). This function is separated
// from main() to enable testing.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd, err := cli.ParseArgs(args)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}

	cfg, err := config.Load(cmd.ConfigPath)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}

	// CLI flags win over file and environment.
	if cmd.Strict {
		cfg.Search.StrictAmbiguity = true
	}
	if cmd.LogLevel != "" {
		cfg.Logging.Level = cmd.LogLevel
	}
	if cmd.LogJSON {
		cfg.Logging.Format = "json"
	}
	if cmd.Context > 0 {
		cfg.Review.ContextLines = cmd.Context
	}

	log := logging.New(stderr, logging.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Component: "snapreview",
	})

	grammar, err := cfg.ScannerGrammar()
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}
	scan := scanner.New(grammar)

	roots := cmd.Roots
	if len(roots) == 0 {
		roots = []string{"."}
	}

	app := &app{
		cfg:    cfg,
		log:    log,
		scan:   scan,
		tool:   runner.New(cfg.Review.Tool, cfg.Review.ToolArgs, log),
		roots:  roots,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}

	switch cmd.Subcommand {
	case cli.SubcommandList:
		return app.runList(cmd)
	case cli.SubcommandReview:
		return app.runReview()
	case cli.SubcommandAccept:
		return app.runDecision(cmd, review.Accept)
	case cli.SubcommandReject:
		return app.runDecision(cmd, review.Reject)
	case cli.SubcommandLocate:
		return app.runLocate(cmd)
	case cli.SubcommandWatch:
		return app.runWatch()
	}
	return 2
}

type app struct {
	cfg   *config.Config
	log   *slog.Logger
	scan  *scanner.Scanner
	tool  *runner.Runner
	roots []string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// newSession builds a review session over a freshly scanned registry.
// When the external tool is not on PATH, inline discovery falls back
// to reading pending batch files off disk directly.
func (a *app) newSession() (*review.Session, error) {
	reg := registry.New()

	if err := reg.Scan(a.roots, a.tool); err != nil {
		if !runner.IsNotFound(err) {
			return nil, err
		}
		a.log.Warn("reviewer tool not found, reading pending batches directly",
			"tool", a.cfg.Review.Tool)
		if serr := reg.Scan(a.roots, registry.BatchDiscoverer{Log: a.log}); serr != nil {
			return nil, serr
		}
	}
	return review.NewSession(reg, a.scan, a.log), nil
}

func (a *app) runList(cmd cli.Command) int {
	sess, err := a.newSession()
	if err != nil {
		fmt.Fprintln(a.stderr, "Error:", err)
		return 1
	}

	entries := sess.Registry().List()
	if cmd.JSONOutput {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			fmt.Fprintln(a.stderr, "Error:", err)
			return 1
		}
		return 0
	}

	if len(entries) == 0 {
		fmt.Fprintln(a.stdout, "no pending snapshots")
		return 0
	}
	for _, p := range entries {
		fmt.Fprintf(a.stdout, "%-6s %s\n", p.Kind, p.Key)
	}
	fmt.Fprintf(a.stdout, "%d pending snapshot(s)\n", len(entries))
	return 0
}

// runReview walks pending snapshots interactively, showing a diff and
// reading one decision per entry from stdin.
func (a *app) runReview() int {
	sess, err := a.newSession()
	if err != nil {
		fmt.Fprintln(a.stderr, "Error:", err)
		return 1
	}

	entries := sess.Registry().List()
	if len(entries) == 0 {
		fmt.Fprintln(a.stdout, "no pending snapshots")
		return 0
	}

	in := bufio.NewScanner(a.stdin)
	failures := 0
	for i, p := range entries {
		fmt.Fprintf(a.stdout, "\n[%d/%d] %s (%s)\n", i+1, len(entries), p.Key, p.Kind)
		diff, derr := sess.Diff(p.Key, a.cfg.Review.ContextLines)
		if derr != nil {
			fmt.Fprintln(a.stderr, "Error:", derr)
			failures++
			continue
		}
		fmt.Fprint(a.stdout, diff)

		d, quit := readDecision(a.stdout, in)
		if quit {
			break
		}
		if err := sess.Apply(p.Key, d); err != nil {
			fmt.Fprintln(a.stderr, "Error:", err)
			failures++
		}
	}

	fmt.Fprintf(a.stdout, "\n%d snapshot(s) remaining\n", sess.Registry().Len())
	if failures > 0 {
		return 1
	}
	return 0
}

// readDecision prompts until it gets a usable answer or input runs
// out. Running out of input quits the session.
func readDecision(stdout io.Writer, in *bufio.Scanner) (review.Decision, bool) {
	for {
		fmt.Fprint(stdout, "accept, reject, skip, or quit? [a/r/s/q] ")
		if !in.Scan() {
			return review.Skip, true
		}
		switch strings.ToLower(strings.TrimSpace(in.Text())) {
		case "a", "accept":
			return review.Accept, false
		case "r", "reject":
			return review.Reject, false
		case "s", "skip", "":
			return review.Skip, false
		case "q", "quit":
			return review.Skip, true
		}
	}
}

// runDecision applies one non-interactive decision to a single key or
// to every pending entry. With --delegate the decision is handed to
// the external reviewer tool instead of being applied locally.
func (a *app) runDecision(cmd cli.Command, d review.Decision) int {
	sess, err := a.newSession()
	if err != nil {
		fmt.Fprintln(a.stderr, "Error:", err)
		return 1
	}

	keys := []string{cmd.Snapshot}
	if cmd.All {
		keys = keys[:0]
		for _, p := range sess.Registry().List() {
			keys = append(keys, p.Key)
		}
	}

	failures := 0
	for _, key := range keys {
		if cmd.Delegate {
			if err := a.delegate(sess, key, d); err != nil {
				fmt.Fprintln(a.stderr, "Error:", err)
				failures++
				continue
			}
			fmt.Fprintf(a.stdout, "delegated %s for %s\n", d, key)
			continue
		}
		if err := sess.Apply(key, d); err != nil {
			fmt.Fprintln(a.stderr, "Error:", err)
			failures++
			continue
		}
		fmt.Fprintf(a.stdout, "%sed %s\n", d, key)
	}
	if failures > 0 {
		return 1
	}
	return 0
}

// delegate hands one decision to the external reviewer tool. The
// entry must still be pending; the tool owns the mutation.
func (a *app) delegate(sess *review.Session, key string, d review.Decision) error {
	p, ok := sess.Registry().Get(key)
	if !ok {
		return fmt.Errorf("%w: %s", review.ErrUnknownKey, key)
	}
	inline := p.Kind == registry.KindInline
	return a.tool.Delegate(context.Background(), d.String(), key, inline)
}

func (a *app) runLocate(cmd cli.Command) int {
	data, err := os.ReadFile(cmd.File)
	if err != nil {
		fmt.Fprintln(a.stderr, "Error:", err)
		return 1
	}

	opts := locator.Options{
		Roots:           a.roots,
		SnapshotDir:     a.cfg.Search.SnapshotDir,
		Extension:       a.cfg.Search.Extension,
		StrictAmbiguity: a.cfg.Search.StrictAmbiguity,
	}
	loc := locator.New(a.scan, opts)

	match, err := loc.Locate(
		locator.Document{Path: cmd.File, Text: string(data)},
		locator.Position{Line: cmd.Line, Column: cmd.Column},
	)
	if err != nil {
		fmt.Fprintln(a.stderr, "Error:", err)
		return 1
	}

	if cmd.JSONOutput {
		out := map[string]any{
			"kind":        match.Kind.String(),
			"identityKey": match.IdentityKey,
			"function":    match.Function,
			"ordinal":     match.Ordinal,
		}
		if match.Kind == locator.KindFile {
			out["derivedName"] = match.DerivedName
			out["snapshotPath"] = match.SnapshotPath
		}
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintln(a.stderr, "Error:", err)
			return 1
		}
		return 0
	}

	fmt.Fprintf(a.stdout, "kind:     %s\n", match.Kind)
	fmt.Fprintf(a.stdout, "key:      %s\n", match.IdentityKey)
	if match.Function != "" {
		fmt.Fprintf(a.stdout, "function: %s\n", match.Function)
	}
	if match.Ordinal > 0 {
		fmt.Fprintf(a.stdout, "ordinal:  %d\n", match.Ordinal)
	}
	if match.Kind == locator.KindFile {
		fmt.Fprintf(a.stdout, "name:     %s\n", match.DerivedName)
		fmt.Fprintf(a.stdout, "snapshot: %s\n", match.SnapshotPath)
	}
	return 0
}

// runWatch rescans on filesystem changes and reports the pending
// count until interrupted.
func (a *app) runWatch() int {
	sess, err := a.newSession()
	if err != nil {
		fmt.Fprintln(a.stderr, "Error:", err)
		return 1
	}

	rescan := func() {
		fresh, err := a.newSession()
		if err != nil {
			a.log.Warn("rescan failed", "error", err)
			return
		}
		sess = fresh
		fmt.Fprintf(a.stdout, "%d pending snapshot(s)\n", sess.Registry().Len())
	}

	debounce := time.Duration(a.cfg.Watch.DebounceMS) * time.Millisecond
	w, err := watcher.New(debounce, rescan, a.log)
	if err != nil {
		fmt.Fprintln(a.stderr, "Error:", err)
		return 1
	}
	defer w.Close()

	for _, root := range a.roots {
		if err := w.AddRoot(root); err != nil {
			fmt.Fprintln(a.stderr, "Error:", err)
			return 1
		}
	}
	w.Start()

	fmt.Fprintf(a.stdout, "watching %s, %d pending snapshot(s)\n",
		strings.Join(a.roots, ", "), sess.Registry().Len())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	fmt.Fprintln(a.stdout, "stopping")
	return 0
}
