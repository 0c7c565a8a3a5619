// Package runner invokes the external reviewer tool: streaming
// pending-snapshot discovery and accept/reject delegation. Calls are
// blocking; cancellation and timeouts belong to the caller's context.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"

	"snapreview/internal/registry"
)

// ErrNonZeroExit is returned when the external command exits with a
// failure status. It is never folded into a silent success.
var ErrNonZeroExit = errors.New("external command failed")

// Runner spawns the configured reviewer command.
type Runner struct {
	// Command is the reviewer executable.
	Command string
	// BaseArgs are prepended to every invocation.
	BaseArgs []string

	Log *slog.Logger
}

// New creates a runner for the given reviewer command.
func New(command string, baseArgs []string, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{Command: command, BaseArgs: baseArgs, Log: log}
}

// Discover runs the reviewer's pending-snapshots listing in root and
// parses its JSON-lines output. Malformed lines are skipped inside
// the parser; a spawn failure or non-zero exit is an explicit error.
func (r *Runner) Discover(root string) ([]registry.DiscoveryEntry, error) {
	return r.DiscoverContext(context.Background(), root)
}

// DiscoverContext is Discover with caller-owned cancellation.
func (r *Runner) DiscoverContext(ctx context.Context, root string) ([]registry.DiscoveryEntry, error) {
	args := append(append([]string{}, r.BaseArgs...), "pending-snapshots", "--as-json")
	cmd := exec.CommandContext(ctx, r.Command, args...)
	cmd.Dir = root

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawning %s: %w", r.Command, err)
	}

	entries, skipped, perr := registry.ParseDiscoveryStream(stdout, r.Log)
	werr := cmd.Wait()
	if perr != nil {
		return nil, perr
	}
	if werr != nil {
		return nil, fmt.Errorf("%w: %v", ErrNonZeroExit, werr)
	}
	if skipped > 0 {
		r.Log.Warn("discovery stream had malformed lines", "root", root, "skipped", skipped)
	}
	return entries, nil
}

// Delegate invokes the reviewer with an accept or reject operation
// for one identity key. Inline entries pass the key through the
// --snapshot argument. Success is exit code zero, nothing else.
func (r *Runner) Delegate(ctx context.Context, operation, identityKey string, inline bool) error {
	if operation != "accept" && operation != "reject" {
		return fmt.Errorf("unsupported operation %q", operation)
	}
	args := append(append([]string{}, r.BaseArgs...), operation)
	if inline {
		args = append(args, "--snapshot", identityKey)
	}

	cmd := exec.CommandContext(ctx, r.Command, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v: %s", ErrNonZeroExit, r.Command, operation, err, out)
	}
	r.Log.Debug("delegated operation", "operation", operation, "key", identityKey)
	return nil
}

// IsNotFound reports whether the error means the reviewer executable
// could not be found.
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}
