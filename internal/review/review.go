// Package review drives accept/reject/skip decisions over pending
// snapshots. It is the only component that mutates the filesystem:
// file-based decisions move or delete candidate files, inline accepts
// go through the literal patcher. Operations on the same identity key
// are serialized by a per-key lease.
package review

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"snapreview/internal/patcher"
	"snapreview/internal/registry"
	"snapreview/internal/scanner"
	"snapreview/internal/snapfile"
)

// Decision is the reviewer's verdict for one pending snapshot.
type Decision int

const (
	Skip Decision = iota
	Accept
	Reject
)

func (d Decision) String() string {
	switch d {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	default:
		return "skip"
	}
}

var (
	// ErrUnknownKey is returned when no pending snapshot exists for
	// the identity key.
	ErrUnknownKey = errors.New("no pending snapshot for key")

	// ErrNoCandidate is returned when accepting a file-based pending
	// snapshot whose candidate file is gone.
	ErrNoCandidate = errors.New("no new snapshot to accept")

	// ErrNoAssertion is returned when the source file no longer has
	// an inline assertion at the recorded line.
	ErrNoAssertion = errors.New("no inline assertion at recorded line")
)

// Session orchestrates decisions over one registry.
type Session struct {
	reg   *registry.Registry
	scan  *scanner.Scanner
	patch *patcher.Patcher
	log   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSession creates a review session over the given registry.
func NewSession(reg *registry.Registry, scan *scanner.Scanner, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		reg:   reg,
		scan:  scan,
		patch: patcher.New(scan),
		log:   log,
		locks: make(map[string]*sync.Mutex),
	}
}

// Registry exposes the session's registry for listing and lookup.
func (s *Session) Registry() *registry.Registry {
	return s.reg
}

// Apply executes one decision for the pending snapshot under key.
// Skip leaves the entry untouched for a later pass. On failure the
// entry stays pending and no file is left half-written.
func (s *Session) Apply(key string, d Decision) error {
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	p, ok := s.reg.Get(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	if d == Skip {
		s.log.Debug("skipped", "key", key)
		return nil
	}

	var err error
	switch {
	case p.Kind == registry.KindFile && d == Accept:
		err = s.acceptFile(p)
	case p.Kind == registry.KindFile && d == Reject:
		err = s.rejectFile(p)
	case p.Kind == registry.KindInline && d == Accept:
		err = s.acceptInline(p)
	case p.Kind == registry.KindInline && d == Reject:
		// Discard the reported value; the source file is untouched.
		s.log.Info("rejected inline snapshot", "key", key)
	}
	if err != nil {
		return err
	}

	s.reg.Invalidate(key)
	return nil
}

// acceptFile commits the candidate as the new reference and removes
// the candidate. The candidate is re-encoded through the snapshot
// model so candidate-only metadata does not leak into the reference.
func (s *Session) acceptFile(p registry.Pending) error {
	snap, err := snapfile.FromFile(p.CandidatePath)
	if err != nil {
		if errors.Is(err, snapfile.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNoCandidate, p.Key)
		}
		return err
	}
	data, err := snap.ReferenceBytes()
	if err != nil {
		return err
	}
	if err := patcher.WriteFileAtomic(p.ReferencePath, data, 0644); err != nil {
		return err
	}
	if err := os.Remove(p.CandidatePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	s.log.Info("accepted snapshot", "key", p.Key)
	return nil
}

// rejectFile deletes the candidate. A missing candidate means the
// entry was already resolved elsewhere; that is a no-op.
func (s *Session) rejectFile(p registry.Pending) error {
	err := os.Remove(p.CandidatePath)
	if os.IsNotExist(err) {
		s.log.Info("candidate already gone", "key", p.Key)
		return nil
	}
	if err != nil {
		return err
	}
	s.log.Info("rejected snapshot", "key", p.Key)
	return nil
}

// acceptInline patches the source file literal with the reported new
// value. Patcher verification failures abort before anything is
// written.
func (s *Session) acceptInline(p registry.Pending) error {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return err
	}
	text := string(data)

	var target *scanner.Assertion
	for _, a := range s.scan.ScanFile(p.Path, text) {
		if a.Line == p.Line && a.Inline {
			found := a
			target = &found
			break
		}
	}
	if target == nil {
		return fmt.Errorf("%w: %s", ErrNoAssertion, p.Key)
	}

	patched, err := s.patch.Patch(text, *target, p.NewValue)
	if err != nil {
		return err
	}
	if patched == text {
		s.log.Info("inline snapshot already up to date", "key", p.Key)
		return nil
	}
	if err := patcher.WriteFileAtomic(p.Path, []byte(patched), 0644); err != nil {
		return err
	}
	s.log.Info("accepted inline snapshot", "key", p.Key)
	return nil
}

// keyLock returns the exclusive lease for one identity key.
func (s *Session) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}
