package sessions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrLockTimeout is returned when a session lock cannot be acquired before
// the configured acquire timeout elapses.
var ErrLockTimeout = errors.New("sessions: lock acquire timed out")

// ErrAgentBusy is returned when a project's advisory lock is already held by
// another process (§4.9: "Acquire a project-scoped advisory lock... If
// another process holds it, fail fast with AgentBusy").
var ErrAgentBusy = errors.New("sessions: project is locked by another process (AgentBusy)")

// Locker provides a process-safe session lock interface.
type Locker interface {
	Lock(ctx context.Context, sessionID string) error
	Unlock(sessionID string)
}

// LocalLocker wraps the in-memory SessionLocker with a context-aware interface.
type LocalLocker struct {
	inner *SessionLocker
}

// NewLocalLocker creates a LocalLocker using the default timeout.
func NewLocalLocker(timeout time.Duration) *LocalLocker {
	return &LocalLocker{inner: NewSessionLocker(timeout)}
}

// Lock acquires a local lock using the provided context.
func (l *LocalLocker) Lock(ctx context.Context, sessionID string) error {
	if l == nil || l.inner == nil {
		return errors.New("session locker unavailable")
	}
	return l.inner.LockWithContext(ctx, sessionID)
}

// Unlock releases the local lock.
func (l *LocalLocker) Unlock(sessionID string) {
	if l == nil || l.inner == nil {
		return
	}
	l.inner.Unlock(sessionID)
}

// ProjectLock is the project-scoped advisory lock from §4.9: a single lock
// file at "<project-root>/.<tool>/lock", held for the lifetime of one
// orchestrator process. A second process that cannot acquire it fails fast
// with ErrAgentBusy rather than silently operating on the same project.
type ProjectLock struct {
	path string
	flk  *flock.Flock
}

// NewProjectLock returns a ProjectLock for the lock file under dotDir
// (typically "<project-root>/.<tool>"). The directory is created if missing.
func NewProjectLock(dotDir string) (*ProjectLock, error) {
	if err := os.MkdirAll(dotDir, 0o755); err != nil {
		return nil, fmt.Errorf("sessions: create lock dir: %w", err)
	}
	path := filepath.Join(dotDir, "lock")
	return &ProjectLock{path: path, flk: flock.New(path)}, nil
}

// Acquire takes the advisory lock without blocking. If another process
// already holds it, it returns ErrAgentBusy immediately (§4.9's fail-fast
// requirement, not a queued wait).
func (p *ProjectLock) Acquire(ctx context.Context) error {
	ok, err := p.flk.TryLock()
	if err != nil {
		return fmt.Errorf("sessions: acquire project lock: %w", err)
	}
	if !ok {
		return ErrAgentBusy
	}
	return nil
}

// Release drops the advisory lock. Called at orchestrator shutdown.
func (p *ProjectLock) Release() error {
	if p == nil || p.flk == nil {
		return nil
	}
	return p.flk.Unlock()
}

// Path returns the underlying lock file path.
func (p *ProjectLock) Path() string { return p.path }
