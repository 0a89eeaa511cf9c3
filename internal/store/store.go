// Package store owns session instances and mediates concurrent access.
// Sessions are process-local; the only durable form is an explicit JSON
// snapshot written for debugging or resume.
package store

import (
	"context"
	"time"

	"github.com/rosettalab/xlate/internal/models"
)

// Mutator is a function run under a session's exclusive lock. The ctx it
// receives is cancelled if the session is interrupted (closed) while the
// mutator is suspended on a collaborator call. Mutations are committed only
// when the mutator returns nil.
type Mutator func(ctx context.Context, s *models.Session) error

// Store is the session persistence interface.
type Store interface {
	// Create inserts the session, assigning a fresh id when absent.
	// An explicit id that already exists is a collision error.
	Create(ctx context.Context, s *models.Session) (string, error)

	// Get returns a deep-copied snapshot of the session.
	Get(ctx context.Context, id string) (*models.Session, error)

	// WithSession runs fn under the session's exclusive lock. At most one
	// mutator runs per session at any time; mutators on distinct sessions
	// proceed in parallel.
	WithSession(ctx context.Context, id string, fn Mutator) error

	// List returns snapshots of all sessions.
	List(ctx context.Context) ([]*models.Session, error)

	// Remove deletes the session.
	Remove(ctx context.Context, id string) error

	// Interrupt cancels the collaborator context of any in-flight mutator on
	// the session. Used by close so a blocked advance unwinds promptly.
	Interrupt(id string)

	// Sweep removes sessions idle longer than ttl and returns how many were
	// removed. A sweep never races a mutator on the same session.
	Sweep(now time.Time, ttl time.Duration) int
}
