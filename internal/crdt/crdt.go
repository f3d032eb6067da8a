// Package crdt defines the replication collaborator consumed by the live
// document layer, plus an in-process implementation used by the reference
// server and by tests. Conflict resolution internals are the replication
// layer's own concern; this package only promises ordered change delivery
// per document handle.
package crdt

import (
	"context"

	"chalkboard/internal/domain"
)

// DocID addresses a replicated document. Distinct from domain.RefID: the
// backend owns the mapping between the two.
type DocID string

// ChangeListener receives the document snapshot after a change has been
// applied. Snapshots are immutable; listeners must not modify them.
// Listeners on one handle are invoked in the order changes were applied.
type ChangeListener func(doc *domain.Document)

// DocHandle is a live handle onto one replicated document.
type DocHandle interface {
	// DocID returns the handle's document address.
	DocID() DocID

	// Doc fetches the current snapshot.
	Doc(ctx context.Context) (*domain.Document, error)

	// OnChange subscribes to subsequent changes and returns the
	// unsubscribe function. The subscription persists until released.
	OnChange(fn ChangeListener) (off func())

	// Change applies a mutation through the replication layer's own
	// change API, which serializes writers; callers need no extra
	// locking. The mutator sees a private copy and its error aborts the
	// change.
	Change(ctx context.Context, mutator func(*domain.Document) error) error
}

// Repo finds document handles by address.
type Repo interface {
	Find(ctx context.Context, id DocID) (DocHandle, error)
}
