package livedoc

import (
	"context"
	"sync"

	"chalkboard/internal/crdt"
	"chalkboard/internal/domain"
	"chalkboard/internal/reactive"
)

// Binding converts a document handle's async snapshot-plus-events surface
// into a synchronous-looking reactive store. Every incoming change is turned
// into an explicit patch list and applied structurally, so subscribers and
// memos depending on untouched regions are not invalidated.
//
// The binding holds its change subscription until Release is called.
// Transport-level reconnection is the replication layer's job; the binding
// performs no retries of its own.
type Binding struct {
	handle crdt.DocHandle

	// mu serializes every store application and orders the bind handoff:
	// until live is set, changes queue in pending; the queue is drained
	// and live set in one critical section, so no direct delivery can
	// interleave with older queued snapshots.
	mu      sync.Mutex
	live    bool
	store   *reactive.Store
	pending []*domain.Document
	off     func()
}

// Bind subscribes to the handle, fetches the initial snapshot, and seeds the
// store with it. Changes that race the initial fetch are buffered and
// applied in arrival order before any later change.
func Bind(ctx context.Context, handle crdt.DocHandle) (*Binding, error) {
	b := &Binding{handle: handle}

	b.off = handle.OnChange(b.onChange)

	snapshot, err := handle.Doc(ctx)
	if err != nil {
		b.off()
		return nil, err
	}

	b.mu.Lock()
	b.store = reactive.NewStore(snapshot)
	for _, doc := range b.pending {
		b.applyLocked(doc)
	}
	b.pending = nil
	b.live = true
	b.mu.Unlock()
	return b, nil
}

func (b *Binding) onChange(doc *domain.Document) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.live {
		b.pending = append(b.pending, doc)
		return
	}
	b.applyLocked(doc)
}

// applyLocked diffs against the current snapshot and applies the patches.
// Store subscribers run inside this call and must not mutate the document.
func (b *Binding) applyLocked(doc *domain.Document) {
	old := b.store.Snapshot()
	patches := reactive.Diff(old, doc)
	b.store.Apply(doc, patches)
}

// Store returns the reactive store seeded by this binding.
func (b *Binding) Store() *reactive.Store {
	return b.store
}

// ChangeDoc is the single mutation entry point. It serializes writes through
// the replication layer's own change API; no extra locking is needed because
// the layer's causal ordering subsumes it.
func (b *Binding) ChangeDoc(ctx context.Context, mutator func(*domain.Document) error) error {
	return b.handle.Change(ctx, mutator)
}

// Release drops the change subscription. The binding must not be used after
// release.
func (b *Binding) Release() {
	if b.off != nil {
		b.off()
		b.off = nil
	}
}
