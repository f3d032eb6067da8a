package livedoc

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chalkboard/internal/crdt"
	"chalkboard/internal/domain"
)

// scriptedHandle is a DocHandle whose snapshot fetch can run arbitrary test
// code first, so deliveries can be interleaved with the bind handoff.
type scriptedHandle struct {
	mu       sync.Mutex
	snapshot *domain.Document
	listener crdt.ChangeListener
	inDoc    func()
}

func (h *scriptedHandle) DocID() crdt.DocID { return "scripted" }

func (h *scriptedHandle) Doc(ctx context.Context) (*domain.Document, error) {
	if h.inDoc != nil {
		h.inDoc()
	}
	return h.snapshot, nil
}

func (h *scriptedHandle) OnChange(fn crdt.ChangeListener) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listener = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.listener = nil
	}
}

func (h *scriptedHandle) Change(ctx context.Context, mutator func(*domain.Document) error) error {
	return nil
}

func (h *scriptedHandle) deliver(doc *domain.Document) {
	h.mu.Lock()
	fn := h.listener
	h.mu.Unlock()
	if fn != nil {
		fn(doc)
	}
}

func renamed(base *domain.Document, name string) *domain.Document {
	doc := base.Clone()
	doc.Name = name
	return doc
}

func TestBindDrainsRacedChangesInOrder(t *testing.T) {
	base := domain.NewModelDocument("v0", "causal-loop")
	h := &scriptedHandle{snapshot: base}
	// Two changes land while the snapshot fetch is still in flight.
	h.inDoc = func() {
		h.deliver(renamed(base, "v1"))
		h.deliver(renamed(base, "v2"))
	}

	b, err := Bind(context.Background(), h)

	require.NoError(t, err)
	assert.Equal(t, "v2", b.Store().Snapshot().Name, "queued changes are applied oldest first")
	assert.EqualValues(t, 2, b.Store().NameVersion())
}

func TestBindHandoffNeverRegressesTheStore(t *testing.T) {
	base := domain.NewModelDocument("v0", "causal-loop")
	h := &scriptedHandle{snapshot: base}

	// A deliverer races the handoff: its early changes queue during the
	// snapshot fetch, the later ones arrive around the moment the store
	// goes live. Whatever the interleaving, the store must end at the
	// newest change, never wound back by a late-drained older snapshot.
	const changes = 50
	var wg sync.WaitGroup
	wg.Add(1)
	h.inDoc = func() {
		go func() {
			defer wg.Done()
			for i := 1; i <= changes; i++ {
				h.deliver(renamed(base, fmt.Sprintf("v%d", i)))
			}
		}()
	}

	b, err := Bind(context.Background(), h)
	require.NoError(t, err)
	wg.Wait()

	assert.Equal(t, fmt.Sprintf("v%d", changes), b.Store().Snapshot().Name)
	assert.EqualValues(t, changes, b.Store().NameVersion())
}
