package crdt

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chalkboard/internal/domain"
	apperrors "chalkboard/internal/errors"
)

// MemoryRepo is the in-process replication implementation backing the
// reference server and the test suite. All handles found for the same DocID
// share one document; a change through any handle is delivered, in order, to
// every subscriber on that document.
type MemoryRepo struct {
	mu     sync.RWMutex
	docs   map[DocID]*memoryDoc
	logger *zap.Logger

	findCalls atomic.Int64
}

// NewMemoryRepo creates an empty repo.
func NewMemoryRepo(logger *zap.Logger) *MemoryRepo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryRepo{docs: make(map[DocID]*memoryDoc), logger: logger}
}

// Create stores a new document and returns its address.
func (r *MemoryRepo) Create(doc *domain.Document) DocID {
	id := DocID(uuid.NewString())
	r.mu.Lock()
	r.docs[id] = &memoryDoc{id: id, doc: doc.Clone(), subs: make(map[int]ChangeListener)}
	r.mu.Unlock()
	r.logger.Debug("created document", zap.String("doc_id", string(id)))
	return id
}

// Find implements Repo.
func (r *MemoryRepo) Find(ctx context.Context, id DocID) (DocHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.findCalls.Add(1)
	r.mu.RLock()
	d, ok := r.docs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewReferenceNotFound(string(id))
	}
	return &memoryHandle{doc: d}, nil
}

// FindCalls reports how many Find calls were made. Used by tests to verify
// the dedupe invariant.
func (r *MemoryRepo) FindCalls() int64 { return r.findCalls.Load() }

// SubscriberCount reports the live subscriptions on a document. Used by
// tests to detect duplicate or leaked subscriptions.
func (r *MemoryRepo) SubscriberCount(id DocID) int {
	r.mu.RLock()
	d, ok := r.docs[id]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

// memoryDoc is the shared replicated state of one document.
type memoryDoc struct {
	id DocID

	mu      sync.Mutex
	doc     *domain.Document
	subs    map[int]ChangeListener
	nextSub int

	// deliverMu serializes change application with listener delivery so
	// subscribers observe changes in the order they were applied.
	deliverMu sync.Mutex
}

type memoryHandle struct {
	doc *memoryDoc
}

func (h *memoryHandle) DocID() DocID { return h.doc.id }

func (h *memoryHandle) Doc(ctx context.Context) (*domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.doc.mu.Lock()
	defer h.doc.mu.Unlock()
	return h.doc.doc, nil
}

func (h *memoryHandle) OnChange(fn ChangeListener) func() {
	d := h.doc
	d.mu.Lock()
	id := d.nextSub
	d.nextSub++
	d.subs[id] = fn
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		delete(d.subs, id)
		d.mu.Unlock()
	}
}

func (h *memoryHandle) Change(ctx context.Context, mutator func(*domain.Document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := h.doc

	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()

	d.mu.Lock()
	next := d.doc.Clone()
	if err := mutator(next); err != nil {
		d.mu.Unlock()
		return err
	}
	d.doc = next
	subs := make([]ChangeListener, 0, len(d.subs))
	for i := 0; i < d.nextSub; i++ {
		if fn, ok := d.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	d.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return nil
}
