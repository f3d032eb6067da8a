package reactive

import (
	"sync"

	"github.com/google/uuid"

	"chalkboard/internal/domain"
)

// Store holds the current document snapshot together with per-region version
// counters. Applying a patch list bumps only the versions of the regions the
// patches touch, which is what lets memos depending on untouched regions skip
// recomputation: a change to cell 5 of 200 leaves the versions of cells 0-4
// unchanged.
//
// Snapshots handed out by the store are treated as immutable; every change
// installs a fresh snapshot, so readers never observe a torn document.
type Store struct {
	mu  sync.RWMutex
	doc *domain.Document

	version       uint64
	nameVersion   uint64
	theoryVersion uint64
	orderVersion  uint64
	cellVersions  map[uuid.UUID]uint64

	subs    map[int]func([]Patch)
	nextSub int
}

// NewStore seeds a store with the initial snapshot.
func NewStore(doc *domain.Document) *Store {
	s := &Store{
		doc:          doc,
		cellVersions: make(map[uuid.UUID]uint64),
		subs:         make(map[int]func([]Patch)),
	}
	for _, c := range doc.Notebook.Cells {
		s.cellVersions[c.ID()] = 1
	}
	return s
}

// Snapshot returns the current document. Callers must not mutate it.
func (s *Store) Snapshot() *domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// Apply installs a new snapshot described by patches, bumping only the
// touched version counters, then notifies subscribers in registration order.
// Application is synchronous and runs to completion; with changes delivered
// one at a time this is what keeps readers free of tearing.
func (s *Store) Apply(doc *domain.Document, patches []Patch) {
	s.mu.Lock()
	s.doc = doc
	if len(patches) > 0 {
		s.version++
	}
	for _, p := range patches {
		s.bump(p)
	}
	subs := make([]func([]Patch), 0, len(s.subs))
	for i := 0; i < s.nextSub; i++ {
		if fn, ok := s.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	s.mu.Unlock()

	if len(patches) == 0 {
		return
	}
	for _, fn := range subs {
		fn(patches)
	}
}

func (s *Store) bump(p Patch) {
	if id, ok := p.CellPath(); ok {
		switch p.Op {
		case OpInsertCell:
			s.cellVersions[id] = 1
			s.orderVersion++
		case OpRemoveCell:
			delete(s.cellVersions, id)
			s.orderVersion++
		default:
			s.cellVersions[id]++
		}
		return
	}
	if len(p.Path) == 0 {
		return
	}
	switch p.Path[0] {
	case PathName:
		s.nameVersion++
	case PathTheory:
		s.theoryVersion++
	case PathNotebook:
		s.orderVersion++
	case PathLinks:
		// Links never change after creation in practice; fold into the
		// document version only.
	}
}

// Version is bumped on every applied change.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// NameVersion tracks the document name only.
func (s *Store) NameVersion() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nameVersion
}

// TheoryVersion tracks the theory field only.
func (s *Store) TheoryVersion() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theoryVersion
}

// OrderVersion tracks cell insertion, removal and reordering.
func (s *Store) OrderVersion() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orderVersion
}

// CellVersion tracks content changes of a single cell. Zero means the cell
// is not present.
func (s *Store) CellVersion(id uuid.UUID) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cellVersions[id]
}

// Subscribe registers a patch listener and returns its unsubscribe function.
func (s *Store) Subscribe(fn func([]Patch)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}
