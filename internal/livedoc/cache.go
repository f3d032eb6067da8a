package livedoc

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"chalkboard/internal/crdt"
	"chalkboard/internal/domain"
	"chalkboard/internal/elab"
	apperrors "chalkboard/internal/errors"
	"chalkboard/internal/observability"
	"chalkboard/internal/theory"
)

// Session is the live document cache for one editing session. It guarantees
// at most one in-flight resolve-and-bind per reference: concurrent callers
// for the same refID share the pending result instead of issuing duplicate
// backend calls or duplicate replication subscriptions.
//
// The dedupe key is the refID, never the locator: two references may alias
// the same replicated document and must still get separate cache entries.
// Successful opens are cached for the session's lifetime; failures are never
// cached, so a later call retries resolution from scratch.
type Session struct {
	resolver *Resolver
	repo     crdt.Repo
	registry *theory.Registry
	pipeline *elab.Pipeline
	logger   *zap.Logger
	metrics  *observability.Metrics

	flight singleflight.Group

	mu     sync.Mutex
	docs   map[domain.RefID]*LiveDocument
	gens   map[domain.RefID]uint64
	closed bool
}

// NewSession creates an empty live document cache.
func NewSession(
	resolver *Resolver,
	repo crdt.Repo,
	registry *theory.Registry,
	pipeline *elab.Pipeline,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		resolver: resolver,
		repo:     repo,
		registry: registry,
		pipeline: pipeline,
		logger:   logger,
		metrics:  metrics,
		docs:     make(map[domain.RefID]*LiveDocument),
		gens:     make(map[domain.RefID]uint64),
	}
}

// LiveDoc returns the live document for a reference, opening it on first
// use. Every caller for the same refID observes the same LiveDocument
// instance until it is evicted.
func (s *Session) LiveDoc(ctx context.Context, refID domain.RefID) (*LiveDocument, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, apperrors.NewConflict("session is closed", refID.String())
	}
	if ld, ok := s.docs[refID]; ok {
		s.mu.Unlock()
		s.metrics.ObserveCacheHit()
		return ld, nil
	}
	gen := s.gens[refID]
	s.mu.Unlock()
	s.metrics.ObserveCacheMiss()

	v, err, shared := s.flight.Do(refID.String(), func() (any, error) {
		return s.open(ctx, refID)
	})
	if shared {
		s.metrics.ObserveDedupeJoin()
	}
	if err != nil {
		// Failures are not cached: singleflight forgets the key once the
		// call completes, so the next caller re-attempts resolution.
		return nil, err
	}
	ld := v.(*LiveDocument)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ld.Close()
		return nil, apperrors.NewConflict("session is closed", refID.String())
	}
	if s.gens[refID] != gen {
		// The reference was evicted while this open was in flight (for
		// example after a delete). Discard the stale result and start
		// over with the new generation, mirroring the request-counter
		// gating used for debounced lookups elsewhere.
		s.mu.Unlock()
		ld.Close()
		s.logger.Debug("discarded stale live document", zap.String("ref_id", refID.String()))
		return s.LiveDoc(ctx, refID)
	}
	if existing, ok := s.docs[refID]; ok {
		s.mu.Unlock()
		ld.Close()
		return existing, nil
	}
	s.docs[refID] = ld
	s.metrics.SetLiveDocuments(len(s.docs))
	s.mu.Unlock()
	return ld, nil
}

// open performs one resolve-and-bind. Runs at most once concurrently per
// refID, under the singleflight group.
func (s *Session) open(ctx context.Context, refID domain.RefID) (*LiveDocument, error) {
	locator, err := s.resolver.Resolve(ctx, refID)
	if err != nil {
		return nil, err
	}

	handle, err := s.repo.Find(ctx, crdt.DocID(locator.DocID))
	if err != nil {
		return nil, apperrors.Wrap(err, "find replicated document")
	}

	binding, err := Bind(ctx, handle)
	if err != nil {
		return nil, apperrors.Wrap(err, "bind replicated document")
	}

	s.logger.Info("opened live document",
		zap.String("ref_id", refID.String()),
		zap.String("doc_id", locator.DocID))
	return NewLiveDocument(refID, locator, binding, s.registry, s.pipeline, s.logger), nil
}

// ClearCachedDoc evicts a reference and releases its binding. Required after
// a delete so a stale entry cannot be resurrected; the bumped generation
// also discards any open that is still in flight.
func (s *Session) ClearCachedDoc(refID domain.RefID) {
	s.mu.Lock()
	s.gens[refID]++
	// Detach any in-flight open from the key as well: a caller arriving
	// after this point holds the new generation, so joining the old
	// flight would let its stale result pass the generation check.
	s.flight.Forget(refID.String())
	ld, ok := s.docs[refID]
	if ok {
		delete(s.docs, refID)
		s.metrics.SetLiveDocuments(len(s.docs))
	}
	s.mu.Unlock()

	if ok {
		ld.Close()
		s.metrics.ObserveEviction()
		s.logger.Debug("evicted live document", zap.String("ref_id", refID.String()))
	}
}

// Close releases every cached document and rejects further use.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	docs := s.docs
	s.docs = make(map[domain.RefID]*LiveDocument)
	s.mu.Unlock()

	for _, ld := range docs {
		ld.Close()
	}
	s.metrics.SetLiveDocuments(0)
}
