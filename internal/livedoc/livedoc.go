package livedoc

import (
	"context"

	"go.uber.org/zap"

	"chalkboard/internal/domain"
	"chalkboard/internal/elab"
	apperrors "chalkboard/internal/errors"
	"chalkboard/internal/reactive"
	"chalkboard/internal/theory"
)

// LiveDocument is the per-editing-session aggregate for one open reference:
// the reactive store, the replication binding, the caller's permissions, and
// the memoized values derived from the document's formal content. It is
// created when a reference is opened, destroyed when the view closes, and
// never persisted.
type LiveDocument struct {
	refID    domain.RefID
	locator  domain.DocumentLocator
	binding  *Binding
	registry *theory.Registry
	pipeline *elab.Pipeline
	logger   *zap.Logger

	// Derived values are memoized under explicit content keys: informal
	// edits change neither key, so they never trigger re-elaboration.
	formalMemo reactive.Memo[string, []domain.ModelJudgment]
	validMemo  reactive.Memo[validationKey, *elab.ValidatedModel]
}

// validationKey invalidates the validated model exactly when the formal
// content or the effective theory changes.
type validationKey struct {
	fingerprint string
	theoryID    string
}

// NewLiveDocument assembles a live document around an established binding.
func NewLiveDocument(
	refID domain.RefID,
	locator domain.DocumentLocator,
	binding *Binding,
	registry *theory.Registry,
	pipeline *elab.Pipeline,
	logger *zap.Logger,
) *LiveDocument {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LiveDocument{
		refID:    refID,
		locator:  locator,
		binding:  binding,
		registry: registry,
		pipeline: pipeline,
		logger:   logger,
	}
}

// RefID returns the reference this document was opened through.
func (ld *LiveDocument) RefID() domain.RefID { return ld.refID }

// Locator returns the resolved locator, including the soft-delete flag.
func (ld *LiveDocument) Locator() domain.DocumentLocator { return ld.locator }

// Permissions returns the caller's effective permission level.
func (ld *LiveDocument) Permissions() domain.PermissionLevel { return ld.locator.MaxLevel }

// Store exposes the reactive store for fine-grained subscriptions.
func (ld *LiveDocument) Store() *reactive.Store { return ld.binding.Store() }

// Doc returns the current document snapshot. Callers must not mutate it;
// all writes go through ChangeDoc.
func (ld *LiveDocument) Doc() *domain.Document { return ld.binding.Store().Snapshot() }

// FormalJudgments returns the ordered formal content, memoized on the
// formal fingerprint so prose edits reuse the previous slice.
func (ld *LiveDocument) FormalJudgments() []domain.ModelJudgment {
	doc := ld.Doc()
	fp := doc.Notebook.FormalFingerprint()
	return ld.formalMemo.Get(fp, func() []domain.ModelJudgment {
		return doc.Notebook.FormalJudgments()
	})
}

// Theory resolves the document's current theory.
func (ld *LiveDocument) Theory(ctx context.Context) (*theory.Theory, error) {
	return ld.registry.Get(ctx, ld.Doc().TheoryID)
}

// ValidatedModel elaborates and validates the formal content under the
// document's theory. The second return is false while the theory lookup has
// not resolved: callers treat that as "loading", never as invalid. Once the
// theory is resolved the result is always exactly one of Valid, Invalid or
// Illformed.
func (ld *LiveDocument) ValidatedModel(ctx context.Context) (*elab.ValidatedModel, bool) {
	doc := ld.Doc()
	th, err := ld.registry.Get(ctx, doc.TheoryID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			// The theory id is genuinely unknown: content cannot
			// elaborate, which is an Illformed outcome, not a loading
			// state.
			return elab.Illformed(err), true
		}
		ld.logger.Debug("theory lookup pending",
			zap.String("theory_id", doc.TheoryID), zap.Error(err))
		return nil, false
	}

	key := validationKey{
		fingerprint: doc.Notebook.FormalFingerprint(),
		theoryID:    th.ID,
	}
	result := ld.validMemo.Get(key, func() *elab.ValidatedModel {
		return ld.pipeline.Validate(ctx, ld.FormalJudgments(), th)
	})
	return result, true
}

// ChangeDoc mutates the document through the binding's single write entry
// point, enforcing write permission first.
func (ld *LiveDocument) ChangeDoc(ctx context.Context, mutator func(*domain.Document) error) error {
	if !ld.locator.MaxLevel.AtLeast(domain.PermissionWrite) {
		return apperrors.NewPermissions(ld.refID.String(), domain.PermissionWrite.String())
	}
	return ld.binding.ChangeDoc(ctx, mutator)
}

// Close releases the replication subscription.
func (ld *LiveDocument) Close() {
	ld.binding.Release()
}
