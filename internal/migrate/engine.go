// Package migrate moves a live document from one theory to another.
//
// Two migration shapes exist. An inclusion relabels the document's theory
// field and touches no content. A pushforward first elaborates the formal
// content under the current theory, hands the resolved model to a
// registered translation function to obtain a model under the target
// theory, and then writes back only the type annotations; cell identity,
// order, names and domain/codomain wiring all survive the migration.
package migrate

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chalkboard/internal/domain"
	"chalkboard/internal/elab"
	apperrors "chalkboard/internal/errors"
	"chalkboard/internal/livedoc"
	"chalkboard/internal/observability"
	"chalkboard/internal/theory"
)

// PushforwardFunc translates an elaborated source model into a model under
// the target theory. It must keep the judgment set intact: the same object
// and morphism declarations, under new type names. The engine rejects any
// other rewrite.
type PushforwardFunc func(m *elab.Model, target *theory.Theory) (*elab.Model, error)

type migrationKey struct {
	source string
	target string
}

// Engine performs theory migrations on live documents.
type Engine struct {
	registry *theory.Registry
	pipeline *elab.Pipeline
	logger   *zap.Logger
	metrics  *observability.Metrics

	mu           sync.RWMutex
	pushforwards map[migrationKey]PushforwardFunc
}

// NewEngine creates a migration engine backed by the given theory registry
// and elaboration pipeline.
func NewEngine(
	registry *theory.Registry,
	pipeline *elab.Pipeline,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		registry:     registry,
		pipeline:     pipeline,
		logger:       logger,
		metrics:      metrics,
		pushforwards: make(map[migrationKey]PushforwardFunc),
	}
}

// RegisterPushforward installs the translation function for the
// source-to-target pair. The pair must also be declared in the source
// theory's pushforward list for Migrate to use it.
func (e *Engine) RegisterPushforward(source, target string, fn PushforwardFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pushforwards[migrationKey{source, target}] = fn
}

func (e *Engine) pushforward(source, target string) (PushforwardFunc, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn, ok := e.pushforwards[migrationKey{source, target}]
	return fn, ok
}

// Migrate moves the document to the target theory. The document is left
// untouched on every error path.
func (e *Engine) Migrate(ctx context.Context, ld *livedoc.LiveDocument, targetID string) error {
	current, err := ld.Theory(ctx)
	if err != nil {
		return apperrors.Wrap(err, "resolving current theory")
	}
	target, err := e.registry.Get(ctx, targetID)
	if err != nil {
		return apperrors.Wrap(err, "resolving target theory")
	}
	if current.ID == targetID {
		return nil
	}

	judgments := ld.FormalJudgments()

	// Without formal content every migration degenerates to a relabel.
	if len(judgments) == 0 || current.Includes(targetID) {
		return e.relabel(ctx, ld, current.ID, targetID)
	}

	if current.HasPushforwardTo(targetID) {
		if fn, ok := e.pushforward(current.ID, targetID); ok {
			return e.rewrite(ctx, ld, current, target, judgments, fn)
		}
		e.logger.Warn("declared pushforward has no registered function",
			zap.String("source", current.ID), zap.String("target", targetID))
	}

	e.metrics.ObserveMigration("none", "rejected")
	return apperrors.NewNoMigrationDefined(current.ID, targetID)
}

func (e *Engine) relabel(ctx context.Context, ld *livedoc.LiveDocument, sourceID, targetID string) error {
	err := ld.ChangeDoc(ctx, func(d *domain.Document) error {
		d.TheoryID = targetID
		return nil
	})
	if err != nil {
		e.metrics.ObserveMigration("inclusion", "error")
		return err
	}
	e.metrics.ObserveMigration("inclusion", "ok")
	e.logger.Info("migrated document by relabeling",
		zap.String("ref_id", ld.RefID().String()),
		zap.String("source", sourceID),
		zap.String("target", targetID))
	return nil
}

func (e *Engine) rewrite(
	ctx context.Context,
	ld *livedoc.LiveDocument,
	current, target *theory.Theory,
	judgments []domain.ModelJudgment,
	fn PushforwardFunc,
) error {
	// Content that does not elaborate has no model to push forward.
	// Invalid content still elaborates; its typing diagnostics belong to
	// the source theory and do not block translation.
	validated := e.pipeline.Validate(ctx, judgments, current)
	if validated.Tag == elab.TagIllformed {
		e.metrics.ObserveMigration("pushforward", "rejected")
		return apperrors.Wrap(validated.Err, "elaborating under source theory")
	}

	migrated, err := fn(validated.Model, target)
	if err != nil {
		e.metrics.ObserveMigration("pushforward", "error")
		return apperrors.Wrap(err, "translating model to "+target.ID)
	}

	rewritten, err := annotationsFrom(validated.Model, migrated, current.ID, target.ID)
	if err != nil {
		e.metrics.ObserveMigration("pushforward", "rejected")
		return err
	}

	err = ld.ChangeDoc(ctx, func(d *domain.Document) error {
		// The rewrite was computed from a snapshot; a concurrent formal
		// edit would make it rewrite cells it never translated.
		if len(d.Notebook.FormalJudgments()) != len(rewritten) {
			return apperrors.NewMigrationStructural(current.ID, target.ID)
		}
		for i, c := range d.Notebook.Cells {
			fc, ok := c.(domain.FormalCell)
			if !ok {
				continue
			}
			annotation, ok := rewritten[fc.Judgment.ID]
			if !ok {
				return apperrors.NewMigrationStructural(current.ID, target.ID)
			}
			fc.Judgment = fc.Judgment.WithTypeAnnotation(annotation)
			d.Notebook.Cells[i] = fc
		}
		d.TheoryID = target.ID
		return nil
	})
	if err != nil {
		if apperrors.TypeOf(err) == apperrors.ErrorTypeMigrationStructural {
			e.metrics.ObserveMigration("pushforward", "rejected")
		} else {
			e.metrics.ObserveMigration("pushforward", "error")
		}
		return err
	}

	e.metrics.ObserveMigration("pushforward", "ok")
	e.logger.Info("migrated document by pushforward",
		zap.String("ref_id", ld.RefID().String()),
		zap.String("source", current.ID),
		zap.String("target", target.ID),
		zap.Int("judgments", len(judgments)))
	return nil
}

// annotationsFrom derives the per-judgment write-back annotations from the
// migrated model, verifying that it carries exactly the source model's
// declarations.
func annotationsFrom(source, migrated *elab.Model, sourceID, targetID string) (map[uuid.UUID]domain.TypeRef, error) {
	if migrated == nil ||
		len(migrated.Objects) != len(source.Objects) ||
		len(migrated.Morphisms) != len(source.Morphisms) {
		return nil, apperrors.NewMigrationStructural(sourceID, targetID)
	}

	out := make(map[uuid.UUID]domain.TypeRef, len(migrated.Objects)+len(migrated.Morphisms))
	for _, ob := range migrated.Objects {
		if _, ok := source.Object(ob.JudgmentID); !ok {
			return nil, apperrors.NewMigrationStructural(sourceID, targetID)
		}
		out[ob.JudgmentID] = domain.BasicTypeRef(ob.TypeName)
	}

	sourceMors := make(map[uuid.UUID]bool, len(source.Morphisms))
	for _, mor := range source.Morphisms {
		sourceMors[mor.JudgmentID] = true
	}
	for _, mor := range migrated.Morphisms {
		if !sourceMors[mor.JudgmentID] {
			return nil, apperrors.NewMigrationStructural(sourceID, targetID)
		}
		out[mor.JudgmentID] = domain.BasicTypeRef(mor.TypeName)
	}
	return out, nil
}
