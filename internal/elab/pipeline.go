package elab

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"chalkboard/internal/domain"
	apperrors "chalkboard/internal/errors"
	"chalkboard/internal/observability"
	"chalkboard/internal/theory"
)

// ValidatedTag discriminates the elaboration outcome.
type ValidatedTag string

const (
	// TagValid: elaboration and validation both succeeded.
	TagValid ValidatedTag = "Valid"
	// TagInvalid: elaboration succeeded, validation found errors. The
	// model is still present.
	TagInvalid ValidatedTag = "Invalid"
	// TagIllformed: elaboration itself failed; no model exists.
	TagIllformed ValidatedTag = "Illformed"
)

// ValidatedModel is the only representation downstream consumers may branch
// on. Exactly one of the three tags holds; there is no partially-valid
// fourth state.
type ValidatedModel struct {
	Tag    ValidatedTag
	Model  *Model
	Errors ValidationErrors
	Err    error
}

// Valid wraps a model that passed validation.
func Valid(m *Model) *ValidatedModel {
	return &ValidatedModel{Tag: TagValid, Model: m}
}

// Invalid wraps an elaborated model with its diagnostics. The model rides
// along so the UI can render the invalid structure with inline error
// markers.
func Invalid(m *Model, errs ValidationErrors) *ValidatedModel {
	return &ValidatedModel{Tag: TagInvalid, Model: m, Errors: errs}
}

// Illformed wraps an elaboration failure.
func Illformed(err error) *ValidatedModel {
	return &ValidatedModel{Tag: TagIllformed, Err: err}
}

// Pipeline runs elaboration and validation, containing every failure mode
// inside the ValidatedModel union.
type Pipeline struct {
	elaborator Elaborator
	logger     *zap.Logger
	metrics    *observability.Metrics
	tracer     trace.Tracer
}

// NewPipeline creates a pipeline around the given elaborator.
func NewPipeline(elaborator Elaborator, logger *zap.Logger, metrics *observability.Metrics) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		elaborator: elaborator,
		logger:     logger,
		metrics:    metrics,
		tracer:     otel.Tracer("chalkboard/elab"),
	}
}

// Validate elaborates judgments under th and validates the result. It never
// returns an error and never panics: elaboration failures, including panics
// inside the elaborator, come back as Illformed.
//
// A nil theory means the async theory lookup has not completed; callers must
// treat that as "loading" and so receive nil here rather than any tag.
func (p *Pipeline) Validate(ctx context.Context, judgments []domain.ModelJudgment, th *theory.Theory) *ValidatedModel {
	if th == nil {
		return nil
	}

	_, span := p.tracer.Start(ctx, "pipeline.Validate",
		trace.WithAttributes(
			attribute.String("theory_id", th.ID),
			attribute.Int("judgments", len(judgments)),
		))
	defer span.End()

	start := time.Now()
	result := p.run(judgments, th)
	p.metrics.ObserveElaboration(string(result.Tag), time.Since(start))
	span.SetAttributes(attribute.String("tag", string(result.Tag)))

	switch result.Tag {
	case TagIllformed:
		p.logger.Debug("elaboration failed",
			zap.String("theory_id", th.ID),
			zap.Error(result.Err))
	case TagInvalid:
		p.logger.Debug("model failed validation",
			zap.String("theory_id", th.ID),
			zap.Int("errors", len(result.Errors)))
	}
	return result
}

func (p *Pipeline) run(judgments []domain.ModelJudgment, th *theory.Theory) (result *ValidatedModel) {
	defer func() {
		if r := recover(); r != nil {
			// The elaboration engine is an external collaborator; a
			// panic inside it must not take down the caller.
			p.logger.Warn("elaborator panicked", zap.Any("panic", r))
			result = Illformed(apperrors.NewIllformed(fmt.Sprintf("elaboration panicked: %v", r), nil))
		}
	}()

	model, err := p.elaborator.Elaborate(judgments, th)
	if err != nil {
		return Illformed(err)
	}
	if errs := model.Validate(); errs != nil {
		return Invalid(model, errs)
	}
	return Valid(model)
}
