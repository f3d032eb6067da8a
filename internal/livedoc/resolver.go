// Package livedoc coordinates the three asynchronous collaborators behind an
// open document: the backend RPC service, the replication layer, and the
// elaboration engine. It exposes a permission-checked, deduplicated path
// from an opaque reference to a live, reactively bound document with a
// validated model.
package livedoc

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"chalkboard/internal/domain"
	apperrors "chalkboard/internal/errors"
	"chalkboard/internal/observability"
)

// BackendAPI is the slice of the backend RPC surface the resolver consumes.
// The principal is implicit: the concrete client carries the session token
// of the authenticated user (or none, for anonymous access).
type BackendAPI interface {
	DocIDFor(ctx context.Context, refID domain.RefID) (domain.DocumentLocator, error)
	GetPermissions(ctx context.Context, refID domain.RefID) (domain.PermissionLevel, error)
	ValidateSession(ctx context.Context) error
}

// Resolver turns a reference into a document locator, enforcing permissions.
// Idempotent; no side effects beyond the RPC call.
type Resolver struct {
	backend BackendAPI
	logger  *zap.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
}

// NewResolver creates a resolver over the given backend.
func NewResolver(backend BackendAPI, logger *zap.Logger, metrics *observability.Metrics) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		backend: backend,
		logger:  logger,
		metrics: metrics,
		tracer:  otel.Tracer("chalkboard/livedoc"),
	}
}

// Resolve validates the reference syntactically, then asks the backend for
// its locator. Not-found and permission failures stay distinct so the UI can
// show the right surface for each.
func (r *Resolver) Resolve(ctx context.Context, refID domain.RefID) (domain.DocumentLocator, error) {
	ctx, span := r.tracer.Start(ctx, "resolver.Resolve",
		trace.WithAttributes(attribute.String("ref_id", refID.String())))
	defer span.End()

	if err := refID.Validate(); err != nil {
		r.metrics.ObserveResolution("invalid")
		return domain.DocumentLocator{}, err
	}

	loc, err := r.backend.DocIDFor(ctx, refID)
	if err != nil {
		switch apperrors.TypeOf(err) {
		case apperrors.ErrorTypeNotFound:
			r.metrics.ObserveResolution("not_found")
		case apperrors.ErrorTypePermission:
			r.metrics.ObserveResolution("permission")
		default:
			r.metrics.ObserveResolution("error")
		}
		return domain.DocumentLocator{}, apperrors.Wrap(err, "resolve reference")
	}

	if !loc.MaxLevel.AtLeast(domain.PermissionRead) {
		// The backend should never hand out an unreadable locator; treat
		// it as a permission failure rather than trusting it.
		r.metrics.ObserveResolution("permission")
		return domain.DocumentLocator{}, apperrors.NewPermissions(refID.String(), domain.PermissionRead.String())
	}

	r.metrics.ObserveResolution("ok")
	r.logger.Debug("resolved reference",
		zap.String("ref_id", refID.String()),
		zap.String("doc_id", loc.DocID),
		zap.String("max_level", loc.MaxLevel.String()),
		zap.Bool("deleted", loc.Deleted))
	return loc, nil
}
