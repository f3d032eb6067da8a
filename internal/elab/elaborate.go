package elab

import (
	"fmt"

	"github.com/google/uuid"

	"chalkboard/internal/domain"
	apperrors "chalkboard/internal/errors"
	"chalkboard/internal/theory"
)

// Elaborator turns ordered formal judgments plus a theory into a model.
// Implementations may fail on malformed content; the pipeline guarantees
// such failures never escape as thrown errors.
type Elaborator interface {
	Elaborate(judgments []domain.ModelJudgment, th *theory.Theory) (*Model, error)
}

// BasicElaborator elaborates judgments by resolving every type reference to
// a basic type of the theory. It fails on duplicate judgment ids, dangling
// cell references, cyclic references, unknown basic types, and references of
// the wrong kind.
type BasicElaborator struct{}

// NewBasicElaborator creates the in-process elaborator.
func NewBasicElaborator() *BasicElaborator { return &BasicElaborator{} }

// Elaborate implements Elaborator.
func (e *BasicElaborator) Elaborate(judgments []domain.ModelJudgment, th *theory.Theory) (*Model, error) {
	byID := make(map[uuid.UUID]domain.ModelJudgment, len(judgments))
	for _, j := range judgments {
		if _, dup := byID[j.ID]; dup {
			return nil, apperrors.NewIllformed(fmt.Sprintf("duplicate judgment id %s", j.ID), nil)
		}
		byID[j.ID] = j
	}

	r := &resolver{theory: th, judgments: byID, resolving: make(map[uuid.UUID]bool)}
	model := &Model{Theory: th, objectsByID: make(map[uuid.UUID]int)}

	for _, j := range judgments {
		switch j.Kind {
		case domain.JudgmentObject:
			typeName, err := r.resolveObType(j.ID, j.ObType)
			if err != nil {
				return nil, err
			}
			model.objectsByID[j.ID] = len(model.Objects)
			model.Objects = append(model.Objects, ObjectDecl{
				JudgmentID: j.ID,
				Name:       j.Name,
				TypeName:   typeName,
			})

		case domain.JudgmentMorphism:
			typeName, err := r.resolveMorType(j.ID, j.MorType)
			if err != nil {
				return nil, err
			}
			dom, err := r.resolveEndpoint(j.ID, "domain", j.Dom)
			if err != nil {
				return nil, err
			}
			cod, err := r.resolveEndpoint(j.ID, "codomain", j.Cod)
			if err != nil {
				return nil, err
			}
			model.Morphisms = append(model.Morphisms, MorphismDecl{
				JudgmentID: j.ID,
				Name:       j.Name,
				TypeName:   typeName,
				Dom:        dom,
				Cod:        cod,
			})

		default:
			return nil, apperrors.NewIllformed(fmt.Sprintf("judgment %s has unknown kind %q", j.ID, j.Kind), nil)
		}
	}

	return model, nil
}

// resolver follows type reference chains with cycle detection.
type resolver struct {
	theory    *theory.Theory
	judgments map[uuid.UUID]domain.ModelJudgment
	resolving map[uuid.UUID]bool
}

func (r *resolver) resolveObType(owner uuid.UUID, t domain.TypeRef) (string, error) {
	switch t.Tag {
	case domain.TypeRefBasic:
		if !r.theory.HasObType(t.Content) {
			return "", apperrors.NewIllformed(
				fmt.Sprintf("object type %q is not declared by theory %s", t.Content, r.theory.ID), nil)
		}
		return t.Content, nil
	case domain.TypeRefCell:
		j, err := r.follow(t.Ref, domain.JudgmentObject)
		if err != nil {
			return "", err
		}
		defer delete(r.resolving, j.ID)
		return r.resolveObType(j.ID, j.ObType)
	case "":
		return "", apperrors.NewIllformed(fmt.Sprintf("judgment %s has no type annotation", owner), nil)
	}
	return "", apperrors.NewIllformed(fmt.Sprintf("unknown type reference tag %q", t.Tag), nil)
}

func (r *resolver) resolveMorType(owner uuid.UUID, t domain.TypeRef) (string, error) {
	switch t.Tag {
	case domain.TypeRefBasic:
		if _, ok := r.theory.MorType(t.Content); !ok {
			return "", apperrors.NewIllformed(
				fmt.Sprintf("morphism type %q is not declared by theory %s", t.Content, r.theory.ID), nil)
		}
		return t.Content, nil
	case domain.TypeRefCell:
		j, err := r.follow(t.Ref, domain.JudgmentMorphism)
		if err != nil {
			return "", err
		}
		defer delete(r.resolving, j.ID)
		return r.resolveMorType(j.ID, j.MorType)
	case "":
		return "", apperrors.NewIllformed(fmt.Sprintf("judgment %s has no type annotation", owner), nil)
	}
	return "", apperrors.NewIllformed(fmt.Sprintf("unknown type reference tag %q", t.Tag), nil)
}

// resolveEndpoint resolves a morphism endpoint to the object it lands on.
func (r *resolver) resolveEndpoint(owner uuid.UUID, side string, t domain.TypeRef) (Endpoint, error) {
	switch t.Tag {
	case domain.TypeRefBasic:
		if !r.theory.HasObType(t.Content) {
			return Endpoint{}, apperrors.NewIllformed(
				fmt.Sprintf("object type %q is not declared by theory %s", t.Content, r.theory.ID), nil)
		}
		return Endpoint{TypeName: t.Content}, nil
	case domain.TypeRefCell:
		j, err := r.follow(t.Ref, domain.JudgmentObject)
		if err != nil {
			return Endpoint{}, err
		}
		defer delete(r.resolving, j.ID)
		typeName, err := r.resolveObType(j.ID, j.ObType)
		if err != nil {
			return Endpoint{}, err
		}
		return Endpoint{ObjectID: j.ID, TypeName: typeName}, nil
	case "":
		return Endpoint{}, apperrors.NewIllformed(
			fmt.Sprintf("morphism %s has no %s", owner, side), nil)
	}
	return Endpoint{}, apperrors.NewIllformed(fmt.Sprintf("unknown type reference tag %q", t.Tag), nil)
}

// follow dereferences a cell reference, enforcing existence, kind, and
// acyclicity.
func (r *resolver) follow(ref uuid.UUID, kind domain.JudgmentKind) (domain.ModelJudgment, error) {
	j, ok := r.judgments[ref]
	if !ok {
		return domain.ModelJudgment{}, apperrors.NewIllformed(
			fmt.Sprintf("type reference points at missing judgment %s", ref), nil)
	}
	if j.Kind != kind {
		return domain.ModelJudgment{}, apperrors.NewIllformed(
			fmt.Sprintf("type reference points at %s judgment %s, expected %s", j.Kind, ref, kind), nil)
	}
	if r.resolving[ref] {
		return domain.ModelJudgment{}, apperrors.NewIllformed(
			fmt.Sprintf("cyclic type reference through judgment %s", ref), nil)
	}
	r.resolving[ref] = true
	return j, nil
}
