package domain

import (
	"github.com/google/uuid"
)

// JudgmentKind discriminates the two kinds of formal declaration.
type JudgmentKind string

const (
	JudgmentObject   JudgmentKind = "object"
	JudgmentMorphism JudgmentKind = "morphism"
)

// TypeRefTag discriminates how a type annotation refers to its type.
type TypeRefTag string

const (
	// TypeRefBasic names a type from the theory's vocabulary directly.
	TypeRefBasic TypeRefTag = "Basic"
	// TypeRefCell references another judgment in the same document by UUID;
	// the referenced judgment's type is the effective type.
	TypeRefCell TypeRefTag = "Cell"
)

// TypeRef is a type annotation on a judgment. Exactly one of Content or Ref
// is meaningful, selected by Tag.
type TypeRef struct {
	Tag     TypeRefTag
	Content string
	Ref     uuid.UUID
}

// BasicTypeRef names a type from the theory vocabulary.
func BasicTypeRef(name string) TypeRef {
	return TypeRef{Tag: TypeRefBasic, Content: name}
}

// CellTypeRef points at another judgment's type by UUID.
func CellTypeRef(id uuid.UUID) TypeRef {
	return TypeRef{Tag: TypeRefCell, Ref: id}
}

// IsZero reports whether the annotation is absent.
func (t TypeRef) IsZero() bool { return t.Tag == "" }

// Equal compares two annotations structurally.
func (t TypeRef) Equal(other TypeRef) bool {
	return t.Tag == other.Tag && t.Content == other.Content && t.Ref == other.Ref
}

// ModelJudgment is one formal declaration in a document: an object or a
// morphism, identified by a UUID that is stable across edits and reorderings.
// Every Cell-tagged type reference must resolve to a judgment elsewhere in
// the same document's formal content or elaboration fails.
type ModelJudgment struct {
	ID   uuid.UUID
	Kind JudgmentKind
	Name string

	// ObType is set for object judgments.
	ObType TypeRef

	// MorType, Dom and Cod are set for morphism judgments. Dom and Cod
	// usually reference object judgments by UUID.
	MorType TypeRef
	Dom     TypeRef
	Cod     TypeRef
}

// NewObjectJudgment declares an object with the given name and type.
func NewObjectJudgment(name string, obType TypeRef) ModelJudgment {
	return ModelJudgment{
		ID:     uuid.New(),
		Kind:   JudgmentObject,
		Name:   name,
		ObType: obType,
	}
}

// NewMorphismJudgment declares a morphism with the given name, type, domain
// and codomain.
func NewMorphismJudgment(name string, morType, dom, cod TypeRef) ModelJudgment {
	return ModelJudgment{
		ID:      uuid.New(),
		Kind:    JudgmentMorphism,
		Name:    name,
		MorType: morType,
		Dom:     dom,
		Cod:     cod,
	}
}

// TypeAnnotation returns the judgment's primary type annotation (obType for
// objects, morType for morphisms).
func (j ModelJudgment) TypeAnnotation() TypeRef {
	if j.Kind == JudgmentObject {
		return j.ObType
	}
	return j.MorType
}

// WithTypeAnnotation returns a copy with the primary type annotation
// replaced. Identity, name, kind and ordering-relevant fields are preserved;
// this is the only rewrite theory migration performs.
func (j ModelJudgment) WithTypeAnnotation(t TypeRef) ModelJudgment {
	if j.Kind == JudgmentObject {
		j.ObType = t
	} else {
		j.MorType = t
	}
	return j
}

// Equal compares two judgments structurally.
func (j ModelJudgment) Equal(other ModelJudgment) bool {
	return j.ID == other.ID &&
		j.Kind == other.Kind &&
		j.Name == other.Name &&
		j.ObType.Equal(other.ObType) &&
		j.MorType.Equal(other.MorType) &&
		j.Dom.Equal(other.Dom) &&
		j.Cod.Equal(other.Cod)
}
