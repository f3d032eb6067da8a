// Package elab elaborates the formal content of a document against a theory
// into a validated in-memory model. The elaborator here implements the
// collaborator contract in-process: Elaborate may fail (or panic) on
// ill-formed content, and a successfully elaborated model can still fail
// validation with structured diagnostics.
package elab

import (
	"fmt"

	"github.com/google/uuid"

	"chalkboard/internal/theory"
)

// Endpoint is a resolved domain or codomain of a morphism: either another
// object declaration (ObjectID set) or a bare basic type.
type Endpoint struct {
	ObjectID uuid.UUID
	TypeName string
}

// ObjectDecl is an elaborated object declaration.
type ObjectDecl struct {
	JudgmentID uuid.UUID
	Name       string
	TypeName   string
}

// MorphismDecl is an elaborated morphism declaration.
type MorphismDecl struct {
	JudgmentID uuid.UUID
	Name       string
	TypeName   string
	Dom        Endpoint
	Cod        Endpoint
}

// Model is the elaborated content of a document under a theory. It exists
// whenever elaboration succeeded, even when validation later finds errors,
// so consumers can render the structure with inline diagnostics instead of
// blanking.
type Model struct {
	Theory    *theory.Theory
	Objects   []ObjectDecl
	Morphisms []MorphismDecl

	objectsByID map[uuid.UUID]int
}

// NewModel assembles a model from declarations, indexing objects by
// judgment id. Used by elaboration and by theory migrations deriving a
// model under a new theory.
func NewModel(th *theory.Theory, objects []ObjectDecl, morphisms []MorphismDecl) *Model {
	m := &Model{
		Theory:      th,
		Objects:     objects,
		Morphisms:   morphisms,
		objectsByID: make(map[uuid.UUID]int, len(objects)),
	}
	for i, ob := range objects {
		m.objectsByID[ob.JudgmentID] = i
	}
	return m
}

// Object looks up an object declaration by judgment id.
func (m *Model) Object(id uuid.UUID) (ObjectDecl, bool) {
	i, ok := m.objectsByID[id]
	if !ok {
		return ObjectDecl{}, false
	}
	return m.Objects[i], true
}

// ValidationError is one structured diagnostic, attached to the judgment it
// concerns so the UI can mark the offending cell inline.
type ValidationError struct {
	JudgmentID uuid.UUID
	Message    string
}

// ValidationErrors is the full diagnostic set of a failed validation. It is
// a normal result, not an exception.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	return fmt.Sprintf("model validation failed with %d error(s)", len(v))
}

// ForJudgment returns the diagnostics attached to one judgment.
func (v ValidationErrors) ForJudgment(id uuid.UUID) []ValidationError {
	var out []ValidationError
	for _, e := range v {
		if e.JudgmentID == id {
			out = append(out, e)
		}
	}
	return out
}

// Validate checks the model against its theory's typing discipline. A nil
// result means the model is valid.
func (m *Model) Validate() ValidationErrors {
	var errs ValidationErrors

	for _, ob := range m.Objects {
		if ob.Name == "" {
			errs = append(errs, ValidationError{ob.JudgmentID, "object has no name"})
		}
	}

	for _, mor := range m.Morphisms {
		if mor.Name == "" {
			errs = append(errs, ValidationError{mor.JudgmentID, "morphism has no name"})
		}
		decl, ok := m.Theory.MorType(mor.TypeName)
		if !ok {
			// Unknown morphism types are caught during elaboration; this
			// guards models assembled by migrations.
			errs = append(errs, ValidationError{mor.JudgmentID,
				fmt.Sprintf("morphism type %q is not declared by theory %s", mor.TypeName, m.Theory.ID)})
			continue
		}
		if mor.Dom.TypeName != decl.Dom {
			errs = append(errs, ValidationError{mor.JudgmentID,
				fmt.Sprintf("domain has type %q, %q requires %q", mor.Dom.TypeName, mor.TypeName, decl.Dom)})
		}
		if mor.Cod.TypeName != decl.Cod {
			errs = append(errs, ValidationError{mor.JudgmentID,
				fmt.Sprintf("codomain has type %q, %q requires %q", mor.Cod.TypeName, mor.TypeName, decl.Cod)})
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}
