package domain

import (
	apperrors "chalkboard/internal/errors"
)

// DocumentType discriminates the three document kinds.
type DocumentType string

const (
	DocumentModel    DocumentType = "model"
	DocumentDiagram  DocumentType = "diagram"
	DocumentAnalysis DocumentType = "analysis"
)

// Document is the replicated state of one model document. It is created on
// first save, mutated only through the CRDT change entry point, and
// soft-deleted rather than removed while anything references it.
type Document struct {
	Type     DocumentType
	Name     string
	TheoryID string
	Notebook Notebook

	// DiagramIn is the parent model reference for diagram documents.
	DiagramIn RefID
	// AnalysisOf is the analyzed document reference for analysis documents.
	AnalysisOf RefID
}

// NewModelDocument creates an empty model document in the given theory.
func NewModelDocument(name, theoryID string) *Document {
	return &Document{Type: DocumentModel, Name: name, TheoryID: theoryID}
}

// NewDiagramDocument creates a diagram document inside a parent model.
func NewDiagramDocument(name, theoryID string, diagramIn RefID) *Document {
	return &Document{Type: DocumentDiagram, Name: name, TheoryID: theoryID, DiagramIn: diagramIn}
}

// NewAnalysisDocument creates an analysis document of another document.
func NewAnalysisDocument(name, theoryID string, analysisOf RefID) *Document {
	return &Document{Type: DocumentAnalysis, Name: name, TheoryID: theoryID, AnalysisOf: analysisOf}
}

// Validate checks the link invariants of the document kind.
func (d *Document) Validate() error {
	switch d.Type {
	case DocumentModel:
		if d.DiagramIn != "" || d.AnalysisOf != "" {
			return apperrors.NewValidation("model documents carry no parent links")
		}
	case DocumentDiagram:
		if d.DiagramIn == "" {
			return apperrors.NewValidation("diagram documents require a diagramIn link")
		}
	case DocumentAnalysis:
		if d.AnalysisOf == "" {
			return apperrors.NewValidation("analysis documents require an analysisOf link")
		}
	default:
		return apperrors.NewValidation("unknown document type")
	}
	if d.TheoryID == "" {
		return apperrors.NewValidation("document requires a theory")
	}
	return nil
}

// Clone returns an independent copy safe to hand across the CRDT boundary.
func (d *Document) Clone() *Document {
	clone := *d
	clone.Notebook = d.Notebook.Clone()
	return &clone
}
