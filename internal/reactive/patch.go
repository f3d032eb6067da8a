// Package reactive turns replicated document snapshots into fine-grained
// observable state. Changes are represented as explicit patch descriptions
// (path + operation records) so the update algorithm is testable without any
// CRDT library, and applied structurally so a change to one cell never
// invalidates state derived from other cells.
package reactive

import (
	"github.com/google/uuid"

	"chalkboard/internal/domain"
)

// Op is the kind of a patch operation.
type Op string

const (
	// OpReplace replaces the value at Path. For cell paths the new cell
	// rides in the Cell field.
	OpReplace Op = "replace"
	// OpInsertCell inserts Cell at Index in the notebook.
	OpInsertCell Op = "insert-cell"
	// OpRemoveCell removes the cell identified by Path.
	OpRemoveCell Op = "remove-cell"
	// OpReorder reports that surviving cells changed relative order.
	OpReorder Op = "reorder"
)

// Patch is one (path, operation) record of a structural change.
type Patch struct {
	Op    Op
	Path  []string
	Cell  domain.Cell
	Index int
}

// Path heads used by Diff.
const (
	PathName     = "name"
	PathTheory   = "theory"
	PathLinks    = "links"
	PathNotebook = "notebook"
	PathCells    = "cells"
)

// CellPath reports whether the patch targets a single cell and returns its
// id.
func (p Patch) CellPath() (uuid.UUID, bool) {
	if len(p.Path) == 3 && p.Path[0] == PathNotebook && p.Path[1] == PathCells {
		id, err := uuid.Parse(p.Path[2])
		if err == nil {
			return id, true
		}
	}
	return uuid.UUID{}, false
}

func cellPatch(op Op, c domain.Cell, index int) Patch {
	return Patch{
		Op:    op,
		Path:  []string{PathNotebook, PathCells, c.ID().String()},
		Cell:  c,
		Index: index,
	}
}

// Diff computes the patch list transforming old into new. Cells are matched
// by UUID identity, never by position.
func Diff(old, next *domain.Document) []Patch {
	var patches []Patch

	if old.Name != next.Name {
		patches = append(patches, Patch{Op: OpReplace, Path: []string{PathName}})
	}
	if old.TheoryID != next.TheoryID {
		patches = append(patches, Patch{Op: OpReplace, Path: []string{PathTheory}})
	}
	if old.Type != next.Type || old.DiagramIn != next.DiagramIn || old.AnalysisOf != next.AnalysisOf {
		patches = append(patches, Patch{Op: OpReplace, Path: []string{PathLinks}})
	}

	oldIndex := make(map[uuid.UUID]int, len(old.Notebook.Cells))
	for i, c := range old.Notebook.Cells {
		oldIndex[c.ID()] = i
	}
	newIDs := make(map[uuid.UUID]bool, len(next.Notebook.Cells))

	for i, c := range next.Notebook.Cells {
		newIDs[c.ID()] = true
		oi, existed := oldIndex[c.ID()]
		if !existed {
			patches = append(patches, cellPatch(OpInsertCell, c, i))
			continue
		}
		if !cellEqual(old.Notebook.Cells[oi], c) {
			patches = append(patches, cellPatch(OpReplace, c, i))
		}
	}

	for _, c := range old.Notebook.Cells {
		if !newIDs[c.ID()] {
			patches = append(patches, cellPatch(OpRemoveCell, c, -1))
		}
	}

	if survivorOrderChanged(old, next, newIDs, oldIndex) {
		patches = append(patches, Patch{Op: OpReorder, Path: []string{PathNotebook}})
	}

	return patches
}

// survivorOrderChanged reports whether cells present in both snapshots
// appear in a different relative order.
func survivorOrderChanged(old, next *domain.Document, newIDs map[uuid.UUID]bool, oldIndex map[uuid.UUID]int) bool {
	prev := -1
	for _, c := range next.Notebook.Cells {
		oi, existed := oldIndex[c.ID()]
		if !existed || !newIDs[c.ID()] {
			continue
		}
		if oi < prev {
			return true
		}
		prev = oi
	}
	return false
}

func cellEqual(a, b domain.Cell) bool {
	switch ac := a.(type) {
	case domain.RichTextCell:
		bc, ok := b.(domain.RichTextCell)
		return ok && ac.Content == bc.Content
	case domain.FormalCell:
		bc, ok := b.(domain.FormalCell)
		return ok && ac.Judgment.Equal(bc.Judgment)
	case domain.StemCell:
		_, ok := b.(domain.StemCell)
		return ok
	}
	return false
}
