package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Cell is one entry of a notebook. The UUID identity persists across edits
// and reorderings; downstream memoization keys on it, never on position.
//
// Cell is a closed sum: the only implementations are RichTextCell,
// FormalCell and StemCell.
type Cell interface {
	ID() uuid.UUID
	isCell()
}

// RichTextCell holds informal prose. Its edits never invalidate formal
// content downstream.
type RichTextCell struct {
	CellID  uuid.UUID
	Content string
}

func (c RichTextCell) ID() uuid.UUID { return c.CellID }
func (c RichTextCell) isCell()       {}

// FormalCell holds one machine-checked judgment.
type FormalCell struct {
	CellID   uuid.UUID
	Judgment ModelJudgment
}

func (c FormalCell) ID() uuid.UUID { return c.CellID }
func (c FormalCell) isCell()       {}

// StemCell is a placeholder the user has not yet committed to a kind.
type StemCell struct {
	CellID uuid.UUID
}

func (c StemCell) ID() uuid.UUID { return c.CellID }
func (c StemCell) isCell()       {}

// NewRichTextCell creates an informal cell.
func NewRichTextCell(content string) RichTextCell {
	return RichTextCell{CellID: uuid.New(), Content: content}
}

// NewFormalCell wraps a judgment in a cell. The cell adopts the judgment's
// UUID so the two identities never drift apart.
func NewFormalCell(judgment ModelJudgment) FormalCell {
	return FormalCell{CellID: judgment.ID, Judgment: judgment}
}

// NewStemCell creates a placeholder cell.
func NewStemCell() StemCell {
	return StemCell{CellID: uuid.New()}
}

// Notebook is the ordered cell sequence of a document. Ordering is
// user-controlled and significant.
type Notebook struct {
	Cells []Cell
}

// Clone returns an independent copy. Cells are value types, so a shallow
// copy of the slice suffices.
func (n Notebook) Clone() Notebook {
	cells := make([]Cell, len(n.Cells))
	copy(cells, n.Cells)
	return Notebook{Cells: cells}
}

// CellIndex returns the position of the cell with the given id, or -1.
func (n Notebook) CellIndex(id uuid.UUID) int {
	for i, c := range n.Cells {
		if c.ID() == id {
			return i
		}
	}
	return -1
}

// AppendCell adds a cell at the end.
func (n *Notebook) AppendCell(c Cell) {
	n.Cells = append(n.Cells, c)
}

// InsertCell inserts a cell at the given position, clamped to the valid
// range.
func (n *Notebook) InsertCell(i int, c Cell) {
	if i < 0 {
		i = 0
	}
	if i > len(n.Cells) {
		i = len(n.Cells)
	}
	n.Cells = append(n.Cells, nil)
	copy(n.Cells[i+1:], n.Cells[i:])
	n.Cells[i] = c
}

// RemoveCell removes the cell with the given id, reporting whether it was
// present.
func (n *Notebook) RemoveCell(id uuid.UUID) bool {
	i := n.CellIndex(id)
	if i < 0 {
		return false
	}
	n.Cells = append(n.Cells[:i], n.Cells[i+1:]...)
	return true
}

// MoveCell moves the cell with the given id to position to.
func (n *Notebook) MoveCell(id uuid.UUID, to int) bool {
	from := n.CellIndex(id)
	if from < 0 {
		return false
	}
	c := n.Cells[from]
	n.Cells = append(n.Cells[:from], n.Cells[from+1:]...)
	n.InsertCell(to, c)
	return true
}

// FormalJudgments derives the ordered formal content of the notebook,
// skipping informal and stem cells. Pure; never mutates the notebook.
func (n Notebook) FormalJudgments() []ModelJudgment {
	var out []ModelJudgment
	for _, c := range n.Cells {
		if fc, ok := c.(FormalCell); ok {
			out = append(out, fc.Judgment)
		}
	}
	return out
}

// FormalFingerprint is the explicit invalidation key for everything derived
// from formal content: a content hash over formal cells only, in order.
// Two notebooks with the same fingerprint have identical formal content even
// if their informal cells differ, so cheap prose edits never trigger
// re-elaboration.
func (n Notebook) FormalFingerprint() string {
	h := sha256.New()
	for _, c := range n.Cells {
		fc, ok := c.(FormalCell)
		if !ok {
			continue
		}
		j := fc.Judgment
		fmt.Fprintf(h, "%s|%s|%s|", j.ID, j.Kind, j.Name)
		writeTypeRef(h, j.ObType)
		writeTypeRef(h, j.MorType)
		writeTypeRef(h, j.Dom)
		writeTypeRef(h, j.Cod)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeTypeRef(h interface{ Write([]byte) (int, error) }, t TypeRef) {
	fmt.Fprintf(h, "%s:%s:%s;", t.Tag, t.Content, t.Ref)
}
