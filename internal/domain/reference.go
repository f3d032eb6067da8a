// Package domain holds the core types of the live document subsystem:
// references, documents, notebooks, formal judgments, and permissions.
// Types here are plain values with no I/O; all asynchrony lives in the
// packages that coordinate them.
package domain

import (
	"regexp"

	apperrors "chalkboard/internal/errors"
)

// RefID is the opaque, stable identifier of a document across its lifetime.
// It is minted and owned by the backend and never mutated.
type RefID string

// refIDPattern accepts the backend's identifier alphabet. Checked before any
// network call so malformed input never reaches the wire.
var refIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Validate checks that the reference is a well-formed identifier.
func (r RefID) Validate() error {
	if !refIDPattern.MatchString(string(r)) {
		return apperrors.NewValidation("reference is not a well-formed identifier")
	}
	return nil
}

func (r RefID) String() string { return string(r) }

// PermissionLevel is the ordered permission lattice for a reference.
type PermissionLevel int

const (
	PermissionNone PermissionLevel = iota
	PermissionRead
	PermissionWrite
	PermissionMaintain
	PermissionOwn
)

// AtLeast reports whether the level grants everything other does.
func (p PermissionLevel) AtLeast(other PermissionLevel) bool { return p >= other }

func (p PermissionLevel) String() string {
	switch p {
	case PermissionNone:
		return "none"
	case PermissionRead:
		return "read"
	case PermissionWrite:
		return "write"
	case PermissionMaintain:
		return "maintain"
	case PermissionOwn:
		return "own"
	}
	return "unknown"
}

// ParsePermissionLevel converts the wire representation back to a level.
func ParsePermissionLevel(s string) (PermissionLevel, error) {
	switch s {
	case "none":
		return PermissionNone, nil
	case "read":
		return PermissionRead, nil
	case "write":
		return PermissionWrite, nil
	case "maintain":
		return PermissionMaintain, nil
	case "own":
		return PermissionOwn, nil
	}
	return PermissionNone, apperrors.NewValidation("unknown permission level " + s)
}

// Principal identifies the caller of a permission-checked operation.
// The zero value is the anonymous principal.
type Principal struct {
	UserID string
}

// Anonymous reports whether the principal is unauthenticated.
func (p Principal) Anonymous() bool { return p.UserID == "" }

// DocumentLocator is the result of resolving a reference: where the live
// document lives in the CRDT layer, what the caller may do with it, and
// whether it has been soft-deleted.
type DocumentLocator struct {
	DocID    string
	MaxLevel PermissionLevel
	Deleted  bool
}
