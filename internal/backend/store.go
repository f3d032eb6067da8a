package backend

import (
	"sync"

	"github.com/google/uuid"

	"chalkboard/internal/crdt"
	"chalkboard/internal/domain"
	apperrors "chalkboard/internal/errors"
)

// refRecord is the backend's authoritative state for one reference.
type refRecord struct {
	docID   crdt.DocID
	owner   string
	levels  map[string]domain.PermissionLevel
	public  domain.PermissionLevel
	deleted bool
}

// RefStore owns the mapping from stable reference ids to document addresses
// and the permission table for each reference. In-memory; the reference
// server is the only writer.
type RefStore struct {
	mu   sync.RWMutex
	refs map[domain.RefID]*refRecord
}

// NewRefStore creates an empty store.
func NewRefStore() *RefStore {
	return &RefStore{refs: make(map[domain.RefID]*refRecord)}
}

// Mint creates a reference for a document. The owner holds Own permission
// for the life of the reference; everyone else gets the public level.
func (s *RefStore) Mint(docID crdt.DocID, owner string, public domain.PermissionLevel) domain.RefID {
	refID := domain.RefID(uuid.NewString())
	s.mu.Lock()
	s.refs[refID] = &refRecord{
		docID:  docID,
		owner:  owner,
		levels: make(map[string]domain.PermissionLevel),
		public: public,
	}
	s.mu.Unlock()
	return refID
}

// Grant sets an explicit permission level for a user.
func (s *RefStore) Grant(refID domain.RefID, userID string, level domain.PermissionLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.refs[refID]
	if !ok {
		return apperrors.NewReferenceNotFound(refID.String())
	}
	rec.levels[userID] = level
	return nil
}

// levelFor computes the effective permission level of a principal.
func (rec *refRecord) levelFor(p domain.Principal) domain.PermissionLevel {
	if !p.Anonymous() {
		if p.UserID == rec.owner {
			return domain.PermissionOwn
		}
		if lvl, ok := rec.levels[p.UserID]; ok {
			return lvl
		}
	}
	return rec.public
}

// Locate resolves a reference for a principal. Not-found and
// permission-denied stay distinct outcomes: the reference exists, the caller
// may learn that, but may not open it without read access.
func (s *RefStore) Locate(refID domain.RefID, p domain.Principal) (domain.DocumentLocator, error) {
	s.mu.RLock()
	rec, ok := s.refs[refID]
	s.mu.RUnlock()
	if !ok {
		return domain.DocumentLocator{}, apperrors.NewReferenceNotFound(refID.String())
	}
	level := rec.levelFor(p)
	if !level.AtLeast(domain.PermissionRead) {
		return domain.DocumentLocator{}, apperrors.NewPermissions(refID.String(), domain.PermissionRead.String())
	}
	return domain.DocumentLocator{
		DocID:    string(rec.docID),
		MaxLevel: level,
		Deleted:  rec.deleted,
	}, nil
}

// Permissions returns the principal's effective level, without requiring
// read access.
func (s *RefStore) Permissions(refID domain.RefID, p domain.Principal) (domain.PermissionLevel, error) {
	s.mu.RLock()
	rec, ok := s.refs[refID]
	s.mu.RUnlock()
	if !ok {
		return domain.PermissionNone, apperrors.NewReferenceNotFound(refID.String())
	}
	return rec.levelFor(p), nil
}

// SoftDelete marks the reference deleted. Documents are never hard-deleted
// while referenced; the flag rides on the locator so consumers can stop
// offering edits.
func (s *RefStore) SoftDelete(refID domain.RefID, p domain.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.refs[refID]
	if !ok {
		return apperrors.NewReferenceNotFound(refID.String())
	}
	if !rec.levelFor(p).AtLeast(domain.PermissionMaintain) {
		return apperrors.NewPermissions(refID.String(), domain.PermissionMaintain.String())
	}
	rec.deleted = true
	return nil
}
