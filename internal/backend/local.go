package backend

import (
	"context"

	"chalkboard/internal/domain"
)

// LocalAPI serves the resolver surface straight from the in-process ref
// store, skipping the HTTP hop. Used when the editing runtime is colocated
// with the reference backend, as in the refserver binary.
type LocalAPI struct {
	store     *RefStore
	principal domain.Principal
}

// NewLocalAPI creates an adapter acting as the given principal.
func NewLocalAPI(store *RefStore, principal domain.Principal) *LocalAPI {
	return &LocalAPI{store: store, principal: principal}
}

func (a *LocalAPI) DocIDFor(ctx context.Context, refID domain.RefID) (domain.DocumentLocator, error) {
	return a.store.Locate(refID, a.principal)
}

func (a *LocalAPI) GetPermissions(ctx context.Context, refID domain.RefID) (domain.PermissionLevel, error) {
	return a.store.Permissions(refID, a.principal)
}

// ValidateSession always succeeds; there is no token between in-process
// components.
func (a *LocalAPI) ValidateSession(context.Context) error { return nil }
