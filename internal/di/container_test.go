package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chalkboard/internal/domain"
	"chalkboard/internal/theory"
)

func TestInitializeContainer(t *testing.T) {
	t.Setenv("THEORY_DIR", t.TempDir())

	c, err := InitializeContainer()
	require.NoError(t, err)
	t.Cleanup(c.Shutdown)

	require.NotNil(t, c.Config)
	require.NotNil(t, c.Logger)
	require.NotNil(t, c.Registry)
	require.NotNil(t, c.Repo)
	require.NotNil(t, c.Store)
	require.NotNil(t, c.Server)
	require.NotNil(t, c.Session)
	require.NotNil(t, c.Engine)
	require.NotNil(t, c.Router)

	c.Start()
}

func TestContainerServesTheAPI(t *testing.T) {
	t.Setenv("THEORY_DIR", t.TempDir())

	c, err := InitializeContainer()
	require.NoError(t, err)
	t.Cleanup(c.Shutdown)

	srv := httptest.NewServer(c.Router)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/api/v1/session")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "anonymous callers carry no session")

	token, err := c.Issuer.Issue("alice", c.Config.SessionTTL)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/session", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestColocatedSessionOpensOwnedDocuments(t *testing.T) {
	t.Setenv("THEORY_DIR", t.TempDir())

	c, err := InitializeContainer()
	require.NoError(t, err)
	t.Cleanup(c.Shutdown)

	c.Registry.Register(&theory.Theory{ID: "causal-loop", ObTypes: []string{"Entity"}})
	docID := c.Repo.Create(domain.NewModelDocument("ops", "causal-loop"))
	refID := c.Store.Mint(docID, "refserver", domain.PermissionNone)

	ld, err := c.Session.LiveDoc(context.Background(), refID)

	require.NoError(t, err)
	assert.Equal(t, "ops", ld.Doc().Name)
	assert.Equal(t, domain.PermissionOwn, ld.Permissions())
}
