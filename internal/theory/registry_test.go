package theory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "chalkboard/internal/errors"
)

const causalLoopYAML = `
id: causal-loop
name: Causal Loop Diagram
obTypes:
  - Entity
morTypes:
  - name: Positive
    dom: Entity
    cod: Entity
  - name: Negative
    dom: Entity
    cod: Entity
inclusions:
  - regnet
pushforwards:
  - stock-flow
`

func writeTheoryFile(t *testing.T, dir, id, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".yaml"), []byte(body), 0o644))
}

func TestRegistryLoadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	writeTheoryFile(t, dir, "causal-loop", causalLoopYAML)
	reg := NewRegistry(dir, nil)

	th, err := reg.Get(context.Background(), "causal-loop")

	require.NoError(t, err)
	assert.Equal(t, "Causal Loop Diagram", th.Name)
	assert.True(t, th.HasObType("Entity"))
	assert.False(t, th.HasObType("Stock"))
	assert.True(t, th.Includes("regnet"))
	assert.True(t, th.HasPushforwardTo("stock-flow"))
	assert.False(t, th.HasPushforwardTo("regnet"))

	mt, ok := th.MorType("Negative")
	require.True(t, ok)
	assert.Equal(t, "Entity", mt.Dom)
}

func TestRegistryGetIsStableAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	writeTheoryFile(t, dir, "causal-loop", causalLoopYAML)
	reg := NewRegistry(dir, nil)

	a, err := reg.Get(context.Background(), "causal-loop")
	require.NoError(t, err)
	b, err := reg.Get(context.Background(), "causal-loop")
	require.NoError(t, err)

	assert.Same(t, a, b)
}

func TestRegistryUnknownTheory(t *testing.T) {
	reg := NewRegistry(t.TempDir(), nil)

	_, err := reg.Get(context.Background(), "no-such-theory")

	assert.True(t, apperrors.IsNotFound(err))
}

func TestRegistryRejectsMismatchedID(t *testing.T) {
	dir := t.TempDir()
	writeTheoryFile(t, dir, "alias", causalLoopYAML) // file declares causal-loop
	reg := NewRegistry(dir, nil)

	_, err := reg.Get(context.Background(), "alias")

	assert.Error(t, err)
}

func TestRegistryRegisterAndReload(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(dir, nil)
	reg.Register(&Theory{ID: "inproc", ObTypes: []string{"Entity"}})

	th, err := reg.Get(context.Background(), "inproc")
	require.NoError(t, err)
	assert.True(t, th.HasObType("Entity"))

	reg.Reload()

	_, err = reg.Get(context.Background(), "inproc")
	assert.Error(t, err)
}

func TestRegistryCancelledContext(t *testing.T) {
	reg := NewRegistry("", nil)
	reg.Register(&Theory{ID: "x"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := reg.Get(ctx, "x")

	assert.ErrorIs(t, err, context.Canceled)
}
