package migrate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chalkboard/internal/crdt"
	"chalkboard/internal/domain"
	"chalkboard/internal/elab"
	apperrors "chalkboard/internal/errors"
	"chalkboard/internal/livedoc"
	"chalkboard/internal/theory"
)

type staticBackend struct {
	locators map[domain.RefID]domain.DocumentLocator
}

func (b *staticBackend) DocIDFor(ctx context.Context, refID domain.RefID) (domain.DocumentLocator, error) {
	loc, ok := b.locators[refID]
	if !ok {
		return domain.DocumentLocator{}, apperrors.NewReferenceNotFound(refID.String())
	}
	return loc, nil
}

func (b *staticBackend) GetPermissions(ctx context.Context, refID domain.RefID) (domain.PermissionLevel, error) {
	return b.locators[refID].MaxLevel, nil
}

func (b *staticBackend) ValidateSession(context.Context) error { return nil }

type engineFixture struct {
	registry *theory.Registry
	engine   *Engine
	live     *livedoc.LiveDocument
}

const migrateRef = domain.RefID("m1")

// newEngineFixture opens doc as a live document and builds an engine over a
// registry holding the causal-loop and stock-flow theories, with causal-loop
// declaring a pushforward to stock-flow.
func newEngineFixture(t *testing.T, doc *domain.Document) *engineFixture {
	t.Helper()
	registry := theory.NewRegistry("", nil)
	registry.Register(&theory.Theory{
		ID:      "causal-loop",
		ObTypes: []string{"Entity"},
		MorTypes: []theory.MorTypeDecl{
			{Name: "Positive", Dom: "Entity", Cod: "Entity"},
			{Name: "Negative", Dom: "Entity", Cod: "Entity"},
		},
		Inclusions:   []string{"causal-loop-delays"},
		Pushforwards: []string{"stock-flow"},
	})
	registry.Register(&theory.Theory{
		ID:      "causal-loop-delays",
		ObTypes: []string{"Entity"},
		MorTypes: []theory.MorTypeDecl{
			{Name: "Positive", Dom: "Entity", Cod: "Entity"},
			{Name: "Negative", Dom: "Entity", Cod: "Entity"},
			{Name: "Delayed", Dom: "Entity", Cod: "Entity"},
		},
	})
	registry.Register(&theory.Theory{
		ID:      "stock-flow",
		ObTypes: []string{"Stock"},
		MorTypes: []theory.MorTypeDecl{
			{Name: "Flow", Dom: "Stock", Cod: "Stock"},
		},
	})
	registry.Register(&theory.Theory{ID: "regnet", ObTypes: []string{"Gene"}})

	repo := crdt.NewMemoryRepo(nil)
	docID := repo.Create(doc)
	backend := &staticBackend{locators: map[domain.RefID]domain.DocumentLocator{
		migrateRef: {DocID: string(docID), MaxLevel: domain.PermissionOwn},
	}}
	pipeline := elab.NewPipeline(elab.NewBasicElaborator(), nil, nil)
	session := livedoc.NewSession(
		livedoc.NewResolver(backend, nil, nil), repo, registry, pipeline, nil, nil)
	t.Cleanup(session.Close)

	live, err := session.LiveDoc(context.Background(), migrateRef)
	require.NoError(t, err)

	return &engineFixture{
		registry: registry,
		engine:   NewEngine(registry, pipeline, nil, nil),
		live:     live,
	}
}

func causalLoopDoc(t *testing.T) *domain.Document {
	t.Helper()
	doc := domain.NewModelDocument("population", "causal-loop")
	births := domain.NewObjectJudgment("births", domain.BasicTypeRef("Entity"))
	population := domain.NewObjectJudgment("population", domain.BasicTypeRef("Entity"))
	growth := domain.NewMorphismJudgment("growth",
		domain.BasicTypeRef("Positive"),
		domain.CellTypeRef(births.ID),
		domain.CellTypeRef(population.ID))
	doc.Notebook.AppendCell(domain.NewFormalCell(births))
	doc.Notebook.AppendCell(domain.NewRichTextCell("births drive population"))
	doc.Notebook.AppendCell(domain.NewFormalCell(population))
	doc.Notebook.AppendCell(domain.NewFormalCell(growth))
	return doc
}

// causalLoopToStockFlow maps every entity onto a stock and every causal link
// onto a flow between the corresponding stocks.
func causalLoopToStockFlow(m *elab.Model, target *theory.Theory) (*elab.Model, error) {
	objects := make([]elab.ObjectDecl, len(m.Objects))
	for i, ob := range m.Objects {
		ob.TypeName = "Stock"
		objects[i] = ob
	}
	morphisms := make([]elab.MorphismDecl, len(m.Morphisms))
	for i, mor := range m.Morphisms {
		mor.TypeName = "Flow"
		mor.Dom.TypeName = "Stock"
		mor.Cod.TypeName = "Stock"
		morphisms[i] = mor
	}
	return elab.NewModel(target, objects, morphisms), nil
}

func TestInclusionRelabelsWithoutTouchingContent(t *testing.T) {
	f := newEngineFixture(t, causalLoopDoc(t))
	before := f.live.FormalJudgments()
	fingerprint := f.live.Doc().Notebook.FormalFingerprint()

	err := f.engine.Migrate(context.Background(), f.live, "causal-loop-delays")

	require.NoError(t, err)
	assert.Equal(t, "causal-loop-delays", f.live.Doc().TheoryID)
	after := f.live.FormalJudgments()
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID, "cell identity survives relabeling")
		assert.True(t, before[i].Equal(after[i]), "content survives relabeling")
	}
	assert.Equal(t, fingerprint, f.live.Doc().Notebook.FormalFingerprint())
}

func TestUnrelatedTheoriesAreRejectedUnchanged(t *testing.T) {
	f := newEngineFixture(t, causalLoopDoc(t))

	err := f.engine.Migrate(context.Background(), f.live, "regnet")

	require.Error(t, err)
	assert.True(t, apperrors.IsNoMigrationDefined(err))
	assert.Equal(t, "causal-loop", f.live.Doc().TheoryID, "failed migration leaves the document untouched")
}

func TestEmptyDocumentMigratesAnywhere(t *testing.T) {
	f := newEngineFixture(t, domain.NewModelDocument("blank", "causal-loop"))

	require.NoError(t, f.engine.Migrate(context.Background(), f.live, "regnet"))

	assert.Equal(t, "regnet", f.live.Doc().TheoryID)
}

func TestPushforwardRewritesAnnotationsInPlace(t *testing.T) {
	f := newEngineFixture(t, causalLoopDoc(t))
	f.engine.RegisterPushforward("causal-loop", "stock-flow", causalLoopToStockFlow)
	before := f.live.FormalJudgments()

	err := f.engine.Migrate(context.Background(), f.live, "stock-flow")

	require.NoError(t, err)
	doc := f.live.Doc()
	assert.Equal(t, "stock-flow", doc.TheoryID)

	after := f.live.FormalJudgments()
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID, "cell identity is preserved")
		assert.Equal(t, before[i].Name, after[i].Name)
		assert.Equal(t, before[i].Kind, after[i].Kind)
		assert.True(t, before[i].Dom.Equal(after[i].Dom), "wiring is preserved")
		assert.True(t, before[i].Cod.Equal(after[i].Cod), "wiring is preserved")
	}
	assert.Equal(t, "Stock", after[0].ObType.Content)
	assert.Equal(t, "Stock", after[1].ObType.Content)
	assert.Equal(t, "Flow", after[2].MorType.Content)

	// The migrated content elaborates cleanly under the new theory.
	vm, ready := f.live.ValidatedModel(context.Background())
	require.True(t, ready)
	assert.Equal(t, elab.TagValid, vm.Tag)
}

func TestPushforwardSeesTheElaboratedModel(t *testing.T) {
	f := newEngineFixture(t, causalLoopDoc(t))
	f.engine.RegisterPushforward("causal-loop", "stock-flow",
		func(m *elab.Model, target *theory.Theory) (*elab.Model, error) {
			// The function receives resolved content, not raw cells: the
			// growth morphism's endpoints already carry the object types.
			require.Equal(t, "causal-loop", m.Theory.ID)
			require.Equal(t, "stock-flow", target.ID)
			require.Len(t, m.Morphisms, 1)
			assert.Equal(t, "Entity", m.Morphisms[0].Dom.TypeName)
			assert.Equal(t, "Entity", m.Morphisms[0].Cod.TypeName)
			dom, ok := m.Object(m.Morphisms[0].Dom.ObjectID)
			require.True(t, ok)
			assert.Equal(t, "births", dom.Name)
			return causalLoopToStockFlow(m, target)
		})

	require.NoError(t, f.engine.Migrate(context.Background(), f.live, "stock-flow"))
	assert.Equal(t, "stock-flow", f.live.Doc().TheoryID)
}

func TestIllformedContentCannotBePushedForward(t *testing.T) {
	doc := domain.NewModelDocument("broken", "causal-loop")
	entity := domain.NewObjectJudgment("births", domain.BasicTypeRef("Entity"))
	dangling := domain.NewMorphismJudgment("growth",
		domain.BasicTypeRef("Positive"),
		domain.CellTypeRef(entity.ID),
		domain.CellTypeRef(uuid.New()))
	doc.Notebook.AppendCell(domain.NewFormalCell(entity))
	doc.Notebook.AppendCell(domain.NewFormalCell(dangling))
	f := newEngineFixture(t, doc)
	var calls atomic.Int32
	f.engine.RegisterPushforward("causal-loop", "stock-flow",
		func(m *elab.Model, target *theory.Theory) (*elab.Model, error) {
			calls.Add(1)
			return causalLoopToStockFlow(m, target)
		})
	fingerprint := f.live.Doc().Notebook.FormalFingerprint()

	err := f.engine.Migrate(context.Background(), f.live, "stock-flow")

	require.Error(t, err)
	assert.Equal(t, int32(0), calls.Load(), "content without a model is never translated")
	assert.Equal(t, "causal-loop", f.live.Doc().TheoryID)
	assert.Equal(t, fingerprint, f.live.Doc().Notebook.FormalFingerprint())
}

func TestPushforwardMustPreserveTheJudgmentSet(t *testing.T) {
	f := newEngineFixture(t, causalLoopDoc(t))
	f.engine.RegisterPushforward("causal-loop", "stock-flow",
		func(m *elab.Model, target *theory.Theory) (*elab.Model, error) {
			migrated, err := causalLoopToStockFlow(m, target)
			if err != nil {
				return nil, err
			}
			migrated.Morphisms = nil
			return migrated, nil
		})
	fingerprint := f.live.Doc().Notebook.FormalFingerprint()

	err := f.engine.Migrate(context.Background(), f.live, "stock-flow")

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeMigrationStructural, apperrors.TypeOf(err))
	assert.Equal(t, "causal-loop", f.live.Doc().TheoryID)
	assert.Equal(t, fingerprint, f.live.Doc().Notebook.FormalFingerprint())
}

func TestDeclaredPushforwardWithoutFunctionIsRejected(t *testing.T) {
	f := newEngineFixture(t, causalLoopDoc(t))

	err := f.engine.Migrate(context.Background(), f.live, "stock-flow")

	assert.True(t, apperrors.IsNoMigrationDefined(err))
}

func TestTranslationErrorAbortsBeforeAnyWrite(t *testing.T) {
	f := newEngineFixture(t, causalLoopDoc(t))
	f.engine.RegisterPushforward("causal-loop", "stock-flow",
		func(m *elab.Model, target *theory.Theory) (*elab.Model, error) {
			return nil, errors.New("untranslatable")
		})
	fingerprint := f.live.Doc().Notebook.FormalFingerprint()

	err := f.engine.Migrate(context.Background(), f.live, "stock-flow")

	require.Error(t, err)
	assert.Equal(t, "causal-loop", f.live.Doc().TheoryID)
	assert.Equal(t, fingerprint, f.live.Doc().Notebook.FormalFingerprint())
}

func TestUnknownTargetTheoryFails(t *testing.T) {
	f := newEngineFixture(t, causalLoopDoc(t))

	err := f.engine.Migrate(context.Background(), f.live, "no-such-theory")

	assert.True(t, apperrors.IsNotFound(err))
}

func TestMigrateToCurrentTheoryIsANoOp(t *testing.T) {
	f := newEngineFixture(t, causalLoopDoc(t))
	version := f.live.Store().Version()

	require.NoError(t, f.engine.Migrate(context.Background(), f.live, "causal-loop"))

	assert.Equal(t, version, f.live.Store().Version(), "no write is issued")
}
