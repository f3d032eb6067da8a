package crdt

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chalkboard/internal/domain"
	apperrors "chalkboard/internal/errors"
)

func TestFindUnknownDoc(t *testing.T) {
	repo := NewMemoryRepo(nil)

	_, err := repo.Find(context.Background(), "missing")

	assert.True(t, apperrors.IsNotFound(err))
}

func TestChangeIsCopyOnWrite(t *testing.T) {
	repo := NewMemoryRepo(nil)
	id := repo.Create(domain.NewModelDocument("doc", "A"))
	h, err := repo.Find(context.Background(), id)
	require.NoError(t, err)

	before, err := h.Doc(context.Background())
	require.NoError(t, err)

	require.NoError(t, h.Change(context.Background(), func(d *domain.Document) error {
		d.Name = "renamed"
		return nil
	}))

	after, err := h.Doc(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "doc", before.Name, "old snapshot unchanged")
	assert.Equal(t, "renamed", after.Name)
}

func TestChangeErrorAborts(t *testing.T) {
	repo := NewMemoryRepo(nil)
	id := repo.Create(domain.NewModelDocument("doc", "A"))
	h, _ := repo.Find(context.Background(), id)

	boom := errors.New("boom")
	err := h.Change(context.Background(), func(d *domain.Document) error {
		d.Name = "never"
		return boom
	})

	assert.ErrorIs(t, err, boom)
	doc, _ := h.Doc(context.Background())
	assert.Equal(t, "doc", doc.Name)
}

func TestChangesDeliveredInOrderAcrossHandles(t *testing.T) {
	repo := NewMemoryRepo(nil)
	id := repo.Create(domain.NewModelDocument("doc", "A"))
	writer, _ := repo.Find(context.Background(), id)
	reader, _ := repo.Find(context.Background(), id)

	var mu sync.Mutex
	var seen []string
	off := reader.OnChange(func(doc *domain.Document) {
		mu.Lock()
		seen = append(seen, doc.Name)
		mu.Unlock()
	})
	defer off()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = writer.Change(context.Background(), func(d *domain.Document) error {
				d.Name = d.Name + "x"
				return nil
			})
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 8)
	for i, name := range seen {
		assert.Len(t, name, len("doc")+i+1, "snapshots arrive in application order")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	repo := NewMemoryRepo(nil)
	id := repo.Create(domain.NewModelDocument("doc", "A"))
	h, _ := repo.Find(context.Background(), id)

	calls := 0
	off := h.OnChange(func(*domain.Document) { calls++ })
	require.Equal(t, 1, repo.SubscriberCount(id))

	require.NoError(t, h.Change(context.Background(), func(d *domain.Document) error { return nil }))
	off()
	require.NoError(t, h.Change(context.Background(), func(d *domain.Document) error { return nil }))

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, repo.SubscriberCount(id))
}
