package theory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	apperrors "chalkboard/internal/errors"
)

// Registry is the process-wide theory library. Theories are loaded lazily
// from YAML files in a directory and cached; Register adds in-process
// theories directly (used by the standard library of theories and by tests).
//
// Lookup is async-shaped: Get may block on disk I/O, so callers treat a
// pending lookup as "loading" rather than as an error.
type Registry struct {
	mu       sync.RWMutex
	theories map[string]*Theory
	dir      string
	logger   *zap.Logger
}

// NewRegistry creates a registry backed by the given directory. An empty dir
// disables file loading; only registered theories resolve.
func NewRegistry(dir string, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		theories: make(map[string]*Theory),
		dir:      dir,
		logger:   logger,
	}
}

// Register adds a theory to the library, replacing any previous entry with
// the same id.
func (r *Registry) Register(t *Theory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.theories[t.ID] = t
}

// Get resolves a theory by id, loading it from disk on first use.
func (r *Registry) Get(ctx context.Context, id string) (*Theory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	t, ok := r.theories[id]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}

	if r.dir == "" {
		return nil, apperrors.NewReferenceNotFound("theory:" + id)
	}

	t, err := r.loadFromDisk(id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	// A concurrent Get may have loaded the same theory; keep the first one
	// so every caller observes the same instance.
	if existing, ok := r.theories[id]; ok {
		t = existing
	} else {
		r.theories[id] = t
	}
	r.mu.Unlock()
	return t, nil
}

func (r *Registry) loadFromDisk(id string) (*Theory, error) {
	path := filepath.Join(r.dir, id+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewReferenceNotFound("theory:" + id)
		}
		return nil, apperrors.NewInternal("reading theory file", err)
	}

	var t Theory
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, apperrors.NewInternal(fmt.Sprintf("parsing theory %s", id), err)
	}
	if t.ID == "" {
		t.ID = id
	}
	if t.ID != id {
		return nil, apperrors.NewValidation(
			fmt.Sprintf("theory file %s declares id %q", filepath.Base(path), t.ID))
	}

	r.logger.Info("loaded theory",
		zap.String("theory_id", t.ID),
		zap.Int("ob_types", len(t.ObTypes)),
		zap.Int("mor_types", len(t.MorTypes)))
	return &t, nil
}

// Reload drops all disk-loaded theories so the next Get re-reads them.
// Called by the config watcher when the theory directory changes.
// Registered (in-process) theories are re-read from disk too if a file with
// the same id exists; otherwise they are lost, so callers re-register after
// a reload if they mix both sources.
func (r *Registry) Reload() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.theories = make(map[string]*Theory)
	r.logger.Info("theory registry reloaded")
}

// Known returns the ids currently resolvable without disk I/O.
func (r *Registry) Known() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.theories))
	for id := range r.theories {
		ids = append(ids, id)
	}
	return ids
}
