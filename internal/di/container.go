package di

import (
	"net/http"

	"go.uber.org/zap"

	"chalkboard/internal/backend"
	"chalkboard/internal/config"
	"chalkboard/internal/crdt"
	"chalkboard/internal/livedoc"
	"chalkboard/internal/migrate"
	"chalkboard/internal/observability"
	"chalkboard/internal/theory"
)

// Container holds every assembled component of the reference service.
type Container struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Registry *theory.Registry
	Watcher  *config.TheoryWatcher
	Repo     *crdt.MemoryRepo
	Issuer   *backend.TokenIssuer
	Store    *backend.RefStore
	Server   *backend.Server
	Session  *livedoc.Session
	Engine   *migrate.Engine
	Router   http.Handler
}

// Start begins background work: the theory directory watcher, when one is
// configured.
func (c *Container) Start() {
	if c.Watcher != nil {
		c.Watcher.Start()
	}
}

// Shutdown stops background work, closes the editing session and flushes
// the logger.
func (c *Container) Shutdown() {
	if c.Watcher != nil {
		c.Watcher.Stop()
	}
	c.Session.Close()
	// Sync errors on stderr sinks are expected and harmless.
	_ = c.Logger.Sync()
}
