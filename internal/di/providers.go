// Package di assembles the reference service. Providers are plain
// constructors; Wire composes them into the container.
package di

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"chalkboard/internal/backend"
	"chalkboard/internal/config"
	"chalkboard/internal/crdt"
	"chalkboard/internal/domain"
	"chalkboard/internal/elab"
	"chalkboard/internal/livedoc"
	"chalkboard/internal/migrate"
	"chalkboard/internal/observability"
	"chalkboard/internal/theory"
)

func provideConfig() (*config.Config, error) {
	return config.Load()
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zapCfg.Level = level
	return zapCfg.Build()
}

func providePrometheusRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func provideMetrics(cfg *config.Config, reg *prometheus.Registry) *observability.Metrics {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewMetrics(reg)
}

func provideRegistry(cfg *config.Config, logger *zap.Logger) *theory.Registry {
	return theory.NewRegistry(cfg.TheoryDir, logger)
}

func provideTheoryWatcher(
	cfg *config.Config,
	registry *theory.Registry,
	logger *zap.Logger,
) (*config.TheoryWatcher, error) {
	if cfg.TheoryDir == "" {
		return nil, nil
	}
	if _, err := os.Stat(cfg.TheoryDir); err != nil {
		logger.Warn("theory directory absent, hot reload disabled",
			zap.String("dir", cfg.TheoryDir))
		return nil, nil
	}
	return config.NewTheoryWatcher(cfg.TheoryDir, registry.Reload, logger)
}

func provideRepo(logger *zap.Logger) *crdt.MemoryRepo {
	return crdt.NewMemoryRepo(logger)
}

func provideTokenIssuer(cfg *config.Config) *backend.TokenIssuer {
	return backend.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer)
}

func provideRefStore() *backend.RefStore {
	return backend.NewRefStore()
}

func provideServer(
	store *backend.RefStore,
	repo *crdt.MemoryRepo,
	issuer *backend.TokenIssuer,
	logger *zap.Logger,
) *backend.Server {
	return backend.NewServer(store, repo, issuer, logger)
}

// provideRouter mounts the API and, when metrics are enabled, the
// Prometheus scrape endpoint.
func provideRouter(cfg *config.Config, server *backend.Server, reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Mount("/", server.Handler())
	if cfg.EnableMetrics {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	return r
}

func providePipeline(logger *zap.Logger, metrics *observability.Metrics) *elab.Pipeline {
	return elab.NewPipeline(elab.NewBasicElaborator(), logger, metrics)
}

// provideSession wires the colocated editing runtime against the in-process
// ref store, acting as the service principal.
func provideSession(
	store *backend.RefStore,
	repo *crdt.MemoryRepo,
	registry *theory.Registry,
	pipeline *elab.Pipeline,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *livedoc.Session {
	api := backend.NewLocalAPI(store, domain.Principal{UserID: "refserver"})
	resolver := livedoc.NewResolver(api, logger, metrics)
	return livedoc.NewSession(resolver, repo, registry, pipeline, logger, metrics)
}

func provideEngine(
	registry *theory.Registry,
	pipeline *elab.Pipeline,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *migrate.Engine {
	return migrate.NewEngine(registry, pipeline, logger, metrics)
}

func provideContainer(
	cfg *config.Config,
	logger *zap.Logger,
	metrics *observability.Metrics,
	registry *theory.Registry,
	watcher *config.TheoryWatcher,
	repo *crdt.MemoryRepo,
	issuer *backend.TokenIssuer,
	store *backend.RefStore,
	server *backend.Server,
	session *livedoc.Session,
	engine *migrate.Engine,
	router http.Handler,
) *Container {
	return &Container{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics,
		Registry: registry,
		Watcher:  watcher,
		Repo:     repo,
		Issuer:   issuer,
		Store:    store,
		Server:   server,
		Session:  session,
		Engine:   engine,
		Router:   router,
	}
}
