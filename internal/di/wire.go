//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"
)

// SuperSet combines every provider needed to assemble the service.
var SuperSet = wire.NewSet(
	provideConfig,
	provideLogger,
	providePrometheusRegistry,
	provideMetrics,
	provideRegistry,
	provideTheoryWatcher,
	provideRepo,
	provideTokenIssuer,
	provideRefStore,
	provideServer,
	providePipeline,
	provideSession,
	provideEngine,
	provideRouter,
	provideContainer,
)

// InitializeContainer builds the full service container.
func InitializeContainer() (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil
}
