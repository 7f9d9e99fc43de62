//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"

	adapterrepo "github.com/eslsoft/tafsirnet/internal/adapter/repository"
	"github.com/eslsoft/tafsirnet/internal/adapter/rest"
	"github.com/eslsoft/tafsirnet/internal/infrastructure/config"
	"github.com/eslsoft/tafsirnet/internal/infrastructure/server"
)

var repositorySet = wire.NewSet(
	ProvideCorpusStore,
	ProvideCorpus,
	adapterrepo.NewVerseIndex,
)

var providerSet = wire.NewSet(
	ProvideLLMClient,
	ProvideResponseCache,
	ProvideAuthorizer,
)

var usecaseSet = wire.NewSet(
	ProvideTafsirUsecase,
)

var serverSet = wire.NewSet(
	server.NewLogger,
	rest.NewTafsirHandler,
	server.NewServer,
)

// Initialize builds the application container using Wire.
func Initialize(cfg *config.Config) (*Container, func(), error) {
	wire.Build(
		repositorySet,
		providerSet,
		usecaseSet,
		serverSet,
		wire.Struct(new(Container), "*"),
	)
	return nil, nil, nil
}
