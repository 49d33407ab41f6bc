//go:build wireinject

package main

import (
	"context"
	"log/slog"

	"github.com/google/wire"
	"github.com/onkernel/nasattach/cmd/nasattach/config"
	"github.com/onkernel/nasattach/lib/discovery"
	"github.com/onkernel/nasattach/lib/otel"
	"github.com/onkernel/nasattach/lib/paths"
	"github.com/onkernel/nasattach/lib/providers"
	"github.com/onkernel/nasattach/lib/run"
	"github.com/onkernel/nasattach/lib/teardown"
)

// application holds the initialized components a command may use
type application struct {
	Ctx         context.Context
	Logger      *slog.Logger
	Config      *config.Config
	Paths       *paths.Paths
	Coordinator *run.Coordinator
	Teardown    *teardown.Workflow
	Discoverer  *discovery.Discoverer
}

// initializeApp is the injector function
func initializeApp(cfg *config.Config, tel *otel.Provider) (*application, func(), error) {
	panic(wire.Build(
		providers.ProvidePaths,
		providers.ProvideLogger,
		providers.ProvideContext,
		providers.ProvideStorageClient,
		providers.ProvideVSphereClient,
		providers.ProvideComputeClient,
		providers.ProvideProvisioningWorkflow,
		providers.ProvideAttachmentWorkflow,
		providers.ProvideCoordinator,
		providers.ProvideTeardownWorkflow,
		providers.ProvideDiscoverer,
		wire.Struct(new(application), "*"),
	))
}
