//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/scenery/internal/config"
	"github.com/zeusync/scenery/internal/host"
)

// InitializeHost wires a host for cfg. The cleanup flushes the logger.
func InitializeHost(cfg config.Config) (*host.Host, func(), error) {
	wire.Build(ProviderSet)
	return nil, nil, nil
}
