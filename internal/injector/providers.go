package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/scenery/internal/config"
	"github.com/zeusync/scenery/internal/core/ecs"
	"github.com/zeusync/scenery/internal/core/editor"
	"github.com/zeusync/scenery/internal/core/events"
	"github.com/zeusync/scenery/internal/core/observability/log"
	"github.com/zeusync/scenery/internal/core/render"
	"github.com/zeusync/scenery/internal/core/resources"
	"github.com/zeusync/scenery/internal/core/scenefile"
	"github.com/zeusync/scenery/internal/core/systems"
	"github.com/zeusync/scenery/internal/core/systems/physics"
	"github.com/zeusync/scenery/internal/extensions/spin"
	"github.com/zeusync/scenery/internal/host"
	"github.com/zeusync/scenery/internal/telemetry"
)

// ProviderSet builds a host from a config.
var ProviderSet = wire.NewSet(
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	render.NewRecorder,
	wire.Bind(new(render.Renderer), new(*render.Recorder)),
	ProvidePhysics,
	wire.Bind(new(physics.Physics), new(*physics.Simulator)),
	ProvideScene,
	ProvidePipeline,
	events.NewBus,
	ProvideHistory,
	editor.NewSession,
	ProvideLibrary,
	scenefile.NewLoader,
	wire.Bind(new(scenefile.Resolver), new(*resources.Library)),
	spin.New,
	telemetry.NewHub,
	host.New,
)

// ProvideLogger builds the configured logger. The cleanup flushes it.
func ProvideLogger(cfg config.Config) (*log.Logger, func(), error) {
	logger, err := cfg.Logger()
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { _ = logger.Sync() }, nil
}

func ProvidePhysics(cfg config.Config) *physics.Simulator {
	return physics.NewSimulator(cfg.Physics.Gravity)
}

func ProvideScene(cfg config.Config, r render.Renderer, p physics.Physics, logger log.Log) *ecs.Scene {
	return ecs.NewScene(cfg.SceneSettings(), r, p, logger)
}

func ProvidePipeline(cfg config.Config, scene *ecs.Scene, logger log.Log) *systems.Pipeline {
	return systems.NewPipeline(cfg.PipelineSettings(), scene, logger)
}

func ProvideHistory(cfg config.Config, scene *ecs.Scene, bus *events.Bus, logger log.Log) *editor.History {
	return editor.NewHistory(cfg.Editor, scene, bus, logger)
}

func ProvideLibrary(cfg config.Config, r render.Renderer, logger log.Log) *resources.Library {
	return resources.NewLibrary(cfg.Scene.Assets, r, logger)
}
