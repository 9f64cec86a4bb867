// Command scenehost loads a scene and runs it at a fixed timestep, streaming
// frame telemetry over websocket when enabled.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeusync/scenery/internal/config"
	"github.com/zeusync/scenery/internal/core/observability/log"
	"github.com/zeusync/scenery/internal/injector"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	scenePath := flag.String("scene", "", "scene file to load (overrides scene.file)")
	savePath := flag.String("save", "", "write the scene here on shutdown")
	telemetry := flag.Bool("telemetry", false, "serve frame telemetry (overrides telemetry.enabled)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, "scenehost:", err)
			os.Exit(1)
		}
	}
	if *scenePath != "" {
		cfg.Scene.File = *scenePath
	}
	if *telemetry {
		cfg.Telemetry.Enabled = true
	}

	h, cleanup, err := injector.InitializeHost(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "scenehost:", err)
		os.Exit(1)
	}
	defer cleanup()
	defer h.Close()
	logger := h.Scene().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = h.Prepare(ctx); err != nil {
		logger.Error("prepare scene", log.Error(err))
		return
	}
	if err = h.Run(ctx); err != nil {
		logger.Error("host failed", log.Error(err))
	}
	if *savePath != "" {
		if err := h.Save(*savePath); err != nil {
			logger.Error("save scene", log.String("file", *savePath), log.Error(err))
			return
		}
		logger.Info("scene saved", log.String("file", *savePath), log.Int("entities", h.Scene().Len()))
	}
}
