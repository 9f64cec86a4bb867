// Package host runs an editable scene at a fixed timestep.
package host

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/scenery/internal/config"
	"github.com/zeusync/scenery/internal/core/ecs"
	"github.com/zeusync/scenery/internal/core/editor"
	"github.com/zeusync/scenery/internal/core/events"
	"github.com/zeusync/scenery/internal/core/observability/log"
	"github.com/zeusync/scenery/internal/core/resources"
	"github.com/zeusync/scenery/internal/core/scenefile"
	"github.com/zeusync/scenery/internal/core/systems"
	"github.com/zeusync/scenery/internal/extensions/spin"
	"github.com/zeusync/scenery/internal/telemetry"
)

var ErrRunning = errors.New("host: already running")

// Host owns one scene and everything that updates, edits and streams it.
type Host struct {
	ID uuid.UUID

	cfg      config.Config
	scene    *ecs.Scene
	pipeline *systems.Pipeline
	session  *editor.Session
	library  *resources.Library
	loader   *scenefile.Loader
	spin     *spin.Extension
	hub      *telemetry.Hub
	bus      *events.Bus
	logger   log.Log

	running  bool
	lastSent time.Time
}

// New registers the spin extension and the editor controller on scene.
func New(
	cfg config.Config,
	scene *ecs.Scene,
	pipeline *systems.Pipeline,
	session *editor.Session,
	library *resources.Library,
	loader *scenefile.Loader,
	spinner *spin.Extension,
	hub *telemetry.Hub,
	bus *events.Bus,
	logger log.Log,
) (*Host, error) {
	id := uuid.New()
	h := &Host{
		ID:       id,
		cfg:      cfg,
		scene:    scene,
		pipeline: pipeline,
		session:  session,
		library:  library,
		loader:   loader,
		spin:     spinner,
		hub:      hub,
		bus:      bus,
		logger:   logger.Named("host").With(log.String("host", id.String())),
	}
	if err := scene.RegisterExtension(spinner); err != nil {
		return nil, err
	}
	scene.AddController(editor.NewController(session))
	return h, nil
}

func (h *Host) Scene() *ecs.Scene           { return h.scene }
func (h *Host) Session() *editor.Session    { return h.session }
func (h *Host) Library() *resources.Library { return h.library }
func (h *Host) Pipeline() *systems.Pipeline { return h.pipeline }
func (h *Host) Spin() *spin.Extension       { return h.spin }
func (h *Host) Bus() *events.Bus            { return h.bus }
func (h *Host) Telemetry() *telemetry.Hub   { return h.hub }
func (h *Host) Timestep() time.Duration     { return h.cfg.Frame.Timestep }
func (h *Host) Config() config.Config       { return h.cfg }
func (h *Host) Loader() *scenefile.Loader   { return h.loader }

// Prepare preloads the configured resources and loads the configured scene
// file.
func (h *Host) Prepare(ctx context.Context) error {
	if len(h.cfg.Frame.Preload) > 0 {
		if err := h.library.Preload(ctx, h.cfg.Frame.Preload, h.cfg.Frame.Workers); err != nil {
			return err
		}
	}
	if h.cfg.Scene.File == "" {
		return nil
	}
	res, err := h.loader.LoadFile(h.cfg.Scene.File, h.scene, false)
	if err != nil {
		return err
	}
	h.session.History().Reset()
	for _, d := range res.Diagnostics {
		h.logger.Warn("scene degraded", log.String("diagnostic", d.String()))
	}
	return nil
}

// Save writes the scene to path.
func (h *Host) Save(path string) error {
	return scenefile.SaveFile(path, h.scene)
}

// Step advances the scene by one fixed timestep and publishes the frame.
func (h *Host) Step() systems.FrameStats {
	stats := h.pipeline.Update(float32(h.cfg.Frame.Timestep.Seconds()))
	if err := h.bus.Publish(events.New(events.TypeFrame, h.ID.String(), stats)); err != nil {
		h.logger.Warn("frame handler failed", log.Uint64("frame", stats.Frame), log.Error(err))
	}
	return stats
}

// Frame is the telemetry message describing the last step.
func (h *Host) Frame() telemetry.Frame {
	undo, redo := h.session.History().Depth()
	return telemetry.Frame{
		Host:     h.ID.String(),
		Stats:    h.pipeline.Stats(),
		Undo:     undo,
		Redo:     redo,
		Degraded: h.scene.Degraded,
	}
}

// Run steps the scene until ctx is done, serving telemetry alongside when
// enabled. Steps lost to a slow frame beyond max_steps are dropped.
func (h *Host) Run(ctx context.Context) error {
	if h.running {
		return ErrRunning
	}
	h.running = true
	defer func() { h.running = false }()

	g, ctx := errgroup.WithContext(ctx)
	if h.cfg.Telemetry.Enabled {
		g.Go(func() error {
			if err := h.hub.Serve(ctx, h.cfg.Telemetry.Address, h.cfg.Telemetry.Path); err != nil {
				return fmt.Errorf("telemetry: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error { return h.loop(ctx) })

	h.logger.Info("host running",
		log.Duration("timestep", h.cfg.Frame.Timestep),
		log.Bool("telemetry", h.cfg.Telemetry.Enabled),
		log.Int("entities", h.scene.Len()),
	)
	err := g.Wait()
	h.logger.Info("host stopped", log.Uint64("frames", h.pipeline.Stats().Frame))
	return err
}

func (h *Host) loop(ctx context.Context) error {
	step := h.cfg.Frame.Timestep
	ticker := time.NewTicker(step)
	defer ticker.Stop()

	last := time.Now()
	var pending time.Duration
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			pending += now.Sub(last)
			last = now
			pending = h.advance(pending, now)
		}
	}
}

// advance runs the whole steps pending holds and returns the remainder.
func (h *Host) advance(pending time.Duration, now time.Time) time.Duration {
	step := h.cfg.Frame.Timestep
	n := 0
	for pending >= step && n < h.cfg.Frame.MaxSteps {
		h.Step()
		pending -= step
		n++
	}
	if pending >= step {
		h.logger.Debug("steps dropped", log.Int64("steps", int64(pending/step)))
		pending %= step
	}
	if n > 0 {
		h.publishTelemetry(now)
	}
	return pending
}

func (h *Host) publishTelemetry(now time.Time) {
	if !h.cfg.Telemetry.Enabled || now.Sub(h.lastSent) < h.cfg.Telemetry.Interval {
		return
	}
	h.lastSent = now
	if err := h.hub.Broadcast(h.Frame()); err != nil && !errors.Is(err, telemetry.ErrHubClosed) {
		h.logger.Warn("telemetry broadcast failed", log.Error(err))
	}
}

// Close releases the resources the scene referenced and drops telemetry
// clients.
func (h *Host) Close() {
	h.scene.Clear()
	h.library.Release()
	h.hub.Close()
}
