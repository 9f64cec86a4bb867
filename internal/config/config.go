// Package config holds the YAML configuration of the scene host.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/scenery/internal/core/ecs"
	"github.com/zeusync/scenery/internal/core/editor"
	"github.com/zeusync/scenery/internal/core/observability/log"
	"github.com/zeusync/scenery/internal/core/systems"
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Scene     SceneConfig     `yaml:"scene"`
	Lights    LightsConfig    `yaml:"lights"`
	Editor    editor.Config   `yaml:"editor"`
	Physics   PhysicsConfig   `yaml:"physics"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Frame     FrameConfig     `yaml:"frame"`
}

type SceneConfig struct {
	InitialCapacity  int     `yaml:"initial_capacity"`
	CloneSuffix      string  `yaml:"clone_suffix"`
	RigBoundsPadding float32 `yaml:"rig_bounds_padding"`
	// Assets is the directory resource files are resolved against.
	Assets string `yaml:"assets"`
	// File is loaded at startup when set.
	File string `yaml:"file"`
}

type LightsConfig struct {
	Limits      systems.LightLimits `yaml:"limits"`
	ShadowSlots int                 `yaml:"shadow_slots"`
}

type PhysicsConfig struct {
	Gravity mgl32.Vec3 `yaml:"gravity"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

type TelemetryConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Address  string        `yaml:"address"`
	Path     string        `yaml:"path"`
	Interval time.Duration `yaml:"interval"`
}

type FrameConfig struct {
	Timestep time.Duration `yaml:"timestep"`
	// MaxSteps caps the fixed steps run to catch up after a slow frame.
	MaxSteps int `yaml:"max_steps"`
	// Preload lists resource files loaded before the first frame.
	Preload []string `yaml:"preload"`
	Workers int      `yaml:"workers"`
}

func Default() Config {
	scene := ecs.DefaultConfig()
	pipeline := systems.DefaultConfig()
	return Config{
		Scene: SceneConfig{
			InitialCapacity: scene.InitialCapacity,
			CloneSuffix:     scene.CloneSuffix,
			Assets:          ".",
		},
		Lights: LightsConfig{
			Limits:      pipeline.Lights,
			ShadowSlots: pipeline.ShadowSlots,
		},
		Editor:  editor.DefaultConfig(),
		Physics: PhysicsConfig{Gravity: mgl32.Vec3{0, -9.81, 0}},
		Log:     LogConfig{Level: "info", Encoding: "json"},
		Telemetry: TelemetryConfig{
			Address:  "127.0.0.1:7800",
			Path:     "/telemetry",
			Interval: time.Second,
		},
		Frame: FrameConfig{
			Timestep: time.Second / 60,
			MaxSteps: 5,
			Workers:  4,
		},
	}
}

// Load reads the file at path over the defaults.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Decode(f)
}

// Decode reads YAML from r over the defaults and validates the result. An
// empty document yields the defaults.
func Decode(r io.Reader) (Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	check(c.Scene.InitialCapacity > 0, "scene.initial_capacity must be positive, got %d", c.Scene.InitialCapacity)
	check(c.Scene.RigBoundsPadding >= 0, "scene.rig_bounds_padding must not be negative")
	l := c.Lights.Limits
	check(l.Directional >= 0 && l.Point >= 0 && l.Spot >= 0 && l.Area >= 0, "lights.limits must not be negative")
	check(c.Lights.ShadowSlots >= 0, "lights.shadow_slots must not be negative")
	check(c.Editor.CoalesceWindow >= 0, "editor.coalesce_window must not be negative")
	check(c.Frame.Timestep > 0, "frame.timestep must be positive")
	check(c.Frame.MaxSteps > 0, "frame.max_steps must be positive")
	check(c.Frame.Workers > 0, "frame.workers must be positive")
	if c.Telemetry.Enabled {
		check(c.Telemetry.Address != "", "telemetry.address is required")
		check(c.Telemetry.Interval > 0, "telemetry.interval must be positive")
	}
	switch c.Log.Encoding {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.encoding %q is not json or console", c.Log.Encoding))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// SceneSettings returns the scene construction settings.
func (c Config) SceneSettings() ecs.Config {
	return ecs.Config{InitialCapacity: c.Scene.InitialCapacity, CloneSuffix: c.Scene.CloneSuffix}
}

func (c Config) PipelineSettings() systems.Config {
	return systems.Config{
		Lights:           c.Lights.Limits,
		ShadowSlots:      c.Lights.ShadowSlots,
		RigBoundsPadding: c.Scene.RigBoundsPadding,
	}
}

// Logger builds the zap logger described by the log section.
func (c Config) Logger() (*log.Logger, error) {
	return log.NewWithEncoding(log.ParseLevel(c.Log.Level), c.Log.Encoding)
}
