// Command scenebench builds a deep hierarchy and times update frames.
//
// Profiling:
//
//	go build ./cmd/scenebench
//	./scenebench -profile cpu
//	go tool pprof -http=":8000" ./scenebench cpu.pprof
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/profile"

	"github.com/zeusync/scenery/internal/core/ecs"
	"github.com/zeusync/scenery/internal/core/maths"
	"github.com/zeusync/scenery/internal/core/observability/log"
	"github.com/zeusync/scenery/internal/core/render"
	"github.com/zeusync/scenery/internal/core/systems"
	"github.com/zeusync/scenery/internal/core/systems/physics"
	"github.com/zeusync/scenery/internal/extensions/spin"
)

type options struct {
	Roots  int
	Depth  int
	Fanout int
	Frames int
	Clones int
}

type result struct {
	Entities int
	Frames   int
	Total    time.Duration
	Slowest  time.Duration
	Last     systems.FrameStats
}

func (r result) Mean() time.Duration {
	if r.Frames == 0 {
		return 0
	}
	return r.Total / time.Duration(r.Frames)
}

func main() {
	var opts options
	flag.IntVar(&opts.Roots, "roots", 16, "root entities")
	flag.IntVar(&opts.Depth, "depth", 4, "levels below each root")
	flag.IntVar(&opts.Fanout, "fanout", 4, "children per entity")
	flag.IntVar(&opts.Frames, "frames", 600, "frames to run")
	flag.IntVar(&opts.Clones, "clones", 1, "subtree clones made before timing")
	mode := flag.String("profile", "", "cpu, mem or empty for none")
	dir := flag.String("out", ".", "profile output directory")
	flag.Parse()

	logger := log.New(log.LevelInfo)
	defer func() { _ = logger.Sync() }()

	var stop interface{ Stop() }
	switch *mode {
	case "":
	case "cpu":
		stop = profile.Start(profile.CPUProfile, profile.ProfilePath(*dir), profile.NoShutdownHook)
	case "mem":
		stop = profile.Start(profile.MemProfileAllocs, profile.ProfilePath(*dir), profile.NoShutdownHook)
	default:
		fmt.Fprintf(os.Stderr, "scenebench: unknown profile %q\n", *mode)
		os.Exit(2)
	}

	res, err := run(opts, logger)
	if stop != nil {
		stop.Stop()
	}
	if err != nil {
		logger.Error("benchmark failed", log.Error(err))
		os.Exit(1)
	}
	logger.Info("benchmark finished",
		log.Int("entities", res.Entities),
		log.Int("frames", res.Frames),
		log.Duration("mean", res.Mean()),
		log.Duration("slowest", res.Slowest),
		log.Int("renderables", res.Last.Renderables),
		log.Int("lights", res.Last.Lights.Point),
	)
}

func run(opts options, logger log.Log) (result, error) {
	s := ecs.NewScene(ecs.DefaultConfig(), render.NewRecorder(), physics.NewSimulator(mgl32.Vec3{0, -9.81, 0}), logger)
	spinner := spin.New()
	if err := s.RegisterExtension(spinner); err != nil {
		return result{}, err
	}
	p := systems.NewPipeline(systems.DefaultConfig(), s, logger)

	var roots []ecs.EntityID
	for i := range opts.Roots {
		root := s.Allocate()
		t := maths.IdentityTransform()
		t.Translation = mgl32.Vec3{float32(i) * 4, 0, 0}
		s.SetTransform(root, t)
		spinner.Set(root, mgl32.Vec3{0, 1, 0})
		grow(s, root, opts.Depth, opts.Fanout)
		roots = append(roots, root)
	}
	for i := 0; i < opts.Clones && len(roots) > 0; i++ {
		if _, err := s.CloneSubtree(roots[i%len(roots)], ecs.CloneInstantiate, mgl32.Vec3{0, 0, 8}); err != nil {
			return result{}, err
		}
	}

	res := result{Entities: s.Len()}
	for range opts.Frames {
		stats := p.Update(1.0 / 60)
		res.Total += stats.Duration
		res.Slowest = max(res.Slowest, stats.Duration)
		res.Frames++
		res.Last = stats
	}
	return res, nil
}

// grow hangs fanout children below parent, depth levels deep. Every leaf is
// a point light.
func grow(s *ecs.Scene, parent ecs.EntityID, depth, fanout int) {
	if depth == 0 {
		s.SetLight(parent, ecs.Light{Kind: ecs.LightPoint, Radius: 1, Colour: mgl32.Vec3{1, 1, 1}})
		return
	}
	for i := range fanout {
		child := s.Allocate()
		s.Parents.Set(child, parent)
		t := maths.IdentityTransform()
		t.Translation = mgl32.Vec3{float32(i), 1, 0}
		s.SetTransform(child, t)
		s.Bounds.Set(child, ecs.BoundingVolume{Min: mgl32.Vec3{-0.5, -0.5, -0.5}, Max: mgl32.Vec3{0.5, 0.5, 0.5}})
		grow(s, child, depth-1, fanout)
	}
}
