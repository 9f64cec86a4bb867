// Command meshopt welds duplicate vertices, drops degenerate triangles and
// narrows indices of a mesh file.
//
//	meshopt -i crate.mesh [-o crate.opt.mesh]
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/zeusync/scenery/internal/core/mesh"
	"github.com/zeusync/scenery/internal/core/observability/log"
)

func main() {
	logger := log.New(log.LevelInfo)
	defer func() { _ = logger.Sync() }()
	os.Exit(run(os.Args[1:], os.Stdout, logger))
}

func run(args []string, stdout io.Writer, logger log.Log) int {
	fs := flag.NewFlagSet("meshopt", flag.ContinueOnError)
	fs.SetOutput(stdout)
	input := fs.String("i", "", "input mesh file")
	output := fs.String("o", "", "output mesh file (defaults to the input)")
	help := fs.Bool("help", false, "print usage")
	fs.Usage = func() {
		_, _ = fmt.Fprintln(stdout, "usage: meshopt -i <input> [-o <output>]")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 0
	}
	if *help || *input == "" {
		fs.Usage()
		return 0
	}
	if *output == "" {
		*output = *input
	}

	m, err := mesh.ReadFile(*input)
	if err != nil {
		logger.Error("read mesh", log.String("file", *input), log.Error(err))
		return 1
	}
	stats, err := mesh.Optimize(m)
	if err != nil {
		logger.Error("optimize mesh", log.String("file", *input), log.Error(err))
		return 1
	}
	if err = mesh.WriteFile(*output, m); err != nil {
		logger.Error("write mesh", log.String("file", *output), log.Error(err))
		return 1
	}

	logger.Info("mesh optimized",
		log.String("input", *input),
		log.String("output", *output),
		log.Int("vertices_before", stats.VerticesBefore),
		log.Int("vertices_after", stats.VerticesAfter),
		log.Int("triangles_before", stats.TrianglesBefore),
		log.Int("triangles_after", stats.TrianglesAfter),
		log.Int("degenerate", stats.Degenerate),
		log.Int("index_width", stats.IndexWidth),
	)
	return 0
}
