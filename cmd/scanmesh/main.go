// Command scanmesh reconstructs a watertight STL mesh from scanner text
// output: one distance sample per line, slices closed by 9999.
//
//	scanmesh -in scan.txt -out scan.stl -config config/reconstruction.example.json
//	cat scan.txt | scanmesh -ascii > scan.stl
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/scanmesh/internal/config"
	"github.com/banshee-data/scanmesh/internal/fsutil"
	"github.com/banshee-data/scanmesh/internal/monitoring"
	"github.com/banshee-data/scanmesh/internal/scan/export"
	"github.com/banshee-data/scanmesh/internal/scan/monitor"
	"github.com/banshee-data/scanmesh/internal/scan/pipeline"
	"github.com/banshee-data/scanmesh/internal/version"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr, fsutil.OSFileSystem{}); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Printf("scanmesh: %v", err)
		os.Exit(1)
	}
}

type options struct {
	in, out, configPath string
	plotPath, chartPath string
	ascii, quiet        bool
	summary             bool
	showVersion         bool

	// Explicitly set flags override the config file.
	overrides *config.ReconstructionConfig
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("scanmesh", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{overrides: config.EmptyReconstructionConfig()}
	fs.StringVar(&o.in, "in", "-", "Scan text to read, - for stdin")
	fs.StringVar(&o.out, "out", "-", "STL file to write, - for stdout")
	fs.StringVar(&o.configPath, "config", "", "Reconstruction config JSON (see config/reconstruction.example.json)")
	fs.StringVar(&o.plotPath, "plot", "", "Write a PNG heatmap of the smoothed radius grid")
	fs.StringVar(&o.chartPath, "chart", "", "Write an interactive HTML heatmap of the smoothed radius grid")
	fs.BoolVar(&o.ascii, "ascii", false, "Write ASCII STL instead of binary")
	fs.BoolVar(&o.summary, "summary", false, "Print a JSON run summary to stderr")
	fs.BoolVar(&o.quiet, "q", false, "Suppress stage timing logs")
	fs.BoolVar(&o.showVersion, "version", false, "Print version and exit")

	zDelta := fs.Float64("z", 0, "Vertical spacing between slices")
	center := fs.Float64("center", 0, "Sensor distance to the rotation axis")
	maxDist := fs.Float64("max", 0, "Readings at or beyond this distance are missing")
	interp := fs.Int("interp", 0, "Vertical upsampling factor")
	sigma := fs.Float64("sigma", 0, "Gaussian smoothing sigma in rows, 0 disables")
	wrap := fs.Bool("wrap", false, "Smooth across the angular seam")
	ragged := fs.String("ragged", "", "Ragged slice policy: reject or truncate")
	missingRow := fs.String("missing-row", "", "All-missing row policy: carry, origin or fail")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "z":
			o.overrides.ZDelta = zDelta
		case "center":
			o.overrides.CenterDistance = center
		case "max":
			o.overrides.MaxDistance = maxDist
		case "interp":
			o.overrides.InterpRes = interp
		case "sigma":
			o.overrides.Sigma = sigma
		case "wrap":
			o.overrides.WrapSeam = wrap
		case "ragged":
			o.overrides.RaggedSlices = ragged
		case "missing-row":
			o.overrides.MissingRowPolicy = missingRow
		case "ascii":
			format := string(export.Binary)
			if o.ascii {
				format = string(export.ASCII)
			}
			o.overrides.STLFormat = &format
		}
	})
	return o, nil
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer, fsys fsutil.FileSystem) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if o.showVersion {
		fmt.Fprintf(stdout, "scanmesh %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return nil
	}
	if o.quiet {
		monitoring.SetLogger(nil)
		defer monitoring.SetLogger(log.Printf)
	}

	rc := config.EmptyReconstructionConfig()
	if o.configPath != "" {
		if rc, err = config.LoadReconstructionConfig(o.configPath); err != nil {
			return err
		}
	}
	cfg, err := pipeline.ConfigFrom(rc.Merge(o.overrides))
	if err != nil {
		return err
	}

	input := stdin
	if o.in != "-" {
		data, err := fsys.ReadFile(o.in)
		if err != nil {
			return fmt.Errorf("read scan: %w", err)
		}
		input = bytes.NewReader(data)
	}

	res, err := pipeline.Run(input, cfg)
	if err != nil {
		return err
	}

	if err := writeTo(fsys, o.out, stdout, func(w io.Writer) error {
		return res.WriteSTL(w, cfg.Format)
	}); err != nil {
		return fmt.Errorf("write stl: %w", err)
	}

	if o.plotPath != "" {
		if err := writeTo(fsys, o.plotPath, stdout, func(w io.Writer) error {
			return monitor.WriteHeatmapPNG(w, res.Profile, "radius profile")
		}); err != nil {
			return fmt.Errorf("write plot: %w", err)
		}
	}
	if o.chartPath != "" {
		if err := writeTo(fsys, o.chartPath, stdout, func(w io.Writer) error {
			return monitor.RenderHeatmapHTML(w, res.Profile, "radius profile")
		}); err != nil {
			return fmt.Errorf("write chart: %w", err)
		}
	}

	s := res.Summary()
	monitoring.Logf("[scanmesh] %dx%d grid, %d missing cells, %d triangles", s.Rows, s.Cols, s.Missing, s.Triangles)
	if o.summary {
		enc := json.NewEncoder(stderr)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	return nil
}

// writeTo hands write either stdout (for "-") or a freshly created file.
func writeTo(fsys fsutil.FileSystem, path string, stdout io.Writer, write func(io.Writer) error) error {
	if path == "-" {
		return write(stdout)
	}
	f, err := fsutil.CreateAll(fsys, path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
