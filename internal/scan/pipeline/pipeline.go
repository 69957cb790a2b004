package pipeline

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/banshee-data/scanmesh/internal/config"
	"github.com/banshee-data/scanmesh/internal/monitoring"
	"github.com/banshee-data/scanmesh/internal/scan"
	"github.com/banshee-data/scanmesh/internal/scan/export"
	"github.com/banshee-data/scanmesh/internal/scan/l1samples"
	"github.com/banshee-data/scanmesh/internal/scan/l2grid"
	"github.com/banshee-data/scanmesh/internal/scan/l3profile"
	"github.com/banshee-data/scanmesh/internal/scan/l4surface"
	"github.com/banshee-data/scanmesh/internal/scan/l5mesh"
)

// Config is the fully resolved parameter set for one run.
type Config struct {
	Parse     l1samples.Options
	Grid      l2grid.Config
	InterpRes int
	Smooth    l3profile.SmoothOptions
	Surface   l4surface.Options
	Format    export.Format
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	cfg, err := ConfigFrom(config.EmptyReconstructionConfig())
	if err != nil {
		panic(err)
	}
	return cfg
}

// ConfigFrom resolves a JSON reconstruction config into typed stage options.
func ConfigFrom(rc *config.ReconstructionConfig) (Config, error) {
	if err := rc.Validate(); err != nil {
		return Config{}, fmt.Errorf("%w: %v", scan.ErrInvalidConfig, err)
	}
	ragged, err := l1samples.ParseRaggedPolicy(rc.GetRaggedSlices())
	if err != nil {
		return Config{}, err
	}
	missing, err := l4surface.ParseMissingRowPolicy(rc.GetMissingRowPolicy())
	if err != nil {
		return Config{}, err
	}
	format, err := export.ParseFormat(rc.GetSTLFormat())
	if err != nil {
		return Config{}, err
	}
	return Config{
		Parse: l1samples.Options{Ragged: ragged},
		Grid: l2grid.Config{
			CenterDistance: rc.GetCenterDistance(),
			MaxDistance:    rc.GetMaxDistance(),
		},
		InterpRes: rc.GetInterpRes(),
		Smooth: l3profile.SmoothOptions{
			Sigma:       rc.GetSigma(),
			WrapColumns: rc.GetWrapSeam(),
		},
		Surface: l4surface.Options{
			ZDelta:     rc.GetZDelta(),
			MissingRow: missing,
		},
		Format: format,
	}, nil
}

// Validate checks parameters that can be rejected before reading input.
func (c Config) Validate() error {
	if err := c.Grid.Validate(); err != nil {
		return err
	}
	if c.InterpRes < 1 || c.InterpRes > l3profile.MaxResampleFactor {
		return fmt.Errorf("%w: interp_res %d", scan.ErrInvalidResampleFactor, c.InterpRes)
	}
	if math.IsNaN(c.Smooth.Sigma) || c.Smooth.Sigma < 0 || c.Smooth.Sigma > l3profile.MaxSigma {
		return fmt.Errorf("%w: sigma %v", scan.ErrInvalidConfig, c.Smooth.Sigma)
	}
	return nil
}

// Result carries the mesh and every intermediate product of a run.
type Result struct {
	Parse   l1samples.ParseStats
	Build   l2grid.BuildStats
	Surface l4surface.Stats

	// Radii is the grid straight out of the builder; Profile is after
	// resampling and smoothing.
	Radii    *scan.RadiusGrid
	Profile  *scan.RadiusGrid
	Vertices *scan.VertexGrid
	Mesh     *scan.Mesh
}

// Run reads scan text from r and reconstructs the mesh. It either returns a
// complete Result or an error; there is no partial output.
func Run(r io.Reader, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	done := monitoring.Timed("pipeline")
	defer done()

	parsed, err := l1samples.Parse(r, cfg.Parse)
	if err != nil {
		return nil, fmt.Errorf("parse scan: %w", err)
	}
	res, err := RunSlices(parsed.Slices, cfg)
	if err != nil {
		return nil, err
	}
	res.Parse = parsed.Stats
	return res, nil
}

// RunString is Run over an in-memory scan.
func RunString(text string, cfg Config) (*Result, error) {
	return Run(strings.NewReader(text), cfg)
}

// RunSlices runs stages 2 to 6 over already segmented slices.
func RunSlices(slices []scan.Slice, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	res := &Result{}

	var err error
	res.Radii, res.Build, err = l2grid.Build(slices, cfg.Grid)
	if err != nil {
		return nil, fmt.Errorf("build radius grid: %w", err)
	}

	profile, err := l3profile.Resample(res.Radii, cfg.InterpRes)
	if err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}
	res.Profile, err = l3profile.Smooth(profile, cfg.Smooth)
	if err != nil {
		return nil, fmt.Errorf("smooth: %w", err)
	}

	res.Vertices, res.Surface, err = l4surface.Project(res.Profile, cfg.Surface)
	if err != nil {
		return nil, fmt.Errorf("project surface: %w", err)
	}

	res.Mesh = l5mesh.Triangulate(res.Vertices)
	return res, nil
}

// Summary is the JSON-friendly digest of a run.
type Summary struct {
	Rows      int                  `json:"rows"`
	Cols      int                  `json:"cols"`
	Parse     l1samples.ParseStats `json:"parse"`
	Build     l2grid.BuildStats    `json:"build"`
	Surface   l4surface.Stats      `json:"surface"`
	Mesh      l5mesh.Stats         `json:"mesh"`
	Missing   int                  `json:"missing_cells"`
	Triangles int                  `json:"triangle_count"`
}

// Summary digests the result.
func (r *Result) Summary() Summary {
	rows, cols := r.Profile.Dims()
	ms := l5mesh.Summarize(r.Mesh)
	return Summary{
		Rows:      rows,
		Cols:      cols,
		Parse:     r.Parse,
		Build:     r.Build,
		Surface:   r.Surface,
		Mesh:      ms,
		Missing:   r.Profile.MissingCount(),
		Triangles: ms.Triangles,
	}
}

// WriteSTL hands the mesh to the STL exporter.
func (r *Result) WriteSTL(w io.Writer, f export.Format) error {
	return export.Write(w, r.Mesh, f)
}
