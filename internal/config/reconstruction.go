package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// DefaultConfigPath is the path to the canonical reconstruction defaults file.
const DefaultConfigPath = "config/reconstruction.defaults.json"

// ReconstructionConfig holds every tunable of the scan-to-mesh pipeline.
// The schema matches the body accepted by POST /api/scans/{id}/process so
// the same JSON works for startup configuration and per-request overrides.
type ReconstructionConfig struct {
	// Geometry
	ZDelta         *float64 `json:"z_delta,omitempty"`
	CenterDistance *float64 `json:"center_distance,omitempty"`
	MaxDistance    *float64 `json:"max_distance,omitempty"`

	// Profile conditioning
	InterpRes *int     `json:"interp_res,omitempty"`
	Sigma     *float64 `json:"sigma,omitempty"`
	WrapSeam  *bool    `json:"wrap_seam,omitempty"`

	// Policies
	RaggedSlices     *string `json:"ragged_slices,omitempty"`      // "reject" or "truncate"
	MissingRowPolicy *string `json:"missing_row_policy,omitempty"` // "carry", "origin" or "fail"

	// Output
	STLFormat *string `json:"stl_format,omitempty"` // "binary" or "ascii"
}

// Upper bounds enforced by Validate. They match the pipeline's own limits.
const (
	MaxInterpRes = 64
	MaxSigma     = 16.0
)

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyReconstructionConfig returns a config with every field unset. The
// Get* methods fall back to the built-in defaults.
func EmptyReconstructionConfig() *ReconstructionConfig {
	return &ReconstructionConfig{}
}

// DefaultReconstructionConfig returns a config with every field populated
// with the built-in defaults.
func DefaultReconstructionConfig() *ReconstructionConfig {
	e := EmptyReconstructionConfig()
	return &ReconstructionConfig{
		ZDelta:           ptrFloat64(e.GetZDelta()),
		CenterDistance:   ptrFloat64(e.GetCenterDistance()),
		MaxDistance:      ptrFloat64(e.GetMaxDistance()),
		InterpRes:        ptrInt(e.GetInterpRes()),
		Sigma:            ptrFloat64(e.GetSigma()),
		WrapSeam:         ptrBool(e.GetWrapSeam()),
		RaggedSlices:     ptrString(e.GetRaggedSlices()),
		MissingRowPolicy: ptrString(e.GetMissingRowPolicy()),
		STLFormat:        ptrString(e.GetSTLFormat()),
	}
}

// LoadReconstructionConfig loads a config from a JSON file. The file must
// have a .json extension and be at most 1MB. Omitted fields keep their
// defaults, so partial files are fine.
func LoadReconstructionConfig(path string) (*ReconstructionConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseReconstructionConfig(data)
}

// ParseReconstructionConfig decodes and validates a JSON document. Unknown
// keys are rejected so typos do not silently fall back to defaults.
func ParseReconstructionConfig(data []byte) (*ReconstructionConfig, error) {
	cfg := EmptyReconstructionConfig()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repo root. Panics if the file cannot
// be loaded; intended for test setup and binaries run from the repo.
func MustLoadDefaultConfig() *ReconstructionConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/scan/pipeline/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadReconstructionConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run from repository root")
}

// Merge returns a copy of c with every non-nil field of override applied.
func (c *ReconstructionConfig) Merge(override *ReconstructionConfig) *ReconstructionConfig {
	out := *c
	if override == nil {
		return &out
	}
	if override.ZDelta != nil {
		out.ZDelta = ptrFloat64(*override.ZDelta)
	}
	if override.CenterDistance != nil {
		out.CenterDistance = ptrFloat64(*override.CenterDistance)
	}
	if override.MaxDistance != nil {
		out.MaxDistance = ptrFloat64(*override.MaxDistance)
	}
	if override.InterpRes != nil {
		out.InterpRes = ptrInt(*override.InterpRes)
	}
	if override.Sigma != nil {
		out.Sigma = ptrFloat64(*override.Sigma)
	}
	if override.WrapSeam != nil {
		out.WrapSeam = ptrBool(*override.WrapSeam)
	}
	if override.RaggedSlices != nil {
		out.RaggedSlices = ptrString(*override.RaggedSlices)
	}
	if override.MissingRowPolicy != nil {
		out.MissingRowPolicy = ptrString(*override.MissingRowPolicy)
	}
	if override.STLFormat != nil {
		out.STLFormat = ptrString(*override.STLFormat)
	}
	return &out
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Validate checks the values that are set. The interp_res lower bound is
// left to the resampler so callers get its dedicated error.
func (c *ReconstructionConfig) Validate() error {
	if c.ZDelta != nil && (!finite(*c.ZDelta) || *c.ZDelta <= 0) {
		return fmt.Errorf("z_delta must be positive, got %v", *c.ZDelta)
	}
	if c.CenterDistance != nil && !finite(*c.CenterDistance) {
		return fmt.Errorf("center_distance must be finite, got %v", *c.CenterDistance)
	}
	if c.MaxDistance != nil && (!finite(*c.MaxDistance) || *c.MaxDistance <= 0) {
		return fmt.Errorf("max_distance must be positive, got %v", *c.MaxDistance)
	}
	if c.InterpRes != nil && *c.InterpRes > MaxInterpRes {
		return fmt.Errorf("interp_res must be at most %d, got %d", MaxInterpRes, *c.InterpRes)
	}
	if c.Sigma != nil && (!finite(*c.Sigma) || *c.Sigma < 0 || *c.Sigma > MaxSigma) {
		return fmt.Errorf("sigma must be in [0, %v], got %v", MaxSigma, *c.Sigma)
	}
	if c.RaggedSlices != nil {
		if err := oneOf("ragged_slices", *c.RaggedSlices, "reject", "truncate"); err != nil {
			return err
		}
	}
	if c.MissingRowPolicy != nil {
		if err := oneOf("missing_row_policy", *c.MissingRowPolicy, "carry", "origin", "fail"); err != nil {
			return err
		}
	}
	if c.STLFormat != nil {
		if err := oneOf("stl_format", *c.STLFormat, "binary", "ascii"); err != nil {
			return err
		}
	}
	return nil
}

func oneOf(key, v string, allowed ...string) error {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(v), a) {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q (want one of %s)", key, v, strings.Join(allowed, ", "))
}

// GetZDelta returns the z_delta value or the default.
func (c *ReconstructionConfig) GetZDelta() float64 {
	if c.ZDelta == nil {
		return 0.2
	}
	return *c.ZDelta
}

// GetCenterDistance returns the center_distance value or the default.
func (c *ReconstructionConfig) GetCenterDistance() float64 {
	if c.CenterDistance == nil {
		return 6.5
	}
	return *c.CenterDistance
}

// GetMaxDistance returns the max_distance value or the default.
func (c *ReconstructionConfig) GetMaxDistance() float64 {
	if c.MaxDistance == nil {
		return 20
	}
	return *c.MaxDistance
}

// GetInterpRes returns the interp_res value or the default.
func (c *ReconstructionConfig) GetInterpRes() int {
	if c.InterpRes == nil {
		return 1
	}
	return *c.InterpRes
}

// GetSigma returns the sigma value or the default.
func (c *ReconstructionConfig) GetSigma() float64 {
	if c.Sigma == nil {
		return 1.25
	}
	return *c.Sigma
}

// GetWrapSeam returns the wrap_seam value or the default.
func (c *ReconstructionConfig) GetWrapSeam() bool {
	if c.WrapSeam == nil {
		return false
	}
	return *c.WrapSeam
}

// GetRaggedSlices returns the ragged_slices value or the default.
func (c *ReconstructionConfig) GetRaggedSlices() string {
	if c.RaggedSlices == nil || *c.RaggedSlices == "" {
		return "reject"
	}
	return *c.RaggedSlices
}

// GetMissingRowPolicy returns the missing_row_policy value or the default.
func (c *ReconstructionConfig) GetMissingRowPolicy() string {
	if c.MissingRowPolicy == nil || *c.MissingRowPolicy == "" {
		return "carry"
	}
	return *c.MissingRowPolicy
}

// GetSTLFormat returns the stl_format value or the default.
func (c *ReconstructionConfig) GetSTLFormat() string {
	if c.STLFormat == nil || *c.STLFormat == "" {
		return "binary"
	}
	return *c.STLFormat
}
